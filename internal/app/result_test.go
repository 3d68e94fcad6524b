package app

import (
	"testing"
	"time"

	"quiz-battle-service/internal/domain"
)

func TestAggregateResultRanking(t *testing.T) {
	start := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	end := start.Add(90 * time.Second)
	room := domain.BattleRoom{
		ID:        "room-1",
		QuizID:    "quiz-1",
		StartTime: &start,
		Participants: []domain.Participant{
			{ID: "p1", UserID: "u1", Username: "Alice"},
			{ID: "p2", UserID: "u2", Username: "Bob"},
			{ID: "p3", UserID: "u3", Username: "Cleo"},
		},
	}
	entries := []LedgerEntry{
		{ParticipantID: "p1", Score: 20, CorrectAnswers: 2, TotalAnswers: 3},
		{ParticipantID: "p2", Score: 33, CorrectAnswers: 3, TotalAnswers: 3, Answers: []domain.Answer{
			{TimeTakenMs: 1000}, {TimeTakenMs: 2000}, {TimeTakenMs: 3000},
		}},
		{ParticipantID: "p3", Score: 20, CorrectAnswers: 2, TotalAnswers: 3},
	}

	summary := aggregateResult(room, 3, entries, end)

	if summary.WinnerID != "p2" {
		t.Fatalf("expected p2 to win, got %s", summary.WinnerID)
	}
	if summary.TotalTimeSeconds != 90 {
		t.Fatalf("expected 90s total time, got %d", summary.TotalTimeSeconds)
	}
	if len(summary.Results) != 3 {
		t.Fatalf("expected 3 results, got %d", len(summary.Results))
	}
	if summary.Results[0].ParticipantID != "p2" || !summary.Results[0].IsWinner {
		t.Fatalf("expected p2 ranked first, got %+v", summary.Results[0])
	}
	if summary.Results[0].AverageTimeMs != 2000 {
		t.Fatalf("average time should come from the ledger answers, got %d", summary.Results[0].AverageTimeMs)
	}
	// p1 and p3 are tied on score and correct answers; earlier join wins.
	if summary.Results[1].ParticipantID != "p1" || summary.Results[2].ParticipantID != "p3" {
		t.Fatalf("tie should break by join order, got %s then %s",
			summary.Results[1].ParticipantID, summary.Results[2].ParticipantID)
	}
	for i, res := range summary.Results {
		if res.Rank != i+1 {
			t.Fatalf("expected rank %d, got %d", i+1, res.Rank)
		}
	}
}

func TestAggregateResultTiebreakByCorrect(t *testing.T) {
	room := domain.BattleRoom{
		ID: "room-1",
		Participants: []domain.Participant{
			{ID: "p1", UserID: "u1"},
			{ID: "p2", UserID: "u2"},
		},
	}
	entries := []LedgerEntry{
		{ParticipantID: "p1", Score: 20, CorrectAnswers: 1},
		{ParticipantID: "p2", Score: 20, CorrectAnswers: 2},
	}

	summary := aggregateResult(room, 2, entries, time.Now())
	if summary.WinnerID != "p2" {
		t.Fatalf("more correct answers should win the tie, got %s", summary.WinnerID)
	}
}

func TestExperience(t *testing.T) {
	cases := []struct {
		score  int
		winner bool
		rate   float64
		want   int
	}{
		{100, false, 0.5, 10},
		{100, true, 0.5, 15},
		{100, false, 0.8, 60},
		{100, true, 1.0, 65},
		{0, true, 0, 0},
	}
	for _, c := range cases {
		if got := experience(c.score, c.winner, c.rate); got != c.want {
			t.Fatalf("experience(%d, %v, %v) = %d, want %d", c.score, c.winner, c.rate, got, c.want)
		}
	}
}

func TestAverageTimeMs(t *testing.T) {
	answers := []domain.Answer{
		{TimeTakenMs: 1000},
		{TimeTakenMs: 3000},
	}
	if got := averageTimeMs(answers); got != 2000 {
		t.Fatalf("expected 2000ms average, got %d", got)
	}
	if got := averageTimeMs(nil); got != 0 {
		t.Fatalf("expected 0 for no answers, got %d", got)
	}
}
