package app

import (
	"sort"
	"time"

	"quiz-battle-service/internal/domain"
)

const (
	winnerExperienceFactor = 1.5
	accuracyBonusXP        = 50
	accuracyBonusRate      = 0.8
)

// aggregateResult turns a drained ledger into the immutable battle summary.
// Winner is the highest score, ties broken by correct answers, then by
// earlier join order (the ledger preserves join order).
func aggregateResult(room domain.BattleRoom, totalQuestions int, entries []LedgerEntry, finishedAt time.Time) domain.BattleSummary {
	byID := make(map[string]domain.Participant, len(room.Participants))
	for _, p := range room.Participants {
		byID[p.ID] = p
	}

	type ranked struct {
		entry LedgerEntry
		join  int
	}
	order := make([]ranked, 0, len(entries))
	for i, e := range entries {
		order = append(order, ranked{entry: e, join: i})
	}
	sort.SliceStable(order, func(i, j int) bool {
		a, b := order[i].entry, order[j].entry
		if a.Score != b.Score {
			return a.Score > b.Score
		}
		if a.CorrectAnswers != b.CorrectAnswers {
			return a.CorrectAnswers > b.CorrectAnswers
		}
		return order[i].join < order[j].join
	})

	summary := domain.BattleSummary{
		RoomID:         room.ID,
		QuizID:         room.QuizID,
		TotalQuestions: totalQuestions,
		FinishedAt:     finishedAt,
		Results:        make([]domain.ParticipantResult, 0, len(order)),
	}
	if room.StartTime != nil {
		summary.TotalTimeSeconds = int64(finishedAt.Sub(*room.StartTime) / time.Second)
	}

	for rank, r := range order {
		p := byID[r.entry.ParticipantID]
		isWinner := rank == 0
		rate := correctRate(r.entry.CorrectAnswers, totalQuestions)

		res := domain.ParticipantResult{
			ParticipantID:  r.entry.ParticipantID,
			UserID:         p.UserID,
			Username:       p.Username,
			Rank:           rank + 1,
			FinalScore:     r.entry.Score,
			CorrectAnswers: r.entry.CorrectAnswers,
			TotalAnswers:   r.entry.TotalAnswers,
			AverageTimeMs:  averageTimeMs(r.entry.Answers),
			Experience:     experience(r.entry.Score, isWinner, rate),
			IsWinner:       isWinner,
			CorrectRate:    rate,
		}
		if isWinner {
			summary.WinnerID = r.entry.ParticipantID
		}
		summary.Results = append(summary.Results, res)
	}
	return summary
}

// experience derives the XP grant: base score/10, winner multiplier, flat
// bonus for 80%+ accuracy.
func experience(score int, winner bool, rate float64) int {
	xp := float64(score) / 10
	if winner {
		xp *= winnerExperienceFactor
	}
	if rate >= accuracyBonusRate {
		xp += accuracyBonusXP
	}
	return int(xp)
}

func correctRate(correct, totalQuestions int) float64 {
	if totalQuestions == 0 {
		return 0
	}
	return float64(correct) / float64(totalQuestions)
}

func averageTimeMs(answers []domain.Answer) int64 {
	if len(answers) == 0 {
		return 0
	}
	var sum int64
	for _, a := range answers {
		sum += a.TimeTakenMs
	}
	return sum / int64(len(answers))
}
