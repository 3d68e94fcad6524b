package app_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"quiz-battle-service/internal/app"
	"quiz-battle-service/internal/domain"
	"quiz-battle-service/internal/infra/memory"
)

func TestCreateAndJoin(t *testing.T) {
	ctx := context.Background()
	service, _ := newTestService(10 * time.Second)

	room, err := service.Create(ctx, "quiz-1", 2, domain.UserRef{UserID: "u1", Username: "Alice"})
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}
	if room.Status != domain.RoomWaiting {
		t.Fatalf("expected WAITING, got %s", room.Status)
	}
	if len(room.Participants) != 1 || room.Participants[0].UserID != "u1" {
		t.Fatalf("creator should be auto-joined, got %+v", room.Participants)
	}
	if room.CreatorID != "u1" {
		t.Fatalf("expected creator u1, got %s", room.CreatorID)
	}

	if _, err := service.Create(ctx, "quiz-1", 2, domain.UserRef{UserID: "u1", Username: "Alice"}); !errors.Is(err, domain.ErrUserBusy) {
		t.Fatalf("expected busy error for second room, got %v", err)
	}

	if _, err := service.Join(ctx, room.ID, domain.UserRef{UserID: "u2", Username: "Bob"}); err != nil {
		t.Fatalf("join failed: %v", err)
	}
	if _, err := service.Join(ctx, room.ID, domain.UserRef{UserID: "u2", Username: "Bob"}); !errors.Is(err, domain.ErrUserBusy) {
		t.Fatalf("expected busy error on rejoin, got %v", err)
	}
	if _, err := service.Join(ctx, room.ID, domain.UserRef{UserID: "u3", Username: "Cleo"}); !errors.Is(err, domain.ErrRoomFull) {
		t.Fatalf("expected full room error, got %v", err)
	}
	if _, err := service.Join(ctx, "missing", domain.UserRef{UserID: "u4", Username: "Dana"}); !errors.Is(err, domain.ErrRoomNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestCreateUnknownQuiz(t *testing.T) {
	service, _ := newTestService(10 * time.Second)
	_, err := service.Create(context.Background(), "quiz-unknown", 2, domain.UserRef{UserID: "u1", Username: "Alice"})
	if !errors.Is(err, domain.ErrQuizNotFound) {
		t.Fatalf("expected quiz not found, got %v", err)
	}
}

func TestAllReadyStartsBattle(t *testing.T) {
	ctx := context.Background()
	service, _ := newTestService(10 * time.Second)
	room, p1, p2 := startableRoom(t, service)

	events, cancel, err := service.Subscribe(ctx, room.ID, p1.ID)
	if err != nil {
		t.Fatalf("subscribe failed: %v", err)
	}
	defer cancel()
	readEvent(t, events, domain.EventParticipantsUpdated)

	snap, started, err := service.ToggleReady(ctx, room.ID, p1.ID)
	if err != nil || started {
		t.Fatalf("first ready should not start, started=%v err=%v", started, err)
	}
	if !participant(t, snap, "u1").Ready {
		t.Fatalf("expected u1 ready after toggle")
	}
	readEvent(t, events, domain.EventParticipantsUpdated)

	snap, started, err = service.ToggleReady(ctx, room.ID, p2.ID)
	if err != nil {
		t.Fatalf("second ready failed: %v", err)
	}
	if !started {
		t.Fatalf("expected battle to start when all are ready")
	}
	if snap.Status != domain.RoomInProgress || snap.StartTime == nil || snap.CurrentQuestionIndex != 0 {
		t.Fatalf("unexpected room after start: %+v", snap)
	}

	readEvent(t, events, domain.EventRoomStarted)
	question := readEvent(t, events, domain.EventRoomQuestion)
	view, ok := question.Payload.(domain.QuestionView)
	if !ok {
		t.Fatalf("expected question view payload, got %T", question.Payload)
	}
	if view.Index != 0 || view.ID != "q1" {
		t.Fatalf("expected first question, got %+v", view)
	}
	for _, opt := range view.Options {
		if opt.Correct {
			t.Fatalf("correct flag must not leak to clients: %+v", view.Options)
		}
	}
}

func TestReadyRequiresWaitingRoom(t *testing.T) {
	ctx := context.Background()
	service, _ := newTestService(10 * time.Second)
	room, p1, p2 := startableRoom(t, service)
	mustStart(t, service, room.ID, p1.ID, p2.ID)

	if _, _, err := service.ToggleReady(ctx, room.ID, p1.ID); !errors.Is(err, domain.ErrInvalidTransition) {
		t.Fatalf("expected invalid transition, got %v", err)
	}
}

func TestSubmitAnswerScoring(t *testing.T) {
	ctx := context.Background()
	service, _ := newTestService(10 * time.Second)
	room, p1, p2 := startableRoom(t, service)
	mustStart(t, service, room.ID, p1.ID, p2.ID)

	// 2s of a 10s window used leaves 80% remaining, the top bonus band.
	result, err := service.SubmitAnswer(ctx, room.ID, p1.ID, domain.AnswerSubmission{
		QuestionID: "q1", OptionID: "o2", TimeTakenMs: 2000,
	})
	if err != nil {
		t.Fatalf("submit failed: %v", err)
	}
	if !result.Correct || result.TimeBonus != 3 || result.EarnedPoints != 13 {
		t.Fatalf("expected 10+3 points for a fast correct answer, got %+v", result)
	}
	if result.TotalScore != 13 || result.CurrentStreak != 1 {
		t.Fatalf("unexpected tally: %+v", result)
	}

	if _, err := service.SubmitAnswer(ctx, room.ID, p1.ID, domain.AnswerSubmission{
		QuestionID: "q1", OptionID: "o2", TimeTakenMs: 2500,
	}); !errors.Is(err, domain.ErrDuplicateAnswer) {
		t.Fatalf("expected duplicate answer error, got %v", err)
	}
	if _, err := service.SubmitAnswer(ctx, room.ID, p2.ID, domain.AnswerSubmission{
		QuestionID: "q2", OptionID: "o2", TimeTakenMs: 2000,
	}); !errors.Is(err, domain.ErrQuestionMismatch) {
		t.Fatalf("expected question mismatch, got %v", err)
	}

	result, err = service.SubmitAnswer(ctx, room.ID, p2.ID, domain.AnswerSubmission{
		QuestionID: "q1", OptionID: "o1", TimeTakenMs: 1000,
	})
	if err != nil {
		t.Fatalf("submit failed: %v", err)
	}
	if result.Correct || result.EarnedPoints != 0 || result.TotalScore != 0 {
		t.Fatalf("wrong option should earn nothing, got %+v", result)
	}

	// Everyone has answered, so the round advances without waiting.
	snap, err := service.Get(ctx, room.ID)
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	if snap.CurrentQuestionIndex != 1 {
		t.Fatalf("expected advance to question 1, got %d", snap.CurrentQuestionIndex)
	}
}

func TestBattleFinishAndSummary(t *testing.T) {
	ctx := context.Background()
	service, summaries := newTestService(10 * time.Second)
	room, p1, p2 := startableRoom(t, service)
	mustStart(t, service, room.ID, p1.ID, p2.ID)

	answer := func(pID, questionID, optionID string, ms int64) {
		t.Helper()
		if _, err := service.SubmitAnswer(ctx, room.ID, pID, domain.AnswerSubmission{
			QuestionID: questionID, OptionID: optionID, TimeTakenMs: ms,
		}); err != nil {
			t.Fatalf("submit %s/%s failed: %v", pID, questionID, err)
		}
	}
	answer(p1.ID, "q1", "o2", 1000) // correct, +13
	answer(p2.ID, "q1", "o1", 1000) // wrong
	answer(p1.ID, "q2", "o1", 1000) // correct, +13
	answer(p2.ID, "q2", "o3", 1000) // wrong

	summary, err := service.Finish(ctx, room.ID)
	if err != nil {
		t.Fatalf("finish failed: %v", err)
	}
	if summary.WinnerID != p1.ID {
		t.Fatalf("expected %s to win, got %s", p1.ID, summary.WinnerID)
	}
	if summary.TotalQuestions != 2 {
		t.Fatalf("expected 2 questions, got %d", summary.TotalQuestions)
	}
	winner := summary.Results[0]
	if winner.FinalScore != 26 || winner.CorrectAnswers != 2 || !winner.IsWinner {
		t.Fatalf("unexpected winner row: %+v", winner)
	}
	// Perfect run: 26/10 * 1.5 rounded down, plus the accuracy bonus.
	if winner.Experience != 53 {
		t.Fatalf("expected 53 xp, got %d", winner.Experience)
	}
	if summary.Results[1].FinalScore != 0 || summary.Results[1].Rank != 2 {
		t.Fatalf("unexpected loser row: %+v", summary.Results[1])
	}

	again, err := service.Finish(ctx, room.ID)
	if err != nil {
		t.Fatalf("repeat finish failed: %v", err)
	}
	if again.WinnerID != summary.WinnerID || again.FinishedAt != summary.FinishedAt {
		t.Fatalf("finish is not idempotent: %+v vs %+v", again, summary)
	}

	waitFor(t, func() bool {
		_, ok := summaries.Get(room.ID)
		return ok
	}, "summary was never persisted")
}

func TestDeadlineRecordsMissesAndAdvances(t *testing.T) {
	ctx := context.Background()
	service, summaries := newTestService(40 * time.Millisecond)
	room, p1, p2 := startableRoom(t, service)
	mustStart(t, service, room.ID, p1.ID, p2.ID)

	waitFor(t, func() bool {
		_, ok := summaries.Get(room.ID)
		return ok
	}, "room never finished after deadlines")

	summary, err := service.Finish(ctx, room.ID)
	if err != nil {
		t.Fatalf("finish failed: %v", err)
	}
	for _, res := range summary.Results {
		if res.FinalScore != 0 || res.CorrectAnswers != 0 || res.TotalAnswers != 2 {
			t.Fatalf("timeouts should record zero-point misses, got %+v", res)
		}
	}
	// Ties all the way down resolve to the earliest joiner.
	if summary.WinnerID != p1.ID {
		t.Fatalf("expected creator to win the full tie, got %s", summary.WinnerID)
	}
}

func TestDisconnectForfeits(t *testing.T) {
	ctx := context.Background()
	service, _ := newTestService(10 * time.Second)
	room, p1, p2 := startableRoom(t, service)
	mustStart(t, service, room.ID, p1.ID, p2.ID)

	if err := service.BindSession(ctx, "sess-2", room.ID, p2.ID); err != nil {
		t.Fatalf("bind failed: %v", err)
	}
	service.Disconnect(ctx, "sess-2")

	snap, err := service.Get(ctx, room.ID)
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	if participant(t, snap, "u2").Active {
		t.Fatalf("disconnected participant should be inactive")
	}

	// The remaining participant alone drives the round forward.
	if _, err := service.SubmitAnswer(ctx, room.ID, p1.ID, domain.AnswerSubmission{
		QuestionID: "q1", OptionID: "o2", TimeTakenMs: 1000,
	}); err != nil {
		t.Fatalf("submit failed: %v", err)
	}
	snap, _ = service.Get(ctx, room.ID)
	if snap.CurrentQuestionIndex != 1 {
		t.Fatalf("inactive participant stalled the round: index %d", snap.CurrentQuestionIndex)
	}

	// No answers get recorded for the forfeiter after the fact.
	if _, err := service.SubmitAnswer(ctx, room.ID, p2.ID, domain.AnswerSubmission{
		QuestionID: "q2", OptionID: "o2",
	}); !errors.Is(err, domain.ErrParticipantNotFound) {
		t.Fatalf("expected rejection for inactive participant, got %v", err)
	}
}

func TestLastDisconnectFinishesBattle(t *testing.T) {
	ctx := context.Background()
	service, summaries := newTestService(10 * time.Second)
	room, p1, p2 := startableRoom(t, service)
	mustStart(t, service, room.ID, p1.ID, p2.ID)

	service.BindSession(ctx, "sess-1", room.ID, p1.ID)
	service.BindSession(ctx, "sess-2", room.ID, p2.ID)
	service.Disconnect(ctx, "sess-1")
	service.Disconnect(ctx, "sess-2")

	waitFor(t, func() bool {
		_, ok := summaries.Get(room.ID)
		return ok
	}, "battle never finished after everyone left")

	summary, err := service.Finish(ctx, room.ID)
	if err != nil {
		t.Fatalf("finish failed: %v", err)
	}
	if len(summary.Results) != 2 {
		t.Fatalf("expected results for both participants, got %+v", summary.Results)
	}
}

func TestConcurrentSubmissionsAdvanceOnce(t *testing.T) {
	ctx := context.Background()
	service, _ := newTestService(10 * time.Second)
	room, p1, p2 := startableRoom(t, service)
	mustStart(t, service, room.ID, p1.ID, p2.ID)

	var wg sync.WaitGroup
	results := make([]domain.AnswerResult, 2)
	errs := make([]error, 2)
	for i, pid := range []string{p1.ID, p2.ID} {
		wg.Add(1)
		go func(i int, pid string) {
			defer wg.Done()
			results[i], errs[i] = service.SubmitAnswer(ctx, room.ID, pid, domain.AnswerSubmission{
				QuestionID: "q1", OptionID: "o2", TimeTakenMs: 1000,
			})
		}(i, pid)
	}
	wg.Wait()

	for i, err := range errs {
		if err != nil {
			t.Fatalf("concurrent submit %d failed: %v", i, err)
		}
	}
	for i, res := range results {
		if !res.Correct || res.TotalScore != 13 {
			t.Fatalf("unexpected result %d: %+v", i, res)
		}
	}

	snap, err := service.Get(ctx, room.ID)
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	if snap.CurrentQuestionIndex != 1 {
		t.Fatalf("racing submissions should advance exactly once, got index %d", snap.CurrentQuestionIndex)
	}
	for _, p := range snap.Participants {
		if p.CurrentScore != 13 {
			t.Fatalf("both tallies should land, got %+v", p)
		}
	}
}

func TestDisconnectAfterFinishIsQuiet(t *testing.T) {
	room := app.NewRoom("quiz-1", testQuizzes()["quiz-1"], 2, domain.UserRef{UserID: "u1", Username: "Alice"},
		app.RoomConfig{DefaultQuestionTime: 10 * time.Second}, app.NewScoreboard(), nil)
	snap, err := room.Join(domain.UserRef{UserID: "u2", Username: "Bob"})
	if err != nil {
		t.Fatalf("join failed: %v", err)
	}
	p1 := participant(t, snap, "u1")
	p2 := participant(t, snap, "u2")

	if _, _, err := room.ToggleReady(p1.ID); err != nil {
		t.Fatalf("ready failed: %v", err)
	}
	if _, started, err := room.ToggleReady(p2.ID); err != nil || !started {
		t.Fatalf("expected start, started=%v err=%v", started, err)
	}
	if _, err := room.Finish(); err != nil {
		t.Fatalf("finish failed: %v", err)
	}

	after, gone, err := room.MarkInactive(p2.ID)
	if err != nil {
		t.Fatalf("disconnect after the battle ended should be a no-op, got %v", err)
	}
	if gone {
		t.Fatalf("terminal room must not report itself discarded")
	}
	if !participant(t, after, "u2").Active {
		t.Fatalf("finished rooms are immutable; participant was deactivated")
	}
}

func TestFinishedRoomEvicted(t *testing.T) {
	ctx := context.Background()
	service, summaries := newTestService(10 * time.Second)
	room, p1, p2 := startableRoom(t, service)
	mustStart(t, service, room.ID, p1.ID, p2.ID)

	for _, q := range []string{"q1", "q2"} {
		for _, pid := range []string{p1.ID, p2.ID} {
			if _, err := service.SubmitAnswer(ctx, room.ID, pid, domain.AnswerSubmission{
				QuestionID: q, OptionID: "o2", TimeTakenMs: 1000,
			}); err != nil {
				t.Fatalf("submit %s/%s failed: %v", pid, q, err)
			}
		}
	}

	waitFor(t, func() bool {
		_, err := service.Get(ctx, room.ID)
		return errors.Is(err, domain.ErrRoomNotFound)
	}, "finished room was never evicted")

	if _, ok := summaries.Get(room.ID); !ok {
		t.Fatalf("summary must be persisted before the room is evicted")
	}
	summary, err := service.Finish(ctx, room.ID)
	if err != nil {
		t.Fatalf("finish after eviction failed: %v", err)
	}
	if summary.RoomID != room.ID || len(summary.Results) != 2 {
		t.Fatalf("unexpected stored summary: %+v", summary)
	}
}

func TestRejoinAfterLeave(t *testing.T) {
	ctx := context.Background()
	service, _ := newTestService(10 * time.Second)
	room, p1, p2 := startableRoom(t, service)

	snap, err := service.Leave(ctx, room.ID, p2.ID)
	if err != nil {
		t.Fatalf("leave failed: %v", err)
	}
	if snap == nil {
		t.Fatalf("room with a remaining participant must survive")
	}

	rejoined, err := service.Join(ctx, room.ID, domain.UserRef{UserID: "u2", Username: "Bob"})
	if err != nil {
		t.Fatalf("rejoin after leave failed: %v", err)
	}
	p := participant(t, rejoined, "u2")
	if !p.Active || p.Ready {
		t.Fatalf("rejoin should reactivate with ready cleared, got %+v", p)
	}
	if p.ID != p2.ID {
		t.Fatalf("rejoin should reuse the existing participant record")
	}
	if len(rejoined.Participants) != 2 {
		t.Fatalf("expected 2 participant records, got %d", len(rejoined.Participants))
	}

	mustStart(t, service, room.ID, p1.ID, p.ID)
}

func TestLeaveWaitingRoom(t *testing.T) {
	ctx := context.Background()
	service, _ := newTestService(10 * time.Second)

	room, err := service.Create(ctx, "quiz-1", 2, domain.UserRef{UserID: "u1", Username: "Alice"})
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}

	snap, err := service.Leave(ctx, room.ID, room.Participants[0].ID)
	if err != nil {
		t.Fatalf("leave failed: %v", err)
	}
	if snap != nil {
		t.Fatalf("expected the emptied room to be discarded, got %+v", snap)
	}
	if _, err := service.Get(ctx, room.ID); !errors.Is(err, domain.ErrRoomNotFound) {
		t.Fatalf("expected not found after discard, got %v", err)
	}
}

func TestCancelIsCreatorOnly(t *testing.T) {
	ctx := context.Background()
	service, _ := newTestService(10 * time.Second)
	room, _, _ := startableRoom(t, service)

	if err := service.Cancel(ctx, room.ID, "u2"); !errors.Is(err, domain.ErrUnauthorized) {
		t.Fatalf("expected unauthorized, got %v", err)
	}
	if err := service.Cancel(ctx, room.ID, "u1"); err != nil {
		t.Fatalf("cancel failed: %v", err)
	}
	if _, err := service.Get(ctx, room.ID); !errors.Is(err, domain.ErrRoomNotFound) {
		t.Fatalf("expected not found after cancel, got %v", err)
	}
}

func TestListFiltersByStatus(t *testing.T) {
	ctx := context.Background()
	service, _ := newTestService(10 * time.Second)
	room, p1, p2 := startableRoom(t, service)
	if _, err := service.Create(ctx, "quiz-1", 2, domain.UserRef{UserID: "u9", Username: "Zed"}); err != nil {
		t.Fatalf("create failed: %v", err)
	}
	mustStart(t, service, room.ID, p1.ID, p2.ID)

	waiting := service.List(ctx, domain.RoomWaiting)
	if len(waiting) != 1 {
		t.Fatalf("expected 1 waiting room, got %d", len(waiting))
	}
	inProgress := service.List(ctx, domain.RoomInProgress)
	if len(inProgress) != 1 || inProgress[0].ID != room.ID {
		t.Fatalf("expected the started room in progress, got %+v", inProgress)
	}
	if all := service.List(ctx, ""); len(all) != 2 {
		t.Fatalf("expected 2 rooms total, got %d", len(all))
	}
}

func TestPrivateAnswerResultEvent(t *testing.T) {
	ctx := context.Background()
	service, _ := newTestService(10 * time.Second)
	room, p1, p2 := startableRoom(t, service)

	events1, cancel1, err := service.Subscribe(ctx, room.ID, p1.ID)
	if err != nil {
		t.Fatalf("subscribe failed: %v", err)
	}
	defer cancel1()
	events2, cancel2, err := service.Subscribe(ctx, room.ID, p2.ID)
	if err != nil {
		t.Fatalf("subscribe failed: %v", err)
	}
	defer cancel2()

	mustStart(t, service, room.ID, p1.ID, p2.ID)
	if _, err := service.SubmitAnswer(ctx, room.ID, p1.ID, domain.AnswerSubmission{
		QuestionID: "q1", OptionID: "o2", TimeTakenMs: 1000,
	}); err != nil {
		t.Fatalf("submit failed: %v", err)
	}

	readEvent(t, events1, domain.EventAnswerResult)

	// p2's stream carries the shared progress update but never p1's result.
	readEvent(t, events2, domain.EventRoomProgress)
	for {
		select {
		case event := <-events2:
			if event.Type == domain.EventAnswerResult {
				t.Fatalf("answer result leaked to another participant")
			}
		default:
			return
		}
	}
}

func newTestService(questionTime time.Duration) (*app.BattleService, *memory.SummaryStore) {
	summaries := memory.NewSummaryStore()
	quizzes := memory.NewQuizRepository(memory.NewStaticQuizLoader(testQuizzes()), 5*time.Minute)
	service := app.NewBattleService(
		memory.NewRoomStore(),
		memory.NewSessionRegistry(time.Hour),
		quizzes,
		summaries,
		app.RoomConfig{DefaultQuestionTime: questionTime},
	)
	return service, summaries
}

func testQuizzes() map[string]domain.Quiz {
	return map[string]domain.Quiz{
		"quiz-1": {
			ID: "quiz-1",
			Questions: []domain.Question{
				{
					ID:     "q1",
					Prompt: "Select the right option",
					Options: []domain.Option{
						{ID: "o1", Text: "Wrong", Correct: false},
						{ID: "o2", Text: "Right", Correct: true},
						{ID: "o3", Text: "Also wrong", Correct: false},
					},
				},
				{
					ID:     "q2",
					Prompt: "Pick again",
					Options: []domain.Option{
						{ID: "o1", Text: "Right", Correct: true},
						{ID: "o2", Text: "Wrong", Correct: false},
						{ID: "o3", Text: "Also wrong", Correct: false},
					},
				},
			},
		},
	}
}

// startableRoom creates a room with u1 and joins u2, returning both participants.
func startableRoom(t *testing.T, service *app.BattleService) (domain.BattleRoom, domain.Participant, domain.Participant) {
	t.Helper()
	ctx := context.Background()
	room, err := service.Create(ctx, "quiz-1", 2, domain.UserRef{UserID: "u1", Username: "Alice"})
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}
	room, err = service.Join(ctx, room.ID, domain.UserRef{UserID: "u2", Username: "Bob"})
	if err != nil {
		t.Fatalf("join failed: %v", err)
	}
	return room, participant(t, room, "u1"), participant(t, room, "u2")
}

func mustStart(t *testing.T, service *app.BattleService, roomID, p1ID, p2ID string) {
	t.Helper()
	ctx := context.Background()
	if _, _, err := service.ToggleReady(ctx, roomID, p1ID); err != nil {
		t.Fatalf("ready failed: %v", err)
	}
	_, started, err := service.ToggleReady(ctx, roomID, p2ID)
	if err != nil {
		t.Fatalf("ready failed: %v", err)
	}
	if !started {
		t.Fatalf("expected battle to start")
	}
}

func participant(t *testing.T, room domain.BattleRoom, userID string) domain.Participant {
	t.Helper()
	for _, p := range room.Participants {
		if p.UserID == userID {
			return p
		}
	}
	t.Fatalf("participant for user %s not found in %+v", userID, room.Participants)
	return domain.Participant{}
}

func readEvent(t *testing.T, events <-chan domain.Event, want string) domain.Event {
	t.Helper()
	deadline := time.After(5 * time.Second)
	for {
		select {
		case event, ok := <-events:
			if !ok {
				t.Fatalf("event channel closed while waiting for %s", want)
			}
			if event.Type == want {
				return event
			}
		case <-deadline:
			t.Fatalf("timed out waiting for %s event", want)
		}
	}
}

func waitFor(t *testing.T, cond func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("%s", msg)
}
