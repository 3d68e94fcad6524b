package app

import (
	"log"
	"sync"
	"time"

	"github.com/google/uuid"

	"quiz-battle-service/internal/domain"
)

// RoomConfig carries the battle tuning knobs a room needs at runtime.
type RoomConfig struct {
	// DefaultQuestionTime bounds a question when the quiz content carries no
	// per-question limit.
	DefaultQuestionTime time.Duration
	// MinParticipants gates the automatic all-ready start.
	MinParticipants int
}

func (c RoomConfig) withDefaults() RoomConfig {
	if c.DefaultQuestionTime <= 0 {
		c.DefaultQuestionTime = 30 * time.Second
	}
	if c.MinParticipants < 2 {
		c.MinParticipants = 2
	}
	return c
}

// Room is the live runtime of one battle. Lifecycle transitions (join, ready
// toggles that may start the battle, leave, finish) are serialized under the
// room mutex. Answer scoring is not: submissions record into per-participant
// Scoreboard slots without holding the room mutex, which is reacquired only
// to mirror the result and arbitrate the all-answered advance.
type Room struct {
	mu   sync.Mutex
	room domain.BattleRoom
	quiz domain.Quiz
	cfg  RoomConfig

	scores *Scoreboard
	now    func() time.Time

	// questionEpoch invalidates deadline timers the moment the sequencer
	// advances; a timer that fires late sees a stale epoch and does nothing.
	questionEpoch   int
	deadline        *time.Timer
	questionStarted time.Time
	questionLimit   time.Duration

	subscribers map[*subscriber]struct{}

	summary  *domain.BattleSummary
	onFinish func(domain.BattleSummary)
}

type subscriber struct {
	participantID string
	ch            chan domain.Event
}

// NewRoom creates a WAITING room with the creator auto-joined.
func NewRoom(quizID string, quiz domain.Quiz, maxParticipants int, creator domain.UserRef, cfg RoomConfig, scores *Scoreboard, onFinish func(domain.BattleSummary)) *Room {
	return newRoomWithClock(quizID, quiz, maxParticipants, creator, cfg, scores, onFinish, time.Now)
}

// NewRoomWithClock is test-only for deterministic timestamps.
func NewRoomWithClock(quizID string, quiz domain.Quiz, maxParticipants int, creator domain.UserRef, cfg RoomConfig, scores *Scoreboard, onFinish func(domain.BattleSummary), now func() time.Time) *Room {
	return newRoomWithClock(quizID, quiz, maxParticipants, creator, cfg, scores, onFinish, now)
}

func newRoomWithClock(quizID string, quiz domain.Quiz, maxParticipants int, creator domain.UserRef, cfg RoomConfig, scores *Scoreboard, onFinish func(domain.BattleSummary), now func() time.Time) *Room {
	if onFinish == nil {
		onFinish = func(domain.BattleSummary) {}
	}
	r := &Room{
		room: domain.BattleRoom{
			ID:              uuid.NewString(),
			QuizID:          quizID,
			Status:          domain.RoomWaiting,
			MaxParticipants: maxParticipants,
			CreatorID:       creator.UserID,
			CreatedAt:       now(),
		},
		quiz:        quiz,
		cfg:         cfg.withDefaults(),
		scores:      scores,
		now:         now,
		subscribers: make(map[*subscriber]struct{}),
		onFinish:    onFinish,
	}
	r.addParticipantLocked(creator)
	return r
}

// ID returns the room identifier.
func (r *Room) ID() string {
	return r.room.ID
}

// Snapshot returns a deep copy of the room record including participants.
func (r *Room) Snapshot() domain.BattleRoom {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.snapshotLocked()
}

// Status returns the current lifecycle state.
func (r *Room) Status() domain.RoomStatus {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.room.Status
}

// HasActiveUser reports whether the user holds an active participant here
// while the room is not terminal. Backs the "one active room per user" rule.
func (r *Room) HasActiveUser(userID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.room.Status.Terminal() {
		return false
	}
	for i := range r.room.Participants {
		if r.room.Participants[i].UserID == userID && r.room.Participants[i].Active {
			return true
		}
	}
	return false
}

// Join adds a user as a participant of a WAITING room. A user who left
// earlier keeps their participant record; joining again reactivates it with
// the ready flag cleared.
func (r *Room) Join(user domain.UserRef) (domain.BattleRoom, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.room.Status != domain.RoomWaiting {
		return domain.BattleRoom{}, domain.ErrRoomNotJoinable
	}
	existing := r.findByUserLocked(user.UserID)
	if existing != nil && existing.Active {
		return domain.BattleRoom{}, domain.ErrAlreadyJoined
	}
	if r.activeCountLocked() >= r.room.MaxParticipants {
		return domain.BattleRoom{}, domain.ErrRoomFull
	}

	if existing != nil {
		existing.Active = true
		existing.Ready = false
	} else {
		r.addParticipantLocked(user)
	}
	snap := r.snapshotLocked()
	r.broadcastLocked(domain.Event{Type: domain.EventParticipantsUpdated, RoomID: r.room.ID, Payload: snap})
	return snap, nil
}

// ToggleReady flips the participant's ready flag. When every active
// participant is ready and enough of them are present, the battle starts
// atomically under the same lock, so two concurrent toggles can never both
// trigger the start.
func (r *Room) ToggleReady(participantID string) (domain.BattleRoom, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.room.Status != domain.RoomWaiting {
		return domain.BattleRoom{}, false, domain.ErrInvalidTransition
	}
	p := r.findLocked(participantID)
	if p == nil || !p.Active {
		return domain.BattleRoom{}, false, domain.ErrParticipantNotFound
	}

	p.Ready = !p.Ready
	started := false
	if r.allReadyLocked() && r.activeCountLocked() >= r.cfg.MinParticipants {
		r.startLocked()
		started = true
	} else {
		r.broadcastLocked(domain.Event{Type: domain.EventParticipantsUpdated, RoomID: r.room.ID, Payload: r.snapshotLocked()})
	}
	return r.snapshotLocked(), started, nil
}

// Leave handles an explicit leave. While WAITING the participant is marked
// inactive and the room is cancelled once nobody active remains; during
// IN_PROGRESS it is a forfeit, identical to a transport disconnect.
func (r *Room) Leave(participantID string) (domain.BattleRoom, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	p := r.findLocked(participantID)
	if p == nil {
		return domain.BattleRoom{}, false, domain.ErrParticipantNotFound
	}
	return r.deactivateLocked(p)
}

// MarkInactive is the disconnect path: same forfeit policy as Leave, reached
// via the session registry instead of an explicit action. Once the room is
// terminal a disconnect is a no-op; sockets closing after room-ended is the
// normal end of a battle, not an error.
func (r *Room) MarkInactive(participantID string) (domain.BattleRoom, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	p := r.findLocked(participantID)
	if p == nil {
		return domain.BattleRoom{}, false, domain.ErrParticipantNotFound
	}
	if r.room.Status.Terminal() || !p.Active {
		return r.snapshotLocked(), false, nil
	}
	return r.deactivateLocked(p)
}

// deactivateLocked marks the participant inactive and resolves the fallout:
// an emptied WAITING room is cancelled, an emptied battle is finished, and a
// round no longer waiting on the leaver advances immediately.
func (r *Room) deactivateLocked(p *domain.Participant) (domain.BattleRoom, bool, error) {
	if r.room.Status.Terminal() {
		return domain.BattleRoom{}, false, domain.ErrInvalidTransition
	}

	p.Active = false
	p.Ready = false
	gone := false

	switch r.room.Status {
	case domain.RoomWaiting:
		if r.activeCountLocked() == 0 {
			r.transitionLocked(domain.RoomCancelled)
			gone = true
		}
	case domain.RoomInProgress:
		if r.activeCountLocked() == 0 {
			r.finishLocked()
			gone = true
		} else if r.allAnsweredLocked() {
			r.stopDeadlineLocked()
			r.advanceLocked()
		}
	}

	snap := r.snapshotLocked()
	if !gone {
		r.broadcastLocked(domain.Event{Type: domain.EventParticipantsUpdated, RoomID: r.room.ID, Payload: snap})
	}
	return snap, gone, nil
}

// Cancel discards a WAITING room. Creator only.
func (r *Room) Cancel(requesterUserID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if requesterUserID != r.room.CreatorID {
		return domain.ErrUnauthorized
	}
	if r.room.Status != domain.RoomWaiting {
		return domain.ErrInvalidTransition
	}
	r.transitionLocked(domain.RoomCancelled)
	r.broadcastLocked(domain.Event{Type: domain.EventRoomEnded, RoomID: r.room.ID, Payload: struct {
		RoomID    string `json:"roomId"`
		Cancelled bool   `json:"cancelled"`
	}{r.room.ID, true}})
	return nil
}

// SubmitAnswer validates and scores one submission for the current question.
// The room mutex is held only to read the round context and, afterwards, to
// publish the result and arbitrate the all-answered advance. The scoring
// itself, duplicate check included, runs under the participant's ledger slot
// lock, so submissions from different participants score concurrently.
func (r *Room) SubmitAnswer(participantID string, sub domain.AnswerSubmission) (domain.AnswerResult, error) {
	r.mu.Lock()
	if r.room.Status != domain.RoomInProgress {
		r.mu.Unlock()
		return domain.AnswerResult{}, domain.ErrBattleNotActive
	}
	p := r.findLocked(participantID)
	if p == nil || !p.Active {
		r.mu.Unlock()
		return domain.AnswerResult{}, domain.ErrParticipantNotFound
	}
	index := r.room.CurrentQuestionIndex
	question := r.quiz.Questions[index]
	limit := r.questionLimit
	started := r.questionStarted
	r.mu.Unlock()

	if sub.QuestionID != question.ID {
		return domain.AnswerResult{}, domain.ErrQuestionMismatch
	}

	correct := isCorrectOption(question, sub.OptionID)
	taken := clampTimeTaken(sub.TimeTakenMs, started, limit, r.now)
	bonus := 0
	points := 0
	if correct {
		bonus = TimeBonus(limit-taken, limit)
		points = question.EffectivePoints() + bonus
	}

	answer := domain.Answer{
		QuestionID:    question.ID,
		QuestionIndex: index,
		IsCorrect:     correct,
		EarnedPoints:  points,
		TimeTakenMs:   int64(taken / time.Millisecond),
	}
	// A deadline that fires in this window records the miss first and wins;
	// the slot's duplicate check then rejects this submission as a late one.
	entry, err := r.scores.RecordSubmission(r.room.ID, participantID, answer)
	if err != nil {
		return domain.AnswerResult{}, err
	}

	result := domain.AnswerResult{
		QuestionID:    question.ID,
		QuestionIndex: index,
		Correct:       correct,
		EarnedPoints:  points,
		TimeBonus:     bonus,
		TotalScore:    entry.Score,
		CurrentStreak: entry.CurrentStreak,
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if p := r.findLocked(participantID); p != nil {
		p.Answers = append(p.Answers, answer)
		r.mirrorEntryLocked(p, entry)
	}
	r.sendToLocked(participantID, domain.Event{Type: domain.EventAnswerResult, RoomID: r.room.ID, To: participantID, Payload: result})
	r.broadcastProgressLocked()

	// Recheck the status: the round may have advanced or finished while this
	// submission was scoring, in which case the slot state already reflects
	// the new index and there is nothing to arbitrate.
	if r.room.Status == domain.RoomInProgress && r.allAnsweredLocked() {
		r.stopDeadlineLocked()
		r.advanceLocked()
	}
	return result, nil
}

// Finish finalizes the battle. Idempotent: once a summary exists, it is
// returned unchanged on every later call.
func (r *Room) Finish() (domain.BattleSummary, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.summary != nil {
		return *r.summary, nil
	}
	if r.room.Status != domain.RoomInProgress {
		return domain.BattleSummary{}, domain.ErrInvalidTransition
	}
	r.finishLocked()
	return *r.summary, nil
}

// Summary returns the cached summary of a finished battle.
func (r *Room) Summary() (domain.BattleSummary, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.summary == nil {
		return domain.BattleSummary{}, false
	}
	return *r.summary, true
}

// Subscribe registers an event channel for a connected participant. The
// caller must invoke the returned cancel function to avoid leaks.
func (r *Room) Subscribe(participantID string) (<-chan domain.Event, func()) {
	sub := &subscriber{participantID: participantID, ch: make(chan domain.Event, 16)}

	r.mu.Lock()
	r.subscribers[sub] = struct{}{}
	initial := domain.Event{Type: domain.EventParticipantsUpdated, RoomID: r.room.ID, Payload: r.snapshotLocked()}
	r.mu.Unlock()

	sub.ch <- initial

	cancel := func() {
		r.mu.Lock()
		if _, ok := r.subscribers[sub]; ok {
			delete(r.subscribers, sub)
			close(sub.ch)
		}
		r.mu.Unlock()
	}
	return sub.ch, cancel
}

// Shutdown stops the deadline timer and drops all subscribers.
func (r *Room) Shutdown() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.stopDeadlineLocked()
	for sub := range r.subscribers {
		close(sub.ch)
		delete(r.subscribers, sub)
	}
}

func (r *Room) addParticipantLocked(user domain.UserRef) *domain.Participant {
	p := domain.Participant{
		ID:       uuid.NewString(),
		RoomID:   r.room.ID,
		UserID:   user.UserID,
		Username: user.Username,
		Active:   true,
		JoinedAt: r.now(),
	}
	r.room.Participants = append(r.room.Participants, p)
	return &r.room.Participants[len(r.room.Participants)-1]
}

func (r *Room) startLocked() {
	r.transitionLocked(domain.RoomInProgress)
	start := r.now()
	r.room.StartTime = &start

	ids := make([]string, 0, len(r.room.Participants))
	for i := range r.room.Participants {
		if r.room.Participants[i].Active {
			ids = append(ids, r.room.Participants[i].ID)
		}
	}
	r.scores.Initialize(r.room.ID, ids)

	r.broadcastLocked(domain.Event{Type: domain.EventRoomStarted, RoomID: r.room.ID, Payload: r.snapshotLocked()})
	r.emitQuestionLocked(0)
}

func (r *Room) emitQuestionLocked(index int) {
	r.room.CurrentQuestionIndex = index
	question := r.quiz.Questions[index]

	limit := time.Duration(question.EffectiveTimeLimit(0)) * time.Second
	if limit <= 0 {
		limit = r.cfg.DefaultQuestionTime
	}
	r.questionLimit = limit
	r.questionStarted = r.now()

	r.questionEpoch++
	epoch := r.questionEpoch
	r.deadline = time.AfterFunc(limit, func() { r.onDeadline(epoch) })

	view := question.View(index, int(limit/time.Second), len(r.quiz.Questions))
	r.broadcastLocked(domain.Event{Type: domain.EventRoomQuestion, RoomID: r.room.ID, Payload: view})
}

// onDeadline runs off the request path when a question timer fires. Every
// active participant still missing an answer is recorded as incorrect with
// zero points, then the sequencer advances. The epoch check discards timers
// made stale by an earlier all-answered advance.
func (r *Room) onDeadline(epoch int) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.room.Status != domain.RoomInProgress || epoch != r.questionEpoch {
		return
	}

	index := r.room.CurrentQuestionIndex
	question := r.quiz.Questions[index]
	for i := range r.room.Participants {
		p := &r.room.Participants[i]
		if !p.Active {
			continue
		}
		miss := domain.Answer{
			QuestionID:    question.ID,
			QuestionIndex: index,
			TimeTakenMs:   int64(r.questionLimit / time.Millisecond),
		}
		entry, err := r.scores.RecordSubmission(r.room.ID, p.ID, miss)
		if err != nil {
			// Already answered, or the ledger is gone; either way no miss.
			continue
		}
		p.Answers = append(p.Answers, miss)
		r.mirrorEntryLocked(p, entry)
	}

	r.broadcastProgressLocked()
	r.advanceLocked()
}

func (r *Room) advanceLocked() {
	r.questionEpoch++
	next := r.room.CurrentQuestionIndex + 1
	if next >= len(r.quiz.Questions) {
		r.room.CurrentQuestionIndex = next
		r.finishLocked()
		return
	}
	r.emitQuestionLocked(next)
}

func (r *Room) finishLocked() {
	if r.summary != nil {
		return
	}
	r.stopDeadlineLocked()
	r.transitionLocked(domain.RoomFinished)
	end := r.now()
	r.room.EndTime = &end

	entries, ok := r.scores.Drain(r.room.ID)
	if !ok {
		entries = nil
	}
	// Ledger slots hold the authoritative answers; copy them onto the
	// participant records so the terminal room snapshot is complete.
	for _, e := range entries {
		if p := r.findLocked(e.ParticipantID); p != nil {
			p.Answers = append([]domain.Answer(nil), e.Answers...)
			r.mirrorEntryLocked(p, e)
		}
	}
	summary := aggregateResult(r.snapshotLocked(), len(r.quiz.Questions), entries, end)
	r.summary = &summary

	r.broadcastLocked(domain.Event{Type: domain.EventRoomEnded, RoomID: r.room.ID, Payload: summary})
	go r.onFinish(summary)
}

func (r *Room) transitionLocked(to domain.RoomStatus) {
	if !domain.CanTransition(r.room.Status, to) {
		// The callers all validate first; a miss here is a programming error
		// worth surfacing in logs rather than a silent corruption.
		log.Printf("illegal room transition %s -> %s for room %s", r.room.Status, to, r.room.ID)
		return
	}
	r.room.Status = to
}

func (r *Room) stopDeadlineLocked() {
	if r.deadline != nil {
		r.deadline.Stop()
		r.deadline = nil
	}
}

// clampTimeTaken prefers the client-reported duration, falling back to the
// server-side elapsed time, and clamps the result to [0, limit].
func clampTimeTaken(reportedMs int64, started time.Time, limit time.Duration, now func() time.Time) time.Duration {
	taken := time.Duration(reportedMs) * time.Millisecond
	if reportedMs <= 0 {
		taken = now().Sub(started)
	}
	if taken < 0 {
		taken = 0
	}
	if taken > limit {
		taken = limit
	}
	return taken
}

func (r *Room) mirrorEntryLocked(p *domain.Participant, entry LedgerEntry) {
	p.CurrentScore = entry.Score
	p.CorrectAnswers = entry.CorrectAnswers
	p.CurrentStreak = entry.CurrentStreak
}

func (r *Room) allReadyLocked() bool {
	for i := range r.room.Participants {
		p := &r.room.Participants[i]
		if p.Active && !p.Ready {
			return false
		}
	}
	return true
}

// allAnsweredLocked is true iff every active participant holds exactly one
// answer for the current index, per the ledger slots. Inactive participants
// never stall a round.
func (r *Room) allAnsweredLocked() bool {
	index := r.room.CurrentQuestionIndex
	for i := range r.room.Participants {
		p := &r.room.Participants[i]
		if p.Active && !r.scores.HasAnswer(r.room.ID, p.ID, index) {
			return false
		}
	}
	return true
}

func (r *Room) activeCountLocked() int {
	n := 0
	for i := range r.room.Participants {
		if r.room.Participants[i].Active {
			n++
		}
	}
	return n
}

func (r *Room) findLocked(participantID string) *domain.Participant {
	for i := range r.room.Participants {
		if r.room.Participants[i].ID == participantID {
			return &r.room.Participants[i]
		}
	}
	return nil
}

func (r *Room) findByUserLocked(userID string) *domain.Participant {
	for i := range r.room.Participants {
		if r.room.Participants[i].UserID == userID {
			return &r.room.Participants[i]
		}
	}
	return nil
}

func (r *Room) snapshotLocked() domain.BattleRoom {
	snap := r.room
	snap.Participants = make([]domain.Participant, len(r.room.Participants))
	copy(snap.Participants, r.room.Participants)
	for i := range snap.Participants {
		answers := make([]domain.Answer, len(snap.Participants[i].Answers))
		copy(answers, snap.Participants[i].Answers)
		snap.Participants[i].Answers = answers
	}
	return snap
}

func (r *Room) broadcastProgressLocked() {
	entries, ok := r.scores.Snapshot(r.room.ID)
	if !ok {
		return
	}
	byID := make(map[string]*domain.Participant, len(r.room.Participants))
	for i := range r.room.Participants {
		byID[r.room.Participants[i].ID] = &r.room.Participants[i]
	}

	snapshot := domain.ScoreSnapshot{
		RoomID:        r.room.ID,
		QuestionIndex: r.room.CurrentQuestionIndex,
		Entries:       make([]domain.ScoreEntry, 0, len(entries)),
	}
	for _, e := range entries {
		p := byID[e.ParticipantID]
		if p == nil {
			continue
		}
		snapshot.Entries = append(snapshot.Entries, domain.ScoreEntry{
			ParticipantID:  e.ParticipantID,
			UserID:         p.UserID,
			Username:       p.Username,
			Score:          e.Score,
			CorrectAnswers: e.CorrectAnswers,
			TotalAnswers:   e.TotalAnswers,
			CurrentStreak:  e.CurrentStreak,
			Active:         p.Active,
		})
	}
	r.broadcastLocked(domain.Event{Type: domain.EventRoomProgress, RoomID: r.room.ID, Payload: snapshot})
}

func (r *Room) broadcastLocked(event domain.Event) {
	for sub := range r.subscribers {
		deliver(sub.ch, event)
	}
}

func (r *Room) sendToLocked(participantID string, event domain.Event) {
	for sub := range r.subscribers {
		if sub.participantID == participantID {
			deliver(sub.ch, event)
		}
	}
}

// deliver drops the oldest pending event instead of blocking so a slow
// client cannot stall the room loop.
func deliver(ch chan domain.Event, event domain.Event) {
	select {
	case ch <- event:
	default:
		select {
		case <-ch:
		default:
		}
		ch <- event
	}
}

func isCorrectOption(q domain.Question, optionID string) bool {
	for _, opt := range q.Options {
		if opt.ID == optionID {
			return opt.Correct
		}
	}
	return false
}
