package app

import (
	"sync"
	"time"

	"quiz-battle-service/internal/domain"
)

// LedgerEntry is one participant's live tally inside an active battle,
// including the answers that produced it.
type LedgerEntry struct {
	ParticipantID  string
	Score          int
	CorrectAnswers int
	TotalAnswers   int
	CurrentStreak  int
	LastAnswerTime time.Time
	Answers        []domain.Answer
}

type ledgerSlot struct {
	mu    sync.Mutex
	entry LedgerEntry
}

type ledger struct {
	mu    sync.RWMutex
	slots map[string]*ledgerSlot
	order []string // participant IDs in join order, fixed at initialize
}

// Scoreboard is the in-memory score arena, keyed by room then participant.
// Answers and tallies live in per-participant slots with their own locks, so
// concurrent submissions from different participants in the same room never
// contend; room lifecycle operations (Initialize, Drain) take the arena lock
// instead.
type Scoreboard struct {
	mu      sync.RWMutex
	ledgers map[string]*ledger
	now     func() time.Time
}

func NewScoreboard() *Scoreboard {
	return &Scoreboard{
		ledgers: make(map[string]*ledger),
		now:     time.Now,
	}
}

// Initialize zeroes a fresh ledger for the room. Called exactly once when the
// room transitions to IN_PROGRESS; a pre-existing ledger is replaced.
func (b *Scoreboard) Initialize(roomID string, participantIDs []string) {
	l := &ledger{
		slots: make(map[string]*ledgerSlot, len(participantIDs)),
		order: append([]string(nil), participantIDs...),
	}
	for _, id := range participantIDs {
		l.slots[id] = &ledgerSlot{entry: LedgerEntry{ParticipantID: id}}
	}

	b.mu.Lock()
	b.ledgers[roomID] = l
	b.mu.Unlock()
}

// RecordSubmission applies one answer atomically under the participant's slot
// lock: the duplicate check, the answer append and the tally update are a
// single step, so two racing submissions for the same question index can
// never both land. A correct answer adds its earned points and extends the
// streak; an incorrect one resets the streak to zero.
func (b *Scoreboard) RecordSubmission(roomID, participantID string, answer domain.Answer) (LedgerEntry, error) {
	b.mu.RLock()
	l, ok := b.ledgers[roomID]
	b.mu.RUnlock()
	if !ok {
		return LedgerEntry{}, domain.ErrBattleNotActive
	}

	l.mu.RLock()
	slot, ok := l.slots[participantID]
	l.mu.RUnlock()
	if !ok {
		return LedgerEntry{}, domain.ErrParticipantNotFound
	}

	slot.mu.Lock()
	defer slot.mu.Unlock()

	for _, a := range slot.entry.Answers {
		if a.QuestionIndex == answer.QuestionIndex {
			return LedgerEntry{}, domain.ErrDuplicateAnswer
		}
	}

	slot.entry.Answers = append(slot.entry.Answers, answer)
	slot.entry.TotalAnswers++
	if answer.IsCorrect {
		slot.entry.Score += answer.EarnedPoints
		slot.entry.CorrectAnswers++
		slot.entry.CurrentStreak++
	} else {
		slot.entry.CurrentStreak = 0
	}
	slot.entry.LastAnswerTime = b.now()
	return cloneEntry(slot.entry), nil
}

// HasAnswer reports whether the participant already answered the question.
func (b *Scoreboard) HasAnswer(roomID, participantID string, questionIndex int) bool {
	slot, ok := b.slot(roomID, participantID)
	if !ok {
		return false
	}

	slot.mu.Lock()
	defer slot.mu.Unlock()
	for _, a := range slot.entry.Answers {
		if a.QuestionIndex == questionIndex {
			return true
		}
	}
	return false
}

// Snapshot returns a defensive copy of the room's ledger in join order.
// Callers never observe a ledger mid-mutation.
func (b *Scoreboard) Snapshot(roomID string) ([]LedgerEntry, bool) {
	b.mu.RLock()
	l, ok := b.ledgers[roomID]
	b.mu.RUnlock()
	if !ok {
		return nil, false
	}

	l.mu.RLock()
	defer l.mu.RUnlock()

	entries := make([]LedgerEntry, 0, len(l.order))
	for _, id := range l.order {
		slot := l.slots[id]
		slot.mu.Lock()
		entries = append(entries, cloneEntry(slot.entry))
		slot.mu.Unlock()
	}
	return entries, true
}

// Drain atomically removes the room's ledger and returns its final state.
// A second drain of the same room is a no-op returning false; the idempotent
// finish path relies on that.
func (b *Scoreboard) Drain(roomID string) ([]LedgerEntry, bool) {
	b.mu.Lock()
	l, ok := b.ledgers[roomID]
	if ok {
		delete(b.ledgers, roomID)
	}
	b.mu.Unlock()
	if !ok {
		return nil, false
	}

	entries := make([]LedgerEntry, 0, len(l.order))
	for _, id := range l.order {
		entries = append(entries, l.slots[id].entry)
	}
	return entries, true
}

func (b *Scoreboard) slot(roomID, participantID string) (*ledgerSlot, bool) {
	b.mu.RLock()
	l, ok := b.ledgers[roomID]
	b.mu.RUnlock()
	if !ok {
		return nil, false
	}

	l.mu.RLock()
	slot, ok := l.slots[participantID]
	l.mu.RUnlock()
	return slot, ok
}

func cloneEntry(e LedgerEntry) LedgerEntry {
	e.Answers = append([]domain.Answer(nil), e.Answers...)
	return e
}

// TimeBonus is the stepped bonus for answering with time to spare:
// at least 70% of the limit remaining earns +3, 50% earns +2, 30% earns +1.
func TimeBonus(remaining, limit time.Duration) int {
	if limit <= 0 || remaining <= 0 {
		return 0
	}
	r := float64(remaining) / float64(limit)
	switch {
	case r >= 0.7:
		return 3
	case r >= 0.5:
		return 2
	case r >= 0.3:
		return 1
	default:
		return 0
	}
}
