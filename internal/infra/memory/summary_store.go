package memory

import (
	"context"
	"sync"

	"quiz-battle-service/internal/domain"
)

// SummaryStore keeps finished battle summaries in memory. The first write
// for a room wins; summaries are immutable once stored.
type SummaryStore struct {
	mu        sync.RWMutex
	summaries map[string]domain.BattleSummary
}

func NewSummaryStore() *SummaryStore {
	return &SummaryStore{
		summaries: make(map[string]domain.BattleSummary),
	}
}

func (s *SummaryStore) Save(_ context.Context, summary domain.BattleSummary) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.summaries[summary.RoomID]; ok {
		return nil
	}
	s.summaries[summary.RoomID] = summary
	return nil
}

// Load returns the stored summary for a room.
func (s *SummaryStore) Load(_ context.Context, roomID string) (domain.BattleSummary, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	summary, ok := s.summaries[roomID]
	if !ok {
		return domain.BattleSummary{}, domain.ErrRoomNotFound
	}
	return summary, nil
}

// Get returns the stored summary for a room.
func (s *SummaryStore) Get(roomID string) (domain.BattleSummary, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	summary, ok := s.summaries[roomID]
	return summary, ok
}
