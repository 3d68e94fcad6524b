package memory

import (
	"context"
	"sync"
	"time"

	"quiz-battle-service/internal/app"
	"quiz-battle-service/internal/domain"
)

// SessionRegistry is an in-memory implementation of app.SessionRegistry with
// TTL-bounded entries, mirroring the Redis-backed variant for tests and
// single-node runs.
type SessionRegistry struct {
	ttl   time.Duration
	clock func() time.Time

	mu       sync.RWMutex
	bindings map[string]binding
	byRoom   map[string]map[string]struct{}
}

type binding struct {
	app.SessionBinding
	expiresAt time.Time
}

func NewSessionRegistry(ttl time.Duration) *SessionRegistry {
	return &SessionRegistry{
		ttl:      ttl,
		clock:    time.Now,
		bindings: make(map[string]binding),
		byRoom:   make(map[string]map[string]struct{}),
	}
}

func (r *SessionRegistry) Bind(_ context.Context, sessionID, roomID, participantID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.bindings[sessionID] = binding{
		SessionBinding: app.SessionBinding{RoomID: roomID, ParticipantID: participantID},
		expiresAt:      r.clock().Add(r.ttl),
	}
	if r.byRoom[roomID] == nil {
		r.byRoom[roomID] = make(map[string]struct{})
	}
	r.byRoom[roomID][sessionID] = struct{}{}
	return nil
}

func (r *SessionRegistry) Resolve(_ context.Context, sessionID string) (app.SessionBinding, error) {
	r.mu.RLock()
	b, ok := r.bindings[sessionID]
	r.mu.RUnlock()
	if !ok || (r.ttl > 0 && r.clock().After(b.expiresAt)) {
		return app.SessionBinding{}, domain.ErrSessionNotFound
	}
	return b.SessionBinding, nil
}

func (r *SessionRegistry) Unbind(_ context.Context, sessionID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.unbindLocked(sessionID)
	return nil
}

func (r *SessionRegistry) PurgeRoom(_ context.Context, roomID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for sessionID := range r.byRoom[roomID] {
		r.unbindLocked(sessionID)
	}
	delete(r.byRoom, roomID)
	return nil
}

func (r *SessionRegistry) unbindLocked(sessionID string) {
	b, ok := r.bindings[sessionID]
	if !ok {
		return
	}
	delete(r.bindings, sessionID)
	if sessions := r.byRoom[b.RoomID]; sessions != nil {
		delete(sessions, sessionID)
		if len(sessions) == 0 {
			delete(r.byRoom, b.RoomID)
		}
	}
}
