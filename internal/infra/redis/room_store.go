package redis

import (
	"context"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"quiz-battle-service/internal/app"
)

// RoomStore is a Redis-aware implementation of app.RoomRepository.
// Notes:
//   - Rooms are live runtime objects (timers, subscriber channels), so the
//     store keeps a local in-process map and uses Redis only to mark room
//     liveness with a TTL.
//   - For true distribution you'd pair this with routing that pins a room to
//     one instance; the liveness markers give other instances visibility.
type RoomStore struct {
	client *redis.Client
	ttl    time.Duration
	mu     sync.RWMutex
	rooms  map[string]*app.Room
}

func NewRoomStore(client *redis.Client, ttl time.Duration) *RoomStore {
	return &RoomStore{
		client: client,
		ttl:    ttl,
		rooms:  make(map[string]*app.Room),
	}
}

func (s *RoomStore) Put(room *app.Room) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rooms[room.ID()] = room
	// best-effort liveness marker
	_ = s.client.Set(context.Background(), s.key(room.ID()), "1", s.ttl).Err()
}

func (s *RoomStore) Get(roomID string) (*app.Room, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	room, ok := s.rooms[roomID]
	return room, ok
}

func (s *RoomStore) Delete(roomID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.rooms, roomID)
	_ = s.client.Del(context.Background(), s.key(roomID)).Err()
}

func (s *RoomStore) List() []*app.Room {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*app.Room, 0, len(s.rooms))
	for _, room := range s.rooms {
		out = append(out, room)
	}
	return out
}

func (s *RoomStore) key(roomID string) string {
	return "battle:room:" + roomID
}
