package memory

import (
	"sync"

	"quiz-battle-service/internal/app"
)

// RoomStore is an in-memory implementation of app.RoomRepository.
type RoomStore struct {
	mu    sync.RWMutex
	rooms map[string]*app.Room
}

func NewRoomStore() *RoomStore {
	return &RoomStore{
		rooms: make(map[string]*app.Room),
	}
}

func (s *RoomStore) Put(room *app.Room) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rooms[room.ID()] = room
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
