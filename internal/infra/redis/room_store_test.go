package redis

import (
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"

	"quiz-battle-service/internal/app"
	"quiz-battle-service/internal/domain"
)

func TestRoomStoreMarksLiveness(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("run miniredis: %v", err)
	}
	defer mr.Close()

	store := NewRoomStore(newClient(mr), time.Minute)
	room := app.NewRoom("quiz-1", sampleQuiz(), 2,
		domain.UserRef{UserID: "u1", Username: "Alice"},
		app.RoomConfig{}, app.NewScoreboard(), nil)

	store.Put(room)
	if !mr.Exists("battle:room:" + room.ID()) {
		t.Fatalf("expected liveness key after put")
	}
	got, ok := store.Get(room.ID())
	if !ok || got != room {
		t.Fatalf("expected the same room back, ok=%v", ok)
	}
	if rooms := store.List(); len(rooms) != 1 {
		t.Fatalf("expected 1 room, got %d", len(rooms))
	}

	store.Delete(room.ID())
	if mr.Exists("battle:room:" + room.ID()) {
		t.Fatalf("expected liveness key removed after delete")
	}
	if _, ok := store.Get(room.ID()); ok {
		t.Fatalf("expected room removed")
	}
}
