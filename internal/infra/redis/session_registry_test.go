package redis

import (
	"context"
	"errors"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"

	"quiz-battle-service/internal/domain"
)

func TestSessionRegistryBindResolveUnbind(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("run miniredis: %v", err)
	}
	defer mr.Close()

	ctx := context.Background()
	registry := NewSessionRegistry(newClient(mr), time.Minute)

	if err := registry.Bind(ctx, "sess-1", "room-1", "p1"); err != nil {
		t.Fatalf("bind: %v", err)
	}
	if !mr.Exists("battle:session:sess-1") {
		t.Fatalf("expected session key to be set")
	}
	if !mr.Exists("battle:room:room-1:sessions") {
		t.Fatalf("expected room index key to be set")
	}

	binding, err := registry.Resolve(ctx, "sess-1")
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if binding.RoomID != "room-1" || binding.ParticipantID != "p1" {
		t.Fatalf("unexpected binding: %+v", binding)
	}

	if err := registry.Unbind(ctx, "sess-1"); err != nil {
		t.Fatalf("unbind: %v", err)
	}
	if mr.Exists("battle:session:sess-1") {
		t.Fatalf("expected session key removed")
	}
	if _, err := registry.Resolve(ctx, "sess-1"); !errors.Is(err, domain.ErrSessionNotFound) {
		t.Fatalf("expected session not found, got %v", err)
	}
}

func TestSessionRegistryPurgeRoom(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("run miniredis: %v", err)
	}
	defer mr.Close()

	ctx := context.Background()
	registry := NewSessionRegistry(newClient(mr), time.Minute)

	registry.Bind(ctx, "sess-1", "room-1", "p1")
	registry.Bind(ctx, "sess-2", "room-1", "p2")
	registry.Bind(ctx, "sess-3", "room-2", "p3")

	if err := registry.PurgeRoom(ctx, "room-1"); err != nil {
		t.Fatalf("purge: %v", err)
	}
	if mr.Exists("battle:session:sess-1") || mr.Exists("battle:session:sess-2") {
		t.Fatalf("expected room-1 sessions removed")
	}
	if mr.Exists("battle:room:room-1:sessions") {
		t.Fatalf("expected room index removed")
	}
	if _, err := registry.Resolve(ctx, "sess-3"); err != nil {
		t.Fatalf("other room's session should survive: %v", err)
	}
}

func TestSessionRegistryExpiry(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("run miniredis: %v", err)
	}
	defer mr.Close()

	ctx := context.Background()
	registry := NewSessionRegistry(newClient(mr), time.Minute)

	registry.Bind(ctx, "sess-1", "room-1", "p1")
	mr.FastForward(2 * time.Minute)

	if _, err := registry.Resolve(ctx, "sess-1"); !errors.Is(err, domain.ErrSessionNotFound) {
		t.Fatalf("expected expired session, got %v", err)
	}
}
