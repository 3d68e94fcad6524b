package redis

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"quiz-battle-service/internal/app"
	"quiz-battle-service/internal/domain"
)

// SessionRegistry maps transport session IDs to participants in Redis so a
// disconnect event carrying only a session ID can be traced back to its
// participant. Entries expire with the TTL (bounded by the longest possible
// battle) and the per-room index lets teardown purge everything at once.
type SessionRegistry struct {
	client *redis.Client
	ttl    time.Duration
}

func NewSessionRegistry(client *redis.Client, ttl time.Duration) *SessionRegistry {
	return &SessionRegistry{client: client, ttl: ttl}
}

func (r *SessionRegistry) Bind(ctx context.Context, sessionID, roomID, participantID string) error {
	pipe := r.client.Pipeline()
	pipe.Set(ctx, r.sessionKey(sessionID), roomID+"|"+participantID, r.ttl)
	pipe.SAdd(ctx, r.roomKey(roomID), sessionID)
	pipe.Expire(ctx, r.roomKey(roomID), r.ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("bind session: %w", err)
	}
	return nil
}

func (r *SessionRegistry) Resolve(ctx context.Context, sessionID string) (app.SessionBinding, error) {
	raw, err := r.client.Get(ctx, r.sessionKey(sessionID)).Result()
	if err == redis.Nil {
		return app.SessionBinding{}, domain.ErrSessionNotFound
	}
	if err != nil {
		return app.SessionBinding{}, fmt.Errorf("resolve session: %w", err)
	}
	roomID, participantID, ok := strings.Cut(raw, "|")
	if !ok {
		return app.SessionBinding{}, domain.ErrSessionNotFound
	}
	return app.SessionBinding{RoomID: roomID, ParticipantID: participantID}, nil
}

func (r *SessionRegistry) Unbind(ctx context.Context, sessionID string) error {
	raw, err := r.client.Get(ctx, r.sessionKey(sessionID)).Result()
	if err == redis.Nil {
		return nil
	}
	if err != nil {
		return fmt.Errorf("unbind session: %w", err)
	}

	pipe := r.client.Pipeline()
	pipe.Del(ctx, r.sessionKey(sessionID))
	if roomID, _, ok := strings.Cut(raw, "|"); ok {
		pipe.SRem(ctx, r.roomKey(roomID), sessionID)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("unbind session: %w", err)
	}
	return nil
}

func (r *SessionRegistry) PurgeRoom(ctx context.Context, roomID string) error {
	sessionIDs, err := r.client.SMembers(ctx, r.roomKey(roomID)).Result()
	if err != nil && err != redis.Nil {
		return fmt.Errorf("purge room sessions: %w", err)
	}

	pipe := r.client.Pipeline()
	for _, sessionID := range sessionIDs {
		pipe.Del(ctx, r.sessionKey(sessionID))
	}
	pipe.Del(ctx, r.roomKey(roomID))
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("purge room sessions: %w", err)
	}
	return nil
}

func (r *SessionRegistry) sessionKey(sessionID string) string {
	return "battle:session:" + sessionID
}

func (r *SessionRegistry) roomKey(roomID string) string {
	return "battle:room:" + roomID + ":sessions"
}
