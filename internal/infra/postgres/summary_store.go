package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"quiz-battle-service/internal/domain"
)

// SummaryStore persists immutable battle summaries as JSONB, keyed by room.
// The ON CONFLICT DO NOTHING keeps the first summary authoritative even if a
// finish hook ever fires twice.
type SummaryStore struct {
	pool *pgxpool.Pool
}

func NewSummaryStore(pool *pgxpool.Pool) *SummaryStore {
	return &SummaryStore{pool: pool}
}

func (s *SummaryStore) Save(ctx context.Context, summary domain.BattleSummary) error {
	data, err := json.Marshal(summary)
	if err != nil {
		return fmt.Errorf("marshal summary: %w", err)
	}
	_, err = s.pool.Exec(ctx,
		`INSERT INTO battle_summaries (room_id, quiz_id, winner_id, data, finished_at)
		 VALUES ($1, $2, $3, $4, $5)
		 ON CONFLICT (room_id) DO NOTHING`,
		summary.RoomID, summary.QuizID, summary.WinnerID, data, summary.FinishedAt)
	if err != nil {
		return fmt.Errorf("insert summary: %w", err)
	}
	return nil
}

// Load returns a previously stored summary.
func (s *SummaryStore) Load(ctx context.Context, roomID string) (domain.BattleSummary, error) {
	var raw []byte
	err := s.pool.QueryRow(ctx, `SELECT data FROM battle_summaries WHERE room_id=$1`, roomID).Scan(&raw)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.BattleSummary{}, domain.ErrRoomNotFound
	}
	if err != nil {
		return domain.BattleSummary{}, fmt.Errorf("load summary: %w", err)
	}
	var summary domain.BattleSummary
	if err := json.Unmarshal(raw, &summary); err != nil {
		return domain.BattleSummary{}, fmt.Errorf("unmarshal summary: %w", err)
	}
	return summary, nil
}
