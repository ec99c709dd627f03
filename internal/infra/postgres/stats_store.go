package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v4/pgxpool"
)

// StatsStore upserts post-game score deltas into player_stats.
type StatsStore struct {
	pool *pgxpool.Pool
}

func NewStatsStore(pool *pgxpool.Pool) *StatsStore {
	return &StatsStore{pool: pool}
}

// ApplyScoreDelta adds one game's score to the user's durable totals.
func (s *StatsStore) ApplyScoreDelta(ctx context.Context, userID string, delta int) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO player_stats (user_id, total_score, games_played, updated_at)
		VALUES ($1, $2, 1, now())
		ON CONFLICT (user_id) DO UPDATE SET
			total_score = player_stats.total_score + EXCLUDED.total_score,
			games_played = player_stats.games_played + 1,
			updated_at = now()`,
		userID, delta)
	if err != nil {
		return fmt.Errorf("apply score delta: %w", err)
	}
	return nil
}
