package redis

import (
	"context"

	"github.com/redis/go-redis/v9"
)

// StatsStore persists post-game score deltas in Redis. Each user keeps a
// running total and a games-played counter.
type StatsStore struct {
	client *redis.Client
}

func NewStatsStore(client *redis.Client) *StatsStore {
	return &StatsStore{client: client}
}

// ApplyScoreDelta adds one game's score to the user's totals.
func (s *StatsStore) ApplyScoreDelta(ctx context.Context, userID string, delta int) error {
	pipe := s.client.Pipeline()
	pipe.IncrBy(ctx, s.scoreKey(userID), int64(delta))
	pipe.Incr(ctx, s.gamesKey(userID))
	_, err := pipe.Exec(ctx)
	return err
}

func (s *StatsStore) scoreKey(userID string) string {
	return "stats:user:" + userID + ":score"
}

func (s *StatsStore) gamesKey(userID string) string {
	return "stats:user:" + userID + ":games"
}
