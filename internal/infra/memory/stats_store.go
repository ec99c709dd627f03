package memory

import (
	"context"
	"sync"
)

// StatsStore accumulates post-game score deltas in memory. It backs the
// no-database demo mode and tests.
type StatsStore struct {
	mu     sync.RWMutex
	totals map[string]int
	games  map[string]int
}

func NewStatsStore() *StatsStore {
	return &StatsStore{
		totals: make(map[string]int),
		games:  make(map[string]int),
	}
}

// ApplyScoreDelta adds one game's score to the user's running total.
func (s *StatsStore) ApplyScoreDelta(_ context.Context, userID string, delta int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.totals[userID] += delta
	s.games[userID]++
	return nil
}

// Total returns the accumulated score for a user.
func (s *StatsStore) Total(userID string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.totals[userID]
}

// GamesPlayed returns how many deltas have been applied for a user.
func (s *StatsStore) GamesPlayed(userID string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.games[userID]
}
