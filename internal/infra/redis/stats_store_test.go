package redis

import (
	"context"
	"testing"
)

func TestStatsStoreIncrementsTotalsAndGames(t *testing.T) {
	mr, client := newTestClient(t)
	store := NewStatsStore(client)
	ctx := context.Background()

	if err := store.ApplyScoreDelta(ctx, "u1", 120); err != nil {
		t.Fatalf("apply delta: %v", err)
	}
	if err := store.ApplyScoreDelta(ctx, "u1", 80); err != nil {
		t.Fatalf("apply delta: %v", err)
	}

	score, err := mr.Get("stats:user:u1:score")
	if err != nil {
		t.Fatalf("read score key: %v", err)
	}
	if score != "200" {
		t.Fatalf("score = %s, want 200", score)
	}
	games, err := mr.Get("stats:user:u1:games")
	if err != nil {
		t.Fatalf("read games key: %v", err)
	}
	if games != "2" {
		t.Fatalf("games = %s, want 2", games)
	}
}
