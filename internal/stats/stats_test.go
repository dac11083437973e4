package stats

import (
	"context"
	"testing"
	"time"

	"github.com/neartask/veritas/internal/reputation"
	"github.com/neartask/veritas/internal/store"
)

func TestReputation_EmptyFleet(t *testing.T) {
	a := NewAggregator(store.NewMemory())

	got, err := a.Reputation(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.TotalUsers != 0 {
		t.Errorf("expected 0 users, got %d", got.TotalUsers)
	}
	if got.AverageTrustScore != 0.0 {
		t.Errorf("expected 0.0 average, got %f", got.AverageTrustScore)
	}
	// Every trust level must be present even when empty.
	if len(got.TrustLevelDistribution) != len(reputation.AllLevels) {
		t.Fatalf("expected %d level buckets, got %d", len(reputation.AllLevels), len(got.TrustLevelDistribution))
	}
	for _, lvl := range reputation.AllLevels {
		count, ok := got.TrustLevelDistribution[lvl]
		if !ok {
			t.Errorf("level %q missing from distribution", lvl)
		}
		if count != 0 {
			t.Errorf("expected level %q at 0, got %d", lvl, count)
		}
	}
}

func TestReputation_FreshUsers(t *testing.T) {
	m := store.NewMemory()
	ctx := context.Background()
	now := time.Now().UTC()

	for _, id := range []string{"client-1", "provider-1"} {
		if _, err := m.InitializeReputation(ctx, id, now); err != nil {
			t.Fatalf("init %s failed: %v", id, err)
		}
	}

	got, err := NewAggregator(m).Reputation(ctx)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.TotalUsers != 2 {
		t.Errorf("expected 2 users, got %d", got.TotalUsers)
	}
	if got.AverageTrustScore != 50.0 {
		t.Errorf("expected average exactly 50.0, got %f", got.AverageTrustScore)
	}
	if got.TrustLevelDistribution[reputation.LevelNew] != 2 {
		t.Errorf("expected 2 users in new bucket, got %d", got.TrustLevelDistribution[reputation.LevelNew])
	}
}

func TestReputation_MixedLevels(t *testing.T) {
	m := store.NewMemory()
	ctx := context.Background()
	now := time.Now().UTC()

	users := map[string]float64{
		"u-low":  20.0,
		"u-new":  50.0,
		"u-med":  60.0,
		"u-high": 75.0,
		"u-very": 90.0,
	}
	for id, score := range users {
		if _, err := m.InitializeReputation(ctx, id, now); err != nil {
			t.Fatalf("init %s failed: %v", id, err)
		}
		update := reputation.Update{
			TrustScore: score,
			TrustLevel: reputation.LevelForScore(score),
		}
		if _, err := m.RecordScoreChange(ctx, id, update, "review processed", now); err != nil {
			t.Fatalf("score change %s failed: %v", id, err)
		}
	}

	got, err := NewAggregator(m).Reputation(ctx)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.TotalUsers != 5 {
		t.Errorf("expected 5 users, got %d", got.TotalUsers)
	}
	if got.AverageTrustScore != 59.0 {
		t.Errorf("expected average 59.0, got %f", got.AverageTrustScore)
	}
	for _, lvl := range reputation.AllLevels {
		if got.TrustLevelDistribution[lvl] != 1 {
			t.Errorf("expected exactly one user at level %q, got %d", lvl, got.TrustLevelDistribution[lvl])
		}
	}
}
