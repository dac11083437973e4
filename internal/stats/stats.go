// Package stats computes fleet-wide reputation statistics on demand.
package stats

import (
	"context"

	"github.com/neartask/veritas/internal/reputation"
	"github.com/neartask/veritas/internal/store"
)

// Statistics is the fleet view. TrustLevelDistribution always enumerates
// every trust level, including empty buckets.
type Statistics struct {
	TotalUsers             int                      `json:"total_users"`
	AverageTrustScore      float64                  `json:"average_trust_score"`
	TrustLevelDistribution map[reputation.Level]int `json:"trust_level_distribution"`
}

// Aggregator reads the reputation store; it never mutates it.
type Aggregator struct {
	store store.Store
}

func NewAggregator(s store.Store) *Aggregator {
	return &Aggregator{store: s}
}

// Reputation aggregates over every live record. An empty fleet yields zeros
// rather than an error.
func (a *Aggregator) Reputation(ctx context.Context) (*Statistics, error) {
	scores, err := a.store.ListReputationScores(ctx)
	if err != nil {
		return nil, err
	}

	dist := make(map[reputation.Level]int, len(reputation.AllLevels))
	for _, lvl := range reputation.AllLevels {
		dist[lvl] = 0
	}

	var sum float64
	for _, s := range scores {
		sum += s.TrustScore
		dist[s.TrustLevel]++
	}

	avg := 0.0
	if len(scores) > 0 {
		avg = sum / float64(len(scores))
	}

	return &Statistics{
		TotalUsers:             len(scores),
		AverageTrustScore:      avg,
		TrustLevelDistribution: dist,
	}, nil
}
