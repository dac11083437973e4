// Package store owns the durable reputation records: the live per-user
// score and its append-only history trail. Reviews themselves are never
// persisted here; the review service is their source of truth.
package store

import (
	"context"
	"time"

	"github.com/neartask/veritas/internal/reputation"
)

// Store is the ReputationStore contract. Memory backs tests and local runs;
// Postgres backs production. A score update and its history entry are always
// applied as one atomic unit: a reader never sees one without the other.
type Store interface {
	// InitializeReputation creates the record for a user. A second call for
	// the same user fails with reputation.ErrAlreadyExists; initialization
	// is rejected, not idempotent.
	InitializeReputation(ctx context.Context, userID string, now time.Time) (*reputation.Score, error)

	// GetReputationScore returns the live record, or reputation.ErrNotFound.
	GetReputationScore(ctx context.Context, userID string) (*reputation.Score, error)

	// GetReputationScoreWithHistory returns the live record and its ordered
	// history trail. The trail is empty for a freshly initialized user.
	GetReputationScoreWithHistory(ctx context.Context, userID string) (*reputation.Score, []reputation.HistoryEntry, error)

	// RecordScoreChange applies an update to the live record and appends one
	// history entry, atomically.
	RecordScoreChange(ctx context.Context, userID string, update reputation.Update, reason string, now time.Time) (*reputation.Score, error)

	// ListReputationScores returns every live record, for fleet statistics.
	ListReputationScores(ctx context.Context) ([]*reputation.Score, error)
}
