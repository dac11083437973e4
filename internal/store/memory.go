package store

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/neartask/veritas/internal/reputation"
)

// Memory is the in-process Store. It backs unit tests and local runs
// without a database.
type Memory struct {
	mu      sync.RWMutex
	scores  map[string]*reputation.Score
	history map[string][]reputation.HistoryEntry
}

func NewMemory() *Memory {
	return &Memory{
		scores:  make(map[string]*reputation.Score),
		history: make(map[string][]reputation.HistoryEntry),
	}
}

func (m *Memory) InitializeReputation(_ context.Context, userID string, now time.Time) (*reputation.Score, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.scores[userID]; ok {
		return nil, reputation.ErrAlreadyExists
	}

	s := reputation.New(userID, now)
	m.scores[userID] = s
	m.history[userID] = []reputation.HistoryEntry{}
	return copyScore(s), nil
}

func (m *Memory) GetReputationScore(_ context.Context, userID string) (*reputation.Score, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	s, ok := m.scores[userID]
	if !ok {
		return nil, reputation.ErrNotFound
	}
	return copyScore(s), nil
}

func (m *Memory) GetReputationScoreWithHistory(_ context.Context, userID string) (*reputation.Score, []reputation.HistoryEntry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	s, ok := m.scores[userID]
	if !ok {
		return nil, nil, reputation.ErrNotFound
	}

	trail := make([]reputation.HistoryEntry, len(m.history[userID]))
	copy(trail, m.history[userID])
	return copyScore(s), trail, nil
}

func (m *Memory) RecordScoreChange(_ context.Context, userID string, update reputation.Update, reason string, now time.Time) (*reputation.Score, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.scores[userID]
	if !ok {
		return nil, reputation.ErrNotFound
	}

	s.TrustScore = update.TrustScore
	s.TrustLevel = update.TrustLevel
	s.ReviewCount = update.ReviewCount
	s.AverageRating = update.AverageRating
	s.CompletedBookings += update.CompletedBookingsDelta
	s.DetectionFlags = append(s.DetectionFlags, update.NewFlags...)
	s.UpdatedAt = now

	m.history[userID] = append(m.history[userID], reputation.HistoryEntry{
		ID:         uuid.New(),
		UserID:     userID,
		TrustScore: update.TrustScore,
		TrustLevel: update.TrustLevel,
		Reason:     reason,
		CreatedAt:  now,
	})

	return copyScore(s), nil
}

func (m *Memory) ListReputationScores(_ context.Context) ([]*reputation.Score, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]*reputation.Score, 0, len(m.scores))
	for _, s := range m.scores {
		out = append(out, copyScore(s))
	}
	return out, nil
}

func copyScore(s *reputation.Score) *reputation.Score {
	c := *s
	c.DetectionFlags = make([]reputation.Flag, len(s.DetectionFlags))
	copy(c.DetectionFlags, s.DetectionFlags)
	if s.AverageRating != nil {
		avg := *s.AverageRating
		c.AverageRating = &avg
	}
	return &c
}
