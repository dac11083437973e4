// Package engine orchestrates review processing: quality analysis, anomaly
// detection, and the resulting reputation updates.
package engine

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/neartask/veritas/internal/alerts"
	"github.com/neartask/veritas/internal/analyzer"
	"github.com/neartask/veritas/internal/anomaly"
	"github.com/neartask/veritas/internal/events"
	"github.com/neartask/veritas/internal/metrics"
	"github.com/neartask/veritas/internal/reputation"
	"github.com/neartask/veritas/internal/review"
	"github.com/neartask/veritas/internal/store"
)

// hiddenThreshold is the quality score below which a processed review's
// status becomes hidden instead of visible.
const hiddenThreshold = 0.30

// Engine is the trust score engine. Calls touching the same user are
// serialized through a per-user lock; different users proceed in parallel.
type Engine struct {
	store    store.Store
	analyzer analyzer.Analyzer
	detector *anomaly.Detector
	events   *events.Client // optional
	alerts   *alerts.Poster // optional
	logger   *slog.Logger

	mu        sync.Mutex
	userLocks map[string]*sync.Mutex

	refMu sync.RWMutex
	refs  References
}

func New(s store.Store, a analyzer.Analyzer, d *anomaly.Detector, ev *events.Client, al *alerts.Poster, logger *slog.Logger) *Engine {
	return &Engine{
		store:     s,
		analyzer:  a,
		detector:  d,
		events:    ev,
		alerts:    al,
		logger:    logger,
		userLocks: make(map[string]*sync.Mutex),
	}
}

// InitializeReputation creates the reputation record for a user. A repeat
// call is rejected with reputation.ErrAlreadyExists.
func (e *Engine) InitializeReputation(ctx context.Context, userID string) (*reputation.Score, error) {
	s, err := e.store.InitializeReputation(ctx, userID, time.Now().UTC())
	if err != nil {
		return nil, err
	}
	metrics.ReputationsInitialized.Inc()
	e.logger.Info("reputation initialized", "user", userID)
	return s, nil
}

func (e *Engine) GetReputationScore(ctx context.Context, userID string) (*reputation.Score, error) {
	return e.store.GetReputationScore(ctx, userID)
}

func (e *Engine) GetReputationScoreWithHistory(ctx context.Context, userID string) (*reputation.Score, []reputation.HistoryEntry, error) {
	return e.store.GetReputationScoreWithHistory(ctx, userID)
}

// ProcessReview analyzes one review and applies its effect to the provider's
// reputation. Both the client and provider reputations must already exist;
// missing parties fail the call with reputation.ErrNotFound rather than
// auto-initializing. The returned review is a copy of the input with
// quality score and status set; the caller owns its persistence.
func (e *Engine) ProcessReview(ctx context.Context, rev *review.Review) (*review.Review, error) {
	if err := rev.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", reputation.ErrAnalysisFailed, err)
	}

	unlock := e.lockUser(rev.ProviderID)
	defer unlock()

	// The client's reputation is verified but not mutated here.
	if _, err := e.store.GetReputationScore(ctx, rev.ClientID); err != nil {
		return nil, fmt.Errorf("client reputation: %w", err)
	}
	rec, err := e.store.GetReputationScore(ctx, rev.ProviderID)
	if err != nil {
		return nil, fmt.Errorf("provider reputation: %w", err)
	}

	result, err := e.analyzer.Analyze(ctx, rev)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()

	// Window clustering runs on marketplace time: a replayed historical
	// review is inspected at its own timestamp, not at ingest time.
	observedAt := now
	if !rev.CreatedAt.IsZero() {
		observedAt = rev.CreatedAt
	}
	flags := e.detector.Inspect(rev, result.Sentiment, observedAt)

	status := review.StatusVisible
	if result.QualityScore < hiddenThreshold {
		status = review.StatusHidden
	}

	delta := reputation.ReviewDelta(rev.Rating, result.QualityScore, flags)
	newScore := reputation.ApplyDelta(rec.TrustScore, delta)

	currentAvg := 0.0
	if rec.AverageRating != nil {
		currentAvg = *rec.AverageRating
	}
	avg := reputation.RunningAverage(currentAvg, rec.ReviewCount, rev.Rating)

	update := reputation.Update{
		TrustScore:    newScore,
		TrustLevel:    reputation.LevelForScore(newScore),
		ReviewCount:   rec.ReviewCount + 1,
		AverageRating: &avg,
		NewFlags:      flags,
	}
	updated, err := e.store.RecordScoreChange(ctx, rev.ProviderID, update, "review processed", now)
	if err != nil {
		return nil, fmt.Errorf("record score change: %w", err)
	}

	e.logger.Info("review processed",
		"review_id", rev.ID,
		"provider", rev.ProviderID,
		"rating", rev.Rating,
		"quality", result.QualityScore,
		"status", status,
		"trust_score", updated.TrustScore,
		"flags", len(flags),
	)

	metrics.ReviewsProcessed.WithLabelValues(string(status)).Inc()
	metrics.QualityScore.Observe(result.QualityScore)
	for _, f := range flags {
		metrics.AnomaliesDetected.WithLabelValues(string(f)).Inc()
	}

	e.publishOutcome(rev, flags, result.QualityScore, status, updated)
	e.alertIfSuspicious(ctx, rev, flags, result.QualityScore)

	out := *rev
	quality := result.QualityScore
	out.QualityScore = &quality
	out.Status = status
	out.UpdatedAt = now
	return &out, nil
}

// CompleteBooking increments the provider's completed-booking counter and
// applies the trust bump, as one atomic score change.
func (e *Engine) CompleteBooking(ctx context.Context, providerID string) (*reputation.Score, error) {
	unlock := e.lockUser(providerID)
	defer unlock()

	rec, err := e.store.GetReputationScore(ctx, providerID)
	if err != nil {
		return nil, err
	}

	newScore := reputation.BookingCompleted(rec.TrustScore)
	update := reputation.Update{
		TrustScore:             newScore,
		TrustLevel:             reputation.LevelForScore(newScore),
		ReviewCount:            rec.ReviewCount,
		AverageRating:          rec.AverageRating,
		CompletedBookingsDelta: 1,
	}
	updated, err := e.store.RecordScoreChange(ctx, providerID, update, "booking completed", time.Now().UTC())
	if err != nil {
		return nil, fmt.Errorf("record score change: %w", err)
	}

	e.logger.Info("booking completed",
		"provider", providerID,
		"completed_bookings", updated.CompletedBookings,
		"trust_score", updated.TrustScore,
	)
	return updated, nil
}

func (e *Engine) publishOutcome(rev *review.Review, flags []reputation.Flag, quality float64, status review.Status, updated *reputation.Score) {
	if e.events == nil {
		return
	}

	if err := e.events.Publish(events.SubjectReviewProcessed, map[string]any{
		"review_id":     rev.ID.String(),
		"provider_id":   rev.ProviderID,
		"quality_score": quality,
		"status":        string(status),
	}); err != nil {
		e.logger.Error("failed to publish review processed", "error", err)
	}

	if err := e.events.Publish(events.SubjectReputationUpdated, map[string]any{
		"user_id":     updated.UserID,
		"trust_score": updated.TrustScore,
		"trust_level": string(updated.TrustLevel),
	}); err != nil {
		e.logger.Error("failed to publish reputation updated", "error", err)
	}

	for _, f := range flags {
		if err := e.events.Publish(events.SubjectAnomalyFlagged, events.AnomalyFlaggedEvent{
			ReviewID:   rev.ID.String(),
			ProviderID: rev.ProviderID,
			Flag:       string(f),
			Quality:    quality,
		}); err != nil {
			e.logger.Error("failed to publish anomaly flagged", "error", err)
		}
	}
}

func (e *Engine) alertIfSuspicious(ctx context.Context, rev *review.Review, flags []reputation.Flag, quality float64) {
	if e.alerts == nil {
		return
	}
	for _, f := range flags {
		if f == reputation.FlagReviewBombing || f == reputation.FlagManipulationSuspected {
			if _, err := e.alerts.PostAnomalyAlert(ctx, rev, flags, quality); err != nil {
				e.logger.Error("anomaly alert failed", "error", err)
			}
			return
		}
	}
}

func (e *Engine) lockUser(userID string) func() {
	e.mu.Lock()
	l, ok := e.userLocks[userID]
	if !ok {
		l = &sync.Mutex{}
		e.userLocks[userID] = l
	}
	e.mu.Unlock()

	l.Lock()
	return l.Unlock
}
