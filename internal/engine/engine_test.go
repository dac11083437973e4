package engine

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/neartask/veritas/internal/analyzer"
	"github.com/neartask/veritas/internal/anomaly"
	"github.com/neartask/veritas/internal/reputation"
	"github.com/neartask/veritas/internal/review"
	"github.com/neartask/veritas/internal/store"
)

func newTestEngine() *Engine {
	return New(store.NewMemory(), analyzer.NewHeuristic(), anomaly.NewDetector(), nil, nil, slog.Default())
}

func initBoth(t *testing.T, e *Engine, client, provider string) {
	t.Helper()
	ctx := context.Background()
	if _, err := e.InitializeReputation(ctx, client); err != nil {
		t.Fatalf("init client: %v", err)
	}
	if _, err := e.InitializeReputation(ctx, provider); err != nil {
		t.Fatalf("init provider: %v", err)
	}
}

func testReview(client, provider string, rating int, comment string) *review.Review {
	now := time.Now().UTC()
	return &review.Review{
		ID:         uuid.New(),
		BookingID:  uuid.New(),
		ClientID:   client,
		ProviderID: provider,
		ServiceID:  "svc-1",
		Rating:     rating,
		Comment:    comment,
		Status:     review.StatusPending,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
}

func TestInitializeReputation_SecondCallRejected(t *testing.T) {
	e := newTestEngine()
	ctx := context.Background()

	s, err := e.InitializeReputation(ctx, "provider-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if s.TrustScore != 50.0 {
		t.Errorf("expected trust score 50.0, got %f", s.TrustScore)
	}
	if s.TrustLevel != reputation.LevelNew {
		t.Errorf("expected level new, got %q", s.TrustLevel)
	}

	if _, err := e.InitializeReputation(ctx, "provider-1"); !errors.Is(err, reputation.ErrAlreadyExists) {
		t.Errorf("expected ErrAlreadyExists, got %v", err)
	}
}

func TestProcessReview_HappyPath(t *testing.T) {
	e := newTestEngine()
	ctx := context.Background()
	initBoth(t, e, "client-1", "provider-1")

	in := testReview("client-1", "provider-1", 5, "Excellent service! Very professional and timely.")
	out, err := e.ProcessReview(ctx, in)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if out.QualityScore == nil {
		t.Fatal("expected quality score to be set")
	}
	if *out.QualityScore <= 0 || *out.QualityScore > 1 {
		t.Errorf("quality score %f outside (0,1]", *out.QualityScore)
	}
	if out.Status == review.StatusHidden {
		t.Errorf("well-formed positive review should not be hidden")
	}

	// Identity fields pass through untouched.
	if out.ID != in.ID {
		t.Errorf("id changed: %s != %s", out.ID, in.ID)
	}
	if out.Comment != in.Comment {
		t.Errorf("comment changed: %q != %q", out.Comment, in.Comment)
	}
	if out.Rating != 5 {
		t.Errorf("rating changed: %d", out.Rating)
	}

	// Provider reputation moved up and gained an average rating.
	rec, err := e.GetReputationScore(ctx, "provider-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.TrustScore <= 50.0 {
		t.Errorf("expected trust score above base after positive review, got %f", rec.TrustScore)
	}
	if rec.AverageRating == nil || *rec.AverageRating != 5.0 {
		t.Errorf("expected average rating 5.0, got %v", rec.AverageRating)
	}
	if rec.ReviewCount != 1 {
		t.Errorf("expected review count 1, got %d", rec.ReviewCount)
	}
}

func TestProcessReview_NegativeReview(t *testing.T) {
	e := newTestEngine()
	ctx := context.Background()
	initBoth(t, e, "client-1", "provider-1")

	out, err := e.ProcessReview(ctx, testReview("client-1", "provider-1", 1, "Terrible service, very disappointed."))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out.Rating != 1 {
		t.Errorf("rating changed: %d", out.Rating)
	}
	if out.QualityScore == nil {
		t.Fatal("expected quality score to be set")
	}

	rec, _ := e.GetReputationScore(ctx, "provider-1")
	if rec.TrustScore >= 50.0 {
		t.Errorf("expected trust score below base after genuine negative review, got %f", rec.TrustScore)
	}
}

func TestProcessReview_MissingReputations(t *testing.T) {
	e := newTestEngine()
	ctx := context.Background()

	// Neither party initialized.
	_, err := e.ProcessReview(ctx, testReview("client-x", "provider-x", 4, "Decent work overall."))
	if !errors.Is(err, reputation.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}

	// Client initialized, provider missing.
	if _, err := e.InitializeReputation(ctx, "client-x"); err != nil {
		t.Fatalf("init failed: %v", err)
	}
	_, err = e.ProcessReview(ctx, testReview("client-x", "provider-x", 4, "Decent work overall."))
	if !errors.Is(err, reputation.ErrNotFound) {
		t.Errorf("expected ErrNotFound for missing provider, got %v", err)
	}
}

func TestProcessReview_InvalidReview(t *testing.T) {
	e := newTestEngine()
	ctx := context.Background()
	initBoth(t, e, "client-1", "provider-1")

	_, err := e.ProcessReview(ctx, testReview("client-1", "provider-1", 0, "no rating here"))
	if !errors.Is(err, reputation.ErrAnalysisFailed) {
		t.Errorf("expected ErrAnalysisFailed for bad rating, got %v", err)
	}

	_, err = e.ProcessReview(ctx, testReview("client-1", "provider-1", 4, "   "))
	if !errors.Is(err, reputation.ErrAnalysisFailed) {
		t.Errorf("expected ErrAnalysisFailed for empty comment, got %v", err)
	}
}

func TestProcessReview_MismatchDoesNotErrorButScoresLow(t *testing.T) {
	e := newTestEngine()
	ctx := context.Background()
	initBoth(t, e, "client-1", "provider-1")

	out, err := e.ProcessReview(ctx, testReview("client-1", "provider-1", 5, "bad terrible awful disappointing"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out.QualityScore == nil || *out.QualityScore >= 0.8 {
		t.Errorf("mismatched review should score below 0.8, got %v", out.QualityScore)
	}

	rec, _ := e.GetReputationScore(ctx, "provider-1")
	if !hasFlag(rec.DetectionFlags, reputation.FlagSentimentMismatch) {
		t.Errorf("expected sentiment mismatch flag on provider record, got %v", rec.DetectionFlags)
	}
}

func TestProcessReview_LowQualityIsHidden(t *testing.T) {
	e := newTestEngine()
	ctx := context.Background()
	initBoth(t, e, "client-1", "provider-1")

	// Strongly mismatched review falls under the display threshold.
	out, err := e.ProcessReview(ctx, testReview("client-1", "provider-1", 5, "bad terrible awful disappointing"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out.Status != review.StatusHidden {
		t.Errorf("expected hidden status for quality %f, got %q", *out.QualityScore, out.Status)
	}
}

func TestProcessReview_HistoryAndScoreMoveTogether(t *testing.T) {
	e := newTestEngine()
	ctx := context.Background()
	initBoth(t, e, "client-1", "provider-1")

	_, trail, err := e.GetReputationScoreWithHistory(ctx, "provider-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(trail) != 0 {
		t.Fatalf("fresh history should be empty, got %d entries", len(trail))
	}

	if _, err := e.ProcessReview(ctx, testReview("client-1", "provider-1", 5, "Excellent service! Very professional and timely.")); err != nil {
		t.Fatalf("process failed: %v", err)
	}

	rec, trail, err := e.GetReputationScoreWithHistory(ctx, "provider-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(trail) != 1 {
		t.Fatalf("expected one history entry, got %d", len(trail))
	}
	if trail[0].TrustScore != rec.TrustScore {
		t.Errorf("history entry score %f does not match live score %f", trail[0].TrustScore, rec.TrustScore)
	}
	if trail[0].Reason != "review processed" {
		t.Errorf("unexpected history reason %q", trail[0].Reason)
	}
}

func TestProcessReview_AverageRatingAccumulates(t *testing.T) {
	e := newTestEngine()
	ctx := context.Background()
	initBoth(t, e, "client-1", "provider-1")

	reviews := []struct {
		rating  int
		comment string
	}{
		{5, "Excellent service, very professional and punctual."},
		{1, "Terrible service, very disappointed with the result."},
		{3, "The work was finished on the agreed date."},
	}
	for _, r := range reviews {
		if _, err := e.ProcessReview(ctx, testReview("client-1", "provider-1", r.rating, r.comment)); err != nil {
			t.Fatalf("process failed: %v", err)
		}
	}

	rec, _ := e.GetReputationScore(ctx, "provider-1")
	if rec.ReviewCount != 3 {
		t.Errorf("expected review count 3, got %d", rec.ReviewCount)
	}
	if rec.AverageRating == nil || *rec.AverageRating != 3.0 {
		t.Errorf("expected average rating 3.0, got %v", rec.AverageRating)
	}
}

func TestCompleteBooking(t *testing.T) {
	e := newTestEngine()
	ctx := context.Background()
	initBoth(t, e, "client-1", "provider-1")

	s, err := e.CompleteBooking(ctx, "provider-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if s.CompletedBookings != 1 {
		t.Errorf("expected 1 completed booking, got %d", s.CompletedBookings)
	}
	if s.TrustScore != 50.5 {
		t.Errorf("expected trust bump to 50.5, got %f", s.TrustScore)
	}

	_, trail, _ := e.GetReputationScoreWithHistory(ctx, "provider-1")
	if len(trail) != 1 || trail[0].Reason != "booking completed" {
		t.Errorf("expected booking history entry, got %+v", trail)
	}

	if _, err := e.CompleteBooking(ctx, "provider-unknown"); !errors.Is(err, reputation.ErrNotFound) {
		t.Errorf("expected ErrNotFound for unknown provider, got %v", err)
	}
}

func TestSetCanisterReferences(t *testing.T) {
	e := newTestEngine()

	msg, err := e.SetCanisterReferences(References{
		Auth:    "auth-canister-1",
		Booking: "booking-canister-1",
		Review:  "review-canister-1",
		Service: "service-canister-1",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if msg == "" {
		t.Error("expected confirmation message")
	}

	got := e.CanisterReferences()
	if got.Booking != "booking-canister-1" {
		t.Errorf("expected stored booking reference, got %q", got.Booking)
	}
}

func TestSetCanisterReferences_Invalid(t *testing.T) {
	e := newTestEngine()

	tests := []struct {
		name string
		refs References
	}{
		{"empty auth", References{Auth: "", Booking: "b", Review: "r", Service: "s"}},
		{"whitespace in booking", References{Auth: "a", Booking: "has space", Review: "r", Service: "s"}},
		{"empty service", References{Auth: "a", Booking: "b", Review: "r", Service: ""}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := e.SetCanisterReferences(tt.refs)
			if !errors.Is(err, reputation.ErrReferenceInvalid) {
				t.Errorf("expected ErrReferenceInvalid, got %v", err)
			}
		})
	}
}

func TestProcessReview_ConcurrentSameProvider(t *testing.T) {
	e := newTestEngine()
	ctx := context.Background()
	if _, err := e.InitializeReputation(ctx, "provider-1"); err != nil {
		t.Fatalf("init failed: %v", err)
	}

	const n = 20
	for i := 0; i < n; i++ {
		if _, err := e.InitializeReputation(ctx, clientID(i)); err != nil {
			t.Fatalf("init client %d failed: %v", i, err)
		}
	}

	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			rev := testReview(clientID(i), "provider-1", 4, "Solid reliable work, finished on schedule without issues.")
			if _, err := e.ProcessReview(ctx, rev); err != nil {
				t.Errorf("concurrent process failed: %v", err)
			}
		}(i)
	}
	wg.Wait()

	rec, _ := e.GetReputationScore(ctx, "provider-1")
	if rec.ReviewCount != n {
		t.Errorf("lost updates: expected review count %d, got %d", n, rec.ReviewCount)
	}
	_, trail, _ := e.GetReputationScoreWithHistory(ctx, "provider-1")
	if len(trail) != n {
		t.Errorf("expected %d history entries, got %d", n, len(trail))
	}
}

func TestHandleBookingCompleted(t *testing.T) {
	e := newTestEngine()
	ctx := context.Background()
	initBoth(t, e, "client-1", "provider-1")

	e.HandleBookingCompleted("market.booking.completed",
		[]byte(`{"booking_id":"b1","provider_id":"provider-1","client_id":"client-1"}`))

	rec, err := e.GetReputationScore(ctx, "provider-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.CompletedBookings != 1 {
		t.Errorf("expected booking counter incremented, got %d", rec.CompletedBookings)
	}

	// Malformed payloads are dropped, not fatal.
	e.HandleBookingCompleted("market.booking.completed", []byte("not json"))
	e.HandleBookingCompleted("market.booking.completed", []byte(`{"booking_id":"b2"}`))
}

func TestHandleReviewCreated(t *testing.T) {
	e := newTestEngine()
	ctx := context.Background()
	initBoth(t, e, "client-1", "provider-1")

	payload := `{"id":"` + uuid.NewString() + `","client_id":"client-1","provider_id":"provider-1","rating":5,"comment":"Excellent service, very professional and timely."}`
	e.HandleReviewCreated("market.review.created", []byte(payload))

	rec, _ := e.GetReputationScore(ctx, "provider-1")
	if rec.ReviewCount != 1 {
		t.Errorf("expected review processed via event, count = %d", rec.ReviewCount)
	}
}

func TestProcessReview_BombingWindowUsesReviewTimestamps(t *testing.T) {
	e := newTestEngine()
	ctx := context.Background()
	if _, err := e.InitializeReputation(ctx, "provider-1"); err != nil {
		t.Fatalf("init failed: %v", err)
	}
	for i := 0; i < 3; i++ {
		if _, err := e.InitializeReputation(ctx, clientID(i)); err != nil {
			t.Fatalf("init client %d failed: %v", i, err)
		}
	}

	// Three genuine complaints months apart must not cluster into a
	// bombing window just because they are ingested back to back.
	dates := []time.Time{
		time.Date(2026, 1, 5, 10, 0, 0, 0, time.UTC),
		time.Date(2026, 2, 10, 14, 0, 0, 0, time.UTC),
		time.Date(2026, 3, 20, 9, 0, 0, 0, time.UTC),
	}
	for i, d := range dates {
		rev := testReview(clientID(i), "provider-1", 1, "Terrible experience, the work was sloppy and unfinished.")
		rev.CreatedAt = d
		if _, err := e.ProcessReview(ctx, rev); err != nil {
			t.Fatalf("process review %d failed: %v", i, err)
		}
	}

	rec, err := e.GetReputationScore(ctx, "provider-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if hasFlag(rec.DetectionFlags, reputation.FlagReviewBombing) {
		t.Errorf("reviews months apart flagged as bombing: %v", rec.DetectionFlags)
	}

	// The same three complaints within minutes still trip the window.
	if _, err := e.InitializeReputation(ctx, "provider-2"); err != nil {
		t.Fatalf("init failed: %v", err)
	}
	base := time.Date(2026, 4, 1, 12, 0, 0, 0, time.UTC)
	for i := 0; i < 3; i++ {
		rev := testReview(clientID(i), "provider-2", 1, "Terrible experience, the work was sloppy and unfinished.")
		rev.CreatedAt = base.Add(time.Duration(i) * 10 * time.Minute)
		if _, err := e.ProcessReview(ctx, rev); err != nil {
			t.Fatalf("process review %d failed: %v", i, err)
		}
	}
	rec, _ = e.GetReputationScore(ctx, "provider-2")
	if !hasFlag(rec.DetectionFlags, reputation.FlagReviewBombing) {
		t.Errorf("clustered low ratings not flagged: %v", rec.DetectionFlags)
	}
}

func hasFlag(flags []reputation.Flag, want reputation.Flag) bool {
	for _, f := range flags {
		if f == want {
			return true
		}
	}
	return false
}

func clientID(i int) string {
	return "client-" + string(rune('a'+i))
}
