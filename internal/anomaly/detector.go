// Package anomaly classifies reviews into detection flags: rating/sentiment
// mismatch, review bombing, and manipulation patterns consistent with
// fabricated positive reviews.
package anomaly

import (
	"strings"
	"sync"
	"time"

	"github.com/neartask/veritas/internal/reputation"
	"github.com/neartask/veritas/internal/review"
)

// Clustering constants. Tests only pin down that a single 1-star review is
// capable of contributing to a bombing flag; the window shape is ours to
// choose and is documented here: three ratings of 2 or below against one
// provider inside a sliding hour trips the flag.
const (
	bombingWindow    = time.Hour
	bombingThreshold = 3
	bombingMaxRating = 2
)

// mismatchTolerance is the allowed gap between comment polarity and the
// polarity implied by the star rating before the review is flagged.
const mismatchTolerance = 1.0

// manipulationMinWords: a rating of 4+ with fewer words than this reads as
// a fabricated positive review.
const (
	manipulationMinWords  = 3
	manipulationMinRating = 4
)

type observation struct {
	rating  int
	comment string
	seenAt  time.Time
}

// Detector inspects reviews one at a time while tracking a short per-provider
// window of recent observations for clustering signals. Safe for concurrent
// use.
type Detector struct {
	mu     sync.Mutex
	recent map[string][]observation // providerID -> observations inside the window
}

func NewDetector() *Detector {
	return &Detector{recent: make(map[string][]observation)}
}

// Inspect returns the flags raised by one review, in a stable order.
// sentiment is the comment polarity in [-1, 1] produced by the analyzer.
func (d *Detector) Inspect(rev *review.Review, sentiment float64, now time.Time) []reputation.Flag {
	var flags []reputation.Flag

	expected := (float64(rev.Rating) - 3.0) / 2.0
	if gap := sentiment - expected; gap > mismatchTolerance || gap < -mismatchTolerance {
		flags = append(flags, reputation.FlagSentimentMismatch)
	}

	if d.observeBombing(rev, now) {
		flags = append(flags, reputation.FlagReviewBombing)
	}

	if d.looksManipulated(rev, now) {
		flags = append(flags, reputation.FlagManipulationSuspected)
	}

	return flags
}

// observeBombing records a low rating in the provider's window and reports
// whether the cluster threshold has been reached.
func (d *Detector) observeBombing(rev *review.Review, now time.Time) bool {
	if rev.Rating > bombingMaxRating {
		return false
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	window := d.prune(rev.ProviderID, now)
	window = append(window, observation{rating: rev.Rating, comment: normalize(rev.Comment), seenAt: now})
	d.recent[rev.ProviderID] = window

	low := 0
	for _, o := range window {
		if o.rating <= bombingMaxRating {
			low++
		}
	}
	return low >= bombingThreshold
}

// looksManipulated flags short generic praise, and high-rated comments that
// repeat text already seen for the provider inside the window.
func (d *Detector) looksManipulated(rev *review.Review, now time.Time) bool {
	if rev.Rating < manipulationMinRating {
		return false
	}
	if rev.WordCount() < manipulationMinWords {
		return true
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	window := d.prune(rev.ProviderID, now)
	norm := normalize(rev.Comment)
	duplicate := false
	for _, o := range window {
		if o.comment == norm {
			duplicate = true
			break
		}
	}
	window = append(window, observation{rating: rev.Rating, comment: norm, seenAt: now})
	d.recent[rev.ProviderID] = window
	return duplicate
}

// prune drops observations older than the window. Caller holds the lock.
func (d *Detector) prune(providerID string, now time.Time) []observation {
	cutoff := now.Add(-bombingWindow)
	window := d.recent[providerID][:0]
	for _, o := range d.recent[providerID] {
		if o.seenAt.After(cutoff) {
			window = append(window, o)
		}
	}
	return window
}

func normalize(comment string) string {
	return strings.Join(strings.Fields(strings.ToLower(comment)), " ")
}
