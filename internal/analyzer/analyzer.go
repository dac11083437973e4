package analyzer

import (
	"context"
	"fmt"
	"strings"

	"github.com/neartask/veritas/internal/reputation"
	"github.com/neartask/veritas/internal/review"
)

// Result is the outcome of analyzing one review.
type Result struct {
	// QualityScore estimates the review's authenticity in [0, 1].
	QualityScore float64
	// Sentiment is the extracted comment polarity in [-1, 1].
	Sentiment float64
}

// Analyzer scores a review for authenticity. Implementations must be safe
// for concurrent use. The heuristic implementation is the default; the LLM
// backend satisfies the same contract.
type Analyzer interface {
	Analyze(ctx context.Context, rev *review.Review) (Result, error)
}

// Quality blend weights. Consistency between rating and sentiment carries
// more signal than comment length.
const (
	consistencyWeight = 0.6
	substanceWeight   = 0.4
)

// Heuristic is the deterministic lexicon-based analyzer.
type Heuristic struct{}

func NewHeuristic() *Heuristic {
	return &Heuristic{}
}

// Analyze computes a quality score from two signals:
//
//   - consistency: 1 - |polarity - expected(rating)| / 2, so a glowing
//     comment on a 1-star rating (or the reverse) scores near zero
//   - substance: word count scaled into [0.3, 1], so a one-word comment
//     dampens quality without disqualifying the review
//
// quality = 0.6 x consistency + 0.4 x substance.
func (h *Heuristic) Analyze(_ context.Context, rev *review.Review) (Result, error) {
	if rev.Rating < 1 || rev.Rating > 5 {
		return Result{}, fmt.Errorf("%w: rating %d out of range", reputation.ErrAnalysisFailed, rev.Rating)
	}
	if strings.TrimSpace(rev.Comment) == "" {
		return Result{}, fmt.Errorf("%w: empty comment", reputation.ErrAnalysisFailed)
	}

	sentiment := polarity(rev.Comment)
	consistency := 1.0 - abs(sentiment-expectedPolarity(rev.Rating))/2.0

	quality := consistencyWeight*consistency + substanceWeight*substance(rev.WordCount())
	return Result{QualityScore: clamp01(quality), Sentiment: sentiment}, nil
}

// substance maps comment length onto [0.3, 1]. Ten words or so of concrete
// detail reach full weight; a single word floors near 0.37.
func substance(words int) float64 {
	s := 0.3 + 0.07*float64(words)
	if s > 1.0 {
		return 1.0
	}
	return s
}

func clamp01(v float64) float64 {
	if v < 0.0 {
		return 0.0
	}
	if v > 1.0 {
		return 1.0
	}
	return v
}

func abs(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}
