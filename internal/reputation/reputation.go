package reputation

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

// BaseScore is the trust score assigned on first initialization.
// Scores are bounded to [MinScore, MaxScore] thereafter.
const (
	BaseScore = 50.0
	MinScore  = 0.0
	MaxScore  = 100.0
)

var (
	ErrAlreadyExists    = errors.New("reputation already exists for this user")
	ErrNotFound         = errors.New("no reputation score found for this user")
	ErrAnalysisFailed   = errors.New("review analysis failed")
	ErrReferenceInvalid = errors.New("invalid canister reference")
)

// Flag tags an anomaly pattern observed in a user's reviews.
type Flag string

const (
	FlagSentimentMismatch     Flag = "sentiment_mismatch"
	FlagReviewBombing         Flag = "review_bombing"
	FlagManipulationSuspected Flag = "manipulation_suspected"
)

// Score is the durable per-user reputation record.
type Score struct {
	UserID            string    `json:"user_id"`
	TrustScore        float64   `json:"trust_score"`
	TrustLevel        Level     `json:"trust_level"`
	CompletedBookings int       `json:"completed_bookings"`
	ReviewCount       int       `json:"review_count"`
	AverageRating     *float64  `json:"average_rating,omitempty"`
	DetectionFlags    []Flag    `json:"detection_flags"`
	CreatedAt         time.Time `json:"created_at"`
	UpdatedAt         time.Time `json:"updated_at"`
}

// HistoryEntry is one snapshot in a user's append-only score trail.
type HistoryEntry struct {
	ID         uuid.UUID `json:"id"`
	UserID     string    `json:"user_id"`
	TrustScore float64   `json:"trust_score"`
	TrustLevel Level     `json:"trust_level"`
	Reason     string    `json:"reason"`
	CreatedAt  time.Time `json:"created_at"`
}

// Update carries the outcome of processing one review or booking event,
// applied to the live score and history as a single atomic unit.
type Update struct {
	TrustScore             float64
	TrustLevel             Level
	ReviewCount            int
	AverageRating          *float64
	NewFlags               []Flag
	CompletedBookingsDelta int
}

// New returns a freshly initialized record for a user.
func New(userID string, now time.Time) *Score {
	return &Score{
		UserID:         userID,
		TrustScore:     BaseScore,
		TrustLevel:     LevelForScore(BaseScore),
		DetectionFlags: []Flag{},
		CreatedAt:      now,
		UpdatedAt:      now,
	}
}
