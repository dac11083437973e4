package review

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Status controls whether a review is shown to marketplace users.
type Status string

const (
	StatusVisible Status = "visible"
	StatusHidden  Status = "hidden"
	StatusPending Status = "pending"
)

// Review is a marketplace review passed in by the review service.
// The engine analyzes it and returns it annotated; it never persists
// reviews itself, only their effect on reputation.
type Review struct {
	ID         uuid.UUID `json:"id"`
	BookingID  uuid.UUID `json:"booking_id"`
	ClientID   string    `json:"client_id"`
	ProviderID string    `json:"provider_id"`
	ServiceID  string    `json:"service_id"`
	Rating     int       `json:"rating"`
	Comment    string    `json:"comment"`
	Status     Status    `json:"status"`
	// QualityScore is set by the analyzer; nil only when analysis never ran.
	QualityScore *float64  `json:"quality_score,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// Validate checks the fields the engine depends on before analysis.
func (r *Review) Validate() error {
	if r.Rating < 1 || r.Rating > 5 {
		return fmt.Errorf("rating %d out of range 1-5", r.Rating)
	}
	if strings.TrimSpace(r.ClientID) == "" {
		return fmt.Errorf("client_id is required")
	}
	if strings.TrimSpace(r.ProviderID) == "" {
		return fmt.Errorf("provider_id is required")
	}
	return nil
}

// WordCount returns the number of whitespace-separated words in the comment.
func (r *Review) WordCount() int {
	return len(strings.Fields(r.Comment))
}
