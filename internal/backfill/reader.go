// Package backfill replays historical review exports through the
// reputation engine, so a freshly deployed instance can rebuild trust
// scores from the marketplace's existing review data.
package backfill

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/neartask/veritas/internal/review"
)

// exportLine is a single line of a marketplace review export (JSONL).
type exportLine struct {
	ID         string `json:"id"`
	BookingID  string `json:"booking_id"`
	ClientID   string `json:"client_id"`
	ProviderID string `json:"provider_id"`
	ServiceID  string `json:"service_id"`
	Rating     int    `json:"rating"`
	Comment    string `json:"comment"`
	CreatedAt  string `json:"created_at"`
}

// ReadExportFile parses a JSONL review export into reviews ordered as
// they appear in the file. Malformed lines are skipped; lines with an
// unusable ID or timestamp are skipped too, so a partially corrupt
// export still replays.
func ReadExportFile(path string) ([]review.Review, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open: %w", err)
	}
	defer f.Close()

	var reviews []review.Review

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 1024*1024), 10*1024*1024) // 10MB line buffer
	for scanner.Scan() {
		var line exportLine
		if err := json.Unmarshal(scanner.Bytes(), &line); err != nil {
			continue // skip malformed lines
		}

		rev, ok := line.toReview()
		if !ok {
			continue
		}
		reviews = append(reviews, rev)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scan: %w", err)
	}

	return reviews, nil
}

func (l exportLine) toReview() (review.Review, bool) {
	id, err := uuid.Parse(l.ID)
	if err != nil {
		return review.Review{}, false
	}

	rev := review.Review{
		ID:         id,
		ClientID:   l.ClientID,
		ProviderID: l.ProviderID,
		ServiceID:  l.ServiceID,
		Rating:     l.Rating,
		Comment:    l.Comment,
	}

	if l.BookingID != "" {
		bookingID, err := uuid.Parse(l.BookingID)
		if err != nil {
			return review.Review{}, false
		}
		rev.BookingID = bookingID
	}

	if l.CreatedAt != "" {
		ts, err := time.Parse(time.RFC3339Nano, l.CreatedAt)
		if err != nil {
			return review.Review{}, false
		}
		rev.CreatedAt = ts
	}

	return rev, true
}
