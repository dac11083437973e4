package engine

import (
	"context"
	"encoding/json"

	"github.com/neartask/veritas/internal/events"
	"github.com/neartask/veritas/internal/review"
)

// HandleReviewCreated is the NATS handler for market.review.created.
func (e *Engine) HandleReviewCreated(subject string, data []byte) {
	ctx := context.Background()

	var rev review.Review
	if err := json.Unmarshal(data, &rev); err != nil {
		e.logger.Error("failed to parse review event", "error", err)
		return
	}

	if _, err := e.ProcessReview(ctx, &rev); err != nil {
		e.logger.Error("review processing failed",
			"review_id", rev.ID,
			"provider", rev.ProviderID,
			"error", err,
		)
	}
}

// HandleBookingCompleted is the NATS handler for market.booking.completed.
func (e *Engine) HandleBookingCompleted(subject string, data []byte) {
	ctx := context.Background()

	var evt events.BookingCompletedEvent
	if err := json.Unmarshal(data, &evt); err != nil {
		e.logger.Error("failed to parse booking event", "error", err)
		return
	}
	if evt.ProviderID == "" {
		e.logger.Warn("booking event missing provider_id", "booking_id", evt.BookingID)
		return
	}

	if _, err := e.CompleteBooking(ctx, evt.ProviderID); err != nil {
		e.logger.Error("booking completion failed",
			"booking_id", evt.BookingID,
			"provider", evt.ProviderID,
			"error", err,
		)
	}
}
