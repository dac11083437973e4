// Package events connects veritas to the marketplace NATS bus: reviews and
// booking completions arrive here, reputation outcomes are published back.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"
)

// Subjects consumed from the marketplace services.
const (
	SubjectReviewCreated    = "market.review.created"
	SubjectBookingCompleted = "market.booking.completed"
)

// Subjects published by veritas.
const (
	SubjectReviewProcessed   = "veritas.review.processed"
	SubjectAnomalyFlagged    = "veritas.anomaly.flagged"
	SubjectReputationUpdated = "veritas.reputation.updated"
	SubjectRegistered        = "market.agent.veritas.registered"
)

// BookingCompletedEvent is the payload on market.booking.completed.
type BookingCompletedEvent struct {
	BookingID   string `json:"booking_id"`
	ProviderID  string `json:"provider_id"`
	ClientID    string `json:"client_id"`
	ServiceID   string `json:"service_id"`
	CompletedAt string `json:"completed_at"`
}

// AnomalyFlaggedEvent is the payload on veritas.anomaly.flagged.
type AnomalyFlaggedEvent struct {
	ReviewID   string  `json:"review_id"`
	ProviderID string  `json:"provider_id"`
	Flag       string  `json:"flag"`
	Quality    float64 `json:"quality_score"`
}

type Client struct {
	conn   *nats.Conn
	subs   []*nats.Subscription
	logger *slog.Logger
}

func NewClient(ctx context.Context, url, token string, logger *slog.Logger) (*Client, error) {
	opts := []nats.Option{
		nats.RetryOnFailedConnect(true),
		nats.MaxReconnects(60),
		nats.ReconnectWait(2 * time.Second),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				logger.Warn("nats disconnected", "error", err)
			}
		}),
		nats.ReconnectHandler(func(_ *nats.Conn) {
			logger.Info("nats reconnected")
		}),
	}
	if token != "" {
		opts = append(opts, nats.Token(token))
	}

	nc, err := nats.Connect(url, opts...)
	if err != nil {
		return nil, fmt.Errorf("nats connect: %w", err)
	}

	return &Client{conn: nc, logger: logger}, nil
}

func (c *Client) Publish(subject string, data any) error {
	payload, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}
	return c.conn.Publish(subject, payload)
}

func (c *Client) Subscribe(subject string, handler func(subject string, data []byte)) error {
	sub, err := c.conn.Subscribe(subject, func(msg *nats.Msg) {
		handler(msg.Subject, msg.Data)
	})
	if err != nil {
		return fmt.Errorf("subscribe %s: %w", subject, err)
	}
	c.subs = append(c.subs, sub)
	c.logger.Info("subscribed", "subject", subject)
	return nil
}

func (c *Client) Close() {
	for _, sub := range c.subs {
		_ = sub.Unsubscribe()
	}
	c.conn.Close()
}
