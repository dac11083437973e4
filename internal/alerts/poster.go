// Package alerts posts anomaly notifications to a marketplace-ops Slack
// channel. The service runs fine without it; alerting is best-effort.
package alerts

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/neartask/veritas/internal/reputation"
	"github.com/neartask/veritas/internal/review"
)

const defaultPostMessageURL = "https://slack.com/api/chat.postMessage"

type Poster struct {
	token   string
	channel string
	client  *http.Client
	logger  *slog.Logger
	apiURL  string
}

func NewPoster(token, channel string, logger *slog.Logger) *Poster {
	return &Poster{
		token:   token,
		channel: channel,
		client:  &http.Client{Timeout: 10 * time.Second},
		apiURL:  defaultPostMessageURL,
		logger:  logger,
	}
}

// SetTestTransport redirects posts to a test server.
func (p *Poster) SetTestTransport(url string) {
	p.apiURL = url
}

// PostAnomalyAlert notifies the ops channel that a review tripped detection
// flags. Returns the message timestamp on success.
func (p *Poster) PostAnomalyAlert(ctx context.Context, rev *review.Review, flags []reputation.Flag, quality float64) (string, error) {
	text := formatAnomalyMessage(rev, flags, quality)

	body, err := json.Marshal(map[string]any{
		"channel": p.channel,
		"text":    text,
		"blocks": []map[string]any{
			{
				"type": "section",
				"text": map[string]any{
					"type": "mrkdwn",
					"text": text,
				},
			},
		},
	})
	if err != nil {
		return "", fmt.Errorf("marshal slack payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.apiURL, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json; charset=utf-8")
	req.Header.Set("Authorization", "Bearer "+p.token)

	resp, err := p.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("slack post: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read response: %w", err)
	}

	var slackResp struct {
		OK    bool   `json:"ok"`
		TS    string `json:"ts"`
		Error string `json:"error,omitempty"`
	}
	if err := json.Unmarshal(respBody, &slackResp); err != nil {
		return "", fmt.Errorf("parse slack response: %w", err)
	}
	if !slackResp.OK {
		return "", fmt.Errorf("slack error: %s", slackResp.Error)
	}

	p.logger.Info("posted anomaly alert", "ts", slackResp.TS, "review_id", rev.ID, "provider", rev.ProviderID)
	return slackResp.TS, nil
}

func formatAnomalyMessage(rev *review.Review, flags []reputation.Flag, quality float64) string {
	var sb strings.Builder

	names := make([]string, len(flags))
	for i, f := range flags {
		names[i] = string(f)
	}

	fmt.Fprintf(&sb, "*Suspicious review flagged:* %s\n", strings.Join(names, ", "))
	fmt.Fprintf(&sb, "*Provider:* %s | *Rating:* %d/5 | *Quality:* %.2f\n", rev.ProviderID, rev.Rating, quality)

	comment := rev.Comment
	if len(comment) > 200 {
		comment = comment[:200] + "…"
	}
	fmt.Fprintf(&sb, "> %s", comment)

	return sb.String()
}
