package analyzer

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/neartask/veritas/internal/anthropic"
	"github.com/neartask/veritas/internal/reputation"
	"github.com/neartask/veritas/internal/review"
)

const sentimentSystemPrompt = `You are a review-integrity analyst for a local-services marketplace.
Given one customer review, judge how authentic and useful it is.

Consider:
- Does the comment's sentiment match the star rating?
- Does the comment contain concrete detail about the service, or only generic filler?
- Does it read like a fabricated review (template phrasing, no specifics, extreme rating)?

Respond with ONLY a JSON object, no markdown fences:
{
  "quality_score": 0.0-1.0,
  "sentiment": -1.0-1.0
}

quality_score: 1.0 means detailed, consistent, clearly genuine; below 0.3 means not worth displaying.
sentiment: the comment's polarity, -1.0 strongly negative to 1.0 strongly positive.`

const sentimentUserPrompt = `Rating: %d/5
Comment:
---
%s
---`

// LLM analyzes reviews through the Anthropic Messages API. It satisfies the
// same Analyzer contract as Heuristic, so the engine does not care which
// backend is wired in.
type LLM struct {
	client *anthropic.Client
	logger *slog.Logger
}

func NewLLM(client *anthropic.Client, logger *slog.Logger) *LLM {
	return &LLM{client: client, logger: logger}
}

type llmVerdict struct {
	QualityScore float64 `json:"quality_score"`
	Sentiment    float64 `json:"sentiment"`
}

func (l *LLM) Analyze(ctx context.Context, rev *review.Review) (Result, error) {
	if rev.Rating < 1 || rev.Rating > 5 {
		return Result{}, fmt.Errorf("%w: rating %d out of range", reputation.ErrAnalysisFailed, rev.Rating)
	}
	if strings.TrimSpace(rev.Comment) == "" {
		return Result{}, fmt.Errorf("%w: empty comment", reputation.ErrAnalysisFailed)
	}

	prompt := fmt.Sprintf(sentimentUserPrompt, rev.Rating, rev.Comment)
	raw, err := l.client.Complete(ctx, sentimentSystemPrompt, []anthropic.Message{
		{Role: "user", Content: prompt},
	}, 256)
	if err != nil {
		return Result{}, fmt.Errorf("%w: llm call: %v", reputation.ErrAnalysisFailed, err)
	}

	var v llmVerdict
	if err := json.Unmarshal([]byte(raw), &v); err != nil {
		l.logger.Error("failed to parse analyzer verdict", "error", err, "raw", raw)
		return Result{}, fmt.Errorf("%w: parse verdict: %v", reputation.ErrAnalysisFailed, err)
	}

	l.logger.Debug("llm analysis complete",
		"review_id", rev.ID,
		"quality", v.QualityScore,
		"sentiment", v.Sentiment,
	)

	return Result{QualityScore: clamp01(v.QualityScore), Sentiment: v.Sentiment}, nil
}
