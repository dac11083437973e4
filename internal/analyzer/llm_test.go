package analyzer

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/neartask/veritas/internal/anthropic"
	"github.com/neartask/veritas/internal/reputation"
)

func fakeAnthropicServer(t *testing.T, reply string) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		json.NewEncoder(w).Encode(map[string]any{
			"content":     []map[string]any{{"type": "text", "text": reply}},
			"stop_reason": "end_turn",
		})
	}))
}

func TestLLMAnalyze_ParsesVerdict(t *testing.T) {
	server := fakeAnthropicServer(t, `{"quality_score": 0.85, "sentiment": 0.9}`)
	defer server.Close()

	client := anthropic.NewClient("test-key", "test-model")
	client.SetTestTransport(server.URL)
	l := NewLLM(client, slog.Default())

	res, err := l.Analyze(context.Background(), rev(5, "Excellent service, very professional."))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.QualityScore != 0.85 {
		t.Errorf("expected quality 0.85, got %f", res.QualityScore)
	}
	if res.Sentiment != 0.9 {
		t.Errorf("expected sentiment 0.9, got %f", res.Sentiment)
	}
}

func TestLLMAnalyze_ClampsQuality(t *testing.T) {
	server := fakeAnthropicServer(t, `{"quality_score": 1.7, "sentiment": 1.0}`)
	defer server.Close()

	client := anthropic.NewClient("test-key", "test-model")
	client.SetTestTransport(server.URL)
	l := NewLLM(client, slog.Default())

	res, err := l.Analyze(context.Background(), rev(5, "Great work."))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.QualityScore != 1.0 {
		t.Errorf("expected quality clamped to 1.0, got %f", res.QualityScore)
	}
}

func TestLLMAnalyze_GarbageResponse(t *testing.T) {
	server := fakeAnthropicServer(t, "not json at all")
	defer server.Close()

	client := anthropic.NewClient("test-key", "test-model")
	client.SetTestTransport(server.URL)
	l := NewLLM(client, slog.Default())

	_, err := l.Analyze(context.Background(), rev(4, "Fine job overall."))
	if !errors.Is(err, reputation.ErrAnalysisFailed) {
		t.Errorf("expected ErrAnalysisFailed, got %v", err)
	}
}

func TestLLMAnalyze_InvalidReview(t *testing.T) {
	client := anthropic.NewClient("test-key", "test-model")
	l := NewLLM(client, slog.Default())

	_, err := l.Analyze(context.Background(), rev(0, "no rating"))
	if !errors.Is(err, reputation.ErrAnalysisFailed) {
		t.Errorf("expected ErrAnalysisFailed, got %v", err)
	}
}
