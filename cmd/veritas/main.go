package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/neartask/veritas/internal/alerts"
	"github.com/neartask/veritas/internal/analyzer"
	"github.com/neartask/veritas/internal/anomaly"
	"github.com/neartask/veritas/internal/anthropic"
	"github.com/neartask/veritas/internal/api"
	"github.com/neartask/veritas/internal/backfill"
	"github.com/neartask/veritas/internal/config"
	"github.com/neartask/veritas/internal/engine"
	"github.com/neartask/veritas/internal/events"
	"github.com/neartask/veritas/internal/stats"
	"github.com/neartask/veritas/internal/store"
)

func main() {
	backfillDir := flag.String("backfill", "", "replay review exports from this directory instead of serving")
	backfillFile := flag.String("backfill-file", "", "replay a single export file")
	dryRun := flag.Bool("dry-run", false, "backfill: parse exports without writing anything")
	since := flag.String("since", "", "backfill: only replay reviews on or after this date (YYYY-MM-DD)")
	until := flag.String("until", "", "backfill: only replay reviews on or before this date (YYYY-MM-DD)")
	flag.Parse()

	_ = godotenv.Load()
	cfg := config.Load()
	setupLogging(cfg.LogLevel)

	slog.Info("veritas starting", "port", cfg.Port)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Database — fall back to in-memory when unset (local development).
	var st store.Store
	if cfg.DatabaseURL != "" {
		db, err := store.NewPostgres(ctx, cfg.DatabaseURL)
		if err != nil {
			slog.Error("failed to connect to database", "error", err)
			os.Exit(1)
		}
		defer db.Close()
		st = db
		slog.Info("database connected")
	} else {
		st = store.NewMemory()
		slog.Warn("DATABASE_URL not set — using in-memory store, scores are lost on restart")
	}

	// Review analyzer — heuristic by default, Claude when configured.
	var an analyzer.Analyzer
	if cfg.Analyzer == "llm" {
		if cfg.AnthropicAPIKey == "" {
			slog.Error("ANTHROPIC_API_KEY is required for the llm analyzer")
			os.Exit(1)
		}
		llm := anthropic.NewClient(cfg.AnthropicAPIKey, cfg.AnthropicModel)
		an = analyzer.NewLLM(llm, slog.Default())
		slog.Info("llm analyzer ready", "model", cfg.AnthropicModel)
	} else {
		an = analyzer.NewHeuristic()
		slog.Info("heuristic analyzer ready")
	}

	// Slack poster (optional — veritas works without Slack, just no anomaly alerts)
	var alertPoster *alerts.Poster
	if cfg.SlackBotToken != "" && cfg.SlackChannel != "" {
		alertPoster = alerts.NewPoster(cfg.SlackBotToken, cfg.SlackChannel, slog.Default())
		slog.Info("slack poster ready", "channel", cfg.SlackChannel)
	} else {
		slog.Warn("slack not configured — running without anomaly alerts")
	}

	// Backfill mode replays exports and exits; no NATS, no HTTP.
	if *backfillDir != "" || *backfillFile != "" {
		eng := engine.New(st, an, anomaly.NewDetector(), nil, alertPoster, slog.Default())
		runBackfill(ctx, eng, backfill.Config{
			ExportDir:  *backfillDir,
			SingleFile: *backfillFile,
			DryRun:     *dryRun,
			Since:      parseDate(*since),
			Until:      parseDate(*until),
			BatchSize:  100,
		})
		return
	}

	// NATS
	eventsClient, err := events.NewClient(ctx, cfg.NatsURL, cfg.NatsToken, slog.Default())
	if err != nil {
		slog.Error("failed to connect to NATS", "error", err)
		os.Exit(1)
	}
	defer eventsClient.Close()
	slog.Info("NATS connected", "url", cfg.NatsURL)

	// Engine — the main pipeline
	eng := engine.New(st, an, anomaly.NewDetector(), eventsClient, alertPoster, slog.Default())

	// Subscribe to marketplace events
	if err := eventsClient.Subscribe(events.SubjectReviewCreated, eng.HandleReviewCreated); err != nil {
		slog.Error("failed to subscribe to review events", "error", err)
		os.Exit(1)
	}
	if err := eventsClient.Subscribe(events.SubjectBookingCompleted, eng.HandleBookingCompleted); err != nil {
		slog.Error("failed to subscribe to booking events", "error", err)
		os.Exit(1)
	}

	// HTTP API
	srv := api.NewServer(cfg.Port, cfg.APIToken, eng, stats.NewAggregator(st))
	go func() {
		if err := srv.Start(); err != nil {
			slog.Error("HTTP server error", "error", err)
		}
	}()

	// Announce registration
	if err := eventsClient.Publish(events.SubjectRegistered, map[string]any{
		"timestamp": time.Now().UTC().Format(time.RFC3339),
		"port":      cfg.Port,
	}); err != nil {
		slog.Warn("failed to publish registration", "error", err)
	}

	slog.Info("veritas ready", "port", cfg.Port)

	// Graceful shutdown
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh
	slog.Info("shutting down")
	cancel()
	slog.Info("veritas stopped")
}

func runBackfill(ctx context.Context, eng *engine.Engine, cfg backfill.Config) {
	runner := backfill.NewRunner(cfg, eng, slog.Default())
	if err := runner.Run(ctx); err != nil {
		slog.Error("backfill failed", "error", err)
		os.Exit(1)
	}
}

func parseDate(s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		slog.Error("invalid date, expected YYYY-MM-DD", "value", s)
		os.Exit(1)
	}
	return t
}

func setupLogging(level string) {
	var lvl slog.Level
	switch level {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	handler := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: lvl})
	slog.SetDefault(slog.New(handler))
}
