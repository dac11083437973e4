package backfill

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/neartask/veritas/internal/engine"
	"github.com/neartask/veritas/internal/reputation"
	"github.com/neartask/veritas/internal/review"
)

// Config holds the backfill command configuration.
type Config struct {
	ExportDir  string
	Since      time.Time
	Until      time.Time
	DryRun     bool
	BatchSize  int
	SingleFile string // process a single export file only
}

// Runner replays exported reviews through the engine.
type Runner struct {
	cfg    Config
	engine *engine.Engine
	logger *slog.Logger
}

// NewRunner creates a backfill runner.
func NewRunner(cfg Config, eng *engine.Engine, logger *slog.Logger) *Runner {
	return &Runner{
		cfg:    cfg,
		engine: eng,
		logger: logger,
	}
}

// Run executes the replay, resuming from prior state when present.
func (r *Runner) Run(ctx context.Context) error {
	state, err := LoadState()
	if err != nil {
		return fmt.Errorf("load state: %w", err)
	}

	files, err := r.discoverFiles()
	if err != nil {
		return fmt.Errorf("discover files: %w", err)
	}

	var pending []string
	for _, path := range files {
		if !state.IsProcessed(path) {
			pending = append(pending, path)
		}
	}
	state.FilesRemaining = len(pending)

	r.logger.Info("export files discovered",
		"total", len(files),
		"pending", len(pending),
	)

	reviewsInBatch := 0

	for _, path := range pending {
		select {
		case <-ctx.Done():
			r.logger.Info("backfill interrupted, saving state")
			r.saveState(state)
			return ctx.Err()
		default:
		}

		reviews, err := ReadExportFile(path)
		if err != nil {
			r.logger.Warn("failed to read export file", "path", path, "error", err)
			state.AddError(fmt.Sprintf("read %s: %v", path, err))
			continue
		}

		reviews = r.filterDateRange(reviews)

		// Replay in original order so the anomaly windows see the
		// same sequence the marketplace did.
		sort.SliceStable(reviews, func(i, j int) bool {
			return reviews[i].CreatedAt.Before(reviews[j].CreatedAt)
		})

		r.logger.Info("replaying export file", "path", path, "reviews", len(reviews))

		for i := range reviews {
			select {
			case <-ctx.Done():
				r.saveState(state)
				return ctx.Err()
			default:
			}

			rev := &reviews[i]
			if r.cfg.DryRun {
				state.ReviewsProcessed++
				continue
			}

			if err := r.replayOne(ctx, rev, state); err != nil {
				r.logger.Error("replay failed", "review_id", rev.ID, "error", err)
				state.AddError(fmt.Sprintf("replay %s: %v", rev.ID, err))
				continue
			}

			reviewsInBatch++
			if r.cfg.BatchSize > 0 && reviewsInBatch >= r.cfg.BatchSize {
				r.saveState(state)
				reviewsInBatch = 0
			}
		}

		// A dry run must leave the resume state untouched so the real
		// run still replays these files.
		if !r.cfg.DryRun {
			state.MarkProcessed(path)
		}
		state.FilesRemaining--
		r.saveState(state)
	}

	r.saveState(state)

	r.logger.Info("backfill complete",
		"files_processed", len(pending),
		"reviews_processed", state.ReviewsProcessed,
		"reviews_hidden", state.ReviewsHidden,
		"dry_run", r.cfg.DryRun,
	)

	fmt.Printf("\n=== Backfill Summary ===\n")
	fmt.Printf("Files processed: %d\n", len(pending))
	fmt.Printf("Reviews processed: %d\n", state.ReviewsProcessed)
	fmt.Printf("Reviews hidden: %d\n", state.ReviewsHidden)
	fmt.Printf("Errors: %d\n", len(state.Errors))
	if r.cfg.DryRun {
		fmt.Printf("Mode: DRY RUN (nothing replayed)\n")
	}
	fmt.Printf("State file: %s\n", expandHome(defaultStatePath))

	return nil
}

// saveState persists progress, except on dry runs, which write nothing.
func (r *Runner) saveState(state *ReplayState) {
	if r.cfg.DryRun {
		return
	}
	if err := state.Save(); err != nil {
		r.logger.Warn("failed to save replay state", "error", err)
	}
}

// replayOne pushes a single exported review through the engine.
// Unlike live processing, backfill initializes missing reputations on
// the fly: the export predates this service, so neither party has a
// score yet.
func (r *Runner) replayOne(ctx context.Context, rev *review.Review, state *ReplayState) error {
	if err := r.ensureReputation(ctx, rev.ClientID); err != nil {
		return err
	}
	if err := r.ensureReputation(ctx, rev.ProviderID); err != nil {
		return err
	}

	out, err := r.engine.ProcessReview(ctx, rev)
	if err != nil {
		return err
	}

	state.ReviewsProcessed++
	if out.Status == review.StatusHidden {
		state.ReviewsHidden++
	}
	return nil
}

func (r *Runner) ensureReputation(ctx context.Context, userID string) error {
	_, err := r.engine.InitializeReputation(ctx, userID)
	if err != nil && !errors.Is(err, reputation.ErrAlreadyExists) {
		return fmt.Errorf("initialize %s: %w", userID, err)
	}
	return nil
}

func (r *Runner) discoverFiles() ([]string, error) {
	if r.cfg.SingleFile != "" {
		path := expandHome(r.cfg.SingleFile)
		if _, err := os.Stat(path); err != nil {
			return nil, fmt.Errorf("single file not found: %s", path)
		}
		return []string{path}, nil
	}

	dir := expandHome(r.cfg.ExportDir)
	var files []string

	if info, err := os.Stat(dir); err == nil && info.IsDir() {
		err = filepath.Walk(dir, func(path string, info os.FileInfo, err error) error {
			if err != nil {
				return nil // skip errors
			}
			if !info.IsDir() && strings.HasSuffix(info.Name(), ".jsonl") {
				files = append(files, path)
			}
			return nil
		})
		if err != nil {
			r.logger.Warn("error walking export dir", "dir", dir, "error", err)
		}
	}

	sort.Strings(files)
	return files, nil
}

// filterDateRange keeps reviews within the configured since/until range.
// Reviews without a timestamp pass through.
func (r *Runner) filterDateRange(reviews []review.Review) []review.Review {
	if r.cfg.Since.IsZero() && r.cfg.Until.IsZero() {
		return reviews
	}

	var kept []review.Review
	for _, rev := range reviews {
		if rev.CreatedAt.IsZero() {
			kept = append(kept, rev)
			continue
		}
		if !r.cfg.Since.IsZero() && rev.CreatedAt.Before(r.cfg.Since) {
			continue
		}
		if !r.cfg.Until.IsZero() && rev.CreatedAt.After(r.cfg.Until) {
			continue
		}
		kept = append(kept, rev)
	}
	return kept
}
