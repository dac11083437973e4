package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/neartask/veritas/internal/reputation"
)

// Postgres is the durable Store. Schema lives in schema.sql.
type Postgres struct {
	pool *pgxpool.Pool
}

func NewPostgres(ctx context.Context, databaseURL string) (*Postgres, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return &Postgres{pool: pool}, nil
}

func (p *Postgres) Close() {
	p.pool.Close()
}

const scoreColumns = `user_id, trust_score, trust_level, completed_bookings, review_count, average_rating, detection_flags, created_at, updated_at`

func (p *Postgres) InitializeReputation(ctx context.Context, userID string, now time.Time) (*reputation.Score, error) {
	s := reputation.New(userID, now)

	_, err := p.pool.Exec(ctx, `
		INSERT INTO reputation_scores (user_id, trust_score, trust_level, completed_bookings, review_count, detection_flags, created_at, updated_at)
		VALUES ($1, $2, $3, 0, 0, '{}', $4, $4)`,
		userID, s.TrustScore, s.TrustLevel, now,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" { // unique_violation
			return nil, reputation.ErrAlreadyExists
		}
		return nil, fmt.Errorf("insert reputation: %w", err)
	}
	return s, nil
}

func (p *Postgres) GetReputationScore(ctx context.Context, userID string) (*reputation.Score, error) {
	row := p.pool.QueryRow(ctx, `
		SELECT `+scoreColumns+`
		FROM reputation_scores
		WHERE user_id = $1`, userID,
	)
	return scanScore(row)
}

func (p *Postgres) GetReputationScoreWithHistory(ctx context.Context, userID string) (*reputation.Score, []reputation.HistoryEntry, error) {
	s, err := p.GetReputationScore(ctx, userID)
	if err != nil {
		return nil, nil, err
	}

	rows, err := p.pool.Query(ctx, `
		SELECT id, user_id, trust_score, trust_level, reason, created_at
		FROM reputation_history
		WHERE user_id = $1
		ORDER BY created_at, id`, userID,
	)
	if err != nil {
		return nil, nil, fmt.Errorf("query history: %w", err)
	}
	defer rows.Close()

	trail := []reputation.HistoryEntry{}
	for rows.Next() {
		var e reputation.HistoryEntry
		if err := rows.Scan(&e.ID, &e.UserID, &e.TrustScore, &e.TrustLevel, &e.Reason, &e.CreatedAt); err != nil {
			return nil, nil, fmt.Errorf("scan history row: %w", err)
		}
		trail = append(trail, e)
	}
	if err := rows.Err(); err != nil {
		return nil, nil, fmt.Errorf("iterate history rows: %w", err)
	}
	return s, trail, nil
}

// RecordScoreChange updates the live record and appends the history entry in
// one transaction.
func (p *Postgres) RecordScoreChange(ctx context.Context, userID string, update reputation.Update, reason string, now time.Time) (*reputation.Score, error) {
	tx, err := p.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	flags := make([]string, len(update.NewFlags))
	for i, f := range update.NewFlags {
		flags[i] = string(f)
	}

	row := tx.QueryRow(ctx, `
		UPDATE reputation_scores
		SET trust_score = $2,
			trust_level = $3,
			review_count = $4,
			average_rating = $5,
			completed_bookings = completed_bookings + $6,
			detection_flags = detection_flags || $7,
			updated_at = $8
		WHERE user_id = $1
		RETURNING `+scoreColumns,
		userID, update.TrustScore, update.TrustLevel, update.ReviewCount,
		update.AverageRating, update.CompletedBookingsDelta, flags, now,
	)
	s, err := scanScore(row)
	if err != nil {
		return nil, err
	}

	_, err = tx.Exec(ctx, `
		INSERT INTO reputation_history (id, user_id, trust_score, trust_level, reason, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		uuid.New(), userID, update.TrustScore, update.TrustLevel, reason, now,
	)
	if err != nil {
		return nil, fmt.Errorf("insert history: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit tx: %w", err)
	}
	return s, nil
}

func (p *Postgres) ListReputationScores(ctx context.Context) ([]*reputation.Score, error) {
	rows, err := p.pool.Query(ctx, `
		SELECT `+scoreColumns+`
		FROM reputation_scores`,
	)
	if err != nil {
		return nil, fmt.Errorf("query scores: %w", err)
	}
	defer rows.Close()

	var out []*reputation.Score
	for rows.Next() {
		s, err := scanScore(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate score rows: %w", err)
	}
	return out, nil
}

func scanScore(row pgx.Row) (*reputation.Score, error) {
	var s reputation.Score
	var flags []string
	err := row.Scan(&s.UserID, &s.TrustScore, &s.TrustLevel, &s.CompletedBookings,
		&s.ReviewCount, &s.AverageRating, &flags, &s.CreatedAt, &s.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, reputation.ErrNotFound
		}
		return nil, fmt.Errorf("scan reputation row: %w", err)
	}
	s.DetectionFlags = make([]reputation.Flag, len(flags))
	for i, f := range flags {
		s.DetectionFlags[i] = reputation.Flag(f)
	}
	return &s, nil
}
