// Package reconciliation recovers gateway-captured payments that never
// materialized into local enrollments.
package reconciliation

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Run is the persisted summary of one reconciliation pass.
type Run struct {
	ID              uuid.UUID `db:"id"`
	WindowFrom      time.Time `db:"window_from"`
	WindowTo        time.Time `db:"window_to"`
	Total           int       `db:"total"`
	Recovered       int       `db:"recovered"`
	AlreadyEnrolled int       `db:"already_enrolled"`
	NoBooking       int       `db:"no_booking"`
	RaceCondition   int       `db:"race_condition"`
	Failed          int       `db:"failed"`
	ReportKey       *string   `db:"report_key"`
	StartedAt       time.Time `db:"started_at"`
	FinishedAt      time.Time `db:"finished_at"`
}

// Repository persists reconciliation run summaries.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a new reconciliation repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// CreateRun inserts a run summary row.
func (r *Repository) CreateRun(ctx context.Context, run *Run) error {
	query := `
		INSERT INTO reconciliation_runs (
			id, window_from, window_to, total, recovered, already_enrolled,
			no_booking, race_condition, failed, report_key, started_at, finished_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`

	_, err := r.pool.Exec(ctx, query,
		run.ID, run.WindowFrom, run.WindowTo, run.Total, run.Recovered, run.AlreadyEnrolled,
		run.NoBooking, run.RaceCondition, run.Failed, run.ReportKey, run.StartedAt, run.FinishedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create reconciliation run: %w", err)
	}
	return nil
}

// ListRuns retrieves recent run summaries, newest first.
func (r *Repository) ListRuns(ctx context.Context, limit int) ([]Run, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	query := `
		SELECT id, window_from, window_to, total, recovered, already_enrolled,
			no_booking, race_condition, failed, report_key, started_at, finished_at
		FROM reconciliation_runs
		ORDER BY started_at DESC
		LIMIT $1`

	rows, err := r.pool.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list reconciliation runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		var run Run
		err := rows.Scan(
			&run.ID, &run.WindowFrom, &run.WindowTo, &run.Total, &run.Recovered,
			&run.AlreadyEnrolled, &run.NoBooking, &run.RaceCondition, &run.Failed,
			&run.ReportKey, &run.StartedAt, &run.FinishedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan reconciliation run: %w", err)
		}
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate reconciliation runs: %w", err)
	}
	return runs, nil
}
