// Package repository provides Postgres persistence for enrollments and the
// payment/booking ledgers the reconciliation worker diffs against.
package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"tutorcoach_backend/internal/enrollments/transport"
	"tutorcoach_backend/platform/apperr"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Enrollment represents the enrollment database model.
type Enrollment struct {
	ID                uuid.UUID  `db:"id"`
	LearnerID         uuid.UUID  `db:"learner_id"`
	CoachID           uuid.UUID  `db:"coach_id"`
	PaymentID         *string    `db:"payment_id"`
	ProgramStart      time.Time  `db:"program_start"`
	ProgramEnd        time.Time  `db:"program_end"`
	TotalSessions     int        `db:"total_sessions"`
	SessionsCompleted int        `db:"sessions_completed"`
	MaxReschedules    int        `db:"max_reschedules"`
	ReschedulesUsed   int        `db:"reschedules_used"`
	Status            string     `db:"status"`
	TerminatedAt      *time.Time `db:"terminated_at"`
	CreatedAt         time.Time  `db:"created_at"`
	UpdatedAt         time.Time  `db:"updated_at"`
}

// Enrollment statuses.
const (
	StatusActive          = "active"
	StatusSeasonCompleted = "season_completed"
	StatusTerminated      = "terminated"
)

const enrollmentNotFoundMsg = "enrollment not found"

const uniqueViolationCode = "23505"

const enrollmentColumns = `id, learner_id, coach_id, payment_id, program_start, program_end,
	total_sessions, sessions_completed, max_reschedules, reschedules_used, status,
	terminated_at, created_at, updated_at`

// Repository provides database operations for enrollments.
type Repository struct {
	pool *pgxpool.Pool
}

// New creates a new enrollments repository.
func New(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// IsUniqueViolation reports whether err is a Postgres unique-constraint
// violation. The reconciliation worker treats these as benign races.
func IsUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolationCode
}

func scanEnrollment(row pgx.Row) (*Enrollment, error) {
	var e Enrollment
	err := row.Scan(
		&e.ID, &e.LearnerID, &e.CoachID, &e.PaymentID, &e.ProgramStart, &e.ProgramEnd,
		&e.TotalSessions, &e.SessionsCompleted, &e.MaxReschedules, &e.ReschedulesUsed,
		&e.Status, &e.TerminatedAt, &e.CreatedAt, &e.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &e, nil
}

// Create inserts a new enrollment. The partial unique index on active
// enrollments per learner turns a duplicate into a Conflict.
func (r *Repository) Create(ctx context.Context, e *Enrollment) error {
	query := `
		INSERT INTO enrollments (
			id, learner_id, coach_id, payment_id, program_start, program_end,
			total_sessions, sessions_completed, max_reschedules, reschedules_used,
			status, terminated_at, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)`

	_, err := r.pool.Exec(ctx, query,
		e.ID, e.LearnerID, e.CoachID, e.PaymentID, e.ProgramStart, e.ProgramEnd,
		e.TotalSessions, e.SessionsCompleted, e.MaxReschedules, e.ReschedulesUsed,
		e.Status, e.TerminatedAt, e.CreatedAt, e.UpdatedAt,
	)
	if err != nil {
		if IsUniqueViolation(err) {
			return apperr.Conflict("learner already has an active enrollment")
		}
		return fmt.Errorf("failed to create enrollment: %w", err)
	}
	return nil
}

// GetByID retrieves an enrollment by its ID.
func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (*Enrollment, error) {
	query := `SELECT ` + enrollmentColumns + ` FROM enrollments WHERE id = $1`

	e, err := scanEnrollment(r.pool.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperr.NotFound(enrollmentNotFoundMsg)
		}
		return nil, fmt.Errorf("failed to get enrollment: %w", err)
	}
	return e, nil
}

// GetActiveByLearner retrieves the learner's active enrollment, or nil when
// none exists.
func (r *Repository) GetActiveByLearner(ctx context.Context, learnerID uuid.UUID) (*Enrollment, error) {
	query := `SELECT ` + enrollmentColumns + ` FROM enrollments WHERE learner_id = $1 AND status = 'active'`

	e, err := scanEnrollment(r.pool.QueryRow(ctx, query, learnerID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get active enrollment: %w", err)
	}
	return e, nil
}

// GetByPaymentID retrieves the enrollment funded by a gateway payment, or nil.
func (r *Repository) GetByPaymentID(ctx context.Context, paymentID string) (*Enrollment, error) {
	query := `SELECT ` + enrollmentColumns + ` FROM enrollments WHERE payment_id = $1`

	e, err := scanEnrollment(r.pool.QueryRow(ctx, query, paymentID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get enrollment by payment: %w", err)
	}
	return e, nil
}

// AttachPayment links a gateway payment to an enrollment that has none yet.
// Used by the reconciliation self-heal path for duplicate payments.
func (r *Repository) AttachPayment(ctx context.Context, id uuid.UUID, paymentID string) error {
	query := `UPDATE enrollments SET payment_id = $2, updated_at = $3 WHERE id = $1 AND payment_id IS NULL`

	result, err := r.pool.Exec(ctx, query, id, paymentID, time.Now())
	if err != nil {
		return fmt.Errorf("failed to attach payment: %w", err)
	}
	if result.RowsAffected() == 0 {
		return apperr.Conflict("enrollment already carries a payment")
	}
	return nil
}

// IncrementCompleted bumps the completed-session counter. When the counter
// reaches the program total the enrollment flips to season_completed.
func (r *Repository) IncrementCompleted(ctx context.Context, id uuid.UUID) error {
	query := `
		UPDATE enrollments SET
			sessions_completed = sessions_completed + 1,
			status = CASE
				WHEN sessions_completed + 1 >= total_sessions AND status = 'active'
				THEN 'season_completed' ELSE status
			END,
			updated_at = $2
		WHERE id = $1`

	result, err := r.pool.Exec(ctx, query, id, time.Now())
	if err != nil {
		return fmt.Errorf("failed to increment completed sessions: %w", err)
	}
	if result.RowsAffected() == 0 {
		return apperr.NotFound(enrollmentNotFoundMsg)
	}
	return nil
}

// Terminate soft-terminates an enrollment. Enrollments are never deleted.
func (r *Repository) Terminate(ctx context.Context, id uuid.UUID) error {
	query := `
		UPDATE enrollments SET status = 'terminated', terminated_at = $2, updated_at = $2
		WHERE id = $1 AND status != 'terminated'`

	result, err := r.pool.Exec(ctx, query, id, time.Now())
	if err != nil {
		return fmt.Errorf("failed to terminate enrollment: %w", err)
	}
	if result.RowsAffected() == 0 {
		return apperr.NotFound(enrollmentNotFoundMsg)
	}
	return nil
}

// ListParams contains parameters for listing enrollments.
type ListParams struct {
	LearnerID *uuid.UUID
	CoachID   *uuid.UUID
	Status    *string
	Page      int
	PageSize  int
}

// ListResult contains the result of listing enrollments.
type ListResult struct {
	Items      []Enrollment
	Total      int
	Page       int
	PageSize   int
	TotalPages int
}

// List retrieves enrollments with optional filtering.
func (r *Repository) List(ctx context.Context, params ListParams) (*ListResult, error) {
	baseQuery := `FROM enrollments WHERE 1=1`
	args := []interface{}{}
	argIndex := 1

	if params.LearnerID != nil {
		baseQuery += fmt.Sprintf(" AND learner_id = $%d", argIndex)
		args = append(args, *params.LearnerID)
		argIndex++
	}
	if params.CoachID != nil {
		baseQuery += fmt.Sprintf(" AND coach_id = $%d", argIndex)
		args = append(args, *params.CoachID)
		argIndex++
	}
	if params.Status != nil {
		baseQuery += fmt.Sprintf(" AND status = $%d", argIndex)
		args = append(args, *params.Status)
		argIndex++
	}

	var total int
	if err := r.pool.QueryRow(ctx, "SELECT COUNT(*) "+baseQuery, args...).Scan(&total); err != nil {
		return nil, fmt.Errorf("failed to count enrollments: %w", err)
	}

	totalPages := (total + params.PageSize - 1) / params.PageSize
	offset := (params.Page - 1) * params.PageSize

	selectQuery := fmt.Sprintf(
		"SELECT "+enrollmentColumns+" %s ORDER BY created_at DESC LIMIT $%d OFFSET $%d",
		baseQuery, argIndex, argIndex+1,
	)
	args = append(args, params.PageSize, offset)

	rows, err := r.pool.Query(ctx, selectQuery, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list enrollments: %w", err)
	}
	defer rows.Close()

	var items []Enrollment
	for rows.Next() {
		e, err := scanEnrollment(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan enrollment: %w", err)
		}
		items = append(items, *e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate enrollments: %w", err)
	}

	return &ListResult{
		Items:      items,
		Total:      total,
		Page:       params.Page,
		PageSize:   params.PageSize,
		TotalPages: totalPages,
	}, nil
}

// ToResponse converts an Enrollment to its API representation.
func (e *Enrollment) ToResponse() transport.EnrollmentResponse {
	return transport.EnrollmentResponse{
		ID:                e.ID,
		LearnerID:         e.LearnerID,
		CoachID:           e.CoachID,
		PaymentID:         e.PaymentID,
		ProgramStart:      e.ProgramStart,
		ProgramEnd:        e.ProgramEnd,
		TotalSessions:     e.TotalSessions,
		SessionsCompleted: e.SessionsCompleted,
		MaxReschedules:    e.MaxReschedules,
		ReschedulesUsed:   e.ReschedulesUsed,
		Status:            e.Status,
		TerminatedAt:      e.TerminatedAt,
		CreatedAt:         e.CreatedAt,
		UpdatedAt:         e.UpdatedAt,
	}
}
