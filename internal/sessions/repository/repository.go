// Package repository provides Postgres persistence for sessions and their
// change-request audit trail.
package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"tutorcoach_backend/internal/sessions/transport"
	"tutorcoach_backend/platform/apperr"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Session represents the session database model.
type Session struct {
	ID              uuid.UUID  `db:"id"`
	EnrollmentID    uuid.UUID  `db:"enrollment_id"`
	LearnerID       uuid.UUID  `db:"learner_id"`
	CoachID         uuid.UUID  `db:"coach_id"`
	SequenceNo      int        `db:"sequence_no"`
	Type            string     `db:"type"`
	Status          string     `db:"status"`
	ScheduledAt     *time.Time `db:"scheduled_at"`
	DurationMinutes int        `db:"duration_minutes"`
	CalendarEventID *string    `db:"calendar_event_id"`
	MeetingURL      *string    `db:"meeting_url"`
	BotJobID        *string    `db:"bot_job_id"`
	CreatedAt       time.Time  `db:"created_at"`
	UpdatedAt       time.Time  `db:"updated_at"`
}

const sessionNotFoundMsg = "session not found"

const sessionColumns = `id, enrollment_id, learner_id, coach_id, sequence_no, type, status, scheduled_at,
	duration_minutes, calendar_event_id, meeting_url, bot_job_id, created_at, updated_at`

// Repository provides database operations for sessions.
type Repository struct {
	pool *pgxpool.Pool
}

// New creates a new sessions repository.
func New(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

func scanSession(row pgx.Row) (*Session, error) {
	var s Session
	err := row.Scan(
		&s.ID, &s.EnrollmentID, &s.LearnerID, &s.CoachID, &s.SequenceNo, &s.Type,
		&s.Status, &s.ScheduledAt, &s.DurationMinutes, &s.CalendarEventID,
		&s.MeetingURL, &s.BotJobID, &s.CreatedAt, &s.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &s, nil
}

// Create inserts a new session.
func (r *Repository) Create(ctx context.Context, s *Session) error {
	query := `
		INSERT INTO sessions (
			id, enrollment_id, learner_id, coach_id, sequence_no, type, status, scheduled_at,
			duration_minutes, calendar_event_id, meeting_url, bot_job_id, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)`

	_, err := r.pool.Exec(ctx, query,
		s.ID, s.EnrollmentID, s.LearnerID, s.CoachID, s.SequenceNo, s.Type, s.Status, s.ScheduledAt,
		s.DurationMinutes, s.CalendarEventID, s.MeetingURL, s.BotJobID, s.CreatedAt, s.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create session: %w", err)
	}
	return nil
}

// GetByID retrieves a session by its ID.
func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (*Session, error) {
	query := `SELECT ` + sessionColumns + ` FROM sessions WHERE id = $1`

	s, err := scanSession(r.pool.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperr.NotFound(sessionNotFoundMsg)
		}
		return nil, fmt.Errorf("failed to get session: %w", err)
	}
	return s, nil
}

// UpdateSchedule commits the result of a successful schedule or reassign
// dispatch: new slot, new coach, calendar artifacts and status in one write.
func (r *Repository) UpdateSchedule(ctx context.Context, s *Session) error {
	query := `
		UPDATE sessions SET
			coach_id = $2,
			status = $3,
			scheduled_at = $4,
			duration_minutes = $5,
			calendar_event_id = $6,
			meeting_url = $7,
			bot_job_id = $8,
			updated_at = $9
		WHERE id = $1`

	result, err := r.pool.Exec(ctx, query,
		s.ID, s.CoachID, s.Status, s.ScheduledAt, s.DurationMinutes,
		s.CalendarEventID, s.MeetingURL, s.BotJobID, s.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to update session schedule: %w", err)
	}
	if result.RowsAffected() == 0 {
		return apperr.NotFound(sessionNotFoundMsg)
	}
	return nil
}

// UpdateStatus moves a session to a new status.
func (r *Repository) UpdateStatus(ctx context.Context, id uuid.UUID, status string) error {
	query := `UPDATE sessions SET status = $2, updated_at = $3 WHERE id = $1`

	result, err := r.pool.Exec(ctx, query, id, status, time.Now())
	if err != nil {
		return fmt.Errorf("failed to update session status: %w", err)
	}
	if result.RowsAffected() == 0 {
		return apperr.NotFound(sessionNotFoundMsg)
	}
	return nil
}

// RescheduleWithQuota commits a reschedule atomically: the session gets its
// new slot and calendar artifacts, and the enrollment's reschedule counter is
// bumped with a compare-and-set guard. If another request already consumed
// the counter value read by the caller, no rows match and the whole
// transaction rolls back with a conflict.
func (r *Repository) RescheduleWithQuota(ctx context.Context, s *Session, expectedUsed int) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin reschedule tx: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	casQuery := `
		UPDATE enrollments
		SET reschedules_used = reschedules_used + 1, updated_at = $3
		WHERE id = $1 AND reschedules_used = $2`

	result, err := tx.Exec(ctx, casQuery, s.EnrollmentID, expectedUsed, s.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to increment reschedule counter: %w", err)
	}
	if result.RowsAffected() == 0 {
		return apperr.Conflict("reschedule quota changed concurrently, retry the request")
	}

	sessionQuery := `
		UPDATE sessions SET
			status = $2,
			scheduled_at = $3,
			calendar_event_id = $4,
			meeting_url = $5,
			bot_job_id = $6,
			updated_at = $7
		WHERE id = $1`

	result, err = tx.Exec(ctx, sessionQuery,
		s.ID, s.Status, s.ScheduledAt, s.CalendarEventID, s.MeetingURL, s.BotJobID, s.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to update rescheduled session: %w", err)
	}
	if result.RowsAffected() == 0 {
		return apperr.NotFound(sessionNotFoundMsg)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit reschedule tx: %w", err)
	}
	return nil
}

// ListParams contains parameters for listing sessions.
type ListParams struct {
	EnrollmentID *uuid.UUID
	LearnerID    *uuid.UUID
	CoachID      *uuid.UUID
	Type         *string
	Status       *string
	From         *time.Time
	To           *time.Time
	Page         int
	PageSize     int
}

// ListResult contains the result of listing sessions.
type ListResult struct {
	Items      []Session
	Total      int
	Page       int
	PageSize   int
	TotalPages int
}

// List retrieves sessions with optional filtering.
func (r *Repository) List(ctx context.Context, params ListParams) (*ListResult, error) {
	baseQuery := `FROM sessions WHERE 1=1`
	args := []interface{}{}
	argIndex := 1

	addFilter(&baseQuery, &args, &argIndex, params.EnrollmentID != nil, " AND enrollment_id = $%d", derefUUID(params.EnrollmentID))
	addFilter(&baseQuery, &args, &argIndex, params.LearnerID != nil, " AND learner_id = $%d", derefUUID(params.LearnerID))
	addFilter(&baseQuery, &args, &argIndex, params.CoachID != nil, " AND coach_id = $%d", derefUUID(params.CoachID))
	addFilter(&baseQuery, &args, &argIndex, params.Type != nil, " AND type = $%d", derefString(params.Type))
	addFilter(&baseQuery, &args, &argIndex, params.Status != nil, " AND status = $%d", derefString(params.Status))
	addFilter(&baseQuery, &args, &argIndex, params.From != nil, " AND scheduled_at >= $%d", derefTime(params.From))
	addFilter(&baseQuery, &args, &argIndex, params.To != nil, " AND scheduled_at <= $%d", derefTime(params.To))

	var total int
	countQuery := "SELECT COUNT(*) " + baseQuery
	if err := r.pool.QueryRow(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, fmt.Errorf("failed to count sessions: %w", err)
	}

	totalPages := (total + params.PageSize - 1) / params.PageSize
	offset := (params.Page - 1) * params.PageSize

	selectQuery := fmt.Sprintf(
		"SELECT "+sessionColumns+" %s ORDER BY scheduled_at ASC NULLS LAST, created_at ASC LIMIT $%d OFFSET $%d",
		baseQuery, argIndex, argIndex+1,
	)
	args = append(args, params.PageSize, offset)

	rows, err := r.pool.Query(ctx, selectQuery, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list sessions: %w", err)
	}
	defer rows.Close()

	var items []Session
	for rows.Next() {
		s, err := scanSession(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan session: %w", err)
		}
		items = append(items, *s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate sessions: %w", err)
	}

	return &ListResult{
		Items:      items,
		Total:      total,
		Page:       params.Page,
		PageSize:   params.PageSize,
		TotalPages: totalPages,
	}, nil
}

// FirstPendingByEnrollment retrieves the lowest-sequence pending session of
// an enrollment, or nil when none remain. Used by the reconciliation worker
// to kick off the initial schedule dispatch.
func (r *Repository) FirstPendingByEnrollment(ctx context.Context, enrollmentID uuid.UUID) (*Session, error) {
	query := `SELECT ` + sessionColumns + `
		FROM sessions
		WHERE enrollment_id = $1 AND status = 'pending'
		ORDER BY sequence_no ASC
		LIMIT 1`

	s, err := scanSession(r.pool.QueryRow(ctx, query, enrollmentID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get first pending session: %w", err)
	}
	return s, nil
}

// ListDueForReminder retrieves scheduled sessions starting within the window.
// Used by the nudge job.
func (r *Repository) ListDueForReminder(ctx context.Context, from, to time.Time) ([]Session, error) {
	query := `SELECT ` + sessionColumns + `
		FROM sessions
		WHERE status = 'scheduled' AND scheduled_at >= $1 AND scheduled_at < $2
		ORDER BY scheduled_at ASC`

	rows, err := r.pool.Query(ctx, query, from, to)
	if err != nil {
		return nil, fmt.Errorf("failed to list sessions due for reminder: %w", err)
	}
	defer rows.Close()

	var items []Session
	for rows.Next() {
		s, err := scanSession(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan session: %w", err)
		}
		items = append(items, *s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate sessions: %w", err)
	}
	return items, nil
}

// ToResponse converts a Session to its API representation.
func (s *Session) ToResponse() transport.SessionResponse {
	return transport.SessionResponse{
		ID:              s.ID,
		EnrollmentID:    s.EnrollmentID,
		LearnerID:       s.LearnerID,
		CoachID:         s.CoachID,
		SequenceNo:      s.SequenceNo,
		Type:            s.Type,
		Status:          s.Status,
		ScheduledAt:     s.ScheduledAt,
		DurationMinutes: s.DurationMinutes,
		CalendarEventID: s.CalendarEventID,
		MeetingURL:      s.MeetingURL,
		BotJobID:        s.BotJobID,
		CreatedAt:       s.CreatedAt,
		UpdatedAt:       s.UpdatedAt,
	}
}

func addFilter(baseQuery *string, args *[]interface{}, argIndex *int, apply bool, clause string, value interface{}) {
	if !apply {
		return
	}
	*baseQuery += fmt.Sprintf(clause, *argIndex)
	*args = append(*args, value)
	*argIndex++
}

func derefUUID(value *uuid.UUID) uuid.UUID {
	if value == nil {
		return uuid.UUID{}
	}
	return *value
}

func derefString(value *string) string {
	if value == nil {
		return ""
	}
	return *value
}

func derefTime(value *time.Time) time.Time {
	if value == nil {
		return time.Time{}
	}
	return *value
}
