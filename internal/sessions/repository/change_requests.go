package repository

import (
	"context"
	"fmt"
	"time"

	"tutorcoach_backend/internal/sessions/transport"

	"github.com/google/uuid"
)

// ChangeRequest is one recorded lifecycle command against a session,
// successful or not. The trail is append-only.
type ChangeRequest struct {
	ID               uuid.UUID  `db:"id"`
	SessionID        uuid.UUID  `db:"session_id"`
	EnrollmentID     uuid.UUID  `db:"enrollment_id"`
	Command          string     `db:"command"`
	OriginalAt       *time.Time `db:"original_at"`
	RequestedAt      *time.Time `db:"requested_at"`
	RequestedCoachID *uuid.UUID `db:"requested_coach_id"`
	RequestedBy      uuid.UUID  `db:"requested_by"`
	Outcome          string     `db:"outcome"`
	Detail           *string    `db:"detail"`
	CreatedAt        time.Time  `db:"created_at"`
}

// Change request outcomes.
const (
	OutcomeApplied  = "applied"
	OutcomeNoOp     = "no_op"
	OutcomeDenied   = "denied"
	OutcomeFailed   = "failed"
	OutcomeDegraded = "degraded"
)

// RecordChange appends a change request to the session's audit trail.
func (r *Repository) RecordChange(ctx context.Context, cr *ChangeRequest) error {
	query := `
		INSERT INTO session_change_requests (
			id, session_id, enrollment_id, command, original_at, requested_at,
			requested_coach_id, requested_by, outcome, detail, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`

	_, err := r.pool.Exec(ctx, query,
		cr.ID, cr.SessionID, cr.EnrollmentID, cr.Command, cr.OriginalAt, cr.RequestedAt,
		cr.RequestedCoachID, cr.RequestedBy, cr.Outcome, cr.Detail, cr.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to record change request: %w", err)
	}
	return nil
}

// ListChanges retrieves a session's audit trail, newest first.
func (r *Repository) ListChanges(ctx context.Context, sessionID uuid.UUID, limit int) ([]ChangeRequest, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}

	query := `SELECT id, session_id, enrollment_id, command, original_at, requested_at,
		requested_coach_id, requested_by, outcome, detail, created_at
		FROM session_change_requests
		WHERE session_id = $1
		ORDER BY created_at DESC
		LIMIT $2`

	rows, err := r.pool.Query(ctx, query, sessionID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list change requests: %w", err)
	}
	defer rows.Close()

	var items []ChangeRequest
	for rows.Next() {
		var cr ChangeRequest
		if err := rows.Scan(
			&cr.ID, &cr.SessionID, &cr.EnrollmentID, &cr.Command, &cr.OriginalAt,
			&cr.RequestedAt, &cr.RequestedCoachID, &cr.RequestedBy,
			&cr.Outcome, &cr.Detail, &cr.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan change request: %w", err)
		}
		items = append(items, cr)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate change requests: %w", err)
	}
	return items, nil
}

// ToResponse converts a ChangeRequest to its API representation.
func (cr *ChangeRequest) ToResponse() transport.ChangeRequestResponse {
	return transport.ChangeRequestResponse{
		ID:               cr.ID,
		SessionID:        cr.SessionID,
		EnrollmentID:     cr.EnrollmentID,
		Command:          cr.Command,
		OriginalAt:       cr.OriginalAt,
		RequestedAt:      cr.RequestedAt,
		RequestedCoachID: cr.RequestedCoachID,
		RequestedBy:      cr.RequestedBy,
		Outcome:          cr.Outcome,
		Detail:           cr.Detail,
		CreatedAt:        cr.CreatedAt,
	}
}
