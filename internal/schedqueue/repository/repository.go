// Package repository provides Postgres persistence for the manual scheduling
// queue.
package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"tutorcoach_backend/internal/schedqueue/transport"
	"tutorcoach_backend/platform/apperr"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Item represents a scheduling queue work item.
type Item struct {
	ID              uuid.UUID  `db:"id"`
	SessionID       uuid.UUID  `db:"session_id"`
	EnrollmentID    uuid.UUID  `db:"enrollment_id"`
	Reason          string     `db:"reason"`
	Detail          *string    `db:"detail"`
	Status          string     `db:"status"`
	ResolutionNotes *string    `db:"resolution_notes"`
	ResolvedBy      *uuid.UUID `db:"resolved_by"`
	ResolvedAt      *time.Time `db:"resolved_at"`
	History         []byte     `db:"history"`
	CreatedAt       time.Time  `db:"created_at"`
	UpdatedAt       time.Time  `db:"updated_at"`
}

// Queue item statuses.
const (
	StatusPending    = "pending"
	StatusInProgress = "in_progress"
	StatusResolved   = "resolved"
)

const itemNotFoundMsg = "queue item not found"

const itemColumns = `id, session_id, enrollment_id, reason, detail, status,
	resolution_notes, resolved_by, resolved_at, history, created_at, updated_at`

// Repository provides database operations for the scheduling queue.
type Repository struct {
	pool *pgxpool.Pool
}

// New creates a new scheduling queue repository.
func New(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

func scanItem(row pgx.Row) (*Item, error) {
	var it Item
	err := row.Scan(
		&it.ID, &it.SessionID, &it.EnrollmentID, &it.Reason, &it.Detail, &it.Status,
		&it.ResolutionNotes, &it.ResolvedBy, &it.ResolvedAt, &it.History,
		&it.CreatedAt, &it.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &it, nil
}

// Create inserts a new queue item with an empty history.
func (r *Repository) Create(ctx context.Context, it *Item) error {
	query := `
		INSERT INTO scheduling_queue (id, session_id, enrollment_id, reason, detail, status, history, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, '[]'::jsonb, $7, $8)`

	_, err := r.pool.Exec(ctx, query,
		it.ID, it.SessionID, it.EnrollmentID, it.Reason, it.Detail, it.Status, it.CreatedAt, it.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create queue item: %w", err)
	}
	return nil
}

// GetByID retrieves a queue item.
func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (*Item, error) {
	query := `SELECT ` + itemColumns + ` FROM scheduling_queue WHERE id = $1`

	it, err := scanItem(r.pool.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperr.NotFound(itemNotFoundMsg)
		}
		return nil, fmt.Errorf("failed to get queue item: %w", err)
	}
	return it, nil
}

// MarkInProgress claims a pending item for an operator.
func (r *Repository) MarkInProgress(ctx context.Context, id uuid.UUID) error {
	query := `UPDATE scheduling_queue SET status = 'in_progress', updated_at = $2 WHERE id = $1 AND status = 'pending'`

	result, err := r.pool.Exec(ctx, query, id, time.Now())
	if err != nil {
		return fmt.Errorf("failed to claim queue item: %w", err)
	}
	if result.RowsAffected() == 0 {
		return apperr.Conflict("queue item is not pending")
	}
	return nil
}

// Resolve marks an item resolved. Only pending or in-progress items resolve.
func (r *Repository) Resolve(ctx context.Context, id uuid.UUID, notes string, resolvedBy uuid.UUID) error {
	query := `
		UPDATE scheduling_queue SET
			status = 'resolved', resolution_notes = $2, resolved_by = $3, resolved_at = $4, updated_at = $4
		WHERE id = $1 AND status IN ('pending', 'in_progress')`

	result, err := r.pool.Exec(ctx, query, id, notes, resolvedBy, time.Now())
	if err != nil {
		return fmt.Errorf("failed to resolve queue item: %w", err)
	}
	if result.RowsAffected() == 0 {
		return apperr.Conflict("queue item is already resolved")
	}
	return nil
}

// AppendHistory appends a failure note to the item's history and drops the
// item back to pending.
func (r *Repository) AppendHistory(ctx context.Context, id uuid.UUID, note string) error {
	entry, err := json.Marshal(transport.HistoryEntry{At: time.Now(), Note: note})
	if err != nil {
		return fmt.Errorf("failed to marshal history entry: %w", err)
	}

	query := `
		UPDATE scheduling_queue SET
			history = history || $2::jsonb, status = 'pending', updated_at = $3
		WHERE id = $1 AND status != 'resolved'`

	result, err := r.pool.Exec(ctx, query, id, entry, time.Now())
	if err != nil {
		return fmt.Errorf("failed to append queue history: %w", err)
	}
	if result.RowsAffected() == 0 {
		return apperr.NotFound(itemNotFoundMsg)
	}
	return nil
}

// ListParams contains parameters for listing queue items.
type ListParams struct {
	Status       *string
	EnrollmentID *uuid.UUID
	CoachID      *uuid.UUID
	From         *time.Time
	To           *time.Time
	Page         int
	PageSize     int
}

// ListResult contains the result of listing queue items.
type ListResult struct {
	Items      []Item
	Total      int
	Page       int
	PageSize   int
	TotalPages int
}

// List retrieves queue items with optional filtering. The coach filter joins
// through the referenced session.
func (r *Repository) List(ctx context.Context, params ListParams) (*ListResult, error) {
	baseQuery := `FROM scheduling_queue q`
	if params.CoachID != nil {
		baseQuery += ` JOIN sessions s ON s.id = q.session_id`
	}
	baseQuery += ` WHERE 1=1`
	args := []interface{}{}
	argIndex := 1

	if params.Status != nil {
		baseQuery += fmt.Sprintf(" AND q.status = $%d", argIndex)
		args = append(args, *params.Status)
		argIndex++
	}
	if params.EnrollmentID != nil {
		baseQuery += fmt.Sprintf(" AND q.enrollment_id = $%d", argIndex)
		args = append(args, *params.EnrollmentID)
		argIndex++
	}
	if params.CoachID != nil {
		baseQuery += fmt.Sprintf(" AND s.coach_id = $%d", argIndex)
		args = append(args, *params.CoachID)
		argIndex++
	}
	if params.From != nil {
		baseQuery += fmt.Sprintf(" AND q.created_at >= $%d", argIndex)
		args = append(args, *params.From)
		argIndex++
	}
	if params.To != nil {
		baseQuery += fmt.Sprintf(" AND q.created_at <= $%d", argIndex)
		args = append(args, *params.To)
		argIndex++
	}

	var total int
	if err := r.pool.QueryRow(ctx, "SELECT COUNT(*) "+baseQuery, args...).Scan(&total); err != nil {
		return nil, fmt.Errorf("failed to count queue items: %w", err)
	}

	totalPages := (total + params.PageSize - 1) / params.PageSize
	offset := (params.Page - 1) * params.PageSize

	selectQuery := fmt.Sprintf(
		`SELECT q.id, q.session_id, q.enrollment_id, q.reason, q.detail, q.status,
			q.resolution_notes, q.resolved_by, q.resolved_at, q.history, q.created_at, q.updated_at
		%s ORDER BY q.created_at ASC LIMIT $%d OFFSET $%d`,
		baseQuery, argIndex, argIndex+1,
	)
	args = append(args, params.PageSize, offset)

	rows, err := r.pool.Query(ctx, selectQuery, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list queue items: %w", err)
	}
	defer rows.Close()

	var items []Item
	for rows.Next() {
		it, err := scanItem(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan queue item: %w", err)
		}
		items = append(items, *it)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate queue items: %w", err)
	}

	return &ListResult{
		Items:      items,
		Total:      total,
		Page:       params.Page,
		PageSize:   params.PageSize,
		TotalPages: totalPages,
	}, nil
}

// ToResponse converts an Item to its API representation.
func (it *Item) ToResponse() transport.QueueItemResponse {
	var history []transport.HistoryEntry
	if len(it.History) > 0 {
		// History is written by this repository; a decode failure means a
		// migration bug, surfaced as an empty list rather than a 500.
		_ = json.Unmarshal(it.History, &history)
	}
	return transport.QueueItemResponse{
		ID:              it.ID,
		SessionID:       it.SessionID,
		EnrollmentID:    it.EnrollmentID,
		Reason:          it.Reason,
		Detail:          it.Detail,
		Status:          it.Status,
		ResolutionNotes: it.ResolutionNotes,
		ResolvedBy:      it.ResolvedBy,
		ResolvedAt:      it.ResolvedAt,
		History:         history,
		CreatedAt:       it.CreatedAt,
		UpdatedAt:       it.UpdatedAt,
	}
}
