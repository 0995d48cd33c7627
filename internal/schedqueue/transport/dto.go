// Package transport defines the request/response shapes of the scheduling
// queue API.
package transport

import (
	"time"

	"github.com/google/uuid"
)

// HistoryEntry is one appended failure note on a queue item.
type HistoryEntry struct {
	At   time.Time `json:"at"`
	Note string    `json:"note"`
}

// QueueItemResponse is the operator-facing view of a queue item.
type QueueItemResponse struct {
	ID              uuid.UUID      `json:"id"`
	SessionID       uuid.UUID      `json:"sessionId"`
	EnrollmentID    uuid.UUID      `json:"enrollmentId"`
	Reason          string         `json:"reason"`
	Detail          *string        `json:"detail,omitempty"`
	Status          string         `json:"status"`
	ResolutionNotes *string        `json:"resolutionNotes,omitempty"`
	ResolvedBy      *uuid.UUID     `json:"resolvedBy,omitempty"`
	ResolvedAt      *time.Time     `json:"resolvedAt,omitempty"`
	History         []HistoryEntry `json:"history,omitempty"`
	CreatedAt       time.Time      `json:"createdAt"`
	UpdatedAt       time.Time      `json:"updatedAt"`
}

// ListQueueQuery filters the queue listing.
type ListQueueQuery struct {
	Status       *string    `form:"status" binding:"omitempty,oneof=pending in_progress resolved"`
	EnrollmentID *uuid.UUID `form:"enrollmentId"`
	CoachID      *uuid.UUID `form:"coachId"`
	From         *time.Time `form:"from" time_format:"2006-01-02T15:04:05Z07:00"`
	To           *time.Time `form:"to" time_format:"2006-01-02T15:04:05Z07:00"`
	Page         int        `form:"page,default=1" binding:"omitempty,min=1"`
	PageSize     int        `form:"pageSize,default=20" binding:"omitempty,min=1,max=100"`
}

// ListQueueResponse is the paginated queue listing.
type ListQueueResponse struct {
	Items      []QueueItemResponse `json:"items"`
	Total      int                 `json:"total"`
	Page       int                 `json:"page"`
	PageSize   int                 `json:"pageSize"`
	TotalPages int                 `json:"totalPages"`
}

// ResolveRequest resolves a queue item. When a corrected time or coach is
// supplied, the fix is re-dispatched through the orchestrator before the
// item can be marked resolved.
type ResolveRequest struct {
	Notes            string     `json:"notes" binding:"required,max=1000"`
	CorrectedAt      *time.Time `json:"correctedAt"`
	CorrectedCoachID *uuid.UUID `json:"correctedCoachId"`
}
