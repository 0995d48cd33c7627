// Package transport defines the request/response shapes of the sessions API.
package transport

import (
	"time"

	"github.com/google/uuid"
)

// ScheduleSessionRequest books the initial slot for a pending session.
type ScheduleSessionRequest struct {
	ScheduledAt     time.Time `json:"scheduledAt" binding:"required"`
	DurationMinutes int       `json:"durationMinutes" binding:"omitempty,min=15,max=240"`
}

// RescheduleSessionRequest moves a scheduled session to a new slot.
type RescheduleSessionRequest struct {
	ScheduledAt time.Time `json:"scheduledAt" binding:"required"`
	Reason      string    `json:"reason" binding:"omitempty,max=500"`
}

// ReassignCoachRequest swaps the coach on a scheduled session.
type ReassignCoachRequest struct {
	CoachID uuid.UUID `json:"coachId" binding:"required"`
	Reason  string    `json:"reason" binding:"omitempty,max=500"`
}

// CancelSessionRequest cancels a session. Reason is kept for the audit trail.
type CancelSessionRequest struct {
	Reason string `json:"reason" binding:"omitempty,max=500"`
}

// MarkStatusRequest moves a session along the non-orchestrated edges of the
// state machine (in_progress, completed, no_show).
type MarkStatusRequest struct {
	Status string `json:"status" binding:"required,oneof=in_progress completed no_show"`
}

// SessionResponse is the canonical API view of a session.
type SessionResponse struct {
	ID              uuid.UUID  `json:"id"`
	EnrollmentID    uuid.UUID  `json:"enrollmentId"`
	LearnerID       uuid.UUID  `json:"learnerId"`
	CoachID         uuid.UUID  `json:"coachId"`
	SequenceNo      int        `json:"sequenceNo"`
	Type            string     `json:"type"`
	Status          string     `json:"status"`
	ScheduledAt     *time.Time `json:"scheduledAt,omitempty"`
	DurationMinutes int        `json:"durationMinutes"`
	CalendarEventID *string    `json:"calendarEventId,omitempty"`
	MeetingURL      *string    `json:"meetingUrl,omitempty"`
	BotJobID        *string    `json:"botJobId,omitempty"`
	CreatedAt       time.Time  `json:"createdAt"`
	UpdatedAt       time.Time  `json:"updatedAt"`
}

// DispatchResponse is returned by the orchestrated operations. NoOp marks an
// idempotent replay that changed nothing.
type DispatchResponse struct {
	Session        SessionResponse `json:"session"`
	NoOp           bool            `json:"noOp"`
	QuotaRemaining *int            `json:"quotaRemaining,omitempty"`
	Warnings       []string        `json:"warnings,omitempty"`
}

// ChangeRequestResponse is one entry of a session's audit trail.
type ChangeRequestResponse struct {
	ID               uuid.UUID  `json:"id"`
	SessionID        uuid.UUID  `json:"sessionId"`
	EnrollmentID     uuid.UUID  `json:"enrollmentId"`
	Command          string     `json:"command"`
	OriginalAt       *time.Time `json:"originalAt,omitempty"`
	RequestedAt      *time.Time `json:"requestedAt,omitempty"`
	RequestedCoachID *uuid.UUID `json:"requestedCoachId,omitempty"`
	RequestedBy      uuid.UUID  `json:"requestedBy"`
	Outcome          string     `json:"outcome"`
	Detail           *string    `json:"detail,omitempty"`
	CreatedAt        time.Time  `json:"createdAt"`
}

// ListSessionsQuery filters the session listing.
type ListSessionsQuery struct {
	EnrollmentID *uuid.UUID `form:"enrollmentId"`
	LearnerID    *uuid.UUID `form:"learnerId"`
	CoachID      *uuid.UUID `form:"coachId"`
	Status       *string    `form:"status"`
	Type         *string    `form:"type"`
	From         *time.Time `form:"from" time_format:"2006-01-02T15:04:05Z07:00"`
	To           *time.Time `form:"to" time_format:"2006-01-02T15:04:05Z07:00"`
	Page         int        `form:"page,default=1" binding:"omitempty,min=1"`
	PageSize     int        `form:"pageSize,default=20" binding:"omitempty,min=1,max=100"`
}

// ListSessionsResponse is the paginated session listing.
type ListSessionsResponse struct {
	Items      []SessionResponse `json:"items"`
	Total      int               `json:"total"`
	Page       int               `json:"page"`
	PageSize   int               `json:"pageSize"`
	TotalPages int               `json:"totalPages"`
}
