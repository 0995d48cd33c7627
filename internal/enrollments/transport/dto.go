// Package transport defines the request/response shapes of the enrollments API.
package transport

import (
	"time"

	"github.com/google/uuid"
)

// CreateEnrollmentRequest creates an enrollment and seeds its pending sessions.
type CreateEnrollmentRequest struct {
	LearnerID      uuid.UUID `json:"learnerId" binding:"required"`
	CoachID        uuid.UUID `json:"coachId" binding:"required"`
	TotalSessions  int       `json:"totalSessions" binding:"required,min=1,max=52"`
	ProgramWeeks   int       `json:"programWeeks" binding:"required,min=1,max=52"`
	MaxReschedules int       `json:"maxReschedules" binding:"omitempty,min=0,max=10"`
	PaymentID      *string   `json:"paymentId" binding:"omitempty"`
}

// TerminateEnrollmentRequest soft-terminates an enrollment. A refund amount,
// when present, is forwarded to the payment gateway as-is.
type TerminateEnrollmentRequest struct {
	Reason           string `json:"reason" binding:"omitempty,max=500"`
	RefundMinorUnits *int64 `json:"refundMinorUnits" binding:"omitempty,min=1"`
}

// EnrollmentResponse is the canonical API view of an enrollment.
type EnrollmentResponse struct {
	ID                uuid.UUID  `json:"id"`
	LearnerID         uuid.UUID  `json:"learnerId"`
	CoachID           uuid.UUID  `json:"coachId"`
	PaymentID         *string    `json:"paymentId,omitempty"`
	ProgramStart      time.Time  `json:"programStart"`
	ProgramEnd        time.Time  `json:"programEnd"`
	TotalSessions     int        `json:"totalSessions"`
	SessionsCompleted int        `json:"sessionsCompleted"`
	MaxReschedules    int        `json:"maxReschedules"`
	ReschedulesUsed   int        `json:"reschedulesUsed"`
	Status            string     `json:"status"`
	TerminatedAt      *time.Time `json:"terminatedAt,omitempty"`
	CreatedAt         time.Time  `json:"createdAt"`
	UpdatedAt         time.Time  `json:"updatedAt"`
}

// ListEnrollmentsQuery filters the enrollment listing.
type ListEnrollmentsQuery struct {
	LearnerID *uuid.UUID `form:"learnerId"`
	CoachID   *uuid.UUID `form:"coachId"`
	Status    *string    `form:"status"`
	Page      int        `form:"page,default=1" binding:"omitempty,min=1"`
	PageSize  int        `form:"pageSize,default=20" binding:"omitempty,min=1,max=100"`
}

// ListEnrollmentsResponse is the paginated enrollment listing.
type ListEnrollmentsResponse struct {
	Items      []EnrollmentResponse `json:"items"`
	Total      int                  `json:"total"`
	Page       int                  `json:"page"`
	PageSize   int                  `json:"pageSize"`
	TotalPages int                  `json:"totalPages"`
}
