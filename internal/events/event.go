// Package events provides domain event definitions for decoupled,
// event-driven communication between modules.
// Infrastructure (Bus, Handler) is in platform/events.
package events

import (
	"time"

	"tutorcoach_backend/platform/events"

	"github.com/google/uuid"
)

// Re-export platform types for convenience
type (
	Event       = events.Event
	Bus         = events.Bus
	Handler     = events.Handler
	HandlerFunc = events.HandlerFunc
	BaseEvent   = events.BaseEvent
)

// Re-export platform functions
var NewBaseEvent = events.NewBaseEvent

// =============================================================================
// Session Lifecycle Events
// =============================================================================

// SessionScheduled is published when a session gains a committed calendar slot.
type SessionScheduled struct {
	BaseEvent
	SessionID    uuid.UUID `json:"sessionId"`
	EnrollmentID uuid.UUID `json:"enrollmentId"`
	LearnerID    uuid.UUID `json:"learnerId"`
	CoachID      uuid.UUID `json:"coachId"`
	SequenceNo   int       `json:"sequenceNo"`
	ScheduledAt  time.Time `json:"scheduledAt"`
	MeetingURL   string    `json:"meetingUrl"`
}

func (e SessionScheduled) EventName() string { return "sessions.scheduled" }

// SessionRescheduled is published after a successful reschedule commit.
type SessionRescheduled struct {
	BaseEvent
	SessionID     uuid.UUID `json:"sessionId"`
	EnrollmentID  uuid.UUID `json:"enrollmentId"`
	LearnerID     uuid.UUID `json:"learnerId"`
	CoachID       uuid.UUID `json:"coachId"`
	PreviousAt    time.Time `json:"previousAt"`
	ScheduledAt   time.Time `json:"scheduledAt"`
	MeetingURL    string    `json:"meetingUrl"`
	QuotaUsed     int       `json:"quotaUsed"`
	QuotaRemained int       `json:"quotaRemained"`
}

func (e SessionRescheduled) EventName() string { return "sessions.rescheduled" }

// CoachReassigned is published when a session moves to a different coach.
type CoachReassigned struct {
	BaseEvent
	SessionID    uuid.UUID `json:"sessionId"`
	EnrollmentID uuid.UUID `json:"enrollmentId"`
	LearnerID    uuid.UUID `json:"learnerId"`
	OldCoachID   uuid.UUID `json:"oldCoachId"`
	NewCoachID   uuid.UUID `json:"newCoachId"`
	ScheduledAt  time.Time `json:"scheduledAt"`
}

func (e CoachReassigned) EventName() string { return "sessions.coach_reassigned" }

// SessionCancelled is published when a session reaches the cancelled state.
type SessionCancelled struct {
	BaseEvent
	SessionID    uuid.UUID `json:"sessionId"`
	EnrollmentID uuid.UUID `json:"enrollmentId"`
	LearnerID    uuid.UUID `json:"learnerId"`
	CoachID      uuid.UUID `json:"coachId"`
	ScheduledAt  time.Time `json:"scheduledAt"`
	Reason       string    `json:"reason,omitempty"`
}

func (e SessionCancelled) EventName() string { return "sessions.cancelled" }

// SessionReminderDue fires when a scheduled nudge task comes due and the
// session is still on the calendar.
type SessionReminderDue struct {
	BaseEvent
	SessionID    uuid.UUID `json:"sessionId"`
	EnrollmentID uuid.UUID `json:"enrollmentId"`
	LearnerID    uuid.UUID `json:"learnerId"`
	CoachID      uuid.UUID `json:"coachId"`
	ScheduledAt  time.Time `json:"scheduledAt"`
	MeetingURL   string    `json:"meetingUrl"`
}

func (e SessionReminderDue) EventName() string { return "sessions.reminder_due" }

// =============================================================================
// Scheduling Queue Events
// =============================================================================

// QueueItemCreated is published when the orchestrator falls back to the
// manual scheduling queue.
type QueueItemCreated struct {
	BaseEvent
	QueueItemID  uuid.UUID `json:"queueItemId"`
	SessionID    uuid.UUID `json:"sessionId"`
	EnrollmentID uuid.UUID `json:"enrollmentId"`
	Reason       string    `json:"reason"`
	Detail       string    `json:"detail,omitempty"`
}

func (e QueueItemCreated) EventName() string { return "schedqueue.item_created" }

// QueueItemResolved is published when an operator successfully resolves an item.
type QueueItemResolved struct {
	BaseEvent
	QueueItemID uuid.UUID `json:"queueItemId"`
	SessionID   uuid.UUID `json:"sessionId"`
	ResolvedBy  uuid.UUID `json:"resolvedBy"`
}

func (e QueueItemResolved) EventName() string { return "schedqueue.item_resolved" }

// =============================================================================
// Reconciliation Events
// =============================================================================

// PaymentRecovered is published for every orphaned capture the reconciliation
// worker materializes into an enrollment.
type PaymentRecovered struct {
	BaseEvent
	GatewayPaymentID string    `json:"gatewayPaymentId"`
	GatewayOrderID   string    `json:"gatewayOrderId"`
	EnrollmentID     uuid.UUID `json:"enrollmentId"`
	LearnerID        uuid.UUID `json:"learnerId"`
	AmountMinorUnits int64     `json:"amountMinorUnits"`
	Currency         string    `json:"currency"`
}

func (e PaymentRecovered) EventName() string { return "reconciliation.payment_recovered" }

// ReconciliationCompleted is published at the end of every worker run.
type ReconciliationCompleted struct {
	BaseEvent
	RunID           uuid.UUID `json:"runId"`
	Total           int       `json:"total"`
	Recovered       int       `json:"recovered"`
	AlreadyEnrolled int       `json:"alreadyEnrolled"`
	Failed          int       `json:"failed"`
}

func (e ReconciliationCompleted) EventName() string { return "reconciliation.completed" }
