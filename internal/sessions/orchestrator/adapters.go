package orchestrator

import (
	"context"
	"time"

	"tutorcoach_backend/internal/sessions/repository"
	"tutorcoach_backend/platform/apperr"

	"github.com/google/uuid"
)

// CalendarEventRequest carries everything the calendar service needs to book
// a meeting with the coach as organizer.
type CalendarEventRequest struct {
	CoachID   uuid.UUID
	LearnerID uuid.UUID
	Title     string
	Start     time.Time
	End       time.Time
}

// CalendarEvent is the booked artifact: the provider's event id and the
// video-meeting link the bot will later join.
type CalendarEvent struct {
	EventID    string
	MeetingURL string
}

// CalendarAdapter books, moves and cancels meetings on the external
// calendar/video service.
type CalendarAdapter interface {
	CreateEvent(ctx context.Context, req CalendarEventRequest) (*CalendarEvent, error)
	UpdateEvent(ctx context.Context, eventID string, start, end time.Time) error
	CancelEvent(ctx context.Context, eventID string) error
}

// BotAdapter schedules and cancels the meeting-recording bot.
type BotAdapter interface {
	ScheduleBot(ctx context.Context, meetingURL string, joinAt time.Time, metadata map[string]string) (string, error)
	CancelBot(ctx context.Context, botID string) error
}

// SessionStore is the persistence surface the orchestrator needs. The
// concrete implementation is the sessions repository; tests use in-memory
// fakes.
type SessionStore interface {
	GetByID(ctx context.Context, id uuid.UUID) (*repository.Session, error)
	Create(ctx context.Context, s *repository.Session) error
	UpdateSchedule(ctx context.Context, s *repository.Session) error
	UpdateStatus(ctx context.Context, id uuid.UUID, status string) error
	RescheduleWithQuota(ctx context.Context, s *repository.Session, expectedUsed int) error
	RecordChange(ctx context.Context, cr *repository.ChangeRequest) error
}

// EnrollmentInfo is the narrow enrollment view the orchestrator reads for
// policy decisions.
type EnrollmentInfo struct {
	ID              uuid.UUID
	LearnerID       uuid.UUID
	Status          string
	ReschedulesUsed int
	MaxReschedules  int
}

// EnrollmentStore resolves the enrollment behind a session. Completed
// sessions bump a monotonic counter rather than recomputing an aggregate.
type EnrollmentStore interface {
	GetInfo(ctx context.Context, id uuid.UUID) (*EnrollmentInfo, error)
	IncrementCompleted(ctx context.Context, id uuid.UUID) error
}

// QueueEntry is a fallback work item handed to the manual scheduling queue.
type QueueEntry struct {
	SessionID    uuid.UUID
	EnrollmentID uuid.UUID
	Reason       string
	Detail       string
}

// QueueStore accepts fallback entries when automation cannot finish a command.
type QueueStore interface {
	Enqueue(ctx context.Context, entry QueueEntry) (uuid.UUID, error)
}

// ReminderScheduler books a future nudge for a session. Optional: when nil,
// reminders come only from the periodic sweep job.
type ReminderScheduler interface {
	ScheduleReminder(ctx context.Context, sessionID uuid.UUID, remindAt time.Time) error
}

// callPolicy declares how an adapter failure affects the command.
type callPolicy int

const (
	// mandatory calls abort the command on failure; nothing is committed.
	mandatory callPolicy = iota
	// bestEffort calls degrade the command on failure; the command still
	// succeeds and the failure is logged or queued for follow-up.
	bestEffort
)

// callAdapter runs one adapter operation under the configured timeout and
// applies the declared policy. For mandatory calls the returned error is an
// AdapterFailure; best-effort calls never return an error, only report it.
func (o *Orchestrator) callAdapter(ctx context.Context, policy callPolicy, adapter, operation string, fn func(context.Context) error) error {
	callCtx, cancel := context.WithTimeout(ctx, o.adapterTimeout)
	defer cancel()

	err := fn(callCtx)
	o.logger.AdapterCall(adapter, operation, err)
	if err == nil {
		return nil
	}
	if policy == bestEffort {
		return nil
	}
	return apperr.AdapterFailure(adapter+" "+operation+" failed", err)
}
