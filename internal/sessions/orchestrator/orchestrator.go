// Package orchestrator is the command dispatcher for the session lifecycle.
// It validates intents against the policy engine and current session state,
// calls the external adapters in a fixed order, and commits the resulting
// transition. Adapter order is always Calendar before Bot: the bot needs the
// meeting link the calendar call produces.
package orchestrator

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"tutorcoach_backend/internal/events"
	"tutorcoach_backend/internal/sessions/domain"
	"tutorcoach_backend/internal/sessions/repository"
	"tutorcoach_backend/platform/apperr"
	"tutorcoach_backend/platform/logger"

	"github.com/google/uuid"
)

// Command identifies one orchestrated lifecycle operation.
type Command string

const (
	CommandSchedule      Command = "session.schedule"
	CommandReschedule    Command = "session.reschedule"
	CommandReassignCoach Command = "session.reassignCoach"
	CommandCancel        Command = "session.cancel"
)

// Queue reasons written on fallback.
const (
	ReasonRecordingNotScheduled = "recording_not_scheduled"
)

// SchedulePayload books the initial slot for a pending session.
type SchedulePayload struct {
	SessionID       uuid.UUID
	RequestedBy     uuid.UUID
	ScheduledAt     time.Time
	DurationMinutes int
	RequestID       string
}

// ReschedulePayload moves a scheduled session to a new slot.
type ReschedulePayload struct {
	SessionID   uuid.UUID
	RequestedBy uuid.UUID
	ScheduledAt time.Time
	Reason      string
	RequestID   string
}

// ReassignPayload swaps the coach on a scheduled session.
type ReassignPayload struct {
	SessionID   uuid.UUID
	RequestedBy uuid.UUID
	NewCoachID  uuid.UUID
	Reason      string
	RequestID   string
}

// CancelPayload cancels a session.
type CancelPayload struct {
	SessionID   uuid.UUID
	RequestedBy uuid.UUID
	Reason      string
	RequestID   string
}

// Result is the outcome of one dispatch. NoOp marks an idempotent replay:
// the requested target state was already in place and no adapter was called.
type Result struct {
	Session        *repository.Session
	NoOp           bool
	QuotaRemaining *int
	Warnings       []string
}

// Orchestrator coordinates session lifecycle commands across the store and
// the external adapters.
type Orchestrator struct {
	sessions       SessionStore
	enrollments    EnrollmentStore
	queue          QueueStore
	calendar       CalendarAdapter
	bot            BotAdapter
	reminders      ReminderScheduler
	bus            events.Bus
	logger         *logger.Logger
	adapterTimeout time.Duration
	nudgeLead      time.Duration
	now            func() time.Time
}

// Config bundles the orchestrator's dependencies.
type Config struct {
	Sessions       SessionStore
	Enrollments    EnrollmentStore
	Queue          QueueStore
	Calendar       CalendarAdapter
	Bot            BotAdapter
	Reminders      ReminderScheduler
	Bus            events.Bus
	Logger         *logger.Logger
	AdapterTimeout time.Duration
	NudgeLeadTime  time.Duration
}

// New creates an orchestrator.
func New(cfg Config) *Orchestrator {
	timeout := cfg.AdapterTimeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	nudgeLead := cfg.NudgeLeadTime
	if nudgeLead <= 0 {
		nudgeLead = 24 * time.Hour
	}
	return &Orchestrator{
		sessions:       cfg.Sessions,
		enrollments:    cfg.Enrollments,
		queue:          cfg.Queue,
		calendar:       cfg.Calendar,
		bot:            cfg.Bot,
		reminders:      cfg.Reminders,
		bus:            cfg.Bus,
		logger:         cfg.Logger,
		adapterTimeout: timeout,
		nudgeLead:      nudgeLead,
		now:            time.Now,
	}
}

// Dispatch is the single entry point. The payload must match the command;
// a mismatch is a validation error, never a partial apply. The request id on
// the payload is used for log correlation only: idempotency comes from
// comparing the requested target state against the current row.
func (o *Orchestrator) Dispatch(ctx context.Context, command Command, payload any) (*Result, error) {
	switch command {
	case CommandSchedule:
		p, ok := payload.(SchedulePayload)
		if !ok {
			return nil, apperr.Validation("schedule command requires a schedule payload")
		}
		return o.schedule(ctx, p)
	case CommandReschedule:
		p, ok := payload.(ReschedulePayload)
		if !ok {
			return nil, apperr.Validation("reschedule command requires a reschedule payload")
		}
		return o.reschedule(ctx, p)
	case CommandReassignCoach:
		p, ok := payload.(ReassignPayload)
		if !ok {
			return nil, apperr.Validation("reassignCoach command requires a reassign payload")
		}
		return o.reassignCoach(ctx, p)
	case CommandCancel:
		p, ok := payload.(CancelPayload)
		if !ok {
			return nil, apperr.Validation("cancel command requires a cancel payload")
		}
		return o.cancel(ctx, p)
	default:
		return nil, apperr.Validation(fmt.Sprintf("unknown command %q", command))
	}
}

func (o *Orchestrator) schedule(ctx context.Context, p SchedulePayload) (*Result, error) {
	if p.SessionID == uuid.Nil {
		return nil, apperr.Validation("sessionId is required")
	}
	if p.ScheduledAt.IsZero() {
		return nil, apperr.Validation("scheduledAt is required")
	}
	duration := p.DurationMinutes
	if duration <= 0 {
		duration = 60
	}

	session, err := o.sessions.GetByID(ctx, p.SessionID)
	if err != nil {
		return nil, err
	}
	originalAt := session.ScheduledAt

	change := repository.ChangeRequest{
		SessionID:    session.ID,
		EnrollmentID: session.EnrollmentID,
		Command:      string(CommandSchedule),
		OriginalAt:   originalAt,
		RequestedAt:  &p.ScheduledAt,
		RequestedBy:  p.RequestedBy,
	}

	// Idempotent replay: the slot is already booked with the same time.
	if session.Status == string(domain.StatusScheduled) &&
		session.ScheduledAt != nil && session.ScheduledAt.Equal(p.ScheduledAt) &&
		session.CalendarEventID != nil {
		change.Outcome = repository.OutcomeNoOp
		o.recordChange(ctx, change)
		o.logger.Dispatch(string(CommandSchedule), p.RequestID, session.ID.String(), "no_op")
		return &Result{Session: session, NoOp: true}, nil
	}

	if !domain.CanTransition(domain.Status(session.Status), domain.StatusScheduled, false) {
		reason := fmt.Sprintf("session is %s and cannot be scheduled", session.Status)
		change.Outcome = repository.OutcomeDenied
		change.Detail = detailPtr(reason)
		o.recordChange(ctx, change)
		return nil, apperr.PolicyDenied(reason)
	}

	end := p.ScheduledAt.Add(time.Duration(duration) * time.Minute)
	var event *CalendarEvent
	err = o.callAdapter(ctx, mandatory, "calendar", "createEvent", func(ctx context.Context) error {
		var callErr error
		event, callErr = o.calendar.CreateEvent(ctx, CalendarEventRequest{
			CoachID:   session.CoachID,
			LearnerID: session.LearnerID,
			Title:     fmt.Sprintf("Coaching session #%d", session.SequenceNo),
			Start:     p.ScheduledAt,
			End:       end,
		})
		return callErr
	})
	if err != nil {
		change.Outcome = repository.OutcomeFailed
		change.Detail = detailPtr(err.Error())
		o.recordChange(ctx, change)
		o.logger.Dispatch(string(CommandSchedule), p.RequestID, session.ID.String(), "adapter_failure")
		return nil, err
	}

	botID, warnings := o.scheduleRecordingBot(ctx, session, event.MeetingURL, p.ScheduledAt)

	scheduledAt := p.ScheduledAt
	session.Status = string(domain.StatusScheduled)
	session.ScheduledAt = &scheduledAt
	session.DurationMinutes = duration
	session.CalendarEventID = &event.EventID
	session.MeetingURL = &event.MeetingURL
	session.BotJobID = botID
	session.UpdatedAt = o.now()

	if err := o.sessions.UpdateSchedule(ctx, session); err != nil {
		return nil, err
	}

	outcome := repository.OutcomeApplied
	if len(warnings) > 0 {
		outcome = repository.OutcomeDegraded
	}
	change.Outcome = outcome
	o.recordChange(ctx, change)
	o.logger.Dispatch(string(CommandSchedule), p.RequestID, session.ID.String(), outcome)

	o.bus.Publish(ctx, events.SessionScheduled{
		BaseEvent:    events.NewBaseEvent(),
		SessionID:    session.ID,
		EnrollmentID: session.EnrollmentID,
		LearnerID:    session.LearnerID,
		CoachID:      session.CoachID,
		SequenceNo:   session.SequenceNo,
		ScheduledAt:  scheduledAt,
		MeetingURL:   event.MeetingURL,
	})
	o.scheduleReminder(ctx, session)

	return &Result{Session: session, Warnings: warnings}, nil
}

func (o *Orchestrator) reschedule(ctx context.Context, p ReschedulePayload) (*Result, error) {
	if p.SessionID == uuid.Nil {
		return nil, apperr.Validation("sessionId is required")
	}
	if p.ScheduledAt.IsZero() {
		return nil, apperr.Validation("scheduledAt is required")
	}

	session, err := o.sessions.GetByID(ctx, p.SessionID)
	if err != nil {
		return nil, err
	}

	change := repository.ChangeRequest{
		SessionID:    session.ID,
		EnrollmentID: session.EnrollmentID,
		Command:      string(CommandReschedule),
		OriginalAt:   session.ScheduledAt,
		RequestedAt:  &p.ScheduledAt,
		RequestedBy:  p.RequestedBy,
	}

	// Idempotent replay: the session already sits at the requested time.
	if session.Status == string(domain.StatusScheduled) &&
		session.ScheduledAt != nil && session.ScheduledAt.Equal(p.ScheduledAt) {
		change.Outcome = repository.OutcomeNoOp
		o.recordChange(ctx, change)
		o.logger.Dispatch(string(CommandReschedule), p.RequestID, session.ID.String(), "no_op")
		return &Result{Session: session, NoOp: true}, nil
	}

	enrollment, err := o.enrollments.GetInfo(ctx, session.EnrollmentID)
	if err != nil {
		return nil, err
	}

	sessionAt := time.Time{}
	if session.ScheduledAt != nil {
		sessionAt = *session.ScheduledAt
	}
	decision := domain.EvaluateReschedule(domain.RescheduleInput{
		SessionStatus:   domain.Status(session.Status),
		SessionAt:       sessionAt,
		RequestedAt:     p.ScheduledAt,
		ReschedulesUsed: enrollment.ReschedulesUsed,
		MaxReschedules:  enrollment.MaxReschedules,
		Now:             o.now(),
	})
	if !decision.Allowed {
		change.Outcome = repository.OutcomeDenied
		change.Detail = detailPtr(decision.Reason)
		o.recordChange(ctx, change)
		o.logger.Dispatch(string(CommandReschedule), p.RequestID, session.ID.String(), "policy_denied")
		return nil, apperr.PolicyDenied(decision.Reason)
	}

	end := p.ScheduledAt.Add(time.Duration(session.DurationMinutes) * time.Minute)
	var event *CalendarEvent
	if session.CalendarEventID != nil {
		err = o.callAdapter(ctx, mandatory, "calendar", "updateEvent", func(ctx context.Context) error {
			return o.calendar.UpdateEvent(ctx, *session.CalendarEventID, p.ScheduledAt, end)
		})
		if err == nil {
			meetingURL := ""
			if session.MeetingURL != nil {
				meetingURL = *session.MeetingURL
			}
			event = &CalendarEvent{EventID: *session.CalendarEventID, MeetingURL: meetingURL}
		}
	} else {
		err = o.callAdapter(ctx, mandatory, "calendar", "createEvent", func(ctx context.Context) error {
			var callErr error
			event, callErr = o.calendar.CreateEvent(ctx, CalendarEventRequest{
				CoachID:   session.CoachID,
				LearnerID: session.LearnerID,
				Title:     fmt.Sprintf("Coaching session #%d", session.SequenceNo),
				Start:     p.ScheduledAt,
				End:       end,
			})
			return callErr
		})
	}
	if err != nil {
		change.Outcome = repository.OutcomeFailed
		change.Detail = detailPtr(err.Error())
		o.recordChange(ctx, change)
		o.logger.Dispatch(string(CommandReschedule), p.RequestID, session.ID.String(), "adapter_failure")
		return nil, err
	}

	// Move the recording bot to the new time. The old bot job is cancelled
	// and a new one scheduled; both calls are best-effort.
	if session.BotJobID != nil {
		oldBot := *session.BotJobID
		_ = o.callAdapter(ctx, bestEffort, "bot", "cancelBot", func(ctx context.Context) error {
			return o.bot.CancelBot(ctx, oldBot)
		})
	}
	botID, warnings := o.scheduleRecordingBot(ctx, session, event.MeetingURL, p.ScheduledAt)

	previousAt := sessionAt
	scheduledAt := p.ScheduledAt
	session.Status = string(domain.StatusScheduled)
	session.ScheduledAt = &scheduledAt
	session.CalendarEventID = &event.EventID
	session.MeetingURL = &event.MeetingURL
	session.BotJobID = botID
	session.UpdatedAt = o.now()

	// The quota increment and the session update commit together. A stale
	// counter read fails the whole command with a conflict.
	if err := o.sessions.RescheduleWithQuota(ctx, session, enrollment.ReschedulesUsed); err != nil {
		change.Outcome = repository.OutcomeFailed
		change.Detail = detailPtr(err.Error())
		o.recordChange(ctx, change)
		o.logger.Dispatch(string(CommandReschedule), p.RequestID, session.ID.String(), "conflict")
		return nil, err
	}

	outcome := repository.OutcomeApplied
	if len(warnings) > 0 {
		outcome = repository.OutcomeDegraded
	}
	change.Outcome = outcome
	change.Detail = detailPtr(p.Reason)
	o.recordChange(ctx, change)
	o.logger.Dispatch(string(CommandReschedule), p.RequestID, session.ID.String(), outcome)

	remaining := decision.Remaining
	o.bus.Publish(ctx, events.SessionRescheduled{
		BaseEvent:     events.NewBaseEvent(),
		SessionID:     session.ID,
		EnrollmentID:  session.EnrollmentID,
		LearnerID:     session.LearnerID,
		CoachID:       session.CoachID,
		PreviousAt:    previousAt,
		ScheduledAt:   scheduledAt,
		MeetingURL:    event.MeetingURL,
		QuotaUsed:     enrollment.ReschedulesUsed + 1,
		QuotaRemained: remaining,
	})
	o.scheduleReminder(ctx, session)

	return &Result{Session: session, QuotaRemaining: &remaining, Warnings: warnings}, nil
}

func (o *Orchestrator) reassignCoach(ctx context.Context, p ReassignPayload) (*Result, error) {
	if p.SessionID == uuid.Nil {
		return nil, apperr.Validation("sessionId is required")
	}
	if p.NewCoachID == uuid.Nil {
		return nil, apperr.Validation("coachId is required")
	}

	session, err := o.sessions.GetByID(ctx, p.SessionID)
	if err != nil {
		return nil, err
	}

	change := repository.ChangeRequest{
		SessionID:        session.ID,
		EnrollmentID:     session.EnrollmentID,
		Command:          string(CommandReassignCoach),
		OriginalAt:       session.ScheduledAt,
		RequestedCoachID: &p.NewCoachID,
		RequestedBy:      p.RequestedBy,
	}

	if session.CoachID == p.NewCoachID {
		change.Outcome = repository.OutcomeNoOp
		o.recordChange(ctx, change)
		o.logger.Dispatch(string(CommandReassignCoach), p.RequestID, session.ID.String(), "no_op")
		return &Result{Session: session, NoOp: true}, nil
	}

	if session.Status != string(domain.StatusScheduled) || session.ScheduledAt == nil {
		reason := fmt.Sprintf("session is %s; only scheduled sessions can change coach", session.Status)
		change.Outcome = repository.OutcomeDenied
		change.Detail = detailPtr(reason)
		o.recordChange(ctx, change)
		return nil, apperr.PolicyDenied(reason)
	}

	// The calendar service keys the organizer to the event, so a coach change
	// means a fresh event under the new coach. The old event and bot are torn
	// down best-effort once the new event exists.
	start := *session.ScheduledAt
	end := start.Add(time.Duration(session.DurationMinutes) * time.Minute)
	var event *CalendarEvent
	err = o.callAdapter(ctx, mandatory, "calendar", "createEvent", func(ctx context.Context) error {
		var callErr error
		event, callErr = o.calendar.CreateEvent(ctx, CalendarEventRequest{
			CoachID:   p.NewCoachID,
			LearnerID: session.LearnerID,
			Title:     fmt.Sprintf("Coaching session #%d", session.SequenceNo),
			Start:     start,
			End:       end,
		})
		return callErr
	})
	if err != nil {
		change.Outcome = repository.OutcomeFailed
		change.Detail = detailPtr(err.Error())
		o.recordChange(ctx, change)
		o.logger.Dispatch(string(CommandReassignCoach), p.RequestID, session.ID.String(), "adapter_failure")
		return nil, err
	}

	if session.CalendarEventID != nil {
		oldEvent := *session.CalendarEventID
		_ = o.callAdapter(ctx, bestEffort, "calendar", "cancelEvent", func(ctx context.Context) error {
			return o.calendar.CancelEvent(ctx, oldEvent)
		})
	}
	if session.BotJobID != nil {
		oldBot := *session.BotJobID
		_ = o.callAdapter(ctx, bestEffort, "bot", "cancelBot", func(ctx context.Context) error {
			return o.bot.CancelBot(ctx, oldBot)
		})
	}
	botID, warnings := o.scheduleRecordingBot(ctx, session, event.MeetingURL, start)

	oldCoachID := session.CoachID
	session.CoachID = p.NewCoachID
	session.CalendarEventID = &event.EventID
	session.MeetingURL = &event.MeetingURL
	session.BotJobID = botID
	session.UpdatedAt = o.now()

	if err := o.sessions.UpdateSchedule(ctx, session); err != nil {
		return nil, err
	}

	outcome := repository.OutcomeApplied
	if len(warnings) > 0 {
		outcome = repository.OutcomeDegraded
	}
	change.Outcome = outcome
	change.Detail = detailPtr(p.Reason)
	o.recordChange(ctx, change)
	o.logger.Dispatch(string(CommandReassignCoach), p.RequestID, session.ID.String(), outcome)

	// Coach notifications ride on the event bus and are never awaited.
	o.bus.Publish(ctx, events.CoachReassigned{
		BaseEvent:    events.NewBaseEvent(),
		SessionID:    session.ID,
		EnrollmentID: session.EnrollmentID,
		LearnerID:    session.LearnerID,
		OldCoachID:   oldCoachID,
		NewCoachID:   p.NewCoachID,
		ScheduledAt:  start,
	})

	return &Result{Session: session, Warnings: warnings}, nil
}

func (o *Orchestrator) cancel(ctx context.Context, p CancelPayload) (*Result, error) {
	if p.SessionID == uuid.Nil {
		return nil, apperr.Validation("sessionId is required")
	}

	session, err := o.sessions.GetByID(ctx, p.SessionID)
	if err != nil {
		return nil, err
	}

	change := repository.ChangeRequest{
		SessionID:    session.ID,
		EnrollmentID: session.EnrollmentID,
		Command:      string(CommandCancel),
		OriginalAt:   session.ScheduledAt,
		RequestedBy:  p.RequestedBy,
	}

	if session.Status == string(domain.StatusCancelled) {
		change.Outcome = repository.OutcomeNoOp
		o.recordChange(ctx, change)
		o.logger.Dispatch(string(CommandCancel), p.RequestID, session.ID.String(), "no_op")
		return &Result{Session: session, NoOp: true}, nil
	}

	if !domain.CanTransition(domain.Status(session.Status), domain.StatusCancelled, false) {
		reason := fmt.Sprintf("session is %s and cannot be cancelled", session.Status)
		change.Outcome = repository.OutcomeDenied
		change.Detail = detailPtr(reason)
		o.recordChange(ctx, change)
		return nil, apperr.PolicyDenied(reason)
	}

	// External teardown is best-effort. The local status change is
	// authoritative even when the remote cancellations fail.
	if session.CalendarEventID != nil {
		eventID := *session.CalendarEventID
		_ = o.callAdapter(ctx, bestEffort, "calendar", "cancelEvent", func(ctx context.Context) error {
			return o.calendar.CancelEvent(ctx, eventID)
		})
	}
	if session.BotJobID != nil {
		botID := *session.BotJobID
		_ = o.callAdapter(ctx, bestEffort, "bot", "cancelBot", func(ctx context.Context) error {
			return o.bot.CancelBot(ctx, botID)
		})
	}

	if err := o.sessions.UpdateStatus(ctx, session.ID, string(domain.StatusCancelled)); err != nil {
		return nil, err
	}
	session.Status = string(domain.StatusCancelled)
	session.UpdatedAt = o.now()

	change.Outcome = repository.OutcomeApplied
	change.Detail = detailPtr(p.Reason)
	o.recordChange(ctx, change)
	o.logger.Dispatch(string(CommandCancel), p.RequestID, session.ID.String(), repository.OutcomeApplied)

	scheduledAt := time.Time{}
	if session.ScheduledAt != nil {
		scheduledAt = *session.ScheduledAt
	}
	o.bus.Publish(ctx, events.SessionCancelled{
		BaseEvent:    events.NewBaseEvent(),
		SessionID:    session.ID,
		EnrollmentID: session.EnrollmentID,
		LearnerID:    session.LearnerID,
		CoachID:      session.CoachID,
		ScheduledAt:  scheduledAt,
		Reason:       p.Reason,
	})

	return &Result{Session: session}, nil
}

// MarkStatus moves a session along the non-orchestrated edges of the state
// machine (in_progress, completed, no_show). No adapters are involved;
// completing a session bumps the enrollment's completed counter.
func (o *Orchestrator) MarkStatus(ctx context.Context, sessionID uuid.UUID, status string) (*repository.Session, error) {
	if !domain.ValidStatus(domain.Status(status)) {
		return nil, apperr.Validation(fmt.Sprintf("unknown status %q", status))
	}

	session, err := o.sessions.GetByID(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if session.Status == status {
		return session, nil
	}
	if !domain.CanTransition(domain.Status(session.Status), domain.Status(status), false) {
		return nil, apperr.PolicyDenied(fmt.Sprintf("cannot move session from %s to %s", session.Status, status))
	}

	if err := o.sessions.UpdateStatus(ctx, session.ID, status); err != nil {
		return nil, err
	}
	session.Status = status
	session.UpdatedAt = o.now()

	if status == string(domain.StatusCompleted) {
		if err := o.enrollments.IncrementCompleted(ctx, session.EnrollmentID); err != nil {
			o.logger.DatabaseError("increment_completed_sessions", err)
		}
	}
	return session, nil
}

// scheduleRecordingBot schedules the recording bot for the meeting. The call
// is best-effort: on failure the command still succeeds, a manual queue item
// flags the missing recording, and the caller gets a warning.
func (o *Orchestrator) scheduleRecordingBot(ctx context.Context, session *repository.Session, meetingURL string, joinAt time.Time) (*string, []string) {
	var botID string
	botErr := error(nil)
	_ = o.callAdapter(ctx, bestEffort, "bot", "scheduleBot", func(ctx context.Context) error {
		var callErr error
		botID, callErr = o.bot.ScheduleBot(ctx, meetingURL, joinAt, map[string]string{
			"sessionId":  session.ID.String(),
			"sequenceNo": strconv.Itoa(session.SequenceNo),
		})
		botErr = callErr
		return callErr
	})
	if botErr == nil {
		return &botID, nil
	}

	detail := fmt.Sprintf("recording bot could not be scheduled: %v", botErr)
	itemID, qErr := o.queue.Enqueue(ctx, QueueEntry{
		SessionID:    session.ID,
		EnrollmentID: session.EnrollmentID,
		Reason:       ReasonRecordingNotScheduled,
		Detail:       detail,
	})
	if qErr != nil {
		o.logger.Error("failed to enqueue scheduling fallback", "session_id", session.ID.String(), "error", qErr.Error())
	} else {
		o.bus.Publish(ctx, events.QueueItemCreated{
			BaseEvent:    events.NewBaseEvent(),
			QueueItemID:  itemID,
			SessionID:    session.ID,
			EnrollmentID: session.EnrollmentID,
			Reason:       ReasonRecordingNotScheduled,
			Detail:       detail,
		})
	}
	return nil, []string{detail}
}

// scheduleReminder books a nudge ahead of the session. Best-effort: the
// periodic sweep job catches anything missed here.
func (o *Orchestrator) scheduleReminder(ctx context.Context, session *repository.Session) {
	if o.reminders == nil || session.ScheduledAt == nil {
		return
	}
	remindAt := session.ScheduledAt.Add(-o.nudgeLead)
	if remindAt.Before(o.now()) {
		return
	}
	if err := o.reminders.ScheduleReminder(ctx, session.ID, remindAt); err != nil {
		o.logger.Warn("reminder scheduling failed", "session_id", session.ID.String(), "error", err.Error())
	}
}

// recordChange appends to the audit trail. Audit writes never fail a command.
func (o *Orchestrator) recordChange(ctx context.Context, cr repository.ChangeRequest) {
	cr.ID = uuid.New()
	cr.CreatedAt = o.now()
	if err := o.sessions.RecordChange(ctx, &cr); err != nil {
		o.logger.DatabaseError("record_change_request", err)
	}
}

// detailPtr returns nil for an empty detail string.
func detailPtr(detail string) *string {
	if detail == "" {
		return nil
	}
	return &detail
}
