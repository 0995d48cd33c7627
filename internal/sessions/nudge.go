package sessions

import (
	"context"
	"time"

	"tutorcoach_backend/internal/events"
	"tutorcoach_backend/internal/sessions/domain"
	"tutorcoach_backend/internal/sessions/repository"
	"tutorcoach_backend/platform/logger"

	"github.com/google/uuid"
)

// Nudger publishes SessionReminderDue for sessions approaching their slot.
// The per-session reminder task is the primary path; this sweep is the
// fallback run by the jobs endpoint and the periodic scheduler.
type Nudger struct {
	repo     *repository.Repository
	bus      events.Bus
	logger   *logger.Logger
	leadTime time.Duration
	// sweepSpan bounds one sweep window so an hourly trigger does not
	// re-nudge the same sessions.
	sweepSpan time.Duration
}

// NewNudger creates a nudger. leadTime is how far before the session the
// reminder fires.
func NewNudger(repo *repository.Repository, bus events.Bus, log *logger.Logger, leadTime time.Duration) *Nudger {
	if leadTime <= 0 {
		leadTime = 24 * time.Hour
	}
	return &Nudger{
		repo:      repo,
		bus:       bus,
		logger:    log,
		leadTime:  leadTime,
		sweepSpan: time.Hour,
	}
}

// RunOnce publishes reminders for sessions whose nudge moment falls inside
// the current sweep window. Returns the number of reminders published.
func (n *Nudger) RunOnce(ctx context.Context) (int, error) {
	now := time.Now()
	from := now.Add(n.leadTime)
	to := from.Add(n.sweepSpan)

	sessions, err := n.repo.ListDueForReminder(ctx, from, to)
	if err != nil {
		return 0, err
	}

	for i := range sessions {
		s := sessions[i]
		if s.ScheduledAt == nil {
			continue
		}
		meetingURL := ""
		if s.MeetingURL != nil {
			meetingURL = *s.MeetingURL
		}
		n.bus.Publish(ctx, events.SessionReminderDue{
			BaseEvent:    events.NewBaseEvent(),
			SessionID:    s.ID,
			EnrollmentID: s.EnrollmentID,
			LearnerID:    s.LearnerID,
			CoachID:      s.CoachID,
			ScheduledAt:  *s.ScheduledAt,
			MeetingURL:   meetingURL,
		})
	}

	n.logger.Info("session nudges published", "count", len(sessions))
	return len(sessions), nil
}

// Remind publishes a reminder for one session if it is still on the
// calendar. Used by the per-session reminder task at fire time.
func (n *Nudger) Remind(ctx context.Context, sessionID uuid.UUID) error {
	s, err := n.repo.GetByID(ctx, sessionID)
	if err != nil {
		return err
	}
	if s.Status != string(domain.StatusScheduled) || s.ScheduledAt == nil {
		n.logger.Debug("reminder skipped, session no longer scheduled",
			"session_id", sessionID.String(), "status", s.Status)
		return nil
	}

	meetingURL := ""
	if s.MeetingURL != nil {
		meetingURL = *s.MeetingURL
	}
	n.bus.Publish(ctx, events.SessionReminderDue{
		BaseEvent:    events.NewBaseEvent(),
		SessionID:    s.ID,
		EnrollmentID: s.EnrollmentID,
		LearnerID:    s.LearnerID,
		CoachID:      s.CoachID,
		ScheduledAt:  *s.ScheduledAt,
		MeetingURL:   meetingURL,
	})
	return nil
}
