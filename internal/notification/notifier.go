// Package notification turns domain events into outbound messages. Delivery
// is fire-and-forget: a failed send is logged and never blocks or fails the
// operation that raised the event.
package notification

import (
	"context"
	"fmt"
	"time"

	"tutorcoach_backend/internal/email"
	"tutorcoach_backend/internal/events"
	"tutorcoach_backend/platform/logger"

	"github.com/google/uuid"
)

// EmailSender delivers rendered email messages.
type EmailSender interface {
	Send(ctx context.Context, toEmail string, m email.Message) error
}

// WhatsAppSender delivers short text messages.
type WhatsAppSender interface {
	SendMessage(ctx context.Context, phoneNumber string, message string) error
}

// Notifier subscribes to domain events and fans them out to email and
// WhatsApp using the embedded template catalog.
type Notifier struct {
	catalog       *Catalog
	contacts      ContactDirectory
	email         EmailSender
	whatsapp      WhatsAppSender
	operatorEmail string
	logger        *logger.Logger
}

// NewNotifier creates a notifier. Either sender may be a disabled (nil)
// client; sends through it fail and are logged like any other delivery error.
func NewNotifier(catalog *Catalog, contacts ContactDirectory, emailSender EmailSender, waSender WhatsAppSender, operatorEmail string, log *logger.Logger) *Notifier {
	return &Notifier{
		catalog:       catalog,
		contacts:      contacts,
		email:         emailSender,
		whatsapp:      waSender,
		operatorEmail: operatorEmail,
		logger:        log,
	}
}

// Register subscribes the notifier to every event it knows how to render.
func (n *Notifier) Register(bus events.Bus) {
	bus.Subscribe(events.SessionScheduled{}.EventName(), events.HandlerFunc(n.onSessionScheduled))
	bus.Subscribe(events.SessionRescheduled{}.EventName(), events.HandlerFunc(n.onSessionRescheduled))
	bus.Subscribe(events.CoachReassigned{}.EventName(), events.HandlerFunc(n.onCoachReassigned))
	bus.Subscribe(events.SessionCancelled{}.EventName(), events.HandlerFunc(n.onSessionCancelled))
	bus.Subscribe(events.SessionReminderDue{}.EventName(), events.HandlerFunc(n.onSessionReminderDue))
	bus.Subscribe(events.PaymentRecovered{}.EventName(), events.HandlerFunc(n.onPaymentRecovered))
	bus.Subscribe(events.QueueItemCreated{}.EventName(), events.HandlerFunc(n.onQueueItemCreated))
}

func (n *Notifier) onSessionScheduled(ctx context.Context, event events.Event) error {
	e, ok := event.(events.SessionScheduled)
	if !ok {
		return fmt.Errorf("unexpected event type %T", event)
	}
	n.notifyUser(ctx, e.LearnerID, CodeSessionScheduled, map[string]any{
		"When":       formatWhen(e.ScheduledAt),
		"MeetingURL": e.MeetingURL,
	}, e.MeetingURL)
	return nil
}

func (n *Notifier) onSessionRescheduled(ctx context.Context, event events.Event) error {
	e, ok := event.(events.SessionRescheduled)
	if !ok {
		return fmt.Errorf("unexpected event type %T", event)
	}
	data := map[string]any{
		"When":          formatWhen(e.ScheduledAt),
		"MeetingURL":    e.MeetingURL,
		"QuotaRemained": e.QuotaRemained,
	}
	n.notifyUser(ctx, e.LearnerID, CodeSessionRescheduled, data, e.MeetingURL)
	n.notifyUser(ctx, e.CoachID, CodeSessionRescheduled, data, e.MeetingURL)
	return nil
}

func (n *Notifier) onCoachReassigned(ctx context.Context, event events.Event) error {
	e, ok := event.(events.CoachReassigned)
	if !ok {
		return fmt.Errorf("unexpected event type %T", event)
	}
	data := map[string]any{"When": formatWhen(e.ScheduledAt)}
	n.notifyUser(ctx, e.LearnerID, CodeCoachReassigned, data, "")
	n.notifyUser(ctx, e.OldCoachID, CodeCoachReassigned, data, "")
	n.notifyUser(ctx, e.NewCoachID, CodeCoachReassigned, data, "")
	return nil
}

func (n *Notifier) onSessionCancelled(ctx context.Context, event events.Event) error {
	e, ok := event.(events.SessionCancelled)
	if !ok {
		return fmt.Errorf("unexpected event type %T", event)
	}
	data := map[string]any{
		"When":   formatWhen(e.ScheduledAt),
		"Reason": e.Reason,
	}
	n.notifyUser(ctx, e.LearnerID, CodeSessionCancelled, data, "")
	n.notifyUser(ctx, e.CoachID, CodeSessionCancelled, data, "")
	return nil
}

func (n *Notifier) onSessionReminderDue(ctx context.Context, event events.Event) error {
	e, ok := event.(events.SessionReminderDue)
	if !ok {
		return fmt.Errorf("unexpected event type %T", event)
	}
	data := map[string]any{
		"When":       formatWhen(e.ScheduledAt),
		"MeetingURL": e.MeetingURL,
	}
	n.notifyUser(ctx, e.LearnerID, CodeSessionReminder, data, e.MeetingURL)
	n.notifyUser(ctx, e.CoachID, CodeSessionReminder, data, e.MeetingURL)
	return nil
}

func (n *Notifier) onPaymentRecovered(ctx context.Context, event events.Event) error {
	e, ok := event.(events.PaymentRecovered)
	if !ok {
		return fmt.Errorf("unexpected event type %T", event)
	}
	n.notifyOperator(ctx, CodePaymentRecovered, map[string]any{
		"PaymentID":    e.GatewayPaymentID,
		"EnrollmentID": e.EnrollmentID.String(),
		"Amount":       fmt.Sprintf("%d %s (minor units)", e.AmountMinorUnits, e.Currency),
	})
	return nil
}

func (n *Notifier) onQueueItemCreated(ctx context.Context, event events.Event) error {
	e, ok := event.(events.QueueItemCreated)
	if !ok {
		return fmt.Errorf("unexpected event type %T", event)
	}
	n.notifyOperator(ctx, CodeQueueItemCreated, map[string]any{
		"SessionID": e.SessionID.String(),
		"Reason":    e.Reason,
		"Detail":    e.Detail,
	})
	return nil
}

// notifyUser resolves the contact and sends on every channel the template
// names. Per-channel failures are logged and swallowed.
func (n *Notifier) notifyUser(ctx context.Context, userID uuid.UUID, code string, data map[string]any, ctaURL string) {
	contact, err := n.contacts.Lookup(ctx, userID)
	if err != nil {
		n.logger.Warn("notification skipped, contact lookup failed",
			"code", code, "user_id", userID.String(), "error", err.Error())
		return
	}

	data["Name"] = contact.FullName
	rendered, err := n.catalog.Render(code, data)
	if err != nil {
		n.logger.Error("notification template render failed", "code", code, "error", err.Error())
		return
	}

	for _, channel := range rendered.Channels {
		switch channel {
		case ChannelEmail:
			if contact.Email == "" {
				continue
			}
			msg := email.Message{
				Subject:  rendered.Subject,
				Heading:  rendered.Heading,
				Body:     rendered.Body,
				CTALabel: rendered.CTALabel,
				CTAURL:   ctaURL,
			}
			if err := n.email.Send(ctx, contact.Email, msg); err != nil {
				n.logger.Warn("email notification failed",
					"code", code, "user_id", userID.String(), "error", err.Error())
			}
		case ChannelWhatsApp:
			if contact.Phone == nil || rendered.WhatsApp == "" {
				continue
			}
			if err := n.whatsapp.SendMessage(ctx, *contact.Phone, rendered.WhatsApp); err != nil {
				n.logger.Warn("whatsapp notification failed",
					"code", code, "user_id", userID.String(), "error", err.Error())
			}
		}
	}
}

// notifyOperator sends an email to the configured operator inbox.
func (n *Notifier) notifyOperator(ctx context.Context, code string, data map[string]any) {
	if n.operatorEmail == "" {
		return
	}

	rendered, err := n.catalog.Render(code, data)
	if err != nil {
		n.logger.Error("notification template render failed", "code", code, "error", err.Error())
		return
	}

	msg := email.Message{
		Subject: rendered.Subject,
		Heading: rendered.Heading,
		Body:    rendered.Body,
	}
	if err := n.email.Send(ctx, n.operatorEmail, msg); err != nil {
		n.logger.Warn("operator notification failed", "code", code, "error", err.Error())
	}
}

func formatWhen(t time.Time) string {
	return t.Format("Monday, 2 January 2006 at 15:04 MST")
}
