package notification

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"tutorcoach_backend/internal/email"
	"tutorcoach_backend/internal/events"
	"tutorcoach_backend/platform/logger"

	"github.com/google/uuid"
)

type fakeDirectory struct {
	contacts map[uuid.UUID]*Contact
}

func (d *fakeDirectory) Lookup(_ context.Context, userID uuid.UUID) (*Contact, error) {
	c, ok := d.contacts[userID]
	if !ok {
		return nil, fmt.Errorf("no contact for %s", userID)
	}
	return c, nil
}

type sentEmail struct {
	to      string
	subject string
	body    string
}

type fakeEmail struct {
	mu   sync.Mutex
	sent []sentEmail
	fail bool
}

func (f *fakeEmail) Send(_ context.Context, to string, m email.Message) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail {
		return fmt.Errorf("smtp down")
	}
	f.sent = append(f.sent, sentEmail{to: to, subject: m.Subject, body: m.Body})
	return nil
}

type fakeWhatsApp struct {
	mu   sync.Mutex
	sent []string
}

func (f *fakeWhatsApp) SendMessage(_ context.Context, phone, message string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, phone+": "+message)
	return nil
}

func newTestNotifier(t *testing.T, dir *fakeDirectory, em *fakeEmail, wa *fakeWhatsApp) *Notifier {
	t.Helper()
	catalog, err := LoadCatalog()
	if err != nil {
		t.Fatalf("LoadCatalog: %v", err)
	}
	return NewNotifier(catalog, dir, em, wa, "ops@example.com", logger.New("development"))
}

func TestCatalogRendersAllCodes(t *testing.T) {
	catalog, err := LoadCatalog()
	if err != nil {
		t.Fatalf("LoadCatalog: %v", err)
	}

	codes := []string{
		CodeSessionScheduled,
		CodeSessionRescheduled,
		CodeCoachReassigned,
		CodeSessionCancelled,
		CodeSessionReminder,
		CodePaymentRecovered,
		CodeQueueItemCreated,
	}
	data := map[string]any{
		"Name": "Asha", "When": "tomorrow", "MeetingURL": "https://meet.example/x",
		"QuotaRemained": 2, "Reason": "coach unavailable", "Detail": "bot declined",
		"PaymentID": "pay_1", "EnrollmentID": "enr_1", "Amount": "4900 INR",
		"SessionID": "ses_1",
	}
	for _, code := range codes {
		rendered, err := catalog.Render(code, data)
		if err != nil {
			t.Fatalf("Render(%s): %v", code, err)
		}
		if rendered.Subject == "" || rendered.Body == "" {
			t.Errorf("Render(%s): empty subject or body", code)
		}
		if len(rendered.Channels) == 0 {
			t.Errorf("Render(%s): no channels", code)
		}
	}
}

func TestRenderUnknownCode(t *testing.T) {
	catalog, err := LoadCatalog()
	if err != nil {
		t.Fatalf("LoadCatalog: %v", err)
	}
	if _, err := catalog.Render("no_such_template", nil); err == nil {
		t.Fatal("expected error for unknown template code")
	}
}

func TestSessionScheduledNotifiesLearnerOnBothChannels(t *testing.T) {
	learnerID := uuid.New()
	phone := "+31612345678"
	dir := &fakeDirectory{contacts: map[uuid.UUID]*Contact{
		learnerID: {UserID: learnerID, FullName: "Asha", Email: "asha@example.com", Phone: &phone},
	}}
	em := &fakeEmail{}
	wa := &fakeWhatsApp{}
	n := newTestNotifier(t, dir, em, wa)

	err := n.onSessionScheduled(context.Background(), events.SessionScheduled{
		BaseEvent:   events.NewBaseEvent(),
		SessionID:   uuid.New(),
		LearnerID:   learnerID,
		CoachID:     uuid.New(),
		ScheduledAt: time.Date(2026, 9, 1, 10, 0, 0, 0, time.UTC),
		MeetingURL:  "https://meet.example/abc",
	})
	if err != nil {
		t.Fatalf("onSessionScheduled: %v", err)
	}

	if len(em.sent) != 1 {
		t.Fatalf("expected 1 email, got %d", len(em.sent))
	}
	if em.sent[0].to != "asha@example.com" {
		t.Errorf("email to = %s", em.sent[0].to)
	}
	if !strings.Contains(em.sent[0].body, "Asha") {
		t.Errorf("email body missing learner name: %q", em.sent[0].body)
	}
	if len(wa.sent) != 1 {
		t.Fatalf("expected 1 whatsapp message, got %d", len(wa.sent))
	}
	if !strings.Contains(wa.sent[0], "https://meet.example/abc") {
		t.Errorf("whatsapp message missing meeting link: %q", wa.sent[0])
	}
}

func TestDeliveryFailureIsSwallowed(t *testing.T) {
	learnerID := uuid.New()
	dir := &fakeDirectory{contacts: map[uuid.UUID]*Contact{
		learnerID: {UserID: learnerID, FullName: "Asha", Email: "asha@example.com"},
	}}
	em := &fakeEmail{fail: true}
	n := newTestNotifier(t, dir, em, &fakeWhatsApp{})

	err := n.onSessionScheduled(context.Background(), events.SessionScheduled{
		BaseEvent:   events.NewBaseEvent(),
		LearnerID:   learnerID,
		ScheduledAt: time.Now().Add(24 * time.Hour),
	})
	if err != nil {
		t.Fatalf("delivery failure must not surface: %v", err)
	}
}

func TestUnknownContactIsSkipped(t *testing.T) {
	em := &fakeEmail{}
	n := newTestNotifier(t, &fakeDirectory{contacts: map[uuid.UUID]*Contact{}}, em, &fakeWhatsApp{})

	err := n.onSessionCancelled(context.Background(), events.SessionCancelled{
		BaseEvent: events.NewBaseEvent(),
		LearnerID: uuid.New(),
		CoachID:   uuid.New(),
	})
	if err != nil {
		t.Fatalf("missing contact must not surface: %v", err)
	}
	if len(em.sent) != 0 {
		t.Errorf("expected no emails, got %d", len(em.sent))
	}
}

func TestQueueItemCreatedGoesToOperator(t *testing.T) {
	em := &fakeEmail{}
	n := newTestNotifier(t, &fakeDirectory{contacts: map[uuid.UUID]*Contact{}}, em, &fakeWhatsApp{})

	err := n.onQueueItemCreated(context.Background(), events.QueueItemCreated{
		BaseEvent: events.NewBaseEvent(),
		SessionID: uuid.New(),
		Reason:    "recording_not_scheduled",
		Detail:    "bot declined",
	})
	if err != nil {
		t.Fatalf("onQueueItemCreated: %v", err)
	}
	if len(em.sent) != 1 {
		t.Fatalf("expected 1 operator email, got %d", len(em.sent))
	}
	if em.sent[0].to != "ops@example.com" {
		t.Errorf("operator email to = %s", em.sent[0].to)
	}
	if !strings.Contains(em.sent[0].body, "recording_not_scheduled") {
		t.Errorf("operator email body missing reason: %q", em.sent[0].body)
	}
}
