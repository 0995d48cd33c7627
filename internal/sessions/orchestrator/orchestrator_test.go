package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"tutorcoach_backend/internal/events"
	"tutorcoach_backend/internal/sessions/domain"
	"tutorcoach_backend/internal/sessions/repository"
	"tutorcoach_backend/platform/apperr"
	"tutorcoach_backend/platform/logger"

	"github.com/google/uuid"
)

// fakeStore implements SessionStore and EnrollmentStore in memory with the
// same compare-and-set semantics as the Postgres repository.
type fakeStore struct {
	mu          sync.Mutex
	sessions    map[uuid.UUID]repository.Session
	enrollments map[uuid.UUID]EnrollmentInfo
	changes     []repository.ChangeRequest
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		sessions:    make(map[uuid.UUID]repository.Session),
		enrollments: make(map[uuid.UUID]EnrollmentInfo),
	}
}

func (f *fakeStore) GetByID(_ context.Context, id uuid.UUID) (*repository.Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.sessions[id]
	if !ok {
		return nil, apperr.NotFound("session not found")
	}
	copied := s
	return &copied, nil
}

func (f *fakeStore) Create(_ context.Context, s *repository.Session) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sessions[s.ID] = *s
	return nil
}

func (f *fakeStore) UpdateSchedule(_ context.Context, s *repository.Session) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.sessions[s.ID]; !ok {
		return apperr.NotFound("session not found")
	}
	f.sessions[s.ID] = *s
	return nil
}

func (f *fakeStore) UpdateStatus(_ context.Context, id uuid.UUID, status string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.sessions[id]
	if !ok {
		return apperr.NotFound("session not found")
	}
	s.Status = status
	f.sessions[id] = s
	return nil
}

func (f *fakeStore) RescheduleWithQuota(_ context.Context, s *repository.Session, expectedUsed int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	enr, ok := f.enrollments[s.EnrollmentID]
	if !ok {
		return apperr.NotFound("enrollment not found")
	}
	if enr.ReschedulesUsed != expectedUsed {
		return apperr.Conflict("reschedule quota changed concurrently, retry the request")
	}
	enr.ReschedulesUsed++
	f.enrollments[s.EnrollmentID] = enr
	f.sessions[s.ID] = *s
	return nil
}

func (f *fakeStore) RecordChange(_ context.Context, cr *repository.ChangeRequest) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.changes = append(f.changes, *cr)
	return nil
}

func (f *fakeStore) IncrementCompleted(_ context.Context, id uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.enrollments[id]; !ok {
		return apperr.NotFound("enrollment not found")
	}
	return nil
}

func (f *fakeStore) GetInfo(_ context.Context, id uuid.UUID) (*EnrollmentInfo, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	enr, ok := f.enrollments[id]
	if !ok {
		return nil, apperr.NotFound("enrollment not found")
	}
	copied := enr
	return &copied, nil
}

type fakeCalendar struct {
	mu          sync.Mutex
	failCreate  bool
	failUpdate  bool
	failCancel  bool
	createCalls int
	updateCalls int
	cancelCalls int
}

func (f *fakeCalendar) CreateEvent(_ context.Context, _ CalendarEventRequest) (*CalendarEvent, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.createCalls++
	if f.failCreate {
		return nil, errors.New("calendar timeout")
	}
	n := f.createCalls
	return &CalendarEvent{
		EventID:    fmt.Sprintf("evt-%d", n),
		MeetingURL: fmt.Sprintf("https://meet.example.com/%d", n),
	}, nil
}

func (f *fakeCalendar) UpdateEvent(_ context.Context, _ string, _, _ time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.updateCalls++
	if f.failUpdate {
		return errors.New("calendar timeout")
	}
	return nil
}

func (f *fakeCalendar) CancelEvent(_ context.Context, _ string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cancelCalls++
	if f.failCancel {
		return errors.New("calendar timeout")
	}
	return nil
}

type fakeBot struct {
	mu            sync.Mutex
	failSchedule  bool
	scheduleCalls int
	cancelCalls   int
}

func (f *fakeBot) ScheduleBot(_ context.Context, _ string, _ time.Time, _ map[string]string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.scheduleCalls++
	if f.failSchedule {
		return "", errors.New("bot service unavailable")
	}
	return fmt.Sprintf("bot-%d", f.scheduleCalls), nil
}

func (f *fakeBot) CancelBot(_ context.Context, _ string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cancelCalls++
	return nil
}

type fakeQueue struct {
	mu      sync.Mutex
	entries []QueueEntry
}

func (f *fakeQueue) Enqueue(_ context.Context, entry QueueEntry) (uuid.UUID, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.entries = append(f.entries, entry)
	return uuid.New(), nil
}

type fixture struct {
	store    *fakeStore
	calendar *fakeCalendar
	bot      *fakeBot
	queue    *fakeQueue
	orch     *Orchestrator
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	log := logger.New("development")
	store := newFakeStore()
	calendar := &fakeCalendar{}
	bot := &fakeBot{}
	queue := &fakeQueue{}
	orch := New(Config{
		Sessions:       store,
		Enrollments:    store,
		Queue:          queue,
		Calendar:       calendar,
		Bot:            bot,
		Bus:            events.NewInMemoryBus(log),
		Logger:         log,
		AdapterTimeout: time.Second,
	})
	return &fixture{store: store, calendar: calendar, bot: bot, queue: queue, orch: orch}
}

func (fx *fixture) seed(status string, scheduledAt *time.Time, used, max int) *repository.Session {
	enrID := uuid.New()
	fx.store.enrollments[enrID] = EnrollmentInfo{
		ID:              enrID,
		LearnerID:       uuid.New(),
		Status:          "active",
		ReschedulesUsed: used,
		MaxReschedules:  max,
	}
	s := repository.Session{
		ID:              uuid.New(),
		EnrollmentID:    enrID,
		LearnerID:       fx.store.enrollments[enrID].LearnerID,
		CoachID:         uuid.New(),
		SequenceNo:      1,
		Type:            string(domain.TypeCoaching),
		Status:          status,
		ScheduledAt:     scheduledAt,
		DurationMinutes: 60,
		CreatedAt:       time.Now(),
		UpdatedAt:       time.Now(),
	}
	if status == string(domain.StatusScheduled) {
		eventID := "evt-seed"
		meetingURL := "https://meet.example.com/seed"
		botID := "bot-seed"
		s.CalendarEventID = &eventID
		s.MeetingURL = &meetingURL
		s.BotJobID = &botID
	}
	fx.store.sessions[s.ID] = s
	return &s
}

func TestScheduleBooksPendingSession(t *testing.T) {
	fx := newFixture(t)
	session := fx.seed(string(domain.StatusPending), nil, 0, 3)
	at := time.Now().Add(48 * time.Hour)

	res, err := fx.orch.Dispatch(context.Background(), CommandSchedule, SchedulePayload{
		SessionID:   session.ID,
		RequestedBy: uuid.New(),
		ScheduledAt: at,
	})
	if err != nil {
		t.Fatalf("schedule failed: %v", err)
	}
	if res.NoOp {
		t.Fatalf("expected a real apply, got no-op")
	}
	if res.Session.Status != string(domain.StatusScheduled) {
		t.Fatalf("expected scheduled, got %s", res.Session.Status)
	}
	if res.Session.CalendarEventID == nil || res.Session.MeetingURL == nil {
		t.Fatalf("expected calendar artifacts on the session")
	}
	if res.Session.BotJobID == nil {
		t.Fatalf("expected a recording bot job")
	}
}

func TestScheduleReplayIsIdempotent(t *testing.T) {
	fx := newFixture(t)
	session := fx.seed(string(domain.StatusPending), nil, 0, 3)
	at := time.Now().Add(48 * time.Hour)
	payload := SchedulePayload{SessionID: session.ID, RequestedBy: uuid.New(), ScheduledAt: at}

	if _, err := fx.orch.Dispatch(context.Background(), CommandSchedule, payload); err != nil {
		t.Fatalf("first schedule failed: %v", err)
	}
	res, err := fx.orch.Dispatch(context.Background(), CommandSchedule, payload)
	if err != nil {
		t.Fatalf("replay failed: %v", err)
	}
	if !res.NoOp {
		t.Fatalf("expected replay to be a no-op")
	}
	if fx.calendar.createCalls != 1 {
		t.Fatalf("expected one calendar event, got %d", fx.calendar.createCalls)
	}
}

func TestScheduleCalendarFailureLeavesSessionPending(t *testing.T) {
	fx := newFixture(t)
	fx.calendar.failCreate = true
	session := fx.seed(string(domain.StatusPending), nil, 0, 3)

	_, err := fx.orch.Dispatch(context.Background(), CommandSchedule, SchedulePayload{
		SessionID:   session.ID,
		RequestedBy: uuid.New(),
		ScheduledAt: time.Now().Add(48 * time.Hour),
	})
	if !apperr.Is(err, apperr.KindAdapterFailure) {
		t.Fatalf("expected adapter failure, got %v", err)
	}

	stored, _ := fx.store.GetByID(context.Background(), session.ID)
	if stored.Status != string(domain.StatusPending) {
		t.Fatalf("session must stay pending, got %s", stored.Status)
	}
	if fx.bot.scheduleCalls != 0 {
		t.Fatalf("bot must not be called after calendar failure")
	}
}

func TestRescheduleConsumesQuota(t *testing.T) {
	fx := newFixture(t)
	at := time.Now().Add(48 * time.Hour)
	session := fx.seed(string(domain.StatusScheduled), &at, 2, 3)
	newAt := time.Now().Add(72 * time.Hour)

	res, err := fx.orch.Dispatch(context.Background(), CommandReschedule, ReschedulePayload{
		SessionID:   session.ID,
		RequestedBy: uuid.New(),
		ScheduledAt: newAt,
	})
	if err != nil {
		t.Fatalf("reschedule failed: %v", err)
	}
	if res.QuotaRemaining == nil || *res.QuotaRemaining != 0 {
		t.Fatalf("expected zero quota remaining")
	}

	enr := fx.store.enrollments[session.EnrollmentID]
	if enr.ReschedulesUsed != 3 {
		t.Fatalf("expected reschedulesUsed=3, got %d", enr.ReschedulesUsed)
	}
	stored, _ := fx.store.GetByID(context.Background(), session.ID)
	if stored.ScheduledAt == nil || !stored.ScheduledAt.Equal(newAt) {
		t.Fatalf("expected the new time to be committed")
	}
}

func TestRescheduleDeniedLeavesEverythingUntouched(t *testing.T) {
	fx := newFixture(t)
	at := time.Now().Add(48 * time.Hour)
	session := fx.seed(string(domain.StatusScheduled), &at, 3, 3)

	_, err := fx.orch.Dispatch(context.Background(), CommandReschedule, ReschedulePayload{
		SessionID:   session.ID,
		RequestedBy: uuid.New(),
		ScheduledAt: time.Now().Add(72 * time.Hour),
	})
	if !apperr.Is(err, apperr.KindPolicyDenied) {
		t.Fatalf("expected policy denial, got %v", err)
	}

	stored, _ := fx.store.GetByID(context.Background(), session.ID)
	if !stored.ScheduledAt.Equal(at) {
		t.Fatalf("denied reschedule must not move the session")
	}
	if fx.store.enrollments[session.EnrollmentID].ReschedulesUsed != 3 {
		t.Fatalf("denied reschedule must not touch the counter")
	}
	if fx.calendar.updateCalls != 0 || fx.calendar.createCalls != 0 {
		t.Fatalf("denied reschedule must not reach the calendar")
	}
}

func TestRescheduleBotFailureDegradesToQueue(t *testing.T) {
	fx := newFixture(t)
	fx.bot.failSchedule = true
	at := time.Now().Add(48 * time.Hour)
	session := fx.seed(string(domain.StatusScheduled), &at, 0, 3)
	newAt := time.Now().Add(72 * time.Hour)

	res, err := fx.orch.Dispatch(context.Background(), CommandReschedule, ReschedulePayload{
		SessionID:   session.ID,
		RequestedBy: uuid.New(),
		ScheduledAt: newAt,
	})
	if err != nil {
		t.Fatalf("bot failure must not fail the command: %v", err)
	}
	if len(res.Warnings) == 0 {
		t.Fatalf("expected a degradation warning")
	}

	stored, _ := fx.store.GetByID(context.Background(), session.ID)
	if !stored.ScheduledAt.Equal(newAt) {
		t.Fatalf("expected the new time despite the bot failure")
	}
	if len(fx.queue.entries) != 1 {
		t.Fatalf("expected exactly one queue entry, got %d", len(fx.queue.entries))
	}
	entry := fx.queue.entries[0]
	if entry.Reason != ReasonRecordingNotScheduled {
		t.Fatalf("unexpected queue reason %q", entry.Reason)
	}
	if entry.SessionID != session.ID {
		t.Fatalf("queue entry must reference the session")
	}
}

func TestConcurrentReschedulesNeverExceedQuota(t *testing.T) {
	fx := newFixture(t)
	at := time.Now().Add(48 * time.Hour)
	session := fx.seed(string(domain.StatusScheduled), &at, 0, 1)

	const attempts = 8
	var wg sync.WaitGroup
	results := make([]error, attempts)
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := fx.orch.Dispatch(context.Background(), CommandReschedule, ReschedulePayload{
				SessionID:   session.ID,
				RequestedBy: uuid.New(),
				ScheduledAt: time.Now().Add(time.Duration(72+i) * time.Hour),
			})
			results[i] = err
		}(i)
	}
	wg.Wait()

	successes := 0
	for _, err := range results {
		switch {
		case err == nil:
			successes++
		case apperr.Is(err, apperr.KindPolicyDenied), apperr.Is(err, apperr.KindConflict):
		default:
			t.Fatalf("unexpected error kind: %v", err)
		}
	}
	if successes != 1 {
		t.Fatalf("expected exactly one winning reschedule, got %d", successes)
	}
	if used := fx.store.enrollments[session.EnrollmentID].ReschedulesUsed; used != 1 {
		t.Fatalf("counter must never exceed the quota, got %d", used)
	}
}

func TestReassignCoachRebooksUnderNewCoach(t *testing.T) {
	fx := newFixture(t)
	at := time.Now().Add(48 * time.Hour)
	session := fx.seed(string(domain.StatusScheduled), &at, 0, 3)
	newCoach := uuid.New()

	res, err := fx.orch.Dispatch(context.Background(), CommandReassignCoach, ReassignPayload{
		SessionID:   session.ID,
		RequestedBy: uuid.New(),
		NewCoachID:  newCoach,
	})
	if err != nil {
		t.Fatalf("reassign failed: %v", err)
	}
	if res.Session.CoachID != newCoach {
		t.Fatalf("expected the new coach on the session")
	}
	if fx.calendar.createCalls != 1 {
		t.Fatalf("expected one new calendar event under the new coach")
	}
	if fx.calendar.cancelCalls != 1 {
		t.Fatalf("expected the old event to be torn down")
	}
}

func TestReassignSameCoachIsNoOp(t *testing.T) {
	fx := newFixture(t)
	at := time.Now().Add(48 * time.Hour)
	session := fx.seed(string(domain.StatusScheduled), &at, 0, 3)

	res, err := fx.orch.Dispatch(context.Background(), CommandReassignCoach, ReassignPayload{
		SessionID:   session.ID,
		RequestedBy: uuid.New(),
		NewCoachID:  session.CoachID,
	})
	if err != nil {
		t.Fatalf("reassign no-op failed: %v", err)
	}
	if !res.NoOp {
		t.Fatalf("expected no-op when the coach is unchanged")
	}
	if fx.calendar.createCalls != 0 {
		t.Fatalf("no-op must not touch the calendar")
	}
}

func TestCancelIsAuthoritativeDespiteAdapterFailures(t *testing.T) {
	fx := newFixture(t)
	fx.calendar.failCancel = true
	at := time.Now().Add(48 * time.Hour)
	session := fx.seed(string(domain.StatusScheduled), &at, 0, 3)

	res, err := fx.orch.Dispatch(context.Background(), CommandCancel, CancelPayload{
		SessionID:   session.ID,
		RequestedBy: uuid.New(),
		Reason:      "parent request",
	})
	if err != nil {
		t.Fatalf("cancel failed: %v", err)
	}
	if res.Session.Status != string(domain.StatusCancelled) {
		t.Fatalf("expected cancelled, got %s", res.Session.Status)
	}

	// Replay is a no-op.
	res, err = fx.orch.Dispatch(context.Background(), CommandCancel, CancelPayload{
		SessionID:   session.ID,
		RequestedBy: uuid.New(),
	})
	if err != nil || !res.NoOp {
		t.Fatalf("expected idempotent cancel replay, got res=%+v err=%v", res, err)
	}
}

func TestCancelCompletedSessionIsDenied(t *testing.T) {
	fx := newFixture(t)
	at := time.Now().Add(-48 * time.Hour)
	session := fx.seed(string(domain.StatusCompleted), &at, 0, 3)

	_, err := fx.orch.Dispatch(context.Background(), CommandCancel, CancelPayload{
		SessionID:   session.ID,
		RequestedBy: uuid.New(),
	})
	if !apperr.Is(err, apperr.KindPolicyDenied) {
		t.Fatalf("expected policy denial for a completed session, got %v", err)
	}
}

func TestDispatchRejectsMismatchedPayload(t *testing.T) {
	fx := newFixture(t)
	_, err := fx.orch.Dispatch(context.Background(), CommandSchedule, CancelPayload{})
	if !apperr.Is(err, apperr.KindValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}

	_, err = fx.orch.Dispatch(context.Background(), Command("session.unknown"), nil)
	if !apperr.Is(err, apperr.KindValidation) {
		t.Fatalf("expected validation error for unknown command, got %v", err)
	}
}

func TestDispatchUnknownSession(t *testing.T) {
	fx := newFixture(t)
	_, err := fx.orch.Dispatch(context.Background(), CommandCancel, CancelPayload{SessionID: uuid.New()})
	if !apperr.Is(err, apperr.KindNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}
