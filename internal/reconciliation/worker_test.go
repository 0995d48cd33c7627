package reconciliation

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	enrrepo "tutorcoach_backend/internal/enrollments/repository"
	enrservice "tutorcoach_backend/internal/enrollments/service"
	"tutorcoach_backend/internal/events"
	"tutorcoach_backend/internal/paygateway"
	"tutorcoach_backend/internal/sessions/orchestrator"
	sessrepo "tutorcoach_backend/internal/sessions/repository"
	"tutorcoach_backend/platform/apperr"
	"tutorcoach_backend/platform/logger"

	"github.com/google/uuid"
)

type fakeGateway struct {
	captured []paygateway.CapturedPayment
	err      error
}

func (g *fakeGateway) ListCaptured(context.Context, time.Time, time.Time) ([]paygateway.CapturedPayment, error) {
	return g.captured, g.err
}

type fakeLedger struct {
	mu               sync.Mutex
	recorded         map[string]struct{}
	bookings         map[string]*enrrepo.Booking
	byPayment        map[string]*enrrepo.Enrollment
	activeByLearner  map[uuid.UUID]*enrrepo.Enrollment
	attachedPayments []string
}

func newFakeLedger() *fakeLedger {
	return &fakeLedger{
		recorded:        make(map[string]struct{}),
		bookings:        make(map[string]*enrrepo.Booking),
		byPayment:       make(map[string]*enrrepo.Enrollment),
		activeByLearner: make(map[uuid.UUID]*enrrepo.Enrollment),
	}
}

func (l *fakeLedger) ListRecordedPaymentIDs(context.Context, time.Time, time.Time) (map[string]struct{}, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make(map[string]struct{}, len(l.recorded))
	for id := range l.recorded {
		out[id] = struct{}{}
	}
	return out, nil
}

func (l *fakeLedger) GetBookingByOrderID(_ context.Context, orderID string) (*enrrepo.Booking, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.bookings[orderID], nil
}

func (l *fakeLedger) RecordPayment(_ context.Context, p *enrrepo.Payment) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, ok := l.recorded[p.GatewayPaymentID]; ok {
		return false, nil
	}
	l.recorded[p.GatewayPaymentID] = struct{}{}
	return true, nil
}

func (l *fakeLedger) GetByPaymentID(_ context.Context, paymentID string) (*enrrepo.Enrollment, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.byPayment[paymentID], nil
}

func (l *fakeLedger) GetActiveByLearner(_ context.Context, learnerID uuid.UUID) (*enrrepo.Enrollment, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.activeByLearner[learnerID], nil
}

func (l *fakeLedger) AttachPayment(_ context.Context, _ uuid.UUID, paymentID string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.attachedPayments = append(l.attachedPayments, paymentID)
	return nil
}

type fakeCreator struct {
	mu       sync.Mutex
	created  []enrservice.CreateInput
	conflict bool
	err      error
	sessions *fakeSessions
}

func (c *fakeCreator) Create(_ context.Context, in enrservice.CreateInput) (*enrrepo.Enrollment, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conflict {
		return nil, apperr.Conflict("learner already has an active enrollment")
	}
	if c.err != nil {
		return nil, c.err
	}
	c.created = append(c.created, in)
	enrollment := &enrrepo.Enrollment{
		ID:        uuid.New(),
		LearnerID: in.LearnerID,
		CoachID:   in.CoachID,
		PaymentID: in.PaymentID,
		Status:    enrrepo.StatusActive,
	}
	if c.sessions != nil {
		c.sessions.seed(enrollment.ID)
	}
	return enrollment, nil
}

type fakeSessions struct {
	mu      sync.Mutex
	pending map[uuid.UUID]*sessrepo.Session
}

func newFakeSessions() *fakeSessions {
	return &fakeSessions{pending: make(map[uuid.UUID]*sessrepo.Session)}
}

func (s *fakeSessions) seed(enrollmentID uuid.UUID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pending[enrollmentID] = &sessrepo.Session{
		ID:              uuid.New(),
		EnrollmentID:    enrollmentID,
		SequenceNo:      1,
		Status:          "pending",
		DurationMinutes: 60,
	}
}

func (s *fakeSessions) FirstPendingByEnrollment(_ context.Context, enrollmentID uuid.UUID) (*sessrepo.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pending[enrollmentID], nil
}

type fakeDispatcher struct {
	mu       sync.Mutex
	commands []orchestrator.Command
	err      error
}

func (d *fakeDispatcher) Dispatch(_ context.Context, command orchestrator.Command, _ any) (*orchestrator.Result, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.err != nil {
		return nil, d.err
	}
	d.commands = append(d.commands, command)
	return &orchestrator.Result{}, nil
}

type fakeRuns struct {
	mu   sync.Mutex
	runs []*Run
}

func (r *fakeRuns) CreateRun(_ context.Context, run *Run) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.runs = append(r.runs, run)
	return nil
}

type fixture struct {
	gateway    *fakeGateway
	ledger     *fakeLedger
	creator    *fakeCreator
	sessions   *fakeSessions
	dispatcher *fakeDispatcher
	runs       *fakeRuns
	worker     *Worker
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	log := logger.New("development")
	sessions := newFakeSessions()
	f := &fixture{
		gateway:    &fakeGateway{},
		ledger:     newFakeLedger(),
		creator:    &fakeCreator{sessions: sessions},
		sessions:   sessions,
		dispatcher: &fakeDispatcher{},
		runs:       &fakeRuns{},
	}
	f.worker = NewWorker(Config{
		Gateway:     f.gateway,
		Ledger:      f.ledger,
		Enrollments: f.creator,
		Sessions:    f.sessions,
		Dispatcher:  f.dispatcher,
		Runs:        f.runs,
		Bus:         events.NewInMemoryBus(log),
		Logger:      log,
		Window:      7 * 24 * time.Hour,
		Concurrency: 2,
	})
	return f
}

func capture(id, orderID string) paygateway.CapturedPayment {
	return paygateway.CapturedPayment{
		ID: id, OrderID: orderID, AmountMinorUnits: 490000, Currency: "INR",
	}
}

func TestOrphanWithoutBookingIsReportedNotRecovered(t *testing.T) {
	f := newFixture(t)
	f.gateway.captured = []paygateway.CapturedPayment{capture("pay_1", "order_1")}

	summary, err := f.worker.RunOnce(context.Background())
	if err != nil {
		t.Fatalf("RunOnce: %v", err)
	}

	if summary.Total != 1 || summary.NoBooking != 1 {
		t.Fatalf("summary = %+v, want total=1 noBooking=1", summary)
	}
	if len(f.creator.created) != 0 {
		t.Errorf("expected no enrollment created, got %d", len(f.creator.created))
	}
	if len(f.ledger.recorded) != 0 {
		t.Errorf("expected no payment recorded, got %d", len(f.ledger.recorded))
	}
	if summary.Results[0].Outcome != OutcomeNoBooking {
		t.Errorf("outcome = %s", summary.Results[0].Outcome)
	}
}

func TestFullRecoveryCreatesEnrollmentAndSchedulesFirstSession(t *testing.T) {
	f := newFixture(t)
	learnerID := uuid.New()
	coachID := uuid.New()
	f.gateway.captured = []paygateway.CapturedPayment{capture("pay_1", "order_1")}
	f.ledger.bookings["order_1"] = &enrrepo.Booking{
		ID: uuid.New(), GatewayOrderID: "order_1", LearnerID: learnerID,
		CoachID: &coachID, ProgramWeeks: 12, TotalSessions: 12,
	}

	summary, err := f.worker.RunOnce(context.Background())
	if err != nil {
		t.Fatalf("RunOnce: %v", err)
	}

	if summary.Recovered != 1 {
		t.Fatalf("recovered = %d, want 1", summary.Recovered)
	}
	if len(f.creator.created) != 1 {
		t.Fatalf("expected 1 enrollment created, got %d", len(f.creator.created))
	}
	in := f.creator.created[0]
	if in.LearnerID != learnerID || in.CoachID != coachID || in.TotalSessions != 12 {
		t.Errorf("create input = %+v", in)
	}
	if in.PaymentID == nil || *in.PaymentID != "pay_1" {
		t.Errorf("payment id not linked: %v", in.PaymentID)
	}
	if _, ok := f.ledger.recorded["pay_1"]; !ok {
		t.Error("payment ledger row not recorded")
	}
	if len(f.dispatcher.commands) != 1 || f.dispatcher.commands[0] != orchestrator.CommandSchedule {
		t.Errorf("dispatched commands = %v, want one session.schedule", f.dispatcher.commands)
	}
	if len(f.runs.runs) != 1 {
		t.Fatalf("expected 1 run row, got %d", len(f.runs.runs))
	}
}

func TestSecondRunOverSameWindowIsIdempotent(t *testing.T) {
	f := newFixture(t)
	learnerID := uuid.New()
	coachID := uuid.New()
	f.gateway.captured = []paygateway.CapturedPayment{capture("pay_1", "order_1")}
	f.ledger.bookings["order_1"] = &enrrepo.Booking{
		ID: uuid.New(), GatewayOrderID: "order_1", LearnerID: learnerID,
		CoachID: &coachID, ProgramWeeks: 12, TotalSessions: 12,
	}

	first, err := f.worker.RunOnce(context.Background())
	if err != nil {
		t.Fatalf("first RunOnce: %v", err)
	}
	if first.Recovered != 1 {
		t.Fatalf("first run recovered = %d", first.Recovered)
	}

	second, err := f.worker.RunOnce(context.Background())
	if err != nil {
		t.Fatalf("second RunOnce: %v", err)
	}
	if second.Total != 0 {
		t.Errorf("second run total = %d, want 0 orphans", second.Total)
	}
	if len(f.creator.created) != 1 {
		t.Errorf("second run created extra enrollments: %d", len(f.creator.created))
	}
}

func TestUniqueViolationDuringRecoveryIsBenignRace(t *testing.T) {
	f := newFixture(t)
	learnerID := uuid.New()
	coachID := uuid.New()
	f.creator.conflict = true
	f.gateway.captured = []paygateway.CapturedPayment{capture("pay_1", "order_1")}
	f.ledger.bookings["order_1"] = &enrrepo.Booking{
		ID: uuid.New(), GatewayOrderID: "order_1", LearnerID: learnerID,
		CoachID: &coachID, ProgramWeeks: 12, TotalSessions: 12,
	}

	summary, err := f.worker.RunOnce(context.Background())
	if err != nil {
		t.Fatalf("RunOnce: %v", err)
	}
	if summary.RaceCondition != 1 || summary.Failed != 0 {
		t.Errorf("summary = %+v, want raceCondition=1 failed=0", summary)
	}
}

func TestAlreadyEnrolledShortCircuit(t *testing.T) {
	f := newFixture(t)
	f.gateway.captured = []paygateway.CapturedPayment{capture("pay_1", "order_1")}
	f.ledger.byPayment["pay_1"] = &enrrepo.Enrollment{
		ID: uuid.New(), LearnerID: uuid.New(), Status: enrrepo.StatusActive,
	}

	summary, err := f.worker.RunOnce(context.Background())
	if err != nil {
		t.Fatalf("RunOnce: %v", err)
	}
	if summary.AlreadyEnrolled != 1 {
		t.Errorf("alreadyEnrolled = %d, want 1", summary.AlreadyEnrolled)
	}
	if len(f.creator.created) != 0 {
		t.Errorf("expected no enrollment created")
	}
}

func TestDuplicatePaymentAttachesToActiveEnrollment(t *testing.T) {
	f := newFixture(t)
	learnerID := uuid.New()
	coachID := uuid.New()
	f.gateway.captured = []paygateway.CapturedPayment{capture("pay_2", "order_2")}
	f.ledger.bookings["order_2"] = &enrrepo.Booking{
		ID: uuid.New(), GatewayOrderID: "order_2", LearnerID: learnerID,
		CoachID: &coachID, ProgramWeeks: 12, TotalSessions: 12,
	}
	f.ledger.activeByLearner[learnerID] = &enrrepo.Enrollment{
		ID: uuid.New(), LearnerID: learnerID, Status: enrrepo.StatusActive,
	}

	summary, err := f.worker.RunOnce(context.Background())
	if err != nil {
		t.Fatalf("RunOnce: %v", err)
	}
	if summary.AlreadyEnrolled != 1 {
		t.Errorf("alreadyEnrolled = %d, want 1", summary.AlreadyEnrolled)
	}
	if len(f.ledger.attachedPayments) != 1 || f.ledger.attachedPayments[0] != "pay_2" {
		t.Errorf("attached payments = %v", f.ledger.attachedPayments)
	}
	if len(f.creator.created) != 0 {
		t.Errorf("expected no new enrollment for duplicate payment")
	}
}

func TestIndividualFailureDoesNotAbortBatch(t *testing.T) {
	f := newFixture(t)
	learnerID := uuid.New()
	coachID := uuid.New()
	f.creator.err = fmt.Errorf("db down")
	f.gateway.captured = []paygateway.CapturedPayment{
		capture("pay_1", "order_1"),
		capture("pay_2", "order_missing"),
	}
	f.ledger.bookings["order_1"] = &enrrepo.Booking{
		ID: uuid.New(), GatewayOrderID: "order_1", LearnerID: learnerID,
		CoachID: &coachID, ProgramWeeks: 12, TotalSessions: 12,
	}

	summary, err := f.worker.RunOnce(context.Background())
	if err != nil {
		t.Fatalf("RunOnce must not abort on candidate failure: %v", err)
	}
	if summary.Total != 2 {
		t.Fatalf("total = %d, want 2", summary.Total)
	}
	if summary.Failed != 1 || summary.NoBooking != 1 {
		t.Errorf("summary = %+v, want failed=1 noBooking=1", summary)
	}
}
