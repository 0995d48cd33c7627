package reconciliation

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
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
	"golang.org/x/sync/errgroup"
)

// Per-candidate outcomes.
const (
	OutcomeRecovered       = "recovered"
	OutcomeAlreadyEnrolled = "already_enrolled"
	OutcomeNoBooking       = "no_booking"
	OutcomeRaceCondition   = "race_condition"
	OutcomeFailed          = "failed"
)

// Gateway lists captured payments from the payment provider.
type Gateway interface {
	ListCaptured(ctx context.Context, from, to time.Time) ([]paygateway.CapturedPayment, error)
}

// Ledger is the slice of the enrollments repository the worker diffs and
// writes against.
type Ledger interface {
	ListRecordedPaymentIDs(ctx context.Context, from, to time.Time) (map[string]struct{}, error)
	GetBookingByOrderID(ctx context.Context, orderID string) (*enrrepo.Booking, error)
	RecordPayment(ctx context.Context, p *enrrepo.Payment) (bool, error)
	GetByPaymentID(ctx context.Context, paymentID string) (*enrrepo.Enrollment, error)
	GetActiveByLearner(ctx context.Context, learnerID uuid.UUID) (*enrrepo.Enrollment, error)
	AttachPayment(ctx context.Context, id uuid.UUID, paymentID string) error
}

// EnrollmentCreator materializes an enrollment with its seeded sessions.
type EnrollmentCreator interface {
	Create(ctx context.Context, in enrservice.CreateInput) (*enrrepo.Enrollment, error)
}

// SessionFinder locates the seeded session the recovery path schedules first.
type SessionFinder interface {
	FirstPendingByEnrollment(ctx context.Context, enrollmentID uuid.UUID) (*sessrepo.Session, error)
}

// Dispatcher issues lifecycle commands; the concrete implementation is the
// scheduling orchestrator.
type Dispatcher interface {
	Dispatch(ctx context.Context, command orchestrator.Command, payload any) (*orchestrator.Result, error)
}

// RunStore persists run summaries.
type RunStore interface {
	CreateRun(ctx context.Context, run *Run) error
}

// ReportArchive stores the JSON report of a run. May be nil when object
// storage is not configured.
type ReportArchive interface {
	UploadReport(ctx context.Context, fileKey string, data []byte) error
}

// CandidateResult is the outcome for one orphaned capture.
type CandidateResult struct {
	PaymentID string `json:"paymentId"`
	OrderID   string `json:"orderId"`
	Outcome   string `json:"outcome"`
	Detail    string `json:"detail,omitempty"`
}

// Summary aggregates one reconciliation run.
type Summary struct {
	RunID           uuid.UUID         `json:"runId"`
	WindowFrom      time.Time         `json:"windowFrom"`
	WindowTo        time.Time         `json:"windowTo"`
	Total           int               `json:"total"`
	Recovered       int               `json:"recovered"`
	AlreadyEnrolled int               `json:"alreadyEnrolled"`
	NoBooking       int               `json:"noBooking"`
	RaceCondition   int               `json:"raceCondition"`
	Failed          int               `json:"failed"`
	Results         []CandidateResult `json:"results"`
}

// Config wires a Worker.
type Config struct {
	Gateway     Gateway
	Ledger      Ledger
	Enrollments EnrollmentCreator
	Sessions    SessionFinder
	Dispatcher  Dispatcher
	Runs        RunStore
	Archive     ReportArchive
	Bus         events.Bus
	Logger      *logger.Logger
	Window      time.Duration
	Concurrency int
}

// Worker diffs the gateway's captured-payment ledger against local payment
// records and recovers orphaned captures.
type Worker struct {
	gateway     Gateway
	ledger      Ledger
	enrollments EnrollmentCreator
	sessions    SessionFinder
	dispatcher  Dispatcher
	runs        RunStore
	archive     ReportArchive
	bus         events.Bus
	logger      *logger.Logger
	window      time.Duration
	concurrency int
	now         func() time.Time
}

// NewWorker creates a reconciliation worker.
func NewWorker(cfg Config) *Worker {
	window := cfg.Window
	if window <= 0 {
		window = 7 * 24 * time.Hour
	}
	concurrency := cfg.Concurrency
	if concurrency <= 0 {
		concurrency = 4
	}
	return &Worker{
		gateway:     cfg.Gateway,
		ledger:      cfg.Ledger,
		enrollments: cfg.Enrollments,
		sessions:    cfg.Sessions,
		dispatcher:  cfg.Dispatcher,
		runs:        cfg.Runs,
		archive:     cfg.Archive,
		bus:         cfg.Bus,
		logger:      cfg.Logger,
		window:      window,
		concurrency: concurrency,
		now:         time.Now,
	}
}

// RunOnce executes one reconciliation pass. Per-candidate errors are counted
// as failed and never abort the batch; only being unable to list either side
// of the diff fails the run.
func (w *Worker) RunOnce(ctx context.Context) (*Summary, error) {
	startedAt := w.now()
	windowTo := startedAt
	windowFrom := startedAt.Add(-w.window)

	captured, err := w.gateway.ListCaptured(ctx, windowFrom, windowTo)
	if err != nil {
		return nil, fmt.Errorf("list captured payments: %w", err)
	}
	recorded, err := w.ledger.ListRecordedPaymentIDs(ctx, windowFrom, windowTo)
	if err != nil {
		return nil, err
	}

	var orphans []paygateway.CapturedPayment
	for _, capture := range captured {
		if _, ok := recorded[capture.ID]; !ok {
			orphans = append(orphans, capture)
		}
	}

	summary := &Summary{
		RunID:      uuid.New(),
		WindowFrom: windowFrom,
		WindowTo:   windowTo,
		Total:      len(orphans),
	}

	var mu sync.Mutex
	group, groupCtx := errgroup.WithContext(ctx)
	group.SetLimit(w.concurrency)
	for _, orphan := range orphans {
		candidate := orphan
		group.Go(func() error {
			result := w.recover(groupCtx, candidate)
			mu.Lock()
			summary.Results = append(summary.Results, result)
			mu.Unlock()
			return nil
		})
	}
	_ = group.Wait()

	for _, result := range summary.Results {
		switch result.Outcome {
		case OutcomeRecovered:
			summary.Recovered++
		case OutcomeAlreadyEnrolled:
			summary.AlreadyEnrolled++
		case OutcomeNoBooking:
			summary.NoBooking++
		case OutcomeRaceCondition:
			summary.RaceCondition++
		case OutcomeFailed:
			summary.Failed++
		}
	}

	reportKey := w.archiveReport(ctx, summary)
	w.persistRun(ctx, summary, reportKey, startedAt)

	w.bus.Publish(ctx, events.ReconciliationCompleted{
		BaseEvent:       events.NewBaseEvent(),
		RunID:           summary.RunID,
		Total:           summary.Total,
		Recovered:       summary.Recovered,
		AlreadyEnrolled: summary.AlreadyEnrolled,
		Failed:          summary.Failed,
	})

	w.logger.JobRun("reconciliation", float64(w.now().Sub(startedAt).Milliseconds()),
		"run_id", summary.RunID.String(),
		"total", summary.Total,
		"recovered", summary.Recovered,
		"already_enrolled", summary.AlreadyEnrolled,
		"no_booking", summary.NoBooking,
		"race_condition", summary.RaceCondition,
		"failed", summary.Failed,
	)
	return summary, nil
}

// recover runs the per-candidate recovery ladder. Returning a result with
// OutcomeFailed is the only way an individual candidate surfaces an error.
func (w *Worker) recover(ctx context.Context, capture paygateway.CapturedPayment) CandidateResult {
	result := CandidateResult{PaymentID: capture.ID, OrderID: capture.OrderID}

	// Idempotent short-circuit: an enrollment already funded by this payment.
	existing, err := w.ledger.GetByPaymentID(ctx, capture.ID)
	if err != nil {
		return w.failed(result, "lookup by payment id", err)
	}
	if existing != nil {
		if err := w.recordPayment(ctx, capture, existing.LearnerID); err != nil {
			return w.failed(result, "record payment", err)
		}
		result.Outcome = OutcomeAlreadyEnrolled
		return result
	}

	booking, err := w.ledger.GetBookingByOrderID(ctx, capture.OrderID)
	if err != nil {
		return w.failed(result, "lookup booking", err)
	}
	if booking == nil {
		result.Outcome = OutcomeNoBooking
		result.Detail = "no booking for gateway order, needs manual review"
		w.logger.Warn("reconciliation orphan has no booking",
			"payment_id", capture.ID, "order_id", capture.OrderID)
		return result
	}

	// Duplicate-payment self-heal: the learner is already in an active
	// program, so this capture funds that one.
	active, err := w.ledger.GetActiveByLearner(ctx, booking.LearnerID)
	if err != nil {
		return w.failed(result, "lookup active enrollment", err)
	}
	if active != nil {
		if err := w.ledger.AttachPayment(ctx, active.ID, capture.ID); err != nil && !apperr.Is(err, apperr.KindConflict) {
			return w.failed(result, "attach payment", err)
		}
		if err := w.recordPayment(ctx, capture, booking.LearnerID); err != nil {
			return w.failed(result, "record payment", err)
		}
		result.Outcome = OutcomeAlreadyEnrolled
		result.Detail = "attached to existing active enrollment"
		return result
	}

	if booking.CoachID == nil {
		result.Outcome = OutcomeFailed
		result.Detail = "booking carries no coach, needs manual assignment"
		return result
	}

	if err := w.recordPayment(ctx, capture, booking.LearnerID); err != nil {
		return w.failed(result, "record payment", err)
	}

	paymentID := capture.ID
	enrollment, err := w.enrollments.Create(ctx, enrservice.CreateInput{
		LearnerID:     booking.LearnerID,
		CoachID:       *booking.CoachID,
		TotalSessions: booking.TotalSessions,
		ProgramWeeks:  booking.ProgramWeeks,
		PaymentID:     &paymentID,
		ProgramStart:  w.now(),
	})
	if err != nil {
		// Another concurrent path created the enrollment first.
		if apperr.Is(err, apperr.KindConflict) || enrrepo.IsUniqueViolation(err) {
			result.Outcome = OutcomeRaceCondition
			return result
		}
		return w.failed(result, "create enrollment", err)
	}

	w.scheduleFirstSession(ctx, enrollment, &result)

	w.bus.Publish(ctx, events.PaymentRecovered{
		BaseEvent:        events.NewBaseEvent(),
		GatewayPaymentID: capture.ID,
		GatewayOrderID:   capture.OrderID,
		EnrollmentID:     enrollment.ID,
		LearnerID:        enrollment.LearnerID,
		AmountMinorUnits: capture.AmountMinorUnits,
		Currency:         capture.Currency,
	})

	w.logger.Info("payment recovered",
		"payment_id", capture.ID,
		"enrollment_id", enrollment.ID.String(),
		"learner_id", enrollment.LearnerID.String(),
	)

	result.Outcome = OutcomeRecovered
	return result
}

// scheduleFirstSession dispatches the initial schedule command for the
// recovered enrollment. The slot is a placeholder two days out; a calendar
// failure leaves the session pending and the orchestrator reports it, so the
// recovery itself still counts as successful.
func (w *Worker) scheduleFirstSession(ctx context.Context, enrollment *enrrepo.Enrollment, result *CandidateResult) {
	session, err := w.sessions.FirstPendingByEnrollment(ctx, enrollment.ID)
	if err != nil || session == nil {
		if err != nil {
			w.logger.Warn("recovered enrollment has no schedulable session",
				"enrollment_id", enrollment.ID.String(), "error", err.Error())
		}
		return
	}

	slot := w.now().Add(48 * time.Hour).Truncate(time.Hour)
	_, err = w.dispatcher.Dispatch(ctx, orchestrator.CommandSchedule, orchestrator.SchedulePayload{
		SessionID:       session.ID,
		ScheduledAt:     slot,
		DurationMinutes: session.DurationMinutes,
	})
	if err != nil {
		result.Detail = "initial schedule failed: " + err.Error()
		w.logger.Warn("initial schedule dispatch failed",
			"enrollment_id", enrollment.ID.String(),
			"session_id", session.ID.String(),
			"error", err.Error(),
		)
	}
}

func (w *Worker) recordPayment(ctx context.Context, capture paygateway.CapturedPayment, learnerID uuid.UUID) error {
	_, err := w.ledger.RecordPayment(ctx, &enrrepo.Payment{
		ID:               uuid.New(),
		GatewayPaymentID: capture.ID,
		GatewayOrderID:   capture.OrderID,
		AmountMinorUnits: capture.AmountMinorUnits,
		Currency:         capture.Currency,
		LearnerID:        learnerID,
		RecordedAt:       w.now(),
	})
	return err
}

func (w *Worker) failed(result CandidateResult, step string, err error) CandidateResult {
	result.Outcome = OutcomeFailed
	result.Detail = step + ": " + err.Error()
	w.logger.Error("reconciliation candidate failed",
		"payment_id", result.PaymentID, "step", step, "error", err.Error())
	return result
}

// archiveReport uploads the run report to object storage, best-effort.
func (w *Worker) archiveReport(ctx context.Context, summary *Summary) *string {
	if w.archive == nil {
		return nil
	}
	data, err := json.MarshalIndent(summary, "", "  ")
	if err != nil {
		w.logger.Error("marshal reconciliation report", "error", err.Error())
		return nil
	}
	key := fmt.Sprintf("runs/%s/%s.json", summary.WindowTo.Format("2006-01-02"), summary.RunID)
	if err := w.archive.UploadReport(ctx, key, data); err != nil {
		w.logger.Warn("archive reconciliation report failed", "error", err.Error())
		return nil
	}
	return &key
}

func (w *Worker) persistRun(ctx context.Context, summary *Summary, reportKey *string, startedAt time.Time) {
	run := &Run{
		ID:              summary.RunID,
		WindowFrom:      summary.WindowFrom,
		WindowTo:        summary.WindowTo,
		Total:           summary.Total,
		Recovered:       summary.Recovered,
		AlreadyEnrolled: summary.AlreadyEnrolled,
		NoBooking:       summary.NoBooking,
		RaceCondition:   summary.RaceCondition,
		Failed:          summary.Failed,
		ReportKey:       reportKey,
		StartedAt:       startedAt,
		FinishedAt:      w.now(),
	}
	if err := w.runs.CreateRun(ctx, run); err != nil {
		w.logger.DatabaseError("create_reconciliation_run", err)
	}
}
