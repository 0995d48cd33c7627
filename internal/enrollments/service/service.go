// Package service implements enrollment business logic: program creation
// with seeded sessions, termination and operator listings.
package service

import (
	"context"
	"time"

	"tutorcoach_backend/internal/enrollments/repository"
	"tutorcoach_backend/internal/enrollments/transport"
	sessdomain "tutorcoach_backend/internal/sessions/domain"
	sessrepo "tutorcoach_backend/internal/sessions/repository"
	"tutorcoach_backend/platform/apperr"
	"tutorcoach_backend/platform/logger"

	"github.com/google/uuid"
)

// SessionSeeder creates the pending session rows for a new enrollment.
// The concrete implementation is the sessions repository.
type SessionSeeder interface {
	Create(ctx context.Context, s *sessrepo.Session) error
}

// Refunder issues gateway refunds. The concrete implementation is the
// payment gateway client; may be nil when the gateway is not configured.
type Refunder interface {
	Refund(ctx context.Context, paymentID string, amountMinorUnits int64, notes string) (string, error)
}

// Service provides enrollment operations.
type Service struct {
	repo     *repository.Repository
	sessions SessionSeeder
	refunder Refunder
	logger   *logger.Logger
}

// New creates a new enrollments service.
func New(repo *repository.Repository, sessions SessionSeeder, refunder Refunder, log *logger.Logger) *Service {
	return &Service{repo: repo, sessions: sessions, refunder: refunder, logger: log}
}

// CreateInput carries everything needed to materialize an enrollment with
// its pending sessions. Used by the admin endpoint and by the reconciliation
// worker's recovery path.
type CreateInput struct {
	LearnerID      uuid.UUID
	CoachID        uuid.UUID
	TotalSessions  int
	ProgramWeeks   int
	MaxReschedules int
	PaymentID      *string
	ProgramStart   time.Time
}

// Create materializes an enrollment and its pending sessions. The partial
// unique index keeps a learner to one active enrollment; a duplicate
// surfaces as Conflict, which the reconciliation worker treats as a benign
// race.
func (s *Service) Create(ctx context.Context, in CreateInput) (*repository.Enrollment, error) {
	if in.LearnerID == uuid.Nil || in.CoachID == uuid.Nil {
		return nil, apperr.Validation("learnerId and coachId are required")
	}
	if in.TotalSessions <= 0 {
		return nil, apperr.Validation("totalSessions must be positive")
	}
	if in.ProgramWeeks <= 0 {
		in.ProgramWeeks = in.TotalSessions
	}
	if in.MaxReschedules <= 0 {
		in.MaxReschedules = sessdomain.DefaultMaxReschedules
	}
	start := in.ProgramStart
	if start.IsZero() {
		start = time.Now()
	}

	now := time.Now()
	enrollment := &repository.Enrollment{
		ID:             uuid.New(),
		LearnerID:      in.LearnerID,
		CoachID:        in.CoachID,
		PaymentID:      in.PaymentID,
		ProgramStart:   start,
		ProgramEnd:     start.AddDate(0, 0, in.ProgramWeeks*7),
		TotalSessions:  in.TotalSessions,
		MaxReschedules: in.MaxReschedules,
		Status:         repository.StatusActive,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if err := s.repo.Create(ctx, enrollment); err != nil {
		return nil, err
	}

	// Sessions start pending; the orchestrator books the calendar slots
	// later. The first session of a program is the diagnostic.
	for seq := 1; seq <= in.TotalSessions; seq++ {
		sessionType := sessdomain.TypeCoaching
		if seq == 1 {
			sessionType = sessdomain.TypeDiagnostic
		}
		session := &sessrepo.Session{
			ID:              uuid.New(),
			EnrollmentID:    enrollment.ID,
			LearnerID:       in.LearnerID,
			CoachID:         in.CoachID,
			SequenceNo:      seq,
			Type:            string(sessionType),
			Status:          string(sessdomain.StatusPending),
			DurationMinutes: 60,
			CreatedAt:       now,
			UpdatedAt:       now,
		}
		if err := s.sessions.Create(ctx, session); err != nil {
			return nil, err
		}
	}

	s.logger.Info("enrollment created",
		"enrollment_id", enrollment.ID.String(),
		"learner_id", in.LearnerID.String(),
		"sessions", in.TotalSessions,
	)
	return enrollment, nil
}

// Get retrieves one enrollment.
func (s *Service) Get(ctx context.Context, id uuid.UUID) (*repository.Enrollment, error) {
	return s.repo.GetByID(ctx, id)
}

// TerminateInput carries the termination reason and an optional refund.
// Refund amounts arrive as inputs; no pricing arithmetic happens here.
type TerminateInput struct {
	Reason           string
	RefundMinorUnits *int64
}

// Terminate soft-terminates an enrollment. A requested refund is issued
// before the local state change; a failed refund leaves the enrollment
// active so the operator can retry.
func (s *Service) Terminate(ctx context.Context, id uuid.UUID, in TerminateInput) error {
	if in.RefundMinorUnits != nil {
		enrollment, err := s.repo.GetByID(ctx, id)
		if err != nil {
			return err
		}
		if enrollment.PaymentID == nil {
			return apperr.Validation("enrollment has no payment to refund")
		}
		if s.refunder == nil {
			return apperr.AdapterFailure("payment gateway not configured", nil)
		}

		refundID, err := s.refunder.Refund(ctx, *enrollment.PaymentID, *in.RefundMinorUnits, in.Reason)
		if err != nil {
			return apperr.AdapterFailure("refund failed", err)
		}
		s.logger.Info("refund issued",
			"enrollment_id", id.String(),
			"refund_id", refundID,
			"amount_minor_units", *in.RefundMinorUnits,
		)
	}

	if err := s.repo.Terminate(ctx, id); err != nil {
		return err
	}
	s.logger.Info("enrollment terminated", "enrollment_id", id.String(), "reason", in.Reason)
	return nil
}

// List retrieves enrollments for operators.
func (s *Service) List(ctx context.Context, q transport.ListEnrollmentsQuery) (*transport.ListEnrollmentsResponse, error) {
	result, err := s.repo.List(ctx, repository.ListParams{
		LearnerID: q.LearnerID,
		CoachID:   q.CoachID,
		Status:    q.Status,
		Page:      q.Page,
		PageSize:  q.PageSize,
	})
	if err != nil {
		return nil, err
	}

	items := make([]transport.EnrollmentResponse, 0, len(result.Items))
	for i := range result.Items {
		items = append(items, result.Items[i].ToResponse())
	}
	return &transport.ListEnrollmentsResponse{
		Items:      items,
		Total:      result.Total,
		Page:       result.Page,
		PageSize:   result.PageSize,
		TotalPages: result.TotalPages,
	}, nil
}
