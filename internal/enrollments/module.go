// Package enrollments provides the enrollments domain module.
package enrollments

import (
	"context"

	"tutorcoach_backend/internal/enrollments/handler"
	"tutorcoach_backend/internal/enrollments/repository"
	"tutorcoach_backend/internal/enrollments/service"
	apphttp "tutorcoach_backend/internal/http"
	"tutorcoach_backend/internal/sessions/orchestrator"
	"tutorcoach_backend/platform/logger"
	"tutorcoach_backend/platform/validator"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Module represents the enrollments domain module.
type Module struct {
	handler *handler.Handler

	// Service and Repository are exported for the reconciliation worker.
	Service    *service.Service
	Repository *repository.Repository
}

// NewModule creates a new enrollments module with all dependencies wired.
func NewModule(pool *pgxpool.Pool, val *validator.Validator, log *logger.Logger, sessions service.SessionSeeder, refunder service.Refunder) *Module {
	repo := repository.New(pool)
	svc := service.New(repo, sessions, refunder, log)
	h := handler.New(svc, val)

	return &Module{
		handler:    h,
		Service:    svc,
		Repository: repo,
	}
}

// Name returns the module name for logging.
func (m *Module) Name() string {
	return "enrollments"
}

// RegisterRoutes registers the module's routes under /api/v1/admin/enrollments.
func (m *Module) RegisterRoutes(ctx *apphttp.RouterContext) {
	enrollments := ctx.Admin.Group("/enrollments")
	m.handler.RegisterRoutes(enrollments)
}

// OrchestratorStore adapts the repository to the narrow view the scheduling
// orchestrator reads for policy decisions.
type OrchestratorStore struct {
	repo *repository.Repository
}

// NewOrchestratorStore wraps the module's repository for the orchestrator.
func (m *Module) NewOrchestratorStore() *OrchestratorStore {
	return &OrchestratorStore{repo: m.Repository}
}

// GetInfo implements orchestrator.EnrollmentStore.
func (s *OrchestratorStore) GetInfo(ctx context.Context, id uuid.UUID) (*orchestrator.EnrollmentInfo, error) {
	e, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	return &orchestrator.EnrollmentInfo{
		ID:              e.ID,
		LearnerID:       e.LearnerID,
		Status:          e.Status,
		ReschedulesUsed: e.ReschedulesUsed,
		MaxReschedules:  e.MaxReschedules,
	}, nil
}

// IncrementCompleted implements orchestrator.EnrollmentStore.
func (s *OrchestratorStore) IncrementCompleted(ctx context.Context, id uuid.UUID) error {
	return s.repo.IncrementCompleted(ctx, id)
}

// Compile-time checks.
var (
	_ apphttp.Module               = (*Module)(nil)
	_ orchestrator.EnrollmentStore = (*OrchestratorStore)(nil)
)
