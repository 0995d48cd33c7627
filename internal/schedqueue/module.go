// Package schedqueue provides the manual scheduling queue domain module.
package schedqueue

import (
	"tutorcoach_backend/internal/events"
	apphttp "tutorcoach_backend/internal/http"
	"tutorcoach_backend/internal/schedqueue/handler"
	"tutorcoach_backend/internal/schedqueue/repository"
	"tutorcoach_backend/internal/schedqueue/service"
	"tutorcoach_backend/internal/sessions/orchestrator"
	"tutorcoach_backend/platform/logger"
	"tutorcoach_backend/platform/validator"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Module represents the scheduling queue domain module.
type Module struct {
	handler *handler.Handler

	// Service is exported for the orchestrator's fallback surface.
	Service *service.Service
}

// NewModule creates a new scheduling queue module. The dispatcher is the
// orchestrator; it is attached via Service.SetDispatcher after construction
// because the orchestrator also depends on this module's Enqueue.
func NewModule(pool *pgxpool.Pool, val *validator.Validator, log *logger.Logger, bus events.Bus) *Module {
	repo := repository.New(pool)
	svc := service.New(repo, nil, bus, log)
	h := handler.New(svc, val)

	return &Module{
		handler: h,
		Service: svc,
	}
}

// Name returns the module name for logging.
func (m *Module) Name() string {
	return "schedqueue"
}

// RegisterRoutes registers the module's routes under
// /api/v1/admin/scheduling-queue.
func (m *Module) RegisterRoutes(ctx *apphttp.RouterContext) {
	queue := ctx.Admin.Group("/scheduling-queue")
	m.handler.RegisterRoutes(queue)
}

// Compile-time checks.
var (
	_ apphttp.Module          = (*Module)(nil)
	_ orchestrator.QueueStore = (*service.Service)(nil)
)
