// Package jobs exposes the shared-secret trigger surface for background
// jobs, so an external cron can drive reconciliation and reminder sweeps
// without redis access.
package jobs

import (
	apphttp "tutorcoach_backend/internal/http"
	"tutorcoach_backend/platform/config"
	"tutorcoach_backend/platform/logger"
)

// Module represents the jobs trigger module.
type Module struct {
	handler *Handler
	cfg     config.JobsConfig
}

// Deps are the collaborators injected by the composition root.
type Deps struct {
	Reconciler Reconciler
	Nudger     Nudger
	Config     config.JobsConfig
	Logger     *logger.Logger
}

// NewModule creates a new jobs module.
func NewModule(deps Deps) *Module {
	return &Module{
		handler: New(deps.Reconciler, deps.Nudger, deps.Logger),
		cfg:     deps.Config,
	}
}

// Name returns the module name for logging.
func (m *Module) Name() string {
	return "jobs"
}

// RegisterRoutes registers the trigger routes under /api/v1/jobs. The group
// carries its own secret middleware instead of the JWT middleware.
func (m *Module) RegisterRoutes(ctx *apphttp.RouterContext) {
	group := ctx.V1.Group("/jobs")
	group.Use(TriggerSecret(m.cfg), AllowedJobs(m.cfg))
	m.handler.RegisterRoutes(group)
}

// Compile-time check that Module implements http.Module.
var _ apphttp.Module = (*Module)(nil)
