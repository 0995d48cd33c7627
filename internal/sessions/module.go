// Package sessions provides the session lifecycle domain module: the state
// machine, the reschedule policy engine and the scheduling orchestrator.
package sessions

import (
	"tutorcoach_backend/internal/events"
	apphttp "tutorcoach_backend/internal/http"
	"tutorcoach_backend/internal/sessions/handler"
	"tutorcoach_backend/internal/sessions/orchestrator"
	"tutorcoach_backend/internal/sessions/repository"
	"tutorcoach_backend/platform/config"
	"tutorcoach_backend/platform/logger"
	"tutorcoach_backend/platform/validator"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Module represents the sessions domain module.
type Module struct {
	handler *handler.Handler

	// Orchestrator is exported for the scheduling queue and the
	// reconciliation worker, which re-enter lifecycle commands.
	Orchestrator *orchestrator.Orchestrator
	// Repository is exported for the nudge job.
	Repository *repository.Repository
	// Nudger runs the reminder sweep and per-session reminders.
	Nudger *Nudger
}

// Deps are the collaborators injected by the composition root.
type Deps struct {
	Pool        *pgxpool.Pool
	Validator   *validator.Validator
	Logger      *logger.Logger
	Bus         events.Bus
	Config      config.OrchestratorConfig
	Calendar    orchestrator.CalendarAdapter
	Bot         orchestrator.BotAdapter
	Reminders   orchestrator.ReminderScheduler
	Enrollments orchestrator.EnrollmentStore
	Queue       orchestrator.QueueStore
}

// NewModule creates a new sessions module with all dependencies wired.
func NewModule(deps Deps) *Module {
	repo := repository.New(deps.Pool)
	orch := orchestrator.New(orchestrator.Config{
		Sessions:       repo,
		Enrollments:    deps.Enrollments,
		Queue:          deps.Queue,
		Calendar:       deps.Calendar,
		Bot:            deps.Bot,
		Reminders:      deps.Reminders,
		Bus:            deps.Bus,
		Logger:         deps.Logger,
		AdapterTimeout: deps.Config.GetAdapterTimeout(),
		NudgeLeadTime:  deps.Config.GetNudgeLeadTime(),
	})
	h := handler.New(orch, repo, deps.Validator)
	nudger := NewNudger(repo, deps.Bus, deps.Logger, deps.Config.GetNudgeLeadTime())

	return &Module{
		handler:      h,
		Orchestrator: orch,
		Repository:   repo,
		Nudger:       nudger,
	}
}

// Name returns the module name for logging.
func (m *Module) Name() string {
	return "sessions"
}

// RegisterRoutes registers the module's routes under /api/v1/sessions.
func (m *Module) RegisterRoutes(ctx *apphttp.RouterContext) {
	sessions := ctx.Protected.Group("/sessions")
	m.handler.RegisterRoutes(sessions)

	admin := ctx.Admin.Group("/sessions")
	m.handler.RegisterAdminRoutes(admin)
}

// Compile-time check that Module implements http.Module.
var _ apphttp.Module = (*Module)(nil)
