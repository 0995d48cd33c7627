package jobs

import (
	"context"
	"net/http"

	"tutorcoach_backend/internal/reconciliation"
	"tutorcoach_backend/platform/httpkit"
	"tutorcoach_backend/platform/logger"

	"github.com/gin-gonic/gin"
)

// Job names accepted by the trigger surface.
const (
	JobReconcilePayments = "reconcile-payments"
	JobSessionNudges     = "session-nudges"
)

// Reconciler runs one payment reconciliation pass.
type Reconciler interface {
	RunOnce(ctx context.Context) (*reconciliation.Summary, error)
}

// Nudger runs one session reminder sweep.
type Nudger interface {
	RunOnce(ctx context.Context) (int, error)
}

// RunResponse is the JSON summary returned by every job trigger.
type RunResponse struct {
	Success   bool `json:"success"`
	Processed int  `json:"processed"`
	Recovered int  `json:"recovered"`
	Failed    int  `json:"failed"`
}

// Handler dispatches trigger calls to the background job implementations.
type Handler struct {
	reconciler Reconciler
	nudger     Nudger
	log        *logger.Logger
}

// New creates a new jobs handler.
func New(reconciler Reconciler, nudger Nudger, log *logger.Logger) *Handler {
	return &Handler{reconciler: reconciler, nudger: nudger, log: log}
}

// RegisterRoutes registers the trigger route.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("/:name", h.Run)
}

// Run handles POST /api/v1/jobs/:name
func (h *Handler) Run(c *gin.Context) {
	name := c.Param("name")

	switch name {
	case JobReconcilePayments:
		h.runReconciliation(c)
	case JobSessionNudges:
		h.runNudges(c)
	default:
		httpkit.Error(c, http.StatusNotFound, "unknown job", nil)
	}
}

func (h *Handler) runReconciliation(c *gin.Context) {
	if h.reconciler == nil {
		httpkit.Error(c, http.StatusServiceUnavailable, "reconciliation not configured", nil)
		return
	}

	summary, err := h.reconciler.RunOnce(c.Request.Context())
	if err != nil {
		h.log.Error("reconciliation trigger failed", "error", err)
		httpkit.Error(c, http.StatusInternalServerError, "reconciliation failed", nil)
		return
	}

	httpkit.OK(c, RunResponse{
		Success:   true,
		Processed: summary.Total,
		Recovered: summary.Recovered,
		Failed:    summary.Failed,
	})
}

func (h *Handler) runNudges(c *gin.Context) {
	count, err := h.nudger.RunOnce(c.Request.Context())
	if err != nil {
		h.log.Error("nudge sweep trigger failed", "error", err)
		httpkit.Error(c, http.StatusInternalServerError, "nudge sweep failed", nil)
		return
	}

	httpkit.OK(c, RunResponse{Success: true, Processed: count})
}
