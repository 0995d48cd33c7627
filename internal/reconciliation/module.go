package reconciliation

import (
	"context"
	"net/http"
	"strconv"
	"time"

	apphttp "tutorcoach_backend/internal/http"
	"tutorcoach_backend/platform/httpkit"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// ReportURLSigner resolves a stored report key into a short-lived download
// URL. May be nil when object storage is not configured.
type ReportURLSigner interface {
	ReportDownloadURL(ctx context.Context, fileKey string) (string, error)
}

// RunResponse is the API shape for one run summary.
type RunResponse struct {
	ID              uuid.UUID `json:"id"`
	WindowFrom      time.Time `json:"windowFrom"`
	WindowTo        time.Time `json:"windowTo"`
	Total           int       `json:"total"`
	Recovered       int       `json:"recovered"`
	AlreadyEnrolled int       `json:"alreadyEnrolled"`
	NoBooking       int       `json:"noBooking"`
	RaceCondition   int       `json:"raceCondition"`
	Failed          int       `json:"failed"`
	ReportURL       *string   `json:"reportUrl,omitempty"`
	StartedAt       time.Time `json:"startedAt"`
	FinishedAt      time.Time `json:"finishedAt"`
}

// Module exposes the run history to operators.
type Module struct {
	repo   *Repository
	signer ReportURLSigner
}

// NewModule creates the reconciliation audit module.
func NewModule(repo *Repository, signer ReportURLSigner) *Module {
	return &Module{repo: repo, signer: signer}
}

// Name returns the module name for logging.
func (m *Module) Name() string {
	return "reconciliation"
}

// RegisterRoutes registers the run history route under
// /api/v1/admin/reconciliation.
func (m *Module) RegisterRoutes(ctx *apphttp.RouterContext) {
	group := ctx.Admin.Group("/reconciliation")
	group.GET("/runs", m.listRuns)
}

// listRuns handles GET /api/v1/admin/reconciliation/runs
func (m *Module) listRuns(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))

	runs, err := m.repo.ListRuns(c.Request.Context(), limit)
	if err != nil {
		httpkit.Error(c, http.StatusInternalServerError, "failed to list runs", nil)
		return
	}

	items := make([]RunResponse, 0, len(runs))
	for i := range runs {
		items = append(items, m.toResponse(c.Request.Context(), &runs[i]))
	}
	httpkit.OK(c, items)
}

func (m *Module) toResponse(ctx context.Context, run *Run) RunResponse {
	resp := RunResponse{
		ID:              run.ID,
		WindowFrom:      run.WindowFrom,
		WindowTo:        run.WindowTo,
		Total:           run.Total,
		Recovered:       run.Recovered,
		AlreadyEnrolled: run.AlreadyEnrolled,
		NoBooking:       run.NoBooking,
		RaceCondition:   run.RaceCondition,
		Failed:          run.Failed,
		StartedAt:       run.StartedAt,
		FinishedAt:      run.FinishedAt,
	}

	if run.ReportKey != nil && m.signer != nil {
		if url, err := m.signer.ReportDownloadURL(ctx, *run.ReportKey); err == nil {
			resp.ReportURL = &url
		}
	}
	return resp
}

// Compile-time check that Module implements http.Module.
var _ apphttp.Module = (*Module)(nil)
