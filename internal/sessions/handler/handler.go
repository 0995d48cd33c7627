package handler

import (
	"net/http"

	"tutorcoach_backend/internal/sessions/orchestrator"
	"tutorcoach_backend/internal/sessions/repository"
	"tutorcoach_backend/internal/sessions/transport"
	"tutorcoach_backend/platform/httpkit"
	"tutorcoach_backend/platform/validator"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const (
	msgInvalidRequest   = "invalid request"
	msgValidationFailed = "validation failed"
)

// Handler handles HTTP requests for sessions.
type Handler struct {
	orch *orchestrator.Orchestrator
	repo *repository.Repository
	val  *validator.Validator
}

// New creates a new sessions handler.
func New(orch *orchestrator.Orchestrator, repo *repository.Repository, val *validator.Validator) *Handler {
	return &Handler{orch: orch, repo: repo, val: val}
}

// RegisterRoutes registers the session routes.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("", h.List)
	rg.GET("/:id", h.GetByID)
	rg.GET("/:id/changes", h.ListChanges)
	rg.POST("/:id/schedule", h.Schedule)
	rg.POST("/:id/reschedule", h.Reschedule)
	rg.POST("/:id/cancel", h.Cancel)
	rg.PATCH("/:id/status", h.UpdateStatus)
}

// RegisterAdminRoutes registers the operator-only session routes.
func (h *Handler) RegisterAdminRoutes(rg *gin.RouterGroup) {
	rg.POST("/:id/reassign-coach", h.ReassignCoach)
}

func sessionID(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httpkit.Error(c, http.StatusBadRequest, "invalid session id", nil)
		return uuid.UUID{}, false
	}
	return id, true
}

func requestID(c *gin.Context) string {
	return c.GetString(httpkit.ContextRequestIDKey)
}

func toDispatchResponse(res *orchestrator.Result) transport.DispatchResponse {
	return transport.DispatchResponse{
		Session:        res.Session.ToResponse(),
		NoOp:           res.NoOp,
		QuotaRemaining: res.QuotaRemaining,
		Warnings:       res.Warnings,
	}
}

// List handles GET /api/v1/sessions
func (h *Handler) List(c *gin.Context) {
	var req transport.ListSessionsQuery
	if err := c.ShouldBindQuery(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, err.Error())
		return
	}

	result, err := h.repo.List(c.Request.Context(), repository.ListParams{
		EnrollmentID: req.EnrollmentID,
		LearnerID:    req.LearnerID,
		CoachID:      req.CoachID,
		Type:         req.Type,
		Status:       req.Status,
		From:         req.From,
		To:           req.To,
		Page:         req.Page,
		PageSize:     req.PageSize,
	})
	if httpkit.HandleError(c, err) {
		return
	}

	items := make([]transport.SessionResponse, 0, len(result.Items))
	for i := range result.Items {
		items = append(items, result.Items[i].ToResponse())
	}
	httpkit.OK(c, transport.ListSessionsResponse{
		Items:      items,
		Total:      result.Total,
		Page:       result.Page,
		PageSize:   result.PageSize,
		TotalPages: result.TotalPages,
	})
}

// GetByID handles GET /api/v1/sessions/:id
func (h *Handler) GetByID(c *gin.Context) {
	id, ok := sessionID(c)
	if !ok {
		return
	}

	session, err := h.repo.GetByID(c.Request.Context(), id)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, session.ToResponse())
}

// ListChanges handles GET /api/v1/sessions/:id/changes
func (h *Handler) ListChanges(c *gin.Context) {
	id, ok := sessionID(c)
	if !ok {
		return
	}

	changes, err := h.repo.ListChanges(c.Request.Context(), id, 0)
	if httpkit.HandleError(c, err) {
		return
	}

	items := make([]transport.ChangeRequestResponse, 0, len(changes))
	for i := range changes {
		items = append(items, changes[i].ToResponse())
	}
	httpkit.OK(c, items)
}

// Schedule handles POST /api/v1/sessions/:id/schedule
func (h *Handler) Schedule(c *gin.Context) {
	id, ok := sessionID(c)
	if !ok {
		return
	}
	var req transport.ScheduleSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return
	}
	identity := httpkit.MustGetIdentity(c)
	if identity == nil {
		return
	}

	res, err := h.orch.Dispatch(c.Request.Context(), orchestrator.CommandSchedule, orchestrator.SchedulePayload{
		SessionID:       id,
		RequestedBy:     identity.UserID(),
		ScheduledAt:     req.ScheduledAt,
		DurationMinutes: req.DurationMinutes,
		RequestID:       requestID(c),
	})
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, toDispatchResponse(res))
}

// Reschedule handles POST /api/v1/sessions/:id/reschedule
func (h *Handler) Reschedule(c *gin.Context) {
	id, ok := sessionID(c)
	if !ok {
		return
	}
	var req transport.RescheduleSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return
	}
	identity := httpkit.MustGetIdentity(c)
	if identity == nil {
		return
	}

	res, err := h.orch.Dispatch(c.Request.Context(), orchestrator.CommandReschedule, orchestrator.ReschedulePayload{
		SessionID:   id,
		RequestedBy: identity.UserID(),
		ScheduledAt: req.ScheduledAt,
		Reason:      req.Reason,
		RequestID:   requestID(c),
	})
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, toDispatchResponse(res))
}

// ReassignCoach handles POST /api/v1/admin/sessions/:id/reassign-coach
func (h *Handler) ReassignCoach(c *gin.Context) {
	id, ok := sessionID(c)
	if !ok {
		return
	}
	var req transport.ReassignCoachRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return
	}
	identity := httpkit.MustGetIdentity(c)
	if identity == nil {
		return
	}

	res, err := h.orch.Dispatch(c.Request.Context(), orchestrator.CommandReassignCoach, orchestrator.ReassignPayload{
		SessionID:   id,
		RequestedBy: identity.UserID(),
		NewCoachID:  req.CoachID,
		Reason:      req.Reason,
		RequestID:   requestID(c),
	})
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, toDispatchResponse(res))
}

// Cancel handles POST /api/v1/sessions/:id/cancel
func (h *Handler) Cancel(c *gin.Context) {
	id, ok := sessionID(c)
	if !ok {
		return
	}
	var req transport.CancelSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return
	}
	identity := httpkit.MustGetIdentity(c)
	if identity == nil {
		return
	}

	res, err := h.orch.Dispatch(c.Request.Context(), orchestrator.CommandCancel, orchestrator.CancelPayload{
		SessionID:   id,
		RequestedBy: identity.UserID(),
		Reason:      req.Reason,
		RequestID:   requestID(c),
	})
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, toDispatchResponse(res))
}

// UpdateStatus handles PATCH /api/v1/sessions/:id/status for the
// non-orchestrated transitions (in_progress, completed, no_show).
func (h *Handler) UpdateStatus(c *gin.Context) {
	id, ok := sessionID(c)
	if !ok {
		return
	}
	var req transport.MarkStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return
	}
	if err := h.val.Struct(req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgValidationFailed, err.Error())
		return
	}

	session, err := h.orch.MarkStatus(c.Request.Context(), id, req.Status)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, session.ToResponse())
}
