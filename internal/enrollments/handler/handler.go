package handler

import (
	"net/http"

	"tutorcoach_backend/internal/enrollments/service"
	"tutorcoach_backend/internal/enrollments/transport"
	"tutorcoach_backend/platform/httpkit"
	"tutorcoach_backend/platform/validator"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const (
	msgInvalidRequest   = "invalid request"
	msgValidationFailed = "validation failed"
)

// Handler handles HTTP requests for enrollments.
type Handler struct {
	svc *service.Service
	val *validator.Validator
}

// New creates a new enrollments handler.
func New(svc *service.Service, val *validator.Validator) *Handler {
	return &Handler{svc: svc, val: val}
}

// RegisterRoutes registers the enrollment routes.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("", h.List)
	rg.POST("", h.Create)
	rg.GET("/:id", h.GetByID)
	rg.POST("/:id/terminate", h.Terminate)
}

func enrollmentID(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httpkit.Error(c, http.StatusBadRequest, "invalid enrollment id", nil)
		return uuid.UUID{}, false
	}
	return id, true
}

// List handles GET /api/v1/admin/enrollments
func (h *Handler) List(c *gin.Context) {
	var req transport.ListEnrollmentsQuery
	if err := c.ShouldBindQuery(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, err.Error())
		return
	}

	result, err := h.svc.List(c.Request.Context(), req)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, result)
}

// Create handles POST /api/v1/admin/enrollments
func (h *Handler) Create(c *gin.Context) {
	var req transport.CreateEnrollmentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return
	}
	if err := h.val.Struct(req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgValidationFailed, err.Error())
		return
	}

	enrollment, err := h.svc.Create(c.Request.Context(), service.CreateInput{
		LearnerID:      req.LearnerID,
		CoachID:        req.CoachID,
		TotalSessions:  req.TotalSessions,
		ProgramWeeks:   req.ProgramWeeks,
		MaxReschedules: req.MaxReschedules,
		PaymentID:      req.PaymentID,
	})
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.JSON(c, http.StatusCreated, enrollment.ToResponse())
}

// GetByID handles GET /api/v1/admin/enrollments/:id
func (h *Handler) GetByID(c *gin.Context) {
	id, ok := enrollmentID(c)
	if !ok {
		return
	}

	enrollment, err := h.svc.Get(c.Request.Context(), id)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, enrollment.ToResponse())
}

// Terminate handles POST /api/v1/admin/enrollments/:id/terminate
func (h *Handler) Terminate(c *gin.Context) {
	id, ok := enrollmentID(c)
	if !ok {
		return
	}
	var req transport.TerminateEnrollmentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return
	}

	err := h.svc.Terminate(c.Request.Context(), id, service.TerminateInput{
		Reason:           req.Reason,
		RefundMinorUnits: req.RefundMinorUnits,
	})
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, gin.H{"status": "terminated"})
}
