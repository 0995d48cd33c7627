package handler

import (
	"net/http"

	"tutorcoach_backend/internal/schedqueue/service"
	"tutorcoach_backend/internal/schedqueue/transport"
	"tutorcoach_backend/platform/httpkit"
	"tutorcoach_backend/platform/validator"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const (
	msgInvalidRequest   = "invalid request"
	msgValidationFailed = "validation failed"
)

// Handler handles HTTP requests for the scheduling queue.
type Handler struct {
	svc *service.Service
	val *validator.Validator
}

// New creates a new scheduling queue handler.
func New(svc *service.Service, val *validator.Validator) *Handler {
	return &Handler{svc: svc, val: val}
}

// RegisterRoutes registers the scheduling queue routes.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("", h.List)
	rg.GET("/:id", h.GetByID)
	rg.POST("/:id/claim", h.Claim)
	rg.POST("/:id/resolve", h.Resolve)
}

func itemID(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httpkit.Error(c, http.StatusBadRequest, "invalid queue item id", nil)
		return uuid.UUID{}, false
	}
	return id, true
}

// List handles GET /api/v1/admin/scheduling-queue
func (h *Handler) List(c *gin.Context) {
	var req transport.ListQueueQuery
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

// GetByID handles GET /api/v1/admin/scheduling-queue/:id
func (h *Handler) GetByID(c *gin.Context) {
	id, ok := itemID(c)
	if !ok {
		return
	}

	item, err := h.svc.Get(c.Request.Context(), id)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, item.ToResponse())
}

// Claim handles POST /api/v1/admin/scheduling-queue/:id/claim
func (h *Handler) Claim(c *gin.Context) {
	id, ok := itemID(c)
	if !ok {
		return
	}

	if err := h.svc.Claim(c.Request.Context(), id); httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, gin.H{"status": "in_progress"})
}

// Resolve handles POST /api/v1/admin/scheduling-queue/:id/resolve
func (h *Handler) Resolve(c *gin.Context) {
	id, ok := itemID(c)
	if !ok {
		return
	}
	var req transport.ResolveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return
	}
	if err := h.val.Struct(req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgValidationFailed, err.Error())
		return
	}
	identity := httpkit.MustGetIdentity(c)
	if identity == nil {
		return
	}

	item, err := h.svc.Resolve(c.Request.Context(), id, identity.UserID(), req)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, item.ToResponse())
}
