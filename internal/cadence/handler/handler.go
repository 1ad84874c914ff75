// Package handler exposes the cadence engine over HTTP.
package handler

import (
	"net/http"
	"strconv"

	"cadence_backend/internal/cadence/engine"
	"cadence_backend/internal/cadence/transport"
	"cadence_backend/platform/httpkit"
	"cadence_backend/platform/validator"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const (
	msgInvalidRequest   = "invalid request"
	msgValidationFailed = "validation failed"
	msgInvalidLeadID    = "invalid lead id"
)

// Handler handles HTTP requests for the cadence engine.
type Handler struct {
	eng *engine.Engine
	val *validator.Validator
}

// New creates a new cadence handler.
func New(eng *engine.Engine, val *validator.Validator) *Handler {
	return &Handler{eng: eng, val: val}
}

// RegisterRoutes registers the cadence routes.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("/queue", h.GetQueue)
	rg.GET("/leads/:id", h.GetLead)
	rg.GET("/leads/:id/score", h.GetScore)
	rg.POST("/leads/:id/actions", h.ProcessAction)
}

// RegisterAdminRoutes registers operator-only routes.
func (h *Handler) RegisterAdminRoutes(rg *gin.RouterGroup) {
	rg.POST("/cadence/sweep", h.RunSweep)
}

func (h *Handler) ProcessAction(c *gin.Context) {
	leadID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidLeadID, nil)
		return
	}

	var req transport.ActionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return
	}
	if err := h.val.Struct(req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgValidationFailed, err.Error())
		return
	}

	result, err := h.eng.ProcessAction(c.Request.Context(), leadID, req.ToEngine())
	if httpkit.HandleError(c, err) {
		return
	}

	httpkit.OK(c, transport.NewActionResponse(result))
}

func (h *Handler) GetLead(c *gin.Context) {
	leadID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidLeadID, nil)
		return
	}

	lead, err := h.eng.Lead(c.Request.Context(), leadID)
	if httpkit.HandleError(c, err) {
		return
	}

	httpkit.OK(c, transport.NewLeadResponse(lead))
}

func (h *Handler) GetScore(c *gin.Context) {
	leadID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidLeadID, nil)
		return
	}

	score, err := h.eng.Score(c.Request.Context(), leadID)
	if httpkit.HandleError(c, err) {
		return
	}

	httpkit.OK(c, score)
}

func (h *Handler) GetQueue(c *gin.Context) {
	limit := 100
	if raw := c.Query("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			httpkit.Error(c, http.StatusBadRequest, "invalid limit", nil)
			return
		}
		limit = parsed
	}

	entries, err := h.eng.Queue(c.Request.Context(), limit)
	if httpkit.HandleError(c, err) {
		return
	}

	httpkit.OK(c, gin.H{"entries": transport.NewQueueResponse(entries), "count": len(entries)})
}

// RunSweep triggers a maintenance sweep outside the schedule. The run is
// synchronous; operators use it after bulk imports.
func (h *Handler) RunSweep(c *gin.Context) {
	summary, err := h.eng.RunSweep(c.Request.Context())
	if httpkit.HandleError(c, err) {
		return
	}

	httpkit.OK(c, summary)
}
