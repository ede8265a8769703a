package handler

import (
	"context"
	"strings"

	"github.com/Kilat-Pet-Delivery/service-mileage/internal/application"
	"github.com/Kilat-Pet-Delivery/service-mileage/internal/pkg/response"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// WizardHandler handles HTTP requests that drive a wizard session.
type WizardHandler struct {
	service WizardUseCases
}

// NewWizardHandler creates a new WizardHandler.
func NewWizardHandler(service WizardUseCases) *WizardHandler {
	return &WizardHandler{service: service}
}

// RegisterRoutes registers wizard routes on the given router group.
func (h *WizardHandler) RegisterRoutes(r *gin.RouterGroup) {
	wizards := r.Group("/api/v1/wizards")
	{
		wizards.POST("", h.CreateSession)
		wizards.GET("/:id", h.GetSession)
		wizards.DELETE("/:id", h.DiscardSession)
		wizards.GET("/:id/autocomplete/:field", h.Autocomplete)
		wizards.PUT("/:id/start", h.SetStartLocation)
		wizards.PUT("/:id/end", h.SetEndLocation)
		wizards.PUT("/:id/waypoints", h.SetWaypoints)
		wizards.PUT("/:id/details", h.UpdateDetails)
		wizards.POST("/:id/next", h.Next)
		wizards.POST("/:id/back", h.Back)
		wizards.POST("/:id/calculate", h.Calculate)
		wizards.GET("/:id/map", h.RenderMap)
		wizards.POST("/:id/submit", h.Submit)
	}
}

// CreateSession handles POST /api/v1/wizards.
func (h *WizardHandler) CreateSession(c *gin.Context) {
	response.Created(c, h.service.CreateSession(c.Request.Context()))
}

// GetSession handles GET /api/v1/wizards/:id.
func (h *WizardHandler) GetSession(c *gin.Context) {
	h.sessionAction(c, h.service.GetSession)
}

// DiscardSession handles DELETE /api/v1/wizards/:id.
func (h *WizardHandler) DiscardSession(c *gin.Context) {
	id, ok := parseID(c, "id", "session")
	if !ok {
		return
	}

	if err := h.service.DiscardSession(c.Request.Context(), id); err != nil {
		response.Error(c, err)
		return
	}

	response.NoContent(c)
}

// Autocomplete handles GET /api/v1/wizards/:id/autocomplete/:field?q=.
// A superseded lookup still answers 200 with superseded=true.
func (h *WizardHandler) Autocomplete(c *gin.Context) {
	id, ok := parseID(c, "id", "session")
	if !ok {
		return
	}

	result, err := h.service.Autocomplete(c.Request.Context(), id, c.Param("field"), strings.TrimSpace(c.Query("q")))
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, result)
}

// SetStartLocation handles PUT /api/v1/wizards/:id/start.
func (h *WizardHandler) SetStartLocation(c *gin.Context) {
	h.setLocation(c, h.service.SetStartLocation)
}

// SetEndLocation handles PUT /api/v1/wizards/:id/end.
func (h *WizardHandler) SetEndLocation(c *gin.Context) {
	h.setLocation(c, h.service.SetEndLocation)
}

// SetWaypoints handles PUT /api/v1/wizards/:id/waypoints.
func (h *WizardHandler) SetWaypoints(c *gin.Context) {
	id, ok := parseID(c, "id", "session")
	if !ok {
		return
	}

	var req application.SetWaypointsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	result, err := h.service.SetWaypoints(c.Request.Context(), id, req)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, result)
}

// UpdateDetails handles PUT /api/v1/wizards/:id/details.
func (h *WizardHandler) UpdateDetails(c *gin.Context) {
	id, ok := parseID(c, "id", "session")
	if !ok {
		return
	}

	var req application.UpdateDetailsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	result, err := h.service.UpdateDetails(c.Request.Context(), id, req)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, result)
}

// Next handles POST /api/v1/wizards/:id/next.
func (h *WizardHandler) Next(c *gin.Context) {
	h.sessionAction(c, h.service.Next)
}

// Back handles POST /api/v1/wizards/:id/back.
func (h *WizardHandler) Back(c *gin.Context) {
	h.sessionAction(c, h.service.Back)
}

// Calculate handles POST /api/v1/wizards/:id/calculate. The body is optional.
func (h *WizardHandler) Calculate(c *gin.Context) {
	id, ok := parseID(c, "id", "session")
	if !ok {
		return
	}

	var req application.CalculateRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			response.BadRequest(c, err.Error())
			return
		}
	}

	result, err := h.service.Calculate(c.Request.Context(), id, req)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, result)
}

// RenderMap handles GET /api/v1/wizards/:id/map.
func (h *WizardHandler) RenderMap(c *gin.Context) {
	id, ok := parseID(c, "id", "session")
	if !ok {
		return
	}

	artifact, err := h.service.RenderMap(c.Request.Context(), id)
	writeArtifact(c, artifact, err)
}

// Submit handles POST /api/v1/wizards/:id/submit.
func (h *WizardHandler) Submit(c *gin.Context) {
	id, ok := parseID(c, "id", "session")
	if !ok {
		return
	}

	result, err := h.service.Submit(c.Request.Context(), id)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Created(c, result)
}

func (h *WizardHandler) setLocation(c *gin.Context, set func(context.Context, uuid.UUID, string) (*application.SessionDTO, error)) {
	id, ok := parseID(c, "id", "session")
	if !ok {
		return
	}

	var req application.SetLocationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	result, err := set(c.Request.Context(), id, req.PlaceID)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, result)
}

func (h *WizardHandler) sessionAction(c *gin.Context, action func(context.Context, uuid.UUID) (*application.SessionDTO, error)) {
	id, ok := parseID(c, "id", "session")
	if !ok {
		return
	}

	result, err := action(c.Request.Context(), id)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, result)
}
