package handler

import (
	"github.com/Kilat-Pet-Delivery/service-mileage/internal/application"
	"github.com/Kilat-Pet-Delivery/service-mileage/internal/pkg/response"
	"github.com/gin-gonic/gin"
)

// RouteHandler handles session-less route and place requests.
type RouteHandler struct {
	service RouteUseCases
}

// NewRouteHandler creates a new RouteHandler.
func NewRouteHandler(service RouteUseCases) *RouteHandler {
	return &RouteHandler{service: service}
}

// RegisterRoutes registers route and place routes on the given router group.
func (h *RouteHandler) RegisterRoutes(r *gin.RouterGroup) {
	r.POST("/api/v1/routes", h.CalculateRoute)
	r.GET("/api/v1/places/:placeId", h.PlaceDetails)
}

// CalculateRoute handles POST /api/v1/routes.
func (h *RouteHandler) CalculateRoute(c *gin.Context) {
	var req application.CalculateRouteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	result, err := h.service.CalculateRoute(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, result)
}

// PlaceDetails handles GET /api/v1/places/:placeId.
func (h *RouteHandler) PlaceDetails(c *gin.Context) {
	place, err := h.service.PlaceDetails(c.Request.Context(), c.Param("placeId"))
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, place)
}
