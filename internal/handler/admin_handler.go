package handler

import (
	"time"

	"github.com/Kilat-Pet-Delivery/service-mileage/internal/pkg/response"
	"github.com/gin-gonic/gin"
)

// AdminHandler exposes operational views of the wizard session store.
type AdminHandler struct {
	sessions SessionAdmin
}

// NewAdminHandler creates a new AdminHandler.
func NewAdminHandler(sessions SessionAdmin) *AdminHandler {
	return &AdminHandler{sessions: sessions}
}

// RegisterRoutes registers admin routes.
func (h *AdminHandler) RegisterRoutes(r *gin.RouterGroup) {
	admin := r.Group("/api/v1/admin")
	{
		admin.GET("/stats/wizards", h.SessionStats)
		admin.POST("/wizards/sweep", h.Sweep)
	}
}

// SessionStats handles GET /api/v1/admin/stats/wizards.
func (h *AdminHandler) SessionStats(c *gin.Context) {
	response.Success(c, gin.H{"active_sessions": h.sessions.ActiveSessions()})
}

// Sweep handles POST /api/v1/admin/wizards/sweep.
func (h *AdminHandler) Sweep(c *gin.Context) {
	removed := h.sessions.SweepExpired(time.Now())
	response.Success(c, gin.H{
		"removed":         removed,
		"active_sessions": h.sessions.ActiveSessions(),
	})
}
