package handler

import (
	"github.com/Kilat-Pet-Delivery/service-mileage/internal/pkg/response"
	"github.com/gin-gonic/gin"
)

// ExpenseHandler handles HTTP requests for stored expenses.
type ExpenseHandler struct {
	expenses ExpenseUseCases
	wizards  WizardUseCases
}

// NewExpenseHandler creates a new ExpenseHandler.
func NewExpenseHandler(expenses ExpenseUseCases, wizards WizardUseCases) *ExpenseHandler {
	return &ExpenseHandler{expenses: expenses, wizards: wizards}
}

// RegisterRoutes registers expense routes on the given router group.
func (h *ExpenseHandler) RegisterRoutes(r *gin.RouterGroup) {
	expenses := r.Group("/api/v1/expenses")
	{
		expenses.GET("/:id", h.GetExpense)
		expenses.GET("/:id/map", h.RenderMap)
		expenses.POST("/:id/wizard", h.OpenWizard)
	}
}

// GetExpense handles GET /api/v1/expenses/:id.
func (h *ExpenseHandler) GetExpense(c *gin.Context) {
	id, ok := parseID(c, "id", "expense")
	if !ok {
		return
	}

	result, err := h.expenses.GetExpense(c.Request.Context(), id)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, result)
}

// RenderMap handles GET /api/v1/expenses/:id/map. The stored snapshot is drawn as-is.
func (h *ExpenseHandler) RenderMap(c *gin.Context) {
	id, ok := parseID(c, "id", "expense")
	if !ok {
		return
	}

	artifact, err := h.expenses.RenderMap(c.Request.Context(), id)
	writeArtifact(c, artifact, err)
}

// OpenWizard handles POST /api/v1/expenses/:id/wizard.
func (h *ExpenseHandler) OpenWizard(c *gin.Context) {
	id, ok := parseID(c, "id", "expense")
	if !ok {
		return
	}

	session, err := h.wizards.OpenForEdit(c.Request.Context(), id)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Created(c, session)
}
