package application

import (
	"context"
	"time"

	"github.com/Kilat-Pet-Delivery/service-mileage/internal/domain/expense"
	"github.com/Kilat-Pet-Delivery/service-mileage/internal/domain/maptile"
	"github.com/Kilat-Pet-Delivery/service-mileage/internal/domain/route"
	"github.com/Kilat-Pet-Delivery/service-mileage/internal/domain/wizard"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const tripDateLayout = "2006-01-02"

// ExpenseDTO is the response representation of a stored expense.
type ExpenseDTO struct {
	ID            uuid.UUID            `json:"id"`
	StartLocation route.Place          `json:"start_location"`
	EndLocation   route.Place          `json:"end_location"`
	Waypoints     []route.Waypoint     `json:"waypoints"`
	DistanceInKm  float64              `json:"distance_in_km"`
	CostPerKm     float64              `json:"cost_per_km"`
	TotalCost     float64              `json:"total_cost"`
	RouteSnapshot *route.RouteSnapshot `json:"route_snapshot"`
	RouteDegraded bool                 `json:"route_degraded"`
	Description   string               `json:"description,omitempty"`
	TripDate      string               `json:"trip_date"`
	Version       int64                `json:"version"`
	CreatedAt     time.Time            `json:"created_at"`
	UpdatedAt     time.Time            `json:"updated_at"`
}

// ExpenseService serves stored expenses.
type ExpenseService struct {
	repo     expense.ExpenseRepository
	resolver *MapTileResolver
	logger   *zap.Logger
}

// NewExpenseService creates a new ExpenseService.
func NewExpenseService(repo expense.ExpenseRepository, resolver *MapTileResolver, logger *zap.Logger) *ExpenseService {
	return &ExpenseService{repo: repo, resolver: resolver, logger: logger}
}

// GetExpense returns a stored expense.
func (s *ExpenseService) GetExpense(ctx context.Context, id uuid.UUID) (*ExpenseDTO, error) {
	exp, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	result := toExpenseDTO(exp)
	return &result, nil
}

// RenderMap redraws a stored expense from its snapshot. The route is never recalculated.
func (s *ExpenseService) RenderMap(ctx context.Context, id uuid.UUID) (*maptile.Artifact, error) {
	exp, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if exp.RouteDegraded() {
		s.logger.Debug("rendering degraded snapshot without route geometry",
			zap.String("expense_id", id.String()),
		)
	}
	return s.resolver.Resolve(ctx, InputFromSnapshot(exp.RouteSnapshot()))
}

func toExpenseDTO(e *expense.Expense) ExpenseDTO {
	return ExpenseDTO{
		ID:            e.ID(),
		StartLocation: e.StartLocation(),
		EndLocation:   e.EndLocation(),
		Waypoints:     e.Waypoints(),
		DistanceInKm:  e.DistanceInKm(),
		CostPerKm:     e.CostPerKm(),
		TotalCost:     e.TotalCost(),
		RouteSnapshot: e.RouteSnapshot(),
		RouteDegraded: e.RouteDegraded(),
		Description:   e.Description(),
		TripDate:      e.TripDate().Format(tripDateLayout),
		Version:       e.Version(),
		CreatedAt:     e.CreatedAt(),
		UpdatedAt:     e.UpdatedAt(),
	}
}

// draftToDetails assumes the draft already passed PrepareSubmit.
func draftToDetails(d wizard.ExpenseDraft) expense.Details {
	details := expense.Details{
		Waypoints:     route.CloneWaypoints(d.Waypoints),
		DistanceInKm:  d.DistanceInKm,
		CostPerKm:     d.CostPerKm,
		TotalCost:     d.TotalCost,
		RouteSnapshot: d.RouteSnapshot,
		Description:   d.Description,
	}
	if d.StartLocation != nil {
		details.StartLocation = *d.StartLocation.Clone()
	}
	if d.EndLocation != nil {
		details.EndLocation = *d.EndLocation.Clone()
	}
	if d.TripDate != nil {
		details.TripDate = *d.TripDate
	}
	return details
}

func detailsToDraft(d expense.Details) wizard.ExpenseDraft {
	tripDate := d.TripDate
	return wizard.ExpenseDraft{
		StartLocation: d.StartLocation.Clone(),
		EndLocation:   d.EndLocation.Clone(),
		Waypoints:     route.CloneWaypoints(d.Waypoints),
		DistanceInKm:  d.DistanceInKm,
		CostPerKm:     d.CostPerKm,
		TotalCost:     d.TotalCost,
		RouteSnapshot: d.RouteSnapshot,
		Description:   d.Description,
		TripDate:      &tripDate,
	}
}
