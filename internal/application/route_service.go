package application

import (
	"context"
	"time"

	"github.com/Kilat-Pet-Delivery/service-mileage/internal/domain/route"
	"github.com/Kilat-Pet-Delivery/service-mileage/internal/events"
	"github.com/Kilat-Pet-Delivery/service-mileage/internal/pkg/domain"
	"go.uber.org/zap"
)

// CalculateRouteRequest is a session-less route calculation.
type CalculateRouteRequest struct {
	Origin            route.Place      `json:"origin"`
	Destination       route.Place      `json:"destination"`
	Waypoints         []route.Waypoint `json:"waypoints"`
	OptimizeWaypoints bool             `json:"optimize_waypoints"`
	CostPerKm         float64          `json:"cost_per_km"`
}

// RouteDTO is a calculated route. TotalCost is present only when a rate was given.
type RouteDTO struct {
	Result    *route.RouteResult `json:"result"`
	Waypoints []route.Waypoint   `json:"waypoints"`
	TotalCost *float64           `json:"total_cost,omitempty"`
}

// RouteService calculates routes and resolves places outside of a wizard.
type RouteService struct {
	calculator *RouteCalculator
	places     PlaceLookup
	publisher  EventPublisher
	logger     *zap.Logger
}

// NewRouteService creates a new RouteService. publisher may be nil.
func NewRouteService(calculator *RouteCalculator, places PlaceLookup, publisher EventPublisher, logger *zap.Logger) *RouteService {
	return &RouteService{calculator: calculator, places: places, publisher: publisher, logger: logger}
}

// CalculateRoute computes a route and, when CostPerKm is set, its cost.
func (s *RouteService) CalculateRoute(ctx context.Context, req CalculateRouteRequest) (*RouteDTO, error) {
	if req.CostPerKm < 0 {
		return nil, domain.NewInvalidCostInputError("cost per km must not be negative")
	}

	calc, err := s.calculator.Calculate(ctx, req.Origin, req.Destination, req.Waypoints,
		CalculateOptions{Optimize: req.OptimizeWaypoints})
	if err != nil {
		return nil, err
	}

	dto := &RouteDTO{Result: calc.Result, Waypoints: calc.Waypoints}
	if dto.Waypoints == nil {
		dto.Waypoints = []route.Waypoint{}
	}
	if req.CostPerKm > 0 {
		total, err := route.DeriveCost(calc.Result.DistanceValue, req.CostPerKm)
		if err != nil {
			return nil, err
		}
		dto.TotalCost = &total
	}

	publishEvent(ctx, s.publisher, s.logger, events.RouteCalculated, req.Origin.PlaceID, events.RouteCalculatedEvent{
		OriginPlaceID:      req.Origin.PlaceID,
		DestinationPlaceID: req.Destination.PlaceID,
		WaypointCount:      len(dto.Waypoints),
		DistanceInKm:       calc.Result.DistanceValue,
		DurationSeconds:    calc.Result.DurationValue,
		WaypointsOptimized: calc.Result.WaypointsOptimized,
		Degraded:           calc.Result.Degraded,
		OccurredAt:         time.Now().UTC(),
	})
	return dto, nil
}

// PlaceDetails resolves a place identifier to an address and coordinates.
func (s *RouteService) PlaceDetails(ctx context.Context, placeID string) (*route.Place, error) {
	return s.places.Details(ctx, placeID)
}
