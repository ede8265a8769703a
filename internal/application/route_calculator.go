package application

import (
	"context"
	"errors"
	"fmt"

	"github.com/Kilat-Pet-Delivery/service-mileage/internal/domain/route"
	"github.com/Kilat-Pet-Delivery/service-mileage/internal/pkg/domain"
	"github.com/Kilat-Pet-Delivery/service-mileage/internal/pkg/fallback"
	"github.com/Kilat-Pet-Delivery/service-mileage/internal/routing"
	"github.com/dustin/go-humanize"
	"github.com/samber/lo"
	"go.uber.org/zap"
)

// RoutingBackend is the routing service contract the calculator consumes.
type RoutingBackend interface {
	OptimizeRoute(ctx context.Context, req route.RouteRequest) (*routing.RouteResponse, error)
	Distance(ctx context.Context, originPlaceID, destinationPlaceID string) (*routing.DistanceResponse, error)
}

// CalculateOptions tunes a waypoint calculation.
type CalculateOptions struct {
	Optimize bool
}

// Calculation is a route result together with the waypoints in their authoritative order.
type Calculation struct {
	Result    *route.RouteResult
	Waypoints []route.Waypoint
}

const (
	stepWaypointRoute = "waypoint_route"
	stepDirect        = "direct_fallback"
)

// RouteCalculator turns places into normalized route results. It keeps no state between calls.
type RouteCalculator struct {
	backend RoutingBackend
	logger  *zap.Logger
}

// NewRouteCalculator creates a new RouteCalculator.
func NewRouteCalculator(backend RoutingBackend, logger *zap.Logger) *RouteCalculator {
	return &RouteCalculator{backend: backend, logger: logger}
}

// Calculate picks the direct or waypoint path and applies the optimizer's order.
// Waypoints without a place identifier are dropped before anything is sent.
func (c *RouteCalculator) Calculate(ctx context.Context, origin, destination route.Place, waypoints []route.Waypoint, opts CalculateOptions) (*Calculation, error) {
	if len(waypoints) == 0 {
		result, err := c.CalculateDirect(ctx, origin, destination)
		if err != nil {
			return nil, err
		}
		return &Calculation{Result: result}, nil
	}

	resolved := route.ResolvedWaypoints(waypoints)
	result, err := c.CalculateWithWaypoints(ctx, origin, destination, waypoints, opts)
	if err != nil {
		return nil, err
	}

	ordered := route.CloneWaypoints(resolved)
	if result.WaypointsOptimized {
		// The order was validated by CalculateWithWaypoints, so this cannot fail.
		ordered, err = route.ApplyOptimizedOrder(resolved, result.OptimizedWaypointOrder)
		if err != nil {
			return nil, fmt.Errorf("failed to apply optimized order: %w", err)
		}
	}
	return &Calculation{Result: result, Waypoints: ordered}, nil
}

// CalculateDirect computes origin to destination without waypoints.
func (c *RouteCalculator) CalculateDirect(ctx context.Context, origin, destination route.Place) (*route.RouteResult, error) {
	if err := requireEndpoints(origin, destination); err != nil {
		return nil, err
	}

	resp, err := c.backend.Distance(ctx, origin.PlaceID, destination.PlaceID)
	if err != nil {
		c.logger.Error("direct route calculation failed",
			zap.String("origin", origin.PlaceID),
			zap.String("destination", destination.PlaceID),
			zap.Error(err),
		)
		return nil, domain.NewRouteUnavailableError("no route between origin and destination", err)
	}

	km, err := c.normalize(resp.DistanceValue, resp.Unit(), "distance")
	if err != nil {
		return nil, err
	}

	return &route.RouteResult{
		DistanceValue: km,
		DistanceText:  distanceText(resp.DistanceText, km),
		DurationValue: resp.DurationValue,
		DurationText:  durationText(resp.DurationText, resp.DurationValue),
	}, nil
}

// CalculateWithWaypoints asks the backend for a waypoint-aware route. If that fails it falls back
// to a direct origin-destination calculation and marks the result degraded.
func (c *RouteCalculator) CalculateWithWaypoints(
	ctx context.Context,
	origin, destination route.Place,
	waypoints []route.Waypoint,
	opts CalculateOptions,
) (*route.RouteResult, error) {
	if err := requireEndpoints(origin, destination); err != nil {
		return nil, err
	}
	resolved := route.ResolvedWaypoints(waypoints)
	if len(resolved) == 0 {
		return nil, domain.NewNoValidWaypointsError()
	}
	if dropped := len(waypoints) - len(resolved); dropped > 0 {
		c.logger.Info("dropped unresolved waypoints", zap.Int("dropped", dropped))
	}

	steps := []fallback.Step[*route.RouteResult]{
		{Name: stepWaypointRoute, Run: func(ctx context.Context) (*route.RouteResult, error) {
			return c.waypointRoute(ctx, origin, destination, resolved, opts)
		}},
		{Name: stepDirect, Run: func(ctx context.Context) (*route.RouteResult, error) {
			result, err := c.CalculateDirect(ctx, origin, destination)
			if err != nil {
				return nil, err
			}
			result.Degraded = true
			result.WaypointsOptimized = false
			result.OptimizedWaypointOrder = nil
			result.Route = &route.Geometry{Polyline: nil, Legs: []route.Leg{}}
			return result, nil
		}},
	}

	result, used, err := fallback.TryInOrder(ctx, steps, func(step string, attempt int, err error) {
		c.logger.Warn("route calculation tier failed",
			zap.String("step", step),
			zap.Int("attempt", attempt),
			zap.Int("waypoints", len(resolved)),
			zap.Error(err),
		)
	})
	if err != nil {
		var appErr *domain.AppError
		if errors.As(err, &appErr) && appErr.Code != domain.CodeRouteUnavailable {
			return nil, appErr
		}
		return nil, domain.NewRouteUnavailableError("no route could be calculated", err)
	}
	if used == stepDirect {
		c.logger.Warn("returning degraded direct route",
			zap.String("origin", origin.PlaceID),
			zap.String("destination", destination.PlaceID),
			zap.Float64("distance_km", result.DistanceValue),
		)
	}
	return result, nil
}

func (c *RouteCalculator) waypointRoute(
	ctx context.Context,
	origin, destination route.Place,
	resolved []route.Waypoint,
	opts CalculateOptions,
) (*route.RouteResult, error) {
	resp, err := c.backend.OptimizeRoute(ctx, route.RouteRequest{
		OriginPlaceID:      origin.PlaceID,
		DestinationPlaceID: destination.PlaceID,
		Waypoints:          resolved,
		OptimizeWaypoints:  opts.Optimize,
	})
	if err != nil {
		return nil, err
	}

	unit := resp.Unit()
	km, err := c.normalize(resp.DistanceValue, unit, "route")
	if err != nil {
		return nil, fallback.Abort(err)
	}
	if unit == route.UnitUnknown {
		// Legs follow whatever the total was read as, never their own heuristic.
		unit = route.UnitKilometers
		if km != resp.DistanceValue {
			unit = route.UnitMeters
		}
	}

	result := &route.RouteResult{
		DistanceValue: km,
		DistanceText:  distanceText(resp.DistanceText, km),
		DurationValue: resp.DurationValue,
		DurationText:  durationText(resp.DurationText, resp.DurationValue),
	}
	if resp.Route != nil {
		result.Route = toGeometry(resp.Route, unit)
	}

	order := lo.Map(resp.OptimizedWaypointOrder, func(o routing.OptimizedIndex, _ int) route.OptimizedIndex {
		return route.OptimizedIndex{OriginalIndex: o.OriginalIndex}
	})
	if opts.Optimize && len(order) > 0 {
		if err := route.ValidateOrder(order, len(resolved)); err != nil {
			c.logger.Warn("ignoring invalid optimized waypoint order", zap.Error(err))
		} else {
			result.OptimizedWaypointOrder = order
			result.WaypointsOptimized = true
		}
	}
	return result, nil
}

func (c *RouteCalculator) normalize(raw float64, unit route.DistanceUnit, source string) (float64, error) {
	km, heuristic, err := route.NormalizeDistanceWithUnit(raw, unit)
	if err != nil {
		c.logger.Error("routing backend returned an invalid distance",
			zap.String("source", source),
			zap.Float64("raw", raw),
			zap.Error(err),
		)
		return 0, err
	}
	if heuristic {
		c.logger.Warn("distance unit missing, applied threshold heuristic",
			zap.String("source", source),
			zap.Float64("raw", raw),
			zap.Float64("km", km),
		)
	}
	return km, nil
}

func toGeometry(g *routing.Geometry, unit route.DistanceUnit) *route.Geometry {
	out := &route.Geometry{Legs: make([]route.Leg, len(g.Legs))}
	if g.Polyline != nil && *g.Polyline != "" {
		p := *g.Polyline
		out.Polyline = &p
	}
	if g.Bounds != nil {
		out.Bounds = &route.BoundingBox{
			Northeast: route.LatLng{Lat: g.Bounds.Northeast.Lat, Lng: g.Bounds.Northeast.Lng},
			Southwest: route.LatLng{Lat: g.Bounds.Southwest.Lat, Lng: g.Bounds.Southwest.Lng},
		}
	}
	for i, leg := range g.Legs {
		km := leg.DistanceValue
		if unit == route.UnitMeters {
			km = leg.DistanceValue / 1000
		}
		out.Legs[i] = route.Leg{
			StartAddress:  leg.StartAddress,
			EndAddress:    leg.EndAddress,
			DistanceValue: km,
			DistanceText:  distanceText(leg.DistanceText, km),
			DurationValue: leg.DurationValue,
			DurationText:  durationText(leg.DurationText, leg.DurationValue),
		}
	}
	return out
}

func requireEndpoints(origin, destination route.Place) error {
	fields := map[string]string{}
	if !origin.IsResolved() {
		fields["origin"] = "a resolved place is required"
	}
	if !destination.IsResolved() {
		fields["destination"] = "a resolved place is required"
	}
	if len(fields) > 0 {
		return domain.NewFieldValidationError("route endpoints are not resolved", fields)
	}
	return nil
}

// distanceText keeps the backend's text when present and otherwise formats km.
func distanceText(text string, km float64) string {
	if text != "" {
		return text
	}
	return humanize.FormatFloat("#,###.#", km) + " km"
}

// durationText keeps the backend's text when present and otherwise formats seconds.
func durationText(text string, seconds int) string {
	if text != "" || seconds <= 0 {
		return text
	}
	hours := seconds / 3600
	mins := (seconds%3600 + 30) / 60
	if mins == 60 {
		hours, mins = hours+1, 0
	}
	switch {
	case hours == 0:
		return fmt.Sprintf("%d min", max(mins, 1))
	case mins == 0:
		return humanize.Comma(int64(hours)) + " h"
	default:
		return fmt.Sprintf("%s h %d min", humanize.Comma(int64(hours)), mins)
	}
}
