package route

import (
	"time"

	"github.com/google/uuid"
)

// RouteSnapshot is a denormalized, immutable copy of a calculation and the places that produced it.
// Recalculating creates a new snapshot; an existing one is never mutated.
type RouteSnapshot struct {
	ID          uuid.UUID   `json:"id"`
	Origin      Place       `json:"origin"`
	Destination Place       `json:"destination"`
	Waypoints   []Waypoint  `json:"waypoints"`
	Result      RouteResult `json:"result"`
	CreatedAt   time.Time   `json:"created_at"`
}

// NewRouteSnapshot deep-copies its inputs so later edits to the draft cannot leak into it.
// waypoints must already be in the authoritative order.
func NewRouteSnapshot(origin, destination Place, waypoints []Waypoint, result *RouteResult) *RouteSnapshot {
	return &RouteSnapshot{
		ID:          uuid.New(),
		Origin:      *origin.Clone(),
		Destination: *destination.Clone(),
		Waypoints:   CloneWaypoints(waypoints),
		Result:      *result.Clone(),
		CreatedAt:   time.Now().UTC(),
	}
}

// DistanceKm returns the billed distance.
func (s *RouteSnapshot) DistanceKm() float64 { return s.Result.DistanceValue }

// Degraded reports whether the snapshot came from the direct fallback.
func (s *RouteSnapshot) Degraded() bool { return s.Result.Degraded }
