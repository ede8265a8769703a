package events

import (
	"time"

	"github.com/google/uuid"
)

// TopicMileageEvents carries every event this service emits.
const TopicMileageEvents = "mileage.events"

// Event types.
const (
	ExpenseCreated  = "mileage.expense.created"
	ExpenseUpdated  = "mileage.expense.updated"
	RouteCalculated = "mileage.route.calculated"
)

// ExpenseCreatedEvent is emitted after a new expense is persisted.
type ExpenseCreatedEvent struct {
	ExpenseID     uuid.UUID `json:"expense_id"`
	SnapshotID    uuid.UUID `json:"snapshot_id"`
	DistanceInKm  float64   `json:"distance_in_km"`
	CostPerKm     float64   `json:"cost_per_km"`
	TotalCost     float64   `json:"total_cost"`
	RouteDegraded bool      `json:"route_degraded"`
	TripDate      time.Time `json:"trip_date"`
	OccurredAt    time.Time `json:"occurred_at"`
}

// ExpenseUpdatedEvent is emitted after an existing expense is revised.
type ExpenseUpdatedEvent struct {
	ExpenseID     uuid.UUID `json:"expense_id"`
	Version       int64     `json:"version"`
	SnapshotID    uuid.UUID `json:"snapshot_id"`
	DistanceInKm  float64   `json:"distance_in_km"`
	TotalCost     float64   `json:"total_cost"`
	RouteDegraded bool      `json:"route_degraded"`
	OccurredAt    time.Time `json:"occurred_at"`
}

// RouteCalculatedEvent is emitted after every successful route calculation,
// including degraded direct fallbacks.
type RouteCalculatedEvent struct {
	SessionID          *uuid.UUID `json:"session_id,omitempty"`
	OriginPlaceID      string     `json:"origin_place_id"`
	DestinationPlaceID string     `json:"destination_place_id"`
	WaypointCount      int        `json:"waypoint_count"`
	DistanceInKm       float64    `json:"distance_in_km"`
	DurationSeconds    int        `json:"duration_seconds"`
	WaypointsOptimized bool       `json:"waypoints_optimized"`
	Degraded           bool       `json:"degraded"`
	OccurredAt         time.Time  `json:"occurred_at"`
}
