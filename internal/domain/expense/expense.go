package expense

import (
	"fmt"
	"time"

	"github.com/Kilat-Pet-Delivery/service-mileage/internal/domain/route"
	"github.com/Kilat-Pet-Delivery/service-mileage/internal/pkg/domain"
	"github.com/google/uuid"
)

// Details is the persisted content of a mileage expense.
type Details struct {
	StartLocation route.Place
	EndLocation   route.Place
	Waypoints     []route.Waypoint
	DistanceInKm  float64
	CostPerKm     float64
	TotalCost     float64
	RouteSnapshot *route.RouteSnapshot
	Description   string
	TripDate      time.Time
}

// Expense is the aggregate root for a stored mileage expense.
type Expense struct {
	id            uuid.UUID
	startLocation route.Place
	endLocation   route.Place
	waypoints     []route.Waypoint
	distanceInKm  float64
	costPerKm     float64
	totalCost     float64
	routeSnapshot *route.RouteSnapshot
	description   string
	tripDate      time.Time

	version   int64
	createdAt time.Time
	updatedAt time.Time
}

func validateDetails(d Details) error {
	if !d.StartLocation.IsResolved() {
		return domain.NewValidationError("start location must be a resolved place")
	}
	if !d.EndLocation.IsResolved() {
		return domain.NewValidationError("end location must be a resolved place")
	}
	if d.RouteSnapshot == nil {
		return domain.NewValidationError("route snapshot is required")
	}
	if d.TripDate.IsZero() {
		return domain.NewValidationError("trip date is required")
	}
	total, err := route.DeriveCost(d.DistanceInKm, d.CostPerKm)
	if err != nil {
		return err
	}
	if total != d.TotalCost {
		return domain.NewValidationError(fmt.Sprintf("total cost %v does not match %v km at %v per km", d.TotalCost, d.DistanceInKm, d.CostPerKm))
	}
	return nil
}

// NewExpense creates an Expense at version 1.
func NewExpense(d Details) (*Expense, error) {
	if err := validateDetails(d); err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	e := &Expense{
		id:        uuid.New(),
		version:   1,
		createdAt: now,
		updatedAt: now,
	}
	e.apply(d)
	return e, nil
}

// ReconstructExpense rebuilds an Expense from persistence data (no validation).
func ReconstructExpense(
	id uuid.UUID,
	d Details,
	version int64,
	createdAt time.Time,
	updatedAt time.Time,
) *Expense {
	e := &Expense{
		id:        id,
		version:   version,
		createdAt: createdAt,
		updatedAt: updatedAt,
	}
	e.apply(d)
	return e
}

func (e *Expense) apply(d Details) {
	e.startLocation = *d.StartLocation.Clone()
	e.endLocation = *d.EndLocation.Clone()
	e.waypoints = route.CloneWaypoints(d.Waypoints)
	e.distanceInKm = d.DistanceInKm
	e.costPerKm = d.CostPerKm
	e.totalCost = d.TotalCost
	e.routeSnapshot = d.RouteSnapshot
	e.description = d.Description
	e.tripDate = d.TripDate.UTC()
}

// --- Getters ---

// ID returns the expense's unique identifier.
func (e *Expense) ID() uuid.UUID { return e.id }

// StartLocation returns the trip origin.
func (e *Expense) StartLocation() route.Place { return e.startLocation }

// EndLocation returns the trip destination.
func (e *Expense) EndLocation() route.Place { return e.endLocation }

// Waypoints returns the stops in their authoritative order.
func (e *Expense) Waypoints() []route.Waypoint { return route.CloneWaypoints(e.waypoints) }

// DistanceInKm returns the billed distance.
func (e *Expense) DistanceInKm() float64 { return e.distanceInKm }

// CostPerKm returns the rate.
func (e *Expense) CostPerKm() float64 { return e.costPerKm }

// TotalCost returns distance times rate.
func (e *Expense) TotalCost() float64 { return e.totalCost }

// RouteSnapshot returns the route the expense was billed on.
func (e *Expense) RouteSnapshot() *route.RouteSnapshot { return e.routeSnapshot }

// RouteDegraded reports whether the billed route came from the direct fallback.
func (e *Expense) RouteDegraded() bool {
	return e.routeSnapshot != nil && e.routeSnapshot.Degraded()
}

// Description returns the free-text note.
func (e *Expense) Description() string { return e.description }

// TripDate returns the day of travel.
func (e *Expense) TripDate() time.Time { return e.tripDate }

// Version returns the entity version for optimistic locking.
func (e *Expense) Version() int64 { return e.version }

// CreatedAt returns the creation timestamp.
func (e *Expense) CreatedAt() time.Time { return e.createdAt }

// UpdatedAt returns the last-updated timestamp.
func (e *Expense) UpdatedAt() time.Time { return e.updatedAt }

// Details returns a copy of the stored content.
func (e *Expense) Details() Details {
	return Details{
		StartLocation: *e.startLocation.Clone(),
		EndLocation:   *e.endLocation.Clone(),
		Waypoints:     route.CloneWaypoints(e.waypoints),
		DistanceInKm:  e.distanceInKm,
		CostPerKm:     e.costPerKm,
		TotalCost:     e.totalCost,
		RouteSnapshot: e.routeSnapshot,
		Description:   e.description,
		TripDate:      e.tripDate,
	}
}

// --- Behavior ---

// Revise replaces the content of the expense and bumps its version.
func (e *Expense) Revise(d Details) error {
	if err := validateDetails(d); err != nil {
		return err
	}
	e.apply(d)
	e.IncrementVersion()
	return nil
}

// IncrementVersion bumps the version for optimistic locking.
func (e *Expense) IncrementVersion() {
	e.version++
	e.updatedAt = time.Now().UTC()
}
