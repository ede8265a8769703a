package wizard

import (
	"fmt"
	"time"

	"github.com/Kilat-Pet-Delivery/service-mileage/internal/domain/route"
	"github.com/Kilat-Pet-Delivery/service-mileage/internal/pkg/domain"
	"github.com/google/uuid"
)

// Session is the aggregate that exclusively owns an ExpenseDraft while the wizard runs.
type Session struct {
	id             uuid.UUID
	expenseID      *uuid.UUID
	expenseVersion int64
	stage          Stage
	editMode       bool
	draft          ExpenseDraft
	result         *route.RouteResult
	calcError      *domain.AppError
	fieldErrors    map[string]string
	createdAt      time.Time
	updatedAt      time.Time
}

// NewSession starts a wizard at StartLocation with an empty draft.
func NewSession() *Session {
	now := time.Now().UTC()
	return &Session{
		id:          uuid.New(),
		stage:       StageStartLocation,
		fieldErrors: map[string]string{},
		createdAt:   now,
		updatedAt:   now,
	}
}

// NewEditSession opens an existing expense directly at Details. Intermediate stages are
// pre-populated from the stored draft and are not re-validated.
func NewEditSession(expenseID uuid.UUID, version int64, draft ExpenseDraft) *Session {
	s := NewSession()
	id := expenseID
	s.expenseID = &id
	s.expenseVersion = version
	s.editMode = true
	s.stage = StageDetails
	s.draft = draft.Clone()
	if draft.RouteSnapshot != nil {
		s.result = draft.RouteSnapshot.Result.Clone()
	}
	return s
}

// --- Getters ---

// ID returns the session identifier.
func (s *Session) ID() uuid.UUID { return s.id }

// ExpenseID returns the expense being edited, or nil for a new expense.
func (s *Session) ExpenseID() *uuid.UUID { return s.expenseID }

// ExpenseVersion returns the stored version the edit started from.
func (s *Session) ExpenseVersion() int64 { return s.expenseVersion }

// Stage returns the current stage.
func (s *Session) Stage() Stage { return s.stage }

// EditMode reports whether the session was opened from a stored expense.
func (s *Session) EditMode() bool { return s.editMode }

// Draft returns a copy of the draft.
func (s *Session) Draft() ExpenseDraft { return s.draft.Clone() }

// Result returns the cached route result, or nil when none is valid.
func (s *Session) Result() *route.RouteResult { return s.result.Clone() }

// CalculationError returns the last calculation failure, cleared by a successful calculation.
func (s *Session) CalculationError() *domain.AppError { return s.calcError }

// FieldErrors returns the validation messages of the last failed gate or submission.
func (s *Session) FieldErrors() map[string]string {
	out := make(map[string]string, len(s.fieldErrors))
	for k, v := range s.fieldErrors {
		out[k] = v
	}
	return out
}

// CreatedAt returns when the session was opened.
func (s *Session) CreatedAt() time.Time { return s.createdAt }

// UpdatedAt returns when the session last changed.
func (s *Session) UpdatedAt() time.Time { return s.updatedAt }

// --- Draft edits ---

// SetStartLocation replaces the start place and invalidates any calculated route.
func (s *Session) SetStartLocation(p route.Place) {
	s.draft.StartLocation = p.Clone()
	delete(s.fieldErrors, "start_location")
	s.invalidateRoute()
}

// SetEndLocation replaces the end place and invalidates any calculated route.
func (s *Session) SetEndLocation(p route.Place) {
	s.draft.EndLocation = p.Clone()
	delete(s.fieldErrors, "end_location")
	s.invalidateRoute()
}

// SetWaypoints replaces the waypoint list and invalidates any calculated route.
func (s *Session) SetWaypoints(wps []route.Waypoint) {
	s.draft.Waypoints = route.CloneWaypoints(wps)
	s.invalidateRoute()
}

// SetDetails updates the non-route fields and recomputes the total when a distance is known.
// Valid fields are applied even when costPerKm is rejected; the rejection is kept in FieldErrors.
func (s *Session) SetDetails(costPerKm float64, description string, tripDate *time.Time) error {
	s.draft.Description = description
	if tripDate != nil {
		t := tripDate.UTC()
		s.draft.TripDate = &t
		delete(s.fieldErrors, "trip_date")
	}
	s.touch()

	if costPerKm == 0 {
		return nil
	}
	if s.draft.DistanceInKm > 0 {
		total, err := route.DeriveCost(s.draft.DistanceInKm, costPerKm)
		if err != nil {
			s.fieldErrors["cost_per_km"] = err.Error()
			return err
		}
		s.draft.TotalCost = total
	} else if costPerKm < 0 {
		err := domain.NewInvalidCostInputError(fmt.Sprintf("cost per km must be positive, got %v", costPerKm))
		s.fieldErrors["cost_per_km"] = err.Error()
		return err
	}
	s.draft.CostPerKm = costPerKm
	delete(s.fieldErrors, "cost_per_km")
	delete(s.fieldErrors, "total_cost")
	return nil
}

// RejectField records an input that could not be applied so the session view shows it.
func (s *Session) RejectField(field, message string) {
	s.fieldErrors[field] = message
	s.touch()
}

// invalidateRoute drops the cached result. It is never recalculated automatically; a session
// past Calculate is moved back so the user re-triggers the calculation.
func (s *Session) invalidateRoute() {
	s.touch()
	if s.result == nil && s.draft.RouteSnapshot == nil {
		return
	}
	s.result = nil
	s.draft.RouteSnapshot = nil
	s.draft.DistanceInKm = 0
	s.draft.TotalCost = 0
	if s.stage.Index() > StageCalculate.Index() {
		s.stage = StageCalculate
	}
}

// --- Calculation ---

// CanCalculate reports whether both endpoints are resolved.
func (s *Session) CanCalculate() error {
	fields := map[string]string{}
	if !s.draft.StartLocation.IsResolved() {
		fields["start_location"] = "a resolved place is required"
	}
	if !s.draft.EndLocation.IsResolved() {
		fields["end_location"] = "a resolved place is required"
	}
	if len(fields) > 0 {
		return domain.NewFieldValidationError("route endpoints are not resolved", fields)
	}
	return nil
}

// RecordCalculation stores a successful result. orderedWaypoints must already carry the
// authoritative order. A new snapshot supersedes the previous one.
func (s *Session) RecordCalculation(result *route.RouteResult, orderedWaypoints []route.Waypoint) error {
	if s.stage != StageCalculate {
		return domain.NewInvalidStateError(s.stage.String(), "calculated")
	}
	if result == nil {
		return domain.NewRouteUnavailableError("empty route result", nil)
	}
	if err := s.CanCalculate(); err != nil {
		return err
	}
	s.draft.Waypoints = route.CloneWaypoints(orderedWaypoints)
	s.draft.RouteSnapshot = route.NewRouteSnapshot(*s.draft.StartLocation, *s.draft.EndLocation, s.draft.Waypoints, result)
	s.result = result.Clone()
	s.draft.DistanceInKm = result.DistanceValue
	s.draft.TotalCost = 0
	if s.draft.CostPerKm > 0 {
		total, err := route.DeriveCost(s.draft.DistanceInKm, s.draft.CostPerKm)
		if err != nil {
			return err
		}
		s.draft.TotalCost = total
	}
	s.calcError = nil
	s.touch()
	return nil
}

// RecordCalculationFailure keeps the session on Calculate and remembers the error for display.
func (s *Session) RecordCalculationFailure(err *domain.AppError) {
	s.calcError = err
	s.touch()
}

// --- Navigation ---

// Next advances one stage if the current stage's gate passes.
func (s *Session) Next() error {
	target, ok := s.stage.Next()
	if !ok || !s.stage.CanTransitionTo(target) {
		return domain.NewInvalidStateError(s.stage.String(), "next")
	}

	switch s.stage {
	case StageStartLocation:
		if !s.draft.StartLocation.IsResolved() {
			s.fieldErrors["start_location"] = "a resolved place is required"
			return domain.NewFieldValidationError("start location is not resolved",
				map[string]string{"start_location": "a resolved place is required"})
		}
	case StageEndLocation:
		if !s.draft.EndLocation.IsResolved() {
			s.fieldErrors["end_location"] = "a resolved place is required"
			return domain.NewFieldValidationError("end location is not resolved",
				map[string]string{"end_location": "a resolved place is required"})
		}
	case StageCalculate:
		if s.result == nil {
			return domain.NewInvalidStateError(s.stage.String(), target.String()+" without a calculated route")
		}
	}

	s.stage = target
	s.touch()
	return nil
}

// Back moves one stage back. It never clears entered data.
func (s *Session) Back() error {
	target, ok := s.stage.Previous()
	if !ok || !s.stage.CanTransitionTo(target) {
		return domain.NewInvalidStateError(s.stage.String(), "previous")
	}
	s.stage = target
	s.touch()
	return nil
}

// --- Submission ---

// PrepareSubmit validates the whole draft. It only succeeds at Details and never changes the
// stage or clears data; failures are field-scoped.
func (s *Session) PrepareSubmit() (ExpenseDraft, error) {
	if s.stage != StageDetails {
		return ExpenseDraft{}, domain.NewInvalidStateError(s.stage.String(), "submitted")
	}
	fields := s.draft.Validate()
	s.fieldErrors = fields
	s.touch()
	if len(fields) > 0 {
		return ExpenseDraft{}, domain.NewFieldValidationError("expense draft is invalid", s.FieldErrors())
	}
	return s.draft.Clone(), nil
}

// MarkSubmitted records the persisted expense so a later submit updates instead of creating.
func (s *Session) MarkSubmitted(expenseID uuid.UUID, version int64) {
	id := expenseID
	s.expenseID = &id
	s.expenseVersion = version
	s.touch()
}

// IsExpired reports whether the session has been idle for longer than ttl.
func (s *Session) IsExpired(now time.Time, ttl time.Duration) bool {
	return ttl > 0 && now.Sub(s.updatedAt) > ttl
}

func (s *Session) touch() {
	s.updatedAt = time.Now().UTC()
}
