package application

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/Kilat-Pet-Delivery/service-mileage/internal/domain/expense"
	"github.com/Kilat-Pet-Delivery/service-mileage/internal/domain/maptile"
	"github.com/Kilat-Pet-Delivery/service-mileage/internal/domain/route"
	"github.com/Kilat-Pet-Delivery/service-mileage/internal/domain/wizard"
	"github.com/Kilat-Pet-Delivery/service-mileage/internal/events"
	"github.com/Kilat-Pet-Delivery/service-mileage/internal/pkg/domain"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// WizardConfig configures session handling.
type WizardConfig struct {
	SessionTTL           time.Duration
	AutocompleteDebounce time.Duration
}

// WaypointInput is one waypoint as sent by the client. An empty PlaceID keeps the waypoint
// unresolved; it is shown but never sent to the routing backend.
type WaypointInput struct {
	PlaceID     string `json:"place_id"`
	Description string `json:"description"`
	Stopover    bool   `json:"stopover"`
}

// SetWaypointsRequest replaces the waypoint list.
type SetWaypointsRequest struct {
	Waypoints []WaypointInput `json:"waypoints"`
}

// SetLocationRequest selects an endpoint by place identifier.
type SetLocationRequest struct {
	PlaceID string `json:"place_id" binding:"required"`
}

// UpdateDetailsRequest holds the Details stage inputs. A zero CostPerKm leaves the rate unchanged.
type UpdateDetailsRequest struct {
	CostPerKm   float64 `json:"cost_per_km"`
	Description string  `json:"description"`
	TripDate    *string `json:"trip_date"`
}

// CalculateRequest tunes a wizard calculation.
type CalculateRequest struct {
	OptimizeWaypoints bool `json:"optimize_waypoints"`
}

// ErrorView is a recorded failure shown alongside a session.
type ErrorView struct {
	Code      string `json:"code"`
	Message   string `json:"message"`
	Retryable bool   `json:"retryable"`
}

// SessionDTO is the response representation of a wizard session.
type SessionDTO struct {
	ID               uuid.UUID           `json:"id"`
	ExpenseID        *uuid.UUID          `json:"expense_id,omitempty"`
	ExpenseVersion   int64               `json:"expense_version,omitempty"`
	Stage            string              `json:"stage"`
	EditMode         bool                `json:"edit_mode"`
	Draft            wizard.ExpenseDraft `json:"draft"`
	Result           *route.RouteResult  `json:"result,omitempty"`
	CalculationError *ErrorView          `json:"calculation_error,omitempty"`
	FieldErrors      map[string]string   `json:"field_errors,omitempty"`
	CreatedAt        time.Time           `json:"created_at"`
	UpdatedAt        time.Time           `json:"updated_at"`
}

// AutocompleteDTO carries predictions for one input field. Superseded is set when a newer
// lookup on the same field replaced this one; Predictions is then empty.
type AutocompleteDTO struct {
	Field       string        `json:"field"`
	Query       string        `json:"query"`
	Predictions []route.Place `json:"predictions"`
	Superseded  bool          `json:"superseded"`
}

type sessionEntry struct {
	mu      sync.Mutex
	session *wizard.Session

	slotsMu sync.Mutex
	slots   map[string]*AutocompleteSlot
}

// WizardService owns every live wizard session. Each session is mutated by one request at a time.
type WizardService struct {
	calculator *RouteCalculator
	resolver   *MapTileResolver
	places     PlaceLookup
	repo       expense.ExpenseRepository
	publisher  EventPublisher
	cfg        WizardConfig
	logger     *zap.Logger

	mu       sync.RWMutex
	sessions map[uuid.UUID]*sessionEntry
}

// NewWizardService creates a new WizardService. publisher may be nil.
func NewWizardService(
	calculator *RouteCalculator,
	resolver *MapTileResolver,
	places PlaceLookup,
	repo expense.ExpenseRepository,
	publisher EventPublisher,
	cfg WizardConfig,
	logger *zap.Logger,
) *WizardService {
	if cfg.SessionTTL <= 0 {
		cfg.SessionTTL = 2 * time.Hour
	}
	if cfg.AutocompleteDebounce <= 0 {
		cfg.AutocompleteDebounce = 300 * time.Millisecond
	}
	return &WizardService{
		calculator: calculator,
		resolver:   resolver,
		places:     places,
		repo:       repo,
		publisher:  publisher,
		cfg:        cfg,
		logger:     logger,
		sessions:   make(map[uuid.UUID]*sessionEntry),
	}
}

// CreateSession starts a new wizard.
func (s *WizardService) CreateSession(ctx context.Context) *SessionDTO {
	session := wizard.NewSession()
	s.store(session)
	s.logger.Info("wizard session created", zap.String("session_id", session.ID().String()))
	return toSessionDTO(session)
}

// OpenForEdit starts a wizard on a stored expense, positioned at Details.
func (s *WizardService) OpenForEdit(ctx context.Context, expenseID uuid.UUID) (*SessionDTO, error) {
	exp, err := s.repo.FindByID(ctx, expenseID)
	if err != nil {
		return nil, err
	}
	session := wizard.NewEditSession(exp.ID(), exp.Version(), detailsToDraft(exp.Details()))
	s.store(session)
	s.logger.Info("wizard session opened for edit",
		zap.String("session_id", session.ID().String()),
		zap.String("expense_id", expenseID.String()),
		zap.Int64("version", exp.Version()),
	)
	return toSessionDTO(session), nil
}

// GetSession returns the current view of a session.
func (s *WizardService) GetSession(ctx context.Context, id uuid.UUID) (*SessionDTO, error) {
	var dto *SessionDTO
	err := s.withSession(id, func(session *wizard.Session) error {
		dto = toSessionDTO(session)
		return nil
	})
	return dto, err
}

// DiscardSession drops a session and cancels its pending lookups.
func (s *WizardService) DiscardSession(ctx context.Context, id uuid.UUID) error {
	s.mu.Lock()
	entry, ok := s.sessions[id]
	delete(s.sessions, id)
	s.mu.Unlock()
	if !ok {
		return domain.NewNotFoundError("wizard session", id.String())
	}
	entry.closeSlots()
	s.logger.Info("wizard session discarded", zap.String("session_id", id.String()))
	return nil
}

// Autocomplete runs a debounced lookup for one input field. A newer lookup on the same field
// supersedes this one; lookups on different fields never interfere.
func (s *WizardService) Autocomplete(ctx context.Context, id uuid.UUID, field, query string) (*AutocompleteDTO, error) {
	if err := validateAutocompleteField(field); err != nil {
		return nil, err
	}
	entry, err := s.entry(id)
	if err != nil {
		return nil, err
	}

	slot := entry.slot(field, func() *AutocompleteSlot {
		return NewAutocompleteSlot(s.places, s.cfg.AutocompleteDebounce, id.String(), s.logger.With(
			zap.String("session_id", id.String()),
			zap.String("field", field),
		))
	})

	dto := &AutocompleteDTO{Field: field, Query: query, Predictions: []route.Place{}}
	places, err := slot.Lookup(ctx, query)
	if errors.Is(err, ErrSuperseded) {
		dto.Superseded = true
		return dto, nil
	}
	if err != nil {
		return nil, err
	}
	if places != nil {
		dto.Predictions = places
	}
	return dto, nil
}

// SetStartLocation resolves placeID and stores it as the start place.
func (s *WizardService) SetStartLocation(ctx context.Context, id uuid.UUID, placeID string) (*SessionDTO, error) {
	place, err := s.resolvePlace(ctx, placeID)
	if err != nil {
		return nil, err
	}
	return s.mutate(id, func(session *wizard.Session) error {
		session.SetStartLocation(*place)
		return nil
	})
}

// SetEndLocation resolves placeID and stores it as the end place.
func (s *WizardService) SetEndLocation(ctx context.Context, id uuid.UUID, placeID string) (*SessionDTO, error) {
	place, err := s.resolvePlace(ctx, placeID)
	if err != nil {
		return nil, err
	}
	return s.mutate(id, func(session *wizard.Session) error {
		session.SetEndLocation(*place)
		return nil
	})
}

// SetWaypoints resolves every waypoint carrying a place identifier and replaces the list.
func (s *WizardService) SetWaypoints(ctx context.Context, id uuid.UUID, req SetWaypointsRequest) (*SessionDTO, error) {
	waypoints := make([]route.Waypoint, 0, len(req.Waypoints))
	for i, in := range req.Waypoints {
		if in.PlaceID == "" {
			waypoints = append(waypoints, route.Waypoint{
				Place:    route.Place{Description: in.Description},
				Stopover: in.Stopover,
			})
			continue
		}
		place, err := s.resolvePlace(ctx, in.PlaceID)
		if err != nil {
			return nil, fmt.Errorf("failed to resolve waypoint %d: %w", i, err)
		}
		waypoints = append(waypoints, route.Waypoint{Place: *place, Stopover: in.Stopover})
	}
	return s.mutate(id, func(session *wizard.Session) error {
		session.SetWaypoints(waypoints)
		return nil
	})
}

// UpdateDetails applies the Details stage inputs and recomputes the total. Fields that fail
// validation are recorded on the session; the others are still applied.
func (s *WizardService) UpdateDetails(ctx context.Context, id uuid.UUID, req UpdateDetailsRequest) (*SessionDTO, error) {
	var tripDate *time.Time
	var tripDateErr string
	if req.TripDate != nil && *req.TripDate != "" {
		t, err := time.Parse(tripDateLayout, *req.TripDate)
		if err != nil {
			tripDateErr = "must be a date formatted as YYYY-MM-DD"
		} else {
			tripDate = &t
		}
	}
	return s.mutate(id, func(session *wizard.Session) error {
		costErr := session.SetDetails(req.CostPerKm, req.Description, tripDate)
		if tripDateErr == "" {
			return costErr
		}
		session.RejectField("trip_date", tripDateErr)
		fields := map[string]string{"trip_date": tripDateErr}
		if costErr != nil {
			fields["cost_per_km"] = session.FieldErrors()["cost_per_km"]
		}
		return domain.NewFieldValidationError("invalid expense details", fields)
	})
}

// Next advances the wizard if the current stage's gate passes.
func (s *WizardService) Next(ctx context.Context, id uuid.UUID) (*SessionDTO, error) {
	return s.mutate(id, func(session *wizard.Session) error {
		return session.Next()
	})
}

// Back moves the wizard one stage back.
func (s *WizardService) Back(ctx context.Context, id uuid.UUID) (*SessionDTO, error) {
	return s.mutate(id, func(session *wizard.Session) error {
		return session.Back()
	})
}

// Calculate computes the route for the draft. A failure is recorded on the session, which stays
// on Calculate; the user retries by calling Calculate again.
func (s *WizardService) Calculate(ctx context.Context, id uuid.UUID, req CalculateRequest) (*SessionDTO, error) {
	var calculated *route.RouteResult
	var waypointCount int
	var origin, destination string

	dto, err := s.mutate(id, func(session *wizard.Session) error {
		if session.Stage() != wizard.StageCalculate {
			return domain.NewInvalidStateError(session.Stage().String(), "calculating")
		}
		if err := session.CanCalculate(); err != nil {
			return err
		}

		draft := session.Draft()
		calc, err := s.calculator.Calculate(ctx, *draft.StartLocation, *draft.EndLocation, draft.Waypoints,
			CalculateOptions{Optimize: req.OptimizeWaypoints})
		if err != nil {
			var appErr *domain.AppError
			if !errors.As(err, &appErr) {
				appErr = domain.NewRouteUnavailableError("route calculation failed", err)
			}
			session.RecordCalculationFailure(appErr)
			return appErr
		}

		ordered := calc.Waypoints
		if ordered == nil {
			ordered = route.ResolvedWaypoints(draft.Waypoints)
		}
		if err := session.RecordCalculation(calc.Result, ordered); err != nil {
			return err
		}
		calculated = calc.Result
		waypointCount = len(ordered)
		origin, destination = draft.StartLocation.PlaceID, draft.EndLocation.PlaceID
		return nil
	})
	if err != nil {
		return nil, err
	}

	sessionID := id
	publishEvent(ctx, s.publisher, s.logger, events.RouteCalculated, id.String(), events.RouteCalculatedEvent{
		SessionID:          &sessionID,
		OriginPlaceID:      origin,
		DestinationPlaceID: destination,
		WaypointCount:      waypointCount,
		DistanceInKm:       calculated.DistanceValue,
		DurationSeconds:    calculated.DurationValue,
		WaypointsOptimized: calculated.WaypointsOptimized,
		Degraded:           calculated.Degraded,
		OccurredAt:         time.Now().UTC(),
	})

	s.logger.Info("route calculated",
		zap.String("session_id", id.String()),
		zap.Float64("distance_km", calculated.DistanceValue),
		zap.Bool("degraded", calculated.Degraded),
	)
	return dto, nil
}

// RenderMap draws the current draft. The session is only read; rendering happens outside its lock.
func (s *WizardService) RenderMap(ctx context.Context, id uuid.UUID) (*maptile.Artifact, error) {
	var in maptile.Input
	err := s.withSession(id, func(session *wizard.Session) error {
		draft := session.Draft()
		in = maptile.Input{
			Origin:      draft.StartLocation,
			Destination: draft.EndLocation,
			Waypoints:   draft.Waypoints,
		}
		if result := session.Result(); result != nil {
			in.Polyline = result.Polyline()
			if result.Route != nil {
				in.Bounds = result.Route.Bounds
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return s.resolver.Resolve(ctx, in)
}

// Submit validates the draft and persists it. A session that already produced an expense
// (or was opened for edit) revises that expense instead of creating a new one.
func (s *WizardService) Submit(ctx context.Context, id uuid.UUID) (*ExpenseDTO, error) {
	var result ExpenseDTO
	var tripDate time.Time
	var created bool

	err := s.withSession(id, func(session *wizard.Session) error {
		draft, err := session.PrepareSubmit()
		if err != nil {
			return err
		}
		details := draftToDetails(draft)

		var exp *expense.Expense
		if expenseID := session.ExpenseID(); expenseID == nil {
			exp, err = expense.NewExpense(details)
			if err != nil {
				return err
			}
			if err := s.repo.Save(ctx, exp); err != nil {
				return fmt.Errorf("failed to save expense: %w", err)
			}
			created = true
		} else {
			exp, err = s.repo.FindByID(ctx, *expenseID)
			if err != nil {
				return err
			}
			if exp.Version() != session.ExpenseVersion() {
				return domain.NewConflictError(fmt.Sprintf(
					"expense %s was modified (version %d, session holds %d)",
					expenseID, exp.Version(), session.ExpenseVersion()))
			}
			if err := exp.Revise(details); err != nil {
				return err
			}
			if err := s.repo.Update(ctx, exp); err != nil {
				return err
			}
		}

		session.MarkSubmitted(exp.ID(), exp.Version())
		result = toExpenseDTO(exp)
		tripDate = exp.TripDate()
		return nil
	})
	if err != nil {
		return nil, err
	}

	if created {
		publishEvent(ctx, s.publisher, s.logger, events.ExpenseCreated, result.ID.String(), events.ExpenseCreatedEvent{
			ExpenseID:     result.ID,
			SnapshotID:    result.RouteSnapshot.ID,
			DistanceInKm:  result.DistanceInKm,
			CostPerKm:     result.CostPerKm,
			TotalCost:     result.TotalCost,
			RouteDegraded: result.RouteDegraded,
			TripDate:      tripDate,
			OccurredAt:    time.Now().UTC(),
		})
	} else {
		publishEvent(ctx, s.publisher, s.logger, events.ExpenseUpdated, result.ID.String(), events.ExpenseUpdatedEvent{
			ExpenseID:     result.ID,
			Version:       result.Version,
			SnapshotID:    result.RouteSnapshot.ID,
			DistanceInKm:  result.DistanceInKm,
			TotalCost:     result.TotalCost,
			RouteDegraded: result.RouteDegraded,
			OccurredAt:    time.Now().UTC(),
		})
	}

	s.logger.Info("expense submitted",
		zap.String("session_id", id.String()),
		zap.String("expense_id", result.ID.String()),
		zap.Bool("created", created),
		zap.Int64("version", result.Version),
	)
	return &result, nil
}

// SweepExpired drops sessions idle for longer than the TTL and returns how many were removed.
// A session whose lock is held is in use and is skipped until the next sweep.
func (s *WizardService) SweepExpired(now time.Time) int {
	s.mu.RLock()
	candidates := make(map[uuid.UUID]*sessionEntry, len(s.sessions))
	for id, entry := range s.sessions {
		candidates[id] = entry
	}
	s.mu.RUnlock()

	var stale []uuid.UUID
	for id, entry := range candidates {
		if !entry.mu.TryLock() {
			continue
		}
		if entry.session.IsExpired(now, s.cfg.SessionTTL) {
			stale = append(stale, id)
		}
		entry.mu.Unlock()
	}

	var expired []*sessionEntry
	if len(stale) > 0 {
		s.mu.Lock()
		for _, id := range stale {
			if current, ok := s.sessions[id]; ok && current == candidates[id] {
				expired = append(expired, current)
				delete(s.sessions, id)
			}
		}
		s.mu.Unlock()
	}

	for _, entry := range expired {
		entry.closeSlots()
	}
	if len(expired) > 0 {
		s.logger.Info("expired wizard sessions swept", zap.Int("count", len(expired)))
	}
	return len(expired)
}

// StartSweeper runs SweepExpired every interval until ctx is cancelled.
func (s *WizardService) StartSweeper(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case now := <-ticker.C:
				s.SweepExpired(now)
			}
		}
	}()
}

func (s *WizardService) resolvePlace(ctx context.Context, placeID string) (*route.Place, error) {
	if strings.TrimSpace(placeID) == "" {
		return nil, domain.NewFieldValidationError("place is required", map[string]string{"place_id": "is required"})
	}
	place, err := s.places.Details(ctx, placeID)
	if err != nil {
		return nil, err
	}
	if !place.HasLocation() {
		s.logger.Warn("place resolved without coordinates", zap.String("place_id", placeID))
	}
	return place, nil
}

func (s *WizardService) store(session *wizard.Session) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[session.ID()] = &sessionEntry{session: session, slots: map[string]*AutocompleteSlot{}}
}

func (s *WizardService) entry(id uuid.UUID) (*sessionEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	entry, ok := s.sessions[id]
	if !ok {
		return nil, domain.NewNotFoundError("wizard session", id.String())
	}
	return entry, nil
}

func (s *WizardService) withSession(id uuid.UUID, fn func(*wizard.Session) error) error {
	entry, err := s.entry(id)
	if err != nil {
		return err
	}
	entry.mu.Lock()
	defer entry.mu.Unlock()
	return fn(entry.session)
}

// mutate applies fn and returns the resulting view, or fn's error.
func (s *WizardService) mutate(id uuid.UUID, fn func(*wizard.Session) error) (*SessionDTO, error) {
	var dto *SessionDTO
	err := s.withSession(id, func(session *wizard.Session) error {
		if err := fn(session); err != nil {
			return err
		}
		dto = toSessionDTO(session)
		return nil
	})
	return dto, err
}

func (e *sessionEntry) slot(field string, create func() *AutocompleteSlot) *AutocompleteSlot {
	e.slotsMu.Lock()
	defer e.slotsMu.Unlock()
	slot, ok := e.slots[field]
	if !ok {
		slot = create()
		e.slots[field] = slot
	}
	return slot
}

func (e *sessionEntry) closeSlots() {
	e.slotsMu.Lock()
	defer e.slotsMu.Unlock()
	for _, slot := range e.slots {
		slot.Close()
	}
	e.slots = map[string]*AutocompleteSlot{}
}

// validateAutocompleteField accepts "start", "end" and "waypoint-<n>".
func validateAutocompleteField(field string) error {
	switch field {
	case "start", "end":
		return nil
	}
	if n, ok := strings.CutPrefix(field, "waypoint-"); ok {
		if i, err := strconv.Atoi(n); err == nil && i >= 0 {
			return nil
		}
	}
	return domain.NewFieldValidationError("unknown autocomplete field",
		map[string]string{"field": "must be start, end or waypoint-<n>"})
}

func toSessionDTO(session *wizard.Session) *SessionDTO {
	dto := &SessionDTO{
		ID:             session.ID(),
		ExpenseID:      session.ExpenseID(),
		ExpenseVersion: session.ExpenseVersion(),
		Stage:          session.Stage().String(),
		EditMode:       session.EditMode(),
		Draft:          session.Draft(),
		Result:         session.Result(),
		CreatedAt:      session.CreatedAt(),
		UpdatedAt:      session.UpdatedAt(),
	}
	if fields := session.FieldErrors(); len(fields) > 0 {
		dto.FieldErrors = fields
	}
	if calcErr := session.CalculationError(); calcErr != nil {
		dto.CalculationError = &ErrorView{
			Code:      string(calcErr.Code),
			Message:   calcErr.Message,
			Retryable: calcErr.Retryable,
		}
	}
	if dto.Draft.Waypoints == nil {
		dto.Draft.Waypoints = []route.Waypoint{}
	}
	return dto
}

// ActiveSessions returns the number of live sessions.
func (s *WizardService) ActiveSessions() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}
