package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	expenseDomain "github.com/Kilat-Pet-Delivery/service-mileage/internal/domain/expense"
	"github.com/Kilat-Pet-Delivery/service-mileage/internal/domain/route"
	"github.com/Kilat-Pet-Delivery/service-mileage/internal/pkg/domain"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// ExpenseModel is the GORM model for the mileage_expenses table.
type ExpenseModel struct {
	ID            uuid.UUID       `gorm:"type:uuid;primaryKey"`
	StartLocation json.RawMessage `gorm:"type:jsonb;not null"`
	EndLocation   json.RawMessage `gorm:"type:jsonb;not null"`
	Waypoints     json.RawMessage `gorm:"type:jsonb;not null"`
	RouteSnapshot json.RawMessage `gorm:"type:jsonb;not null"`
	SnapshotID    uuid.UUID       `gorm:"type:uuid;index;not null"`
	RouteDegraded bool            `gorm:"not null;default:false;index"`
	DistanceInKm  float64         `gorm:"not null"`
	CostPerKm     float64         `gorm:"not null"`
	TotalCost     float64         `gorm:"not null"`
	Description   string          `gorm:"size:500"`
	TripDate      time.Time       `gorm:"type:date;not null;index"`
	Version       int64           `gorm:"not null;default:1"`
	CreatedAt     time.Time       `gorm:"not null"`
	UpdatedAt     time.Time       `gorm:"not null"`
}

// TableName returns the table name for the GORM model.
func (ExpenseModel) TableName() string {
	return "mileage_expenses"
}

// GormExpenseRepository is the GORM-based implementation of ExpenseRepository.
type GormExpenseRepository struct {
	db *gorm.DB
}

// NewGormExpenseRepository creates a new GormExpenseRepository.
func NewGormExpenseRepository(db *gorm.DB) *GormExpenseRepository {
	return &GormExpenseRepository{db: db}
}

// FindByID retrieves an expense by its unique identifier.
func (r *GormExpenseRepository) FindByID(ctx context.Context, id uuid.UUID) (*expenseDomain.Expense, error) {
	var model ExpenseModel
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.NewNotFoundError("Expense", id.String())
		}
		return nil, fmt.Errorf("failed to find expense by ID: %w", err)
	}
	return toDomainExpense(&model)
}

// Save persists a new expense.
func (r *GormExpenseRepository) Save(ctx context.Context, e *expenseDomain.Expense) error {
	model, err := toExpenseModel(e)
	if err != nil {
		return fmt.Errorf("failed to convert expense to model: %w", err)
	}

	if err := r.db.WithContext(ctx).Create(model).Error; err != nil {
		return fmt.Errorf("failed to save expense: %w", err)
	}
	return nil
}

// Update persists changes to an existing expense with optimistic locking.
// The aggregate must already carry the incremented version.
func (r *GormExpenseRepository) Update(ctx context.Context, e *expenseDomain.Expense) error {
	model, err := toExpenseModel(e)
	if err != nil {
		return fmt.Errorf("failed to convert expense to model: %w", err)
	}

	expectedVersion := e.Version() - 1
	result := r.db.WithContext(ctx).
		Model(&ExpenseModel{}).
		Where("id = ? AND version = ?", model.ID, expectedVersion).
		Updates(map[string]interface{}{
			"start_location": model.StartLocation,
			"end_location":   model.EndLocation,
			"waypoints":      model.Waypoints,
			"route_snapshot": model.RouteSnapshot,
			"snapshot_id":    model.SnapshotID,
			"route_degraded": model.RouteDegraded,
			"distance_in_km": model.DistanceInKm,
			"cost_per_km":    model.CostPerKm,
			"total_cost":     model.TotalCost,
			"description":    model.Description,
			"trip_date":      model.TripDate,
			"version":        model.Version,
			"updated_at":     model.UpdatedAt,
		})

	if result.Error != nil {
		return fmt.Errorf("failed to update expense: %w", result.Error)
	}

	if result.RowsAffected == 0 {
		return domain.NewConflictError("expense was modified by another transaction")
	}

	return nil
}

// --- Conversion Helpers ---

func toExpenseModel(e *expenseDomain.Expense) (*ExpenseModel, error) {
	startJSON, err := json.Marshal(e.StartLocation())
	if err != nil {
		return nil, fmt.Errorf("failed to marshal start location: %w", err)
	}

	endJSON, err := json.Marshal(e.EndLocation())
	if err != nil {
		return nil, fmt.Errorf("failed to marshal end location: %w", err)
	}

	waypoints := e.Waypoints()
	if waypoints == nil {
		waypoints = []route.Waypoint{}
	}
	waypointsJSON, err := json.Marshal(waypoints)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal waypoints: %w", err)
	}

	snapshot := e.RouteSnapshot()
	if snapshot == nil {
		return nil, fmt.Errorf("expense %s has no route snapshot", e.ID())
	}
	snapshotJSON, err := json.Marshal(snapshot)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal route snapshot: %w", err)
	}

	return &ExpenseModel{
		ID:            e.ID(),
		StartLocation: startJSON,
		EndLocation:   endJSON,
		Waypoints:     waypointsJSON,
		RouteSnapshot: snapshotJSON,
		SnapshotID:    snapshot.ID,
		RouteDegraded: e.RouteDegraded(),
		DistanceInKm:  e.DistanceInKm(),
		CostPerKm:     e.CostPerKm(),
		TotalCost:     e.TotalCost(),
		Description:   e.Description(),
		TripDate:      e.TripDate(),
		Version:       e.Version(),
		CreatedAt:     e.CreatedAt(),
		UpdatedAt:     e.UpdatedAt(),
	}, nil
}

func toDomainExpense(m *ExpenseModel) (*expenseDomain.Expense, error) {
	var start route.Place
	if err := json.Unmarshal(m.StartLocation, &start); err != nil {
		return nil, fmt.Errorf("failed to unmarshal start location: %w", err)
	}

	var end route.Place
	if err := json.Unmarshal(m.EndLocation, &end); err != nil {
		return nil, fmt.Errorf("failed to unmarshal end location: %w", err)
	}

	var waypoints []route.Waypoint
	if len(m.Waypoints) > 0 {
		if err := json.Unmarshal(m.Waypoints, &waypoints); err != nil {
			return nil, fmt.Errorf("failed to unmarshal waypoints: %w", err)
		}
	}

	var snapshot route.RouteSnapshot
	if err := json.Unmarshal(m.RouteSnapshot, &snapshot); err != nil {
		return nil, fmt.Errorf("failed to unmarshal route snapshot: %w", err)
	}

	return expenseDomain.ReconstructExpense(
		m.ID,
		expenseDomain.Details{
			StartLocation: start,
			EndLocation:   end,
			Waypoints:     waypoints,
			DistanceInKm:  m.DistanceInKm,
			CostPerKm:     m.CostPerKm,
			TotalCost:     m.TotalCost,
			RouteSnapshot: &snapshot,
			Description:   m.Description,
			TripDate:      m.TripDate,
		},
		m.Version,
		m.CreatedAt,
		m.UpdatedAt,
	), nil
}
