//go:build integration

package main_test

import (
	"context"
	"testing"
	"time"

	"github.com/Kilat-Pet-Delivery/service-mileage/internal/application"
	"github.com/Kilat-Pet-Delivery/service-mileage/internal/domain/maptile"
	"github.com/Kilat-Pet-Delivery/service-mileage/internal/events"
	"github.com/Kilat-Pet-Delivery/service-mileage/internal/pkg/domain"
	"github.com/Kilat-Pet-Delivery/service-mileage/internal/pkg/kafka"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestWizardSubmit_PersistsExpenseAndPublishes drives a wizard end to end against Postgres and
// Kafka and checks the stored row and the ExpenseCreated event.
func TestWizardSubmit_PersistsExpenseAndPublishes(t *testing.T) {
	infra := setupContainers(t)
	defer infra.Cleanup()

	stack := setupMileageStack(t, infra.DB, infra.KafkaBrokers)
	defer stack.CleanupProducer()

	exp := driveWizardToSubmit(t, stack.Wizard, 0.7)
	assert.Equal(t, int64(1), exp.Version)
	assert.InDelta(t, 390.0, exp.DistanceInKm, 1e-9)
	assert.InDelta(t, 273.0, exp.TotalCost, 1e-9)

	// Assert: the expense round-trips through the jsonb columns.
	stored, err := stack.Repo.FindByID(context.Background(), exp.ID)
	require.NoError(t, err)
	assert.Equal(t, "kl-sentral", stored.StartLocation().PlaceID)
	assert.Equal(t, "penang", stored.EndLocation().PlaceID)
	require.NotNil(t, stored.RouteSnapshot())
	assert.InDelta(t, 390.0, stored.RouteSnapshot().DistanceKm(), 1e-9)
	assert.Equal(t, "2026-10-01", stored.TripDate().Format("2006-01-02"))
	assert.False(t, stored.RouteDegraded())

	// Assert: ExpenseCreatedEvent on mileage.events.
	ce := consumeOneEvent(t, infra.KafkaBrokers, events.TopicMileageEvents, events.ExpenseCreated,
		func(ce kafka.CloudEvent) bool {
			var evt events.ExpenseCreatedEvent
			return ce.ParseData(&evt) == nil && evt.ExpenseID == exp.ID
		}, 15*time.Second)

	var created events.ExpenseCreatedEvent
	require.NoError(t, ce.ParseData(&created))
	assert.InDelta(t, 273.0, created.TotalCost, 1e-9)
	assert.InDelta(t, 0.7, created.CostPerKm, 1e-9)
	assert.Equal(t, "2026-10-01", created.TripDate.Format("2006-01-02"))
}

// TestEditExpense_RevisesAndDetectsConflicts reopens a stored expense, revises it, and checks that
// a second writer holding the old version is rejected.
func TestEditExpense_RevisesAndDetectsConflicts(t *testing.T) {
	infra := setupContainers(t)
	defer infra.Cleanup()

	stack := setupMileageStack(t, infra.DB, infra.KafkaBrokers)
	defer stack.CleanupProducer()

	ctx := context.Background()
	exp := driveWizardToSubmit(t, stack.Wizard, 0.5)

	// Two editors open the same version.
	first, err := stack.Wizard.OpenForEdit(ctx, exp.ID)
	require.NoError(t, err)
	second, err := stack.Wizard.OpenForEdit(ctx, exp.ID)
	require.NoError(t, err)

	date := "2026-10-02"
	_, err = stack.Wizard.UpdateDetails(ctx, first.ID, application.UpdateDetailsRequest{CostPerKm: 1.0, Description: "revised", TripDate: &date})
	require.NoError(t, err)
	revised, err := stack.Wizard.Submit(ctx, first.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(2), revised.Version)
	assert.InDelta(t, 390.0, revised.TotalCost, 1e-9)

	_, err = stack.Wizard.UpdateDetails(ctx, second.ID, application.UpdateDetailsRequest{CostPerKm: 2.0, Description: "stale", TripDate: &date})
	require.NoError(t, err)
	_, err = stack.Wizard.Submit(ctx, second.ID)
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrConflict)

	stored, err := stack.Repo.FindByID(ctx, exp.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(2), stored.Version())
	assert.Equal(t, "revised", stored.Description())

	consumeOneEvent(t, infra.KafkaBrokers, events.TopicMileageEvents, events.ExpenseUpdated,
		func(ce kafka.CloudEvent) bool {
			var evt events.ExpenseUpdatedEvent
			return ce.ParseData(&evt) == nil && evt.ExpenseID == exp.ID && evt.Version == 2
		}, 15*time.Second)
}

// TestExpenseMap_RendersFromStoredSnapshot renders the map of a persisted expense without calling
// the routing backend again.
func TestExpenseMap_RendersFromStoredSnapshot(t *testing.T) {
	infra := setupContainers(t)
	defer infra.Cleanup()

	stack := setupMileageStack(t, infra.DB, infra.KafkaBrokers)
	defer stack.CleanupProducer()

	exp := driveWizardToSubmit(t, stack.Wizard, 0.7)

	// A different distance upstream must not leak into the stored expense's map.
	stack.Routing.distanceMeters.Store(1000)

	artifact, err := stack.Expenses.RenderMap(context.Background(), exp.ID)
	require.NoError(t, err)
	assert.Equal(t, maptile.StateRenderedStaticPrimary, artifact.State)
	assert.Equal(t, "google_static", artifact.Provider)
	assert.Len(t, artifact.Markers, 2)
	// The snapshot came from /distance and has no geometry, so the overlay is a straight line.
	assert.Equal(t, maptile.PathStraightLine, artifact.Path.Kind)
	require.NotNil(t, artifact.ApproxDistanceKm)
	assert.Greater(t, *artifact.ApproxDistanceKm, 250.0)

	got, err := stack.Expenses.GetExpense(context.Background(), exp.ID)
	require.NoError(t, err)
	assert.InDelta(t, 390.0, got.DistanceInKm, 1e-9)
}
