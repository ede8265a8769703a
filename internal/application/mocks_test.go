package application

import (
	"context"

	"github.com/Kilat-Pet-Delivery/service-mileage/internal/domain/expense"
	"github.com/Kilat-Pet-Delivery/service-mileage/internal/domain/maptile"
	"github.com/Kilat-Pet-Delivery/service-mileage/internal/domain/route"
	"github.com/Kilat-Pet-Delivery/service-mileage/internal/mapprovider"
	"github.com/Kilat-Pet-Delivery/service-mileage/internal/pkg/kafka"
	"github.com/Kilat-Pet-Delivery/service-mileage/internal/routing"
	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"
)

type mockBackend struct{ mock.Mock }

func (m *mockBackend) OptimizeRoute(ctx context.Context, req route.RouteRequest) (*routing.RouteResponse, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*routing.RouteResponse), args.Error(1)
}

func (m *mockBackend) Distance(ctx context.Context, originPlaceID, destinationPlaceID string) (*routing.DistanceResponse, error) {
	args := m.Called(ctx, originPlaceID, destinationPlaceID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*routing.DistanceResponse), args.Error(1)
}

type mockPlaces struct{ mock.Mock }

func (m *mockPlaces) Autocomplete(ctx context.Context, query, sessionToken string) ([]route.Place, error) {
	args := m.Called(ctx, query, sessionToken)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]route.Place), args.Error(1)
}

func (m *mockPlaces) Details(ctx context.Context, placeID string) (*route.Place, error) {
	args := m.Called(ctx, placeID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*route.Place), args.Error(1)
}

type mockStatic struct {
	mock.Mock
	name string
}

func (m *mockStatic) Name() string { return m.name }

func (m *mockStatic) BuildImageURL(req mapprovider.StaticRequest) (string, error) {
	args := m.Called(req)
	return args.String(0), args.Error(1)
}

type mockInteractive struct {
	mock.Mock
}

func (m *mockInteractive) Name() string { return "interactive" }

func (m *mockInteractive) Available() bool { return m.Called().Bool(0) }

func (m *mockInteractive) RenderInteractive(center route.LatLng, bounds *route.BoundingBox, markers []maptile.Marker, path maptile.Path) (*maptile.InteractiveView, error) {
	args := m.Called(center, bounds, markers, path)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*maptile.InteractiveView), args.Error(1)
}

type mockLoader struct{ mock.Mock }

func (m *mockLoader) Load(ctx context.Context, url string) error {
	return m.Called(ctx, url).Error(0)
}

type mockPublisher struct{ mock.Mock }

func (m *mockPublisher) PublishEvent(ctx context.Context, topic, key string, event kafka.CloudEvent) error {
	return m.Called(ctx, topic, key, event).Error(0)
}

type mockExpenseRepo struct{ mock.Mock }

func (m *mockExpenseRepo) FindByID(ctx context.Context, id uuid.UUID) (*expense.Expense, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*expense.Expense), args.Error(1)
}

func (m *mockExpenseRepo) Save(ctx context.Context, e *expense.Expense) error {
	return m.Called(ctx, e).Error(0)
}

func (m *mockExpenseRepo) Update(ctx context.Context, e *expense.Expense) error {
	return m.Called(ctx, e).Error(0)
}

func resolvedPlace(id string, lat, lng float64) route.Place {
	return route.Place{
		PlaceID:          id,
		Description:      id,
		FormattedAddress: id + " address",
		Location:         &route.LatLng{Lat: lat, Lng: lng},
	}
}

func strPtr(s string) *string { return &s }
