package application

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/Kilat-Pet-Delivery/service-mileage/internal/domain/maptile"
	"github.com/Kilat-Pet-Delivery/service-mileage/internal/domain/route"
	"github.com/Kilat-Pet-Delivery/service-mileage/internal/mapprovider"
	"github.com/Kilat-Pet-Delivery/service-mileage/internal/pkg/domain"
	"github.com/Kilat-Pet-Delivery/service-mileage/internal/routing"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type resolverFixture struct {
	interactive *mockInteractive
	primary     *mockStatic
	secondary   *mockStatic
	loader      *mockLoader
}

func newResolverFixture() *resolverFixture {
	return &resolverFixture{
		interactive: new(mockInteractive),
		primary:     &mockStatic{name: "primary"},
		secondary:   &mockStatic{name: "secondary"},
		loader:      new(mockLoader),
	}
}

func (f *resolverFixture) resolver(display DisplayRouter, preferInteractive bool) *MapTileResolver {
	return NewMapTileResolver(f.interactive, f.primary, f.secondary, f.loader, display,
		MapTileConfig{PreferInteractive: preferInteractive}, zap.NewNop())
}

func routedInput() maptile.Input {
	o, d := origin, destination
	return maptile.Input{Origin: &o, Destination: &d, Polyline: "_p~iF~ps|U_ulLnnqC_mqNvxq`@"}
}

func TestResolve_EmptyInputMakesNoCalls(t *testing.T) {
	f := newResolverFixture()

	artifact, err := f.resolver(nil, true).Resolve(context.Background(), maptile.Input{
		Origin: &route.Place{Description: "typed only"},
	})
	require.NoError(t, err)

	assert.Equal(t, maptile.StateEmpty, artifact.State)
	assert.Equal(t, []maptile.RenderState{maptile.StateIdle, maptile.StateEmpty}, artifact.History)
	assert.Empty(t, artifact.Markers)
	assert.Equal(t, maptile.PathNone, artifact.Path.Kind)
	f.primary.AssertNotCalled(t, "BuildImageURL", mock.Anything)
	f.secondary.AssertNotCalled(t, "BuildImageURL", mock.Anything)
	f.loader.AssertNotCalled(t, "Load", mock.Anything, mock.Anything)
}

func TestResolve_PrimaryStatic(t *testing.T) {
	f := newResolverFixture()
	f.primary.On("BuildImageURL", mock.Anything).Return("https://primary/img", nil)
	f.loader.On("Load", mock.Anything, "https://primary/img").Return(nil)

	artifact, err := f.resolver(nil, false).Resolve(context.Background(), routedInput())
	require.NoError(t, err)

	assert.Equal(t, maptile.StateRenderedStaticPrimary, artifact.State)
	assert.Equal(t, "primary", artifact.Provider)
	assert.Equal(t, "https://primary/img", artifact.ImageURL)
	assert.Equal(t, maptile.PathPolyline, artifact.Path.Kind)
	assert.Len(t, artifact.Markers, 2)
	assert.False(t, artifact.Retryable)
	f.secondary.AssertNotCalled(t, "BuildImageURL", mock.Anything)
}

func TestResolve_FallsBackToSecondary(t *testing.T) {
	f := newResolverFixture()
	f.primary.On("BuildImageURL", mock.Anything).Return("https://primary/img", nil)
	f.loader.On("Load", mock.Anything, "https://primary/img").Return(errors.New("403 forbidden"))
	f.secondary.On("BuildImageURL", mock.Anything).Return("https://secondary/img", nil)
	f.loader.On("Load", mock.Anything, "https://secondary/img").Return(nil)

	artifact, err := f.resolver(nil, false).Resolve(context.Background(), routedInput())
	require.NoError(t, err)

	assert.Equal(t, maptile.StateRenderedStaticFallback, artifact.State)
	assert.Equal(t, "secondary", artifact.Provider)
	assert.Equal(t, []maptile.RenderState{
		maptile.StateIdle,
		maptile.StateResolving,
		maptile.StateRenderedStaticPrimary,
		maptile.StateRenderedStaticFallback,
	}, artifact.History)
	require.Len(t, artifact.Attempts, 2)
	assert.Equal(t, "403 forbidden", artifact.Attempts[0].Error)
	assert.Empty(t, artifact.Attempts[1].Error)
}

func TestResolve_BothTiersFail(t *testing.T) {
	f := newResolverFixture()
	f.primary.On("BuildImageURL", mock.Anything).Return("", mapprovider.ErrNothingToDraw)
	f.secondary.On("BuildImageURL", mock.Anything).Return("https://secondary/img", nil)
	f.loader.On("Load", mock.Anything, "https://secondary/img").Return(errors.New("timeout"))

	artifact, err := f.resolver(nil, false).Resolve(context.Background(), routedInput())
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrMapRenderFailed)

	require.NotNil(t, artifact)
	assert.Equal(t, maptile.StateFailed, artifact.State)
	assert.True(t, artifact.Retryable)
	assert.Equal(t, maptile.StateFailed, artifact.History[len(artifact.History)-1])
	f.primary.AssertNumberOfCalls(t, "BuildImageURL", 1)
	f.secondary.AssertNumberOfCalls(t, "BuildImageURL", 1)
	f.loader.AssertNumberOfCalls(t, "Load", 1)
}

func TestResolve_BothImagesFailToLoad(t *testing.T) {
	f := newResolverFixture()
	f.primary.On("BuildImageURL", mock.Anything).Return("https://primary/img", nil)
	f.secondary.On("BuildImageURL", mock.Anything).Return("https://secondary/img", nil)
	f.loader.On("Load", mock.Anything, "https://primary/img").Return(errors.New("403 forbidden"))
	f.loader.On("Load", mock.Anything, "https://secondary/img").Return(errors.New("timeout"))

	artifact, err := f.resolver(nil, false).Resolve(context.Background(), routedInput())
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrMapRenderFailed)

	require.NotNil(t, artifact)
	assert.Equal(t, maptile.StateFailed, artifact.State)
	assert.True(t, artifact.Retryable)
	assert.Equal(t, []maptile.RenderState{
		maptile.StateIdle,
		maptile.StateResolving,
		maptile.StateRenderedStaticPrimary,
		maptile.StateRenderedStaticFallback,
		maptile.StateFailed,
	}, artifact.History)
	require.Len(t, artifact.Attempts, 2)
	f.loader.AssertNumberOfCalls(t, "Load", 2)
}

func TestResolve_CancelledBetweenTiers(t *testing.T) {
	f := newResolverFixture()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	f.primary.On("BuildImageURL", mock.Anything).Return("https://primary/img", nil)
	f.loader.On("Load", mock.Anything, "https://primary/img").Run(func(mock.Arguments) {
		cancel()
	}).Return(errors.New("connection reset"))

	artifact, err := f.resolver(nil, false).Resolve(ctx, routedInput())
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
	assert.NotErrorIs(t, err, domain.ErrMapRenderFailed)
	assert.Nil(t, artifact)
	f.secondary.AssertNotCalled(t, "BuildImageURL", mock.Anything)
	f.loader.AssertNumberOfCalls(t, "Load", 1)
}

func TestResolve_DoubleDigitWaypointsUseSecondaryTier(t *testing.T) {
	loader := new(mockLoader)
	loader.On("Load", mock.Anything, mock.Anything).Return(nil)
	resolver := NewMapTileResolver(new(mockInteractive),
		mapprovider.NewGoogleStatic("", "gkey"), mapprovider.NewGeoapifyStatic("", "geokey"),
		loader, nil, MapTileConfig{}, zap.NewNop())

	in := routedInput()
	for i := 0; i < 10; i++ {
		loc := route.LatLng{Lat: 39 + float64(i)*0.1, Lng: -121}
		in.Waypoints = append(in.Waypoints, route.Waypoint{
			Place:    route.Place{PlaceID: fmt.Sprintf("w%d", i), Location: &loc},
			Stopover: true,
		})
	}

	artifact, err := resolver.Resolve(context.Background(), in)
	require.NoError(t, err)

	assert.Equal(t, maptile.StateRenderedStaticFallback, artifact.State)
	assert.Equal(t, "geoapify_static", artifact.Provider)
	assert.Contains(t, artifact.ImageURL, "text%3A10")
	require.Len(t, artifact.Attempts, 2)
	assert.Equal(t, "google_static", artifact.Attempts[0].Provider)
	assert.Contains(t, artifact.Attempts[0].Error, "10")
	loader.AssertNumberOfCalls(t, "Load", 1)
}

func TestResolve_RetryStartsFreshRender(t *testing.T) {
	f := newResolverFixture()
	f.primary.On("BuildImageURL", mock.Anything).Return("https://primary/img", nil)
	f.secondary.On("BuildImageURL", mock.Anything).Return("https://secondary/img", nil)
	f.loader.On("Load", mock.Anything, mock.Anything).Return(errors.New("down")).Twice()
	f.loader.On("Load", mock.Anything, "https://primary/img").Return(nil)

	r := f.resolver(nil, false)
	failed, err := r.Resolve(context.Background(), routedInput())
	require.Error(t, err)

	retried, err := r.Resolve(context.Background(), routedInput())
	require.NoError(t, err)
	assert.NotEqual(t, failed.RenderID, retried.RenderID)
	assert.Equal(t, maptile.StateRenderedStaticPrimary, retried.State)
}

func TestResolve_InteractivePreferred(t *testing.T) {
	f := newResolverFixture()
	f.interactive.On("Available").Return(true)
	f.interactive.On("RenderInteractive", mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Return(&maptile.InteractiveView{Provider: "interactive"}, nil)

	artifact, err := f.resolver(nil, true).Resolve(context.Background(), routedInput())
	require.NoError(t, err)

	assert.Equal(t, maptile.StateRenderedInteractive, artifact.State)
	require.NotNil(t, artifact.Interactive)
	f.primary.AssertNotCalled(t, "BuildImageURL", mock.Anything)
}

func TestResolve_InteractiveUnavailableUsesStatic(t *testing.T) {
	f := newResolverFixture()
	f.interactive.On("Available").Return(false)
	f.primary.On("BuildImageURL", mock.Anything).Return("https://primary/img", nil)
	f.loader.On("Load", mock.Anything, "https://primary/img").Return(nil)

	artifact, err := f.resolver(nil, true).Resolve(context.Background(), routedInput())
	require.NoError(t, err)
	assert.Equal(t, maptile.StateRenderedStaticPrimary, artifact.State)
	f.interactive.AssertNotCalled(t, "RenderInteractive", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestResolve_StraightLineWhenIdentifiersMissing(t *testing.T) {
	f := newResolverFixture()
	display := new(mockBackend)
	f.primary.On("BuildImageURL", mock.Anything).Return("https://primary/img", nil)
	f.loader.On("Load", mock.Anything, mock.Anything).Return(nil)

	o := origin
	o.PlaceID = ""
	d := destination
	artifact, err := f.resolver(display, false).Resolve(context.Background(), maptile.Input{Origin: &o, Destination: &d})
	require.NoError(t, err)

	assert.Equal(t, maptile.PathStraightLine, artifact.Path.Kind)
	assert.Len(t, artifact.Path.Points, 2)
	require.NotNil(t, artifact.ApproxDistanceKm)
	assert.Greater(t, *artifact.ApproxDistanceKm, 250.0)
	display.AssertNotCalled(t, "OptimizeRoute", mock.Anything, mock.Anything)
}

func TestResolve_DisplayRouteProvidesPolyline(t *testing.T) {
	f := newResolverFixture()
	display := new(mockBackend)
	display.On("OptimizeRoute", mock.Anything, mock.MatchedBy(func(req route.RouteRequest) bool {
		return !req.OptimizeWaypoints
	})).Return(&routing.RouteResponse{
		DistanceResponse: routing.DistanceResponse{DistanceValue: 390},
		Route: &routing.Geometry{
			Polyline: strPtr("_p~iF~ps|U"),
			Bounds: &routing.Bounds{
				Northeast: routing.LatLng{Lat: 4, Lng: 104},
				Southwest: routing.LatLng{Lat: 1, Lng: 101},
			},
		},
	}, nil)
	f.primary.On("BuildImageURL", mock.Anything).Return("https://primary/img", nil)
	f.loader.On("Load", mock.Anything, mock.Anything).Return(nil)

	o, d := origin, destination
	artifact, err := f.resolver(display, false).Resolve(context.Background(), maptile.Input{Origin: &o, Destination: &d})
	require.NoError(t, err)

	assert.Equal(t, maptile.PathPolyline, artifact.Path.Kind)
	assert.Equal(t, "_p~iF~ps|U", artifact.Path.Encoded)
	assert.Nil(t, artifact.ApproxDistanceKm)
	require.NotNil(t, artifact.Center)
	assert.InDelta(t, 2.5, artifact.Center.Lat, 1e-9)
}

func TestResolve_DisplayRouteFailureDrawsStraightLine(t *testing.T) {
	f := newResolverFixture()
	display := new(mockBackend)
	display.On("OptimizeRoute", mock.Anything, mock.Anything).Return(nil, routing.ErrNoRoute)
	f.primary.On("BuildImageURL", mock.Anything).Return("https://primary/img", nil)
	f.loader.On("Load", mock.Anything, mock.Anything).Return(nil)

	o, d := origin, destination
	artifact, err := f.resolver(display, false).Resolve(context.Background(), maptile.Input{Origin: &o, Destination: &d})
	require.NoError(t, err)
	assert.Equal(t, maptile.PathStraightLine, artifact.Path.Kind)
}

func TestInputFromSnapshot_SkipsDisplayRoute(t *testing.T) {
	result := &route.RouteResult{DistanceValue: 390, Degraded: true, Route: &route.Geometry{Legs: []route.Leg{}}}
	snapshot := route.NewRouteSnapshot(origin, destination, nil, result)

	in := InputFromSnapshot(snapshot)
	assert.True(t, in.SkipDisplayRoute)
	assert.Empty(t, in.Polyline)
	assert.Equal(t, "origin", in.Origin.PlaceID)

	f := newResolverFixture()
	display := new(mockBackend)
	f.primary.On("BuildImageURL", mock.Anything).Return("https://primary/img", nil)
	f.loader.On("Load", mock.Anything, mock.Anything).Return(nil)

	artifact, err := f.resolver(display, false).Resolve(context.Background(), in)
	require.NoError(t, err)
	assert.Equal(t, maptile.PathStraightLine, artifact.Path.Kind)
	display.AssertNotCalled(t, "OptimizeRoute", mock.Anything, mock.Anything)
}
