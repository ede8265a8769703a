package routing

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/Kilat-Pet-Delivery/service-mileage/internal/domain/route"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewClient(Config{BaseURL: srv.URL + "/", Timeout: 2 * time.Second}, zap.NewNop())
}

func TestClient_OptimizeRoute(t *testing.T) {
	var got optimizePayload
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/route/optimize", r.URL.Path)
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"distanceValue": 412000, "distanceText": "412 km", "durationValue": 15000, "durationText": "4 h",
			"distanceUnit": "m",
			"optimizedWaypointOrder": [{"originalIndex": 1}, {"originalIndex": 0}],
			"route": {"polyline": "_p~iF~ps|U", "bounds": {"northeast": {"lat": 50.1, "lng": 8.7}, "southwest": {"lat": 47.3, "lng": 8.5}},
			          "legs": [{"startAddress": "Zurich", "endAddress": "Basel", "distanceValue": 87000}]}
		}`))
	})

	resp, err := client.OptimizeRoute(context.Background(), route.RouteRequest{
		OriginPlaceID:      "A",
		DestinationPlaceID: "B",
		Waypoints: []route.Waypoint{
			{Place: route.Place{PlaceID: "W1"}, Stopover: true},
			{Place: route.Place{PlaceID: "W2"}, Stopover: false},
		},
		OptimizeWaypoints: true,
	})

	require.NoError(t, err)
	assert.Equal(t, "A", got.OriginPlaceID)
	assert.True(t, got.OptimizeWaypoints)
	require.Len(t, got.Waypoints, 2)
	assert.Equal(t, waypointPayload{PlaceID: "W2", Stopover: false}, got.Waypoints[1])

	assert.Equal(t, 412000.0, resp.DistanceValue)
	assert.Equal(t, route.UnitMeters, resp.Unit())
	assert.Equal(t, []OptimizedIndex{{OriginalIndex: 1}, {OriginalIndex: 0}}, resp.OptimizedWaypointOrder)
	require.NotNil(t, resp.Route)
	require.NotNil(t, resp.Route.Polyline)
	assert.Equal(t, "_p~iF~ps|U", *resp.Route.Polyline)
	assert.Equal(t, "Basel", resp.Route.Legs[0].EndAddress)
}

func TestClient_Distance(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/distance", r.URL.Path)
		var p distancePayload
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&p))
		assert.Equal(t, distancePayload{OriginPlaceID: "A", DestinationPlaceID: "B"}, p)
		_, _ = w.Write([]byte(`{"distanceValue": 390, "distanceText": "390 km", "durationValue": 14400, "durationText": "4 hours"}`))
	})

	resp, err := client.Distance(context.Background(), "A", "B")

	require.NoError(t, err)
	assert.Equal(t, 390.0, resp.DistanceValue)
	assert.Equal(t, 14400, resp.DurationValue)
	assert.Equal(t, route.UnitUnknown, resp.Unit())
}

func TestClient_Errors(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    string
		noRoute bool
	}{
		{name: "no path", status: http.StatusNotFound, body: "ZERO_RESULTS", noRoute: true},
		{name: "unprocessable", status: http.StatusUnprocessableEntity, body: "disjoint", noRoute: true},
		{name: "server error", status: http.StatusInternalServerError, body: "boom"},
		{name: "bad body", status: http.StatusOK, body: "not json"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			})

			_, err := client.Distance(context.Background(), "A", "B")

			require.Error(t, err)
			if tt.noRoute {
				assert.ErrorIs(t, err, ErrNoRoute)
				return
			}
			var backendErr *BackendError
			require.ErrorAs(t, err, &backendErr)
			assert.Equal(t, "/distance", backendErr.Endpoint)
		})
	}
}

func TestClient_TransportFailure(t *testing.T) {
	client := NewClient(Config{BaseURL: "http://127.0.0.1:1", Timeout: time.Second}, zap.NewNop())

	_, err := client.Distance(context.Background(), "A", "B")

	var backendErr *BackendError
	require.ErrorAs(t, err, &backendErr)
	assert.Zero(t, backendErr.StatusCode)
}
