// Package routing is the HTTP client for the backend routing service.
package routing

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/Kilat-Pet-Delivery/service-mileage/internal/domain/route"
	"go.uber.org/zap"
)

const (
	optimizePath = "/route/optimize"
	distancePath = "/distance"
)

// ErrNoRoute is returned when the backend answers but cannot find a path.
var ErrNoRoute = errors.New("routing backend found no route")

// BackendError is returned for transport failures and non-2xx responses.
type BackendError struct {
	Endpoint   string
	StatusCode int
	Reason     string
}

func (e *BackendError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("routing backend %s: HTTP %d: %s", e.Endpoint, e.StatusCode, e.Reason)
	}
	return fmt.Sprintf("routing backend %s: %s", e.Endpoint, e.Reason)
}

type waypointPayload struct {
	PlaceID  string `json:"placeId"`
	Stopover bool   `json:"stopover"`
}

type optimizePayload struct {
	OriginPlaceID       string            `json:"originPlaceId"`
	DestinationPlaceID  string            `json:"destinationPlaceId"`
	Waypoints           []waypointPayload `json:"waypoints"`
	OptimizeWaypoints   bool              `json:"optimizeWaypoints"`
	IncludeAlternatives bool              `json:"includeAlternatives"`
}

type distancePayload struct {
	OriginPlaceID      string `json:"originPlaceId"`
	DestinationPlaceID string `json:"destinationPlaceId"`
}

// LatLng is the wire form of a coordinate.
type LatLng struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// Bounds is the wire form of a bounding box.
type Bounds struct {
	Northeast LatLng `json:"northeast"`
	Southwest LatLng `json:"southwest"`
}

// Leg is one raw leg. DistanceValue is in the response's unit.
type Leg struct {
	StartAddress  string  `json:"startAddress"`
	EndAddress    string  `json:"endAddress"`
	DistanceValue float64 `json:"distanceValue"`
	DistanceText  string  `json:"distanceText"`
	DurationValue int     `json:"durationValue"`
	DurationText  string  `json:"durationText"`
}

// Geometry is the raw drawable part of a route.
type Geometry struct {
	Polyline *string `json:"polyline"`
	Bounds   *Bounds `json:"bounds"`
	Legs     []Leg   `json:"legs"`
}

// OptimizedIndex is one raw entry of the optimizer's permutation.
type OptimizedIndex struct {
	OriginalIndex int `json:"originalIndex"`
}

// DistanceResponse is the body of POST /distance. Values are not yet normalized.
type DistanceResponse struct {
	DistanceValue float64 `json:"distanceValue"`
	DistanceText  string  `json:"distanceText"`
	DurationValue int     `json:"durationValue"`
	DurationText  string  `json:"durationText"`
	// DistanceUnit is optional; when empty the caller falls back to the threshold heuristic.
	DistanceUnit string `json:"distanceUnit,omitempty"`
}

// RouteResponse is the body of POST /route/optimize. Values are not yet normalized.
type RouteResponse struct {
	DistanceResponse
	OptimizedWaypointOrder []OptimizedIndex `json:"optimizedWaypointOrder"`
	Route                  *Geometry        `json:"route"`
}

// Unit returns the parsed unit tag.
func (r *DistanceResponse) Unit() route.DistanceUnit {
	return route.ParseDistanceUnit(r.DistanceUnit)
}

// Config configures the routing client.
type Config struct {
	BaseURL string
	Timeout time.Duration
}

// Client talks to the backend routing service.
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     *zap.Logger
}

// NewClient creates a routing client.
func NewClient(cfg Config, logger *zap.Logger) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &Client{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
		logger:     logger,
	}
}

// OptimizeRoute calls POST route/optimize. Waypoints are sent in the given order.
func (c *Client) OptimizeRoute(ctx context.Context, req route.RouteRequest) (*RouteResponse, error) {
	payload := optimizePayload{
		OriginPlaceID:       req.OriginPlaceID,
		DestinationPlaceID:  req.DestinationPlaceID,
		Waypoints:           make([]waypointPayload, len(req.Waypoints)),
		OptimizeWaypoints:   req.OptimizeWaypoints,
		IncludeAlternatives: req.IncludeAlternatives,
	}
	for i, wp := range req.Waypoints {
		payload.Waypoints[i] = waypointPayload{PlaceID: wp.Place.PlaceID, Stopover: wp.Stopover}
	}

	var resp RouteResponse
	if err := c.post(ctx, optimizePath, payload, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Distance calls POST distance for a direct origin-destination pair.
func (c *Client) Distance(ctx context.Context, originPlaceID, destinationPlaceID string) (*DistanceResponse, error) {
	var resp DistanceResponse
	payload := distancePayload{OriginPlaceID: originPlaceID, DestinationPlaceID: destinationPlaceID}
	if err := c.post(ctx, distancePath, payload, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *Client) post(ctx context.Context, path string, payload, out interface{}) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal %s request: %w", path, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return &BackendError{Endpoint: path, Reason: err.Error()}
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Warn("routing backend request failed",
			zap.String("endpoint", path),
			zap.Error(err),
		)
		return &BackendError{Endpoint: path, Reason: err.Error()}
	}
	defer resp.Body.Close()

	c.logger.Debug("routing backend responded",
		zap.String("endpoint", path),
		zap.Int("status", resp.StatusCode),
		zap.Duration("latency", time.Since(start)),
	)

	switch {
	case resp.StatusCode == http.StatusNotFound || resp.StatusCode == http.StatusUnprocessableEntity:
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("%w: %s", ErrNoRoute, strings.TrimSpace(string(msg)))
	case resp.StatusCode < 200 || resp.StatusCode >= 300:
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return &BackendError{Endpoint: path, StatusCode: resp.StatusCode, Reason: strings.TrimSpace(string(msg))}
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return &BackendError{Endpoint: path, StatusCode: resp.StatusCode, Reason: "invalid response body: " + err.Error()}
	}
	return nil
}
