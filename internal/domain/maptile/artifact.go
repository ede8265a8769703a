package maptile

import (
	"strconv"

	"github.com/Kilat-Pet-Delivery/service-mileage/internal/domain/route"
	"github.com/Kilat-Pet-Delivery/service-mileage/internal/pkg/domain"
	"github.com/google/uuid"
)

// MarkerKind distinguishes endpoint markers from waypoint markers.
type MarkerKind string

const (
	MarkerOrigin      MarkerKind = "origin"
	MarkerDestination MarkerKind = "destination"
	MarkerWaypoint    MarkerKind = "waypoint"
)

// Marker is one pin on the map.
type Marker struct {
	Kind     MarkerKind   `json:"kind"`
	Label    string       `json:"label"`
	Position route.LatLng `json:"position"`
}

// PathKind says where the drawn path came from.
type PathKind string

const (
	PathNone         PathKind = "none"
	PathPolyline     PathKind = "polyline"
	PathStraightLine PathKind = "straight_line"
)

// Path is the route overlay. Encoded is set for PathPolyline, Points for PathStraightLine.
type Path struct {
	Kind    PathKind       `json:"kind"`
	Encoded string         `json:"encoded,omitempty"`
	Points  []route.LatLng `json:"points,omitempty"`
}

// Size is the requested image size in pixels.
type Size struct {
	Width  int `json:"width"`
	Height int `json:"height"`
}

// Input is everything a render needs. Polyline and Bounds come from a prior route result, if any.
type Input struct {
	Origin      *route.Place
	Destination *route.Place
	Waypoints   []route.Waypoint
	Polyline    string
	Bounds      *route.BoundingBox
	// SkipDisplayRoute forbids the best-effort display route call.
	SkipDisplayRoute bool
}

// HasAnyLocation reports whether at least one place carries coordinates.
func (in Input) HasAnyLocation() bool {
	if in.Origin.HasLocation() || in.Destination.HasLocation() {
		return true
	}
	for i := range in.Waypoints {
		if in.Waypoints[i].Place.HasLocation() {
			return true
		}
	}
	return false
}

// HasRoutingIdentifiers reports whether provider-side routing can be attempted:
// both endpoints and every waypoint need a place identifier.
func (in Input) HasRoutingIdentifiers() bool {
	if !in.Origin.IsResolved() || !in.Destination.IsResolved() {
		return false
	}
	for i := range in.Waypoints {
		if !in.Waypoints[i].Place.IsResolved() {
			return false
		}
	}
	return true
}

// BuildMarkers returns "A" for the origin, "B" for the destination and 1..n for waypoints,
// skipping any place without coordinates. Waypoint numbering follows list order.
func BuildMarkers(in Input) []Marker {
	markers := make([]Marker, 0, len(in.Waypoints)+2)
	if in.Origin.HasLocation() {
		markers = append(markers, Marker{Kind: MarkerOrigin, Label: "A", Position: *in.Origin.Location})
	}
	n := 0
	for i := range in.Waypoints {
		p := &in.Waypoints[i].Place
		if !p.HasLocation() {
			continue
		}
		n++
		markers = append(markers, Marker{Kind: MarkerWaypoint, Label: strconv.Itoa(n), Position: *p.Location})
	}
	if in.Destination.HasLocation() {
		markers = append(markers, Marker{Kind: MarkerDestination, Label: "B", Position: *in.Destination.Location})
	}
	return markers
}

// StraightLinePoints connects origin, each waypoint in order, then destination.
func StraightLinePoints(in Input) []route.LatLng {
	markers := BuildMarkers(in)
	points := make([]route.LatLng, len(markers))
	for i, m := range markers {
		points[i] = m.Position
	}
	return points
}

// InteractiveView is what an interactive map widget needs to draw the route client-side.
type InteractiveView struct {
	Provider  string             `json:"provider"`
	ScriptURL string             `json:"script_url"`
	Center    route.LatLng       `json:"center"`
	Bounds    *route.BoundingBox `json:"bounds,omitempty"`
	Markers   []Marker           `json:"markers"`
	Path      Path               `json:"path"`
}

// Attempt records one static image tier.
type Attempt struct {
	Provider string `json:"provider"`
	URL      string `json:"url"`
	Error    string `json:"error,omitempty"`
}

// Artifact is the displayable result of a render.
type Artifact struct {
	RenderID    uuid.UUID          `json:"render_id"`
	State       RenderState        `json:"state"`
	Provider    string             `json:"provider,omitempty"`
	ImageURL    string             `json:"image_url,omitempty"`
	Interactive *InteractiveView   `json:"interactive,omitempty"`
	Center      *route.LatLng      `json:"center,omitempty"`
	Bounds      *route.BoundingBox `json:"bounds,omitempty"`
	Markers     []Marker           `json:"markers"`
	Path        Path               `json:"path"`
	// ApproxDistanceKm is a great-circle estimate for straight-line paths. Never billed.
	ApproxDistanceKm *float64      `json:"approx_distance_km,omitempty"`
	Retryable        bool          `json:"retryable"`
	Attempts         []Attempt     `json:"attempts,omitempty"`
	History          []RenderState `json:"history"`
}

// Render tracks the state of one render request. A render is never reused after it terminates.
type Render struct {
	id      uuid.UUID
	state   RenderState
	history []RenderState
}

// NewRender starts a render in IDLE.
func NewRender() *Render {
	return &Render{id: uuid.New(), state: StateIdle, history: []RenderState{StateIdle}}
}

// ID returns the render identifier.
func (r *Render) ID() uuid.UUID { return r.id }

// State returns the current state.
func (r *Render) State() RenderState { return r.state }

// History returns every state visited, in order.
func (r *Render) History() []RenderState {
	return append([]RenderState(nil), r.history...)
}

// TransitionTo moves the render to target if the state machine allows it.
func (r *Render) TransitionTo(target RenderState) error {
	if !r.state.CanTransitionTo(target) {
		return domain.NewInvalidStateError(r.state.String(), target.String())
	}
	r.state = target
	r.history = append(r.history, target)
	return nil
}
