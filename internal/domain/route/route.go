package route

// RouteRequest is what the routing backend receives for a waypoint-aware route.
type RouteRequest struct {
	OriginPlaceID       string     `json:"origin_place_id"`
	DestinationPlaceID  string     `json:"destination_place_id"`
	Waypoints           []Waypoint `json:"waypoints"`
	OptimizeWaypoints   bool       `json:"optimize_waypoints"`
	IncludeAlternatives bool       `json:"include_alternatives"`
}

// BoundingBox is the viewport enclosing a route.
type BoundingBox struct {
	Northeast LatLng `json:"northeast"`
	Southwest LatLng `json:"southwest"`
}

// Center returns the midpoint of the box.
func (b BoundingBox) Center() LatLng {
	return LatLng{
		Lat: (b.Northeast.Lat + b.Southwest.Lat) / 2,
		Lng: (b.Northeast.Lng + b.Southwest.Lng) / 2,
	}
}

// BoundsOf returns the smallest box containing every point, or nil for no points.
func BoundsOf(points []LatLng) *BoundingBox {
	if len(points) == 0 {
		return nil
	}
	box := BoundingBox{Northeast: points[0], Southwest: points[0]}
	for _, p := range points[1:] {
		box.Northeast.Lat = max(box.Northeast.Lat, p.Lat)
		box.Northeast.Lng = max(box.Northeast.Lng, p.Lng)
		box.Southwest.Lat = min(box.Southwest.Lat, p.Lat)
		box.Southwest.Lng = min(box.Southwest.Lng, p.Lng)
	}
	return &box
}

// Leg is one segment between two consecutive stops. DistanceValue is in kilometers.
type Leg struct {
	StartAddress  string  `json:"start_address"`
	EndAddress    string  `json:"end_address"`
	DistanceValue float64 `json:"distance_value"`
	DistanceText  string  `json:"distance_text"`
	DurationValue int     `json:"duration_value"`
	DurationText  string  `json:"duration_text"`
}

// Geometry is the drawable part of a route result.
type Geometry struct {
	Polyline *string      `json:"polyline"`
	Bounds   *BoundingBox `json:"bounds"`
	Legs     []Leg        `json:"legs"`
}

// OptimizedIndex is one entry of the optimizer's permutation.
type OptimizedIndex struct {
	OriginalIndex int `json:"original_index"`
}

// RouteResult is the normalized output of a route computation.
// DistanceValue is always kilometers; raw upstream units never leave the calculator.
type RouteResult struct {
	DistanceValue          float64          `json:"distance_value"`
	DistanceText           string           `json:"distance_text"`
	DurationValue          int              `json:"duration_value"`
	DurationText           string           `json:"duration_text"`
	OptimizedWaypointOrder []OptimizedIndex `json:"optimized_waypoint_order"`
	Route                  *Geometry        `json:"route"`

	// WaypointsOptimized is true only when the optimizer's order was accepted.
	WaypointsOptimized bool `json:"waypoints_optimized"`
	// Degraded marks results produced by the direct fallback after a waypoint route failed.
	Degraded bool `json:"degraded"`
}

// Polyline returns the encoded path, or "" when the result carries no geometry.
func (r *RouteResult) Polyline() string {
	if r == nil || r.Route == nil || r.Route.Polyline == nil {
		return ""
	}
	return *r.Route.Polyline
}

// Clone deep-copies the result.
func (r *RouteResult) Clone() *RouteResult {
	if r == nil {
		return nil
	}
	c := *r
	if r.OptimizedWaypointOrder != nil {
		c.OptimizedWaypointOrder = append([]OptimizedIndex(nil), r.OptimizedWaypointOrder...)
	}
	if r.Route != nil {
		g := *r.Route
		if r.Route.Polyline != nil {
			p := *r.Route.Polyline
			g.Polyline = &p
		}
		if r.Route.Bounds != nil {
			b := *r.Route.Bounds
			g.Bounds = &b
		}
		if r.Route.Legs != nil {
			g.Legs = append([]Leg(nil), r.Route.Legs...)
		}
		c.Route = &g
	}
	return &c
}
