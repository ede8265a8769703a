package route

// LatLng is a WGS84 coordinate.
type LatLng struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// Place is a geocoded location with a provider-assigned identifier.
// Location is nil when resolution did not yield coordinates; callers must check it.
type Place struct {
	PlaceID          string  `json:"place_id"`
	Description      string  `json:"description"`
	FormattedAddress string  `json:"formatted_address"`
	Location         *LatLng `json:"location"`
}

// IsResolved reports whether the place carries a provider identifier.
func (p *Place) IsResolved() bool {
	return p != nil && p.PlaceID != ""
}

// HasLocation reports whether the place carries coordinates.
func (p *Place) HasLocation() bool {
	return p != nil && p.Location != nil
}

// Label returns the best human-readable name for the place.
func (p *Place) Label() string {
	if p == nil {
		return ""
	}
	if p.FormattedAddress != "" {
		return p.FormattedAddress
	}
	return p.Description
}

// Clone returns a deep copy so snapshots never share coordinates with a live draft.
func (p *Place) Clone() *Place {
	if p == nil {
		return nil
	}
	c := *p
	if p.Location != nil {
		loc := *p.Location
		c.Location = &loc
	}
	return &c
}

// Waypoint is an intermediate stop. Order within a slice is significant.
type Waypoint struct {
	Place    Place `json:"place"`
	Stopover bool  `json:"stopover"`
}

// CloneWaypoints deep-copies a waypoint list.
func CloneWaypoints(wps []Waypoint) []Waypoint {
	if wps == nil {
		return nil
	}
	out := make([]Waypoint, len(wps))
	for i, wp := range wps {
		out[i] = Waypoint{Place: *wp.Place.Clone(), Stopover: wp.Stopover}
	}
	return out
}
