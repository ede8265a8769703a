package mapprovider

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/Kilat-Pet-Delivery/service-mileage/internal/domain/maptile"
	"github.com/Kilat-Pet-Delivery/service-mileage/internal/domain/route"
)

const (
	googleStaticURL = "https://maps.googleapis.com/maps/api/staticmap"
	googleScriptURL = "https://maps.googleapis.com/maps/api/js"
)

// GoogleStatic builds Google Static Maps URLs. It is the primary static tier.
type GoogleStatic struct {
	baseURL string
	apiKey  string
}

// NewGoogleStatic creates the provider. An empty baseURL uses the public endpoint.
func NewGoogleStatic(baseURL, apiKey string) *GoogleStatic {
	if baseURL == "" {
		baseURL = googleStaticURL
	}
	return &GoogleStatic{baseURL: baseURL, apiKey: apiKey}
}

// Name returns the provider name.
func (g *GoogleStatic) Name() string { return "google_static" }

// BuildImageURL encodes markers as one markers parameter each and the path as an enc: polyline.
func (g *GoogleStatic) BuildImageURL(req StaticRequest) (string, error) {
	if err := checkDrawable(req); err != nil {
		return "", err
	}

	params := url.Values{}
	params.Set("size", fmt.Sprintf("%dx%d", req.Size.Width, req.Size.Height))
	params.Set("maptype", "roadmap")
	if req.Center != nil {
		params.Set("center", googleCoord(*req.Center))
	}
	if len(req.Markers) == 1 && req.Path.Kind == maptile.PathNone {
		params.Set("zoom", "13")
	}
	for _, m := range req.Markers {
		parts := []string{"color:" + markerColor(m.Kind)}
		// Google draws at most one character per marker. Waypoint 10 and later would lose their
		// number, so the request is left to a tier that can label them.
		switch len(m.Label) {
		case 0:
		case 1:
			parts = append(parts, "label:"+m.Label)
		default:
			return "", fmt.Errorf("%w: %q", ErrLabelUnsupported, m.Label)
		}
		parts = append(parts, googleCoord(m.Position))
		params.Add("markers", strings.Join(parts, "|"))
	}
	if enc := encodedPath(req.Path); enc != "" {
		params.Set("path", "color:0x1a73e8ff|weight:4|enc:"+enc)
	}
	params.Set("key", g.apiKey)

	return g.baseURL + "?" + params.Encode(), nil
}

func googleCoord(p route.LatLng) string {
	return fmt.Sprintf("%.6f,%.6f", p.Lat, p.Lng)
}

// GoogleInteractive describes the Google Maps JavaScript widget.
type GoogleInteractive struct {
	apiKey string
}

// NewGoogleInteractive creates the provider. Without a key it reports itself unavailable.
func NewGoogleInteractive(apiKey string) *GoogleInteractive {
	return &GoogleInteractive{apiKey: apiKey}
}

// Name returns the provider name.
func (g *GoogleInteractive) Name() string { return "google_js" }

// Available reports whether an interactive map can be served.
func (g *GoogleInteractive) Available() bool { return g != nil && g.apiKey != "" }

// RenderInteractive returns what the client needs to draw the route itself.
func (g *GoogleInteractive) RenderInteractive(center route.LatLng, bounds *route.BoundingBox, markers []maptile.Marker, path maptile.Path) (*maptile.InteractiveView, error) {
	if !g.Available() {
		return nil, fmt.Errorf("interactive provider %s is not configured", g.Name())
	}
	params := url.Values{}
	params.Set("key", g.apiKey)
	params.Set("libraries", "geometry")
	return &maptile.InteractiveView{
		Provider:  g.Name(),
		ScriptURL: googleScriptURL + "?" + params.Encode(),
		Center:    center,
		Bounds:    bounds,
		Markers:   markers,
		Path:      path,
	}, nil
}
