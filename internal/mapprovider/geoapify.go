package mapprovider

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/Kilat-Pet-Delivery/service-mileage/internal/domain/maptile"
)

const geoapifyStaticURL = "https://maps.geoapify.com/v1/staticmap"

// maxGeoapifyPoints caps the geometry so the URL stays within request limits.
const maxGeoapifyPoints = 200

// GeoapifyStatic builds Geoapify static map URLs. It is the secondary static tier.
// Geoapify takes plain lon,lat lists, so encoded polylines are decoded first.
type GeoapifyStatic struct {
	baseURL string
	apiKey  string
	style   string
}

// NewGeoapifyStatic creates the provider. An empty baseURL uses the public endpoint.
func NewGeoapifyStatic(baseURL, apiKey string) *GeoapifyStatic {
	if baseURL == "" {
		baseURL = geoapifyStaticURL
	}
	return &GeoapifyStatic{baseURL: baseURL, apiKey: apiKey, style: "osm-bright"}
}

// Name returns the provider name.
func (g *GeoapifyStatic) Name() string { return "geoapify_static" }

// BuildImageURL uses Geoapify's pipe-separated marker list and a polyline geometry.
func (g *GeoapifyStatic) BuildImageURL(req StaticRequest) (string, error) {
	if err := checkDrawable(req); err != nil {
		return "", err
	}

	params := url.Values{}
	params.Set("style", g.style)
	params.Set("width", fmt.Sprint(req.Size.Width))
	params.Set("height", fmt.Sprint(req.Size.Height))

	if len(req.Markers) > 0 {
		markers := make([]string, len(req.Markers))
		for i, m := range req.Markers {
			markers[i] = fmt.Sprintf("lonlat:%.6f,%.6f;type:material;color:%s;text:%s",
				m.Position.Lng, m.Position.Lat, markerColor(m.Kind), m.Label)
		}
		params.Set("marker", strings.Join(markers, "|"))
	}

	coords, err := pathCoords(req.Path)
	if err != nil {
		return "", err
	}
	if len(coords) >= 2 {
		coords = thin(coords, maxGeoapifyPoints)
		pts := make([]string, len(coords))
		for i, c := range coords {
			pts[i] = fmt.Sprintf("%.5f,%.5f", c[1], c[0])
		}
		params.Set("geometry", "polyline:"+strings.Join(pts, ",")+";linecolor:#1a73e8;linewidth:4")
	}

	if req.Center != nil && (len(req.Markers) <= 1 && req.Path.Kind == maptile.PathNone) {
		params.Set("center", fmt.Sprintf("lonlat:%.6f,%.6f", req.Center.Lng, req.Center.Lat))
		params.Set("zoom", "13")
	}
	params.Set("apiKey", g.apiKey)

	return g.baseURL + "?" + params.Encode(), nil
}

// thin keeps at most limit points, always including the first and last.
func thin(coords [][]float64, limit int) [][]float64 {
	if len(coords) <= limit || limit < 2 {
		return coords
	}
	out := make([][]float64, 0, limit)
	step := float64(len(coords)-1) / float64(limit-1)
	for i := 0; i < limit-1; i++ {
		out = append(out, coords[int(float64(i)*step)])
	}
	return append(out, coords[len(coords)-1])
}
