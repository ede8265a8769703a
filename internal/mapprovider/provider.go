// Package mapprovider builds map images and interactive map descriptors for the map resolver.
package mapprovider

import (
	"context"
	"errors"
	"fmt"

	"github.com/Kilat-Pet-Delivery/service-mileage/internal/domain/maptile"
	"github.com/Kilat-Pet-Delivery/service-mileage/internal/domain/route"
	"github.com/twpayne/go-polyline"
)

// ErrNothingToDraw is returned when a request carries neither markers nor a path.
var ErrNothingToDraw = errors.New("map request has nothing to draw")

// ErrLabelUnsupported is returned by a provider that cannot draw one of the marker labels.
var ErrLabelUnsupported = errors.New("marker label not supported by provider")

// StaticRequest is the provider-neutral description of a static map.
type StaticRequest struct {
	Center  *route.LatLng
	Markers []maptile.Marker
	Path    maptile.Path
	Size    maptile.Size
}

// StaticProvider turns a StaticRequest into an image URL. Building a URL never touches the network.
type StaticProvider interface {
	Name() string
	BuildImageURL(req StaticRequest) (string, error)
}

// InteractiveProvider describes a client-side map widget.
type InteractiveProvider interface {
	Name() string
	Available() bool
	RenderInteractive(center route.LatLng, bounds *route.BoundingBox, markers []maptile.Marker, path maptile.Path) (*maptile.InteractiveView, error)
}

// ImageLoader checks that an image URL actually loads.
type ImageLoader interface {
	Load(ctx context.Context, url string) error
}

// pathCoords returns the path as [lat, lng] pairs, decoding an encoded polyline if needed.
func pathCoords(p maptile.Path) ([][]float64, error) {
	switch p.Kind {
	case maptile.PathPolyline:
		coords, _, err := polyline.DecodeCoords([]byte(p.Encoded))
		if err != nil {
			return nil, fmt.Errorf("failed to decode polyline: %w", err)
		}
		return coords, nil
	case maptile.PathStraightLine:
		coords := make([][]float64, len(p.Points))
		for i, pt := range p.Points {
			coords[i] = []float64{pt.Lat, pt.Lng}
		}
		return coords, nil
	default:
		return nil, nil
	}
}

// encodedPath returns the path as an encoded polyline, encoding straight lines on the fly.
func encodedPath(p maptile.Path) string {
	switch p.Kind {
	case maptile.PathPolyline:
		return p.Encoded
	case maptile.PathStraightLine:
		if len(p.Points) < 2 {
			return ""
		}
		coords, _ := pathCoords(p)
		return string(polyline.EncodeCoords(coords))
	default:
		return ""
	}
}

func markerColor(kind maptile.MarkerKind) string {
	switch kind {
	case maptile.MarkerOrigin:
		return "green"
	case maptile.MarkerDestination:
		return "red"
	default:
		return "blue"
	}
}

func checkDrawable(req StaticRequest) error {
	if len(req.Markers) == 0 && req.Path.Kind == maptile.PathNone && req.Center == nil {
		return ErrNothingToDraw
	}
	return nil
}
