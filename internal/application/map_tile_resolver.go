package application

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Kilat-Pet-Delivery/service-mileage/internal/domain/maptile"
	"github.com/Kilat-Pet-Delivery/service-mileage/internal/domain/route"
	"github.com/Kilat-Pet-Delivery/service-mileage/internal/mapprovider"
	"github.com/Kilat-Pet-Delivery/service-mileage/internal/pkg/domain"
	"github.com/Kilat-Pet-Delivery/service-mileage/internal/pkg/fallback"
	"github.com/Kilat-Pet-Delivery/service-mileage/internal/routing"
	"go.uber.org/zap"
)

// DisplayRouter computes a route for drawing only. It is the same backend as billing uses but its
// failures never reach the caller.
type DisplayRouter interface {
	OptimizeRoute(ctx context.Context, req route.RouteRequest) (*routing.RouteResponse, error)
}

// MapTileConfig configures the resolver.
type MapTileConfig struct {
	Size                maptile.Size
	DisplayRouteTimeout time.Duration
	PreferInteractive   bool
}

// MapTileResolver produces a displayable map from places, falling back across providers.
type MapTileResolver struct {
	interactive mapprovider.InteractiveProvider
	primary     mapprovider.StaticProvider
	secondary   mapprovider.StaticProvider
	loader      mapprovider.ImageLoader
	display     DisplayRouter
	cfg         MapTileConfig
	logger      *zap.Logger
}

// NewMapTileResolver creates a new MapTileResolver. interactive and display may be nil.
func NewMapTileResolver(
	interactive mapprovider.InteractiveProvider,
	primary mapprovider.StaticProvider,
	secondary mapprovider.StaticProvider,
	loader mapprovider.ImageLoader,
	display DisplayRouter,
	cfg MapTileConfig,
	logger *zap.Logger,
) *MapTileResolver {
	if cfg.Size.Width <= 0 || cfg.Size.Height <= 0 {
		cfg.Size = maptile.Size{Width: 640, Height: 400}
	}
	if cfg.DisplayRouteTimeout <= 0 {
		cfg.DisplayRouteTimeout = 5 * time.Second
	}
	return &MapTileResolver{
		interactive: interactive,
		primary:     primary,
		secondary:   secondary,
		loader:      loader,
		display:     display,
		cfg:         cfg,
		logger:      logger,
	}
}

// Resolve runs one render. Every call starts a fresh state machine. When both static tiers fail
// the returned artifact is FAILED and retryable, and the error is MapRenderFailed.
func (r *MapTileResolver) Resolve(ctx context.Context, in maptile.Input) (*maptile.Artifact, error) {
	render := maptile.NewRender()

	if !in.HasAnyLocation() {
		if err := render.TransitionTo(maptile.StateEmpty); err != nil {
			return nil, err
		}
		r.logger.Debug("map render skipped, no coordinates", zap.String("render_id", render.ID().String()))
		return &maptile.Artifact{
			RenderID: render.ID(),
			State:    render.State(),
			Markers:  []maptile.Marker{},
			Path:     maptile.Path{Kind: maptile.PathNone},
			History:  render.History(),
		}, nil
	}

	if err := render.TransitionTo(maptile.StateResolving); err != nil {
		return nil, err
	}

	markers := maptile.BuildMarkers(in)
	path, bounds, approx := r.resolvePath(ctx, in)
	if bounds == nil {
		bounds = route.BoundsOf(markerPositions(markers))
	}
	var center *route.LatLng
	if bounds != nil {
		c := bounds.Center()
		center = &c
	}

	artifact := &maptile.Artifact{
		RenderID:         render.ID(),
		Center:           center,
		Bounds:           bounds,
		Markers:          markers,
		Path:             path,
		ApproxDistanceKm: approx,
	}

	if r.cfg.PreferInteractive && r.interactive != nil && r.interactive.Available() &&
		path.Kind == maptile.PathPolyline && center != nil {
		view, err := r.interactive.RenderInteractive(*center, bounds, markers, path)
		if err == nil {
			if err := render.TransitionTo(maptile.StateRenderedInteractive); err != nil {
				return nil, err
			}
			artifact.Provider = r.interactive.Name()
			artifact.Interactive = view
			return r.finish(artifact, render), nil
		}
		r.logger.Warn("interactive map unavailable, using static image", zap.Error(err))
	}

	req := mapprovider.StaticRequest{Center: center, Markers: markers, Path: path, Size: r.cfg.Size}
	steps := []fallback.Step[string]{
		r.staticStep(render, maptile.StateRenderedStaticPrimary, r.primary, req, artifact),
		r.staticStep(render, maptile.StateRenderedStaticFallback, r.secondary, req, artifact),
	}

	imageURL, provider, err := fallback.TryInOrder(ctx, steps, func(step string, attempt int, err error) {
		r.logger.Warn("static map tier failed",
			zap.String("provider", step),
			zap.Int("attempt", attempt),
			zap.String("render_id", render.ID().String()),
			zap.Error(err),
		)
	})
	if err != nil && !errors.Is(err, fallback.ErrExhausted) && ctx.Err() != nil {
		// Cancelled between tiers: no tier is exhausted, so there is no FAILED artifact to report.
		r.logger.Info("map rendering cancelled",
			zap.String("render_id", render.ID().String()),
			zap.String("state", render.State().String()),
		)
		return nil, fmt.Errorf("map rendering cancelled: %w", err)
	}
	if err != nil {
		if render.State().CanTransitionTo(maptile.StateFailed) {
			_ = render.TransitionTo(maptile.StateFailed)
		}
		artifact.Retryable = true
		r.logger.Error("map rendering failed on every provider",
			zap.String("render_id", render.ID().String()),
			zap.Error(err),
		)
		return r.finish(artifact, render), domain.NewMapRenderError("map could not be rendered", err)
	}

	artifact.Provider = provider
	artifact.ImageURL = imageURL
	return r.finish(artifact, render), nil
}

// staticStep builds one provider tier. Entering the tier's state happens before the URL is built,
// so a failed primary always passes through RENDERED_STATIC_PRIMARY.
func (r *MapTileResolver) staticStep(
	render *maptile.Render,
	state maptile.RenderState,
	provider mapprovider.StaticProvider,
	req mapprovider.StaticRequest,
	artifact *maptile.Artifact,
) fallback.Step[string] {
	return fallback.Step[string]{
		Name: provider.Name(),
		Run: func(ctx context.Context) (string, error) {
			if err := render.TransitionTo(state); err != nil {
				return "", fallback.Abort(err)
			}
			imageURL, err := provider.BuildImageURL(req)
			if err != nil {
				artifact.Attempts = append(artifact.Attempts, maptile.Attempt{Provider: provider.Name(), Error: err.Error()})
				return "", err
			}
			if err := r.loader.Load(ctx, imageURL); err != nil {
				artifact.Attempts = append(artifact.Attempts, maptile.Attempt{Provider: provider.Name(), URL: imageURL, Error: err.Error()})
				return "", err
			}
			artifact.Attempts = append(artifact.Attempts, maptile.Attempt{Provider: provider.Name(), URL: imageURL})
			return imageURL, nil
		},
	}
}

// resolvePath prefers a known polyline, then a best-effort display route, then a straight line.
func (r *MapTileResolver) resolvePath(ctx context.Context, in maptile.Input) (maptile.Path, *route.BoundingBox, *float64) {
	if in.Polyline != "" {
		return maptile.Path{Kind: maptile.PathPolyline, Encoded: in.Polyline}, in.Bounds, nil
	}

	if r.display != nil && !in.SkipDisplayRoute && in.HasRoutingIdentifiers() {
		if path, bounds, ok := r.displayRoute(ctx, in); ok {
			return path, bounds, nil
		}
	}

	points := maptile.StraightLinePoints(in)
	if len(points) < 2 {
		return maptile.Path{Kind: maptile.PathNone}, nil, nil
	}
	approx := route.PathLengthKm(points)
	return maptile.Path{Kind: maptile.PathStraightLine, Points: points}, nil, &approx
}

func (r *MapTileResolver) displayRoute(ctx context.Context, in maptile.Input) (maptile.Path, *route.BoundingBox, bool) {
	ctx, cancel := context.WithTimeout(ctx, r.cfg.DisplayRouteTimeout)
	defer cancel()

	resp, err := r.display.OptimizeRoute(ctx, route.RouteRequest{
		OriginPlaceID:      in.Origin.PlaceID,
		DestinationPlaceID: in.Destination.PlaceID,
		Waypoints:          in.Waypoints,
		OptimizeWaypoints:  false,
	})
	if err != nil {
		r.logger.Warn("display route failed, drawing straight line", zap.Error(err))
		return maptile.Path{}, nil, false
	}
	if resp.Route == nil || resp.Route.Polyline == nil || *resp.Route.Polyline == "" {
		r.logger.Debug("display route has no polyline, drawing straight line")
		return maptile.Path{}, nil, false
	}

	geom := toGeometry(resp.Route, route.UnitKilometers)
	return maptile.Path{Kind: maptile.PathPolyline, Encoded: *geom.Polyline}, geom.Bounds, true
}

func (r *MapTileResolver) finish(a *maptile.Artifact, render *maptile.Render) *maptile.Artifact {
	a.State = render.State()
	a.History = render.History()
	return a
}

func markerPositions(markers []maptile.Marker) []route.LatLng {
	out := make([]route.LatLng, len(markers))
	for i, m := range markers {
		out[i] = m.Position
	}
	return out
}

// InputFromSnapshot rebuilds a render input from a stored snapshot without recomputing anything.
func InputFromSnapshot(s *route.RouteSnapshot) maptile.Input {
	if s == nil {
		return maptile.Input{}
	}
	in := maptile.Input{
		Origin:      s.Origin.Clone(),
		Destination: s.Destination.Clone(),
		Waypoints:   route.CloneWaypoints(s.Waypoints),
		Polyline:    s.Result.Polyline(),
		// Stored expenses are redrawn from what was persisted only.
		SkipDisplayRoute: true,
	}
	if s.Result.Route != nil && s.Result.Route.Bounds != nil {
		b := *s.Result.Route.Bounds
		in.Bounds = &b
	}
	return in
}
