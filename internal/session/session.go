// Package session wires one engine instance per UI session: the location
// resolver, heatmap refresher, nearest orchestrator, dashboard and detail
// drill-down, all drawing on a shared canvas.
package session

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/couchcryptid/parkwise/internal/dashboard"
	"github.com/couchcryptid/parkwise/internal/detail"
	"github.com/couchcryptid/parkwise/internal/domain"
	"github.com/couchcryptid/parkwise/internal/geolocation"
	"github.com/couchcryptid/parkwise/internal/heatmap"
	"github.com/couchcryptid/parkwise/internal/location"
	"github.com/couchcryptid/parkwise/internal/nearest"
	"github.com/couchcryptid/parkwise/internal/observability"
	"github.com/couchcryptid/parkwise/internal/render"
	"github.com/couchcryptid/parkwise/internal/render/canvas"
)

// Remote is the analytics service as the engine uses it.
type Remote interface {
	heatmap.Source
	nearest.Source
	location.AddressGeocoder
	dashboard.Source
	detail.Source
}

// Options configures a session.
type Options struct {
	Center       domain.LatLng
	Zoom         int
	MinZoom      int
	NearestLimit int
	Geolocation  geolocation.Options
	Filters      domain.QueryFilters
}

// DefaultOptions centres on downtown Chicago with the default filters.
func DefaultOptions() Options {
	return Options{
		Center:       domain.LatLng{Lat: 41.8781, Lng: -87.6298},
		Zoom:         12,
		MinZoom:      13,
		NearestLimit: nearest.DefaultLimit,
		Geolocation:  geolocation.DefaultOptions(),
		Filters:      domain.DefaultFilters(),
	}
}

// Session is one engine instance.
type Session struct {
	ID string

	canvas    *canvas.Canvas
	resolver  *location.Resolver
	heatmap   *heatmap.Refresher
	nearest   *nearest.Orchestrator
	dashboard *dashboard.Aggregator
	detail    *detail.DrillDown
	logger    *slog.Logger

	started sync.Once

	mu      sync.Mutex
	filters domain.QueryFilters
}

// New builds a session drawing on a fresh canvas.
func New(id string, remote Remote, locator geolocation.Locator, opts Options, logger *slog.Logger, metrics *observability.Metrics) *Session {
	if opts.Filters.RadiusMiles <= 0 {
		opts.Filters.RadiusMiles = domain.DefaultRadiusMiles
	}
	logger = logger.With("session", id)
	c := canvas.New(opts.Center, opts.Zoom)

	s := &Session{
		ID:      id,
		canvas:  c,
		logger:  logger,
		filters: opts.Filters,
	}
	s.resolver = location.NewResolver(locator, remote, c,
		location.Config{Options: opts.Geolocation, MinZoom: opts.MinZoom}, logger, metrics)
	s.heatmap = heatmap.NewRefresher(remote, heatmap.View{
		Heat:     c,
		Hotspots: c.Hotspots(),
		Counter:  c,
		Notifier: c,
		Busy:     c,
	}, logger, metrics)
	s.nearest = nearest.NewOrchestrator(remote, s.resolver, nearest.View{
		Markers:  c.Nearest(),
		Panel:    c,
		Notifier: c,
		Busy:     c,
	}, opts.NearestLimit, logger, metrics)
	s.dashboard = dashboard.NewAggregator(remote, c, logger, metrics)
	s.detail = detail.NewDrillDown(remote, c, logger, metrics)
	return s
}

// Start runs the initial heatmap refresh and statistics load. Later calls do
// nothing.
func (s *Session) Start(ctx context.Context) {
	s.started.Do(func() {
		f := s.Filters()
		var wg sync.WaitGroup
		wg.Add(2)
		go func() {
			defer wg.Done()
			_, _ = s.heatmap.Refresh(ctx, f.Day, f.Hour)
		}()
		go func() {
			defer wg.Done()
			_, _ = s.dashboard.Load(ctx)
		}()
		wg.Wait()
	})
}

// Filters returns the current time window and radius.
func (s *Session) Filters() domain.QueryFilters {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.filters
}

func (s *Session) setFilters(f domain.QueryFilters) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.filters = f
}

// UpdateHeatmap refreshes the heatmap for a new time window.
func (s *Session) UpdateHeatmap(ctx context.Context, day domain.Day, hour domain.Hour) (heatmap.Result, error) {
	f := s.Filters()
	f.Day, f.Hour = day, hour
	s.setFilters(f)
	return s.heatmap.Refresh(ctx, day, hour)
}

// FindNearest runs a nearest search with filters. ErrNoLocation means the
// search is pending until a location is picked or looked up.
func (s *Session) FindNearest(ctx context.Context, filters domain.QueryFilters) (render.NearestView, error) {
	s.setFilters(filters)
	return s.nearest.Search(ctx, filters)
}

// Geolocate asks the device for its position.
func (s *Session) Geolocate(ctx context.Context) bool {
	return s.resolver.Geolocate(ctx)
}

// EnableManualSelect arms the map for a location pick.
func (s *Session) EnableManualSelect() {
	s.resolver.EnableManualSelect("Click on the map to choose a search location.", false)
}

// Pick handles a map click and issues any pending nearest search. It
// reports whether the click set the location.
func (s *Session) Pick(ctx context.Context, lat, lng float64) bool {
	if !s.resolver.Pick(lat, lng) {
		return false
	}
	s.runPending(ctx)
	return true
}

// LookupAddress geocodes address and issues any pending nearest search.
func (s *Session) LookupAddress(ctx context.Context, address string) error {
	if err := s.resolver.LookupAddress(ctx, address); err != nil {
		return err
	}
	s.runPending(ctx)
	return nil
}

// runPending issues a deferred nearest search. Its outcome is already on the
// canvas, so failures are only logged.
func (s *Session) runPending(ctx context.Context) {
	ran, err := s.nearest.RunPending(ctx)
	if ran && err != nil && !errors.Is(err, domain.ErrStaleResponse) {
		s.logger.Warn("pending nearest search failed", "error", err)
	}
}

// ShowDetails opens the drill-down for location.
func (s *Session) ShowDetails(ctx context.Context, location string) (render.DetailView, error) {
	return s.detail.Show(ctx, location)
}

// CloseDetails hides the drill-down.
func (s *Session) CloseDetails() { s.detail.Close() }

// Selected returns the current search center.
func (s *Session) Selected() (domain.SelectedLocation, bool) { return s.resolver.Selected() }

// LocationState returns the resolver state.
func (s *Session) LocationState() location.State { return s.resolver.State() }

// PendingSearch reports whether a nearest search is waiting for a location.
func (s *Session) PendingSearch() bool {
	_, ok := s.nearest.Pending()
	return ok
}

// Snapshot returns the surface state.
func (s *Session) Snapshot() canvas.Snapshot { return s.canvas.Snapshot() }
