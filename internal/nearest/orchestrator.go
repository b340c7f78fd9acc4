// Package nearest runs nearest-risk searches around the selected location and
// renders the ranked result list and its map markers.
package nearest

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/couchcryptid/parkwise/internal/domain"
	"github.com/couchcryptid/parkwise/internal/observability"
	"github.com/couchcryptid/parkwise/internal/render"
)

const (
	msgServiceFailed   = "Failed to find nearby locations."
	msgTransportFailed = "Error finding nearby locations. Please try again."
)

// ErrNoLocation is returned when a search cannot run because no search
// center is resolved yet. The search is kept pending.
var ErrNoLocation = errors.New("search location not resolved")

// Source runs the remote nearest query.
type Source interface {
	Nearest(ctx context.Context, q domain.NearestQuery) ([]domain.NearestResult, domain.NearestMetadata, error)
}

// Locator supplies the search center, resolving it if it can.
type Locator interface {
	Ensure(ctx context.Context) (domain.SelectedLocation, bool)
}

// Panel displays the nearest-risk list.
type Panel interface {
	ShowNearest(v render.NearestView)
}

// View is the set of surfaces a search draws on.
type View struct {
	Markers  render.MarkerLayer
	Panel    Panel
	Notifier render.Notifier
	Busy     render.Busy
}

// Orchestrator owns the nearest-risk panel and markers.
type Orchestrator struct {
	source  Source
	locator Locator
	view    View
	limit   int
	logger  *slog.Logger
	metrics *observability.Metrics
	gen     domain.Generation

	mu      sync.Mutex
	pending *domain.QueryFilters
	results []domain.NearestResult
	last    *render.NearestView
}

// NewOrchestrator creates an Orchestrator requesting limit results per search.
func NewOrchestrator(source Source, locator Locator, view View, limit int, logger *slog.Logger, metrics *observability.Metrics) *Orchestrator {
	if limit <= 0 {
		limit = DefaultLimit
	}
	return &Orchestrator{
		source:  source,
		locator: locator,
		view:    view,
		limit:   limit,
		logger:  logger,
		metrics: metrics,
	}
}

// Search runs a nearest-risk query for filters around the selected location.
// Without a location the filters are stored as pending and ErrNoLocation is
// returned. Service and transport failures render an empty view echoing the
// attempted filters.
func (o *Orchestrator) Search(ctx context.Context, filters domain.QueryFilters) (render.NearestView, error) {
	if filters.RadiusMiles <= 0 || !domain.IsFinite(filters.RadiusMiles) {
		return render.NearestView{}, &domain.ValidationError{Field: "radius", Reason: "must be a positive number of miles"}
	}

	sel, ok := o.locator.Ensure(ctx)
	if !ok {
		o.mu.Lock()
		f := filters
		o.pending = &f
		o.mu.Unlock()
		return render.NearestView{}, ErrNoLocation
	}

	o.mu.Lock()
	o.pending = nil
	o.mu.Unlock()

	return o.run(ctx, sel, filters)
}

// Pending reports the filters of a search waiting for a location.
func (o *Orchestrator) Pending() (domain.QueryFilters, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.pending == nil {
		return domain.QueryFilters{}, false
	}
	return *o.pending, true
}

// RunPending issues the pending search, if any. It reports whether one ran.
func (o *Orchestrator) RunPending(ctx context.Context) (bool, error) {
	filters, ok := o.Pending()
	if !ok {
		return false, nil
	}
	_, err := o.Search(ctx, filters)
	return true, err
}

func (o *Orchestrator) run(ctx context.Context, sel domain.SelectedLocation, filters domain.QueryFilters) (render.NearestView, error) {
	id := o.gen.Next()
	o.view.Busy.SetBusy(render.ControlFindNearest, true)
	defer func() {
		if o.gen.IsCurrent(id) {
			o.view.Busy.SetBusy(render.ControlFindNearest, false)
		}
	}()

	q := domain.NearestQuery{
		Center:      sel.LatLng,
		RadiusMiles: filters.RadiusMiles,
		Day:         filters.Day,
		Hour:        filters.Hour,
		Limit:       o.limit,
	}
	results, meta, err := o.source.Nearest(ctx, q)

	o.mu.Lock()
	defer o.mu.Unlock()

	if !o.gen.IsCurrent(id) {
		o.metrics.StaleResponses.WithLabelValues("nearest").Inc()
		o.logger.Debug("discarding stale nearest response", "lat", sel.Lat, "lng", sel.Lng)
		return render.NearestView{}, domain.ErrStaleResponse
	}

	if err != nil {
		o.logger.Warn("nearest search failed", "lat", sel.Lat, "lng", sel.Lng, "radius", filters.RadiusMiles, "error", err)
		if domain.IsTransport(err) {
			o.view.Notifier.Error(msgTransportFailed)
		} else {
			o.view.Notifier.Error(domain.UserMessage(err, msgServiceFailed))
		}
		view := o.apply(nil, sel.Description, EchoOf(domain.NearestMetadata{}, filters))
		return view, err
	}

	if len(results) > o.limit {
		results = results[:o.limit]
	}
	if i := OutOfOrder(results); i >= 0 {
		o.metrics.NearestOrderViolations.Inc()
		o.logger.Warn("nearest results not ordered by distance", "index", i, "location", results[i].Location)
	}

	view := o.apply(results, sel.Description, EchoOf(meta, filters))
	o.view.Notifier.Success(FoundMessage(len(results), filters.RadiusMiles))
	return view, nil
}

// apply must be called with o.mu held.
func (o *Orchestrator) apply(results []domain.NearestResult, description string, e Echo) render.NearestView {
	view := BuildView(results, description, e)

	o.view.Markers.Clear()
	for _, m := range Markers(results) {
		o.view.Markers.Add(m)
	}
	o.view.Panel.ShowNearest(view)

	o.results = results
	o.last = &view
	return view
}

// Results returns the results currently displayed.
func (o *Orchestrator) Results() []domain.NearestResult {
	o.mu.Lock()
	defer o.mu.Unlock()
	out := make([]domain.NearestResult, len(o.results))
	copy(out, o.results)
	return out
}

// Last returns the view currently displayed, if a search has rendered.
func (o *Orchestrator) Last() (render.NearestView, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.last == nil {
		return render.NearestView{}, false
	}
	return *o.last, true
}
