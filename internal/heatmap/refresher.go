package heatmap

import (
	"context"
	"log/slog"
	"sync"

	"github.com/couchcryptid/parkwise/internal/domain"
	"github.com/couchcryptid/parkwise/internal/observability"
	"github.com/couchcryptid/parkwise/internal/render"
)

const (
	msgServiceFailed   = "Failed to load heatmap data"
	msgTransportFailed = "Error loading data. Please try again."
)

// Source fetches violation aggregates for a time window.
type Source interface {
	Heatmap(ctx context.Context, day domain.Day, hour domain.Hour) ([]domain.ViolationAggregate, error)
}

// HotspotCounter displays the number of locations in the current dataset.
type HotspotCounter interface {
	SetHotspotCount(n int)
}

// View is the set of surfaces a refresh draws on.
type View struct {
	Heat     render.HeatLayer
	Hotspots render.MarkerLayer
	Counter  HotspotCounter
	Notifier render.Notifier
	Busy     render.Busy
}

// Refresher owns the currently displayed heatmap dataset.
type Refresher struct {
	source  Source
	view    View
	logger  *slog.Logger
	metrics *observability.Metrics
	gen     domain.Generation

	mu      sync.Mutex
	current []domain.ViolationAggregate
	last    Result
}

// NewRefresher creates a Refresher that draws on view.
func NewRefresher(source Source, view View, logger *slog.Logger, metrics *observability.Metrics) *Refresher {
	return &Refresher{
		source:  source,
		view:    view,
		logger:  logger,
		metrics: metrics,
	}
}

// Refresh fetches aggregates for the window and redraws the heat layer and
// hotspot markers. On failure the previous rendering is left untouched. A
// response that arrives after a newer Refresh was issued is discarded and
// ErrStaleResponse is returned.
func (r *Refresher) Refresh(ctx context.Context, day domain.Day, hour domain.Hour) (Result, error) {
	id := r.gen.Next()
	r.view.Busy.SetBusy(render.ControlUpdateHeatmap, true)
	defer func() {
		if r.gen.IsCurrent(id) {
			r.view.Busy.SetBusy(render.ControlUpdateHeatmap, false)
		}
	}()

	aggs, err := r.source.Heatmap(ctx, day, hour)

	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.gen.IsCurrent(id) {
		r.metrics.StaleResponses.WithLabelValues("heatmap").Inc()
		r.logger.Debug("discarding stale heatmap response", "day", day, "hour", hour)
		return Result{}, domain.ErrStaleResponse
	}

	if err != nil {
		r.logger.Warn("heatmap fetch failed", "day", day, "hour", hour, "error", err)
		if domain.IsTransport(err) {
			r.view.Notifier.Error(msgTransportFailed)
		} else {
			r.view.Notifier.Error(domain.UserMessage(err, msgServiceFailed))
		}
		return Result{}, err
	}

	r.current = aggs
	r.view.Counter.SetHotspotCount(len(aggs))

	result := Transform(aggs)
	r.apply(result)
	r.last = result

	r.metrics.HeatmapPoints.Observe(float64(len(result.Points)))
	if result.Plottable > MaxPoints {
		r.metrics.HeatmapDownsampled.Inc()
		r.logger.Debug("downsampled heatmap points", "from", result.Plottable, "to", len(result.Points))
	}

	r.view.Notifier.Success(SummaryMessage(len(aggs), day, hour))
	return result, nil
}

func (r *Refresher) apply(result Result) {
	if len(result.Points) == 0 {
		r.view.Hotspots.Clear()
		r.view.Heat.SetPoints(nil)
		r.view.Heat.Redraw()
		return
	}

	r.view.Heat.SetPoints(result.HeatPoints())
	r.view.Heat.Redraw()

	r.view.Hotspots.Clear()
	for _, m := range result.Markers {
		r.view.Hotspots.Add(m)
	}
}

// Current returns the dataset most recently applied.
func (r *Refresher) Current() []domain.ViolationAggregate {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]domain.ViolationAggregate, len(r.current))
	copy(out, r.current)
	return out
}

// Last returns the most recently applied transform result.
func (r *Refresher) Last() Result {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.last
}
