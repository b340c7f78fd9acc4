// Package dashboard loads the global violation statistics and renders the
// dashboard panel: quick stats, top violations, peak hours and hot locations.
package dashboard

import (
	"context"
	"log/slog"
	"math"
	"strconv"
	"sync"

	"gonum.org/v1/gonum/stat"

	"github.com/couchcryptid/parkwise/internal/domain"
	"github.com/couchcryptid/parkwise/internal/observability"
	"github.com/couchcryptid/parkwise/internal/render"
)

// Source fetches the global statistics.
type Source interface {
	Statistics(ctx context.Context) (domain.Statistics, error)
}

// Panel displays the dashboard.
type Panel interface {
	ShowDashboard(v render.DashboardView)
}

// Aggregator owns the dashboard panel.
type Aggregator struct {
	source  Source
	panel   Panel
	logger  *slog.Logger
	metrics *observability.Metrics
	gen     domain.Generation

	mu   sync.Mutex
	last *render.DashboardView
}

// NewAggregator creates an Aggregator drawing on panel.
func NewAggregator(source Source, panel Panel, logger *slog.Logger, metrics *observability.Metrics) *Aggregator {
	return &Aggregator{source: source, panel: panel, logger: logger, metrics: metrics}
}

// Load fetches statistics and renders them. Failures are logged and the
// panel keeps whatever it showed before.
func (a *Aggregator) Load(ctx context.Context) (render.DashboardView, error) {
	id := a.gen.Next()
	stats, err := a.source.Statistics(ctx)

	a.mu.Lock()
	defer a.mu.Unlock()

	if !a.gen.IsCurrent(id) {
		a.metrics.StaleResponses.WithLabelValues("statistics").Inc()
		return render.DashboardView{}, domain.ErrStaleResponse
	}
	if err != nil {
		a.logger.Error("load statistics", "error", err)
		return render.DashboardView{}, err
	}

	view := BuildView(stats)
	a.panel.ShowDashboard(view)
	a.last = &view
	return view, nil
}

// Last returns the view currently displayed, if any.
func (a *Aggregator) Last() (render.DashboardView, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.last == nil {
		return render.DashboardView{}, false
	}
	return *a.last, true
}

// BuildView renders statistics into the dashboard descriptor.
func BuildView(s domain.Statistics) render.DashboardView {
	v := render.DashboardView{
		Summary: render.SummaryView{
			TotalViolations: domain.FormatCount(s.TotalViolations),
			AvgFine:         domain.FormatMoney(AverageFine(s.TopViolations)),
		},
		TopViolations: make([]render.ListItem, 0, len(s.TopViolations)),
		PeakHours:     PeakHourSeries(s.PeakHours),
		HotLocations:  make([]render.ListItem, 0, len(s.HotLocations)),
	}
	for _, t := range s.TopViolations {
		v.TopViolations = append(v.TopViolations, render.ListItem{
			Title:    t.ViolationType,
			Subtitle: domain.FormatCount(t.Count) + " tickets",
			Trailing: "$" + domain.FormatFine(t.Fine),
		})
	}
	for _, l := range s.HotLocations {
		v.HotLocations = append(v.HotLocations, render.ListItem{
			Title:    l.Location,
			Subtitle: domain.FormatCount(l.Count) + " violations",
			Location: l.Location,
		})
	}
	return v
}

// AverageFine is the unweighted mean of the listed fines. It ignores ticket
// counts, so it approximates rather than computes the true average fine. It
// is NaN for an empty list.
func AverageFine(top []domain.ViolationTypeCount) float64 {
	if len(top) == 0 {
		return math.NaN()
	}
	fines := make([]float64, len(top))
	for i, t := range top {
		fines[i] = t.Fine
	}
	return stat.Mean(fines, nil)
}

// PeakHourSeries renders hour buckets as a bar series labelled "H:00".
func PeakHourSeries(hours []domain.HourCount) render.BarSeries {
	s := render.BarSeries{
		Name:   "Violations",
		Labels: make([]string, len(hours)),
		Values: make([]float64, len(hours)),
	}
	for i, h := range hours {
		s.Labels[i] = strconv.Itoa(h.Hour) + ":00"
		s.Values[i] = float64(h.Count)
	}
	return s
}
