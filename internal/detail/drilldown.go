// Package detail opens the per-location breakdown of violation patterns and
// types.
package detail

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/couchcryptid/parkwise/internal/domain"
	"github.com/couchcryptid/parkwise/internal/observability"
	"github.com/couchcryptid/parkwise/internal/render"
)

// MaxPatterns is the number of weekday/hour patterns shown.
const MaxPatterns = 10

// Source fetches the breakdown for one location.
type Source interface {
	LocationDetails(ctx context.Context, location string) (domain.LocationDetail, error)
}

// Modal displays and hides the detail view.
type Modal interface {
	OpenDetail(v render.DetailView)
	CloseDetail()
}

// DrillDown owns the detail modal.
type DrillDown struct {
	source  Source
	modal   Modal
	logger  *slog.Logger
	metrics *observability.Metrics
	gen     domain.Generation

	mu   sync.Mutex
	open *render.DetailView
}

// NewDrillDown creates a DrillDown drawing on modal.
func NewDrillDown(source Source, modal Modal, logger *slog.Logger, metrics *observability.Metrics) *DrillDown {
	return &DrillDown{source: source, modal: modal, logger: logger, metrics: metrics}
}

// Show fetches the breakdown for location and opens the modal. On failure
// the modal is left as it was.
func (d *DrillDown) Show(ctx context.Context, location string) (render.DetailView, error) {
	location = strings.TrimSpace(location)
	if location == "" {
		return render.DetailView{}, &domain.ValidationError{Field: "location", Reason: "empty"}
	}

	id := d.gen.Next()
	detail, err := d.source.LocationDetails(ctx, location)

	d.mu.Lock()
	defer d.mu.Unlock()

	if !d.gen.IsCurrent(id) {
		d.metrics.StaleResponses.WithLabelValues("details").Inc()
		return render.DetailView{}, domain.ErrStaleResponse
	}
	if err != nil {
		d.logger.Error("load location details", "location", location, "error", err)
		return render.DetailView{}, err
	}

	if detail.Location == "" {
		detail.Location = location
	}
	view := BuildView(detail)
	d.modal.OpenDetail(view)
	d.open = &view
	return view, nil
}

// Close hides the modal.
func (d *DrillDown) Close() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.open = nil
	d.modal.CloseDetail()
}

// Open returns the view currently shown, if the modal is open.
func (d *DrillDown) Open() (render.DetailView, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.open == nil {
		return render.DetailView{}, false
	}
	return *d.open, true
}

// BuildView renders the first MaxPatterns patterns in service order and
// every violation type.
func BuildView(detail domain.LocationDetail) render.DetailView {
	patterns := detail.Patterns
	if len(patterns) > MaxPatterns {
		patterns = patterns[:MaxPatterns]
	}

	v := render.DetailView{
		Title:    detail.Location,
		Patterns: make([]render.PatternItem, 0, len(patterns)),
		Types:    make([]render.ListItem, 0, len(detail.ViolationTypes)),
	}
	for _, p := range patterns {
		v.Patterns = append(v.Patterns, render.PatternItem{
			Slot:    fmt.Sprintf("%s %d:00", p.DayOfWeek, p.Hour),
			Count:   fmt.Sprintf("%d violations", p.Count),
			AvgFine: "Avg: " + domain.FormatMoney(p.AvgFine),
		})
	}
	for _, t := range detail.ViolationTypes {
		v.Types = append(v.Types, render.ListItem{
			Title:    t.ViolationType,
			Subtitle: fmt.Sprintf("%d tickets ($%s)", t.Count, domain.FormatFine(t.Fine)),
		})
	}
	return v
}
