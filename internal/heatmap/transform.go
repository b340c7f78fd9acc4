// Package heatmap turns violation aggregates into heat-layer points and
// hotspot markers, and refreshes the displayed layer for a time window.
//
// The transform is pure: the same aggregates always yield the same points and
// markers, so a refresh with an unchanged dataset redraws an identical layer.
package heatmap

import (
	"fmt"
	"math"

	"github.com/couchcryptid/parkwise/internal/domain"
	"github.com/couchcryptid/parkwise/internal/render"
)

const (
	// MaxPoints caps the number of points handed to the heat layer.
	MaxPoints = 3000
	// MarkerThreshold is the raw count above which a hotspot marker is drawn.
	MarkerThreshold = 50
	// MinIntensity keeps every plotted point faintly visible.
	MinIntensity = 0.01

	markerRadius = 8
)

// Marker colors by intensity tier.
const (
	ColorHot  = "#ff0000"
	ColorWarm = "#ffff00"
	ColorCool = "#00ff00"
)

// Result is the output of a transform.
type Result struct {
	Points  []domain.HeatmapPoint
	Markers []render.Marker
	// Plottable is the number of aggregates with finite coordinates before sampling.
	Plottable int
}

// HeatPoints returns the (lat, lng, weight) triples for the heat layer.
func (r Result) HeatPoints() []render.HeatPoint {
	out := make([]render.HeatPoint, len(r.Points))
	for i, p := range r.Points {
		out[i] = render.HeatPoint{Lat: p.Lat, Lng: p.Lng, Weight: p.Intensity}
	}
	return out
}

// Transform filters, downsamples, normalizes, and derives markers.
func Transform(aggs []domain.ViolationAggregate) Result {
	plottable := Plottable(aggs)
	points := Normalize(Downsample(plottable, MaxPoints))
	return Result{
		Points:    points,
		Markers:   Markers(points),
		Plottable: len(plottable),
	}
}

// Plottable drops aggregates whose lat or lng is not finite, keeping order.
func Plottable(aggs []domain.ViolationAggregate) []domain.ViolationAggregate {
	out := make([]domain.ViolationAggregate, 0, len(aggs))
	for _, a := range aggs {
		if domain.IsFinite(a.Lat) && domain.IsFinite(a.Lng) {
			out = append(out, a)
		}
	}
	return out
}

// Downsample keeps every step-th aggregate, step = ceil(n/limit), and caps the
// result at limit. Inputs at or under the limit are returned unchanged.
func Downsample(aggs []domain.ViolationAggregate, limit int) []domain.ViolationAggregate {
	n := len(aggs)
	if limit <= 0 || n <= limit {
		return aggs
	}
	step := (n + limit - 1) / limit
	out := make([]domain.ViolationAggregate, 0, limit)
	for i := 0; i < n && len(out) < limit; i += step {
		out = append(out, aggs[i])
	}
	return out
}

// Normalize scales counts against the batch maximum (floored at 1) and clamps
// intensities to [MinIntensity, 1].
func Normalize(aggs []domain.ViolationAggregate) []domain.HeatmapPoint {
	maxCount := 0
	for _, a := range aggs {
		if a.Count > maxCount {
			maxCount = a.Count
		}
	}
	if maxCount == 0 {
		maxCount = 1
	}

	out := make([]domain.HeatmapPoint, len(aggs))
	for i, a := range aggs {
		intensity := math.Max(math.Min(float64(a.Count)/float64(maxCount), 1), MinIntensity)
		a.Intensity = intensity
		out[i] = domain.HeatmapPoint{Lat: a.Lat, Lng: a.Lng, Intensity: intensity, Aggregate: a}
	}
	return out
}

// MarkerColor maps an intensity to its tier color.
func MarkerColor(intensity float64) string {
	switch {
	case intensity > 0.7:
		return ColorHot
	case intensity > 0.4:
		return ColorWarm
	default:
		return ColorCool
	}
}

// Markers builds a hotspot marker for every point whose raw count exceeds
// MarkerThreshold.
func Markers(points []domain.HeatmapPoint) []render.Marker {
	var out []render.Marker
	for _, p := range points {
		if p.Aggregate.Count <= MarkerThreshold {
			continue
		}
		out = append(out, render.Marker{
			Position: domain.LatLng{Lat: p.Lat, Lng: p.Lng},
			Color:    MarkerColor(p.Intensity),
			Radius:   markerRadius,
			Popup: fmt.Sprintf("%s\nViolations: %d\nAvg Fine: %s",
				p.Aggregate.Location, p.Aggregate.Count, domain.FormatMoney(p.Aggregate.AvgFine)),
			Location: p.Aggregate.Location,
		})
	}
	return out
}

// SummaryMessage is the success message for a refresh that returned n locations.
func SummaryMessage(n int, day domain.Day, hour domain.Hour) string {
	return fmt.Sprintf("Showing %d high-risk locations for %s %s", n, day.Label(), hour.Phrase())
}
