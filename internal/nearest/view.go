package nearest

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/couchcryptid/parkwise/internal/domain"
	"github.com/couchcryptid/parkwise/internal/render"
)

const (
	// DefaultLimit is the number of results requested per search.
	DefaultLimit = 20

	markerRadius = 7

	fallbackLabel = "your search point"
	emptyState    = "No violation history near this spot for the selected window."
	msgNoResults  = "No violation history found near that spot for the selected time window."
)

// Echo is the filter set a view is labelled with: the service's metadata when
// it sent any, otherwise the filters of the request.
type Echo struct {
	Radius float64
	Day    string
	Hour   string
}

// EchoOf merges the service metadata over the request filters field by field.
func EchoOf(meta domain.NearestMetadata, filters domain.QueryFilters) Echo {
	e := Echo{
		Radius: filters.RadiusMiles,
		Day:    string(filters.Day),
		Hour:   filters.Hour.String(),
	}
	if meta.Radius != nil {
		e.Radius = *meta.Radius
	}
	if meta.Day != "" {
		e.Day = string(meta.Day)
	}
	if meta.Hour != "" {
		e.Hour = string(meta.Hour)
	}
	if !domain.IsFinite(e.Radius) {
		e.Radius = domain.DefaultRadiusMiles
	}
	return e
}

// DayLabel renders the echoed day: "all days" or the weekday as sent.
func (e Echo) DayLabel() string {
	if e.Day == "" || strings.EqualFold(e.Day, string(domain.DayAll)) {
		return "all days"
	}
	return e.Day
}

// HourLabel renders the echoed hour: "all hours", "07:00", or the raw value
// with ":00" appended when it is not a number.
func (e Echo) HourLabel() string {
	if e.Hour == "" || strings.EqualFold(e.Hour, "all") {
		return "all hours"
	}
	n, err := strconv.ParseFloat(e.Hour, 64)
	if err != nil || !domain.IsFinite(n) {
		return e.Hour + ":00"
	}
	return fmt.Sprintf("%02d:00", int(n))
}

// Summary builds the list header, e.g.
// "map selection • 0.5 mi radius • all days, 08:00".
func Summary(description string, e Echo) string {
	if strings.TrimSpace(description) == "" {
		description = fallbackLabel
	}
	return fmt.Sprintf("%s • %.1f mi radius • %s, %s", description, e.Radius, e.DayLabel(), e.HourLabel())
}

// BuildView renders results in the order given.
func BuildView(results []domain.NearestResult, description string, e Echo) render.NearestView {
	v := render.NearestView{Summary: Summary(description, e), Items: []render.NearestItem{}}
	if len(results) == 0 {
		v.EmptyState = emptyState
		return v
	}
	for i, r := range results {
		v.Items = append(v.Items, Item(i+1, r))
	}
	return v
}

// Item renders one result row.
func Item(rank int, r domain.NearestResult) render.NearestItem {
	fine := r.AvgFine
	if !domain.IsFinite(fine) {
		fine = 0
	}
	return render.NearestItem{
		Rank:           rank,
		Location:       r.Location,
		RiskLevel:      r.RiskLevel.Label(),
		RiskClass:      r.RiskLevel.Class(),
		Accent:         r.RiskLevel.Accent(),
		ViolationCount: r.ViolationCount,
		Distance:       domain.FormatMiles(r.Distance),
		ViolationTypes: r.ViolationTypes,
		AvgFine:        fmt.Sprintf("%.2f", fine),
	}
}

// Markers returns one marker per result with finite coordinates.
func Markers(results []domain.NearestResult) []render.Marker {
	out := make([]render.Marker, 0, len(results))
	for _, r := range results {
		p := domain.LatLng{Lat: r.Lat, Lng: r.Lng}
		if !p.Valid() {
			continue
		}
		out = append(out, render.Marker{
			Position: p,
			Color:    r.RiskLevel.Accent(),
			Radius:   markerRadius,
			Popup: fmt.Sprintf("%s\n%s mi away\n%d tickets (%s risk)",
				r.Location, domain.FormatMiles(r.Distance), r.ViolationCount, r.RiskLevel.Label()),
			Location: r.Location,
		})
	}
	return out
}

// FoundMessage is the success notification for a completed search.
func FoundMessage(n int, radius float64) string {
	if n == 0 {
		return msgNoResults
	}
	noun := "locations"
	if n == 1 {
		noun = "location"
	}
	return fmt.Sprintf("Found %d nearby %s within %.1f miles.", n, noun, radius)
}

// OutOfOrder returns the index of the first result closer than its
// predecessor, or -1. Results with unknown distance are skipped.
func OutOfOrder(results []domain.NearestResult) int {
	prev := -1.0
	for i, r := range results {
		if !domain.IsFinite(r.Distance) {
			continue
		}
		if r.Distance < prev {
			return i
		}
		prev = r.Distance
	}
	return -1
}
