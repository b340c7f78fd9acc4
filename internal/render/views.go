package render

import "github.com/couchcryptid/parkwise/internal/domain"

// Marker is a circle marker descriptor.
type Marker struct {
	Position domain.LatLng `json:"position"`
	Color    string        `json:"color"`
	Radius   int           `json:"radius"`
	Popup    string        `json:"popup"`
	// Location names the violation location the marker drills into, if any.
	Location string `json:"location,omitempty"`
}

// HeatPoint is one weighted heat-layer sample.
type HeatPoint struct {
	Lat    float64 `json:"lat"`
	Lng    float64 `json:"lng"`
	Weight float64 `json:"weight"`
}

// HeatOptions configures heat-layer rendering.
type HeatOptions struct {
	Radius     int     `json:"radius"`
	Blur       int     `json:"blur"`
	MinOpacity float64 `json:"minOpacity"`
	Max        float64 `json:"max"`
}

// DefaultHeatOptions returns the layer settings the heatmap is drawn with.
func DefaultHeatOptions() HeatOptions {
	return HeatOptions{Radius: 30, Blur: 20, MinOpacity: 0.35, Max: 1}
}

// NearestItem is one row of the nearest-risk list.
type NearestItem struct {
	Rank           int    `json:"rank"`
	Location       string `json:"location"`
	RiskLevel      string `json:"riskLevel"`
	RiskClass      string `json:"riskClass"`
	Accent         string `json:"accent"`
	ViolationCount int    `json:"violationCount"`
	Distance       string `json:"distance"`
	ViolationTypes int    `json:"violationTypes"`
	AvgFine        string `json:"avgFine"`
}

// NearestView is the rendered nearest-risk panel.
type NearestView struct {
	Summary    string        `json:"summary"`
	Items      []NearestItem `json:"items"`
	EmptyState string        `json:"emptyState,omitempty"`
}

// SummaryView holds the dashboard quick stats.
type SummaryView struct {
	TotalViolations string `json:"totalViolations"`
	AvgFine         string `json:"avgFine"`
}

// ListItem is one row of a dashboard list.
type ListItem struct {
	Title    string `json:"title"`
	Subtitle string `json:"subtitle"`
	Trailing string `json:"trailing,omitempty"`
	// Location is set on rows that open the detail modal.
	Location string `json:"location,omitempty"`
}

// BarSeries is a single-series bar chart.
type BarSeries struct {
	Name   string    `json:"name"`
	Labels []string  `json:"labels"`
	Values []float64 `json:"values"`
}

// DashboardView is the full statistics panel.
type DashboardView struct {
	Summary       SummaryView `json:"summary"`
	TopViolations []ListItem  `json:"topViolations"`
	PeakHours     BarSeries   `json:"peakHours"`
	HotLocations  []ListItem  `json:"hotLocations"`
}

// PatternItem is one weekday/hour cell of the detail modal.
type PatternItem struct {
	Slot    string `json:"slot"`
	Count   string `json:"count"`
	AvgFine string `json:"avgFine"`
}

// DetailView is the per-location modal content.
type DetailView struct {
	Title    string        `json:"title"`
	Patterns []PatternItem `json:"patterns"`
	Types    []ListItem    `json:"types"`
}
