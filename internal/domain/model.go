package domain

import (
	"encoding/json"
	"math"
)

// LatLng is a WGS-84 coordinate pair.
type LatLng struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// Valid reports whether both components are finite.
func (p LatLng) Valid() bool { return IsFinite(p.Lat) && IsFinite(p.Lng) }

// IsFinite reports whether v is neither NaN nor infinite.
func IsFinite(v float64) bool { return !math.IsNaN(v) && !math.IsInf(v, 0) }

// LocationSource records how the selected location was obtained.
type LocationSource string

const (
	SourceGeolocation LocationSource = "geolocation"
	SourceMap         LocationSource = "map"
	SourceAddress     LocationSource = "address"
)

// SelectedLocation is the single authoritative search center.
type SelectedLocation struct {
	LatLng
	Source      LocationSource `json:"source"`
	Description string         `json:"description"`
}

// ViolationAggregate summarizes tickets at one violation location. Lat and Lng
// are NaN when the service could not place the location.
type ViolationAggregate struct {
	Location       string  `json:"location"`
	Lat            float64 `json:"lat"`
	Lng            float64 `json:"lng"`
	Count          int     `json:"count"`
	AvgFine        float64 `json:"avgFine"`
	ViolationTypes int     `json:"violationTypes"`
	Intensity      float64 `json:"intensity,omitempty"`
}

type aggregateWire struct {
	Location       string   `json:"location"`
	Lat            *float64 `json:"lat"`
	Lng            *float64 `json:"lng"`
	Count          float64  `json:"count"`
	AvgFine        float64  `json:"avgFine"`
	ViolationTypes int      `json:"violationTypes"`
	Intensity      float64  `json:"intensity,omitempty"`
}

// UnmarshalJSON maps absent or null coordinates to NaN.
func (a *ViolationAggregate) UnmarshalJSON(b []byte) error {
	var w aggregateWire
	if err := json.Unmarshal(b, &w); err != nil {
		return err
	}
	*a = ViolationAggregate{
		Location:       w.Location,
		Lat:            floatOrNaN(w.Lat),
		Lng:            floatOrNaN(w.Lng),
		Count:          int(w.Count),
		AvgFine:        w.AvgFine,
		ViolationTypes: w.ViolationTypes,
		Intensity:      w.Intensity,
	}
	return nil
}

// MarshalJSON writes non-finite coordinates as null.
func (a ViolationAggregate) MarshalJSON() ([]byte, error) {
	return json.Marshal(aggregateWire{
		Location:       a.Location,
		Lat:            finiteOrNil(a.Lat),
		Lng:            finiteOrNil(a.Lng),
		Count:          float64(a.Count),
		AvgFine:        a.AvgFine,
		ViolationTypes: a.ViolationTypes,
		Intensity:      a.Intensity,
	})
}

// Position returns the aggregate's coordinates.
func (a ViolationAggregate) Position() LatLng { return LatLng{Lat: a.Lat, Lng: a.Lng} }

// HeatmapPoint is a plottable aggregate with its normalized intensity.
type HeatmapPoint struct {
	Lat       float64            `json:"lat"`
	Lng       float64            `json:"lng"`
	Intensity float64            `json:"intensity"`
	Aggregate ViolationAggregate `json:"aggregate"`
}

// NearestResult is one location returned by a nearest-risk query. Distance,
// Lat and Lng are NaN when the service omitted them.
type NearestResult struct {
	Location       string    `json:"location"`
	Lat            float64   `json:"lat"`
	Lng            float64   `json:"lng"`
	Distance       float64   `json:"distance"`
	ViolationCount int       `json:"violationCount"`
	ViolationTypes int       `json:"violationTypes"`
	AvgFine        float64   `json:"avgFine"`
	RiskLevel      RiskLevel `json:"riskLevel"`
	RiskScore      float64   `json:"riskScore"`
}

type nearestWire struct {
	Location       string    `json:"location"`
	Lat            *float64  `json:"lat"`
	Lng            *float64  `json:"lng"`
	Distance       *float64  `json:"distance"`
	ViolationCount int       `json:"violationCount"`
	ViolationTypes int       `json:"violationTypes"`
	AvgFine        float64   `json:"avgFine"`
	RiskLevel      RiskLevel `json:"riskLevel"`
	RiskScore      float64   `json:"riskScore"`
}

// UnmarshalJSON maps absent or null numeric fields to NaN.
func (r *NearestResult) UnmarshalJSON(b []byte) error {
	var w nearestWire
	if err := json.Unmarshal(b, &w); err != nil {
		return err
	}
	*r = NearestResult{
		Location:       w.Location,
		Lat:            floatOrNaN(w.Lat),
		Lng:            floatOrNaN(w.Lng),
		Distance:       floatOrNaN(w.Distance),
		ViolationCount: w.ViolationCount,
		ViolationTypes: w.ViolationTypes,
		AvgFine:        w.AvgFine,
		RiskLevel:      w.RiskLevel,
		RiskScore:      w.RiskScore,
	}
	return nil
}

// MarshalJSON writes non-finite fields as null.
func (r NearestResult) MarshalJSON() ([]byte, error) {
	return json.Marshal(nearestWire{
		Location:       r.Location,
		Lat:            finiteOrNil(r.Lat),
		Lng:            finiteOrNil(r.Lng),
		Distance:       finiteOrNil(r.Distance),
		ViolationCount: r.ViolationCount,
		ViolationTypes: r.ViolationTypes,
		AvgFine:        r.AvgFine,
		RiskLevel:      r.RiskLevel,
		RiskScore:      r.RiskScore,
	})
}

// NearestQuery is the request sent for a nearest-risk search.
type NearestQuery struct {
	Center      LatLng
	RadiusMiles float64
	Day         Day
	Hour        Hour
	Limit       int
}

// NearestMetadata echoes the filters the service applied. Zero fields mean
// the service omitted them.
type NearestMetadata struct {
	Radius     *float64   `json:"radius,omitempty"`
	Day        FlexString `json:"day,omitempty"`
	Hour       FlexString `json:"hour,omitempty"`
	TotalFound int        `json:"totalFound"`
}

// GeocodeResult is a resolved address.
type GeocodeResult struct {
	Lat               float64 `json:"lat"`
	Lng               float64 `json:"lng"`
	NormalizedAddress string  `json:"normalizedAddress,omitempty"`
}

// ViolationTypeCount is a violation description with its ticket count and fine.
type ViolationTypeCount struct {
	ViolationType string  `json:"violation_type"`
	Count         int     `json:"count"`
	Fine          float64 `json:"fine"`
}

// HourCount is a ticket count for one hour of day.
type HourCount struct {
	Hour  int `json:"hour"`
	Count int `json:"count"`
}

// LocationCount is a ticket count for one violation location.
type LocationCount struct {
	Location string `json:"violation_location"`
	Count    int    `json:"count"`
}

// Statistics is the global dashboard summary.
type Statistics struct {
	TotalViolations int                  `json:"totalViolations"`
	TopViolations   []ViolationTypeCount `json:"topViolations"`
	PeakHours       []HourCount          `json:"peakHours"`
	HotLocations    []LocationCount      `json:"hotLocations"`
}

// Pattern is a ticket count for one weekday/hour slot at a location.
type Pattern struct {
	DayOfWeek string  `json:"day_of_week"`
	Hour      int     `json:"hour"`
	Count     int     `json:"count"`
	AvgFine   float64 `json:"avg_fine"`
}

// LocationDetail is the per-location drill-down. It is never cached.
type LocationDetail struct {
	Location       string               `json:"location"`
	Patterns       []Pattern            `json:"patterns"`
	ViolationTypes []ViolationTypeCount `json:"violationTypes"`
}

func floatOrNaN(v *float64) float64 {
	if v == nil {
		return math.NaN()
	}
	return *v
}

func finiteOrNil(v float64) *float64 {
	if !IsFinite(v) {
		return nil
	}
	return &v
}
