// Package render defines the view descriptors produced by the engine and the
// narrow surface interfaces that display them. Components build descriptors
// with pure functions and hand them to whichever surface is wired in.
package render

import "github.com/couchcryptid/parkwise/internal/domain"

// Map is the interactive base map.
type Map interface {
	SetView(center domain.LatLng, zoom int)
	Zoom() int
	// SetManualSelect toggles whether the next click picks a search location.
	SetManualSelect(enabled bool)
	// PlaceMarker adds a standalone marker and returns a handle to move it.
	PlaceMarker(m Marker) MarkerHandle
}

// MarkerHandle moves a marker previously placed on the map.
type MarkerHandle interface {
	SetPosition(p domain.LatLng)
}

// HeatLayer is a weighted point layer.
type HeatLayer interface {
	SetPoints(points []HeatPoint)
	Redraw()
}

// MarkerLayer is a group of circle markers cleared and refilled as a unit.
type MarkerLayer interface {
	Clear()
	Add(m Marker)
}

// StatusLine shows the current location-resolution status.
type StatusLine interface {
	SetLocationStatus(message string, isError bool)
}

// Notifier surfaces transient success and error messages.
type Notifier interface {
	Success(message string)
	Error(message string)
}

// Control names a button that is disabled while its request is in flight.
type Control string

const (
	ControlUpdateHeatmap Control = "update-heatmap"
	ControlFindNearest   Control = "find-nearest"
)

// Busy toggles the in-flight state of a control.
type Busy interface {
	SetBusy(c Control, busy bool)
}
