// Package canvas is an in-memory rendering surface. It records everything
// the engine draws for one session and exports it as a JSON snapshot, a
// GeoJSON layer set, or an HTML chart page.
package canvas

import (
	"sync"

	"github.com/couchcryptid/parkwise/internal/domain"
	"github.com/couchcryptid/parkwise/internal/render"
)

const maxNotices = 20

// Notice is a transient success or error message.
type Notice struct {
	Kind    string `json:"kind"`
	Message string `json:"message"`
}

// Status is the location status line.
type Status struct {
	Message string `json:"message"`
	IsError bool   `json:"isError"`
}

// Snapshot is the full surface state.
type Snapshot struct {
	Center         domain.LatLng           `json:"center"`
	Zoom           int                     `json:"zoom"`
	ManualSelect   bool                    `json:"manualSelect"`
	LocationMarker *render.Marker          `json:"locationMarker,omitempty"`
	Heat           []render.HeatPoint      `json:"heat"`
	HeatOptions    render.HeatOptions      `json:"heatOptions"`
	Hotspots       []render.Marker         `json:"hotspots"`
	NearestMarkers []render.Marker         `json:"nearestMarkers"`
	HotspotCount   int                     `json:"hotspotCount"`
	Status         Status                  `json:"status"`
	Notices        []Notice                `json:"notices"`
	Busy           map[render.Control]bool `json:"busy"`
	Nearest        *render.NearestView     `json:"nearest,omitempty"`
	Dashboard      *render.DashboardView   `json:"dashboard,omitempty"`
	Detail         *render.DetailView      `json:"detail,omitempty"`
	Redraws        int                     `json:"redraws"`
}

// Canvas implements every surface interface the engine draws on. It is safe
// for concurrent use.
type Canvas struct {
	mu sync.Mutex

	center         domain.LatLng
	zoom           int
	manual         bool
	locationMarker *render.Marker
	heat           []render.HeatPoint
	heatOptions    render.HeatOptions
	redraws        int
	hotspots       []render.Marker
	nearest        []render.Marker
	hotspotCount   int
	status         Status
	notices        []Notice
	busy           map[render.Control]bool
	nearestView    *render.NearestView
	dashboard      *render.DashboardView
	detail         *render.DetailView
}

// New creates a Canvas centred at center.
func New(center domain.LatLng, zoom int) *Canvas {
	return &Canvas{
		center:      center,
		zoom:        zoom,
		heatOptions: render.DefaultHeatOptions(),
		busy:        map[render.Control]bool{},
	}
}

// SetView implements render.Map.
func (c *Canvas) SetView(center domain.LatLng, zoom int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.center = center
	c.zoom = zoom
}

// Zoom implements render.Map.
func (c *Canvas) Zoom() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.zoom
}

// SetManualSelect implements render.Map.
func (c *Canvas) SetManualSelect(enabled bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.manual = enabled
}

// ManualSelect reports whether the next map click picks a location.
func (c *Canvas) ManualSelect() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.manual
}

// PlaceMarker implements render.Map. The canvas holds a single standalone
// marker; placing another replaces it.
func (c *Canvas) PlaceMarker(m render.Marker) render.MarkerHandle {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.locationMarker = &m
	return &markerHandle{c: c}
}

type markerHandle struct{ c *Canvas }

func (h *markerHandle) SetPosition(p domain.LatLng) {
	h.c.mu.Lock()
	defer h.c.mu.Unlock()
	if h.c.locationMarker != nil {
		h.c.locationMarker.Position = p
	}
}

// SetPoints implements render.HeatLayer.
func (c *Canvas) SetPoints(points []render.HeatPoint) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.heat = append([]render.HeatPoint(nil), points...)
}

// Redraw implements render.HeatLayer.
func (c *Canvas) Redraw() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.redraws++
}

// Hotspots returns the heatmap marker layer.
func (c *Canvas) Hotspots() render.MarkerLayer { return &layer{c: c, markers: &c.hotspots} }

// Nearest returns the nearest-result marker layer.
func (c *Canvas) Nearest() render.MarkerLayer { return &layer{c: c, markers: &c.nearest} }

type layer struct {
	c       *Canvas
	markers *[]render.Marker
}

func (l *layer) Clear() {
	l.c.mu.Lock()
	defer l.c.mu.Unlock()
	*l.markers = nil
}

func (l *layer) Add(m render.Marker) {
	l.c.mu.Lock()
	defer l.c.mu.Unlock()
	*l.markers = append(*l.markers, m)
}

// SetHotspotCount shows the number of locations in the heatmap dataset.
func (c *Canvas) SetHotspotCount(n int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.hotspotCount = n
}

// SetLocationStatus implements render.StatusLine.
func (c *Canvas) SetLocationStatus(message string, isError bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.status = Status{Message: message, IsError: isError}
}

// Success implements render.Notifier.
func (c *Canvas) Success(message string) { c.notify("success", message) }

// Error implements render.Notifier.
func (c *Canvas) Error(message string) { c.notify("error", message) }

func (c *Canvas) notify(kind, message string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.notices = append(c.notices, Notice{Kind: kind, Message: message})
	if len(c.notices) > maxNotices {
		c.notices = c.notices[len(c.notices)-maxNotices:]
	}
}

// SetBusy implements render.Busy.
func (c *Canvas) SetBusy(ctrl render.Control, busy bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.busy[ctrl] = busy
}

// ShowNearest displays the nearest-risk panel.
func (c *Canvas) ShowNearest(v render.NearestView) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.nearestView = &v
}

// ShowDashboard displays the statistics panel.
func (c *Canvas) ShowDashboard(v render.DashboardView) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.dashboard = &v
}

// OpenDetail opens the location modal.
func (c *Canvas) OpenDetail(v render.DetailView) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.detail = &v
}

// CloseDetail hides the location modal.
func (c *Canvas) CloseDetail() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.detail = nil
}

// Snapshot copies the current surface state.
func (c *Canvas) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()

	s := Snapshot{
		Center:         c.center,
		Zoom:           c.zoom,
		ManualSelect:   c.manual,
		Heat:           append([]render.HeatPoint{}, c.heat...),
		HeatOptions:    c.heatOptions,
		Hotspots:       append([]render.Marker{}, c.hotspots...),
		NearestMarkers: append([]render.Marker{}, c.nearest...),
		HotspotCount:   c.hotspotCount,
		Status:         c.status,
		Notices:        append([]Notice{}, c.notices...),
		Busy:           make(map[render.Control]bool, len(c.busy)),
		Redraws:        c.redraws,
	}
	for k, v := range c.busy {
		s.Busy[k] = v
	}
	if c.locationMarker != nil {
		m := *c.locationMarker
		s.LocationMarker = &m
	}
	if c.nearestView != nil {
		v := *c.nearestView
		s.Nearest = &v
	}
	if c.dashboard != nil {
		v := *c.dashboard
		s.Dashboard = &v
	}
	if c.detail != nil {
		v := *c.detail
		s.Detail = &v
	}
	return s
}
