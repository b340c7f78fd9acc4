// Package location resolves the single search center used by nearest-risk
// queries. A location comes from device geolocation, a map pick while manual
// selection is enabled, or an address lookup.
package location

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/couchcryptid/parkwise/internal/domain"
	"github.com/couchcryptid/parkwise/internal/geolocation"
	"github.com/couchcryptid/parkwise/internal/observability"
	"github.com/couchcryptid/parkwise/internal/render"
)

// State is the resolver's position in the resolution flow.
type State int

const (
	Unresolved State = iota
	AwaitingGeolocation
	ManualSelect
	Resolved
)

func (s State) String() string {
	switch s {
	case Unresolved:
		return "unresolved"
	case AwaitingGeolocation:
		return "awaiting_geolocation"
	case ManualSelect:
		return "manual_select"
	case Resolved:
		return "resolved"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// User-facing status messages.
const (
	MsgRequestingLocation = "Requesting your current location..."
	MsgGeoUnavailable     = "Geolocation is not available. Click the map or enter an address instead."
	MsgGeoFailed          = "Could not access your location. Click the map or enter an address instead."
	MsgSelectLocation     = "Select a search location by clicking the map or entering an address."
	MsgEnterAddress       = "Enter an address or intersection to search near."
	MsgLookingUp          = "Looking up that address..."
	MsgAddressUnresolved  = "Unable to resolve that address."
	MsgAddressTransport   = "Address lookup failed. Click the map to choose a location."

	msgUsingCurrent = "Using your current location."
	msgFromMap      = "Location set from map click."
	msgFromAddress  = "Location set from address search."

	descCurrentLocation = "your current location"
	descMapSelection    = "map selection"
	descSelectedPoint   = "selected point"
)

const (
	defaultMinZoom = 13
	markerColor    = "#4fbdba"
	markerRadius   = 10
	markerPopup    = "Search center"
)

// AddressGeocoder resolves free-text addresses through the analytics service.
type AddressGeocoder interface {
	Geocode(ctx context.Context, address string) (domain.GeocodeResult, error)
}

// Surface is what the resolver draws on.
type Surface interface {
	render.Map
	render.StatusLine
	render.Notifier
}

// Config tunes the resolver.
type Config struct {
	Options geolocation.Options
	// MinZoom is the zoom the map is raised to when a location resolves.
	MinZoom int
}

// Resolver is the location-resolution state machine. It is safe for
// concurrent use; its lock is never held across a geolocation or geocode call.
type Resolver struct {
	locator  geolocation.Locator
	geocoder AddressGeocoder
	surface  Surface
	cfg      Config
	logger   *slog.Logger
	metrics  *observability.Metrics
	geocodes domain.Generation

	mu        sync.Mutex
	state     State
	attempted bool
	selected  *domain.SelectedLocation
	marker    render.MarkerHandle
}

// NewResolver creates a Resolver in the Unresolved state.
func NewResolver(locator geolocation.Locator, geocoder AddressGeocoder, surface Surface, cfg Config, logger *slog.Logger, metrics *observability.Metrics) *Resolver {
	if cfg.MinZoom <= 0 {
		cfg.MinZoom = defaultMinZoom
	}
	return &Resolver{
		locator:  locator,
		geocoder: geocoder,
		surface:  surface,
		cfg:      cfg,
		logger:   logger,
		metrics:  metrics,
	}
}

// State returns the current state.
func (r *Resolver) State() State {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}

// Selected returns the authoritative search center, if any.
func (r *Resolver) Selected() (domain.SelectedLocation, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.selected == nil {
		return domain.SelectedLocation{}, false
	}
	return *r.selected, true
}

// Attempted reports whether geolocation has been tried in this session.
func (r *Resolver) Attempted() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.attempted
}

// Ensure returns the selected location, resolving it first when needed. The
// first call without a location tries geolocation; later calls switch to
// manual selection instead of prompting again.
func (r *Resolver) Ensure(ctx context.Context) (domain.SelectedLocation, bool) {
	if sel, ok := r.Selected(); ok {
		return sel, true
	}
	if !r.Attempted() {
		if !r.Geolocate(ctx) {
			return domain.SelectedLocation{}, false
		}
		return r.Selected()
	}
	r.EnableManualSelect(MsgSelectLocation, true)
	return domain.SelectedLocation{}, false
}

// Geolocate asks the device for its position once. It reports whether a
// location was resolved.
func (r *Resolver) Geolocate(ctx context.Context) bool {
	r.mu.Lock()
	r.attempted = true
	prev := r.state
	r.state = AwaitingGeolocation
	r.mu.Unlock()
	r.surface.SetLocationStatus(MsgRequestingLocation, false)

	pos, err := geolocation.Locate(ctx, r.locator, r.cfg.Options)
	if err != nil {
		r.logger.Warn("geolocation failed", "error", err)
		if errors.Is(err, geolocation.ErrUnavailable) {
			r.metrics.LocationFailures.WithLabelValues("unavailable").Inc()
			r.EnableManualSelect(MsgGeoUnavailable, true)
		} else {
			r.metrics.LocationFailures.WithLabelValues(failureReason(err)).Inc()
			r.EnableManualSelect(MsgGeoFailed, true)
		}
		return false
	}

	if !r.Set(pos.Coords.Lat, pos.Coords.Lng, domain.SourceGeolocation, descCurrentLocation) {
		r.mu.Lock()
		if r.state == AwaitingGeolocation {
			r.state = prev
		}
		r.mu.Unlock()
		return false
	}
	r.surface.Success(msgUsingCurrent)
	return true
}

// EnableManualSelect arms the map so the next click picks the search center.
func (r *Resolver) EnableManualSelect(message string, isError bool) {
	r.mu.Lock()
	r.state = ManualSelect
	r.mu.Unlock()

	r.surface.SetManualSelect(true)
	if message != "" {
		r.surface.SetLocationStatus(message, isError)
	}
}

// Pick handles a map click. Clicks outside manual selection are ignored.
func (r *Resolver) Pick(lat, lng float64) bool {
	r.mu.Lock()
	manual := r.state == ManualSelect
	r.mu.Unlock()
	if !manual {
		return false
	}
	if !r.Set(lat, lng, domain.SourceMap, descMapSelection) {
		return false
	}
	r.surface.Success(msgFromMap)
	return true
}

// LookupAddress resolves free text through the geocoder. It works from any
// state. Empty input returns a ValidationError without changing state.
func (r *Resolver) LookupAddress(ctx context.Context, address string) error {
	address = strings.TrimSpace(address)
	if address == "" {
		r.surface.SetLocationStatus(MsgEnterAddress, true)
		return &domain.ValidationError{Field: "address", Reason: "empty"}
	}

	id := r.geocodes.Next()
	r.surface.SetLocationStatus(MsgLookingUp, false)

	res, err := r.geocoder.Geocode(ctx, address)
	if !r.geocodes.IsCurrent(id) {
		r.metrics.StaleResponses.WithLabelValues("geocode").Inc()
		return domain.ErrStaleResponse
	}
	if err != nil {
		r.logger.Warn("address lookup failed", "address", address, "error", err)
		if domain.IsTransport(err) {
			r.metrics.LocationFailures.WithLabelValues("address_transport").Inc()
			r.EnableManualSelect(MsgAddressTransport, true)
		} else {
			r.metrics.LocationFailures.WithLabelValues("address_service").Inc()
			msg := domain.UserMessage(err, MsgAddressUnresolved)
			r.EnableManualSelect(msg+" Try clicking the map instead.", true)
		}
		return err
	}

	desc := strings.TrimSpace(res.NormalizedAddress)
	if desc == "" {
		desc = address
	}
	if r.Set(res.Lat, res.Lng, domain.SourceAddress, desc) {
		r.surface.Success(msgFromAddress)
	}
	return nil
}

// Set makes (lat, lng) the search center. Non-finite coordinates are ignored
// and Set reports false. The location marker is created once and moved on
// later calls.
func (r *Resolver) Set(lat, lng float64, source domain.LocationSource, description string) bool {
	p := domain.LatLng{Lat: lat, Lng: lng}
	if !p.Valid() {
		return false
	}
	if description == "" {
		if source == domain.SourceGeolocation {
			description = descCurrentLocation
		} else {
			description = descSelectedPoint
		}
	}

	r.mu.Lock()
	r.selected = &domain.SelectedLocation{LatLng: p, Source: source, Description: description}
	r.state = Resolved
	if r.marker == nil {
		r.marker = r.surface.PlaceMarker(render.Marker{
			Position: p,
			Color:    markerColor,
			Radius:   markerRadius,
			Popup:    markerPopup,
		})
	} else {
		r.marker.SetPosition(p)
	}
	r.mu.Unlock()

	r.surface.SetManualSelect(false)
	r.surface.SetView(p, max(r.surface.Zoom(), r.cfg.MinZoom))
	r.surface.SetLocationStatus(fmt.Sprintf("Using %s (%.4f, %.4f)", description, lat, lng), false)
	r.metrics.LocationResolutions.WithLabelValues(string(source)).Inc()
	return true
}

func failureReason(err error) string {
	switch {
	case errors.Is(err, geolocation.ErrPermissionDenied):
		return "denied"
	case errors.Is(err, geolocation.ErrTimeout):
		return "timeout"
	default:
		return "position"
	}
}
