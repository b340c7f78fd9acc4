// Package geolocation models the device position capability as a cancellable
// call that returns either a position or a typed failure.
package geolocation

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/couchcryptid/parkwise/internal/domain"
)

var (
	// ErrUnavailable means the device has no geolocation capability at all.
	ErrUnavailable = domain.ErrCapabilityUnavailable
	// ErrTimeout means no fix arrived within Options.Timeout.
	ErrTimeout = errors.New("geolocation timed out")
	// ErrPermissionDenied means the user refused to share their position.
	ErrPermissionDenied = errors.New("geolocation permission denied")
	// ErrPositionUnavailable means the capability exists but could not get a fix.
	ErrPositionUnavailable = errors.New("geolocation position unavailable")
)

// Options controls a single position request.
type Options struct {
	HighAccuracy bool
	Timeout      time.Duration
	// MaximumAge is how old a cached fix may be and still be returned.
	MaximumAge time.Duration
}

// DefaultOptions returns high accuracy, a 10s timeout, and a 5 minute cache tolerance.
func DefaultOptions() Options {
	return Options{HighAccuracy: true, Timeout: 10 * time.Second, MaximumAge: 5 * time.Minute}
}

// Position is a device fix.
type Position struct {
	Coords    domain.LatLng
	Accuracy  float64 // meters, 0 when unknown
	Timestamp time.Time
}

// Locator obtains the device's current position.
type Locator interface {
	CurrentPosition(ctx context.Context, opts Options) (Position, error)
}

// LocatorFunc adapts a function to Locator.
type LocatorFunc func(ctx context.Context, opts Options) (Position, error)

// CurrentPosition implements Locator.
func (f LocatorFunc) CurrentPosition(ctx context.Context, opts Options) (Position, error) {
	return f(ctx, opts)
}

// Locate asks loc for a position and enforces opts.Timeout even when loc does
// not watch its context. A nil locator is treated as unavailable.
func Locate(ctx context.Context, loc Locator, opts Options) (Position, error) {
	if loc == nil {
		return Position{}, ErrUnavailable
	}
	if opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, opts.Timeout)
		defer cancel()
	}

	type result struct {
		pos Position
		err error
	}
	ch := make(chan result, 1)
	go func() {
		pos, err := loc.CurrentPosition(ctx, opts)
		ch <- result{pos, err}
	}()

	select {
	case r := <-ch:
		if errors.Is(r.err, context.DeadlineExceeded) {
			return Position{}, ErrTimeout
		}
		return r.pos, r.err
	case <-ctx.Done():
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return Position{}, ErrTimeout
		}
		return Position{}, ctx.Err()
	}
}

// Unsupported is a Locator for devices without geolocation.
type Unsupported struct{}

// CurrentPosition always fails with ErrUnavailable.
func (Unsupported) CurrentPosition(context.Context, Options) (Position, error) {
	return Position{}, ErrUnavailable
}

// Static reports a fixed device position.
type Static struct {
	Coords domain.LatLng
	Clock  clockwork.Clock
}

// CurrentPosition returns the fixed coordinates stamped with the current time.
func (s Static) CurrentPosition(ctx context.Context, _ Options) (Position, error) {
	if err := ctx.Err(); err != nil {
		return Position{}, err
	}
	c := s.Clock
	if c == nil {
		c = clockwork.NewRealClock()
	}
	return Position{Coords: s.Coords, Timestamp: c.Now()}, nil
}

// Cached returns a recent fix without asking the inner locator again when it
// is no older than Options.MaximumAge. A request carrying a client Report
// always reaches the inner locator: the client has already applied its own
// maximum age.
type Cached struct {
	inner Locator
	clock clockwork.Clock

	mu   sync.Mutex
	last *Position
}

// NewCached wraps inner with a fix cache driven by clock.
func NewCached(inner Locator, clock clockwork.Clock) *Cached {
	return &Cached{inner: inner, clock: clock}
}

// CurrentPosition implements Locator.
func (c *Cached) CurrentPosition(ctx context.Context, opts Options) (Position, error) {
	_, reported := ReportFromContext(ctx)

	c.mu.Lock()
	if !reported && c.last != nil && opts.MaximumAge > 0 && c.clock.Since(c.last.Timestamp) <= opts.MaximumAge {
		pos := *c.last
		c.mu.Unlock()
		return pos, nil
	}
	c.mu.Unlock()

	pos, err := c.inner.CurrentPosition(ctx, opts)
	if err != nil {
		return Position{}, err
	}
	if pos.Timestamp.IsZero() {
		pos.Timestamp = c.clock.Now()
	}

	c.mu.Lock()
	c.last = &pos
	c.mu.Unlock()
	return pos, nil
}

// ParseFailure maps a reported failure code onto the typed errors. Codes
// follow the browser Geolocation API names, case-insensitively.
func ParseFailure(code string) error {
	switch strings.ToLower(strings.TrimSpace(code)) {
	case "", "unsupported", "unavailable_capability", "not_supported":
		return ErrUnavailable
	case "denied", "permission_denied":
		return ErrPermissionDenied
	case "timeout":
		return ErrTimeout
	default:
		return ErrPositionUnavailable
	}
}
