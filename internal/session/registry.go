package session

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"

	"github.com/couchcryptid/parkwise/internal/geolocation"
	"github.com/couchcryptid/parkwise/internal/observability"
)

// CookieName is the cookie carrying the session id.
const CookieName = "parkwise_session"

// Registry creates, looks up, and expires sessions.
type Registry struct {
	remote      Remote
	locator     geolocation.Locator
	opts        Options
	idleTimeout time.Duration
	clock       clockwork.Clock
	logger      *slog.Logger
	metrics     *observability.Metrics

	mu       sync.Mutex
	sessions map[string]*entry
}

type entry struct {
	session  *Session
	lastSeen time.Time
}

// NewRegistry creates a Registry. Sessions idle longer than idleTimeout are
// removed by Reap.
func NewRegistry(remote Remote, locator geolocation.Locator, opts Options, idleTimeout time.Duration, clock clockwork.Clock, logger *slog.Logger, metrics *observability.Metrics) *Registry {
	return &Registry{
		remote:      remote,
		locator:     locator,
		opts:        opts,
		idleTimeout: idleTimeout,
		clock:       clock,
		logger:      logger,
		metrics:     metrics,
		sessions:    make(map[string]*entry),
	}
}

// Create starts a new session.
func (r *Registry) Create() *Session {
	id := uuid.NewString()
	// Each session keeps its own last fix for MaximumAge.
	s := New(id, r.remote, geolocation.NewCached(r.locator, r.clock), r.opts, r.logger, r.metrics)

	r.mu.Lock()
	r.sessions[id] = &entry{session: s, lastSeen: r.clock.Now()}
	r.metrics.ActiveSessions.Set(float64(len(r.sessions)))
	r.mu.Unlock()

	r.logger.Info("session created", "session", id)
	return s
}

// Get returns the session for id and marks it as used.
func (r *Registry) Get(id string) (*Session, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.sessions[id]
	if !ok {
		return nil, false
	}
	e.lastSeen = r.clock.Now()
	return e.session, true
}

// Delete ends the session for id.
func (r *Registry) Delete(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.sessions[id]; !ok {
		return false
	}
	delete(r.sessions, id)
	r.metrics.ActiveSessions.Set(float64(len(r.sessions)))
	return true
}

// Len returns the number of live sessions.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}

// Reap removes sessions idle longer than the idle timeout and returns how
// many were removed.
func (r *Registry) Reap() int {
	if r.idleTimeout <= 0 {
		return 0
	}
	now := r.clock.Now()

	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for id, e := range r.sessions {
		if now.Sub(e.lastSeen) > r.idleTimeout {
			delete(r.sessions, id)
			n++
		}
	}
	if n > 0 {
		r.metrics.ActiveSessions.Set(float64(len(r.sessions)))
		r.logger.Info("reaped idle sessions", "count", n, "remaining", len(r.sessions))
	}
	return n
}

// Run reaps idle sessions every half idle timeout until ctx is cancelled.
func (r *Registry) Run(ctx context.Context) {
	if r.idleTimeout <= 0 {
		<-ctx.Done()
		return
	}
	ticker := r.clock.NewTicker(r.idleTimeout / 2)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.Chan():
			r.Reap()
		}
	}
}
