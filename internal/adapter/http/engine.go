package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	sharedobs "github.com/couchcryptid/storm-data-shared/observability"

	"github.com/couchcryptid/parkwise/internal/domain"
	"github.com/couchcryptid/parkwise/internal/geolocation"
	"github.com/couchcryptid/parkwise/internal/nearest"
	"github.com/couchcryptid/parkwise/internal/render/canvas"
	"github.com/couchcryptid/parkwise/internal/session"
)

const maxBodyBytes = 1 << 16

// EngineRoutes serves the engine API for browser sessions.
type EngineRoutes struct {
	registry *session.Registry
	logger   *slog.Logger
}

// NewEngineRoutes creates the engine API backed by registry.
func NewEngineRoutes(registry *session.Registry, logger *slog.Logger) *EngineRoutes {
	return &EngineRoutes{registry: registry, logger: logger}
}

// Register implements Routes.
func (e *EngineRoutes) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /{$}", e.withSession(e.handlePage))
	mux.HandleFunc("GET /api/state", e.withSession(e.handleState))
	mux.HandleFunc("GET /api/layers.geojson", e.withSession(e.handleLayers))
	mux.HandleFunc("POST /api/heatmap", e.withSession(e.handleHeatmap))
	mux.HandleFunc("POST /api/location/geolocate", e.withSession(e.handleGeolocate))
	mux.HandleFunc("POST /api/location/pick", e.withSession(e.handlePick))
	mux.HandleFunc("POST /api/location/address", e.withSession(e.handleAddress))
	mux.HandleFunc("POST /api/location/manual", e.withSession(e.handleManual))
	mux.HandleFunc("POST /api/nearest", e.withSession(e.handleNearest))
	mux.HandleFunc("GET /api/details/{location}", e.withSession(e.handleDetails))
	mux.HandleFunc("DELETE /api/details", e.withSession(e.handleCloseDetails))
	mux.HandleFunc("DELETE /api/session", e.handleEndSession)
}

type sessionHandler func(w http.ResponseWriter, r *http.Request, s *session.Session)

// withSession resolves the session cookie, creating and starting a new
// session when the cookie is missing or stale.
func (e *EngineRoutes) withSession(h sessionHandler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var s *session.Session
		if c, err := r.Cookie(session.CookieName); err == nil {
			s, _ = e.registry.Get(c.Value)
		}
		if s == nil {
			s = e.registry.Create()
			http.SetCookie(w, &http.Cookie{
				Name:     session.CookieName,
				Value:    s.ID,
				Path:     "/",
				HttpOnly: true,
				SameSite: http.SameSiteLaxMode,
			})
			s.Start(r.Context())
		}
		h(w, r, s)
	}
}

// --- request and response shapes ---

type filtersRequest struct {
	Day    string      `json:"day"`
	Hour   domain.Hour `json:"hour"`
	Radius *float64    `json:"radius"`
}

func (f filtersRequest) toFilters(current domain.QueryFilters) (domain.QueryFilters, error) {
	day, err := domain.ParseDay(f.Day)
	if err != nil {
		return domain.QueryFilters{}, err
	}
	out := domain.QueryFilters{Day: day, Hour: f.Hour, RadiusMiles: current.RadiusMiles}
	if f.Radius != nil {
		out.RadiusMiles = *f.Radius
	}
	return out, nil
}

type positionRequest struct {
	Lat   *float64 `json:"lat"`
	Lng   *float64 `json:"lng"`
	Error string   `json:"error"`
}

type addressRequest struct {
	Address string `json:"address"`
}

type locationState struct {
	State    string                   `json:"state"`
	Selected *domain.SelectedLocation `json:"selected,omitempty"`
}

type stateView struct {
	Session  string              `json:"session"`
	Location locationState       `json:"location"`
	Filters  domain.QueryFilters `json:"filters"`
	Pending  bool                `json:"pendingSearch"`
	Surface  canvas.Snapshot     `json:"surface"`
}

type response struct {
	Status  string     `json:"status"`
	Message string     `json:"message,omitempty"`
	State   *stateView `json:"state,omitempty"`
}

func state(s *session.Session) *stateView {
	v := &stateView{
		Session:  s.ID,
		Location: locationState{State: s.LocationState().String()},
		Filters:  s.Filters(),
		Pending:  s.PendingSearch(),
		Surface:  s.Snapshot(),
	}
	if sel, ok := s.Selected(); ok {
		v.Location.Selected = &sel
	}
	return v
}

// --- handlers ---

func (e *EngineRoutes) handlePage(w http.ResponseWriter, _ *http.Request, s *session.Session) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := canvas.WriteHTML(w, s.Snapshot()); err != nil {
		e.logger.Error("render page", "session", s.ID, "error", err)
	}
}

func (e *EngineRoutes) handleState(w http.ResponseWriter, _ *http.Request, s *session.Session) {
	sharedobs.WriteJSON(w, http.StatusOK, response{Status: "success", State: state(s)})
}

func (e *EngineRoutes) handleLayers(w http.ResponseWriter, _ *http.Request, s *session.Session) {
	b, err := canvas.GeoJSON(s.Snapshot()).MarshalJSON()
	if err != nil {
		e.writeError(w, s, fmt.Errorf("encode layers: %w", err))
		return
	}
	w.Header().Set("Content-Type", "application/geo+json")
	w.WriteHeader(http.StatusOK)
	w.Write(b) //nolint:errcheck // response already committed
}

func (e *EngineRoutes) handleHeatmap(w http.ResponseWriter, r *http.Request, s *session.Session) {
	req := filtersRequest{Hour: domain.HourAll}
	if err := decodeBody(r, &req); err != nil {
		e.writeError(w, s, err)
		return
	}
	f, err := req.toFilters(s.Filters())
	if err != nil {
		e.writeError(w, s, err)
		return
	}
	_, err = s.UpdateHeatmap(r.Context(), f.Day, f.Hour)
	e.writeResult(w, s, err)
}

func (e *EngineRoutes) handleGeolocate(w http.ResponseWriter, r *http.Request, s *session.Session) {
	var req positionRequest
	if err := decodeBody(r, &req); err != nil {
		e.writeError(w, s, err)
		return
	}

	ctx := r.Context()
	switch {
	case req.Error != "":
		ctx = geolocation.WithReport(ctx, geolocation.Report{Err: geolocation.ParseFailure(req.Error)})
	case req.Lat != nil && req.Lng != nil:
		ctx = geolocation.WithReport(ctx, geolocation.Report{Coords: &domain.LatLng{Lat: *req.Lat, Lng: *req.Lng}})
	}

	if !s.Geolocate(ctx) {
		sharedobs.WriteJSON(w, http.StatusOK, response{Status: "error", Message: s.Snapshot().Status.Message, State: state(s)})
		return
	}
	e.writeResult(w, s, nil)
}

func (e *EngineRoutes) handlePick(w http.ResponseWriter, r *http.Request, s *session.Session) {
	var req positionRequest
	if err := decodeBody(r, &req); err != nil {
		e.writeError(w, s, err)
		return
	}
	if req.Lat == nil || req.Lng == nil {
		e.writeError(w, s, &domain.ValidationError{Field: "lat/lng", Reason: "both coordinates are required"})
		return
	}
	if !s.Pick(r.Context(), *req.Lat, *req.Lng) {
		sharedobs.WriteJSON(w, http.StatusConflict, response{Status: "error", Message: "map is not accepting a location pick", State: state(s)})
		return
	}
	e.writeResult(w, s, nil)
}

func (e *EngineRoutes) handleAddress(w http.ResponseWriter, r *http.Request, s *session.Session) {
	var req addressRequest
	if err := decodeBody(r, &req); err != nil {
		e.writeError(w, s, err)
		return
	}
	e.writeResult(w, s, s.LookupAddress(r.Context(), req.Address))
}

func (e *EngineRoutes) handleManual(w http.ResponseWriter, _ *http.Request, s *session.Session) {
	s.EnableManualSelect()
	e.writeResult(w, s, nil)
}

func (e *EngineRoutes) handleNearest(w http.ResponseWriter, r *http.Request, s *session.Session) {
	req := filtersRequest{Hour: domain.HourAll}
	if err := decodeBody(r, &req); err != nil {
		e.writeError(w, s, err)
		return
	}
	f, err := req.toFilters(s.Filters())
	if err != nil {
		e.writeError(w, s, err)
		return
	}
	_, err = s.FindNearest(r.Context(), f)
	if errors.Is(err, nearest.ErrNoLocation) {
		sharedobs.WriteJSON(w, http.StatusAccepted, response{Status: "pending", Message: s.Snapshot().Status.Message, State: state(s)})
		return
	}
	e.writeResult(w, s, err)
}

func (e *EngineRoutes) handleDetails(w http.ResponseWriter, r *http.Request, s *session.Session) {
	_, err := s.ShowDetails(r.Context(), r.PathValue("location"))
	e.writeResult(w, s, err)
}

func (e *EngineRoutes) handleCloseDetails(w http.ResponseWriter, _ *http.Request, s *session.Session) {
	s.CloseDetails()
	e.writeResult(w, s, nil)
}

func (e *EngineRoutes) handleEndSession(w http.ResponseWriter, r *http.Request) {
	if c, err := r.Cookie(session.CookieName); err == nil {
		e.registry.Delete(c.Value)
	}
	http.SetCookie(w, &http.Cookie{Name: session.CookieName, Value: "", Path: "/", MaxAge: -1})
	w.WriteHeader(http.StatusNoContent)
}

// --- helpers ---

func (e *EngineRoutes) writeResult(w http.ResponseWriter, s *session.Session, err error) {
	if err != nil {
		e.writeError(w, s, err)
		return
	}
	sharedobs.WriteJSON(w, http.StatusOK, response{Status: "success", State: state(s)})
}

func (e *EngineRoutes) writeError(w http.ResponseWriter, s *session.Session, err error) {
	code := statusFor(err)
	if code >= http.StatusInternalServerError {
		e.logger.Warn("engine request failed", "session", s.ID, "error", err)
	}
	sharedobs.WriteJSON(w, code, response{Status: "error", Message: errorMessage(err), State: state(s)})
}

func statusFor(err error) int {
	var ve *domain.ValidationError
	var se *domain.ServiceError
	switch {
	case errors.As(err, &ve):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrStaleResponse):
		return http.StatusConflict
	case errors.Is(err, context.Canceled):
		return 499
	case errors.As(err, &se), domain.IsTransport(err):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func errorMessage(err error) string {
	if msg, ok := domain.ServiceMessage(err); ok {
		return msg
	}
	return err.Error()
}

// decodeBody reads an optional JSON body into v. An empty body leaves v at
// its zero value.
func decodeBody(r *http.Request, v any) error {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		return fmt.Errorf("read body: %w", err)
	}
	if len(body) == 0 {
		return nil
	}
	if err := json.Unmarshal(body, v); err != nil {
		return &domain.ValidationError{Field: "body", Reason: err.Error()}
	}
	return nil
}
