package analytics

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	sharedobs "github.com/couchcryptid/storm-data-shared/observability"

	"github.com/couchcryptid/parkwise/internal/domain"
	"github.com/couchcryptid/parkwise/internal/observability"
)

// envelope is the response contract shared by every analytics endpoint.
type envelope struct {
	Status   string `json:"status"`
	Message  string `json:"message,omitempty"`
	Data     any    `json:"data,omitempty"`
	Metadata any    `json:"metadata,omitempty"`
}

type heatmapMetadata struct {
	Day            string `json:"day"`
	Hour           string `json:"hour"`
	TotalLocations int    `json:"totalLocations"`
}

type nearestMetadata struct {
	UserLat    float64 `json:"userLat"`
	UserLng    float64 `json:"userLng"`
	Radius     float64 `json:"radius"`
	Day        string  `json:"day"`
	Hour       string  `json:"hour"`
	TotalFound int     `json:"totalFound"`
}

// Handler serves the analytics HTTP API.
type Handler struct {
	svc     *Service
	logger  *slog.Logger
	metrics *observability.Metrics
}

// NewHandler creates the API handler for svc.
func NewHandler(svc *Service, logger *slog.Logger, metrics *observability.Metrics) *Handler {
	return &Handler{svc: svc, logger: logger, metrics: metrics}
}

// Register mounts the analytics endpoints on mux.
func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/heatmap-data", h.handleHeatmap)
	mux.HandleFunc("GET /api/nearest-violations", h.handleNearest)
	mux.HandleFunc("GET /api/geocode", h.handleGeocode)
	mux.HandleFunc("GET /api/statistics", h.handleStatistics)
	mux.HandleFunc("GET /api/location-details/{location}", h.handleLocationDetails)
}

func (h *Handler) handleHeatmap(w http.ResponseWriter, r *http.Request) {
	const endpoint = "heatmap"
	day, hour, err := parseWindow(r)
	if err != nil {
		h.fail(w, endpoint, err)
		return
	}
	data, err := h.svc.Heatmap(r.Context(), day, hour)
	if err != nil {
		h.fail(w, endpoint, err)
		return
	}
	h.succeed(w, endpoint, data, heatmapMetadata{
		Day:            dayEcho(day),
		Hour:           hour.String(),
		TotalLocations: len(data),
	})
}

func (h *Handler) handleNearest(w http.ResponseWriter, r *http.Request) {
	const endpoint = "nearest"
	q := r.URL.Query()

	lat, errLat := strconv.ParseFloat(q.Get("lat"), 64)
	lng, errLng := strconv.ParseFloat(q.Get("lng"), 64)
	if errLat != nil || errLng != nil {
		h.fail(w, endpoint, &domain.ValidationError{Field: "lat/lng", Reason: "lat and lng parameters are required"})
		return
	}
	radius := domain.DefaultRadiusMiles
	if s := q.Get("radius"); s != "" {
		v, err := strconv.ParseFloat(s, 64)
		if err != nil {
			h.fail(w, endpoint, &domain.ValidationError{Field: "radius", Reason: "must be a number"})
			return
		}
		radius = v
	}
	limit := DefaultNearestLimit
	if s := q.Get("limit"); s != "" {
		v, err := strconv.Atoi(s)
		if err != nil {
			h.fail(w, endpoint, &domain.ValidationError{Field: "limit", Reason: "must be an integer"})
			return
		}
		limit = max(v, 1)
	}
	day, hour, err := parseWindow(r)
	if err != nil {
		h.fail(w, endpoint, err)
		return
	}

	data, err := h.svc.Nearest(r.Context(), domain.NearestQuery{
		Center:      domain.LatLng{Lat: lat, Lng: lng},
		RadiusMiles: radius,
		Day:         day,
		Hour:        hour,
		Limit:       limit,
	})
	if err != nil {
		h.fail(w, endpoint, err)
		return
	}
	h.succeed(w, endpoint, data, nearestMetadata{
		UserLat:    lat,
		UserLng:    lng,
		Radius:     radius,
		Day:        dayEcho(day),
		Hour:       hour.String(),
		TotalFound: len(data),
	})
}

func (h *Handler) handleGeocode(w http.ResponseWriter, r *http.Request) {
	const endpoint = "geocode"
	data, err := h.svc.Geocode(r.Context(), r.URL.Query().Get("address"))
	if err != nil {
		var ve *domain.ValidationError
		if errors.As(err, &ve) {
			h.fail(w, endpoint, err)
			return
		}
		h.logger.Info("address not resolved", "error", err)
		h.write(w, endpoint, http.StatusNotFound, envelope{Status: "error", Message: "Unable to resolve address"})
		return
	}
	h.succeed(w, endpoint, data, nil)
}

func (h *Handler) handleStatistics(w http.ResponseWriter, r *http.Request) {
	const endpoint = "statistics"
	data, err := h.svc.Statistics(r.Context())
	if err != nil {
		h.fail(w, endpoint, err)
		return
	}
	h.succeed(w, endpoint, data, nil)
}

func (h *Handler) handleLocationDetails(w http.ResponseWriter, r *http.Request) {
	const endpoint = "details"
	data, err := h.svc.LocationDetails(r.Context(), r.PathValue("location"))
	if err != nil {
		h.fail(w, endpoint, err)
		return
	}
	h.succeed(w, endpoint, data, nil)
}

func (h *Handler) succeed(w http.ResponseWriter, endpoint string, data, metadata any) {
	h.write(w, endpoint, http.StatusOK, envelope{Status: "success", Data: data, Metadata: metadata})
}

// fail maps validation errors to 400 and everything else to 500.
func (h *Handler) fail(w http.ResponseWriter, endpoint string, err error) {
	var ve *domain.ValidationError
	if errors.As(err, &ve) {
		h.write(w, endpoint, http.StatusBadRequest, envelope{Status: "error", Message: ve.Reason})
		return
	}
	h.logger.Error("analytics query failed", "endpoint", endpoint, "error", err)
	h.write(w, endpoint, http.StatusInternalServerError, envelope{Status: "error", Message: err.Error()})
}

func (h *Handler) write(w http.ResponseWriter, endpoint string, code int, body envelope) {
	h.metrics.APIRequests.WithLabelValues(endpoint, strconv.Itoa(code)).Inc()
	sharedobs.WriteJSON(w, code, body)
}

// parseWindow reads the day and hour filters. Missing values mean all.
func parseWindow(r *http.Request) (domain.Day, domain.Hour, error) {
	q := r.URL.Query()
	day, err := domain.ParseDay(q.Get("day"))
	if err != nil {
		return "", 0, err
	}
	hour, err := domain.ParseHour(q.Get("hour"))
	if err != nil {
		return "", 0, err
	}
	return day, hour, nil
}

func dayEcho(d domain.Day) string {
	if d.IsAll() {
		return string(domain.DayAll)
	}
	return strings.TrimSpace(string(d))
}
