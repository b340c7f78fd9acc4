package http_test

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	analyticsclient "github.com/couchcryptid/parkwise/internal/adapter/analytics"
	httpadapter "github.com/couchcryptid/parkwise/internal/adapter/http"
	"github.com/couchcryptid/parkwise/internal/observability"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// analyticsStub answers /api/statistics with success while up is set, and
// with a service error otherwise.
func analyticsStub(t *testing.T, up *atomic.Bool) *analyticsclient.Client {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if r.URL.Path != "/api/statistics" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		if up.Load() {
			_, _ = io.WriteString(w, `{"status":"success","data":{"totalViolations":3,"topViolations":[],"peakHours":[],"hotLocations":[]}}`)
			return
		}
		_, _ = io.WriteString(w, `{"status":"error","message":"database unavailable"}`)
	}))
	t.Cleanup(srv.Close)
	return analyticsclient.NewClient(srv.URL, 0, discardLogger(), observability.NewMetricsForTesting())
}

// pingRoutes mounts a single application route.
type pingRoutes struct{}

func (pingRoutes) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/ping", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	})
}

func serve(srv *httpadapter.Server, path string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	return rec
}

func decodeStatus(t *testing.T, rec *httptest.ResponseRecorder) map[string]string {
	t.Helper()
	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body
}

func TestHealthzReturns200(t *testing.T) {
	var up atomic.Bool
	srv := httpadapter.NewServer(":0", analyticsStub(t, &up), discardLogger())

	rec := serve(srv, "/healthz")

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "healthy", decodeStatus(t, rec)["status"])
}

func TestReadyzFollowsAnalyticsService(t *testing.T) {
	var up atomic.Bool
	srv := httpadapter.NewServer(":0", analyticsStub(t, &up), discardLogger())

	rec := serve(srv, "/readyz")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	body := decodeStatus(t, rec)
	assert.Equal(t, "not ready", body["status"])
	assert.Contains(t, body["error"], "analytics service not ready")

	up.Store(true)
	rec = serve(srv, "/readyz")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ready", decodeStatus(t, rec)["status"])
}

func TestRoutesMountedBesideHealthEndpoints(t *testing.T) {
	var up atomic.Bool
	up.Store(true)
	srv := httpadapter.NewServer(":0", analyticsStub(t, &up), discardLogger(), pingRoutes{})

	assert.Equal(t, http.StatusTeapot, serve(srv, "/api/ping").Code)
	assert.Equal(t, http.StatusOK, serve(srv, "/healthz").Code)
	assert.Equal(t, http.StatusOK, serve(srv, "/readyz").Code)
	assert.Equal(t, http.StatusNotFound, serve(srv, "/api/unknown").Code)
}

func TestMetricsEndpoint(t *testing.T) {
	var up atomic.Bool
	srv := httpadapter.NewServer(":0", analyticsStub(t, &up), discardLogger())

	rec := serve(srv, "/metrics")

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "go_goroutines")
}
