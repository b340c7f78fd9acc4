package analytics

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"math"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/parkwise/internal/domain"
	"github.com/couchcryptid/parkwise/internal/observability"
)

const (
	contentTypeJSON   = "application/json"
	headerContentType = "Content-Type"
)

func testClient(t *testing.T, h http.HandlerFunc) (*Client, *observability.Metrics) {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	m := observability.NewMetricsForTesting()
	return NewClient(srv.URL+"/", 0, slog.New(slog.NewTextHandler(io.Discard, nil)), m), m
}

func reply(body string) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set(headerContentType, contentTypeJSON)
		_, _ = io.WriteString(w, body)
	}
}

func TestClient_Heatmap(t *testing.T) {
	c, m := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/heatmap-data", r.URL.Path)
		assert.Equal(t, "Monday", r.URL.Query().Get("day"))
		assert.Equal(t, "8", r.URL.Query().Get("hour"))
		reply(`{"status":"success","data":[
			{"location":"100 N STATE ST","lat":41.88,"lng":-87.63,"count":12,"avgFine":62.5,"violationTypes":3},
			{"location":"UNPLACED","lat":null,"count":4,"avgFine":50,"violationTypes":1}
		],"metadata":{"day":"Monday","hour":"8"}}`)(w, r)
	})

	aggs, err := c.Heatmap(context.Background(), "Monday", 8)
	require.NoError(t, err)
	require.Len(t, aggs, 2)
	assert.Equal(t, 12, aggs[0].Count)
	assert.True(t, math.IsNaN(aggs[1].Lat))
	assert.True(t, math.IsNaN(aggs[1].Lng))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.RemoteRequests.WithLabelValues(OpHeatmap, "success")))
}

func TestClient_HeatmapAllFilters(t *testing.T) {
	c, _ := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "all", r.URL.Query().Get("day"))
		assert.Equal(t, "all", r.URL.Query().Get("hour"))
		reply(`{"status":"success","data":[]}`)(w, r)
	})

	aggs, err := c.Heatmap(context.Background(), "", domain.HourAll)
	require.NoError(t, err)
	assert.Empty(t, aggs)
}

func TestClient_Nearest(t *testing.T) {
	c, _ := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		assert.Equal(t, "/api/nearest-violations", r.URL.Path)
		assert.Equal(t, "41.88", q.Get("lat"))
		assert.Equal(t, "-87.63", q.Get("lng"))
		assert.Equal(t, "0.5", q.Get("radius"))
		assert.Equal(t, "20", q.Get("limit"))
		reply(`{"status":"success","data":[
			{"location":"A","lat":41.881,"lng":-87.631,"distance":0.08,"violationCount":9,"violationTypes":2,"avgFine":55,"riskLevel":"High","riskScore":1}
		],"metadata":{"userLat":41.88,"userLng":-87.63,"radius":0.5,"day":"all","hour":"all","totalFound":1}}`)(w, r)
	})

	results, meta, err := c.Nearest(context.Background(), domain.NearestQuery{
		Center: domain.LatLng{Lat: 41.88, Lng: -87.63}, RadiusMiles: 0.5, Day: domain.DayAll, Hour: domain.HourAll, Limit: 20,
	})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, domain.RiskHigh, results[0].RiskLevel)
	require.NotNil(t, meta.Radius)
	assert.Equal(t, 0.5, *meta.Radius)
	assert.Equal(t, domain.FlexString("all"), meta.Hour)
	assert.Equal(t, 1, meta.TotalFound)
}

func TestClient_NearestNumericHourEcho(t *testing.T) {
	c, _ := testClient(t, reply(`{"status":"success","data":[],"metadata":{"radius":1,"day":"Friday","hour":17}}`))

	_, meta, err := c.Nearest(context.Background(), domain.NearestQuery{RadiusMiles: 1, Hour: 17, Day: "Friday", Limit: 20})
	require.NoError(t, err)
	assert.Equal(t, domain.FlexString("17"), meta.Hour)
}

func TestClient_Geocode(t *testing.T) {
	c, _ := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "123 main st", r.URL.Query().Get("address"))
		reply(`{"status":"success","data":{"lat":41.8781,"lng":-87.6298,"normalizedAddress":"123 MAIN ST"}}`)(w, r)
	})

	res, err := c.Geocode(context.Background(), "123 main st")
	require.NoError(t, err)
	assert.Equal(t, "123 MAIN ST", res.NormalizedAddress)
	assert.Equal(t, 41.8781, res.Lat)
}

func TestClient_ServiceErrorCarriesMessage(t *testing.T) {
	c, m := testClient(t, func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set(headerContentType, contentTypeJSON)
		w.WriteHeader(http.StatusNotFound)
		_, _ = io.WriteString(w, `{"status":"error","message":"Unable to resolve address"}`)
	})

	_, err := c.Geocode(context.Background(), "nowhere")
	var se *domain.ServiceError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, "Unable to resolve address", se.Message)
	assert.Equal(t, http.StatusNotFound, se.StatusCode)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.RemoteRequests.WithLabelValues(OpGeocode, "service_error")))
}

func TestClient_ServiceErrorWithoutMessage(t *testing.T) {
	c, _ := testClient(t, reply(`{"status":"error"}`))

	_, err := c.Statistics(context.Background())
	msg, ok := domain.ServiceMessage(err)
	assert.False(t, ok)
	assert.Empty(t, msg)
	assert.False(t, domain.IsTransport(err))
}

func TestClient_UndecodableBodyIsTransport(t *testing.T) {
	c, m := testClient(t, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		_, _ = io.WriteString(w, "<html>bad gateway</html>")
	})

	_, err := c.Statistics(context.Background())
	require.Error(t, err)
	assert.True(t, domain.IsTransport(err))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.RemoteRequests.WithLabelValues(OpStatistics, "transport_error")))
}

func TestClient_ConnectionRefusedIsTransport(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	c := NewClient(url, 0, slog.New(slog.NewTextHandler(io.Discard, nil)), observability.NewMetricsForTesting())
	_, err := c.Heatmap(context.Background(), domain.DayAll, domain.HourAll)
	assert.True(t, domain.IsTransport(err))
}

func TestClient_Statistics(t *testing.T) {
	c, _ := testClient(t, reply(`{"status":"success","data":{
		"totalViolations":1234,
		"topViolations":[{"violation_type":"EXPIRED METER","count":10,"fine":50}],
		"peakHours":[{"hour":8,"count":100}],
		"hotLocations":[{"violation_location":"100 N STATE ST","count":40}]
	}}`))

	stats, err := c.Statistics(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1234, stats.TotalViolations)
	assert.Equal(t, "EXPIRED METER", stats.TopViolations[0].ViolationType)
	assert.Equal(t, domain.HourCount{Hour: 8, Count: 100}, stats.PeakHours[0])
	assert.Equal(t, "100 N STATE ST", stats.HotLocations[0].Location)
}

func TestClient_LocationDetailsEscapesPath(t *testing.T) {
	c, _ := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/location-details/100%20N%20STATE%20ST", r.URL.EscapedPath())
		reply(`{"status":"success","data":{
			"patterns":[{"day_of_week":"Monday","hour":8,"count":5,"avg_fine":60}],
			"violationTypes":[{"violation_type":"NO PARKING","count":5,"fine":60}]
		}}`)(w, r)
	})

	d, err := c.LocationDetails(context.Background(), "100 N STATE ST")
	require.NoError(t, err)
	assert.Equal(t, "100 N STATE ST", d.Location)
	require.Len(t, d.Patterns, 1)
	assert.Equal(t, "Monday", d.Patterns[0].DayOfWeek)
	assert.Equal(t, 60.0, d.Patterns[0].AvgFine)
}

func TestClient_CheckReadiness(t *testing.T) {
	c, _ := testClient(t, reply(`{"status":"error","message":"warming up"}`))
	assert.Error(t, c.CheckReadiness(context.Background()))
}
