package analytics

import (
	"context"
	"math"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang/geo/s2"
	"github.com/google/go-cmp/cmp"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	analyticsclient "github.com/couchcryptid/parkwise/internal/adapter/analytics"
	"github.com/couchcryptid/parkwise/internal/domain"
	"github.com/couchcryptid/parkwise/internal/observability"
)

// farGeocoder places every location well outside the downtown test radius.
type farGeocoder struct{}

func (farGeocoder) Geocode(_ context.Context, address string) (domain.GeocodeResult, error) {
	return domain.GeocodeResult{Lat: 42.0, Lng: -87.7, NormalizedAddress: address}, nil
}

func newTestService(t *testing.T, rdb *redis.Client) (*Service, *observability.Metrics) {
	t.Helper()
	store := newTestStore(t)
	seedStore(t, store)
	m := observability.NewMetricsForTesting()
	cache := NewQueryCache(8, rdb, time.Minute, discardLogger(), m)
	return NewService(store, farGeocoder{}, cache, Config{HeatmapResultLimit: 100}, discardLogger(), m), m
}

func TestService_Heatmap(t *testing.T) {
	svc, m := newTestService(t, nil)
	ctx := context.Background()

	got, err := svc.Heatmap(ctx, domain.DayAll, domain.HourAll)
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, "100 N STATE ST", got[0].Location)
	assert.InDelta(t, 1.0, got[0].Intensity, 1e-9)
	assert.InDelta(t, 1.0/3, got[1].Intensity, 1e-9)
	assert.InDelta(t, 42.0, got[2].Lat, 1e-9, "location without coordinates is geocoded")

	_, err = svc.Heatmap(ctx, domain.DayAll, domain.HourAll)
	require.NoError(t, err)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.QueryCache.WithLabelValues("memory", "hit")))

	require.NoError(t, svc.LoadBatch(ctx, []domain.Ticket{
		ticket("t6", "200 W ADAMS ST", "EXPIRED METER", 50, 0, 10, coord(41.8794), coord(-87.6330)),
	}))
	after, err := svc.Heatmap(ctx, domain.DayAll, domain.HourAll)
	require.NoError(t, err)
	assert.Equal(t, 2, after[1].Count, "cache invalidated after load")
}

func TestService_HeatmapWindow(t *testing.T) {
	svc, _ := newTestService(t, nil)

	got, err := svc.Heatmap(context.Background(), "Wednesday", 22)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "900 N RUSH ST", got[0].Location)
}

func TestService_NearestTiersAndOrder(t *testing.T) {
	svc, _ := newTestService(t, nil)

	got, err := svc.Nearest(context.Background(), domain.NearestQuery{
		Center:      domain.LatLng{Lat: 41.8830, Lng: -87.6280},
		RadiusMiles: 0.5,
		Day:         domain.DayAll,
		Hour:        domain.HourAll,
	})
	require.NoError(t, err)
	require.Len(t, got, 2)

	assert.Equal(t, "100 N STATE ST", got[0].Location)
	assert.Equal(t, domain.RiskHigh, got[0].RiskLevel)
	assert.InDelta(t, 1.0, got[0].RiskScore, 1e-9)
	assert.Equal(t, "200 W ADAMS ST", got[1].Location)
	assert.Equal(t, domain.RiskLow, got[1].RiskLevel)
	assert.InDelta(t, 0.36, got[1].Distance, 0.02)
	assert.LessOrEqual(t, got[0].Distance, got[1].Distance)
}

func TestService_NearestLimitAndValidation(t *testing.T) {
	svc, _ := newTestService(t, nil)
	ctx := context.Background()
	center := domain.LatLng{Lat: 41.8830, Lng: -87.6280}

	got, err := svc.Nearest(ctx, domain.NearestQuery{Center: center, RadiusMiles: 0.5, Day: domain.DayAll, Hour: domain.HourAll, Limit: 1})
	require.NoError(t, err)
	assert.Len(t, got, 1)

	none, err := svc.Nearest(ctx, domain.NearestQuery{Center: center, RadiusMiles: 0.5, Day: "Sunday", Hour: domain.HourAll})
	require.NoError(t, err)
	assert.NotNil(t, none)
	assert.Empty(t, none)

	var ve *domain.ValidationError
	_, err = svc.Nearest(ctx, domain.NearestQuery{Center: center, RadiusMiles: 0})
	assert.ErrorAs(t, err, &ve)
	_, err = svc.Nearest(ctx, domain.NearestQuery{Center: domain.LatLng{Lat: math.NaN()}, RadiusMiles: 1})
	assert.ErrorAs(t, err, &ve)
}

func TestAssignRiskTiers(t *testing.T) {
	results := []domain.NearestResult{
		{ViolationCount: 10}, {ViolationCount: 40}, {ViolationCount: 70}, {ViolationCount: 100},
	}
	AssignRiskTiers(results)

	got := make([]domain.RiskLevel, len(results))
	for i, r := range results {
		got[i] = r.RiskLevel
	}
	want := []domain.RiskLevel{domain.RiskLow, domain.RiskMedium, domain.RiskHigh, domain.RiskHigh}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("tiers mismatch (-want +got):\n%s", diff)
	}
	assert.InDelta(t, 0.3333, results[1].RiskScore, 1e-9)

	equal := []domain.NearestResult{{ViolationCount: 5}, {ViolationCount: 5}}
	AssignRiskTiers(equal)
	assert.Equal(t, domain.RiskLow, equal[0].RiskLevel)
	assert.Equal(t, domain.RiskLow, equal[1].RiskLevel)
}

func TestDistanceMiles(t *testing.T) {
	// One degree of latitude is about 69.1 miles.
	d := DistanceMiles(s2.LatLngFromDegrees(41, -87), s2.LatLngFromDegrees(42, -87))
	assert.InDelta(t, 69.1, d, 0.1)
}

func TestService_StatisticsAndDetails(t *testing.T) {
	svc, _ := newTestService(t, nil)
	ctx := context.Background()

	stats, err := svc.Statistics(ctx)
	require.NoError(t, err)
	assert.Equal(t, 5, stats.TotalViolations)
	assert.Len(t, stats.TopViolations, 3)
	assert.Len(t, stats.PeakHours, 24)
	assert.Len(t, stats.HotLocations, 3)

	detail, err := svc.LocationDetails(ctx, "100 N STATE ST")
	require.NoError(t, err)
	assert.Len(t, detail.Patterns, 2)
	assert.Len(t, detail.ViolationTypes, 2)

	var ve *domain.ValidationError
	_, err = svc.LocationDetails(ctx, " ")
	assert.ErrorAs(t, err, &ve)
}

func TestQueryCache_RedisFailureFallsBackToStore(t *testing.T) {
	rdb := redis.NewClient(&redis.Options{
		Addr:        "127.0.0.1:1",
		DialTimeout: 50 * time.Millisecond,
		MaxRetries:  -1,
	})
	t.Cleanup(func() { _ = rdb.Close() })
	svc, m := newTestService(t, rdb)

	got, err := svc.Heatmap(context.Background(), domain.DayAll, domain.HourAll)
	require.NoError(t, err)
	assert.Len(t, got, 3)

	_, err = svc.Heatmap(context.Background(), domain.DayAll, domain.HourAll)
	require.NoError(t, err)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.QueryCache.WithLabelValues("memory", "hit")))
}

func TestOpenRedis(t *testing.T) {
	rdb, err := OpenRedis("")
	require.NoError(t, err)
	assert.Nil(t, rdb)

	rdb, err = OpenRedis("redis://localhost:6379/2")
	require.NoError(t, err)
	require.NotNil(t, rdb)
	assert.Equal(t, 2, rdb.Options().DB)
	_ = rdb.Close()

	_, err = OpenRedis("http://nope")
	assert.Error(t, err)
}

// --- HTTP contract, exercised through the engine's client ---

func newTestAPI(t *testing.T) (*analyticsclient.Client, *observability.Metrics) {
	t.Helper()
	svc, m := newTestService(t, nil)
	mux := http.NewServeMux()
	NewHandler(svc, discardLogger(), m).Register(mux)
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return analyticsclient.NewClient(srv.URL, 0, discardLogger(), observability.NewMetricsForTesting()), m
}

func TestAPI_HeatmapRoundTrip(t *testing.T) {
	client, m := newTestAPI(t)

	got, err := client.Heatmap(context.Background(), "Monday", 9)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, 2, got[0].Count)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.APIRequests.WithLabelValues("heatmap", "200")))
}

func TestAPI_NearestEchoesFilters(t *testing.T) {
	client, _ := newTestAPI(t)

	results, meta, err := client.Nearest(context.Background(), domain.NearestQuery{
		Center:      domain.LatLng{Lat: 41.8830, Lng: -87.6280},
		RadiusMiles: 0.5,
		Day:         "Monday",
		Hour:        9,
		Limit:       20,
	})
	require.NoError(t, err)
	require.Len(t, results, 2)
	require.NotNil(t, meta.Radius)
	assert.InDelta(t, 0.5, *meta.Radius, 1e-9)
	assert.Equal(t, domain.FlexString("Monday"), meta.Day)
	assert.Equal(t, domain.FlexString("9"), meta.Hour)
}

func TestAPI_ValidationErrorsAreServiceErrors(t *testing.T) {
	client, m := newTestAPI(t)

	_, err := client.Heatmap(context.Background(), "Someday", domain.HourAll)
	var se *domain.ServiceError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, http.StatusBadRequest, se.StatusCode)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.APIRequests.WithLabelValues("heatmap", "400")))
}

func TestAPI_GeocodeStatisticsDetails(t *testing.T) {
	client, _ := newTestAPI(t)
	ctx := context.Background()

	geo, err := client.Geocode(ctx, "123 Main St")
	require.NoError(t, err)
	assert.Equal(t, "123 Main St", geo.NormalizedAddress)

	_, err = client.Geocode(ctx, " ")
	var se *domain.ServiceError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, "address parameter is required", se.Message)

	stats, err := client.Statistics(ctx)
	require.NoError(t, err)
	assert.Equal(t, 5, stats.TotalViolations)

	detail, err := client.LocationDetails(ctx, "100 N STATE ST")
	require.NoError(t, err)
	assert.Equal(t, "100 N STATE ST", detail.Location)
	assert.Len(t, detail.Patterns, 2)
}
