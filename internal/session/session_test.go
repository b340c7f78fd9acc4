package session

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/parkwise/internal/domain"
	"github.com/couchcryptid/parkwise/internal/geolocation"
	"github.com/couchcryptid/parkwise/internal/location"
	"github.com/couchcryptid/parkwise/internal/nearest"
	"github.com/couchcryptid/parkwise/internal/observability"
	"github.com/couchcryptid/parkwise/internal/render"
)

// fakeRemote answers every analytics call from canned data.
type fakeRemote struct {
	mu          sync.Mutex
	heatmaps    int
	statistics  int
	nearest     []domain.NearestQuery
	nearestResp []domain.NearestResult
	geocode     domain.GeocodeResult
	geocodeErr  error
}

func (f *fakeRemote) Heatmap(context.Context, domain.Day, domain.Hour) ([]domain.ViolationAggregate, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.heatmaps++
	return []domain.ViolationAggregate{
		{Location: "100 N STATE ST", Lat: 41.883, Lng: -87.628, Count: 120, AvgFine: 60, ViolationTypes: 3},
		{Location: "200 W ADAMS ST", Lat: 41.879, Lng: -87.633, Count: 30, AvgFine: 50, ViolationTypes: 1},
	}, nil
}

func (f *fakeRemote) Nearest(_ context.Context, q domain.NearestQuery) ([]domain.NearestResult, domain.NearestMetadata, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nearest = append(f.nearest, q)
	return f.nearestResp, domain.NearestMetadata{}, nil
}

func (f *fakeRemote) Geocode(context.Context, string) (domain.GeocodeResult, error) {
	return f.geocode, f.geocodeErr
}

func (f *fakeRemote) Statistics(context.Context) (domain.Statistics, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.statistics++
	return domain.Statistics{
		TotalViolations: 150,
		TopViolations:   []domain.ViolationTypeCount{{ViolationType: "EXPIRED METER", Count: 150, Fine: 50}},
	}, nil
}

func (f *fakeRemote) LocationDetails(_ context.Context, loc string) (domain.LocationDetail, error) {
	return domain.LocationDetail{Location: loc, Patterns: []domain.Pattern{{DayOfWeek: "Monday", Hour: 8, Count: 3, AvgFine: 50}}}, nil
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestSession(remote Remote, locator geolocation.Locator) *Session {
	return New("test", remote, locator, DefaultOptions(), discardLogger(), observability.NewMetricsForTesting())
}

func TestStart_LoadsHeatmapAndStatisticsOnce(t *testing.T) {
	remote := &fakeRemote{}
	s := newTestSession(remote, geolocation.Unsupported{})

	s.Start(context.Background())
	s.Start(context.Background())

	assert.Equal(t, 1, remote.heatmaps)
	assert.Equal(t, 1, remote.statistics)

	snap := s.Snapshot()
	assert.Len(t, snap.Heat, 2)
	assert.Equal(t, 2, snap.HotspotCount)
	require.Len(t, snap.Hotspots, 1)
	require.NotNil(t, snap.Dashboard)
	assert.Equal(t, "$50.00", snap.Dashboard.Summary.AvgFine)
	assert.False(t, snap.Busy[render.ControlUpdateHeatmap])
}

func TestGeolocationFailureThenPickRunsPendingSearch(t *testing.T) {
	remote := &fakeRemote{nearestResp: []domain.NearestResult{
		{Location: "100 N STATE ST", Lat: 41.883, Lng: -87.628, Distance: 0.2, ViolationCount: 12, RiskLevel: "High"},
	}}
	denied := geolocation.LocatorFunc(func(context.Context, geolocation.Options) (geolocation.Position, error) {
		return geolocation.Position{}, geolocation.ErrPermissionDenied
	})
	s := newTestSession(remote, denied)

	_, err := s.FindNearest(context.Background(), domain.DefaultFilters())
	require.ErrorIs(t, err, nearest.ErrNoLocation)
	assert.Equal(t, location.ManualSelect, s.LocationState())
	assert.True(t, s.Snapshot().ManualSelect)
	assert.True(t, s.PendingSearch())
	assert.Empty(t, remote.nearest)

	require.True(t, s.Pick(context.Background(), 41.88, -87.63))

	sel, ok := s.Selected()
	require.True(t, ok)
	assert.Equal(t, domain.SourceMap, sel.Source)
	require.Len(t, remote.nearest, 1)
	assert.Equal(t, domain.LatLng{Lat: 41.88, Lng: -87.63}, remote.nearest[0].Center)
	assert.False(t, s.PendingSearch())

	snap := s.Snapshot()
	require.NotNil(t, snap.Nearest)
	assert.Len(t, snap.Nearest.Items, 1)
	assert.Len(t, snap.NearestMarkers, 1)
	assert.Equal(t, "map selection • 0.5 mi radius • all days, all hours", snap.Nearest.Summary)
}

func TestAddressLookupRunsPendingSearch(t *testing.T) {
	remote := &fakeRemote{geocode: domain.GeocodeResult{Lat: 41.88, Lng: -87.63, NormalizedAddress: "123 Main St"}}
	s := newTestSession(remote, geolocation.Unsupported{})

	_, err := s.FindNearest(context.Background(), domain.QueryFilters{Day: "Monday", Hour: 9, RadiusMiles: 1})
	require.ErrorIs(t, err, nearest.ErrNoLocation)

	require.NoError(t, s.LookupAddress(context.Background(), "123 main st"))
	require.Len(t, remote.nearest, 1)
	assert.Equal(t, domain.Day("Monday"), remote.nearest[0].Day)

	snap := s.Snapshot()
	require.NotNil(t, snap.Nearest)
	assert.Equal(t, "123 Main St • 1.0 mi radius • Monday, 09:00", snap.Nearest.Summary)
	assert.Equal(t, "No violation history near this spot for the selected window.", snap.Nearest.EmptyState)
}

func TestFailedLookupKeepsSearchPending(t *testing.T) {
	remote := &fakeRemote{geocodeErr: &domain.TransportError{Op: "geocode", Err: errors.New("refused")}}
	s := newTestSession(remote, geolocation.Unsupported{})

	_, _ = s.FindNearest(context.Background(), domain.DefaultFilters())
	require.Error(t, s.LookupAddress(context.Background(), "somewhere"))

	assert.True(t, s.PendingSearch())
	assert.Empty(t, remote.nearest)
}

func TestPickIgnoredOutsideManualSelect(t *testing.T) {
	s := newTestSession(&fakeRemote{}, geolocation.Unsupported{})
	assert.False(t, s.Pick(context.Background(), 41.88, -87.63))

	s.EnableManualSelect()
	assert.True(t, s.Pick(context.Background(), 41.88, -87.63))
}

func TestDetails(t *testing.T) {
	s := newTestSession(&fakeRemote{}, geolocation.Unsupported{})

	v, err := s.ShowDetails(context.Background(), "100 N STATE ST")
	require.NoError(t, err)
	assert.Equal(t, "Monday 8:00", v.Patterns[0].Slot)
	require.NotNil(t, s.Snapshot().Detail)

	s.CloseDetails()
	assert.Nil(t, s.Snapshot().Detail)
}

func TestRegistry_CreateGetDelete(t *testing.T) {
	m := observability.NewMetricsForTesting()
	r := NewRegistry(&fakeRemote{}, geolocation.Unsupported{}, DefaultOptions(), time.Minute, clockwork.NewFakeClock(), discardLogger(), m)

	s := r.Create()
	got, ok := r.Get(s.ID)
	require.True(t, ok)
	assert.Same(t, s, got)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ActiveSessions))

	assert.True(t, r.Delete(s.ID))
	assert.False(t, r.Delete(s.ID))
	_, ok = r.Get(s.ID)
	assert.False(t, ok)
	assert.Equal(t, 0.0, testutil.ToFloat64(m.ActiveSessions))
}

func TestRegistry_ReapsIdleSessions(t *testing.T) {
	clock := clockwork.NewFakeClock()
	r := NewRegistry(&fakeRemote{}, geolocation.Unsupported{}, DefaultOptions(), 10*time.Minute, clock, discardLogger(), observability.NewMetricsForTesting())

	idle := r.Create()
	active := r.Create()

	clock.Advance(6 * time.Minute)
	_, ok := r.Get(active.ID)
	require.True(t, ok)
	clock.Advance(6 * time.Minute)

	assert.Equal(t, 1, r.Reap())
	_, ok = r.Get(idle.ID)
	assert.False(t, ok)
	_, ok = r.Get(active.ID)
	assert.True(t, ok)
}

func TestRegistry_RunStopsOnCancel(t *testing.T) {
	clock := clockwork.NewFakeClock()
	r := NewRegistry(&fakeRemote{}, geolocation.Unsupported{}, DefaultOptions(), time.Minute, clock, discardLogger(), observability.NewMetricsForTesting())
	r.Create()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		r.Run(ctx)
		close(done)
	}()

	require.NoError(t, clock.BlockUntilContext(ctx, 1))
	clock.Advance(2 * time.Minute)
	require.Eventually(t, func() bool { return r.Len() == 0 }, time.Second, 5*time.Millisecond)

	cancel()
	<-done
}
