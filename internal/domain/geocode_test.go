package domain

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// --- mock geocoder ---

type mockGeocoder struct {
	result GeocodeResult
	err    error
	calls  int
}

func (m *mockGeocoder) Geocode(_ context.Context, _ string) (GeocodeResult, error) {
	m.calls++
	return m.result, m.err
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func ptr(v float64) *float64 { return &v }

// --- tests ---

func TestEnrichWithGeocoding_NilGeocoder(t *testing.T) {
	ticket := Ticket{ID: "tkt-1", Location: "100 N STATE ST"}

	result := EnrichWithGeocoding(context.Background(), ticket, nil, discardLogger())

	assert.Empty(t, result.GeoSource)
	assert.Nil(t, result.Lat)
}

func TestEnrichWithGeocoding_KeepsOriginalCoordinates(t *testing.T) {
	geo := &mockGeocoder{result: GeocodeResult{Lat: 1, Lng: 2}}
	ticket := Ticket{ID: "tkt-1", Location: "100 N STATE ST", Lat: ptr(41.88), Lng: ptr(-87.62)}

	result := EnrichWithGeocoding(context.Background(), ticket, geo, discardLogger())

	assert.Equal(t, GeoSourceOriginal, result.GeoSource)
	assert.Equal(t, 41.88, *result.Lat)
	assert.Equal(t, 0, geo.calls)
}

func TestEnrichWithGeocoding_FillsMissingCoordinates(t *testing.T) {
	geo := &mockGeocoder{result: GeocodeResult{Lat: 41.8819, Lng: -87.6278}}
	ticket := Ticket{ID: "tkt-1", Location: "100 N STATE ST"}

	result := EnrichWithGeocoding(context.Background(), ticket, geo, discardLogger())

	require.NotNil(t, result.Lat)
	require.NotNil(t, result.Lng)
	assert.Equal(t, 41.8819, *result.Lat)
	assert.Equal(t, -87.6278, *result.Lng)
	assert.Equal(t, GeoSourceGeocoded, result.GeoSource)
	assert.Equal(t, 1, geo.calls)
}

func TestEnrichWithGeocoding_Error(t *testing.T) {
	geo := &mockGeocoder{err: errors.New("lookup failed")}
	ticket := Ticket{ID: "tkt-1", Location: "UNKNOWN"}

	result := EnrichWithGeocoding(context.Background(), ticket, geo, discardLogger())

	assert.Equal(t, GeoSourceFailed, result.GeoSource)
	assert.Nil(t, result.Lat)
}

func TestEnrichWithGeocoding_NonFiniteResult(t *testing.T) {
	geo := &mockGeocoder{result: GeocodeResult{Lat: math.NaN(), Lng: -87.6}}
	ticket := Ticket{ID: "tkt-1", Location: "SOMEWHERE"}

	result := EnrichWithGeocoding(context.Background(), ticket, geo, discardLogger())

	assert.Equal(t, GeoSourceFailed, result.GeoSource)
	assert.Nil(t, result.Lat)
}
