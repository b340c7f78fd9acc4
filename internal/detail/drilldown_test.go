package detail

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/parkwise/internal/domain"
	"github.com/couchcryptid/parkwise/internal/observability"
	"github.com/couchcryptid/parkwise/internal/render"
)

type fakeSource struct {
	detail domain.LocationDetail
	err    error
	asked  []string
}

func (f *fakeSource) LocationDetails(_ context.Context, loc string) (domain.LocationDetail, error) {
	f.asked = append(f.asked, loc)
	return f.detail, f.err
}

type fakeModal struct {
	opened []render.DetailView
	closes int
}

func (f *fakeModal) OpenDetail(v render.DetailView) { f.opened = append(f.opened, v) }
func (f *fakeModal) CloseDetail()                   { f.closes++ }

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func patterns(n int) []domain.Pattern {
	out := make([]domain.Pattern, n)
	for i := range out {
		out[i] = domain.Pattern{DayOfWeek: "Tuesday", Hour: i, Count: 100 - i, AvgFine: 55.5}
	}
	return out
}

func TestShow_TruncatesPatternsInOrder(t *testing.T) {
	src := &fakeSource{detail: domain.LocationDetail{
		Patterns: patterns(14),
		ViolationTypes: []domain.ViolationTypeCount{
			{ViolationType: "EXPIRED METER", Count: 40, Fine: 50},
			{ViolationType: "NO PARKING", Count: 3, Fine: 62.5},
		},
	}}
	modal := &fakeModal{}
	d := NewDrillDown(src, modal, discardLogger(), observability.NewMetricsForTesting())

	view, err := d.Show(context.Background(), "100 N STATE ST")
	require.NoError(t, err)

	assert.Equal(t, []string{"100 N STATE ST"}, src.asked)
	assert.Equal(t, "100 N STATE ST", view.Title)
	require.Len(t, view.Patterns, 10)
	assert.Equal(t, render.PatternItem{Slot: "Tuesday 0:00", Count: "100 violations", AvgFine: "Avg: $55.50"}, view.Patterns[0])
	assert.Equal(t, "Tuesday 9:00", view.Patterns[9].Slot)
	require.Len(t, view.Types, 2)
	assert.Equal(t, "40 tickets ($50)", view.Types[0].Subtitle)
	assert.Equal(t, "3 tickets ($62.50)", view.Types[1].Subtitle)
	assert.Len(t, modal.opened, 1)

	open, ok := d.Open()
	require.True(t, ok)
	assert.Equal(t, view, open)
}

func TestShow_FailureLeavesModal(t *testing.T) {
	src := &fakeSource{err: &domain.ServiceError{Op: "details", Status: "error"}}
	modal := &fakeModal{}
	d := NewDrillDown(src, modal, discardLogger(), observability.NewMetricsForTesting())

	_, err := d.Show(context.Background(), "somewhere")
	require.Error(t, err)
	assert.Empty(t, modal.opened)
	_, ok := d.Open()
	assert.False(t, ok)

	src.err = &domain.TransportError{Op: "details", Err: errors.New("eof")}
	_, err = d.Show(context.Background(), "somewhere")
	assert.True(t, domain.IsTransport(err))
}

func TestShow_RejectsEmptyLocation(t *testing.T) {
	src := &fakeSource{}
	d := NewDrillDown(src, &fakeModal{}, discardLogger(), observability.NewMetricsForTesting())

	_, err := d.Show(context.Background(), "  ")
	require.Error(t, err)
	assert.Empty(t, src.asked)
}

func TestClose(t *testing.T) {
	src := &fakeSource{detail: domain.LocationDetail{Patterns: patterns(2)}}
	modal := &fakeModal{}
	d := NewDrillDown(src, modal, discardLogger(), observability.NewMetricsForTesting())

	_, err := d.Show(context.Background(), "a")
	require.NoError(t, err)
	d.Close()

	assert.Equal(t, 1, modal.closes)
	_, ok := d.Open()
	assert.False(t, ok)
}
