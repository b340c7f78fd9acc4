package main

import (
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/parkwise/internal/analytics"
	"github.com/couchcryptid/parkwise/internal/domain"
)

func TestGenerate_Deterministic(t *testing.T) {
	domain.SetClock(clockwork.NewFakeClockAt(time.Date(2024, time.August, 1, 0, 0, 0, 0, time.UTC)))
	defer domain.SetClock(nil)

	a, err := generate(200, 7, 4)
	require.NoError(t, err)
	b, err := generate(200, 7, 4)
	require.NoError(t, err)
	assert.Equal(t, a, b)

	withoutCoords := 0
	for _, tk := range a {
		assert.NotEmpty(t, tk.ID)
		assert.NotEmpty(t, tk.DayOfWeek)
		assert.GreaterOrEqual(t, tk.Hour, 6)
		assert.Less(t, tk.Hour, 22)
		assert.False(t, tk.IssuedAt.Before(baseDate))
		assert.True(t, tk.IssuedAt.Before(baseDate.AddDate(0, 0, 28)))
		if tk.Lat == nil {
			withoutCoords++
		}
	}
	assert.Positive(t, withoutCoords)
	assert.Less(t, withoutCoords, len(a))
}

func TestGenerate_UsesKnownAddresses(t *testing.T) {
	a, err := generate(1, 1, 1)
	require.NoError(t, err)
	require.Len(t, a, 1)
	assert.Contains(t, addresses, a[0].Location)
}

func TestRun_IsIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "seed.db")
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	ctx := context.Background()

	require.NoError(t, run(ctx, path, 100, 3, 2, logger))
	require.NoError(t, run(ctx, path, 100, 3, 2, logger))

	store, err := analytics.OpenStore(ctx, path, logger)
	require.NoError(t, err)
	defer store.Close()

	n, err := store.Count(ctx)
	require.NoError(t, err)
	assert.Positive(t, n)
	assert.LessOrEqual(t, n, 100)
}

func TestRun_RejectsNonPositive(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	assert.Error(t, run(context.Background(), filepath.Join(t.TempDir(), "x.db"), 0, 1, 1, logger))
}
