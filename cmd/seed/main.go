// Command seed fills the ticket store with deterministic synthetic
// violations for local runs. Records go through the same parse and enrich
// path as ingested ones, with a fixed clock so repeated runs produce
// identical rows.
//
// Usage:
//
//	go run ./cmd/seed -n 5000
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"os"
	"strconv"
	"time"

	sharedobs "github.com/couchcryptid/storm-data-shared/observability"
	"github.com/dustin/go-humanize"
	"github.com/jonboulle/clockwork"
	"github.com/joho/godotenv"

	"github.com/couchcryptid/parkwise/internal/analytics"
	"github.com/couchcryptid/parkwise/internal/config"
	"github.com/couchcryptid/parkwise/internal/domain"
)

// Monday, so day offsets map directly onto weekdays.
var baseDate = time.Date(2024, time.June, 3, 0, 0, 0, 0, time.UTC)

var addresses = []string{
	"100 N STATE ST", "233 S WACKER DR", "200 W ADAMS ST", "30 N LASALLE ST",
	"151 N MICHIGAN AVE", "25 E WASHINGTON ST", "55 W MONROE ST", "1000 N RUSH ST",
	"180 N WABASH AVE", "77 W WACKER DR", "120 S DEARBORN ST", "300 N FRANKLIN ST",
	"10 S WELLS ST", "400 N CLARK ST", "500 S CLARK ST",
}

var violations = []struct {
	code, desc string
	fine       int
}{
	{"0976160B", "EXPIRED METER OR OVERSTAY", 50},
	{"0964190A", "EXPIRED METER OR OVERSTAY CENTRAL BUSINESS DISTRICT", 70},
	{"0964040B", "STREET CLEANING", 60},
	{"0964150B", "PARKING/STANDING PROHIBITED ANYTIME", 75},
	{"0964125B", "NO CITY STICKER VEHICLE UNDER/EQUAL TO 16,000 LBS.", 200},
	{"0964080A", "RUSH HOUR PARKING", 100},
	{"0976170", "RESIDENTIAL PERMIT PARKING", 75},
}

func main() {
	n := flag.Int("n", 2000, "number of tickets to generate")
	seed := flag.Uint64("seed", 42, "random seed")
	weeks := flag.Int("weeks", 8, "number of weeks the tickets span")
	flag.Parse()

	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	logger := sharedobs.NewLogger(cfg.LogLevel, cfg.LogFormat)

	if err := run(context.Background(), cfg.DBPath, *n, *seed, *weeks, logger); err != nil {
		logger.Error("seed failed", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, path string, n int, seed uint64, weeks int, logger *slog.Logger) error {
	if n <= 0 || weeks <= 0 {
		return fmt.Errorf("-n and -weeks must be positive")
	}

	// Fixed ProcessedAt for reproducible rows.
	domain.SetClock(clockwork.NewFakeClockAt(baseDate.AddDate(0, 0, 7*weeks)))
	defer domain.SetClock(nil)

	tickets, err := generate(n, seed, weeks)
	if err != nil {
		return err
	}

	store, err := analytics.OpenStore(ctx, path, logger)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer store.Close()

	if err := store.LoadBatch(ctx, tickets); err != nil {
		return fmt.Errorf("load tickets: %w", err)
	}
	total, err := store.Count(ctx)
	if err != nil {
		return fmt.Errorf("count tickets: %w", err)
	}
	logger.Info("seed complete",
		"generated", humanize.Comma(int64(len(tickets))),
		"stored", humanize.Comma(int64(total)),
		"path", path)
	return nil
}

// generate produces n tickets. Busy addresses and weekday rush hours are
// weighted heavier so the heatmap has visible hotspots. Roughly one ticket in
// five has no coordinates, leaving it to the street geocoder.
func generate(n int, seed uint64, weeks int) ([]domain.Ticket, error) {
	rng := rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)) //nolint:gosec // synthetic data
	geocoder := analytics.StreetGeocoder{}

	tickets := make([]domain.Ticket, 0, n)
	for range n {
		addr := addresses[skewed(rng, len(addresses))]
		v := violations[rng.IntN(len(violations))]
		day := rng.IntN(7 * weeks)
		hour := pickHour(rng, day%7 < 5)
		minute := rng.IntN(60)

		rec := domain.RawViolation{
			ViolationDate:        baseDate.AddDate(0, 0, day).Format("2006-01-02T15:04:05.000"),
			ViolationTime:        fmt.Sprintf("%02d%02d", hour, minute),
			ViolationLocation:    addr,
			ViolationCode:        v.code,
			ViolationDescription: v.desc,
			FineAmount:           strconv.Itoa(v.fine),
		}
		if rng.IntN(5) != 0 {
			g, err := geocoder.Geocode(context.Background(), addr)
			if err != nil {
				return nil, fmt.Errorf("place %s: %w", addr, err)
			}
			rec.Latitude = strconv.FormatFloat(g.Lat, 'f', 6, 64)
			rec.Longitude = strconv.FormatFloat(g.Lng, 'f', 6, 64)
		}

		t, err := domain.ParseRawViolation(rec)
		if err != nil {
			return nil, fmt.Errorf("parse synthetic record: %w", err)
		}
		tickets = append(tickets, domain.EnrichTicket(t))
	}
	return tickets, nil
}

// skewed favours low indexes: index i is drawn with weight n-i.
func skewed(rng *rand.Rand, n int) int {
	total := n * (n + 1) / 2
	r := rng.IntN(total)
	for i := range n {
		w := n - i
		if r < w {
			return i
		}
		r -= w
	}
	return n - 1
}

func pickHour(rng *rand.Rand, weekday bool) int {
	if weekday && rng.IntN(2) == 0 {
		rush := []int{7, 8, 9, 16, 17, 18}
		return rush[rng.IntN(len(rush))]
	}
	return 6 + rng.IntN(16)
}
