// Package analytics is the parking-violation analytics service: it stores
// ingested tickets and answers the heatmap, nearest, geocode, statistics and
// location-detail queries the engine issues.
package analytics

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"sort"
	"strings"

	"github.com/golang/geo/s2"

	"github.com/couchcryptid/parkwise/internal/domain"
	"github.com/couchcryptid/parkwise/internal/observability"
)

const (
	earthRadiusMiles = 3959

	// DefaultNearestLimit caps nearest results when the request names no limit.
	DefaultNearestLimit = 20

	topViolationLimit = 5
	topLocationLimit  = 10
)

// Config tunes query sizes.
type Config struct {
	// HeatmapResultLimit caps the locations returned per heatmap window.
	HeatmapResultLimit int
}

// Service answers analytics queries from the ticket store.
type Service struct {
	store    *Store
	geocoder domain.Geocoder
	cache    *QueryCache
	cfg      Config
	logger   *slog.Logger
	metrics  *observability.Metrics
}

// NewService creates a Service. geocoder places locations whose tickets
// carried no coordinates.
func NewService(store *Store, geocoder domain.Geocoder, cache *QueryCache, cfg Config, logger *slog.Logger, metrics *observability.Metrics) *Service {
	return &Service{
		store:    store,
		geocoder: geocoder,
		cache:    cache,
		cfg:      cfg,
		logger:   logger,
		metrics:  metrics,
	}
}

// LoadBatch stores tickets and invalidates cached heatmaps. It implements
// pipeline.BatchLoader.
func (s *Service) LoadBatch(ctx context.Context, tickets []domain.Ticket) error {
	if err := s.store.LoadBatch(ctx, tickets); err != nil {
		return err
	}
	s.cache.Invalidate(ctx)
	return nil
}

// CheckReadiness reports ready when the store is reachable.
func (s *Service) CheckReadiness(ctx context.Context) error {
	return s.store.Ping(ctx)
}

// Heatmap returns the busiest locations in the window with coordinates and
// an intensity relative to the busiest location.
func (s *Service) Heatmap(ctx context.Context, day domain.Day, hour domain.Hour) ([]domain.ViolationAggregate, error) {
	if v, ok := s.cache.Get(ctx, day, hour); ok {
		return v, nil
	}

	rows, err := s.store.LocationAggregates(ctx, day, hour, s.cfg.HeatmapResultLimit)
	if err != nil {
		return nil, err
	}

	maxCount := 1
	for _, r := range rows {
		if r.Count > maxCount {
			maxCount = r.Count
		}
	}

	out := make([]domain.ViolationAggregate, 0, len(rows))
	for _, r := range rows {
		at, ok := s.place(ctx, r)
		if !ok {
			continue
		}
		out = append(out, domain.ViolationAggregate{
			Location:       r.Location,
			Lat:            at.Lat,
			Lng:            at.Lng,
			Count:          r.Count,
			AvgFine:        r.AvgFine,
			ViolationTypes: r.ViolationTypes,
			Intensity:      math.Min(float64(r.Count)/float64(maxCount), 1),
		})
	}

	s.cache.Put(ctx, day, hour, out)
	return out, nil
}

// Nearest returns locations within q.RadiusMiles of q.Center, nearest first,
// each tiered Low/Medium/High by where its count falls between the smallest
// and largest count in the result set.
func (s *Service) Nearest(ctx context.Context, q domain.NearestQuery) ([]domain.NearestResult, error) {
	if !q.Center.Valid() {
		return nil, &domain.ValidationError{Field: "lat/lng", Reason: "coordinates must be finite"}
	}
	if !domain.IsFinite(q.RadiusMiles) || q.RadiusMiles <= 0 {
		return nil, &domain.ValidationError{Field: "radius", Reason: "must be a positive number of miles"}
	}

	rows, err := s.store.LocationAggregates(ctx, q.Day, q.Hour, 0)
	if err != nil {
		return nil, err
	}

	origin := s2.LatLngFromDegrees(q.Center.Lat, q.Center.Lng)
	var results []domain.NearestResult
	for _, r := range rows {
		at, ok := s.place(ctx, r)
		if !ok {
			continue
		}
		d := DistanceMiles(origin, s2.LatLngFromDegrees(at.Lat, at.Lng))
		if d > q.RadiusMiles {
			continue
		}
		results = append(results, domain.NearestResult{
			Location:       r.Location,
			Lat:            at.Lat,
			Lng:            at.Lng,
			Distance:       round(d, 2),
			ViolationCount: r.Count,
			ViolationTypes: r.ViolationTypes,
			AvgFine:        round(r.AvgFine, 2),
		})
	}

	AssignRiskTiers(results)
	sort.SliceStable(results, func(i, j int) bool {
		if results[i].Distance != results[j].Distance {
			return results[i].Distance < results[j].Distance
		}
		return results[i].Location < results[j].Location
	})

	limit := q.Limit
	if limit <= 0 {
		limit = DefaultNearestLimit
	}
	if len(results) > limit {
		results = results[:limit]
	}
	if results == nil {
		results = []domain.NearestResult{}
	}
	return results, nil
}

// AssignRiskTiers sets RiskScore to the min-max percentile of each result's
// violation count and RiskLevel from it. When every count is equal all
// results are Low.
func AssignRiskTiers(results []domain.NearestResult) {
	if len(results) == 0 {
		return
	}
	lo, hi := results[0].ViolationCount, results[0].ViolationCount
	for _, r := range results[1:] {
		lo = min(lo, r.ViolationCount)
		hi = max(hi, r.ViolationCount)
	}
	for i := range results {
		p := 0.0
		if hi != lo {
			p = float64(results[i].ViolationCount-lo) / float64(hi-lo)
		}
		results[i].RiskScore = round(p, 4)
		results[i].RiskLevel = domain.ClassifyPercentile(p)
	}
}

// DistanceMiles is the great-circle distance between a and b.
func DistanceMiles(a, b s2.LatLng) float64 {
	return a.Distance(b).Radians() * earthRadiusMiles
}

// Geocode resolves a free-text address.
func (s *Service) Geocode(ctx context.Context, address string) (domain.GeocodeResult, error) {
	text := strings.TrimSpace(address)
	if text == "" {
		return domain.GeocodeResult{}, &domain.ValidationError{Field: "address", Reason: "address parameter is required"}
	}
	res, err := s.geocoder.Geocode(ctx, text)
	if err != nil {
		return domain.GeocodeResult{}, fmt.Errorf("geocode %q: %w", text, err)
	}
	res.NormalizedAddress = text
	return res, nil
}

// Statistics returns the dashboard summary.
func (s *Service) Statistics(ctx context.Context) (domain.Statistics, error) {
	total, err := s.store.Count(ctx)
	if err != nil {
		return domain.Statistics{}, err
	}
	top, err := s.store.ViolationTypes(ctx, "", topViolationLimit)
	if err != nil {
		return domain.Statistics{}, err
	}
	hours, err := s.store.HourCounts(ctx)
	if err != nil {
		return domain.Statistics{}, err
	}
	hot, err := s.store.TopLocations(ctx, topLocationLimit)
	if err != nil {
		return domain.Statistics{}, err
	}
	return domain.Statistics{
		TotalViolations: total,
		TopViolations:   top,
		PeakHours:       hours,
		HotLocations:    hot,
	}, nil
}

// LocationDetails returns the weekday/hour patterns and violation types for
// one location. An unknown location yields empty lists.
func (s *Service) LocationDetails(ctx context.Context, location string) (domain.LocationDetail, error) {
	if strings.TrimSpace(location) == "" {
		return domain.LocationDetail{}, &domain.ValidationError{Field: "location", Reason: "must not be empty"}
	}
	patterns, err := s.store.Patterns(ctx, location)
	if err != nil {
		return domain.LocationDetail{}, err
	}
	types, err := s.store.ViolationTypes(ctx, location, 0)
	if err != nil {
		return domain.LocationDetail{}, err
	}
	return domain.LocationDetail{Location: location, Patterns: patterns, ViolationTypes: types}, nil
}

// place returns a location's stored mean coordinates, falling back to the
// geocoder.
func (s *Service) place(ctx context.Context, r LocationRow) (domain.LatLng, bool) {
	if r.Lat.Valid && r.Lng.Valid {
		return domain.LatLng{Lat: r.Lat.Float64, Lng: r.Lng.Float64}, true
	}
	if s.geocoder == nil {
		return domain.LatLng{}, false
	}
	res, err := s.geocoder.Geocode(ctx, r.Location)
	if err != nil {
		s.logger.Debug("location not placeable", "location", r.Location, "error", err)
		return domain.LatLng{}, false
	}
	at := domain.LatLng{Lat: res.Lat, Lng: res.Lng}
	return at, at.Valid()
}

func round(v float64, places int) float64 {
	p := math.Pow10(places)
	return math.Round(v*p) / p
}
