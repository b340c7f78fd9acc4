package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	sharedcfg "github.com/couchcryptid/storm-data-shared/config"
)

// Config holds all service settings, populated from environment variables.
// The engine, scraper, and analytics binaries share one Config and read the
// fields they need.
type Config struct {
	HTTPAddr        string
	LogLevel        string
	LogFormat       string
	ShutdownTimeout time.Duration

	// Engine.
	AnalyticsBaseURL   string
	AnalyticsTimeout   time.Duration // 0 disables the client timeout
	MapCenterLat       float64
	MapCenterLng       float64
	MapZoom            int
	MinResolvedZoom    int
	DefaultRadiusMiles float64
	NearestLimit       int
	GeolocationTimeout time.Duration
	GeolocationMaxAge  time.Duration
	DeviceLat          *float64
	DeviceLng          *float64
	SessionIdleTimeout time.Duration

	// Kafka.
	KafkaBrokers         []string
	KafkaViolationsTopic string
	KafkaGroupID         string
	BatchSize            int
	BatchFlushInterval   time.Duration

	// Analytics service.
	IngestEnabled      bool
	DBPath             string
	QueryCacheSize     int
	HeatmapResultLimit int
	RedisURL           string
	RedisTTL           time.Duration

	// Scraper.
	SocrataBaseURL  string
	SocrataAppToken string
	ScrapeStartDate string
	ScrapeEndDate   string
	ScrapePageSize  int
	ScrapeMaxPages  int
	ScrapePageDelay time.Duration
	ScrapeBBox      *BBox
}

// BBox is a [west, south, east, north] bounding box in degrees.
type BBox struct {
	West, South, East, North float64
}

// Load reads configuration from environment variables, applying defaults where unset.
func Load() (*Config, error) {
	var errs []error
	dur := func(key, def string, allowZero bool) time.Duration {
		d, err := parseDuration(key, def, allowZero)
		if err != nil {
			errs = append(errs, err)
		}
		return d
	}
	posInt := func(key string, def int) int {
		n, err := parsePositiveInt(key, def)
		if err != nil {
			errs = append(errs, err)
		}
		return n
	}
	float := func(key string, def float64) float64 {
		f, err := parseFloat(key, def)
		if err != nil {
			errs = append(errs, err)
		}
		return f
	}

	cfg := &Config{
		HTTPAddr:        sharedcfg.EnvOrDefault("HTTP_ADDR", ":8080"),
		LogLevel:        sharedcfg.EnvOrDefault("LOG_LEVEL", "info"),
		LogFormat:       sharedcfg.EnvOrDefault("LOG_FORMAT", "json"),
		ShutdownTimeout: collect(&errs, sharedcfg.ParseShutdownTimeout),

		AnalyticsBaseURL:   strings.TrimRight(sharedcfg.EnvOrDefault("ANALYTICS_BASE_URL", "http://localhost:8081"), "/"),
		AnalyticsTimeout:   dur("ANALYTICS_TIMEOUT", "0s", true),
		MapCenterLat:       float("MAP_CENTER_LAT", 41.8781),
		MapCenterLng:       float("MAP_CENTER_LNG", -87.6298),
		MapZoom:            posInt("MAP_ZOOM", 12),
		MinResolvedZoom:    posInt("MIN_RESOLVED_ZOOM", 13),
		DefaultRadiusMiles: float("DEFAULT_RADIUS_MILES", 0.5),
		NearestLimit:       posInt("NEAREST_LIMIT", 20),
		GeolocationTimeout: dur("GEOLOCATION_TIMEOUT", "10s", false),
		GeolocationMaxAge:  dur("GEOLOCATION_MAX_AGE", "5m", true),
		SessionIdleTimeout: dur("SESSION_IDLE_TIMEOUT", "30m", false),

		KafkaBrokers:         sharedcfg.ParseBrokers(sharedcfg.EnvOrDefault("KAFKA_BROKERS", "localhost:9092")),
		KafkaViolationsTopic: sharedcfg.EnvOrDefault("KAFKA_VIOLATIONS_TOPIC", "raw-parking-violations"),
		KafkaGroupID:         sharedcfg.EnvOrDefault("KAFKA_GROUP_ID", "parkwise-analytics"),
		BatchSize:            collect(&errs, sharedcfg.ParseBatchSize),
		BatchFlushInterval:   collect(&errs, sharedcfg.ParseBatchFlushInterval),

		IngestEnabled:      sharedcfg.EnvOrDefault("INGEST_ENABLED", "true") == "true",
		DBPath:             sharedcfg.EnvOrDefault("DB_PATH", "parkwise.db"),
		QueryCacheSize:     posInt("QUERY_CACHE_SIZE", 32),
		HeatmapResultLimit: posInt("HEATMAP_RESULT_LIMIT", 2000),
		RedisURL:           os.Getenv("REDIS_URL"),
		RedisTTL:           dur("REDIS_TTL", "1h", false),

		SocrataBaseURL:  sharedcfg.EnvOrDefault("SOCRATA_BASE_URL", "https://data.cityofchicago.org/resource/sbc2-2car.json"),
		SocrataAppToken: os.Getenv("SOCRATA_APP_TOKEN"),
		ScrapeStartDate: sharedcfg.EnvOrDefault("SCRAPE_START_DATE", "2024-06-01"),
		ScrapeEndDate:   sharedcfg.EnvOrDefault("SCRAPE_END_DATE", "2025-06-01"),
		ScrapePageSize:  posInt("SCRAPE_PAGE_SIZE", 1000),
		ScrapeMaxPages:  posInt("SCRAPE_MAX_PAGES", 5),
		ScrapePageDelay: dur("SCRAPE_PAGE_DELAY", "1s", true),
	}

	device, err := parseDevicePosition()
	if err != nil {
		errs = append(errs, err)
	} else if device != nil {
		cfg.DeviceLat, cfg.DeviceLng = &device[0], &device[1]
	}

	bbox, err := ParseBBox(sharedcfg.EnvOrDefault("SCRAPE_BBOX", "-87.644,41.875,-87.620,41.890"))
	if err != nil {
		errs = append(errs, err)
	}
	cfg.ScrapeBBox = bbox

	if len(errs) > 0 {
		return nil, errs[0]
	}

	if len(cfg.KafkaBrokers) == 0 {
		return nil, errors.New("KAFKA_BROKERS is required")
	}
	if cfg.KafkaViolationsTopic == "" {
		return nil, errors.New("KAFKA_VIOLATIONS_TOPIC is required")
	}
	if cfg.DefaultRadiusMiles <= 0 {
		return nil, errors.New("invalid DEFAULT_RADIUS_MILES")
	}
	if _, err := time.Parse(time.DateOnly, cfg.ScrapeStartDate); err != nil {
		return nil, errors.New("invalid SCRAPE_START_DATE")
	}
	if _, err := time.Parse(time.DateOnly, cfg.ScrapeEndDate); err != nil {
		return nil, errors.New("invalid SCRAPE_END_DATE")
	}

	return cfg, nil
}

// ParseBBox parses "west,south,east,north". "none" or an empty string disables
// the box.
func ParseBBox(s string) (*BBox, error) {
	s = strings.TrimSpace(s)
	if s == "" || strings.EqualFold(s, "none") {
		return nil, nil
	}
	parts := strings.Split(s, ",")
	if len(parts) != 4 {
		return nil, errors.New("invalid SCRAPE_BBOX")
	}
	var v [4]float64
	for i, p := range parts {
		f, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil {
			return nil, errors.New("invalid SCRAPE_BBOX")
		}
		v[i] = f
	}
	if v[0] >= v[2] || v[1] >= v[3] {
		return nil, errors.New("invalid SCRAPE_BBOX")
	}
	return &BBox{West: v[0], South: v[1], East: v[2], North: v[3]}, nil
}

// collect runs one of the shared parsers, recording its error.
func collect[T any](errs *[]error, parse func() (T, error)) T {
	v, err := parse()
	if err != nil {
		*errs = append(*errs, err)
	}
	return v
}

func parseDuration(key, def string, allowZero bool) (time.Duration, error) {
	d, err := time.ParseDuration(sharedcfg.EnvOrDefault(key, def))
	if err != nil || d < 0 || (d == 0 && !allowZero) {
		return 0, fmt.Errorf("invalid %s", key)
	}
	return d, nil
}

func parsePositiveInt(key string, def int) (int, error) {
	s := os.Getenv(key)
	if s == "" {
		return def, nil
	}
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("invalid %s", key)
	}
	return n, nil
}

func parseFloat(key string, def float64) (float64, error) {
	s := os.Getenv(key)
	if s == "" {
		return def, nil
	}
	f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s", key)
	}
	return f, nil
}

func parseDevicePosition() (*[2]float64, error) {
	latStr, lngStr := os.Getenv("DEVICE_LAT"), os.Getenv("DEVICE_LNG")
	if latStr == "" && lngStr == "" {
		return nil, nil
	}
	lat, errLat := strconv.ParseFloat(strings.TrimSpace(latStr), 64)
	lng, errLng := strconv.ParseFloat(strings.TrimSpace(lngStr), 64)
	if errLat != nil || errLng != nil {
		return nil, errors.New("invalid DEVICE_LAT/DEVICE_LNG")
	}
	return &[2]float64{lat, lng}, nil
}
