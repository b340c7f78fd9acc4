// Command parkwise serves the parking-risk engine: one session per browser,
// backed by the analytics service.
package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	sharedobs "github.com/couchcryptid/storm-data-shared/observability"
	"github.com/jonboulle/clockwork"
	"github.com/joho/godotenv"

	analyticsclient "github.com/couchcryptid/parkwise/internal/adapter/analytics"
	httpadapter "github.com/couchcryptid/parkwise/internal/adapter/http"
	"github.com/couchcryptid/parkwise/internal/config"
	"github.com/couchcryptid/parkwise/internal/domain"
	"github.com/couchcryptid/parkwise/internal/geolocation"
	"github.com/couchcryptid/parkwise/internal/observability"
	"github.com/couchcryptid/parkwise/internal/session"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := sharedobs.NewLogger(cfg.LogLevel, cfg.LogFormat)
	metrics := observability.NewMetrics()
	clock := clockwork.NewRealClock()

	client := analyticsclient.NewClient(cfg.AnalyticsBaseURL, cfg.AnalyticsTimeout, logger, metrics)

	// Browsers report their own fix; a configured device position overrides it.
	var locator geolocation.Locator = geolocation.Reported{}
	if cfg.DeviceLat != nil && cfg.DeviceLng != nil {
		locator = geolocation.Static{Coords: domain.LatLng{Lat: *cfg.DeviceLat, Lng: *cfg.DeviceLng}, Clock: clock}
		logger.Info("static device position", "lat", *cfg.DeviceLat, "lng", *cfg.DeviceLng)
	}

	registry := session.NewRegistry(client, locator, sessionOptions(cfg), cfg.SessionIdleTimeout, clock, logger, metrics)
	srv := httpadapter.NewServer(cfg.HTTPAddr, client, logger, httpadapter.NewEngineRoutes(registry, logger))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", "error", err)
		}
	}()

	go registry.Run(ctx)

	logger.Info("engine started", "analytics", cfg.AnalyticsBaseURL)
	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", "error", err)
	}

	logger.Info("shutdown complete")
}

func sessionOptions(cfg *config.Config) session.Options {
	opts := session.DefaultOptions()
	opts.Center = domain.LatLng{Lat: cfg.MapCenterLat, Lng: cfg.MapCenterLng}
	opts.Zoom = cfg.MapZoom
	opts.MinZoom = cfg.MinResolvedZoom
	opts.NearestLimit = cfg.NearestLimit
	opts.Geolocation.Timeout = cfg.GeolocationTimeout
	opts.Geolocation.MaximumAge = cfg.GeolocationMaxAge
	opts.Filters.RadiusMiles = cfg.DefaultRadiusMiles
	return opts
}
