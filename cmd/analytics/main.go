// Command analytics serves the violation analytics API and, when ingest is
// enabled, consumes raw violations from Kafka into the ticket store.
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
	"github.com/joho/godotenv"

	httpadapter "github.com/couchcryptid/parkwise/internal/adapter/http"
	kafkaadapter "github.com/couchcryptid/parkwise/internal/adapter/kafka"
	"github.com/couchcryptid/parkwise/internal/analytics"
	"github.com/couchcryptid/parkwise/internal/config"
	"github.com/couchcryptid/parkwise/internal/observability"
	"github.com/couchcryptid/parkwise/internal/pipeline"
)

const geocodeCacheSize = 1000

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := sharedobs.NewLogger(cfg.LogLevel, cfg.LogFormat)
	metrics := observability.NewMetrics()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, err := analytics.OpenStore(ctx, cfg.DBPath, logger)
	if err != nil {
		logger.Error("failed to open ticket store", "path", cfg.DBPath, "error", err)
		os.Exit(1)
	}
	defer store.Close()

	rdb, err := analytics.OpenRedis(cfg.RedisURL)
	if err != nil {
		logger.Error("invalid REDIS_URL", "error", err)
		os.Exit(1)
	}
	if rdb != nil {
		defer rdb.Close()
		logger.Info("redis query cache enabled", "ttl", cfg.RedisTTL)
	}

	geocoder := analytics.NewCachedGeocoder(analytics.StreetGeocoder{}, geocodeCacheSize, metrics)
	cache := analytics.NewQueryCache(cfg.QueryCacheSize, rdb, cfg.RedisTTL, logger, metrics)
	svc := analytics.NewService(store, geocoder, cache,
		analytics.Config{HeatmapResultLimit: cfg.HeatmapResultLimit}, logger, metrics)

	ready := readiness{store: store}

	var reader *kafkaadapter.Reader
	if cfg.IngestEnabled {
		reader = kafkaadapter.NewReader(cfg, logger)
		p := pipeline.New(reader, pipeline.NewTransformer(geocoder, logger), svc, logger, metrics, cfg.BatchSize)
		ready.pipeline = p

		go func() {
			if err := p.Run(ctx); err != nil {
				logger.Error("pipeline error", "error", err)
			}
		}()
	} else {
		logger.Info("kafka ingest disabled")
	}

	srv := httpadapter.NewServer(cfg.HTTPAddr, ready, logger, analytics.NewHandler(svc, logger, metrics))

	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", "error", err)
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", "error", err)
	}
	if reader != nil {
		if err := reader.Close(); err != nil {
			logger.Error("kafka reader close error", "error", err)
		}
	}

	logger.Info("shutdown complete")
}

// readiness is ready once the pipeline has loaded a batch or the store
// already holds tickets from an earlier run or a seed.
type readiness struct {
	store    *analytics.Store
	pipeline *pipeline.Pipeline
}

func (r readiness) CheckReadiness(ctx context.Context) error {
	if r.pipeline != nil && r.pipeline.Ready() {
		return nil
	}
	return r.store.CheckReadiness(ctx)
}
