// Command scraper pulls parking violations from the city open-data portal and
// publishes them to the raw violations topic.
//
// Usage:
//
//	go run ./cmd/scraper              # publish to Kafka
//	go run ./cmd/scraper -out v.json  # write records to a file instead
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	sharedobs "github.com/couchcryptid/storm-data-shared/observability"
	"github.com/dustin/go-humanize"
	"github.com/jonboulle/clockwork"
	"github.com/joho/godotenv"

	kafkaadapter "github.com/couchcryptid/parkwise/internal/adapter/kafka"
	"github.com/couchcryptid/parkwise/internal/adapter/socrata"
	"github.com/couchcryptid/parkwise/internal/config"
	"github.com/couchcryptid/parkwise/internal/domain"
	"github.com/couchcryptid/parkwise/internal/observability"
)

const fetchTimeout = 30 * time.Second

func main() {
	out := flag.String("out", "", "write scraped records to this JSON file instead of Kafka")
	flag.Parse()

	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	logger := sharedobs.NewLogger(cfg.LogLevel, cfg.LogFormat)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, *out, logger); err != nil {
		logger.Error("scrape failed", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, out string, logger *slog.Logger) error {
	metrics := observability.NewMetrics()
	client := socrata.NewClient(socrata.OptionsFromConfig(cfg), fetchTimeout, clockwork.NewRealClock(), logger, metrics)

	records, fetchErr := client.FetchViolations(ctx)
	if fetchErr != nil {
		// Pagination stopped early; whatever arrived before the failure is still published.
		logger.Warn("scrape incomplete", "error", fetchErr, "records", len(records))
	}
	if len(records) == 0 {
		if fetchErr != nil {
			return fetchErr
		}
		logger.Info("no records fetched")
		return nil
	}
	logger.Info("scrape complete", "records", humanize.Comma(int64(len(records))))

	if out != "" {
		if err := writeJSON(out, records); err != nil {
			return fmt.Errorf("writing %s: %w", out, err)
		}
		logger.Info("wrote records", "path", out)
		return nil
	}

	writer := kafkaadapter.NewWriter(cfg, logger)
	defer func() {
		if err := writer.Close(); err != nil {
			logger.Error("kafka writer close error", "error", err)
		}
	}()

	if err := writer.Publish(ctx, records); err != nil {
		return fmt.Errorf("publish: %w", err)
	}
	metrics.RecordsPublished.Add(float64(len(records)))
	logger.Info("published records", "topic", cfg.KafkaViolationsTopic, "count", len(records))
	return nil
}

func writeJSON(path string, v []domain.RawViolation) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	data = append(data, '\n')
	return os.WriteFile(path, data, 0o600)
}
