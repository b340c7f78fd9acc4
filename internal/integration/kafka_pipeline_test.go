//go:build integration

package integration_test

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net"
	"strconv"
	"testing"
	"time"

	kafkago "github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tckafka "github.com/testcontainers/testcontainers-go/modules/kafka"

	"github.com/couchcryptid/parkwise/internal/adapter/kafka"
	"github.com/couchcryptid/parkwise/internal/analytics"
	"github.com/couchcryptid/parkwise/internal/config"
	"github.com/couchcryptid/parkwise/internal/domain"
	"github.com/couchcryptid/parkwise/internal/observability"
	"github.com/couchcryptid/parkwise/internal/pipeline"
)

const kafkaImage = "confluentinc/confluent-local:7.5.0"

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// startKafka runs a single-node broker for the test and returns its address.
func startKafka(ctx context.Context, t *testing.T) string {
	t.Helper()
	container, err := tckafka.Run(ctx, kafkaImage, tckafka.WithClusterID("parkwise-test"))
	require.NoError(t, err, "start kafka container")
	t.Cleanup(func() {
		if err := testcontainers.TerminateContainer(container); err != nil {
			t.Logf("terminate kafka container: %v", err)
		}
	})

	brokers, err := container.Brokers(ctx)
	require.NoError(t, err)
	require.NotEmpty(t, brokers)
	return brokers[0]
}

func createTopic(t *testing.T, broker, topic string) {
	t.Helper()
	conn, err := kafkago.Dial("tcp", broker)
	require.NoError(t, err)
	defer conn.Close()

	controller, err := conn.Controller()
	require.NoError(t, err)
	cc, err := kafkago.Dial("tcp", net.JoinHostPort(controller.Host, strconv.Itoa(controller.Port)))
	require.NoError(t, err)
	defer cc.Close()

	require.NoError(t, cc.CreateTopics(kafkago.TopicConfig{
		Topic:             topic,
		NumPartitions:     1,
		ReplicationFactor: 1,
	}))
}

func testConfig(broker, topic string) *config.Config {
	return &config.Config{
		KafkaBrokers:         []string{broker},
		KafkaViolationsTopic: topic,
		KafkaGroupID:         fmt.Sprintf("parkwise-test-%d", time.Now().UnixNano()),
		BatchSize:            10,
		BatchFlushInterval:   2 * time.Second,
	}
}

func violations() []domain.RawViolation {
	return []domain.RawViolation{
		{ViolationDate: "2024-06-03T00:00:00.000", ViolationTime: "0930", ViolationLocation: "100 N State St",
			ViolationCode: "0976160B", ViolationDescription: "EXPIRED METER OR OVERSTAY", FineAmount: "50",
			Latitude: "41.8830", Longitude: "-87.6280"},
		{ViolationDate: "2024-06-03T00:00:00.000", ViolationTime: "1015", ViolationLocation: "100 N STATE ST",
			ViolationCode: "0964040B", ViolationDescription: "STREET CLEANING", FineAmount: "60",
			Latitude: "41.8830", Longitude: "-87.6280"},
		{ViolationDate: "2024-06-04T00:00:00.000", ViolationTime: "1740", ViolationLocation: "200 W ADAMS ST",
			ViolationCode: "0964080A", FineAmount: "$100"},
	}
}

// TestKafkaWriterReader round-trips scraped records through the topic and
// checks keys, headers, and commit callbacks survive.
func TestKafkaWriterReader(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	broker := startKafka(ctx, t)
	const topic = "raw-violations-roundtrip"
	createTopic(t, broker, topic)
	cfg := testConfig(broker, topic)

	writer := kafka.NewWriter(cfg, discardLogger())
	t.Cleanup(func() { _ = writer.Close() })
	records := violations()
	require.NoError(t, writer.Publish(ctx, records))

	reader := kafka.NewReader(cfg, discardLogger())
	t.Cleanup(func() { _ = reader.Close() })

	var got []domain.RawEvent
	for len(got) < len(records) {
		batch, err := reader.ExtractBatch(ctx, len(records))
		require.NoError(t, err)
		got = append(got, batch...)
		if ctx.Err() != nil {
			t.Fatal("timed out waiting for records")
		}
	}
	require.Len(t, got, len(records))

	for i, raw := range got {
		assert.Equal(t, topic, raw.Topic)
		assert.Equal(t, domain.TicketID(records[i]), string(raw.Key))
		assert.Equal(t, "socrata", raw.Headers["source"])
		assert.Equal(t, records[i].ViolationCode, raw.Headers["violation_code"])
		require.NotNil(t, raw.Commit)
		require.NoError(t, raw.Commit(ctx))
	}
}

// TestPipelineLoadsStore runs the full ingest path: publish, consume,
// transform, and load into SQLite, then queries the analytics service.
func TestPipelineLoadsStore(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	broker := startKafka(ctx, t)
	const topic = "raw-violations-pipeline"
	createTopic(t, broker, topic)
	cfg := testConfig(broker, topic)

	logger := discardLogger()
	metrics := observability.NewMetricsForTesting()

	store, err := analytics.OpenStore(ctx, ":memory:", logger)
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	geocoder := analytics.NewCachedGeocoder(analytics.StreetGeocoder{}, 100, metrics)
	svc := analytics.NewService(store, geocoder,
		analytics.NewQueryCache(8, nil, time.Minute, logger, metrics),
		analytics.Config{HeatmapResultLimit: 100}, logger, metrics)

	writer := kafka.NewWriter(cfg, logger)
	t.Cleanup(func() { _ = writer.Close() })
	records := violations()
	// Published twice; the store keeps one row per ticket id.
	require.NoError(t, writer.Publish(ctx, records))
	require.NoError(t, writer.Publish(ctx, records))

	reader := kafka.NewReader(cfg, logger)
	t.Cleanup(func() { _ = reader.Close() })

	p := pipeline.New(reader, pipeline.NewTransformer(geocoder, logger), svc, logger, metrics, cfg.BatchSize)

	runCtx, stop := context.WithCancel(ctx)
	done := make(chan error, 1)
	go func() { done <- p.Run(runCtx) }()

	require.Eventually(t, func() bool {
		n, err := store.Count(ctx)
		return err == nil && n == len(records) && p.Ready()
	}, 90*time.Second, 250*time.Millisecond)

	stop()
	require.NoError(t, <-done)

	heat, err := svc.Heatmap(ctx, domain.DayAll, domain.HourAll)
	require.NoError(t, err)
	require.Len(t, heat, 2)
	assert.Equal(t, "100 N STATE ST", heat[0].Location)
	assert.Equal(t, 2, heat[0].Count)

	heat, err = svc.Heatmap(ctx, "Tuesday", 17)
	require.NoError(t, err)
	require.Len(t, heat, 1)
	assert.Equal(t, "200 W ADAMS ST", heat[0].Location)
}
