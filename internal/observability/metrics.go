package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "parkwise"

// Metrics holds the Prometheus counters, histograms, and gauges for the engine,
// the scraper, and the analytics service. Each binary registers the full set;
// series a binary never touches simply stay at zero.
type Metrics struct {
	// Engine: remote analytics calls.
	RemoteRequests *prometheus.CounterVec   // labels: operation={heatmap,nearest,geocode,statistics,details}, outcome={success,service_error,transport_error}
	RemoteDuration *prometheus.HistogramVec // labels: operation
	StaleResponses *prometheus.CounterVec   // labels: query

	// Engine: rendering and location.
	HeatmapPoints          prometheus.Histogram
	HeatmapDownsampled     prometheus.Counter
	LocationResolutions    *prometheus.CounterVec // labels: source={geolocation,map,address}
	LocationFailures       *prometheus.CounterVec // labels: reason={unavailable,denied,timeout,address_service,address_transport}
	NearestOrderViolations prometheus.Counter
	ActiveSessions         prometheus.Gauge

	// Scraper.
	ScrapePages      prometheus.Counter
	ScrapeRecords    prometheus.Counter
	ScrapeErrors     prometheus.Counter
	RecordsPublished prometheus.Counter

	// Analytics ingest pipeline.
	MessagesConsumed        prometheus.Counter
	TicketsLoaded           prometheus.Counter
	TransformErrors         prometheus.Counter
	PipelineRunning         prometheus.Gauge
	BatchSize               prometheus.Histogram
	BatchProcessingDuration prometheus.Histogram

	// Analytics queries.
	QueryCache   *prometheus.CounterVec // labels: tier={memory,redis}, result={hit,miss}
	GeocodeCache *prometheus.CounterVec // labels: result={hit,miss}
	APIRequests  *prometheus.CounterVec // labels: endpoint, code
}

// NewMetrics creates and registers all metrics with the default Prometheus registry.
func NewMetrics() *Metrics {
	m := newMetrics()
	prometheus.MustRegister(m.collectors()...)
	return m
}

// NewMetricsForTesting creates unregistered Metrics to avoid "already
// registered" panics when called from multiple tests.
func NewMetricsForTesting() *Metrics {
	return newMetrics()
}

func newMetrics() *Metrics {
	return &Metrics{
		RemoteRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "remote_requests_total",
			Help:      "Analytics service requests by operation and outcome.",
		}, []string{"operation", "outcome"}),
		RemoteDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "remote_request_duration_seconds",
			Help:      "Analytics service request duration in seconds.",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		}, []string{"operation"}),
		StaleResponses: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "stale_responses_total",
			Help:      "Responses discarded because a newer request of the same type was issued.",
		}, []string{"query"}),
		HeatmapPoints: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "heatmap_points",
			Help:      "Number of points drawn per heatmap refresh.",
			Buckets:   []float64{0, 10, 100, 500, 1000, 2000, 3000},
		}),
		HeatmapDownsampled: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "heatmap_downsampled_total",
			Help:      "Heatmap refreshes whose plottable set exceeded the point cap.",
		}),
		LocationResolutions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "location_resolutions_total",
			Help:      "Successful search-location resolutions by source.",
		}, []string{"source"}),
		LocationFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "location_failures_total",
			Help:      "Failed search-location resolutions by reason.",
		}, []string{"reason"}),
		NearestOrderViolations: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "nearest_order_violations_total",
			Help:      "Nearest responses whose distances were not ascending.",
		}),
		ActiveSessions: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "active_sessions",
			Help:      "Engine sessions currently open.",
		}),
		ScrapePages: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "scrape_pages_total",
			Help:      "Open-data pages fetched.",
		}),
		ScrapeRecords: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "scrape_records_total",
			Help:      "Violation records fetched from the open-data API.",
		}),
		ScrapeErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "scrape_errors_total",
			Help:      "Page requests that aborted a scrape.",
		}),
		RecordsPublished: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "records_published_total",
			Help:      "Violation records written to the raw topic.",
		}),
		MessagesConsumed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "messages_consumed_total",
			Help:      "Total messages read from the raw violations topic.",
		}),
		TicketsLoaded: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tickets_loaded_total",
			Help:      "Total tickets written to the store.",
		}),
		TransformErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "transform_errors_total",
			Help:      "Total ticket parse failures.",
		}),
		PipelineRunning: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "pipeline_running",
			Help:      "1 when the ingest pipeline is active, 0 when shut down.",
		}),
		BatchSize: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "batch_size",
			Help:      "Number of messages per batch extracted from Kafka.",
			Buckets:   []float64{1, 5, 10, 20, 30, 40, 50, 75, 100},
		}),
		BatchProcessingDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "batch_processing_duration_seconds",
			Help:      "Duration of a complete batch extract-transform-load cycle.",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.5, 1, 2.5, 5, 10},
		}),
		QueryCache: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "query_cache_total",
			Help:      "Heatmap query cache lookups by tier and result.",
		}, []string{"tier", "result"}),
		GeocodeCache: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "geocode_cache_total",
			Help:      "Location geocode cache lookups by result.",
		}, []string{"result"}),
		APIRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "api_requests_total",
			Help:      "Analytics API requests served by endpoint and status code.",
		}, []string{"endpoint", "code"}),
	}
}

func (m *Metrics) collectors() []prometheus.Collector {
	return []prometheus.Collector{
		m.RemoteRequests,
		m.RemoteDuration,
		m.StaleResponses,
		m.HeatmapPoints,
		m.HeatmapDownsampled,
		m.LocationResolutions,
		m.LocationFailures,
		m.NearestOrderViolations,
		m.ActiveSessions,
		m.ScrapePages,
		m.ScrapeRecords,
		m.ScrapeErrors,
		m.RecordsPublished,
		m.MessagesConsumed,
		m.TicketsLoaded,
		m.TransformErrors,
		m.PipelineRunning,
		m.BatchSize,
		m.BatchProcessingDuration,
		m.QueryCache,
		m.GeocodeCache,
		m.APIRequests,
	}
}
