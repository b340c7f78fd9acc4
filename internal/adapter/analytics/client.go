// Package analytics is the engine's HTTP client for the violation analytics
// service.
package analytics

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/couchcryptid/parkwise/internal/domain"
	"github.com/couchcryptid/parkwise/internal/observability"
)

const statusSuccess = "success"

// Operation names, used in errors and metric labels.
const (
	OpHeatmap    = "heatmap"
	OpNearest    = "nearest"
	OpGeocode    = "geocode"
	OpStatistics = "statistics"
	OpDetails    = "details"
)

// Client calls the analytics service. A zero timeout means requests are
// bounded only by their context.
type Client struct {
	httpClient *http.Client
	baseURL    string
	logger     *slog.Logger
	metrics    *observability.Metrics
}

// NewClient creates an analytics client rooted at baseURL.
func NewClient(baseURL string, timeout time.Duration, logger *slog.Logger, metrics *observability.Metrics) *Client {
	return &Client{
		httpClient: &http.Client{Timeout: timeout},
		baseURL:    strings.TrimRight(baseURL, "/"),
		logger:     logger,
		metrics:    metrics,
	}
}

// envelope is the service's response wrapper.
type envelope struct {
	Status   string          `json:"status"`
	Message  string          `json:"message,omitempty"`
	Data     json.RawMessage `json:"data,omitempty"`
	Metadata json.RawMessage `json:"metadata,omitempty"`
}

// Heatmap returns violation aggregates for the time window.
func (c *Client) Heatmap(ctx context.Context, day domain.Day, hour domain.Hour) ([]domain.ViolationAggregate, error) {
	params := url.Values{
		"day":  {dayParam(day)},
		"hour": {hour.String()},
	}
	env, err := c.get(ctx, OpHeatmap, "/api/heatmap-data", params)
	if err != nil {
		return nil, err
	}
	var aggs []domain.ViolationAggregate
	if err := decodeData(OpHeatmap, env.Data, &aggs); err != nil {
		return nil, err
	}
	return aggs, nil
}

// Nearest returns the locations closest to q.Center in service order.
func (c *Client) Nearest(ctx context.Context, q domain.NearestQuery) ([]domain.NearestResult, domain.NearestMetadata, error) {
	params := url.Values{
		"lat":    {strconv.FormatFloat(q.Center.Lat, 'f', -1, 64)},
		"lng":    {strconv.FormatFloat(q.Center.Lng, 'f', -1, 64)},
		"radius": {strconv.FormatFloat(q.RadiusMiles, 'f', -1, 64)},
		"day":    {dayParam(q.Day)},
		"hour":   {q.Hour.String()},
		"limit":  {strconv.Itoa(q.Limit)},
	}
	env, err := c.get(ctx, OpNearest, "/api/nearest-violations", params)
	if err != nil {
		return nil, domain.NearestMetadata{}, err
	}

	var results []domain.NearestResult
	if err := decodeData(OpNearest, env.Data, &results); err != nil {
		return nil, domain.NearestMetadata{}, err
	}
	var meta domain.NearestMetadata
	if len(env.Metadata) > 0 && string(env.Metadata) != "null" {
		if err := json.Unmarshal(env.Metadata, &meta); err != nil {
			return nil, domain.NearestMetadata{}, &domain.TransportError{Op: OpNearest, Err: fmt.Errorf("decode metadata: %w", err)}
		}
	}
	return results, meta, nil
}

// Geocode resolves a free-text address.
func (c *Client) Geocode(ctx context.Context, address string) (domain.GeocodeResult, error) {
	env, err := c.get(ctx, OpGeocode, "/api/geocode", url.Values{"address": {address}})
	if err != nil {
		return domain.GeocodeResult{}, err
	}
	var res domain.GeocodeResult
	if err := decodeData(OpGeocode, env.Data, &res); err != nil {
		return domain.GeocodeResult{}, err
	}
	if len(env.Data) == 0 || string(env.Data) == "null" {
		return domain.GeocodeResult{}, &domain.ServiceError{Op: OpGeocode, Status: env.Status, Message: "Unable to resolve address"}
	}
	return res, nil
}

// Statistics returns the global dashboard summary.
func (c *Client) Statistics(ctx context.Context) (domain.Statistics, error) {
	env, err := c.get(ctx, OpStatistics, "/api/statistics", nil)
	if err != nil {
		return domain.Statistics{}, err
	}
	var stats domain.Statistics
	if err := decodeData(OpStatistics, env.Data, &stats); err != nil {
		return domain.Statistics{}, err
	}
	return stats, nil
}

// LocationDetails returns the pattern and type breakdown for one location.
func (c *Client) LocationDetails(ctx context.Context, location string) (domain.LocationDetail, error) {
	env, err := c.get(ctx, OpDetails, "/api/location-details/"+url.PathEscape(location), nil)
	if err != nil {
		return domain.LocationDetail{}, err
	}
	var detail domain.LocationDetail
	if err := decodeData(OpDetails, env.Data, &detail); err != nil {
		return domain.LocationDetail{}, err
	}
	detail.Location = location
	return detail, nil
}

// CheckReadiness asks the service for statistics and reports whether it answered.
func (c *Client) CheckReadiness(ctx context.Context) error {
	_, err := c.Statistics(ctx)
	if err != nil {
		return fmt.Errorf("analytics service not ready: %w", err)
	}
	return nil
}

func (c *Client) get(ctx context.Context, op, path string, params url.Values) (env envelope, err error) {
	start := time.Now()
	defer func() {
		c.metrics.RemoteDuration.WithLabelValues(op).Observe(time.Since(start).Seconds())
		c.metrics.RemoteRequests.WithLabelValues(op, outcome(err)).Inc()
	}()

	u := c.baseURL + path
	if len(params) > 0 {
		u += "?" + params.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return envelope{}, &domain.TransportError{Op: op, Err: fmt.Errorf("create request: %w", err)}
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return envelope{}, &domain.TransportError{Op: op, Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return envelope{}, &domain.TransportError{Op: op, Err: fmt.Errorf("read body: %w", err)}
	}
	if err := json.Unmarshal(body, &env); err != nil {
		c.logger.Debug("undecodable analytics response", "operation", op, "status", resp.StatusCode, "body", truncate(body, 256))
		return envelope{}, &domain.TransportError{Op: op, Err: fmt.Errorf("decode response (status %d): %w", resp.StatusCode, err)}
	}
	if env.Status != statusSuccess {
		return envelope{}, &domain.ServiceError{Op: op, Status: env.Status, Message: env.Message, StatusCode: resp.StatusCode}
	}
	return env, nil
}

func decodeData(op string, data json.RawMessage, v any) error {
	if len(data) == 0 || string(data) == "null" {
		return nil
	}
	if err := json.Unmarshal(data, v); err != nil {
		return &domain.TransportError{Op: op, Err: fmt.Errorf("decode data: %w", err)}
	}
	return nil
}

func dayParam(d domain.Day) string {
	if d.IsAll() {
		return string(domain.DayAll)
	}
	return string(d)
}

func outcome(err error) string {
	var se *domain.ServiceError
	switch {
	case err == nil:
		return "success"
	case errors.As(err, &se):
		return "service_error"
	default:
		return "transport_error"
	}
}

func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n]) + "..."
}
