package analytics

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/couchcryptid/parkwise/internal/domain"
	"github.com/couchcryptid/parkwise/internal/observability"
)

const (
	redisKeyPrefix = "parkwise:heatmap:"
	redisEpochKey  = "parkwise:heatmap:epoch"
)

// QueryCache holds heatmap results per time window in an in-process LRU,
// optionally backed by Redis so several service instances share results.
// Redis errors are logged and treated as misses.
type QueryCache struct {
	memory  *LRU[[]domain.ViolationAggregate]
	redis   *redis.Client
	ttl     time.Duration
	logger  *slog.Logger
	metrics *observability.Metrics
}

// NewQueryCache creates a cache of size entries. rdb may be nil.
func NewQueryCache(size int, rdb *redis.Client, ttl time.Duration, logger *slog.Logger, metrics *observability.Metrics) *QueryCache {
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &QueryCache{
		memory:  NewLRU[[]domain.ViolationAggregate](size),
		redis:   rdb,
		ttl:     ttl,
		logger:  logger,
		metrics: metrics,
	}
}

// OpenRedis parses a redis:// URL into a client. An empty URL returns nil.
func OpenRedis(url string) (*redis.Client, error) {
	if url == "" {
		return nil, nil
	}
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse REDIS_URL: %w", err)
	}
	return redis.NewClient(opts), nil
}

func windowKey(day domain.Day, hour domain.Hour) string {
	d := "all"
	if !day.IsAll() {
		d = string(day)
	}
	return d + "|" + hour.String()
}

// Get returns the cached aggregates for the window.
func (c *QueryCache) Get(ctx context.Context, day domain.Day, hour domain.Hour) ([]domain.ViolationAggregate, bool) {
	key := windowKey(day, hour)
	if v, ok := c.memory.Get(key); ok {
		c.metrics.QueryCache.WithLabelValues("memory", "hit").Inc()
		return v, true
	}
	c.metrics.QueryCache.WithLabelValues("memory", "miss").Inc()

	if c.redis == nil {
		return nil, false
	}
	rkey, err := c.redisKey(ctx, key)
	if err != nil {
		c.logger.Warn("redis epoch lookup failed", "error", err)
		return nil, false
	}
	s, err := c.redis.Get(ctx, rkey).Result()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			c.logger.Warn("redis get failed", "key", rkey, "error", err)
		}
		c.metrics.QueryCache.WithLabelValues("redis", "miss").Inc()
		return nil, false
	}
	var v []domain.ViolationAggregate
	if err := json.Unmarshal([]byte(s), &v); err != nil {
		c.logger.Warn("redis entry undecodable", "key", rkey, "error", err)
		c.metrics.QueryCache.WithLabelValues("redis", "miss").Inc()
		return nil, false
	}
	c.metrics.QueryCache.WithLabelValues("redis", "hit").Inc()
	c.memory.Put(key, v)
	return v, true
}

// Put stores the aggregates for the window.
func (c *QueryCache) Put(ctx context.Context, day domain.Day, hour domain.Hour, v []domain.ViolationAggregate) {
	key := windowKey(day, hour)
	c.memory.Put(key, v)
	if c.redis == nil {
		return
	}
	rkey, err := c.redisKey(ctx, key)
	if err != nil {
		c.logger.Warn("redis epoch lookup failed", "error", err)
		return
	}
	b, err := json.Marshal(v)
	if err != nil {
		c.logger.Warn("encode heatmap for redis", "error", err)
		return
	}
	if err := c.redis.Set(ctx, rkey, b, c.ttl).Err(); err != nil {
		c.logger.Warn("redis set failed", "key", rkey, "error", err)
	}
}

// Invalidate drops every cached window. Redis entries are orphaned by bumping
// the shared epoch and expire on their own.
func (c *QueryCache) Invalidate(ctx context.Context) {
	c.memory.Purge()
	if c.redis == nil {
		return
	}
	if err := c.redis.Incr(ctx, redisEpochKey).Err(); err != nil {
		c.logger.Warn("redis epoch bump failed", "error", err)
	}
}

func (c *QueryCache) redisKey(ctx context.Context, key string) (string, error) {
	epoch, err := c.redis.Get(ctx, redisEpochKey).Int64()
	if err != nil && !errors.Is(err, redis.Nil) {
		return "", err
	}
	return fmt.Sprintf("%s%d:%s", redisKeyPrefix, epoch, key), nil
}
