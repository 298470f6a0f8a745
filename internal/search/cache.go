package search

import (
	"context"
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"log/slog"

	"golang.org/x/sync/singleflight"

	"github.com/geoaziz/contentcore/pkg/config"
	"github.com/geoaziz/contentcore/pkg/logger"
	"github.com/geoaziz/contentcore/pkg/metrics"
	pkgredis "github.com/geoaziz/contentcore/pkg/redis"
)

const cacheKeyPrefix = "search:"

// QueryCache memoises search results in Redis. Identical queries arriving
// concurrently are collapsed through singleflight so a cold key is computed
// once.
type QueryCache struct {
	client  *pkgredis.Client
	cfg     config.RedisConfig
	metrics *metrics.Metrics
	group   singleflight.Group
	logger  *slog.Logger
}

// NewQueryCache creates a QueryCache. m may be nil.
func NewQueryCache(client *pkgredis.Client, cfg config.RedisConfig, m *metrics.Metrics) *QueryCache {
	return &QueryCache{
		client:  client,
		cfg:     cfg,
		metrics: m,
		logger:  logger.WithComponent("query-cache"),
	}
}

// Get returns cached results for the query, if present.
func (c *QueryCache) Get(ctx context.Context, q Query) ([]Result, bool) {
	key := c.buildKey(q)
	data, err := c.client.Get(ctx, key)
	if err != nil {
		if !pkgredis.IsNilError(err) {
			c.logger.Error("cache get failed", "key", key, "error", err)
		}
		c.miss()
		return nil, false
	}
	var results []Result
	if err := json.Unmarshal([]byte(data), &results); err != nil {
		c.logger.Error("cache unmarshal failed", "key", key, "error", err)
		c.miss()
		return nil, false
	}
	c.hit()
	return results, true
}

// Set stores results for the query with the configured TTL.
func (c *QueryCache) Set(ctx context.Context, q Query, results []Result) {
	data, err := json.Marshal(results)
	if err != nil {
		c.logger.Error("cache marshal failed", "error", err)
		return
	}
	key := c.buildKey(q)
	if err := c.client.Set(ctx, key, string(data), c.cfg.CacheTTL); err != nil {
		c.logger.Error("cache set failed", "key", key, "error", err)
	}
}

// Do collapses concurrent executions of the same query into one.
func (c *QueryCache) Do(q Query, fn func() []Result) []Result {
	v, _, _ := c.group.Do(c.buildKey(q), func() (any, error) {
		return fn(), nil
	})
	return v.([]Result)
}

// Invalidate drops every cached search result, typically after a mutation.
func (c *QueryCache) Invalidate(ctx context.Context) {
	deleted, err := c.client.FlushByPattern(ctx, cacheKeyPrefix+"*")
	if err != nil {
		c.logger.Error("cache invalidation failed", "error", err)
		return
	}
	c.logger.Debug("cache invalidated", "keys_deleted", deleted)
}

func (c *QueryCache) buildKey(q Query) string {
	data, err := json.Marshal(q)
	if err != nil {
		return cacheKeyPrefix + "invalid"
	}
	return fmt.Sprintf("%s%x", cacheKeyPrefix, sha256.Sum256(data))
}

func (c *QueryCache) hit() {
	if c.metrics != nil {
		c.metrics.CacheHitsTotal.Inc()
	}
}

func (c *QueryCache) miss() {
	if c.metrics != nil {
		c.metrics.CacheMissesTotal.Inc()
	}
}
