// Package cache memoises query resolutions in Redis. Entries are keyed by the
// normalized query text, so queries that tokenize identically share an entry.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/Adithya-Monish-Kumar-K/exam-question-search/internal/indexer/tokenizer"
	"github.com/Adithya-Monish-Kumar-K/exam-question-search/internal/searcher/resolver"
	"github.com/Adithya-Monish-Kumar-K/exam-question-search/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/exam-question-search/pkg/metrics"
	pkgredis "github.com/Adithya-Monish-Kumar-K/exam-question-search/pkg/redis"
	"github.com/Adithya-Monish-Kumar-K/exam-question-search/pkg/resilience"
)

const keyPrefix = "resolve:"

// Store is the subset of the Redis client the cache needs. *pkgredis.Client
// satisfies it.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	FlushByPattern(ctx context.Context, pattern string) (int64, error)
}

// ResolutionCache never fails a search: Redis errors and an open breaker
// degrade to a miss.
type ResolutionCache struct {
	store   Store
	ttl     time.Duration
	breaker *resilience.Breaker
	metrics *metrics.Metrics
	group   singleflight.Group
	logger  *slog.Logger
	hits    atomic.Int64
	misses  atomic.Int64
}

// New builds a cache over store. m may be nil.
func New(store Store, cfg config.RedisConfig, m *metrics.Metrics) *ResolutionCache {
	cbCfg := resilience.BreakerConfig{
		Threshold: 5,
		Cooldown:  10 * time.Second,
	}
	if m != nil {
		cbCfg.OnStateChange = func(name string, from, to resilience.State) {
			m.CircuitBreakerState.WithLabelValues(name).Set(float64(to))
		}
	}
	return &ResolutionCache{
		store:   store,
		ttl:     cfg.CacheTTL,
		breaker: resilience.NewBreaker("redis-resolution-cache", cbCfg),
		metrics: m,
		logger:  slog.Default().With("component", "resolution-cache"),
	}
}

// Get returns the cached resolution of query, if any.
func (c *ResolutionCache) Get(ctx context.Context, query string) (resolver.Resolution, bool) {
	key := buildKey(query)
	var data []byte
	found := false
	err := c.breaker.Do(func() error {
		v, err := c.store.Get(ctx, key)
		if pkgredis.IsNilError(err) {
			return nil
		}
		if err != nil {
			return err
		}
		data, found = v, true
		return nil
	})
	if err != nil {
		c.logger.Warn("cache get failed", "key", key, "error", err)
	}
	if !found {
		c.recordMiss()
		return resolver.Resolution{}, false
	}
	var res resolver.Resolution
	if err := json.Unmarshal(data, &res); err != nil {
		c.logger.Error("cache unmarshal failed", "key", key, "error", err)
		c.recordMiss()
		return resolver.Resolution{}, false
	}
	c.recordHit()
	c.logger.Debug("cache hit", "key", key, "matched_by", res.MatchedBy)
	return res, true
}

// Set stores res under query. Failures are logged and otherwise ignored.
func (c *ResolutionCache) Set(ctx context.Context, query string, res resolver.Resolution) {
	key := buildKey(query)
	data, err := json.Marshal(res)
	if err != nil {
		c.logger.Error("cache marshal failed", "key", key, "error", err)
		return
	}
	err = c.breaker.Do(func() error {
		return c.store.Set(ctx, key, data, c.ttl)
	})
	if err != nil {
		c.logger.Warn("cache set failed", "key", key, "error", err)
	}
}

// GetOrCompute returns the cached resolution or runs compute once per key
// across concurrent callers. Errors from compute are returned and not cached.
func (c *ResolutionCache) GetOrCompute(
	ctx context.Context,
	query string,
	compute func(ctx context.Context) (resolver.Resolution, error),
) (resolver.Resolution, bool, error) {
	if res, ok := c.Get(ctx, query); ok {
		return res, true, nil
	}
	key := buildKey(query)
	val, err, _ := c.group.Do(key, func() (interface{}, error) {
		res, err := compute(ctx)
		if err != nil {
			return nil, err
		}
		c.Set(ctx, query, res)
		return res, nil
	})
	if err != nil {
		return resolver.Resolution{}, false, err
	}
	return val.(resolver.Resolution), false, nil
}

// Invalidate drops every cached resolution.
func (c *ResolutionCache) Invalidate(ctx context.Context) error {
	var deleted int64
	err := c.breaker.Do(func() error {
		var err error
		deleted, err = c.store.FlushByPattern(ctx, keyPrefix+"*")
		return err
	})
	if err != nil {
		return fmt.Errorf("invalidating resolution cache: %w", err)
	}
	c.logger.Info("cache invalidated", "keys_deleted", deleted)
	return nil
}

func (c *ResolutionCache) Stats() (hits, misses int64) {
	return c.hits.Load(), c.misses.Load()
}

func (c *ResolutionCache) recordHit() {
	c.hits.Add(1)
	if c.metrics != nil {
		c.metrics.CacheHitsTotal.Inc()
	}
}

func (c *ResolutionCache) recordMiss() {
	c.misses.Add(1)
	if c.metrics != nil {
		c.metrics.CacheMissesTotal.Inc()
	}
}

func buildKey(query string) string {
	hash := sha256.Sum256([]byte(tokenizer.Normalize(query)))
	return fmt.Sprintf("%s%x", keyPrefix, hash[:16])
}
