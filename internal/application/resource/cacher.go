package resource

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/TemirB/order-desk/internal/cache"
	"github.com/TemirB/order-desk/internal/observability"
)

//go:generate mockgen -source internal/application/resource/cacher.go -destination=internal/application/resource/cache_mock_test.go -package=resource

// LookupSource tells where a remembered value came from.
type LookupSource string

const (
	SourceCache LookupSource = "cache"
	SourceDB    LookupSource = "db"
)

// Cache is the shared key/value store behind every resource service.
type Cache interface {
	Get(key string) (any, bool)
	Set(key string, value any, ttl time.Duration)
	Delete(key string)
}

// Cacher is cache access scoped to one key prefix. It builds keys and owns
// the invalidation primitives; domain services decide which keys a write
// must forget.
type Cacher struct {
	cache   Cache
	prefix  string
	ttl     time.Duration
	logger  *zap.Logger
	metrics observability.Metrics
}

func NewCacher(c Cache, prefix string, ttl time.Duration, logger *zap.Logger, metrics observability.Metrics) *Cacher {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if metrics == nil {
		metrics = observability.Noop{}
	}
	return &Cacher{
		cache:   c,
		prefix:  prefix,
		ttl:     ttl,
		logger:  logger,
		metrics: metrics,
	}
}

func (c *Cacher) Prefix() string { return c.prefix }

func (c *Cacher) TTL() time.Duration { return c.ttl }

// Key starts a key in this prefix: {prefix}.{typ}.
func (c *Cacher) Key(typ string) cache.Key {
	return cache.NewKey(c.prefix, typ)
}

func (c *Cacher) Forget(key cache.Key) {
	k := key.String()
	c.cache.Delete(k)
	c.metrics.IncInvalidation(c.prefix)
	c.logger.Debug("cache key forgotten", zap.String("key", k))
}

// ClearModelCache forgets {prefix}.{type}.{id} for every type.
func (c *Cacher) ClearModelCache(id int64, types ...string) {
	for _, typ := range types {
		c.Forget(c.Key(typ).WithID(id))
	}
}

// ClearModelCacheWithSuffixes forgets {prefix}.{type}.{id} and
// {prefix}.{type}.{suffix}.{id} for every type and suffix.
func (c *Cacher) ClearModelCacheWithSuffixes(id int64, types, suffixes []string) {
	for _, typ := range types {
		c.Forget(c.Key(typ).WithID(id))
		for _, suffix := range suffixes {
			c.Forget(c.Key(typ).WithSuffix(suffix).WithID(id))
		}
	}
}

// ListKey returns the key of one page of a list bucket. The bucket key
// itself holds a version token, so forgetting the bucket drops all of its
// pages at once. A missing token is replaced by a fresh random one, which
// never matches pages cached under an earlier token.
func (c *Cacher) ListKey(bucket cache.Key, page, perPage int) cache.Key {
	bucket = bucket.Bucket()
	k := bucket.String()

	var version string
	if raw, ok := c.cache.Get(k); ok {
		version, _ = raw.(string)
	}
	if version == "" {
		version = uuid.NewString()
		c.cache.Set(k, version, c.ttl)
	}
	return bucket.WithVersion(version).WithPage(page, perPage)
}

// Remember returns the value cached under key, or calls producer, caches its
// result for the cacher's TTL and returns it. Producer errors are returned
// and never cached. Concurrent misses on one key each run producer.
func Remember[V any](ctx context.Context, c *Cacher, key cache.Key, producer func(context.Context) (V, error)) (V, error) {
	k := key.String()

	tCacheStart := time.Now()
	if raw, ok := c.cache.Get(k); ok {
		if v, ok := raw.(V); ok {
			cacheMs := convertToMs(tCacheStart)
			c.metrics.IncCacheHit(c.prefix)
			c.metrics.ObserveLookup(c.prefix, string(SourceCache), cacheMs, 0)
			c.logger.Debug("cache hit",
				zap.String("key", k),
				zap.Float64("cache_ms", cacheMs),
			)
			return v, nil
		}
		c.logger.Warn("cached value has unexpected type, recomputing",
			zap.String("key", k),
			zap.String("type", fmt.Sprintf("%T", raw)),
		)
	}

	c.metrics.IncCacheMiss(c.prefix)
	cacheMs := convertToMs(tCacheStart)

	tDbStart := time.Now()
	v, err := producer(ctx)
	if err != nil {
		var zero V
		return zero, err
	}
	dbMs := convertToMs(tDbStart)

	c.cache.Set(k, v, c.ttl)

	c.metrics.ObserveLookup(c.prefix, string(SourceDB), cacheMs, dbMs)
	c.logger.Debug("cache miss, value stored",
		zap.String("key", k),
		zap.Float64("cache_ms", cacheMs),
		zap.Float64("db_ms", dbMs),
	)
	return v, nil
}

func convertToMs(t time.Time) float64 {
	return float64(time.Since(t).Microseconds()) / 1000.0
}
