package cache

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/dmitrijs2005/tokenkeeper/internal/logging"
	"github.com/dmitrijs2005/tokenkeeper/internal/server/metrics"
)

// Aside pairs a Cache with logging and metrics for the cache-aside helpers.
type Aside struct {
	cache   Cache
	logger  logging.Logger
	metrics *metrics.Metrics
}

func NewAside(c Cache, logger logging.Logger, m *metrics.Metrics) *Aside {
	if c == nil {
		c = NopCache{}
	}
	return &Aside{cache: c, logger: logger.With("module", "cache"), metrics: m}
}

// GetOrSet returns the JSON value cached under key, or calls produce, caches
// its result for ttl and returns it. Producer errors are returned unchanged
// and nothing is cached.
func GetOrSet[T any](ctx context.Context, a *Aside, key string, ttl time.Duration, produce func(ctx context.Context) (T, error)) (T, error) {
	raw, err := a.cache.Get(ctx, key)
	switch {
	case err == nil:
		var v T
		uerr := json.Unmarshal(raw, &v)
		if uerr == nil {
			a.metrics.CacheResult("hit")
			return v, nil
		}
		a.logger.Warn(ctx, "discarding undecodable cache entry", "key", key, "error", uerr)
		a.metrics.CacheResult("miss")
	case errors.Is(err, ErrMiss):
		a.metrics.CacheResult("miss")
	default:
		a.metrics.CacheResult("error")
		a.logger.Warn(ctx, "cache get failed", "key", key, "error", err)
	}

	v, err := produce(ctx)
	if err != nil {
		return v, err
	}

	b, err := json.Marshal(v)
	if err != nil {
		a.logger.Warn(ctx, "cache encode failed", "key", key, "error", err)
		return v, nil
	}
	if err := a.cache.Set(ctx, key, b, ttl); err != nil {
		a.logger.Warn(ctx, "cache set failed", "key", key, "error", err)
	}
	return v, nil
}

// Invalidate drops keys. Failures are logged only; the entries expire on
// their own.
func (a *Aside) Invalidate(ctx context.Context, keys ...string) {
	if err := a.cache.Delete(ctx, keys...); err != nil {
		a.logger.Warn(ctx, "cache invalidate failed", "keys", keys, "error", err)
	}
}
