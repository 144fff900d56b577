package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Cache is the shared-state layer in front of Postgres for collaborative
// documents (notes, session sketches). Storage stays authoritative: every
// Redis failure is absorbed and treated as a miss or a no-op, costing
// latency, never correctness.
type Cache struct {
	rdc *redis.Client
	ttl time.Duration
}

func New(rdc *redis.Client, ttl time.Duration) *Cache {
	return &Cache{rdc: rdc, ttl: ttl}
}

// Key derives the cache key for a document: "<kind>-<id>".
func Key(kind string, id int64) string {
	return fmt.Sprintf("%s-%d", kind, id)
}

// GetOrLoad returns the cached value for key, or invokes loader, stores the
// result and returns it. Loader errors propagate and nothing is stored.
func GetOrLoad[T any](ctx context.Context, c *Cache, key string, loader func(context.Context) (T, error)) (T, error) {
	raw, err := c.rdc.Get(ctx, key).Bytes()
	if err == nil {
		var v T
		if jsonErr := json.Unmarshal(raw, &v); jsonErr == nil {
			return v, nil
		}
		// Corrupt entry, drop it and reload from storage.
		c.Invalidate(ctx, key)
	} else if !errors.Is(err, redis.Nil) {
		zap.L().Warn("cache_get", zap.String("key", key), zap.Error(err))
	}

	v, err := loader(ctx)
	if err != nil {
		var zero T
		return zero, err
	}
	c.store(ctx, key, v)
	return v, nil
}

// UpdateIfPresent overwrites the entry only when one exists, so a document
// with no active collaborative traffic is not cached purely by an update.
func (c *Cache) UpdateIfPresent(ctx context.Context, key string, v any) {
	raw, err := json.Marshal(v)
	if err != nil {
		zap.L().Warn("cache_marshal", zap.String("key", key), zap.Error(err))
		return
	}
	if err := c.rdc.SetXX(ctx, key, raw, c.ttl).Err(); err != nil {
		zap.L().Warn("cache_update", zap.String("key", key), zap.Error(err))
	}
}

// Invalidate deletes the entry unconditionally.
func (c *Cache) Invalidate(ctx context.Context, key string) {
	if err := c.rdc.Del(ctx, key).Err(); err != nil {
		zap.L().Warn("cache_invalidate", zap.String("key", key), zap.Error(err))
	}
}

func (c *Cache) store(ctx context.Context, key string, v any) {
	raw, err := json.Marshal(v)
	if err != nil {
		zap.L().Warn("cache_marshal", zap.String("key", key), zap.Error(err))
		return
	}
	if err := c.rdc.Set(ctx, key, raw, c.ttl).Err(); err != nil {
		zap.L().Warn("cache_set", zap.String("key", key), zap.Error(err))
	}
}
