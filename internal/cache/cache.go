package cache

import (
	"context"
	"encoding/json"
	"time"

	"go.uber.org/zap"

	"github.com/careview/backend/pkg/logger"
)

// DefaultTTL is the write TTL applied when the caller does not supply one.
const DefaultTTL = time.Hour

// Cache wraps a Store with JSON serialisation and availability-first error
// handling: backend failures are logged and converted to benign negative
// results, so callers see "not found" / "did not take effect" instead of
// transport errors.
type Cache struct {
	store      Store
	defaultTTL time.Duration
	log        *zap.Logger
}

// New constructs a Cache around the supplied store. A defaultTTL of zero
// falls back to DefaultTTL.
func New(store Store, defaultTTL time.Duration) *Cache {
	if defaultTTL <= 0 {
		defaultTTL = DefaultTTL
	}
	return &Cache{
		store:      store,
		defaultTTL: defaultTTL,
		log:        logger.WithModule("cache"),
	}
}

// Store exposes the underlying backend for components that need atomic
// counter semantics directly.
func (c *Cache) Store() Store {
	return c.store
}

// Set serialises value as JSON and stores it under key. A ttl of zero uses
// the cache default. Returns false when the write did not take effect.
func (c *Cache) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) bool {
	payload, err := json.Marshal(value)
	if err != nil {
		c.log.Error("marshal value", zap.String("key", key), zap.Error(err))
		return false
	}

	if ttl == 0 {
		ttl = c.defaultTTL
	}

	if err := c.store.Set(ctx, key, string(payload), ttl); err != nil {
		c.log.Error("set", zap.String("key", key), zap.Error(err))
		return false
	}
	return true
}

// Get unmarshals the value stored under key into out. Returns false when the
// key is absent or the backend failed.
func (c *Cache) Get(ctx context.Context, key string, out interface{}) bool {
	value, found, err := c.store.Get(ctx, key)
	if err != nil {
		c.log.Error("get", zap.String("key", key), zap.Error(err))
		return false
	}
	if !found {
		return false
	}

	if err := json.Unmarshal([]byte(value), out); err != nil {
		c.log.Error("unmarshal value", zap.String("key", key), zap.Error(err))
		return false
	}
	return true
}

// Delete removes key. Returns false when the backend failed.
func (c *Cache) Delete(ctx context.Context, key string) bool {
	if _, err := c.store.Delete(ctx, key); err != nil {
		c.log.Error("delete", zap.String("key", key), zap.Error(err))
		return false
	}
	return true
}

// Exists reports whether key is present, treating backend failure as absent.
func (c *Cache) Exists(ctx context.Context, key string) bool {
	ok, err := c.store.Exists(ctx, key)
	if err != nil {
		c.log.Error("exists", zap.String("key", key), zap.Error(err))
		return false
	}
	return ok
}

// Expire replaces the TTL of an existing key.
func (c *Cache) Expire(ctx context.Context, key string, ttl time.Duration) bool {
	ok, err := c.store.Expire(ctx, key, ttl)
	if err != nil {
		c.log.Error("expire", zap.String("key", key), zap.Error(err))
		return false
	}
	return ok
}

// Incr atomically adds delta to the counter at key, returning the new value.
// Backend failure yields (0, false).
func (c *Cache) Incr(ctx context.Context, key string, delta int64) (int64, bool) {
	value, err := c.store.IncrBy(ctx, key, delta)
	if err != nil {
		c.log.Error("incr", zap.String("key", key), zap.Error(err))
		return 0, false
	}
	return value, true
}

// IncrementWithTTL atomically increments a windowed counter.
func (c *Cache) IncrementWithTTL(ctx context.Context, key string, window time.Duration) (int64, time.Duration, bool) {
	count, remaining, err := c.store.IncrementWithTTL(ctx, key, window)
	if err != nil {
		c.log.Error("increment with ttl", zap.String("key", key), zap.Error(err))
		return 0, 0, false
	}
	return count, remaining, true
}

// Keys enumerates keys matching a glob pattern. Backend failure yields nil.
func (c *Cache) Keys(ctx context.Context, pattern string) []string {
	keys, err := c.store.Keys(ctx, pattern)
	if err != nil {
		c.log.Error("keys", zap.String("pattern", pattern), zap.Error(err))
		return nil
	}
	return keys
}

// InvalidatePattern deletes every key matching pattern and returns the number
// of keys removed.
func (c *Cache) InvalidatePattern(ctx context.Context, pattern string) int {
	keys, err := c.store.Keys(ctx, pattern)
	if err != nil {
		c.log.Error("invalidate pattern", zap.String("pattern", pattern), zap.Error(err))
		return 0
	}
	if len(keys) == 0 {
		return 0
	}
	if _, err := c.store.Delete(ctx, keys...); err != nil {
		c.log.Error("invalidate pattern", zap.String("pattern", pattern), zap.Error(err))
		return 0
	}
	return len(keys)
}

// GetOrSet implements the cache-aside pattern: on a miss, fetch is invoked and
// its result written back with the supplied TTL before being returned through
// out. Returns false when neither the cache nor fetch produced a value.
func (c *Cache) GetOrSet(ctx context.Context, key string, ttl time.Duration, out interface{}, fetch func(ctx context.Context) (interface{}, error)) bool {
	if c.Get(ctx, key, out) {
		return true
	}

	value, err := fetch(ctx)
	if err != nil {
		c.log.Error("cache-aside fetch", zap.String("key", key), zap.Error(err))
		return false
	}
	if value == nil {
		return false
	}

	c.Set(ctx, key, value, ttl)

	// Round-trip through JSON so out matches what a later Get would return.
	payload, err := json.Marshal(value)
	if err != nil {
		c.log.Error("marshal fetched value", zap.String("key", key), zap.Error(err))
		return false
	}
	if err := json.Unmarshal(payload, out); err != nil {
		c.log.Error("unmarshal fetched value", zap.String("key", key), zap.Error(err))
		return false
	}
	return true
}
