package cache

import (
	"context"
	"time"
)

// Store is the key-value backend shared by every stateful component. Values
// are JSON strings serialised by the caller; TTLs of zero or less mean the key
// never expires.
type Store interface {
	// Get returns the value for key and whether it was present.
	Get(ctx context.Context, key string) (string, bool, error)
	// Set stores value under key with the supplied TTL.
	Set(ctx context.Context, key, value string, ttl time.Duration) error
	// Delete removes the supplied keys, ignoring missing ones, and returns the
	// number actually removed.
	Delete(ctx context.Context, keys ...string) (int64, error)
	// Exists reports whether key is present.
	Exists(ctx context.Context, key string) (bool, error)
	// Expire replaces the TTL of an existing key.
	Expire(ctx context.Context, key string, ttl time.Duration) (bool, error)
	// IncrBy atomically adds delta to the integer stored at key, creating it
	// at zero when absent.
	IncrBy(ctx context.Context, key string, delta int64) (int64, error)
	// IncrementWithTTL atomically increments key and ensures its TTL equals
	// the window on first increment. Returns the count and remaining TTL.
	IncrementWithTTL(ctx context.Context, key string, window time.Duration) (int64, time.Duration, error)
	// Keys enumerates keys matching a glob pattern (e.g. "session:*").
	Keys(ctx context.Context, pattern string) ([]string, error)
	// Close releases the backend connection.
	Close() error
}
