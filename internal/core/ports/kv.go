package ports

import (
	"context"
	"time"
)

// KV is the contract over the remote key-value backend. Every call crosses
// the network and may fail or time out; callers decide whether a failure
// degrades to a default (fail-open) or is surfaced (fail-closed).
// Implementations hold no cached state of their own.
type KV interface {
	// Get returns the raw bytes for key. ok=false if the key is absent.
	Get(ctx context.Context, key string) (value []byte, ok bool, err error)
	// Set stores value under key with the given TTL.
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	// MSet stores all entries with a shared TTL in one pipelined round trip.
	// Pipeline failure is a single error for the whole batch.
	MSet(ctx context.Context, entries map[string][]byte, ttl time.Duration) error
	// MGet returns values positionally aligned with keys; nil per missing key.
	MGet(ctx context.Context, keys []string) ([][]byte, error)
	// Delete removes the given keys and reports how many actually existed.
	Delete(ctx context.Context, keys ...string) (int, error)
	// Exists reports whether key is present.
	Exists(ctx context.Context, key string) (bool, error)
	// Keys enumerates keys matching pattern. The result is a point-in-time
	// snapshot, not a live view.
	Keys(ctx context.Context, pattern string) ([]string, error)
	// IncrementWindow atomically increments key and, when this is the first
	// hit, sets its expiry to window — one round trip, so no concurrent
	// reader can ever observe a counter without an expiry. Returns the
	// post-increment count and the remaining lifetime of the key.
	IncrementWindow(ctx context.Context, key string, window time.Duration) (count int64, remaining time.Duration, err error)
	// Expire resets the TTL of an existing key.
	Expire(ctx context.Context, key string, ttl time.Duration) error
	// TTL returns the remaining lifetime of key; zero when the key is absent
	// or has no expiry.
	TTL(ctx context.Context, key string) (time.Duration, error)
	// SetMarkerNX writes an expiring marker unless one already exists, so an
	// earlier marker keeps its original expiry.
	SetMarkerNX(ctx context.Context, key string, ttl time.Duration) error
	// FlushAll removes every key in the store.
	FlushAll(ctx context.Context) error
	// Stats returns the total key count and memory used by the backend.
	Stats(ctx context.Context) (totalKeys int64, memoryUsed int64, err error)
	// Close releases the underlying connection. The handle is long-lived and
	// shared; close it once, on service shutdown.
	Close() error
}
