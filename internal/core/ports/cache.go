package ports

import (
	"context"
	"encoding/json"
	"time"
)

// CacheOptions qualify a cache write.
type CacheOptions struct {
	// TTL for the entry; zero means the service default.
	TTL time.Duration
	// Namespace prefixes the key as "namespace:key" for bulk invalidation.
	Namespace string
}

// CacheStats is a best-effort snapshot of cache usage.
type CacheStats struct {
	TotalKeys  int64   `json:"total_keys"`
	MemoryUsed int64   `json:"memory_used_bytes"`
	HitRate    float64 `json:"hit_rate"`
}

// Cache is a namespaced TTL cache over the KV backend. It is advisory, never
// a system of record: an absent entry is always a valid state. Reads degrade
// to a miss on backend failure; writes surface their errors so callers know
// a write did not happen.
type Cache interface {
	Set(ctx context.Context, key string, value any, opts CacheOptions) error
	// Get unmarshals the entry into dest and reports whether it was found.
	// Backend and decode failures are both treated as a miss.
	Get(ctx context.Context, key, namespace string, dest any) bool
	// Delete reports whether a key was actually removed; false on failure.
	Delete(ctx context.Context, key, namespace string) bool
	// Clear removes every key under the namespace, or the whole store when
	// namespace is empty. Enumerate-then-delete is not atomic: keys written
	// concurrently may survive. Returns the number of keys removed.
	Clear(ctx context.Context, namespace string) int
	Has(ctx context.Context, key, namespace string) bool
	// MSet writes all values through one pipelined call; one error per batch.
	MSet(ctx context.Context, values map[string]any, opts CacheOptions) error
	// MGet returns raw entries positionally aligned with keys, nil per miss.
	MGet(ctx context.Context, keys []string, namespace string) []json.RawMessage
	// Stats is best-effort; on failure it returns the zero value.
	Stats(ctx context.Context, namespace string) CacheStats
}
