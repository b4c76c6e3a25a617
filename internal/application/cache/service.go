// Package cache implements the namespaced TTL cache on top of the KV backend.
//
// Error policy is deliberately asymmetric: reads degrade to a miss on any
// backend failure (the cache must never be the reason a request fails), while
// writes surface their errors (a silently dropped write causes stale-data
// bugs that are hard to diagnose).
package cache

import (
	"context"
	"encoding/json"
	"sync/atomic"
	"time"

	"github.com/nimbusworks/taskgate/internal/core/ports"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/singleflight"
)

const DefaultTTL = 5 * time.Minute

// Service implements ports.Cache. The backend is the sole store; no entry is
// retained in process.
type Service struct {
	kv     ports.KV
	logger *logrus.Logger
	// optional prefix applied before any namespace
	prefix     string
	defaultTTL time.Duration

	hits   atomic.Int64
	misses atomic.Int64

	// coalesces read-through loads for this instance's storage keys
	flights singleflight.Group
}

func NewService(kv ports.KV, prefix string, defaultTTL time.Duration, logger *logrus.Logger) *Service {
	if defaultTTL <= 0 {
		defaultTTL = DefaultTTL
	}
	return &Service{kv: kv, prefix: prefix, defaultTTL: defaultTTL, logger: logger}
}

var _ ports.Cache = (*Service)(nil)

// storageKey builds "prefix:namespace:key", skipping empty parts.
func (s *Service) storageKey(key, namespace string) string {
	k := key
	if namespace != "" {
		k = namespace + ":" + k
	}
	if s.prefix != "" {
		k = s.prefix + ":" + k
	}
	return k
}

func (s *Service) ttlOrDefault(ttl time.Duration) time.Duration {
	if ttl <= 0 {
		return s.defaultTTL
	}
	return ttl
}

func (s *Service) Set(ctx context.Context, key string, value any, opts ports.CacheOptions) error {
	data, err := json.Marshal(value)
	if err != nil {
		return err
	}
	return s.kv.Set(ctx, s.storageKey(key, opts.Namespace), data, s.ttlOrDefault(opts.TTL))
}

func (s *Service) Get(ctx context.Context, key, namespace string, dest any) bool {
	data, ok, err := s.kv.Get(ctx, s.storageKey(key, namespace))
	if err != nil {
		s.warn(err, key, "cache get failed; treating as miss")
		s.misses.Add(1)
		return false
	}
	if !ok {
		s.misses.Add(1)
		return false
	}
	if err := json.Unmarshal(data, dest); err != nil {
		s.warn(err, key, "cache entry undecodable; treating as miss")
		s.misses.Add(1)
		return false
	}
	s.hits.Add(1)
	return true
}

func (s *Service) Delete(ctx context.Context, key, namespace string) bool {
	n, err := s.kv.Delete(ctx, s.storageKey(key, namespace))
	if err != nil {
		s.warn(err, key, "cache delete failed")
		return false
	}
	return n > 0
}

func (s *Service) Clear(ctx context.Context, namespace string) int {
	if namespace == "" {
		if err := s.kv.FlushAll(ctx); err != nil {
			s.warn(err, "", "cache flush failed")
		}
		return 0
	}
	// Enumerate-then-delete races with concurrent writers; keys written in
	// between survive. Callers needing strict invalidation must Delete a
	// known key instead.
	keys, err := s.kv.Keys(ctx, s.storageKey("*", namespace))
	if err != nil {
		s.warn(err, namespace, "cache clear enumeration failed")
		return 0
	}
	if len(keys) == 0 {
		return 0
	}
	n, err := s.kv.Delete(ctx, keys...)
	if err != nil {
		s.warn(err, namespace, "cache clear delete failed")
		return 0
	}
	return n
}

func (s *Service) Has(ctx context.Context, key, namespace string) bool {
	ok, err := s.kv.Exists(ctx, s.storageKey(key, namespace))
	if err != nil {
		s.warn(err, key, "cache exists check failed")
		return false
	}
	return ok
}

func (s *Service) MSet(ctx context.Context, values map[string]any, opts ports.CacheOptions) error {
	entries := make(map[string][]byte, len(values))
	for key, value := range values {
		data, err := json.Marshal(value)
		if err != nil {
			return err
		}
		entries[s.storageKey(key, opts.Namespace)] = data
	}
	return s.kv.MSet(ctx, entries, s.ttlOrDefault(opts.TTL))
}

func (s *Service) MGet(ctx context.Context, keys []string, namespace string) []json.RawMessage {
	out := make([]json.RawMessage, len(keys))
	storageKeys := make([]string, len(keys))
	for i, key := range keys {
		storageKeys[i] = s.storageKey(key, namespace)
	}
	vals, err := s.kv.MGet(ctx, storageKeys)
	if err != nil {
		s.warn(err, "", "cache mget failed; returning misses")
		s.misses.Add(int64(len(keys)))
		return out
	}
	for i, v := range vals {
		if v == nil {
			s.misses.Add(1)
			continue
		}
		out[i] = json.RawMessage(v)
		s.hits.Add(1)
	}
	return out
}

func (s *Service) Stats(ctx context.Context, namespace string) ports.CacheStats {
	stats := ports.CacheStats{HitRate: s.hitRate()}
	total, memory, err := s.kv.Stats(ctx)
	if err != nil {
		s.warn(err, namespace, "cache stats unavailable")
		return ports.CacheStats{}
	}
	stats.MemoryUsed = memory
	if namespace == "" {
		stats.TotalKeys = total
		return stats
	}
	keys, err := s.kv.Keys(ctx, s.storageKey("*", namespace))
	if err != nil {
		s.warn(err, namespace, "cache stats enumeration failed")
		return ports.CacheStats{}
	}
	stats.TotalKeys = int64(len(keys))
	return stats
}

func (s *Service) hitRate() float64 {
	hits := s.hits.Load()
	total := hits + s.misses.Load()
	if total == 0 {
		return 0
	}
	return float64(hits) / float64(total)
}

func (s *Service) warn(err error, key, msg string) {
	if s.logger == nil {
		return
	}
	s.logger.WithField("key", key).WithError(err).Warn(msg)
}
