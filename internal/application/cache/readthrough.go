package cache

import (
	"context"
	"fmt"

	"github.com/nimbusworks/taskgate/internal/core/ports"
)

// Get is a typed convenience wrapper around Service.Get.
func Get[T any](ctx context.Context, s *Service, key, namespace string) (*T, bool) {
	if s == nil {
		return nil, false
	}
	var v T
	if !s.Get(ctx, key, namespace, &v) {
		return nil, false
	}
	return &v, true
}

// GetOrLoad returns the cached value for key or, on a miss, runs loader and
// caches its result. Concurrent misses for the same storage key on the same
// instance are coalesced so the loader runs once; flights are keyed by the
// full storage key, so instances with different prefixes never share a load.
// Caching the loaded value is best-effort: a failed write is logged and
// dropped, the next miss simply reloads.
func GetOrLoad[T any](ctx context.Context, s *Service, key string, opts ports.CacheOptions, loader func() (T, error)) (T, error) {
	if v, ok := Get[T](ctx, s, key, opts.Namespace); ok {
		return *v, nil
	}
	res, err, _ := s.flights.Do(s.storageKey(key, opts.Namespace), func() (any, error) {
		if v, ok := Get[T](ctx, s, key, opts.Namespace); ok {
			return *v, nil
		}
		v, err := loader()
		if err != nil {
			return nil, err
		}
		if err := s.Set(ctx, key, v, opts); err != nil {
			s.warn(err, key, "cache fill after load failed; value served uncached")
		}
		return v, nil
	})
	if err != nil {
		var zero T
		return zero, err
	}
	v, ok := res.(T)
	if !ok {
		var zero T
		return zero, fmt.Errorf("unexpected type from singleflight result")
	}
	return v, nil
}
