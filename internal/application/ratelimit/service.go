// Package ratelimit implements a distributed fixed-window limiter over the
// KV backend's atomic increment primitive.
//
// Windows reset at hard wall-clock boundaries, so a burst straddling a
// boundary can admit up to twice the configured points in a short span. That
// is an accepted property of fixed-window counting, not a bug.
package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/nimbusworks/taskgate/internal/core/ports"
	"github.com/sirupsen/logrus"
)

// Service implements ports.RateLimiter. Counter state lives entirely in the
// backend; concurrent Consume calls from any number of processes observe a
// serialized increment sequence without in-process locking.
type Service struct {
	kv     ports.KV
	prefix string
	logger *logrus.Logger
	// injectable clock for window-boundary tests
	now func() time.Time
}

func NewService(kv ports.KV, prefix string, logger *logrus.Logger) *Service {
	return &Service{kv: kv, prefix: prefix, logger: logger, now: time.Now}
}

var _ ports.RateLimiter = (*Service)(nil)

// windowKey derives "prefix:key:windowIndex" for the window containing now.
// Window indices are strictly increasing, so a window is never reused.
func (s *Service) windowKey(key string, window time.Duration) string {
	index := s.now().UnixMilli() / window.Milliseconds()
	return fmt.Sprintf("%s:%s:%d", s.prefix, key, index)
}

func (s *Service) blockKey(key string) string {
	return fmt.Sprintf("%s:%s:blocked", s.prefix, key)
}

// IsBlocked reports whether a live block marker exists for key, along with
// the marker's remaining lifetime so callers can tell clients how long the
// cool-down actually has left. Backend failure reads as not blocked
// (fail-open).
func (s *Service) IsBlocked(ctx context.Context, key string) (bool, time.Duration) {
	ttl, err := s.kv.TTL(ctx, s.blockKey(key))
	if err != nil {
		s.warn(err, key, "block probe failed; treating as not blocked")
		return false, 0
	}
	return ttl > 0, ttl
}

// Consume spends one unit against key's current window. On any backend
// failure it fails open: the request is allowed and limit accounting for it
// is lost, which is the documented availability-over-accuracy tradeoff.
func (s *Service) Consume(ctx context.Context, key string, opts ports.ConsumeOptions) ports.ConsumeResult {
	if opts.Window <= 0 {
		// A policy without a window is a misconfiguration, not a reason to
		// refuse traffic. Treated like a backend failure: allow and warn.
		s.warn(nil, key, "consume called with non-positive window; allowing request")
		return ports.ConsumeResult{Allowed: true, Remaining: 1}
	}
	count, remaining, err := s.kv.IncrementWindow(ctx, s.windowKey(key, opts.Window), opts.Window)
	if err != nil {
		s.warn(err, key, "window increment failed; allowing request (fail-open)")
		return ports.ConsumeResult{Allowed: true, Remaining: 1}
	}
	if remaining < 0 {
		remaining = opts.Window
	}

	result := ports.ConsumeResult{
		Allowed:    count <= int64(opts.Points),
		Remaining:  int(max(int64(opts.Points)-count, 0)),
		RetryAfter: remaining,
	}

	if !result.Allowed && opts.BlockDuration > 0 {
		// Best-effort: a lost marker just means the next window recounts.
		if err := s.kv.SetMarkerNX(ctx, s.blockKey(key), opts.BlockDuration); err != nil {
			s.warn(err, key, "failed to write block marker")
		} else {
			result.RetryAfter = opts.BlockDuration
		}
	}

	if s.logger != nil {
		s.logger.WithFields(logrus.Fields{
			"key":       key,
			"count":     count,
			"points":    opts.Points,
			"allowed":   result.Allowed,
			"remaining": result.Remaining,
		}).Debug("rate limiter window state")
	}
	return result
}

func (s *Service) warn(err error, key, msg string) {
	if s.logger == nil {
		return
	}
	entry := s.logger.WithField("key", key)
	if err != nil {
		entry = entry.WithError(err)
	}
	entry.Warn(msg)
}
