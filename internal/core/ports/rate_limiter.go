package ports

import (
	"context"
	"time"
)

// ConsumeOptions describe the fixed-window policy for a single Consume call.
type ConsumeOptions struct {
	// Points allowed per window.
	Points int
	// Window duration; counters reset at fixed wall-clock boundaries.
	Window time.Duration
	// BlockDuration, when positive, places a block marker on the key once the
	// window count exceeds Points. Zero disables blocking.
	BlockDuration time.Duration
}

// ConsumeResult reports the outcome of consuming one unit.
type ConsumeResult struct {
	Allowed bool
	// Remaining points in the current window, never negative.
	Remaining int
	// RetryAfter is the time until the current window resets.
	RetryAfter time.Duration
}

// RateLimiter is a distributed fixed-window limiter. Correctness of the
// counters is delegated entirely to the backend's atomic increment; no
// in-process locking is involved. Both operations fail open: on backend
// failure the request is allowed, trading limit accuracy for availability
// of the protected service.
type RateLimiter interface {
	// IsBlocked reports whether a live block marker exists for key, and if so
	// how long until it expires.
	IsBlocked(ctx context.Context, key string) (blocked bool, retryAfter time.Duration)
	// Consume spends one unit against key's current window.
	Consume(ctx context.Context, key string, opts ConsumeOptions) ConsumeResult
}
