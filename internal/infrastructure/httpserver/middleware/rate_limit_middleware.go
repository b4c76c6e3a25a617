package middleware

import (
	"fmt"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"

	"github.com/nimbusworks/taskgate/internal/core/ports"
	"github.com/nimbusworks/taskgate/internal/infrastructure/httpserver/helpers"
)

// Policy is a per-route fixed-window limit. Routes without a policy and
// without a default are not limited at all.
type Policy struct {
	Limit  int
	Window time.Duration
}

// PolicyTable maps "METHOD /route/path" (the registered route, not the raw
// URL) to its policy. Attaching policies here keeps limit configuration out
// of every call site.
type PolicyTable map[string]Policy

// RateLimitMiddleware is the request gate: it resolves the route's policy,
// derives a hashed limiter key for the caller, consults the limiter and
// translates the outcome into HTTP decisions and headers.
type RateLimitMiddleware struct {
	limiter       ports.RateLimiter
	policies      PolicyTable
	defaultPolicy *Policy
	blockDuration time.Duration
	logger        *logrus.Logger
	rejections    *prometheus.CounterVec
}

func NewRateLimitMiddleware(limiter ports.RateLimiter, policies PolicyTable, defaultPolicy *Policy, blockDuration time.Duration, logger *logrus.Logger, rejections *prometheus.CounterVec) *RateLimitMiddleware {
	return &RateLimitMiddleware{
		limiter:       limiter,
		policies:      policies,
		defaultPolicy: defaultPolicy,
		blockDuration: blockDuration,
		logger:        logger,
		rejections:    rejections,
	}
}

func (r *RateLimitMiddleware) resolvePolicy(method, route string) *Policy {
	if p, ok := r.policies[method+" "+route]; ok {
		return &p
	}
	return r.defaultPolicy
}

func (r *RateLimitMiddleware) Handler() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			route := c.Path()
			policy := r.resolvePolicy(c.Request().Method, route)
			if policy == nil || policy.Limit <= 0 {
				// No policy configured means no limit imposed.
				return next(c)
			}

			ctx := c.Request().Context()
			key := helpers.LimiterKeyFromContext(c)

			if blocked, retryAfter := r.limiter.IsBlocked(ctx, key); blocked {
				r.reject(c, route, "blocked", retryAfter)
				return echo.NewHTTPError(http.StatusTooManyRequests, "rate limit exceeded")
			}

			res := r.limiter.Consume(ctx, key, ports.ConsumeOptions{
				Points:        policy.Limit,
				Window:        policy.Window,
				BlockDuration: r.blockDuration,
			})

			c.Response().Header().Set("X-RateLimit-Limit", fmt.Sprintf("%d", policy.Limit))
			c.Response().Header().Set("X-RateLimit-Remaining", fmt.Sprintf("%d", res.Remaining))
			c.Response().Header().Set("X-RateLimit-Reset", fmt.Sprintf("%d", time.Now().Add(res.RetryAfter).Unix()))

			if !res.Allowed {
				r.reject(c, route, "window", res.RetryAfter)
				return echo.NewHTTPError(http.StatusTooManyRequests, "rate limit exceeded")
			}
			return next(c)
		}
	}
}

func (r *RateLimitMiddleware) reject(c echo.Context, route, reason string, retryAfter time.Duration) {
	// Retry-After is whole seconds; round up so clients never retry early.
	secs := int64((retryAfter + time.Second - 1) / time.Second)
	if secs < 1 {
		secs = 1
	}
	c.Response().Header().Set("Retry-After", fmt.Sprintf("%d", secs))
	if r.rejections != nil {
		r.rejections.WithLabelValues(route, reason).Inc()
	}
	if r.logger != nil {
		r.logger.WithFields(logrus.Fields{"route": route, "reason": reason}).Debug("request rejected by rate limiter")
	}
}
