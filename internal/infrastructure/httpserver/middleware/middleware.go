package middleware

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"

	"github.com/nimbusworks/taskgate/internal/core/ports"
)

// MiddlewareCollection holds all middleware instances
type MiddlewareCollection struct {
	Logging   *LoggingMiddleware
	RateLimit *RateLimitMiddleware
	Metrics   *MetricsMiddleware
}

// NewMiddlewareCollection creates a new collection of all middleware
func NewMiddlewareCollection(
	limiter ports.RateLimiter,
	policies PolicyTable,
	defaultPolicy *Policy,
	blockDuration time.Duration,
	logger *logrus.Logger,
	requestsTotal *prometheus.CounterVec,
	requestDuration *prometheus.HistogramVec,
	rejections *prometheus.CounterVec,
) *MiddlewareCollection {
	return &MiddlewareCollection{
		Logging:   NewLoggingMiddleware(logger),
		RateLimit: NewRateLimitMiddleware(limiter, policies, defaultPolicy, blockDuration, logger, rejections),
		Metrics:   NewMetricsMiddleware(requestsTotal, requestDuration),
	}
}
