package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/nimbusworks/taskgate/configs"
	"github.com/nimbusworks/taskgate/internal/application/cache"
	"github.com/nimbusworks/taskgate/internal/application/ratelimit"
	"github.com/nimbusworks/taskgate/internal/core/ports"
	"github.com/nimbusworks/taskgate/internal/infrastructure/health"
	"github.com/nimbusworks/taskgate/internal/infrastructure/httpserver"
	"github.com/nimbusworks/taskgate/internal/infrastructure/httpserver/middleware"
	"github.com/nimbusworks/taskgate/internal/infrastructure/redis"
)

func main() {
	cfg, err := configs.Load()
	if err != nil {
		log.Fatal("Failed to load configuration:", err)
	}

	// Setup logger
	logger := logrus.New()
	if cfg.Log.Format == "json" {
		logger.SetFormatter(&logrus.JSONFormatter{})
	}
	level, err := logrus.ParseLevel(cfg.Log.Level)
	if err != nil {
		logger.SetLevel(logrus.InfoLevel)
	} else {
		logger.SetLevel(level)
	}

	logger.Info("Starting taskgate...")

	// The Redis handle is process-wide: opened once here, injected into the
	// cache and limiter, closed on shutdown.
	redisClient, err := redis.NewClient(&cfg.Redis)
	if err != nil {
		logger.Fatal("Failed to connect to Redis:", err)
	}
	kv := redis.NewStore(redisClient)
	defer func() {
		if err := kv.Close(); err != nil {
			logger.WithError(err).Warn("failed to close Redis handle")
		}
	}()

	logger.Info("Connected to Redis successfully")

	cacheService := cache.NewService(kv, cfg.Cache.KeyPrefix, cfg.Cache.DefaultTTL, logger)
	limiterService := ratelimit.NewService(kv, cfg.RateLimit.KeyPrefix, logger)

	// Per-route policies; everything else falls back to the configured default.
	gate := httpserver.GateConfig{
		Policies: middleware.PolicyTable{
			"DELETE /cache/namespaces/:namespace": {Limit: 10, Window: time.Minute},
			"DELETE /cache/keys/:key":             {Limit: 60, Window: time.Minute},
		},
		BlockDuration: cfg.RateLimit.BlockDuration,
	}
	if cfg.RateLimit.DefaultLimit > 0 {
		gate.DefaultPolicy = &middleware.Policy{
			Limit:  cfg.RateLimit.DefaultLimit,
			Window: cfg.RateLimit.Window,
		}
	}

	serverConfig := &httpserver.ServerConfig{
		Host:         cfg.Server.Host,
		Port:         cfg.Server.Port,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
		TLSCertFile:  cfg.Server.TLSCertFile,
		TLSKeyFile:   cfg.Server.TLSKeyFile,
	}

	deps := httpserver.ServerDeps{
		Cache:          cacheService,
		RateLimiter:    limiterService,
		Gate:           gate,
		HealthCheckers: []ports.HealthChecker{health.NewRedisHealthChecker(redisClient)},
	}

	server := httpserver.NewServer(serverConfig, logger, deps)

	go func() {
		if err := server.Start(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("Failed to start server:", err)
		}
	}()

	logger.Infof("Server started on %s:%s", cfg.Server.Host, cfg.Server.Port)

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server...")

	// Graceful shutdown with bounded drain timeout
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		logger.Fatal("Server forced to shutdown:", err)
	}

	logger.Info("Server exited")
}
