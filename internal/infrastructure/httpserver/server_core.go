package httpserver

import (
	"time"

	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus"

	"github.com/nimbusworks/taskgate/internal/core/ports"
	customMiddleware "github.com/nimbusworks/taskgate/internal/infrastructure/httpserver/middleware"
)

type ServerConfig struct {
	Host         string
	Port         string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
	TLSCertFile  string
	TLSKeyFile   string
}

// GateConfig is the declarative rate-limit configuration for the gate:
// per-route policies plus an optional default for everything else.
type GateConfig struct {
	Policies      customMiddleware.PolicyTable
	DefaultPolicy *customMiddleware.Policy
	BlockDuration time.Duration
}

type ServerDeps struct {
	Cache          ports.Cache
	RateLimiter    ports.RateLimiter
	Gate           GateConfig
	HealthCheckers []ports.HealthChecker
}

type Server struct {
	echo           *echo.Echo
	config         *ServerConfig
	logger         *logrus.Logger
	cache          ports.Cache
	middleware     *customMiddleware.MiddlewareCollection
	healthCheckers []ports.HealthChecker
}

func NewServer(serverConfig *ServerConfig, logger *logrus.Logger, deps ServerDeps) *Server {
	e := echo.New()

	server := &Server{
		echo:           e,
		config:         serverConfig,
		logger:         logger,
		cache:          deps.Cache,
		healthCheckers: deps.HealthCheckers,
		middleware: customMiddleware.NewMiddlewareCollection(
			deps.RateLimiter,
			deps.Gate.Policies,
			deps.Gate.DefaultPolicy,
			deps.Gate.BlockDuration,
			logger,
			GetRequestsTotal(),
			GetRequestDuration(),
			GetRateLimitRejections(),
		),
	}

	server.setupMiddleware()
	server.setupRoutes()

	return server
}
