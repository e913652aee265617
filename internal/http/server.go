// Package http serves the validation API over echo.
package http

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/fyrsmithlabs/piiguard/internal/logging"
	"github.com/fyrsmithlabs/piiguard/internal/outcome"
	"github.com/fyrsmithlabs/piiguard/internal/validator"
)

// Config holds HTTP server configuration.
type Config struct {
	Host string
	Port int
	// RateLimit is requests per second across all clients; 0 disables it.
	RateLimit float64
	RateBurst int
	// MaxBodyBytes uses echo's BodyLimit syntax, e.g. "1M".
	MaxBodyBytes string

	// DefaultMode applies when a request names no mode.
	DefaultMode outcome.Mode

	ModelName    string
	ModelVersion string
}

func defaultConfig() *Config {
	return &Config{
		Host:         "localhost",
		Port:         8000,
		MaxBodyBytes: "1M",
		DefaultMode:  outcome.ModeFix,
		ModelName:    "piiguard",
		ModelVersion: "1",
	}
}

// HealthChecker reports whether the collaborators are reachable.
type HealthChecker interface {
	Ping(ctx context.Context) error
}

// Option configures a Server.
type Option func(*Server)

// WithGatherer exposes g on GET /metrics. Without it the route is absent.
func WithGatherer(g prometheus.Gatherer) Option {
	return func(s *Server) { s.gatherer = g }
}

// WithHealthChecker makes GET /health ping hc.
func WithHealthChecker(hc HealthChecker) Option {
	return func(s *Server) { s.health = hc }
}

// WithMeterProvider sets the provider for the HTTP instruments.
func WithMeterProvider(mp metric.MeterProvider) Option {
	return func(s *Server) { s.meterProvider = mp }
}

// Server provides the HTTP endpoints.
type Server struct {
	echo   *echo.Echo
	suite  *validator.Suite
	logger *logging.Logger
	config *Config

	gatherer      prometheus.Gatherer
	health        HealthChecker
	meterProvider metric.MeterProvider
}

// NewServer creates a server over suite. A nil cfg uses defaults.
func NewServer(suite *validator.Suite, logger *logging.Logger, cfg *Config, opts ...Option) (*Server, error) {
	if suite == nil {
		return nil, fmt.Errorf("validator suite cannot be nil")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger is required for request tracking and debugging")
	}
	if cfg == nil {
		cfg = defaultConfig()
	}
	if cfg.DefaultMode == "" {
		cfg.DefaultMode = outcome.ModeFix
	}

	s := &Server{
		suite:  suite,
		logger: logger,
		config: cfg,
	}
	for _, opt := range opts {
		opt(s)
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	s.echo = e

	e.Use(middleware.Recover())
	e.Use(middleware.RequestIDWithConfig(middleware.RequestIDConfig{
		Generator: uuid.NewString,
		RequestIDHandler: func(c echo.Context, id string) {
			req := c.Request()
			c.SetRequest(req.WithContext(logging.WithRequestID(req.Context(), id)))
		},
	}))
	e.Use(s.requestLogger())
	e.Use(NewHTTPMetrics(s.meterProvider, logger).MetricsMiddleware())
	if cfg.MaxBodyBytes != "" {
		e.Use(middleware.BodyLimit(cfg.MaxBodyBytes))
	}

	s.registerRoutes()
	return s, nil
}

func (s *Server) registerRoutes() {
	s.echo.GET("/health", s.handleHealth)
	if s.gatherer != nil {
		s.echo.GET("/metrics", echo.WrapHandler(promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{})))
	}

	limited := s.rateLimiter()
	v1 := s.echo.Group("/api/v1", limited)
	v1.POST("/validate", s.handleValidate)

	s.echo.POST("/validate", s.handleInference, limited)
}

// requestLogger logs one line per request. Only the route is logged,
// never the URI or body.
func (s *Server) requestLogger() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			err := next(c)

			status := c.Response().Status
			var he *echo.HTTPError
			if errors.As(err, &he) {
				status = he.Code
			}
			s.logger.Info(c.Request().Context(), "http request",
				zap.String("method", c.Request().Method),
				zap.String("route", normalizePath(c.Path())),
				zap.Int("status", status),
				zap.Duration("duration", time.Since(start)),
			)
			return err
		}
	}
}

// rateLimiter bounds throughput of the validation routes with one shared
// token bucket.
func (s *Server) rateLimiter() echo.MiddlewareFunc {
	if s.config.RateLimit <= 0 {
		return func(next echo.HandlerFunc) echo.HandlerFunc { return next }
	}
	burst := s.config.RateBurst
	if burst < 1 {
		burst = 1
	}
	limiter := rate.NewLimiter(rate.Limit(s.config.RateLimit), burst)
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if !limiter.Allow() {
				c.Response().Header().Set("Retry-After", "1")
				return c.JSON(http.StatusTooManyRequests, ErrorResponse{
					Error:     "rate limit exceeded",
					RequestID: logging.RequestIDFromContext(c.Request().Context()),
				})
			}
			return next(c)
		}
	}
}

// Handler returns the server as an http.Handler.
func (s *Server) Handler() http.Handler {
	return s.echo
}

// Start starts the HTTP server and blocks until it stops.
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)
	s.logger.Info(context.Background(), "starting http server", zap.String("addr", addr))
	return s.echo.Start(addr)
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info(ctx, "shutting down http server")
	return s.echo.Shutdown(ctx)
}
