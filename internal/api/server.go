package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"

	mw "github.com/tphakala/segmentlab/internal/api/middleware"
	"github.com/tphakala/segmentlab/internal/conf"
	"github.com/tphakala/segmentlab/internal/datastore/repository"
	"github.com/tphakala/segmentlab/internal/errors"
	"github.com/tphakala/segmentlab/internal/joblock"
	"github.com/tphakala/segmentlab/internal/logger"
	"github.com/tphakala/segmentlab/internal/observability"
)

// Server is the HTTP server of segmentlab.
type Server struct {
	echo       *echo.Echo
	config     *Config
	settings   *conf.Settings
	store      *repository.Store
	dispatcher Dispatcher
	locker     *joblock.Locker
	metrics    *observability.Metrics
	log        logger.Logger

	controller *Controller
	startTime  time.Time
}

// ServerOption is a functional option for configuring the Server.
type ServerOption func(*Server)

// WithStore sets the repositories used by the handlers.
func WithStore(store *repository.Store) ServerOption {
	return func(s *Server) {
		s.store = store
	}
}

// WithDispatcher sets where workflows are queued.
func WithDispatcher(d Dispatcher) ServerOption {
	return func(s *Server) {
		s.dispatcher = d
	}
}

// WithLocker sets the per-job lock provider used by deletions.
func WithLocker(l *joblock.Locker) ServerOption {
	return func(s *Server) {
		s.locker = l
	}
}

// WithMetrics exposes the registry at /metrics.
func WithMetrics(m *observability.Metrics) ServerOption {
	return func(s *Server) {
		s.metrics = m
	}
}

// WithLogger overrides the package logger.
func WithLogger(l logger.Logger) ServerOption {
	return func(s *Server) {
		s.log = l
	}
}

// New creates a new HTTP server with the given settings and options.
func New(settings *conf.Settings, opts ...ServerOption) (*Server, error) {
	if settings == nil {
		return nil, errors.Newf("settings are required").
			Component("api").
			Category(errors.CategoryConfiguration).
			Build()
	}
	config := ConfigFromSettings(settings)
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid server configuration: %w", err)
	}

	s := &Server{
		config:    config,
		settings:  settings,
		startTime: time.Now(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.log == nil {
		s.log = GetLogger()
	}
	if s.store == nil || s.dispatcher == nil {
		return nil, errors.Newf("api server requires a store and a dispatcher").
			Component("api").
			Category(errors.CategoryConfiguration).
			Build()
	}

	s.echo = echo.New()
	s.echo.HideBanner = true
	s.echo.HidePort = true
	s.echo.Server.ReadTimeout = config.ReadTimeout
	s.echo.Server.WriteTimeout = config.WriteTimeout
	s.echo.Server.IdleTimeout = config.IdleTimeout

	s.setupMiddleware()
	s.controller = newController(s)
	s.setupRoutes()

	s.log.Info("HTTP server initialized", logger.String("address", config.Listen))
	return s, nil
}

func (s *Server) setupMiddleware() {
	s.echo.Use(echomw.Recover())
	s.echo.Use(echomw.RequestID())
	s.echo.Use(mw.NewRequestLogger(s.log))
	s.echo.Use(echomw.BodyLimit(s.config.BodyLimit))
}

func (s *Server) setupRoutes() {
	s.echo.GET("/health", s.healthCheck)
	if s.metrics != nil {
		s.echo.GET("/metrics", echo.WrapHandler(s.metrics.Handler()))
	}
	s.controller.initRoutes(s.echo.Group("/api/v1"))
}

func (s *Server) healthCheck(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]any{
		"status": "ok",
		"uptime": time.Since(s.startTime).Round(time.Second).String(),
	})
}

// Echo returns the underlying echo instance.
func (s *Server) Echo() *echo.Echo {
	return s.echo
}

// Start serves HTTP until Shutdown is called. A clean shutdown returns nil.
func (s *Server) Start() error {
	s.log.Info("HTTP server listening", logger.String("address", s.config.Listen))
	err := s.echo.Start(s.config.Listen)
	if err == nil || errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return errors.New(err).
		Component("api").
		Category(errors.CategoryNetwork).
		Context("address", s.config.Listen).
		Build()
}

// Shutdown stops accepting requests and waits for in-flight ones up to the
// configured shutdown timeout.
func (s *Server) Shutdown(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, s.config.ShutdownTimeout)
	defer cancel()
	if err := s.echo.Shutdown(ctx); err != nil {
		return fmt.Errorf("http server shutdown: %w", err)
	}
	s.log.Info("HTTP server stopped")
	return nil
}
