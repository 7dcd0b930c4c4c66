// Package server exposes the WebSocket endpoint and the REST API over
// the registry, notifier and analytics store.
package server

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/labstack/echo/v4"
	echomiddleware "github.com/labstack/echo/v4/middleware"

	"github.com/rudrani-rane/Automated-Intelligence-Threat-System/internal/alerts"
	"github.com/rudrani-rane/Automated-Intelligence-Threat-System/internal/analytics"
	"github.com/rudrani-rane/Automated-Intelligence-Threat-System/internal/platform/config"
	"github.com/rudrani-rane/Automated-Intelligence-Threat-System/internal/registry"
)

// healthPinger checks one external dependency for readiness.
type healthPinger interface {
	Ping(ctx context.Context) error
}

type Server struct {
	echo      *echo.Echo
	config    *config.Config
	registry  *registry.Registry
	notifier  *alerts.Notifier
	store     *analytics.Store
	clock     clockwork.Clock
	startTime time.Time

	// redisCheck is nil when mirroring is disabled.
	redisCheck healthPinger
}

// ServerOption configures a Server.
type ServerOption func(*Server)

// WithRedisCheck wires the Redis mirror into the readiness probe.
func WithRedisCheck(p healthPinger) ServerOption {
	return func(s *Server) { s.redisCheck = p }
}

func NewServer(
	cfg *config.Config,
	reg *registry.Registry,
	notifier *alerts.Notifier,
	store *analytics.Store,
	clock clockwork.Clock,
	opts ...ServerOption,
) *Server {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Use(echomiddleware.Recover())
	e.Use(correlationMiddleware)
	e.Use(ErrorHandlingMiddleware())

	srv := &Server{
		echo:      e,
		config:    cfg,
		registry:  reg,
		notifier:  notifier,
		store:     store,
		clock:     clock,
		startTime: clock.Now(),
	}
	for _, opt := range opts {
		opt(srv)
	}

	srv.registerRoutes()
	return srv
}

func (s *Server) Start() error {
	slog.Info("Starting server", "port", s.config.Port)
	return s.echo.Start(fmt.Sprintf(":%s", s.config.Port))
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.echo.Shutdown(ctx)
}
