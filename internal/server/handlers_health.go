package server

import (
	"context"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/rudrani-rane/Automated-Intelligence-Threat-System/internal/platform/version"
)

func (s *Server) handleLiveness(c echo.Context) error {
	uptime := s.clock.Since(s.startTime).Seconds()
	return c.JSON(200, map[string]any{
		"status": "ok",
		"uptime": uptime,
	})
}

// handleReadiness checks the optional Redis mirror. Without a mirror the
// process is ready as soon as it serves HTTP; every other dependency is
// in-memory.
func (s *Server) handleReadiness(c echo.Context) error {
	if s.redisCheck != nil {
		ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
		defer cancel()

		if err := s.redisCheck.Ping(ctx); err != nil {
			return c.JSON(503, map[string]any{
				"status":       "unhealthy",
				"failed_check": "redis",
				"error":        err.Error(),
			})
		}
	}
	return c.JSON(200, map[string]string{"status": "ready"})
}

func (s *Server) handleVersion(c echo.Context) error {
	return c.JSON(200, version.Get())
}
