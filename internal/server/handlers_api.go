package server

import (
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/rudrani-rane/Automated-Intelligence-Threat-System/internal/analytics"
	apperrors "github.com/rudrani-rane/Automated-Intelligence-Threat-System/internal/platform/errors"
)

const (
	defaultAlertLimit  = 50
	defaultMoverLimit  = 5
	defaultQueryWindow = 24 * time.Hour
	maxQueryWindow     = 30 * 24 * time.Hour
)

func (s *Server) handleStats(c echo.Context) error {
	return c.JSON(200, map[string]any{
		"connections": s.registry.Stats(),
		"alerts":      s.notifier.Stats(),
		"analytics":   s.store.SystemStats(),
	})
}

func (s *Server) handleAlerts(c echo.Context) error {
	limit, err := intQueryParam(c, "limit", defaultAlertLimit)
	if err != nil {
		return err
	}
	return c.JSON(200, map[string]any{
		"alerts": s.notifier.History(limit),
	})
}

func (s *Server) handleAcknowledgeAlert(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return apperrors.ValidationError("invalid alert ID format").WithContext("id", c.Param("id"))
	}

	if err := s.notifier.Acknowledge(id); err != nil {
		return apperrors.NotFoundError("alert not found").WithContext("alert_id", id.String())
	}
	return c.JSON(200, map[string]string{"status": "acknowledged"})
}

func (s *Server) handleTrend(c echo.Context) error {
	objectID := c.Param("objectID")
	if objectID == "" {
		return apperrors.ValidationError("object ID is required")
	}

	window, err := windowQueryParam(c)
	if err != nil {
		return err
	}

	trend := s.store.Trend(objectID, s.clock.Now().Add(-window))
	return c.JSON(200, map[string]any{
		"object_id": objectID,
		"trend":     trend,
	})
}

func (s *Server) handleTopMovers(c echo.Context) error {
	direction, err := analytics.ParseDirection(c.QueryParam("direction"))
	if err != nil {
		return apperrors.ValidationError("direction must be increase or decrease").
			WithContext("direction", c.QueryParam("direction"))
	}

	limit, err := intQueryParam(c, "limit", defaultMoverLimit)
	if err != nil {
		return err
	}
	window, err := windowQueryParam(c)
	if err != nil {
		return err
	}

	return c.JSON(200, map[string]any{
		"direction": direction,
		"movers":    s.store.TopMovers(direction, limit, window),
	})
}

func (s *Server) handleCharts(c echo.Context) error {
	window, err := windowQueryParam(c)
	if err != nil {
		return err
	}
	return c.JSON(200, s.store.Series(window))
}

func (s *Server) handleExport(c echo.Context) error {
	switch format := c.QueryParam("format"); format {
	case "", "csv":
		out, err := s.store.ExportCSV(c.QueryParam("object_id"))
		if err != nil {
			return apperrors.InternalError("failed to export analytics", err)
		}
		c.Response().Header().Set(echo.HeaderContentDisposition, `attachment; filename="analytics.csv"`)
		return c.Blob(200, "text/csv", []byte(out))

	case "json":
		window, err := windowQueryParam(c)
		if err != nil {
			return err
		}
		out, err := s.store.ExportJSON(window)
		if err != nil {
			return apperrors.InternalError("failed to export analytics", err)
		}
		return c.Blob(200, echo.MIMEApplicationJSON, out)

	default:
		return apperrors.ValidationError("format must be csv or json").WithContext("format", format)
	}
}

func intQueryParam(c echo.Context, name string, fallback int) (int, error) {
	raw := c.QueryParam(name)
	if raw == "" {
		return fallback, nil
	}
	value, err := strconv.Atoi(raw)
	if err != nil || value < 1 {
		return 0, apperrors.ValidationError(fmt.Sprintf("%s must be a positive integer", name)).
			WithContext(name, raw)
	}
	return value, nil
}

// windowQueryParam parses the "hours" parameter, capped at the retention
// window.
func windowQueryParam(c echo.Context) (time.Duration, error) {
	raw := c.QueryParam("hours")
	if raw == "" {
		return defaultQueryWindow, nil
	}
	hours, err := strconv.Atoi(raw)
	if err != nil || hours < 1 {
		return 0, apperrors.ValidationError("hours must be a positive integer").WithContext("hours", raw)
	}
	window := time.Duration(hours) * time.Hour
	if window > maxQueryWindow {
		window = maxQueryWindow
	}
	return window, nil
}
