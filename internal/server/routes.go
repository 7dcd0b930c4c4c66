package server

import (
	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func (s *Server) registerRoutes() {
	// Observability endpoints
	s.echo.GET("/health/live", s.handleLiveness)
	s.echo.GET("/health/ready", s.handleReadiness)
	s.echo.GET("/version", s.handleVersion)
	s.echo.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	// WebSocket endpoint
	s.echo.GET("/ws", s.handleWebSocket)

	// REST API, rate limited per client IP
	api := s.echo.Group("/api", rateLimitMiddleware())
	api.GET("/stats", s.handleStats)
	api.GET("/alerts", s.handleAlerts)
	api.POST("/alerts/:id/ack", s.handleAcknowledgeAlert)
	api.GET("/trend/:objectID", s.handleTrend)
	api.GET("/top-movers", s.handleTopMovers)
	api.GET("/charts", s.handleCharts)
	api.GET("/export", s.handleExport)
}
