// Package server provides the HTTP transport for the wiki cache service:
// thin handlers mapping 1:1 onto orchestrator, scheduler, and aggregator
// operations.
package server

import (
	"context"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Config holds server configuration options.
type Config struct {
	Version           string
	DefaultItemsLimit int
	MetricsEnabled    bool
}

// Server wraps the Echo server.
type Server struct {
	echo    *echo.Echo
	handler *Handler
}

// New creates a new HTTP server around the given handler.
func New(handler *Handler, cfg *Config) *Server {
	e := echo.New()
	e.HideBanner = true

	e.Use(middleware.Logger())
	e.Use(middleware.Recover())

	e.GET("/", handler.Root)
	e.GET("/health", handler.Health)
	if cfg != nil && cfg.MetricsEnabled {
		e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))
	}

	api := e.Group("/api/v1/wiki")
	api.GET("/status", handler.Status)
	api.GET("/categories", handler.Categories)
	api.GET("/categories/:category", handler.Category)
	api.GET("/items/:title", handler.Item)
	api.GET("/search", handler.Search)
	api.POST("/refresh/:category", handler.Refresh)
	api.DELETE("/cache", handler.ClearCache)

	return &Server{
		echo:    e,
		handler: handler,
	}
}

// Start starts the HTTP server on the given address.
func (s *Server) Start(addr string) error {
	return s.echo.Start(addr)
}

// Shutdown gracefully shuts down the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.echo.Shutdown(ctx)
}

// ServeHTTP implements http.Handler, allowing Server to be used with httptest.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.echo.ServeHTTP(w, r)
}
