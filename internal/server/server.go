// Package server provides the HTTP front end of HydroSim.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/HerbHall/hydrosim/internal/registry"
	"github.com/HerbHall/hydrosim/internal/version"
	"github.com/HerbHall/hydrosim/pkg/plugin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	httpSwagger "github.com/swaggo/http-swagger/v2"
	"go.uber.org/zap"
)

// PluginSource provides plugin routes and status. Satisfied by
// *registry.Registry.
type PluginSource interface {
	AllRoutes() map[string][]plugin.Route
	Statuses() []registry.Status
	Health(ctx context.Context) map[string]plugin.HealthStatus
}

// ReadinessChecker returns nil when the server can serve traffic.
type ReadinessChecker func(ctx context.Context) error

// RouteRegistrar registers routes that do not belong to a plugin.
type RouteRegistrar interface {
	RegisterRoutes(mux *http.ServeMux)
}

// Server is the HydroSim HTTP server.
type Server struct {
	httpServer *http.Server
	plugins    PluginSource
	logger     *zap.Logger
	mux        *http.ServeMux
	ready      ReadinessChecker
}

// New builds the mux and middleware chain. extra registrars mount after
// the plugin routes.
func New(cfg Config, plugins PluginSource, logger *zap.Logger, ready ReadinessChecker, extra ...RouteRegistrar) *Server {
	mux := http.NewServeMux()
	s := &Server{
		plugins: plugins,
		logger:  logger,
		mux:     mux,
		ready:   ready,
	}

	s.registerRoutes()
	s.mountPluginRoutes()
	for _, r := range extra {
		r.RegisterRoutes(mux)
	}

	if cfg.DevMode {
		mux.Handle("GET /swagger/", httpSwagger.Handler(
			httpSwagger.URL("/swagger/doc.json"),
		))
		logger.Info("swagger UI enabled (dev_mode)", zap.String("path", "/swagger/"))
	}

	ops := []string{"/healthz", "/readyz", "/metrics"}
	rl := cfg.RateLimit
	if rl.RPS <= 0 {
		rl = DefaultConfig().RateLimit
	}
	handler := Chain(mux,
		RecoveryMiddleware(logger),
		RequestIDMiddleware,
		LoggingMiddleware(logger, ops),
		SecurityHeadersMiddleware,
		VersionHeaderMiddleware,
		RateLimitMiddleware(rl.RPS, rl.Burst, ops),
	)

	s.httpServer = &http.Server{
		Addr:              cfg.Addr(),
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       cfg.ReadTimeout,
		WriteTimeout:      cfg.WriteTimeout,
		IdleTimeout:       60 * time.Second,
	}
	return s
}

// Handler returns the full middleware-wrapped handler.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

func (s *Server) registerRoutes() {
	s.mux.HandleFunc("GET /healthz", s.handleHealthz)
	s.mux.HandleFunc("GET /readyz", s.handleReadyz)
	s.mux.Handle("GET /metrics", promhttp.Handler())

	s.mux.HandleFunc("GET /api/v1/health", s.handleHealth)
	s.mux.HandleFunc("GET /api/v1/plugins", s.handlePlugins)
}

// mountPluginRoutes registers every plugin route under /api/v1/{plugin}.
func (s *Server) mountPluginRoutes() {
	for name, routes := range s.plugins.AllRoutes() {
		for _, route := range routes {
			pattern := fmt.Sprintf("%s /api/v1/%s%s", route.Method, name, route.Path)
			s.mux.HandleFunc(pattern, route.Handler)
			s.logger.Debug("mounted route",
				zap.String("plugin", name),
				zap.String("pattern", pattern),
			)
		}
	}
}

// Start serves until Shutdown is called.
func (s *Server) Start() error {
	s.logger.Info("starting HTTP server", zap.String("addr", s.httpServer.Addr))
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("HTTP server error: %w", err)
	}
	return nil
}

// Shutdown gracefully shuts down the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down HTTP server")
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "alive"})
}

func (s *Server) handleReadyz(w http.ResponseWriter, r *http.Request) {
	if s.ready != nil {
		if err := s.ready(r.Context()); err != nil {
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{
				"status": "not ready",
				"error":  err.Error(),
			})
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

// HealthResponse is the response for GET /health.
type HealthResponse struct {
	Status  string                         `json:"status" example:"ok"`
	Service string                         `json:"service" example:"hydrosim"`
	Version map[string]string              `json:"version"`
	Plugins map[string]plugin.HealthStatus `json:"plugins"`
}

// handleHealth reports service health with per-plugin detail. The overall
// status is "degraded" when any plugin is not healthy.
//
//	@Summary		Health check
//	@Description	Returns service health, version information and plugin health.
//	@Tags			system
//	@Produce		json
//	@Success		200	{object}	HealthResponse
//	@Router			/health [get]
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	plugins := s.plugins.Health(r.Context())
	status := "ok"
	for _, h := range plugins {
		if h.Status != "healthy" {
			status = "degraded"
			break
		}
	}
	writeJSON(w, http.StatusOK, HealthResponse{
		Status:  status,
		Service: "hydrosim",
		Version: version.Map(),
		Plugins: plugins,
	})
}

// handlePlugins lists registered plugins.
//
//	@Summary		List plugins
//	@Description	Returns all registered plugins with their metadata and state.
//	@Tags			system
//	@Produce		json
//	@Success		200	{array}	registry.Status
//	@Router			/plugins [get]
func (s *Server) handlePlugins(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.plugins.Statuses())
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
