// Package core provides the API chassis for the WAISPATH routing service.
// It creates a chi router and enforces cross-cutting concerns -- panic
// recovery, request correlation, logging, and error handling -- before
// requests reach domain-specific handlers.
package core

import (
	"fmt"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"waispath/internal/config"
)

// RouteRegistrar mounts a group of domain handler routes on a chi router.
// The application entry point collects registrars from each handler and
// passes them to MountRoutes; this indirection avoids import cycles between
// core and handler packages.
type RouteRegistrar func(chi.Router)

// Server encapsulates the chassis dependencies for the API, allowing for
// easy injection during testing and distinct configuration for different
// environments.
type Server struct {
	Config    *config.Config
	Logger    *slog.Logger
	Validator *Validator

	router       *chi.Mux
	healthProbes []HealthProbe
}

// NewServer initializes dependencies and prepares the server for route
// mounting. The caller is responsible for mounting routes (via MountRoutes)
// after construction; this separation allows tests to customize route
// registration.
func NewServer(cfg *config.Config, logger *slog.Logger) (*Server, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config must not be nil")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger must not be nil")
	}

	return &Server{
		Config:    cfg,
		Logger:    logger,
		Validator: NewValidator(),
		router:    chi.NewRouter(),
	}, nil
}

// Handler returns the http.Handler interface for the router.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Router returns the underlying chi.Mux for route registration.
func (s *Server) Router() *chi.Mux {
	return s.router
}

// MountRoutes registers the global middleware chain, the v1 API group, and
// the health endpoint.
//
// Middleware ordering (strict):
//  1. Recoverer     - catches panics; outermost to catch all failures.
//  2. RequestID     - generates/propagates correlation ID for tracing.
//  3. RequestLogger - structured logging (redacted headers).
func (s *Server) MountRoutes(registrars ...RouteRegistrar) {
	s.router.Use(s.Recoverer)
	s.router.Use(RequestIDMiddleware)
	s.router.Use(RequestLogger(s.Logger, defaultRedactedHeaders))

	s.router.Route("/v1", func(r chi.Router) {
		for _, registrar := range registrars {
			registrar(r)
		}
	})

	s.router.Get("/health", s.HandleHealth)
}
