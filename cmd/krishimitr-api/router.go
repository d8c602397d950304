// Package main provides the API router setup.
package main

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/krishimitr/assistant/cmd/krishimitr-api/handlers"
	"github.com/krishimitr/assistant/cmd/krishimitr-api/middleware"
	"github.com/krishimitr/assistant/internal/observability"
)

// AppConfig holds router configuration.
type AppConfig struct {
	RequestTimeout time.Duration
	AllowedOrigins []string
}

// DefaultAppConfig returns default configuration values.
func DefaultAppConfig() AppConfig {
	return AppConfig{
		RequestTimeout: 30 * time.Second,
		AllowedOrigins: []string{"*"},
	}
}

// NewRouter creates the API router with all routes configured.
func NewRouter(logger *observability.Logger, svc handlers.Service, cfg AppConfig) http.Handler {
	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.RequestLogger(logger))
	r.Use(chimiddleware.Recoverer)
	r.Use(middleware.CORS(cfg.AllowedOrigins))
	r.Use(chimiddleware.Timeout(cfg.RequestTimeout))

	h := handlers.NewAssistantHandler(logger, svc)

	r.Get("/health", h.Health)

	r.Route("/api", func(r chi.Router) {
		r.Get("/knowledge-base", h.KnowledgeBase)
		r.Post("/ask", h.Ask)
	})

	return r
}
