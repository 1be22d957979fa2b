// Package api provides the HTTP API for the push relay.
package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rs/zerolog"

	"github.com/pushrelay/pushrelay/internal/api/handler"
	"github.com/pushrelay/pushrelay/internal/api/middleware"
	"github.com/pushrelay/pushrelay/internal/api/response"
	"github.com/pushrelay/pushrelay/internal/resilience"
)

// RouterConfig holds configuration for the router.
type RouterConfig struct {
	Version     string
	BuildTime   string
	Logger      zerolog.Logger
	ServiceName string
	Metrics     *middleware.Metrics
	Relay       handler.RelayService
	// Store is pinged by the readiness endpoint.
	Store    handler.Pinger
	Channels *resilience.Registry
	// RequireTLS rejects plain HTTP requests forwarded by a load balancer.
	RequireTLS bool
	// WriteRateLimit is the per-IP limit on register and send, per minute.
	// Zero disables it.
	WriteRateLimit int
}

// NewRouter creates a new chi router with all API routes configured.
func NewRouter(cfg RouterConfig) *chi.Mux {
	r := chi.NewRouter()

	serviceName := cfg.ServiceName
	if serviceName == "" {
		serviceName = "pushrelay-api"
	}

	// Global middleware - order matters
	r.Use(middleware.RequestID)
	r.Use(middleware.Tracing(serviceName))
	if cfg.Metrics != nil {
		r.Use(cfg.Metrics.Middleware())
	}
	r.Use(middleware.Logger(cfg.Logger))
	r.Use(middleware.Recovery(cfg.Logger))
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.SecurityHeaders)
	r.Use(middleware.RequireTLS(cfg.RequireTLS))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Content-Type"},
		ExposedHeaders: []string{"X-Request-Id"},
		MaxAge:         300,
	}))
	r.Use(middleware.ContentTypeJSON)

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		response.NotFound(w, r, "no route matches "+r.URL.Path)
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		response.MethodNotAllowed(w, r, "method "+r.Method+" is not allowed on "+r.URL.Path)
	})

	relayHandler := handler.NewRelayHandler(cfg.Relay)
	opsHandler := handler.NewOpsHandler(handler.OpsConfig{
		ServiceName: serviceName,
		Version:     cfg.Version,
		BuildTime:   cfg.BuildTime,
		Store:       cfg.Store,
		Channels:    cfg.Channels,
	})

	writeLimit := func(next http.Handler) http.Handler { return next }
	if cfg.WriteRateLimit > 0 {
		writeLimit = middleware.RateLimitByIP(middleware.PerMinute(cfg.WriteRateLimit))
	}
	writes := chi.Chain(writeLimit, middleware.RequireJSON)

	// API v1 routes
	r.Route("/v1", func(r chi.Router) {
		r.Route("/ops", func(r chi.Router) {
			r.Get("/health", opsHandler.HealthCheck)
			r.Get("/ready", opsHandler.ReadinessCheck)
			r.Get("/status", opsHandler.SystemStatus)
		})

		r.With(writes...).Post("/devices", relayHandler.Register)

		r.With(writes...).Post("/messages", relayHandler.Send)
		r.Get("/messages", relayHandler.FetchByQuery)

		r.Get("/users/{userId}/messages", relayHandler.FetchByPath)
	})

	// Endpoint names and response envelope used by the first generation of
	// mobile clients.
	legacy := handler.NewLegacyHandler(cfg.Relay)
	r.With(writes...).HandleFunc("/registerUser", legacy.Only(http.MethodPost, legacy.RegisterUser))
	r.With(writes...).HandleFunc("/sendPushNotification", legacy.Only(http.MethodPost, legacy.SendPushNotification))
	r.HandleFunc("/getMessages", legacy.Only(http.MethodGet, legacy.GetMessages))
	r.Get("/healthCheck", opsHandler.HealthCheck)

	return r
}
