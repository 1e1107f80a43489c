// Package server implements the HTTP transport layer for the control plane:
// the session-authenticated admin API under /api, the public OAuth callback
// bridge, and the API-key-authenticated end-user surface under /v1.
package server

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"go.opentelemetry.io/otel/trace"

	"github.com/hoangduy0308/proxypal/internal/auth"
	"github.com/hoangduy0308/proxypal/internal/cryptotoken"
	"github.com/hoangduy0308/proxypal/internal/forwarder"
	"github.com/hoangduy0308/proxypal/internal/procmgr"
	"github.com/hoangduy0308/proxypal/internal/ratelimit"
	"github.com/hoangduy0308/proxypal/internal/storage"
	"github.com/hoangduy0308/proxypal/internal/telemetry"
)

// Deps holds all dependencies for the HTTP server.
type Deps struct {
	Store       storage.Store
	APIKeyAuth  *auth.APIKeyAuth
	SessionAuth *auth.SessionAuth
	RateLimiter *ratelimit.Limiter
	Forwarder   forwarder.Client
	ProcManager procmgr.Manager
	Cipher      *cryptotoken.Cipher

	ProxyConfigPath string // PROXY_CONFIG_PATH, passed to proc manager Start
	Version         string

	Metrics        *telemetry.Metrics // nil = no Prometheus metrics
	MetricsHandler http.Handler       // nil = no /metrics endpoint
	Tracer         trace.Tracer       // nil = no distributed tracing
}

// New creates an http.Handler with all routes and middleware wired.
func New(deps Deps) http.Handler {
	s := &server{deps: deps}

	r := chi.NewRouter()

	r.Use(s.securityHeaders)
	r.Use(s.recovery)
	r.Use(s.requestID)
	r.Use(s.logging)
	if deps.Metrics != nil {
		r.Use(metricsMiddleware(deps.Metrics))
	}
	if deps.Tracer != nil {
		r.Use(tracingMiddleware(deps.Tracer))
	}

	r.Get("/healthz", s.handleHealth)
	if deps.MetricsHandler != nil {
		r.Handle("/metrics", deps.MetricsHandler)
	}

	r.Get("/oauth/{provider}/callback", s.handleOAuthCallback)

	r.Route("/api", func(r chi.Router) {
		r.Get("/health", s.handleHealth)

		r.Post("/auth/login", s.handleLogin)
		r.Get("/auth/status", s.handleAuthStatus)

		r.Group(func(r chi.Router) {
			r.Use(s.requireSession)

			r.Post("/auth/logout", s.handleLogout)

			r.Group(func(r chi.Router) {
				r.Use(s.csrfGate)

				r.Get("/users", s.handleListUsers)
				r.Post("/users", s.handleCreateUser)
				r.Get("/users/{id}", s.handleGetUser)
				r.Put("/users/{id}", s.handleUpdateUser)
				r.Delete("/users/{id}", s.handleDeleteUser)
				r.Post("/users/{id}/regenerate-key", s.handleRegenerateKey)
				r.Post("/users/{id}/reset-usage", s.handleResetUsage)

				r.Get("/usage", s.handleUsageSummary)
				r.Get("/usage/users/{id}", s.handleUserUsage)
				r.Get("/usage/daily", s.handleDailyUsage)
				r.Get("/usage/logs", s.handleUsageLogs)

				r.Get("/providers", s.handleListProviders)
				r.Get("/providers/{name}", s.handleGetProvider)
				r.Delete("/providers/{name}", s.handleDeleteProvider)
				r.Get("/providers/{name}/status", s.handleProviderStatus)
				r.Put("/providers/{name}/settings", s.handleUpdateProviderSettings)
				r.Post("/providers/{name}/oauth/start", s.handleStartOAuth)

				r.Get("/proxy/status", s.handleProxyStatus)
				r.Post("/proxy/start", s.handleProxyStart)
				r.Post("/proxy/stop", s.handleProxyStop)
				r.Post("/proxy/restart", s.handleProxyRestart)

				r.Get("/config", s.handleGetConfig)
				r.Put("/config", s.handleUpdateConfig)
			})
		})
	})

	r.Route("/v1", func(r chi.Router) {
		r.Use(s.requireAPIKey)
		r.Use(s.rateLimit)

		r.Get("/models", s.handleListModels)
		r.Post("/chat/completions", s.handleForwardedCall("/v1/chat/completions"))
		r.Post("/completions", s.handleForwardedCall("/v1/completions"))
		r.Post("/embeddings", s.handleForwardedCall("/v1/embeddings"))
	})

	return r
}

type server struct {
	deps Deps
}
