// Package http assembles the public HTTP surface: middleware chain, health
// and metrics endpoints, and the authenticated /api routes.
package http

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	consentHandler "podbroker/internal/consent/handler"
	dataHandler "podbroker/internal/data/handler"
	"podbroker/internal/platform/config"
	"podbroker/internal/platform/metrics"
	"podbroker/internal/platform/middleware"
	"podbroker/pkg/platform/httputil"
	"podbroker/pkg/requestcontext"
)

// Deps carries everything the router needs. Construction stays in main;
// the router only wires.
type Deps struct {
	Config      config.Config
	Logger      *slog.Logger
	Metrics     *metrics.Metrics
	Validator   middleware.JWTValidator
	Revocations middleware.RevocationChecker
	Consent     consentHandler.Service
	Data        dataHandler.Service
	Health      func() map[string]string
}

// NewRouter builds the chi router with the full middleware chain applied to
// the /api subtree. Health and metrics stay outside auth.
func NewRouter(deps Deps) chi.Router {
	r := chi.NewRouter()

	r.Use(middleware.Recovery(deps.Logger))
	r.Use(middleware.RequestID)
	r.Use(middleware.RequestTime)
	r.Use(middleware.ClientMetadata)
	r.Use(middleware.Logger(deps.Logger))
	r.Use(middleware.Latency(deps.Metrics))

	r.Get("/health", handleHealth(deps.Health))
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	r.Route("/api", func(api chi.Router) {
		api.Use(middleware.Timeout(deps.Config.Server.RequestTimeout))
		api.Use(middleware.ContentTypeJSON)
		api.Use(middleware.RequireAuth(deps.Validator, deps.Revocations, deps.Logger))

		api.Get("/auth/verify", handleVerify)

		api.Route("/consent", func(consent chi.Router) {
			consentHandler.New(deps.Consent, deps.Logger, deps.Metrics).Register(consent)
		})
		api.Route("/data", func(data chi.Router) {
			dataHandler.New(deps.Data, deps.Logger, deps.Metrics).Register(data)
		})
	})

	return r
}

func handleHealth(health func() map[string]string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		checks := map[string]string{}
		if health != nil {
			checks = health()
		}
		status := http.StatusOK
		overall := "ok"
		for _, state := range checks {
			if state != "ok" {
				status = http.StatusServiceUnavailable
				overall = "degraded"
			}
		}
		httputil.WriteJSON(w, status, map[string]any{
			"status": overall,
			"checks": checks,
		})
	}
}

// handleVerify echoes the authenticated principal. Lets clients confirm a
// token is still accepted, including against the revocation list.
func handleVerify(w http.ResponseWriter, r *http.Request) {
	httputil.WriteJSON(w, http.StatusOK, map[string]any{
		"authenticated": true,
		"user_id":       requestcontext.Principal(r.Context()),
	})
}
