package api

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
)

// healthCheckTimeout bounds each dependency check on /health.
const healthCheckTimeout = 2 * time.Second

// buildRouter creates the HTTP router with all routes and middleware.
func (s *Server) buildRouter() http.Handler {
	r := chi.NewRouter()

	r.Use(s.requestIDMiddleware)
	r.Use(s.loggingMiddleware)
	r.Use(s.recoveryMiddleware)
	r.Use(s.corsMiddleware)
	r.Use(s.bodySizeLimitMiddleware)
	r.Use(s.rateLimitMiddleware)

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/health", s.handleHealth)

		r.Group(func(r chi.Router) {
			r.Use(s.authMiddleware)

			r.Route("/devices", func(r chi.Router) {
				r.Get("/", s.handleListDevices)
				r.Post("/refresh", s.handleRefresh)
				r.Post("/{id}/{command}", s.handleDeviceCommand)
			})

			r.Route("/adapter/power", func(r chi.Router) {
				r.Get("/", s.handleGetPower)
				r.Put("/", s.handleSetPower)
			})

			r.Post("/settings/launch", s.handleLaunchSettings)
			r.Get("/audit", s.handleListAudit)
			r.Get("/metrics", s.handleMetrics)
			r.Get("/ws", s.handleWebSocket)
		})
	})

	// Widget assets are public; the page carries its token in the URL.
	if s.panel != nil {
		r.Handle("/*", s.panel)
	}

	return r
}

// handleHealth reports server status and each configured dependency.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	status := "ok"
	checks := make(map[string]string, len(s.checks))
	for name, c := range s.checks {
		ctx, cancel := context.WithTimeout(r.Context(), healthCheckTimeout)
		err := c.HealthCheck(ctx)
		cancel()
		if err != nil {
			checks[name] = err.Error()
			status = "degraded"
			continue
		}
		checks[name] = "ok"
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"status":  status,
		"version": s.version,
		"checks":  checks,
	})
}
