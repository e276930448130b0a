package api

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
)

// healthCheckTimeout bounds each component check in GET /health.
const healthCheckTimeout = 2 * time.Second

// buildRouter creates the HTTP router with all routes and middleware.
func (s *Server) buildRouter() http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(s.requestIDMiddleware)
	r.Use(s.loggingMiddleware)
	r.Use(s.recoveryMiddleware)
	r.Use(s.corsMiddleware)
	r.Use(s.bodySizeLimitMiddleware)

	// Health check (no auth required)
	r.Get("/health", s.handleHealth)

	r.Route("/api", func(r chi.Router) {
		// Login (no auth required)
		r.Post("/auth/login", s.handleLogin)

		// Reading ingestion: device credentials are enforced in the
		// handler because auto-provisioned devices have none yet.
		r.Post("/readings", s.handleIngest)

		// Command acknowledgement: firmware (Basic) or dashboard (JWT).
		r.With(s.userOrDeviceAuthMiddleware).Patch("/commands/{id}", s.handleSetCommandStatus)

		// JWT-protected routes
		r.Group(func(r chi.Router) {
			r.Use(s.authMiddleware)

			r.Get("/auth/me", s.handleMe)

			// WS ticket requires authentication - user must be logged in
			// to request a ticket
			r.Post("/auth/ws-ticket", s.handleWSTicket)

			r.Route("/devices", func(r chi.Router) {
				r.Get("/", s.handleListDevices)
				r.With(s.adminMiddleware).Post("/", s.handleCreateDevice)

				r.Route("/{id}", func(r chi.Router) {
					r.Get("/", s.handleGetDevice)
					r.With(s.adminMiddleware).Patch("/", s.handleUpdateDevice)
					r.With(s.adminMiddleware).Delete("/", s.handleDeleteDevice)

					r.Get("/status", s.handleDeviceStatus)
					r.Get("/history", s.handleDeviceHistory)
					r.Get("/stats", s.handleDeviceStats)

					r.Get("/settings", s.handleGetSettings)
					r.Put("/settings", s.handlePutSettings)

					r.Post("/commands", s.handleEnqueueCommand)
					r.Get("/commands", s.handleListCommands)
				})
			})

			// User administration
			r.Route("/users", func(r chi.Router) {
				r.Use(s.adminMiddleware)
				r.Get("/", s.handleListUsers)
				r.Post("/", s.handleCreateUser)
				r.Delete("/{id}", s.handleDeleteUser)
			})
		})
	})

	// WebSocket (auth via ticket, validated in handler)
	r.Get("/ws", s.handleWebSocket)

	return r
}

// handleHealth reports server health plus each registered component check.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	components := make(map[string]string, len(s.checks))
	healthy := true

	for name, check := range s.checks {
		ctx, cancel := context.WithTimeout(r.Context(), healthCheckTimeout)
		err := check.HealthCheck(ctx)
		cancel()
		if err != nil {
			components[name] = err.Error()
			healthy = false
		} else {
			components[name] = "ok"
		}
	}

	status := "ok"
	code := http.StatusOK
	if !healthy {
		status = "degraded"
		code = http.StatusServiceUnavailable
	}

	writeJSON(w, code, map[string]any{
		"status":     status,
		"version":    s.version,
		"components": components,
	})
}
