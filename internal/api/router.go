package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/nerrad567/farlink-core/internal/auth"
	"github.com/nerrad567/farlink-core/internal/device"
)

// buildRouter creates the HTTP router with all routes and middleware.
func (s *Server) buildRouter() http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(s.requestIDMiddleware)
	r.Use(s.loggingMiddleware)
	r.Use(s.recoveryMiddleware)
	r.Use(s.corsMiddleware)
	r.Use(s.bodySizeLimitMiddleware)

	// Signaling plane. Credentials are classified in the handler itself
	// since devices and dashboards authenticate differently.
	r.Get(s.wsPath(), s.handleWebSocket)

	// API v1 routes
	r.Route("/api/v1", func(r chi.Router) {
		// Health check (no auth required)
		r.Get("/health", s.handleHealth)

		// Device self-registration: API key or bearer token
		r.With(s.registrationAuthMiddleware).
			Post("/devices/register", s.handleRegisterDevice)

		// Dashboard routes
		r.Group(func(r chi.Router) {
			r.Use(s.dashboardAuthMiddleware)

			r.Route("/devices", func(r chi.Router) {
				r.Get("/", s.handleListDevices)

				r.Route("/{id}", func(r chi.Router) {
					r.Get("/", s.handleGetDevice)
					r.Put("/status", s.handleSetDeviceStatus)
					r.Post("/connect", s.handleConnectRequest)
					r.Get("/events", s.handleDeviceEvents)
				})
			})

			r.Get("/health/summaries", s.handleHealthSummaries)
		})
	})

	return r
}

// wsPath returns the configured WebSocket endpoint path.
func (s *Server) wsPath() string {
	if s.wsCfg.Path != "" {
		return s.wsCfg.Path
	}
	return "/ws"
}

// handleHealth returns the server health status with a connection and
// device census.
func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":      "ok",
		"version":     s.version,
		"devices":     s.registry.Count(),
		"connections": s.conns.Count(),
		"dashboards":  len(s.conns.ListByRole(auth.RoleDashboard)),
	})
}

// statusFromQuery parses an optional status filter query parameter.
func statusFromQuery(r *http.Request) (device.Status, bool, error) {
	raw := r.URL.Query().Get("status")
	if raw == "" {
		return "", false, nil
	}
	status := device.Status(raw)
	if !status.Valid() {
		return "", false, device.ErrInvalidStatus
	}
	return status, true, nil
}
