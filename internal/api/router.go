package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// buildRouter creates the HTTP router with all routes and middleware.
func (s *Server) buildRouter() http.Handler {
	r := chi.NewRouter()
	r.Use(s.middlewares()...)
	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusNotFound, "no such endpoint")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/health", s.handleHealth)
		r.Get("/status", s.handleStatus)
		r.Get("/events", s.handleListEvents)

		r.Post("/connection/{command}", s.handleConnectionCommand)

		// Lifecycle event stream
		r.Get("/ws", s.handleWebSocket)
	})

	return r
}

// handleHealth reports whether the broker connection is usable.
// It answers 503 while the manager is not connected so load balancers and
// orchestrators can act on it.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	stats := s.manager.Stats()

	if err := s.manager.HealthCheck(r.Context()); err != nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]any{
			"status":  "unavailable",
			"state":   stats.State,
			"error":   err.Error(),
			"version": s.version,
		})
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"state":   stats.State,
		"version": s.version,
	})
}
