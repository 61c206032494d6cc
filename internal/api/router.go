package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/nerrad567/guessfleet/internal/auth"
)

// buildRouter creates the HTTP router with all routes and middleware.
//
// Health and metrics are open to probes. Everything else needs a token whose
// role grants the route's permission; /ws checks its token itself.
func (s *Server) buildRouter() http.Handler {
	r := chi.NewRouter()

	r.Use(s.accessMiddleware)
	r.Use(s.corsMiddleware)

	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusNotFound, "no such endpoint")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/health", s.handleHealth)
		r.Get("/metrics", s.handleMetrics)
		r.Get("/ws", s.handleWebSocket)

		r.Group(func(r chi.Router) {
			r.Use(s.authMiddleware)

			r.Route("/sessions", func(r chi.Router) {
				read := r.With(s.requirePermission(auth.PermSessionRead))
				read.Get("/", s.handleListSessions)
				read.Get("/{id}", s.handleGetSession)
				r.With(s.requirePermission(auth.PermSessionRestart)).Post("/{id}/restart", s.handleRestartSession)
			})

			r.Route("/history", func(r chi.Router) {
				r.Use(s.requirePermission(auth.PermHistoryRead))
				r.Get("/", s.handleListHistory)
				r.Get("/{id}", s.handleGetHistory)
			})
		})
	})

	return r
}
