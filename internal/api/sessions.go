package api

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/nerrad567/guessfleet/internal/game"
)

// handleListSessions returns a snapshot of every registered session.
func (s *Server) handleListSessions(w http.ResponseWriter, _ *http.Request) {
	sessions := s.engine.Registry().Snapshots()
	writeJSON(w, http.StatusOK, map[string]any{
		"sessions": sessions,
		"count":    len(sessions),
	})
}

// handleGetSession returns one session snapshot.
func (s *Server) handleGetSession(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	sess, ok := s.engine.Registry().Lookup(id)
	if !ok {
		writeError(w, http.StatusNotFound, "session not found")
		return
	}
	writeJSON(w, http.StatusOK, sess.Snapshot())
}

// handleRestartSession starts a fresh game for a device on operator request.
func (s *Server) handleRestartSession(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	err := s.engine.Restart(id, game.ReasonOperator)
	switch {
	case err == nil:
	case errors.Is(err, game.ErrUnknownDevice):
		writeError(w, http.StatusNotFound, "session not found")
		return
	case errors.Is(err, game.ErrSessionTerminated):
		writeError(w, http.StatusConflict, "device has disconnected")
		return
	case errors.Is(err, game.ErrEngineClosed):
		writeError(w, http.StatusServiceUnavailable, "coordinator is shutting down")
		return
	default:
		s.logger.Error("operator restart failed", "device_id", id, "error", err)
		writeError(w, http.StatusInternalServerError, "restart failed")
		return
	}

	sub := ""
	if claims := claimsFromContext(r.Context()); claims != nil {
		sub = claims.Subject
	}
	s.logger.Info("session restarted by operator", "device_id", id, "operator", sub)

	sess, ok := s.engine.Registry().Lookup(id)
	if !ok {
		w.WriteHeader(http.StatusAccepted)
		return
	}
	writeJSON(w, http.StatusAccepted, sess.Snapshot())
}
