package api

import (
	"bufio"
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/nerrad567/guessfleet/internal/auth"
)

type contextKey string

const (
	ctxKeyRequestID contextKey = "request_id"
	// ctxKeyClaims holds the caller's *auth.CustomClaims on protected routes.
	ctxKeyClaims contextKey = "claims"
)

const (
	requestIDHeader    = "X-Request-ID"
	maxRequestBodySize = 1 << 20

	corsMethods = "GET, POST, OPTIONS"
	corsHeaders = "Authorization, Content-Type, " + requestIDHeader
	corsMaxAge  = "86400"
)

// pollPaths are hit by monitors every few seconds and log at debug when they succeed.
var pollPaths = map[string]bool{
	"/api/v1/health":  true,
	"/api/v1/metrics": true,
}

// accessMiddleware tags each request with an id, caps the body size, turns a
// handler panic into a 500 and logs the outcome at a level set by its status.
func (s *Server) accessMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(requestIDHeader)
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set(requestIDHeader, id)
		r = r.WithContext(context.WithValue(r.Context(), ctxKeyRequestID, id))
		if r.Body != nil {
			r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)
		}

		sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		start := time.Now()
		defer func() {
			if p := recover(); p != nil {
				s.logger.Error("panic in HTTP handler", "panic", p, "path", r.URL.Path, "request_id", id)
				if !sw.wrote {
					writeError(sw, http.StatusInternalServerError, "internal server error")
				}
			}
			s.logRequest(r, sw.status, time.Since(start), id)
		}()

		next.ServeHTTP(sw, r)
	})
}

func (s *Server) logRequest(r *http.Request, status int, took time.Duration, id string) {
	level := slog.LevelInfo
	switch {
	case status >= http.StatusInternalServerError:
		level = slog.LevelError
	case status >= http.StatusBadRequest:
		level = slog.LevelWarn
	case pollPaths[r.URL.Path]:
		level = slog.LevelDebug
	}
	s.logger.Log(r.Context(), level, "http request",
		"method", r.Method,
		"path", r.URL.Path,
		"status", status,
		"duration_ms", took.Milliseconds(),
		"request_id", id,
	)
}

// corsMiddleware answers preflights and sets CORS headers for allowed origins.
func (s *Server) corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if origin := r.Header.Get("Origin"); origin != "" && s.isAllowedOrigin(origin) {
			h := w.Header()
			h.Set("Access-Control-Allow-Origin", origin)
			h.Add("Vary", "Origin")
			h.Set("Access-Control-Allow-Methods", corsMethods)
			h.Set("Access-Control-Allow-Headers", corsHeaders)
			h.Set("Access-Control-Max-Age", corsMaxAge)
		}

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// isAllowedOrigin reports whether origin may call the API. No configured
// origins means any origin.
func (s *Server) isAllowedOrigin(origin string) bool {
	allowed := s.cfg.CORS.AllowedOrigins
	return len(allowed) == 0 || slices.Contains(allowed, "*") || slices.Contains(allowed, origin)
}

// authMiddleware validates the Bearer token and stores its claims in the context.
func (s *Server) authMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		claims, ok := s.verifyToken(w, bearerToken(r))
		if !ok {
			return
		}
		ctx := context.WithValue(r.Context(), ctxKeyClaims, claims)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// verifyToken parses token, writing the error response and returning false
// when it is missing or invalid.
func (s *Server) verifyToken(w http.ResponseWriter, token string) (*auth.CustomClaims, bool) {
	if s.secCfg.JWT.Secret == "" {
		writeError(w, http.StatusServiceUnavailable, "api tokens are not configured")
		return nil, false
	}
	if token == "" {
		writeError(w, http.StatusUnauthorized, "bearer token required")
		return nil, false
	}

	claims, err := auth.ParseToken(token, s.secCfg.JWT.Secret)
	switch {
	case errors.Is(err, auth.ErrTokenExpired):
		writeError(w, http.StatusUnauthorized, "token expired")
		return nil, false
	case err != nil:
		writeError(w, http.StatusUnauthorized, "invalid token")
		return nil, false
	}
	return claims, true
}

func bearerToken(r *http.Request) string {
	token, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
	if !ok {
		return ""
	}
	return token
}

// requirePermission rejects callers whose role lacks perm. Must run after authMiddleware.
func (s *Server) requirePermission(perm auth.Permission) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			claims := claimsFromContext(r.Context())
			if claims == nil || !auth.HasPermission(claims.Role, perm) {
				writeError(w, http.StatusForbidden, "insufficient permissions")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func claimsFromContext(ctx context.Context) *auth.CustomClaims {
	claims, _ := ctx.Value(ctxKeyClaims).(*auth.CustomClaims) //nolint:errcheck // nil when absent
	return claims
}

// statusWriter records the response status for the access log.
type statusWriter struct {
	http.ResponseWriter
	status int
	wrote  bool
}

func (w *statusWriter) WriteHeader(status int) {
	w.status = status
	w.wrote = true
	w.ResponseWriter.WriteHeader(status)
}

func (w *statusWriter) Write(b []byte) (int, error) {
	w.wrote = true
	return w.ResponseWriter.Write(b)
}

// Hijack lets the WebSocket upgrader take over the connection.
func (w *statusWriter) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	h, ok := w.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, errors.New("response writer does not support hijacking")
	}
	w.status = http.StatusSwitchingProtocols
	w.wrote = true
	return h.Hijack()
}

// Unwrap exposes the underlying writer to http.ResponseController.
func (w *statusWriter) Unwrap() http.ResponseWriter {
	return w.ResponseWriter
}
