package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/nerrad567/guessfleet/internal/coordinator"
	"github.com/nerrad567/guessfleet/internal/game"
	"github.com/nerrad567/guessfleet/internal/history"
	"github.com/nerrad567/guessfleet/internal/infrastructure/config"
	"github.com/nerrad567/guessfleet/internal/infrastructure/logging"
)

// gracefulShutdownTimeout is the maximum time to wait for in-flight requests
// to complete during shutdown.
const gracefulShutdownTimeout = 10 * time.Second

// HealthCheck reports whether a dependency is usable.
type HealthCheck func(ctx context.Context) error

// StatsProvider exposes fleet traffic counters. *coordinator.Coordinator satisfies it.
type StatsProvider interface {
	Stats() coordinator.Stats
}

// DropCounter is a bounded queue that counts what it had to discard.
// *mqtt.AsyncPublisher and *history.Recorder satisfy it.
type DropCounter interface {
	Dropped() uint64
}

// Deps holds the dependencies required by the API server.
type Deps struct {
	Config   config.APIConfig
	WS       config.WebSocketConfig
	Security config.SecurityConfig
	Logger   *logging.Logger
	Engine   *game.Engine

	// History is optional; /history returns 503 without it.
	History history.Repository
	// Stats is optional.
	Stats StatsProvider
	// Checks are run by /health, keyed by component name.
	Checks map[string]HealthCheck
	// Queues are reported by /metrics, keyed by name.
	Queues map[string]DropCounter
	// Hub, if set, is used instead of creating one. It must already be
	// registered as an engine observer.
	Hub *Hub

	Version string
}

// Server is the scoreboard HTTP server.
type Server struct {
	cfg       config.APIConfig
	wsCfg     config.WebSocketConfig
	secCfg    config.SecurityConfig
	logger    *logging.Logger
	engine    *game.Engine
	history   history.Repository
	stats     StatsProvider
	checks    map[string]HealthCheck
	queues    map[string]DropCounter
	version   string
	startTime time.Time

	server *http.Server
	hub    *Hub
	cancel context.CancelFunc
}

// New creates an API server. It is not listening until Start is called.
func New(deps Deps) (*Server, error) {
	if deps.Logger == nil {
		return nil, fmt.Errorf("logger is required")
	}
	if deps.Engine == nil {
		return nil, fmt.Errorf("game engine is required")
	}

	s := &Server{
		cfg:       deps.Config,
		wsCfg:     deps.WS,
		secCfg:    deps.Security,
		logger:    deps.Logger,
		engine:    deps.Engine,
		history:   deps.History,
		stats:     deps.Stats,
		checks:    deps.Checks,
		queues:    deps.Queues,
		version:   deps.Version,
		startTime: time.Now(),
		hub:       deps.Hub,
	}
	if s.hub == nil {
		s.hub = NewHub(deps.WS, deps.Logger)
		deps.Engine.AddObserver(s.hub)
	}
	if s.hub.sessions == nil {
		registry := deps.Engine.Registry()
		s.hub.sessions = func(deviceID string) (game.Snapshot, bool) {
			session, ok := registry.Lookup(deviceID)
			if !ok {
				return game.Snapshot{}, false
			}
			return session.Snapshot(), true
		}
	}

	return s, nil
}

// Hub returns the server's WebSocket hub.
func (s *Server) Hub() *Hub {
	return s.hub
}

// Handler returns the router. Exposed for httptest.
func (s *Server) Handler() http.Handler {
	return s.buildRouter()
}

// Start launches the HTTP listener in a background goroutine.
func (s *Server) Start(ctx context.Context) error {
	var srvCtx context.Context
	srvCtx, s.cancel = context.WithCancel(ctx)
	go s.hub.Run(srvCtx)

	read, write, idle := s.cfg.Timeouts.Durations()
	s.server = &http.Server{
		Addr:              fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port),
		Handler:           s.buildRouter(),
		ReadTimeout:       read,
		ReadHeaderTimeout: read,
		WriteTimeout:      write,
		IdleTimeout:       idle,
	}

	go func() {
		s.logger.Info("API server starting", "address", s.server.Addr)
		if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("API server error", "error", err)
		}
	}()

	return nil
}

// Close gracefully shuts down the API server.
func (s *Server) Close() error {
	if s.server == nil {
		return nil
	}

	if s.cancel != nil {
		s.cancel()
	}

	ctx, cancel := context.WithTimeout(context.Background(), gracefulShutdownTimeout)
	defer cancel()

	s.logger.Info("API server shutting down")
	if err := s.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutting down API server: %w", err)
	}
	return nil
}

// HealthCheck verifies the API server is running.
func (s *Server) HealthCheck(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return fmt.Errorf("api health check: %w", ctx.Err())
	default:
	}

	if s.server == nil {
		return fmt.Errorf("api server not started")
	}
	return nil
}
