package api

import (
	"context"
	"net/http"
	"runtime"
	"time"

	"github.com/nerrad567/guessfleet/internal/coordinator"
)

// healthCheckTimeout bounds each component check run by /health.
const healthCheckTimeout = 2 * time.Second

// SystemMetrics is the /metrics response.
type SystemMetrics struct {
	Timestamp     string                  `json:"timestamp"`
	Version       string                  `json:"version"`
	UptimeSeconds int64                   `json:"uptime_seconds"`
	Runtime       RuntimeMetrics          `json:"runtime"`
	WebSocket     WSMetrics               `json:"websocket"`
	Sessions      SessionMetrics          `json:"sessions"`
	Fleet         *coordinator.Stats      `json:"fleet,omitempty"`
	Queues        map[string]QueueMetrics `json:"queues"`
}

// QueueMetrics reports losses in one bounded queue. Failed is set for queues
// that also count delivery failures.
type QueueMetrics struct {
	Dropped uint64  `json:"dropped"`
	Failed  *uint64 `json:"failed,omitempty"`
}

// RuntimeMetrics contains Go runtime statistics.
type RuntimeMetrics struct {
	Goroutines    int     `json:"goroutines"`
	MemoryAllocMB float64 `json:"memory_alloc_mb"`
	NumGC         uint32  `json:"num_gc"`
}

// WSMetrics contains scoreboard feed statistics.
type WSMetrics struct {
	Feeds   int    `json:"feeds"`
	Dropped uint64 `json:"dropped"`
}

// SessionMetrics counts sessions by state.
type SessionMetrics struct {
	Total   int            `json:"total"`
	ByState map[string]int `json:"by_state"`
}

// handleMetrics returns runtime and fleet counters.
func (s *Server) handleMetrics(w http.ResponseWriter, _ *http.Request) {
	var memStats runtime.MemStats
	runtime.ReadMemStats(&memStats)

	metrics := SystemMetrics{
		Timestamp:     time.Now().UTC().Format(time.RFC3339),
		Version:       s.version,
		UptimeSeconds: int64(time.Since(s.startTime).Seconds()),
		Runtime: RuntimeMetrics{
			Goroutines:    runtime.NumGoroutine(),
			MemoryAllocMB: float64(memStats.Alloc) / 1024 / 1024,
			NumGC:         memStats.NumGC,
		},
		WebSocket: WSMetrics{Feeds: s.hub.Feeds(), Dropped: s.hub.Dropped()},
		Sessions:  SessionMetrics{ByState: make(map[string]int)},
		Queues:    make(map[string]QueueMetrics, len(s.queues)),
	}

	for name, q := range s.queues {
		qm := QueueMetrics{Dropped: q.Dropped()}
		if f, ok := q.(interface{ Failed() uint64 }); ok {
			failed := f.Failed()
			qm.Failed = &failed
		}
		metrics.Queues[name] = qm
	}

	for _, snap := range s.engine.Registry().Snapshots() {
		metrics.Sessions.Total++
		metrics.Sessions.ByState[snap.State.String()]++
	}

	if s.stats != nil {
		st := s.stats.Stats()
		metrics.Fleet = &st
	}

	writeJSON(w, http.StatusOK, metrics)
}

// handleHealth runs every registered component check.
// Any failing component turns the status to "degraded" with a 503.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	components := make(map[string]string, len(s.checks))
	healthy := true

	for name, check := range s.checks {
		ctx, cancel := context.WithTimeout(r.Context(), healthCheckTimeout)
		err := check(ctx)
		cancel()

		if err != nil {
			healthy = false
			components[name] = err.Error()
			continue
		}
		components[name] = "ok"
	}

	status, code := "ok", http.StatusOK
	if !healthy {
		status, code = "degraded", http.StatusServiceUnavailable
	}

	writeJSON(w, code, map[string]any{
		"status":     status,
		"version":    s.version,
		"sessions":   s.engine.Registry().Len(),
		"components": components,
	})
}
