// Package api implements the scoreboard HTTP API and WebSocket feed.
//
// Endpoints under /api/v1:
//   - GET  /health                 component health and version
//   - GET  /metrics                runtime, feed, queue and fleet counters
//   - GET  /sessions               live session snapshots (session:read)
//   - GET  /sessions/{id}          one session (session:read)
//   - POST /sessions/{id}/restart  operator restart (session:restart)
//   - GET  /history                finished games, paged (history:read)
//   - GET  /history/{id}           one finished game (history:read)
//   - GET  /ws                     scoreboard feed (session:read)
//
// Protected routes take a Bearer token; /ws also accepts ?token=.
//
// Feed clients subscribe to channels named "session.<event>[:<device_id>]",
// for example "session.guess_scored" or "session.*:a4:cf:12:00:00:01". The
// Hub is a game.Observer, so every engine event is offered to matching feeds
// without blocking the engine.
package api
