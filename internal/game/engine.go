package game

import (
	"encoding/json"
	"errors"
	"math/rand/v2"
	"sync"
	"sync/atomic"
	"time"

	"github.com/nerrad567/guessfleet/internal/infrastructure/mqtt"
)

// Logger defines the logging interface used by the engine.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Publisher enqueues an outbound message. It must not block on the network.
// mqtt.AsyncPublisher satisfies it.
type Publisher interface {
	Enqueue(topic string, payload []byte) error
}

// Picker draws the secret value for a round from [lo, hi].
type Picker func(lo, hi int) int

func randomPick(lo, hi int) int {
	return lo + rand.IntN(hi-lo+1) //nolint:gosec // game value, not a secret
}

// Engine runs the game for every registered device.
type Engine struct {
	rules    Rules
	topics   mqtt.Topics
	pub      Publisher
	registry *Registry
	logger   Logger
	pick     Picker
	now      func() time.Time

	observers   []Observer
	observersMu sync.RWMutex

	closed atomic.Bool
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the engine and registry logger.
func WithLogger(logger Logger) Option {
	return func(e *Engine) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// WithPicker replaces the random challenge source.
func WithPicker(p Picker) Option {
	return func(e *Engine) {
		if p != nil {
			e.pick = p
		}
	}
}

// WithObserver registers an observer at construction.
func WithObserver(o Observer) Option {
	return func(e *Engine) {
		if o != nil {
			e.observers = append(e.observers, o)
		}
	}
}

// WithClock replaces time.Now for timestamps and restart debouncing.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) {
		if now != nil {
			e.now = now
		}
	}
}

// NewEngine creates an engine publishing through pub and subscribing device
// response topics through sub.
func NewEngine(rules Rules, topics mqtt.Topics, pub Publisher, sub Subscriber, opts ...Option) *Engine {
	e := &Engine{
		rules:  rules,
		topics: topics,
		pub:    pub,
		logger: noopLogger{},
		pick:   randomPick,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}

	e.registry = NewRegistry(sub, e.logger)
	e.registry.now = e.now

	return e
}

// Registry returns the engine's session registry.
func (e *Engine) Registry() *Registry {
	return e.registry
}

// Rules returns the rules the engine was built with.
func (e *Engine) Rules() Rules {
	return e.rules
}

// AddObserver registers an observer. Intended to be called during startup.
func (e *Engine) AddObserver(o Observer) {
	e.observersMu.Lock()
	e.observers = append(e.observers, o)
	e.observersMu.Unlock()
}

// Connect creates a session for a newly announced device and issues its first
// challenge. healthPoints <= 0 selects the configured starting HP.
//
// A connect for a device that already has a live session restarts it.
func (e *Engine) Connect(deviceID, displayName string, healthPoints int) error {
	if e.closed.Load() {
		return ErrEngineClosed
	}
	if healthPoints <= 0 {
		healthPoints = e.rules.StartingHP
	}

	s, err := e.registry.createLocked(deviceID, displayName, healthPoints)
	if errors.Is(err, ErrDuplicateDevice) {
		return e.reconnect(s, displayName, healthPoints)
	}
	if err != nil {
		return err
	}
	defer s.mu.Unlock()

	s.gamesPlayed = 1
	e.logger.Info("device connected", "device_id", deviceID, "name", displayName, "hp", healthPoints)
	e.emitLocked(s, EventConnected, "", false)
	e.startRoundLocked(s)

	return nil
}

// reconnect handles a connect for a device whose session is still live. A
// non-empty name replaces the display name; the game restarts on the
// configured starting HP.
func (e *Engine) reconnect(s *Session, displayName string, healthPoints int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if displayName != "" {
		s.displayName = displayName
	}
	e.logger.Info("device reconnected with live session, restarting",
		"device_id", s.deviceID,
		"name", s.displayName,
		"announced_hp", healthPoints,
		"starting_hp", e.rules.StartingHP,
	)
	return e.restartLocked(s, ReasonReconnect)
}

// Disconnect terminates the device's session and logs its scoreboard.
func (e *Engine) Disconnect(deviceID string) error {
	s, err := e.registry.Remove(deviceID)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	e.logScoreboardLocked(s, "device disconnected")
	if s.inProgressLocked() {
		e.finishLocked(s, ReasonDisconnected)
	}
	e.emitLocked(s, EventDisconnected, "", false)

	return nil
}

// Restart resets the device's game and issues a new challenge.
func (e *Engine) Restart(deviceID string, reason Reason) error {
	if e.closed.Load() {
		return ErrEngineClosed
	}

	s, ok := e.registry.Lookup(deviceID)
	if !ok {
		return ErrUnknownDevice
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	return e.restartLocked(s, reason)
}

// Shutdown cancels every pending timer and rejects further operations that
// would start new rounds. Timer callbacks that race with it become no-ops.
func (e *Engine) Shutdown() {
	if e.closed.Swap(true) {
		return
	}

	for _, s := range e.registry.Sessions() {
		s.mu.Lock()
		s.cancelTimerLocked()
		s.mu.Unlock()
	}
	e.logger.Info("game engine shut down", "sessions", e.registry.Len())
}

func (e *Engine) alive() bool {
	return !e.closed.Load()
}

// publishLocked marshals v and hands it to the publisher. Failures are logged.
func (e *Engine) publishLocked(s *Session, topic string, v any) {
	payload, err := json.Marshal(v)
	if err != nil {
		e.logger.Error("encoding outbound message", "device_id", s.deviceID, "topic", topic, "error", err)
		return
	}
	if err := e.pub.Enqueue(topic, payload); err != nil {
		e.logger.Warn("publishing to device", "device_id", s.deviceID, "topic", topic, "error", err)
	}
}

func (e *Engine) emitLocked(s *Session, typ EventType, reason Reason, correct bool) {
	now := e.now()
	s.updatedAt = now

	e.observersMu.RLock()
	observers := e.observers
	e.observersMu.RUnlock()
	if len(observers) == 0 {
		return
	}

	ev := Event{
		Type:     typ,
		DeviceID: s.deviceID,
		Session:  s.snapshotLocked(),
		Reason:   reason,
		Correct:  correct,
		Time:     now,
	}
	for _, o := range observers {
		o.Notify(ev)
	}
}

// finishLocked reports the end of the current game exactly once.
func (e *Engine) finishLocked(s *Session, reason Reason) {
	if s.finished {
		return
	}
	s.finished = true
	e.emitLocked(s, EventGameFinished, reason, false)
}

func (e *Engine) logScoreboardLocked(s *Session, msg string) {
	e.logger.Info(msg,
		"device_id", s.deviceID,
		"name", s.displayName,
		"correct", s.correctCount,
		"incorrect", s.incorrectCount,
		"hp", s.healthPoints,
		"round", s.currentRound,
	)
}
