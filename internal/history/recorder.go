package history

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/nerrad567/guessfleet/internal/game"
)

// Logger defines the logging interface used by the recorder.
type Logger interface {
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

const (
	defaultQueueSize = 64
	writeTimeout     = 5 * time.Second
)

// Recorder is a game.Observer that persists every game_finished event.
//
// Notify never blocks: results are queued for a background writer and
// dropped with a warning when the queue is full.
type Recorder struct {
	repo   Repository
	logger Logger
	queue  chan Result

	dropped atomic.Uint64

	closeOnce sync.Once
	done      chan struct{}
	mu        sync.RWMutex
	closed    bool
}

// NewRecorder starts a recorder writing to repo. queueSize <= 0 selects a default.
func NewRecorder(repo Repository, queueSize int, logger Logger) *Recorder {
	if queueSize <= 0 {
		queueSize = defaultQueueSize
	}
	if logger == nil {
		logger = noopLogger{}
	}

	r := &Recorder{
		repo:   repo,
		logger: logger,
		queue:  make(chan Result, queueSize),
		done:   make(chan struct{}),
	}
	go r.run()
	return r
}

// Notify implements game.Observer.
func (r *Recorder) Notify(ev game.Event) {
	if ev.Type != game.EventGameFinished {
		return
	}

	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.closed {
		return
	}

	select {
	case r.queue <- resultFromEvent(ev):
	default:
		r.dropped.Add(1)
		r.logger.Warn("history queue full, dropping result", "device_id", ev.DeviceID)
	}
}

// Dropped returns how many results were discarded because the queue was full.
func (r *Recorder) Dropped() uint64 {
	return r.dropped.Load()
}

// Close stops accepting results and waits for queued ones to be written.
func (r *Recorder) Close() {
	r.closeOnce.Do(func() {
		r.mu.Lock()
		r.closed = true
		close(r.queue)
		r.mu.Unlock()
		<-r.done
	})
}

func (r *Recorder) run() {
	defer close(r.done)
	for res := range r.queue {
		ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
		if err := r.repo.Create(ctx, &res); err != nil {
			r.logger.Error("recording game result failed", "device_id", res.DeviceID, "error", err)
		}
		cancel()
	}
}

func resultFromEvent(ev game.Event) Result {
	s := ev.Session
	return Result{
		DeviceID:     ev.DeviceID,
		DisplayName:  s.DisplayName,
		Reason:       string(ev.Reason),
		FinalHP:      s.HealthPoints,
		RoundsPlayed: s.Correct + s.Incorrect,
		Correct:      s.Correct,
		Incorrect:    s.Incorrect,
		LastSequence: s.Sequence,
		FinishedAt:   ev.Time.UTC(),
	}
}
