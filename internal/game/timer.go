package game

import "time"

// TimerKind identifies the deferred action a session is waiting on.
type TimerKind int

const (
	TimerNone TimerKind = iota
	// TimerSettle fires the game-over message.
	TimerSettle
	// TimerRestart fires the automatic restart.
	TimerRestart
)

func (k TimerKind) String() string {
	switch k {
	case TimerSettle:
		return "settle"
	case TimerRestart:
		return "restart"
	default:
		return ""
	}
}

// deferred is a session's single pending timer slot.
//
// gen changes on every cancel, so a callback that already fired and is
// waiting for the session lock can tell it has been superseded.
type deferred struct {
	t    *time.Timer
	kind TimerKind
	gen  uint64
}

// cancelTimerLocked stops any pending timer. Must hold s.mu.
func (s *Session) cancelTimerLocked() {
	if s.timer.t != nil {
		s.timer.t.Stop()
	}
	s.timer.t = nil
	s.timer.kind = TimerNone
	s.timer.gen++
}

// armTimerLocked replaces the pending timer with one that runs fn under s.mu
// after d. fn is skipped if the timer was cancelled or replaced meanwhile, or
// if alive reports false when it fires. Must hold s.mu.
func (s *Session) armTimerLocked(kind TimerKind, d time.Duration, alive func() bool, fn func()) {
	s.cancelTimerLocked()
	gen := s.timer.gen

	s.timer.kind = kind
	s.timer.t = time.AfterFunc(d, func() {
		s.mu.Lock()
		defer s.mu.Unlock()

		if s.timer.gen != gen || s.timer.kind != kind {
			return
		}
		s.timer.t = nil
		s.timer.kind = TimerNone

		if alive != nil && !alive() {
			return
		}
		fn()
	})
}
