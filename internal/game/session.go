package game

import (
	"fmt"
	"sync"
	"time"
)

// State is the externally visible phase of a session.
type State int

const (
	StateIdle State = iota
	StateAwaitingResponse
	StateGameOver
	StateTerminated
)

var stateNames = [...]string{
	StateIdle:             "idle",
	StateAwaitingResponse: "awaiting_response",
	StateGameOver:         "game_over",
	StateTerminated:       "terminated",
}

func (s State) String() string {
	if s >= 0 && int(s) < len(stateNames) {
		return stateNames[s]
	}
	return "unknown"
}

// MarshalText encodes the state by name.
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText decodes a state name produced by MarshalText.
func (s *State) UnmarshalText(text []byte) error {
	for i, name := range stateNames {
		if name == string(text) {
			*s = State(i)
			return nil
		}
	}
	return fmt.Errorf("game: unknown state %q", text)
}

// Session is the coordinator's record of one device.
//
// All fields are guarded by mu. Sessions are owned by the Registry and only
// mutated by Engine operations and timer callbacks.
type Session struct {
	mu sync.Mutex

	deviceID    string
	displayName string

	healthPoints   int
	currentRound   int
	correctCount   int
	incorrectCount int

	// pendingChallenge is the secret value of the outstanding round, 0 when none.
	pendingChallenge int
	sequence         int
	lastAckSequence  int
	mismatchRetries  int

	state State
	timer deferred

	// restartedAt is set by a restart and cleared by the next response.
	restartedAt time.Time
	// finished is set once the current game has been reported as finished.
	finished bool

	gamesPlayed int
	connectedAt time.Time
	updatedAt   time.Time
}

func newSession(deviceID, displayName string, healthPoints int, now time.Time) *Session {
	return &Session{
		deviceID:        deviceID,
		displayName:     displayName,
		healthPoints:    healthPoints,
		lastAckSequence: -1,
		state:           StateIdle,
		connectedAt:     now,
		updatedAt:       now,
	}
}

// DeviceID returns the session's registry key.
func (s *Session) DeviceID() string {
	return s.deviceID
}

// Snapshot is a point-in-time copy of a session, safe to hand to other goroutines.
// It never contains the secret challenge value.
type Snapshot struct {
	DeviceID        string    `json:"device_id"`
	DisplayName     string    `json:"display_name"`
	State           State     `json:"state"`
	HealthPoints    int       `json:"hp"`
	Round           int       `json:"round"`
	Correct         int       `json:"correct"`
	Incorrect       int       `json:"incorrect"`
	Sequence        int       `json:"sequence"`
	LastAckSequence int       `json:"last_ack_sequence"`
	MismatchRetries int       `json:"mismatch_retries"`
	PendingTimer    string    `json:"pending_timer,omitempty"`
	GamesPlayed     int       `json:"games_played"`
	ConnectedAt     time.Time `json:"connected_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// Snapshot returns a copy of the session's current state.
func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

func (s *Session) snapshotLocked() Snapshot {
	return Snapshot{
		DeviceID:        s.deviceID,
		DisplayName:     s.displayName,
		State:           s.state,
		HealthPoints:    s.healthPoints,
		Round:           s.currentRound,
		Correct:         s.correctCount,
		Incorrect:       s.incorrectCount,
		Sequence:        s.sequence,
		LastAckSequence: s.lastAckSequence,
		MismatchRetries: s.mismatchRetries,
		PendingTimer:    s.timer.kind.String(),
		GamesPlayed:     s.gamesPlayed,
		ConnectedAt:     s.connectedAt,
		UpdatedAt:       s.updatedAt,
	}
}

// inProgressLocked reports whether the current game has anything worth recording.
func (s *Session) inProgressLocked() bool {
	return !s.finished && (s.currentRound > 0 || s.correctCount > 0 || s.incorrectCount > 0)
}
