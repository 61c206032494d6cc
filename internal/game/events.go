package game

import "time"

// EventType names a session transition.
type EventType string

const (
	EventConnected        EventType = "connected"
	EventChallengeIssued  EventType = "challenge_issued"
	EventAck              EventType = "ack"
	EventGuessScored      EventType = "guess_scored"
	EventSequenceMismatch EventType = "sequence_mismatch"
	EventGameOver         EventType = "game_over"
	EventRestarted        EventType = "restarted"
	EventDisconnected     EventType = "disconnected"

	// EventGameFinished is emitted exactly once per game, when it ends for any reason.
	EventGameFinished EventType = "game_finished"
)

// Reason explains a restart or the end of a game.
type Reason string

const (
	ReasonAuto           Reason = "auto"
	ReasonDeviceRequest  Reason = "device_request"
	ReasonRetryExhausted Reason = "retry_exhausted"
	ReasonReconnect      Reason = "reconnect"
	ReasonOperator       Reason = "operator"

	ReasonHPDepleted   Reason = "hp_depleted"
	ReasonMaxRounds    Reason = "max_rounds"
	ReasonDisconnected Reason = "disconnected"
)

// Event describes one transition of one session.
type Event struct {
	Type     EventType `json:"type"`
	DeviceID string    `json:"device_id"`
	Session  Snapshot  `json:"session"`
	Reason   Reason    `json:"reason,omitempty"`
	// Correct is meaningful for EventGuessScored only.
	Correct bool      `json:"correct,omitempty"`
	Time    time.Time `json:"time"`
}

// Observer receives session events. Notify is called with the session lock
// held and must not block or call back into the Engine.
type Observer interface {
	Notify(Event)
}

// ObserverFunc adapts a function to Observer.
type ObserverFunc func(Event)

// Notify calls f(ev).
func (f ObserverFunc) Notify(ev Event) { f(ev) }
