package game

import "errors"

// Domain errors for the game package. Check with errors.Is.
var (
	// ErrUnknownDevice is returned when a message references a device with no session.
	ErrUnknownDevice = errors.New("game: unknown device")

	// ErrDuplicateDevice is returned by Registry.Create for a live session.
	// The engine turns it into an implicit restart.
	ErrDuplicateDevice = errors.New("game: device already connected")

	// ErrSequenceMismatch marks a response whose sequence is not the outstanding one.
	// It drives the resend path and is only reported through logs and events.
	ErrSequenceMismatch = errors.New("game: sequence mismatch")

	// ErrMalformedGuess is returned for an on-sequence guess outside the challenge range.
	ErrMalformedGuess = errors.New("game: guess out of range")

	// ErrRetryExhausted marks a forced restart after too many consecutive mismatches.
	ErrRetryExhausted = errors.New("game: sequence retries exhausted")

	// ErrSessionTerminated is returned for messages to a disconnected device.
	ErrSessionTerminated = errors.New("game: session terminated")

	// ErrGameOver is returned for responses that arrive while a finished game
	// waits for its restart.
	ErrGameOver = errors.New("game: game over, awaiting restart")

	// ErrEngineClosed is returned after Shutdown.
	ErrEngineClosed = errors.New("game: engine shut down")
)
