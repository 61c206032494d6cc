package game

import (
	"fmt"
	"time"
)

// startRoundLocked issues the next challenge, or ends the game when HP is
// exhausted or the round limit is reached. Every call that issues a
// challenge advances the sequence.
func (e *Engine) startRoundLocked(s *Session) {
	if s.state == StateTerminated || !e.alive() {
		return
	}
	if s.healthPoints <= 0 || s.currentRound >= e.rules.MaxRounds {
		e.gameOverLocked(s)
		return
	}

	s.pendingChallenge = e.pick(ChallengeMin, ChallengeMax)
	s.sequence++
	s.state = StateAwaitingResponse

	e.publishLocked(s, e.topics.Challenge(s.deviceID), ChallengeMessage{
		Min:      ChallengeMin,
		Max:      ChallengeMax,
		HP:       s.healthPoints,
		Round:    s.currentRound + 1,
		Sequence: s.sequence,
	})

	e.logger.Debug("challenge issued",
		"device_id", s.deviceID,
		"round", s.currentRound+1,
		"sequence", s.sequence,
		"hp", s.healthPoints,
	)
	e.emitLocked(s, EventChallengeIssued, "", false)
}

// ReceiveAck records that the device saw a challenge. It has no effect on the game.
func (e *Engine) ReceiveAck(deviceID string, sequence int) error {
	s, ok := e.registry.Lookup(deviceID)
	if !ok {
		return ErrUnknownDevice
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state == StateTerminated {
		return ErrSessionTerminated
	}

	s.lastAckSequence = sequence
	e.logger.Debug("challenge acknowledged", "device_id", deviceID, "sequence", sequence, "current", s.sequence)
	e.emitLocked(s, EventAck, "", false)

	return nil
}

// ReceiveGuess scores a guess for the outstanding challenge.
//
// A guess carrying a stale sequence causes the challenge to be reissued under
// a new sequence, up to MaxRetries consecutive times; one more mismatch forces
// a restart. Neither path touches the score. An on-sequence guess outside the
// challenge range returns ErrMalformedGuess and is otherwise ignored.
func (e *Engine) ReceiveGuess(deviceID string, guess, sequence int) error {
	s, ok := e.registry.Lookup(deviceID)
	if !ok {
		return ErrUnknownDevice
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	switch s.state {
	case StateTerminated:
		return ErrSessionTerminated
	case StateGameOver:
		return ErrGameOver
	}
	if !e.alive() {
		return ErrEngineClosed
	}

	s.restartedAt = time.Time{}

	if sequence != s.sequence {
		e.handleMismatchLocked(s, sequence)
		return nil
	}

	s.mismatchRetries = 0

	if !ValidGuess(guess) {
		return fmt.Errorf("%w: %d not in [%d, %d]", ErrMalformedGuess, guess, ChallengeMin, ChallengeMax)
	}

	correct := guess == s.pendingChallenge
	result := ResultIncorrect
	if correct {
		s.correctCount++
		result = ResultCorrect
	} else {
		s.incorrectCount++
		s.healthPoints = max(0, s.healthPoints-e.rules.HPDeduction)
	}

	e.publishLocked(s, e.topics.Result(s.deviceID), ResultMessage{
		Result:   result,
		HP:       s.healthPoints,
		Sequence: s.sequence,
	})

	e.logger.Info("guess scored",
		"device_id", s.deviceID,
		"round", s.currentRound+1,
		"correct", correct,
		"hp", s.healthPoints,
	)
	e.emitLocked(s, EventGuessScored, "", correct)

	s.pendingChallenge = 0
	s.currentRound++
	e.startRoundLocked(s)

	return nil
}

func (e *Engine) handleMismatchLocked(s *Session, got int) {
	want := s.sequence

	if s.mismatchRetries < e.rules.MaxRetries {
		s.mismatchRetries++
		e.logger.Warn("sequence mismatch, resending challenge",
			"device_id", s.deviceID,
			"got", got,
			"want", want,
			"retry", s.mismatchRetries,
			"error", ErrSequenceMismatch,
		)
		e.emitLocked(s, EventSequenceMismatch, "", false)
		e.startRoundLocked(s)
		return
	}

	e.logger.Error("sequence correlation failed, forcing restart",
		"device_id", s.deviceID,
		"got", got,
		"want", want,
		"retries", s.mismatchRetries,
		"error", ErrRetryExhausted,
	)
	if err := e.restartLocked(s, ReasonRetryExhausted); err != nil {
		e.logger.Warn("forced restart failed", "device_id", s.deviceID, "error", err)
	}
}
