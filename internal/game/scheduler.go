package game

// gameOverLocked ends the current game. The game-over message follows the
// last scored result after the settle delay; the restart timer is armed as
// soon as that message is sent.
func (e *Engine) gameOverLocked(s *Session) {
	s.state = StateGameOver
	s.pendingChallenge = 0

	reason := ReasonMaxRounds
	if s.healthPoints <= 0 {
		reason = ReasonHPDepleted
	}

	e.logScoreboardLocked(s, "game over")
	e.finishLocked(s, reason)

	s.armTimerLocked(TimerSettle, e.rules.SettleDelay, e.alive, func() {
		if s.state != StateGameOver {
			return
		}
		e.publishLocked(s, e.topics.Result(s.deviceID), GameOverMessage{
			GameOver: true,
			HP:       s.healthPoints,
		})
		e.emitLocked(s, EventGameOver, reason, false)
		e.scheduleRestartLocked(s)
	})
}

// scheduleRestartLocked replaces any pending timer with the auto-restart timer.
func (e *Engine) scheduleRestartLocked(s *Session) {
	if !e.alive() {
		return
	}
	s.armTimerLocked(TimerRestart, e.rules.RestartDelay, e.alive, func() {
		if err := e.restartLocked(s, ReasonAuto); err != nil {
			e.logger.Warn("automatic restart failed", "device_id", s.deviceID, "error", err)
		}
	})
}

// restartLocked resets the game state and issues a new challenge. The
// sequence and last acknowledged sequence carry on. A restart that arrives
// within restartDebounce of a previous one, with nothing received since, is
// ignored so the device gets a single challenge.
func (e *Engine) restartLocked(s *Session, reason Reason) error {
	if s.state == StateTerminated {
		return ErrSessionTerminated
	}
	if !e.alive() {
		return ErrEngineClosed
	}

	now := e.now()
	if !s.restartedAt.IsZero() && now.Sub(s.restartedAt) < restartDebounce && s.timer.kind == TimerNone {
		e.logger.Debug("restart ignored, session already fresh", "device_id", s.deviceID, "reason", reason)
		return nil
	}

	if s.inProgressLocked() {
		e.finishLocked(s, reason)
	}

	s.cancelTimerLocked()
	s.healthPoints = e.rules.StartingHP
	s.currentRound = 0
	s.correctCount = 0
	s.incorrectCount = 0
	s.mismatchRetries = 0
	s.pendingChallenge = 0
	s.finished = false
	s.gamesPlayed++
	s.state = StateIdle
	s.restartedAt = now

	e.logger.Info("game restarted", "device_id", s.deviceID, "reason", reason)
	e.emitLocked(s, EventRestarted, reason, false)
	e.startRoundLocked(s)

	return nil
}
