package game

import (
	"time"

	"github.com/nerrad567/guessfleet/internal/infrastructure/config"
)

// Challenge values are drawn from this inclusive range.
const (
	ChallengeMin = 1
	ChallengeMax = 3
)

// restartDebounce is how long after a restart a second restart request is ignored.
const restartDebounce = time.Second

// Rules holds the tunable parameters of a game.
type Rules struct {
	StartingHP   int
	MaxRounds    int
	HPDeduction  int
	MaxRetries   int
	SettleDelay  time.Duration
	RestartDelay time.Duration
}

// DefaultRules returns five HP, ten rounds, one HP per miss, three resends,
// a two second settle delay and a five second restart delay.
func DefaultRules() Rules {
	return Rules{
		StartingHP:   5,
		MaxRounds:    10,
		HPDeduction:  1,
		MaxRetries:   3,
		SettleDelay:  2 * time.Second,
		RestartDelay: 5 * time.Second,
	}
}

// RulesFromConfig builds Rules from the game section of the configuration.
func RulesFromConfig(cfg config.GameConfig) Rules {
	return Rules{
		StartingHP:   cfg.StartingHP,
		MaxRounds:    cfg.MaxRounds,
		HPDeduction:  cfg.HPDeduction,
		MaxRetries:   cfg.MaxRetries,
		SettleDelay:  cfg.SettleDelay,
		RestartDelay: cfg.RestartDelay,
	}
}

// ValidGuess reports whether guess lies in the challenge range.
func ValidGuess(guess int) bool {
	return guess >= ChallengeMin && guess <= ChallengeMax
}
