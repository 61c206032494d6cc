package game

// Result strings sent to devices.
const (
	ResultCorrect   = "nice"
	ResultIncorrect = "nope"
)

// ChallengeMessage is published on <root>/<id>/random. The secret value is never sent.
type ChallengeMessage struct {
	Min      int `json:"min"`
	Max      int `json:"max"`
	HP       int `json:"hp"`
	Round    int `json:"round"`
	Sequence int `json:"sequence"`
}

// ResultMessage is published on <root>/<id>/result after each scored guess.
type ResultMessage struct {
	Result   string `json:"result"`
	HP       int    `json:"hp"`
	Sequence int    `json:"sequence"`
}

// GameOverMessage is published on <root>/<id>/result once per finished game.
type GameOverMessage struct {
	GameOver bool `json:"gameOver"`
	HP       int  `json:"hp"`
}
