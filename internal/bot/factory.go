package bot

import (
	"fmt"
	"math/rand"
	"time"
)

// BotLevel selects a strategy for a bot seat.
type BotLevel int

const (
	BotLevelEasy BotLevel = iota
	BotLevelNormal
)

// NewBrain creates a new AI brain based on the specified level.
func NewBrain(level BotLevel) (Brain, error) {
	switch level {
	case BotLevelEasy:
		return &RandomBot{Rng: rand.New(rand.NewSource(time.Now().UnixNano()))}, nil
	case BotLevelNormal:
		return &LowestBot{}, nil
	default:
		return nil, fmt.Errorf("unknown bot level: %d", level)
	}
}

// LevelFromDifficulty maps an identity difficulty string to a strategy
// level. Unknown strings fall back to normal.
func LevelFromDifficulty(difficulty string) BotLevel {
	switch difficulty {
	case "easy":
		return BotLevelEasy
	default:
		return BotLevelNormal
	}
}
