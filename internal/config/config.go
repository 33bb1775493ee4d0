package config

import (
	"encoding/json"
	"fmt"
	"os"
	"sync"
)

type GameConfig struct {
	CardsPerHand        int `json:"cards_per_hand"`
	TargetScore         int `json:"target_score"`
	TurnDurationSeconds int `json:"turn_duration_seconds"`
	MinSeats            int `json:"min_seats"`
	MaxSeats            int `json:"max_seats"`
	// BotAutoFillDelaySeconds configures how many seconds to wait before adding a bot to a solo human lobby.
	BotAutoFillDelaySeconds int  `json:"bot_auto_fill_delay_seconds"`
	BotsEnabled             bool `json:"bots_enabled"`
}

var (
	cfg      *GameConfig
	loadOnce sync.Once
	loadErr  error
)

// LoadGameConfig loads the game configuration from the given path.
func LoadGameConfig(path string) error {
	loadOnce.Do(func() {
		data, err := os.ReadFile(path)
		if err != nil {
			loadErr = fmt.Errorf("failed to read game config: %w", err)
			return
		}

		var c GameConfig
		if err := json.Unmarshal(data, &c); err != nil {
			loadErr = fmt.Errorf("failed to unmarshal game config: %w", err)
			return
		}
		cfg = &c
	})
	return loadErr
}

// GetGameConfig returns the global game configuration.
func GetGameConfig() *GameConfig {
	return cfg
}

// GetCardsPerHand returns the configured hand size.
func GetCardsPerHand() int {
	if cfg == nil || cfg.CardsPerHand <= 0 {
		return 13 // Safe default
	}
	return cfg.CardsPerHand
}

// GetTargetScore returns the score that ends a game.
func GetTargetScore() int {
	if cfg == nil || cfg.TargetScore <= 0 {
		return 10
	}
	return cfg.TargetScore
}

// GetTurnDurationSeconds returns how long a seat may think before the
// auto-forfeit fires.
func GetTurnDurationSeconds() int {
	if cfg == nil || cfg.TurnDurationSeconds <= 0 {
		return 10
	}
	return cfg.TurnDurationSeconds
}

// GetBotAutoFillDelaySeconds returns the solo-lobby wait before bots join.
func GetBotAutoFillDelaySeconds() int {
	if cfg == nil || cfg.BotAutoFillDelaySeconds <= 0 {
		return 5
	}
	return cfg.BotAutoFillDelaySeconds
}

// BotsEnabled reports whether empty seats may be filled with bots.
func BotsEnabled() bool {
	if cfg == nil {
		return true
	}
	return cfg.BotsEnabled
}

// GetSeatBounds returns the allowed seat count range.
func GetSeatBounds() (min, max int) {
	min, max = 2, 4
	if cfg == nil {
		return min, max
	}
	if cfg.MinSeats >= 2 {
		min = cfg.MinSeats
	}
	if cfg.MaxSeats >= min && cfg.MaxSeats <= 4 {
		max = cfg.MaxSeats
	}
	return min, max
}
