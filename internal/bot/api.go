package bot

import (
	"whist/internal/domain"
)

// Brain is the interface that all bot strategies must implement.
type Brain interface {
	ChooseCard(game *domain.Game, seat int) (domain.Card, error)
}
