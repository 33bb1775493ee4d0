package bot

import (
	"errors"
	"math/rand"

	"whist/internal/domain"
)

var ErrNoLegalCard = errors.New("no legal card to play")

// LowestBot always plays the lowest legal card. It is also the policy used
// when a present human runs out of time, so its choice must stay
// deterministic.
type LowestBot struct{}

func (b *LowestBot) ChooseCard(game *domain.Game, seat int) (domain.Card, error) {
	legal := domain.LegalPlays(game.Hands[seat], game.Trick)
	if len(legal) == 0 {
		return domain.Card{}, ErrNoLegalCard
	}
	return domain.LowestCard(legal), nil
}

// RandomBot plays a uniformly random legal card.
type RandomBot struct {
	Rng *rand.Rand
}

func (b *RandomBot) ChooseCard(game *domain.Game, seat int) (domain.Card, error) {
	legal := domain.LegalPlays(game.Hands[seat], game.Trick)
	if len(legal) == 0 {
		return domain.Card{}, ErrNoLegalCard
	}
	if b.Rng == nil {
		return legal[0], nil
	}
	return legal[b.Rng.Intn(len(legal))], nil
}
