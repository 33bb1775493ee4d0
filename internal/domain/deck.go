package domain

import "math/rand"

// DeckSize is the number of cards in a full deck.
const DeckSize = 52

// NewDeck returns the ordered 52-card deck.
func NewDeck() []Card {
	deck := make([]Card, 0, DeckSize)
	for _, s := range Suits {
		for r := MinRank; r <= MaxRank; r++ {
			deck = append(deck, Card{Suit: s, Rank: r})
		}
	}
	return deck
}

// ShuffleDeck returns a seeded Fisher-Yates permutation of the given deck.
// The input is not modified. The same seed always yields the same order, so
// a deal can be reproduced from its DealSeed when debugging.
func ShuffleDeck(deck []Card, seed int64) []Card {
	out := make([]Card, len(deck))
	copy(out, deck)
	rng := rand.New(rand.NewSource(seed))
	rng.Shuffle(len(out), func(i, j int) { out[i], out[j] = out[j], out[i] })
	return out
}

// Deal removes cardsPerHand cards from the front of the deck for each seat,
// in seat order. Peers receive these materialized hands over the wire rather
// than re-deriving them from the seed, so peers with a different RNG or a
// late join still converge on identical hands.
func Deal(deck []Card, seatCount, cardsPerHand int) map[int][]Card {
	hands := make(map[int][]Card, seatCount)
	idx := 0
	for seat := 0; seat < seatCount; seat++ {
		hand := make([]Card, cardsPerHand)
		copy(hand, deck[idx:idx+cardsPerHand])
		hands[seat] = hand
		idx += cardsPerHand
	}
	return hands
}
