package domain

// HandContains reports whether the hand holds the exact card.
func HandContains(hand []Card, card Card) bool {
	for _, c := range hand {
		if c == card {
			return true
		}
	}
	return false
}

// HasSuit reports whether the hand holds any card of the given suit.
func HasSuit(hand []Card, suit Suit) bool {
	for _, c := range hand {
		if c.Suit == suit {
			return true
		}
	}
	return false
}

// IsLegalPlay reports whether the card may be played onto the trick from the
// given hand: any card may lead, otherwise the led suit must be followed
// unless the hand is void in it.
func IsLegalPlay(hand []Card, trick []PlayedCard, card Card) bool {
	led, ok := LedSuit(trick)
	if !ok {
		return true
	}
	if card.Suit == led {
		return true
	}
	return !HasSuit(hand, led)
}

// LegalPlays returns the playable subset of the hand, in hand order.
func LegalPlays(hand []Card, trick []PlayedCard) []Card {
	var legal []Card
	for _, c := range hand {
		if IsLegalPlay(hand, trick, c) {
			legal = append(legal, c)
		}
	}
	return legal
}

// LowestCard returns the card with the lowest rank, preferring the first one
// encountered on ties so the choice is deterministic for a given hand order.
func LowestCard(cards []Card) Card {
	lowest := cards[0]
	for _, c := range cards[1:] {
		if c.Rank < lowest.Rank {
			lowest = c
		}
	}
	return lowest
}

// RemoveCard returns the hand without the first occurrence of the card and
// reports whether it was present.
func RemoveCard(hand []Card, card Card) ([]Card, bool) {
	for i, c := range hand {
		if c == card {
			out := make([]Card, 0, len(hand)-1)
			out = append(out, hand[:i]...)
			out = append(out, hand[i+1:]...)
			return out, true
		}
	}
	return hand, false
}
