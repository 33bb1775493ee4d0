package domain

// PlayedCard is a card on the table together with the seat that played it.
type PlayedCard struct {
	Seat int  `json:"seat"`
	Card Card `json:"card"`
}

// LedSuit returns the suit of the first card in the trick. The second return
// is false for an empty trick.
func LedSuit(trick []PlayedCard) (Suit, bool) {
	if len(trick) == 0 {
		return "", false
	}
	return trick[0].Card.Suit, true
}

// ResolveTrickWinner returns the seat holding the highest rank among cards of
// the led suit. Off-suit cards never win regardless of rank. Returns -1 for
// an empty trick.
func ResolveTrickWinner(trick []PlayedCard) int {
	led, ok := LedSuit(trick)
	if !ok {
		return -1
	}

	winner := -1
	best := Rank(0)
	for _, pc := range trick {
		if pc.Card.Suit != led {
			continue
		}
		if pc.Card.Rank > best {
			best = pc.Card.Rank
			winner = pc.Seat
		}
	}
	return winner
}

// SeatInTrick reports whether the given seat already has a card in the trick.
func SeatInTrick(trick []PlayedCard, seat int) bool {
	for _, pc := range trick {
		if pc.Seat == seat {
			return true
		}
	}
	return false
}
