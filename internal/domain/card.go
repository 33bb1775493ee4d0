package domain

import "strconv"

// Suit is a single-letter suit code, matching the wire representation.
type Suit string

const (
	Spades   Suit = "S"
	Hearts   Suit = "H"
	Diamonds Suit = "D"
	Clubs    Suit = "C"
)

// Suits lists the four suits in deck order.
var Suits = []Suit{Spades, Hearts, Diamonds, Clubs}

// Rank is the face value of a card. Aces are high.
type Rank int

const (
	MinRank Rank = 2
	Jack    Rank = 11
	Queen   Rank = 12
	King    Rank = 13
	Ace     Rank = 14
	MaxRank      = Ace
)

// Card is a single playing card.
type Card struct {
	Suit Suit `json:"suit"`
	Rank Rank `json:"rank"`
}

// Valid reports whether the card names a real suit and rank.
func (c Card) Valid() bool {
	switch c.Suit {
	case Spades, Hearts, Diamonds, Clubs:
		return c.Rank >= MinRank && c.Rank <= MaxRank
	}
	return false
}

// String renders the card as rank then suit, e.g. "7H" or "AS".
func (c Card) String() string {
	return c.Rank.String() + string(c.Suit)
}

func (r Rank) String() string {
	switch r {
	case Jack:
		return "J"
	case Queen:
		return "Q"
	case King:
		return "K"
	case Ace:
		return "A"
	default:
		return strconv.Itoa(int(r))
	}
}
