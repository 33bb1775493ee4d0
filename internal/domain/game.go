package domain

// Phase represents the lifecycle stage of a game in play.
type Phase string

const (
	// PhaseTurn means the seat at CurrentTurn may play a card.
	PhaseTurn Phase = "turn"
	// PhaseEndOfRound is the display pause after a trick resolves; no plays
	// are accepted until the pause expires.
	PhaseEndOfRound Phase = "end_of_round"
	// PhaseEnded means a seat reached the target score and the game is over.
	PhaseEnded Phase = "ended"
)

// Game holds the replicated state for one trick-taking game. The seat order
// is frozen when the game is created and never recomputed from a live
// participant collection; seat indexes are the identities everything else
// keys on.
type Game struct {
	Phase Phase `json:"phase"`

	// Seats maps seat index to the owning participant identity, in turn
	// rotation order. Immutable for the lifetime of the game.
	Seats []string `json:"seats"`

	Hands map[int][]Card `json:"hands"`
	Trick []PlayedCard   `json:"trick"`

	CurrentTurn  int `json:"current_turn"`
	TrickLeader  int `json:"trick_leader"`
	TricksPlayed int `json:"tricks_played"`

	Scores map[int]int `json:"scores"`

	// HandStartScores snapshots Scores at the last deal so per-hand trick
	// counts can be reported when the hand completes.
	HandStartScores map[int]int `json:"hand_start_scores"`

	// DealSeed reproduces the current deal for debugging; the materialized
	// hands, not the seed, are the source of truth on non-authority peers.
	DealSeed int64 `json:"deal_seed"`

	CardsPerHand int `json:"cards_per_hand"`
	TargetScore  int `json:"target_score"`
}

// NewGame creates a game with the given immutable seat order.
func NewGame(seats []string, cardsPerHand, targetScore int) *Game {
	order := make([]string, len(seats))
	copy(order, seats)

	scores := make(map[int]int, len(order))
	for i := range order {
		scores[i] = 0
	}

	return &Game{
		Phase:           PhaseTurn,
		Seats:           order,
		Hands:           make(map[int][]Card, len(order)),
		Scores:          scores,
		HandStartScores: make(map[int]int, len(order)),
		CardsPerHand:    cardsPerHand,
		TargetScore:     targetScore,
	}
}

// SeatCount returns the number of seats in the rotation.
func (g *Game) SeatCount() int {
	return len(g.Seats)
}

// ValidSeat reports whether the index is inside the rotation.
func (g *Game) ValidSeat(seat int) bool {
	return seat >= 0 && seat < len(g.Seats)
}

// SeatID returns the participant identity for a seat, or "" when out of range.
func (g *Game) SeatID(seat int) string {
	if !g.ValidSeat(seat) {
		return ""
	}
	return g.Seats[seat]
}

// SeatOf returns the seat index for a participant identity, or -1.
func (g *Game) SeatOf(id string) int {
	for i, s := range g.Seats {
		if s == id {
			return i
		}
	}
	return -1
}

// NextSeat returns the seat after the given one in rotation order.
func (g *Game) NextSeat(seat int) int {
	return (seat + 1) % len(g.Seats)
}

// HandsEmpty reports whether every seat has played out its hand.
func (g *Game) HandsEmpty() bool {
	for _, hand := range g.Hands {
		if len(hand) > 0 {
			return false
		}
	}
	return true
}

// TrickComplete reports whether every seat has contributed to the trick.
func (g *Game) TrickComplete() bool {
	return len(g.Trick) == len(g.Seats)
}
