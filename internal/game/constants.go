package game

// MinSeats and MaxSeats bound the turn rotation. Seats beyond the human
// count are backfilled with computer-controlled players up to MaxSeats.
const (
	MinSeats = 2
	MaxSeats = 4
)

// Defaults for the recognized configuration surface.
const (
	DefaultTurnDurationSeconds = 10
	DefaultCardsPerHand        = 13
	DefaultTargetScore         = 10
)
