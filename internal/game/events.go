package game

import "whist/internal/domain"

// EventKind identifies emitted game events for transport dispatch and for
// the presentation sink.
type EventKind string

const (
	EventHandDealt          EventKind = "hand_dealt"
	EventTurnStarted        EventKind = "turn_started"
	EventTurnEnded          EventKind = "turn_ended"
	EventTurnChanged        EventKind = "turn_changed"
	EventCardPlayed         EventKind = "card_played"
	EventTrickCompleted     EventKind = "trick_completed"
	EventEndOfRoundStarted  EventKind = "end_of_round_started"
	EventEndOfRoundComplete EventKind = "end_of_round_completed"
	EventHandCompleted      EventKind = "hand_completed"
	EventGameCompleted      EventKind = "game_completed"
	EventTimerTick          EventKind = "timer_tick"
)

// Event is a game event with optional targeted recipients.
type Event struct {
	Kind       EventKind
	Payload    any
	Recipients []string // participant IDs; empty means broadcast
}

// HandDealtPayload delivers one seat's cards. Emitted once per seat with that
// seat as the sole recipient.
type HandDealtPayload struct {
	Seat     int
	SeatID   string
	Hand     []domain.Card
	DealSeed int64
}

// TurnStartedPayload announces that a seat became the active player.
type TurnStartedPayload struct {
	Seat int
}

// TurnEndedPayload announces that a seat is no longer the active player.
type TurnEndedPayload struct {
	Seat int
}

// TurnChangedPayload is an idempotent snapshot of the canonical turn
// counters; receivers adopt it wholesale rather than applying a delta.
type TurnChangedPayload struct {
	TurnIndex    int
	TricksPlayed int
}

// CardPlayedPayload records a single accepted play. Auto marks plays made by
// the engine on a seat's behalf after its turn timer expired.
type CardPlayedPayload struct {
	Seat int
	Card domain.Card
	Auto bool
}

// TrickCompletedPayload is an idempotent snapshot of a resolved trick: the
// winner, the leader of the next trick, and the winner's resulting score.
type TrickCompletedPayload struct {
	Winner      int
	Leader      int
	WinnerScore int
}

// EndOfRoundStartedPayload opens the post-trick display pause.
type EndOfRoundStartedPayload struct {
	Winner int
}

// HandCompletedPayload reports cumulative scores plus the tricks each seat
// won during the hand that just finished.
type HandCompletedPayload struct {
	Scores     map[int]int
	HandTricks map[int]int
}

// GameCompletedPayload names the seat whose score first reached the target.
type GameCompletedPayload struct {
	Winner int
	Scores map[int]int
}

// TimerTickPayload carries the synchronized countdown for the active turn.
type TimerTickPayload struct {
	SecondsRemaining int
}
