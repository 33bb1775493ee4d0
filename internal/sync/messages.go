package sync

import (
	"encoding/json"
	"fmt"

	"whist/internal/domain"

	"github.com/google/uuid"
)

// Op codes for client intents and peer events. Intents run from 1; events
// from 101, mirroring the split between what a participant may ask for and
// what the authority states as fact.
const (
	// Client/participant -> authority
	OpStartGame int64 = 1
	OpPlayCard  int64 = 2

	// Authority/peer -> everyone
	OpHandDealt      int64 = 101
	OpCardPlayed     int64 = 102
	OpTurnChanged    int64 = 103
	OpTrickCompleted int64 = 104
	OpTimerUpdate    int64 = 105
	OpGameEnded      int64 = 106
	OpGameError      int64 = 107
	OpMatchState     int64 = 108
)

// PlayCardRequest is a participant's play intent, forwarded to the authority
// on a direct link.
type PlayCardRequest struct {
	Seat int         `json:"seat"`
	Card domain.Card `json:"card"`
}

// HandDealtMsg carries the materialized hands for a new deal. Peers adopt
// these hands directly rather than re-deriving them from the seed; the seed
// rides along for reproduction only.
type HandDealtMsg struct {
	Hands    map[int][]domain.Card `json:"hands"`
	DealSeed int64                 `json:"deal_seed"`
	Leader   int                   `json:"leader"`
}

// CardPlayedMsg records one accepted play.
type CardPlayedMsg struct {
	Seat int         `json:"seat"`
	Card domain.Card `json:"card"`
	Auto bool        `json:"auto"`
}

// TurnChangedMsg is an idempotent snapshot of the canonical turn counters.
type TurnChangedMsg struct {
	TurnIndex    int `json:"turn_index"`
	TricksPlayed int `json:"tricks_played"`
}

// TrickCompletedMsg is an idempotent snapshot of a resolved trick.
type TrickCompletedMsg struct {
	Winner      int `json:"winner"`
	Leader      int `json:"leader"`
	WinnerScore int `json:"winner_score"`
}

// TimerUpdateMsg synchronizes the countdown rendered for the active turn.
type TimerUpdateMsg struct {
	SecondsRemaining int `json:"seconds_remaining"`
}

// GameEndedMsg announces the final result.
type GameEndedMsg struct {
	Winner int         `json:"winner"`
	Scores map[int]int `json:"scores"`
}

// GameErrorMsg reports a rejected intent back to its sender.
type GameErrorMsg struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// PlayerState describes one occupied seat for lobby displays.
type PlayerState struct {
	UserID         string `json:"user_id"`
	Seat           int    `json:"seat"`
	IsOwner        bool   `json:"is_owner"`
	DisplayName    string `json:"display_name"`
	CardsRemaining int    `json:"cards_remaining"`
}

// MatchStateMsg is the lobby/session roster snapshot sent after joins,
// leaves and bot fills.
type MatchStateMsg struct {
	Seats     []string      `json:"seats"`
	OwnerSeat int           `json:"owner_seat"`
	Players   []PlayerState `json:"players"`
}

// Envelope frames a payload for relayed transports, which need a sender
// identity and a unique message id because the relay may deliver a frame
// back to its own sender.
type Envelope struct {
	ID     string          `json:"id"`
	Sender string          `json:"sender"`
	Op     int64           `json:"op"`
	Data   json.RawMessage `json:"data"`
}

// NewEnvelope wraps a payload for the relay.
func NewEnvelope(sender string, op int64, payload any) (Envelope, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return Envelope{}, fmt.Errorf("marshal op %d payload: %w", op, err)
	}
	return Envelope{
		ID:     uuid.NewString(),
		Sender: sender,
		Op:     op,
		Data:   data,
	}, nil
}

// Encode marshals a payload for transport.
func Encode(op int64, payload any) ([]byte, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal op %d payload: %w", op, err)
	}
	return data, nil
}

// Decode unmarshals a frame payload into the given message struct.
func Decode(data []byte, into any) error {
	if err := json.Unmarshal(data, into); err != nil {
		return fmt.Errorf("unmarshal payload: %w", err)
	}
	return nil
}
