// Package ports declares the collaborator interfaces the engine depends on.
// Implementations live in adapter packages; the engine never reaches for
// ambient globals.
package ports

import (
	"context"

	"whist/internal/game"
)

// Frame is one tagged opaque message from the wire. The engine does not know
// or care whether it traveled over a direct link or a relay. ID is the
// sender-assigned message id, when the transport carries one; it names the
// exact delivery in diagnostics for dropped or redelivered frames.
type Frame struct {
	ID     string
	Op     int64
	Data   []byte
	Sender string
}

// Transport delivers tagged messages to the engine and accepts tagged
// messages for broadcast.
type Transport interface {
	// Send publishes a tagged payload. Depending on the topology the frame
	// may be echoed back to this sender.
	Send(op int64, data []byte) error

	// Receive returns the inbound frame stream. The channel is closed when
	// the transport shuts down.
	Receive() <-chan Frame

	Close() error
}

// Presence answers whether a participant is currently present/engaged. The
// auto-forfeit policy consults it to choose between a deliberate lowest-card
// play and an inattentive random one.
type Presence interface {
	IsSeatPresent(seatID string) bool
}

// Notifier is the presentation sink. The engine pushes every game event to
// it and makes no assumption about how, or whether, events are rendered.
type Notifier interface {
	Notify(ev game.Event)
}

// ExperienceAward is one participant's experience grant for a finished hand.
type ExperienceAward struct {
	SeatID string
	Points int64
}

// Progression receives experience hooks when a hand completes.
type Progression interface {
	AwardHandExperience(ctx context.Context, awards []ExperienceAward) error
}
