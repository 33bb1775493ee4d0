package sync

import (
	"errors"

	"whist/internal/domain"
	"whist/internal/ports"
)

// ErrNotAuthority is returned when a participant attempts an operation only
// the session authority may perform.
var ErrNotAuthority = errors.New("local peer is not the session authority")

// AuthorityTransport hides the topology split behind one interface, chosen
// once at session start. The engine calls the same two operations whether a
// single host arbitrates every mutation or the peers share a relay with no
// central arbiter.
type AuthorityTransport interface {
	// SubmitPlay is the participant-side step 4 of the submit pipeline:
	// direct links forward a play intent to the authority, relays publish
	// the already-applied play as an event.
	SubmitPlay(seat int, card domain.Card) error

	// Broadcast publishes a canonical event. Only the authority states
	// canonical facts, in either topology.
	Broadcast(op int64, payload any) error
}

// DirectTransport is the host-authoritative topology: a single fixed peer
// executes all mutating operations, everyone else forwards intents and
// applies only the confirmed results the authority pushes back.
type DirectTransport struct {
	link ports.Transport
	arb  *Arbiter
}

// NewDirectTransport wraps a direct link to (or from) the session authority.
func NewDirectTransport(link ports.Transport, arb *Arbiter) *DirectTransport {
	return &DirectTransport{link: link, arb: arb}
}

func (t *DirectTransport) SubmitPlay(seat int, card domain.Card) error {
	if t.arb.IsLocalAuthority() {
		// The authority validates and broadcasts locally; there is no
		// upstream to forward to.
		return nil
	}
	data, err := Encode(OpPlayCard, PlayCardRequest{Seat: seat, Card: card})
	if err != nil {
		return err
	}
	return t.link.Send(OpPlayCard, data)
}

func (t *DirectTransport) Broadcast(op int64, payload any) error {
	if !t.arb.IsLocalAuthority() {
		return ErrNotAuthority
	}
	data, err := Encode(op, payload)
	if err != nil {
		return err
	}
	return t.link.Send(op, data)
}

// RelayTransport is the relayed publish/subscribe topology: every peer
// publishes its own plays for responsiveness, and must tolerate the relay
// echoing frames back to their sender.
type RelayTransport struct {
	link ports.Transport
	arb  *Arbiter
}

// NewRelayTransport wraps a relay bus connection.
func NewRelayTransport(link ports.Transport, arb *Arbiter) *RelayTransport {
	return &RelayTransport{link: link, arb: arb}
}

func (t *RelayTransport) SubmitPlay(seat int, card domain.Card) error {
	data, err := Encode(OpCardPlayed, CardPlayedMsg{Seat: seat, Card: card})
	if err != nil {
		return err
	}
	return t.link.Send(OpCardPlayed, data)
}

func (t *RelayTransport) Broadcast(op int64, payload any) error {
	if !t.arb.IsLocalAuthority() {
		return ErrNotAuthority
	}
	data, err := Encode(op, payload)
	if err != nil {
		return err
	}
	return t.link.Send(op, data)
}
