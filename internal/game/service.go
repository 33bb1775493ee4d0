package game

import (
	"errors"
	"math/rand"
	"time"

	"whist/internal/domain"
)

// Service contains the trick-taking use-cases operating on domain state.
// Every mutating method must be called from a single owning goroutine (the
// session loop or the match loop); the service itself holds no locks.
type Service struct {
	rng *rand.Rand
}

// NewService constructs a Service with the provided rng or a time-seeded
// default.
func NewService(rng *rand.Rand) *Service {
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	return &Service{rng: rng}
}

var (
	ErrGameEnded      = errors.New("game already ended")
	ErrWrongPhase     = errors.New("no plays accepted in this phase")
	ErrUnknownSeat    = errors.New("seat not in game")
	ErrNotYourTurn    = errors.New("not this seat's turn")
	ErrCardNotHeld    = errors.New("card not in hand")
	ErrMustFollowSuit = errors.New("must follow led suit")
)

// StartHand shuffles a fresh deck with the given seed, deals every seat, and
// resets the per-hand state (trick, trick counter, phase). The leader seat
// opens the first trick; dealers rotate between hands at the call site.
// HandDealt events are targeted, one per seat, carrying that seat's cards.
func (s *Service) StartHand(g *domain.Game, seed int64, leader int) ([]Event, error) {
	if g.Phase == domain.PhaseEnded {
		return nil, ErrGameEnded
	}
	if !g.ValidSeat(leader) {
		return nil, ErrUnknownSeat
	}

	deck := domain.ShuffleDeck(domain.NewDeck(), seed)
	g.Hands = domain.Deal(deck, g.SeatCount(), g.CardsPerHand)
	g.Trick = nil
	g.TricksPlayed = 0
	g.DealSeed = seed
	g.TrickLeader = leader
	g.CurrentTurn = leader
	g.Phase = domain.PhaseTurn
	g.HandStartScores = copyScores(g.Scores)

	events := make([]Event, 0, g.SeatCount()+1)
	for seat := 0; seat < g.SeatCount(); seat++ {
		events = append(events, Event{
			Kind: EventHandDealt,
			Payload: HandDealtPayload{
				Seat:     seat,
				SeatID:   g.SeatID(seat),
				Hand:     g.Hands[seat],
				DealSeed: seed,
			},
			Recipients: []string{g.SeatID(seat)},
		})
	}
	events = append(events, Event{
		Kind:    EventTurnStarted,
		Payload: TurnStartedPayload{Seat: leader},
	})
	return events, nil
}

// ValidatePlay checks a play without mutating anything. It mirrors the
// acceptance rule exactly: the seat must hold the turn, hold the card, and
// follow suit unless void.
func (s *Service) ValidatePlay(g *domain.Game, seat int, card domain.Card) error {
	switch g.Phase {
	case domain.PhaseTurn:
	case domain.PhaseEnded:
		return ErrGameEnded
	default:
		return ErrWrongPhase
	}
	if !g.ValidSeat(seat) {
		return ErrUnknownSeat
	}
	if g.CurrentTurn != seat {
		return ErrNotYourTurn
	}
	hand := g.Hands[seat]
	if !domain.HandContains(hand, card) {
		return ErrCardNotHeld
	}
	if !domain.IsLegalPlay(hand, g.Trick, card) {
		return ErrMustFollowSuit
	}
	return nil
}

// PlayCard processes a play action and emits the resulting events. Rejection
// is synchronous with zero mutation and zero events.
func (s *Service) PlayCard(g *domain.Game, seat int, card domain.Card) ([]Event, error) {
	return s.playCard(g, seat, card, false)
}

func (s *Service) playCard(g *domain.Game, seat int, card domain.Card, auto bool) ([]Event, error) {
	if err := s.ValidatePlay(g, seat, card); err != nil {
		return nil, err
	}

	g.Hands[seat], _ = domain.RemoveCard(g.Hands[seat], card)
	g.Trick = append(g.Trick, domain.PlayedCard{Seat: seat, Card: card})

	events := []Event{
		{Kind: EventCardPlayed, Payload: CardPlayedPayload{Seat: seat, Card: card, Auto: auto}},
		{Kind: EventTurnEnded, Payload: TurnEndedPayload{Seat: seat}},
	}

	if !g.TrickComplete() {
		g.CurrentTurn = g.NextSeat(seat)
		events = append(events,
			Event{Kind: EventTurnChanged, Payload: TurnChangedPayload{TurnIndex: g.CurrentTurn, TricksPlayed: g.TricksPlayed}},
			Event{Kind: EventTurnStarted, Payload: TurnStartedPayload{Seat: g.CurrentTurn}},
		)
		return events, nil
	}

	winner := domain.ResolveTrickWinner(g.Trick)
	g.Scores[winner]++
	g.TrickLeader = winner
	g.CurrentTurn = winner
	g.Phase = domain.PhaseEndOfRound

	events = append(events,
		Event{Kind: EventTrickCompleted, Payload: TrickCompletedPayload{
			Winner:      winner,
			Leader:      winner,
			WinnerScore: g.Scores[winner],
		}},
		Event{Kind: EventEndOfRoundStarted, Payload: EndOfRoundStartedPayload{Winner: winner}},
	)

	if g.Scores[winner] >= g.TargetScore {
		g.Phase = domain.PhaseEnded
		events = append(events, Event{Kind: EventGameCompleted, Payload: GameCompletedPayload{
			Winner: winner,
			Scores: copyScores(g.Scores),
		}})
	}
	return events, nil
}

// CompleteEndOfRound closes the post-trick display pause: the trick is
// cleared, the counter advances, and either the next turn starts or the hand
// completes when every seat has played out.
func (s *Service) CompleteEndOfRound(g *domain.Game) ([]Event, error) {
	if g.Phase != domain.PhaseEndOfRound {
		return nil, ErrWrongPhase
	}

	g.Trick = nil
	g.TricksPlayed++
	g.Phase = domain.PhaseTurn

	events := []Event{{Kind: EventEndOfRoundComplete, Payload: nil}}

	if g.HandsEmpty() {
		events = append(events, Event{Kind: EventHandCompleted, Payload: HandCompletedPayload{
			Scores:     copyScores(g.Scores),
			HandTricks: scoreDelta(g.Scores, g.HandStartScores),
		}})
		return events, nil
	}

	g.CurrentTurn = g.TrickLeader
	events = append(events,
		Event{Kind: EventTurnChanged, Payload: TurnChangedPayload{TurnIndex: g.CurrentTurn, TricksPlayed: g.TricksPlayed}},
		Event{Kind: EventTurnStarted, Payload: TurnStartedPayload{Seat: g.CurrentTurn}},
	)
	return events, nil
}

// TimeoutTurn plays a card on the seat's behalf after its turn timer expired.
// A present seat forfeits the lowest-ranked legal card; an away seat forfeits
// a uniformly random legal one. Expiries that no longer match current state
// (phase moved on, turn moved on, or the seat already played) are ignored as
// stale with no mutation.
func (s *Service) TimeoutTurn(g *domain.Game, seat int, present bool) ([]Event, error) {
	if g.Phase != domain.PhaseTurn || g.CurrentTurn != seat {
		return nil, nil
	}
	if domain.SeatInTrick(g.Trick, seat) {
		return nil, nil
	}

	legal := domain.LegalPlays(g.Hands[seat], g.Trick)
	if len(legal) == 0 {
		// Unreachable while the first-play-always-legal rule holds; end the
		// turn without a play rather than deadlocking the rotation.
		g.CurrentTurn = g.NextSeat(seat)
		return []Event{
			{Kind: EventTurnEnded, Payload: TurnEndedPayload{Seat: seat}},
			{Kind: EventTurnChanged, Payload: TurnChangedPayload{TurnIndex: g.CurrentTurn, TricksPlayed: g.TricksPlayed}},
			{Kind: EventTurnStarted, Payload: TurnStartedPayload{Seat: g.CurrentTurn}},
		}, nil
	}

	var card domain.Card
	if present {
		card = domain.LowestCard(legal)
	} else {
		card = legal[s.rng.Intn(len(legal))]
	}
	return s.playCard(g, seat, card, true)
}

// ApplyHandDealt adopts a dealt hand set pushed by the authority. Trick state
// and phase reset exactly as a local deal would.
func (s *Service) ApplyHandDealt(g *domain.Game, hands map[int][]domain.Card, seed int64, leader int) []Event {
	g.Hands = make(map[int][]domain.Card, len(hands))
	for seat, hand := range hands {
		g.Hands[seat] = append([]domain.Card(nil), hand...)
	}
	g.Trick = nil
	g.TricksPlayed = 0
	g.DealSeed = seed
	if g.ValidSeat(leader) {
		g.TrickLeader = leader
		g.CurrentTurn = leader
	}
	g.Phase = domain.PhaseTurn
	g.HandStartScores = copyScores(g.Scores)

	events := make([]Event, 0, len(hands)+1)
	for seat := 0; seat < g.SeatCount(); seat++ {
		events = append(events, Event{
			Kind: EventHandDealt,
			Payload: HandDealtPayload{
				Seat:     seat,
				SeatID:   g.SeatID(seat),
				Hand:     g.Hands[seat],
				DealSeed: seed,
			},
			Recipients: []string{g.SeatID(seat)},
		})
	}
	events = append(events, Event{Kind: EventTurnStarted, Payload: TurnStartedPayload{Seat: g.CurrentTurn}})
	return events
}

// ApplyCardPlayed applies a play received from the wire without re-validating
// legality; the sender's or the authority's prior validation is trusted. The
// canonical turn counters are never advanced here, only the single card
// moves. Re-delivery of a play already on the table is a no-op, as is a play
// whose card has already left the seat's hand: a trusted play must still be
// held, so an absent card marks a redelivery from before the trick cleared.
func (s *Service) ApplyCardPlayed(g *domain.Game, seat int, card domain.Card) []Event {
	if g.Phase == domain.PhaseEnded {
		return nil
	}
	if !g.ValidSeat(seat) || domain.SeatInTrick(g.Trick, seat) {
		return nil
	}

	hand, held := domain.RemoveCard(g.Hands[seat], card)
	if !held {
		return nil
	}
	g.Hands[seat] = hand
	g.Trick = append(g.Trick, domain.PlayedCard{Seat: seat, Card: card})

	return []Event{
		{Kind: EventCardPlayed, Payload: CardPlayedPayload{Seat: seat, Card: card}},
	}
}

// ApplyTurnSnapshot adopts a canonical (turnIndex, tricksPlayed) snapshot.
// An exact duplicate of current state is suppressed; anything else is taken
// as ground truth. An ended game is terminal: snapshots redelivered after
// GameCompleted are dropped rather than reopening play. The returned drift
// flag marks snapshots that disagreed with the locally expected trick
// counter, for diagnostics only.
func (s *Service) ApplyTurnSnapshot(g *domain.Game, turnIndex, tricksPlayed int) ([]Event, bool) {
	if g.Phase == domain.PhaseEnded {
		return nil, false
	}
	if !g.ValidSeat(turnIndex) {
		return nil, true
	}
	if g.CurrentTurn == turnIndex && g.TricksPlayed == tricksPlayed && g.Phase == domain.PhaseTurn {
		return nil, false
	}

	drift := tricksPlayed < g.TricksPlayed || tricksPlayed > g.TricksPlayed+1
	if tricksPlayed != g.TricksPlayed {
		// The authority has moved past a trick boundary we have not crossed
		// locally; catch up so the table is clear for the new trick.
		g.Trick = nil
		g.TricksPlayed = tricksPlayed
	}
	g.CurrentTurn = turnIndex
	g.Phase = domain.PhaseTurn

	return []Event{
		{Kind: EventTurnChanged, Payload: TurnChangedPayload{TurnIndex: turnIndex, TricksPlayed: tricksPlayed}},
		{Kind: EventTurnStarted, Payload: TurnStartedPayload{Seat: turnIndex}},
	}, drift
}

// ApplyTrickSnapshot adopts a canonical trick resolution. The winner's score
// is set, not incremented, which keeps redelivery harmless. An ended game is
// terminal; late duplicates are dropped.
func (s *Service) ApplyTrickSnapshot(g *domain.Game, winner, leader, winnerScore int) []Event {
	if g.Phase == domain.PhaseEnded {
		return nil
	}
	if !g.ValidSeat(winner) || !g.ValidSeat(leader) {
		return nil
	}
	if g.Phase == domain.PhaseEndOfRound && g.TrickLeader == leader && g.Scores[winner] == winnerScore {
		return nil
	}

	g.Scores[winner] = winnerScore
	g.TrickLeader = leader
	g.CurrentTurn = leader
	g.Phase = domain.PhaseEndOfRound

	events := []Event{
		{Kind: EventTrickCompleted, Payload: TrickCompletedPayload{Winner: winner, Leader: leader, WinnerScore: winnerScore}},
		{Kind: EventEndOfRoundStarted, Payload: EndOfRoundStartedPayload{Winner: winner}},
	}
	if winnerScore >= g.TargetScore {
		g.Phase = domain.PhaseEnded
		events = append(events, Event{Kind: EventGameCompleted, Payload: GameCompletedPayload{
			Winner: winner,
			Scores: copyScores(g.Scores),
		}})
	}
	return events
}

func copyScores(scores map[int]int) map[int]int {
	out := make(map[int]int, len(scores))
	for seat, score := range scores {
		out[seat] = score
	}
	return out
}

func scoreDelta(current, base map[int]int) map[int]int {
	out := make(map[int]int, len(current))
	for seat, score := range current {
		out[seat] = score - base[seat]
	}
	return out
}
