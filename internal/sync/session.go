package sync

import (
	"context"
	"errors"
	"math/rand"
	"time"

	"whist/internal/domain"
	"whist/internal/game"
	"whist/internal/ports"

	"go.uber.org/zap"
)

// Topology selects which AuthorityTransport implementation a session uses.
// Chosen exactly once at session start; nothing downstream branches on it
// again.
type Topology string

const (
	// TopologyDirect is a host-authoritative link.
	TopologyDirect Topology = "direct"
	// TopologyRelay is a publish/subscribe bus with no central arbiter and
	// no guarantee a sender is excluded from its own broadcasts.
	TopologyRelay Topology = "relay"
)

var (
	ErrNotLocalSeat = errors.New("seat is not controlled by this peer")
	ErrNotRunning   = errors.New("session loop is not running")
)

// Config describes one peer's view of a session.
type Config struct {
	// LocalID is this peer's participant identity.
	LocalID string
	// OwnerID is the first participant recorded when the session became
	// known locally. It decides authority once and is never recomputed.
	OwnerID string
	// Seats is the immutable seat order for the game.
	Seats []string

	Topology Topology
	Link     ports.Transport

	Presence    ports.Presence
	Notifier    ports.Notifier
	Progression ports.Progression

	CardsPerHand        int
	TargetScore         int
	TurnDurationSeconds int
	PendingTTL          time.Duration

	Rand   *rand.Rand
	Logger *zap.Logger
}

// Session is one peer's replicated engine instance. All state mutation
// happens on the single goroutine running Run; local submits, inbound
// frames, and timer expirations are queued onto that loop as discrete
// events and never touch state from another goroutine.
type Session struct {
	svc      *game.Service
	g        *domain.Game
	arb      *Arbiter
	pending  *PendingPlays
	topology Topology

	transport AuthorityTransport
	link      ports.Transport

	presence    ports.Presence
	notifier    ports.Notifier
	progression ports.Progression

	rng    *rand.Rand
	logger *zap.Logger

	turnDuration time.Duration

	submits chan submitReq
	starts  chan startReq
	timerC  chan timerFire
	running chan struct{}
	stopped chan struct{}

	// Loop-owned timer state. The epoch stamps every scheduled expiry so a
	// callback that outlives its turn is recognized as stale and dropped.
	timerEpoch   int
	timer        *time.Timer
	turnDeadline time.Time

	handLeader int
}

type submitReq struct {
	seat int
	card domain.Card
	resp chan error
}

type startReq struct {
	resp chan error
}

type timerFire struct {
	epoch int
}

// NewSession builds a peer session. It fails when the authority cannot be
// determined: two peers unsure of their role could otherwise both act as
// authority, so an unbound arbiter blocks session start instead.
func NewSession(cfg Config) (*Session, error) {
	arb := &Arbiter{}
	if err := arb.Bind(cfg.OwnerID, cfg.LocalID); err != nil {
		return nil, err
	}

	if cfg.CardsPerHand <= 0 {
		cfg.CardsPerHand = game.DefaultCardsPerHand
	}
	if cfg.TargetScore <= 0 {
		cfg.TargetScore = game.DefaultTargetScore
	}
	if cfg.TurnDurationSeconds <= 0 {
		cfg.TurnDurationSeconds = game.DefaultTurnDurationSeconds
	}
	if cfg.Rand == nil {
		cfg.Rand = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}

	s := &Session{
		svc:          game.NewService(cfg.Rand),
		g:            domain.NewGame(cfg.Seats, cfg.CardsPerHand, cfg.TargetScore),
		arb:          arb,
		pending:      NewPendingPlays(cfg.PendingTTL),
		topology:     cfg.Topology,
		link:         cfg.Link,
		presence:     cfg.Presence,
		notifier:     cfg.Notifier,
		progression:  cfg.Progression,
		rng:          cfg.Rand,
		logger:       cfg.Logger,
		turnDuration: time.Duration(cfg.TurnDurationSeconds) * time.Second,
		submits:      make(chan submitReq),
		starts:       make(chan startReq),
		timerC:       make(chan timerFire, 8),
		running:      make(chan struct{}),
		stopped:      make(chan struct{}),
	}

	switch cfg.Topology {
	case TopologyRelay:
		s.transport = NewRelayTransport(cfg.Link, arb)
	default:
		s.topology = TopologyDirect
		s.transport = NewDirectTransport(cfg.Link, arb)
	}
	return s, nil
}

// IsAuthority reports the role decided at session start.
func (s *Session) IsAuthority() bool {
	return s.arb.IsLocalAuthority()
}

// Game exposes the replicated state for read-only inspection. Callers must
// not mutate it; during Run only the loop goroutine may even read it safely.
func (s *Session) Game() *domain.Game {
	return s.g
}

// Run drives the session loop until the context is canceled or the
// transport closes.
func (s *Session) Run(ctx context.Context) error {
	if !s.arb.Bound() {
		return ErrUnbound
	}
	close(s.running)
	defer close(s.stopped)
	defer s.stopTimer()

	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	var inbound <-chan ports.Frame
	if s.link != nil {
		inbound = s.link.Receive()
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case req := <-s.submits:
			req.resp <- s.handleSubmit(req.seat, req.card)
		case req := <-s.starts:
			req.resp <- s.handleStartHand()
		case fr, ok := <-inbound:
			if !ok {
				return nil
			}
			s.handleFrame(fr)
		case fire := <-s.timerC:
			s.handleTimerFire(fire.epoch)
		case <-ticker.C:
			s.handleTick()
		}
	}
}

// Submit plays a card for the local participant's own seat. The result is
// synchronous: an illegal play is rejected with no mutation and no outbound
// message.
func (s *Session) Submit(ctx context.Context, seat int, card domain.Card) error {
	if s.g.SeatID(seat) != s.arb.localID {
		return ErrNotLocalSeat
	}
	req := submitReq{seat: seat, card: card, resp: make(chan error, 1)}
	select {
	case s.submits <- req:
	case <-s.stopped:
		return ErrNotRunning
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case err := <-req.resp:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// StartHand deals a fresh hand. Authority only; participants receive their
// hands from the wire.
func (s *Session) StartHand(ctx context.Context) error {
	req := startReq{resp: make(chan error, 1)}
	select {
	case s.starts <- req:
	case <-s.stopped:
		return ErrNotRunning
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case err := <-req.resp:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// --- loop-side handlers; every method below runs on the loop goroutine ---

func (s *Session) handleSubmit(seat int, card domain.Card) error {
	if s.arb.IsLocalAuthority() {
		events, err := s.svc.PlayCard(s.g, seat, card)
		if err != nil {
			return err
		}
		s.pending.Add(seat, card)
		s.publishEvents(events, false)
		s.dispatch(events)
		return nil
	}

	// Optimistic local execution: validate fast, apply the single card,
	// register the in-flight key, send. Canonical counters stay untouched
	// until the authority's snapshots arrive.
	if err := s.svc.ValidatePlay(s.g, seat, card); err != nil {
		return err
	}
	events := s.svc.ApplyCardPlayed(s.g, seat, card)
	s.pending.Add(seat, card)
	if err := s.transport.SubmitPlay(seat, card); err != nil {
		s.logger.Warn("submit play send failed", zap.Int("seat", seat), zap.Error(err))
	}
	s.notifyAll(events)
	return nil
}

func (s *Session) handleStartHand() error {
	if !s.arb.IsLocalAuthority() {
		return ErrNotAuthority
	}
	return s.dealHand()
}

func (s *Session) dealHand() error {
	seed := s.rng.Int63()
	events, err := s.svc.StartHand(s.g, seed, s.handLeader)
	if err != nil {
		return err
	}
	s.pending.Reset()

	msg := HandDealtMsg{Hands: s.g.Hands, DealSeed: seed, Leader: s.handLeader}
	if err := s.transport.Broadcast(OpHandDealt, msg); err != nil {
		s.logger.Warn("hand dealt broadcast failed", zap.Error(err))
	}
	s.dispatch(events)
	return nil
}

func (s *Session) handleFrame(fr ports.Frame) {
	switch fr.Op {
	case OpPlayCard:
		s.handlePlayIntent(fr)
	case OpCardPlayed:
		s.handleCardPlayedFrame(fr)
	case OpHandDealt:
		s.handleHandDealtFrame(fr)
	case OpTurnChanged:
		s.handleTurnChangedFrame(fr)
	case OpTrickCompleted:
		s.handleTrickCompletedFrame(fr)
	case OpTimerUpdate:
		s.handleTimerUpdateFrame(fr)
	case OpGameEnded:
		s.handleGameEndedFrame(fr)
	case OpStartGame:
		if s.arb.IsLocalAuthority() {
			if err := s.dealHand(); err != nil {
				s.logger.Warn("start game intent rejected", zap.Error(err))
			}
		}
	case OpGameError:
		var msg GameErrorMsg
		if err := Decode(fr.Data, &msg); err == nil {
			s.logger.Warn("authority rejected intent", zap.Int("code", msg.Code), zap.String("message", msg.Message))
		}
	default:
		s.logger.Warn("unknown opcode", zap.Int64("op", fr.Op))
	}
}

// handlePlayIntent is the authority receiving a forwarded play on a direct
// link. Participants never arbitrate intents.
func (s *Session) handlePlayIntent(fr ports.Frame) {
	if !s.arb.IsLocalAuthority() {
		return
	}
	var req PlayCardRequest
	if err := Decode(fr.Data, &req); err != nil {
		s.logger.Warn("bad play intent", zap.Error(err))
		return
	}
	events, err := s.svc.PlayCard(s.g, req.Seat, req.Card)
	if err != nil {
		s.logger.Warn("play intent rejected",
			zap.Int("seat", req.Seat), zap.Stringer("card", req.Card), zap.Error(err))
		if berr := s.transport.Broadcast(OpGameError, GameErrorMsg{Code: 400, Message: err.Error()}); berr != nil {
			s.logger.Warn("game error broadcast failed", zap.Error(berr))
		}
		return
	}
	s.publishEvents(events, false)
	s.dispatch(events)
}

func (s *Session) handleCardPlayedFrame(fr ports.Frame) {
	var msg CardPlayedMsg
	if err := Decode(fr.Data, &msg); err != nil {
		s.logger.Warn("bad card played frame", zap.String("msg_id", fr.ID), zap.Error(err))
		return
	}

	// A pending key means this is our own action echoed back through the
	// relay: clear the key, re-emit the external notification only, and do
	// not mutate a second time.
	if s.pending.Observe(msg.Seat, msg.Card) {
		s.logger.Debug("own play echoed back",
			zap.Int("seat", msg.Seat), zap.Stringer("card", msg.Card), zap.String("msg_id", fr.ID))
		s.notify(game.Event{
			Kind:    game.EventCardPlayed,
			Payload: game.CardPlayedPayload{Seat: msg.Seat, Card: msg.Card, Auto: msg.Auto},
		})
		return
	}

	if s.arb.IsLocalAuthority() {
		// Relay topology: a participant published its play; advance the
		// canonical state and state the results. The CardPlayed frame
		// itself already reached everyone through the relay.
		events, err := s.svc.PlayCard(s.g, msg.Seat, msg.Card)
		if err != nil {
			s.logger.Warn("peer play conflicts with canonical state",
				zap.Int("seat", msg.Seat), zap.Stringer("card", msg.Card), zap.Error(err))
			return
		}
		s.publishEvents(events, true)
		s.dispatch(events)
		return
	}

	// Unseen key on a participant: trusted, applied exactly as a legal
	// local play would be, without re-validating legality.
	events := s.svc.ApplyCardPlayed(s.g, msg.Seat, msg.Card)
	if events == nil {
		s.logger.Debug("duplicate play absorbed",
			zap.Int("seat", msg.Seat), zap.Stringer("card", msg.Card), zap.String("msg_id", fr.ID))
		return
	}
	s.notifyAll(events)
}

func (s *Session) handleHandDealtFrame(fr ports.Frame) {
	if s.arb.IsLocalAuthority() {
		return // authorities deal, they do not adopt
	}
	var msg HandDealtMsg
	if err := Decode(fr.Data, &msg); err != nil {
		s.logger.Warn("bad hand dealt frame", zap.Error(err))
		return
	}
	events := s.svc.ApplyHandDealt(s.g, msg.Hands, msg.DealSeed, msg.Leader)
	s.pending.Reset()
	s.notifyAll(events)
	s.startEndOfTurnCountdownIfNeeded()
}

func (s *Session) handleTurnChangedFrame(fr ports.Frame) {
	if s.arb.IsLocalAuthority() {
		return // self-produced snapshot echoed back
	}
	var msg TurnChangedMsg
	if err := Decode(fr.Data, &msg); err != nil {
		s.logger.Warn("bad turn snapshot", zap.Error(err))
		return
	}
	if s.g.Phase == domain.PhaseEnded {
		s.logger.Debug("turn snapshot after game end dropped",
			zap.Int("turn_index", msg.TurnIndex), zap.String("msg_id", fr.ID))
		return
	}
	events, drift := s.svc.ApplyTurnSnapshot(s.g, msg.TurnIndex, msg.TricksPlayed)
	if drift {
		s.logger.Warn("turn snapshot drifted from local state; adopted",
			zap.Int("turn_index", msg.TurnIndex), zap.Int("tricks_played", msg.TricksPlayed))
	}
	s.notifyAll(events)
}

func (s *Session) handleTrickCompletedFrame(fr ports.Frame) {
	if s.arb.IsLocalAuthority() {
		return
	}
	var msg TrickCompletedMsg
	if err := Decode(fr.Data, &msg); err != nil {
		s.logger.Warn("bad trick snapshot", zap.Error(err))
		return
	}
	events := s.svc.ApplyTrickSnapshot(s.g, msg.Winner, msg.Leader, msg.WinnerScore)
	s.notifyAll(events)
	s.dispatchPhaseTimers(events)
}

func (s *Session) handleTimerUpdateFrame(fr ports.Frame) {
	if s.arb.IsLocalAuthority() {
		return
	}
	// During the end-of-round pause the local countdown is the one that
	// matters; a late authority tick must not override it.
	if s.g.Phase != domain.PhaseTurn {
		return
	}
	var msg TimerUpdateMsg
	if err := Decode(fr.Data, &msg); err != nil {
		return
	}
	s.notify(game.Event{Kind: game.EventTimerTick, Payload: game.TimerTickPayload{SecondsRemaining: msg.SecondsRemaining}})
}

func (s *Session) handleGameEndedFrame(fr ports.Frame) {
	if s.arb.IsLocalAuthority() {
		return
	}
	var msg GameEndedMsg
	if err := Decode(fr.Data, &msg); err != nil {
		return
	}
	if s.g.Phase == domain.PhaseEnded {
		return
	}
	for seat, score := range msg.Scores {
		s.g.Scores[seat] = score
	}
	s.g.Phase = domain.PhaseEnded
	s.stopTimer()
	s.notify(game.Event{Kind: game.EventGameCompleted, Payload: game.GameCompletedPayload{Winner: msg.Winner, Scores: msg.Scores}})
}

func (s *Session) handleTimerFire(epoch int) {
	if epoch != s.timerEpoch {
		return // stale expiry; the state it referred to no longer exists
	}

	switch s.g.Phase {
	case domain.PhaseTurn:
		if !s.arb.IsLocalAuthority() {
			// A peer that cannot auto-forfeit canonically must not forge a
			// turn advance; the authority's own timeout produces it.
			return
		}
		seat := s.g.CurrentTurn
		events, err := s.svc.TimeoutTurn(s.g, seat, s.seatPresent(seat))
		if err != nil {
			s.logger.Warn("auto-forfeit failed", zap.Int("seat", seat), zap.Error(err))
			return
		}
		if events == nil {
			return
		}
		s.publishEvents(events, false)
		s.dispatch(events)

	case domain.PhaseEndOfRound:
		events, err := s.svc.CompleteEndOfRound(s.g)
		if err != nil {
			return
		}
		if s.arb.IsLocalAuthority() {
			s.publishEvents(events, false)
		}
		s.dispatch(events)
	}
}

func (s *Session) handleTick() {
	if swept := s.pending.Sweep(); swept > 0 {
		s.logger.Debug("swept expired pending plays", zap.Int("count", swept))
	}

	if !s.arb.IsLocalAuthority() {
		return
	}
	// Timer broadcasts are suppressed during end-of-round so they cannot
	// override a receiver's independently running countdown.
	if s.g.Phase != domain.PhaseTurn || s.turnDeadline.IsZero() {
		return
	}
	remaining := int(time.Until(s.turnDeadline).Round(time.Second) / time.Second)
	if remaining < 0 {
		remaining = 0
	}
	if err := s.transport.Broadcast(OpTimerUpdate, TimerUpdateMsg{SecondsRemaining: remaining}); err != nil {
		s.logger.Debug("timer broadcast failed", zap.Error(err))
	}
	s.notify(game.Event{Kind: game.EventTimerTick, Payload: game.TimerTickPayload{SecondsRemaining: remaining}})
}

// publishEvents maps canonical events onto the wire. skipCardPlayed is set
// when the triggering play already reached every peer as a relay frame.
func (s *Session) publishEvents(events []game.Event, skipCardPlayed bool) {
	for _, ev := range events {
		var (
			op      int64
			payload any
		)
		switch ev.Kind {
		case game.EventCardPlayed:
			if skipCardPlayed {
				continue
			}
			p := ev.Payload.(game.CardPlayedPayload)
			op, payload = OpCardPlayed, CardPlayedMsg{Seat: p.Seat, Card: p.Card, Auto: p.Auto}
		case game.EventTurnChanged:
			p := ev.Payload.(game.TurnChangedPayload)
			op, payload = OpTurnChanged, TurnChangedMsg{TurnIndex: p.TurnIndex, TricksPlayed: p.TricksPlayed}
		case game.EventTrickCompleted:
			p := ev.Payload.(game.TrickCompletedPayload)
			op, payload = OpTrickCompleted, TrickCompletedMsg{Winner: p.Winner, Leader: p.Leader, WinnerScore: p.WinnerScore}
		case game.EventGameCompleted:
			p := ev.Payload.(game.GameCompletedPayload)
			op, payload = OpGameEnded, GameEndedMsg{Winner: p.Winner, Scores: p.Scores}
		default:
			continue
		}
		if err := s.transport.Broadcast(op, payload); err != nil {
			s.logger.Warn("event broadcast failed", zap.Int64("op", op), zap.Error(err))
		}
	}
}

// dispatch notifies the presentation sink and performs the follow-up work
// the new state demands: timer rearming, progression awards, next deal.
func (s *Session) dispatch(events []game.Event) {
	s.notifyAll(events)

	handCompleted := false
	var handTricks map[int]int
	for _, ev := range events {
		if ev.Kind == game.EventHandCompleted {
			handCompleted = true
			handTricks = ev.Payload.(game.HandCompletedPayload).HandTricks
		}
	}

	if handCompleted {
		s.stopTimer()
		if s.arb.IsLocalAuthority() {
			s.awardHandExperience(handTricks)
			s.handLeader = s.g.NextSeat(s.handLeader)
			if err := s.dealHand(); err != nil {
				s.logger.Warn("next hand deal failed", zap.Error(err))
			}
		}
		return
	}

	s.dispatchPhaseTimers(events)
}

func (s *Session) dispatchPhaseTimers(events []game.Event) {
	if len(events) == 0 {
		return
	}
	switch s.g.Phase {
	case domain.PhaseTurn:
		s.startEndOfTurnCountdownIfNeeded()
	case domain.PhaseEndOfRound:
		// Fixed-duration display pause, same length as a normal turn.
		s.armTimer()
	case domain.PhaseEnded:
		s.stopTimer()
	}
}

// startEndOfTurnCountdownIfNeeded arms the per-turn timer. Authorities own
// the canonical deadline for every seat; participants arm nothing in the
// play phase because they must not forge advances.
func (s *Session) startEndOfTurnCountdownIfNeeded() {
	if !s.arb.IsLocalAuthority() {
		return
	}
	s.armTimer()
}

func (s *Session) armTimer() {
	s.stopTimer()
	s.timerEpoch++
	epoch := s.timerEpoch
	s.turnDeadline = time.Now().Add(s.turnDuration)
	s.timer = time.AfterFunc(s.turnDuration, func() {
		select {
		case s.timerC <- timerFire{epoch: epoch}:
		default:
			// Loop backlogged; the epoch guard makes a dropped or late fire
			// harmless.
		}
	})
}

func (s *Session) stopTimer() {
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
	s.turnDeadline = time.Time{}
}

func (s *Session) seatPresent(seat int) bool {
	if s.presence == nil {
		return true
	}
	return s.presence.IsSeatPresent(s.g.SeatID(seat))
}

func (s *Session) awardHandExperience(handTricks map[int]int) {
	if s.progression == nil {
		return
	}
	awards := make([]ports.ExperienceAward, 0, len(handTricks))
	for seat, tricks := range handTricks {
		awards = append(awards, ports.ExperienceAward{
			SeatID: s.g.SeatID(seat),
			Points: int64(tricks) * 10,
		})
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.progression.AwardHandExperience(ctx, awards); err != nil {
		s.logger.Warn("experience award failed", zap.Error(err))
	}
}

func (s *Session) notifyAll(events []game.Event) {
	for _, ev := range events {
		s.notify(ev)
	}
}

func (s *Session) notify(ev game.Event) {
	if s.notifier == nil {
		return
	}
	s.notifier.Notify(ev)
}
