package sync

import (
	"context"
	"errors"
	"math/rand"
	"testing"

	"whist/internal/domain"
	"whist/internal/game"
	"whist/internal/ports"
)

type fakeLink struct {
	sent []ports.Frame
	in   chan ports.Frame
}

func (l *fakeLink) Send(op int64, data []byte) error {
	l.sent = append(l.sent, ports.Frame{Op: op, Data: data})
	return nil
}

func (l *fakeLink) Receive() <-chan ports.Frame { return l.in }
func (l *fakeLink) Close() error                { return nil }

func (l *fakeLink) ops() []int64 {
	out := make([]int64, 0, len(l.sent))
	for _, fr := range l.sent {
		out = append(out, fr.Op)
	}
	return out
}

func (l *fakeLink) lastOf(op int64) (ports.Frame, bool) {
	for i := len(l.sent) - 1; i >= 0; i-- {
		if l.sent[i].Op == op {
			return l.sent[i], true
		}
	}
	return ports.Frame{}, false
}

type recordNotifier struct {
	events []game.Event
}

func (n *recordNotifier) Notify(ev game.Event) { n.events = append(n.events, ev) }

func (n *recordNotifier) count(kind game.EventKind) int {
	c := 0
	for _, ev := range n.events {
		if ev.Kind == kind {
			c++
		}
	}
	return c
}

type recordProgression struct {
	awards [][]ports.ExperienceAward
}

func (p *recordProgression) AwardHandExperience(_ context.Context, awards []ports.ExperienceAward) error {
	p.awards = append(p.awards, awards)
	return nil
}

func newTestSession(t *testing.T, localID string, topo Topology) (*Session, *fakeLink, *recordNotifier) {
	t.Helper()
	link := &fakeLink{in: make(chan ports.Frame, 8)}
	rec := &recordNotifier{}
	s, err := NewSession(Config{
		LocalID:             localID,
		OwnerID:             "p0",
		Seats:               []string{"p0", "p1", "p2", "p3"},
		Topology:            topo,
		Link:                link,
		Notifier:            rec,
		CardsPerHand:        3,
		TargetScore:         10,
		TurnDurationSeconds: 10,
		Rand:                rand.New(rand.NewSource(7)),
	})
	if err != nil {
		t.Fatalf("NewSession: %v", err)
	}
	t.Cleanup(s.stopTimer)
	return s, link, rec
}

func mustEncode(t *testing.T, op int64, payload any) []byte {
	t.Helper()
	data, err := Encode(op, payload)
	if err != nil {
		t.Fatalf("encode op %d: %v", op, err)
	}
	return data
}

// dealToParticipant installs a known hand layout via the wire path, with the
// given seat leading.
func dealToParticipant(t *testing.T, s *Session, leader int) map[int][]domain.Card {
	t.Helper()
	hands := map[int][]domain.Card{
		0: {{Suit: domain.Clubs, Rank: 4}, {Suit: domain.Hearts, Rank: 9}, {Suit: domain.Spades, Rank: 2}},
		1: {{Suit: domain.Hearts, Rank: 7}, {Suit: domain.Spades, Rank: 5}, {Suit: domain.Clubs, Rank: 11}},
		2: {{Suit: domain.Hearts, Rank: 13}, {Suit: domain.Diamonds, Rank: 3}, {Suit: domain.Clubs, Rank: 8}},
		3: {{Suit: domain.Hearts, Rank: 2}, {Suit: domain.Diamonds, Rank: 10}, {Suit: domain.Spades, Rank: 12}},
	}
	s.handleFrame(ports.Frame{Op: OpHandDealt, Data: mustEncode(t, OpHandDealt, HandDealtMsg{
		Hands:    hands,
		DealSeed: 99,
		Leader:   leader,
	})})
	if s.g.CurrentTurn != leader {
		t.Fatalf("turn after deal = %d, want %d", s.g.CurrentTurn, leader)
	}
	return hands
}

func TestNewSessionRequiresOwner(t *testing.T) {
	_, err := NewSession(Config{LocalID: "p0", Seats: []string{"p0", "p1"}})
	if !errors.Is(err, ErrNoOwner) {
		t.Fatalf("NewSession err = %v, want ErrNoOwner", err)
	}
}

func TestAuthoritySubmitBroadcastsResults(t *testing.T) {
	s, link, rec := newTestSession(t, "p0", TopologyRelay)

	if err := s.handleStartHand(); err != nil {
		t.Fatalf("start hand: %v", err)
	}
	if _, ok := link.lastOf(OpHandDealt); !ok {
		t.Fatalf("no hand dealt broadcast, ops = %v", link.ops())
	}

	card := s.g.Hands[0][0]
	if err := s.handleSubmit(0, card); err != nil {
		t.Fatalf("submit: %v", err)
	}
	if len(s.g.Trick) != 1 || s.g.Trick[0].Card != card {
		t.Fatalf("trick = %+v, want the submitted card", s.g.Trick)
	}
	if s.g.CurrentTurn != 1 {
		t.Fatalf("turn = %d, want 1", s.g.CurrentTurn)
	}
	if _, ok := link.lastOf(OpCardPlayed); !ok {
		t.Fatalf("no card played broadcast, ops = %v", link.ops())
	}
	if _, ok := link.lastOf(OpTurnChanged); !ok {
		t.Fatalf("no turn snapshot broadcast, ops = %v", link.ops())
	}
	if rec.count(game.EventTurnStarted) == 0 {
		t.Fatal("no turn started notification")
	}
}

func TestAuthoritySubmitRejectionLeavesNoTrace(t *testing.T) {
	s, link, _ := newTestSession(t, "p0", TopologyRelay)
	if err := s.handleStartHand(); err != nil {
		t.Fatalf("start hand: %v", err)
	}
	before := len(link.sent)

	// A card dealt to another seat can never be held by seat 0.
	err := s.handleSubmit(0, s.g.Hands[1][0])
	if !errors.Is(err, game.ErrCardNotHeld) {
		t.Fatalf("submit err = %v, want ErrCardNotHeld", err)
	}
	if len(link.sent) != before {
		t.Fatal("rejected submit produced outbound frames")
	}
	if len(s.g.Trick) != 0 {
		t.Fatal("rejected submit mutated the trick")
	}
	if s.pending.Len() != 0 {
		t.Fatal("rejected submit registered a pending key")
	}
}

func TestParticipantSubmitIsOptimistic(t *testing.T) {
	s, link, rec := newTestSession(t, "p1", TopologyRelay)
	hands := dealToParticipant(t, s, 1)
	card := hands[1][0]

	if err := s.handleSubmit(1, card); err != nil {
		t.Fatalf("submit: %v", err)
	}
	if len(s.g.Trick) != 1 || s.g.Trick[0].Card != card {
		t.Fatalf("trick = %+v, want optimistic local play", s.g.Trick)
	}
	if s.g.CurrentTurn != 1 {
		t.Fatalf("participant advanced its own turn to %d", s.g.CurrentTurn)
	}
	if s.pending.Len() != 1 {
		t.Fatalf("pending keys = %d, want 1", s.pending.Len())
	}
	if fr, ok := link.lastOf(OpCardPlayed); !ok {
		t.Fatalf("no published play, ops = %v", link.ops())
	} else {
		var msg CardPlayedMsg
		if err := Decode(fr.Data, &msg); err != nil || msg.Seat != 1 || msg.Card != card {
			t.Fatalf("published play = %+v (err %v)", msg, err)
		}
	}
	if rec.count(game.EventCardPlayed) != 1 {
		t.Fatalf("card played notifications = %d, want 1", rec.count(game.EventCardPlayed))
	}
}

func TestParticipantAbsorbsOwnEcho(t *testing.T) {
	s, _, rec := newTestSession(t, "p1", TopologyRelay)
	hands := dealToParticipant(t, s, 1)
	card := hands[1][0]
	if err := s.handleSubmit(1, card); err != nil {
		t.Fatalf("submit: %v", err)
	}
	handLen := len(s.g.Hands[1])

	echo := ports.Frame{Op: OpCardPlayed, Data: mustEncode(t, OpCardPlayed, CardPlayedMsg{Seat: 1, Card: card})}
	s.handleFrame(echo)

	if len(s.g.Trick) != 1 {
		t.Fatalf("trick grew to %d on echo", len(s.g.Trick))
	}
	if len(s.g.Hands[1]) != handLen {
		t.Fatal("echo removed a second card from the hand")
	}
	if s.pending.Len() != 0 {
		t.Fatal("echo left the pending key registered")
	}
	if got := rec.count(game.EventCardPlayed); got != 2 {
		t.Fatalf("card played notifications = %d, want 2 (submit + echo re-emit)", got)
	}

	// A further duplicate has no pending key left; the trick membership
	// guard absorbs it silently.
	s.handleFrame(echo)
	if len(s.g.Trick) != 1 {
		t.Fatal("second duplicate mutated the trick")
	}
	if got := rec.count(game.EventCardPlayed); got != 2 {
		t.Fatalf("second duplicate re-notified, count = %d", got)
	}
}

func TestParticipantAppliesPeerPlay(t *testing.T) {
	s, _, rec := newTestSession(t, "p1", TopologyRelay)
	hands := dealToParticipant(t, s, 2)
	card := hands[2][1]

	s.handleFrame(ports.Frame{Op: OpCardPlayed, Data: mustEncode(t, OpCardPlayed, CardPlayedMsg{Seat: 2, Card: card})})

	if len(s.g.Trick) != 1 || s.g.Trick[0].Seat != 2 {
		t.Fatalf("trick = %+v, want peer play", s.g.Trick)
	}
	if s.g.CurrentTurn != 2 {
		t.Fatalf("peer play advanced local turn to %d", s.g.CurrentTurn)
	}
	if rec.count(game.EventCardPlayed) != 1 {
		t.Fatal("peer play not notified")
	}
}

func TestParticipantAdoptsTurnSnapshot(t *testing.T) {
	s, _, rec := newTestSession(t, "p1", TopologyRelay)
	dealToParticipant(t, s, 1)

	snap := ports.Frame{Op: OpTurnChanged, Data: mustEncode(t, OpTurnChanged, TurnChangedMsg{TurnIndex: 2, TricksPlayed: 0})}
	s.handleFrame(snap)
	if s.g.CurrentTurn != 2 {
		t.Fatalf("turn = %d after snapshot, want 2", s.g.CurrentTurn)
	}
	notified := rec.count(game.EventTurnChanged)

	// Redelivery of the same snapshot is value-equal and must be silent.
	s.handleFrame(snap)
	if s.g.CurrentTurn != 2 {
		t.Fatalf("turn = %d after duplicate snapshot", s.g.CurrentTurn)
	}
	if got := rec.count(game.EventTurnChanged); got != notified {
		t.Fatalf("duplicate snapshot re-notified (%d -> %d)", notified, got)
	}
}

func TestAuthorityIgnoresSnapshotEchoes(t *testing.T) {
	s, _, _ := newTestSession(t, "p0", TopologyRelay)
	if err := s.handleStartHand(); err != nil {
		t.Fatalf("start hand: %v", err)
	}

	s.handleFrame(ports.Frame{Op: OpTurnChanged, Data: mustEncode(t, OpTurnChanged, TurnChangedMsg{TurnIndex: 3, TricksPlayed: 5})})
	if s.g.CurrentTurn != 0 || s.g.TricksPlayed != 0 {
		t.Fatalf("authority adopted its own snapshot: turn=%d tricks=%d", s.g.CurrentTurn, s.g.TricksPlayed)
	}

	s.handleFrame(ports.Frame{Op: OpTrickCompleted, Data: mustEncode(t, OpTrickCompleted, TrickCompletedMsg{Winner: 2, Leader: 2, WinnerScore: 4})})
	if s.g.Scores[2] != 0 {
		t.Fatal("authority adopted an echoed trick snapshot")
	}
}

func TestAuthorityTimeoutPlaysLowestCard(t *testing.T) {
	s, link, rec := newTestSession(t, "p0", TopologyRelay)
	if err := s.handleStartHand(); err != nil {
		t.Fatalf("start hand: %v", err)
	}

	hand := append([]domain.Card(nil), s.g.Hands[0]...)
	lowest := hand[0]
	for _, c := range hand[1:] {
		if c.Rank < lowest.Rank {
			lowest = c
		}
	}

	s.handleTimerFire(s.timerEpoch)

	if len(s.g.Trick) != 1 || s.g.Trick[0].Card != lowest {
		t.Fatalf("auto play = %+v, want lowest card %v", s.g.Trick, lowest)
	}
	fr, ok := link.lastOf(OpCardPlayed)
	if !ok {
		t.Fatalf("no auto play broadcast, ops = %v", link.ops())
	}
	var msg CardPlayedMsg
	if err := Decode(fr.Data, &msg); err != nil || !msg.Auto {
		t.Fatalf("broadcast auto flag: msg=%+v err=%v", msg, err)
	}
	if rec.count(game.EventTurnStarted) < 2 {
		t.Fatal("next turn not started after auto play")
	}
}

func TestStaleTimerFireIgnored(t *testing.T) {
	s, _, _ := newTestSession(t, "p0", TopologyRelay)
	if err := s.handleStartHand(); err != nil {
		t.Fatalf("start hand: %v", err)
	}

	s.handleTimerFire(s.timerEpoch - 1)
	if len(s.g.Trick) != 0 {
		t.Fatal("stale fire auto-played a card")
	}
}

func TestParticipantTimerNeverForgesAdvance(t *testing.T) {
	s, link, _ := newTestSession(t, "p1", TopologyRelay)
	dealToParticipant(t, s, 1)

	s.handleTimerFire(s.timerEpoch)
	if len(s.g.Trick) != 0 || s.g.CurrentTurn != 1 {
		t.Fatalf("participant timer mutated state: trick=%d turn=%d", len(s.g.Trick), s.g.CurrentTurn)
	}
	if len(link.sent) != 0 {
		t.Fatalf("participant timer sent frames: %v", link.ops())
	}
}

func TestEndOfRoundExpiryAdvancesLocally(t *testing.T) {
	s, link, _ := newTestSession(t, "p1", TopologyRelay)
	dealToParticipant(t, s, 1)

	s.g.Phase = domain.PhaseEndOfRound
	s.g.Trick = []domain.PlayedCard{
		{Seat: 1, Card: domain.Card{Suit: domain.Hearts, Rank: 7}},
		{Seat: 2, Card: domain.Card{Suit: domain.Hearts, Rank: 13}},
		{Seat: 3, Card: domain.Card{Suit: domain.Hearts, Rank: 2}},
		{Seat: 0, Card: domain.Card{Suit: domain.Hearts, Rank: 9}},
	}
	s.g.TrickLeader = 2
	s.g.CurrentTurn = 2
	sent := len(link.sent)

	s.handleTimerFire(s.timerEpoch)

	if s.g.Phase != domain.PhaseTurn {
		t.Fatalf("phase = %q after end-of-round expiry, want turn", s.g.Phase)
	}
	if len(s.g.Trick) != 0 || s.g.TricksPlayed != 1 {
		t.Fatalf("trick=%d tricks=%d after expiry", len(s.g.Trick), s.g.TricksPlayed)
	}
	if len(link.sent) != sent {
		t.Fatalf("participant broadcast end-of-round results: %v", link.ops()[sent:])
	}
}

func TestAuthorityDealsNextHandAfterCompletion(t *testing.T) {
	s, link, rec := newTestSession(t, "p0", TopologyRelay)
	prog := &recordProgression{}
	s.progression = prog
	if err := s.handleStartHand(); err != nil {
		t.Fatalf("start hand: %v", err)
	}

	// Final trick of the hand just resolved.
	for seat := range s.g.Hands {
		s.g.Hands[seat] = nil
	}
	s.g.Phase = domain.PhaseEndOfRound
	s.g.Trick = []domain.PlayedCard{
		{Seat: 0, Card: domain.Card{Suit: domain.Clubs, Rank: 4}},
		{Seat: 1, Card: domain.Card{Suit: domain.Clubs, Rank: 9}},
		{Seat: 2, Card: domain.Card{Suit: domain.Clubs, Rank: 2}},
		{Seat: 3, Card: domain.Card{Suit: domain.Clubs, Rank: 6}},
	}
	s.g.TrickLeader = 1
	s.g.CurrentTurn = 1
	s.g.Scores = map[int]int{0: 1, 1: 2, 2: 0, 3: 0}

	s.handleTimerFire(s.timerEpoch)

	if rec.count(game.EventHandCompleted) != 1 {
		t.Fatal("no hand completed notification")
	}
	if len(prog.awards) != 1 {
		t.Fatalf("progression calls = %d, want 1", len(prog.awards))
	}
	if s.handLeader != 1 {
		t.Fatalf("hand leader = %d after rotation, want 1", s.handLeader)
	}
	if s.g.TrickLeader != 1 || len(s.g.Hands[0]) != 3 {
		t.Fatalf("next hand not dealt: leader=%d hand=%d", s.g.TrickLeader, len(s.g.Hands[0]))
	}
	frames := 0
	for _, op := range link.ops() {
		if op == OpHandDealt {
			frames++
		}
	}
	if frames != 2 {
		t.Fatalf("hand dealt broadcasts = %d, want 2", frames)
	}
	if s.pending.Len() != 0 {
		t.Fatal("pending registry not reset at new hand")
	}
}

func TestDirectParticipantForwardsIntent(t *testing.T) {
	s, link, _ := newTestSession(t, "p1", TopologyDirect)
	hands := dealToParticipant(t, s, 1)

	if err := s.handleSubmit(1, hands[1][0]); err != nil {
		t.Fatalf("submit: %v", err)
	}
	fr, ok := link.lastOf(OpPlayCard)
	if !ok {
		t.Fatalf("no forwarded intent, ops = %v", link.ops())
	}
	var req PlayCardRequest
	if err := Decode(fr.Data, &req); err != nil || req.Seat != 1 || req.Card != hands[1][0] {
		t.Fatalf("forwarded intent = %+v (err %v)", req, err)
	}
}

func TestAuthorityArbitratesForwardedIntent(t *testing.T) {
	s, link, _ := newTestSession(t, "p0", TopologyDirect)
	if err := s.handleStartHand(); err != nil {
		t.Fatalf("start hand: %v", err)
	}

	// Out of turn: rejected with an error broadcast and no state change.
	s.handleFrame(ports.Frame{Op: OpPlayCard, Data: mustEncode(t, OpPlayCard, PlayCardRequest{
		Seat: 2, Card: s.g.Hands[2][0],
	})})
	if len(s.g.Trick) != 0 {
		t.Fatal("out-of-turn intent mutated state")
	}
	if _, ok := link.lastOf(OpGameError); !ok {
		t.Fatalf("no error broadcast, ops = %v", link.ops())
	}

	// In turn: accepted and the results broadcast.
	s.handleFrame(ports.Frame{Op: OpPlayCard, Data: mustEncode(t, OpPlayCard, PlayCardRequest{
		Seat: 0, Card: s.g.Hands[0][0],
	})})
	if len(s.g.Trick) != 1 {
		t.Fatal("legal intent not applied")
	}
	if _, ok := link.lastOf(OpCardPlayed); !ok {
		t.Fatalf("no card played broadcast, ops = %v", link.ops())
	}
}

func TestTimerUpdateSuppressedDuringEndOfRound(t *testing.T) {
	s, _, rec := newTestSession(t, "p1", TopologyRelay)
	dealToParticipant(t, s, 1)

	frame := ports.Frame{Op: OpTimerUpdate, Data: mustEncode(t, OpTimerUpdate, TimerUpdateMsg{SecondsRemaining: 5})}

	s.handleFrame(frame)
	if rec.count(game.EventTimerTick) != 1 {
		t.Fatal("timer update not surfaced during play phase")
	}

	s.g.Phase = domain.PhaseEndOfRound
	s.handleFrame(frame)
	if rec.count(game.EventTimerTick) != 1 {
		t.Fatal("timer update overrode the local end-of-round countdown")
	}
}

func TestGameEndedFrameAdoptedOnce(t *testing.T) {
	s, _, rec := newTestSession(t, "p1", TopologyRelay)
	dealToParticipant(t, s, 1)

	frame := ports.Frame{Op: OpGameEnded, Data: mustEncode(t, OpGameEnded, GameEndedMsg{
		Winner: 2, Scores: map[int]int{0: 4, 1: 3, 2: 10, 3: 1},
	})}
	s.handleFrame(frame)

	if s.g.Phase != domain.PhaseEnded {
		t.Fatalf("phase = %q, want ended", s.g.Phase)
	}
	if s.g.Scores[2] != 10 {
		t.Fatalf("winner score = %d, want 10", s.g.Scores[2])
	}
	if rec.count(game.EventGameCompleted) != 1 {
		t.Fatal("game completion not notified")
	}

	s.handleFrame(frame)
	if rec.count(game.EventGameCompleted) != 1 {
		t.Fatal("duplicate end frame re-notified")
	}
}

func TestSubmitRejectsForeignSeat(t *testing.T) {
	s, _, _ := newTestSession(t, "p1", TopologyRelay)
	err := s.Submit(context.Background(), 2, domain.Card{Suit: domain.Hearts, Rank: 7})
	if !errors.Is(err, ErrNotLocalSeat) {
		t.Fatalf("Submit err = %v, want ErrNotLocalSeat", err)
	}
}

func TestSessionRunLoop(t *testing.T) {
	s, link, _ := newTestSession(t, "p0", TopologyRelay)
	ctx, cancel := context.WithCancel(context.Background())

	errC := make(chan error, 1)
	go func() { errC <- s.Run(ctx) }()

	if err := s.StartHand(ctx); err != nil {
		t.Fatalf("StartHand: %v", err)
	}
	card := s.g.Hands[0][0]
	if err := s.Submit(ctx, 0, card); err != nil {
		t.Fatalf("Submit: %v", err)
	}

	cancel()
	if err := <-errC; !errors.Is(err, context.Canceled) {
		t.Fatalf("Run err = %v, want context.Canceled", err)
	}
	<-s.stopped

	if len(s.g.Trick) != 1 || s.g.Trick[0].Card != card {
		t.Fatalf("trick = %+v after loop submit", s.g.Trick)
	}
	if _, ok := link.lastOf(OpCardPlayed); !ok {
		t.Fatalf("loop submit not broadcast, ops = %v", link.ops())
	}
}

func TestRedeliveredPlayAfterTrickClearedIsAbsorbed(t *testing.T) {
	s, _, rec := newTestSession(t, "p1", TopologyRelay)
	hands := dealToParticipant(t, s, 2)

	peerPlay := ports.Frame{Op: OpCardPlayed, Data: mustEncode(t, OpCardPlayed, CardPlayedMsg{Seat: 2, Card: hands[2][0]})}
	s.handleFrame(peerPlay)
	s.handleFrame(ports.Frame{Op: OpTrickCompleted, Data: mustEncode(t, OpTrickCompleted, TrickCompletedMsg{Winner: 2, Leader: 2, WinnerScore: 1})})

	// The end-of-round pause elapses and the table clears.
	s.handleTimerFire(s.timerEpoch)
	if s.g.Phase != domain.PhaseTurn || len(s.g.Trick) != 0 {
		t.Fatalf("setup: phase=%q trick=%d", s.g.Phase, len(s.g.Trick))
	}
	notified := rec.count(game.EventCardPlayed)

	// The relay redelivers the play from the finished trick. The card has
	// already left seat 2's hand, so the fresh trick must stay empty.
	s.handleFrame(peerPlay)
	if len(s.g.Trick) != 0 {
		t.Fatalf("redelivered play entered the new trick: %+v", s.g.Trick)
	}
	if got := rec.count(game.EventCardPlayed); got != notified {
		t.Fatalf("redelivered play re-notified (%d -> %d)", notified, got)
	}
}

func TestTurnSnapshotAfterGameEndIgnored(t *testing.T) {
	s, _, rec := newTestSession(t, "p1", TopologyRelay)
	dealToParticipant(t, s, 1)

	s.handleFrame(ports.Frame{Op: OpGameEnded, Data: mustEncode(t, OpGameEnded, GameEndedMsg{
		Winner: 2, Scores: map[int]int{0: 4, 1: 3, 2: 10, 3: 1},
	})})
	if s.g.Phase != domain.PhaseEnded {
		t.Fatalf("setup phase = %q, want ended", s.g.Phase)
	}
	tricksPlayed := s.g.TricksPlayed

	// A straggler TurnChanged snapshot from before the finish arrives.
	s.handleFrame(ports.Frame{Op: OpTurnChanged, Data: mustEncode(t, OpTurnChanged, TurnChangedMsg{TurnIndex: 1, TricksPlayed: 0})})

	if s.g.Phase != domain.PhaseEnded {
		t.Fatalf("ended game resurrected: phase = %q", s.g.Phase)
	}
	if s.g.TricksPlayed != tricksPlayed {
		t.Fatalf("trick counter rolled back to %d", s.g.TricksPlayed)
	}
	if rec.count(game.EventTurnChanged) != 0 {
		t.Fatal("post-end snapshot notified a turn change")
	}
}
