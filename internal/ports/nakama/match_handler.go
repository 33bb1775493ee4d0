package nakama

import (
	"context"
	"database/sql"
	"encoding/json"
	"math/rand"
	"strconv"
	"time"

	"whist/internal/bot"
	"whist/internal/config"
	"whist/internal/domain"
	"whist/internal/game"
	"whist/internal/ports"
	"whist/internal/sync"

	"github.com/heroiclabs/nakama-common/runtime"
)

// matchLabel is the JSON document advertised through the Nakama match
// listing index.
type matchLabel struct {
	Open  int    `json:"open"`
	Game  string `json:"game"`
	Phase string `json:"phase"`
}

// MatchState holds the authoritative runtime state for the Nakama match handler.
type MatchState struct {
	Seats                [4]string                   `json:"seats"`                   // Array of user IDs, empty string means seat is empty
	OwnerSeat            int                         `json:"owner_seat"`              // Seat index of the match owner
	HandLeader           int                         `json:"hand_leader"`             // Seat leading the first trick of the current hand
	LastWinnerSeat       int                         `json:"last_winner_seat"`        // Seat index of the winner of the last game
	Tick                 int64                       `json:"tick"`                    // Current tick of the match for turn-based logic
	TurnDeadlineTick     int64                       `json:"turn_deadline_tick"`      // Tick when the active turn auto-forfeits
	EndRoundDeadlineTick int64                       `json:"end_round_deadline_tick"` // Tick when the end-of-round pause finishes
	Presences            map[string]runtime.Presence `json:"-"`                       // Map UserId -> Presence for targeted messaging
	Svc                  *game.Service               `json:"-"`                       // Trick engine with game logic
	Game                 *domain.Game                `json:"-"`                       // Current active game state (nil if in lobby)
	Rng                  *rand.Rand                  `json:"-"`                       // Deal seed and bot delay source
	Progression          ports.Progression           `json:"-"`                       // Experience hook for completed hands
	BotsEnabled          bool                        `json:"bots_enabled"`            // Whether AI players are allowed
	BotMinDelay          int                         `json:"bot_min_delay"`           // Min seconds a bot waits
	BotMaxDelay          int                         `json:"bot_max_delay"`           // Max seconds a bot waits
	BotAutoFillDelay     int                         `json:"bot_auto_fill_delay"`     // Seconds to wait before auto-filling with bots
	BotWaitUntil         int64                       `json:"bot_wait_until"`          // Tick when the bot should act
	LastSinglePlayerTick int64                       `json:"last_single_player_tick"` // Tick when a single player started waiting
	Bots                 map[string]bot.Brain        `json:"-"`                       // Active bot strategies
}

func (ms *MatchState) GetOpenSeatsCount() int {
	count := 0
	for _, seat := range ms.Seats {
		if seat == "" {
			count++
		}
	}
	return count
}

func (ms *MatchState) GetOccupiedSeatCount() int {
	count := 0
	for _, seat := range ms.Seats {
		if seat != "" {
			count++
		}
	}
	return count
}

func (ms *MatchState) GetHumanPlayerCount() int {
	count := 0
	for _, seat := range ms.Seats {
		if seat != "" && !isBotUserId(seat) {
			count++
		}
	}
	return count
}

// IsSeatPresent reports whether the seat's occupant is connected. Bots count
// as present so a rare timeout for one falls back to the deliberate policy.
func (ms *MatchState) IsSeatPresent(userID string) bool {
	if isBotUserId(userID) {
		return true
	}
	_, ok := ms.Presences[userID]
	return ok
}

// isBotUserId reports whether the given user id represents a bot seat.
func isBotUserId(userId string) bool {
	return bot.IsBot(userId)
}

// isHumanSeat reports whether the seat index belongs to a human player.
func isHumanSeat(seats []string, seatIndex int) bool {
	if seatIndex < 0 || seatIndex >= len(seats) {
		return false
	}
	userId := seats[seatIndex]
	return userId != "" && !isBotUserId(userId)
}

// findFirstHumanSeat returns the first seat index with a human occupant or -1 if none exist.
func findFirstHumanSeat(seats []string) int {
	for i, userId := range seats {
		if userId != "" && !isBotUserId(userId) {
			return i
		}
	}
	return -1
}

// shouldTerminateNoHumans returns true when there are no humans in the match.
func shouldTerminateNoHumans(seats []string) bool {
	return findFirstHumanSeat(seats) == -1
}

func newMatchHandler() runtime.Match {
	return &matchHandler{}
}

type matchHandler struct{}

// MatchInit is called when the match is created.
func (mh *matchHandler) MatchInit(ctx context.Context, logger runtime.Logger, db *sql.DB, nk runtime.NakamaModule, params map[string]interface{}) (interface{}, int, string) {
	logger.Debug("MatchInit: Initializing match handler.")

	// Load bot identities from data folder
	if err := bot.LoadIdentities("data/bot_identities.json"); err != nil {
		logger.Warn("MatchInit: Could not load bot identities: %v", err)
	}

	// Load game configuration
	if err := config.LoadGameConfig("data/game_config.json"); err != nil {
		logger.Warn("MatchInit: Could not load game config: %v", err)
	}

	state := &MatchState{
		Tick:             time.Now().Unix(),
		Presences:        make(map[string]runtime.Presence),
		Svc:              game.NewService(nil),
		Rng:              rand.New(rand.NewSource(time.Now().UnixNano())),
		OwnerSeat:        -1,
		LastWinnerSeat:   -1,
		Bots:             make(map[string]bot.Brain),
		Progression:      NewNakamaProgressionAdapter(nk),
		BotsEnabled:      config.BotsEnabled(),
		BotAutoFillDelay: config.GetBotAutoFillDelaySeconds(),
	}

	// Environment overrides for bot configuration
	env, _ := ctx.Value(runtime.RUNTIME_CTX_ENV).(map[string]string)
	if val, ok := env["whist_bots_enabled"]; ok {
		state.BotsEnabled = val == "true"
	}
	if val, ok := env["whist_bot_min_delay_sec"]; ok {
		if i, err := strconv.Atoi(val); err == nil {
			state.BotMinDelay = i
		}
	}
	if val, ok := env["whist_bot_max_delay_sec"]; ok {
		if i, err := strconv.Atoi(val); err == nil {
			state.BotMaxDelay = i
		}
	}
	if val, ok := env["whist_bot_auto_fill_delay_sec"]; ok {
		if i, err := strconv.Atoi(val); err == nil {
			state.BotAutoFillDelay = i
		}
	}

	// Defaults if not set
	if state.BotMinDelay == 0 {
		state.BotMinDelay = 1
	}
	if state.BotMaxDelay == 0 {
		state.BotMaxDelay = 3
	}
	if state.BotAutoFillDelay == 0 {
		state.BotAutoFillDelay = 5
	}

	label := matchLabel{
		Open:  state.GetOpenSeatsCount(),
		Game:  "whist",
		Phase: "lobby",
	}
	labelBytes, err := json.Marshal(label)
	if err != nil {
		logger.Error("MatchInit: Failed to marshal label: %v", err)
		return nil, 0, ""
	}

	tickRate := 1 // turn timers count whole seconds
	return state, tickRate, string(labelBytes)
}

func (mh *matchHandler) MatchJoinAttempt(ctx context.Context, logger runtime.Logger, db *sql.DB, nk runtime.NakamaModule, dispatcher runtime.MatchDispatcher, tick int64, state interface{}, presence runtime.Presence, metadata map[string]string) (interface{}, bool, string) {
	matchState, ok := state.(*MatchState)
	if !ok {
		return state, false, "state not found"
	}

	// A player who still holds a seat may always reconnect.
	for _, seatUserId := range matchState.Seats {
		if seatUserId == presence.GetUserId() {
			return state, true, ""
		}
	}

	// Allow join if there is an empty seat OR a bot to replace (if game hasn't started)
	if matchState.GetOpenSeatsCount() <= 0 {
		hasBot := false
		if matchState.Game == nil {
			for _, seat := range matchState.Seats {
				if isBotUserId(seat) {
					hasBot = true
					break
				}
			}
		}
		if !hasBot {
			return state, false, "Match full"
		}
	}

	return state, true, ""
}

func (mh *matchHandler) MatchJoin(ctx context.Context, logger runtime.Logger, db *sql.DB, nk runtime.NakamaModule, dispatcher runtime.MatchDispatcher, tick int64, state interface{}, presences []runtime.Presence) interface{} {
	matchState, ok := state.(*MatchState)
	if !ok {
		logger.Error("MatchJoin: state not found")
		return state
	}

	for _, p := range presences {
		// Store presence
		matchState.Presences[p.GetUserId()] = p

		// A reconnecting player already holds a seat.
		reclaimed := false
		for i, seatUserId := range matchState.Seats {
			if seatUserId == p.GetUserId() {
				logger.Debug("MatchJoin: User %s reclaimed seat %d.", p.GetUserId(), i)
				reclaimed = true
				break
			}
		}
		if reclaimed {
			continue
		}

		// Assign seat: Try empty seats first, then bots (if lobby)
		assigned := false
		for i, seatUserId := range matchState.Seats {
			if seatUserId == "" {
				matchState.Seats[i] = p.GetUserId()
				assigned = true
				break
			}
		}

		if !assigned && matchState.Game == nil {
			for i, seatUserId := range matchState.Seats {
				if isBotUserId(seatUserId) {
					logger.Info("MatchJoin: Replacing bot %s with human %s in seat %d", seatUserId, p.GetUserId(), i)
					delete(matchState.Bots, seatUserId)
					matchState.Seats[i] = p.GetUserId()
					assigned = true
					break
				}
			}
		}

		if !assigned {
			logger.Warn("MatchJoin: User %s joined but no seat (empty or bot) was available.", p.GetUserId())
			continue
		}
	}

	// The owner seat is assigned once to the first human and kept while that
	// human stays seated. Recomputing it from live presences on every join
	// is how a session ends up with two authorities.
	if !isHumanSeat(matchState.Seats[:], matchState.OwnerSeat) {
		matchState.OwnerSeat = findFirstHumanSeat(matchState.Seats[:])
		if matchState.OwnerSeat >= 0 {
			logger.Debug("MatchJoin: Owner set to human seat %d.", matchState.OwnerSeat)
		}
	}

	mh.updateLabel(matchState, dispatcher, logger)
	mh.broadcastMatchState(matchState, dispatcher, logger)

	return matchState
}

// MatchLeave is called when one or more players leave the match.
func (mh *matchHandler) MatchLeave(ctx context.Context, logger runtime.Logger, db *sql.DB, nk runtime.NakamaModule, dispatcher runtime.MatchDispatcher, tick int64, state interface{}, presences []runtime.Presence) interface{} {
	matchState, ok := state.(*MatchState)
	if !ok {
		logger.Error("MatchLeave: state not found")
		return state
	}

	for _, p := range presences {
		delete(matchState.Presences, p.GetUserId())

		// During a game the seat is kept so its cards stay in play; the
		// turn timer plays for the absent seat and the player may rejoin.
		if matchState.Game != nil {
			logger.Debug("MatchLeave: User %s disconnected mid-game, seat retained.", p.GetUserId())
			continue
		}

		for i, seatUserId := range matchState.Seats {
			if seatUserId == p.GetUserId() {
				matchState.Seats[i] = ""
				logger.Debug("MatchLeave: User %s left, seat %d freed.", p.GetUserId(), i)
				break
			}
		}
	}

	if !isHumanSeat(matchState.Seats[:], matchState.OwnerSeat) {
		newOwnerSeat := findFirstHumanSeat(matchState.Seats[:])
		matchState.OwnerSeat = newOwnerSeat
		if newOwnerSeat >= 0 {
			logger.Debug("MatchLeave: Owner set to human seat %d.", newOwnerSeat)
		}
	}

	if shouldTerminateNoHumans(matchState.Seats[:]) && matchState.Game == nil {
		logger.Info("MatchLeave: Terminating match with no humans.")
		return nil
	}

	mh.updateLabel(matchState, dispatcher, logger)

	return matchState
}

func (mh *matchHandler) MatchLoop(ctx context.Context, logger runtime.Logger, db *sql.DB, nk runtime.NakamaModule, dispatcher runtime.MatchDispatcher, tick int64, state interface{}, messages []runtime.MatchData) interface{} {
	matchState, ok := state.(*MatchState)
	if !ok {
		return state
	}

	matchState.Tick = tick

	// A lobby left with only bots after the last human's game ended has
	// nobody to wait for.
	if matchState.Game == nil && shouldTerminateNoHumans(matchState.Seats[:]) && matchState.GetOccupiedSeatCount() > 0 {
		logger.Info("MatchLoop: Terminating bot-only match.")
		return nil
	}

	for _, msg := range messages {
		switch msg.GetOpCode() {
		case sync.OpStartGame:
			mh.handleStartGame(ctx, matchState, dispatcher, logger, msg)
		case sync.OpPlayCard:
			mh.handlePlayCard(ctx, matchState, dispatcher, logger, msg)
		default:
			logger.Warn("MatchLoop: Unknown opcode received: %d", msg.GetOpCode())
		}
	}

	mh.processTimers(ctx, matchState, dispatcher, logger)

	if matchState.BotsEnabled {
		mh.processBots(ctx, matchState, dispatcher, logger)
	}

	return matchState
}

// processTimers drives the turn countdown and the end-of-round pause off the
// match tick.
func (mh *matchHandler) processTimers(ctx context.Context, state *MatchState, dispatcher runtime.MatchDispatcher, logger runtime.Logger) {
	if state.Game == nil {
		return
	}

	switch state.Game.Phase {
	case domain.PhaseTurn:
		if state.TurnDeadlineTick == 0 {
			return
		}
		remaining := state.TurnDeadlineTick - state.Tick
		if remaining > 0 {
			mh.broadcastPayload(state, dispatcher, logger, sync.OpTimerUpdate, sync.TimerUpdateMsg{SecondsRemaining: int(remaining)}, nil)
			return
		}

		seat := state.Game.CurrentTurn
		userID := state.Game.SeatID(seat)
		events, err := state.Svc.TimeoutTurn(state.Game, seat, state.IsSeatPresent(userID))
		if err != nil {
			logger.Error("processTimers: Auto-forfeit for seat %d failed: %v", seat, err)
			state.TurnDeadlineTick = 0
			return
		}
		if events == nil {
			return
		}
		logger.Info("processTimers: Seat %d timed out, card auto-played.", seat)
		mh.dispatchEvents(ctx, state, dispatcher, logger, events)

	case domain.PhaseEndOfRound:
		if state.EndRoundDeadlineTick == 0 || state.Tick < state.EndRoundDeadlineTick {
			return
		}
		events, err := state.Svc.CompleteEndOfRound(state.Game)
		if err != nil {
			logger.Error("processTimers: End-of-round completion failed: %v", err)
			state.EndRoundDeadlineTick = 0
			return
		}
		mh.dispatchEvents(ctx, state, dispatcher, logger, events)
	}
}

func (mh *matchHandler) processBots(ctx context.Context, state *MatchState, dispatcher runtime.MatchDispatcher, logger runtime.Logger) {
	// 1. Auto-fill lobby with bots if there's only one human player after delay
	if state.Game == nil {
		humanCount := state.GetHumanPlayerCount()
		if humanCount == 1 {
			if state.LastSinglePlayerTick == 0 {
				state.LastSinglePlayerTick = state.Tick
				logger.Debug("processBots: Single player detected, starting auto-fill timer.")
			}

			if state.Tick-state.LastSinglePlayerTick >= int64(state.BotAutoFillDelay) {
				added := false
				for i, seat := range state.Seats {
					if seat == "" {
						identity := bot.GetBotIdentity(i)
						botID := identity.UserID
						state.Seats[i] = botID

						brain, err := bot.NewBrain(bot.LevelFromDifficulty(identity.Difficulty))
						if err != nil {
							logger.Error("processBots: Failed to create brain for %s: %v", botID, err)
						} else {
							state.Bots[botID] = brain
						}

						logger.Info("processBots: Added bot %s (%s) to seat %d", identity.Username, botID, i)
						added = true
					}
				}
				if added {
					mh.updateLabel(state, dispatcher, logger)
					mh.broadcastMatchState(state, dispatcher, logger)
				}
				state.LastSinglePlayerTick = 0
			}
		} else {
			// Reset timer if 0 or >1 humans
			state.LastSinglePlayerTick = 0
		}
	}

	// 2. Handle bot turns in-game
	if state.Game != nil && state.Game.Phase == domain.PhaseTurn {
		currentTurn := state.Game.CurrentTurn
		currentUserID := state.Game.SeatID(currentTurn)

		if isBotUserId(currentUserID) {
			if state.BotWaitUntil == 0 {
				delay := state.BotMinDelay
				if state.BotMaxDelay > state.BotMinDelay {
					delay += state.Rng.Intn(state.BotMaxDelay - state.BotMinDelay + 1)
				}
				state.BotWaitUntil = state.Tick + int64(delay)
				logger.Debug("processBots: Bot %s (seat %d) will act at tick %d (current %d)", currentUserID, currentTurn, state.BotWaitUntil, state.Tick)
			}

			if state.Tick >= state.BotWaitUntil {
				state.BotWaitUntil = 0 // Reset for next turn

				brain, exists := state.Bots[currentUserID]
				if !exists {
					var err error
					brain, err = bot.NewBrain(bot.BotLevelNormal)
					if err != nil {
						logger.Error("processBots: Failed to create fallback brain: %v", err)
						return
					}
					state.Bots[currentUserID] = brain
				}

				card, err := brain.ChooseCard(state.Game, currentTurn)
				if err != nil {
					logger.Error("processBots: Bot %s failed to choose a card: %v", currentUserID, err)
					return
				}

				events, err := state.Svc.PlayCard(state.Game, currentTurn, card)
				if err != nil {
					logger.Error("processBots: Bot %s played illegal card %v: %v", currentUserID, card, err)
					return
				}
				mh.dispatchEvents(ctx, state, dispatcher, logger, events)
			}
		} else {
			// Not a bot turn, reset wait if it was set
			state.BotWaitUntil = 0
		}
	}
}

func (mh *matchHandler) handleStartGame(ctx context.Context, state *MatchState, dispatcher runtime.MatchDispatcher, logger runtime.Logger, msg runtime.MatchData) {
	senderID := msg.GetUserId()
	senderSeat := -1
	for i, seatUserId := range state.Seats {
		if seatUserId == senderID {
			senderSeat = i
			break
		}
	}

	logger.Info("StartGame: Request received from %s (seat=%d, owner_seat=%d, occupied=%d)", senderID, senderSeat, state.OwnerSeat, state.GetOccupiedSeatCount())

	if state.Game != nil {
		logger.Warn("StartGame: Game already in progress.")
		return
	}

	if senderSeat != state.OwnerSeat {
		logger.Warn("StartGame: User %s tried to start game but is not owner (owner_seat=%d)", senderID, state.OwnerSeat)
		return
	}

	// Fill the remaining seats with bots so the table is complete.
	if state.BotsEnabled {
		for i, seat := range state.Seats {
			if seat == "" {
				identity := bot.GetBotIdentity(i)
				state.Seats[i] = identity.UserID
				if brain, err := bot.NewBrain(bot.LevelFromDifficulty(identity.Difficulty)); err == nil {
					state.Bots[identity.UserID] = brain
				}
			}
		}
	}

	// Compact occupied seats to the front so game seat indexes line up with
	// lobby seats for the whole session.
	seats := make([]string, 0, len(state.Seats))
	for _, seat := range state.Seats {
		if seat != "" {
			seats = append(seats, seat)
		}
	}
	copy(state.Seats[:], seats)
	for i := len(seats); i < len(state.Seats); i++ {
		state.Seats[i] = ""
	}
	if !isHumanSeat(state.Seats[:], state.OwnerSeat) {
		state.OwnerSeat = findFirstHumanSeat(state.Seats[:])
	}

	minSeats, _ := config.GetSeatBounds()
	if len(seats) < minSeats {
		logger.Warn("StartGame: Cannot start with %d players. Need at least %d.", len(seats), minSeats)
		return
	}

	state.Game = domain.NewGame(seats, config.GetCardsPerHand(), config.GetTargetScore())

	state.HandLeader = 0
	if state.LastWinnerSeat >= 0 && state.LastWinnerSeat < len(seats) {
		state.HandLeader = state.LastWinnerSeat
	}

	events, err := state.Svc.StartHand(state.Game, state.Rng.Int63(), state.HandLeader)
	if err != nil {
		logger.Error("StartGame: Failed to start game: %v", err)
		state.Game = nil
		return
	}

	mh.updateLabel(state, dispatcher, logger)
	mh.broadcastMatchState(state, dispatcher, logger)
	mh.dispatchEvents(ctx, state, dispatcher, logger, events)

	logger.Info("StartGame: Game started with %d players.", len(seats))
}

func (mh *matchHandler) handlePlayCard(ctx context.Context, state *MatchState, dispatcher runtime.MatchDispatcher, logger runtime.Logger, msg runtime.MatchData) {
	senderID := msg.GetUserId()

	if state.Game == nil {
		logger.Warn("handlePlayCard: Game not started.")
		return
	}

	// The seat comes from the verified sender identity, never the payload.
	senderSeat := state.Game.SeatOf(senderID)
	if senderSeat < 0 {
		logger.Warn("handlePlayCard: User %s is not seated in the game.", senderID)
		return
	}

	var request sync.PlayCardRequest
	if err := sync.Decode(msg.GetData(), &request); err != nil {
		logger.Error("handlePlayCard: Failed to unmarshal PlayCardRequest: %v", err)
		return
	}

	events, err := state.Svc.PlayCard(state.Game, senderSeat, request.Card)
	if err != nil {
		logger.Warn("handlePlayCard: User %s (seat %d) failed to play %v: %v", senderID, senderSeat, request.Card, err)
		mh.sendError(state, dispatcher, logger, senderID, 400, err.Error())
		return
	}

	mh.dispatchEvents(ctx, state, dispatcher, logger, events)
}

// dispatchEvents broadcasts the engine's events and applies their side
// effects on the match: timer deadlines, experience awards, the next deal.
func (mh *matchHandler) dispatchEvents(ctx context.Context, state *MatchState, dispatcher runtime.MatchDispatcher, logger runtime.Logger, events []game.Event) {
	for _, ev := range events {
		mh.broadcastEvent(state, dispatcher, logger, ev)
	}

	gameCompleted := false
	gameWinner := -1
	handCompleted := false
	var handTricks map[int]int
	turnStarted := false
	endOfRound := false

	for _, ev := range events {
		switch ev.Kind {
		case game.EventTurnStarted:
			turnStarted = true
		case game.EventEndOfRoundStarted:
			endOfRound = true
		case game.EventHandCompleted:
			handCompleted = true
			handTricks = ev.Payload.(game.HandCompletedPayload).HandTricks
		case game.EventGameCompleted:
			gameCompleted = true
			gameWinner = ev.Payload.(game.GameCompletedPayload).Winner
		}
	}

	turnSeconds := int64(config.GetTurnDurationSeconds())

	if gameCompleted {
		state.LastWinnerSeat = gameWinner
		state.Game = nil
		state.TurnDeadlineTick = 0
		state.EndRoundDeadlineTick = 0
		state.BotWaitUntil = 0

		// Free seats held by players who disconnected during the game.
		for i, seatUserId := range state.Seats {
			if seatUserId != "" && !isBotUserId(seatUserId) {
				if _, connected := state.Presences[seatUserId]; !connected {
					state.Seats[i] = ""
				}
			}
		}
		if !isHumanSeat(state.Seats[:], state.OwnerSeat) {
			state.OwnerSeat = findFirstHumanSeat(state.Seats[:])
		}

		mh.updateLabel(state, dispatcher, logger)
		return
	}

	if handCompleted {
		state.TurnDeadlineTick = 0
		state.EndRoundDeadlineTick = 0
		mh.awardExperience(ctx, state, logger, handTricks)

		state.HandLeader = state.Game.NextSeat(state.HandLeader)
		next, err := state.Svc.StartHand(state.Game, state.Rng.Int63(), state.HandLeader)
		if err != nil {
			logger.Error("dispatchEvents: Failed to deal next hand: %v", err)
			return
		}
		mh.dispatchEvents(ctx, state, dispatcher, logger, next)
		return
	}

	if endOfRound {
		state.TurnDeadlineTick = 0
		state.EndRoundDeadlineTick = state.Tick + turnSeconds
		return
	}

	if turnStarted {
		state.EndRoundDeadlineTick = 0
		state.TurnDeadlineTick = state.Tick + turnSeconds
		state.BotWaitUntil = 0
	}
}

func (mh *matchHandler) awardExperience(ctx context.Context, state *MatchState, logger runtime.Logger, handTricks map[int]int) {
	if state.Progression == nil || state.Game == nil {
		return
	}
	awards := make([]ports.ExperienceAward, 0, len(handTricks))
	for seat, tricks := range handTricks {
		awards = append(awards, ports.ExperienceAward{
			SeatID: state.Game.SeatID(seat),
			Points: int64(tricks) * 10,
		})
	}
	if err := state.Progression.AwardHandExperience(ctx, awards); err != nil {
		logger.Error("awardExperience: %v", err)
	}
}

// broadcastEvent maps one engine event onto the wire protocol and dispatches
// it, honoring targeted recipients.
func (mh *matchHandler) broadcastEvent(state *MatchState, dispatcher runtime.MatchDispatcher, logger runtime.Logger, ev game.Event) {
	var opCode int64
	var payload any

	switch ev.Kind {
	case game.EventHandDealt:
		p := ev.Payload.(game.HandDealtPayload)
		opCode = sync.OpHandDealt
		payload = sync.HandDealtMsg{
			Hands:    map[int][]domain.Card{p.Seat: p.Hand},
			DealSeed: p.DealSeed,
			Leader:   state.HandLeader,
		}
	case game.EventCardPlayed:
		p := ev.Payload.(game.CardPlayedPayload)
		opCode = sync.OpCardPlayed
		payload = sync.CardPlayedMsg{Seat: p.Seat, Card: p.Card, Auto: p.Auto}
	case game.EventTurnChanged:
		p := ev.Payload.(game.TurnChangedPayload)
		opCode = sync.OpTurnChanged
		payload = sync.TurnChangedMsg{TurnIndex: p.TurnIndex, TricksPlayed: p.TricksPlayed}
	case game.EventTrickCompleted:
		p := ev.Payload.(game.TrickCompletedPayload)
		opCode = sync.OpTrickCompleted
		payload = sync.TrickCompletedMsg{Winner: p.Winner, Leader: p.Leader, WinnerScore: p.WinnerScore}
	case game.EventGameCompleted:
		p := ev.Payload.(game.GameCompletedPayload)
		opCode = sync.OpGameEnded
		payload = sync.GameEndedMsg{Winner: p.Winner, Scores: p.Scores}
	default:
		// Local-only events (turn start/end, pauses) have no wire form.
		return
	}

	mh.broadcastPayload(state, dispatcher, logger, opCode, payload, ev.Recipients)
}

func (mh *matchHandler) broadcastPayload(state *MatchState, dispatcher runtime.MatchDispatcher, logger runtime.Logger, opCode int64, payload any, recipientIDs []string) {
	bytes, err := sync.Encode(opCode, payload)
	if err != nil {
		logger.Error("broadcastPayload: Failed to marshal op %d: %v", opCode, err)
		return
	}

	// Determine recipients (default to broadcast)
	var recipients []runtime.Presence
	if len(recipientIDs) > 0 {
		for _, uid := range recipientIDs {
			if p, ok := state.Presences[uid]; ok {
				recipients = append(recipients, p)
			}
		}

		// If we had intended recipients but none are connected (e.g. they
		// are bots), we MUST NOT broadcast to everyone else.
		if len(recipients) == 0 {
			return
		}
	}

	dispatcher.BroadcastMessage(opCode, bytes, recipients, nil, true)
}

func (mh *matchHandler) broadcastMatchState(state *MatchState, dispatcher runtime.MatchDispatcher, logger runtime.Logger) {
	var playerStates []sync.PlayerState
	for i, userId := range state.Seats {
		if userId == "" {
			continue
		}

		displayName := userId
		if p, exists := state.Presences[userId]; exists {
			displayName = p.GetUsername()
		} else if name := bot.GetBotDisplayName(userId); name != "" {
			displayName = name
		}

		cardsRemaining := 0
		if state.Game != nil {
			cardsRemaining = len(state.Game.Hands[i])
		}

		playerStates = append(playerStates, sync.PlayerState{
			UserID:         userId,
			Seat:           i,
			IsOwner:        i == state.OwnerSeat,
			DisplayName:    displayName,
			CardsRemaining: cardsRemaining,
		})
	}

	snapshot := sync.MatchStateMsg{
		Seats:     state.Seats[:],
		OwnerSeat: state.OwnerSeat,
		Players:   playerStates,
	}
	mh.broadcastPayload(state, dispatcher, logger, sync.OpMatchState, snapshot, nil)
}

// sendError sends a GameErrorMsg to a specific user.
func (mh *matchHandler) sendError(state *MatchState, dispatcher runtime.MatchDispatcher, logger runtime.Logger, userID string, code int, message string) {
	bytes, err := sync.Encode(sync.OpGameError, sync.GameErrorMsg{Code: code, Message: message})
	if err != nil {
		logger.Error("sendError: Failed to marshal GameErrorMsg: %v", err)
		return
	}

	presence, ok := state.Presences[userID]
	if !ok {
		logger.Warn("sendError: Cannot send error to %s: Presence not found", userID)
		return
	}

	dispatcher.BroadcastMessage(sync.OpGameError, bytes, []runtime.Presence{presence}, nil, true)
}

func (mh *matchHandler) updateLabel(state *MatchState, dispatcher runtime.MatchDispatcher, logger runtime.Logger) {
	phase := "lobby"
	if state.Game != nil {
		phase = "playing"
	}

	label := matchLabel{
		Open:  state.GetOpenSeatsCount(),
		Game:  "whist",
		Phase: phase,
	}
	labelBytes, err := json.Marshal(label)
	if err != nil {
		logger.Error("UpdateLabel: Failed to marshal: %v", err)
		return
	}
	if err := dispatcher.MatchLabelUpdate(string(labelBytes)); err != nil {
		logger.Error("UpdateLabel: Failed to update: %v", err)
	}
}

func (mh *matchHandler) MatchTerminate(ctx context.Context, logger runtime.Logger, db *sql.DB, nk runtime.NakamaModule, dispatcher runtime.MatchDispatcher, tick int64, state interface{}, reason int) interface{} {
	logger.Debug("MatchTerminate: Match terminated for reason %d", reason)
	return state
}

func (mh *matchHandler) MatchSignal(ctx context.Context, logger runtime.Logger, db *sql.DB, nk runtime.NakamaModule, dispatcher runtime.MatchDispatcher, tick int64, state interface{}, data string) (interface{}, string) {
	return state, ""
}
