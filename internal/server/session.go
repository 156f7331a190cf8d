package server

import (
	"encoding/json"
	"errors"
	rand "math/rand/v2"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/coder/quartz"

	"github.com/cardroom/headsup/internal/deck"
	"github.com/cardroom/headsup/internal/game"
	"github.com/cardroom/headsup/internal/gameid"
	"github.com/cardroom/headsup/internal/protocol"
)

// Session is the hub: it owns the table, the timer table and the
// player-id to connection registry under one mutex. Every inbound
// frame, timer expiry and disconnect runs through that mutex, so game
// state never sees concurrent access.
type Session struct {
	logger *log.Logger
	clock  quartz.Clock
	cfg    *Config

	mu        sync.Mutex
	table     *game.Table
	timers    *TimerTable
	conns     map[string]*Connection
	actionGen int
}

// NewSession creates a hub over a fresh table.
func NewSession(cfg *Config, logger *log.Logger, clock quartz.Clock, rng *rand.Rand) *Session {
	return &Session{
		logger: logger.WithPrefix("session"),
		clock:  clock,
		cfg:    cfg,
		table:  game.NewTable(rng, cfg.Game.SmallBlind, cfg.Game.BigBlind, cfg.Game.StartingStack),
		timers: NewTimerTable(clock),
		conns:  make(map[string]*Connection),
	}
}

// Table exposes the table for tests.
func (s *Session) Table() *game.Table {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.table
}

// Register mints an opaque player id for a freshly accepted
// connection and sends the welcome frame.
func (s *Session) Register(c *Connection) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := gameid.New()
	c.SetPlayerID(id)
	s.conns[id] = c
	s.logger.Info("connection registered", "player", id)

	s.sendTo(c, protocol.TypeWelcome, protocol.WelcomePayload{
		PlayerID: id,
		Table:    s.snapshotLocked(),
	})
}

// HandleFrame dispatches one inbound frame. Validation failures reply
// with an error frame; the connection stays open.
func (s *Session) HandleFrame(c *Connection, frame []byte) {
	var env protocol.Envelope
	if err := json.Unmarshal(frame, &env); err != nil {
		s.mu.Lock()
		s.sendErrorLocked(c, protocol.CodeInvalidJSON, "malformed frame")
		s.mu.Unlock()
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	switch env.Type {
	case protocol.TypeJoin:
		var p protocol.JoinPayload
		if err := json.Unmarshal(env.Payload, &p); err != nil {
			s.sendErrorLocked(c, protocol.CodeInvalidInput, "malformed join payload")
			return
		}
		s.handleJoinLocked(c, p)

	case protocol.TypeAction:
		var p protocol.ActionPayload
		if err := json.Unmarshal(env.Payload, &p); err != nil {
			s.sendErrorLocked(c, protocol.CodeInvalidInput, "malformed action payload")
			return
		}
		s.handleActionLocked(c, p)

	case protocol.TypeTopUp:
		s.handleTopUpLocked(c)

	case protocol.TypePing:
		s.sendTo(c, protocol.TypePong, protocol.PongPayload{})

	default:
		s.sendErrorLocked(c, protocol.CodeInvalidMessageType, "unknown message type: "+env.Type.String())
	}
}

// HandleDisconnect is the connection's onDisconnect callback. The
// player keeps their seat; the grace timer decides what happens next.
func (s *Session) HandleDisconnect(c *Connection) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := c.PlayerID()
	if s.conns[id] != c {
		// A reconnect already rebound this id.
		return
	}
	delete(s.conns, id)

	player, err := s.table.Player(id)
	if err != nil {
		// Never seated; nothing to keep alive.
		return
	}

	s.logger.Info("player disconnected", "player", id, "seat", player.Seat)
	player.ConnState = game.Disconnected
	player.DisconnectedAt = s.clock.Now()

	s.broadcastLocked(protocol.TypePlayerDisconnected, protocol.PlayerDisconnectedPayload{
		PlayerID:             id,
		RemainingGraceTimeMs: s.cfg.Game.GraceTimeoutMs,
	})

	grace := time.Duration(s.cfg.Game.GraceTimeoutMs) * time.Millisecond
	s.timers.StartGrace(id, grace, func() { s.graceExpired(id) })
}

func (s *Session) handleJoinLocked(c *Connection, p protocol.JoinPayload) {
	if p.Name == "" {
		s.sendErrorLocked(c, protocol.CodeInvalidInput, "name must not be empty")
		return
	}

	if p.PlayerID != "" {
		s.handleReconnectLocked(c, p.PlayerID)
		return
	}

	id := c.PlayerID()
	if player, err := s.table.Player(id); err == nil {
		// Already seated; re-ack with the current seat.
		s.sendTo(c, protocol.TypeJoinAck, protocol.JoinAckPayload{PlayerID: id, Seat: player.Seat})
		return
	}

	player, err := s.table.Seat(id, p.Name)
	if err != nil {
		if errors.Is(err, game.ErrTableFull) {
			s.sendErrorLocked(c, protocol.CodeTableFull, "both seats are occupied")
		} else {
			s.sendErrorLocked(c, protocol.CodeSeatUnavailable, err.Error())
		}
		return
	}

	s.logger.Info("player joined", "player", id, "name", p.Name, "seat", player.Seat)
	s.sendTo(c, protocol.TypeJoinAck, protocol.JoinAckPayload{PlayerID: id, Seat: player.Seat})

	if s.table.CanStartHand() {
		s.startHandLocked()
	}
}

func (s *Session) handleReconnectLocked(c *Connection, claimedID string) {
	player, err := s.table.Player(claimedID)
	if err != nil {
		s.sendErrorLocked(c, protocol.CodePlayerNotFound, "no seated player with that id")
		return
	}
	if live, ok := s.conns[claimedID]; ok && live != c {
		s.sendErrorLocked(c, protocol.CodePlayerAlreadyConnected, "player already has a live connection")
		return
	}

	// Rebind the seat's id to this connection and retire the
	// welcome-assigned provisional one.
	if old := c.PlayerID(); old != claimedID {
		delete(s.conns, old)
	}
	c.SetPlayerID(claimedID)
	s.conns[claimedID] = c
	s.timers.Cancel(claimedID)

	player.ConnState = game.Connected
	player.DisconnectedAt = time.Time{}
	player.SittingOut = false

	s.logger.Info("player reconnected", "player", claimedID, "seat", player.Seat)
	s.broadcastLocked(protocol.TypePlayerReconnected, protocol.PlayerReconnectedPayload{PlayerID: claimedID})
	s.sendTo(c, protocol.TypeJoinAck, protocol.JoinAckPayload{PlayerID: claimedID, Seat: player.Seat})

	if h := s.table.Hand(); h != nil && !h.Complete() {
		if actor := h.Actor(); actor != nil && actor.ID == claimedID {
			s.requestActionLocked()
		}
	} else if s.table.CanStartHand() {
		s.startHandLocked()
	}
}

func (s *Session) handleActionLocked(c *Connection, p protocol.ActionPayload) {
	playerID := c.PlayerID()
	player, err := s.table.Player(playerID)
	if err != nil {
		s.sendErrorLocked(c, protocol.CodeUnauthorized, "not seated at this table")
		return
	}

	action, err := game.ParseAction(p.Action)
	if err != nil {
		s.sendErrorLocked(c, protocol.CodeInvalidAction, err.Error())
		return
	}
	if p.Amount < 0 {
		s.sendErrorLocked(c, protocol.CodeInvalidAmount, "amount must be non-negative")
		return
	}

	h := s.table.Hand()
	if err := s.table.ProcessAction(playerID, p.HandID, action, p.Amount); err != nil {
		s.sendErrorLocked(c, s.errorCode(err), err.Error())
		return
	}
	s.cancelActionTimerLocked()

	s.broadcastActionLocked(h, player, action, p.Amount)
	s.afterActionLocked(h)
}

// errorCode maps game-layer failures to wire error codes.
func (s *Session) errorCode(err error) string {
	switch {
	case errors.Is(err, game.ErrHandMismatch), errors.Is(err, game.ErrNoHand):
		return protocol.CodeInvalidHand
	case errors.Is(err, game.ErrInvalidAmount):
		return protocol.CodeInvalidAmount
	case errors.Is(err, game.ErrPlayerNotFound):
		return protocol.CodePlayerNotFound
	case errors.Is(err, game.ErrInvalidAction),
		errors.Is(err, game.ErrNotYourTurn),
		errors.Is(err, game.ErrHandComplete):
		return protocol.CodeInvalidAction
	default:
		return protocol.CodeInternalError
	}
}

func (s *Session) handleTopUpLocked(c *Connection) {
	playerID := c.PlayerID()
	newStack, err := s.table.RequestTopUp(playerID)
	switch {
	case errors.Is(err, game.ErrPlayerNotFound):
		s.sendErrorLocked(c, protocol.CodePlayerNotFound, "not seated at this table")
		return
	case errors.Is(err, game.ErrHandInProgress):
		// Refills wait for the hand to finish; ack the unchanged stack.
		s.sendTo(c, protocol.TypeTopUpAck, protocol.TopUpAckPayload{PlayerID: playerID, NewStack: newStack})
		return
	case err != nil:
		s.sendErrorLocked(c, protocol.CodeInternalError, err.Error())
		return
	}

	s.logger.Info("top-up served", "player", playerID, "stack", newStack)
	s.sendTo(c, protocol.TypeTopUpAck, protocol.TopUpAckPayload{PlayerID: playerID, NewStack: newStack})
}

// startHandLocked deals a new hand and announces it. Each recipient
// sees their own hole cards; everyone else's are masked.
func (s *Session) startHandLocked() {
	h, err := s.table.StartHand()
	if err != nil {
		s.logger.Error("failed to start hand", "error", err)
		return
	}

	// Blinds can put both seats all-in at the deal; the board has
	// already run out and nobody is due to act.
	firstToAct := ""
	if actor := h.Actor(); actor != nil {
		firstToAct = actor.ID
	}
	s.logger.Info("hand started",
		"hand", h.ID, "dealer", s.table.Button(), "first_to_act", firstToAct)

	for recipientID, conn := range s.conns {
		players := make([]protocol.HandPlayerInfo, 0, game.NumSeats)
		for seat := 0; seat < game.NumSeats; seat++ {
			p := h.PlayerAt(seat)
			cards := []string{"??", "??"}
			if p.ID == recipientID {
				cards = deck.Strings(p.HoleCards)
			}
			players = append(players, protocol.HandPlayerInfo{
				PlayerID:  p.ID,
				Stack:     p.Stack,
				HoleCards: cards,
			})
		}
		s.sendTo(conn, protocol.TypeHandStarted, protocol.HandStartedPayload{
			HandID:             h.ID,
			Players:            players,
			SmallBlind:         s.table.SmallBlind,
			BigBlind:           s.table.BigBlind,
			DealerPosition:     s.table.Button(),
			CurrentPlayerToAct: firstToAct,
			MinRaise:           h.MinRaise(),
		})
	}

	if h.Complete() {
		s.completeHandLocked(h)
		return
	}
	s.requestActionLocked()
}

// requestActionLocked prompts the current actor and arms the action
// timeout. The generation counter keeps a stale timer from folding a
// later actor.
func (s *Session) requestActionLocked() {
	h := s.table.Hand()
	if h == nil || h.Complete() {
		return
	}
	actor := h.Actor()
	if actor == nil {
		return
	}

	if conn, ok := s.conns[actor.ID]; ok {
		s.sendTo(conn, protocol.TypeActionRequest, protocol.ActionRequestPayload{
			HandID:          h.ID,
			PossibleActions: actionStrings(h.PossibleActions()),
			CallAmount:      h.CallAmount(),
			MinRaise:        h.MinRaiseAmount(),
			MaxRaise:        h.MaxRaise(),
			TimeoutMs:       s.cfg.Game.ActionTimeoutMs,
		})
	}

	s.actionGen++
	gen := s.actionGen
	timeout := time.Duration(s.cfg.Game.ActionTimeoutMs) * time.Millisecond
	s.clock.AfterFunc(timeout, func() { s.actionTimedOut(gen, actor.ID) })
}

func (s *Session) cancelActionTimerLocked() {
	s.actionGen++
}

// actionTimedOut force-folds an actor who never answered the request.
func (s *Session) actionTimedOut(gen int, playerID string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if gen != s.actionGen {
		return
	}
	h := s.table.Hand()
	if h == nil || h.Complete() {
		return
	}
	if actor := h.Actor(); actor == nil || actor.ID != playerID {
		return
	}

	s.logger.Warn("action timeout, folding", "player", playerID, "hand", h.ID)
	s.forceFoldLocked(playerID)
}

// forceFoldLocked folds a player out of turn and walks the hand
// forward, broadcasting the fold like any other action.
func (s *Session) forceFoldLocked(playerID string) {
	h := s.table.Hand()
	if h == nil || h.Complete() {
		return
	}
	seat, ok := h.HasSeat(playerID)
	if !ok || h.Folded(seat) {
		return
	}

	s.cancelActionTimerLocked()
	if err := s.table.ForceFold(playerID); err != nil {
		s.logger.Error("force fold failed", "player", playerID, "error", err)
		return
	}

	s.broadcastActionLocked(h, h.PlayerAt(seat), game.Fold, 0)
	s.afterActionLocked(h)
}

func (s *Session) broadcastActionLocked(h *game.Hand, player *game.Player, action game.Action, amount int) {
	pot := h.Pot()
	if h.Complete() {
		pot = h.Awarded()
	}
	next := ""
	if actor := h.Actor(); actor != nil {
		next = actor.ID
	}
	s.broadcastLocked(protocol.TypeActionApplied, protocol.ActionAppliedPayload{
		HandID:          h.ID,
		PlayerID:        player.ID,
		Action:          action.String(),
		Amount:          amount,
		NewStack:        player.Stack,
		Pot:             pot,
		NextPlayerToAct: next,
	})
}

func (s *Session) afterActionLocked(h *game.Hand) {
	if !h.Complete() {
		s.requestActionLocked()
		return
	}
	s.completeHandLocked(h)
}

// completeHandLocked announces the result, resets the table and, when
// both seats are still ready, deals the next hand.
func (s *Session) completeHandLocked(h *game.Hand) {
	s.cancelActionTimerLocked()

	winners := make([]protocol.WinnerInfo, 0, len(h.Winners))
	for _, w := range h.Winners {
		winners = append(winners, protocol.WinnerInfo{
			PlayerID:  w.PlayerID,
			AmountWon: w.Amount,
			HandRank:  w.Rank,
		})
	}
	distribution := make([]protocol.PotDistributionEntry, 0, len(h.Shares))
	for _, share := range h.Shares {
		distribution = append(distribution, protocol.PotDistributionEntry{
			PotIndex: share.PotIndex,
			WinnerID: h.PlayerAt(share.Player).ID,
			Amount:   share.Amount,
		})
	}
	stacks := make(map[string]int, game.NumSeats)
	for seat := 0; seat < game.NumSeats; seat++ {
		p := h.PlayerAt(seat)
		stacks[p.ID] = p.Stack
	}

	s.logger.Info("hand completed", "hand", h.ID, "winners", len(winners), "pot", h.Awarded())
	s.broadcastLocked(protocol.TypeHandCompleted, protocol.HandCompletedPayload{
		HandID:          h.ID,
		Winners:         winners,
		PotDistribution: distribution,
		UpdatedStacks:   stacks,
	})

	if err := s.table.EndHand(); err != nil {
		s.logger.Error("failed to end hand", "hand", h.ID, "error", err)
		return
	}

	if s.table.CanStartHand() {
		s.startHandLocked()
	}
}

// graceExpired marks a still-absent player as sitting out, folds them
// out of any live hand, and arms the removal timer.
func (s *Session) graceExpired(playerID string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	player, err := s.table.Player(playerID)
	if err != nil || player.ConnState == game.Connected {
		return
	}

	s.logger.Info("grace expired, sitting out", "player", playerID)
	player.SittingOut = true
	s.forceFoldLocked(playerID)

	removal := time.Duration(s.cfg.Game.RemovalTimeoutMs) * time.Millisecond
	s.timers.StartRemoval(playerID, removal, func() { s.removalExpired(playerID) })
}

// removalExpired permanently unseats a player who never came back.
func (s *Session) removalExpired(playerID string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	player, err := s.table.Player(playerID)
	if err != nil || player.ConnState == game.Connected {
		return
	}
	seat := player.Seat

	s.forceFoldLocked(playerID)
	if err := s.table.RemovePlayer(playerID); err != nil {
		s.logger.Error("failed to remove player", "player", playerID, "error", err)
		return
	}

	s.logger.Info("player removed", "player", playerID, "seat", seat)
	s.broadcastLocked(protocol.TypePlayerRemoved, protocol.PlayerRemovedPayload{
		PlayerID: playerID,
		Seat:     seat,
	})
}

// snapshotLocked renders the welcome table view.
func (s *Session) snapshotLocked() protocol.TableSnapshot {
	seats := make([]*protocol.SeatInfo, game.NumSeats)
	for _, p := range s.table.Players() {
		seats[p.Seat] = &protocol.SeatInfo{
			PlayerID: p.ID,
			Name:     p.Name,
			Stack:    p.Stack,
			Seat:     p.Seat,
		}
	}

	snap := protocol.TableSnapshot{
		Seats:                seats,
		Pot:                  0,
		CommunityCards:       []string{},
		DealerButtonPosition: s.table.Button(),
	}
	if h := s.table.Hand(); h != nil && !h.Complete() {
		id := h.ID
		snap.CurrentHand = &id
		snap.Pot = h.Pot()
		snap.CommunityCards = deck.Strings(h.Community)
	}
	return snap
}

func (s *Session) sendTo(c *Connection, messageType protocol.MessageType, payload interface{}) {
	env, err := protocol.NewEnvelope(messageType, payload)
	if err != nil {
		s.logger.Error("failed to encode frame", "type", messageType, "error", err)
		return
	}
	_ = c.Send(env)
}

func (s *Session) sendErrorLocked(c *Connection, code, message string) {
	s.sendTo(c, protocol.TypeError, protocol.ErrorPayload{Code: code, Message: message})
}

func (s *Session) broadcastLocked(messageType protocol.MessageType, payload interface{}) {
	env, err := protocol.NewEnvelope(messageType, payload)
	if err != nil {
		s.logger.Error("failed to encode broadcast", "type", messageType, "error", err)
		return
	}
	for _, conn := range s.conns {
		_ = conn.Send(env)
	}
}

func actionStrings(actions []game.Action) []string {
	out := make([]string, len(actions))
	for i, a := range actions {
		out[i] = a.String()
	}
	return out
}
