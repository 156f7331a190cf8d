package game

import (
	"errors"
	"fmt"
	rand "math/rand/v2"

	"github.com/cardroom/headsup/internal/gameid"
)

const (
	// NumSeats is fixed; this is a heads-up table.
	NumSeats = 2

	// TopUpThresholdBB and TopUpTargetBB define eligibility and result
	// of a stack top-up, in big blinds. A top-up sets the stack to the
	// target, it does not add to it.
	TopUpThresholdBB = 5
	TopUpTargetBB    = 100
)

var (
	ErrTableFull       = errors.New("table full")
	ErrSeatUnavailable = errors.New("seat unavailable")
	ErrPlayerNotFound  = errors.New("player not found")
	ErrNoHand          = errors.New("no hand in progress")
	ErrHandInProgress  = errors.New("hand in progress")
	ErrHandMismatch    = errors.New("hand id mismatch")
	ErrNotEnoughReady  = errors.New("not enough ready players")
)

// Table owns the two seats, the player registry and the current hand.
// It is not safe for concurrent use; the session hub serializes access.
type Table struct {
	ID            string
	SmallBlind    int
	BigBlind      int
	StartingStack int

	rng     *rand.Rand
	seats   [NumSeats]*Player
	players map[string]*Player
	button  int
	hand    *Hand
}

// NewTable creates an empty table. The button starts at seat 0 and
// rotates after every completed hand.
func NewTable(rng *rand.Rand, smallBlind, bigBlind, startingStack int) *Table {
	return &Table{
		ID:            gameid.New(),
		SmallBlind:    smallBlind,
		BigBlind:      bigBlind,
		StartingStack: startingStack,
		rng:           rng,
		players:       make(map[string]*Player),
	}
}

// Seat places a new player at the first open seat with the starting
// stack. The id is the opaque one the server minted at welcome.
func (t *Table) Seat(id, name string) (*Player, error) {
	if p, ok := t.players[id]; ok {
		return p, ErrSeatUnavailable
	}
	for seat := 0; seat < NumSeats; seat++ {
		if t.seats[seat] != nil {
			continue
		}
		p := &Player{
			ID:        id,
			Name:      name,
			Stack:     t.StartingStack,
			Seat:      seat,
			ConnState: Connected,
		}
		t.seats[seat] = p
		t.players[p.ID] = p
		return p, nil
	}
	return nil, ErrTableFull
}

// Player looks up a seated player by id.
func (t *Table) Player(id string) (*Player, error) {
	p, ok := t.players[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrPlayerNotFound, id)
	}
	return p, nil
}

// Players returns the seated players in seat order, skipping empty
// seats.
func (t *Table) Players() []*Player {
	out := make([]*Player, 0, NumSeats)
	for _, p := range t.seats {
		if p != nil {
			out = append(out, p)
		}
	}
	return out
}

// Button returns the current dealer seat.
func (t *Table) Button() int {
	return t.button
}

// Hand returns the current hand, or nil between hands.
func (t *Table) Hand() *Hand {
	return t.hand
}

// CanStartHand reports whether both seats hold a funded player who is
// not sitting out.
func (t *Table) CanStartHand() bool {
	if t.hand != nil && !t.hand.Complete() {
		return false
	}
	for _, p := range t.seats {
		if p == nil || p.SittingOut || p.Stack <= 0 {
			return false
		}
	}
	return true
}

// StartHand deals a new hand between the two seated players.
func (t *Table) StartHand() (*Hand, error) {
	if t.hand != nil && !t.hand.Complete() {
		return nil, ErrHandInProgress
	}
	if !t.CanStartHand() {
		return nil, ErrNotEnoughReady
	}

	players := [2]*Player{t.seats[0], t.seats[1]}
	h, err := NewHand(t.rng, players, t.button, t.SmallBlind, t.BigBlind)
	if err != nil {
		return nil, err
	}
	t.hand = h
	return h, nil
}

// ProcessAction applies one player action to the current hand,
// enforcing hand identity and turn order.
func (t *Table) ProcessAction(playerID, handID string, action Action, amount int) error {
	if t.hand == nil || t.hand.Complete() {
		return ErrNoHand
	}
	if handID != t.hand.ID {
		return fmt.Errorf("%w: %s", ErrHandMismatch, handID)
	}
	seat, ok := t.hand.HasSeat(playerID)
	if !ok {
		return fmt.Errorf("%w: %s", ErrPlayerNotFound, playerID)
	}
	return t.hand.Apply(seat, action, amount)
}

// ForceFold folds a player out of turn (grace expiry, removal).
func (t *Table) ForceFold(playerID string) error {
	if t.hand == nil || t.hand.Complete() {
		return nil
	}
	seat, ok := t.hand.HasSeat(playerID)
	if !ok {
		return nil
	}
	return t.hand.ForceFold(seat)
}

// EndHand clears a completed hand and rotates the button. Payouts
// happened at showdown; this only resets the table for the next deal.
func (t *Table) EndHand() error {
	if t.hand == nil {
		return ErrNoHand
	}
	if !t.hand.Complete() {
		return ErrHandInProgress
	}
	t.hand = nil
	t.button = (t.button + 1) % NumSeats
	for _, p := range t.seats {
		if p != nil {
			p.HoleCards = p.HoleCards[:0]
		}
	}
	return nil
}

// RequestTopUp refills a player's stack to the target when they are
// at or below the threshold. It is only served between hands; an ineligible
// request between hands is not an error, the stack is just returned
// unchanged.
func (t *Table) RequestTopUp(playerID string) (int, error) {
	p, err := t.Player(playerID)
	if err != nil {
		return 0, err
	}
	if t.hand != nil && !t.hand.Complete() {
		if _, in := t.hand.HasSeat(playerID); in {
			return p.Stack, ErrHandInProgress
		}
	}
	if p.Stack <= TopUpThresholdBB*t.BigBlind {
		p.Stack = TopUpTargetBB * t.BigBlind
	}
	return p.Stack, nil
}

// RemovePlayer takes a player off the table. Mid-hand the removed
// player is folded first, so the opponent wins the pot uncontested.
func (t *Table) RemovePlayer(playerID string) error {
	p, err := t.Player(playerID)
	if err != nil {
		return err
	}
	if err := t.ForceFold(playerID); err != nil {
		return err
	}
	delete(t.players, playerID)
	t.seats[p.Seat] = nil
	return nil
}
