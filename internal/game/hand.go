package game

import (
	"errors"
	"fmt"
	rand "math/rand/v2"
	"time"

	"github.com/cardroom/headsup/internal/deck"
	"github.com/cardroom/headsup/internal/evaluator"
	"github.com/cardroom/headsup/internal/gameid"
)

// Round is the betting round a hand is in.
type Round int

const (
	Preflop Round = iota
	Flop
	Turn
	River
	ShowdownRound
)

func (r Round) String() string {
	switch r {
	case Preflop:
		return "preflop"
	case Flop:
		return "flop"
	case Turn:
		return "turn"
	case River:
		return "river"
	case ShowdownRound:
		return "showdown"
	default:
		return "unknown"
	}
}

var (
	ErrNotYourTurn  = errors.New("not your turn")
	ErrHandComplete = errors.New("hand already complete")
)

// ActionRecord is one entry of a hand's action history.
type ActionRecord struct {
	PlayerID  string
	Action    Action
	Amount    int
	Timestamp time.Time
}

// Winner is a showdown (or fold-out) payout. Rank is empty when the
// pot was won uncontested.
type Winner struct {
	PlayerID string
	Amount   int
	Rank     string
}

// Hand owns one deal from blinds to pot distribution. It references
// its two participants by seat but never owns them; chips move
// between the players' stacks and the hand's committed vector, and
// chip conservation is checked on every transition.
type Hand struct {
	ID        string
	Button    int
	SmallBlnd int
	BigBlnd   int

	players   [2]*Player
	deck      *deck.Deck
	Community []deck.Card
	Round     Round

	committed    [2]int // whole-hand commitment per seat
	roundContrib [2]int // this round's contribution per seat
	folded       [2]bool
	allIn        [2]bool
	acted        [2]bool

	st    RoundState
	actor int // seat to act, -1 when none

	History     []ActionRecord
	Winners     []Winner
	Shares      []PotShare
	pots        []SidePot
	CompletedAt time.Time

	startingChips int // invariant reference: sum of stacks at start
	awarded       int // total distributed at completion
	complete      bool
}

// Awarded is the total pot distributed when the hand completed, zero
// while the hand is live.
func (h *Hand) Awarded() int {
	return h.awarded
}

// NewHand shuffles a fresh deck, deals hole cards one at a time in
// seat order, and posts the blinds. Heads-up the button posts the
// small blind and acts first preflop.
func NewHand(rng *rand.Rand, players [2]*Player, button, smallBlind, bigBlind int) (*Hand, error) {
	h := &Hand{
		ID:        gameid.NewHandID(),
		Button:    button,
		SmallBlnd: smallBlind,
		BigBlnd:   bigBlind,
		players:   players,
		deck:      deck.New(rng),
		Round:     Preflop,
		st:        NewRoundState(bigBlind, bigBlind),
		actor:     button,
	}

	for _, p := range players {
		h.startingChips += p.Stack
		p.HoleCards = p.HoleCards[:0]
	}

	for i := 0; i < 2; i++ {
		for seat := 0; seat < 2; seat++ {
			c, err := h.deck.Deal()
			if err != nil {
				return nil, err
			}
			players[seat].HoleCards = append(players[seat].HoleCards, c)
		}
	}

	h.postBlind(button, smallBlind)
	h.postBlind(1-button, bigBlind)

	// A blind can put a short stack all-in; when nobody is left to
	// act the hand runs straight out.
	if RoundComplete(h.st, h.folded[:], h.allIn[:], h.acted[:], h.roundContrib[:]) {
		if err := h.nextRound(); err != nil {
			return nil, err
		}
	} else {
		h.actor = h.nextActor(button)
	}

	if err := h.checkInvariants(); err != nil {
		return nil, err
	}
	return h, nil
}

// postBlind commits a forced bet, capped at the stack.
func (h *Hand) postBlind(seat, amount int) {
	p := h.players[seat]
	if amount > p.Stack {
		amount = p.Stack
	}
	p.Stack -= amount
	h.committed[seat] += amount
	h.roundContrib[seat] += amount
	if p.Stack == 0 {
		h.allIn[seat] = true
	}
}

// Pot is the total of all committed chips not yet distributed.
func (h *Hand) Pot() int {
	if h.complete {
		return 0
	}
	return h.committed[0] + h.committed[1]
}

// SidePots exposes the pot layers computed at completion.
func (h *Hand) SidePots() []SidePot {
	return h.pots
}

// Complete reports whether the hand has finished and paid out.
func (h *Hand) Complete() bool {
	return h.complete
}

// ActorSeat returns the seat due to act, or -1 when no action is
// pending (hand complete or everyone all-in).
func (h *Hand) ActorSeat() int {
	if h.complete {
		return -1
	}
	return h.actor
}

// Actor returns the player due to act, or nil.
func (h *Hand) Actor() *Player {
	seat := h.ActorSeat()
	if seat < 0 {
		return nil
	}
	return h.players[seat]
}

// PlayerAt returns the participant seated at the given seat.
func (h *Hand) PlayerAt(seat int) *Player {
	return h.players[seat]
}

// HasSeat reports whether the player participates in this hand.
func (h *Hand) HasSeat(playerID string) (int, bool) {
	for seat, p := range h.players {
		if p.ID == playerID {
			return seat, true
		}
	}
	return -1, false
}

// Folded reports whether the seat has folded.
func (h *Hand) Folded(seat int) bool {
	return h.folded[seat]
}

// CallAmount is the delta the current actor owes to call.
func (h *Hand) CallAmount() int {
	seat := h.ActorSeat()
	if seat < 0 {
		return 0
	}
	return h.st.CallAmount(h.roundContrib[seat], h.players[seat].Stack)
}

// MinRaiseAmount is the smallest delta the current actor may commit
// as a raise. A stack too short for a full raise can still move
// all-in, so the minimum never exceeds the stack.
func (h *Hand) MinRaiseAmount() int {
	seat := h.ActorSeat()
	if seat < 0 {
		return 0
	}
	min := h.st.MinRaiseAmount(h.roundContrib[seat])
	if stack := h.players[seat].Stack; min > stack {
		min = stack
	}
	return min
}

// MinRaise is the minimum raise increment over the current bet.
func (h *Hand) MinRaise() int {
	return h.st.MinRaise
}

// MaxRaise is the most the current actor can commit: their stack.
func (h *Hand) MaxRaise() int {
	seat := h.ActorSeat()
	if seat < 0 {
		return 0
	}
	return h.players[seat].Stack
}

// PossibleActions lists legal actions for the current actor.
func (h *Hand) PossibleActions() []Action {
	seat := h.ActorSeat()
	if seat < 0 {
		return nil
	}
	return h.st.PossibleActions(h.roundContrib[seat], h.players[seat].Stack)
}

// Apply validates and applies one action by the seat due to act. On
// any validation failure the hand is unchanged.
func (h *Hand) Apply(seat int, action Action, amount int) error {
	if h.complete {
		return ErrHandComplete
	}
	if seat != h.actor {
		return ErrNotYourTurn
	}
	p := h.players[seat]

	if err := h.st.ValidateAction(action, amount, h.roundContrib[seat], p.Stack); err != nil {
		return err
	}

	switch action {
	case Fold:
		h.folded[seat] = true

	case Call:
		p.Stack -= amount
		h.committed[seat] += amount
		h.roundContrib[seat] += amount
		if p.Stack == 0 {
			h.allIn[seat] = true
		}

	case Raise:
		p.Stack -= amount
		h.committed[seat] += amount
		h.roundContrib[seat] += amount
		level := h.roundContrib[seat]
		h.st = h.st.ApplyRaise(level)
		if p.Stack == 0 {
			h.allIn[seat] = true
		}
		// A raise reopens the action for everyone else.
		for i := range h.acted {
			h.acted[i] = false
		}
	}
	h.acted[seat] = true

	h.History = append(h.History, ActionRecord{
		PlayerID:  p.ID,
		Action:    action,
		Amount:    amount,
		Timestamp: time.Now(),
	})

	if err := h.advance(); err != nil {
		return err
	}
	return h.checkInvariants()
}

// ForceFold folds a seat out of turn, used for disconnect grace
// expiry and removal. It is a no-op on folded seats and completed
// hands.
func (h *Hand) ForceFold(seat int) error {
	if h.complete || h.folded[seat] {
		return nil
	}
	h.folded[seat] = true
	h.acted[seat] = true
	h.History = append(h.History, ActionRecord{
		PlayerID:  h.players[seat].ID,
		Action:    Fold,
		Amount:    0,
		Timestamp: time.Now(),
	})
	if err := h.advance(); err != nil {
		return err
	}
	return h.checkInvariants()
}

// advance moves the hand forward after an action: fold-out ends the
// hand immediately, a complete round deals the next street, otherwise
// the turn passes to the other seat.
func (h *Hand) advance() error {
	if h.folded[0] || h.folded[1] {
		return h.showdown()
	}

	if RoundComplete(h.st, h.folded[:], h.allIn[:], h.acted[:], h.roundContrib[:]) {
		return h.nextRound()
	}

	h.actor = h.nextActor(1 - h.actor)
	if h.actor < 0 {
		return h.nextRound()
	}
	return nil
}

// actionable counts the players who can still put chips in.
func (h *Hand) actionable() int {
	n := 0
	for seat := range h.players {
		if !h.folded[seat] && !h.allIn[seat] {
			n++
		}
	}
	return n
}

// nextActor finds a seat that can still act, starting from the given
// seat. Returns -1 when nobody can.
func (h *Hand) nextActor(from int) int {
	for i := 0; i < 2; i++ {
		seat := (from + i) % 2
		if !h.folded[seat] && !h.allIn[seat] {
			return seat
		}
	}
	return -1
}

// nextRound deals the next street and resets per-round betting state.
// When all remaining players are all-in it cascades to showdown.
func (h *Hand) nextRound() error {
	for h.Round < ShowdownRound {
		switch h.Round {
		case Preflop:
			cards, err := h.deck.DealN(3)
			if err != nil {
				return err
			}
			h.Community = append(h.Community, cards...)
			h.Round = Flop
		case Flop, Turn:
			c, err := h.deck.Deal()
			if err != nil {
				return err
			}
			h.Community = append(h.Community, c)
			h.Round++
		case River:
			h.Round = ShowdownRound
			return h.showdown()
		}

		h.roundContrib = [2]int{}
		h.acted = [2]bool{}
		h.st = NewRoundState(h.BigBlnd, 0)

		// Betting needs two players who can still act; with the
		// opponent all-in the board just runs out.
		if h.actionable() >= 2 {
			// Non-dealer acts first postflop.
			h.actor = h.nextActor(1 - h.Button)
			return nil
		}
	}
	return h.showdown()
}

// showdown builds the pots, determines winners, and moves every chip
// into exactly one stack.
func (h *Hand) showdown() error {
	if h.complete {
		return nil
	}

	h.Round = ShowdownRound
	h.actor = -1
	h.pots = BuildPots(h.committed[:])

	potTotal := h.committed[0] + h.committed[1]

	if h.folded[0] || h.folded[1] {
		// Uncontested: the lone live player takes everything.
		winner := 0
		if h.folded[0] {
			winner = 1
		}
		p := h.players[winner]
		p.Stack += potTotal
		if potTotal > 0 {
			h.Winners = []Winner{{PlayerID: p.ID, Amount: potTotal}}
			for i := range h.pots {
				h.Shares = append(h.Shares, PotShare{PotIndex: i, Player: winner, Amount: h.pots[i].Amount})
			}
		}
	} else {
		var ranks [2]evaluator.Rank
		for seat, p := range h.players {
			cards := append(append([]deck.Card{}, p.HoleCards...), h.Community...)
			r, err := evaluator.Evaluate(cards)
			if err != nil {
				return err
			}
			ranks[seat] = r
		}

		h.Shares = AwardPots(h.pots, h.folded[:], ranks[:], h.Button, 2)
		won := map[int]int{}
		for _, s := range h.Shares {
			h.players[s.Player].Stack += s.Amount
			won[s.Player] += s.Amount
		}
		for seat := 0; seat < 2; seat++ {
			if amount, ok := won[seat]; ok {
				h.Winners = append(h.Winners, Winner{
					PlayerID: h.players[seat].ID,
					Amount:   amount,
					Rank:     ranks[seat].Class.String(),
				})
			}
		}
	}

	h.awarded = potTotal
	h.committed = [2]int{}
	h.roundContrib = [2]int{}
	h.complete = true
	h.CompletedAt = time.Now()
	return h.checkInvariants()
}

// checkInvariants verifies chip conservation, hole-card counts and
// non-negative commitments after every transition.
func (h *Hand) checkInvariants() error {
	total := h.committed[0] + h.committed[1]
	for _, p := range h.players {
		total += p.Stack
		if p.Stack < 0 {
			return fmt.Errorf("internal: negative stack for %s", p.ID)
		}
		if n := len(p.HoleCards); n != 0 && n != 2 {
			return fmt.Errorf("internal: %s holds %d hole cards", p.ID, n)
		}
	}
	for seat, c := range h.committed {
		if c < 0 {
			return fmt.Errorf("internal: negative commitment at seat %d", seat)
		}
	}
	if total != h.startingChips {
		return fmt.Errorf("internal: chip conservation violated: have %d, want %d", total, h.startingChips)
	}
	return nil
}
