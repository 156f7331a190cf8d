package game

import (
	"errors"
	"fmt"
)

// Action is one of the three spellings a player may send. A call with
// a zero delta is the legal spelling of a check.
type Action int

const (
	Fold Action = iota
	Call
	Raise
)

func (a Action) String() string {
	switch a {
	case Fold:
		return "fold"
	case Call:
		return "call"
	case Raise:
		return "raise"
	default:
		return "unknown"
	}
}

// ParseAction converts the wire spelling of an action.
func ParseAction(s string) (Action, error) {
	switch s {
	case "fold":
		return Fold, nil
	case "call":
		return Call, nil
	case "raise":
		return Raise, nil
	default:
		return 0, fmt.Errorf("%w: unknown action %q", ErrInvalidAction, s)
	}
}

var (
	ErrInvalidAction = errors.New("invalid action")
	ErrInvalidAmount = errors.New("invalid amount")
)

// RoundState is the pure betting state of one betting round. Amounts
// carried by actions are the chips committed in that action; the
// round tracks per-player totals separately.
type RoundState struct {
	// CurrentBet is the highest per-player contribution this round.
	CurrentBet int
	// MinRaise is the minimum increment over CurrentBet the next
	// raise must reach. It starts at the big blind each round and
	// becomes the size of the last raise thereafter.
	MinRaise int
}

// NewRoundState opens a betting round. Preflop openingBet is the big
// blind; postflop rounds open at zero.
func NewRoundState(bigBlind, openingBet int) RoundState {
	return RoundState{CurrentBet: openingBet, MinRaise: bigBlind}
}

// CallAmount is the exact delta a player owes to match the current
// bet, capped at their stack (a short call is an all-in).
func (st RoundState) CallAmount(contributed, stack int) int {
	owed := st.CurrentBet - contributed
	if owed < 0 {
		owed = 0
	}
	if owed > stack {
		owed = stack
	}
	return owed
}

// MinRaiseAmount is the smallest delta a player may commit as a legal
// full raise, ignoring the all-in exception.
func (st RoundState) MinRaiseAmount(contributed int) int {
	return st.CurrentBet + st.MinRaise - contributed
}

// ValidateAction checks a single action against the pure betting
// rules. It never mutates anything; callers apply state changes only
// after validation passes.
func (st RoundState) ValidateAction(a Action, amount, contributed, stack int) error {
	if amount < 0 {
		return fmt.Errorf("%w: negative amount %d", ErrInvalidAmount, amount)
	}

	switch a {
	case Fold:
		if amount != 0 {
			return fmt.Errorf("%w: fold carries no chips", ErrInvalidAmount)
		}
		return nil

	case Call:
		if want := st.CallAmount(contributed, stack); amount != want {
			return fmt.Errorf("%w: call must be exactly %d, got %d", ErrInvalidAmount, want, amount)
		}
		return nil

	case Raise:
		if amount == 0 {
			return fmt.Errorf("%w: raise of zero", ErrInvalidAmount)
		}
		if amount > stack {
			return fmt.Errorf("%w: raise %d exceeds stack %d", ErrInvalidAction, amount, stack)
		}
		level := contributed + amount
		if level <= st.CurrentBet {
			return fmt.Errorf("%w: raise to %d does not exceed current bet %d", ErrInvalidAction, level, st.CurrentBet)
		}
		// An all-in below the full raise is still legal.
		if level < st.CurrentBet+st.MinRaise && amount != stack {
			return fmt.Errorf("%w: raise to %d below minimum %d", ErrInvalidAction, level, st.CurrentBet+st.MinRaise)
		}
		return nil

	default:
		return ErrInvalidAction
	}
}

// ApplyRaise returns the round state after a validated raise that
// lifts the bet to the given level.
func (st RoundState) ApplyRaise(level int) RoundState {
	raiseBy := level - st.CurrentBet
	next := RoundState{CurrentBet: level, MinRaise: raiseBy}
	if next.MinRaise < st.MinRaise {
		// A short all-in raise does not shrink the next full raise.
		next.MinRaise = st.MinRaise
	}
	return next
}

// PossibleActions lists the legal action spellings for a player.
// Call is always offered (a zero delta is a check); raise only when
// the player has chips beyond the call.
func (st RoundState) PossibleActions(contributed, stack int) []Action {
	actions := []Action{Fold, Call}
	if stack > st.CallAmount(contributed, stack) {
		actions = append(actions, Raise)
	}
	return actions
}

// RoundComplete reports whether the betting round is over: every
// non-folded player has acted, and each has either matched the
// current bet or is all-in for less.
func RoundComplete(st RoundState, folded, allIn, acted []bool, contributed []int) bool {
	for i := range contributed {
		if folded[i] {
			continue
		}
		if allIn[i] {
			continue
		}
		if !acted[i] {
			return false
		}
		if contributed[i] != st.CurrentBet {
			return false
		}
	}
	return true
}
