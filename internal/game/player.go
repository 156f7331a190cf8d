package game

import (
	"time"

	"github.com/cardroom/headsup/internal/deck"
)

// ConnState tracks a player's transport status. Players outlive their
// connections: a seated player stays at the table through a disconnect
// until the removal timer fires.
type ConnState int

const (
	Connected ConnState = iota
	Disconnected
	Reconnecting
)

func (s ConnState) String() string {
	switch s {
	case Connected:
		return "connected"
	case Disconnected:
		return "disconnected"
	case Reconnecting:
		return "reconnecting"
	default:
		return "unknown"
	}
}

// Player is a seated participant. The table owns players by id; hands
// hold back-references only.
type Player struct {
	ID             string
	Name           string
	Stack          int
	Seat           int
	HoleCards      []deck.Card // empty or exactly two
	ConnState      ConnState
	DisconnectedAt time.Time // zero unless disconnected
	SittingOut     bool
}
