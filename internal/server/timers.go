package server

import (
	"sync"
	"time"

	"github.com/coder/quartz"
)

// TimerTable tracks the per-player grace and removal timers. Each
// player has at most one of each; starting a timer that is already
// running resets its deadline. Callbacks run on the clock's goroutine
// and are expected to re-enter the hub, which takes its own lock.
type TimerTable struct {
	clock quartz.Clock

	mu     sync.Mutex
	timers map[string]*playerTimers
}

type playerTimers struct {
	grace   *quartz.Timer
	removal *quartz.Timer
}

// NewTimerTable creates an empty timer table on the given clock.
func NewTimerTable(clock quartz.Clock) *TimerTable {
	return &TimerTable{
		clock:  clock,
		timers: make(map[string]*playerTimers),
	}
}

// StartGrace arms (or re-arms) the player's grace timer. When it
// fires the entry is cleared before the callback runs, so a late
// Cancel is a no-op.
func (tt *TimerTable) StartGrace(playerID string, d time.Duration, fn func()) {
	tt.mu.Lock()
	defer tt.mu.Unlock()

	pt := tt.ensure(playerID)
	if pt.grace != nil {
		pt.grace.Stop()
	}
	pt.grace = tt.clock.AfterFunc(d, func() {
		tt.mu.Lock()
		if cur := tt.timers[playerID]; cur != nil {
			cur.grace = nil
		}
		tt.mu.Unlock()
		fn()
	})
}

// StartRemoval arms (or re-arms) the player's removal timer.
func (tt *TimerTable) StartRemoval(playerID string, d time.Duration, fn func()) {
	tt.mu.Lock()
	defer tt.mu.Unlock()

	pt := tt.ensure(playerID)
	if pt.removal != nil {
		pt.removal.Stop()
	}
	pt.removal = tt.clock.AfterFunc(d, func() {
		tt.mu.Lock()
		delete(tt.timers, playerID)
		tt.mu.Unlock()
		fn()
	})
}

// Cancel stops every pending timer for the player. Cancelling after a
// timer fired is a no-op.
func (tt *TimerTable) Cancel(playerID string) {
	tt.mu.Lock()
	defer tt.mu.Unlock()

	pt, ok := tt.timers[playerID]
	if !ok {
		return
	}
	if pt.grace != nil {
		pt.grace.Stop()
	}
	if pt.removal != nil {
		pt.removal.Stop()
	}
	delete(tt.timers, playerID)
}

// HasActive reports whether the player has any pending timer.
func (tt *TimerTable) HasActive(playerID string) bool {
	tt.mu.Lock()
	defer tt.mu.Unlock()

	pt, ok := tt.timers[playerID]
	return ok && (pt.grace != nil || pt.removal != nil)
}

func (tt *TimerTable) ensure(playerID string) *playerTimers {
	pt, ok := tt.timers[playerID]
	if !ok {
		pt = &playerTimers{}
		tt.timers[playerID] = pt
	}
	return pt
}
