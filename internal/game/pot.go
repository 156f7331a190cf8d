package game

import (
	"sort"

	"github.com/cardroom/headsup/internal/evaluator"
)

// SidePot is a layer of the pot with the set of player indices whose
// commitments reached it. Folded contributors stay in the amount but
// are filtered out at award time; only live hands can win.
type SidePot struct {
	Amount   int
	Eligible []int
}

// BuildPots constructs the pot layers from each participant's total
// committed chips. Distinct positive commitment levels are sorted
// ascending and each gap forms one pot whose amount is the gap times
// the number of participants committed at or above that level.
// The sum of pot amounts always equals the sum of commitments.
func BuildPots(committed []int) []SidePot {
	levels := make([]int, 0, len(committed))
	for _, c := range committed {
		if c > 0 {
			levels = append(levels, c)
		}
	}
	if len(levels) == 0 {
		return nil
	}
	sort.Ints(levels)

	// Dedupe.
	distinct := levels[:1]
	for _, l := range levels[1:] {
		if l != distinct[len(distinct)-1] {
			distinct = append(distinct, l)
		}
	}

	pots := make([]SidePot, 0, len(distinct))
	prev := 0
	for _, level := range distinct {
		pot := SidePot{}
		for i, c := range committed {
			if c >= level {
				pot.Amount += level - prev
				pot.Eligible = append(pot.Eligible, i)
			} else if c > prev {
				// Short contributor: their excess over the previous
				// level belongs to this layer even though they are
				// not eligible for it.
				pot.Amount += c - prev
			}
		}
		pots = append(pots, pot)
		prev = level
	}
	return pots
}

// PotShare records one pot's payout to one player.
type PotShare struct {
	PotIndex int
	Player   int
	Amount   int
}

// AwardPots splits each pot among its best-ranked live eligible
// players. Odd chips go one at a time to winners in seat order
// starting from the first seat left of the button, so distribution is
// deterministic. ranks must align with the committed vector used to
// build the pots; a folded player's rank is never consulted.
func AwardPots(pots []SidePot, folded []bool, ranks []evaluator.Rank, button, numSeats int) []PotShare {
	var shares []PotShare
	for potIdx, pot := range pots {
		live := make([]int, 0, len(pot.Eligible))
		for _, p := range pot.Eligible {
			if !folded[p] {
				live = append(live, p)
			}
		}
		if len(live) == 0 {
			// Everyone entitled to this layer folded; it decays to
			// the remaining contributors. With two seats this cannot
			// happen once fold-out is handled upstream.
			live = pot.Eligible
		}

		winners := []int{live[0]}
		for _, p := range live[1:] {
			switch evaluator.Compare(ranks[p], ranks[winners[0]]) {
			case 1:
				winners = []int{p}
			case 0:
				winners = append(winners, p)
			}
		}

		share := pot.Amount / len(winners)
		remainder := pot.Amount % len(winners)

		// Seat order starting left of the button decides who takes
		// the odd chips.
		sort.Slice(winners, func(i, j int) bool {
			return seatOrder(winners[i], button, numSeats) < seatOrder(winners[j], button, numSeats)
		})

		for i, w := range winners {
			amount := share
			if i < remainder {
				amount++
			}
			if amount > 0 {
				shares = append(shares, PotShare{PotIndex: potIdx, Player: w, Amount: amount})
			}
		}
	}
	return shares
}

func seatOrder(seat, button, numSeats int) int {
	return ((seat - button - 1) + numSeats) % numSeats
}
