// Package evaluator ranks 5-7 card hold'em hands into one of the ten
// standard classes plus a per-class tiebreak key, and compares them.
package evaluator

import (
	"fmt"
	"sort"

	"github.com/cardroom/headsup/internal/deck"
)

// RankClass orders the hand categories from weakest to strongest.
type RankClass int

const (
	HighCard RankClass = iota
	OnePair
	TwoPair
	ThreeOfAKind
	Straight
	Flush
	FullHouse
	FourOfAKind
	StraightFlush
	RoyalFlush
)

var rankClassNames = [...]string{
	"HIGH_CARD",
	"ONE_PAIR",
	"TWO_PAIR",
	"THREE_OF_A_KIND",
	"STRAIGHT",
	"FLUSH",
	"FULL_HOUSE",
	"FOUR_OF_A_KIND",
	"STRAIGHT_FLUSH",
	"ROYAL_FLUSH",
}

// String returns the wire form used in hand_completed frames.
func (c RankClass) String() string {
	if c < HighCard || c > RoyalFlush {
		return "UNKNOWN"
	}
	return rankClassNames[c]
}

// Rank is a fully ordered hand strength: the class plus a tiebreak key
// whose lexicographic comparison settles ties within the class.
type Rank struct {
	Class RankClass
	Key   []int
}

// Evaluate returns the best 5-card rank over 5, 6 or 7 cards by
// enumerating every 5-card subset and keeping the maximum.
func Evaluate(cards []deck.Card) (Rank, error) {
	n := len(cards)
	if n < 5 || n > 7 {
		return Rank{}, fmt.Errorf("evaluate: need 5-7 cards, got %d", n)
	}

	if n == 5 {
		return evaluate5(cards), nil
	}

	var best Rank
	first := true
	pick := make([]deck.Card, 5)
	var recurse func(start, depth int)
	recurse = func(start, depth int) {
		if depth == 5 {
			r := evaluate5(pick)
			if first || Compare(r, best) > 0 {
				best = r
				first = false
			}
			return
		}
		for i := start; i <= n-(5-depth); i++ {
			pick[depth] = cards[i]
			recurse(i+1, depth+1)
		}
	}
	recurse(0, 0)
	return best, nil
}

// Compare returns the sign of a-b: positive when a is the stronger
// hand, negative when b is, zero on an exact tie.
func Compare(a, b Rank) int {
	if a.Class != b.Class {
		if a.Class > b.Class {
			return 1
		}
		return -1
	}
	for i := 0; i < len(a.Key) && i < len(b.Key); i++ {
		if a.Key[i] != b.Key[i] {
			if a.Key[i] > b.Key[i] {
				return 1
			}
			return -1
		}
	}
	return 0
}

func evaluate5(cards []deck.Card) Rank {
	var counts [13]int
	flush := true
	for i, c := range cards {
		counts[c.Rank()]++
		if i > 0 && c.Suit() != cards[0].Suit() {
			flush = false
		}
	}

	straightTop := straightTopCard(counts)

	switch {
	case flush && straightTop == 12:
		return Rank{Class: RoyalFlush, Key: []int{12}}
	case flush && straightTop >= 0:
		return Rank{Class: StraightFlush, Key: []int{straightTop}}
	}

	// Group ranks by multiplicity, highest count first, then rank.
	type group struct{ rank, count int }
	var groups []group
	for r := 12; r >= 0; r-- {
		if counts[r] > 0 {
			groups = append(groups, group{rank: r, count: counts[r]})
		}
	}
	sort.SliceStable(groups, func(i, j int) bool {
		if groups[i].count != groups[j].count {
			return groups[i].count > groups[j].count
		}
		return groups[i].rank > groups[j].rank
	})

	key := make([]int, 0, 5)
	for _, g := range groups {
		key = append(key, g.rank)
	}

	switch {
	case groups[0].count == 4:
		return Rank{Class: FourOfAKind, Key: key}
	case groups[0].count == 3 && groups[1].count == 2:
		return Rank{Class: FullHouse, Key: key[:2]}
	case flush:
		return Rank{Class: Flush, Key: key}
	case straightTop >= 0:
		return Rank{Class: Straight, Key: []int{straightTop}}
	case groups[0].count == 3:
		return Rank{Class: ThreeOfAKind, Key: key}
	case groups[0].count == 2 && groups[1].count == 2:
		return Rank{Class: TwoPair, Key: key}
	case groups[0].count == 2:
		return Rank{Class: OnePair, Key: key}
	default:
		return Rank{Class: HighCard, Key: key}
	}
}

// straightTopCard returns the top-card rank of a 5-card straight, or
// -1 when the cards do not form one. The wheel (A-2-3-4-5) reports 3,
// the five's rank index, so it sorts below a six-high straight.
func straightTopCard(counts [13]int) int {
	distinct := 0
	for _, c := range counts {
		if c > 1 {
			return -1
		}
		if c == 1 {
			distinct++
		}
	}
	if distinct != 5 {
		return -1
	}

	// Wheel: A plus 2-3-4-5.
	if counts[12] == 1 && counts[0] == 1 && counts[1] == 1 && counts[2] == 1 && counts[3] == 1 {
		return 3
	}

	low := -1
	for r := 0; r < 13; r++ {
		if counts[r] == 1 {
			low = r
			break
		}
	}
	for r := low; r < low+5; r++ {
		if r > 12 || counts[r] != 1 {
			return -1
		}
	}
	return low + 4
}
