package deck

import (
	"errors"
	rand "math/rand/v2"
)

// ErrDeckExhausted is returned when dealing past the end of the deck.
var ErrDeckExhausted = errors.New("deck exhausted")

// Deck is a standard 52-card deck with a next-to-deal index.
type Deck struct {
	cards [NumCards]Card
	next  int
	rng   *rand.Rand
}

// New creates a shuffled deck using the provided RNG. A nil RNG falls
// back to the global source, which is fine for production play but
// tests should inject one for reproducible deals.
func New(rng *rand.Rand) *Deck {
	d := &Deck{rng: rng}
	for i := range d.cards {
		d.cards[i] = Card(i)
	}
	d.Shuffle()
	return d
}

// Shuffle rewinds the deal index and applies a Fisher-Yates shuffle.
func (d *Deck) Shuffle() {
	d.next = 0
	for i := len(d.cards) - 1; i > 0; i-- {
		var j int
		if d.rng != nil {
			j = d.rng.IntN(i + 1)
		} else {
			j = rand.IntN(i + 1)
		}
		d.cards[i], d.cards[j] = d.cards[j], d.cards[i]
	}
}

// Deal removes and returns the next card.
func (d *Deck) Deal() (Card, error) {
	if d.next >= len(d.cards) {
		return 0, ErrDeckExhausted
	}
	c := d.cards[d.next]
	d.next++
	return c, nil
}

// DealN deals n cards at once.
func (d *Deck) DealN(n int) ([]Card, error) {
	if d.next+n > len(d.cards) {
		return nil, ErrDeckExhausted
	}
	cards := make([]Card, n)
	copy(cards, d.cards[d.next:d.next+n])
	d.next += n
	return cards, nil
}

// Remaining returns the number of undealt cards.
func (d *Deck) Remaining() int {
	return len(d.cards) - d.next
}
