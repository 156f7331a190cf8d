package deck

import (
	"errors"
	"testing"

	"github.com/cardroom/headsup/internal/randutil"
)

func TestDeckDealsEveryCardOnce(t *testing.T) {
	d := New(randutil.New(1))

	seen := make(map[Card]bool, NumCards)
	for i := 0; i < NumCards; i++ {
		c, err := d.Deal()
		if err != nil {
			t.Fatalf("deal %d: %v", i, err)
		}
		if seen[c] {
			t.Fatalf("card %v dealt twice", c)
		}
		seen[c] = true
	}
	if len(seen) != NumCards {
		t.Fatalf("dealt %d distinct cards, want %d", len(seen), NumCards)
	}

	if _, err := d.Deal(); !errors.Is(err, ErrDeckExhausted) {
		t.Errorf("deal from empty deck: want ErrDeckExhausted, got %v", err)
	}
}

func TestDeckDeterministicForSeed(t *testing.T) {
	a := New(randutil.New(42))
	b := New(randutil.New(42))

	for i := 0; i < NumCards; i++ {
		ca, _ := a.Deal()
		cb, _ := b.Deal()
		if ca != cb {
			t.Fatalf("deal %d: decks diverge (%v vs %v)", i, ca, cb)
		}
	}
}

func TestDealN(t *testing.T) {
	d := New(randutil.New(7))

	flop, err := d.DealN(3)
	if err != nil {
		t.Fatalf("DealN(3): %v", err)
	}
	if len(flop) != 3 {
		t.Fatalf("got %d cards, want 3", len(flop))
	}
	if d.Remaining() != NumCards-3 {
		t.Errorf("remaining = %d, want %d", d.Remaining(), NumCards-3)
	}

	if _, err := d.DealN(NumCards); !errors.Is(err, ErrDeckExhausted) {
		t.Errorf("overdraw: want ErrDeckExhausted, got %v", err)
	}
}
