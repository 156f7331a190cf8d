package deck

import (
	"errors"
	"testing"
)

func TestParseCardRoundTrip(t *testing.T) {
	// Every one of the 52 cards must survive format then parse.
	for rank := uint8(0); rank < 13; rank++ {
		for suit := uint8(0); suit < 4; suit++ {
			c := NewCard(rank, suit)
			parsed, err := ParseCard(c.String())
			if err != nil {
				t.Fatalf("ParseCard(%q): %v", c.String(), err)
			}
			if parsed != c {
				t.Errorf("round trip %q: got %v, want %v", c.String(), parsed, c)
			}
		}
	}
}

func TestParseCard(t *testing.T) {
	tests := []struct {
		input   string
		rank    uint8
		suit    uint8
		wantErr bool
	}{
		{input: "As", rank: 12, suit: 3},
		{input: "2c", rank: 0, suit: 0},
		{input: "Td", rank: 8, suit: 1},
		{input: "9h", rank: 7, suit: 2},
		{input: "Kx", wantErr: true},
		{input: "1s", wantErr: true},
		{input: "A", wantErr: true},
		{input: "Asd", wantErr: true},
		{input: "", wantErr: true},
	}

	for _, tt := range tests {
		c, err := ParseCard(tt.input)
		if tt.wantErr {
			if !errors.Is(err, ErrInvalidCard) {
				t.Errorf("ParseCard(%q): want ErrInvalidCard, got %v", tt.input, err)
			}
			continue
		}
		if err != nil {
			t.Errorf("ParseCard(%q): %v", tt.input, err)
			continue
		}
		if c.Rank() != tt.rank || c.Suit() != tt.suit {
			t.Errorf("ParseCard(%q) = rank %d suit %d, want rank %d suit %d",
				tt.input, c.Rank(), c.Suit(), tt.rank, tt.suit)
		}
	}
}

func TestParseCards(t *testing.T) {
	cards, err := ParseCards("AsKdQc")
	if err != nil {
		t.Fatalf("ParseCards: %v", err)
	}
	want := []string{"As", "Kd", "Qc"}
	if len(cards) != len(want) {
		t.Fatalf("got %d cards, want %d", len(cards), len(want))
	}
	for i, s := range Strings(cards) {
		if s != want[i] {
			t.Errorf("card %d = %q, want %q", i, s, want[i])
		}
	}

	if _, err := ParseCards("AsK"); err == nil {
		t.Error("ParseCards with odd length should fail")
	}
	if _, err := ParseCards("AsXx"); err == nil {
		t.Error("ParseCards with bad card should fail")
	}
}
