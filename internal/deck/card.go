package deck

import (
	"errors"
	"fmt"
)

// Card is a single playing card packed into one byte: rank*4 + suit.
// Ranks run 0 (deuce) through 12 (ace); suits are clubs=0, diamonds=1,
// hearts=2, spades=3.
type Card uint8

// ErrInvalidCard is returned when parsing malformed card text.
var ErrInvalidCard = errors.New("invalid card")

const (
	// NumCards is the size of a standard deck.
	NumCards = 52
)

const (
	rankChars = "23456789TJQKA"
	suitChars = "cdhs"
)

// NewCard builds a card from a rank (0-12) and suit (0-3).
func NewCard(rank, suit uint8) Card {
	return Card(rank*4 + suit)
}

// Rank returns the card's rank, 0 (deuce) through 12 (ace).
func (c Card) Rank() uint8 {
	return uint8(c) / 4
}

// Suit returns the card's suit, clubs=0 through spades=3.
func (c Card) Suit() uint8 {
	return uint8(c) % 4
}

// String renders the two-character text form, e.g. "As" or "7d".
func (c Card) String() string {
	if c >= NumCards {
		return "??"
	}
	return string([]byte{rankChars[c.Rank()], suitChars[c.Suit()]})
}

// ParseCard parses a two-character card like "As" or "7d".
func ParseCard(s string) (Card, error) {
	if len(s) != 2 {
		return 0, fmt.Errorf("%w: %q", ErrInvalidCard, s)
	}

	rank := -1
	for i := 0; i < len(rankChars); i++ {
		if s[0] == rankChars[i] {
			rank = i
			break
		}
	}

	suit := -1
	for i := 0; i < len(suitChars); i++ {
		if s[1] == suitChars[i] {
			suit = i
			break
		}
	}

	if rank < 0 || suit < 0 {
		return 0, fmt.Errorf("%w: %q", ErrInvalidCard, s)
	}
	return NewCard(uint8(rank), uint8(suit)), nil
}

// ParseCards parses a concatenated card string like "AsKdQc".
func ParseCards(s string) ([]Card, error) {
	if len(s)%2 != 0 {
		return nil, fmt.Errorf("%w: odd-length input %q", ErrInvalidCard, s)
	}

	cards := make([]Card, 0, len(s)/2)
	for i := 0; i < len(s); i += 2 {
		c, err := ParseCard(s[i : i+2])
		if err != nil {
			return nil, err
		}
		cards = append(cards, c)
	}
	return cards, nil
}

// Strings renders a slice of cards to their wire form.
func Strings(cards []Card) []string {
	out := make([]string, len(cards))
	for i, c := range cards {
		out[i] = c.String()
	}
	return out
}
