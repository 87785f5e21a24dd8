package session

import (
	"fmt"
	"math/rand"
	"time"

	"pairmatch-service/internal/models"
)

// Variant selects the game type a session plays, which fixes both the pair
// count bounds and the scoring policy.
type Variant string

const (
	VariantMatchingPair Variant = "matching-pair"
	VariantPairOrNoPair Variant = "pair-or-no-pair"
)

// ParseVariant maps a route segment to a Variant.
func ParseVariant(s string) (Variant, error) {
	switch Variant(s) {
	case VariantMatchingPair, VariantPairOrNoPair:
		return Variant(s), nil
	default:
		return "", fmt.Errorf("unknown game type %q", s)
	}
}

// pairBounds returns the allowed pair count range for the variant.
// max == 0 means unbounded.
func (v Variant) pairBounds() (min, max int) {
	switch v {
	case VariantMatchingPair:
		return 4, 16
	default:
		return 2, 0
	}
}

// Policy returns the scoring policy played by this variant.
func (v Variant) Policy() ScoringPolicy {
	if v == VariantPairOrNoPair {
		return PolicyCombo
	}
	return PolicyDiscrete
}

// Side marks which half of a pair a card slot shows.
type Side string

const (
	SideFirst  Side = "first"
	SideSecond Side = "second"
)

// CardSlot is one position on the board: which pair it belongs to and which
// side of that pair it displays. Slot position is the index into the Board.
type CardSlot struct {
	PairIndex int  `json:"pairIndex"`
	Side      Side `json:"side"`
}

// Board is the shuffled 2N-slot layout for one session. Every pairIndex in
// [0, N) appears in exactly two slots, one per side, after every shuffle.
type Board []CardSlot

// Generate builds a uniformly shuffled board from the game definition,
// validating the pair count against the variant's bounds. Pure aside from
// randomness; production callers get a time-seeded source.
func Generate(def *models.GameDefinition, v Variant) (Board, error) {
	n := len(def.Pairs)
	min, max := v.pairBounds()
	if n < min || (max > 0 && n > max) {
		if max > 0 {
			return nil, fmt.Errorf("%w: %s requires %d-%d pairs, got %d",
				ErrInvalidGameDefinition, v, min, max, n)
		}
		return nil, fmt.Errorf("%w: %s requires at least %d pairs, got %d",
			ErrInvalidGameDefinition, v, min, n)
	}
	return generate(n, rand.New(rand.NewSource(time.Now().UnixNano()))), nil
}

// generate lays out two slots per pair and applies a Fisher-Yates shuffle
// over all 2N positions. Split out so tests can pass a fixed-seed source.
func generate(n int, r *rand.Rand) Board {
	board := make(Board, 0, 2*n)
	for i := 0; i < n; i++ {
		board = append(board,
			CardSlot{PairIndex: i, Side: SideFirst},
			CardSlot{PairIndex: i, Side: SideSecond},
		)
	}
	r.Shuffle(len(board), func(i, j int) {
		board[i], board[j] = board[j], board[i]
	})
	return board
}

// TotalPairs returns N for a 2N-slot board.
func (b Board) TotalPairs() int {
	return len(b) / 2
}
