package session

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pairmatch-service/internal/models"
)

func defWithPairs(n int) *models.GameDefinition {
	def := &models.GameDefinition{Name: "test game"}
	for i := 0; i < n; i++ {
		def.Pairs = append(def.Pairs, models.PairItem{First: "a", Second: "b"})
	}
	return def
}

func TestGenerateBoardShape(t *testing.T) {
	for _, n := range []int{4, 8, 16} {
		board, err := Generate(defWithPairs(n), VariantMatchingPair)
		require.NoError(t, err)
		require.Len(t, board, 2*n)

		// Every pairIndex must appear exactly twice, once per side.
		sides := make(map[int]map[Side]int)
		for _, slot := range board {
			require.GreaterOrEqual(t, slot.PairIndex, 0)
			require.Less(t, slot.PairIndex, n)
			if sides[slot.PairIndex] == nil {
				sides[slot.PairIndex] = make(map[Side]int)
			}
			sides[slot.PairIndex][slot.Side]++
		}
		require.Len(t, sides, n)
		for pairIdx, bySide := range sides {
			assert.Equal(t, 1, bySide[SideFirst], "pair %d first side count", pairIdx)
			assert.Equal(t, 1, bySide[SideSecond], "pair %d second side count", pairIdx)
		}
	}
}

func TestGenerateBoardBounds(t *testing.T) {
	// matching-pair allows 4..16 pairs
	_, err := Generate(defWithPairs(3), VariantMatchingPair)
	assert.ErrorIs(t, err, ErrInvalidGameDefinition)
	_, err = Generate(defWithPairs(17), VariantMatchingPair)
	assert.ErrorIs(t, err, ErrInvalidGameDefinition)

	// pair-or-no-pair allows any N >= 2
	_, err = Generate(defWithPairs(1), VariantPairOrNoPair)
	assert.ErrorIs(t, err, ErrInvalidGameDefinition)
	_, err = Generate(defWithPairs(20), VariantPairOrNoPair)
	assert.NoError(t, err)
}

// TestShuffleFairness spot-checks the positional distribution of pair 0's
// first-side slot with a chi-square test over many generations. Not exact
// determinism, just no gross bias.
func TestShuffleFairness(t *testing.T) {
	const (
		pairs = 4
		slots = 2 * pairs
		runs  = 8000
	)
	r := rand.New(rand.NewSource(42))

	counts := make([]int, slots)
	for i := 0; i < runs; i++ {
		board := generate(pairs, r)
		for pos, slot := range board {
			if slot.PairIndex == 0 && slot.Side == SideFirst {
				counts[pos]++
			}
		}
	}

	expected := float64(runs) / float64(slots)
	var chiSquare float64
	for _, c := range counts {
		diff := float64(c) - expected
		chiSquare += diff * diff / expected
	}
	// 7 degrees of freedom; critical value at p=0.001 is 24.32.
	assert.Less(t, chiSquare, 24.32, "positional distribution is biased: %v", counts)
}

func TestParseVariant(t *testing.T) {
	v, err := ParseVariant("matching-pair")
	require.NoError(t, err)
	assert.Equal(t, VariantMatchingPair, v)
	assert.Equal(t, PolicyDiscrete, v.Policy())

	v, err = ParseVariant("pair-or-no-pair")
	require.NoError(t, err)
	assert.Equal(t, VariantPairOrNoPair, v)
	assert.Equal(t, PolicyCombo, v.Policy())

	_, err = ParseVariant("jeopardy")
	assert.Error(t, err)
}
