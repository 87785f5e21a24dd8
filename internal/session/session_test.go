package session

import (
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// eventRecorder collects broadcast events instead of pushing them to
// spectators.
type eventRecorder struct {
	mu     sync.Mutex
	events []Event
}

func (er *eventRecorder) record(ev Event) {
	er.mu.Lock()
	defer er.mu.Unlock()
	er.events = append(er.events, ev)
}

func (er *eventRecorder) last() *Event {
	er.mu.Lock()
	defer er.mu.Unlock()
	if len(er.events) == 0 {
		return nil
	}
	return &er.events[len(er.events)-1]
}

// orderedBoard builds an unshuffled board so tests know the pairing: pair i
// occupies slots 2i and 2i+1.
func orderedBoard(n int) Board {
	board := make(Board, 0, 2*n)
	for i := 0; i < n; i++ {
		board = append(board,
			CardSlot{PairIndex: i, Side: SideFirst},
			CardSlot{PairIndex: i, Side: SideSecond},
		)
	}
	return board
}

func setupTestSession(t *testing.T, pairs int, v Variant) (*Session, *eventRecorder) {
	t.Helper()
	s := New(uuid.New(), uuid.New(), v, orderedBoard(pairs))
	er := &eventRecorder{}
	s.BroadcastFn = er.record
	return s, er
}

func TestCheckMoveAccounting(t *testing.T) {
	s, _ := setupTestSession(t, 4, VariantMatchingPair)

	// Mismatch consumes a move but matches nothing.
	res, err := s.Check(0, 2)
	require.NoError(t, err)
	assert.False(t, res.IsMatch)
	assert.Equal(t, 1, res.Moves)
	assert.Equal(t, 0, res.MatchedCount)
	assert.Equal(t, StatusOngoing, res.Status)

	// Match consumes a move and grows the matched set by one pair.
	res, err = s.Check(0, 1)
	require.NoError(t, err)
	assert.True(t, res.IsMatch)
	assert.Equal(t, 2, res.Moves)
	assert.Equal(t, 1, res.MatchedCount)
	assert.Equal(t, StatusOngoing, res.Status)
}

func TestCheckInvalidMoves(t *testing.T) {
	s, _ := setupTestSession(t, 4, VariantMatchingPair)

	_, err := s.Check(3, 3)
	assert.ErrorIs(t, err, ErrInvalidMoveRequest, "identical indices")

	_, err = s.Check(-1, 2)
	assert.ErrorIs(t, err, ErrInvalidMoveRequest, "negative index")

	_, err = s.Check(0, 8)
	assert.ErrorIs(t, err, ErrInvalidMoveRequest, "index beyond board")

	// Rejected attempts must not consume moves.
	res, err := s.Check(0, 1)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Moves)

	// Resubmitting an already-matched pair fails instead of double-counting.
	_, err = s.Check(0, 1)
	assert.ErrorIs(t, err, ErrInvalidMoveRequest)
	res, err = s.Check(2, 3)
	require.NoError(t, err)
	assert.Equal(t, 2, res.Moves)
	assert.Equal(t, 2, res.MatchedCount)
}

func TestCompletionAndFinish(t *testing.T) {
	s, er := setupTestSession(t, 4, VariantMatchingPair)

	for i := 0; i < 4; i++ {
		res, err := s.Check(2*i, 2*i+1)
		require.NoError(t, err)
		require.True(t, res.IsMatch)
		if i < 3 {
			assert.Equal(t, StatusOngoing, res.Status)
		} else {
			assert.Equal(t, StatusFinished, res.Status)
		}
	}

	// Any further gameplay call is a state error.
	_, err := s.Check(0, 2)
	assert.ErrorIs(t, err, ErrSessionAlreadyFinished)
	assert.ErrorIs(t, s.Reshuffle(), ErrSessionAlreadyFinished)

	first, err := s.Finish()
	require.NoError(t, err)
	assert.Equal(t, s.ID, first.SessionID)
	assert.Equal(t, 4, first.Moves)
	assert.Equal(t, 4, first.MatchedPairs)
	assert.Equal(t, 4, first.TotalPairs)
	assert.Greater(t, first.Score, 0)

	lastEv := er.last()
	require.NotNil(t, lastEv)
	assert.Equal(t, EventSessionFinished, lastEv.Type)
	require.NotNil(t, lastEv.Result)
	assert.Equal(t, first, *lastEv.Result)

	// Finish is idempotent: the memoized result comes back unchanged even
	// after time passes.
	time.Sleep(5 * time.Millisecond)
	second, err := s.Finish()
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestFinishBeforeComplete(t *testing.T) {
	s, _ := setupTestSession(t, 4, VariantMatchingPair)
	_, err := s.Check(0, 1)
	require.NoError(t, err)

	_, err = s.Finish()
	assert.ErrorIs(t, err, ErrSessionNotComplete)
}

// TestComboScoring walks the canonical combo scenario: three consecutive
// matches pay 100, 200, 300 (cumulative 600); a mismatch resets the combo so
// the next match pays the base 100 again.
func TestComboScoring(t *testing.T) {
	s, _ := setupTestSession(t, 5, VariantPairOrNoPair)

	for i, want := range []int{100, 300, 600} {
		res, err := s.Check(2*i, 2*i+1)
		require.NoError(t, err)
		require.True(t, res.IsMatch)
		s.mu.Lock()
		assert.Equal(t, want, s.score, "cumulative score after match %d", i+1)
		s.mu.Unlock()
	}

	// Mismatch: combo back to 0, score untouched.
	res, err := s.Check(6, 8)
	require.NoError(t, err)
	require.False(t, res.IsMatch)
	s.mu.Lock()
	assert.Equal(t, 0, s.combo)
	assert.Equal(t, 600, s.score)
	s.mu.Unlock()

	// Next match restarts at base, not a continuation.
	res, err = s.Check(6, 7)
	require.NoError(t, err)
	require.True(t, res.IsMatch)

	res, err = s.Check(8, 9)
	require.NoError(t, err)
	require.True(t, res.IsMatch)
	require.Equal(t, StatusFinished, res.Status)

	result, err := s.Finish()
	require.NoError(t, err)
	assert.Equal(t, 600+100+200, result.Score)
	assert.Equal(t, 3, result.MaxCombo)
}

func TestReshuffleResets(t *testing.T) {
	s, er := setupTestSession(t, 4, VariantPairOrNoPair)
	origID, origGame := s.ID, s.GameID

	_, err := s.Check(0, 1)
	require.NoError(t, err)
	_, err = s.Check(2, 4)
	require.NoError(t, err)

	before := s.View()
	time.Sleep(2 * time.Millisecond)
	require.NoError(t, s.Reshuffle())

	v := s.View()
	assert.Equal(t, origID, v.SessionID)
	assert.Equal(t, origGame, s.GameID)
	assert.Equal(t, 0, v.Moves)
	assert.Equal(t, 0, v.MatchedCount)
	assert.Equal(t, StatusOngoing, v.Status)
	assert.True(t, v.StartedAt.After(before.StartedAt), "startedAt must reset to now")
	assert.Len(t, v.Board, 8)

	s.mu.Lock()
	assert.Equal(t, 0, s.combo)
	assert.Equal(t, 0, s.maxCombo)
	assert.Equal(t, 0, s.score)
	s.mu.Unlock()

	lastEv := er.last()
	require.NotNil(t, lastEv)
	assert.Equal(t, EventSessionReshuffle, lastEv.Type)
}

// TestConcurrentChecksSerialize hammers the same matching pair from many
// goroutines: exactly one attempt may report the match and consume a move,
// the rest must fail validation without touching counters.
func TestConcurrentChecksSerialize(t *testing.T) {
	s, _ := setupTestSession(t, 4, VariantMatchingPair)

	const attempts = 32
	var wg sync.WaitGroup
	var matches, rejects int64
	var mu sync.Mutex

	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			res, err := s.Check(0, 1)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				assert.ErrorIs(t, err, ErrInvalidMoveRequest)
				rejects++
				return
			}
			assert.True(t, res.IsMatch)
			matches++
		}()
	}
	wg.Wait()

	assert.EqualValues(t, 1, matches, "only one attempt may score the pair")
	assert.EqualValues(t, attempts-1, rejects)

	v := s.View()
	assert.Equal(t, 1, v.Moves)
	assert.Equal(t, 1, v.MatchedCount)
}
