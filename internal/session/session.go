package session

import (
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Status is a session's lifecycle state.
type Status string

const (
	StatusOngoing  Status = "ONGOING"
	StatusFinished Status = "FINISHED"
)

// CheckResult carries the post-update counters back to the caller so the
// client can render feedback without a second round trip.
type CheckResult struct {
	IsMatch      bool   `json:"isMatch"`
	Moves        int    `json:"moves"`
	MatchedCount int    `json:"matchedCount"`
	Status       Status `json:"status"`
}

// Result is the immutable record frozen at finalization.
type Result struct {
	SessionID    uuid.UUID `json:"sessionId"`
	DurationMs   int64     `json:"durationMs"`
	Score        int       `json:"score"`
	Moves        int       `json:"moves"`
	MatchedPairs int       `json:"matchedPairs"`
	TotalPairs   int       `json:"totalPairs"`
	MaxCombo     int       `json:"maxCombo,omitempty"`
}

// View is a consistent read-only snapshot of a session, taken under the
// session lock, for building create/reshuffle responses.
type View struct {
	SessionID    uuid.UUID `json:"sessionId"`
	GameID       uuid.UUID `json:"gameId"`
	Board        Board     `json:"board"`
	StartedAt    time.Time `json:"startedAt"`
	Status       Status    `json:"status"`
	Moves        int       `json:"moves"`
	MatchedCount int       `json:"matchedCount"`
}

// Session holds one player's live attempt at a game. All gameplay mutation
// goes through Check, Reshuffle, and Finish, which serialize on the
// session's own mutex; sessions for different ids never contend.
type Session struct {
	ID      uuid.UUID
	GameID  uuid.UUID
	UserID  uuid.UUID // uuid.Nil for anonymous play
	Variant Variant

	mu          sync.Mutex
	board       Board
	status      Status
	moves       int
	matched     map[int]bool
	startedAt   time.Time
	combo       int
	maxCombo    int
	score       int // running total, combo policy only
	result      *Result
	lastTouched time.Time
	closed      bool

	// BroadcastFn pushes session events to spectators. Nil disables
	// broadcasting. Called with the session lock held; implementations must
	// not call back into the session.
	BroadcastFn func(ev Event)
}

// New builds a fresh ONGOING session over an already generated board.
func New(gameID, userID uuid.UUID, v Variant, board Board) *Session {
	id, _ := uuid.NewRandom()
	now := time.Now()
	return &Session{
		ID:          id,
		GameID:      gameID,
		UserID:      userID,
		Variant:     v,
		board:       board,
		status:      StatusOngoing,
		matched:     make(map[int]bool),
		startedAt:   now,
		lastTouched: now,
	}
}

// View returns a snapshot of the session's board and counters.
func (s *Session) View() View {
	s.mu.Lock()
	defer s.mu.Unlock()
	board := make(Board, len(s.board))
	copy(board, s.board)
	return View{
		SessionID:    s.ID,
		GameID:       s.GameID,
		Board:        board,
		StartedAt:    s.startedAt,
		Status:       s.status,
		Moves:        s.moves,
		MatchedCount: len(s.matched) / 2,
	}
}

// Check validates one two-card attempt against the board. A move is
// consumed whether or not it matches. On a match both slots join the
// matched set; completing the last pair flips the session to FINISHED.
// A mismatch leaves the slots available for future attempts.
func (s *Session) Check(firstIndex, secondIndex int) (CheckResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.status == StatusFinished {
		return CheckResult{}, ErrSessionAlreadyFinished
	}
	if firstIndex == secondIndex {
		return CheckResult{}, fmt.Errorf("%w: indices must differ", ErrInvalidMoveRequest)
	}
	if firstIndex < 0 || firstIndex >= len(s.board) ||
		secondIndex < 0 || secondIndex >= len(s.board) {
		return CheckResult{}, fmt.Errorf("%w: index out of range for %d-slot board",
			ErrInvalidMoveRequest, len(s.board))
	}
	if s.matched[firstIndex] || s.matched[secondIndex] {
		return CheckResult{}, fmt.Errorf("%w: slot already matched", ErrInvalidMoveRequest)
	}

	s.moves++
	s.lastTouched = time.Now()

	isMatch := s.board[firstIndex].PairIndex == s.board[secondIndex].PairIndex
	if isMatch {
		s.matched[firstIndex] = true
		s.matched[secondIndex] = true
		if s.Variant.Policy() == PolicyCombo {
			s.combo++
			if s.combo > s.maxCombo {
				s.maxCombo = s.combo
			}
			s.score += comboAward(s.combo)
		}
		if len(s.matched)/2 == s.board.TotalPairs() {
			s.status = StatusFinished
		}
	} else if s.Variant.Policy() == PolicyCombo {
		s.combo = 0
	}

	res := CheckResult{
		IsMatch:      isMatch,
		Moves:        s.moves,
		MatchedCount: len(s.matched) / 2,
		Status:       s.status,
	}
	s.fireEvent(Event{
		Type:         EventCheckResult,
		SessionID:    s.ID,
		IsMatch:      &res.IsMatch,
		FirstIndex:   &firstIndex,
		SecondIndex:  &secondIndex,
		Moves:        res.Moves,
		MatchedCount: res.MatchedCount,
		Status:       res.Status,
		Combo:        s.combo,
		Score:        s.score,
	})
	return res, nil
}

// Reshuffle restarts the session in place: a freshly sampled board, all
// counters zeroed, and the clock reset to now. The session id and game id
// survive. Restart semantics, not a continuation.
func (s *Session) Reshuffle() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.status == StatusFinished {
		return ErrSessionAlreadyFinished
	}

	s.board = generate(s.board.TotalPairs(), rand.New(rand.NewSource(time.Now().UnixNano())))
	s.moves = 0
	s.matched = make(map[int]bool)
	s.combo = 0
	s.maxCombo = 0
	s.score = 0
	s.result = nil
	s.startedAt = time.Now()
	s.lastTouched = s.startedAt

	s.fireEvent(Event{
		Type:      EventSessionReshuffle,
		SessionID: s.ID,
		Status:    s.status,
	})
	return nil
}

// Finish freezes the completed session into its Result. The first call
// computes duration and score; repeated calls return the memoized Result
// unchanged, never recomputed with a later now.
func (s *Session) Finish() (Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.result != nil {
		return *s.result, nil
	}
	if s.status != StatusFinished {
		return Result{}, ErrSessionNotComplete
	}

	durationMs := time.Since(s.startedAt).Milliseconds()
	totalPairs := s.board.TotalPairs()

	var score int
	switch s.Variant.Policy() {
	case PolicyCombo:
		score = s.score
	default:
		score = discreteScore(durationMs, s.moves, totalPairs)
	}

	s.result = &Result{
		SessionID:    s.ID,
		DurationMs:   durationMs,
		Score:        score,
		Moves:        s.moves,
		MatchedPairs: len(s.matched) / 2,
		TotalPairs:   totalPairs,
		MaxCombo:     s.maxCombo,
	}
	s.fireEvent(Event{
		Type:      EventSessionFinished,
		SessionID: s.ID,
		Status:    s.status,
		Result:    s.result,
	})
	return *s.result, nil
}

// SetBroadcastFn installs fn as the session's event sink if none is wired
// yet. Lets the first spectator connection claim the hook without racing
// concurrent gameplay calls.
func (s *Session) SetBroadcastFn(fn func(ev Event)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.BroadcastFn == nil {
		s.BroadcastFn = fn
	}
}

// markClosed flips the one-shot closed flag, returning true on the first
// call only. Gates the play-count signal to at-most-once per session.
func (s *Session) markClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return false
	}
	s.closed = true
	return true
}

// idleFor reports how long the session has gone without a gameplay call.
func (s *Session) idleFor(now time.Time) time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return now.Sub(s.lastTouched)
}

func (s *Session) fireEvent(ev Event) {
	if s.BroadcastFn != nil {
		s.BroadcastFn(ev)
	}
}
