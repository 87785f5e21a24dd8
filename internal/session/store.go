package session

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Store owns every live session, keyed by session id. The store mutex only
// guards the map; gameplay serialization is per session, so sessions for
// different players never block each other.
type Store struct {
	mu       sync.Mutex
	sessions map[uuid.UUID]*Session

	// OnSessionClosed fires once per session lifetime, on finalization,
	// explicit destroy, or idle reclamation. completed reports whether all
	// pairs were matched.
	OnSessionClosed func(s *Session, completed bool)
}

func NewStore() *Store {
	return &Store{
		sessions: make(map[uuid.UUID]*Session),
	}
}

// Add registers a freshly created session as the authoritative one for its id.
func (st *Store) Add(s *Session) {
	st.mu.Lock()
	defer st.mu.Unlock()
	st.sessions[s.ID] = s
}

// Get returns the live session for id, or ErrSessionNotFound.
func (st *Store) Get(id uuid.UUID) (*Session, error) {
	st.mu.Lock()
	defer st.mu.Unlock()
	s, ok := st.sessions[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}
	return s, nil
}

// Finish finalizes a completed session and emits the close signal exactly
// once. The session stays resident so repeated finish calls keep returning
// the memoized result; reclamation happens via Destroy or the idle sweep.
func (st *Store) Finish(id uuid.UUID) (Result, error) {
	s, err := st.Get(id)
	if err != nil {
		return Result{}, err
	}
	res, err := s.Finish()
	if err != nil {
		return Result{}, err
	}
	st.fireClosed(s, true)
	return res, nil
}

// Destroy releases a session, emitting the close signal if the session was
// never finalized (abandonment).
func (st *Store) Destroy(id uuid.UUID) {
	st.mu.Lock()
	s, ok := st.sessions[id]
	delete(st.sessions, id)
	st.mu.Unlock()
	if ok {
		st.fireClosed(s, s.completed())
	}
}

// Sweep reclaims sessions idle longer than maxIdle, firing their close
// signals. Returns the number reclaimed. Run periodically by the server's
// scheduler.
func (st *Store) Sweep(maxIdle time.Duration) int {
	now := time.Now()

	st.mu.Lock()
	var stale []*Session
	for id, s := range st.sessions {
		if s.idleFor(now) > maxIdle {
			stale = append(stale, s)
			delete(st.sessions, id)
		}
	}
	st.mu.Unlock()

	for _, s := range stale {
		st.fireClosed(s, s.completed())
	}
	return len(stale)
}

// Len reports the number of live sessions.
func (st *Store) Len() int {
	st.mu.Lock()
	defer st.mu.Unlock()
	return len(st.sessions)
}

func (st *Store) fireClosed(s *Session, completed bool) {
	if !s.markClosed() {
		return
	}
	if st.OnSessionClosed != nil {
		st.OnSessionClosed(s, completed)
	}
}

// completed reports whether every pair was matched, without going through
// the public finish path.
func (s *Session) completed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status == StatusFinished
}
