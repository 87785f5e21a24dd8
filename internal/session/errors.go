package session

import "errors"

// Sentinel errors for the play session engine. Callers match them with
// errors.Is; wrapped forms carry the offending detail.
var (
	// ErrInvalidGameDefinition indicates the game definition's pair count is
	// outside the variant's allowed range. Not retryable without fixing the
	// definition.
	ErrInvalidGameDefinition = errors.New("invalid game definition")

	// ErrSessionNotFound indicates an unknown or expired session id. The
	// client must create a new session.
	ErrSessionNotFound = errors.New("session not found")

	// ErrSessionAlreadyFinished indicates a gameplay call against a session
	// whose pairs are all matched.
	ErrSessionAlreadyFinished = errors.New("session already finished")

	// ErrSessionNotComplete indicates finish() was called before all pairs
	// were matched.
	ErrSessionNotComplete = errors.New("session not complete")

	// ErrInvalidMoveRequest indicates out-of-range, duplicate, or
	// already-matched slot indices. Surfaced to the player as a no-op.
	ErrInvalidMoveRequest = errors.New("invalid move request")
)
