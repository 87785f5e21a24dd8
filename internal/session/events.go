package session

import "github.com/google/uuid"

// EventType is an enum-like type for session lifecycle events pushed to
// spectators and tests.
type EventType string

const (
	EventCheckResult      EventType = "session_check"
	EventSessionReshuffle EventType = "session_reshuffle"
	EventSessionFinished  EventType = "session_finished"
)

// Event holds data about one session state change in a broadcast-ready
// format. Fields are omitted when not relevant to the event type.
type Event struct {
	Type      EventType `json:"type"`
	SessionID uuid.UUID `json:"sessionId"`

	IsMatch      *bool  `json:"isMatch,omitempty"`
	FirstIndex   *int   `json:"firstIndex,omitempty"`
	SecondIndex  *int   `json:"secondIndex,omitempty"`
	Moves        int    `json:"moves,omitempty"`
	MatchedCount int    `json:"matchedCount,omitempty"`
	Status       Status `json:"status,omitempty"`

	Combo int `json:"combo,omitempty"`
	Score int `json:"score,omitempty"`

	Result *Result `json:"result,omitempty"`
}
