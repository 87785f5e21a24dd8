package models

import (
	"time"

	"github.com/google/uuid"
)

// ScoreEntry is one persisted leaderboard row, joined with the submitting user.
type ScoreEntry struct {
	ID           uuid.UUID `json:"id"`
	Score        int       `json:"score"`
	MaxCombo     int       `json:"max_combo"`
	TimeTaken    int       `json:"time_taken"` // seconds
	MatchedPairs int       `json:"matched_pairs"`
	TotalPairs   int       `json:"total_pairs"`
	CreatedAt    time.Time `json:"created_at"`
	User         *User     `json:"user,omitempty"`
}
