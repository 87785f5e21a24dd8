// internal/database/score.go
package database

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"pairmatch-service/internal/models"
)

// InsertScore persists one finalized result as a leaderboard row.
func InsertScore(ctx context.Context, gameID, userID uuid.UUID, entry *models.ScoreEntry) error {
	if entry.ID == uuid.Nil {
		id, err := uuid.NewRandom()
		if err != nil {
			return fmt.Errorf("failed to generate score id: %w", err)
		}
		entry.ID = id
	}

	q := `
		INSERT INTO game_scores (id, game_id, user_id, score, max_combo, time_taken, matched_pairs, total_pairs)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`
	err := pgx.BeginTxFunc(ctx, DB, pgx.TxOptions{}, func(tx pgx.Tx) error {
		_, e := tx.Exec(ctx, q,
			entry.ID, gameID, userID,
			entry.Score, entry.MaxCombo, entry.TimeTaken,
			entry.MatchedPairs, entry.TotalPairs,
		)
		return e
	})
	if err != nil {
		return fmt.Errorf("failed to insert score for game %s: %w", gameID, err)
	}
	return nil
}

// GetLeaderboard returns one page of a game's leaderboard ordered by score
// descending (ties broken by earliest submission), plus the total row count
// for pagination.
func GetLeaderboard(ctx context.Context, gameID uuid.UUID, page, perPage int) ([]models.ScoreEntry, int, error) {
	if page < 1 {
		page = 1
	}
	if perPage < 1 {
		perPage = 10
	}

	var total int
	countQ := `SELECT COUNT(*) FROM game_scores WHERE game_id = $1`
	if err := DB.QueryRow(ctx, countQ, gameID).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count scores for game %s: %w", gameID, err)
	}

	q := `
		SELECT s.id, s.score, s.max_combo, s.time_taken, s.matched_pairs, s.total_pairs, s.created_at,
		       u.id, u.username, u.profile_picture
		FROM game_scores s
		JOIN users u ON s.user_id = u.id
		WHERE s.game_id = $1
		ORDER BY s.score DESC, s.created_at ASC
		LIMIT $2 OFFSET $3
	`
	rows, err := DB.Query(ctx, q, gameID, perPage, (page-1)*perPage)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to query leaderboard for game %s: %w", gameID, err)
	}
	defer rows.Close()

	var entries []models.ScoreEntry
	for rows.Next() {
		var e models.ScoreEntry
		var u models.User
		if err := rows.Scan(
			&e.ID, &e.Score, &e.MaxCombo, &e.TimeTaken, &e.MatchedPairs, &e.TotalPairs, &e.CreatedAt,
			&u.ID, &u.Username, &u.ProfilePicture,
		); err != nil {
			return nil, 0, err
		}
		e.User = &u
		entries = append(entries, e)
	}
	return entries, total, rows.Err()
}
