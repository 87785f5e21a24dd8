// internal/database/game.go
package database

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"pairmatch-service/internal/models"
)

// gameJSON is the authored payload stored in games.game_json. The
// pair-or-no-pair editor writes "items" with left/right content; the
// matching-pair editor writes "pairs". Both normalize to PairItem.
type gameJSON struct {
	Pairs []models.PairItem `json:"pairs"`
	Items []struct {
		LeftContent  string `json:"left_content"`
		RightContent string `json:"right_content"`
	} `json:"items"`
}

// GetGameDefinition loads a game's authored pairs by id.
func GetGameDefinition(ctx context.Context, gameID uuid.UUID) (*models.GameDefinition, error) {
	var def models.GameDefinition
	var raw []byte

	q := `
		SELECT id, name, description, is_published, game_json
		FROM games
		WHERE id = $1
	`
	err := DB.QueryRow(ctx, q, gameID).Scan(
		&def.ID, &def.Name, &def.Description, &def.IsPublished, &raw,
	)
	if err != nil {
		return nil, fmt.Errorf("game %s not found: %w", gameID, err)
	}

	var payload gameJSON
	if err := json.Unmarshal(raw, &payload); err != nil {
		return nil, fmt.Errorf("malformed game_json for game %s: %w", gameID, err)
	}
	def.Pairs = payload.Pairs
	for _, item := range payload.Items {
		def.Pairs = append(def.Pairs, models.PairItem{
			First:  item.LeftContent,
			Second: item.RightContent,
		})
	}
	return &def, nil
}

// IncrementPlayCount bumps a game's play counter by one.
func IncrementPlayCount(ctx context.Context, gameID uuid.UUID) error {
	q := `UPDATE games SET play_count = play_count + 1 WHERE id = $1`
	err := pgx.BeginTxFunc(ctx, DB, pgx.TxOptions{}, func(tx pgx.Tx) error {
		_, e := tx.Exec(ctx, q, gameID)
		return e
	})
	if err != nil {
		return fmt.Errorf("failed to increment play count for game %s: %w", gameID, err)
	}
	return nil
}
