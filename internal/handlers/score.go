// internal/handlers/score.go
package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"pairmatch-service/internal/database"
	"pairmatch-service/internal/models"
)

const (
	defaultLeaderboardPerPage = 10
	maxLeaderboardPerPage     = 100
)

// fetchLeaderboard resolves one leaderboard page. Package variable so
// handler tests can substitute an in-memory ranking.
var fetchLeaderboard = func(ctx context.Context, gameID uuid.UUID, page, perPage int) ([]models.ScoreEntry, int, error) {
	return database.GetLeaderboard(ctx, gameID, page, perPage)
}

type leaderboardMeta struct {
	Page       int  `json:"page"`
	PerPage    int  `json:"per_page"`
	Total      int  `json:"total"`
	TotalPages int  `json:"total_pages"`
	Prev       *int `json:"prev"`
	Next       *int `json:"next"`
}

type leaderboardResponse struct {
	Data []models.ScoreEntry `json:"data"`
	Meta leaderboardMeta     `json:"meta"`
}

// LeaderboardHandler serves one page of a game's leaderboard:
// GET /game/score/leaderboard/{gameID}?page=1&per_page=10
func LeaderboardHandler(srv *Server) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			writeError(w, http.StatusMethodNotAllowed, "method not allowed")
			return
		}

		idStr := strings.Trim(strings.TrimPrefix(r.URL.Path, "/game/score/leaderboard/"), "/")
		gameID, err := uuid.Parse(idStr)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid game id")
			return
		}

		page := queryInt(r, "page", 1)
		perPage := queryInt(r, "per_page", defaultLeaderboardPerPage)
		if page < 1 {
			page = 1
		}
		if perPage < 1 {
			perPage = defaultLeaderboardPerPage
		}
		if perPage > maxLeaderboardPerPage {
			perPage = maxLeaderboardPerPage
		}

		entries, total, err := fetchLeaderboard(r.Context(), gameID, page, perPage)
		if err != nil {
			srv.Logger.Errorf("leaderboard query failed for game %s: %v", gameID, err)
			writeError(w, http.StatusInternalServerError, "failed to load leaderboard")
			return
		}
		if entries == nil {
			entries = []models.ScoreEntry{}
		}

		totalPages := (total + perPage - 1) / perPage
		meta := leaderboardMeta{
			Page:       page,
			PerPage:    perPage,
			Total:      total,
			TotalPages: totalPages,
		}
		// prev/next are page numbers or null; the client's paging buttons
		// key off them directly.
		if page > 1 {
			prev := page - 1
			meta.Prev = &prev
		}
		if page < totalPages {
			next := page + 1
			meta.Next = &next
		}
		writeJSON(w, http.StatusOK, leaderboardResponse{
			Data: entries,
			Meta: meta,
		})
	}
}

type playCountRequest struct {
	GameID uuid.UUID `json:"gameId"`
}

// PlayCountHandler bumps a game's play counter: POST /game/play-count.
// Client-driven fallback for deployments without the queue worker; the
// normal path is the session close signal consumed by the scorekeeper.
func PlayCountHandler(srv *Server) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			writeError(w, http.StatusMethodNotAllowed, "method not allowed")
			return
		}

		var req playCountRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.GameID == uuid.Nil {
			writeError(w, http.StatusBadRequest, "invalid request payload")
			return
		}

		if err := database.IncrementPlayCount(r.Context(), req.GameID); err != nil {
			srv.Logger.Errorf("play count increment failed for game %s: %v", req.GameID, err)
			writeError(w, http.StatusInternalServerError, "failed to record play")
			return
		}
		writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
	}
}

func queryInt(r *http.Request, key string, def int) int {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return def
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return def
	}
	return n
}
