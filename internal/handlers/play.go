// internal/handlers/play.go
package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/google/uuid"

	log "github.com/sirupsen/logrus"

	"pairmatch-service/internal/database"
	"pairmatch-service/internal/models"
	"pairmatch-service/internal/session"
)

// fetchDefinition resolves a game definition for board generation. Package
// variable so handler tests can substitute an in-memory catalog.
var fetchDefinition = func(ctx context.Context, gameID uuid.UUID) (*models.GameDefinition, error) {
	return database.GetGameDefinition(ctx, gameID)
}

type checkRequest struct {
	SessionID   uuid.UUID `json:"sessionId"`
	FirstIndex  int       `json:"firstIndex"`
	SecondIndex int       `json:"secondIndex"`
}

type finishRequest struct {
	SessionID uuid.UUID `json:"sessionId"`
}

type generateResponse struct {
	SessionID uuid.UUID     `json:"sessionId"`
	GameID    uuid.UUID     `json:"gameId"`
	Board     session.Board `json:"board"`
	StartedAt int64         `json:"startedAt"`
}

type reshuffleResponse struct {
	SessionID uuid.UUID     `json:"sessionId"`
	Board     session.Board `json:"board"`
}

// PlayHandler dispatches the gameplay routes mounted under /game/game-type/:
//
//	POST /game/game-type/{variant}/{gameID}/play/generate
//	POST /game/game-type/{variant}/{gameID}/play/check
//	POST /game/game-type/{variant}/{gameID}/play/finish
//	POST /game/game-type/{variant}/play/session/{sessionID}/reshuffle
func PlayHandler(srv *Server) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			writeError(w, http.StatusMethodNotAllowed, "method not allowed")
			return
		}

		parts := strings.Split(strings.Trim(strings.TrimPrefix(r.URL.Path, "/game/game-type/"), "/"), "/")
		if len(parts) < 4 {
			writeError(w, http.StatusNotFound, "unknown play route")
			return
		}

		variant, err := session.ParseVariant(parts[0])
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}

		// {variant}/play/session/{sessionID}/reshuffle
		if parts[1] == "play" {
			if len(parts) == 5 && parts[2] == "session" && parts[4] == "reshuffle" {
				handleReshuffle(srv, w, r, parts[3])
				return
			}
			writeError(w, http.StatusNotFound, "unknown play route")
			return
		}

		// {variant}/{gameID}/play/{action}
		if len(parts) != 4 || parts[2] != "play" {
			writeError(w, http.StatusNotFound, "unknown play route")
			return
		}
		gameID, err := uuid.Parse(parts[1])
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid game id")
			return
		}

		switch parts[3] {
		case "generate":
			handleGenerate(srv, w, r, variant, gameID)
		case "check":
			handleCheck(srv, w, r, gameID)
		case "finish":
			handleFinish(srv, w, r, gameID)
		default:
			writeError(w, http.StatusNotFound, "unknown play route")
		}
	}
}

// handleGenerate creates a fresh session over a newly shuffled board.
// Anonymous play is allowed: if no valid token is presented and an
// ephemeral user cannot be minted, the session simply has no user.
func handleGenerate(srv *Server, w http.ResponseWriter, r *http.Request, variant session.Variant, gameID uuid.UUID) {
	userID, err := EnsureEphemeralUser(w, r)
	if err != nil {
		srv.Logger.Warnf("proceeding with anonymous session for game %s: %v", gameID, err)
		userID = uuid.Nil
	}

	def, err := fetchDefinition(r.Context(), gameID)
	if err != nil {
		srv.Logger.Warnf("game %s lookup failed: %v", gameID, err)
		writeError(w, http.StatusNotFound, "game not found")
		return
	}
	if !def.IsPublished {
		writeError(w, http.StatusNotFound, "game not found")
		return
	}

	board, err := session.Generate(def, variant)
	if err != nil {
		writeError(w, httpStatus(err), err.Error())
		return
	}

	s := session.New(gameID, userID, variant, board)
	srv.Store.Add(s)
	srv.Metrics.SessionsCreated.WithLabelValues(string(variant)).Inc()
	srv.Logger.WithFields(log.Fields{
		"session": s.ID,
		"game":    gameID,
		"variant": variant,
		"pairs":   board.TotalPairs(),
	}).Info("session created")

	view := s.View()
	writeJSON(w, http.StatusCreated, generateResponse{
		SessionID: view.SessionID,
		GameID:    view.GameID,
		Board:     view.Board,
		StartedAt: view.StartedAt.UnixMilli(),
	})
}

func handleCheck(srv *Server, w http.ResponseWriter, r *http.Request, gameID uuid.UUID) {
	var req checkRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request payload")
		return
	}

	s, err := srv.Store.Get(req.SessionID)
	if err != nil {
		writeError(w, httpStatus(err), err.Error())
		return
	}
	if s.GameID != gameID {
		writeError(w, http.StatusNotFound, "session does not belong to this game")
		return
	}

	res, err := s.Check(req.FirstIndex, req.SecondIndex)
	if err != nil {
		writeError(w, httpStatus(err), err.Error())
		return
	}
	srv.Metrics.RecordCheck(res.IsMatch)
	writeJSON(w, http.StatusOK, res)
}

func handleFinish(srv *Server, w http.ResponseWriter, r *http.Request, gameID uuid.UUID) {
	var req finishRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request payload")
		return
	}

	s, err := srv.Store.Get(req.SessionID)
	if err != nil {
		writeError(w, httpStatus(err), err.Error())
		return
	}
	if s.GameID != gameID {
		writeError(w, http.StatusNotFound, "session does not belong to this game")
		return
	}

	result, err := srv.Store.Finish(req.SessionID)
	if err != nil {
		writeError(w, httpStatus(err), err.Error())
		return
	}
	srv.Logger.WithFields(log.Fields{
		"session": result.SessionID,
		"game":    gameID,
		"score":   result.Score,
		"moves":   result.Moves,
	}).Info("session finished")
	writeJSON(w, http.StatusOK, result)
}

func handleReshuffle(srv *Server, w http.ResponseWriter, r *http.Request, sessionIDStr string) {
	sessionID, err := uuid.Parse(sessionIDStr)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid session id")
		return
	}

	s, err := srv.Store.Get(sessionID)
	if err != nil {
		writeError(w, httpStatus(err), err.Error())
		return
	}
	if err := s.Reshuffle(); err != nil {
		writeError(w, httpStatus(err), err.Error())
		return
	}

	view := s.View()
	writeJSON(w, http.StatusOK, reshuffleResponse{
		SessionID: view.SessionID,
		Board:     view.Board,
	})
}

// httpStatus maps engine errors onto response codes.
func httpStatus(err error) int {
	switch {
	case errors.Is(err, session.ErrSessionNotFound):
		return http.StatusNotFound
	case errors.Is(err, session.ErrInvalidGameDefinition):
		return http.StatusUnprocessableEntity
	case errors.Is(err, session.ErrSessionAlreadyFinished),
		errors.Is(err, session.ErrSessionNotComplete):
		return http.StatusConflict
	case errors.Is(err, session.ErrInvalidMoveRequest):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}
