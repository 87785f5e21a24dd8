package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pairmatch-service/internal/metrics"
	"pairmatch-service/internal/models"
	"pairmatch-service/internal/session"
)

type boardSlot struct {
	PairIndex int    `json:"pairIndex"`
	Side      string `json:"side"`
}

type generatePayload struct {
	SessionID uuid.UUID   `json:"sessionId"`
	GameID    uuid.UUID   `json:"gameId"`
	Board     []boardSlot `json:"board"`
	StartedAt int64       `json:"startedAt"`
}

func testDefinition(pairs int, published bool) *models.GameDefinition {
	def := &models.GameDefinition{
		ID:          uuid.New(),
		Name:        "Capitals",
		IsPublished: published,
	}
	for i := 0; i < pairs; i++ {
		def.Pairs = append(def.Pairs, models.PairItem{
			First:  fmt.Sprintf("country-%d", i),
			Second: fmt.Sprintf("capital-%d", i),
		})
	}
	return def
}

// stubDefinition points the definition lookup at a fixed in-memory game for
// the duration of one test.
func stubDefinition(t *testing.T, def *models.GameDefinition) {
	t.Helper()
	prev := fetchDefinition
	fetchDefinition = func(ctx context.Context, gameID uuid.UUID) (*models.GameDefinition, error) {
		if gameID != def.ID {
			return nil, fmt.Errorf("no game %s", gameID)
		}
		return def, nil
	}
	t.Cleanup(func() { fetchDefinition = prev })
}

func newTestServer(t *testing.T) (*Server, http.HandlerFunc) {
	t.Helper()
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	srv := NewServer(logger, session.NewStore(), metrics.New())
	return srv, PlayHandler(srv)
}

func postJSON(t *testing.T, h http.HandlerFunc, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(http.MethodPost, path, &buf)
	w := httptest.NewRecorder()
	h(w, req)
	return w
}

func generateSession(t *testing.T, h http.HandlerFunc, variant string, gameID uuid.UUID) generatePayload {
	t.Helper()
	w := postJSON(t, h, fmt.Sprintf("/game/game-type/%s/%s/play/generate", variant, gameID), nil)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var resp generatePayload
	require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
	return resp
}

// pairsFromBoard maps each pairIndex to its two slot positions.
func pairsFromBoard(board []boardSlot) map[int][2]int {
	seen := map[int][]int{}
	for i, slot := range board {
		seen[slot.PairIndex] = append(seen[slot.PairIndex], i)
	}
	out := map[int][2]int{}
	for pi, idxs := range seen {
		out[pi] = [2]int{idxs[0], idxs[1]}
	}
	return out
}

func TestGenerateCreatesSession(t *testing.T) {
	def := testDefinition(4, true)
	stubDefinition(t, def)
	srv, h := newTestServer(t)

	resp := generateSession(t, h, "matching-pair", def.ID)

	assert.NotEqual(t, uuid.Nil, resp.SessionID)
	assert.Equal(t, def.ID, resp.GameID)
	require.Len(t, resp.Board, 8)
	for pi, slots := range pairsFromBoard(resp.Board) {
		assert.NotEqual(t, resp.Board[slots[0]].Side, resp.Board[slots[1]].Side,
			"pair %d must expose one slot per side", pi)
	}
	assert.Equal(t, 1, srv.Store.Len())
}

func TestGenerateRejectsUnknownVariant(t *testing.T) {
	def := testDefinition(4, true)
	stubDefinition(t, def)
	_, h := newTestServer(t)

	w := postJSON(t, h, fmt.Sprintf("/game/game-type/tile-swap/%s/play/generate", def.ID), nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestGenerateUnpublishedGameNotFound(t *testing.T) {
	def := testDefinition(4, false)
	stubDefinition(t, def)
	_, h := newTestServer(t)

	w := postJSON(t, h, fmt.Sprintf("/game/game-type/matching-pair/%s/play/generate", def.ID), nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestGeneratePairCountOutOfBounds(t *testing.T) {
	def := testDefinition(2, true)
	stubDefinition(t, def)
	_, h := newTestServer(t)

	w := postJSON(t, h, fmt.Sprintf("/game/game-type/matching-pair/%s/play/generate", def.ID), nil)
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
}

func TestCheckMatchAndMismatch(t *testing.T) {
	def := testDefinition(4, true)
	stubDefinition(t, def)
	_, h := newTestServer(t)

	resp := generateSession(t, h, "matching-pair", def.ID)
	pairs := pairsFromBoard(resp.Board)
	checkPath := fmt.Sprintf("/game/game-type/matching-pair/%s/play/check", def.ID)

	slots := pairs[0]
	w := postJSON(t, h, checkPath, checkRequest{
		SessionID: resp.SessionID, FirstIndex: slots[0], SecondIndex: slots[1],
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var res session.CheckResult
	require.NoError(t, json.NewDecoder(w.Body).Decode(&res))
	assert.True(t, res.IsMatch)
	assert.Equal(t, 1, res.Moves)
	assert.Equal(t, 1, res.MatchedCount)
	assert.Equal(t, session.StatusOngoing, res.Status)

	// Cards from different pairs never match.
	w = postJSON(t, h, checkPath, checkRequest{
		SessionID: resp.SessionID, FirstIndex: pairs[1][0], SecondIndex: pairs[2][0],
	})
	require.Equal(t, http.StatusOK, w.Code)
	require.NoError(t, json.NewDecoder(w.Body).Decode(&res))
	assert.False(t, res.IsMatch)
	assert.Equal(t, 2, res.Moves)
	assert.Equal(t, 1, res.MatchedCount)
}

func TestCheckRejectsBadRequests(t *testing.T) {
	def := testDefinition(4, true)
	stubDefinition(t, def)
	_, h := newTestServer(t)

	resp := generateSession(t, h, "matching-pair", def.ID)
	checkPath := fmt.Sprintf("/game/game-type/matching-pair/%s/play/check", def.ID)

	w := postJSON(t, h, checkPath, checkRequest{
		SessionID: resp.SessionID, FirstIndex: 3, SecondIndex: 3,
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = postJSON(t, h, checkPath, checkRequest{
		SessionID: resp.SessionID, FirstIndex: 0, SecondIndex: 99,
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = postJSON(t, h, checkPath, checkRequest{
		SessionID: uuid.New(), FirstIndex: 0, SecondIndex: 1,
	})
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestCheckRejectsSessionFromOtherGame(t *testing.T) {
	def := testDefinition(4, true)
	stubDefinition(t, def)
	_, h := newTestServer(t)

	resp := generateSession(t, h, "matching-pair", def.ID)
	otherGame := uuid.New()

	w := postJSON(t, h, fmt.Sprintf("/game/game-type/matching-pair/%s/play/check", otherGame), checkRequest{
		SessionID: resp.SessionID, FirstIndex: 0, SecondIndex: 1,
	})
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestFinishAfterCompletion(t *testing.T) {
	def := testDefinition(4, true)
	stubDefinition(t, def)
	_, h := newTestServer(t)

	resp := generateSession(t, h, "matching-pair", def.ID)
	checkPath := fmt.Sprintf("/game/game-type/matching-pair/%s/play/check", def.ID)
	finishPath := fmt.Sprintf("/game/game-type/matching-pair/%s/play/finish", def.ID)

	// Finishing before all pairs are matched conflicts.
	w := postJSON(t, h, finishPath, finishRequest{SessionID: resp.SessionID})
	assert.Equal(t, http.StatusConflict, w.Code)

	for _, slots := range pairsFromBoard(resp.Board) {
		w := postJSON(t, h, checkPath, checkRequest{
			SessionID: resp.SessionID, FirstIndex: slots[0], SecondIndex: slots[1],
		})
		require.Equal(t, http.StatusOK, w.Code)
	}

	w = postJSON(t, h, finishPath, finishRequest{SessionID: resp.SessionID})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var result session.Result
	require.NoError(t, json.NewDecoder(w.Body).Decode(&result))
	assert.Equal(t, resp.SessionID, result.SessionID)
	assert.Equal(t, 4, result.Moves)
	assert.Equal(t, 4, result.MatchedPairs)
	assert.Equal(t, 4, result.TotalPairs)
	assert.Positive(t, result.Score)

	// Repeated finish returns the same frozen result.
	w = postJSON(t, h, finishPath, finishRequest{SessionID: resp.SessionID})
	require.Equal(t, http.StatusOK, w.Code)
	var again session.Result
	require.NoError(t, json.NewDecoder(w.Body).Decode(&again))
	assert.Equal(t, result, again)
}

func TestReshuffleRestartsSession(t *testing.T) {
	def := testDefinition(4, true)
	stubDefinition(t, def)
	_, h := newTestServer(t)

	resp := generateSession(t, h, "matching-pair", def.ID)
	pairs := pairsFromBoard(resp.Board)
	checkPath := fmt.Sprintf("/game/game-type/matching-pair/%s/play/check", def.ID)

	w := postJSON(t, h, checkPath, checkRequest{
		SessionID: resp.SessionID, FirstIndex: pairs[0][0], SecondIndex: pairs[0][1],
	})
	require.Equal(t, http.StatusOK, w.Code)

	w = postJSON(t, h, fmt.Sprintf("/game/game-type/matching-pair/play/session/%s/reshuffle", resp.SessionID), nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var shuffled reshuffleResponse
	require.NoError(t, json.NewDecoder(w.Body).Decode(&shuffled))
	assert.Equal(t, resp.SessionID, shuffled.SessionID)
	assert.Len(t, shuffled.Board, len(resp.Board))

	// Counters restart from zero.
	slots := pairsFromBoard(boardFromSession(shuffled.Board))[0]
	w = postJSON(t, h, checkPath, checkRequest{
		SessionID: resp.SessionID, FirstIndex: slots[0], SecondIndex: slots[1],
	})
	require.Equal(t, http.StatusOK, w.Code)
	var res session.CheckResult
	require.NoError(t, json.NewDecoder(w.Body).Decode(&res))
	assert.Equal(t, 1, res.Moves)
	assert.Equal(t, 1, res.MatchedCount)
}

func boardFromSession(b session.Board) []boardSlot {
	out := make([]boardSlot, len(b))
	for i, slot := range b {
		out[i] = boardSlot{PairIndex: slot.PairIndex, Side: string(slot.Side)}
	}
	return out
}

func TestComboVariantScoresServerSide(t *testing.T) {
	def := testDefinition(3, true)
	stubDefinition(t, def)
	_, h := newTestServer(t)

	resp := generateSession(t, h, "pair-or-no-pair", def.ID)
	pairs := pairsFromBoard(resp.Board)
	checkPath := fmt.Sprintf("/game/game-type/pair-or-no-pair/%s/play/check", def.ID)
	finishPath := fmt.Sprintf("/game/game-type/pair-or-no-pair/%s/play/finish", def.ID)

	for pi := 0; pi < 3; pi++ {
		w := postJSON(t, h, checkPath, checkRequest{
			SessionID: resp.SessionID, FirstIndex: pairs[pi][0], SecondIndex: pairs[pi][1],
		})
		require.Equal(t, http.StatusOK, w.Code)
	}

	w := postJSON(t, h, finishPath, finishRequest{SessionID: resp.SessionID})
	require.Equal(t, http.StatusOK, w.Code)
	var result session.Result
	require.NoError(t, json.NewDecoder(w.Body).Decode(&result))
	// Uninterrupted run: 100 + 200 + 300.
	assert.Equal(t, 600, result.Score)
	assert.Equal(t, 3, result.MaxCombo)
}
