// internal/handlers/session_ws.go
package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"pairmatch-service/internal/middleware"
	"pairmatch-service/internal/session"
)

// SpectatorHub tracks WebSocket spectators per session. Spectators are
// read-only; all gameplay flows through the HTTP play routes, and the hub
// only fans session events out.
type SpectatorHub struct {
	mu      sync.Mutex
	conns   map[uuid.UUID]map[*websocket.Conn]struct{}
	pending map[uuid.UUID]*sync.WaitGroup
}

func NewSpectatorHub() *SpectatorHub {
	return &SpectatorHub{
		conns:   make(map[uuid.UUID]map[*websocket.Conn]struct{}),
		pending: make(map[uuid.UUID]*sync.WaitGroup),
	}
}

func (h *SpectatorHub) add(sessionID uuid.UUID, c *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.conns[sessionID] == nil {
		h.conns[sessionID] = make(map[*websocket.Conn]struct{})
	}
	h.conns[sessionID][c] = struct{}{}
}

func (h *SpectatorHub) remove(sessionID uuid.UUID, c *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if set, ok := h.conns[sessionID]; ok {
		delete(set, c)
		if len(set) == 0 {
			delete(h.conns, sessionID)
		}
	}
}

// Drop closes and forgets every spectator connection for a session. Called
// when the session is reclaimed. Waits for in-flight broadcast writes so the
// final event (the finish, usually) reaches spectators before the close
// frame. Write timeouts bound the wait.
func (h *SpectatorHub) Drop(sessionID uuid.UUID) {
	h.mu.Lock()
	set := h.conns[sessionID]
	wg := h.pending[sessionID]
	delete(h.conns, sessionID)
	delete(h.pending, sessionID)
	h.mu.Unlock()

	if wg != nil {
		wg.Wait()
	}
	for c := range set {
		c.Close(websocket.StatusNormalClosure, "session closed")
	}
}

// broadcastFunc builds a session.BroadcastFn for one session. The engine
// calls it with the session lock held, so the snapshot is taken quickly and
// writes happen on a separate goroutine.
func (h *SpectatorHub) broadcastFunc(logger *logrus.Logger, sessionID uuid.UUID) func(ev session.Event) {
	return func(ev session.Event) {
		h.mu.Lock()
		targets := make([]*websocket.Conn, 0, len(h.conns[sessionID]))
		for c := range h.conns[sessionID] {
			targets = append(targets, c)
		}
		var wg *sync.WaitGroup
		if len(targets) > 0 {
			wg = h.pending[sessionID]
			if wg == nil {
				wg = &sync.WaitGroup{}
				h.pending[sessionID] = wg
			}
			wg.Add(1)
		}
		h.mu.Unlock()
		if len(targets) == 0 {
			return
		}

		msgBytes, err := json.Marshal(ev)
		if err != nil {
			wg.Done()
			logger.Errorf("failed to marshal event %s for session %s: %v", ev.Type, sessionID, err)
			return
		}

		go func() {
			defer wg.Done()
			for _, c := range targets {
				ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
				if err := c.Write(ctx, websocket.MessageText, msgBytes); err != nil {
					logger.Warnf("failed to write event to spectator of session %s: %v", sessionID, err)
				}
				cancel()
			}
		}()
	}
}

// SessionWSHandler upgrades the HTTP connection to a WebSocket spectator
// feed for one session: /game/ws/{session_id}. The client receives every
// session event (checks, reshuffles, finish) as JSON text frames. Incoming
// frames other than ping are ignored.
func SessionWSHandler(logger *logrus.Logger, srv *Server) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		idStr := strings.Trim(strings.TrimPrefix(r.URL.Path, "/game/ws/"), "/")
		if idStr == "" {
			http.Error(w, "Missing session_id in path (/game/ws/{session_id})", http.StatusBadRequest)
			return
		}
		sessionID, err := uuid.Parse(idStr)
		if err != nil {
			http.Error(w, "Invalid session_id format", http.StatusBadRequest)
			return
		}

		s, err := srv.Store.Get(sessionID)
		if err != nil {
			http.Error(w, "Session not found", http.StatusNotFound)
			return
		}

		c, err := websocket.Accept(w, r, &websocket.AcceptOptions{
			Subprotocols:   []string{"spectate"},
			OriginPatterns: []string{"*"}, // Adjust for production security.
		})
		if err != nil {
			logger.Warnf("WebSocket accept error for session %s: %v", sessionID, err)
			return
		}
		defer c.Close(websocket.StatusInternalError, "Internal server error during handler exit.")

		middleware.LogWebSocketConnect(logger, r.RemoteAddr, r.URL.Path)
		srv.Spectators.add(sessionID, c)
		defer srv.Spectators.remove(sessionID, c)

		// First spectator wires the session's broadcast hook.
		s.SetBroadcastFn(srv.Spectators.broadcastFunc(logger, sessionID))

		// Send the current snapshot so late joiners see the board state.
		view := s.View()
		snapshot, _ := json.Marshal(map[string]interface{}{
			"type":         "session_snapshot",
			"sessionId":    view.SessionID,
			"gameId":       view.GameID,
			"status":       view.Status,
			"moves":        view.Moves,
			"matchedCount": view.MatchedCount,
		})
		writeCtx, cancelWrite := context.WithTimeout(r.Context(), 5*time.Second)
		err = c.Write(writeCtx, websocket.MessageText, snapshot)
		cancelWrite()
		if err != nil {
			logger.Warnf("failed to send snapshot to spectator of session %s: %v", sessionID, err)
			return
		}

		readSpectatorMessages(r.Context(), c, sessionID, logger)
		middleware.LogWebSocketDisconnect(logger, r.RemoteAddr, r.URL.Path, nil)
	}
}

// readSpectatorMessages drains the client connection until closure,
// answering pings and discarding everything else.
func readSpectatorMessages(ctx context.Context, c *websocket.Conn, sessionID uuid.UUID, logger *logrus.Logger) {
	for {
		msgType, data, err := c.Read(ctx)
		if err != nil {
			status := websocket.CloseStatus(err)
			if status == websocket.StatusNormalClosure || status == websocket.StatusGoingAway {
				logger.Infof("spectator WebSocket closed normally for session %s", sessionID)
			} else if strings.Contains(err.Error(), "context canceled") {
				logger.Infof("spectator WebSocket context canceled for session %s", sessionID)
			} else {
				logger.Warnf("error reading from spectator WebSocket for session %s: %v", sessionID, err)
			}
			return
		}
		if msgType != websocket.MessageText {
			continue
		}

		var msg struct {
			Type string `json:"type"`
		}
		if err := json.Unmarshal(data, &msg); err != nil {
			continue
		}
		if msg.Type == "ping" {
			writeCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
			if err := c.Write(writeCtx, websocket.MessageText, []byte(`{"type":"pong"}`)); err != nil {
				logger.Warnf("failed to write pong to spectator of session %s: %v", sessionID, err)
			}
			cancel()
		}
	}
}
