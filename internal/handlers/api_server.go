// internal/handlers/api_server.go
package handlers

import (
	"encoding/json"
	"net/http"

	log "github.com/sirupsen/logrus"

	"pairmatch-service/internal/metrics"
	"pairmatch-service/internal/session"
)

// Server bundles the shared state the play handlers need: the live session
// store, the spectator hub, and the metrics instruments.
type Server struct {
	Logger     *log.Logger
	Store      *session.Store
	Spectators *SpectatorHub
	Metrics    *metrics.Metrics
}

func NewServer(logger *log.Logger, store *session.Store, m *metrics.Metrics) *Server {
	return &Server{
		Logger:     logger,
		Store:      store,
		Spectators: NewSpectatorHub(),
		Metrics:    m,
	}
}

// writeJSON serializes v with the proper content type. Encoding failures
// after the header is written can only be logged.
func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Warnf("failed to encode response: %v", err)
	}
}

// writeError sends the error payload shape the web client expects.
func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
