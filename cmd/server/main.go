// cmd/server/main.go
package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"time"

	"github.com/go-co-op/gocron/v2"
	_ "github.com/joho/godotenv/autoload"
	"github.com/sirupsen/logrus"

	"pairmatch-service/internal/auth"
	"pairmatch-service/internal/cache"
	"pairmatch-service/internal/database"
	"pairmatch-service/internal/handlers"
	"pairmatch-service/internal/metrics"
	"pairmatch-service/internal/middleware"
	"pairmatch-service/internal/session"
)

func main() {
	auth.Init()
	database.ConnectDB()

	logger := logrus.New()
	logger.SetLevel(logrus.DebugLevel)

	if err := cache.ConnectRedis(); err != nil {
		// Sessions still play without Redis; results and play counts are
		// simply not persisted.
		logger.Warnf("redis unavailable, session results will not be persisted: %v", err)
	}

	m := metrics.New()
	store := session.NewStore()
	srv := handlers.NewServer(logger, store, m)

	store.OnSessionClosed = func(s *session.Session, completed bool) {
		if completed {
			m.SessionsFinished.Inc()
		} else {
			m.SessionsAbandoned.Inc()
		}
		srv.Spectators.Drop(s.ID)

		if cache.Rdb == nil {
			return
		}
		record := sessionResultRecord(s, completed)
		ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		if err := cache.PublishSessionResult(ctx, record); err != nil {
			logger.Warnf("failed to queue result for session %s: %v", s.ID, err)
		}
	}

	// Reclaim sessions whose players walked away.
	idleTimeout := time.Duration(cache.GetEnvInt("SESSION_IDLE_TIMEOUT_SEC", 600)) * time.Second
	sched, err := gocron.NewScheduler()
	if err != nil {
		log.Fatalf("failed to create scheduler: %v", err)
	}
	_, err = sched.NewJob(
		gocron.DurationJob(1*time.Minute),
		gocron.NewTask(func() {
			if n := store.Sweep(idleTimeout); n > 0 {
				logger.Infof("idle sweep reclaimed %d sessions", n)
			}
		}),
	)
	if err != nil {
		log.Fatalf("failed to schedule idle sweep: %v", err)
	}
	sched.Start()
	defer func() { _ = sched.Shutdown() }()

	logged := middleware.LogMiddleware(logger, m.ObserveRequest)

	mux := http.NewServeMux()

	// user endpoints
	mux.HandleFunc("/user/create", handlers.CreateUserHandler)
	mux.HandleFunc("/user/login", handlers.LoginHandler)
	mux.HandleFunc("/user/claim", handlers.ClaimEphemeralHandler)

	// gameplay endpoints
	mux.Handle("/game/game-type/", logged(handlers.PlayHandler(srv)))
	mux.Handle("/game/play-count", logged(handlers.PlayCountHandler(srv)))
	mux.Handle("/game/score/leaderboard/", logged(handlers.LeaderboardHandler(srv)))

	// session spectator ws
	mux.Handle("/game/ws/", logged(handlers.SessionWSHandler(logger, srv)))

	// prometheus
	mux.Handle("/metrics", m.Handler())

	addr := ":8080"
	if port := os.Getenv("PORT"); port != "" {
		addr = ":" + port
	}
	logger.Infof("Running on %s", addr)
	if err := http.ListenAndServe(addr, mux); err != nil {
		log.Fatalf("server exited: %v", err)
	}
}

// sessionResultRecord freezes a closing session into the queue message the
// scorekeeper consumes.
func sessionResultRecord(s *session.Session, completed bool) cache.SessionResultRecord {
	record := cache.SessionResultRecord{
		SessionID: s.ID,
		GameID:    s.GameID,
		UserID:    s.UserID,
		Completed: completed,
		Timestamp: time.Now().UnixMilli(),
	}
	if completed {
		// Finish is memoized; the close signal only fires after the
		// session reached FINISHED, so this never recomputes.
		if res, err := s.Finish(); err == nil {
			record.Score = res.Score
			record.MaxCombo = res.MaxCombo
			record.TimeTakenSec = int(res.DurationMs / 1000)
			record.MatchedPairs = res.MatchedPairs
			record.TotalPairs = res.TotalPairs
		}
	} else {
		view := s.View()
		record.MatchedPairs = view.MatchedCount
		record.TotalPairs = len(view.Board) / 2
	}
	return record
}
