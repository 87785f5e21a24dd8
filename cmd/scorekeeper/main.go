// cmd/scorekeeper/main.go is an asynchronous worker that pops finalized
// session results from a Redis queue and persists them to PostgreSQL:
// leaderboard rows for completed authenticated runs, play counts for every
// record.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	_ "github.com/joho/godotenv/autoload"
	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"

	"pairmatch-service/internal/cache"
	"pairmatch-service/internal/database"
)

// ScorekeeperService encapsulates the Redis + DB logic for draining the
// results queue in batches.
type ScorekeeperService struct {
	redisClient *redis.Client
	queueName   string
	batchSize   int
	flushDelay  time.Duration

	batchMu  sync.Mutex
	batch    []cache.SessionResultRecord
	ctx      context.Context
	cancelFn context.CancelFunc
}

// NewScorekeeperService constructs a ScorekeeperService from environment
// variables or defaults.
func NewScorekeeperService() *ScorekeeperService {
	batchSize := cache.GetEnvInt("SCOREKEEPER_BATCH_SIZE", 20)
	flushMs := cache.GetEnvInt("SCOREKEEPER_FLUSH_MS", 500)

	rdb := redis.NewClient(&redis.Options{
		Addr: cache.GetEnv("REDIS_ADDR", "localhost:6379"),
		DB:   cache.GetEnvInt("REDIS_DB", 0),
	})

	ctx, cancel := context.WithCancel(context.Background())
	return &ScorekeeperService{
		redisClient: rdb,
		queueName:   cache.GetEnv("RESULTS_QUEUE_NAME", cache.DefaultQueueName),
		batchSize:   batchSize,
		flushDelay:  time.Duration(flushMs) * time.Millisecond,
		batch:       make([]cache.SessionResultRecord, 0, batchSize),
		ctx:         ctx,
		cancelFn:    cancel,
	}
}

// Run connects to the database and drains the queue until Stop.
func (sk *ScorekeeperService) Run() {
	database.ConnectDB()

	go sk.readRedisLoop()

	log.Info("pairmatch-scorekeeper service started.")
	<-sk.ctx.Done()
	sk.flushBatchToDB()
	log.Info("pairmatch-scorekeeper shutting down.")
}

// readRedisLoop continuously uses BLPop to retrieve result records from the
// Redis queue, flushing the accumulated batch on a timer.
func (sk *ScorekeeperService) readRedisLoop() {
	ticker := time.NewTicker(sk.flushDelay)
	defer ticker.Stop()

	for {
		select {
		case <-sk.ctx.Done():
			return

		case <-ticker.C:
			sk.flushBatchToDB()

		default:
			// BLPop with a short timeout so context cancellation is handled.
			res, err := sk.redisClient.BLPop(sk.ctx, 3*time.Second, sk.queueName).Result()
			if err != nil && !errors.Is(err, redis.Nil) {
				if sk.ctx.Err() != nil {
					return
				}
				log.Errorf("BLPop: %v", err)
				continue
			}
			if len(res) < 2 {
				continue
			}

			// res[0] is the queue name and res[1] the payload.
			var record cache.SessionResultRecord
			if err := json.Unmarshal([]byte(res[1]), &record); err != nil {
				log.Warnf("invalid session result record: %v", err)
				continue
			}
			sk.appendToBatch(record)
		}
	}
}

// appendToBatch adds a record to the in-memory batch and flushes if the
// threshold is reached.
func (sk *ScorekeeperService) appendToBatch(record cache.SessionResultRecord) {
	sk.batchMu.Lock()
	defer sk.batchMu.Unlock()

	sk.batch = append(sk.batch, record)
	if len(sk.batch) >= sk.batchSize {
		sk.flushBatchLocked()
	}
}

func (sk *ScorekeeperService) flushBatchToDB() {
	sk.batchMu.Lock()
	defer sk.batchMu.Unlock()
	sk.flushBatchLocked()
}

// flushBatchLocked persists the current batch in a single transaction.
// Caller holds batchMu.
func (sk *ScorekeeperService) flushBatchLocked() {
	if len(sk.batch) == 0 {
		return
	}
	batchCopy := make([]cache.SessionResultRecord, len(sk.batch))
	copy(batchCopy, sk.batch)
	sk.batch = sk.batch[:0]

	ctx := context.Background()
	err := pgx.BeginTxFunc(ctx, database.DB, pgx.TxOptions{}, func(tx pgx.Tx) error {
		for _, rec := range batchCopy {
			if err := persistResultTx(ctx, tx, rec); err != nil {
				return fmt.Errorf("persistResultTx: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		log.Errorf("flush batch: %v", err)
	} else {
		log.Infof("Flushed %d session results to DB.", len(batchCopy))
	}
}

// persistResultTx counts the play and, for completed runs with a known user,
// inserts the leaderboard row. Abandoned or anonymous runs still count as
// plays but never rank.
func persistResultTx(ctx context.Context, tx pgx.Tx, rec cache.SessionResultRecord) error {
	playCountQ := `UPDATE games SET play_count = play_count + 1 WHERE id = $1`
	if _, err := tx.Exec(ctx, playCountQ, rec.GameID); err != nil {
		return err
	}

	if !rec.Completed || rec.UserID == uuid.Nil {
		return nil
	}

	scoreID, err := uuid.NewRandom()
	if err != nil {
		return err
	}
	scoreQ := `
		INSERT INTO game_scores (id, game_id, user_id, score, max_combo, time_taken, matched_pairs, total_pairs)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`
	_, err = tx.Exec(ctx, scoreQ,
		scoreID, rec.GameID, rec.UserID,
		rec.Score, rec.MaxCombo, rec.TimeTakenSec,
		rec.MatchedPairs, rec.TotalPairs,
	)
	return err
}

// Stop gracefully stops the scorekeeper service.
func (sk *ScorekeeperService) Stop() {
	sk.cancelFn()
}

func main() {
	sk := NewScorekeeperService()
	go sk.Run()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	<-sigChan
	sk.Stop()
	log.Info("Scorekeeper shutdown complete.")
}
