// internal/cache/redis.go
package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// Rdb is the global Redis client. Connect it once at application startup.
var Rdb *redis.Client

// DefaultQueueName is the Redis list (queue) name for finalized session results.
var DefaultQueueName = "pairmatch_results"

// SessionResultRecord is the message handed to the scorekeeper worker when a
// session closes. Completed sessions with an authenticated user become
// leaderboard rows; every record counts one play.
type SessionResultRecord struct {
	SessionID    uuid.UUID `json:"session_id"`
	GameID       uuid.UUID `json:"game_id"`
	UserID       uuid.UUID `json:"user_id"` // uuid.Nil for anonymous play
	Completed    bool      `json:"completed"`
	Score        int       `json:"score"`
	MaxCombo     int       `json:"max_combo"`
	TimeTakenSec int       `json:"time_taken"`
	MatchedPairs int       `json:"matched_pairs"`
	TotalPairs   int       `json:"total_pairs"`
	Timestamp    int64     `json:"timestamp"`
}

// ConnectRedis initializes the global Redis client with environment variables:
//   - REDIS_ADDR (default "localhost:6379")
//   - REDIS_DB (optional, default 0)
func ConnectRedis() error {
	addr := GetEnv("REDIS_ADDR", "localhost:6379")
	dbIdx := GetEnvInt("REDIS_DB", 0)

	Rdb = redis.NewClient(&redis.Options{
		Addr: addr,
		DB:   dbIdx,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := Rdb.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("failed to connect to Redis at %s: %w", addr, err)
	}
	return nil
}

// PublishSessionResult serializes the record to JSON and pushes it onto the
// results queue for the scorekeeper. Only a quick network send; the caller's
// session lifecycle never waits on persistence.
func PublishSessionResult(ctx context.Context, record SessionResultRecord) error {
	data, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("failed to marshal SessionResultRecord: %w", err)
	}

	queueName := GetEnv("RESULTS_QUEUE_NAME", DefaultQueueName)
	if err := Rdb.RPush(ctx, queueName, data).Err(); err != nil {
		return fmt.Errorf("failed to RPush to Redis list '%s': %w", queueName, err)
	}
	return nil
}

// GetEnv is a helper to read an environment variable or return a default value.
func GetEnv(key, def string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return def
}

// GetEnvInt is a helper to parse an environment variable as integer, else a default value.
func GetEnvInt(key string, def int) int {
	s := os.Getenv(key)
	if s == "" {
		return def
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return def
	}
	return v
}
