// Package store persists governance snapshots per save id. Backends are
// interchangeable: an in-process map, a Postgres table or a Redis key per save.
package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/onnwee/chatgov/config"
	"github.com/onnwee/chatgov/db"
	"github.com/onnwee/chatgov/governance"
)

// SnapshotStore loads and saves the governance ledger of one save.
type SnapshotStore interface {
	// Load returns the stored snapshot and whether one existed.
	Load(ctx context.Context, saveID string) (governance.Snapshot, bool, error)
	Save(ctx context.Context, saveID string, s governance.Snapshot) error
	Ping(ctx context.Context) error
	Close() error
}

// ErrEmptySaveID is returned when a save id is blank.
var ErrEmptySaveID = errors.New("store: empty save id")

// New builds the backend selected by cfg.StoreBackend. A durable backend that
// cannot be reached is an error rather than a silent switch to memory: the
// ledger must survive restarts for the life of the save.
func New(ctx context.Context, cfg *config.Config) (SnapshotStore, error) {
	switch cfg.StoreBackend {
	case config.BackendPostgres:
		dbx, err := db.Connect(ctx, cfg.DBDsn)
		if err != nil {
			return nil, fmt.Errorf("postgres store: %w", err)
		}
		if err := db.Setup(dbx); err != nil {
			_ = dbx.Close()
			return nil, fmt.Errorf("postgres store schema: %w", err)
		}
		return NewPostgres(dbx), nil
	case config.BackendRedis:
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
		defer cancel()
		if err := client.Ping(pingCtx).Err(); err != nil {
			_ = client.Close()
			return nil, fmt.Errorf("redis store %s: %w", cfg.RedisAddr, err)
		}
		return NewRedis(client, cfg.RedisKeyPrefix), nil
	case config.BackendMemory, "":
		slog.Warn("using in-memory snapshot store; usage is lost on restart", slog.String("component", "store"))
		return NewMemory(), nil
	default:
		return nil, fmt.Errorf("unknown store backend %q", cfg.StoreBackend)
	}
}

func encode(s governance.Snapshot) ([]byte, error) {
	b, err := json.Marshal(s)
	if err != nil {
		return nil, fmt.Errorf("encode snapshot: %w", err)
	}
	return b, nil
}

func decode(b []byte) (governance.Snapshot, error) {
	var s governance.Snapshot
	if err := json.Unmarshal(b, &s); err != nil {
		return governance.Snapshot{}, fmt.Errorf("decode snapshot: %w", err)
	}
	return s, nil
}
