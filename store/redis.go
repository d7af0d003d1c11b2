package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/onnwee/chatgov/governance"
)

// Redis stores each snapshot as a JSON string under prefix+saveID.
type Redis struct {
	client *redis.Client
	prefix string
}

func NewRedis(client *redis.Client, prefix string) *Redis {
	return &Redis{client: client, prefix: prefix}
}

func (r *Redis) key(saveID string) string { return r.prefix + saveID }

func (r *Redis) Load(ctx context.Context, saveID string) (governance.Snapshot, bool, error) {
	if saveID == "" {
		return governance.Snapshot{}, false, ErrEmptySaveID
	}
	b, err := r.client.Get(ctx, r.key(saveID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return governance.Snapshot{}, false, nil
	}
	if err != nil {
		return governance.Snapshot{}, false, fmt.Errorf("redis get %s: %w", r.key(saveID), err)
	}
	s, err := decode(b)
	if err != nil {
		return governance.Snapshot{}, false, err
	}
	return s, true, nil
}

func (r *Redis) Save(ctx context.Context, saveID string, s governance.Snapshot) error {
	if saveID == "" {
		return ErrEmptySaveID
	}
	b, err := encode(s)
	if err != nil {
		return err
	}
	if err := r.client.Set(ctx, r.key(saveID), b, 0).Err(); err != nil {
		return fmt.Errorf("redis set %s: %w", r.key(saveID), err)
	}
	return nil
}

func (r *Redis) Ping(ctx context.Context) error { return r.client.Ping(ctx).Err() }

func (r *Redis) Close() error { return r.client.Close() }
