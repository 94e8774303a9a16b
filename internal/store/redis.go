package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
)

const REDIS_KEY_KV_PREFIX = "dicehouse:kv:"

// Redis stores every key as a plain string value under REDIS_KEY_KV_PREFIX.
// The client is owned by the caller (normally cache.Service) and is not
// closed here.
type Redis struct {
	client *redis.Client
}

func NewRedis(client *redis.Client) *Redis {
	return &Redis{client: client}
}

func (r *Redis) Get(ctx context.Context, key string) ([]byte, error) {
	val, err := r.client.Get(ctx, REDIS_KEY_KV_PREFIX+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("redis get %s: %w", key, err)
	}
	return val, nil
}

func (r *Redis) Set(ctx context.Context, key string, value []byte) error {
	if err := r.client.Set(ctx, REDIS_KEY_KV_PREFIX+key, value, 0).Err(); err != nil {
		return fmt.Errorf("redis set %s: %w", key, err)
	}
	return nil
}

func (r *Redis) Delete(ctx context.Context, key string) error {
	if err := r.client.Del(ctx, REDIS_KEY_KV_PREFIX+key).Err(); err != nil {
		return fmt.Errorf("redis del %s: %w", key, err)
	}
	return nil
}

// Apply runs the batch inside MULTI/EXEC so other clients see all of it or
// none of it.
func (r *Redis) Apply(ctx context.Context, ops []Op) error {
	_, err := r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		for _, op := range ops {
			switch op.Kind {
			case OpSet:
				pipe.Set(ctx, REDIS_KEY_KV_PREFIX+op.Key, op.Value, 0)
			case OpDelete:
				pipe.Del(ctx, REDIS_KEY_KV_PREFIX+op.Key)
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("redis apply %d ops: %w", len(ops), err)
	}
	return nil
}

func (r *Redis) Close() error { return nil }
