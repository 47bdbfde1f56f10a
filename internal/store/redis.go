package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
)

const redisKeyPrefix = "chorus:store:"

// Redis keeps each file as one hash, field per key.
type Redis struct{ rdb *redis.Client }

func NewRedis(rdb *redis.Client) *Redis { return &Redis{rdb: rdb} }

// OpenRedis parses a redis:// URL and checks the server is reachable.
func OpenRedis(ctx context.Context, url string) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	rdb := redis.NewClient(opts)
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return rdb, nil
}

func hashKey(file string) string { return redisKeyPrefix + file }

func (r *Redis) Get(ctx context.Context, file, key string) (json.RawMessage, error) {
	if err := validate(file, key, nil, false); err != nil {
		return nil, err
	}
	b, err := r.rdb.HGet(ctx, hashKey(file), key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get %s/%s: %w", file, key, err)
	}
	return json.RawMessage(b), nil
}

func (r *Redis) Set(ctx context.Context, file, key string, value json.RawMessage) error {
	if err := validate(file, key, value, true); err != nil {
		return err
	}
	if err := r.rdb.HSet(ctx, hashKey(file), key, []byte(value)).Err(); err != nil {
		return fmt.Errorf("set %s/%s: %w", file, key, err)
	}
	return nil
}
