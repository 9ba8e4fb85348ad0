package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

const redisKeyPrefix = "classbot:session:"

// RedisBackend stores conversation states in Redis, letting several
// server instances share sessions. Each instance reads the state on every
// message; two messages for one session arriving at the same moment on
// different instances are not locked against each other. Expiry is left to
// Redis key TTLs.
type RedisBackend struct {
	rdb *redis.Client
}

// NewRedisBackend connects to the Redis server at url and pings it.
func NewRedisBackend(ctx context.Context, url string) (*RedisBackend, error) {
	opt, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis URL: %w", err)
	}
	rdb := redis.NewClient(opt)
	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	slog.Info("redis connected", "addr", opt.Addr, "db", opt.DB)
	return &RedisBackend{rdb: rdb}, nil
}

func redisKey(id string) string {
	return redisKeyPrefix + id
}

func (b *RedisBackend) LoadSession(ctx context.Context, id string) ([]byte, bool, error) {
	data, err := b.rdb.Get(ctx, redisKey(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return data, true, nil
}

func (b *RedisBackend) SaveSession(ctx context.Context, id string, state []byte, ttl time.Duration) error {
	return b.rdb.Set(ctx, redisKey(id), state, ttl).Err()
}

// Ping checks that Redis is reachable.
func (b *RedisBackend) Ping(ctx context.Context) error {
	return b.rdb.Ping(ctx).Err()
}

func (b *RedisBackend) Close() error {
	return b.rdb.Close()
}
