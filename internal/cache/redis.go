package cache

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/memoryfabric/agentic-memory/internal/config"
	"github.com/memoryfabric/agentic-memory/internal/errs"
)

// Redis is a Redis-backed Cache, grounded on the teacher's
// internal/skills/redis_cache.go and internal/workspaces/redis_cache.go
// (redis.NewClient construction, redis.Nil miss handling, Set with a TTL).
type Redis struct {
	client redis.UniversalClient
}

// NewRedis builds a Redis-backed cache from config and pings it.
func NewRedis(ctx context.Context, cfg config.CacheConfig) (*Redis, error) {
	const op = "cache.NewRedis"
	client := redis.NewClient(&redis.Options{Addr: cfg.Addr})
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, errs.Unavailablef(op, "redis ping: %w", err)
	}
	return &Redis{client: client}, nil
}

func (r *Redis) Get(ctx context.Context, key string) (string, bool, error) {
	const op = "cache.Redis.Get"
	val, err := r.client.Get(ctx, key).Result()
	if err == redis.Nil {
		return "", false, nil
	}
	if err != nil {
		return "", false, errs.Unavailablef(op, "redis get: %w", err)
	}
	return val, true, nil
}

func (r *Redis) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	if err := r.client.Set(ctx, key, value, ttl).Err(); err != nil {
		return errs.Unavailablef("cache.Redis.Set", "redis set: %w", err)
	}
	return nil
}

func (r *Redis) Delete(ctx context.Context, key string) error {
	if err := r.client.Del(ctx, key).Err(); err != nil {
		return errs.Unavailablef("cache.Redis.Delete", "redis del: %w", err)
	}
	return nil
}

func (r *Redis) Increment(ctx context.Context, key string) (int64, error) {
	n, err := r.client.Incr(ctx, key).Result()
	if err != nil {
		return 0, errs.Unavailablef("cache.Redis.Increment", "redis incr: %w", err)
	}
	return n, nil
}

// GetTTL reports a key's remaining TTL. Per the Redis TTL command, a
// duration of exactly -2ns means the key does not exist; -1ns means it
// exists with no expiry (reported as zero TTL, present=true).
func (r *Redis) GetTTL(ctx context.Context, key string) (time.Duration, bool, error) {
	const op = "cache.Redis.GetTTL"
	ttl, err := r.client.TTL(ctx, key).Result()
	if err != nil {
		return 0, false, errs.Unavailablef(op, "redis ttl: %w", err)
	}
	switch {
	case ttl == -2*time.Nanosecond:
		return 0, false, nil
	case ttl == -1*time.Nanosecond:
		return 0, true, nil
	default:
		return ttl, true, nil
	}
}

// Close closes the underlying Redis client.
func (r *Redis) Close() error { return r.client.Close() }

var _ Cache = (*Redis)(nil)
