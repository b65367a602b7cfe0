package counter

import (
	"context"
	_ "embed"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

//go:embed window.lua
var windowScript string

// keyPrefix namespaces all counter keys in the shared Redis instance.
const keyPrefix = "botgate:rl:"

// RedisStore is a Redis-backed sliding-window counter. The window logic runs
// as a Lua script inside Redis, so increments are atomic across any number of
// application instances. Keys carry a TTL equal to the window length, so
// stale state expires without a sweeper.
type RedisStore struct {
	client *redis.Client
	script *redis.Script
}

// NewRedisStore creates a sliding-window store on the given client and
// verifies connectivity with a ping.
func NewRedisStore(ctx context.Context, client *redis.Client) (*RedisStore, error) {
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}
	return &RedisStore{
		client: client,
		script: redis.NewScript(windowScript),
	}, nil
}

// Increment runs the sliding-window script for key. The caller is expected to
// bound ctx with a timeout; on error the rate limiter fails open.
func (s *RedisStore) Increment(ctx context.Context, key string, window time.Duration, limit int) (Result, error) {
	now := time.Now()

	raw, err := s.script.Run(ctx, s.client,
		[]string{keyPrefix + key},
		now.UnixMilli(),
		window.Milliseconds(),
		limit,
		uuid.NewString(),
	).Result()
	if err != nil {
		return Result{}, fmt.Errorf("sliding window script: %w", err)
	}

	values, ok := raw.([]interface{})
	if !ok || len(values) != 3 {
		return Result{}, fmt.Errorf("sliding window script: unexpected reply %T", raw)
	}

	allowed, _ := values[0].(int64)
	count, _ := values[1].(int64)
	oldest, _ := values[2].(int64)

	remaining := limit - int(count)
	if remaining < 0 {
		remaining = 0
	}

	return Result{
		Allowed:   allowed == 1,
		Count:     count,
		Remaining: remaining,
		ResetAt:   time.UnixMilli(oldest).Add(window),
	}, nil
}

// Close closes the underlying Redis client.
func (s *RedisStore) Close() error {
	return s.client.Close()
}
