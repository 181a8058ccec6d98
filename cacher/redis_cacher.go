package cacher

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	lockTTL        = 30 * time.Second
	waitTimeout    = 30 * time.Second
	minWaitBackoff = 10 * time.Millisecond
	maxWaitBackoff = 500 * time.Millisecond
)

// releaseLockScript deletes the lock only while we still own it.
const releaseLockScript = `
if redis.call("get", KEYS[1]) == ARGV[1] then
	return redis.call("del", KEYS[1])
else
	return 0
end`

// ErrFetchAbandoned is returned when another process held the fetch lock but
// released it without populating the key.
var ErrFetchAbandoned = errors.New("fetch operation failed or cache not populated")

// redisCacher stores JSON-encoded values in Redis so several server
// processes can share one fetched value. A SETNX lock per key makes sure only
// one process fetches on a miss; the others poll until the value appears.
type redisCacher[T any] struct {
	client *redis.Client
	prefix string
}

// NewRedisCacher creates a Redis-backed Cacher. Keys are stored as
// prefix+key.
//
// Example:
//
//	client := redis.NewClient(&redis.Options{Addr: "localhost:6379"})
//	words := NewRedisCacher[[]string](client, "hangtheman:")
func NewRedisCacher[T any](client *redis.Client, prefix string) Cacher[T] {
	return &redisCacher[T]{
		client: client,
		prefix: prefix,
	}
}

// GetOrFetch implements Cacher.
func (c *redisCacher[T]) GetOrFetch(ctx context.Context, key string, ttl time.Duration, fetchFn FetchFunc[T]) (T, error) {
	var zero T
	key = c.prefix + key

	if v, ok, err := c.get(ctx, key); err != nil || ok {
		return v, err
	}

	lockKey := key + ":lock"
	lockValue := strconv.FormatInt(time.Now().UnixNano(), 10)
	acquired, err := c.client.SetNX(ctx, lockKey, lockValue, lockTTL).Result()
	if err != nil {
		return zero, fmt.Errorf("failed to acquire lock: %w", err)
	}

	if !acquired {
		return c.waitForValue(ctx, key, lockKey)
	}

	defer c.client.Eval(context.Background(), releaseLockScript, []string{lockKey}, lockValue)

	result, err := fetchFn(ctx)
	if err != nil {
		return zero, fmt.Errorf("fetch function failed: %w", err)
	}

	data, err := json.Marshal(result)
	if err != nil {
		return zero, fmt.Errorf("failed to marshal result: %w", err)
	}

	if err := c.client.Set(ctx, key, data, ttl).Err(); err != nil {
		return zero, fmt.Errorf("failed to cache result: %w", err)
	}

	return result, nil
}

// get returns the decoded value for key and whether it was present.
func (c *redisCacher[T]) get(ctx context.Context, key string) (T, bool, error) {
	var result T

	val, err := c.client.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return result, false, nil
	}
	if err != nil {
		return result, false, fmt.Errorf("redis get error: %w", err)
	}

	if err := json.Unmarshal([]byte(val), &result); err != nil {
		return result, false, fmt.Errorf("failed to unmarshal cached value: %w", err)
	}

	return result, true, nil
}

// waitForValue polls with exponential backoff until another process stores
// key, the lock disappears, or waitTimeout passes.
func (c *redisCacher[T]) waitForValue(ctx context.Context, key, lockKey string) (T, error) {
	var zero T

	backoff := minWaitBackoff
	deadline := time.Now().Add(waitTimeout)
	for time.Now().Before(deadline) {
		if v, ok, err := c.get(ctx, key); err != nil || ok {
			return v, err
		}

		exists, err := c.client.Exists(ctx, lockKey).Result()
		if err != nil {
			return zero, fmt.Errorf("failed to check lock existence: %w", err)
		}

		if exists == 0 {
			if v, ok, err := c.get(ctx, key); err != nil || ok {
				return v, err
			}

			return zero, ErrFetchAbandoned
		}

		select {
		case <-ctx.Done():
			return zero, ctx.Err()
		case <-time.After(backoff):
		}

		backoff = min(backoff*2, maxWaitBackoff)
	}

	return zero, errors.New("timeout waiting for cache")
}

// Delete implements Cacher.
func (c *redisCacher[T]) Delete(ctx context.Context, key string) error {
	if err := c.client.Del(ctx, c.prefix+key).Err(); err != nil {
		return fmt.Errorf("failed to delete key: %w", err)
	}

	return nil
}
