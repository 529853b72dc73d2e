package cache

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

// Cache wraps a Redis client. A Cache built on a nil client is disabled:
// reads miss and writes are dropped.
type Cache struct {
	rdb *redis.Client
}

func New(rdb *redis.Client) *Cache {
	return &Cache{rdb: rdb}
}

func (c *Cache) Enabled() bool {
	return c != nil && c.rdb != nil
}

// Client returns the underlying client, nil when disabled.
func (c *Cache) Client() *redis.Client {
	if !c.Enabled() {
		return nil
	}
	return c.rdb
}

// GetJSON decodes the value at key into dest and reports whether it existed.
func (c *Cache) GetJSON(ctx context.Context, key string, dest any) (bool, error) {
	if !c.Enabled() {
		return false, nil
	}
	val, err := c.rdb.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return false, nil
	} else if err != nil {
		return false, err
	}
	return true, json.Unmarshal(val, dest)
}

func (c *Cache) SetJSON(ctx context.Context, key string, value any, ttl time.Duration) error {
	if !c.Enabled() {
		return nil
	}
	b, err := json.Marshal(value)
	if err != nil {
		return err
	}
	return c.rdb.Set(ctx, key, b, ttl).Err()
}

func (c *Cache) Delete(ctx context.Context, keys ...string) error {
	if !c.Enabled() || len(keys) == 0 {
		return nil
	}
	return c.rdb.Del(ctx, keys...).Err()
}

// DeletePattern removes every key matching pattern using SCAN.
func (c *Cache) DeletePattern(ctx context.Context, pattern string) (int, error) {
	if !c.Enabled() {
		return 0, nil
	}
	deleted := 0
	iter := c.rdb.Scan(ctx, 0, pattern, 100).Iterator()
	for iter.Next(ctx) {
		if err := c.rdb.Del(ctx, iter.Val()).Err(); err != nil {
			return deleted, err
		}
		deleted++
	}
	return deleted, iter.Err()
}

// Hit increments the counter at key. The window starts on the first hit.
func (c *Cache) Hit(ctx context.Context, key string, window time.Duration) (int64, error) {
	if !c.Enabled() {
		return 0, nil
	}
	n, err := c.rdb.Incr(ctx, key).Result()
	if err != nil {
		return 0, err
	}
	if n == 1 {
		if err := c.rdb.Expire(ctx, key, window).Err(); err != nil {
			return n, err
		}
	}
	return n, nil
}

// Count returns the current value of a counter and its remaining TTL.
func (c *Cache) Count(ctx context.Context, key string) (int64, time.Duration, error) {
	if !c.Enabled() {
		return 0, 0, nil
	}
	pipe := c.rdb.Pipeline()
	get := pipe.Get(ctx, key)
	ttl := pipe.TTL(ctx, key)
	if _, err := pipe.Exec(ctx); err != nil && !errors.Is(err, redis.Nil) {
		return 0, 0, err
	}
	n, err := get.Int64()
	if errors.Is(err, redis.Nil) {
		return 0, 0, nil
	}
	return n, ttl.Val(), err
}

func (c *Cache) Reset(ctx context.Context, key string) error {
	return c.Delete(ctx, key)
}
