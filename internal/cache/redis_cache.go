package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const redisKeyPrefix = "tile:"

// RedisCache implements a Store backed by Redis, for deployments where
// several instances should share one tile cache. Entries expire after the
// configured TTL (zero means no expiry).
type RedisCache struct {
	rdb *redis.Client
	ttl time.Duration
}

func NewRedisCache(addr, password string, db int, ttl time.Duration) (*RedisCache, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis at %s: %w", addr, err)
	}

	return &RedisCache{rdb: rdb, ttl: ttl}, nil
}

// NewRedisCacheFromClient wraps an existing client, used by tests.
func NewRedisCacheFromClient(rdb *redis.Client, ttl time.Duration) *RedisCache {
	return &RedisCache{rdb: rdb, ttl: ttl}
}

func (c *RedisCache) Get(ctx context.Context, key string) ([]byte, bool, error) {
	data, err := c.rdb.Get(ctx, redisKeyPrefix+key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("cache read failed: %w", err)
	}

	return data, true, nil
}

func (c *RedisCache) Put(ctx context.Context, key string, value []byte) error {
	if err := c.rdb.Set(ctx, redisKeyPrefix+key, value, c.ttl).Err(); err != nil {
		return fmt.Errorf("cache write failed: %w", err)
	}
	return nil
}

func (c *RedisCache) Clear(ctx context.Context) error {
	iter := c.rdb.Scan(ctx, 0, redisKeyPrefix+"*", 0).Iterator()
	for iter.Next(ctx) {
		if err := c.rdb.Del(ctx, iter.Val()).Err(); err != nil {
			return fmt.Errorf("cache clear failed: %w", err)
		}
	}
	if err := iter.Err(); err != nil {
		return fmt.Errorf("cache clear failed: %w", err)
	}
	return nil
}

func (c *RedisCache) Close() error {
	return c.rdb.Close()
}
