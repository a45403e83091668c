// Discovery - hybrid media search, sync, and personalization service
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package kvcache wraps the Redis-backed cache used for search response
// caching and search intent caching. Entity-resolution results are cached
// in memory by internal/cache, not here.
package kvcache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/streamforge/discovery/internal/config"
	"github.com/streamforge/discovery/internal/logging"
	"github.com/streamforge/discovery/internal/metrics"
)

// Cache wraps a Redis client for JSON-valued keys with TTLs, pattern
// scanning, and atomic counters.
type Cache struct {
	client *redis.Client
}

// Open connects to Redis and verifies the connection with a ping.
func Open(cfg config.KVCacheConfig) (*Cache, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         cfg.Addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
		PoolSize:     10,
		MinIdleConns: 5,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis connection failed: %w", err)
	}

	logging.Info().Str("addr", cfg.Addr).Int("db", cfg.DB).Msg("connected to kv cache")
	return &Cache{client: client}, nil
}

// Close closes the underlying connection.
func (c *Cache) Close() error {
	return c.client.Close()
}

// HealthCheck verifies Redis is reachable.
func (c *Cache) HealthCheck(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

// Get retrieves and JSON-decodes a value into dest. It returns (false, nil)
// on a cache miss.
func (c *Cache) Get(ctx context.Context, cacheType, key string, dest any) (bool, error) {
	val, err := c.client.Get(ctx, key).Bytes()
	if err == redis.Nil {
		metrics.RecordKVCache(cacheType, false)
		return false, nil
	}
	if err != nil {
		metrics.RecordKVCache(cacheType, false)
		return false, fmt.Errorf("kv cache get %s: %w", key, err)
	}

	if err := json.Unmarshal(val, dest); err != nil {
		metrics.RecordKVCache(cacheType, false)
		return false, fmt.Errorf("kv cache unmarshal %s: %w", key, err)
	}

	metrics.RecordKVCache(cacheType, true)
	return true, nil
}

// Set JSON-encodes value and stores it with the given TTL.
func (c *Cache) Set(ctx context.Context, key string, value any, ttl time.Duration) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("kv cache marshal %s: %w", key, err)
	}
	if err := c.client.Set(ctx, key, data, ttl).Err(); err != nil {
		return fmt.Errorf("kv cache set %s: %w", key, err)
	}
	return nil
}

// Delete removes a single key.
func (c *Cache) Delete(ctx context.Context, key string) error {
	return c.client.Del(ctx, key).Err()
}

// DeleteByPattern deletes every key matching a glob pattern, scanning in
// batches rather than KEYS to avoid blocking the Redis event loop.
func (c *Cache) DeleteByPattern(ctx context.Context, pattern string) (int64, error) {
	var deleted int64
	var cursor uint64
	for {
		keys, next, err := c.client.Scan(ctx, cursor, pattern, 200).Result()
		if err != nil {
			return deleted, fmt.Errorf("kv cache scan %s: %w", pattern, err)
		}
		if len(keys) > 0 {
			n, err := c.client.Del(ctx, keys...).Result()
			if err != nil {
				return deleted, fmt.Errorf("kv cache delete batch for %s: %w", pattern, err)
			}
			deleted += n
		}
		cursor = next
		if cursor == 0 {
			break
		}
	}
	return deleted, nil
}

// ListKeysByPattern returns every key matching a glob pattern.
func (c *Cache) ListKeysByPattern(ctx context.Context, pattern string) ([]string, error) {
	var out []string
	var cursor uint64
	for {
		keys, next, err := c.client.Scan(ctx, cursor, pattern, 200).Result()
		if err != nil {
			return nil, fmt.Errorf("kv cache scan %s: %w", pattern, err)
		}
		out = append(out, keys...)
		cursor = next
		if cursor == 0 {
			break
		}
	}
	return out, nil
}

// IncrementWithTTL atomically increments a counter key and (re)applies a TTL
// in the same round trip, used for rate-limit-style counters such as
// per-user search-request budgets.
func (c *Cache) IncrementWithTTL(ctx context.Context, key string, ttl time.Duration) (int64, error) {
	pipe := c.client.TxPipeline()
	incr := pipe.Incr(ctx, key)
	pipe.Expire(ctx, key, ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		return 0, fmt.Errorf("kv cache increment %s: %w", key, err)
	}
	return incr.Val(), nil
}

// Info reports a snapshot of key Redis server statistics, exposed on
// operational diagnostics endpoints.
func (c *Cache) Info(ctx context.Context) (string, error) {
	return c.client.Info(ctx).Result()
}
