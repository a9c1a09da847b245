package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/peoplesagent/pagent/internal/engine"
	"github.com/peoplesagent/pagent/internal/logging"
)

// keyPrefix namespaces cache keys in a shared Redis instance.
const keyPrefix = "pagent:cache:"

// RedisCache stores results as JSON values with a Redis-side TTL, so expiry
// needs no janitor and multiple service instances share one cache. Store
// failures are logged and degrade to a miss on Get and a no-op on Set.
type RedisCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisCache constructs a RedisCache with the given TTL. A non-positive
// ttl falls back to DefaultTTL.
func NewRedisCache(client *redis.Client, ttl time.Duration) (*RedisCache, error) {
	if client == nil {
		return nil, fmt.Errorf("cache: redis client is required")
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &RedisCache{client: client, ttl: ttl}, nil
}

// Get returns the result stored for query, if present and unexpired. Redis
// evicts expired keys itself, so a hit is always servable.
func (c *RedisCache) Get(ctx context.Context, query string) (engine.QueryResult, bool) {
	log := logging.FromContext(ctx)
	key := keyPrefix + Key(query)

	data, err := c.client.Get(ctx, key).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			log.Warn("cache store unavailable, treating as miss",
				slog.String("error", err.Error()))
		}
		return engine.QueryResult{}, false
	}

	var result engine.QueryResult
	if err := json.Unmarshal(data, &result); err != nil {
		log.Warn("cache entry undecodable, treating as miss",
			slog.String("key", key),
			slog.String("error", err.Error()))
		return engine.QueryResult{}, false
	}
	return result, true
}

// Set stores the result for query with the configured TTL, overwriting any
// existing entry.
func (c *RedisCache) Set(ctx context.Context, query string, result engine.QueryResult) {
	log := logging.FromContext(ctx)
	key := keyPrefix + Key(query)

	data, err := json.Marshal(result)
	if err != nil {
		log.Warn("cache entry unencodable, skipping write",
			slog.String("error", err.Error()))
		return
	}
	if err := c.client.Set(ctx, key, data, c.ttl).Err(); err != nil {
		log.Warn("cache store unavailable, skipping write",
			slog.String("error", err.Error()))
	}
}
