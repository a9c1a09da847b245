package commands

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"time"

	"github.com/cloudwego/eino/components/model"
	"github.com/go-redis/redis/v8"

	"github.com/peoplesagent/pagent/internal/cache"
	"github.com/peoplesagent/pagent/internal/embedder"
	"github.com/peoplesagent/pagent/internal/engine"
	"github.com/peoplesagent/pagent/internal/limiter"
	"github.com/peoplesagent/pagent/internal/rag"
	"github.com/peoplesagent/pagent/internal/server"
)

// buildRetriever wires the embedder and the Qdrant store into a Retriever
// from environment configuration. The returned close function releases the
// Qdrant connection; the store is also returned for the updates feed and
// readiness probing.
func buildRetriever(log *slog.Logger) (rag.Retriever, *rag.QdrantStore, func(), error) {
	if err := embedder.Validate(log); err != nil {
		return nil, nil, nil, err
	}

	emb, err := embedder.NewFromEnv()
	if err != nil {
		return nil, nil, nil, fmt.Errorf("failed to initialise embedder: %w", err)
	}

	store, err := rag.NewQdrantStore(&rag.QdrantConfig{
		Host:       os.Getenv("QDRANT_HOST"),
		Port:       envInt("QDRANT_PORT", 0),
		Collection: os.Getenv("QDRANT_COLLECTION"),
		APIKey:     os.Getenv("QDRANT_API_KEY"),
		UseTLS:     os.Getenv("QDRANT_TLS") == "true",
	})
	if err != nil {
		return nil, nil, nil, fmt.Errorf("failed to connect to qdrant: %w", err)
	}

	retriever, err := rag.NewRetriever(emb, store, envInt("RAG_TOP_K", 0))
	if err != nil {
		_ = store.Close()
		return nil, nil, nil, fmt.Errorf("failed to build retriever: %w", err)
	}

	closeFn := func() { _ = store.Close() }
	return retriever, store, closeFn, nil
}

// buildRedis returns a Redis client when REDIS_ADDR is configured, or nil to
// signal that the in-memory limiter and cache should be used instead.
func buildRedis(log *slog.Logger) *redis.Client {
	addr := os.Getenv("REDIS_ADDR")
	if addr == "" {
		return nil
	}

	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: os.Getenv("REDIS_PASSWORD"),
		DB:       envInt("REDIS_DB", 0),
	})
	log.Info("redis configured", slog.String("addr", addr))
	return client
}

// buildLimiterAndCache constructs the per-caller limiter and the response
// cache, Redis-backed when a client is provided and in-process otherwise.
// The returned stop function shuts down any background goroutines.
func buildLimiterAndCache(client *redis.Client) (limiter.Limiter, engine.ResultCache, func(), error) {
	maxReq := envInt("RATE_LIMIT_MAX", 0)
	window := time.Duration(envInt("RATE_LIMIT_WINDOW", 0)) * time.Second
	ttl := time.Duration(envInt("CACHE_TTL", 0)) * time.Second

	if client != nil {
		lim, err := limiter.NewRedisLimiter(client, maxReq, window)
		if err != nil {
			return nil, nil, nil, fmt.Errorf("failed to build limiter: %w", err)
		}
		c, err := cache.NewRedisCache(client, ttl)
		if err != nil {
			return nil, nil, nil, fmt.Errorf("failed to build cache: %w", err)
		}
		return lim, c, func() {}, nil
	}

	lim, stopLim := limiter.NewMemoryLimiter(maxReq, window)
	c, stopCache := cache.NewMemoryCache(ttl)
	stop := func() {
		stopLim()
		stopCache()
	}
	return lim, c, stop, nil
}

// buildPingers assembles the readiness probes for the configured backends.
// Redis is optional; the LLM probe is included only when PING_LLM=true since
// it consumes tokens on every readiness check.
func buildPingers(chatModel model.BaseChatModel, providerName string, store *rag.QdrantStore, client *redis.Client) []server.Pinger {
	pingers := []server.Pinger{
		server.NewQdrantPinger(store.Client()),
	}
	if client != nil {
		pingers = append(pingers, server.NewRedisPinger(client))
	}
	if os.Getenv("PING_LLM") == "true" {
		pingers = append(pingers, server.NewLLMPinger(chatModel, providerName))
	}
	return pingers
}

// envInt parses an integer environment variable, returning fallback when the
// variable is unset or malformed.
func envInt(key string, fallback int) int {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return n
}
