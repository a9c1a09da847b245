package cache

import (
	"context"
	"testing"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/peoplesagent/pagent/internal/engine"
)

// unreachableClient returns a client dialed at a port nothing listens on, so
// every command fails immediately with a connection error.
func unreachableClient(t *testing.T) *redis.Client {
	t.Helper()
	client := redis.NewClient(&redis.Options{
		Addr:        "127.0.0.1:1",
		DialTimeout: 100 * time.Millisecond,
		MaxRetries:  -1,
	})
	t.Cleanup(func() { client.Close() })
	return client
}

func TestRedisCache_RequiresClient(t *testing.T) {
	t.Parallel()

	if _, err := NewRedisCache(nil, time.Hour); err == nil {
		t.Fatal("NewRedisCache(nil) err = nil, want error")
	}
}

func TestRedisCache_DefaultTTL(t *testing.T) {
	t.Parallel()

	c, err := NewRedisCache(unreachableClient(t), 0)
	if err != nil {
		t.Fatalf("NewRedisCache: %v", err)
	}
	if c.ttl != DefaultTTL {
		t.Errorf("ttl = %v, want %v", c.ttl, DefaultTTL)
	}
}

func TestRedisCache_FailsOpen(t *testing.T) {
	t.Parallel()

	c, err := NewRedisCache(unreachableClient(t), time.Hour)
	if err != nil {
		t.Fatalf("NewRedisCache: %v", err)
	}
	ctx := context.Background()

	// A write to an unreachable store must return without surfacing an
	// error, and a read must degrade to a miss.
	c.Set(ctx, "what is the pension age?", engine.QueryResult{Answer: "67"})

	result, ok := c.Get(ctx, "what is the pension age?")
	if ok {
		t.Fatal("Get reported a hit, want miss on store failure")
	}
	if result.Answer != "" {
		t.Errorf("miss result.Answer = %q, want empty", result.Answer)
	}
}
