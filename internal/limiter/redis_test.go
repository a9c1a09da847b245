package limiter

import (
	"context"
	"testing"
	"time"

	"github.com/go-redis/redis/v8"
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

func TestRedisLimiter_RequiresClient(t *testing.T) {
	t.Parallel()

	if _, err := NewRedisLimiter(nil, 10, time.Minute); err == nil {
		t.Fatal("NewRedisLimiter(nil) err = nil, want error")
	}
}

func TestRedisLimiter_Defaults(t *testing.T) {
	t.Parallel()

	l, err := NewRedisLimiter(unreachableClient(t), 0, 0)
	if err != nil {
		t.Fatalf("NewRedisLimiter: %v", err)
	}
	if l.max != DefaultMaxRequests {
		t.Errorf("max = %d, want %d", l.max, DefaultMaxRequests)
	}
	if l.window != DefaultWindow {
		t.Errorf("window = %v, want %v", l.window, DefaultWindow)
	}
}

func TestRedisLimiter_FailsOpen(t *testing.T) {
	t.Parallel()

	l, err := NewRedisLimiter(unreachableClient(t), 1, time.Minute)
	if err != nil {
		t.Fatalf("NewRedisLimiter: %v", err)
	}
	ctx := context.Background()

	// With max=1 a working store would reject the second and third request.
	// An unreachable store must admit them all.
	for i := 0; i < 3; i++ {
		allowed, retry := l.Admit(ctx, "alice")
		if !allowed {
			t.Fatalf("request %d rejected, want admitted on store failure", i+1)
		}
		if retry != 0 {
			t.Errorf("request %d retry = %d, want 0", i+1, retry)
		}
	}
}
