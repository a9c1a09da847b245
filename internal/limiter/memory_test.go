package limiter

import (
	"context"
	"testing"
	"time"
)

// testClock is a manually advanced clock for deterministic window tests.
type testClock struct {
	t time.Time
}

func (c *testClock) Now() time.Time          { return c.t }
func (c *testClock) Advance(d time.Duration) { c.t = c.t.Add(d) }

func newTestLimiter(t *testing.T, max int, window time.Duration) (*MemoryLimiter, *testClock) {
	t.Helper()
	l, stop := NewMemoryLimiter(max, window)
	t.Cleanup(stop)
	clock := &testClock{t: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)}
	l.now = clock.Now
	return l, clock
}

func TestMemoryLimiter_AdmitsUnderLimit(t *testing.T) {
	t.Parallel()

	l, _ := newTestLimiter(t, 3, time.Minute)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		allowed, retry := l.Admit(ctx, "alice")
		if !allowed {
			t.Fatalf("request %d rejected, want admitted", i+1)
		}
		if retry != 0 {
			t.Errorf("request %d retry = %d, want 0", i+1, retry)
		}
	}
}

func TestMemoryLimiter_RejectsAtLimit(t *testing.T) {
	t.Parallel()

	l, clock := newTestLimiter(t, 10, time.Minute)
	ctx := context.Background()

	// Ten requests spread over five seconds fill the window.
	for i := 0; i < 10; i++ {
		if allowed, _ := l.Admit(ctx, "alice"); !allowed {
			t.Fatalf("request %d rejected, want admitted", i+1)
		}
		clock.Advance(500 * time.Millisecond)
	}

	allowed, retry := l.Admit(ctx, "alice")
	if allowed {
		t.Fatal("11th request admitted, want rejected")
	}
	// Oldest admission was 5s ago, so it leaves the window in 55s.
	if retry != 55 {
		t.Errorf("retry = %d, want 55", retry)
	}
}

func TestMemoryLimiter_WindowSlides(t *testing.T) {
	t.Parallel()

	l, clock := newTestLimiter(t, 2, time.Minute)
	ctx := context.Background()

	l.Admit(ctx, "alice")
	clock.Advance(30 * time.Second)
	l.Admit(ctx, "alice")

	if allowed, _ := l.Admit(ctx, "alice"); allowed {
		t.Fatal("third request admitted inside window, want rejected")
	}

	// The first admission ages out 61s after it was made.
	clock.Advance(31 * time.Second)
	if allowed, _ := l.Admit(ctx, "alice"); !allowed {
		t.Fatal("request rejected after oldest entry expired, want admitted")
	}
}

func TestMemoryLimiter_CallersIsolated(t *testing.T) {
	t.Parallel()

	l, _ := newTestLimiter(t, 1, time.Minute)
	ctx := context.Background()

	if allowed, _ := l.Admit(ctx, "alice"); !allowed {
		t.Fatal("alice's first request rejected")
	}
	if allowed, _ := l.Admit(ctx, "alice"); allowed {
		t.Fatal("alice's second request admitted, want rejected")
	}
	if allowed, _ := l.Admit(ctx, "bob"); !allowed {
		t.Fatal("bob rejected by alice's quota")
	}
}

func TestMemoryLimiter_RetryFloorsAtOne(t *testing.T) {
	t.Parallel()

	l, clock := newTestLimiter(t, 1, time.Minute)
	ctx := context.Background()

	l.Admit(ctx, "alice")
	// Just under the full window later, the wait would round to zero.
	clock.Advance(59*time.Second + 800*time.Millisecond)

	allowed, retry := l.Admit(ctx, "alice")
	if allowed {
		t.Fatal("request admitted inside window, want rejected")
	}
	if retry != 1 {
		t.Errorf("retry = %d, want floor of 1", retry)
	}
}

func TestMemoryLimiter_Evict(t *testing.T) {
	t.Parallel()

	l, clock := newTestLimiter(t, 5, time.Minute)
	ctx := context.Background()

	l.Admit(ctx, "alice")
	l.Admit(ctx, "bob")
	clock.Advance(2 * time.Minute)
	l.Admit(ctx, "bob")

	l.evict()

	l.mu.Lock()
	defer l.mu.Unlock()
	if _, ok := l.callers["alice"]; ok {
		t.Error("idle caller not evicted")
	}
	if _, ok := l.callers["bob"]; !ok {
		t.Error("active caller evicted")
	}
}

func TestMemoryLimiter_Defaults(t *testing.T) {
	t.Parallel()

	l, stop := NewMemoryLimiter(0, 0)
	defer stop()

	if l.max != DefaultMaxRequests {
		t.Errorf("max = %d, want %d", l.max, DefaultMaxRequests)
	}
	if l.window != DefaultWindow {
		t.Errorf("window = %v, want %v", l.window, DefaultWindow)
	}
}
