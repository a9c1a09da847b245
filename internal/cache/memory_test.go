package cache

import (
	"context"
	"testing"
	"time"

	"github.com/peoplesagent/pagent/internal/engine"
)

func TestKey_Normalization(t *testing.T) {
	t.Parallel()

	base := Key("what is the pension age?")

	collides := []string{
		"  what is the pension age?  ",
		"What Is The Pension Age?",
		"\tWHAT IS THE PENSION AGE?\n",
	}
	for _, q := range collides {
		if Key(q) != base {
			t.Errorf("Key(%q) != Key(base), want collision", q)
		}
	}

	distinct := []string{
		"what is the pension  age?", // interior whitespace differs
		"what is the pension age",
		"who is the pension age?",
	}
	for _, q := range distinct {
		if Key(q) == base {
			t.Errorf("Key(%q) == Key(base), want distinct", q)
		}
	}

	if len(base) != 64 {
		t.Errorf("key length = %d, want 64 hex chars", len(base))
	}
}

func newTestCache(t *testing.T, ttl time.Duration) (*MemoryCache, *time.Time) {
	t.Helper()
	c, stop := NewMemoryCache(ttl)
	t.Cleanup(stop)
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return now }
	return c, &now
}

func TestMemoryCache_GetSet(t *testing.T) {
	t.Parallel()

	c, _ := newTestCache(t, time.Hour)
	ctx := context.Background()

	if _, ok := c.Get(ctx, "unseen query"); ok {
		t.Fatal("Get on empty cache reported a hit")
	}

	want := engine.QueryResult{Answer: "answer", Sources: []string{"a.pdf"}}
	c.Set(ctx, "my query", want)

	got, ok := c.Get(ctx, "My Query  ")
	if !ok {
		t.Fatal("Get after Set reported a miss")
	}
	if got.Answer != want.Answer || len(got.Sources) != 1 {
		t.Errorf("Get = %+v, want %+v", got, want)
	}
}

func TestMemoryCache_TTLExpiry(t *testing.T) {
	t.Parallel()

	c, now := newTestCache(t, time.Hour)
	ctx := context.Background()

	c.Set(ctx, "q", engine.QueryResult{Answer: "a"})

	*now = now.Add(59 * time.Minute)
	if _, ok := c.Get(ctx, "q"); !ok {
		t.Fatal("entry expired before its TTL")
	}

	*now = now.Add(2 * time.Minute)
	if _, ok := c.Get(ctx, "q"); ok {
		t.Fatal("entry served after its TTL elapsed")
	}
}

func TestMemoryCache_LastWriterWins(t *testing.T) {
	t.Parallel()

	c, _ := newTestCache(t, time.Hour)
	ctx := context.Background()

	c.Set(ctx, "q", engine.QueryResult{Answer: "first"})
	c.Set(ctx, "q", engine.QueryResult{Answer: "second"})

	got, ok := c.Get(ctx, "q")
	if !ok {
		t.Fatal("Get reported a miss")
	}
	if got.Answer != "second" {
		t.Errorf("Answer = %q, want %q", got.Answer, "second")
	}
}

func TestMemoryCache_SetRestartsTTL(t *testing.T) {
	t.Parallel()

	c, now := newTestCache(t, time.Hour)
	ctx := context.Background()

	c.Set(ctx, "q", engine.QueryResult{Answer: "a"})
	*now = now.Add(50 * time.Minute)
	c.Set(ctx, "q", engine.QueryResult{Answer: "b"})
	*now = now.Add(50 * time.Minute)

	if _, ok := c.Get(ctx, "q"); !ok {
		t.Fatal("rewritten entry expired on the original deadline")
	}
}

func TestMemoryCache_Sweep(t *testing.T) {
	t.Parallel()

	c, now := newTestCache(t, time.Hour)
	ctx := context.Background()

	c.Set(ctx, "old", engine.QueryResult{Answer: "a"})
	*now = now.Add(2 * time.Hour)
	c.Set(ctx, "fresh", engine.QueryResult{Answer: "b"})

	c.sweep()

	c.mu.RLock()
	defer c.mu.RUnlock()
	if len(c.entries) != 1 {
		t.Errorf("entries after sweep = %d, want 1", len(c.entries))
	}
	if _, ok := c.entries[Key("fresh")]; !ok {
		t.Error("unexpired entry swept")
	}
}
