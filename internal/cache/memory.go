package cache

import (
	"context"
	"sync"
	"time"

	"github.com/peoplesagent/pagent/internal/engine"
)

// entry pairs a stored result with its expiry deadline.
type entry struct {
	result    engine.QueryResult
	expiresAt time.Time
}

// MemoryCache is an in-process result cache with per-entry TTL. Expiry is
// checked lazily on read and a background janitor sweeps aged entries so the
// map does not grow without bound.
type MemoryCache struct {
	// mu protects entries.
	mu sync.RWMutex
	// entries maps content-address key to its stored result.
	entries map[string]entry
	// ttl is the lifetime applied to every Set.
	ttl time.Duration
	// now is the clock, overridable in tests.
	now func() time.Time
}

// NewMemoryCache constructs a MemoryCache with the given TTL and starts the
// janitor goroutine. The goroutine exits when the returned stop function is
// called. A non-positive ttl falls back to DefaultTTL.
func NewMemoryCache(ttl time.Duration) (*MemoryCache, func()) {
	if ttl <= 0 {
		ttl = DefaultTTL
	}

	c := &MemoryCache{
		entries: make(map[string]entry),
		ttl:     ttl,
		now:     time.Now,
	}

	stopCh := make(chan struct{})
	go c.sweepLoop(stopCh)

	return c, func() { close(stopCh) }
}

// Get returns the unexpired result stored for query, if any. An entry past
// its TTL reads as absent even before the janitor removes it.
func (c *MemoryCache) Get(_ context.Context, query string) (engine.QueryResult, bool) {
	key := Key(query)

	c.mu.RLock()
	e, ok := c.entries[key]
	c.mu.RUnlock()

	if !ok || !c.now().Before(e.expiresAt) {
		return engine.QueryResult{}, false
	}
	return e.result, true
}

// Set stores the result for query, overwriting any existing entry and
// restarting its TTL.
func (c *MemoryCache) Set(_ context.Context, query string, result engine.QueryResult) {
	key := Key(query)

	c.mu.Lock()
	c.entries[key] = entry{result: result, expiresAt: c.now().Add(c.ttl)}
	c.mu.Unlock()
}

// sweepLoop periodically removes expired entries. It exits when stopCh is
// closed.
func (c *MemoryCache) sweepLoop(stopCh <-chan struct{}) {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-stopCh:
			return
		case <-ticker.C:
			c.sweep()
		}
	}
}

// sweep removes entries whose TTL has elapsed.
func (c *MemoryCache) sweep() {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	for key, e := range c.entries {
		if !now.Before(e.expiresAt) {
			delete(c.entries, key)
		}
	}
}
