package limiter

import (
	"context"
	"sync"
	"time"
)

// MemoryLimiter is an in-process sliding-window limiter. It keeps, per
// caller, the timestamps of requests admitted within the current window and
// prunes expired entries on every admission check. A background goroutine
// evicts callers that have gone fully idle so the map does not grow without
// bound.
type MemoryLimiter struct {
	// mu protects callers.
	mu sync.Mutex
	// callers maps caller identity to its in-window admission timestamps,
	// oldest first.
	callers map[string][]time.Time
	// max is the number of admissions allowed per window.
	max int
	// window is the sliding-window duration.
	window time.Duration
	// now is the clock, overridable in tests.
	now func() time.Time
}

// NewMemoryLimiter constructs a MemoryLimiter allowing max requests per
// window and starts the background eviction goroutine. The goroutine exits
// when the returned stop function is called. Non-positive parameters fall
// back to the defaults.
func NewMemoryLimiter(max int, window time.Duration) (*MemoryLimiter, func()) {
	if max <= 0 {
		max = DefaultMaxRequests
	}
	if window <= 0 {
		window = DefaultWindow
	}

	l := &MemoryLimiter{
		callers: make(map[string][]time.Time),
		max:     max,
		window:  window,
		now:     time.Now,
	}

	stopCh := make(chan struct{})
	go l.evictLoop(stopCh)

	return l, func() { close(stopCh) }
}

// Admit checks whether the caller may make another request. Timestamps older
// than the window are pruned first; if fewer than max remain the request is
// admitted and recorded, otherwise it is rejected with a retry hint derived
// from the oldest surviving timestamp.
func (l *MemoryLimiter) Admit(_ context.Context, caller string) (bool, int) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	cutoff := now.Add(-l.window)

	stamps := l.callers[caller]
	keep := 0
	for _, ts := range stamps {
		if ts.After(cutoff) {
			break
		}
		keep++
	}
	stamps = stamps[keep:]

	if len(stamps) >= l.max {
		l.callers[caller] = stamps
		return false, retrySeconds(stamps[0], now, l.window)
	}

	l.callers[caller] = append(stamps, now)
	return true, 0
}

// evictLoop periodically drops callers whose every recorded timestamp has
// aged out of the window. It exits when stopCh is closed.
func (l *MemoryLimiter) evictLoop(stopCh <-chan struct{}) {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-stopCh:
			return
		case <-ticker.C:
			l.evict()
		}
	}
}

// evict removes callers with no in-window timestamps.
func (l *MemoryLimiter) evict() {
	l.mu.Lock()
	defer l.mu.Unlock()

	cutoff := l.now().Add(-l.window)
	for caller, stamps := range l.callers {
		if len(stamps) == 0 || !stamps[len(stamps)-1].After(cutoff) {
			delete(l.callers, caller)
		}
	}
}
