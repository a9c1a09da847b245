package server

import (
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

// okHandler is a trivial handler used to verify that allowed requests reach
// the downstream handler.
var okHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
})

// TestRateLimit_AllowsUnderLimit verifies that requests within the burst
// allowance pass through.
func TestRateLimit_AllowsUnderLimit(t *testing.T) {
	t.Parallel()

	rl, stop := newRateLimiter(100, 5, slog.Default())
	defer stop()
	h := rl.middleware(okHandler)

	for i := 0; i < 5; i++ {
		req := httptest.NewRequest(http.MethodGet, "/api/chat", nil)
		req.RemoteAddr = "192.0.2.1:1234"
		w := httptest.NewRecorder()
		h.ServeHTTP(w, req)
		if w.Code != http.StatusOK {
			t.Fatalf("request %d: expected 200, got %d", i+1, w.Code)
		}
	}
}

// TestRateLimit_RejectsOverBurst verifies that a request beyond the burst
// allowance receives 429 with a Retry-After header.
func TestRateLimit_RejectsOverBurst(t *testing.T) {
	t.Parallel()

	// 1 req/s sustained, burst of 2: the third immediate request must fail.
	rl, stop := newRateLimiter(1, 2, slog.Default())
	defer stop()
	h := rl.middleware(okHandler)

	for i := 0; i < 2; i++ {
		req := httptest.NewRequest(http.MethodGet, "/api/chat", nil)
		req.RemoteAddr = "192.0.2.2:1234"
		w := httptest.NewRecorder()
		h.ServeHTTP(w, req)
		if w.Code != http.StatusOK {
			t.Fatalf("request %d: expected 200, got %d", i+1, w.Code)
		}
	}

	req := httptest.NewRequest(http.MethodGet, "/api/chat", nil)
	req.RemoteAddr = "192.0.2.2:1234"
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)

	if w.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429, got %d", w.Code)
	}
	if w.Header().Get("Retry-After") == "" {
		t.Error("expected Retry-After header on 429")
	}
}

// TestRateLimit_IPsIndependent verifies that one IP exhausting its bucket
// does not affect another.
func TestRateLimit_IPsIndependent(t *testing.T) {
	t.Parallel()

	rl, stop := newRateLimiter(1, 1, slog.Default())
	defer stop()
	h := rl.middleware(okHandler)

	req := httptest.NewRequest(http.MethodGet, "/api/chat", nil)
	req.RemoteAddr = "192.0.2.3:1234"
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("first IP first request: expected 200, got %d", w.Code)
	}

	req = httptest.NewRequest(http.MethodGet, "/api/chat", nil)
	req.RemoteAddr = "192.0.2.3:1234"
	w = httptest.NewRecorder()
	h.ServeHTTP(w, req)
	if w.Code != http.StatusTooManyRequests {
		t.Fatalf("first IP second request: expected 429, got %d", w.Code)
	}

	req = httptest.NewRequest(http.MethodGet, "/api/chat", nil)
	req.RemoteAddr = "192.0.2.4:1234"
	w = httptest.NewRecorder()
	h.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Errorf("second IP: expected 200, got %d", w.Code)
	}
}

// TestRateLimit_Evict verifies stale IP entries are removed by the eviction
// sweep.
func TestRateLimit_Evict(t *testing.T) {
	t.Parallel()

	rl, stop := newRateLimiter(1, 1, slog.Default())
	defer stop()

	rl.getLimiter("192.0.2.5")
	rl.mu.Lock()
	rl.limiters["192.0.2.5"].lastSeen = time.Now().Add(-10 * time.Minute)
	rl.mu.Unlock()

	rl.evict()

	rl.mu.Lock()
	defer rl.mu.Unlock()
	if _, ok := rl.limiters["192.0.2.5"]; ok {
		t.Error("stale IP entry not evicted")
	}
}

// TestClientIP verifies port stripping for IPv4 and IPv6 remote addresses.
func TestClientIP(t *testing.T) {
	t.Parallel()

	tests := []struct {
		addr string
		want string
	}{
		{"192.0.2.1:1234", "192.0.2.1"},
		{"[::1]:8080", "[::1]"},
		{"no-port", "no-port"},
	}
	for _, tt := range tests {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.RemoteAddr = tt.addr
		if got := clientIP(req); got != tt.want {
			t.Errorf("clientIP(%q) = %q, want %q", tt.addr, got, tt.want)
		}
	}
}
