// Package limiter enforces per-caller request quotas over a sliding time
// window. Unlike the server's per-IP token-bucket middleware, which protects
// the HTTP surface as a whole, this limiter guards the expensive retrieval
// and generation pipeline on a per-caller basis.
package limiter

import (
	"context"
	"time"
)

const (
	// DefaultMaxRequests is the number of requests a caller may make within
	// one window when no explicit limit is configured.
	DefaultMaxRequests = 10

	// DefaultWindow is the sliding-window duration when none is configured.
	DefaultWindow = 60 * time.Second
)

// Limiter admits or rejects a request for a caller. Admit returns whether the
// request may proceed and, when it may not, the number of whole seconds the
// caller should wait before retrying (at least 1).
//
// Implementations fail open: if the backing store is unavailable the request
// is admitted rather than rejected, so a store outage degrades protection,
// never availability.
type Limiter interface {
	Admit(ctx context.Context, caller string) (allowed bool, retryAfter int)
}

// retrySeconds converts the wait until the oldest in-window request expires
// into whole seconds, floored at 1 so callers never receive a zero or
// negative retry hint.
func retrySeconds(oldest, now time.Time, window time.Duration) int {
	secs := int(oldest.Add(window).Sub(now).Seconds())
	if secs < 1 {
		return 1
	}
	return secs
}
