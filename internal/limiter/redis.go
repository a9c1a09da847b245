package limiter

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"log/slog"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/peoplesagent/pagent/internal/logging"
)

// keyPrefix namespaces limiter keys in a shared Redis instance.
const keyPrefix = "pagent:limiter:"

// admitScript prunes aged entries, counts the survivors, and records the new
// admission in one atomic step, so two concurrent admissions for the same
// caller cannot both observe a free slot and both slip under the limit.
// Replies with {1} when admitted, or {0, oldest-score} when the window is
// full.
var admitScript = redis.NewScript(`
redis.call('ZREMRANGEBYSCORE', KEYS[1], 0, ARGV[1])
local count = redis.call('ZCARD', KEYS[1])
if count >= tonumber(ARGV[2]) then
	local oldest = redis.call('ZRANGE', KEYS[1], 0, 0, 'WITHSCORES')
	return {0, oldest[2]}
end
redis.call('ZADD', KEYS[1], ARGV[3], ARGV[4])
redis.call('PEXPIRE', KEYS[1], ARGV[5])
return {1}
`)

// RedisLimiter is a sliding-window limiter backed by a Redis sorted set per
// caller. Admission timestamps are stored as set members scored by their
// nanosecond clock reading, which makes pruning a single ZREMRANGEBYSCORE.
// Multiple service instances sharing one Redis see a single combined window
// per caller.
//
// Every Redis failure is logged and treated as an admission: losing the
// limiter must never take down the query path.
type RedisLimiter struct {
	client   *redis.Client
	max      int
	window   time.Duration
	now      func() time.Time
	instance string
	seq      uint64
}

// NewRedisLimiter constructs a RedisLimiter allowing max requests per window.
// Non-positive parameters fall back to the defaults.
func NewRedisLimiter(client *redis.Client, max int, window time.Duration) (*RedisLimiter, error) {
	if client == nil {
		return nil, fmt.Errorf("limiter: redis client is required")
	}
	if max <= 0 {
		max = DefaultMaxRequests
	}
	if window <= 0 {
		window = DefaultWindow
	}
	return &RedisLimiter{
		client:   client,
		max:      max,
		window:   window,
		now:      time.Now,
		instance: newInstanceID(),
	}, nil
}

// Admit runs the prune-count-record script and either admits the request or
// returns a retry hint derived from the oldest surviving entry.
func (l *RedisLimiter) Admit(ctx context.Context, caller string) (bool, int) {
	log := logging.FromContext(ctx)
	key := keyPrefix + caller

	now := l.now()
	cutoff := now.Add(-l.window).UnixNano()
	member := l.instance + "-" + strconv.FormatInt(now.UnixNano(), 10) +
		"-" + strconv.FormatUint(atomic.AddUint64(&l.seq, 1), 10)

	reply, err := admitScript.Run(ctx, l.client, []string{key},
		cutoff, l.max, now.UnixNano(), member, l.window.Milliseconds()).Slice()
	if err != nil {
		log.Warn("rate limiter store unavailable, admitting request",
			slog.String("caller", caller),
			slog.String("error", err.Error()))
		return true, 0
	}

	if len(reply) == 0 {
		return true, 0
	}
	if admitted, ok := reply[0].(int64); !ok || admitted == 1 {
		return true, 0
	}

	if len(reply) < 2 {
		return true, 0
	}
	score, ok := reply[1].(string)
	if !ok {
		return true, 0
	}
	nanos, err := strconv.ParseFloat(score, 64)
	if err != nil {
		return true, 0
	}
	oldest := time.Unix(0, int64(nanos))
	return false, retrySeconds(oldest, now, l.window)
}

// newInstanceID returns a short random hex tag mixed into set members so that
// admissions from different service instances in the same nanosecond never
// collide on the member string. Falls back to a fixed tag on the (impossible
// in practice) error path.
func newInstanceID() string {
	b := make([]byte, 4)
	if _, err := rand.Read(b); err != nil {
		return "00000000"
	}
	return hex.EncodeToString(b)
}
