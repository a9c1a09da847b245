// Package cache stores finalized query results keyed by a content address of
// the query text, so repeated questions are answered without re-running
// retrieval and generation.
//
// Both implementations satisfy the engine's ResultCache contract: Get returns
// an unexpired entry or reports a miss, Set overwrites unconditionally with
// the configured TTL, and any store failure degrades to a miss or a no-op
// rather than an error.
package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"time"
)

// DefaultTTL is how long a cached result stays servable when no explicit TTL
// is configured.
const DefaultTTL = time.Hour

// Key derives the content address for a query: the hex SHA-256 of the query
// with surrounding whitespace stripped and letters lowercased. Queries that
// differ only in case or padding share an entry; any interior difference,
// including whitespace, yields a distinct one.
func Key(query string) string {
	normalized := strings.ToLower(strings.TrimSpace(query))
	sum := sha256.Sum256([]byte(normalized))
	return hex.EncodeToString(sum[:])
}
