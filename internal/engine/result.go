package engine

// Error codes carried in QueryResult.Error. An empty Error means success.
const (
	// ErrValidation marks a query rejected before any work was done: empty
	// after trimming, or longer than the configured maximum.
	ErrValidation = "validation_error"
	// ErrRateLimited marks a query rejected by the per-caller limiter.
	// RetryAfter carries the wait hint in seconds.
	ErrRateLimited = "rate_limit_exceeded"
	// ErrBackend marks a retrieval or generation failure. The result carries
	// an apology answer alongside the code and is never cached.
	ErrBackend = "backend_unavailable"
)

// QueryResult is the outcome of one answered query, in the shape the HTTP
// surface serialises.
type QueryResult struct {
	// Answer is the synthesised answer text, or a human-readable message
	// when Error is set.
	Answer string `json:"answer"`
	// Sources lists the distinct document sources backing the answer, in
	// first-retrieved order. Never nil on success.
	Sources []string `json:"sources"`
	// Cached reports whether this result was served from the cache.
	Cached bool `json:"cached"`
	// QueryTime is the wall-clock pipeline duration in seconds. Zero for
	// rejected queries.
	QueryTime float64 `json:"query_time,omitempty"`
	// Error is one of the Err* codes, or empty on success.
	Error string `json:"error,omitempty"`
	// RetryAfter is the suggested wait in whole seconds when Error is
	// ErrRateLimited.
	RetryAfter int `json:"retry_after,omitempty"`
}

// Failed reports whether the result carries an error code.
func (r QueryResult) Failed() bool {
	return r.Error != ""
}
