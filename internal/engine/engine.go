// Package engine orchestrates the query pipeline: validation, per-caller
// admission, cache lookup, retrieval, source extraction, answer synthesis,
// and result caching.
package engine

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/peoplesagent/pagent/internal/answer"
	"github.com/peoplesagent/pagent/internal/limiter"
	"github.com/peoplesagent/pagent/internal/logging"
	"github.com/peoplesagent/pagent/internal/rag"
)

const (
	// defaultTopK is the number of fragments retrieved per query when no
	// explicit value is configured.
	defaultTopK = 3

	// defaultMaxQueryChars bounds query length in runes.
	defaultMaxQueryChars = 5000

	// defaultRetrieveTimeout bounds one vector-store round trip.
	defaultRetrieveTimeout = 15 * time.Second

	// defaultGenerateTimeout bounds one LLM generation.
	defaultGenerateTimeout = 90 * time.Second
)

// User-facing message strings for non-success results.
const (
	msgEmptyQuery   = "Please ask a question so I can help you."
	msgQueryTooLong = "Your question is too long. Please shorten it and try again."
	msgRateLimited  = "You have made too many requests. Please wait a moment before asking again."
	msgApology      = "I am sorry, I could not process your question right now. Please try again shortly."
)

// ResultCache is the engine's view of the response cache. Implementations
// derive the storage key from the query text and never return an expired
// entry. All store failures degrade to a miss / no-op.
type ResultCache interface {
	Get(ctx context.Context, query string) (QueryResult, bool)
	Set(ctx context.Context, query string, result QueryResult)
}

// Config carries the engine's tunables. Zero values fall back to defaults.
type Config struct {
	// TopK is the number of fragments requested from the retriever.
	TopK int
	// MaxQueryChars is the maximum accepted query length in runes.
	MaxQueryChars int
	// RetrieveTimeout bounds each retrieval call.
	RetrieveTimeout time.Duration
	// GenerateTimeout bounds each generation call.
	GenerateTimeout time.Duration
}

// Engine answers queries by running the full pipeline against its
// collaborators. All collaborators are process-wide singletons safe for
// concurrent use; Engine itself holds no mutable state, so concurrent Answer
// calls never serialise against each other.
type Engine struct {
	retriever rag.Retriever
	generator answer.Generator
	limiter   limiter.Limiter
	cache     ResultCache
	cfg       Config
	metrics   *engineMetrics
	now       func() time.Time
}

// New constructs an Engine. Retriever and generator are required; limiter and
// cache are optional (nil disables admission control / caching, used by the
// one-shot CLI path). Metrics are registered against reg.
func New(retriever rag.Retriever, generator answer.Generator, lim limiter.Limiter, cache ResultCache, cfg Config, reg prometheus.Registerer) (*Engine, error) {
	if retriever == nil {
		return nil, fmt.Errorf("engine: retriever is required")
	}
	if generator == nil {
		return nil, fmt.Errorf("engine: generator is required")
	}
	if reg == nil {
		reg = prometheus.NewRegistry()
	}

	if cfg.TopK <= 0 {
		cfg.TopK = defaultTopK
	}
	if cfg.MaxQueryChars <= 0 {
		cfg.MaxQueryChars = defaultMaxQueryChars
	}
	if cfg.RetrieveTimeout <= 0 {
		cfg.RetrieveTimeout = defaultRetrieveTimeout
	}
	if cfg.GenerateTimeout <= 0 {
		cfg.GenerateTimeout = defaultGenerateTimeout
	}

	return &Engine{
		retriever: retriever,
		generator: generator,
		limiter:   lim,
		cache:     cache,
		cfg:       cfg,
		metrics:   newEngineMetrics(reg),
		now:       time.Now,
	}, nil
}

// Answer runs the pipeline for one query on behalf of caller. Each stage
// short-circuits: validation failures never reach the limiter, rate-limited
// queries never touch the cache, and cache hits never reach the backends.
// Backend failures surface as an error result with an apology answer and are
// never cached. The returned result is always usable; Answer has no error
// return.
func (e *Engine) Answer(ctx context.Context, query, caller string) QueryResult {
	log := logging.FromContext(ctx)

	if strings.TrimSpace(query) == "" {
		e.metrics.queriesTotal.WithLabelValues("validation_error").Inc()
		return QueryResult{Answer: msgEmptyQuery, Sources: []string{}, Error: ErrValidation}
	}
	if utf8.RuneCountInString(query) > e.cfg.MaxQueryChars {
		e.metrics.queriesTotal.WithLabelValues("validation_error").Inc()
		return QueryResult{Answer: msgQueryTooLong, Sources: []string{}, Error: ErrValidation}
	}

	if e.limiter != nil {
		if allowed, retry := e.limiter.Admit(ctx, caller); !allowed {
			log.Warn("query rejected by rate limiter",
				slog.String("caller", caller),
				slog.Int("retry_after", retry))
			e.metrics.queriesTotal.WithLabelValues("rate_limited").Inc()
			return QueryResult{
				Answer:     msgRateLimited,
				Sources:    []string{},
				Error:      ErrRateLimited,
				RetryAfter: retry,
			}
		}
	}

	if e.cache != nil {
		if cached, ok := e.cache.Get(ctx, query); ok {
			log.Debug("serving cached result", slog.String("caller", caller))
			e.metrics.cacheEventsTotal.WithLabelValues("hit").Inc()
			e.metrics.queriesTotal.WithLabelValues("cached").Inc()
			cached.Cached = true
			return cached
		}
		e.metrics.cacheEventsTotal.WithLabelValues("miss").Inc()
	}

	start := e.now()

	frags, err := e.retrieve(ctx, query)
	if err != nil {
		log.Error("retrieval failed",
			slog.String("caller", caller),
			slog.String("error", err.Error()))
		e.metrics.queriesTotal.WithLabelValues("backend_error").Inc()
		return QueryResult{Answer: msgApology, Sources: []string{}, Error: ErrBackend}
	}

	sources := extractSources(frags)

	text, err := e.generate(ctx, query, frags)
	if err != nil {
		log.Error("generation failed",
			slog.String("caller", caller),
			slog.String("error", err.Error()))
		e.metrics.queriesTotal.WithLabelValues("backend_error").Inc()
		return QueryResult{Answer: msgApology, Sources: []string{}, Error: ErrBackend}
	}

	elapsed := e.now().Sub(start)
	result := QueryResult{
		Answer:    text,
		Sources:   sources,
		Cached:    false,
		QueryTime: elapsed.Seconds(),
	}

	e.metrics.queryDurationSeconds.Observe(elapsed.Seconds())
	e.metrics.queriesTotal.WithLabelValues("ok").Inc()

	if e.cache != nil {
		e.cache.Set(ctx, query, result)
		e.metrics.cacheEventsTotal.WithLabelValues("store").Inc()
	}

	log.Info("query answered",
		slog.String("caller", caller),
		slog.Int("fragments", len(frags)),
		slog.Int("sources", len(sources)),
		slog.Duration("elapsed", elapsed))
	return result
}

// retrieve runs one timeout-bounded retrieval.
func (e *Engine) retrieve(ctx context.Context, query string) ([]rag.Fragment, error) {
	ctx, cancel := context.WithTimeout(ctx, e.cfg.RetrieveTimeout)
	defer cancel()
	return e.retriever.Retrieve(ctx, query, e.cfg.TopK)
}

// generate runs one timeout-bounded generation.
func (e *Engine) generate(ctx context.Context, query string, frags []rag.Fragment) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, e.cfg.GenerateTimeout)
	defer cancel()
	return e.generator.Generate(ctx, query, frags)
}

// extractSources collects the distinct fragment sources in first-seen order,
// skipping empty sources and the placeholder used for fragments whose origin
// document is unknown. Returns an empty slice, never nil.
func extractSources(frags []rag.Fragment) []string {
	sources := make([]string, 0, len(frags))
	seen := make(map[string]struct{}, len(frags))
	for _, f := range frags {
		if f.Source == "" || f.Source == rag.NoSourcePlaceholder {
			continue
		}
		if _, ok := seen[f.Source]; ok {
			continue
		}
		seen[f.Source] = struct{}{}
		sources = append(sources, f.Source)
	}
	return sources
}
