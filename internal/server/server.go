// Package server implements the HTTP surface of the People's Agent: the chat
// endpoint backed by the query engine, liveness and readiness probes, the
// recently-indexed-documents feed, chat history, and Prometheus metrics.
// The server is started by the `pagent serve` CLI command.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/peoplesagent/pagent/internal/engine"
	"github.com/peoplesagent/pagent/internal/logging"
)

// New constructs a Server from the provided engine and config.
func New(e answerer, cfg *Config) (*Server, error) {
	if e == nil {
		return nil, fmt.Errorf("server: engine must not be nil")
	}
	if cfg == nil {
		cfg = &Config{}
	}
	if cfg.Host == "" {
		cfg.Host = "127.0.0.1"
	}
	if cfg.Port == 0 {
		cfg.Port = 8080
	}
	if cfg.ReadTimeout == 0 {
		cfg.ReadTimeout = 30 * time.Second
	}
	if cfg.WriteTimeout == 0 {
		// WriteTimeout must cover a full retrieval-and-generation round trip.
		cfg.WriteTimeout = 3 * time.Minute
	}
	if cfg.ShutdownTimeout == 0 {
		cfg.ShutdownTimeout = 10 * time.Second
	}
	if cfg.RateLimit == 0 {
		cfg.RateLimit = defaultRateLimit
	}
	if cfg.RateBurst == 0 {
		cfg.RateBurst = defaultRateBurst
	}
	log := cfg.Logger
	if log == nil {
		log = logging.New()
	}
	reg := cfg.Registry
	if reg == nil {
		reg = prometheus.NewRegistry()
	}

	s := &Server{
		engine:  e,
		cfg:     cfg,
		log:     log,
		pingers: cfg.Pingers,
		metrics: newServerMetrics(reg),
	}

	rl, stopRL := newRateLimiter(cfg.RateLimit, cfg.RateBurst, log)
	s.stopRL = stopRL

	if cfg.APIKey == "" {
		log.Warn("api authentication disabled: no API key configured")
	}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/chat", s.handleChat)
	mux.HandleFunc("GET /api/health", s.handleHealth)
	mux.HandleFunc("GET /api/ready", s.handleReady)
	mux.HandleFunc("GET /api/updates", s.handleUpdates)
	mux.HandleFunc("GET /api/history", s.handleHistory)
	mux.Handle("GET /metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))

	// Outer protection: request logging, then token-bucket abuse control per
	// IP, then bearer auth. The engine's per-caller sliding window applies
	// after all of these.
	var handler http.Handler = mux
	handler = authMiddleware(cfg.APIKey, handler)
	handler = rl.middleware(handler)
	handler = s.metricsMiddleware(handler)
	handler = requestLogger(log, handler)

	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Handler:      handler,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}

	return s, nil
}

// Start begins listening and serving HTTP requests. It blocks until the
// context is cancelled, then performs a graceful shutdown.
func (s *Server) Start(ctx context.Context) error {
	defer s.stopRL()

	errCh := make(chan error, 1)

	go func() {
		s.log.Info("server listening", slog.String("addr", s.httpServer.Addr))
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("server: listen error: %w", err)
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
		defer cancel()
		if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server: graceful shutdown failed: %w", err)
		}
		return nil
	}
}

// handleChat handles POST /api/chat. The request body carries the question
// and an optional caller identity; the response is always the engine's
// QueryResult JSON, with the HTTP status mapped from its error code.
func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	log := logging.FromContext(r.Context())

	var req chatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if reason, ok := guardQuery(req.Query); !ok {
		log.Warn("query rejected by input guard", slog.String("reason", reason))
		http.Error(w, "query rejected: "+reason, http.StatusBadRequest)
		return
	}

	caller := req.CallerID
	if caller == "" {
		caller = clientIP(r)
	}

	result := s.engine.Answer(r.Context(), req.Query, caller)

	status := http.StatusOK
	switch result.Error {
	case engine.ErrValidation:
		status = http.StatusBadRequest
	case engine.ErrRateLimited:
		status = http.StatusTooManyRequests
		w.Header().Set("Retry-After", strconv.Itoa(result.RetryAfter))
	case engine.ErrBackend:
		status = http.StatusBadGateway
	}

	if status == http.StatusOK {
		s.recordExchange(r.Context(), caller, req.Query, result)
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(result); err != nil {
		log.Error("chat encode error", slog.Any("error", err))
	}
}

// recordExchange appends a successful answer to the history store.
// Persistence failures are logged, never surfaced to the caller.
func (s *Server) recordExchange(ctx context.Context, caller, query string, result engine.QueryResult) {
	if s.cfg.History == nil {
		return
	}
	ex := exchangeFromResult(caller, query, result)
	if err := s.cfg.History.Append(ctx, ex); err != nil {
		logging.FromContext(ctx).Warn("history append failed", slog.Any("error", err))
	}
}

// handleHealth handles GET /api/health for liveness checks.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]string{
		"status": "ok",
		"system": "The People's Agent",
	})
}
