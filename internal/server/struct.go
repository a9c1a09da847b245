package server

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/peoplesagent/pagent/internal/engine"
	"github.com/peoplesagent/pagent/internal/rag"
	"github.com/peoplesagent/pagent/internal/store"
)

// Config holds the HTTP server configuration.
type Config struct {
	// Host is the address to bind to (default: 127.0.0.1).
	Host string
	// Port is the TCP port to listen on (default: 8080).
	Port int
	// ReadTimeout is the maximum duration for reading the request.
	ReadTimeout time.Duration
	// WriteTimeout is the maximum duration for writing the response.
	WriteTimeout time.Duration
	// ShutdownTimeout is the maximum duration for a graceful shutdown.
	ShutdownTimeout time.Duration
	// Logger is the structured logger used by the server and its handlers.
	// If nil, [logging.New] is used.
	Logger *slog.Logger
	// Pingers is the ordered list of dependency probes run by GET /api/ready.
	// If empty, /api/ready returns 200 with no checks (liveness-only mode).
	Pingers []Pinger
	// RateLimit is the sustained request rate allowed per IP on rate-limited
	// endpoints (requests/second). Defaults to 10 if zero.
	RateLimit float64
	// RateBurst is the maximum instantaneous burst per IP. Defaults to 20 if zero.
	RateBurst int
	// APIKey is the Bearer token required on all protected /api/* routes.
	// If empty, authentication is disabled (development mode).
	APIKey string
	// Sources lists recently indexed documents for GET /api/updates.
	// If nil the endpoint returns an empty feed.
	Sources rag.SourceLister
	// History persists answered questions and feeds GET /api/history.
	// If nil, persistence is disabled and the endpoint returns an empty list.
	History store.HistoryStore
	// Registry receives the server's metrics and backs GET /metrics.
	// If nil a fresh registry is created.
	Registry *prometheus.Registry
}

// answerer is the interface handleChat calls to run the query pipeline.
// *engine.Engine satisfies it; tests inject a fake.
type answerer interface {
	Answer(ctx context.Context, query, caller string) engine.QueryResult
}

// Server is the HTTP server exposing the query engine.
type Server struct {
	// engine runs the query pipeline for handleChat.
	engine answerer
	// cfg holds the resolved server configuration.
	cfg *Config
	// httpServer is the underlying net/http server.
	httpServer *http.Server
	// log is the structured logger for this server instance.
	log *slog.Logger
	// pingers is the ordered list of dependency probes for GET /api/ready.
	pingers []Pinger
	// metrics holds the server's Prometheus metrics.
	metrics *serverMetrics
	// stopRL stops the rate limiter's background eviction goroutine on shutdown.
	stopRL func()
}

// chatRequest is the JSON body for POST /api/chat.
type chatRequest struct {
	// Query is the citizen's natural language question.
	Query string `json:"query"`
	// CallerID identifies the caller for per-caller rate limiting. Optional;
	// the client IP is used when absent.
	CallerID string `json:"caller_id,omitempty"`
}

// update is one entry in the GET /api/updates feed.
type update struct {
	// Title is a human-readable document name derived from the link.
	Title string `json:"title"`
	// URL is the document link.
	URL string `json:"url"`
	// Date is a display hint; the index does not record ingestion time.
	Date string `json:"date"`
}

// updatesResponse is the JSON body for GET /api/updates.
type updatesResponse struct {
	Updates []update `json:"updates"`
}

// historyResponse is the JSON body for GET /api/history.
type historyResponse struct {
	Exchanges []store.Exchange `json:"exchanges"`
}
