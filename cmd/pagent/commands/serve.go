package commands

import (
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/cloudwego/eino/callbacks"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/peoplesagent/pagent/internal/answer"
	"github.com/peoplesagent/pagent/internal/engine"
	"github.com/peoplesagent/pagent/internal/logging"
	"github.com/peoplesagent/pagent/internal/provider"
	"github.com/peoplesagent/pagent/internal/server"
	"github.com/peoplesagent/pagent/internal/store"
	"github.com/peoplesagent/pagent/internal/tracing"
)

// NewServeCmd constructs the `pagent serve` command, which starts the HTTP
// API server.
func NewServeCmd() *cobra.Command {
	var host string
	var port int

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the People's Agent HTTP API server",
		Long: `Start the People's Agent HTTP server.

The server exposes POST /api/chat for policy questions, GET /api/updates for
recently indexed documents, GET /api/history for past answers, and health,
readiness, and metrics endpoints.

Examples:
  pagent serve
  pagent serve --port 9090
  MODEL_PROVIDER=gemini pagent serve`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			log := logging.New()
			ctx = logging.WithLogger(ctx, log)

			log.Info("serve starting", slog.String("provider", os.Getenv("MODEL_PROVIDER")))

			// Setup Langfuse tracing — opt-in, no-op if keys are absent.
			handler, flush, ok := tracing.Setup()
			if ok {
				callbacks.AppendGlobalHandlers(handler)
				defer flush()
				log.Info("langfuse tracing enabled")
			} else {
				log.Info("langfuse tracing disabled", slog.String("reason", "LANGFUSE_PUBLIC_KEY not set"))
			}

			providerCfg := provider.ConfigFromEnv()
			chatModel, err := provider.New(ctx, providerCfg)
			if err != nil {
				return fmt.Errorf("serve: failed to initialise model provider: %w", err)
			}
			log.Info("provider initialised", slog.String("provider", string(providerCfg.Backend)))

			generator, err := answer.New(chatModel)
			if err != nil {
				return fmt.Errorf("serve: failed to build answerer: %w", err)
			}

			retriever, qdrantStore, closeRetriever, err := buildRetriever(log)
			if err != nil {
				return fmt.Errorf("serve: %w", err)
			}
			defer closeRetriever()

			redisClient := buildRedis(log)
			if redisClient != nil {
				defer func() { _ = redisClient.Close() }()
			}

			lim, resultCache, stopStores, err := buildLimiterAndCache(redisClient)
			if err != nil {
				return fmt.Errorf("serve: %w", err)
			}
			defer stopStores()

			registry := prometheus.NewRegistry()
			eng, err := engine.New(retriever, generator, lim, resultCache, engine.Config{
				TopK:          envInt("RAG_TOP_K", 0),
				MaxQueryChars: envInt("QUERY_MAX_CHARS", 0),
			}, registry)
			if err != nil {
				return fmt.Errorf("serve: failed to build engine: %w", err)
			}

			// Open the answered-question history store. PAGENT_HISTORY_DB
			// overrides the default path (~/.pagent/history.db); set to
			// "disabled" to turn persistence off.
			var historyStore store.HistoryStore
			dbPath := os.Getenv("PAGENT_HISTORY_DB")
			if dbPath != "disabled" {
				if dbPath == "" {
					dbPath, err = store.DefaultDBPath()
					if err != nil {
						log.Warn("history: could not resolve default DB path, disabling", slog.Any("error", err))
					}
				}
				if dbPath != "" {
					hs, hsErr := store.Open(dbPath)
					if hsErr != nil {
						log.Warn("history: failed to open store, disabling", slog.Any("error", hsErr))
					} else {
						historyStore = hs
						defer func() { _ = hs.Close() }()
						log.Info("history: store opened", slog.String("path", dbPath))
					}
				}
			} else {
				log.Info("history: disabled via PAGENT_HISTORY_DB=disabled")
			}

			pingers := buildPingers(chatModel, string(providerCfg.Backend), qdrantStore, redisClient)

			srv, err := server.New(eng, &server.Config{
				Host:     host,
				Port:     port,
				Logger:   log,
				Pingers:  pingers,
				APIKey:   os.Getenv("PAGENT_API_KEY"),
				Sources:  qdrantStore,
				History:  historyStore,
				Registry: registry,
			})
			if err != nil {
				return fmt.Errorf("serve: failed to create server: %w", err)
			}

			return srv.Start(ctx)
		},
	}

	cmd.Flags().StringVar(&host, "host", "127.0.0.1", "Host address to bind to")
	cmd.Flags().IntVarP(&port, "port", "p", 8080, "TCP port to listen on")

	return cmd
}
