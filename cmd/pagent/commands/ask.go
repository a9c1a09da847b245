package commands

import (
	"fmt"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/peoplesagent/pagent/internal/answer"
	"github.com/peoplesagent/pagent/internal/engine"
	"github.com/peoplesagent/pagent/internal/logging"
	"github.com/peoplesagent/pagent/internal/provider"
)

// NewAskCmd constructs the `pagent ask` command, which answers a single
// question on the command line, bypassing rate limiting and caching.
func NewAskCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ask [question]",
		Short: "Ask a one-shot policy question",
		Long: `Ask the People's Agent a question about government policies and documents.

The answer is retrieved from the indexed document collection, synthesised by
the configured LLM, and printed with its sources.

Examples:
  pagent ask "who is eligible for the housing subsidy?"
  pagent ask "what documents do I need to apply for a pension?"`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			log := logging.New()
			ctx = logging.WithLogger(ctx, log)

			chatModel, err := provider.NewFromEnv(ctx)
			if err != nil {
				return fmt.Errorf("ask: failed to initialise model provider: %w", err)
			}

			generator, err := answer.New(chatModel)
			if err != nil {
				return fmt.Errorf("ask: failed to build answerer: %w", err)
			}

			retriever, _, closeRetriever, err := buildRetriever(log)
			if err != nil {
				return fmt.Errorf("ask: %w", err)
			}
			defer closeRetriever()

			// No limiter or cache for one-shot CLI use.
			eng, err := engine.New(retriever, generator, nil, nil, engine.Config{
				TopK: envInt("RAG_TOP_K", 0),
			}, prometheus.NewRegistry())
			if err != nil {
				return fmt.Errorf("ask: failed to build engine: %w", err)
			}

			result := eng.Answer(ctx, strings.Join(args, " "), "cli")
			if result.Failed() {
				return fmt.Errorf("ask: %s: %s", result.Error, result.Answer)
			}

			fmt.Println(result.Answer)
			if len(result.Sources) > 0 {
				fmt.Println("\nSources:")
				for _, src := range result.Sources {
					fmt.Printf("  - %s\n", src)
				}
			}
			return nil
		},
	}

	return cmd
}
