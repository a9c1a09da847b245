// Package commands defines all Cobra CLI commands for the pagent binary.
package commands

import (
	"github.com/spf13/cobra"

	"github.com/peoplesagent/pagent/internal/audit"
	"github.com/peoplesagent/pagent/internal/config"
	"github.com/peoplesagent/pagent/internal/logging"
)

// configPath holds the --config flag value for YAML config file override.
var configPath string

// loadedConfigPath stores the resolved config file path for audit logging.
var loadedConfigPath string

// NewRootCmd constructs the root Cobra command that all subcommands attach to.
func NewRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "pagent",
		Short: "The People's Agent — answers about government policies, grounded in official documents",
		Long: `The People's Agent answers citizens' questions about government policies,
schemes, and public documents. Answers are retrieved from an indexed document
collection and synthesised by an LLM, with every source cited.

Model provider is selected via the MODEL_PROVIDER environment variable
or a YAML config file (~/.pagent/config.yaml).
See 'pagent --help' for available commands.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			log := logging.New()

			// Load YAML config (env vars always override YAML values).
			path, err := config.Load(configPath, log)
			if err != nil {
				return err
			}
			loadedConfigPath = path

			// Emit structured audit log for every command invocation.
			audit.LogCommandStart(log, cmd.Name(), loadedConfigPath)

			return nil
		},
	}

	root.PersistentFlags().StringVar(&configPath, "config", "", "Path to YAML config file (default: ~/.pagent/config.yaml)")

	root.AddCommand(
		NewAskCmd(),
		NewServeCmd(),
		NewVersionCmd(),
	)

	return root
}
