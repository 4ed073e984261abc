// Package cli implements the codegraph command tree.
package cli

import (
	"github.com/spf13/cobra"

	"codegraph/internal/config"
)

var (
	cfgFile string
	verbose bool
)

// NewRootCmd builds the root command with all subcommands attached.
func NewRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "codegraph",
		Short: "Multi-language code graph engine",
		Long: `codegraph ingests a source repository into a queryable graph of
modules, classes, functions, calls, and routes, resolves cross-file and
cross-language references with confidence scores, and keeps the graph
current as files change.`,
		SilenceUsage:  true,
		SilenceErrors: false,
	}

	root.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default .codegraph/config.yml)")
	root.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")

	root.AddCommand(newIndexCmd())
	root.AddCommand(newWatchCmd())
	root.AddCommand(newQueryCmd())
	root.AddCommand(newDiagnosticsCmd())
	root.AddCommand(newVersionCmd())

	return root
}

// Execute runs the CLI.
func Execute() error {
	return NewRootCmd().Execute()
}

func loadConfig() (*config.Config, error) {
	return config.Load(cfgFile)
}
