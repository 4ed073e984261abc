package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newIndexCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "index",
		Short: "Ingest the repository, resolve references, and save a snapshot",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}

			a, err := newApp(cfg, newBarReporter())
			if err != nil {
				return err
			}
			defer a.close()

			files, err := a.discoverFiles()
			if err != nil {
				return err
			}
			if len(files) == 0 {
				fmt.Println("No parseable files found")
				return nil
			}

			result, err := a.engine.FullBuild(cmd.Context(), files)
			if err != nil {
				return err
			}
			if verbose {
				for _, failure := range result.Failures {
					fmt.Printf("  failed: %s: %v\n", failure.File, failure.Err)
				}
			}

			stats := a.store.Stats()
			diags := a.surface.Diagnostics()
			fmt.Printf("Graph: %d nodes, %d edges across %d files; %d diagnostics\n",
				stats.Nodes, stats.Edges, stats.Files, len(diags))

			if err := a.saveSnapshot(); err != nil {
				return fmt.Errorf("saving snapshot: %w", err)
			}
			fmt.Printf("Snapshot saved to %s\n", a.snapshotPath())
			return nil
		},
	}
}
