package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newDiagnosticsCmd() *cobra.Command {
	var kind string

	cmd := &cobra.Command{
		Use:   "diagnostics",
		Short: "List resolution gaps recorded in the saved snapshot",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			surface, cleanup, err := openSnapshot(cfg)
			if err != nil {
				return err
			}
			defer cleanup()

			diags := surface.Diagnostics()
			printed := 0
			for _, d := range diags {
				if kind != "" && string(d.Kind) != kind {
					continue
				}
				loc := d.File
				if d.Line > 0 {
					loc = fmt.Sprintf("%s:%d", d.File, d.Line)
				}
				fmt.Printf("  %-26s %-30s %s", d.Kind, d.Symbol, loc)
				if verbose && d.Detail != "" {
					fmt.Printf("  (%s)", d.Detail)
				}
				fmt.Println()
				printed++
			}
			fmt.Printf("%d diagnostics\n", printed)
			return nil
		},
	}

	cmd.Flags().StringVar(&kind, "kind", "", "filter by diagnostic kind")
	return cmd
}
