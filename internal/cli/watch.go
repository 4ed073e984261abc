package cli

import (
	"fmt"
	"log"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"codegraph/internal/update"
	"codegraph/internal/watcher"
)

func newWatchCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "watch",
		Short: "Index the repository and keep the graph current as files change",
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

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			if _, err := a.engine.FullBuild(ctx, files); err != nil {
				return err
			}

			w, err := watcher.New(cfg.RootDir, a.registry.Extensions(),
				watcher.WithDebounce(time.Duration(cfg.Watcher.DebounceMS)*time.Millisecond))
			if err != nil {
				return fmt.Errorf("starting watcher: %w", err)
			}
			defer w.Stop()

			err = w.Start(ctx, func(events []update.ChangeEvent) {
				for _, ev := range events {
					if verbose {
						fmt.Printf("%s %s\n", ev.Kind, ev.Path)
					}
					a.engine.Notify(ev)
				}
			})
			if err != nil {
				return err
			}

			fmt.Printf("Watching %s\n", cfg.RootDir)
			runErr := a.engine.Run(ctx)
			if ctx.Err() == nil {
				return runErr
			}

			fmt.Println("Shutting down")
			if err := a.saveSnapshot(); err != nil {
				log.Printf("Warning: saving snapshot: %v", err)
			}
			return nil
		},
	}
}
