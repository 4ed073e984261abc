package cli

import (
	"fmt"
	"time"

	"github.com/schollz/progressbar/v3"

	"codegraph/internal/ingest"
)

// barReporter renders ingestion progress on the terminal.
type barReporter struct {
	bar *progressbar.ProgressBar
}

func newBarReporter() *barReporter {
	return &barReporter{}
}

func (r *barReporter) OnIngestStart(totalFiles int) {
	r.bar = progressbar.NewOptions(totalFiles,
		progressbar.OptionSetDescription("Ingesting"),
		progressbar.OptionShowCount(),
		progressbar.OptionSetWidth(30),
		progressbar.OptionClearOnFinish(),
	)
}

func (r *barReporter) OnFileIngested(processed, total int, file string) {
	if r.bar == nil {
		return
	}
	r.bar.Describe(fmt.Sprintf("Ingesting %s", file))
	_ = r.bar.Set(processed)
}

func (r *barReporter) OnIngestComplete(stats ingest.Stats, duration time.Duration) {
	if r.bar != nil {
		_ = r.bar.Finish()
	}
	fmt.Printf("Ingested %d files (%d nodes, %d edges) in %s\n",
		stats.FilesIngested, stats.Nodes, stats.Edges, duration.Round(time.Millisecond))
	if stats.FilesFailed > 0 {
		fmt.Printf("%d files failed to parse\n", stats.FilesFailed)
	}
	if stats.FilesSkipped > 0 && verbose {
		fmt.Printf("%d files skipped (no parser)\n", stats.FilesSkipped)
	}
}
