package ingest

import (
	"context"
	"log"
	"path/filepath"
	"runtime"
	"sync"
	"time"

	"codegraph/internal/graph"
)

// ProgressReporter reports progress during an ingestion pass.
type ProgressReporter interface {
	OnIngestStart(totalFiles int)
	OnFileIngested(processed, total int, file string)
	OnIngestComplete(stats Stats, duration time.Duration)
}

// Stats summarizes an ingestion pass.
type Stats struct {
	FilesIngested int
	FilesFailed   int
	FilesSkipped  int // No parser registered for the extension
	Nodes         int
	Edges         int
}

// FileFailure records a producer failure for one file. Failure isolation is
// per file: the file contributes no nodes and the rest of the graph is
// unaffected.
type FileFailure struct {
	File string
	Err  error
}

// Result is the outcome of an ingestion pass.
type Result struct {
	Stats    Stats
	Failures []FileFailure
}

// Ingestor runs parsers against files and writes their batches into the
// graph store. Files are processed by a worker pool; the store's mutation
// paths are safe under concurrent per-file writers because two files never
// share node ownership.
type Ingestor struct {
	store    *graph.Store
	registry *Registry
	rootDir  string
	workers  int
	progress ProgressReporter
}

// Option configures an Ingestor.
type Option func(*Ingestor)

// WithWorkers sets the worker pool size. Defaults to GOMAXPROCS.
func WithWorkers(n int) Option {
	return func(ing *Ingestor) {
		if n > 0 {
			ing.workers = n
		}
	}
}

// WithProgress configures progress reporting.
func WithProgress(progress ProgressReporter) Option {
	return func(ing *Ingestor) {
		ing.progress = progress
	}
}

// NewIngestor creates an ingestor writing into store. rootDir is the
// repository root; file arguments to IngestFiles are relative to it.
func NewIngestor(store *graph.Store, registry *Registry, rootDir string, opts ...Option) *Ingestor {
	ing := &Ingestor{
		store:    store,
		registry: registry,
		rootDir:  rootDir,
		workers:  runtime.GOMAXPROCS(0),
	}
	for _, opt := range opts {
		opt(ing)
	}
	return ing
}

// IngestFile parses one file and replaces its contents in the store.
// Returns the retracted node IDs from any prior ingestion of the file.
func (ing *Ingestor) IngestFile(ctx context.Context, relPath string) ([]graph.NodeID, error) {
	parser, ok := ing.registry.ForFile(relPath)
	if !ok {
		return nil, nil
	}

	absPath := filepath.Join(ing.rootDir, relPath)
	batch, err := parser.ParseFile(ctx, absPath, relPath)
	if err != nil {
		return nil, err
	}
	if batch == nil {
		return nil, nil
	}

	return ing.store.ReingestFile(*batch)
}

// IngestFiles runs a full ingestion pass over the given repo-relative files
// using the worker pool. Per-file producer failures are collected, not
// fatal.
func (ing *Ingestor) IngestFiles(ctx context.Context, files []string) (*Result, error) {
	start := time.Now()

	// Only count files we can actually parse.
	parseable := make([]string, 0, len(files))
	skipped := 0
	for _, file := range files {
		if _, ok := ing.registry.ForFile(file); ok {
			parseable = append(parseable, file)
		} else {
			skipped++
		}
	}

	if ing.progress != nil {
		ing.progress.OnIngestStart(len(parseable))
	}

	var (
		mu        sync.Mutex
		failures  []FileFailure
		nodeCount int
		edgeCount int
		processed int
	)

	fileCh := make(chan string)
	var wg sync.WaitGroup
	for w := 0; w < ing.workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for file := range fileCh {
				parser, _ := ing.registry.ForFile(file)
				absPath := filepath.Join(ing.rootDir, file)
				batch, err := parser.ParseFile(ctx, absPath, file)

				mu.Lock()
				if err != nil {
					log.Printf("Warning: failed to parse %s: %v", file, err)
					failures = append(failures, FileFailure{File: file, Err: err})
				} else if batch != nil {
					mu.Unlock()
					_, ingestErr := ing.store.ReingestFile(*batch)
					mu.Lock()
					if ingestErr != nil {
						failures = append(failures, FileFailure{File: file, Err: ingestErr})
					} else {
						nodeCount += len(batch.Nodes)
						edgeCount += len(batch.Edges)
					}
				}
				processed++
				done := processed
				mu.Unlock()

				if ing.progress != nil {
					ing.progress.OnFileIngested(done, len(parseable), filepath.Base(file))
				}
			}
		}()
	}

	dispatch := func() error {
		defer close(fileCh)
		for _, file := range parseable {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case fileCh <- file:
			}
		}
		return nil
	}
	err := dispatch()
	wg.Wait()
	if err != nil {
		return nil, err
	}

	result := &Result{
		Stats: Stats{
			FilesIngested: len(parseable) - len(failures),
			FilesFailed:   len(failures),
			FilesSkipped:  skipped,
			Nodes:         nodeCount,
			Edges:         edgeCount,
		},
		Failures: failures,
	}

	if ing.progress != nil {
		ing.progress.OnIngestComplete(result.Stats, time.Since(start))
	}

	return result, nil
}
