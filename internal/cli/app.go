package cli

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"codegraph/internal/config"
	"codegraph/internal/graph"
	"codegraph/internal/ingest"
	"codegraph/internal/parsers"
	"codegraph/internal/query"
	"codegraph/internal/resolver"
	"codegraph/internal/storage"
	"codegraph/internal/update"
)

// skipDirs are directory names never worth ingesting.
var skipDirs = map[string]bool{
	".git":         true,
	"node_modules": true,
	"vendor":       true,
	"__pycache__":  true,
	".codegraph":   true,
}

// app wires the engine components together for one CLI invocation.
type app struct {
	cfg      *config.Config
	store    *graph.Store
	registry *ingest.Registry
	ingestor *ingest.Ingestor
	resolver *resolver.Resolver
	engine   *update.Engine
	surface  *query.Surface
}

func newApp(cfg *config.Config, progress ingest.ProgressReporter) (*app, error) {
	store := graph.NewStore()
	registry := parsers.NewRegistry()

	ingestOpts := []ingest.Option{}
	if cfg.Ingest.Workers > 0 {
		ingestOpts = append(ingestOpts, ingest.WithWorkers(cfg.Ingest.Workers))
	}
	if progress != nil {
		ingestOpts = append(ingestOpts, ingest.WithProgress(progress))
	}
	ingestor := ingest.NewIngestor(store, registry, cfg.RootDir, ingestOpts...)

	res, err := resolver.New(store, nil,
		resolver.WithCollisionPolicy(resolver.CollisionPolicy(cfg.Resolver.CollisionPolicy)),
		resolver.WithCacheCapacity(cfg.Resolver.CacheCapacity),
		resolver.WithResolveWorkers(cfg.Resolver.Workers),
		resolver.WithCrossLanguageLinking(cfg.Resolver.CrossLanguage),
	)
	if err != nil {
		return nil, fmt.Errorf("creating resolver: %w", err)
	}

	surface, err := query.NewSurface(store, res)
	if err != nil {
		res.Close()
		return nil, err
	}

	return &app{
		cfg:      cfg,
		store:    store,
		registry: registry,
		ingestor: ingestor,
		resolver: res,
		engine:   update.NewEngine(store, ingestor, res),
		surface:  surface,
	}, nil
}

func (a *app) close() {
	_ = a.surface.Close()
	a.resolver.Close()
}

// discoverFiles walks the repository root and returns repo-relative
// paths of every file with a registered parser.
func (a *app) discoverFiles() ([]string, error) {
	exts := make(map[string]bool)
	for _, ext := range a.registry.Extensions() {
		exts[ext] = true
	}

	var files []string
	err := filepath.Walk(a.cfg.RootDir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() {
			if skipDirs[info.Name()] || strings.HasPrefix(info.Name(), ".") && path != a.cfg.RootDir {
				return filepath.SkipDir
			}
			return nil
		}
		if !exts[strings.ToLower(filepath.Ext(path))] {
			return nil
		}
		rel, err := filepath.Rel(a.cfg.RootDir, path)
		if err != nil {
			return err
		}
		files = append(files, filepath.ToSlash(rel))
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("discovering files under %s: %w", a.cfg.RootDir, err)
	}
	return files, nil
}

func (a *app) snapshotPath() string {
	if filepath.IsAbs(a.cfg.SnapshotPath) {
		return a.cfg.SnapshotPath
	}
	return filepath.Join(a.cfg.RootDir, a.cfg.SnapshotPath)
}

// saveSnapshot writes the current graph and diagnostics to the
// configured snapshot path.
func (a *app) saveSnapshot() error {
	snapPath := a.snapshotPath()
	if err := os.MkdirAll(filepath.Dir(snapPath), 0o755); err != nil {
		return err
	}
	snap, err := storage.Open(snapPath)
	if err != nil {
		return err
	}
	defer snap.Close()
	return snap.Save(a.store, a.surface.Diagnostics())
}
