// Package update keeps the graph consistent as files change, without
// full repository re-ingestion. Each change notification is one unit of
// work: retract the file, re-ingest its new content, and re-run
// resolution scoped to the affected set.
package update

import (
	"context"
	"log"
	"sort"
	"sync"

	"github.com/google/uuid"

	"codegraph/internal/graph"
	"codegraph/internal/ingest"
	"codegraph/internal/resolver"
)

// ChangeKind classifies a change notification.
type ChangeKind string

const (
	Created  ChangeKind = "created"
	Modified ChangeKind = "modified"
	Deleted  ChangeKind = "deleted"
)

// ChangeEvent is one file change notification.
type ChangeEvent struct {
	Path string
	Kind ChangeKind
}

// FileState is the per-file update lifecycle.
type FileState string

const (
	StateUnwatched   FileState = "unwatched"
	StateIngested    FileState = "ingested"
	StateStale       FileState = "stale"
	StateReingesting FileState = "reingesting"
	StateResolved    FileState = "resolved"
)

// Result describes one applied update.
type Result struct {
	ID        string // operation uuid, stamped on diagnostics
	Path      string
	Kind      ChangeKind
	Affected  []string
	Retracted []graph.NodeID
}

// Engine orchestrates incremental re-ingestion and scoped re-resolution.
// After an update completes the graph is equivalent to a from-scratch
// ingestion of the current repository state.
type Engine struct {
	store    *graph.Store
	ingestor *ingest.Ingestor
	resolver *resolver.Resolver

	mu         sync.Mutex
	states     map[string]FileState
	retracting map[string]bool
	pending    map[string]ChangeEvent
	order      []string // FIFO over pending paths
	wake       chan struct{}
}

// NewEngine creates an update engine over the given store, ingestor, and
// resolver.
func NewEngine(store *graph.Store, ingestor *ingest.Ingestor, res *resolver.Resolver) *Engine {
	return &Engine{
		store:      store,
		ingestor:   ingestor,
		resolver:   res,
		states:     make(map[string]FileState),
		retracting: make(map[string]bool),
		pending:    make(map[string]ChangeEvent),
		wake:       make(chan struct{}, 1),
	}
}

// State returns the update lifecycle state of a file.
func (e *Engine) State(path string) FileState {
	e.mu.Lock()
	defer e.mu.Unlock()
	if state, ok := e.states[path]; ok {
		return state
	}
	return StateUnwatched
}

// FullBuild ingests the given files from scratch and runs a full
// resolution pass.
func (e *Engine) FullBuild(ctx context.Context, files []string) (*ingest.Result, error) {
	result, err := e.ingestor.IngestFiles(ctx, files)
	if err != nil {
		return nil, err
	}

	e.mu.Lock()
	for _, file := range e.store.Files() {
		e.states[file] = StateIngested
	}
	e.mu.Unlock()

	if err := e.resolver.ResolveAll(ctx); err != nil {
		return result, err
	}

	e.mu.Lock()
	for file := range e.states {
		e.states[file] = StateResolved
	}
	e.mu.Unlock()
	return result, nil
}

// Notify queues a change event. A newer event for a file supersedes a
// pending one; an event for a file whose retraction has begun is queued
// behind the running update rather than interrupting it.
func (e *Engine) Notify(ev ChangeEvent) {
	e.mu.Lock()
	if _, queued := e.pending[ev.Path]; !queued {
		e.order = append(e.order, ev.Path)
	}
	e.pending[ev.Path] = ev
	e.mu.Unlock()

	select {
	case e.wake <- struct{}{}:
	default:
	}
}

// Run processes queued events until the context is cancelled.
func (e *Engine) Run(ctx context.Context) error {
	for {
		ev, ok := e.dequeue()
		if !ok {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-e.wake:
				continue
			}
		}
		if _, err := e.Apply(ctx, ev); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			log.Printf("Warning: update for %s failed: %v", ev.Path, err)
		}
	}
}

func (e *Engine) dequeue() (ChangeEvent, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	for len(e.order) > 0 {
		path := e.order[0]
		e.order = e.order[1:]
		ev, ok := e.pending[path]
		if !ok {
			continue
		}
		if e.retracting[path] {
			// Running update must finish first; requeue behind it.
			e.order = append(e.order, path)
			return ChangeEvent{}, false
		}
		delete(e.pending, path)
		return ev, true
	}
	return ChangeEvent{}, false
}

// Apply runs one update to completion: retract, re-ingest (unless
// deleted), re-resolve the affected set. The affected set is the changed
// file plus its one-hop reverse dependents; deeper dependents re-validate
// on their own next pass.
func (e *Engine) Apply(ctx context.Context, ev ChangeEvent) (*Result, error) {
	opID := uuid.NewString()

	e.mu.Lock()
	e.states[ev.Path] = StateStale
	e.mu.Unlock()

	// Computed before retraction, while the reverse edges still exist.
	affected := e.affectedFiles(ev.Path)

	e.mu.Lock()
	e.retracting[ev.Path] = true
	e.states[ev.Path] = StateReingesting
	e.mu.Unlock()
	defer func() {
		e.mu.Lock()
		delete(e.retracting, ev.Path)
		e.mu.Unlock()
	}()

	sink := e.resolver.Diagnostics()
	sink.SetUpdateID(opID)
	defer sink.SetUpdateID("")

	// Retraction fires the store's hooks, which drop import cache
	// entries targeting this file.
	retracted := e.store.RemoveFile(ev.Path)

	if ev.Kind != Deleted {
		if _, err := e.ingestor.IngestFile(ctx, ev.Path); err != nil {
			// Per-file failure isolation: the file contributes no nodes,
			// the rest of the graph is unaffected.
			log.Printf("Warning: re-ingestion of %s failed: %v", ev.Path, err)
		}
	}

	if err := e.resolver.ResolveFiles(ctx, affected...); err != nil {
		return nil, err
	}

	e.mu.Lock()
	if ev.Kind == Deleted {
		delete(e.states, ev.Path)
	} else {
		e.states[ev.Path] = StateResolved
	}
	e.mu.Unlock()

	return &Result{
		ID:        opID,
		Path:      ev.Path,
		Kind:      ev.Kind,
		Affected:  affected,
		Retracted: retracted,
	}, nil
}

// affectedFiles is the changed file plus every file holding an edge that
// targets one of its nodes.
func (e *Engine) affectedFiles(path string) []string {
	set := map[string]bool{path: true}
	for _, node := range e.store.NodesInFile(path) {
		for _, edge := range e.store.EdgesTo(node.ID) {
			if src, ok := e.store.Node(edge.From); ok {
				set[src.File] = true
			}
		}
	}

	out := make([]string, 0, len(set))
	for file := range set {
		out = append(out, file)
	}
	sort.Strings(out)
	return out
}
