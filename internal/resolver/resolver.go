package resolver

import (
	"context"
	"log"
	"sort"
	"strings"
	"sync"

	"codegraph/internal/graph"
)

// ambiguityFloor is the confidence below which a multi-candidate
// resolution is additionally reported as an ambiguous-reference
// diagnostic.
const ambiguityFloor = 0.3

// Resolver consumes the populated store, maintains the derived lookup
// indexes, and emits resolved edges for imports, calls, inheritance,
// routes, and cross-language references.
type Resolver struct {
	store *graph.Store
	idx   *Indexes
	cache *importCache
	sink  *DiagnosticSink

	workers   int
	crossLang bool

	// scopeMu guards importScope: file -> declaration ids brought into
	// that file's scope by resolved imports. Rebuilt each pass.
	scopeMu     sync.Mutex
	importScope map[string]map[graph.NodeID]bool
}

// ResolverOption configures a Resolver.
type ResolverOption func(*Resolver)

// WithCollisionPolicy selects the qualified-index collision policy.
func WithCollisionPolicy(policy CollisionPolicy) ResolverOption {
	return func(r *Resolver) {
		r.idx = NewIndexes(policy)
	}
}

// WithCacheCapacity bounds the import resolution cache.
func WithCacheCapacity(capacity int) ResolverOption {
	return func(r *Resolver) {
		if cache, err := newImportCache(capacity); err == nil {
			r.cache.close()
			r.cache = cache
		}
	}
}

// WithResolveWorkers bounds import-resolution parallelism.
func WithResolveWorkers(n int) ResolverOption {
	return func(r *Resolver) {
		if n > 0 {
			r.workers = n
		}
	}
}

// WithCrossLanguageLinking toggles the canonical-name linking pass.
func WithCrossLanguageLinking(enabled bool) ResolverOption {
	return func(r *Resolver) {
		r.crossLang = enabled
	}
}

// New creates a resolver over the store. The resolver subscribes to the
// store's retraction events to keep its import cache consistent.
func New(store *graph.Store, sink *DiagnosticSink, opts ...ResolverOption) (*Resolver, error) {
	cache, err := newImportCache(defaultCacheCapacity)
	if err != nil {
		return nil, err
	}
	if sink == nil {
		sink = NewDiagnosticSink()
	}

	r := &Resolver{
		store:       store,
		idx:         NewIndexes(CollisionLastWins),
		cache:       cache,
		sink:        sink,
		workers:     4,
		crossLang:   true,
		importScope: make(map[string]map[graph.NodeID]bool),
	}
	for _, opt := range opts {
		opt(r)
	}

	store.OnRetract(func(file string, _ []graph.NodeID) {
		r.cache.invalidateFile(file)
		r.cache.invalidateModule(ModuleName(file))
	})
	return r, nil
}

// Diagnostics returns the resolver's diagnostic sink.
func (r *Resolver) Diagnostics() *DiagnosticSink { return r.sink }

// Indexes exposes the derived lookup structures for read access.
func (r *Resolver) Indexes() *Indexes { return r.idx }

// Close releases the import cache.
func (r *Resolver) Close() { r.cache.close() }

// ResolveAll rebuilds the indexes from the store and runs every
// resolution pass over the whole graph. Idempotent: a second run over an
// unchanged store produces an identical edge set.
func (r *Resolver) ResolveAll(ctx context.Context) error {
	r.idx.Rebuild(r.store, r.sink)
	r.resetScope()
	return r.resolveScoped(ctx, r.store.Files())
}

// ResolveFiles re-indexes the given files and re-runs resolution scoped
// to them. Used by the incremental update engine.
func (r *Resolver) ResolveFiles(ctx context.Context, files ...string) error {
	if len(files) == 0 {
		return nil
	}
	for _, f := range files {
		r.sink.DropFile(f)
	}
	r.idx.UpdateFiles(r.store, r.sink, files...)
	r.resetScope()
	return r.resolveScoped(ctx, files)
}

func (r *Resolver) resetScope() {
	r.scopeMu.Lock()
	r.importScope = make(map[string]map[graph.NodeID]bool)
	r.scopeMu.Unlock()
}

func (r *Resolver) resolveScoped(ctx context.Context, files []string) error {
	inScope := make(map[string]bool, len(files))
	for _, f := range files {
		inScope[f] = true
	}

	// Retract the pass's prior conclusions for the scoped files so a
	// changed disambiguation replaces the old winner. Without this, a
	// call site whose new best candidate lives in a different file would
	// keep its stale edge beside the new one.
	r.store.RetractResolvedEdges(files...)

	if err := r.resolveImports(ctx, inScope); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	r.resolveCalls(inScope)
	r.resolveInheritance(inScope)
	r.linkRoutes(inScope)
	if r.crossLang {
		r.linkCrossLanguage(inScope)
	}
	return ctx.Err()
}

// resolveImports resolves every Import node in scope. Embarrassingly
// parallel: each resolution reads the shared indexes and writes
// independent edges.
func (r *Resolver) resolveImports(ctx context.Context, inScope map[string]bool) error {
	var imports []graph.Node
	for _, node := range r.store.NodesByKind(graph.NodeImport) {
		if inScope[node.File] {
			imports = append(imports, node)
		}
	}

	workCh := make(chan graph.Node)
	var wg sync.WaitGroup
	for w := 0; w < r.workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for imp := range workCh {
				r.resolveImport(imp)
			}
		}()
	}

	var dispatchErr error
	for _, imp := range imports {
		select {
		case <-ctx.Done():
			dispatchErr = ctx.Err()
		case workCh <- imp:
			continue
		}
		break
	}
	close(workCh)
	wg.Wait()
	return dispatchErr
}

// resolveImport handles one import expression: wildcard form links every
// exported symbol of the module, qualified form links the single winner.
// Every successful resolution is cached; misses become diagnostics,
// never errors.
func (r *Resolver) resolveImport(imp graph.Node) {
	expr := imp.Name

	if cached, ok := r.cache.get(expr); ok && r.targetsAlive(cached) {
		for _, target := range cached {
			r.addEdge(imp.ID, target.id, graph.EdgeImports, 1.0)
			r.addToScope(imp.File, target.id)
		}
		return
	}

	if module, ok := strings.CutSuffix(expr, ".*"); ok {
		var resolved []cachedTarget
		for _, id := range r.idx.ModuleDeclarations(module) {
			target, found := r.store.Node(id)
			if !found || target.Kind == graph.NodeModule {
				continue
			}
			r.addEdge(imp.ID, id, graph.EdgeImports, 1.0)
			r.addToScope(imp.File, id)
			resolved = append(resolved, cachedTarget{id: id, file: target.File})
		}
		if len(resolved) == 0 {
			r.sink.RecordUnresolved(DiagUnresolvedImport, expr, imp, "module not in ingested set")
			return
		}
		r.cache.put(expr, resolved)
		return
	}

	id, ok := r.idx.Qualified(expr)
	if !ok {
		r.sink.RecordUnresolved(DiagUnresolvedImport, expr, imp, "no declaration for qualified name")
		return
	}

	r.addEdge(imp.ID, id, graph.EdgeImports, 1.0)
	r.addToScope(imp.File, id)
	if target, found := r.store.Node(id); found {
		r.cache.put(expr, []cachedTarget{{id: id, file: target.File}})
	}
}

// targetsAlive reports whether every cached target still exists in the
// store. Retraction hooks keep the cache consistent; this guards the
// window between a retraction and its hook.
func (r *Resolver) targetsAlive(targets []cachedTarget) bool {
	for _, target := range targets {
		if _, alive := r.store.Node(target.id); !alive {
			return false
		}
	}
	return true
}

func (r *Resolver) addToScope(file string, id graph.NodeID) {
	r.scopeMu.Lock()
	defer r.scopeMu.Unlock()
	scope := r.importScope[file]
	if scope == nil {
		scope = make(map[graph.NodeID]bool)
		r.importScope[file] = scope
	}
	scope[id] = true
}

func (r *Resolver) inScopeOf(file string, id graph.NodeID) bool {
	r.scopeMu.Lock()
	defer r.scopeMu.Unlock()
	return r.importScope[file][id]
}

// resolveCalls links Call nodes in scope to their best candidate
// definition. Same-file definitions win outright; cross-file candidates
// are scored and the tie broken by node ID so repeated passes agree.
func (r *Resolver) resolveCalls(inScope map[string]bool) {
	for _, call := range r.store.NodesByKind(graph.NodeCall) {
		if !inScope[call.File] {
			continue
		}
		r.resolveCall(call)
	}
}

func (r *Resolver) resolveCall(call graph.Node) {
	var candidates []graph.Node
	for _, id := range r.idx.ByName(call.Name) {
		node, ok := r.store.Node(id)
		if !ok {
			continue
		}
		if node.Kind == graph.NodeFunction || node.Kind == graph.NodeMethod {
			candidates = append(candidates, node)
		}
	}
	if len(candidates) == 0 {
		return
	}

	best := candidates[0]
	bestScore := scoreCandidate(call, best, r.inScopeOf(call.File, best.ID))
	for _, cand := range candidates[1:] {
		score := scoreCandidate(call, cand, r.inScopeOf(call.File, cand.ID))
		if score > bestScore || (score == bestScore && cand.ID < best.ID) {
			best, bestScore = cand, score
		}
	}

	r.addEdge(call.ID, best.ID, graph.EdgeCalls, bestScore)

	if len(candidates) > 1 && bestScore < ambiguityFloor {
		r.sink.RecordUnresolved(DiagAmbiguousRef, call.Name, call, "multiple weak candidates")
	}
}

// linkCrossLanguage emits References edges between declarations in
// different languages whose canonicalized names match unambiguously.
func (r *Resolver) linkCrossLanguage(inScope map[string]bool) {
	for _, kind := range []graph.NodeKind{graph.NodeFunction, graph.NodeMethod, graph.NodeClass} {
		for _, node := range r.store.NodesByKind(kind) {
			if !inScope[node.File] {
				continue
			}
			r.linkCanonical(node)
		}
	}
}

func (r *Resolver) linkCanonical(node graph.Node) {
	// Ambiguity is judged over the whole canonical bucket, not just the
	// other-language candidates: a same-language twin of the match makes
	// every pairing ambiguous, so no edge may be emitted.
	var match graph.Node
	others := 0
	for _, id := range r.idx.ByCanonicalName(CanonicalName(node.Name)) {
		other, ok := r.store.Node(id)
		if !ok || other.ID == node.ID || !other.Kind.IsDeclaration() {
			continue
		}
		others++
		if other.Language != node.Language {
			match = other
		}
	}
	if others != 1 || match.ID == "" {
		return
	}

	from, to := node.ID, match.ID
	if to < from {
		from, to = to, from
	}
	r.addEdge(from, to, graph.EdgeReferences, 0.6)
}

// addEdge writes a resolver-origin edge, logging rather than failing on a
// structural violation: the resolver only links IDs it just read from the
// store, so a dangling write here is a defect worth surfacing.
func (r *Resolver) addEdge(from, to graph.NodeID, kind graph.EdgeKind, confidence float64) {
	err := r.store.AddEdge(graph.NewEdge(from, to, kind, confidence, graph.OriginResolver))
	if err != nil {
		log.Printf("Warning: resolver edge %s -> %s (%s) rejected: %v", from, to, kind, err)
	}
}

// declarationsIn returns a file's nodes of one kind, sorted by span for
// deterministic processing.
func (r *Resolver) declarationsIn(file string, kind graph.NodeKind) []graph.Node {
	var out []graph.Node
	for _, node := range r.store.NodesInFile(file) {
		if node.Kind == kind {
			out = append(out, node)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Span.StartByte < out[j].Span.StartByte })
	return out
}
