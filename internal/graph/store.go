package graph

import (
	"sort"
	"sync"
)

// RetractionHook is invoked after a file's nodes and edges are removed from
// the store. Derived structures (resolver indices, caches) subscribe so they
// can invalidate entries keyed by the file or its node IDs.
type RetractionHook func(file string, retracted []NodeID)

// Store is the authoritative, mutable holder of nodes and edges. All other
// components read or write through it. Nodes are exclusively owned by the
// store; queries return copies.
//
// Node state and edge state carry separate locks: during ingestion files
// only write nodes, and during resolution workers only write edges, so the
// two phases contend only on the node read path.
type Store struct {
	mu        sync.RWMutex
	nodes     map[NodeID]Node
	fileIndex map[string][]NodeID
	kindIndex map[NodeKind][]NodeID
	nameIndex map[string][]NodeID

	edgeMu   sync.RWMutex
	edges    map[string]Edge // keyed by Edge.ID() so re-resolution is idempotent
	outgoing map[NodeID][]string
	incoming map[NodeID][]string

	hookMu sync.Mutex
	hooks  []RetractionHook
}

// NewStore creates an empty graph store.
func NewStore() *Store {
	return &Store{
		nodes:     make(map[NodeID]Node),
		fileIndex: make(map[string][]NodeID),
		kindIndex: make(map[NodeKind][]NodeID),
		nameIndex: make(map[string][]NodeID),
		edges:     make(map[string]Edge),
		outgoing:  make(map[NodeID][]string),
		incoming:  make(map[NodeID][]string),
	}
}

// OnRetract registers a hook fired whenever a file's nodes are retracted.
func (s *Store) OnRetract(hook RetractionHook) {
	s.hookMu.Lock()
	defer s.hookMu.Unlock()
	s.hooks = append(s.hooks, hook)
}

// AddNode inserts a node. It fails with DuplicateNodeError if a node with
// the same (file, span, kind) already exists; re-ingesting a changed file
// goes through ReingestFile, which retracts the old nodes first.
func (s *Store) AddNode(n Node) (NodeID, error) {
	if n.ID == "" {
		n.ID = ComputeNodeID(n.File, n.Span, n.Kind)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.nodes[n.ID]; exists {
		return "", &DuplicateNodeError{ID: n.ID, File: n.File, Span: n.Span, Kind: n.Kind}
	}

	s.nodes[n.ID] = n
	s.fileIndex[n.File] = append(s.fileIndex[n.File], n.ID)
	s.kindIndex[n.Kind] = append(s.kindIndex[n.Kind], n.ID)
	s.nameIndex[n.Name] = append(s.nameIndex[n.Name], n.ID)
	return n.ID, nil
}

// AddEdge inserts an edge. Both endpoints must exist; otherwise it fails
// with DanglingReferenceError. Adding an edge that already exists replaces
// it, so confidence updates from a re-resolution pass take effect.
//
// The node lock is held across the insert so a concurrent RemoveFile
// cannot retract an endpoint between the existence check and the write.
func (s *Store) AddEdge(e Edge) error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if _, ok := s.nodes[e.From]; !ok {
		return &DanglingReferenceError{Edge: e, Missing: e.From}
	}
	if _, ok := s.nodes[e.To]; !ok {
		return &DanglingReferenceError{Edge: e, Missing: e.To}
	}

	id := e.ID()

	s.edgeMu.Lock()
	defer s.edgeMu.Unlock()

	if _, exists := s.edges[id]; !exists {
		s.outgoing[e.From] = append(s.outgoing[e.From], id)
		s.incoming[e.To] = append(s.incoming[e.To], id)
	}
	s.edges[id] = e
	return nil
}

// RemoveFile retracts every node owned by the file and every edge touching
// those nodes. It returns the retracted node ID set so dependents can react,
// and fires registered retraction hooks.
func (s *Store) RemoveFile(file string) []NodeID {
	s.mu.Lock()
	retracted := s.fileIndex[file]
	delete(s.fileIndex, file)
	for _, id := range retracted {
		n := s.nodes[id]
		delete(s.nodes, id)
		s.kindIndex[n.Kind] = removeID(s.kindIndex[n.Kind], id)
		s.nameIndex[n.Name] = removeID(s.nameIndex[n.Name], id)
		if len(s.nameIndex[n.Name]) == 0 {
			delete(s.nameIndex, n.Name)
		}
	}
	s.mu.Unlock()

	if len(retracted) > 0 {
		removed := make(map[NodeID]bool, len(retracted))
		for _, id := range retracted {
			removed[id] = true
		}
		s.retractEdges(removed)
	}

	s.hookMu.Lock()
	hooks := append([]RetractionHook(nil), s.hooks...)
	s.hookMu.Unlock()
	for _, hook := range hooks {
		hook(file, retracted)
	}

	return retracted
}

// retractEdges removes every edge with an endpoint in the removed set.
func (s *Store) retractEdges(removed map[NodeID]bool) {
	s.edgeMu.Lock()
	defer s.edgeMu.Unlock()

	for id, e := range s.edges {
		if !removed[e.From] && !removed[e.To] {
			continue
		}
		delete(s.edges, id)
		s.outgoing[e.From] = removeString(s.outgoing[e.From], id)
		if len(s.outgoing[e.From]) == 0 {
			delete(s.outgoing, e.From)
		}
		s.incoming[e.To] = removeString(s.incoming[e.To], id)
		if len(s.incoming[e.To]) == 0 {
			delete(s.incoming, e.To)
		}
	}
	for id := range removed {
		delete(s.outgoing, id)
		delete(s.incoming, id)
	}
}

// RetractResolvedEdges removes every resolver-origin edge whose source
// node is owned by one of the given files, returning the removed count.
// A scoped re-resolution pass retracts its prior conclusions first so a
// changed disambiguation replaces the old winner instead of accreting a
// second edge beside it.
func (s *Store) RetractResolvedEdges(files ...string) int {
	s.mu.RLock()
	from := make(map[NodeID]bool)
	for _, file := range files {
		for _, id := range s.fileIndex[file] {
			from[id] = true
		}
	}
	s.mu.RUnlock()
	if len(from) == 0 {
		return 0
	}

	s.edgeMu.Lock()
	defer s.edgeMu.Unlock()
	removed := 0
	for id, e := range s.edges {
		if e.Origin != OriginResolver || !from[e.From] {
			continue
		}
		delete(s.edges, id)
		s.outgoing[e.From] = removeString(s.outgoing[e.From], id)
		s.incoming[e.To] = removeString(s.incoming[e.To], id)
		removed++
	}
	return removed
}

// ReingestFile atomically replaces a file's contents: the previous nodes are
// retracted (with hooks fired), then the batch is inserted. This is the
// explicit replace-on-reingest path; AddNode alone rejects duplicates.
func (s *Store) ReingestFile(batch FileBatch) ([]NodeID, error) {
	retracted := s.RemoveFile(batch.File)
	for _, n := range batch.Nodes {
		if _, err := s.AddNode(n); err != nil {
			return retracted, err
		}
	}
	for _, e := range batch.Edges {
		if err := s.AddEdge(e); err != nil {
			return retracted, err
		}
	}
	return retracted, nil
}

// Node returns a node by ID.
func (s *Store) Node(id NodeID) (Node, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n, ok := s.nodes[id]
	return n, ok
}

// NodesByKind returns all nodes of the given kind, ordered by ID so callers
// iterate deterministically.
func (s *Store) NodesByKind(kind NodeKind) []Node {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.collect(s.kindIndex[kind])
}

// NodesByName returns all nodes with the given raw name, ordered by ID.
func (s *Store) NodesByName(name string) []Node {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.collect(s.nameIndex[name])
}

// NodesInFile returns all nodes owned by the file, ordered by ID.
func (s *Store) NodesInFile(file string) []Node {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.collect(s.fileIndex[file])
}

// Files returns every file path with at least one node, sorted.
func (s *Store) Files() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	files := make([]string, 0, len(s.fileIndex))
	for file := range s.fileIndex {
		files = append(files, file)
	}
	sort.Strings(files)
	return files
}

// FileIndex returns a copy of the file index: file path to owned node IDs.
func (s *Store) FileIndex() map[string][]NodeID {
	s.mu.RLock()
	defer s.mu.RUnlock()
	index := make(map[string][]NodeID, len(s.fileIndex))
	for file, ids := range s.fileIndex {
		sorted := append([]NodeID(nil), ids...)
		sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })
		index[file] = sorted
	}
	return index
}

// EdgesFrom returns the outgoing edges of a node, ordered by edge ID.
func (s *Store) EdgesFrom(id NodeID) []Edge {
	s.edgeMu.RLock()
	defer s.edgeMu.RUnlock()
	return s.collectEdges(s.outgoing[id])
}

// EdgesTo returns the incoming edges of a node, ordered by edge ID.
func (s *Store) EdgesTo(id NodeID) []Edge {
	s.edgeMu.RLock()
	defer s.edgeMu.RUnlock()
	return s.collectEdges(s.incoming[id])
}

// Edges returns a copy of every edge, ordered by edge ID.
func (s *Store) Edges() []Edge {
	s.edgeMu.RLock()
	defer s.edgeMu.RUnlock()
	ids := make([]string, 0, len(s.edges))
	for id := range s.edges {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	edges := make([]Edge, 0, len(ids))
	for _, id := range ids {
		edges = append(edges, s.edges[id])
	}
	return edges
}

// Nodes returns a copy of every node, ordered by ID.
func (s *Store) Nodes() []Node {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ids := make([]NodeID, 0, len(s.nodes))
	for id := range s.nodes {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	nodes := make([]Node, 0, len(ids))
	for _, id := range ids {
		nodes = append(nodes, s.nodes[id])
	}
	return nodes
}

// Stats summarizes the store for logs and the CLI.
type Stats struct {
	Nodes int
	Edges int
	Files int
}

// Stats returns current node, edge and file counts.
func (s *Store) Stats() Stats {
	s.mu.RLock()
	nodes := len(s.nodes)
	files := len(s.fileIndex)
	s.mu.RUnlock()

	s.edgeMu.RLock()
	edges := len(s.edges)
	s.edgeMu.RUnlock()

	return Stats{Nodes: nodes, Edges: edges, Files: files}
}

// collect resolves IDs to node copies, sorted by ID. Callers hold s.mu.
func (s *Store) collect(ids []NodeID) []Node {
	sorted := append([]NodeID(nil), ids...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })
	nodes := make([]Node, 0, len(sorted))
	for _, id := range sorted {
		if n, ok := s.nodes[id]; ok {
			nodes = append(nodes, n)
		}
	}
	return nodes
}

// collectEdges resolves edge IDs to edge copies, sorted. Callers hold edgeMu.
func (s *Store) collectEdges(ids []string) []Edge {
	sorted := append([]string(nil), ids...)
	sort.Strings(sorted)
	edges := make([]Edge, 0, len(sorted))
	for _, id := range sorted {
		if e, ok := s.edges[id]; ok {
			edges = append(edges, e)
		}
	}
	return edges
}

func removeID(ids []NodeID, id NodeID) []NodeID {
	out := ids[:0]
	for _, candidate := range ids {
		if candidate != id {
			out = append(out, candidate)
		}
	}
	return out
}

func removeString(ids []string, id string) []string {
	out := ids[:0]
	for _, candidate := range ids {
		if candidate != id {
			out = append(out, candidate)
		}
	}
	return out
}
