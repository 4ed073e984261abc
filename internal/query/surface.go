// Package query is the read surface over the resolved graph: symbol
// resolution, edge walks, reference and path queries, and the
// diagnostics stream. All operations are read-only snapshots; resolution
// is never triggered as a side effect.
package query

import (
	"fmt"
	"sort"

	"codegraph/internal/graph"
	"codegraph/internal/resolver"
)

// Match is one resolution candidate with its confidence.
type Match struct {
	Node       graph.Node `json:"node"`
	Confidence float64    `json:"confidence"`
}

// Surface exposes the read API consumed by the tool layer.
type Surface struct {
	store  *graph.Store
	res    *resolver.Resolver
	search *symbolIndex
}

// NewSurface creates a query surface over the store and resolver.
func NewSurface(store *graph.Store, res *resolver.Resolver) (*Surface, error) {
	search, err := newSymbolIndex()
	if err != nil {
		return nil, fmt.Errorf("creating symbol index: %w", err)
	}
	return &Surface{store: store, res: res, search: search}, nil
}

// Refresh rebuilds the symbol search index from the store. Called after
// ingestion or an incremental update, never implicitly by a query.
func (s *Surface) Refresh() error {
	return s.search.rebuild(s.store)
}

// Close releases the search index.
func (s *Surface) Close() error {
	return s.search.close()
}

// Resolve maps a symbol query to candidate nodes. An exact qualified
// match returns alone at confidence 1.0; otherwise fuzzy search returns
// the best available candidates with scores in (0, 1). A query over an
// unresolved name degrades to its candidates, never to an error.
func (s *Surface) Resolve(symbolQuery string, limit int) ([]Match, error) {
	if limit <= 0 {
		limit = 10
	}

	if id, ok := s.res.Indexes().Qualified(symbolQuery); ok {
		if node, found := s.store.Node(id); found {
			return []Match{{Node: node, Confidence: 1.0}}, nil
		}
	}

	hits, err := s.search.search(symbolQuery, limit)
	if err != nil {
		return nil, fmt.Errorf("symbol search: %w", err)
	}

	matches := make([]Match, 0, len(hits))
	for _, hit := range hits {
		if node, found := s.store.Node(hit.id); found {
			matches = append(matches, Match{Node: node, Confidence: hit.score})
		}
	}
	sort.SliceStable(matches, func(i, j int) bool {
		if matches[i].Confidence != matches[j].Confidence {
			return matches[i].Confidence > matches[j].Confidence
		}
		return matches[i].Node.ID < matches[j].Node.ID
	})
	return matches, nil
}

// Node returns one node by ID.
func (s *Surface) Node(id graph.NodeID) (graph.Node, bool) {
	return s.store.Node(id)
}

// EdgesFrom returns a node's outgoing edges, optionally filtered by kind.
func (s *Surface) EdgesFrom(id graph.NodeID, kinds ...graph.EdgeKind) []graph.Edge {
	return filterEdges(s.store.EdgesFrom(id), kinds)
}

// EdgesTo returns a node's incoming edges, optionally filtered by kind.
func (s *Surface) EdgesTo(id graph.NodeID, kinds ...graph.EdgeKind) []graph.Edge {
	return filterEdges(s.store.EdgesTo(id), kinds)
}

func filterEdges(edges []graph.Edge, kinds []graph.EdgeKind) []graph.Edge {
	if len(kinds) == 0 {
		return edges
	}
	want := make(map[graph.EdgeKind]bool, len(kinds))
	for _, k := range kinds {
		want[k] = true
	}
	out := edges[:0]
	for _, e := range edges {
		if want[e.Kind] {
			out = append(out, e)
		}
	}
	return out
}

// MatchRoute resolves a concrete request path to matching Route nodes.
func (s *Surface) MatchRoute(method, path string) []graph.Node {
	return s.res.MatchRoute(method, path)
}

// Diagnostics returns the accumulated resolution gaps.
func (s *Surface) Diagnostics() []resolver.Diagnostic {
	return s.res.Diagnostics().All()
}

// Stats returns store-level counts.
func (s *Surface) Stats() graph.Stats {
	return s.store.Stats()
}
