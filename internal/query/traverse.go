package query

import (
	"errors"
	"fmt"
	"sort"

	dgraph "github.com/dominikbraun/graph"

	"codegraph/internal/graph"
)

// ErrNoPath is returned when no directed path connects two nodes.
var ErrNoPath = errors.New("no path between nodes")

// snapshot copies the current node/edge set into a traversable directed
// graph. Queries walk the copy, so a concurrent update cannot tear a
// traversal.
func (s *Surface) snapshot() (dgraph.Graph[string, string], error) {
	g := dgraph.New(dgraph.StringHash, dgraph.Directed())

	for _, node := range s.store.Nodes() {
		if err := g.AddVertex(string(node.ID)); err != nil && !errors.Is(err, dgraph.ErrVertexAlreadyExists) {
			return nil, err
		}
	}
	for _, edge := range s.store.Edges() {
		err := g.AddEdge(string(edge.From), string(edge.To))
		if err != nil && !errors.Is(err, dgraph.ErrEdgeAlreadyExists) {
			return nil, err
		}
	}
	return g, nil
}

// References returns every node holding an edge that targets id: the
// predecessor set of the traversal snapshot.
func (s *Surface) References(id graph.NodeID) ([]graph.Node, error) {
	g, err := s.snapshot()
	if err != nil {
		return nil, fmt.Errorf("building traversal snapshot: %w", err)
	}

	preds, err := g.PredecessorMap()
	if err != nil {
		return nil, err
	}

	var out []graph.Node
	for from := range preds[string(id)] {
		if node, ok := s.store.Node(graph.NodeID(from)); ok {
			out = append(out, node)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// Path returns the shortest directed path between two nodes, as node
// IDs from source to target inclusive.
func (s *Surface) Path(from, to graph.NodeID) ([]graph.NodeID, error) {
	g, err := s.snapshot()
	if err != nil {
		return nil, fmt.Errorf("building traversal snapshot: %w", err)
	}

	hops, err := dgraph.ShortestPath(g, string(from), string(to))
	if err != nil {
		if errors.Is(err, dgraph.ErrTargetNotReachable) {
			return nil, ErrNoPath
		}
		return nil, err
	}

	out := make([]graph.NodeID, len(hops))
	for i, hop := range hops {
		out[i] = graph.NodeID(hop)
	}
	return out, nil
}
