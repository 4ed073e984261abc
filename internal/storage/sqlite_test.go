package storage

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"codegraph/internal/graph"
	"codegraph/internal/resolver"
)

// Test Plan for snapshot persistence:
// - A saved snapshot round-trips nodes, edges, and diagnostics
// - Save replaces the previous snapshot contents
// - Load rebuilds a store that passes referential integrity

func buildStore(t *testing.T) *graph.Store {
	t.Helper()
	s := graph.NewStore()

	fn := graph.NewNode(graph.NodeFunction, "get_user", "python", "svc/user.py",
		graph.Span{StartByte: 0, EndByte: 50, StartLine: 1, EndLine: 4, StartColumn: 1, EndColumn: 1})
	fn.Signature = "get_user(user_id)"
	fn.Arity = 1
	_, err := s.AddNode(fn)
	require.NoError(t, err)

	call := graph.NewNode(graph.NodeCall, "get_user", "python", "api/handlers.py",
		graph.Span{StartByte: 10, EndByte: 30, StartLine: 2, EndLine: 2})
	call.Arity = 1
	_, err = s.AddNode(call)
	require.NoError(t, err)

	require.NoError(t, s.AddEdge(graph.NewEdge(call.ID, fn.ID, graph.EdgeCalls, 0.75, graph.OriginResolver)))
	return s
}

func TestSnapshot_RoundTrip(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "graph.db")
	snap, err := Open(path)
	require.NoError(t, err)
	defer snap.Close()

	store := buildStore(t)
	diags := []resolver.Diagnostic{{
		Kind:   resolver.DiagUnresolvedImport,
		Symbol: "vendored.thing",
		File:   "api/handlers.py",
		Line:   1,
		Detail: "no declaration for qualified name",
	}}
	require.NoError(t, snap.Save(store, diags))

	loaded, loadedDiags, err := snap.Load()
	require.NoError(t, err)

	assert.Equal(t, store.Nodes(), loaded.Nodes())
	assert.Equal(t, store.Edges(), loaded.Edges())
	assert.Equal(t, diags, loadedDiags)

	for _, e := range loaded.Edges() {
		_, fromOK := loaded.Node(e.From)
		_, toOK := loaded.Node(e.To)
		assert.True(t, fromOK && toOK)
	}
}

func TestSnapshot_SaveReplaces(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "graph.db")
	snap, err := Open(path)
	require.NoError(t, err)
	defer snap.Close()

	require.NoError(t, snap.Save(buildStore(t), nil))

	// Second save with a smaller store must not leak old rows.
	small := graph.NewStore()
	n := graph.NewNode(graph.NodeModule, "m", "python", "m.py", graph.Span{EndByte: 5, StartLine: 1, EndLine: 1})
	_, err = small.AddNode(n)
	require.NoError(t, err)
	require.NoError(t, snap.Save(small, nil))

	loaded, diags, err := snap.Load()
	require.NoError(t, err)
	assert.Equal(t, 1, loaded.Stats().Nodes)
	assert.Equal(t, 0, loaded.Stats().Edges)
	assert.Empty(t, diags)
}
