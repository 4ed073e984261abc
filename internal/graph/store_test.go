package graph

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Test Plan for Store:
// - AddNode rejects duplicate (file, span, kind) with DuplicateNodeError
// - AddEdge rejects missing endpoints with DanglingReferenceError
// - RemoveFile retracts all of a file's nodes and every edge touching them
// - ReingestFile replaces a file's contents atomically and fires hooks
// - Referential integrity holds after every mutation
// - Concurrent per-file ingestion is safe

func testNode(name string, kind NodeKind, file string, startByte int) Node {
	span := Span{
		StartByte: startByte,
		EndByte:   startByte + 10,
		StartLine: startByte/10 + 1,
		EndLine:   startByte/10 + 1,
	}
	return NewNode(kind, name, "python", file, span)
}

// assertIntegrity checks that every edge endpoint exists in the store.
func assertIntegrity(t *testing.T, s *Store) {
	t.Helper()
	for _, e := range s.Edges() {
		_, fromOK := s.Node(e.From)
		_, toOK := s.Node(e.To)
		assert.True(t, fromOK, "edge %s has dangling source", e.ID())
		assert.True(t, toOK, "edge %s has dangling target", e.ID())
	}
}

func TestStore_AddNode_Duplicate(t *testing.T) {
	t.Parallel()

	s := NewStore()
	n := testNode("get_user", NodeFunction, "svc/user.py", 0)

	id, err := s.AddNode(n)
	require.NoError(t, err)
	assert.Equal(t, n.ID, id)

	_, err = s.AddNode(n)
	require.Error(t, err)
	assert.True(t, IsDuplicateNode(err))
}

func TestStore_AddEdge_DanglingReference(t *testing.T) {
	t.Parallel()

	s := NewStore()
	a := testNode("a", NodeFunction, "a.py", 0)
	_, err := s.AddNode(a)
	require.NoError(t, err)

	err = s.AddEdge(NewEdge(a.ID, "missing", EdgeCalls, 1.0, OriginIngest))
	require.Error(t, err)
	assert.True(t, IsDanglingReference(err))

	err = s.AddEdge(NewEdge("missing", a.ID, EdgeCalls, 1.0, OriginIngest))
	require.Error(t, err)
	assert.True(t, IsDanglingReference(err))

	assert.Empty(t, s.Edges())
}

func TestStore_AddEdge_ReplacesExisting(t *testing.T) {
	t.Parallel()

	s := NewStore()
	a := testNode("a", NodeCall, "a.py", 0)
	b := testNode("b", NodeFunction, "b.py", 0)
	_, err := s.AddNode(a)
	require.NoError(t, err)
	_, err = s.AddNode(b)
	require.NoError(t, err)

	require.NoError(t, s.AddEdge(NewEdge(a.ID, b.ID, EdgeCalls, 0.6, OriginResolver)))
	require.NoError(t, s.AddEdge(NewEdge(a.ID, b.ID, EdgeCalls, 0.8, OriginResolver)))

	edges := s.Edges()
	require.Len(t, edges, 1, "same (from, to, kind) must not duplicate")
	assert.Equal(t, 0.8, edges[0].Confidence)
}

func TestStore_RemoveFile_RetractionCompleteness(t *testing.T) {
	t.Parallel()

	s := NewStore()
	a := testNode("a", NodeFunction, "a.py", 0)
	b := testNode("b", NodeFunction, "b.py", 0)
	c := testNode("c", NodeCall, "b.py", 20)

	for _, n := range []Node{a, b, c} {
		_, err := s.AddNode(n)
		require.NoError(t, err)
	}
	require.NoError(t, s.AddEdge(NewEdge(c.ID, a.ID, EdgeCalls, 1.0, OriginResolver)))
	require.NoError(t, s.AddEdge(NewEdge(b.ID, a.ID, EdgeReferences, 0.6, OriginResolver)))

	retracted := s.RemoveFile("a.py")
	assert.Equal(t, []NodeID{a.ID}, retracted)

	// No edge may reference a retracted node.
	assert.Empty(t, s.Edges())
	assert.Empty(t, s.EdgesTo(a.ID))
	assert.Empty(t, s.EdgesFrom(c.ID))
	assertIntegrity(t, s)

	// b.py nodes survive.
	assert.Len(t, s.NodesInFile("b.py"), 2)
}

func TestStore_RemoveFile_FiresHooks(t *testing.T) {
	t.Parallel()

	s := NewStore()
	n := testNode("f", NodeFunction, "mod.py", 0)
	_, err := s.AddNode(n)
	require.NoError(t, err)

	var gotFile string
	var gotIDs []NodeID
	s.OnRetract(func(file string, retracted []NodeID) {
		gotFile = file
		gotIDs = retracted
	})

	s.RemoveFile("mod.py")
	assert.Equal(t, "mod.py", gotFile)
	assert.Equal(t, []NodeID{n.ID}, gotIDs)
}

func TestStore_ReingestFile_Replaces(t *testing.T) {
	t.Parallel()

	s := NewStore()
	old := testNode("old_name", NodeFunction, "mod.py", 0)
	_, err := s.AddNode(old)
	require.NoError(t, err)

	renamed := testNode("new_name", NodeFunction, "mod.py", 5)
	retracted, err := s.ReingestFile(FileBatch{File: "mod.py", Nodes: []Node{renamed}})
	require.NoError(t, err)
	assert.Equal(t, []NodeID{old.ID}, retracted)

	nodes := s.NodesInFile("mod.py")
	require.Len(t, nodes, 1)
	assert.Equal(t, "new_name", nodes[0].Name)
	assertIntegrity(t, s)
}

func TestStore_ReingestFile_UnchangedSpanKeepsID(t *testing.T) {
	t.Parallel()

	s := NewStore()
	n := testNode("stable", NodeFunction, "mod.py", 0)
	_, err := s.AddNode(n)
	require.NoError(t, err)

	same := testNode("stable", NodeFunction, "mod.py", 0)
	_, err = s.ReingestFile(FileBatch{File: "mod.py", Nodes: []Node{same}})
	require.NoError(t, err)

	got, ok := s.Node(n.ID)
	require.True(t, ok, "unchanged span must keep its node ID across re-ingestion")
	assert.Equal(t, "stable", got.Name)
}

func TestStore_Queries(t *testing.T) {
	t.Parallel()

	s := NewStore()
	fn := testNode("handler", NodeFunction, "api.py", 0)
	cls := testNode("Handler", NodeClass, "api.py", 20)
	imp := testNode("svc.handler", NodeImport, "main.py", 0)
	for _, n := range []Node{fn, cls, imp} {
		_, err := s.AddNode(n)
		require.NoError(t, err)
	}

	assert.Len(t, s.NodesByKind(NodeFunction), 1)
	assert.Len(t, s.NodesByKind(NodeImport), 1)
	assert.Len(t, s.NodesByName("handler"), 1)
	assert.Equal(t, []string{"api.py", "main.py"}, s.Files())

	stats := s.Stats()
	assert.Equal(t, 3, stats.Nodes)
	assert.Equal(t, 2, stats.Files)
}

func TestStore_RetractResolvedEdges(t *testing.T) {
	t.Parallel()

	s := NewStore()
	caller := testNode("call_site", NodeCall, "api/handlers.py", 0)
	oldTarget := testNode("get_user", NodeFunction, "services/util.py", 0)
	ingestPeer := testNode("helper", NodeFunction, "api/handlers.py", 20)
	for _, n := range []Node{caller, oldTarget, ingestPeer} {
		_, err := s.AddNode(n)
		require.NoError(t, err)
	}
	require.NoError(t, s.AddEdge(NewEdge(caller.ID, oldTarget.ID, EdgeCalls, 0.5, OriginResolver)))
	require.NoError(t, s.AddEdge(NewEdge(caller.ID, ingestPeer.ID, EdgeCalls, 1.0, OriginIngest)))
	require.NoError(t, s.AddEdge(NewEdge(oldTarget.ID, ingestPeer.ID, EdgeReferences, 0.6, OriginResolver)))

	removed := s.RetractResolvedEdges("api/handlers.py")
	assert.Equal(t, 1, removed)

	edges := s.Edges()
	require.Len(t, edges, 2)
	for _, e := range edges {
		if e.From == caller.ID {
			assert.Equal(t, OriginIngest, e.Origin, "ingest edges must survive resolver retraction")
		}
	}
	// Edges originating outside the given files are untouched.
	assert.Len(t, s.EdgesFrom(oldTarget.ID), 1)
	assertIntegrity(t, s)
}

func TestStore_ConcurrentIngestion(t *testing.T) {
	t.Parallel()

	s := NewStore()
	const files = 8
	const perFile = 25

	var wg sync.WaitGroup
	for f := 0; f < files; f++ {
		wg.Add(1)
		go func(f int) {
			defer wg.Done()
			file := fmt.Sprintf("pkg/file%d.py", f)
			for i := 0; i < perFile; i++ {
				n := testNode(fmt.Sprintf("fn_%d_%d", f, i), NodeFunction, file, i*10)
				if _, err := s.AddNode(n); err != nil {
					t.Errorf("AddNode: %v", err)
					return
				}
			}
		}(f)
	}
	wg.Wait()

	assert.Equal(t, files*perFile, s.Stats().Nodes)
	assert.Len(t, s.Files(), files)
}

func TestStore_ConcurrentEdgeWritesDuringRetraction(t *testing.T) {
	t.Parallel()

	s := NewStore()
	src := testNode("caller", NodeCall, "stable.py", 0)
	_, err := s.AddNode(src)
	require.NoError(t, err)
	target := testNode("callee", NodeFunction, "churn.py", 0)

	// One goroutine churns churn.py in and out of the store while another
	// hammers edge writes at its node. An AddEdge that passes its endpoint
	// check must land before any interleaved retraction, so the final
	// RemoveFile sweeps every edge and integrity holds throughout.
	const rounds = 200
	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		for i := 0; i < rounds; i++ {
			s.RemoveFile("churn.py")
			if _, err := s.AddNode(target); err != nil {
				t.Errorf("AddNode: %v", err)
				return
			}
		}
	}()
	go func() {
		defer wg.Done()
		for i := 0; i < rounds; i++ {
			// Rejected writes are expected whenever churn.py is out.
			_ = s.AddEdge(NewEdge(src.ID, target.ID, EdgeCalls, 1.0, OriginResolver))
		}
	}()
	wg.Wait()

	assertIntegrity(t, s)
	s.RemoveFile("churn.py")
	assert.Empty(t, s.EdgesFrom(src.ID))
	assertIntegrity(t, s)
}
