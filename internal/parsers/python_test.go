package parsers

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"codegraph/internal/graph"
)

// Test Plan for the Python producer:
// - Module, class, function, method, variable nodes with populated spans
// - Import nodes carry normalized dotted expressions, wildcard as m.*
// - Same-file inheritance and call edges at confidence 1.0
// - Verb decorators produce Route nodes wired to the decorated function
// - Node IDs are stable across repeated parses of the same source

const pythonSample = `import os
from services.db import connect
from helpers import *

MAX_SIZE = 10

class Base:
    def save(self):
        pass

class User(Base):
    def save(self):
        connect()

@app.get("/users/{id}")
def get_user(user_id):
    return find(user_id)

def find(x):
    return x
`

func parsePython(t *testing.T) *graph.FileBatch {
	t.Helper()
	batch, err := NewPythonParser().Parse(context.Background(), []byte(pythonSample), "backend/api.py")
	require.NoError(t, err)
	require.NotNil(t, batch)
	require.Equal(t, "backend/api.py", batch.File)
	return batch
}

func findNodes(batch *graph.FileBatch, kind graph.NodeKind) []graph.Node {
	var out []graph.Node
	for _, n := range batch.Nodes {
		if n.Kind == kind {
			out = append(out, n)
		}
	}
	return out
}

func findNode(t *testing.T, batch *graph.FileBatch, kind graph.NodeKind, name string) graph.Node {
	t.Helper()
	for _, n := range batch.Nodes {
		if n.Kind == kind && n.Name == name {
			return n
		}
	}
	t.Fatalf("no %s node named %q", kind, name)
	return graph.Node{}
}

func hasEdge(batch *graph.FileBatch, from, to graph.NodeID, kind graph.EdgeKind) bool {
	for _, e := range batch.Edges {
		if e.From == from && e.To == to && e.Kind == kind {
			return true
		}
	}
	return false
}

func TestPythonParser_Declarations(t *testing.T) {
	t.Parallel()

	batch := parsePython(t)

	module := findNode(t, batch, graph.NodeModule, "api")
	assert.Equal(t, "python", module.Language)
	assert.Equal(t, 1, module.Span.StartLine)

	findNode(t, batch, graph.NodeClass, "Base")
	user := findNode(t, batch, graph.NodeClass, "User")
	assert.Equal(t, "User(Base)", user.Signature)

	assert.Len(t, findNodes(batch, graph.NodeMethod), 2)

	getUser := findNode(t, batch, graph.NodeFunction, "get_user")
	assert.Equal(t, 1, getUser.Arity)
	assert.Equal(t, "get_user(user_id)", getUser.Signature)

	findNode(t, batch, graph.NodeVariable, "MAX_SIZE")

	for _, n := range batch.Nodes {
		assert.NotEmpty(t, n.Language, "node %s must carry a language tag", n.Name)
		assert.Greater(t, n.Span.EndByte, n.Span.StartByte, "node %s must carry a span", n.Name)
	}
}

func TestPythonParser_Imports(t *testing.T) {
	t.Parallel()

	batch := parsePython(t)

	names := make(map[string]bool)
	for _, n := range findNodes(batch, graph.NodeImport) {
		names[n.Name] = true
	}
	assert.True(t, names["os"])
	assert.True(t, names["services.db.connect"])
	assert.True(t, names["helpers.*"], "wildcard import normalizes to m.*")
}

func TestPythonParser_SameFileEdges(t *testing.T) {
	t.Parallel()

	batch := parsePython(t)

	user := findNode(t, batch, graph.NodeClass, "User")
	base := findNode(t, batch, graph.NodeClass, "Base")
	assert.True(t, hasEdge(batch, user.ID, base.ID, graph.EdgeInherits))

	getUser := findNode(t, batch, graph.NodeFunction, "get_user")
	callSite := findNode(t, batch, graph.NodeCall, "find")
	target := findNode(t, batch, graph.NodeFunction, "find")
	assert.True(t, hasEdge(batch, getUser.ID, callSite.ID, graph.EdgeCalls))
	assert.True(t, hasEdge(batch, callSite.ID, target.ID, graph.EdgeCalls))

	for _, e := range batch.Edges {
		assert.Equal(t, 1.0, e.Confidence, "intra-file edges are syntactically certain")
		assert.Equal(t, graph.OriginIngest, e.Origin)
	}
}

func TestPythonParser_Routes(t *testing.T) {
	t.Parallel()

	batch := parsePython(t)

	route := findNode(t, batch, graph.NodeRoute, "GET /users/{id}")
	getUser := findNode(t, batch, graph.NodeFunction, "get_user")
	assert.True(t, hasEdge(batch, route.ID, getUser.ID, graph.EdgeRoutesTo))
}

func TestPythonParser_StableIDs(t *testing.T) {
	t.Parallel()

	first := parsePython(t)
	second := parsePython(t)

	require.Equal(t, len(first.Nodes), len(second.Nodes))
	for i := range first.Nodes {
		assert.Equal(t, first.Nodes[i].ID, second.Nodes[i].ID)
	}
}
