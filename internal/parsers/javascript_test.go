package parsers

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"codegraph/internal/graph"
)

// Test Plan for the JavaScript producer:
// - Module, class, function, method, variable nodes from declarations,
//   arrow-function bindings included
// - Import specifiers normalize to dotted module expressions
// - extends clauses produce same-file Inherits edges
// - app.get('/users/:id', handler) produces a Route node in the braced
//   template form, wired to the handler

const jsSample = `import { connect } from './services/db';
import * as helpers from './helpers';

const MAX_SIZE = 10;

class Base {
  save() {}
}

class User extends Base {
  save() {
    connect();
  }
}

const findUser = (id) => {
  return lookup(id);
};

function lookup(id) {
  return id;
}

app.get('/users/:id', findUser);
`

func parseJS(t *testing.T) *graph.FileBatch {
	t.Helper()
	batch, err := NewJavaScriptParser().Parse(context.Background(), []byte(jsSample), "web/users.js")
	require.NoError(t, err)
	require.NotNil(t, batch)
	return batch
}

func TestJavaScriptParser_Declarations(t *testing.T) {
	t.Parallel()

	batch := parseJS(t)

	module := findNode(t, batch, graph.NodeModule, "users")
	assert.Equal(t, "javascript", module.Language)

	findNode(t, batch, graph.NodeClass, "Base")
	user := findNode(t, batch, graph.NodeClass, "User")
	assert.Equal(t, "User(Base)", user.Signature)

	assert.Len(t, findNodes(batch, graph.NodeMethod), 2)

	findUser := findNode(t, batch, graph.NodeFunction, "findUser")
	assert.Equal(t, 1, findUser.Arity, "arrow-function bindings carry their arity")
	findNode(t, batch, graph.NodeFunction, "lookup")
	findNode(t, batch, graph.NodeVariable, "MAX_SIZE")
}

func TestJavaScriptParser_Imports(t *testing.T) {
	t.Parallel()

	batch := parseJS(t)

	names := make(map[string]bool)
	for _, n := range findNodes(batch, graph.NodeImport) {
		names[n.Name] = true
	}
	assert.True(t, names["services.db.connect"], "relative path and specifier normalize to dotted form")
	assert.True(t, names["helpers.*"], "namespace import normalizes to m.*")
}

func TestJavaScriptParser_SameFileEdges(t *testing.T) {
	t.Parallel()

	batch := parseJS(t)

	user := findNode(t, batch, graph.NodeClass, "User")
	base := findNode(t, batch, graph.NodeClass, "Base")
	assert.True(t, hasEdge(batch, user.ID, base.ID, graph.EdgeInherits))

	callSite := findNode(t, batch, graph.NodeCall, "lookup")
	target := findNode(t, batch, graph.NodeFunction, "lookup")
	assert.True(t, hasEdge(batch, callSite.ID, target.ID, graph.EdgeCalls))
}

func TestJavaScriptParser_Routes(t *testing.T) {
	t.Parallel()

	batch := parseJS(t)

	route := findNode(t, batch, graph.NodeRoute, "GET /users/{id}")
	handler := findNode(t, batch, graph.NodeFunction, "findUser")
	assert.True(t, hasEdge(batch, route.ID, handler.ID, graph.EdgeRoutesTo))
}
