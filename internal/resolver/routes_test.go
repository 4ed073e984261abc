package resolver

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"codegraph/internal/graph"
)

// Test Plan for route linking:
// - Route names parse into method + path template; parameters compile to
//   glob wildcards so concrete paths match
// - Handlers are matched by naming pattern with confidence proportional
//   to segment specificity, floored at 0.5
// - Direct same-file registrations from ingestion are left alone

func TestParseRouteTemplate(t *testing.T) {
	t.Parallel()

	rt, ok := parseRouteTemplate("GET /api/users/{id}")
	require.True(t, ok)
	assert.Equal(t, "GET", rt.method)
	assert.Equal(t, []string{"api", "users"}, rt.segments)
	assert.Equal(t, 1, rt.params)

	assert.True(t, rt.matchesPath("/api/users/42"))
	assert.True(t, rt.matchesPath("/api/users/alice"))
	assert.False(t, rt.matchesPath("/api/users/42/orders"), "wildcard is single-segment")
	assert.False(t, rt.matchesPath("/api/orders/42"))

	_, ok = parseRouteTemplate("not a route")
	assert.False(t, ok)
}

func TestRouteTemplate_HandlerSpecificity(t *testing.T) {
	t.Parallel()

	rt, ok := parseRouteTemplate("GET /api/users/{id}")
	require.True(t, ok)

	getUser := rt.handlerSpecificity("get_user")
	assert.InDelta(t, 2.0/3.0, getUser, 1e-9, "verb + resource segment over three segments")

	listUsers := rt.handlerSpecificity("list_users")
	assert.InDelta(t, 1.0/3.0, listUsers, 1e-9)
	assert.Greater(t, getUser, listUsers)

	assert.Zero(t, rt.handlerSpecificity("send_email"), "unrelated names make no claim")
	assert.Zero(t, rt.handlerSpecificity("getter"), "a verb hit alone is too weak")
	assert.NotZero(t, rt.handlerSpecificity("getHandler"), "handler suffix keeps a weak verb claim")
}

func TestResolver_RouteLinking(t *testing.T) {
	t.Parallel()

	s := graph.NewStore()
	route := declare(t, s, graph.NodeRoute, "GET /api/users/{id}", "python", "backend/api/routes.py", 0, 0)
	handler := declare(t, s, graph.NodeFunction, "get_user", "python", "backend/api/handlers.py", 0, 1)
	declare(t, s, graph.NodeFunction, "send_email", "python", "backend/mail.py", 0, 1)

	r := newResolver(t, s)
	require.NoError(t, r.ResolveAll(context.Background()))

	edge := edgeBetween(t, s, route.ID, handler.ID, graph.EdgeRoutesTo)
	assert.GreaterOrEqual(t, edge.Confidence, routeConfidenceFloor)
	assert.InDelta(t, 2.0/3.0, edge.Confidence, 1e-9)
	assert.Equal(t, graph.OriginResolver, edge.Origin)
}

func TestResolver_RouteLinking_FloorsWeakMatches(t *testing.T) {
	t.Parallel()

	s := graph.NewStore()
	route := declare(t, s, graph.NodeRoute, "POST /api/orders/{id}/items", "python", "api.py", 0, 0)
	handler := declare(t, s, graph.NodeFunction, "order_handler", "python", "handlers.py", 0, 1)

	r := newResolver(t, s)
	require.NoError(t, r.ResolveAll(context.Background()))

	edge := edgeBetween(t, s, route.ID, handler.ID, graph.EdgeRoutesTo)
	assert.Equal(t, routeConfidenceFloor, edge.Confidence, "weak pattern matches are floored, not dropped")
}

func TestResolver_RouteLinking_RespectsIngestEdges(t *testing.T) {
	t.Parallel()

	s := graph.NewStore()
	route := declare(t, s, graph.NodeRoute, "GET /users/{id}", "python", "api.py", 0, 0)
	registered := declare(t, s, graph.NodeFunction, "fetch", "python", "api.py", 50, 1)
	declare(t, s, graph.NodeFunction, "get_user", "python", "other.py", 0, 1)
	require.NoError(t, s.AddEdge(graph.NewEdge(route.ID, registered.ID, graph.EdgeRoutesTo, 1.0, graph.OriginIngest)))

	r := newResolver(t, s)
	require.NoError(t, r.ResolveAll(context.Background()))

	var routesTo []graph.Edge
	for _, e := range s.EdgesFrom(route.ID) {
		if e.Kind == graph.EdgeRoutesTo {
			routesTo = append(routesTo, e)
		}
	}
	require.Len(t, routesTo, 1, "a direct registration beats pattern matching")
	assert.Equal(t, registered.ID, routesTo[0].To)
	assert.Equal(t, graph.OriginIngest, routesTo[0].Origin)
}

func TestResolver_MatchRoute(t *testing.T) {
	t.Parallel()

	s := graph.NewStore()
	users := declare(t, s, graph.NodeRoute, "GET /api/users/{id}", "python", "api.py", 0, 0)
	declare(t, s, graph.NodeRoute, "GET /api/orders/{id}", "python", "api.py", 50, 0)

	r := newResolver(t, s)
	require.NoError(t, r.ResolveAll(context.Background()))

	matches := r.MatchRoute("get", "/api/users/42")
	require.Len(t, matches, 1)
	assert.Equal(t, users.ID, matches[0].ID)

	assert.Empty(t, r.MatchRoute("DELETE", "/api/users/42"))
}
