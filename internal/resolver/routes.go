package resolver

import (
	"strings"

	"github.com/gobwas/glob"

	"codegraph/internal/graph"
)

// routeConfidenceFloor is the minimum confidence for a pattern-matched
// RoutesTo edge.
const routeConfidenceFloor = 0.5

// routeTemplate is a parsed Route node name of the form
// "METHOD /path/{param}". The path template compiles to a glob with
// parameters widened to wildcards, so concrete request paths match it.
type routeTemplate struct {
	method   string
	path     string
	segments []string // non-parameter path segments
	params   int
	matcher  glob.Glob
}

func parseRouteTemplate(name string) (routeTemplate, bool) {
	method, path, ok := strings.Cut(name, " ")
	if !ok || !strings.HasPrefix(path, "/") {
		return routeTemplate{}, false
	}

	rt := routeTemplate{method: method, path: path}
	pattern := make([]string, 0, 4)
	for _, seg := range strings.Split(strings.Trim(path, "/"), "/") {
		if seg == "" {
			continue
		}
		if strings.HasPrefix(seg, "{") && strings.HasSuffix(seg, "}") {
			rt.params++
			pattern = append(pattern, "*")
			continue
		}
		rt.segments = append(rt.segments, seg)
		pattern = append(pattern, seg)
	}

	matcher, err := glob.Compile("/"+strings.Join(pattern, "/"), '/')
	if err != nil {
		return routeTemplate{}, false
	}
	rt.matcher = matcher
	return rt, true
}

// matchesPath reports whether a concrete request path matches the
// template.
func (rt routeTemplate) matchesPath(concrete string) bool {
	return rt.matcher.Match(concrete)
}

// handlerSpecificity scores how specifically a handler name matches the
// route: exact segment matches over total segments, with the HTTP verb
// counting as one segment. Returns 0 when the name does not look like a
// handler for this route at all.
func (rt routeTemplate) handlerSpecificity(handlerName string) float64 {
	canonical := CanonicalName(handlerName)
	if canonical == "" {
		return 0
	}
	total := len(rt.segments) + 1 // verb counts as a segment
	matched := 0
	verbHit := strings.Contains(canonical, CanonicalName(rt.method))
	if verbHit {
		matched++
	}
	segmentHit := false
	for _, seg := range rt.segments {
		cs := CanonicalName(seg)
		if cs != "" && (strings.Contains(canonical, cs) || strings.Contains(canonical, singular(cs))) {
			matched++
			segmentHit = true
		}
	}

	if matched == 0 {
		return 0
	}
	// A verb hit alone is too weak a claim unless the name carries a
	// handler/controller suffix.
	if verbHit && !segmentHit && len(rt.segments) > 0 &&
		!strings.HasSuffix(canonical, "handler") && !strings.HasSuffix(canonical, "controller") {
		return 0
	}
	return float64(matched) / float64(total)
}

// singular trims a plural-s so the `users` segment matches `getUser`.
func singular(seg string) string {
	if len(seg) > 2 && strings.HasSuffix(seg, "s") {
		return seg[:len(seg)-1]
	}
	return seg
}

// linkRoutes pattern-matches Route nodes in scope against handler
// candidates. Routes already wired by a direct same-file registration
// keep that edge; pattern matching fills in the rest.
func (r *Resolver) linkRoutes(inScope map[string]bool) {
	for _, route := range r.store.NodesByKind(graph.NodeRoute) {
		if !inScope[route.File] {
			continue
		}
		if r.hasIngestRoute(route) {
			continue
		}
		r.linkRoute(route)
	}
}

func (r *Resolver) hasIngestRoute(route graph.Node) bool {
	for _, edge := range r.store.EdgesFrom(route.ID) {
		if edge.Kind == graph.EdgeRoutesTo && edge.Origin == graph.OriginIngest {
			return true
		}
	}
	return false
}

func (r *Resolver) linkRoute(route graph.Node) {
	rt, ok := parseRouteTemplate(route.Name)
	if !ok {
		return
	}

	var best graph.Node
	bestScore := 0.0
	found := false
	for _, kind := range []graph.NodeKind{graph.NodeFunction, graph.NodeMethod} {
		for _, cand := range r.store.NodesByKind(kind) {
			score := rt.handlerSpecificity(cand.Name)
			if score == 0 {
				continue
			}
			if score > bestScore || (score == bestScore && found && cand.ID < best.ID) {
				best, bestScore, found = cand, score, true
			}
		}
	}
	if !found {
		return
	}

	confidence := bestScore
	if confidence < routeConfidenceFloor {
		confidence = routeConfidenceFloor
	}
	r.addEdge(route.ID, best.ID, graph.EdgeRoutesTo, confidence)
}

// MatchRoute resolves a concrete request like ("GET", "/users/42") to the
// Route nodes whose templates match, using the compiled glob form.
func (r *Resolver) MatchRoute(method, concretePath string) []graph.Node {
	var out []graph.Node
	for _, route := range r.store.NodesByKind(graph.NodeRoute) {
		rt, ok := parseRouteTemplate(route.Name)
		if !ok || !strings.EqualFold(rt.method, method) {
			continue
		}
		if rt.matchesPath(concretePath) {
			out = append(out, route)
		}
	}
	return out
}
