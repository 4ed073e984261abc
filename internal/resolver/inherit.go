package resolver

import (
	"strings"

	"codegraph/internal/graph"
)

// resolveInheritance resolves cross-file base-class references for
// classes in scope, links method overrides along the resulting chain,
// and reports inheritance cycles.
func (r *Resolver) resolveInheritance(inScope map[string]bool) {
	for _, cls := range r.store.NodesByKind(graph.NodeClass) {
		if !inScope[cls.File] {
			continue
		}
		r.resolveBases(cls)
	}

	// Override linking and cycle detection read the full Inherits edge
	// set, since a changed base class affects chains rooted elsewhere.
	for _, cls := range r.store.NodesByKind(graph.NodeClass) {
		if !inScope[cls.File] {
			continue
		}
		r.linkOverrides(cls)
		r.detectCycle(cls)
	}
}

// resolveBases resolves a class's declared base names. Same-file bases
// were already linked at ingestion; the rest resolve through the import
// scope first, then the qualified index, then an unambiguous name match.
func (r *Resolver) resolveBases(cls graph.Node) {
	for _, base := range baseNames(cls) {
		if r.hasSameFileBase(cls, base) {
			continue
		}

		if id, ok := r.baseFromScope(cls.File, base); ok {
			r.addEdge(cls.ID, id, graph.EdgeInherits, 1.0)
			continue
		}

		if id, ok := r.idx.Qualified(qualifyInFile(cls.File, base)); ok {
			r.addEdge(cls.ID, id, graph.EdgeInherits, 1.0)
			continue
		}

		candidates := r.classesNamed(base)
		switch len(candidates) {
		case 0:
			// External base (framework or stdlib class), not a gap.
		case 1:
			r.addEdge(cls.ID, candidates[0], graph.EdgeInherits, 0.8)
		default:
			r.sink.RecordUnresolved(DiagAmbiguousRef, base, cls, "base class name matches multiple declarations")
		}
	}
}

// baseNames parses the declared base list out of a class signature of
// the form `Name(Base1, Base2)`.
func baseNames(cls graph.Node) []string {
	open := strings.Index(cls.Signature, "(")
	end := strings.LastIndex(cls.Signature, ")")
	if open < 0 || end <= open+1 {
		return nil
	}
	var bases []string
	for _, part := range strings.Split(cls.Signature[open+1:end], ",") {
		if base := strings.TrimSpace(part); base != "" {
			bases = append(bases, base)
		}
	}
	return bases
}

func (r *Resolver) hasSameFileBase(cls graph.Node, base string) bool {
	for _, edge := range r.store.EdgesFrom(cls.ID) {
		if edge.Kind != graph.EdgeInherits {
			continue
		}
		if target, ok := r.store.Node(edge.To); ok && target.Name == lastSegment(base) && target.File == cls.File {
			return true
		}
	}
	return false
}

// baseFromScope finds an imported class whose name matches the base
// reference.
func (r *Resolver) baseFromScope(file, base string) (graph.NodeID, bool) {
	name := lastSegment(base)
	r.scopeMu.Lock()
	scope := make([]graph.NodeID, 0, len(r.importScope[file]))
	for id := range r.importScope[file] {
		scope = append(scope, id)
	}
	r.scopeMu.Unlock()

	var match graph.NodeID
	for _, id := range scope {
		node, ok := r.store.Node(id)
		if !ok || node.Kind != graph.NodeClass || node.Name != name {
			continue
		}
		// Deterministic pick if several imports carry the same name.
		if match == "" || id < match {
			match = id
		}
	}
	return match, match != ""
}

func (r *Resolver) classesNamed(base string) []graph.NodeID {
	var out []graph.NodeID
	for _, id := range r.idx.ByName(lastSegment(base)) {
		if node, ok := r.store.Node(id); ok && node.Kind == graph.NodeClass {
			out = append(out, id)
		}
	}
	return out
}

// qualifyInFile interprets a dotted base reference (`models.Base`)
// relative to the referencing file's package.
func qualifyInFile(file, base string) string {
	module := ModuleName(file)
	if parent := parentModule(module); parent != "" {
		return parent + "." + base
	}
	return base
}

func parentModule(module string) string {
	if i := strings.LastIndex(module, "."); i > 0 {
		return module[:i]
	}
	return ""
}

func lastSegment(name string) string {
	if i := strings.LastIndex(name, "."); i >= 0 {
		return name[i+1:]
	}
	return name
}

// linkOverrides walks the class's inheritance chain and links each method
// to the base method it overrides. The override edge inherits the
// confidence of the chain edge it rides on.
func (r *Resolver) linkOverrides(cls graph.Node) {
	methods := r.methodsOf(cls)
	if len(methods) == 0 {
		return
	}

	visited := map[graph.NodeID]bool{cls.ID: true}
	current := cls
	confidence := 1.0

	for {
		edge, base, ok := r.baseOf(current)
		if !ok || visited[base.ID] {
			return
		}
		visited[base.ID] = true
		if edge.Confidence < confidence {
			confidence = edge.Confidence
		}

		baseMethods := r.methodsOf(base)
		for name, method := range methods {
			if baseMethod, ok := baseMethods[name]; ok {
				r.addEdge(method.ID, baseMethod.ID, graph.EdgeReferences, confidence)
			}
		}
		current = base
	}
}

// methodsOf associates methods to their class by span containment within
// the same file.
func (r *Resolver) methodsOf(cls graph.Node) map[string]graph.Node {
	out := make(map[string]graph.Node)
	for _, m := range r.declarationsIn(cls.File, graph.NodeMethod) {
		if m.Span.StartByte >= cls.Span.StartByte && m.Span.EndByte <= cls.Span.EndByte {
			out[m.Name] = m
		}
	}
	return out
}

// baseOf returns the class's Inherits edge and base class, preferring the
// highest-confidence edge and breaking ties by node ID.
func (r *Resolver) baseOf(cls graph.Node) (graph.Edge, graph.Node, bool) {
	var bestEdge graph.Edge
	var bestBase graph.Node
	found := false
	for _, edge := range r.store.EdgesFrom(cls.ID) {
		if edge.Kind != graph.EdgeInherits {
			continue
		}
		base, ok := r.store.Node(edge.To)
		if !ok || base.Kind != graph.NodeClass {
			continue
		}
		if !found || edge.Confidence > bestEdge.Confidence ||
			(edge.Confidence == bestEdge.Confidence && base.ID < bestBase.ID) {
			bestEdge, bestBase, found = edge, base, true
		}
	}
	return bestEdge, bestBase, found
}

// detectCycle reports an inheritance chain that loops back on itself.
func (r *Resolver) detectCycle(cls graph.Node) {
	visited := make(map[graph.NodeID]bool)
	current := cls
	for {
		if visited[current.ID] {
			r.sink.RecordUnresolved(DiagInheritanceCycle, cls.Name, cls, "inheritance chain loops through "+current.Name)
			return
		}
		visited[current.ID] = true
		_, base, ok := r.baseOf(current)
		if !ok {
			return
		}
		current = base
	}
}
