package parsers

import (
	"context"
	"os"
	"strings"

	sitter "github.com/tree-sitter/go-tree-sitter"
	python "github.com/tree-sitter/tree-sitter-python/bindings/go"

	"codegraph/internal/graph"
)

// pythonParser parses Python files into graph batches.
type pythonParser struct {
	*treeSitterParser
}

// NewPythonParser creates a new Python producer.
func NewPythonParser() *pythonParser {
	lang := sitter.NewLanguage(python.Language())
	return &pythonParser{
		treeSitterParser: newTreeSitterParser(lang, "python", []string{".py"}),
	}
}

// ParseFile parses a Python source file into a batch of nodes and
// intra-file edges.
func (p *pythonParser) ParseFile(ctx context.Context, absPath, relPath string) (*graph.FileBatch, error) {
	source, err := os.ReadFile(absPath)
	if err != nil {
		return nil, err
	}
	return p.Parse(ctx, source, relPath)
}

// Parse builds the batch from in-memory source. Split out from ParseFile
// so tests can feed snippets without touching disk.
func (p *pythonParser) Parse(_ context.Context, source []byte, relPath string) (*graph.FileBatch, error) {
	tree, err := p.parse(source, relPath)
	if err != nil {
		return nil, err
	}
	defer tree.Close()

	root := tree.RootNode()
	ex := &pythonExtractor{
		b:       newBatchBuilder(relPath),
		source:  source,
		lang:    p.lang,
		file:    relPath,
		defs:    make(map[string]graph.NodeID),
		classes: make(map[string]graph.NodeID),
		owners:  make(map[uint]graph.NodeID),
	}

	ex.moduleID = ex.b.addNode(graph.NewNode(graph.NodeModule, fileStem(relPath), p.lang, relPath, spanOf(root)))

	ex.extractImports(root)
	ex.extractStructure(root)
	ex.extractCalls(root)
	ex.linkSameFile()

	return ex.b.batch(), nil
}

type pendingCall struct {
	id     graph.NodeID
	callee string
	owner  graph.NodeID
}

type pendingBase struct {
	class graph.NodeID
	base  string
}

// pythonExtractor walks one file's syntax tree and accumulates its batch.
type pythonExtractor struct {
	b        *batchBuilder
	source   []byte
	lang     string
	file     string
	moduleID graph.NodeID

	defs    map[string]graph.NodeID // function and method declarations by name
	classes map[string]graph.NodeID
	owners  map[uint]graph.NodeID // declaration syntax node start byte -> graph node, for call ownership
	calls   []pendingCall
	bases   []pendingBase
}

// extractImports records every import statement as an Import node with a
// normalized dotted expression name. `from m import *` becomes `m.*`.
func (ex *pythonExtractor) extractImports(root *sitter.Node) {
	walkTree(root, func(n *sitter.Node) bool {
		switch n.Kind() {
		case "import_statement":
			// import a.b, import a.b as c
			for i := 0; i < int(n.NamedChildCount()); i++ {
				child := n.NamedChild(uint(i))
				target := child
				if child.Kind() == "aliased_import" {
					target = child.ChildByFieldName("name")
				}
				if target == nil {
					continue
				}
				ex.addImport(extractNodeText(target, ex.source), target)
			}
		case "import_from_statement":
			moduleNode := n.ChildByFieldName("module_name")
			if moduleNode == nil {
				return true
			}
			module := extractNodeText(moduleNode, ex.source)
			if wildcard := findChildByType(n, "wildcard_import"); wildcard != nil {
				ex.addImport(module+".*", wildcard)
				return true
			}
			for i := 0; i < int(n.NamedChildCount()); i++ {
				child := n.NamedChild(uint(i))
				if child.StartByte() == moduleNode.StartByte() {
					continue
				}
				target := child
				if child.Kind() == "aliased_import" {
					target = child.ChildByFieldName("name")
				}
				if target == nil || target.Kind() != "dotted_name" && target.Kind() != "identifier" {
					continue
				}
				ex.addImport(module+"."+extractNodeText(target, ex.source), target)
			}
		}
		return true
	})
}

func (ex *pythonExtractor) addImport(expr string, syntax *sitter.Node) {
	ex.b.addNode(graph.NewNode(graph.NodeImport, expr, ex.lang, ex.file, spanOf(syntax)))
}

// extractStructure extracts classes, functions, methods, routes, and
// top-level variables.
func (ex *pythonExtractor) extractStructure(root *sitter.Node) {
	walkTree(root, func(n *sitter.Node) bool {
		switch n.Kind() {
		case "decorated_definition":
			ex.extractDecorated(n)
			return false
		case "class_definition":
			ex.extractClass(n)
			return false
		case "function_definition":
			if isModuleLevel(n) {
				ex.extractFunction(n, graph.NodeFunction, "")
			}
		case "assignment":
			if isModuleLevel(n) {
				ex.extractAssignment(n)
			}
		}
		return true
	})
}

// isModuleLevel checks if a node is at module level, not inside a class or
// function.
func isModuleLevel(node *sitter.Node) bool {
	for parent := node.Parent(); parent != nil; parent = parent.Parent() {
		switch parent.Kind() {
		case "class_definition", "function_definition":
			return false
		case "module":
			return true
		}
	}
	return true
}

// extractDecorated handles a decorated class or function. HTTP-verb
// decorators (`@app.get("/users/{id}")`, `@router.post(...)`) additionally
// produce a Route node wired to the decorated function.
func (ex *pythonExtractor) extractDecorated(node *sitter.Node) {
	defNode := node.ChildByFieldName("definition")
	if defNode == nil {
		return
	}

	var declared graph.NodeID
	switch defNode.Kind() {
	case "class_definition":
		declared = ex.extractClass(defNode)
	case "function_definition":
		if insideClassBody(node) {
			declared = ex.extractFunction(defNode, graph.NodeMethod, enclosingClassName(node, ex.source))
		} else {
			declared = ex.extractFunction(defNode, graph.NodeFunction, "")
		}
	default:
		return
	}

	for i := 0; i < int(node.NamedChildCount()); i++ {
		dec := node.NamedChild(uint(i))
		if dec.Kind() != "decorator" {
			continue
		}
		if method, path, ok := routeFromDecorator(dec, ex.source); ok {
			routeID := ex.b.addNode(graph.NewNode(graph.NodeRoute, method+" "+path, ex.lang, ex.file, spanOf(dec)))
			if declared != "" {
				ex.b.addEdge(routeID, declared, graph.EdgeRoutesTo, 1.0)
			}
		}
	}
}

// routeFromDecorator recognizes `@obj.verb("/path")` and `@obj.route("/path")`
// decorators. The route method defaults to GET for the generic route form.
func routeFromDecorator(dec *sitter.Node, source []byte) (method, path string, ok bool) {
	call := findChildByType(dec, "call")
	if call == nil {
		return "", "", false
	}
	fn := call.ChildByFieldName("function")
	if fn == nil || fn.Kind() != "attribute" {
		return "", "", false
	}
	attr := fn.ChildByFieldName("attribute")
	if attr == nil {
		return "", "", false
	}

	verb := extractNodeText(attr, source)
	switch verb {
	case "get", "post", "put", "delete", "patch":
		method = strings.ToUpper(verb)
	case "route":
		method = "GET"
	default:
		return "", "", false
	}

	args := call.ChildByFieldName("arguments")
	if args == nil {
		return "", "", false
	}
	str := findChildByType(args, "string")
	if str == nil {
		return "", "", false
	}
	path = strings.Trim(extractNodeText(str, source), `"'`)
	if path == "" {
		return "", "", false
	}
	return method, path, true
}

// extractClass extracts a class, its base list, and its methods. Returns
// the class node ID.
func (ex *pythonExtractor) extractClass(node *sitter.Node) graph.NodeID {
	nameNode := node.ChildByFieldName("name")
	if nameNode == nil {
		return ""
	}

	name := extractNodeText(nameNode, ex.source)
	cls := graph.NewNode(graph.NodeClass, name, ex.lang, ex.file, spanOf(node))

	var baseNames []string
	if supers := node.ChildByFieldName("superclasses"); supers != nil {
		for i := 0; i < int(supers.NamedChildCount()); i++ {
			arg := supers.NamedChild(uint(i))
			if arg.Kind() == "identifier" || arg.Kind() == "attribute" {
				baseNames = append(baseNames, extractNodeText(arg, ex.source))
			}
		}
	}
	cls.Signature = name + "(" + strings.Join(baseNames, ", ") + ")"

	id := ex.b.addNode(cls)
	ex.classes[name] = id
	ex.owners[node.StartByte()] = id
	for _, base := range baseNames {
		ex.bases = append(ex.bases, pendingBase{class: id, base: base})
	}

	if body := node.ChildByFieldName("body"); body != nil {
		for i := 0; i < int(body.NamedChildCount()); i++ {
			child := body.NamedChild(uint(i))
			switch child.Kind() {
			case "function_definition":
				ex.extractFunction(child, graph.NodeMethod, name)
			case "decorated_definition":
				ex.extractDecorated(child)
			}
		}
	}

	return id
}

// extractFunction extracts a function or method definition. Returns the
// declaration's node ID.
func (ex *pythonExtractor) extractFunction(node *sitter.Node, kind graph.NodeKind, className string) graph.NodeID {
	nameNode := node.ChildByFieldName("name")
	if nameNode == nil {
		return ""
	}

	name := extractNodeText(nameNode, ex.source)
	fn := graph.NewNode(kind, name, ex.lang, ex.file, spanOf(node))
	fn.Signature = buildPythonSignature(node, ex.source, className)
	fn.Arity = pythonArity(node, kind == graph.NodeMethod)

	id := ex.b.addNode(fn)
	ex.defs[name] = id
	ex.owners[node.StartByte()] = id
	return id
}

// buildPythonSignature builds a display signature,
// `Class.name(params) -> ret` for methods.
func buildPythonSignature(node *sitter.Node, source []byte, className string) string {
	nameNode := node.ChildByFieldName("name")
	if nameNode == nil {
		return ""
	}

	sig := ""
	if className != "" {
		sig = className + "."
	}
	sig += extractNodeText(nameNode, source)

	if params := node.ChildByFieldName("parameters"); params != nil {
		sig += extractNodeText(params, source)
	} else {
		sig += "()"
	}

	if ret := node.ChildByFieldName("return_type"); ret != nil {
		sig += " -> " + extractNodeText(ret, source)
	}
	return sig
}

// pythonArity counts declared parameters, excluding the receiver for
// methods so call-site argument counts compare directly.
func pythonArity(node *sitter.Node, isMethod bool) int {
	params := node.ChildByFieldName("parameters")
	if params == nil {
		return 0
	}
	count := int(params.NamedChildCount())
	if isMethod && count > 0 {
		count--
	}
	return count
}

// extractAssignment records a top-level assignment target as a Variable.
func (ex *pythonExtractor) extractAssignment(node *sitter.Node) {
	left := node.ChildByFieldName("left")
	if left == nil || left.Kind() != "identifier" {
		return
	}
	name := extractNodeText(left, ex.source)
	ex.b.addNode(graph.NewNode(graph.NodeVariable, name, ex.lang, ex.file, spanOf(node)))
}

// extractCalls records every call expression as a Call node owned by its
// enclosing declaration.
func (ex *pythonExtractor) extractCalls(root *sitter.Node) {
	walkTree(root, func(n *sitter.Node) bool {
		if n.Kind() != "call" {
			return true
		}
		fn := n.ChildByFieldName("function")
		if fn == nil {
			return true
		}
		callee := extractNodeText(fn, ex.source)
		if fn.Kind() == "attribute" {
			if attr := fn.ChildByFieldName("attribute"); attr != nil {
				callee = extractNodeText(attr, ex.source)
			}
		}

		call := graph.NewNode(graph.NodeCall, callee, ex.lang, ex.file, spanOf(n))
		if args := n.ChildByFieldName("arguments"); args != nil {
			call.Arity = int(args.NamedChildCount())
		}
		id := ex.b.addNode(call)
		ex.calls = append(ex.calls, pendingCall{id: id, callee: callee, owner: ex.ownerOf(n)})
		return true
	})
}

// ownerOf finds the graph node for the declaration enclosing a syntax
// node, falling back to the module node.
func (ex *pythonExtractor) ownerOf(node *sitter.Node) graph.NodeID {
	for parent := node.Parent(); parent != nil; parent = parent.Parent() {
		kind := parent.Kind()
		if kind != "function_definition" && kind != "class_definition" {
			continue
		}
		if id, ok := ex.owners[parent.StartByte()]; ok {
			return id
		}
	}
	return ex.moduleID
}

// linkSameFile emits the syntactically certain intra-file edges: owner to
// call site, call site to same-file definition, and same-file inheritance.
func (ex *pythonExtractor) linkSameFile() {
	for _, c := range ex.calls {
		ex.b.addEdge(c.owner, c.id, graph.EdgeCalls, 1.0)
		if target, ok := ex.defs[c.callee]; ok {
			ex.b.addEdge(c.id, target, graph.EdgeCalls, 1.0)
		}
	}
	for _, pb := range ex.bases {
		if base, ok := ex.classes[pb.base]; ok && base != pb.class {
			ex.b.addEdge(pb.class, base, graph.EdgeInherits, 1.0)
		}
	}
}

// insideClassBody reports whether a definition sits directly in a class
// body.
func insideClassBody(node *sitter.Node) bool {
	for parent := node.Parent(); parent != nil; parent = parent.Parent() {
		switch parent.Kind() {
		case "class_definition":
			return true
		case "function_definition", "module":
			return false
		}
	}
	return false
}

// enclosingClassName returns the name of the closest enclosing class.
func enclosingClassName(node *sitter.Node, source []byte) string {
	for parent := node.Parent(); parent != nil; parent = parent.Parent() {
		if parent.Kind() == "class_definition" {
			return extractNodeText(parent.ChildByFieldName("name"), source)
		}
	}
	return ""
}
