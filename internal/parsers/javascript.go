package parsers

import (
	"context"
	"os"
	"strings"

	sitter "github.com/tree-sitter/go-tree-sitter"
	javascript "github.com/tree-sitter/tree-sitter-javascript/bindings/go"

	"codegraph/internal/graph"
)

// javascriptParser parses JavaScript files into graph batches.
type javascriptParser struct {
	*treeSitterParser
}

// NewJavaScriptParser creates a new JavaScript producer.
func NewJavaScriptParser() *javascriptParser {
	lang := sitter.NewLanguage(javascript.Language())
	return &javascriptParser{
		treeSitterParser: newTreeSitterParser(lang, "javascript", []string{".js", ".mjs", ".cjs"}),
	}
}

// ParseFile parses a JavaScript source file into a batch of nodes and
// intra-file edges.
func (p *javascriptParser) ParseFile(ctx context.Context, absPath, relPath string) (*graph.FileBatch, error) {
	source, err := os.ReadFile(absPath)
	if err != nil {
		return nil, err
	}
	return p.Parse(ctx, source, relPath)
}

// Parse builds the batch from in-memory source.
func (p *javascriptParser) Parse(_ context.Context, source []byte, relPath string) (*graph.FileBatch, error) {
	tree, err := p.parse(source, relPath)
	if err != nil {
		return nil, err
	}
	defer tree.Close()

	root := tree.RootNode()
	ex := &jsExtractor{
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
	ex.extractCallsAndRoutes(root)
	ex.linkSameFile()

	return ex.b.batch(), nil
}

type jsExtractor struct {
	b        *batchBuilder
	source   []byte
	lang     string
	file     string
	moduleID graph.NodeID

	defs    map[string]graph.NodeID
	classes map[string]graph.NodeID
	owners  map[uint]graph.NodeID
	calls   []pendingCall
	bases   []pendingBase
}

// extractImports records import statements. `import {a} from './svc/user'`
// normalizes to `svc.user.a`; namespace imports become `svc.user.*`, and a
// bare default import stands for the module itself.
func (ex *jsExtractor) extractImports(root *sitter.Node) {
	walkTree(root, func(n *sitter.Node) bool {
		if n.Kind() != "import_statement" {
			return true
		}
		srcNode := n.ChildByFieldName("source")
		if srcNode == nil {
			return true
		}
		module := normalizeJSModule(extractNodeText(srcNode, ex.source))

		clause := findChildByType(n, "import_clause")
		if clause == nil {
			// Side-effect import: `import './polyfills'`.
			ex.addImport(module, srcNode)
			return true
		}

		for i := 0; i < int(clause.NamedChildCount()); i++ {
			child := clause.NamedChild(uint(i))
			switch child.Kind() {
			case "identifier":
				// Default import stands for the module itself.
				ex.addImport(module, child)
			case "namespace_import":
				ex.addImport(module+".*", child)
			case "named_imports":
				for j := 0; j < int(child.NamedChildCount()); j++ {
					spec := child.NamedChild(uint(j))
					if spec.Kind() != "import_specifier" {
						continue
					}
					name := spec.ChildByFieldName("name")
					if name == nil {
						continue
					}
					ex.addImport(module+"."+extractNodeText(name, ex.source), name)
				}
			}
		}
		return true
	})
}

// normalizeJSModule turns a quoted module specifier into a dotted module
// expression, stripping relative prefixes and a known extension.
func normalizeJSModule(spec string) string {
	s := strings.Trim(spec, "\"'`")
	s = strings.TrimPrefix(s, "./")
	for strings.HasPrefix(s, "../") {
		s = strings.TrimPrefix(s, "../")
	}
	for _, ext := range []string{".js", ".mjs", ".cjs"} {
		s = strings.TrimSuffix(s, ext)
	}
	return strings.ReplaceAll(s, "/", ".")
}

func (ex *jsExtractor) addImport(expr string, syntax *sitter.Node) {
	ex.b.addNode(graph.NewNode(graph.NodeImport, expr, ex.lang, ex.file, spanOf(syntax)))
}

// extractStructure extracts classes, functions, methods, and top-level
// variables, including arrow functions assigned to const bindings.
func (ex *jsExtractor) extractStructure(root *sitter.Node) {
	walkTree(root, func(n *sitter.Node) bool {
		switch n.Kind() {
		case "class_declaration":
			ex.extractClass(n)
			return false
		case "function_declaration":
			if isProgramLevel(n) {
				ex.extractFunction(n, graph.NodeFunction, "")
			}
		case "lexical_declaration", "variable_declaration":
			if isProgramLevel(n) {
				ex.extractDeclarators(n)
			}
			return false
		}
		return true
	})
}

// isProgramLevel checks if a node sits outside any class or function body,
// export statements included.
func isProgramLevel(node *sitter.Node) bool {
	for parent := node.Parent(); parent != nil; parent = parent.Parent() {
		switch parent.Kind() {
		case "class_declaration", "function_declaration", "method_definition",
			"arrow_function", "function_expression":
			return false
		case "program":
			return true
		}
	}
	return true
}

// extractClass extracts a class, its extends clause, and its methods.
func (ex *jsExtractor) extractClass(node *sitter.Node) graph.NodeID {
	nameNode := node.ChildByFieldName("name")
	if nameNode == nil {
		return ""
	}

	name := extractNodeText(nameNode, ex.source)
	cls := graph.NewNode(graph.NodeClass, name, ex.lang, ex.file, spanOf(node))

	var baseNames []string
	if heritage := findChildByType(node, "class_heritage"); heritage != nil {
		for i := 0; i < int(heritage.NamedChildCount()); i++ {
			base := heritage.NamedChild(uint(i))
			if base.Kind() == "identifier" || base.Kind() == "member_expression" {
				baseNames = append(baseNames, extractNodeText(base, ex.source))
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
			if child.Kind() == "method_definition" {
				ex.extractFunction(child, graph.NodeMethod, name)
			}
		}
	}

	return id
}

// extractFunction extracts a function declaration or a method definition.
func (ex *jsExtractor) extractFunction(node *sitter.Node, kind graph.NodeKind, className string) graph.NodeID {
	nameNode := node.ChildByFieldName("name")
	if nameNode == nil {
		return ""
	}

	name := extractNodeText(nameNode, ex.source)
	fn := graph.NewNode(kind, name, ex.lang, ex.file, spanOf(node))
	fn.Signature = buildJSSignature(name, node, ex.source, className)
	if params := node.ChildByFieldName("parameters"); params != nil {
		fn.Arity = int(params.NamedChildCount())
	}

	id := ex.b.addNode(fn)
	ex.defs[name] = id
	ex.owners[node.StartByte()] = id
	return id
}

// extractDeclarators records top-level declarators: bindings with a
// function-valued initializer become Function nodes, the rest Variables.
func (ex *jsExtractor) extractDeclarators(node *sitter.Node) {
	for i := 0; i < int(node.NamedChildCount()); i++ {
		decl := node.NamedChild(uint(i))
		if decl.Kind() != "variable_declarator" {
			continue
		}
		nameNode := decl.ChildByFieldName("name")
		if nameNode == nil || nameNode.Kind() != "identifier" {
			continue
		}
		name := extractNodeText(nameNode, ex.source)

		value := decl.ChildByFieldName("value")
		if value != nil && (value.Kind() == "arrow_function" || value.Kind() == "function_expression") {
			fn := graph.NewNode(graph.NodeFunction, name, ex.lang, ex.file, spanOf(decl))
			fn.Signature = buildJSSignature(name, value, ex.source, "")
			if params := value.ChildByFieldName("parameters"); params != nil {
				fn.Arity = int(params.NamedChildCount())
			}
			id := ex.b.addNode(fn)
			ex.defs[name] = id
			ex.owners[decl.StartByte()] = id
			ex.owners[value.StartByte()] = id
			continue
		}

		ex.b.addNode(graph.NewNode(graph.NodeVariable, name, ex.lang, ex.file, spanOf(decl)))
	}
}

func buildJSSignature(name string, node *sitter.Node, source []byte, className string) string {
	sig := ""
	if className != "" {
		sig = className + "."
	}
	sig += name
	if params := node.ChildByFieldName("parameters"); params != nil {
		sig += extractNodeText(params, source)
	} else {
		sig += "()"
	}
	return sig
}

// extractCallsAndRoutes records call expressions as Call nodes and
// recognizes `app.get('/path', handler)` style registrations as Routes.
func (ex *jsExtractor) extractCallsAndRoutes(root *sitter.Node) {
	walkTree(root, func(n *sitter.Node) bool {
		if n.Kind() != "call_expression" {
			return true
		}
		fn := n.ChildByFieldName("function")
		if fn == nil {
			return true
		}

		if method, path, handler, ok := routeFromCall(n, fn, ex.source); ok {
			routeID := ex.b.addNode(graph.NewNode(graph.NodeRoute, method+" "+path, ex.lang, ex.file, spanOf(n)))
			if target, found := ex.defs[handler]; found {
				ex.b.addEdge(routeID, target, graph.EdgeRoutesTo, 1.0)
			}
			return true
		}

		callee := extractNodeText(fn, ex.source)
		if fn.Kind() == "member_expression" {
			if prop := fn.ChildByFieldName("property"); prop != nil {
				callee = extractNodeText(prop, ex.source)
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

// routeFromCall recognizes `obj.verb('/path', handler)` registrations.
// Returns the handler identifier name when one is passed directly.
func routeFromCall(call, fn *sitter.Node, source []byte) (method, path, handler string, ok bool) {
	if fn.Kind() != "member_expression" {
		return "", "", "", false
	}
	prop := fn.ChildByFieldName("property")
	if prop == nil {
		return "", "", "", false
	}

	verb := extractNodeText(prop, source)
	switch verb {
	case "get", "post", "put", "delete", "patch":
		method = strings.ToUpper(verb)
	default:
		return "", "", "", false
	}

	args := call.ChildByFieldName("arguments")
	if args == nil || args.NamedChildCount() < 2 {
		return "", "", "", false
	}
	first := args.NamedChild(0)
	if first.Kind() != "string" {
		return "", "", "", false
	}
	path = strings.Trim(extractNodeText(first, source), "\"'`")
	if !strings.HasPrefix(path, "/") {
		return "", "", "", false
	}
	// Express-style :id parameters normalize to the braced template form.
	path = normalizeRouteParams(path)

	second := args.NamedChild(1)
	if second.Kind() == "identifier" {
		handler = extractNodeText(second, source)
	}
	return method, path, handler, true
}

// normalizeRouteParams rewrites `:param` path segments as `{param}`.
func normalizeRouteParams(path string) string {
	segments := strings.Split(path, "/")
	for i, seg := range segments {
		if strings.HasPrefix(seg, ":") {
			segments[i] = "{" + seg[1:] + "}"
		}
	}
	return strings.Join(segments, "/")
}

func (ex *jsExtractor) ownerOf(node *sitter.Node) graph.NodeID {
	for parent := node.Parent(); parent != nil; parent = parent.Parent() {
		if id, ok := ex.owners[parent.StartByte()]; ok {
			return id
		}
	}
	return ex.moduleID
}

// linkSameFile emits intra-file call and inheritance edges.
func (ex *jsExtractor) linkSameFile() {
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
