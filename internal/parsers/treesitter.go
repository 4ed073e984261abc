// Package parsers ships reference language producers for the ingestion
// contract: tree-sitter backed parsers for Python and JavaScript. Each
// producer emits, per file, the nodes the file owns plus the intra-file
// edges that are syntactically certain (same-file calls, same-file
// inheritance, route registrations). Cross-file relationships are the
// resolver's job.
package parsers

import (
	"fmt"
	"path/filepath"
	"strings"

	sitter "github.com/tree-sitter/go-tree-sitter"

	"codegraph/internal/graph"
)

// treeSitterParser provides common tree-sitter parsing functionality.
type treeSitterParser struct {
	language *sitter.Language
	lang     string
	exts     []string
}

func newTreeSitterParser(language *sitter.Language, lang string, exts []string) *treeSitterParser {
	return &treeSitterParser{
		language: language,
		lang:     lang,
		exts:     exts,
	}
}

func (p *treeSitterParser) Language() string { return p.lang }

func (p *treeSitterParser) Extensions() []string { return p.exts }

// parse parses source and returns the syntax tree. The caller owns the
// tree and must Close it.
func (p *treeSitterParser) parse(source []byte, filePath string) (*sitter.Tree, error) {
	parser := sitter.NewParser()
	defer parser.Close()

	parser.SetLanguage(p.language)

	tree := parser.Parse(source, nil)
	if tree == nil {
		return nil, fmt.Errorf("failed to parse %s file: %s", p.lang, filePath)
	}
	return tree, nil
}

// spanOf converts a tree-sitter node position to a graph span.
// Bytes are 0-indexed end-exclusive, lines and columns 1-indexed.
func spanOf(node *sitter.Node) graph.Span {
	return graph.Span{
		StartByte:   int(node.StartByte()),
		EndByte:     int(node.EndByte()),
		StartLine:   int(node.StartPosition().Row) + 1,
		EndLine:     int(node.EndPosition().Row) + 1,
		StartColumn: int(node.StartPosition().Column) + 1,
		EndColumn:   int(node.EndPosition().Column) + 1,
	}
}

// extractNodeText extracts the text content of a tree-sitter node.
func extractNodeText(node *sitter.Node, source []byte) string {
	if node == nil {
		return ""
	}
	return string(source[node.StartByte():node.EndByte()])
}

// walkTree recursively walks a tree-sitter tree and calls the visitor for
// each node. Returning false from the visitor skips the node's children.
func walkTree(node *sitter.Node, visitor func(*sitter.Node) bool) {
	if node == nil {
		return
	}

	if !visitor(node) {
		return
	}

	for i := 0; i < int(node.ChildCount()); i++ {
		walkTree(node.Child(uint(i)), visitor)
	}
}

// findChildByType finds the first child node with the given type.
func findChildByType(node *sitter.Node, nodeType string) *sitter.Node {
	if node == nil {
		return nil
	}

	for i := 0; i < int(node.ChildCount()); i++ {
		child := node.Child(uint(i))
		if child.Kind() == nodeType {
			return child
		}
	}
	return nil
}

// fileStem returns the file's base name without extension, used as the
// module node's raw name. Canonical dotted module naming is derived later
// from the full path, not here.
func fileStem(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// batchBuilder accumulates one file's nodes and edges, deduplicating by
// node ID so that two syntax constructs mapping to the same (span, kind)
// never produce a duplicate-node violation downstream.
type batchBuilder struct {
	file  string
	nodes []graph.Node
	edges []graph.Edge
	seen  map[graph.NodeID]bool
}

func newBatchBuilder(file string) *batchBuilder {
	return &batchBuilder{
		file: file,
		seen: make(map[graph.NodeID]bool),
	}
}

func (b *batchBuilder) addNode(n graph.Node) graph.NodeID {
	if b.seen[n.ID] {
		return n.ID
	}
	b.seen[n.ID] = true
	b.nodes = append(b.nodes, n)
	return n.ID
}

func (b *batchBuilder) addEdge(from, to graph.NodeID, kind graph.EdgeKind, confidence float64) {
	b.edges = append(b.edges, graph.NewEdge(from, to, kind, confidence, graph.OriginIngest))
}

func (b *batchBuilder) batch() *graph.FileBatch {
	return &graph.FileBatch{
		File:  b.file,
		Nodes: b.nodes,
		Edges: b.edges,
	}
}
