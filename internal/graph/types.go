package graph

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"path/filepath"
	"strings"
)

// NodeKind represents the type of a code entity.
type NodeKind string

const (
	NodeModule   NodeKind = "module"
	NodeClass    NodeKind = "class"
	NodeFunction NodeKind = "function"
	NodeMethod   NodeKind = "method"
	NodeVariable NodeKind = "variable"
	NodeImport   NodeKind = "import"
	NodeCall     NodeKind = "call"
	NodeRoute    NodeKind = "route"
)

// declarationKinds are the node kinds that introduce a named symbol into a
// module's namespace. Imports, calls and routes reference symbols; they do
// not declare them.
var declarationKinds = map[NodeKind]bool{
	NodeModule:   true,
	NodeClass:    true,
	NodeFunction: true,
	NodeMethod:   true,
	NodeVariable: true,
}

// IsDeclaration reports whether nodes of this kind declare a symbol.
func (k NodeKind) IsDeclaration() bool {
	return declarationKinds[k]
}

// EdgeKind represents the type of relationship between nodes.
type EdgeKind string

const (
	EdgeImports    EdgeKind = "imports"
	EdgeCalls      EdgeKind = "calls"
	EdgeInherits   EdgeKind = "inherits"
	EdgeRoutesTo   EdgeKind = "routes_to"
	EdgeReferences EdgeKind = "references"
)

// EdgeOrigin distinguishes syntactically certain edges from heuristic ones.
type EdgeOrigin string

const (
	// OriginIngest marks edges created by a parser for relationships that
	// are certain within a single file.
	OriginIngest EdgeOrigin = "ingest"
	// OriginResolver marks edges created by cross-file or cross-language
	// resolution.
	OriginResolver EdgeOrigin = "resolver"
)

// NodeID uniquely identifies a node. It is derived from the node's file,
// span and kind, so an unchanged span keeps its ID across re-ingestion.
type NodeID string

// ComputeNodeID derives the stable identifier for a node.
func ComputeNodeID(file string, span Span, kind NodeKind) NodeID {
	h := sha256.New()
	fmt.Fprintf(h, "%s|%d|%d|%s", filepath.ToSlash(file), span.StartByte, span.EndByte, kind)
	return NodeID(hex.EncodeToString(h.Sum(nil))[:32])
}

// Span is a source location within a file. Lines and columns are 1-indexed;
// byte offsets are 0-indexed with EndByte exclusive.
type Span struct {
	StartByte   int `json:"start_byte"`
	EndByte     int `json:"end_byte"`
	StartLine   int `json:"start_line"`
	EndLine     int `json:"end_line"`
	StartColumn int `json:"start_column"`
	EndColumn   int `json:"end_column"`
}

// String formats the span as line:col-line:col.
func (s Span) String() string {
	return fmt.Sprintf("%d:%d-%d:%d", s.StartLine, s.StartColumn, s.EndLine, s.EndColumn)
}

// Node represents one semantically meaningful unit of code in the
// language-agnostic graph.
type Node struct {
	ID        NodeID   `json:"id"`
	Kind      NodeKind `json:"kind"`
	Name      string   `json:"name"`                // Raw source identifier
	Language  string   `json:"language"`            // e.g. "python", "javascript"
	File      string   `json:"file"`                // Path relative to the repository root
	Span      Span     `json:"span"`
	Signature string   `json:"signature,omitempty"` // Optional type/parameter signature
	Arity     int      `json:"arity,omitempty"`     // Parameter count, when known
}

// NewNode creates a node with its ID computed from file, span and kind.
func NewNode(kind NodeKind, name, language, file string, span Span) Node {
	return Node{
		ID:       ComputeNodeID(file, span, kind),
		Kind:     kind,
		Name:     name,
		Language: language,
		File:     file,
		Span:     span,
	}
}

// String formats the node for logs and diagnostics.
func (n Node) String() string {
	return fmt.Sprintf("%s %s %q at %s:%s", n.Language, n.Kind, n.Name, n.File, n.Span)
}

// Edge represents a directed relationship between two nodes.
type Edge struct {
	From       NodeID     `json:"from"`
	To         NodeID     `json:"to"`
	Kind       EdgeKind   `json:"kind"`
	Confidence float64    `json:"confidence"` // 1.0 for syntactically certain links
	Origin     EdgeOrigin `json:"origin"`
}

// NewEdge creates an edge with the given confidence.
func NewEdge(from, to NodeID, kind EdgeKind, confidence float64, origin EdgeOrigin) Edge {
	return Edge{From: from, To: to, Kind: kind, Confidence: confidence, Origin: origin}
}

// ID returns a stable identifier for the edge, unique per (from, to, kind).
func (e Edge) ID() string {
	return strings.Join([]string{string(e.From), string(e.To), string(e.Kind)}, ">")
}

// FileBatch is the unit a parser submits through the ingestion contract:
// every node owned by one file plus the intra-file edges between them.
type FileBatch struct {
	File  string
	Nodes []Node
	Edges []Edge
}
