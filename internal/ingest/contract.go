package ingest

import (
	"context"
	"path/filepath"
	"strings"
	"sync"

	"codegraph/internal/graph"
)

// Parser is the contract a language producer must satisfy to feed the graph.
// A producer parses one file at a time and submits every node the file owns
// plus the intra-file edges between them. Node identifiers must be stable
// across re-ingestion of unchanged spans, and span and language tags must
// always be populated.
type Parser interface {
	// Language returns the language tag stamped on produced nodes.
	Language() string

	// Extensions returns the file extensions this parser handles,
	// with leading dot (e.g. ".py").
	Extensions() []string

	// ParseFile parses the file at absPath and returns its batch. The
	// returned batch's File field must be relPath so node ownership is
	// expressed repo-relative.
	ParseFile(ctx context.Context, absPath, relPath string) (*graph.FileBatch, error)
}

// Registry routes files to parsers by extension.
type Registry struct {
	mu     sync.RWMutex
	byExt  map[string]Parser
	byLang map[string]Parser
}

// NewRegistry creates an empty parser registry.
func NewRegistry() *Registry {
	return &Registry{
		byExt:  make(map[string]Parser),
		byLang: make(map[string]Parser),
	}
}

// Register adds a parser for all of its extensions. A later registration
// for the same extension replaces the earlier one.
func (r *Registry) Register(p Parser) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.byLang[p.Language()] = p
	for _, ext := range p.Extensions() {
		r.byExt[strings.ToLower(ext)] = p
	}
}

// ForFile returns the parser handling the file's extension, if any.
func (r *Registry) ForFile(path string) (Parser, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.byExt[strings.ToLower(filepath.Ext(path))]
	return p, ok
}

// ForLanguage returns the parser registered for a language tag, if any.
func (r *Registry) ForLanguage(lang string) (Parser, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.byLang[lang]
	return p, ok
}

// Extensions returns every extension with a registered parser.
func (r *Registry) Extensions() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	exts := make([]string, 0, len(r.byExt))
	for ext := range r.byExt {
		exts = append(exts, ext)
	}
	return exts
}
