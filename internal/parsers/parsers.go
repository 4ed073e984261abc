package parsers

import "codegraph/internal/ingest"

// NewRegistry returns a parser registry with every built-in producer
// registered.
func NewRegistry() *ingest.Registry {
	reg := ingest.NewRegistry()
	reg.Register(NewPythonParser())
	reg.Register(NewJavaScriptParser())
	return reg
}
