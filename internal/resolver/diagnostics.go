// Package resolver turns the ingested graph's Import, Call, and Route
// nodes into concrete edges. Resolution gaps are never errors: anything
// that cannot be linked becomes a diagnostic for the query surface to
// report.
package resolver

import (
	"fmt"
	"sort"
	"sync"

	"codegraph/internal/graph"
)

// DiagnosticKind classifies a resolution gap.
type DiagnosticKind string

const (
	DiagUnresolvedImport DiagnosticKind = "unresolved_import"
	DiagCollision        DiagnosticKind = "qualified_name_collision"
	DiagInheritanceCycle DiagnosticKind = "inheritance_cycle"
	DiagAmbiguousRef     DiagnosticKind = "ambiguous_reference"
)

// Diagnostic records one resolution gap with enough location context to
// surface to a user. UpdateID correlates diagnostics produced by one
// incremental update.
type Diagnostic struct {
	Kind     DiagnosticKind `json:"kind"`
	Symbol   string         `json:"symbol"`
	File     string         `json:"file"`
	Line     int            `json:"line"`
	Detail   string         `json:"detail,omitempty"`
	UpdateID string         `json:"update_id,omitempty"`
}

func (d Diagnostic) String() string {
	return fmt.Sprintf("%s: %s (%s:%d) %s", d.Kind, d.Symbol, d.File, d.Line, d.Detail)
}

// DiagnosticSink collects diagnostics. Safe for concurrent use.
type DiagnosticSink struct {
	mu       sync.Mutex
	entries  []Diagnostic
	updateID string
}

func NewDiagnosticSink() *DiagnosticSink {
	return &DiagnosticSink{}
}

// SetUpdateID tags subsequently recorded diagnostics with an update
// operation ID. An empty ID clears the tag.
func (s *DiagnosticSink) SetUpdateID(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.updateID = id
}

// Record appends a diagnostic, stamping the current update ID.
func (s *DiagnosticSink) Record(d Diagnostic) {
	s.mu.Lock()
	defer s.mu.Unlock()
	d.UpdateID = s.updateID
	s.entries = append(s.entries, d)
}

// RecordUnresolved is the common unresolved-reference shorthand.
func (s *DiagnosticSink) RecordUnresolved(kind DiagnosticKind, symbol string, node graph.Node, detail string) {
	s.Record(Diagnostic{
		Kind:   kind,
		Symbol: symbol,
		File:   node.File,
		Line:   node.Span.StartLine,
		Detail: detail,
	})
}

// ReplaceCollisions swaps the full set of collision diagnostics for the
// given one. Index passes observe every collision each time they run, so
// replacement keeps a persistent collision at one entry instead of
// accreting a duplicate per pass.
func (s *DiagnosticSink) ReplaceCollisions(collisions []Diagnostic) {
	s.mu.Lock()
	defer s.mu.Unlock()
	kept := s.entries[:0]
	for _, d := range s.entries {
		if d.Kind != DiagCollision {
			kept = append(kept, d)
		}
	}
	s.entries = kept
	for _, d := range collisions {
		d.UpdateID = s.updateID
		s.entries = append(s.entries, d)
	}
}

// DropFile removes diagnostics located in a file, ahead of its
// re-resolution.
func (s *DiagnosticSink) DropFile(file string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	kept := s.entries[:0]
	for _, d := range s.entries {
		if d.File != file {
			kept = append(kept, d)
		}
	}
	s.entries = kept
}

// All returns a sorted copy of the collected diagnostics.
func (s *DiagnosticSink) All() []Diagnostic {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Diagnostic, len(s.entries))
	copy(out, s.entries)
	sort.Slice(out, func(i, j int) bool {
		if out[i].File != out[j].File {
			return out[i].File < out[j].File
		}
		if out[i].Line != out[j].Line {
			return out[i].Line < out[j].Line
		}
		return out[i].Symbol < out[j].Symbol
	})
	return out
}

// Reset discards all collected diagnostics.
func (s *DiagnosticSink) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = nil
}
