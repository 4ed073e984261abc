package graph

import (
	"errors"
	"fmt"
)

// DuplicateNodeError is returned when a node is added for a (file, span,
// kind) triple that is already present and the caller did not ask for a
// replace-on-reingest operation. It indicates a producer contract violation.
type DuplicateNodeError struct {
	ID   NodeID
	File string
	Span Span
	Kind NodeKind
}

func (e *DuplicateNodeError) Error() string {
	return fmt.Sprintf("duplicate node %s (%s at %s:%s)", e.ID, e.Kind, e.File, e.Span)
}

// DanglingReferenceError is returned when an edge names a node ID that is
// not present in the store. Referential integrity is enforced at write time.
type DanglingReferenceError struct {
	Edge    Edge
	Missing NodeID
}

func (e *DanglingReferenceError) Error() string {
	return fmt.Sprintf("edge %s references missing node %s", e.Edge.ID(), e.Missing)
}

// IsDuplicateNode reports whether err is a DuplicateNodeError.
func IsDuplicateNode(err error) bool {
	var dup *DuplicateNodeError
	return errors.As(err, &dup)
}

// IsDanglingReference reports whether err is a DanglingReferenceError.
func IsDanglingReference(err error) bool {
	var dangling *DanglingReferenceError
	return errors.As(err, &dangling)
}
