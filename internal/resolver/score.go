package resolver

import (
	"path"
	"path/filepath"
	"strings"

	"codegraph/internal/graph"
)

// Disambiguation weights. A same-file definition short-circuits at 1.0;
// otherwise candidates score on directory proximity, whether an import
// brought them into scope, and argument-count agreement.
const (
	weightProximity = 0.5
	weightImported  = 0.3
	weightArity     = 0.2
)

// scoreCandidate scores one candidate definition for a call site. Pure
// function of the two nodes plus the import-in-scope flag, so repeated
// resolution passes always agree.
func scoreCandidate(call, candidate graph.Node, imported bool) float64 {
	if candidate.File == call.File {
		return 1.0
	}

	score := weightProximity * proximity(call.File, candidate.File)
	if imported {
		score += weightImported
	}
	if call.Arity == candidate.Arity {
		score += weightArity
	}
	return score
}

// proximity measures how much of the directory path two files share:
// shared leading segments over the deeper directory depth. Files in the
// same directory score 1.0.
func proximity(fileA, fileB string) float64 {
	dirA := splitDir(fileA)
	dirB := splitDir(fileB)

	shared := 0
	for shared < len(dirA) && shared < len(dirB) && dirA[shared] == dirB[shared] {
		shared++
	}

	depth := len(dirA)
	if len(dirB) > depth {
		depth = len(dirB)
	}
	if depth == 0 {
		return 1.0
	}
	return float64(shared) / float64(depth)
}

func splitDir(file string) []string {
	dir := path.Dir(filepath.ToSlash(file))
	if dir == "." || dir == "/" {
		return nil
	}
	return strings.Split(dir, "/")
}
