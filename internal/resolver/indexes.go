package resolver

import (
	"sort"
	"strings"
	"sync"

	"codegraph/internal/graph"
)

// CollisionPolicy selects the winner when two declarations claim the same
// qualified name.
type CollisionPolicy string

const (
	// CollisionLastWins keeps the candidate ordered last by (file, id).
	CollisionLastWins CollisionPolicy = "last-wins"
	// CollisionFirstWins keeps the candidate ordered first by (file, id).
	CollisionFirstWins CollisionPolicy = "first-wins"
)

// qualCandidate is one declaration claiming a qualified name.
type qualCandidate struct {
	id   graph.NodeID
	file string
}

// Indexes holds the derived lookup structures: the module index (canonical
// module name to declaration IDs), the qualified symbol index
// (module.symbol to a single winner), and the flat name index used for
// call disambiguation and cross-language matching.
//
// All of it is derived data, reconstructible from the store alone.
// Winners are chosen by candidate ordering rather than arrival order so
// resolution stays a pure function of graph state.
type Indexes struct {
	mu     sync.RWMutex
	policy CollisionPolicy

	modules   map[string][]graph.NodeID  // module name -> declaration ids
	qualified map[string][]qualCandidate // module.symbol -> claimants
	byName    map[string][]graph.NodeID  // raw name -> declaration ids
	canonical map[string][]graph.NodeID  // canonical name -> declaration ids
	fileOf    map[graph.NodeID]string    // declaration id -> owning file
}

// NewIndexes creates empty indexes with the given collision policy.
func NewIndexes(policy CollisionPolicy) *Indexes {
	if policy != CollisionFirstWins {
		policy = CollisionLastWins
	}
	idx := &Indexes{policy: policy}
	idx.reset()
	return idx
}

func (idx *Indexes) reset() {
	idx.modules = make(map[string][]graph.NodeID)
	idx.qualified = make(map[string][]qualCandidate)
	idx.byName = make(map[string][]graph.NodeID)
	idx.canonical = make(map[string][]graph.NodeID)
	idx.fileOf = make(map[graph.NodeID]string)
}

// Rebuild reconstructs every index from the store's current node set.
// Collisions in the qualified index are recorded against sink.
func (idx *Indexes) Rebuild(store *graph.Store, sink *DiagnosticSink) {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	idx.reset()

	files := store.Files()
	for _, file := range files {
		idx.indexFileLocked(store, file)
	}
	idx.finishLocked(sink)
}

// UpdateFiles re-indexes just the given files: their previous
// contributions are dropped and their current store contents re-added.
func (idx *Indexes) UpdateFiles(store *graph.Store, sink *DiagnosticSink, files ...string) {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	changed := make(map[string]bool, len(files))
	for _, f := range files {
		changed[f] = true
	}

	drop := func(ids []graph.NodeID) []graph.NodeID {
		kept := ids[:0]
		for _, id := range ids {
			if !changed[idx.fileOf[id]] {
				kept = append(kept, id)
			}
		}
		return kept
	}
	for name, ids := range idx.modules {
		idx.modules[name] = drop(ids)
	}
	for name, ids := range idx.byName {
		idx.byName[name] = drop(ids)
	}
	for name, ids := range idx.canonical {
		idx.canonical[name] = drop(ids)
	}
	for qname, cands := range idx.qualified {
		kept := cands[:0]
		for _, c := range cands {
			if !changed[c.file] {
				kept = append(kept, c)
			}
		}
		idx.qualified[qname] = kept
	}
	for id, file := range idx.fileOf {
		if changed[file] {
			delete(idx.fileOf, id)
		}
	}

	for _, file := range files {
		idx.indexFileLocked(store, file)
	}
	idx.finishLocked(sink)
}

// indexFileLocked buckets a file's declaration-kind nodes under its
// canonical module name.
func (idx *Indexes) indexFileLocked(store *graph.Store, file string) {
	module := ModuleName(file)
	for _, node := range store.NodesInFile(file) {
		if !node.Kind.IsDeclaration() {
			continue
		}
		idx.fileOf[node.ID] = file
		idx.modules[module] = append(idx.modules[module], node.ID)

		if node.Kind == graph.NodeModule {
			// The module itself is addressable by its bare name.
			idx.qualified[module] = append(idx.qualified[module], qualCandidate{id: node.ID, file: file})
			continue
		}

		idx.qualified[module+"."+node.Name] = append(idx.qualified[module+"."+node.Name],
			qualCandidate{id: node.ID, file: file})
		idx.byName[node.Name] = append(idx.byName[node.Name], node.ID)
		idx.canonical[CanonicalName(node.Name)] = append(idx.canonical[CanonicalName(node.Name)], node.ID)
	}
}

// finishLocked sorts every bucket for deterministic reads and records
// qualified-name collisions. The sink's collision set is replaced
// wholesale: a pass observes every live collision, so a persistent one
// stays at a single entry and a resolved one disappears.
func (idx *Indexes) finishLocked(sink *DiagnosticSink) {
	for _, ids := range idx.modules {
		sortIDs(ids)
	}
	for _, ids := range idx.byName {
		sortIDs(ids)
	}
	for _, ids := range idx.canonical {
		sortIDs(ids)
	}
	var collisions []Diagnostic
	for qname, cands := range idx.qualified {
		sort.Slice(cands, func(i, j int) bool {
			if cands[i].file != cands[j].file {
				return cands[i].file < cands[j].file
			}
			return cands[i].id < cands[j].id
		})
		if len(cands) > 1 {
			winner := idx.winnerLocked(cands)
			collisions = append(collisions, Diagnostic{
				Kind:   DiagCollision,
				Symbol: qname,
				File:   winner.file,
				Detail: "qualified name claimed by multiple declarations",
			})
		}
	}
	if sink != nil {
		sink.ReplaceCollisions(collisions)
	}
}

func (idx *Indexes) winnerLocked(cands []qualCandidate) qualCandidate {
	if idx.policy == CollisionFirstWins {
		return cands[0]
	}
	return cands[len(cands)-1]
}

// Qualified resolves a module.symbol string to its winning declaration.
func (idx *Indexes) Qualified(qname string) (graph.NodeID, bool) {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	cands := idx.qualified[qname]
	if len(cands) == 0 {
		return "", false
	}
	return idx.winnerLocked(cands).id, true
}

// ModuleDeclarations returns the declaration IDs bucketed under a module
// name.
func (idx *Indexes) ModuleDeclarations(module string) []graph.NodeID {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return append([]graph.NodeID(nil), idx.modules[module]...)
}

// ByName returns every declaration with the given raw name.
func (idx *Indexes) ByName(name string) []graph.NodeID {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return append([]graph.NodeID(nil), idx.byName[name]...)
}

// ByCanonicalName returns every declaration whose canonicalized name
// matches.
func (idx *Indexes) ByCanonicalName(canonical string) []graph.NodeID {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return append([]graph.NodeID(nil), idx.canonical[canonical]...)
}

// CanonicalName strips non-alphanumeric characters and lower-cases, so
// get_user, getUser, and GetUser all compare equal across languages.
func CanonicalName(name string) string {
	var b strings.Builder
	b.Grow(len(name))
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z' || r >= '0' && r <= '9':
			b.WriteRune(r)
		case r >= 'A' && r <= 'Z':
			b.WriteRune(r + ('a' - 'A'))
		}
	}
	return b.String()
}

func sortIDs(ids []graph.NodeID) {
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
}
