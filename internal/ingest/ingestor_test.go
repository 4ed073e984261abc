package ingest

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"codegraph/internal/graph"
)

// Test Plan for Ingestor:
// - Files route to the parser registered for their extension
// - Files without a parser are skipped, not failed
// - A parser failure is isolated to its file; other files still ingest
// - Re-ingesting a file replaces its previous nodes
// - Parallel ingestion produces the same store contents as serial

// fakeParser produces one module node and one function node per file.
type fakeParser struct {
	language string
	exts     []string
	failOn   map[string]bool
}

func (p *fakeParser) Language() string     { return p.language }
func (p *fakeParser) Extensions() []string { return p.exts }

func (p *fakeParser) ParseFile(_ context.Context, _ string, relPath string) (*graph.FileBatch, error) {
	if p.failOn[relPath] {
		return nil, fmt.Errorf("synthetic parse failure")
	}

	module := graph.NewNode(graph.NodeModule, relPath, p.language, relPath,
		graph.Span{StartByte: 0, EndByte: 100, StartLine: 1, EndLine: 10})
	fn := graph.NewNode(graph.NodeFunction, "fn", p.language, relPath,
		graph.Span{StartByte: 10, EndByte: 50, StartLine: 2, EndLine: 5})

	edge := graph.NewEdge(module.ID, fn.ID, graph.EdgeReferences, 1.0, graph.OriginIngest)

	return &graph.FileBatch{
		File:  relPath,
		Nodes: []graph.Node{module, fn},
		Edges: []graph.Edge{edge},
	}, nil
}

func newTestRegistry(failOn ...string) *Registry {
	failSet := make(map[string]bool)
	for _, f := range failOn {
		failSet[f] = true
	}
	reg := NewRegistry()
	reg.Register(&fakeParser{language: "python", exts: []string{".py"}, failOn: failSet})
	return reg
}

func TestRegistry_Routing(t *testing.T) {
	t.Parallel()

	reg := newTestRegistry()

	p, ok := reg.ForFile("pkg/mod.py")
	require.True(t, ok)
	assert.Equal(t, "python", p.Language())

	_, ok = reg.ForFile("pkg/mod.rb")
	assert.False(t, ok)

	p, ok = reg.ForLanguage("python")
	require.True(t, ok)
	assert.Equal(t, "python", p.Language())
}

func TestIngestor_IngestFiles(t *testing.T) {
	t.Parallel()

	store := graph.NewStore()
	ing := NewIngestor(store, newTestRegistry(), t.TempDir())

	result, err := ing.IngestFiles(context.Background(), []string{"a.py", "b.py", "readme.md"})
	require.NoError(t, err)

	assert.Equal(t, 2, result.Stats.FilesIngested)
	assert.Equal(t, 1, result.Stats.FilesSkipped)
	assert.Equal(t, 0, result.Stats.FilesFailed)
	assert.Equal(t, 4, store.Stats().Nodes)
	assert.Equal(t, 2, store.Stats().Edges)
}

func TestIngestor_FailureIsolation(t *testing.T) {
	t.Parallel()

	store := graph.NewStore()
	ing := NewIngestor(store, newTestRegistry("bad.py"), t.TempDir())

	result, err := ing.IngestFiles(context.Background(), []string{"good.py", "bad.py"})
	require.NoError(t, err)

	assert.Equal(t, 1, result.Stats.FilesIngested)
	require.Len(t, result.Failures, 1)
	assert.Equal(t, "bad.py", result.Failures[0].File)

	// The failing file contributes nothing; the good file is intact.
	assert.Empty(t, store.NodesInFile("bad.py"))
	assert.Len(t, store.NodesInFile("good.py"), 2)
}

func TestIngestor_ReingestReplaces(t *testing.T) {
	t.Parallel()

	store := graph.NewStore()
	ing := NewIngestor(store, newTestRegistry(), t.TempDir())

	_, err := ing.IngestFiles(context.Background(), []string{"a.py"})
	require.NoError(t, err)
	before := store.Stats()

	retracted, err := ing.IngestFile(context.Background(), "a.py")
	require.NoError(t, err)
	assert.Len(t, retracted, 2)

	// Identical content: same node count, IDs stable.
	assert.Equal(t, before, store.Stats())
}

func TestIngestor_ParallelMatchesSerial(t *testing.T) {
	t.Parallel()

	files := make([]string, 40)
	for i := range files {
		files[i] = fmt.Sprintf("pkg%d/mod%d.py", i%5, i)
	}

	serial := graph.NewStore()
	_, err := NewIngestor(serial, newTestRegistry(), t.TempDir(), WithWorkers(1)).
		IngestFiles(context.Background(), files)
	require.NoError(t, err)

	parallel := graph.NewStore()
	_, err = NewIngestor(parallel, newTestRegistry(), t.TempDir(), WithWorkers(8)).
		IngestFiles(context.Background(), files)
	require.NoError(t, err)

	assert.Equal(t, serial.Stats(), parallel.Stats())
	assert.Equal(t, serial.Nodes(), parallel.Nodes())
	assert.Equal(t, serial.Edges(), parallel.Edges())
}
