// Package storage persists graph snapshots to SQLite so the CLI can
// answer queries without re-ingesting. The snapshot is never the source
// of truth while the engine runs; it is a saved copy of the store.
package storage

import (
	"database/sql"
	"fmt"

	_ "github.com/mattn/go-sqlite3"

	"codegraph/internal/graph"
	"codegraph/internal/resolver"
)

const schema = `
CREATE TABLE IF NOT EXISTS nodes (
	id         TEXT PRIMARY KEY,
	kind       TEXT NOT NULL,
	name       TEXT NOT NULL,
	language   TEXT NOT NULL,
	file       TEXT NOT NULL,
	start_byte INTEGER NOT NULL,
	end_byte   INTEGER NOT NULL,
	start_line INTEGER NOT NULL,
	end_line   INTEGER NOT NULL,
	start_col  INTEGER NOT NULL,
	end_col    INTEGER NOT NULL,
	signature  TEXT NOT NULL DEFAULT '',
	arity      INTEGER NOT NULL DEFAULT 0
);
CREATE INDEX IF NOT EXISTS idx_nodes_file ON nodes(file);

CREATE TABLE IF NOT EXISTS edges (
	from_id    TEXT NOT NULL,
	to_id      TEXT NOT NULL,
	kind       TEXT NOT NULL,
	confidence REAL NOT NULL,
	origin     TEXT NOT NULL,
	PRIMARY KEY (from_id, to_id, kind)
);

CREATE TABLE IF NOT EXISTS diagnostics (
	kind      TEXT NOT NULL,
	symbol    TEXT NOT NULL,
	file      TEXT NOT NULL,
	line      INTEGER NOT NULL,
	detail    TEXT NOT NULL DEFAULT '',
	update_id TEXT NOT NULL DEFAULT ''
);
`

// Snapshot is a SQLite-backed graph snapshot.
type Snapshot struct {
	db *sql.DB
}

// Open opens (creating if needed) a snapshot database at path.
func Open(path string) (*Snapshot, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("opening snapshot db: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating snapshot schema: %w", err)
	}
	return &Snapshot{db: db}, nil
}

// Close closes the database.
func (s *Snapshot) Close() error {
	return s.db.Close()
}

// Save replaces the snapshot contents with the store's current state.
// Atomic: a failed save leaves the previous snapshot intact.
func (s *Snapshot) Save(store *graph.Store, diags []resolver.Diagnostic) (err error) {
	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			tx.Rollback()
		}
	}()

	for _, table := range []string{"nodes", "edges", "diagnostics"} {
		if _, err = tx.Exec("DELETE FROM " + table); err != nil {
			return err
		}
	}

	nodeStmt, err := tx.Prepare(`INSERT INTO nodes
		(id, kind, name, language, file, start_byte, end_byte, start_line, end_line, start_col, end_col, signature, arity)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer nodeStmt.Close()
	for _, n := range store.Nodes() {
		if _, err = nodeStmt.Exec(string(n.ID), string(n.Kind), n.Name, n.Language, n.File,
			n.Span.StartByte, n.Span.EndByte, n.Span.StartLine, n.Span.EndLine,
			n.Span.StartColumn, n.Span.EndColumn, n.Signature, n.Arity); err != nil {
			return err
		}
	}

	edgeStmt, err := tx.Prepare(`INSERT INTO edges
		(from_id, to_id, kind, confidence, origin) VALUES (?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer edgeStmt.Close()
	for _, e := range store.Edges() {
		if _, err = edgeStmt.Exec(string(e.From), string(e.To), string(e.Kind), e.Confidence, string(e.Origin)); err != nil {
			return err
		}
	}

	diagStmt, err := tx.Prepare(`INSERT INTO diagnostics
		(kind, symbol, file, line, detail, update_id) VALUES (?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer diagStmt.Close()
	for _, d := range diags {
		if _, err = diagStmt.Exec(string(d.Kind), d.Symbol, d.File, d.Line, d.Detail, d.UpdateID); err != nil {
			return err
		}
	}

	return tx.Commit()
}

// Load reads the snapshot into a fresh store. Nodes load before edges so
// referential integrity holds throughout.
func (s *Snapshot) Load() (*graph.Store, []resolver.Diagnostic, error) {
	store := graph.NewStore()

	rows, err := s.db.Query(`SELECT id, kind, name, language, file,
		start_byte, end_byte, start_line, end_line, start_col, end_col, signature, arity
		FROM nodes`)
	if err != nil {
		return nil, nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var n graph.Node
		var id, kind string
		if err := rows.Scan(&id, &kind, &n.Name, &n.Language, &n.File,
			&n.Span.StartByte, &n.Span.EndByte, &n.Span.StartLine, &n.Span.EndLine,
			&n.Span.StartColumn, &n.Span.EndColumn, &n.Signature, &n.Arity); err != nil {
			return nil, nil, err
		}
		n.ID = graph.NodeID(id)
		n.Kind = graph.NodeKind(kind)
		if _, err := store.AddNode(n); err != nil {
			return nil, nil, fmt.Errorf("loading node %s: %w", id, err)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, nil, err
	}

	edgeRows, err := s.db.Query(`SELECT from_id, to_id, kind, confidence, origin FROM edges`)
	if err != nil {
		return nil, nil, err
	}
	defer edgeRows.Close()
	for edgeRows.Next() {
		var from, to, kind, origin string
		var confidence float64
		if err := edgeRows.Scan(&from, &to, &kind, &confidence, &origin); err != nil {
			return nil, nil, err
		}
		edge := graph.NewEdge(graph.NodeID(from), graph.NodeID(to), graph.EdgeKind(kind), confidence, graph.EdgeOrigin(origin))
		if err := store.AddEdge(edge); err != nil {
			return nil, nil, fmt.Errorf("loading edge %s: %w", edge.ID(), err)
		}
	}
	if err := edgeRows.Err(); err != nil {
		return nil, nil, err
	}

	diagRows, err := s.db.Query(`SELECT kind, symbol, file, line, detail, update_id FROM diagnostics`)
	if err != nil {
		return nil, nil, err
	}
	defer diagRows.Close()
	var diags []resolver.Diagnostic
	for diagRows.Next() {
		var d resolver.Diagnostic
		var kind string
		if err := diagRows.Scan(&kind, &d.Symbol, &d.File, &d.Line, &d.Detail, &d.UpdateID); err != nil {
			return nil, nil, err
		}
		d.Kind = resolver.DiagnosticKind(kind)
		diags = append(diags, d)
	}
	if err := diagRows.Err(); err != nil {
		return nil, nil, err
	}

	return store, diags, nil
}
