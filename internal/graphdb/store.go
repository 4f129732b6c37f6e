// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package graphdb indexes the citation graph and its yearly partitions in a
// SQLite database for ad hoc queries.
package graphdb

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	_ "github.com/mattn/go-sqlite3"
	"github.com/segmentio/encoding/json"
	"go.yaml.in/yaml/v3"

	"github.com/pdiddy/citegraph/pkg/types"
)

// DefaultDBFile is the database name used when IndexConfig.DBPath is empty.
const DefaultDBFile = "graph.db"

// Store manages the graph index database.
type Store struct {
	db   *sql.DB
	path string
}

// NewStore opens or creates the database at cfg.DBPath and creates the
// schema if it does not exist.
func NewStore(cfg types.IndexConfig) (*Store, error) {
	path := cfg.DBPath
	if path == "" {
		path = DefaultDBFile
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("creating index directory: %w", err)
	}

	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	s := &Store{db: db, path: path}
	if err := s.createSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}
	return s, nil
}

// Close releases the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Path returns the database file location.
func (s *Store) Path() string { return s.path }

func (s *Store) createSchema() error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS nodes (
			id TEXT PRIMARY KEY,
			year INTEGER,
			total_citations INTEGER NOT NULL DEFAULT 0
		)`,
		`CREATE TABLE IF NOT EXISTS edges (
			rowid INTEGER PRIMARY KEY AUTOINCREMENT,
			source TEXT NOT NULL,
			target TEXT NOT NULL,
			source_year INTEGER
		)`,
		`CREATE TABLE IF NOT EXISTS partition_nodes (
			year INTEGER NOT NULL,
			id TEXT NOT NULL,
			node_year INTEGER,
			total_citations INTEGER NOT NULL DEFAULT 0,
			synthesized INTEGER NOT NULL DEFAULT 0,
			PRIMARY KEY (year, id)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_nodes_year ON nodes(year)`,
		`CREATE INDEX IF NOT EXISTS idx_edges_source_year ON edges(source_year)`,
		`CREATE INDEX IF NOT EXISTS idx_edges_target ON edges(target)`,
	}
	for _, stmt := range statements {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("executing schema statement: %w", err)
		}
	}
	return nil
}

// ImportGraph replaces the global node and edge tables with g.
func (s *Store) ImportGraph(ctx context.Context, g *types.Graph) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	for _, stmt := range []string{`DELETE FROM nodes`, `DELETE FROM edges`} {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("clearing graph: %w", err)
		}
	}

	nodeStmt, err := tx.PrepareContext(ctx,
		`INSERT INTO nodes (id, year, total_citations) VALUES (?, ?, ?)
		 ON CONFLICT(id) DO NOTHING`)
	if err != nil {
		return fmt.Errorf("preparing node insert: %w", err)
	}
	defer nodeStmt.Close()
	for _, n := range g.Nodes {
		if _, err := nodeStmt.ExecContext(ctx, n.ID, nullYear(n.Year), n.TotalCitations); err != nil {
			return fmt.Errorf("inserting node %s: %w", n.ID, err)
		}
	}

	edgeStmt, err := tx.PrepareContext(ctx,
		`INSERT INTO edges (source, target, source_year) VALUES (?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("preparing edge insert: %w", err)
	}
	defer edgeStmt.Close()
	for _, e := range g.Edges {
		if _, err := edgeStmt.ExecContext(ctx, e.Source, e.Target, nullYear(e.SourceYear)); err != nil {
			return fmt.Errorf("inserting edge %s->%s: %w", e.Source, e.Target, err)
		}
	}

	return tx.Commit()
}

// ImportPartitions replaces the per-year node sets with parts.
func (s *Store) ImportPartitions(ctx context.Context, parts []types.Partition) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM partition_nodes`); err != nil {
		return fmt.Errorf("clearing partitions: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx,
		`INSERT OR REPLACE INTO partition_nodes (year, id, node_year, total_citations, synthesized)
		 VALUES (?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("preparing insert: %w", err)
	}
	defer stmt.Close()

	for _, p := range parts {
		for _, n := range p.Nodes {
			_, err := stmt.ExecContext(ctx, p.Year, n.ID, nullYear(n.Year), n.TotalCitations, n.Synthesized)
			if err != nil {
				return fmt.Errorf("inserting %d/%s: %w", p.Year, n.ID, err)
			}
		}
	}
	return tx.Commit()
}

// YearSummary holds the per-partition counts.
type YearSummary struct {
	Year        int `json:"year" yaml:"year"`
	Nodes       int `json:"nodes" yaml:"nodes"`
	Edges       int `json:"edges" yaml:"edges"`
	Synthesized int `json:"synthesized" yaml:"synthesized"`
}

// YearSummaries returns one summary per indexed partition, by ascending year.
func (s *Store) YearSummaries(ctx context.Context) ([]YearSummary, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT p.year, COUNT(*), COALESCE(SUM(p.synthesized), 0),
		       (SELECT COUNT(*) FROM edges e WHERE e.source_year = p.year)
		FROM partition_nodes p
		GROUP BY p.year
		ORDER BY p.year`)
	if err != nil {
		return nil, fmt.Errorf("querying year summaries: %w", err)
	}
	defer rows.Close()

	var out []YearSummary
	for rows.Next() {
		var ys YearSummary
		if err := rows.Scan(&ys.Year, &ys.Nodes, &ys.Synthesized, &ys.Edges); err != nil {
			return nil, fmt.Errorf("scanning year summary: %w", err)
		}
		out = append(out, ys)
	}
	return out, rows.Err()
}

// TopCited returns the n most cited nodes. Year 0 ranks the global node
// table; any other year ranks that partition's nodes. Ties break by id.
func (s *Store) TopCited(ctx context.Context, year, n int) ([]types.Node, error) {
	if n <= 0 {
		n = 10
	}
	var (
		rows *sql.Rows
		err  error
	)
	if year == 0 {
		rows, err = s.db.QueryContext(ctx,
			`SELECT id, year, total_citations, 0 FROM nodes
			 ORDER BY total_citations DESC, id LIMIT ?`, n)
	} else {
		rows, err = s.db.QueryContext(ctx,
			`SELECT id, node_year, total_citations, synthesized FROM partition_nodes
			 WHERE year = ? ORDER BY total_citations DESC, id LIMIT ?`, year, n)
	}
	if err != nil {
		return nil, fmt.Errorf("querying top cited: %w", err)
	}
	defer rows.Close()

	var out []types.Node
	for rows.Next() {
		var (
			node types.Node
			y    sql.NullInt64
		)
		if err := rows.Scan(&node.ID, &y, &node.TotalCitations, &node.Synthesized); err != nil {
			return nil, fmt.Errorf("scanning node: %w", err)
		}
		node.Year = int(y.Int64)
		out = append(out, node)
	}
	return out, rows.Err()
}

// DanglingEdges returns the edges of year whose source or target has no
// node in that year's partition. After repair the result is empty.
func (s *Store) DanglingEdges(ctx context.Context, year int) ([]types.Edge, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT e.source, e.target FROM edges e
		WHERE e.source_year = ?
		  AND (NOT EXISTS (SELECT 1 FROM partition_nodes p WHERE p.year = ? AND p.id = e.source)
		    OR NOT EXISTS (SELECT 1 FROM partition_nodes p WHERE p.year = ? AND p.id = e.target))
		ORDER BY e.rowid`, year, year, year)
	if err != nil {
		return nil, fmt.Errorf("querying dangling edges: %w", err)
	}
	defer rows.Close()

	var out []types.Edge
	for rows.Next() {
		e := types.Edge{SourceYear: year}
		if err := rows.Scan(&e.Source, &e.Target); err != nil {
			return nil, fmt.Errorf("scanning edge: %w", err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// ExportSummaries writes YearSummaries to path as JSON when the extension
// is .json and as YAML otherwise.
func (s *Store) ExportSummaries(ctx context.Context, path string) error {
	summaries, err := s.YearSummaries(ctx)
	if err != nil {
		return err
	}
	var data []byte
	if strings.EqualFold(filepath.Ext(path), ".json") {
		data, err = json.MarshalIndent(summaries, "", "  ")
	} else {
		data, err = yaml.Marshal(summaries)
	}
	if err != nil {
		return fmt.Errorf("encoding summaries: %w", err)
	}
	return os.WriteFile(path, data, 0o644)
}

func nullYear(y int) sql.NullInt64 {
	return sql.NullInt64{Int64: int64(y), Valid: y != 0}
}
