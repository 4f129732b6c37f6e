// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package graph

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"go.yaml.in/yaml/v3"

	"github.com/pdiddy/citegraph/internal/corpus"
	"github.com/pdiddy/citegraph/pkg/types"
)

// Artifact names under the graph output directory.
const (
	NodesFile    = "nodes.csv"
	EdgesFile    = "edges.csv"
	YearlyDir    = "yearly"
	ManifestFile = "manifest.yaml"
)

// YearlyNodesFile returns the per-year node table name.
func YearlyNodesFile(year int) string { return fmt.Sprintf("nodes_%d.csv", year) }

// YearlyEdgesFile returns the per-year edge table name.
func YearlyEdgesFile(year int) string { return fmt.Sprintf("edges_%d.csv", year) }

var (
	nodeHeader       = []string{"id", "year", "total_citations"}
	yearlyNodeHeader = []string{"id", "year", "total_citations", "synthesized"}
	edgeHeader       = []string{"source", "target", "source_year"}
)

// Manifest describes the per-year artifacts written by WritePartitions.
// Closed is true only when no partition has an edge endpoint without a node.
type Manifest struct {
	Closed bool            `yaml:"closed"`
	Years  []ManifestEntry `yaml:"years"`
}

// ManifestEntry is one partition's summary. Repaired counts synthesized
// nodes; Dangling counts edge endpoints that have no node.
type ManifestEntry struct {
	Year      int    `yaml:"year"`
	Edges     int    `yaml:"edges"`
	Nodes     int    `yaml:"nodes"`
	Repaired  int    `yaml:"repaired"`
	Dangling  int    `yaml:"dangling"`
	NodesFile string `yaml:"nodes_file"`
	EdgesFile string `yaml:"edges_file"`
}

// WriteGraph writes nodes.csv and edges.csv into dir.
func WriteGraph(dir string, g *types.Graph) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating directory %s: %w", dir, err)
	}
	if err := writeNodes(filepath.Join(dir, NodesFile), g.Nodes, false); err != nil {
		return err
	}
	return writeEdges(filepath.Join(dir, EdgesFile), g.Edges)
}

// ReadGraph reads nodes.csv and edges.csv from dir.
func ReadGraph(dir string) (*types.Graph, error) {
	nodes, err := ReadNodes(filepath.Join(dir, NodesFile))
	if err != nil {
		return nil, err
	}
	edges, err := ReadEdges(filepath.Join(dir, EdgesFile))
	if err != nil {
		return nil, err
	}
	return &types.Graph{Nodes: nodes, Edges: edges}, nil
}

// WritePartitions writes every partition into dir/yearly along with a
// manifest, and returns the manifest. Unrepaired partitions are written as
// given and reported through Manifest.Closed and ManifestEntry.Dangling.
func WritePartitions(dir string, parts []types.Partition) (Manifest, error) {
	ydir := filepath.Join(dir, YearlyDir)
	if err := os.MkdirAll(ydir, 0o755); err != nil {
		return Manifest{}, fmt.Errorf("creating directory %s: %w", ydir, err)
	}

	m := Manifest{Closed: true}
	for _, p := range parts {
		entry := ManifestEntry{
			Year:      p.Year,
			Edges:     len(p.Edges),
			Nodes:     len(p.Nodes),
			Repaired:  p.Synthesized(),
			Dangling:  len(Dangling(&p)),
			NodesFile: YearlyNodesFile(p.Year),
			EdgesFile: YearlyEdgesFile(p.Year),
		}
		if err := writeNodes(filepath.Join(ydir, entry.NodesFile), p.Nodes, true); err != nil {
			return Manifest{}, err
		}
		if err := writeEdges(filepath.Join(ydir, entry.EdgesFile), p.Edges); err != nil {
			return Manifest{}, err
		}
		if entry.Dangling > 0 {
			m.Closed = false
		}
		m.Years = append(m.Years, entry)
	}

	data, err := yaml.Marshal(m)
	if err != nil {
		return Manifest{}, fmt.Errorf("encoding manifest: %w", err)
	}
	if err := writeFileAtomic(filepath.Join(ydir, ManifestFile), func(w io.Writer) error {
		_, err := w.Write(data)
		return err
	}); err != nil {
		return Manifest{}, err
	}
	return m, nil
}

// ReadManifest reads dir/yearly/manifest.yaml.
func ReadManifest(dir string) (Manifest, error) {
	var m Manifest
	data, err := os.ReadFile(filepath.Join(dir, YearlyDir, ManifestFile))
	if err != nil {
		return m, fmt.Errorf("reading manifest: %w", err)
	}
	if err := yaml.Unmarshal(data, &m); err != nil {
		return m, fmt.Errorf("parsing manifest: %w", err)
	}
	return m, nil
}

// ReadPartitions loads every partition listed in the manifest under dir.
func ReadPartitions(dir string) ([]types.Partition, error) {
	m, err := ReadManifest(dir)
	if err != nil {
		return nil, err
	}
	ydir := filepath.Join(dir, YearlyDir)
	parts := make([]types.Partition, 0, len(m.Years))
	for _, e := range m.Years {
		nodes, err := ReadNodes(filepath.Join(ydir, e.NodesFile))
		if err != nil {
			return nil, err
		}
		edges, err := ReadEdges(filepath.Join(ydir, e.EdgesFile))
		if err != nil {
			return nil, err
		}
		parts = append(parts, types.Partition{Year: e.Year, Nodes: nodes, Edges: edges})
	}
	return parts, nil
}

// ReadNodes reads a node table. The id column is required; year,
// total_citations and synthesized are optional.
func ReadNodes(path string) ([]types.Node, error) {
	var nodes []types.Node
	err := readTable(path, []string{"id"}, func(get func(string) string) error {
		n := types.Node{ID: get("id"), Year: corpus.ParseYear(get("year"))}
		if s := get("total_citations"); s != "" {
			c, err := strconv.ParseFloat(s, 64)
			if err != nil {
				return fmt.Errorf("total_citations %q: %w", s, err)
			}
			n.TotalCitations = int(c)
		}
		if s := get("synthesized"); s != "" {
			b, err := strconv.ParseBool(s)
			if err != nil {
				return fmt.Errorf("synthesized %q: %w", s, err)
			}
			n.Synthesized = b
		}
		nodes = append(nodes, n)
		return nil
	})
	return nodes, err
}

// ReadEdges reads an edge table with source, target and source_year columns.
func ReadEdges(path string) ([]types.Edge, error) {
	var edges []types.Edge
	err := readTable(path, edgeHeader, func(get func(string) string) error {
		edges = append(edges, types.Edge{
			Source:     get("source"),
			Target:     get("target"),
			SourceYear: corpus.ParseYear(get("source_year")),
		})
		return nil
	})
	return edges, err
}

func writeNodes(path string, nodes []types.Node, withFlag bool) error {
	header := nodeHeader
	if withFlag {
		header = yearlyNodeHeader
	}
	return writeFileAtomic(path, func(w io.Writer) error {
		cw := csv.NewWriter(w)
		cw.Write(header)
		for _, n := range nodes {
			rec := []string{n.ID, yearField(n.Year), strconv.Itoa(n.TotalCitations)}
			if withFlag {
				rec = append(rec, strconv.FormatBool(n.Synthesized))
			}
			cw.Write(rec)
		}
		cw.Flush()
		return cw.Error()
	})
}

func writeEdges(path string, edges []types.Edge) error {
	return writeFileAtomic(path, func(w io.Writer) error {
		cw := csv.NewWriter(w)
		cw.Write(edgeHeader)
		for _, e := range edges {
			cw.Write([]string{e.Source, e.Target, yearField(e.SourceYear)})
		}
		cw.Flush()
		return cw.Error()
	})
}

func yearField(y int) string {
	if y == 0 {
		return ""
	}
	return strconv.Itoa(y)
}

// readTable reads a headered CSV, checks required columns and calls fn once
// per data row with a column accessor.
func readTable(path string, required []string, fn func(get func(string) string) error) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("opening %s: %w", path, err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1
	header, err := r.Read()
	if errors.Is(err, io.EOF) {
		return fmt.Errorf("%s: empty table", path)
	}
	if err != nil {
		return fmt.Errorf("reading %s header: %w", path, err)
	}
	cols := make(map[string]int, len(header))
	for i, name := range header {
		cols[strings.TrimSpace(name)] = i
	}
	var missing []string
	for _, c := range required {
		if _, ok := cols[c]; !ok {
			missing = append(missing, c)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("%s: missing columns %s", path, strings.Join(missing, ", "))
	}

	for line := 2; ; line++ {
		rec, err := r.Read()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("reading %s line %d: %w", path, line, err)
		}
		get := func(col string) string {
			i, ok := cols[col]
			if !ok || i >= len(rec) {
				return ""
			}
			return strings.TrimSpace(rec[i])
		}
		if err := fn(get); err != nil {
			return fmt.Errorf("%s line %d: %w", path, line, err)
		}
	}
}

// writeFileAtomic writes through a temp file in the target directory and
// renames it into place.
func writeFileAtomic(path string, write func(io.Writer) error) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), ".graph-*.tmp")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	tmpPath := tmp.Name()
	tmp.Chmod(0o644)

	writeErr := write(tmp)
	closeErr := tmp.Close()
	if writeErr != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("writing %s: %w", filepath.Base(path), writeErr)
	}
	if closeErr != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("closing temp file: %w", closeErr)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("renaming temp file: %w", err)
	}
	return nil
}
