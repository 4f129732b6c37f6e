// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package graph assembles the global citation graph from the corpus and
// slices it into per-year partitions.
package graph

import (
	"slices"

	"github.com/pdiddy/citegraph/internal/corpus"
	"github.com/pdiddy/citegraph/pkg/types"
)

// DuplicatePolicy decides which corpus row supplies the node for an
// identifier that appears more than once.
type DuplicatePolicy int

const (
	// KeepFirst keeps the first row's year.
	KeepFirst DuplicatePolicy = iota
	// KeepLast overwrites with each later row's year; position is unchanged.
	KeepLast
)

// DefaultDuplicatePolicy is the policy Assemble uses when none is given.
const DefaultDuplicatePolicy = KeepFirst

// AssembleOptions tunes Assemble.
type AssembleOptions struct {
	Duplicates DuplicatePolicy
}

// Assemble builds the authoritative node table and the global edge table.
//
// Every reference of every row becomes an edge carrying the row's year.
// Every distinct row identifier becomes one node, in order of first
// appearance, with its total citations taken from citations (0 when absent
// or when citations is nil). Duplicate rows whose years disagree are listed
// in Graph.Conflicts.
func Assemble(rows []corpus.Row, citations map[string]int, opts AssembleOptions) *types.Graph {
	g := &types.Graph{}
	index := make(map[string]int, len(rows)) // id -> position in g.Nodes
	years := make(map[string][]int)          // id -> distinct years, in row order

	for _, r := range rows {
		for _, target := range r.References {
			if target == "" {
				continue
			}
			g.Edges = append(g.Edges, types.Edge{Source: r.ID, Target: target, SourceYear: r.Year})
		}

		if !slices.Contains(years[r.ID], r.Year) {
			years[r.ID] = append(years[r.ID], r.Year)
		}
		pos, seen := index[r.ID]
		if !seen {
			index[r.ID] = len(g.Nodes)
			g.Nodes = append(g.Nodes, types.Node{
				ID:             r.ID,
				Year:           r.Year,
				TotalCitations: citations[r.ID],
			})
			continue
		}
		if opts.Duplicates == KeepLast {
			g.Nodes[pos].Year = r.Year
		}
	}

	for _, n := range g.Nodes {
		for _, y := range years[n.ID] {
			if y != n.Year {
				g.Conflicts = append(g.Conflicts, types.YearConflict{ID: n.ID, KeptYear: n.Year, OtherYear: y})
			}
		}
	}
	return g
}

// InDegree counts edges per target: the number of in-corpus citations.
func InDegree(edges []types.Edge) map[string]int {
	counts := make(map[string]int)
	for _, e := range edges {
		counts[e.Target]++
	}
	return counts
}
