// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package types defines shared data structures for the citegraph pipeline:
// works, reference edges, citation timelines, and year partitions.
package types

import "sort"

// Node is a published work in the citation graph.
type Node struct {
	// ID is the canonical work identifier (e.g. "W2741809807").
	ID string `json:"id" yaml:"id"`

	// Year is the publication year; 0 means unknown.
	Year int `json:"year,omitempty" yaml:"year,omitempty"`

	// TotalCitations is the derived citation count.
	TotalCitations int `json:"total_citations" yaml:"total_citations"`

	// Synthesized marks placeholder nodes created during partition repair.
	// They carry a fallback count of 0 and were never observed in the corpus.
	Synthesized bool `json:"synthesized,omitempty" yaml:"synthesized,omitempty"`
}

// HasYear reports whether the publication year is known.
func (n Node) HasYear() bool { return n.Year != 0 }

// Edge is a directed "source cites target" relation.
type Edge struct {
	Source string `json:"source" yaml:"source"`
	Target string `json:"target" yaml:"target"`

	// SourceYear is denormalized from the source work for partitioning;
	// 0 means unknown.
	SourceYear int `json:"source_year,omitempty" yaml:"source_year,omitempty"`
}

// YearConflict records a duplicate identifier whose rows disagree on the
// publication year. Only the kept year ends up in the node table.
type YearConflict struct {
	ID        string `json:"id" yaml:"id"`
	KeptYear  int    `json:"kept_year" yaml:"kept_year"`
	OtherYear int    `json:"other_year" yaml:"other_year"`
}

// Graph is the authoritative node table plus the global edge table.
type Graph struct {
	Nodes     []Node         `json:"nodes" yaml:"nodes"`
	Edges     []Edge         `json:"edges" yaml:"edges"`
	Conflicts []YearConflict `json:"conflicts,omitempty" yaml:"conflicts,omitempty"`
}

// NodeIDs returns the set of node identifiers.
func (g *Graph) NodeIDs() map[string]bool {
	ids := make(map[string]bool, len(g.Nodes))
	for _, n := range g.Nodes {
		ids[n.ID] = true
	}
	return ids
}

// Partition is the node/edge sub-graph scoped to one source publication year.
type Partition struct {
	Year  int    `json:"year" yaml:"year"`
	Nodes []Node `json:"nodes" yaml:"nodes"`
	Edges []Edge `json:"edges" yaml:"edges"`
}

// Endpoints returns every identifier that appears as a source or target of
// an edge in the partition.
func (p *Partition) Endpoints() map[string]bool {
	ids := make(map[string]bool, 2*len(p.Edges))
	for _, e := range p.Edges {
		ids[e.Source] = true
		ids[e.Target] = true
	}
	return ids
}

// Synthesized returns the number of placeholder nodes in the partition.
func (p *Partition) Synthesized() int {
	n := 0
	for _, node := range p.Nodes {
		if node.Synthesized {
			n++
		}
	}
	return n
}

// Timeline maps a calendar year to the number of citations received in it.
type Timeline map[int]int

// Total returns the sum of all yearly counts.
func (t Timeline) Total() int {
	total := 0
	for _, c := range t {
		total += c
	}
	return total
}

// Years returns the years present in the timeline in ascending order.
func (t Timeline) Years() []int {
	years := make([]int, 0, len(t))
	for y := range t {
		years = append(years, y)
	}
	sort.Ints(years)
	return years
}
