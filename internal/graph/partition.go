// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package graph

import (
	"sort"

	"github.com/pdiddy/citegraph/pkg/types"
)

// Partition groups the edges of g by source year, in ascending year order.
// Edges with an unknown year are left out. Each partition's nodes are the
// authoritative nodes that appear as an endpoint of its edges, in
// authoritative order. Years without edges produce no partition.
func Partition(g *types.Graph) []types.Partition {
	byYear := make(map[int][]types.Edge)
	for _, e := range g.Edges {
		if e.SourceYear == 0 {
			continue
		}
		byYear[e.SourceYear] = append(byYear[e.SourceYear], e)
	}

	years := make([]int, 0, len(byYear))
	for y := range byYear {
		years = append(years, y)
	}
	sort.Ints(years)

	parts := make([]types.Partition, 0, len(years))
	for _, y := range years {
		p := types.Partition{Year: y, Edges: byYear[y]}
		endpoints := p.Endpoints()
		for _, n := range g.Nodes {
			if endpoints[n.ID] {
				p.Nodes = append(p.Nodes, n)
			}
		}
		parts = append(parts, p)
	}
	return parts
}

// Repair appends a placeholder node for every edge endpoint missing from
// p's node set: the partition's year, zero citations, and Synthesized set.
// Placeholders are appended in ascending id order. It returns the ids it
// added. Afterwards every edge endpoint of p is a node of p.
func Repair(p *types.Partition) []string {
	missing := Dangling(p)
	for _, id := range missing {
		p.Nodes = append(p.Nodes, types.Node{ID: id, Year: p.Year, Synthesized: true})
	}
	return missing
}

// Dangling returns the sorted edge endpoints of p that have no node.
func Dangling(p *types.Partition) []string {
	present := make(map[string]bool, len(p.Nodes))
	for _, n := range p.Nodes {
		present[n.ID] = true
	}
	var out []string
	for id := range p.Endpoints() {
		if !present[id] {
			out = append(out, id)
		}
	}
	sort.Strings(out)
	return out
}
