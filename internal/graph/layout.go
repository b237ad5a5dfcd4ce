package graph

import (
	"fmt"
	"math"
)

// Position is a computed 2D coordinate for one node.
type Position struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Layout algorithm names.
const (
	LayoutCircle = "circle"
	LayoutGrid   = "grid"
)

// ComputeLayout places the graph's nodes deterministically. Nodes are
// processed in sorted name order so identical graphs always produce
// identical layouts.
func ComputeLayout(g *Graph, algorithm string) (map[string]Position, error) {
	names := g.NodeNames()
	positions := make(map[string]Position, len(names))

	switch algorithm {
	case LayoutCircle, "":
		// radius grows with node count so dense graphs stay readable
		radius := 100.0 + 10.0*float64(len(names))
		for i, name := range names {
			angle := 2 * math.Pi * float64(i) / float64(max(len(names), 1))
			positions[name] = Position{
				X: radius * math.Cos(angle),
				Y: radius * math.Sin(angle),
			}
		}
	case LayoutGrid:
		cols := int(math.Ceil(math.Sqrt(float64(len(names)))))
		if cols == 0 {
			cols = 1
		}
		const spacing = 120.0
		for i, name := range names {
			positions[name] = Position{
				X: float64(i%cols) * spacing,
				Y: float64(i/cols) * spacing,
			}
		}
	default:
		return nil, fmt.Errorf("unknown layout algorithm %q", algorithm)
	}

	return positions, nil
}

// ComputeClusters groups nodes into connected components and returns all
// components with at least minSize members, largest first. Node order
// within a cluster is sorted by name.
func ComputeClusters(g *Graph, minSize int) [][]string {
	if minSize < 1 {
		minSize = 1
	}

	parent := make(map[string]string, len(g.Nodes))
	var find func(string) string
	find = func(x string) string {
		if parent[x] != x {
			parent[x] = find(parent[x])
		}
		return parent[x]
	}
	for name := range g.Nodes {
		parent[name] = name
	}
	for _, e := range g.Edges {
		rs, rt := find(e.Source), find(e.Target)
		if rs != rt {
			parent[rs] = rt
		}
	}

	components := make(map[string][]string)
	for _, name := range g.NodeNames() {
		root := find(name)
		components[root] = append(components[root], name)
	}

	var clusters [][]string
	for _, members := range components {
		if len(members) >= minSize {
			clusters = append(clusters, members)
		}
	}
	// largest first; tie-break on first member for determinism
	for i := 0; i < len(clusters); i++ {
		for j := i + 1; j < len(clusters); j++ {
			if len(clusters[j]) > len(clusters[i]) ||
				(len(clusters[j]) == len(clusters[i]) && clusters[j][0] < clusters[i][0]) {
				clusters[i], clusters[j] = clusters[j], clusters[i]
			}
		}
	}
	return clusters
}
