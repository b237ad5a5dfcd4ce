// Package graph maintains the per-owner entity-relationship graph and the
// TTL caches that sit in front of it. The graph itself is cheap to mutate
// but expensive to load, lay out, and cluster, so those three products are
// memoized independently.
package graph

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/civicscope/civicscope/internal/intel"
)

// Relationship is one directed edge between two named entities.
type Relationship struct {
	Source string
	Target string
	Kind   string
	Weight float64
}

// Store persists relationships per owner. Implemented by the database layer.
type Store interface {
	RelationshipsForOwner(ctx context.Context, owner string) ([]Relationship, error)
	InsertRelationship(ctx context.Context, owner string, rel Relationship) error
}

// Graph is a loaded in-memory relationship graph. It is mutable, so
// callers must never read it while a writer holds it; writers go through
// Service.AddRelationship, which invalidates instead of editing in place.
type Graph struct {
	Nodes map[string]*Node
	Edges []Edge
}

// Node is one entity in the graph.
type Node struct {
	Name   string
	Degree int
}

// Edge connects two nodes.
type Edge struct {
	Source string
	Target string
	Kind   string
	Weight float64
}

// NodeNames returns node names in sorted order.
func (g *Graph) NodeNames() []string {
	names := make([]string, 0, len(g.Nodes))
	for name := range g.Nodes {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Service loads graphs from the store and serves memoized layouts and
// clusters. All cache state is owned here; construct one per process and
// inject it (no package-level singletons).
type Service struct {
	store    Store
	graphs   *cache[string, *Graph]
	layouts  *cache[layoutKey, map[string]Position]
	clusters *cache[clusterKey, [][]string]
}

type layoutKey struct {
	Owner     string
	Algorithm string
	NodeCount int
}

type clusterKey struct {
	Owner     string
	MinSize   int
	NodeCount int
}

// NewService creates a graph service over the given store.
func NewService(store Store) *Service {
	return &Service{
		store:    store,
		graphs:   newCache[string, *Graph](GraphTTL),
		layouts:  newCache[layoutKey, map[string]Position](LayoutTTL),
		clusters: newCache[clusterKey, [][]string](ClusterTTL),
	}
}

// Graph returns the owner's relationship graph, loading it from the store
// when the cached copy is missing or stale.
func (s *Service) Graph(ctx context.Context, owner string) (*Graph, error) {
	return s.graphs.getOrCompute(owner, func() (*Graph, error) {
		return s.load(ctx, owner)
	})
}

// Layout returns memoized node positions for the owner's graph.
func (s *Service) Layout(ctx context.Context, owner, algorithm string) (map[string]Position, error) {
	g, err := s.Graph(ctx, owner)
	if err != nil {
		return nil, err
	}
	key := layoutKey{Owner: owner, Algorithm: algorithm, NodeCount: len(g.Nodes)}
	return s.layouts.getOrCompute(key, func() (map[string]Position, error) {
		return ComputeLayout(g, algorithm)
	})
}

// Clusters returns memoized entity clusters of at least minSize nodes.
func (s *Service) Clusters(ctx context.Context, owner string, minSize int) ([][]string, error) {
	g, err := s.Graph(ctx, owner)
	if err != nil {
		return nil, err
	}
	key := clusterKey{Owner: owner, MinSize: minSize, NodeCount: len(g.Nodes)}
	return s.clusters.getOrCompute(key, func() ([][]string, error) {
		return ComputeClusters(g, minSize), nil
	})
}

// AddRelationship persists a new relationship and invalidates all three
// cache layers for the owner. The cached graph is never edited in place.
func (s *Service) AddRelationship(ctx context.Context, owner string, rel Relationship) error {
	if err := s.store.InsertRelationship(ctx, owner, rel); err != nil {
		return fmt.Errorf("inserting relationship: %w", err)
	}
	s.InvalidateOwner(owner)
	return nil
}

// Discover scans items for co-mentions of tracked entities and records a
// co_occurrence relationship for each pair, then invalidates the caches.
// Returns the number of relationships recorded.
func (s *Service) Discover(ctx context.Context, owner string, entities []string, items []intel.CollectedItem) (int, error) {
	pairWeights := make(map[[2]string]float64)
	for _, it := range items {
		text := strings.ToLower(it.Title + " " + it.Content + " " + it.Summary)
		var present []string
		for _, e := range entities {
			if strings.Contains(text, strings.ToLower(e)) {
				present = append(present, e)
			}
		}
		sort.Strings(present)
		for i := 0; i < len(present); i++ {
			for j := i + 1; j < len(present); j++ {
				pairWeights[[2]string{present[i], present[j]}]++
			}
		}
	}

	keys := make([][2]string, 0, len(pairWeights))
	for k := range pairWeights {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i][0] != keys[j][0] {
			return keys[i][0] < keys[j][0]
		}
		return keys[i][1] < keys[j][1]
	})

	inserted := 0
	for _, k := range keys {
		rel := Relationship{Source: k[0], Target: k[1], Kind: "co_occurrence", Weight: pairWeights[k]}
		if err := s.store.InsertRelationship(ctx, owner, rel); err != nil {
			return inserted, fmt.Errorf("recording discovered relationship: %w", err)
		}
		inserted++
	}

	if inserted > 0 {
		s.InvalidateOwner(owner)
	}
	return inserted, nil
}

// InvalidateOwner drops all cached state for one owner across all layers.
func (s *Service) InvalidateOwner(owner string) {
	s.graphs.invalidateMatching(func(k string) bool { return k == owner })
	s.layouts.invalidateMatching(func(k layoutKey) bool { return k.Owner == owner })
	s.clusters.invalidateMatching(func(k clusterKey) bool { return k.Owner == owner })
}

// InvalidateAll drops every cached entry in all layers.
func (s *Service) InvalidateAll() {
	s.graphs.invalidateAll()
	s.layouts.invalidateAll()
	s.clusters.invalidateAll()
}

func (s *Service) load(ctx context.Context, owner string) (*Graph, error) {
	rels, err := s.store.RelationshipsForOwner(ctx, owner)
	if err != nil {
		return nil, fmt.Errorf("loading relationships: %w", err)
	}

	g := &Graph{Nodes: make(map[string]*Node)}
	node := func(name string) *Node {
		if n, ok := g.Nodes[name]; ok {
			return n
		}
		n := &Node{Name: name}
		g.Nodes[name] = n
		return n
	}

	for _, rel := range rels {
		src, dst := node(rel.Source), node(rel.Target)
		src.Degree++
		dst.Degree++
		g.Edges = append(g.Edges, Edge(rel))
	}
	return g, nil
}
