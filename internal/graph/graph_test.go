package graph

import (
	"context"
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/civicscope/civicscope/internal/intel"
)

type memStore struct {
	rels    map[string][]Relationship
	loads   int
	inserts int
	failAll bool
}

func newMemStore() *memStore {
	return &memStore{rels: make(map[string][]Relationship)}
}

func (m *memStore) RelationshipsForOwner(_ context.Context, owner string) ([]Relationship, error) {
	if m.failAll {
		return nil, errors.New("store unavailable")
	}
	m.loads++
	return m.rels[owner], nil
}

func (m *memStore) InsertRelationship(_ context.Context, owner string, rel Relationship) error {
	if m.failAll {
		return errors.New("store unavailable")
	}
	m.inserts++
	m.rels[owner] = append(m.rels[owner], rel)
	return nil
}

func TestGraphLoadAndMemoization(t *testing.T) {
	store := newMemStore()
	store.rels["alice"] = []Relationship{
		{Source: "city council", Target: "school board", Kind: "co_occurrence", Weight: 2},
		{Source: "city council", Target: "mayor", Kind: "co_occurrence", Weight: 1},
	}
	svc := NewService(store)
	ctx := context.Background()

	g, err := svc.Graph(ctx, "alice")
	if err != nil {
		t.Fatalf("Graph: %v", err)
	}
	if len(g.Nodes) != 3 || len(g.Edges) != 2 {
		t.Errorf("got %d nodes, %d edges, want 3 and 2", len(g.Nodes), len(g.Edges))
	}
	if g.Nodes["city council"].Degree != 2 {
		t.Errorf("city council degree = %d, want 2", g.Nodes["city council"].Degree)
	}

	if _, err := svc.Graph(ctx, "alice"); err != nil {
		t.Fatalf("second Graph: %v", err)
	}
	if store.loads != 1 {
		t.Errorf("store loaded %d times, want 1 (second call served from cache)", store.loads)
	}
}

func TestGraphLoadErrorNotCached(t *testing.T) {
	store := newMemStore()
	store.failAll = true
	svc := NewService(store)
	ctx := context.Background()

	if _, err := svc.Graph(ctx, "alice"); err == nil {
		t.Fatal("expected error from failing store")
	}
	store.failAll = false
	if _, err := svc.Graph(ctx, "alice"); err != nil {
		t.Fatalf("expected recovery after store came back: %v", err)
	}
}

func TestAddRelationshipInvalidatesAllLayers(t *testing.T) {
	store := newMemStore()
	store.rels["alice"] = []Relationship{
		{Source: "a", Target: "b", Kind: "co_occurrence", Weight: 1},
	}
	svc := NewService(store)
	ctx := context.Background()

	if _, err := svc.Graph(ctx, "alice"); err != nil {
		t.Fatal(err)
	}
	if _, err := svc.Layout(ctx, "alice", LayoutCircle); err != nil {
		t.Fatal(err)
	}
	if _, err := svc.Clusters(ctx, "alice", 1); err != nil {
		t.Fatal(err)
	}

	err := svc.AddRelationship(ctx, "alice", Relationship{
		Source: "b", Target: "c", Kind: "co_occurrence", Weight: 1,
	})
	if err != nil {
		t.Fatalf("AddRelationship: %v", err)
	}

	g, err := svc.Graph(ctx, "alice")
	if err != nil {
		t.Fatal(err)
	}
	if len(g.Nodes) != 3 {
		t.Errorf("graph after add has %d nodes, want 3 (stale cache served)", len(g.Nodes))
	}
	if svc.layouts.len() != 0 || svc.clusters.len() != 0 {
		t.Errorf("layout/cluster caches not invalidated: %d, %d entries",
			svc.layouts.len(), svc.clusters.len())
	}
	if store.loads != 2 {
		t.Errorf("store loaded %d times, want 2", store.loads)
	}
}

func TestAddRelationshipInsertErrorKeepsCache(t *testing.T) {
	store := newMemStore()
	store.rels["alice"] = []Relationship{
		{Source: "a", Target: "b", Kind: "co_occurrence", Weight: 1},
	}
	svc := NewService(store)
	ctx := context.Background()

	if _, err := svc.Graph(ctx, "alice"); err != nil {
		t.Fatal(err)
	}

	store.failAll = true
	err := svc.AddRelationship(ctx, "alice", Relationship{Source: "b", Target: "c"})
	if err == nil {
		t.Fatal("expected insert error")
	}
	if svc.graphs.len() != 1 {
		t.Error("cached graph should survive a failed insert")
	}
}

func TestDiscoverRecordsCoOccurrences(t *testing.T) {
	store := newMemStore()
	svc := NewService(store)
	ctx := context.Background()

	entities := []string{"City Council", "School Board", "Water District"}
	items := []intel.CollectedItem{
		{Title: "City Council and School Board hold joint budget session"},
		{Title: "School board delays vote", Content: "The city council had requested more time."},
		{Title: "Water district rate hike approved"},
	}

	n, err := svc.Discover(ctx, "alice", entities, items)
	if err != nil {
		t.Fatalf("Discover: %v", err)
	}
	// one pair, mentioned together in two items
	if n != 1 {
		t.Fatalf("recorded %d relationships, want 1", n)
	}

	got := store.rels["alice"]
	want := []Relationship{
		{Source: "City Council", Target: "School Board", Kind: "co_occurrence", Weight: 2},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("relationships mismatch (-want +got):\n%s", diff)
	}
}

func TestDiscoverNoPairsLeavesCacheIntact(t *testing.T) {
	store := newMemStore()
	store.rels["alice"] = []Relationship{
		{Source: "a", Target: "b", Kind: "co_occurrence", Weight: 1},
	}
	svc := NewService(store)
	ctx := context.Background()

	if _, err := svc.Graph(ctx, "alice"); err != nil {
		t.Fatal(err)
	}

	n, err := svc.Discover(ctx, "alice", []string{"a", "b"}, []intel.CollectedItem{
		{Title: "nothing relevant here"},
	})
	if err != nil {
		t.Fatalf("Discover: %v", err)
	}
	if n != 0 {
		t.Fatalf("recorded %d relationships, want 0", n)
	}
	if svc.graphs.len() != 1 {
		t.Error("cache invalidated despite zero discoveries")
	}
}

func TestLayoutDeterministic(t *testing.T) {
	g := &Graph{Nodes: map[string]*Node{
		"gamma": {Name: "gamma"},
		"alpha": {Name: "alpha"},
		"beta":  {Name: "beta"},
	}}

	first, err := ComputeLayout(g, LayoutCircle)
	if err != nil {
		t.Fatalf("ComputeLayout: %v", err)
	}
	for i := 0; i < 10; i++ {
		again, err := ComputeLayout(g, LayoutCircle)
		if err != nil {
			t.Fatal(err)
		}
		if diff := cmp.Diff(first, again); diff != "" {
			t.Fatalf("layout not deterministic (-first +again):\n%s", diff)
		}
	}
}

func TestLayoutGrid(t *testing.T) {
	g := &Graph{Nodes: map[string]*Node{
		"a": {Name: "a"}, "b": {Name: "b"},
		"c": {Name: "c"}, "d": {Name: "d"},
	}}
	pos, err := ComputeLayout(g, LayoutGrid)
	if err != nil {
		t.Fatalf("ComputeLayout: %v", err)
	}
	want := map[string]Position{
		"a": {X: 0, Y: 0},
		"b": {X: 120, Y: 0},
		"c": {X: 0, Y: 120},
		"d": {X: 120, Y: 120},
	}
	if diff := cmp.Diff(want, pos); diff != "" {
		t.Errorf("grid layout mismatch (-want +got):\n%s", diff)
	}
}

func TestLayoutUnknownAlgorithm(t *testing.T) {
	g := &Graph{Nodes: map[string]*Node{"a": {Name: "a"}}}
	if _, err := ComputeLayout(g, "hyperbolic"); err == nil {
		t.Error("expected error for unknown algorithm")
	}
}

func TestComputeClusters(t *testing.T) {
	g := &Graph{
		Nodes: map[string]*Node{
			"a": {Name: "a"}, "b": {Name: "b"}, "c": {Name: "c"},
			"x": {Name: "x"}, "y": {Name: "y"},
			"lone": {Name: "lone"},
		},
		Edges: []Edge{
			{Source: "a", Target: "b"},
			{Source: "b", Target: "c"},
			{Source: "x", Target: "y"},
		},
	}

	got := ComputeClusters(g, 2)
	want := [][]string{
		{"a", "b", "c"},
		{"x", "y"},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("clusters mismatch (-want +got):\n%s", diff)
	}

	all := ComputeClusters(g, 1)
	if len(all) != 3 {
		t.Errorf("minSize 1 returned %d clusters, want 3", len(all))
	}
}
