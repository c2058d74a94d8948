package graph

import (
	"testing"

	"logistics/pkg/logistics"
)

// buildTestMap returns a map from the given connections.
func buildTestMap(t *testing.T, routes ...logistics.Route) *logistics.RoutesMap {
	t.Helper()
	m, err := logistics.NewRoutesMap("graph test")
	if err != nil {
		t.Fatalf("NewRoutesMap: %v", err)
	}
	for _, r := range routes {
		if _, err := m.AddRoute(r); err != nil {
			t.Fatalf("AddRoute(%s): %v", r, err)
		}
	}
	return m
}

func TestBuildSimpleGraph(t *testing.T) {
	// A --10-- B --15-- D
	// |
	// 20
	// |
	// C
	m := buildTestMap(t,
		logistics.NewRoute("A", "B", 10),
		logistics.NewRoute("B", "D", 15),
		logistics.NewRoute("A", "C", 20),
	)

	g := Build(m)

	if g.NumNodes != 4 {
		t.Fatalf("NumNodes = %d, want 4", g.NumNodes)
	}
	if g.NumEdges != 6 {
		t.Fatalf("NumEdges = %d, want 6", g.NumEdges)
	}

	wantNames := []string{"A", "B", "D", "C"}
	for i, name := range wantNames {
		if g.Names[i] != name {
			t.Errorf("Names[%d] = %q, want %q", i, g.Names[i], name)
		}
		if idx, ok := g.NodeIndex(name); !ok || idx != uint32(i) {
			t.Errorf("NodeIndex(%q) = %d, %v; want %d", name, idx, ok, i)
		}
	}

	// A's out-edges keep insertion order: B first, then C.
	a, _ := g.NodeIndex("A")
	start, end := g.EdgesFrom(a)
	if end-start != 2 {
		t.Fatalf("A has %d edges, want 2", end-start)
	}
	if got := g.Names[g.Head[start]]; got != "B" {
		t.Errorf("first edge from A goes to %q, want B", got)
	}
	if got := g.Names[g.Head[start+1]]; got != "C" {
		t.Errorf("second edge from A goes to %q, want C", got)
	}

	// RouteIdx points back to the originating route.
	routes := m.Routes()
	for e := uint32(0); e < g.NumEdges; e++ {
		r := routes[g.RouteIdx[e]]
		if r.Distance != g.Weight[e] || r.Destination.Name != g.Names[g.Head[e]] {
			t.Errorf("edge %d does not match route %s", e, r)
		}
	}

	var totalWeight float64
	for _, w := range g.Weight {
		totalWeight += w
	}
	if totalWeight != 90 {
		t.Errorf("total weight = %v, want 90", totalWeight)
	}
}

func TestBuildEmptyGraph(t *testing.T) {
	g := Build(buildTestMap(t))

	if g.NumNodes != 0 || g.NumEdges != 0 {
		t.Errorf("empty graph: NumNodes=%d NumEdges=%d", g.NumNodes, g.NumEdges)
	}
	if _, ok := g.NodeIndex("A"); ok {
		t.Error("NodeIndex on empty graph should fail")
	}
}
