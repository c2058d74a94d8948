package graph

import "logistics/pkg/logistics"

// UnionFind implements a disjoint-set data structure with path compression
// and union by rank.
type UnionFind struct {
	parent []uint32
	rank   []byte // max rank stays small, byte is enough
	size   []uint32
}

// NewUnionFind creates a UnionFind for n elements.
func NewUnionFind(n uint32) *UnionFind {
	parent := make([]uint32, n)
	size := make([]uint32, n)
	for i := range n {
		parent[i] = i
		size[i] = 1
	}
	return &UnionFind{
		parent: parent,
		rank:   make([]byte, n),
		size:   size,
	}
}

// Find returns the representative of the set containing x, with path halving.
func (uf *UnionFind) Find(x uint32) uint32 {
	for uf.parent[x] != x {
		uf.parent[x] = uf.parent[uf.parent[x]] // path halving
		x = uf.parent[x]
	}
	return x
}

// Union merges the sets containing x and y. Returns false if already same set.
func (uf *UnionFind) Union(x, y uint32) bool {
	rx := uf.Find(x)
	ry := uf.Find(y)
	if rx == ry {
		return false
	}

	// Union by rank.
	if uf.rank[rx] < uf.rank[ry] {
		rx, ry = ry, rx
	}
	uf.parent[ry] = rx
	uf.size[rx] += uf.size[ry]
	if uf.rank[rx] == uf.rank[ry] {
		uf.rank[rx]++
	}
	return true
}

func components(g *Graph) *UnionFind {
	uf := NewUnionFind(g.NumNodes)
	for u := uint32(0); u < g.NumNodes; u++ {
		start, end := g.EdgesFrom(u)
		for e := start; e < end; e++ {
			uf.Union(u, g.Head[e])
		}
	}
	return uf
}

// LargestComponent returns the node indices belonging to the largest
// connected component. On a size tie the component holding the lowest
// node index wins.
func LargestComponent(g *Graph) []uint32 {
	if g.NumNodes == 0 {
		return nil
	}

	uf := components(g)

	// Find the representative with the largest size.
	bestRoot := uint32(0)
	bestSize := uint32(0)
	for i := uint32(0); i < g.NumNodes; i++ {
		root := uf.Find(i)
		if uf.size[root] > bestSize {
			bestRoot = root
			bestSize = uf.size[root]
		}
	}

	// Collect all nodes in the largest component.
	nodes := make([]uint32, 0, bestSize)
	for i := uint32(0); i < g.NumNodes; i++ {
		if uf.Find(i) == bestRoot {
			nodes = append(nodes, i)
		}
	}

	return nodes
}

// KeepLargestComponent returns a copy of m holding only the connections, and
// the place locations, of its largest connected component.
func KeepLargestComponent(m *logistics.RoutesMap) (*logistics.RoutesMap, error) {
	g := Build(m)
	keep := make(map[string]struct{}, g.NumNodes)
	for _, idx := range LargestComponent(g) {
		keep[g.Names[idx]] = struct{}{}
	}

	out, err := logistics.NewRoutesMap(m.Name())
	if err != nil {
		return nil, err
	}
	for _, r := range m.Connections() {
		if _, ok := keep[r.Origin.Name]; !ok {
			continue
		}
		if _, err := out.AddRoute(r); err != nil {
			return nil, err
		}
	}
	for name, loc := range m.Locations() {
		if _, ok := keep[name]; !ok {
			continue
		}
		if err := out.SetLocation(name, loc); err != nil {
			return nil, err
		}
	}
	return out, nil
}
