package graph

// Graph is a read-only snapshot of a routes map in CSR (Compressed Sparse Row)
// format. Node i is the place Names[i].
type Graph struct {
	NumNodes uint32
	NumEdges uint32
	Names    []string  // len: NumNodes; place name per node
	FirstOut []uint32  // len: NumNodes + 1; FirstOut[i]..FirstOut[i+1] are edges from node i
	Head     []uint32  // len: NumEdges; target node for each edge
	Weight   []float64 // len: NumEdges; route distance
	RouteIdx []uint32  // len: NumEdges; index into the source map's Routes()

	index map[string]uint32
}

// EdgesFrom returns the range of edge indices for edges originating from node u.
func (g *Graph) EdgesFrom(u uint32) (start, end uint32) {
	return g.FirstOut[u], g.FirstOut[u+1]
}

// NodeIndex resolves a place name to its node.
func (g *Graph) NodeIndex(name string) (uint32, bool) {
	idx, ok := g.index[name]
	return idx, ok
}
