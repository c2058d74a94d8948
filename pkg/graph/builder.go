package graph

import (
	"sort"

	"logistics/pkg/logistics"
)

// Build creates a CSR Graph from the routes of m. Nodes are numbered in
// first-seen order and each node's out-edges keep the map's insertion order,
// so searches over the snapshot visit edges deterministically.
func Build(m *logistics.RoutesMap) *Graph {
	routes := m.Routes()
	if len(routes) == 0 {
		return &Graph{FirstOut: []uint32{0}, index: map[string]uint32{}}
	}

	// Step 1: Collect all unique place names and build a compact mapping.
	nodeSet := make(map[string]uint32)
	var names []string

	addNode := func(name string) uint32 {
		if idx, ok := nodeSet[name]; ok {
			return idx
		}
		idx := uint32(len(names))
		nodeSet[name] = idx
		names = append(names, name)
		return idx
	}

	// Step 2: Build compact edge list with remapped indices.
	type compactEdge struct {
		from     uint32
		to       uint32
		weight   float64
		routeIdx uint32
	}

	compact := make([]compactEdge, len(routes))
	for i, r := range routes {
		compact[i] = compactEdge{
			from:     addNode(r.Origin.Name),
			to:       addNode(r.Destination.Name),
			weight:   r.Distance,
			routeIdx: uint32(i),
		}
	}

	numNodes := uint32(len(names))

	// Step 3: Sort edges by source node, keeping insertion order within a node.
	sort.SliceStable(compact, func(i, j int) bool {
		return compact[i].from < compact[j].from
	})

	// Step 4: Build CSR arrays.
	numEdges := uint32(len(compact))
	firstOut := make([]uint32, numNodes+1)
	head := make([]uint32, numEdges)
	weight := make([]float64, numEdges)
	routeIdx := make([]uint32, numEdges)

	for i, e := range compact {
		head[i] = e.to
		weight[i] = e.weight
		routeIdx[i] = e.routeIdx
	}

	// Build FirstOut via counting.
	for _, e := range compact {
		firstOut[e.from+1]++
	}
	// Prefix sum.
	for i := uint32(1); i <= numNodes; i++ {
		firstOut[i] += firstOut[i-1]
	}

	return &Graph{
		NumNodes: numNodes,
		NumEdges: numEdges,
		Names:    names,
		FirstOut: firstOut,
		Head:     head,
		Weight:   weight,
		RouteIdx: routeIdx,
		index:    nodeSet,
	}
}
