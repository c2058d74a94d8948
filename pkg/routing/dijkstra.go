package routing

import (
	"math"

	"logistics/pkg/graph"
)

const noNode = math.MaxUint32

// MinHeap is a concrete-typed min-heap for Dijkstra priority queue.
// Avoids interface boxing overhead of container/heap.
//
// Items are ordered by distance, then by push sequence, so equal distances
// pop in the order they were discovered.
type MinHeap struct {
	items []PQItem
	seq   uint64
}

// PQItem is a priority queue entry.
type PQItem struct {
	Node uint32
	Dist float64
	seq  uint64
}

func (h *MinHeap) Len() int { return len(h.items) }

func (h *MinHeap) Push(node uint32, dist float64) {
	h.items = append(h.items, PQItem{Node: node, Dist: dist, seq: h.seq})
	h.seq++
	h.siftUp(len(h.items) - 1)
}

func (h *MinHeap) Pop() PQItem {
	n := len(h.items)
	item := h.items[0]
	h.items[0] = h.items[n-1]
	h.items = h.items[:n-1]
	if len(h.items) > 0 {
		h.siftDown(0)
	}
	return item
}

func (h *MinHeap) less(i, j int) bool {
	a, b := h.items[i], h.items[j]
	if a.Dist != b.Dist {
		return a.Dist < b.Dist
	}
	return a.seq < b.seq
}

func (h *MinHeap) siftUp(i int) {
	for i > 0 {
		parent := (i - 1) / 2
		if !h.less(i, parent) {
			break
		}
		h.items[i], h.items[parent] = h.items[parent], h.items[i]
		i = parent
	}
}

func (h *MinHeap) siftDown(i int) {
	n := len(h.items)
	for {
		smallest := i
		left := 2*i + 1
		right := 2*i + 2
		if left < n && h.less(left, smallest) {
			smallest = left
		}
		if right < n && h.less(right, smallest) {
			smallest = right
		}
		if smallest == i {
			break
		}
		h.items[i], h.items[smallest] = h.items[smallest], h.items[i]
		i = smallest
	}
}

// QueryState holds per-query state for a single-source Dijkstra search.
type QueryState struct {
	Dist     []float64
	PredNode []uint32 // predecessor node (noNode = none)
	PredEdge []uint32 // edge used to reach the node from PredNode
	Settled  []bool
	PQ       MinHeap
}

// NewQueryState creates a new QueryState for a graph with n nodes.
func NewQueryState(n uint32) *QueryState {
	dist := make([]float64, n)
	predNode := make([]uint32, n)
	predEdge := make([]uint32, n)
	for i := range dist {
		dist[i] = math.Inf(1)
		predNode[i] = noNode
		predEdge[i] = noNode
	}
	return &QueryState{
		Dist:     dist,
		PredNode: predNode,
		PredEdge: predEdge,
		Settled:  make([]bool, n),
		PQ:       MinHeap{items: make([]PQItem, 0, n)},
	}
}

// shortestPath runs Dijkstra from source and stops once target is settled.
// It returns the edge indices of the path in traversal order, or ok=false
// if target is unreachable.
//
// Relaxation is strict, so the first path found to a node keeps it on ties.
// Together with insertion-ordered adjacency and sequence-ordered heap ties,
// this makes the chosen path deterministic for a given map.
func shortestPath(g *graph.Graph, source, target uint32) (edges []uint32, dist float64, ok bool) {
	qs := NewQueryState(g.NumNodes)
	qs.Dist[source] = 0
	qs.PQ.Push(source, 0)

	for qs.PQ.Len() > 0 {
		item := qs.PQ.Pop()
		u := item.Node
		if qs.Settled[u] || item.Dist > qs.Dist[u] {
			continue // stale entry
		}
		qs.Settled[u] = true
		if u == target {
			break
		}

		start, end := g.EdgesFrom(u)
		for e := start; e < end; e++ {
			v := g.Head[e]
			if qs.Settled[v] {
				continue
			}
			newDist := item.Dist + g.Weight[e]
			if newDist < qs.Dist[v] {
				qs.Dist[v] = newDist
				qs.PredNode[v] = u
				qs.PredEdge[v] = e
				qs.PQ.Push(v, newDist)
			}
		}
	}

	if math.IsInf(qs.Dist[target], 1) {
		return nil, 0, false
	}

	// Trace back from target, then reverse.
	for node := target; node != source; node = qs.PredNode[node] {
		edges = append(edges, qs.PredEdge[node])
	}
	for i, j := 0, len(edges)-1; i < j; i, j = i+1, j-1 {
		edges[i], edges[j] = edges[j], edges[i]
	}
	return edges, qs.Dist[target], true
}
