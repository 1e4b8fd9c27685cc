// Package graph builds the region graphs the router searches: an undirected
// distance graph from the adjacency table and a directed exposure graph
// derived per query from active-case counts.
package graph

import (
	"slices"
	"sort"
	"strings"
)

// Weight is the set of edge cost types the graphs carry.
type Weight interface {
	~int64 | ~float64
}

// Graph is an immutable graph over region ids in CSR (Compressed Sparse Row)
// format. Vertices are numbered in lexicographic id order and each vertex's
// arcs are sorted by head, so every traversal is deterministic.
type Graph[W Weight] struct {
	ids      []string
	index    map[string]uint32
	firstOut []uint32 // len: NumNodes + 1; firstOut[i]..firstOut[i+1] are arcs from node i
	head     []uint32
	weight   []W
	directed bool
}

// Edge is one arc of a graph expressed in region ids.
type Edge[W Weight] struct {
	From   string
	To     string
	Weight W
}

type arcKey struct{ from, to string }

// fromArcs assembles a CSR graph. ids must already contain every arc endpoint.
func fromArcs[W Weight](ids []string, arcs map[arcKey]W, directed bool) *Graph[W] {
	ids = slices.Clone(ids)
	sort.Strings(ids)
	ids = slices.Compact(ids)

	index := make(map[string]uint32, len(ids))
	for i, id := range ids {
		index[id] = uint32(i)
	}

	type compactArc struct {
		from, to uint32
		w        W
	}
	compact := make([]compactArc, 0, len(arcs))
	for k, w := range arcs {
		compact = append(compact, compactArc{from: index[k.from], to: index[k.to], w: w})
	}
	slices.SortFunc(compact, func(a, b compactArc) int {
		if a.from != b.from {
			return int(a.from) - int(b.from)
		}
		return int(a.to) - int(b.to)
	})

	firstOut := make([]uint32, len(ids)+1)
	head := make([]uint32, len(compact))
	weight := make([]W, len(compact))
	for i, a := range compact {
		head[i] = a.to
		weight[i] = a.w
		firstOut[a.from+1]++
	}
	for i := 1; i <= len(ids); i++ {
		firstOut[i] += firstOut[i-1]
	}

	return &Graph[W]{
		ids:      ids,
		index:    index,
		firstOut: firstOut,
		head:     head,
		weight:   weight,
		directed: directed,
	}
}

// NumNodes returns the vertex count.
func (g *Graph[W]) NumNodes() int { return len(g.ids) }

// NumArcs returns the number of stored arcs; an undirected edge counts twice.
func (g *Graph[W]) NumArcs() int { return len(g.head) }

// Directed reports whether arcs are one-way.
func (g *Graph[W]) Directed() bool { return g.directed }

// ID returns the region id of vertex i.
func (g *Graph[W]) ID(i uint32) string { return g.ids[i] }

// IDs returns every region id in vertex order.
func (g *Graph[W]) IDs() []string { return slices.Clone(g.ids) }

// Index returns the vertex number of a region id.
func (g *Graph[W]) Index(id string) (uint32, bool) {
	i, ok := g.index[id]
	return i, ok
}

// Has reports whether the region id is a vertex.
func (g *Graph[W]) Has(id string) bool {
	_, ok := g.index[id]
	return ok
}

// ArcsFrom returns the range of arc indices leaving vertex u.
func (g *Graph[W]) ArcsFrom(u uint32) (start, end uint32) {
	return g.firstOut[u], g.firstOut[u+1]
}

// Head returns the target vertex of arc e.
func (g *Graph[W]) Head(e uint32) uint32 { return g.head[e] }

// ArcWeight returns the cost of arc e.
func (g *Graph[W]) ArcWeight(e uint32) W { return g.weight[e] }

// Cost returns the cost of moving from region a to neighboring region b.
func (g *Graph[W]) Cost(a, b string) (W, bool) {
	u, ok := g.index[a]
	if !ok {
		return 0, false
	}
	v, ok := g.index[b]
	if !ok {
		return 0, false
	}
	start, end := g.ArcsFrom(u)
	heads := g.head[start:end]
	i, found := slices.BinarySearch(heads, v)
	if !found {
		return 0, false
	}
	return g.weight[start+uint32(i)], true
}

// PathCost sums the arc costs along a region sequence.
func (g *Graph[W]) PathCost(path []string) (W, bool) {
	var total W
	for i := 1; i < len(path); i++ {
		w, ok := g.Cost(path[i-1], path[i])
		if !ok {
			return 0, false
		}
		total += w
	}
	return total, true
}

// Edges lists the graph's edges ordered by (From, To). An undirected edge is
// listed once with From < To.
func (g *Graph[W]) Edges() []Edge[W] {
	out := make([]Edge[W], 0, len(g.head))
	for u := range uint32(len(g.ids)) {
		start, end := g.ArcsFrom(u)
		for e := start; e < end; e++ {
			v := g.head[e]
			if !g.directed && v < u {
				continue
			}
			out = append(out, Edge[W]{From: g.ids[u], To: g.ids[v], Weight: g.weight[e]})
		}
	}
	slices.SortFunc(out, func(a, b Edge[W]) int {
		if c := strings.Compare(a.From, b.From); c != 0 {
			return c
		}
		return strings.Compare(a.To, b.To)
	})
	return out
}
