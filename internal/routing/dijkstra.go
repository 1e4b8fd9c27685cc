package routing

import (
	"context"

	"github.com/couchcryptid/epi-route-service/internal/graph"
)

// pqItem is a priority queue entry.
type pqItem[W graph.Weight] struct {
	node uint32
	dist W
}

// minHeap is a concrete-typed min-heap ordered by (dist, node). Vertices are
// numbered in lexicographic region order, so among equal costs the smallest
// region id is popped first.
type minHeap[W graph.Weight] struct {
	items []pqItem[W]
}

func (h *minHeap[W]) Len() int { return len(h.items) }

func (h *minHeap[W]) Push(node uint32, dist W) {
	h.items = append(h.items, pqItem[W]{node, dist})
	h.siftUp(len(h.items) - 1)
}

func (h *minHeap[W]) Pop() pqItem[W] {
	n := len(h.items)
	item := h.items[0]
	h.items[0] = h.items[n-1]
	h.items = h.items[:n-1]
	if len(h.items) > 0 {
		h.siftDown(0)
	}
	return item
}

func (h *minHeap[W]) less(i, j int) bool {
	a, b := h.items[i], h.items[j]
	if a.dist != b.dist {
		return a.dist < b.dist
	}
	return a.node < b.node
}

func (h *minHeap[W]) siftUp(i int) {
	for i > 0 {
		parent := (i - 1) / 2
		if !h.less(i, parent) {
			break
		}
		h.items[i], h.items[parent] = h.items[parent], h.items[i]
		i = parent
	}
}

func (h *minHeap[W]) siftDown(i int) {
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

const noNode = ^uint32(0)

// ctxCheckInterval is how many settled vertices pass between context checks.
const ctxCheckInterval = 1024

// shortestPath runs single-source Dijkstra from source and stops as soon as
// target is settled. A predecessor is only replaced by a strictly cheaper
// path, so the first path found among equal-cost ones is kept. ok is false
// when target is unreachable.
func shortestPath[W graph.Weight](ctx context.Context, g *graph.Graph[W], source, target uint32) (path []uint32, cost W, ok bool, err error) {
	n := g.NumNodes()
	dist := make([]W, n)
	pred := make([]uint32, n)
	reached := make([]bool, n)
	settled := make([]bool, n)
	for i := range pred {
		pred[i] = noNode
	}

	var pq minHeap[W]
	reached[source] = true
	pq.Push(source, 0)

	pops := 0
	for pq.Len() > 0 {
		cur := pq.Pop()
		if settled[cur.node] {
			continue
		}
		settled[cur.node] = true

		if cur.node == target {
			break
		}

		pops++
		if pops%ctxCheckInterval == 0 {
			if err := ctx.Err(); err != nil {
				return nil, 0, false, err
			}
		}

		start, end := g.ArcsFrom(cur.node)
		for e := start; e < end; e++ {
			v := g.Head(e)
			if settled[v] {
				continue
			}
			nd := cur.dist + g.ArcWeight(e)
			if !reached[v] || nd < dist[v] {
				reached[v] = true
				dist[v] = nd
				pred[v] = cur.node
				pq.Push(v, nd)
			}
		}
	}

	if !settled[target] {
		return nil, 0, false, nil
	}

	for node := target; node != noNode; node = pred[node] {
		path = append(path, node)
	}
	for i, j := 0, len(path)-1; i < j; i, j = i+1, j-1 {
		path[i], path[j] = path[j], path[i]
	}
	return path, dist[target], true, nil
}
