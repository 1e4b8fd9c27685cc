package graph

import (
	"fmt"
	"math"

	"github.com/couchcryptid/epi-route-service/internal/domain"
)

type buildOptions struct {
	rejectDuplicates bool
}

// Option configures BuildDistance.
type Option func(*buildOptions)

// RejectDuplicates makes a repeated unordered region pair an error instead of
// letting the last row win.
func RejectDuplicates() Option {
	return func(o *buildOptions) { o.rejectDuplicates = true }
}

// BuildDistance loads adjacency rows into an undirected graph weighted by
// distance in km. Rows pairing a region with itself are ignored.
func BuildDistance(edges []domain.AdjacencyEdge, opts ...Option) (*Graph[float64], error) {
	var o buildOptions
	for _, opt := range opts {
		opt(&o)
	}

	arcs := make(map[arcKey]float64, 2*len(edges))
	ids := make([]string, 0, len(edges))

	for i, e := range edges {
		a, b, err := normalizePair(e)
		if err != nil {
			return nil, fmt.Errorf("%w: row %d: %v", domain.ErrMalformedEdge, i, err)
		}
		if e.DistanceKM < 0 || math.IsNaN(e.DistanceKM) || math.IsInf(e.DistanceKM, 0) {
			return nil, fmt.Errorf("%w: row %d: distance %v", domain.ErrMalformedEdge, i, e.DistanceKM)
		}
		if a == b {
			continue
		}
		if _, dup := arcs[arcKey{a, b}]; dup && o.rejectDuplicates {
			return nil, fmt.Errorf("%w: row %d: duplicate pair %s-%s", domain.ErrMalformedEdge, i, a, b)
		}
		arcs[arcKey{a, b}] = e.DistanceKM
		arcs[arcKey{b, a}] = e.DistanceKM
		ids = append(ids, a, b)
	}

	return fromArcs(ids, arcs, false), nil
}

// AdjacencyEdges converts a distance graph back to normalized, deduplicated
// adjacency rows.
func AdjacencyEdges(g *Graph[float64]) []domain.AdjacencyEdge {
	edges := g.Edges()
	out := make([]domain.AdjacencyEdge, len(edges))
	for i, e := range edges {
		out[i] = domain.AdjacencyEdge{A: e.From, B: e.To, DistanceKM: e.Weight}
	}
	return out
}

func normalizePair(e domain.AdjacencyEdge) (string, string, error) {
	a, err := domain.NormalizeRegionID(e.A)
	if err != nil {
		return "", "", err
	}
	b, err := domain.NormalizeRegionID(e.B)
	if err != nil {
		return "", "", err
	}
	return a, b, nil
}
