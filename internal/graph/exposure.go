package graph

import (
	"fmt"
	"math"
	"time"

	"github.com/couchcryptid/epi-route-service/internal/domain"
)

// BuildExposure derives the directed exposure graph for one date. Each
// adjacency pair (u, v) becomes u->v weighted by v's active cases on date and
// v->u weighted by u's: entering a region costs that region's exposure.
// Every endpoint must have a value on date; nothing is interpolated.
func BuildExposure(edges []domain.AdjacencyEdge, cases []domain.ActiveCaseRecord, date time.Time) (*Graph[int64], error) {
	date = domain.Day(date)

	byRegion := make(map[string]domain.ActiveCaseRecord, len(cases))
	for _, c := range cases {
		byRegion[c.Region] = c
	}

	exposure := func(id string) (int64, error) {
		rec, ok := byRegion[id]
		if !ok {
			return 0, fmt.Errorf("%w: region %s has no series", domain.ErrMissingCaseData, id)
		}
		v, ok := rec.At(date)
		if !ok || math.IsNaN(v) {
			return 0, fmt.Errorf("%w: region %s on %s", domain.ErrMissingCaseData, id, date.Format(domain.LayoutISO))
		}
		return max(int64(math.Round(v)), 0), nil
	}

	arcs := make(map[arcKey]int64, 2*len(edges))
	ids := make([]string, 0, len(edges))

	for i, e := range edges {
		a, b, err := normalizePair(e)
		if err != nil {
			return nil, fmt.Errorf("%w: row %d: %v", domain.ErrMalformedEdge, i, err)
		}
		if a == b {
			continue
		}
		wa, err := exposure(a)
		if err != nil {
			return nil, err
		}
		wb, err := exposure(b)
		if err != nil {
			return nil, err
		}
		arcs[arcKey{a, b}] = wb
		arcs[arcKey{b, a}] = wa
		ids = append(ids, a, b)
	}

	return fromArcs(ids, arcs, true), nil
}
