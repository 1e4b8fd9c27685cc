package domain

import (
	"context"
	"time"
)

// CumulativeSource serves the primary wide-format cumulative table.
type CumulativeSource interface {
	// Cumulative returns one record per region in regions, covering the
	// dates in [from, to] that the source publishes.
	Cumulative(ctx context.Context, ct CaseType, from, to time.Time, regions RegionSet) ([]CumulativeRecord, error)
}

// ObservationSource serves the secondary long-format table used for repairs.
type ObservationSource interface {
	// Observations returns every (region, date) row in [from, to] for regions.
	Observations(ctx context.Context, ct CaseType, from, to time.Time, regions RegionSet) ([]Observation, error)
}

// ReferenceSource serves the population/reference table.
type ReferenceSource interface {
	Regions(ctx context.Context) ([]Region, error)
}

// AdjacencySource serves the static region-adjacency table.
type AdjacencySource interface {
	Edges(ctx context.Context) ([]AdjacencyEdge, error)
}
