package domain

import "time"

// ActiveCaseRow is one region of the persisted region x date table.
type ActiveCaseRow struct {
	Region     string    `json:"fips"`
	Name       string    `json:"name,omitempty"`
	Population int64     `json:"population,omitempty"`
	Lat        float64   `json:"lat,omitempty"`
	Lon        float64   `json:"lon,omitempty"`
	Start      time.Time `json:"start"`
	Values     []float64 `json:"values"`
}

// BuildRows joins derived records with reference data. Records for regions
// missing from the reference table keep their values and carry no metadata.
func BuildRows(records []ActiveCaseRecord, regions []Region) []ActiveCaseRow {
	byID := make(map[string]Region, len(regions))
	for _, r := range regions {
		byID[r.ID] = r
	}
	rows := make([]ActiveCaseRow, len(records))
	for i, rec := range records {
		ref := byID[rec.Region]
		rows[i] = ActiveCaseRow{
			Region:     rec.Region,
			Name:       ref.Name,
			Population: ref.Population,
			Lat:        ref.Lat,
			Lon:        ref.Lon,
			Start:      rec.Start,
			Values:     rec.Values,
		}
	}
	return rows
}

// RemapEdges applies an identifier remap to adjacency rows so the graph uses
// the same ids as the derived table. Ids are normalized first; rows that
// cannot be normalized are left for the graph builder to reject.
func RemapEdges(edges []AdjacencyEdge, mapping map[string]string) []AdjacencyEdge {
	rename := func(raw string) string {
		id, err := NormalizeRegionID(raw)
		if err != nil {
			return raw
		}
		if to, ok := mapping[id]; ok {
			return to
		}
		return id
	}
	out := make([]AdjacencyEdge, len(edges))
	for i, e := range edges {
		out[i] = AdjacencyEdge{A: rename(e.A), B: rename(e.B), DistanceKM: e.DistanceKM}
	}
	return out
}

// RemapRegions applies an identifier remap to reference rows so their
// metadata joins with remapped records.
func RemapRegions(regions []Region, mapping map[string]string) []Region {
	out := make([]Region, len(regions))
	for i, r := range regions {
		if to, ok := mapping[r.ID]; ok {
			r.ID = to
		}
		out[i] = r
	}
	return out
}
