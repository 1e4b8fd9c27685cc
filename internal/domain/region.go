package domain

import (
	"fmt"
	"strconv"
	"strings"
)

// RegionIDWidth is the fixed width of a normalized region identifier (county FIPS).
const RegionIDWidth = 5

// Region is one row of the population/reference table.
type Region struct {
	ID         string  `json:"fips"`
	Name       string  `json:"name,omitempty"`
	Population int64   `json:"population"`
	Lat        float64 `json:"lat,omitempty"`
	Lon        float64 `json:"lon,omitempty"`
}

// AdjacencyEdge is an unordered pair of neighboring regions and the
// great-circle distance between them.
type AdjacencyEdge struct {
	A          string  `json:"a"`
	B          string  `json:"b"`
	DistanceKM float64 `json:"distance_km"`
}

// NormalizeRegionID converts the identifier renderings found in the sources
// ("1001", "01001", "1001.0") to the zero-padded fixed-width form ("01001").
func NormalizeRegionID(raw string) (string, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return "", fmt.Errorf("empty region id")
	}
	// The cumulative source renders ids as floats once a column holds a NaN.
	if whole, frac, ok := strings.Cut(s, "."); ok {
		if strings.Trim(frac, "0") != "" {
			return "", fmt.Errorf("region id %q is not an integer", raw)
		}
		s = whole
	}
	n, err := strconv.ParseUint(s, 10, 32)
	if err != nil {
		return "", fmt.Errorf("region id %q is not numeric", raw)
	}
	id := fmt.Sprintf("%0*d", RegionIDWidth, n)
	if len(id) > RegionIDWidth {
		return "", fmt.Errorf("region id %q exceeds %d digits", raw, RegionIDWidth)
	}
	return id, nil
}

// NormalizeRegionIDs normalizes a caller-supplied region filter, dropping
// duplicates while keeping the first occurrence order.
func NormalizeRegionIDs(raw []string) ([]string, error) {
	if raw == nil {
		return nil, nil
	}
	seen := make(map[string]struct{}, len(raw))
	out := make([]string, 0, len(raw))
	for _, r := range raw {
		id, err := NormalizeRegionID(r)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidRegion, err)
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out, nil
}
