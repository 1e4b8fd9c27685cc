package source

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/couchcryptid/epi-route-service/internal/domain"
)

// Config locates the remote tables.
type Config struct {
	CumulativeURLTemplate string // %s is replaced by the case type
	RepairURLTemplate     string // %d is replaced by the year
	ReferenceURL          string
	AdjacencyURL          string
}

// Tables serves the domain source interfaces from remote CSV tables.
type Tables struct {
	fetcher Fetcher
	cfg     Config
	logger  *slog.Logger
}

// NewTables creates a table-backed source. The fetcher is usually a
// CachedFetcher wrapping a Client.
func NewTables(f Fetcher, cfg Config, logger *slog.Logger) *Tables {
	return &Tables{fetcher: f, cfg: cfg, logger: logger}
}

func (s *Tables) fetch(ctx context.Context, name, url string) (*Table, error) {
	t, err := s.fetcher.Fetch(ctx, name, url)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", domain.ErrSourceUnavailable, name, err)
	}
	return t, nil
}

func (s *Tables) columns(t *Table, name string, cols ...string) ([]int, error) {
	idx := make([]int, len(cols))
	for i, c := range cols {
		idx[i] = t.Column(c)
		if idx[i] < 0 {
			return nil, fmt.Errorf("%w: %s: missing column %q", domain.ErrSourceUnavailable, name, c)
		}
	}
	return idx, nil
}

// Cumulative reads the wide cumulative table: one row per region, one
// M/D/YY column per date. Rows whose id cannot be normalized (territory
// aggregates, "Out of state" rows) are skipped. Empty cells count as 0.
func (s *Tables) Cumulative(ctx context.Context, ct domain.CaseType, from, to time.Time, regions domain.RegionSet) ([]domain.CumulativeRecord, error) {
	t, err := s.fetch(ctx, "cumulative", fmt.Sprintf(s.cfg.CumulativeURLTemplate, ct))
	if err != nil {
		return nil, err
	}
	idx, err := s.columns(t, "cumulative", "FIPS")
	if err != nil {
		return nil, err
	}
	fipsCol := idx[0]

	byDate := make(map[time.Time]int)
	for i, h := range t.Header {
		if d, err := time.Parse(domain.LayoutCumulative, strings.TrimSpace(h)); err == nil {
			byDate[d] = i
		}
	}

	// The longest run of consecutive published dates inside [from, to].
	from, to = domain.Day(from), domain.Day(to)
	first := from
	var cols []int
	for d := from; !d.After(to); d = d.AddDate(0, 0, 1) {
		i, ok := byDate[d]
		if !ok {
			if len(cols) > 0 {
				break
			}
			continue
		}
		if len(cols) == 0 {
			first = d
		}
		cols = append(cols, i)
	}

	var out []domain.CumulativeRecord
	for n, row := range t.Rows {
		if fipsCol >= len(row) {
			continue
		}
		id, err := domain.NormalizeRegionID(row[fipsCol])
		if err != nil || !regions.Has(id) {
			continue
		}
		values := make([]float64, len(cols))
		for j, c := range cols {
			if c >= len(row) {
				continue
			}
			if values[j], err = parseCount(row[c]); err != nil {
				return nil, fmt.Errorf("%w: cumulative: row %d: %v", domain.ErrSourceUnavailable, n+2, err)
			}
		}
		out = append(out, domain.CumulativeRecord{Region: id, Start: first, Values: values})
	}

	s.logger.Debug("cumulative table read", "case_type", ct, "regions", len(out), "dates", len(cols))
	return out, nil
}

// Observations reads the long repair table, one file per calendar year.
func (s *Tables) Observations(ctx context.Context, ct domain.CaseType, from, to time.Time, regions domain.RegionSet) ([]domain.Observation, error) {
	valueCol := "cases"
	if ct == domain.CaseDeaths {
		valueCol = "deaths"
	}
	from, to = domain.Day(from), domain.Day(to)

	var out []domain.Observation
	for year := from.Year(); year <= to.Year(); year++ {
		t, err := s.fetch(ctx, "secondary", fmt.Sprintf(s.cfg.RepairURLTemplate, year))
		if err != nil {
			return nil, err
		}
		idx, err := s.columns(t, "secondary", "date", "fips", valueCol)
		if err != nil {
			return nil, err
		}
		dateCol, fipsCol, vCol := idx[0], idx[1], idx[2]

		for _, row := range t.Rows {
			if max(dateCol, fipsCol, vCol) >= len(row) || strings.TrimSpace(row[vCol]) == "" {
				continue
			}
			id, err := domain.NormalizeRegionID(row[fipsCol])
			if err != nil || !regions.Has(id) {
				continue
			}
			d, err := time.Parse(domain.LayoutISO, strings.TrimSpace(row[dateCol]))
			if err != nil || d.Before(from) || d.After(to) {
				continue
			}
			v, err := parseCount(row[vCol])
			if err != nil {
				return nil, fmt.Errorf("%w: secondary %d: %v", domain.ErrSourceUnavailable, year, err)
			}
			out = append(out, domain.Observation{Region: id, Date: d, Value: v})
		}
	}
	return out, nil
}

// Regions reads the reference table. The name column is optional and may be
// called "county", "combined_key" or "name"; coordinates come from "lat" and
// "long" (or "lon") when present.
func (s *Tables) Regions(ctx context.Context) ([]domain.Region, error) {
	t, err := s.fetch(ctx, "reference", s.cfg.ReferenceURL)
	if err != nil {
		return nil, err
	}
	idx, err := s.columns(t, "reference", "fips", "population")
	if err != nil {
		return nil, err
	}
	fipsCol, popCol := idx[0], idx[1]
	nameCol := firstColumn(t, "combined_key", "county", "name")
	latCol := firstColumn(t, "lat", "latitude")
	lonCol := firstColumn(t, "long", "lon", "longitude")

	out := make([]domain.Region, 0, len(t.Rows))
	for n, row := range t.Rows {
		if max(fipsCol, popCol) >= len(row) {
			continue
		}
		id, err := domain.NormalizeRegionID(row[fipsCol])
		if err != nil {
			s.logger.Warn("skipping reference row", "row", n+2, "error", err)
			continue
		}
		pop, err := parseCount(row[popCol])
		if err != nil {
			return nil, fmt.Errorf("%w: reference: row %d: %v", domain.ErrSourceUnavailable, n+2, err)
		}
		r := domain.Region{ID: id, Population: int64(pop)}
		r.Name = cell(row, nameCol)
		r.Lat, _ = strconv.ParseFloat(cell(row, latCol), 64)
		r.Lon, _ = strconv.ParseFloat(cell(row, lonCol), 64)
		out = append(out, r)
	}
	return out, nil
}

// Edges reads the adjacency table. Ids are passed through raw; the graph
// builder normalizes and rejects them.
func (s *Tables) Edges(ctx context.Context) ([]domain.AdjacencyEdge, error) {
	t, err := s.fetch(ctx, "adjacency", s.cfg.AdjacencyURL)
	if err != nil {
		return nil, err
	}
	idx, err := s.columns(t, "adjacency", "county_fips", "bcounty_fips", "gc_dist_km")
	if err != nil {
		return nil, err
	}

	out := make([]domain.AdjacencyEdge, 0, len(t.Rows))
	for n, row := range t.Rows {
		if max(idx[0], idx[1], idx[2]) >= len(row) {
			return nil, fmt.Errorf("%w: row %d: short row", domain.ErrMalformedEdge, n+2)
		}
		dist, err := strconv.ParseFloat(strings.TrimSpace(row[idx[2]]), 64)
		if err != nil {
			return nil, fmt.Errorf("%w: row %d: distance %q", domain.ErrMalformedEdge, n+2, row[idx[2]])
		}
		out = append(out, domain.AdjacencyEdge{A: row[idx[0]], B: row[idx[1]], DistanceKM: dist})
	}
	return out, nil
}

func parseCount(raw string) (float64, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return 0, nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("count %q is not numeric", raw)
	}
	return v, nil
}

func firstColumn(t *Table, names ...string) int {
	for _, n := range names {
		if i := t.Column(n); i >= 0 {
			return i
		}
	}
	return -1
}

func cell(row []string, i int) string {
	if i < 0 || i >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[i])
}
