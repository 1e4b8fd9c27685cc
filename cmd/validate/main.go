// Command validate performs integrity checks on an exported active-case
// table: header layout, region ids, value ranges and, when an adjacency
// table is given, that every routable region can be priced on the last date.
//
// Usage:
//
//	go run ./cmd/validate \
//	  -table active_cases.csv \
//	  -adjacency data/adj_dist_all_final.csv
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"math"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/couchcryptid/epi-route-service/internal/adapter/source"
	"github.com/couchcryptid/epi-route-service/internal/domain"
	"github.com/couchcryptid/epi-route-service/internal/graph"
)

var referenceColumns = []string{"fips", "name", "population", "lat", "long"}

// phase tracks pass/fail for a validation phase.
type phase struct {
	name   string
	errors []string
}

func (p *phase) errorf(format string, args ...any) {
	p.errors = append(p.errors, fmt.Sprintf(format, args...))
}

func (p *phase) passed() bool { return len(p.errors) == 0 }

func main() {
	tablePath := flag.String("table", "", "path to an exported active-case CSV")
	adjacencyPath := flag.String("adjacency", "", "optional path to the adjacency CSV")
	scaled := flag.Bool("scaled", false, "table holds per-100k rates rather than counts")
	flag.Parse()

	if *tablePath == "" {
		flag.Usage()
		os.Exit(1)
	}

	if code := run(*tablePath, *adjacencyPath, *scaled); code != 0 {
		os.Exit(code)
	}
}

func run(tablePath, adjacencyPath string, scaled bool) int {
	fmt.Println("=== Active-Case Table Validation ===")
	fmt.Println()

	tbl, err := loadTable(tablePath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: load table: %v\n", err)
		return 1
	}

	var edges []domain.AdjacencyEdge
	if adjacencyPath != "" {
		edges, err = loadEdges(adjacencyPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "FATAL: load adjacency: %v\n", err)
			return 1
		}
	}

	// ── Run validation phases ──
	dates, header := validateHeader(tbl)
	phases := []*phase{
		header,
		validateRegions(tbl),
		validateValues(tbl, len(referenceColumns), scaled),
	}
	if edges != nil && len(dates) > 0 {
		phases = append(phases, validateRoutable(tbl, dates, edges))
	}

	// ── Report results ──
	fmt.Println()
	allPassed := true
	for _, p := range phases {
		status := "\033[32mPASS\033[0m"
		if !p.passed() {
			status = fmt.Sprintf("\033[31mFAIL (%d errors)\033[0m", len(p.errors))
			allPassed = false
		}
		fmt.Printf("  %-42s %s\n", p.name, status)
	}

	fmt.Println()
	fmt.Printf("Regions: %d, dates: %d, adjacency rows: %d\n", len(tbl.Rows), len(dates), len(edges))

	// Print detailed errors.
	for _, p := range phases {
		if p.passed() {
			continue
		}
		fmt.Printf("\n--- %s ---\n", p.name)
		for i, e := range p.errors {
			fmt.Printf("  [%d] %s\n", i+1, e)
		}
	}

	if allPassed {
		fmt.Println("\nAll validations passed.")
		return 0
	}
	fmt.Println("\nValidation FAILED.")
	return 1
}

// ── Data loading ──

func loadTable(path string) (*source.Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	tbl, err := source.ParseTable(f)
	if err != nil {
		return nil, err
	}
	if len(tbl.Rows) == 0 {
		return nil, fmt.Errorf("no data rows in %s", path)
	}
	return tbl, nil
}

// fileFetcher serves tables from the local filesystem, treating the url as a path.
type fileFetcher struct{}

func (fileFetcher) Fetch(_ context.Context, _, path string) (*source.Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return source.ParseTable(f)
}

func loadEdges(path string) ([]domain.AdjacencyEdge, error) {
	tables := source.NewTables(fileFetcher{}, source.Config{AdjacencyURL: path}, slog.Default())
	edges, err := tables.Edges(context.Background())
	if err != nil {
		return nil, err
	}
	return domain.RemapEdges(edges, domain.DefaultRemap), nil
}

// ── Phases ──

// validateHeader checks the reference columns and that date columns form
// one contiguous daily run.
func validateHeader(tbl *source.Table) ([]time.Time, *phase) {
	p := &phase{name: "Header layout"}

	if len(tbl.Header) <= len(referenceColumns) {
		p.errorf("expected %d reference columns and at least one date, got %d columns", len(referenceColumns), len(tbl.Header))
		return nil, p
	}
	for i, want := range referenceColumns {
		if tbl.Header[i] != want {
			p.errorf("column %d: want %q, got %q", i+1, want, tbl.Header[i])
		}
	}

	var dates []time.Time
	for i, h := range tbl.Header[len(referenceColumns):] {
		d, err := time.Parse(domain.LayoutColumn, h)
		if err != nil {
			p.errorf("column %d: %q is not a dMMDDYYYY date", len(referenceColumns)+i+1, h)
			continue
		}
		if n := len(dates); n > 0 && domain.DaysBetween(dates[n-1], d) != 1 {
			p.errorf("column %q does not follow %q", h, domain.ColumnName(dates[n-1]))
		}
		dates = append(dates, d)
	}
	return dates, p
}

func validateRegions(tbl *source.Table) *phase {
	p := &phase{name: "Region ids"}
	seen := make(map[string]int, len(tbl.Rows))
	for i, row := range tbl.Rows {
		line := i + 2
		if len(row) == 0 {
			p.errorf("line %d: empty row", line)
			continue
		}
		id := row[0]
		norm, err := domain.NormalizeRegionID(id)
		switch {
		case err != nil:
			p.errorf("line %d: %v", line, err)
		case norm != id:
			p.errorf("line %d: id %q is not zero-padded (want %q)", line, id, norm)
		}
		if _, remapped := domain.DefaultRemap[id]; remapped {
			p.errorf("line %d: id %s should have been remapped to %s", line, id, domain.DefaultRemap[id])
		}
		if prev, dup := seen[id]; dup {
			p.errorf("line %d: duplicate id %s (first on line %d)", line, id, prev)
		}
		seen[id] = line
	}
	return p
}

func validateValues(tbl *source.Table, firstValue int, scaled bool) *phase {
	p := &phase{name: "Values"}
	for i, row := range tbl.Rows {
		if len(row) > len(tbl.Header) {
			p.errorf("line %d: %d cells for %d columns", i+2, len(row), len(tbl.Header))
		}
		for j := firstValue; j < min(len(row), len(tbl.Header)); j++ {
			cell := strings.TrimSpace(row[j])
			if cell == "" {
				continue
			}
			v, err := strconv.ParseFloat(cell, 64)
			switch {
			case err != nil || math.IsNaN(v) || math.IsInf(v, 0):
				p.errorf("line %d, %s: %q is not a number", i+2, tbl.Header[j], cell)
			case v < 0:
				p.errorf("line %d, %s: negative value %v", i+2, tbl.Header[j], v)
			case !scaled && v != math.Trunc(v):
				p.errorf("line %d, %s: count %v is not whole", i+2, tbl.Header[j], v)
			}
		}
	}
	return p
}

// validateRoutable builds the exposure graph for the last date in the table,
// the same check the router performs per query.
func validateRoutable(tbl *source.Table, dates []time.Time, edges []domain.AdjacencyEdge) *phase {
	p := &phase{name: "Exposure graph on last date"}
	last := dates[len(dates)-1]
	col := len(referenceColumns) + len(dates) - 1

	records := make([]domain.ActiveCaseRecord, 0, len(tbl.Rows))
	for _, row := range tbl.Rows {
		if col >= len(row) || strings.TrimSpace(row[col]) == "" {
			continue
		}
		v, err := strconv.ParseFloat(strings.TrimSpace(row[col]), 64)
		if err != nil {
			continue
		}
		records = append(records, domain.ActiveCaseRecord{Region: row[0], Start: last, Values: []float64{v}})
	}

	if _, err := graph.BuildExposure(edges, records, last); err != nil {
		p.errorf("%s: %v", last.Format(domain.LayoutISO), err)
	}
	return p
}
