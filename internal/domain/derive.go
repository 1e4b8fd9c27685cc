package domain

import (
	"fmt"
	"slices"
	"strings"
	"time"
)

// Stage marks how far a RecordSet has progressed through derivation.
// Stages run strictly in declaration order; Scale is the only optional one.
type Stage int

const (
	StageNone Stage = iota
	StageIngested
	StageRepaired
	StageDifferenced
	StageAggregated
	StageScaled
	StageRemapped
)

var stageNames = [...]string{"none", "ingested", "repaired", "differenced", "aggregated", "scaled", "remapped"}

func (s Stage) String() string {
	if s < 0 || int(s) >= len(stageNames) {
		return fmt.Sprintf("stage(%d)", int(s))
	}
	return stageNames[s]
}

// RecordSet is the unit every derivation stage consumes and produces.
// Stages never modify their input; each returns a fresh set.
type RecordSet struct {
	CaseType CaseType
	Stage    Stage
	Records  []Series
}

// RegionSet is a set of normalized region ids.
type RegionSet map[string]struct{}

// NewRegionSet builds a RegionSet from ids.
func NewRegionSet(ids ...string) RegionSet {
	s := make(RegionSet, len(ids))
	for _, id := range ids {
		s[id] = struct{}{}
	}
	return s
}

// Has reports whether id is in the set.
func (s RegionSet) Has(id string) bool {
	_, ok := s[id]
	return ok
}

// KnownBadRegions are Utah counties whose cumulative counts are zero-filled in
// the primary source; their values are taken from the repair source instead.
var KnownBadRegions = []string{
	"49001", "49003", "49005", "49007", "49009", "49013", "49015",
	"49017", "49019", "49021", "49023", "49025", "49027", "49029",
	"49031", "49033", "49039", "49041", "49047", "49053", "49055",
	"49057",
}

// DefaultRemap renames identifiers so they join with the region-boundary geometry.
var DefaultRemap = map[string]string{"46102": "46113"}

func expectStage(rs RecordSet, op string, want ...Stage) error {
	if slices.Contains(want, rs.Stage) {
		return nil
	}
	names := make([]string, len(want))
	for i, w := range want {
		names[i] = w.String()
	}
	return fmt.Errorf("%w: %s needs %s, got %s", ErrStageOrder, op, strings.Join(names, "|"), rs.Stage)
}

// Ingest starts a derivation from cumulative records. The input is copied and
// ordered by region.
func Ingest(ct CaseType, records []CumulativeRecord) RecordSet {
	out := make([]Series, len(records))
	for i, r := range records {
		out[i] = Series{Region: r.Region, Start: Day(r.Start), Values: slices.Clone(r.Values)}
		if out[i].Values == nil {
			out[i].Values = []float64{}
		}
	}
	sortByRegion(out)
	return RecordSet{CaseType: ct, Stage: StageIngested, Records: out}
}

// Repair replaces the values of every region in bad with values pivoted from
// the secondary observations, keyed by (region, date). Dates the secondary
// source does not cover become 0. Other regions pass through untouched.
func Repair(rs RecordSet, bad RegionSet, secondary []Observation) (RecordSet, error) {
	if err := expectStage(rs, "repair", StageIngested); err != nil {
		return RecordSet{}, err
	}

	pivot := make(map[string]map[time.Time]float64)
	for _, o := range secondary {
		if !bad.Has(o.Region) {
			continue
		}
		byDate, ok := pivot[o.Region]
		if !ok {
			byDate = make(map[time.Time]float64)
			pivot[o.Region] = byDate
		}
		byDate[Day(o.Date)] = o.Value
	}

	out := make([]Series, len(rs.Records))
	for i, r := range rs.Records {
		if !bad.Has(r.Region) {
			out[i] = Series{Region: r.Region, Start: r.Start, Values: slices.Clone(r.Values)}
			continue
		}
		vals := make([]float64, len(r.Values))
		byDate := pivot[r.Region]
		for j := range vals {
			vals[j] = byDate[r.Start.AddDate(0, 0, j)]
		}
		out[i] = Series{Region: r.Region, Start: r.Start, Values: vals}
	}
	return RecordSet{CaseType: rs.CaseType, Stage: StageRepaired, Records: out}, nil
}

// Difference converts cumulative counts into day-over-day deltas. Negative
// deltas are source corrections and are clamped to 0. The first date has no
// predecessor and is dropped.
func Difference(rs RecordSet) (RecordSet, error) {
	if err := expectStage(rs, "difference", StageRepaired); err != nil {
		return RecordSet{}, err
	}
	out := make([]Series, len(rs.Records))
	for i, r := range rs.Records {
		n := max(len(r.Values)-1, 0)
		vals := make([]float64, n)
		for j := 1; j < len(r.Values); j++ {
			vals[j-1] = max(r.Values[j]-r.Values[j-1], 0)
		}
		out[i] = Series{Region: r.Region, Start: r.Start.AddDate(0, 0, 1), Values: vals}
	}
	return RecordSet{CaseType: rs.CaseType, Stage: StageDifferenced, Records: out}, nil
}

// Aggregate turns daily confirmed deltas into active cases: the trailing
// ActiveWindow-day sum. The first ActiveWindow-1 dates lack a full window and
// are dropped. Deaths pass through unchanged.
func Aggregate(rs RecordSet) (RecordSet, error) {
	if err := expectStage(rs, "aggregate", StageDifferenced); err != nil {
		return RecordSet{}, err
	}
	out := make([]Series, len(rs.Records))
	for i, r := range rs.Records {
		if rs.CaseType == CaseDeaths {
			out[i] = Series{Region: r.Region, Start: r.Start, Values: slices.Clone(r.Values)}
			continue
		}
		out[i] = rollingSum(r, ActiveWindow)
	}
	return RecordSet{CaseType: rs.CaseType, Stage: StageAggregated, Records: out}, nil
}

func rollingSum(r Series, window int) Series {
	n := max(len(r.Values)-window+1, 0)
	vals := make([]float64, n)
	for j := range vals {
		var sum float64
		for _, v := range r.Values[j : j+window] {
			sum += v
		}
		vals[j] = sum
	}
	return Series{Region: r.Region, Start: r.Start.AddDate(0, 0, window-1), Values: vals}
}

// Scale converts counts to a rate per 100,000 residents. Regions without a
// positive population are excluded rather than zero-filled.
func Scale(rs RecordSet, population map[string]int64) (RecordSet, error) {
	if err := expectStage(rs, "scale", StageAggregated); err != nil {
		return RecordSet{}, err
	}
	out := make([]Series, 0, len(rs.Records))
	for _, r := range rs.Records {
		pop := population[r.Region]
		if pop <= 0 {
			continue
		}
		vals := make([]float64, len(r.Values))
		for j, v := range r.Values {
			vals[j] = v / float64(pop) * 100_000
		}
		out = append(out, Series{Region: r.Region, Start: r.Start, Values: vals})
	}
	return RecordSet{CaseType: rs.CaseType, Stage: StageScaled, Records: out}, nil
}

// Remap renames region ids. It is always the final stage.
func Remap(rs RecordSet, mapping map[string]string) (RecordSet, error) {
	if err := expectStage(rs, "remap", StageAggregated, StageScaled); err != nil {
		return RecordSet{}, err
	}
	out := make([]Series, len(rs.Records))
	for i, r := range rs.Records {
		id := r.Region
		if to, ok := mapping[id]; ok {
			id = to
		}
		out[i] = Series{Region: id, Start: r.Start, Values: slices.Clone(r.Values)}
	}
	sortByRegion(out)
	return RecordSet{CaseType: rs.CaseType, Stage: StageRemapped, Records: out}, nil
}

// Window restricts every record to [from, to].
func (rs RecordSet) Window(from, to time.Time) RecordSet {
	out := make([]Series, len(rs.Records))
	for i, r := range rs.Records {
		out[i] = r.Window(from, to)
	}
	return RecordSet{CaseType: rs.CaseType, Stage: rs.Stage, Records: out}
}

func sortByRegion(s []Series) {
	slices.SortStableFunc(s, func(a, b Series) int { return strings.Compare(a.Region, b.Region) })
}
