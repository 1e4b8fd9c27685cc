package domain

import (
	"fmt"
	"time"
)

// CaseType selects which cumulative table the pipeline derives from.
type CaseType string

const (
	CaseConfirmed CaseType = "confirmed"
	CaseDeaths    CaseType = "deaths"
)

// ParseCaseType validates a caller-supplied case type.
func ParseCaseType(s string) (CaseType, error) {
	switch CaseType(s) {
	case CaseConfirmed, CaseDeaths:
		return CaseType(s), nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownCaseType, s)
	}
}

// Lookback is how many days before the requested start date must be
// ingested so differencing and the rolling sum are defined at the start date.
func (c CaseType) Lookback() int {
	if c == CaseDeaths {
		return 1
	}
	return ActiveWindow
}

// ActiveWindow is the number of days a confirmed case counts as active.
const ActiveWindow = 10

// Series is a contiguous, day-indexed sequence of values for one region:
// Values[i] belongs to Start+i days.
type Series struct {
	Region string    `json:"fips"`
	Start  time.Time `json:"start"`
	Values []float64 `json:"values"`
}

type (
	// CumulativeRecord holds cumulative counts as published by a source.
	CumulativeRecord = Series
	// ActiveCaseRecord holds derived values (daily deltas, active cases or rates).
	ActiveCaseRecord = Series
)

// End returns the date of the last value, or the day before Start for an empty series.
func (s Series) End() time.Time {
	return s.Start.AddDate(0, 0, len(s.Values)-1)
}

// At returns the value on date d.
func (s Series) At(d time.Time) (float64, bool) {
	i := DaysBetween(s.Start, d)
	if i < 0 || i >= len(s.Values) {
		return 0, false
	}
	return s.Values[i], true
}

// Window returns a copy of s restricted to [from, to].
func (s Series) Window(from, to time.Time) Series {
	lo := max(DaysBetween(s.Start, from), 0)
	hi := min(DaysBetween(s.Start, to)+1, len(s.Values))
	out := Series{Region: s.Region, Start: s.Start.AddDate(0, 0, lo)}
	if hi > lo {
		out.Values = append([]float64(nil), s.Values[lo:hi]...)
	} else {
		out.Values = []float64{}
	}
	return out
}

// Observation is one long-format row of the secondary repair source.
type Observation struct {
	Region string
	Date   time.Time
	Value  float64
}

// ActiveCaseQuery describes a derivation request.
type ActiveCaseQuery struct {
	Start    time.Time
	End      time.Time // zero means Start
	CaseType string
	Regions  []string // nil means every region in the reference table
	Scale    bool
	// ClampEnd treats End as an upper bound: the result stops at the last
	// date the primary source has published instead of failing.
	ClampEnd bool
}

// PathResult is one route with both of its aggregate costs.
type PathResult struct {
	Regions         []string `json:"regions"`
	TotalDistanceKM float64  `json:"total_distance_km"`
	TotalExposure   int64    `json:"total_exposure"`
	Hops            int      `json:"hops"`
}
