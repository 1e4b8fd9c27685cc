package pipeline_test

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/couchcryptid/epi-route-service/internal/domain"
)

// --- fake sources ---

// fakePrimary serves a wide cumulative table starting at start.
type fakePrimary struct {
	mu     sync.Mutex
	start  time.Time
	values map[string][]float64
	err    error
	calls  int
	from   time.Time
}

func (f *fakePrimary) Cumulative(_ context.Context, _ domain.CaseType, from, to time.Time, regions domain.RegionSet) ([]domain.CumulativeRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	f.from = from
	if f.err != nil {
		return nil, f.err
	}
	var out []domain.CumulativeRecord
	for id, vals := range f.values {
		if !regions.Has(id) {
			continue
		}
		full := domain.Series{Region: id, Start: f.start, Values: vals}
		out = append(out, full.Window(from, to))
	}
	return out, nil
}

type fakeSecondary struct {
	mu    sync.Mutex
	obs   []domain.Observation
	err   error
	calls int
}

func (f *fakeSecondary) Observations(_ context.Context, _ domain.CaseType, from, to time.Time, regions domain.RegionSet) ([]domain.Observation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	var out []domain.Observation
	for _, o := range f.obs {
		if regions.Has(o.Region) && !o.Date.Before(from) && !o.Date.After(to) {
			out = append(out, o)
		}
	}
	return out, nil
}

type fakeReference struct {
	regions []domain.Region
	err     error
	calls   int
}

func (f *fakeReference) Regions(_ context.Context) ([]domain.Region, error) {
	f.calls++
	return f.regions, f.err
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// cumulativeRamp returns n cumulative points growing by step per day.
func cumulativeRamp(n int, step float64) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = float64(i) * step
	}
	return out
}
