package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"time"

	"github.com/couchcryptid/epi-route-service/internal/domain"
	"github.com/couchcryptid/epi-route-service/internal/observability"
	"golang.org/x/sync/errgroup"
)

// Deriver runs the active-case derivation against injected sources. It keeps
// no state between calls; caching belongs to the sources.
type Deriver struct {
	primary   domain.CumulativeSource
	secondary domain.ObservationSource
	reference domain.ReferenceSource
	knownBad  domain.RegionSet
	remap     map[string]string
	unmap     map[string]string
	logger    *slog.Logger
	metrics   *observability.Metrics
}

// NewDeriver creates a Deriver using the default known-bad list and remap.
func NewDeriver(primary domain.CumulativeSource, secondary domain.ObservationSource, reference domain.ReferenceSource, logger *slog.Logger, metrics *observability.Metrics) *Deriver {
	return &Deriver{
		primary:   primary,
		secondary: secondary,
		reference: reference,
		knownBad:  domain.NewRegionSet(domain.KnownBadRegions...),
		remap:     domain.DefaultRemap,
		unmap:     invert(domain.DefaultRemap),
		logger:    logger,
		metrics:   metrics,
	}
}

// ActiveCases derives the requested table. It either returns every requested
// region's series or an error; partial results are never returned.
func (d *Deriver) ActiveCases(ctx context.Context, q domain.ActiveCaseQuery) ([]domain.ActiveCaseRecord, error) {
	start := time.Now()
	records, err := d.derive(ctx, q)

	outcome := "success"
	if err != nil {
		outcome = "error"
	}
	label := q.CaseType
	if _, perr := domain.ParseCaseType(label); perr != nil {
		label = "unknown"
	}
	d.metrics.DerivationRuns.WithLabelValues(label, outcome).Inc()
	d.metrics.DerivationDuration.Observe(time.Since(start).Seconds())
	if err == nil {
		d.metrics.RegionsDerived.Add(float64(len(records)))
	}
	return records, err
}

// ActiveCasesOn returns the unscaled confirmed active cases of every region on
// a single date: the snapshot the exposure graph is built from.
func (d *Deriver) ActiveCasesOn(ctx context.Context, date time.Time) ([]domain.ActiveCaseRecord, error) {
	return d.ActiveCases(ctx, domain.ActiveCaseQuery{
		Start:    date,
		End:      date,
		CaseType: string(domain.CaseConfirmed),
	})
}

func (d *Deriver) derive(ctx context.Context, q domain.ActiveCaseQuery) ([]domain.ActiveCaseRecord, error) {
	// Validate everything that can fail before any remote fetch.
	ct, err := domain.ParseCaseType(q.CaseType)
	if err != nil {
		return nil, err
	}
	if q.Start.IsZero() {
		return nil, fmt.Errorf("%w: start date is required", domain.ErrInvalidQuery)
	}
	startDay := domain.Day(q.Start)
	endDay := startDay
	if !q.End.IsZero() {
		endDay = domain.Day(q.End)
	}
	if endDay.Before(startDay) {
		return nil, fmt.Errorf("%w: end %s is before start %s", domain.ErrInvalidQuery,
			endDay.Format(domain.LayoutISO), startDay.Format(domain.LayoutISO))
	}
	filter, err := domain.NormalizeRegionIDs(q.Regions)
	if err != nil {
		return nil, err
	}

	var regions []domain.Region
	if filter == nil || q.Scale {
		regions, err = d.reference.Regions(ctx)
		if err != nil {
			return nil, unavailable("reference", err)
		}
	}

	// Filters use output ids; the primary source still uses the originals.
	wanted := make(domain.RegionSet, len(filter))
	for _, id := range filter {
		wanted[d.sourceID(id)] = struct{}{}
	}
	if filter == nil {
		for _, r := range regions {
			wanted[r.ID] = struct{}{}
		}
	}

	bad := make(domain.RegionSet)
	for id := range wanted {
		if d.knownBad.Has(id) {
			bad[id] = struct{}{}
		}
	}

	from := startDay.AddDate(0, 0, -ct.Lookback())
	cumulative, observations, err := d.ingest(ctx, ct, from, endDay, wanted, bad)
	if err != nil {
		return nil, err
	}
	if filter != nil {
		if err := d.checkRegions(wanted, cumulative); err != nil {
			return nil, err
		}
	} else if len(cumulative) == 0 {
		return nil, fmt.Errorf("%w: primary source has no records for the reference regions", domain.ErrMissingCaseData)
	}
	last, err := publishedThrough(cumulative, from, endDay, q.ClampEnd)
	if err != nil {
		return nil, err
	}
	if last.Before(startDay) {
		return nil, fmt.Errorf("%w: published data ends %s, before start %s", domain.ErrMissingCaseData,
			last.Format(domain.LayoutISO), startDay.Format(domain.LayoutISO))
	}
	endDay = last

	rs := domain.Ingest(ct, cumulative)
	if rs, err = domain.Repair(rs, bad, observations); err != nil {
		return nil, err
	}
	if rs, err = domain.Difference(rs); err != nil {
		return nil, err
	}
	if rs, err = domain.Aggregate(rs); err != nil {
		return nil, err
	}
	if q.Scale {
		population := make(map[string]int64, len(regions))
		for _, r := range regions {
			population[r.ID] = r.Population
		}
		if rs, err = domain.Scale(rs, population); err != nil {
			return nil, err
		}
	}
	if rs, err = domain.Remap(rs, d.remap); err != nil {
		return nil, err
	}
	rs = rs.Window(startDay, endDay)

	d.logger.Debug("active cases derived",
		"case_type", ct,
		"start", startDay.Format(domain.LayoutISO),
		"end", endDay.Format(domain.LayoutISO),
		"regions", len(rs.Records),
		"repaired", len(bad),
	)
	return rs.Records, nil
}

// ingest fetches the primary table and, when any requested region is known
// bad, the secondary table. Both fetches run concurrently; either failing
// aborts the run.
func (d *Deriver) ingest(ctx context.Context, ct domain.CaseType, from, to time.Time, wanted, bad domain.RegionSet) ([]domain.CumulativeRecord, []domain.Observation, error) {
	var (
		cumulative   []domain.CumulativeRecord
		observations []domain.Observation
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		recs, err := d.primary.Cumulative(gctx, ct, from, to, wanted)
		if err != nil {
			return unavailable("primary", err)
		}
		cumulative = recs
		return nil
	})
	if len(bad) > 0 {
		g.Go(func() error {
			obs, err := d.secondary.Observations(gctx, ct, from, to, bad)
			if err != nil {
				return unavailable("secondary", err)
			}
			observations = obs
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, nil, err
	}
	return cumulative, observations, nil
}

// checkRegions fails when a filtered region has no primary record.
func (d *Deriver) checkRegions(wanted domain.RegionSet, cumulative []domain.CumulativeRecord) error {
	found := make(domain.RegionSet, len(cumulative))
	for _, r := range cumulative {
		found[r.Region] = struct{}{}
	}
	var missing []string
	for id := range wanted {
		if !found.Has(id) {
			missing = append(missing, d.outputID(id))
		}
	}
	if len(missing) == 0 {
		return nil
	}
	slices.Sort(missing)
	return fmt.Errorf("%w: no primary records for %s", domain.ErrInvalidRegion, strings.Join(missing, ", "))
}

// publishedThrough checks that every record covers [from, to] and returns the
// last covered date. With clamp set, a record ending early lowers that date
// instead of failing; data missing at the start always fails.
func publishedThrough(recs []domain.CumulativeRecord, from, to time.Time, clamp bool) (time.Time, error) {
	last := to
	for _, r := range recs {
		if len(r.Values) == 0 {
			return time.Time{}, fmt.Errorf("%w: %s: nothing published between %s and %s", domain.ErrMissingCaseData,
				r.Region, from.Format(domain.LayoutISO), to.Format(domain.LayoutISO))
		}
		if r.Start.After(from) {
			return time.Time{}, fmt.Errorf("%w: %s: published data starts %s, need %s", domain.ErrMissingCaseData,
				r.Region, r.Start.Format(domain.LayoutISO), from.Format(domain.LayoutISO))
		}
		if end := r.End(); end.Before(last) {
			if !clamp {
				return time.Time{}, fmt.Errorf("%w: %s: published data ends %s, need %s", domain.ErrMissingCaseData,
					r.Region, end.Format(domain.LayoutISO), to.Format(domain.LayoutISO))
			}
			last = end
		}
	}
	return last, nil
}

func (d *Deriver) sourceID(id string) string {
	if orig, ok := d.unmap[id]; ok {
		return orig
	}
	return id
}

func (d *Deriver) outputID(id string) string {
	if to, ok := d.remap[id]; ok {
		return to
	}
	return id
}

func invert(m map[string]string) map[string]string {
	out := make(map[string]string, len(m))
	for k, v := range m {
		out[v] = k
	}
	return out
}

func unavailable(source string, err error) error {
	if errors.Is(err, domain.ErrSourceUnavailable) {
		return err
	}
	return fmt.Errorf("%w: %s: %w", domain.ErrSourceUnavailable, source, err)
}
