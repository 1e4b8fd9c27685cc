package pipeline

import (
	"context"
	"errors"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/couchcryptid/epi-route-service/internal/domain"
	"github.com/couchcryptid/epi-route-service/internal/observability"
	"github.com/jonboulle/clockwork"
)

// ActiveCaseDeriver produces a derived active-case table.
type ActiveCaseDeriver interface {
	ActiveCases(ctx context.Context, q domain.ActiveCaseQuery) ([]domain.ActiveCaseRecord, error)
}

// BatchLoader writes derived rows to the persisted table.
type BatchLoader interface {
	LoadBatch(ctx context.Context, rows []domain.ActiveCaseRow) error
}

// PublisherConfig controls what the publisher derives and how often.
type PublisherConfig struct {
	Start     time.Time     // first date of the published table
	Interval  time.Duration // time between publications
	BatchSize int           // rows per LoadBatch call
}

// Publisher rebuilds the persisted active-case table on a fixed interval.
// Every run recomputes the full table from Start through yesterday; a failed
// run is logged and left for the next interval.
type Publisher struct {
	deriver   ActiveCaseDeriver
	reference domain.ReferenceSource
	loader    BatchLoader
	clock     clockwork.Clock
	cfg       PublisherConfig
	logger    *slog.Logger
	metrics   *observability.Metrics
	ready     atomic.Bool
}

// NewPublisher creates a Publisher. A nil clock uses real time.
func NewPublisher(d ActiveCaseDeriver, ref domain.ReferenceSource, l BatchLoader, clock clockwork.Clock, cfg PublisherConfig, logger *slog.Logger, metrics *observability.Metrics) *Publisher {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 50
	}
	return &Publisher{
		deriver:   d,
		reference: ref,
		loader:    l,
		clock:     clock,
		cfg:       cfg,
		logger:    logger,
		metrics:   metrics,
	}
}

// CheckReadiness returns nil once the publisher has completed one run,
// or an error describing why the service is not yet ready.
func (p *Publisher) CheckReadiness(_ context.Context) error {
	if !p.ready.Load() {
		return errors.New("active-case table has not been published yet")
	}
	return nil
}

// Run publishes immediately and then once per interval until the context is cancelled.
func (p *Publisher) Run(ctx context.Context) error {
	p.logger.Info("publisher started",
		"start", p.cfg.Start.Format(domain.LayoutISO),
		"interval", p.cfg.Interval,
		"batch_size", p.cfg.BatchSize,
	)
	p.metrics.PublisherRunning.Set(1)
	defer p.metrics.PublisherRunning.Set(0)

	ticker := p.clock.NewTicker(p.cfg.Interval)
	defer ticker.Stop()

	for {
		p.runOnce(ctx)

		select {
		case <-ctx.Done():
			p.logger.Info("publisher stopping", "reason", ctx.Err())
			return nil
		case <-ticker.Chan():
		}
	}
}

func (p *Publisher) runOnce(ctx context.Context) {
	start := p.clock.Now()
	n, err := p.Publish(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return
		}
		p.metrics.PublishRuns.WithLabelValues("error").Inc()
		p.logger.Error("publish failed", "error", err)
		return
	}
	p.metrics.PublishRuns.WithLabelValues("success").Inc()
	p.ready.Store(true)
	p.logger.Info("active-case table published", "rows", n, "duration", p.clock.Since(start))
}

// Publish derives the unscaled confirmed table through yesterday, or through
// the last published date if the source lags, and loads it in batches. It
// returns the number of rows written.
func (p *Publisher) Publish(ctx context.Context) (int, error) {
	end := domain.Day(p.clock.Now()).AddDate(0, 0, -1)
	records, err := p.deriver.ActiveCases(ctx, domain.ActiveCaseQuery{
		Start:    p.cfg.Start,
		End:      end,
		CaseType: string(domain.CaseConfirmed),
		ClampEnd: true,
	})
	if err != nil {
		return 0, err
	}
	regions, err := p.reference.Regions(ctx)
	if err != nil {
		return 0, unavailable("reference", err)
	}
	rows := domain.BuildRows(records, domain.RemapRegions(regions, domain.DefaultRemap))

	for lo := 0; lo < len(rows); lo += p.cfg.BatchSize {
		hi := min(lo+p.cfg.BatchSize, len(rows))
		if err := p.loader.LoadBatch(ctx, rows[lo:hi]); err != nil {
			p.logger.Error("load batch failed", "error", err, "batch_size", hi-lo)
			return lo, err
		}
		p.metrics.RowsPublished.Add(float64(hi - lo))
	}
	return len(rows), nil
}
