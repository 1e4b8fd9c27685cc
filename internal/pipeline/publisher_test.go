package pipeline_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/couchcryptid/epi-route-service/internal/domain"
	"github.com/couchcryptid/epi-route-service/internal/observability"
	"github.com/couchcryptid/epi-route-service/internal/pipeline"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeLoader struct {
	mu      sync.Mutex
	batches [][]domain.ActiveCaseRow
	err     error
}

func (l *fakeLoader) LoadBatch(_ context.Context, rows []domain.ActiveCaseRow) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.err != nil {
		return l.err
	}
	l.batches = append(l.batches, append([]domain.ActiveCaseRow(nil), rows...))
	return nil
}

func (l *fakeLoader) batchCount() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.batches)
}

func (l *fakeLoader) rows() []domain.ActiveCaseRow {
	l.mu.Lock()
	defer l.mu.Unlock()
	var out []domain.ActiveCaseRow
	for _, b := range l.batches {
		out = append(out, b...)
	}
	return out
}

func newPublisher(f *fixture, loader *fakeLoader, clock clockwork.Clock) *pipeline.Publisher {
	return pipeline.NewPublisher(f.deriver, f.reference, loader, clock, pipeline.PublisherConfig{
		Start:     tableStart.AddDate(0, 0, 15),
		Interval:  24 * time.Hour,
		BatchSize: 2,
	}, discardLogger(), observability.NewMetricsForTesting())
}

func TestPublisher_PublishThroughYesterday(t *testing.T) {
	f := newFixture()
	loader := &fakeLoader{}
	clock := clockwork.NewFakeClockAt(tableStart.AddDate(0, 0, 21).Add(9 * time.Hour))
	p := newPublisher(f, loader, clock)

	n, err := p.Publish(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 3, n)
	assert.Equal(t, 2, loader.batchCount(), "three rows in batches of two")

	rows := loader.rows()
	require.Len(t, rows, 3)
	for _, r := range rows {
		assert.Equal(t, tableStart.AddDate(0, 0, 15), r.Start, r.Region)
		assert.Len(t, r.Values, 6, r.Region) // day 15 through day 20
	}
	assert.Equal(t, "01001", rows[0].Region)
	assert.Equal(t, "Autauga, Alabama", rows[0].Name)
	assert.Equal(t, "46113", rows[1].Region)
	assert.Equal(t, "Oglala Lakota, South Dakota", rows[1].Name, "reference row follows the remap")
}

func TestPublisher_SourceLagStopsAtLatestPublished(t *testing.T) {
	f := newFixture()
	loader := &fakeLoader{}
	clock := clockwork.NewFakeClockAt(tableStart.AddDate(0, 0, 40))
	p := newPublisher(f, loader, clock)

	n, err := p.Publish(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 3, n)
	for _, r := range loader.rows() {
		assert.Equal(t, tableStart.AddDate(0, 0, 15), r.Start, r.Region)
		assert.Len(t, r.Values, 15, r.Region) // day 15 through day 29, the last published date
	}
}

func TestPublisher_LoadFailure(t *testing.T) {
	f := newFixture()
	loader := &fakeLoader{err: errors.New("broker down")}
	p := newPublisher(f, loader, clockwork.NewFakeClockAt(tableStart.AddDate(0, 0, 21)))

	n, err := p.Publish(context.Background())
	require.Error(t, err)
	assert.Zero(t, n)
	assert.Error(t, p.CheckReadiness(context.Background()))
}

func TestPublisher_DeriveFailure(t *testing.T) {
	f := newFixture()
	f.primary.err = errors.New("502 bad gateway")
	loader := &fakeLoader{}
	p := newPublisher(f, loader, clockwork.NewFakeClockAt(tableStart.AddDate(0, 0, 21)))

	_, err := p.Publish(context.Background())
	require.ErrorIs(t, err, domain.ErrSourceUnavailable)
	assert.Zero(t, loader.batchCount())
}

func TestPublisher_RunPublishesOnInterval(t *testing.T) {
	f := newFixture()
	loader := &fakeLoader{}
	clock := clockwork.NewFakeClockAt(tableStart.AddDate(0, 0, 21))
	p := newPublisher(f, loader, clock)

	require.Error(t, p.CheckReadiness(context.Background()))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- p.Run(ctx) }()

	require.Eventually(t, func() bool { return loader.batchCount() == 2 }, 5*time.Second, 10*time.Millisecond)
	require.Eventually(t, func() bool { return p.CheckReadiness(context.Background()) == nil }, 5*time.Second, 10*time.Millisecond)

	clock.Advance(24 * time.Hour)
	require.Eventually(t, func() bool { return loader.batchCount() == 4 }, 5*time.Second, 10*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("publisher did not stop after cancel")
	}
}
