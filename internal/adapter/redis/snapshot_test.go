package redis

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/couchcryptid/epi-route-service/internal/domain"
	"github.com/couchcryptid/epi-route-service/internal/observability"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// --- fakes ---

type memClient struct {
	mu     sync.Mutex
	data   map[string][]byte
	ttls   map[string]time.Duration
	getErr error
	setErr error
}

func newMemClient() *memClient {
	return &memClient{data: map[string][]byte{}, ttls: map[string]time.Duration{}}
}

func (m *memClient) Get(_ context.Context, key string) *goredis.StringCmd {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.getErr != nil {
		return goredis.NewStringResult("", m.getErr)
	}
	v, ok := m.data[key]
	if !ok {
		return goredis.NewStringResult("", goredis.Nil)
	}
	return goredis.NewStringResult(string(v), nil)
}

func (m *memClient) Set(_ context.Context, key string, value any, ttl time.Duration) *goredis.StatusCmd {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.setErr != nil {
		return goredis.NewStatusResult("", m.setErr)
	}
	m.data[key] = value.([]byte)
	m.ttls[key] = ttl
	return goredis.NewStatusResult("OK", nil)
}

func (m *memClient) Del(_ context.Context, keys ...string) *goredis.IntCmd {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for _, k := range keys {
		if _, ok := m.data[k]; ok {
			delete(m.data, k)
			n++
		}
	}
	return goredis.NewIntResult(n, nil)
}

type countingLoader struct {
	calls   int
	records []domain.ActiveCaseRecord
	err     error
}

func (l *countingLoader) ActiveCasesOn(_ context.Context, _ time.Time) ([]domain.ActiveCaseRecord, error) {
	l.calls++
	return l.records, l.err
}

var snapshotDate = time.Date(2021, time.March, 1, 0, 0, 0, 0, time.UTC)

func testCache(client Client, inner SnapshotLoader) *SnapshotCache {
	return NewSnapshotCache(client, inner, time.Hour, slog.New(slog.NewTextHandler(io.Discard, nil)), observability.NewMetricsForTesting())
}

func testRecords() []domain.ActiveCaseRecord {
	return []domain.ActiveCaseRecord{
		{Region: "01001", Start: snapshotDate, Values: []float64{42}},
		{Region: "01003", Start: snapshotDate, Values: []float64{7}},
	}
}

// --- tests ---

func TestSnapshotCache_MissThenHit(t *testing.T) {
	client := newMemClient()
	inner := &countingLoader{records: testRecords()}
	c := testCache(client, inner)

	first, err := c.ActiveCasesOn(context.Background(), snapshotDate.Add(15*time.Hour))
	require.NoError(t, err)
	second, err := c.ActiveCasesOn(context.Background(), snapshotDate)
	require.NoError(t, err)

	assert.Equal(t, 1, inner.calls)
	assert.Equal(t, testRecords(), first)
	assert.Equal(t, first, second)
	assert.Contains(t, client.data, "active:2021-03-01")
	assert.Equal(t, time.Hour, client.ttls["active:2021-03-01"])
}

func TestSnapshotCache_ReadErrorFallsBack(t *testing.T) {
	client := newMemClient()
	client.getErr = errors.New("connection refused")
	inner := &countingLoader{records: testRecords()}
	c := testCache(client, inner)

	got, err := c.ActiveCasesOn(context.Background(), snapshotDate)
	require.NoError(t, err)
	assert.Equal(t, testRecords(), got)
	assert.Equal(t, 1, inner.calls)
}

func TestSnapshotCache_WriteErrorIgnored(t *testing.T) {
	client := newMemClient()
	client.setErr = errors.New("OOM command not allowed")
	inner := &countingLoader{records: testRecords()}
	c := testCache(client, inner)

	got, err := c.ActiveCasesOn(context.Background(), snapshotDate)
	require.NoError(t, err)
	assert.Len(t, got, 2)
}

func TestSnapshotCache_CorruptEntryReloaded(t *testing.T) {
	client := newMemClient()
	client.data["active:2021-03-01"] = []byte("{not json")
	inner := &countingLoader{records: testRecords()}
	c := testCache(client, inner)

	got, err := c.ActiveCasesOn(context.Background(), snapshotDate)
	require.NoError(t, err)
	assert.Equal(t, testRecords(), got)
	assert.Equal(t, 1, inner.calls)

	decoded, err := decodeSnapshot(client.data["active:2021-03-01"])
	require.NoError(t, err)
	assert.Equal(t, testRecords(), decoded, "corrupt entry overwritten")
}

func TestSnapshotCache_InnerErrorNotCached(t *testing.T) {
	client := newMemClient()
	inner := &countingLoader{err: domain.ErrSourceUnavailable}
	c := testCache(client, inner)

	_, err := c.ActiveCasesOn(context.Background(), snapshotDate)
	require.ErrorIs(t, err, domain.ErrSourceUnavailable)
	assert.Empty(t, client.data)
}

func TestSnapshotCache_Invalidate(t *testing.T) {
	client := newMemClient()
	inner := &countingLoader{records: testRecords()}
	c := testCache(client, inner)

	_, err := c.ActiveCasesOn(context.Background(), snapshotDate)
	require.NoError(t, err)
	require.NoError(t, c.Invalidate(context.Background(), snapshotDate))
	_, err = c.ActiveCasesOn(context.Background(), snapshotDate)
	require.NoError(t, err)

	assert.Equal(t, 2, inner.calls)
}
