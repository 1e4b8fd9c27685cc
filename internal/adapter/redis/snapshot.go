// Package redis caches per-date active-case snapshots in Redis.
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/couchcryptid/epi-route-service/internal/domain"
	"github.com/couchcryptid/epi-route-service/internal/observability"
	goredis "github.com/redis/go-redis/v9"
)

// NewClient connects to Redis and verifies the connection.
func NewClient(ctx context.Context, addr, password string, db int) (*goredis.Client, error) {
	rdb := goredis.NewClient(&goredis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
		PoolSize: 10,
	})

	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("connect to redis: %w", err)
	}
	return rdb, nil
}

// Client is the subset of the Redis API the cache uses.
type Client interface {
	Get(ctx context.Context, key string) *goredis.StringCmd
	Set(ctx context.Context, key string, value any, expiration time.Duration) *goredis.StatusCmd
	Del(ctx context.Context, keys ...string) *goredis.IntCmd
}

// SnapshotLoader derives the active-case snapshot for one date.
type SnapshotLoader interface {
	ActiveCasesOn(ctx context.Context, date time.Time) ([]domain.ActiveCaseRecord, error)
}

// SnapshotCache serves per-date snapshots from Redis, loading misses from
// the inner loader. A snapshot is a pure function of its date, so entries
// only expire to pick up upstream corrections. Redis failures degrade to
// the inner loader.
type SnapshotCache struct {
	client  Client
	inner   SnapshotLoader
	ttl     time.Duration
	logger  *slog.Logger
	metrics *observability.Metrics
}

// NewSnapshotCache creates a Redis-backed snapshot cache.
func NewSnapshotCache(client Client, inner SnapshotLoader, ttl time.Duration, logger *slog.Logger, metrics *observability.Metrics) *SnapshotCache {
	return &SnapshotCache{
		client:  client,
		inner:   inner,
		ttl:     ttl,
		logger:  logger,
		metrics: metrics,
	}
}

// ActiveCasesOn returns the cached snapshot for date or derives and stores it.
func (c *SnapshotCache) ActiveCasesOn(ctx context.Context, date time.Time) ([]domain.ActiveCaseRecord, error) {
	key := snapshotKey(date)

	val, err := c.client.Get(ctx, key).Bytes()
	switch {
	case err == nil:
		records, derr := decodeSnapshot(val)
		if derr == nil {
			c.metrics.SnapshotCache.WithLabelValues("hit").Inc()
			return records, nil
		}
		c.metrics.SnapshotCache.WithLabelValues("error").Inc()
		c.logger.Warn("discarding corrupt snapshot", "key", key, "error", derr)
	case errors.Is(err, goredis.Nil):
		c.metrics.SnapshotCache.WithLabelValues("miss").Inc()
	default:
		c.metrics.SnapshotCache.WithLabelValues("error").Inc()
		c.logger.Warn("snapshot cache read failed", "key", key, "error", err)
	}

	records, err := c.inner.ActiveCasesOn(ctx, date)
	if err != nil {
		return nil, err
	}

	payload, err := encodeSnapshot(records)
	if err != nil {
		c.logger.Warn("encode snapshot", "key", key, "error", err)
		return records, nil
	}
	if err := c.client.Set(ctx, key, payload, c.ttl).Err(); err != nil {
		c.logger.Warn("snapshot cache write failed", "key", key, "error", err)
	}
	return records, nil
}

// Invalidate removes the snapshot for date.
func (c *SnapshotCache) Invalidate(ctx context.Context, date time.Time) error {
	if err := c.client.Del(ctx, snapshotKey(date)).Err(); err != nil {
		return fmt.Errorf("invalidate snapshot: %w", err)
	}
	return nil
}

func snapshotKey(date time.Time) string {
	return "active:" + domain.Day(date).Format(domain.LayoutISO)
}

// snapshotEntry is the stored form of one region's value on the snapshot date.
type snapshotEntry struct {
	Region string    `json:"fips"`
	Start  time.Time `json:"start"`
	Values []float64 `json:"values"`
}

func encodeSnapshot(records []domain.ActiveCaseRecord) ([]byte, error) {
	entries := make([]snapshotEntry, len(records))
	for i, r := range records {
		entries[i] = snapshotEntry(r)
	}
	return json.Marshal(entries)
}

func decodeSnapshot(b []byte) ([]domain.ActiveCaseRecord, error) {
	var entries []snapshotEntry
	if err := json.Unmarshal(b, &entries); err != nil {
		return nil, fmt.Errorf("decode snapshot: %w", err)
	}
	out := make([]domain.ActiveCaseRecord, len(entries))
	for i, e := range entries {
		out[i] = domain.ActiveCaseRecord(e)
	}
	return out, nil
}
