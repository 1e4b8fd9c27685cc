package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const defaultBroker = "localhost:9092"

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.HTTPAddr)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, "json", cfg.LogFormat)
	assert.Equal(t, 10*time.Second, cfg.ShutdownTimeout)
	assert.Equal(t, 50, cfg.BatchSize)
	assert.Equal(t, 500*time.Millisecond, cfg.BatchFlushInterval)

	assert.Equal(t, DefaultCasesURLTemplate, cfg.CasesURLTemplate)
	assert.Equal(t, DefaultRepairURLTemplate, cfg.RepairURLTemplate)
	assert.Equal(t, DefaultReferenceURL, cfg.ReferenceURL)
	assert.Equal(t, DefaultAdjacencyURL, cfg.AdjacencyURL)
	assert.False(t, cfg.AdjacencyStrict)
	assert.Equal(t, 60*time.Second, cfg.SourceTimeout)
	assert.Equal(t, 16, cfg.SourceCacheSize)
	assert.Equal(t, time.Hour, cfg.SourceCacheTTL)

	assert.False(t, cfg.PublishEnabled)
	assert.Equal(t, time.Date(2021, 1, 1, 0, 0, 0, 0, time.UTC), cfg.PublishStart)
	assert.Equal(t, 24*time.Hour, cfg.PublishInterval)
	assert.Equal(t, []string{defaultBroker}, cfg.KafkaBrokers)
	assert.Equal(t, "active-cases", cfg.KafkaSinkTopic)

	assert.Empty(t, cfg.RedisAddr)
	assert.Equal(t, 0, cfg.RedisDB)
	assert.Equal(t, 6*time.Hour, cfg.SnapshotTTL)
}

func TestLoad_CustomEnv(t *testing.T) {
	t.Setenv("HTTP_ADDR", ":9090")
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("LOG_FORMAT", "text")
	t.Setenv("SHUTDOWN_TIMEOUT", "30s")
	t.Setenv("BATCH_SIZE", "100")
	t.Setenv("BATCH_FLUSH_INTERVAL", "1s")
	t.Setenv("CASES_URL_TEMPLATE", "http://mirror/%s.csv")
	t.Setenv("REPAIR_URL_TEMPLATE", "http://mirror/nyt-%d.csv")
	t.Setenv("REFERENCE_URL", "http://mirror/ref.csv")
	t.Setenv("ADJACENCY_URL", "http://mirror/adj.csv")
	t.Setenv("ADJACENCY_STRICT", "true")
	t.Setenv("SOURCE_TIMEOUT", "5s")
	t.Setenv("SOURCE_CACHE_SIZE", "4")
	t.Setenv("SOURCE_CACHE_TTL", "10m")
	t.Setenv("PUBLISH_ENABLED", "true")
	t.Setenv("PUBLISH_START", "2021-06-01")
	t.Setenv("PUBLISH_INTERVAL", "12h")
	t.Setenv("KAFKA_BROKERS", "broker1:9092,broker2:9092")
	t.Setenv("KAFKA_SINK_TOPIC", "custom-sink")
	t.Setenv("REDIS_ADDR", "redis:6379")
	t.Setenv("REDIS_PASSWORD", "secret")
	t.Setenv("REDIS_DB", "2")
	t.Setenv("SNAPSHOT_TTL", "30m")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, ":9090", cfg.HTTPAddr)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, "text", cfg.LogFormat)
	assert.Equal(t, 30*time.Second, cfg.ShutdownTimeout)
	assert.Equal(t, 100, cfg.BatchSize)
	assert.Equal(t, 1*time.Second, cfg.BatchFlushInterval)
	assert.Equal(t, "http://mirror/%s.csv", cfg.CasesURLTemplate)
	assert.Equal(t, "http://mirror/nyt-%d.csv", cfg.RepairURLTemplate)
	assert.Equal(t, "http://mirror/ref.csv", cfg.ReferenceURL)
	assert.Equal(t, "http://mirror/adj.csv", cfg.AdjacencyURL)
	assert.True(t, cfg.AdjacencyStrict)
	assert.Equal(t, 5*time.Second, cfg.SourceTimeout)
	assert.Equal(t, 4, cfg.SourceCacheSize)
	assert.Equal(t, 10*time.Minute, cfg.SourceCacheTTL)
	assert.True(t, cfg.PublishEnabled)
	assert.Equal(t, time.Date(2021, 6, 1, 0, 0, 0, 0, time.UTC), cfg.PublishStart)
	assert.Equal(t, 12*time.Hour, cfg.PublishInterval)
	assert.Equal(t, []string{"broker1:9092", "broker2:9092"}, cfg.KafkaBrokers)
	assert.Equal(t, "custom-sink", cfg.KafkaSinkTopic)
	assert.Equal(t, "redis:6379", cfg.RedisAddr)
	assert.Equal(t, "secret", cfg.RedisPassword)
	assert.Equal(t, 2, cfg.RedisDB)
	assert.Equal(t, 30*time.Minute, cfg.SnapshotTTL)
}

func TestLoad_InvalidShutdownTimeout(t *testing.T) {
	t.Setenv("SHUTDOWN_TIMEOUT", "not-a-duration")
	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "SHUTDOWN_TIMEOUT")
}

func TestLoad_NegativeShutdownTimeout(t *testing.T) {
	t.Setenv("SHUTDOWN_TIMEOUT", "-1s")
	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "SHUTDOWN_TIMEOUT")
}

func TestLoad_InvalidBatchSize(t *testing.T) {
	t.Setenv("BATCH_SIZE", "0")
	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "BATCH_SIZE")
}

func TestLoad_BatchSizeTooLarge(t *testing.T) {
	t.Setenv("BATCH_SIZE", "9999")
	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "BATCH_SIZE")
}

func TestLoad_InvalidBatchFlushInterval(t *testing.T) {
	t.Setenv("BATCH_FLUSH_INTERVAL", "not-a-duration")
	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "BATCH_FLUSH_INTERVAL")
}

func TestLoad_InvalidDurations(t *testing.T) {
	for _, key := range []string{"SOURCE_TIMEOUT", "SOURCE_CACHE_TTL", "PUBLISH_INTERVAL", "SNAPSHOT_TTL"} {
		t.Run(key, func(t *testing.T) {
			t.Setenv(key, "bad")
			_, err := Load()
			require.Error(t, err)
			assert.Contains(t, err.Error(), key)
		})
	}
}

func TestLoad_InvalidPublishStart(t *testing.T) {
	t.Setenv("PUBLISH_START", "1/1/21")
	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "PUBLISH_START")
}

func TestLoad_InvalidRedisDB(t *testing.T) {
	t.Setenv("REDIS_DB", "-1")
	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "REDIS_DB")
}

func TestLoad_URLTemplatesNeedPlaceholders(t *testing.T) {
	t.Run("cases", func(t *testing.T) {
		t.Setenv("CASES_URL_TEMPLATE", "http://mirror/confirmed.csv")
		_, err := Load()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "CASES_URL_TEMPLATE")
	})
	t.Run("repair", func(t *testing.T) {
		t.Setenv("REPAIR_URL_TEMPLATE", "http://mirror/nyt.csv")
		_, err := Load()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "REPAIR_URL_TEMPLATE")
	})
}

func TestLoad_InvalidCacheSizeFallsBack(t *testing.T) {
	t.Setenv("SOURCE_CACHE_SIZE", "-3")
	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 16, cfg.SourceCacheSize)
}
