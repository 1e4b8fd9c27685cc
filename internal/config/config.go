package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	sharedcfg "github.com/couchcryptid/storm-data-shared/config"
)

// Default upstream tables.
const (
	DefaultCasesURLTemplate  = "https://raw.githubusercontent.com/CSSEGISandData/COVID-19/master/csse_covid_19_data/csse_covid_19_time_series/time_series_covid19_%s_US.csv"
	DefaultRepairURLTemplate = "https://raw.githubusercontent.com/nytimes/covid-19-data/master/us-counties-%d.csv"
	DefaultReferenceURL      = "https://raw.githubusercontent.com/AnjaDeric/MDA-TeamCroatia/main/Data/county_info.csv"
	DefaultAdjacencyURL      = "https://raw.githubusercontent.com/AnjaDeric/MDA-TeamCroatia/main/Data/adj_dist_all_final.csv"
)

// Config holds all service settings, populated from environment variables.
type Config struct {
	HTTPAddr        string
	LogLevel        string
	LogFormat       string
	ShutdownTimeout time.Duration

	BatchSize          int
	BatchFlushInterval time.Duration

	// Remote table configuration.
	CasesURLTemplate  string
	RepairURLTemplate string
	ReferenceURL      string
	AdjacencyURL      string
	AdjacencyStrict   bool
	SourceTimeout     time.Duration
	SourceCacheSize   int
	SourceCacheTTL    time.Duration

	// Daily publisher configuration.
	PublishEnabled  bool
	PublishStart    time.Time
	PublishInterval time.Duration
	KafkaBrokers    []string
	KafkaSinkTopic  string

	// Snapshot cache configuration. An empty RedisAddr disables the cache.
	RedisAddr     string
	RedisPassword string
	RedisDB       int
	SnapshotTTL   time.Duration
}

// Load reads configuration from environment variables, applying defaults where unset.
func Load() (*Config, error) {
	shutdownTimeout, err := sharedcfg.ParseShutdownTimeout()
	if err != nil {
		return nil, err
	}

	batchSize, err := sharedcfg.ParseBatchSize()
	if err != nil {
		return nil, err
	}

	flushInterval, err := sharedcfg.ParseBatchFlushInterval()
	if err != nil {
		return nil, err
	}

	sourceTimeout, err := parsePositiveDuration("SOURCE_TIMEOUT", "60s")
	if err != nil {
		return nil, err
	}
	cacheTTL, err := parsePositiveDuration("SOURCE_CACHE_TTL", "1h")
	if err != nil {
		return nil, err
	}
	publishInterval, err := parsePositiveDuration("PUBLISH_INTERVAL", "24h")
	if err != nil {
		return nil, err
	}
	snapshotTTL, err := parsePositiveDuration("SNAPSHOT_TTL", "6h")
	if err != nil {
		return nil, err
	}

	publishStart, err := time.Parse("2006-01-02", sharedcfg.EnvOrDefault("PUBLISH_START", "2021-01-01"))
	if err != nil {
		return nil, errors.New("invalid PUBLISH_START: want YYYY-MM-DD")
	}

	redisDB, err := strconv.Atoi(sharedcfg.EnvOrDefault("REDIS_DB", "0"))
	if err != nil || redisDB < 0 {
		return nil, errors.New("invalid REDIS_DB")
	}

	cfg := &Config{
		HTTPAddr:           sharedcfg.EnvOrDefault("HTTP_ADDR", ":8080"),
		LogLevel:           sharedcfg.EnvOrDefault("LOG_LEVEL", "info"),
		LogFormat:          sharedcfg.EnvOrDefault("LOG_FORMAT", "json"),
		ShutdownTimeout:    shutdownTimeout,
		BatchSize:          batchSize,
		BatchFlushInterval: flushInterval,

		CasesURLTemplate:  sharedcfg.EnvOrDefault("CASES_URL_TEMPLATE", DefaultCasesURLTemplate),
		RepairURLTemplate: sharedcfg.EnvOrDefault("REPAIR_URL_TEMPLATE", DefaultRepairURLTemplate),
		ReferenceURL:      sharedcfg.EnvOrDefault("REFERENCE_URL", DefaultReferenceURL),
		AdjacencyURL:      sharedcfg.EnvOrDefault("ADJACENCY_URL", DefaultAdjacencyURL),
		AdjacencyStrict:   os.Getenv("ADJACENCY_STRICT") == "true",
		SourceTimeout:     sourceTimeout,
		SourceCacheSize:   parseCacheSize(),
		SourceCacheTTL:    cacheTTL,

		PublishEnabled:  os.Getenv("PUBLISH_ENABLED") == "true",
		PublishStart:    publishStart,
		PublishInterval: publishInterval,
		KafkaBrokers:    sharedcfg.ParseBrokers(sharedcfg.EnvOrDefault("KAFKA_BROKERS", "localhost:9092")),
		KafkaSinkTopic:  sharedcfg.EnvOrDefault("KAFKA_SINK_TOPIC", "active-cases"),

		RedisAddr:     os.Getenv("REDIS_ADDR"),
		RedisPassword: os.Getenv("REDIS_PASSWORD"),
		RedisDB:       redisDB,
		SnapshotTTL:   snapshotTTL,
	}

	if !strings.Contains(cfg.CasesURLTemplate, "%s") {
		return nil, errors.New("CASES_URL_TEMPLATE must contain %s for the case type")
	}
	if !strings.Contains(cfg.RepairURLTemplate, "%d") {
		return nil, errors.New("REPAIR_URL_TEMPLATE must contain %d for the year")
	}
	if cfg.ReferenceURL == "" {
		return nil, errors.New("REFERENCE_URL is required")
	}
	if cfg.AdjacencyURL == "" {
		return nil, errors.New("ADJACENCY_URL is required")
	}
	if cfg.PublishEnabled {
		if len(cfg.KafkaBrokers) == 0 {
			return nil, errors.New("KAFKA_BROKERS is required when PUBLISH_ENABLED is true")
		}
		if cfg.KafkaSinkTopic == "" {
			return nil, errors.New("KAFKA_SINK_TOPIC is required when PUBLISH_ENABLED is true")
		}
	}

	return cfg, nil
}

func parsePositiveDuration(key, def string) (time.Duration, error) {
	d, err := time.ParseDuration(sharedcfg.EnvOrDefault(key, def))
	if err != nil || d <= 0 {
		return 0, fmt.Errorf("invalid %s", key)
	}
	return d, nil
}

func parseCacheSize() int {
	if s := os.Getenv("SOURCE_CACHE_SIZE"); s != "" {
		if n, err := strconv.Atoi(s); err == nil && n > 0 {
			return n
		}
	}
	return 16
}
