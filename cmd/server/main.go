package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	apiadapter "github.com/couchcryptid/epi-route-service/internal/adapter/http"
	"github.com/couchcryptid/epi-route-service/internal/adapter/httpadapter"
	kafkaadapter "github.com/couchcryptid/epi-route-service/internal/adapter/kafka"
	redisadapter "github.com/couchcryptid/epi-route-service/internal/adapter/redis"
	"github.com/couchcryptid/epi-route-service/internal/adapter/source"
	"github.com/couchcryptid/epi-route-service/internal/config"
	"github.com/couchcryptid/epi-route-service/internal/domain"
	"github.com/couchcryptid/epi-route-service/internal/graph"
	"github.com/couchcryptid/epi-route-service/internal/observability"
	"github.com/couchcryptid/epi-route-service/internal/pipeline"
	"github.com/couchcryptid/epi-route-service/internal/routing"
	sharedobs "github.com/couchcryptid/storm-data-shared/observability"
	"github.com/jonboulle/clockwork"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg)
	metrics := observability.NewMetrics()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	client := source.NewClient(cfg.SourceTimeout, logger, metrics)
	fetcher := source.NewCachedFetcher(client, cfg.SourceCacheSize, cfg.SourceCacheTTL, nil, metrics)
	tables := source.NewTables(fetcher, sourceConfig(cfg), logger)

	distance, err := loadDistanceGraph(ctx, tables, cfg.AdjacencyStrict)
	if err != nil {
		logger.Error("failed to load adjacency table", "error", err)
		os.Exit(1)
	}
	logger.Info("distance graph loaded", "regions", distance.NumNodes(), "arcs", distance.NumArcs())

	// Reference coordinates only draw route geometry; routing works without them.
	regions, err := tables.Regions(ctx)
	if err != nil {
		logger.Warn("reference table unavailable, route geometry disabled", "error", err)
	}

	deriver := pipeline.NewDeriver(tables, tables, tables, logger, metrics)

	// Initialize snapshot cache (feature-flagged via REDIS_ADDR).
	var exposure routing.ExposureSource = deriver
	if cfg.RedisAddr != "" {
		rdb, err := redisadapter.NewClient(ctx, cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
		if err != nil {
			logger.Warn("snapshot cache disabled", "error", err)
		} else {
			defer rdb.Close() //nolint:errcheck // best-effort on exit
			exposure = redisadapter.NewSnapshotCache(rdb, deriver, cfg.SnapshotTTL, logger, metrics)
			logger.Info("snapshot cache enabled", "addr", cfg.RedisAddr, "ttl", cfg.SnapshotTTL)
		}
	} else {
		logger.Info("snapshot cache disabled")
	}

	router := routing.NewRouter(distance, exposure, logger, metrics)
	api := apiadapter.NewHandler(router, deriver, domain.RemapRegions(regions, domain.DefaultRemap), logger)

	checks := readiness{router}

	var writer *kafkaadapter.Writer
	if cfg.PublishEnabled {
		clock := clockwork.NewRealClock()
		writer = kafkaadapter.NewWriter(cfg, clock, logger)
		pub := pipeline.NewPublisher(deriver, tables, writer, clock, pipeline.PublisherConfig{
			Start:     cfg.PublishStart,
			Interval:  cfg.PublishInterval,
			BatchSize: cfg.BatchSize,
		}, logger, metrics)
		checks = append(checks, pub)

		// Start daily publisher.
		go func() {
			if err := pub.Run(ctx); err != nil {
				logger.Error("publisher error", "error", err)
			}
		}()
	}

	srv := httpadapter.NewServer(cfg.HTTPAddr, checks, api, logger)

	// Start HTTP server.
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", "error", err)
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", "error", err)
	}
	if writer != nil {
		if err := writer.Close(); err != nil {
			logger.Error("kafka writer close error", "error", err)
		}
	}

	logger.Info("shutdown complete")
}

func sourceConfig(cfg *config.Config) source.Config {
	return source.Config{
		CumulativeURLTemplate: cfg.CasesURLTemplate,
		RepairURLTemplate:     cfg.RepairURLTemplate,
		ReferenceURL:          cfg.ReferenceURL,
		AdjacencyURL:          cfg.AdjacencyURL,
	}
}

// loadDistanceGraph builds the shared distance graph. The identifier remap
// is applied to adjacency rows so graph ids match the derived table.
func loadDistanceGraph(ctx context.Context, src domain.AdjacencySource, strict bool) (*graph.Graph[float64], error) {
	edges, err := src.Edges(ctx)
	if err != nil {
		return nil, err
	}
	var opts []graph.Option
	if strict {
		opts = append(opts, graph.RejectDuplicates())
	}
	g, err := graph.BuildDistance(domain.RemapEdges(edges, domain.DefaultRemap), opts...)
	if err != nil {
		return nil, fmt.Errorf("build distance graph: %w", err)
	}
	return g, nil
}

// readiness is ready when every component is.
type readiness []sharedobs.ReadinessChecker

func (r readiness) CheckReadiness(ctx context.Context) error {
	for _, c := range r {
		if err := c.CheckReadiness(ctx); err != nil {
			return err
		}
	}
	return nil
}
