// Package routing finds the safest (least exposure) and shortest (least
// distance) routes between two regions.
package routing

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/couchcryptid/epi-route-service/internal/domain"
	"github.com/couchcryptid/epi-route-service/internal/graph"
	"github.com/couchcryptid/epi-route-service/internal/observability"
)

// ExposureSource provides the unscaled active-case snapshot for one date.
type ExposureSource interface {
	ActiveCasesOn(ctx context.Context, date time.Time) ([]domain.ActiveCaseRecord, error)
}

// Routes is the result of one routing query.
type Routes struct {
	Date     time.Time         `json:"date"`
	Safest   domain.PathResult `json:"safest"`
	Shortest domain.PathResult `json:"shortest"`
}

// Router computes both routes over a shared, read-only distance graph. It
// holds no per-query state and is safe for concurrent use.
type Router struct {
	distance *graph.Graph[float64]
	edges    []domain.AdjacencyEdge
	exposure ExposureSource
	logger   *slog.Logger
	metrics  *observability.Metrics
}

// NewRouter creates a Router over a distance graph built once at startup.
func NewRouter(distance *graph.Graph[float64], exposure ExposureSource, logger *slog.Logger, metrics *observability.Metrics) *Router {
	return &Router{
		distance: distance,
		edges:    graph.AdjacencyEdges(distance),
		exposure: exposure,
		logger:   logger,
		metrics:  metrics,
	}
}

// CheckReadiness reports an error when no adjacency data was loaded.
func (r *Router) CheckReadiness(_ context.Context) error {
	if r.distance.NumNodes() == 0 {
		return errors.New("distance graph is empty")
	}
	return nil
}

// Route finds the exposure-optimal and the distance-optimal path from source
// to destination on date. Each path is reported with both of its totals.
func (r *Router) Route(ctx context.Context, source, destination string, date time.Time) (Routes, error) {
	start := time.Now()
	routes, err := r.route(ctx, source, destination, domain.Day(date))
	outcome := "success"
	if err != nil {
		outcome = "error"
	}
	r.metrics.RouteQueries.WithLabelValues(outcome).Inc()
	r.metrics.RouteDuration.Observe(time.Since(start).Seconds())
	return routes, err
}

func (r *Router) route(ctx context.Context, source, destination string, date time.Time) (Routes, error) {
	src, err := r.resolve(source)
	if err != nil {
		return Routes{}, err
	}
	dst, err := r.resolve(destination)
	if err != nil {
		return Routes{}, err
	}

	cases, err := r.exposure.ActiveCasesOn(ctx, date)
	if err != nil {
		return Routes{}, fmt.Errorf("load active cases: %w", err)
	}
	exposure, err := graph.BuildExposure(r.edges, cases, date)
	if err != nil {
		return Routes{}, err
	}

	safe, err := search(ctx, exposure, src, dst)
	if err != nil {
		return Routes{}, fmt.Errorf("exposure graph: %w", err)
	}
	short, err := search(ctx, r.distance, src, dst)
	if err != nil {
		return Routes{}, fmt.Errorf("distance graph: %w", err)
	}

	safest, err := r.summarize(safe, exposure)
	if err != nil {
		return Routes{}, err
	}
	shortest, err := r.summarize(short, exposure)
	if err != nil {
		return Routes{}, err
	}

	r.logger.Debug("route computed",
		"source", src,
		"destination", dst,
		"date", date.Format(domain.LayoutISO),
		"safest_hops", safest.Hops,
		"shortest_hops", shortest.Hops,
	)

	return Routes{Date: date, Safest: safest, Shortest: shortest}, nil
}

func (r *Router) resolve(raw string) (string, error) {
	id, err := domain.NormalizeRegionID(raw)
	if err != nil {
		return "", fmt.Errorf("%w: %v", domain.ErrInvalidRegion, err)
	}
	if !r.distance.Has(id) {
		return "", fmt.Errorf("%w: %s is not in the adjacency graph", domain.ErrInvalidRegion, id)
	}
	return id, nil
}

// search runs Dijkstra between two region ids on g.
func search[W graph.Weight](ctx context.Context, g *graph.Graph[W], source, destination string) ([]string, error) {
	s, ok := g.Index(source)
	if !ok {
		return nil, fmt.Errorf("%w: %s", domain.ErrInvalidRegion, source)
	}
	t, ok := g.Index(destination)
	if !ok {
		return nil, fmt.Errorf("%w: %s", domain.ErrInvalidRegion, destination)
	}
	nodes, _, found, err := shortestPath(ctx, g, s, t)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, fmt.Errorf("%w: %s to %s", domain.ErrNoPath, source, destination)
	}
	path := make([]string, len(nodes))
	for i, n := range nodes {
		path[i] = g.ID(n)
	}
	return path, nil
}

// summarize prices a path on both graphs.
func (r *Router) summarize(path []string, exposure *graph.Graph[int64]) (domain.PathResult, error) {
	km, ok := r.distance.PathCost(path)
	if !ok {
		return domain.PathResult{}, fmt.Errorf("%w: path %v leaves the distance graph", domain.ErrNoPath, path)
	}
	cases, ok := exposure.PathCost(path)
	if !ok {
		return domain.PathResult{}, fmt.Errorf("%w: path %v leaves the exposure graph", domain.ErrNoPath, path)
	}
	return domain.PathResult{
		Regions:         path,
		TotalDistanceKM: km,
		TotalExposure:   cases,
		Hops:            len(path),
	}, nil
}
