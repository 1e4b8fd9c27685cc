// Command export derives the active-case table once and writes it as CSV.
//
// Usage:
//
//	go run ./cmd/export --start 2021-01-01 --out active_cases.csv
package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/couchcryptid/epi-route-service/internal/adapter/export"
	"github.com/couchcryptid/epi-route-service/internal/adapter/source"
	"github.com/couchcryptid/epi-route-service/internal/config"
	"github.com/couchcryptid/epi-route-service/internal/domain"
	"github.com/couchcryptid/epi-route-service/internal/observability"
	"github.com/couchcryptid/epi-route-service/internal/pipeline"
	"github.com/urfave/cli/v3"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := newCommand(os.Stdout).Run(ctx, os.Args); err != nil {
		slog.Error("export failed", "error", err)
		os.Exit(1)
	}
}

func newCommand(stdout io.Writer) *cli.Command {
	return &cli.Command{
		Name:  "export",
		Usage: "Derive the active-case table and write it as CSV",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "start",
				Usage:   "first date of the table (YYYY-MM-DD)",
				Value:   "2021-01-01",
				Sources: cli.EnvVars("PUBLISH_START"),
			},
			&cli.StringFlag{
				Name:  "end",
				Usage: "last date of the table (YYYY-MM-DD); defaults to the latest published date up to yesterday",
			},
			&cli.StringFlag{
				Name:  "type",
				Usage: "case type (confirmed, deaths)",
				Value: string(domain.CaseConfirmed),
			},
			&cli.StringSliceFlag{
				Name:  "region",
				Usage: "restrict to these region ids; repeat or comma-separate",
			},
			&cli.BoolFlag{
				Name:  "scale",
				Usage: "report values per 100,000 residents",
			},
			&cli.StringFlag{
				Name:    "out",
				Aliases: []string{"o"},
				Usage:   "output file, - for stdout",
				Value:   "active_cases.csv",
			},
		},
		Action: func(ctx context.Context, c *cli.Command) error {
			cfg, err := config.Load()
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			logger := observability.NewLogger(cfg)

			q, err := queryFromFlags(c)
			if err != nil {
				return err
			}

			out := stdout
			if path := c.String("out"); path != "-" {
				f, err := os.Create(path)
				if err != nil {
					return fmt.Errorf("create output: %w", err)
				}
				defer f.Close()
				out = f
			}

			n, err := run(ctx, cfg, q, out, logger, observability.NewMetrics())
			if err != nil {
				return err
			}
			logger.Info("export complete",
				"rows", n,
				"start", q.Start.Format(domain.LayoutISO),
				"end", q.End.Format(domain.LayoutISO),
				"out", c.String("out"),
			)
			return nil
		},
	}
}

func queryFromFlags(c *cli.Command) (domain.ActiveCaseQuery, error) {
	start, err := time.Parse(domain.LayoutISO, c.String("start"))
	if err != nil {
		return domain.ActiveCaseQuery{}, fmt.Errorf("invalid --start: %w", err)
	}
	end, clamp := domain.Yesterday(), true
	if s := c.String("end"); s != "" {
		if end, err = time.Parse(domain.LayoutISO, s); err != nil {
			return domain.ActiveCaseQuery{}, fmt.Errorf("invalid --end: %w", err)
		}
		clamp = false
	}
	q := domain.ActiveCaseQuery{
		Start:    start,
		End:      end,
		CaseType: c.String("type"),
		Scale:    c.Bool("scale"),
		ClampEnd: clamp,
	}
	if regions := c.StringSlice("region"); len(regions) > 0 {
		q.Regions = regions
	}
	return q, nil
}

func run(ctx context.Context, cfg *config.Config, q domain.ActiveCaseQuery, out io.Writer, logger *slog.Logger, metrics *observability.Metrics) (int, error) {
	client := source.NewClient(cfg.SourceTimeout, logger, metrics)
	fetcher := source.NewCachedFetcher(client, cfg.SourceCacheSize, cfg.SourceCacheTTL, nil, metrics)
	tables := source.NewTables(fetcher, source.Config{
		CumulativeURLTemplate: cfg.CasesURLTemplate,
		RepairURLTemplate:     cfg.RepairURLTemplate,
		ReferenceURL:          cfg.ReferenceURL,
		AdjacencyURL:          cfg.AdjacencyURL,
	}, logger)

	deriver := pipeline.NewDeriver(tables, tables, tables, logger, metrics)
	records, err := deriver.ActiveCases(ctx, q)
	if err != nil {
		return 0, err
	}
	regions, err := tables.Regions(ctx)
	if err != nil {
		return 0, err
	}

	end := q.End
	if q.ClampEnd && len(records) > 0 {
		end = records[0].End()
	}
	rows := domain.BuildRows(records, domain.RemapRegions(regions, domain.DefaultRemap))
	if err := export.WriteCSV(out, rows, q.Start, end); err != nil {
		return 0, fmt.Errorf("write csv: %w", err)
	}
	return len(rows), nil
}
