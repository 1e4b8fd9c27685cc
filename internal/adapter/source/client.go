package source

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/couchcryptid/epi-route-service/internal/observability"
)

// Table is a parsed CSV document: a header row and its data rows.
type Table struct {
	Header []string
	Rows   [][]string
}

// Column returns the index of the named header, ignoring case, or -1.
func (t *Table) Column(name string) int {
	for i, h := range t.Header {
		if strings.EqualFold(strings.TrimSpace(h), name) {
			return i
		}
	}
	return -1
}

// Fetcher retrieves one remote table. name identifies the table in logs and metrics.
type Fetcher interface {
	Fetch(ctx context.Context, name, url string) (*Table, error)
}

// Client fetches CSV tables over HTTP. Every request is bounded by the
// client timeout in addition to the caller's context.
type Client struct {
	httpClient *http.Client
	logger     *slog.Logger
	metrics    *observability.Metrics
}

// NewClient creates an HTTP table client.
func NewClient(timeout time.Duration, logger *slog.Logger, metrics *observability.Metrics) *Client {
	return &Client{
		httpClient: &http.Client{
			Timeout: timeout,
		},
		logger:  logger,
		metrics: metrics,
	}
}

// Fetch downloads and parses the table at url.
func (c *Client) Fetch(ctx context.Context, name, url string) (*Table, error) {
	start := time.Now()
	t, err := c.doRequest(ctx, url)
	c.metrics.SourceFetchDuration.WithLabelValues(name).Observe(time.Since(start).Seconds())
	if err != nil {
		c.metrics.SourceFetches.WithLabelValues(name, "error").Inc()
		c.logger.Warn("source fetch failed", "source", name, "url", url, "error", err)
		return nil, err
	}
	c.metrics.SourceFetches.WithLabelValues(name, "success").Inc()
	c.logger.Debug("source fetched", "source", name, "rows", len(t.Rows), "duration", time.Since(start))
	return t, nil
}

func (c *Client) doRequest(ctx context.Context, url string) (*Table, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("table request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("table request: status %d: %s", resp.StatusCode, body)
	}
	return ParseTable(resp.Body)
}

// ParseTable reads a CSV document with a header row. Rows may be ragged.
func ParseTable(r io.Reader) (*Table, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1

	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return nil, errors.New("decode table: empty document")
	}
	if err != nil {
		return nil, fmt.Errorf("decode table header: %w", err)
	}
	// Strip a UTF-8 byte order mark from the first header cell.
	if len(header) > 0 {
		header[0] = strings.TrimPrefix(header[0], "\ufeff")
	}

	t := &Table{Header: header}
	for {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("decode table: %w", err)
		}
		t.Rows = append(t.Rows, rec)
	}
	return t, nil
}
