// Package export renders the derived active-case table as a flat CSV: one
// row per region, reference columns first, then one column per date.
package export

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/couchcryptid/epi-route-service/internal/domain"
)

var referenceColumns = []string{"fips", "name", "population", "lat", "long"}

// WriteCSV writes rows for every date in [start, end]. Dates a row does not
// cover are left empty.
func WriteCSV(w io.Writer, rows []domain.ActiveCaseRow, start, end time.Time) error {
	start, end = domain.Day(start), domain.Day(end)
	days := domain.DaysBetween(start, end) + 1
	if days < 1 {
		return fmt.Errorf("%w: end %s is before start %s", domain.ErrInvalidQuery,
			end.Format(domain.LayoutISO), start.Format(domain.LayoutISO))
	}

	cw := csv.NewWriter(w)

	header := make([]string, 0, len(referenceColumns)+days)
	header = append(header, referenceColumns...)
	for i := range days {
		header = append(header, domain.ColumnName(start.AddDate(0, 0, i)))
	}
	if err := cw.Write(header); err != nil {
		return fmt.Errorf("write header: %w", err)
	}

	record := make([]string, len(header))
	for _, r := range rows {
		record[0] = r.Region
		record[1] = r.Name
		record[2] = formatInt(r.Population)
		record[3] = formatFloat(r.Lat)
		record[4] = formatFloat(r.Lon)

		series := domain.Series{Region: r.Region, Start: r.Start, Values: r.Values}
		for i := range days {
			cell := ""
			if v, ok := series.At(start.AddDate(0, 0, i)); ok {
				cell = strconv.FormatFloat(v, 'f', -1, 64)
			}
			record[len(referenceColumns)+i] = cell
		}
		if err := cw.Write(record); err != nil {
			return fmt.Errorf("write region %s: %w", r.Region, err)
		}
	}

	cw.Flush()
	return cw.Error()
}

func formatInt(n int64) string {
	if n == 0 {
		return ""
	}
	return strconv.FormatInt(n, 10)
}

func formatFloat(f float64) string {
	if f == 0 {
		return ""
	}
	return strconv.FormatFloat(f, 'f', -1, 64)
}
