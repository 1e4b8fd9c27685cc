package domain

import (
	"fmt"
	"strings"
	"time"
)

// Date layouts seen at the ingestion boundary.
const (
	// LayoutISO is used by the repair source and the query API.
	LayoutISO = "2006-01-02"
	// LayoutCumulative is the column header format of the cumulative source, e.g. "1/2/21".
	LayoutCumulative = "1/2/06"
	// LayoutColumn is the column header format of the persisted table, e.g. "d01022021".
	LayoutColumn = "d01022006"
)

var dateLayouts = []string{LayoutISO, LayoutCumulative, LayoutColumn}

// ParseDate normalizes any of the known source date renderings to midnight UTC.
func ParseDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized date %q", s)
}

// Day truncates t to midnight UTC of its calendar day.
func Day(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// DaysBetween returns the number of whole days from a to b (negative when b is before a).
func DaysBetween(a, b time.Time) int {
	return int(Day(b).Sub(Day(a)).Hours() / 24)
}

// ColumnName renders a date as a persisted-table column header.
func ColumnName(t time.Time) string {
	return t.Format(LayoutColumn)
}
