package utils

import (
	"fmt"
	"time"
)

// ImportDateFormat is the calendar date layout of import dates, in storage and on the wire.
const ImportDateFormat = "2006-01-02"

// FormatDate renders t's UTC calendar day.
func FormatDate(t time.Time) string {
	return t.UTC().Format(ImportDateFormat)
}

// ParseDate parses an import date.
func ParseDate(dateStr string) (time.Time, error) {
	t, err := time.Parse(ImportDateFormat, dateStr)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q, want YYYY-MM-DD: %w", dateStr, err)
	}
	return t, nil
}
