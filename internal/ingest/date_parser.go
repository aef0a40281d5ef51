package ingest

import (
	"strings"
	"time"
)

// Date is an optional point in time. DateOnly marks values that carried no
// time of day upstream so they serialize back as YYYY-MM-DD.
type Date struct {
	Time     time.Time
	DateOnly bool
	Valid    bool
}

var dateTimeLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05-0700",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
}

var dateOnlyLayouts = []string{
	"2006-01-02",
	"01/02/2006",
}

// parseDate accepts a complete ISO-8601 value or a US date. Anything that does
// not parse in full is invalid.
func parseDate(raw string) Date {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return Date{}
	}
	for _, layout := range dateTimeLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return Date{Time: t, Valid: true}
		}
	}
	for _, layout := range dateOnlyLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return Date{Time: t, DateOnly: true, Valid: true}
		}
	}
	return Date{}
}

// Format returns the ISO-8601 rendering of d.
func (d Date) Format() (string, bool) {
	if !d.Valid {
		return "", false
	}
	if d.DateOnly {
		return d.Time.Format("2006-01-02"), true
	}
	return d.Time.Format(time.RFC3339), true
}
