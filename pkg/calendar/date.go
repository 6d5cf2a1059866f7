// Package calendar handles calendar dates used as report boundaries.
// Dates carry no time-of-day meaning and are normalized to UTC midnight.
package calendar

import (
	"errors"
	"strings"
	"time"
)

const Layout = "2006-01-02"

var ErrInvalidDate = errors.New("invalid_date")

// Parse reads a YYYY-MM-DD date.
func Parse(value string) (time.Time, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return time.Time{}, ErrInvalidDate
	}
	t, err := time.ParseInLocation(Layout, value, time.UTC)
	if err != nil {
		return time.Time{}, ErrInvalidDate
	}
	return t, nil
}

// ParseOr parses value, falling back to def when value is blank.
func ParseOr(value string, def time.Time) (time.Time, error) {
	if strings.TrimSpace(value) == "" {
		return Normalize(def), nil
	}
	return Parse(value)
}

// Normalize drops the time of day, keeping the calendar date of t in its own location.
func Normalize(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func Format(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(Layout)
}

// DayBefore returns the previous calendar date.
func DayBefore(t time.Time) time.Time {
	return Normalize(t).AddDate(0, 0, -1)
}

// FiscalYearStart returns the start of the fiscal year containing t, given the
// month and day the year starts on.
func FiscalYearStart(t time.Time, month time.Month, day int) time.Time {
	t = Normalize(t)
	start := time.Date(t.Year(), month, day, 0, 0, 0, 0, time.UTC)
	if t.Before(start) {
		start = start.AddDate(-1, 0, 0)
	}
	return start
}
