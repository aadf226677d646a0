// Package utils provides utility functions for the application.
package utils

import (
	"fmt"
	"time"
)

// PeriodLayout is the YYYY-MM layout used for calculation periods
const PeriodLayout = "2006-01"

// UTCNow returns the current time in UTC
func UTCNow() time.Time {
	return time.Now().UTC()
}

// TimeToUTCPtr converts a time pointer to UTC if it's not already
func TimeToUTCPtr(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	utc := t.UTC()
	return &utc
}

// ParsePeriod parses a YYYY-MM period and returns the first day of that month in UTC.
func ParsePeriod(period string) (time.Time, error) {
	t, err := time.ParseInLocation(PeriodLayout, period, time.UTC)
	if err != nil {
		return time.Time{}, fmt.Errorf("period %q is not YYYY-MM: %w", period, err)
	}
	return FirstOfMonth(t), nil
}

// FirstOfMonth truncates t to midnight of the first day of its month in UTC.
func FirstOfMonth(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC)
}

// ParseDate parses a YYYY-MM-DD date in UTC.
func ParseDate(s string) (time.Time, error) {
	return time.ParseInLocation(time.DateOnly, s, time.UTC)
}
