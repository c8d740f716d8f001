// Package utils provides utility functions for the application.
package utils

import (
	"fmt"
	"time"

	// Campaign timezones are resolved on hosts without a zoneinfo database.
	_ "time/tzdata"
)

// DayLayout is the layout of per-campaign calendar days used by send counters
const DayLayout = "2006-01-02"

// ClockLayout is the layout of send window bounds
const ClockLayout = "15:04"

// UTCNow returns the current time in UTC
func UTCNow() time.Time {
	return time.Now().UTC()
}

// UTCNowPtr returns a pointer to the current time in UTC
func UTCNowPtr() *time.Time {
	now := UTCNow()
	return &now
}

// LoadLocation resolves an IANA timezone name. Empty means UTC.
func LoadLocation(name string) (*time.Location, error) {
	if name == "" {
		return time.UTC, nil
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return nil, fmt.Errorf("invalid timezone %q: %w", name, err)
	}
	return loc, nil
}

// LocalDay returns the calendar day of t in loc formatted as YYYY-MM-DD
func LocalDay(t time.Time, loc *time.Location) string {
	if loc == nil {
		loc = time.UTC
	}
	return t.In(loc).Format(DayLayout)
}

// ParseClock parses an "HH:MM" string into minutes since midnight
func ParseClock(s string) (int, error) {
	t, err := time.Parse(ClockLayout, s)
	if err != nil {
		return 0, fmt.Errorf("invalid clock %q: %w", s, err)
	}
	return t.Hour()*60 + t.Minute(), nil
}

// AddDays adds whole days to t, keeping the wall clock in UTC
func AddDays(t time.Time, days int) time.Time {
	return t.Add(time.Duration(days) * 24 * time.Hour)
}
