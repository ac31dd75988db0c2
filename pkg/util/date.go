package util

import (
	"strconv"
	"time"
)

// ISODate is the wire format for expiry dates.
const ISODate = "2006-01-02"

// ParseTime tries RFC3339, RFC3339Nano, and unix seconds. Returns (t, true) if any worked.
func ParseTime(s string) (time.Time, bool) {
	if s == "" {
		return time.Time{}, false
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, true
	}
	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return t, true
	}
	if ts, err := strconv.ParseInt(s, 10, 64); err == nil && ts > 0 {
		return time.Unix(ts, 0), true
	}
	return time.Time{}, false
}

// ParseTimeDefault parses time or returns default if empty/invalid.
func ParseTimeDefault(s string, def time.Time) time.Time {
	if t, ok := ParseTime(s); ok {
		return t
	}
	return def
}

// ParseISODate parses a plain 2006-01-02 date.
func ParseISODate(s string) (time.Time, bool) {
	t, err := time.Parse(ISODate, s)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

// IsISODate reports whether s is a plain 2006-01-02 date. Used by the resolve
// phase to short-circuit explicit dates passed as expiry rules.
func IsISODate(s string) bool {
	_, ok := ParseISODate(s)
	return ok
}

// NextWeekday returns the next occurrence of the given weekday strictly on or
// after t's date.
func NextWeekday(t time.Time, wd time.Weekday) time.Time {
	days := (int(wd) - int(t.Weekday()) + 7) % 7
	return t.AddDate(0, 0, days)
}

// LastWeekdayOfMonth returns the last occurrence of the weekday within t's month.
func LastWeekdayOfMonth(t time.Time, wd time.Weekday) time.Time {
	firstNext := time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, t.Location()).AddDate(0, 1, 0)
	last := firstNext.AddDate(0, 0, -1)
	days := (int(last.Weekday()) - int(wd) + 7) % 7
	return last.AddDate(0, 0, -days)
}
