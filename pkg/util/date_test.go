package util

import (
    "strconv"
    "testing"
    "time"
)

func TestParseTimeRFC3339(t *testing.T) {
    s := "2024-10-10T10:10:10Z"
    got, ok := ParseTime(s)
    if !ok {
        t.Fatalf("expected ok")
    }
    if got.UTC().Format(time.RFC3339) != s {
        t.Fatalf("unexpected time %v", got)
    }
}

func TestParseTimeUnix(t *testing.T) {
    ts := time.Date(2024, 10, 10, 10, 10, 10, 0, time.UTC).Unix()
    got, ok := ParseTime(strconv.FormatInt(ts, 10))
    if !ok {
        t.Fatalf("expected ok")
    }
    if got.Unix() != ts {
        t.Fatalf("unexpected unix %v", got.Unix())
    }
}

func TestParseTimeDefault(t *testing.T) {
    def := time.Date(2024, 10, 10, 10, 10, 10, 0, time.UTC)
    got := ParseTimeDefault("", def)
    if !got.Equal(def) {
        t.Fatalf("expected default")
    }
}

func TestIsISODate(t *testing.T) {
    if !IsISODate("2026-09-03") {
        t.Fatalf("expected valid ISO date")
    }
    if IsISODate("this_week") || IsISODate("2026-09-03T00:00:00Z") {
        t.Fatalf("expected non-date strings to be rejected")
    }
}

func TestNextWeekday(t *testing.T) {
    // 2026-08-31 is a Monday
    mon := time.Date(2026, 8, 31, 0, 0, 0, 0, time.UTC)
    got := NextWeekday(mon, time.Thursday)
    if got.Format(ISODate) != "2026-09-03" {
        t.Fatalf("unexpected next thursday %v", got)
    }
    // same weekday resolves to the same day
    if !NextWeekday(mon, time.Monday).Equal(mon) {
        t.Fatalf("expected same day for matching weekday")
    }
}

func TestLastWeekdayOfMonth(t *testing.T) {
    d := time.Date(2026, 9, 10, 0, 0, 0, 0, time.UTC)
    got := LastWeekdayOfMonth(d, time.Thursday)
    if got.Format(ISODate) != "2026-09-24" {
        t.Fatalf("unexpected last thursday %v", got)
    }
}