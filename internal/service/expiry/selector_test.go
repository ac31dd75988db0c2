package expiry

import (
	"context"
	"testing"
	"time"

	"OptPull/pkg/cache"
)

// 2026-08-31 is a Monday; the following Thursday is 2026-09-03.
func fixedNow() time.Time {
	return time.Date(2026, 8, 31, 9, 30, 0, 0, time.UTC)
}

func newTestSelector(c cache.Service) *Selector {
	s := NewSelector(time.Thursday, c)
	s.now = fixedNow
	return s
}

func TestSelectThisWeek(t *testing.T) {
	s := newTestSelector(nil)
	got, err := s.Select(context.Background(), "NIFTY", RuleThisWeek)
	if err != nil {
		t.Fatalf("select: %v", err)
	}
	if got != "2026-09-03" {
		t.Fatalf("expected 2026-09-03, got %s", got)
	}
}

func TestSelectNextWeek(t *testing.T) {
	s := newTestSelector(nil)
	got, err := s.Select(context.Background(), "NIFTY", RuleNextWeek)
	if err != nil {
		t.Fatalf("select: %v", err)
	}
	if got != "2026-09-10" {
		t.Fatalf("expected 2026-09-10, got %s", got)
	}
}

func TestSelectThisMonth(t *testing.T) {
	s := newTestSelector(nil)
	got, err := s.Select(context.Background(), "NIFTY", RuleThisMonth)
	if err != nil {
		t.Fatalf("select: %v", err)
	}
	// last Thursday of September 2026
	if got != "2026-09-24" {
		t.Fatalf("expected 2026-09-24, got %s", got)
	}
}

func TestSelectThisMonthRollsForward(t *testing.T) {
	s := newTestSelector(nil)
	// 2026-09-25 is the Friday after the month's last Thursday.
	s.now = func() time.Time {
		return time.Date(2026, 9, 25, 9, 30, 0, 0, time.UTC)
	}
	got, err := s.Select(context.Background(), "NIFTY", RuleThisMonth)
	if err != nil {
		t.Fatalf("select: %v", err)
	}
	// last Thursday of October 2026
	if got != "2026-10-29" {
		t.Fatalf("expected 2026-10-29, got %s", got)
	}
}

func TestSelectThisMonthFromLongMonthEnd(t *testing.T) {
	s := newTestSelector(nil)
	// 2026-10-31 is past October's last Thursday (the 29th); the rollover
	// must land in November, not skip to December.
	s.now = func() time.Time {
		return time.Date(2026, 10, 31, 9, 30, 0, 0, time.UTC)
	}
	got, err := s.Select(context.Background(), "NIFTY", RuleThisMonth)
	if err != nil {
		t.Fatalf("select: %v", err)
	}
	// last Thursday of November 2026
	if got != "2026-11-26" {
		t.Fatalf("expected 2026-11-26, got %s", got)
	}
}

func TestSelectUnknownRule(t *testing.T) {
	s := newTestSelector(nil)
	if _, err := s.Select(context.Background(), "NIFTY", "quarterly"); err == nil {
		t.Fatalf("unknown rules must error so callers fall back to the provider")
	}
}

func TestSelectCachesResolution(t *testing.T) {
	c := cache.NewMemoryCache()
	s := newTestSelector(c)
	ctx := context.Background()

	first, err := s.Select(ctx, "NIFTY", RuleThisWeek)
	if err != nil {
		t.Fatalf("select: %v", err)
	}

	var cached string
	key := "expiry:NIFTY:this_week:2026-08-31"
	if err := c.Get(ctx, key, &cached); err != nil {
		t.Fatalf("expected resolution cached under %s: %v", key, err)
	}
	if cached != first {
		t.Fatalf("cached %s, resolved %s", cached, first)
	}
}
