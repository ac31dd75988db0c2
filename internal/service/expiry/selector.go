package expiry

import (
	"context"
	"fmt"
	"time"

	"OptPull/pkg/cache"
	"OptPull/pkg/util"
)

// Known calendar rules.
const (
	RuleThisWeek  = "this_week"
	RuleNextWeek  = "next_week"
	RuleThisMonth = "this_month"
)

// Selector resolves calendar expiry rules locally, so the provider is only
// consulted for rules it alone understands. Resolutions are cached until the
// end of the trading day.
type Selector struct {
	weekday time.Weekday
	cache   cache.Service
	now     func() time.Time
}

// NewSelector builds a selector expiring on the given weekday (Thursday for
// the usual index options calendar).
func NewSelector(weekday time.Weekday, c cache.Service) *Selector {
	return &Selector{weekday: weekday, cache: c, now: time.Now}
}

// Select resolves a rule to an ISO date, or an error for unknown rules so the
// caller can fall back to provider-native resolution.
func (s *Selector) Select(ctx context.Context, index, rule string) (string, error) {
	key := cache.GenerateKeyWithParams("expiry", index, rule, s.now().Format(util.ISODate))
	if s.cache != nil {
		var cached string
		if err := s.cache.Get(ctx, key, &cached); err == nil && cached != "" {
			return cached, nil
		}
	}

	today := s.now().Truncate(24 * time.Hour)
	var d time.Time
	switch rule {
	case RuleThisWeek:
		d = util.NextWeekday(today, s.weekday)
	case RuleNextWeek:
		d = util.NextWeekday(today, s.weekday).AddDate(0, 0, 7)
	case RuleThisMonth:
		d = util.LastWeekdayOfMonth(today, s.weekday)
		if d.Before(today) {
			// anchor to the 1st: AddDate from the 29th-31st normalizes past
			// the next month entirely
			next := time.Date(today.Year(), today.Month()+1, 1, 0, 0, 0, 0, today.Location())
			d = util.LastWeekdayOfMonth(next, s.weekday)
		}
	default:
		return "", fmt.Errorf("unknown expiry rule %q", rule)
	}

	iso := d.Format(util.ISODate)
	if s.cache != nil {
		_ = s.cache.Set(ctx, key, iso, untilMidnight(s.now()))
	}
	return iso, nil
}

func untilMidnight(now time.Time) time.Duration {
	next := now.Truncate(24 * time.Hour).AddDate(0, 0, 1)
	return next.Sub(now)
}
