package models

import "time"

// SeverityLevel orders alert severities.
type SeverityLevel string

const (
	SeverityInfo     SeverityLevel = "info"
	SeverityWarn     SeverityLevel = "warn"
	SeverityCritical SeverityLevel = "critical"
)

// Rank maps a level to its ordinal for comparisons; unknown levels rank as info.
func (l SeverityLevel) Rank() int {
	switch l {
	case SeverityWarn:
		return 1
	case SeverityCritical:
		return 2
	default:
		return 0
	}
}

// LevelFromRank is the inverse of Rank, clamped to the valid range.
func LevelFromRank(r int) SeverityLevel {
	switch {
	case r >= 2:
		return SeverityCritical
	case r == 1:
		return SeverityWarn
	default:
		return SeverityInfo
	}
}

// Alert is a raw anomaly signal fed to the severity classifier.
type Alert struct {
	Type  string  `json:"type"`
	Value float64 `json:"value"`
}

// SeverityState tracks one alert type across cycles. active level changes only
// through classify and decay; decay only ever lowers it.
type SeverityState struct {
	LastCycle       int64         `json:"last_cycle"`
	ActiveLevel     SeverityLevel `json:"active_level"`
	LastChangeCycle int64         `json:"last_change_cycle"`
	ResolvedCount   int           `json:"resolved_count"`
	Streak          int           `json:"streak"` // consecutive above-info classifications
}

// TrendSnapshot is one ring-buffer entry recorded per evaluation cycle. It is
// used only to compute smoothing ratios, never as source of truth.
type TrendSnapshot struct {
	Cycle   int64                    `json:"cycle"`
	Counts  map[SeverityLevel]int    `json:"counts"`
	PerType map[string]SeverityLevel `json:"per_type"`
}

// AdaptiveState is the detail-mode controller state, owned by the scheduler
// context and passed by reference.
type AdaptiveState struct {
	LastSLABreachCounter int64 `json:"last_sla_breach_counter"`
	SLABreachStreak      int   `json:"sla_breach_streak"`
	HealthyStreak        int   `json:"healthy_streak"`
	DetailMode           int   `json:"detail_mode"` // 0=full, 1=band, 2=agg
	LastDemoteCycle      int64 `json:"last_demote_cycle"`

	// BreachSegment increments whenever the breach streak resets to zero;
	// DemotedSegment remembers the last segment that already fired a demote.
	BreachSegment  int64 `json:"breach_segment"`
	DemotedSegment int64 `json:"demoted_segment"`
}

// StrikeScaleState drives the continuous ITM/OTM depth scale factor.
// ScaleFactor is non-increasing while breaching and non-decreasing while
// healthy; baselines are captured once and frozen.
type StrikeScaleState struct {
	ScaleFactor   float64        `json:"scale_factor"` // in (0, 1]
	BreachStreak  int            `json:"breach_streak"`
	HealthyStreak int            `json:"healthy_streak"`
	BaselineDepth map[string]int `json:"baseline_depth"` // per index
}

// CardinalityGuardState tracks per-option metric emission gating.
type CardinalityGuardState struct {
	Disabled   bool      `json:"disabled"`
	LastToggle time.Time `json:"last_toggle"`
	Trips      int64     `json:"trips"`
}
