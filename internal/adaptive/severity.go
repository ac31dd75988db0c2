package adaptive

import (
	"context"
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"math"

	"OptPull/internal/domain/models"
	drepo "OptPull/internal/domain/repository"
	applogger "OptPull/pkg/logger"
)

// SeverityRule is one threshold row of the classification table. Ascending
// rules trigger when the metric rises; inverted rules when it falls.
type SeverityRule struct {
	Metric   string  `json:"metric"`
	Warn     float64 `json:"warn"`
	Critical float64 `json:"critical"`
	Inverted bool    `json:"inverted"`
	Abs      bool    `json:"abs"`
}

func defaultSeverityRules() map[string]SeverityRule {
	return map[string]SeverityRule{
		"interpolation_high": {Metric: "fraction", Warn: 0.50, Critical: 0.70},
		"risk_delta_drift":   {Metric: "drift", Warn: 0.05, Critical: 0.10, Abs: true},
		"bucket_util_low":    {Metric: "utilization", Warn: 0.75, Critical: 0.60, Inverted: true},
	}
}

// SeverityConfig tunes streak gating, decay and trend smoothing.
type SeverityConfig struct {
	MinStreak     int
	DecayCycles   int
	TrendWindow   int
	CriticalRatio float64
	WarnRatio     float64
}

// Classifier converts raw alerts into info/warn/critical with streak gating,
// decay and trend smoothing. All methods are cycle-sequential: the scheduler
// calls them from its single post-fan-out evaluation step.
type Classifier struct {
	cfg     SeverityConfig
	rules   map[string]SeverityRule
	ruleSum [sha256.Size]byte
	src     drepo.RuleSource

	states  map[string]*models.SeverityState
	instant map[string]models.SeverityLevel // effective classification this cycle
	trend   *TrendRing

	metrics drepo.Metrics
	log     *applogger.Logger
}

// NewClassifier builds a classifier with the default rule table. src may be
// nil when no override source is configured.
func NewClassifier(cfg SeverityConfig, src drepo.RuleSource, metrics drepo.Metrics, log *applogger.Logger) *Classifier {
	if cfg.DecayCycles <= 0 {
		cfg.DecayCycles = 6
	}
	if cfg.TrendWindow <= 0 {
		cfg.TrendWindow = 30
	}
	return &Classifier{
		cfg:     cfg,
		rules:   defaultSeverityRules(),
		src:     src,
		states:  make(map[string]*models.SeverityState),
		instant: make(map[string]models.SeverityLevel),
		trend:   NewTrendRing(cfg.TrendWindow),
		metrics: metrics,
		log:     log,
	}
}

// Classify maps one alert to a level using the threshold table. Unknown types
// classify as info. Classification is monotone in the rule's direction.
func (c *Classifier) Classify(a models.Alert) models.SeverityLevel {
	r, ok := c.rules[a.Type]
	if !ok {
		return models.SeverityInfo
	}
	v := a.Value
	if r.Abs {
		v = math.Abs(v)
	}
	if r.Inverted {
		switch {
		case v <= r.Critical:
			return models.SeverityCritical
		case v < r.Warn:
			return models.SeverityWarn
		default:
			return models.SeverityInfo
		}
	}
	switch {
	case v >= r.Critical:
		return models.SeverityCritical
	case v >= r.Warn:
		return models.SeverityWarn
	default:
		return models.SeverityInfo
	}
}

// Observe classifies this cycle's alerts and applies them to per-type state.
// An instantaneous classification at or above the active level overrides it
// immediately and resets the decay clock.
func (c *Classifier) Observe(cycle int64, alerts []models.Alert) {
	for _, a := range alerts {
		instant := c.Classify(a)
		st := c.state(a.Type)
		st.LastCycle = cycle

		if instant.Rank() > 0 {
			st.Streak++
		} else {
			st.Streak = 0
		}
		effective := instant
		if c.cfg.MinStreak > 1 && instant.Rank() > 0 && st.Streak < c.cfg.MinStreak {
			effective = models.SeverityInfo
		}
		c.instant[a.Type] = effective

		if effective.Rank() >= st.ActiveLevel.Rank() {
			if effective != st.ActiveLevel {
				st.ActiveLevel = effective
			}
			st.LastChangeCycle = cycle
		}
	}
}

// Decay lowers active levels one step per full decay window elapsed without a
// re-trigger. Decay never raises a level.
func (c *Classifier) Decay(cycle int64) {
	for typ, st := range c.states {
		rank := st.ActiveLevel.Rank()
		if rank == 0 {
			continue
		}
		if cycle-st.LastChangeCycle < int64(c.cfg.DecayCycles) {
			continue
		}
		st.ActiveLevel = models.LevelFromRank(rank - 1)
		st.LastChangeCycle = cycle
		if st.ActiveLevel == models.SeverityInfo && c.instant[typ].Rank() == 0 {
			st.ResolvedCount++
			c.log.Info("severity resolved", applogger.String("type", typ))
		}
	}
}

// Snapshot records one trend ring entry for this cycle and refreshes the
// active-count gauges.
func (c *Classifier) Snapshot(cycle int64) {
	s := models.TrendSnapshot{
		Cycle:   cycle,
		Counts:  make(map[models.SeverityLevel]int, 3),
		PerType: make(map[string]models.SeverityLevel, len(c.states)),
	}
	for typ, st := range c.states {
		s.Counts[st.ActiveLevel]++
		s.PerType[typ] = st.ActiveLevel
	}
	c.trend.Push(s)

	for _, lvl := range []models.SeverityLevel{models.SeverityInfo, models.SeverityWarn, models.SeverityCritical} {
		c.metrics.SetSeverityActive(string(lvl), s.Counts[lvl])
	}
	c.instant = make(map[string]models.SeverityLevel)
}

// CriticalRatio is the fraction of buffered snapshots with a critical level
// present, optionally filtered to specific alert types.
func (c *Classifier) CriticalRatio(types ...string) float64 {
	return c.trend.Ratio(models.SeverityCritical, types...)
}

// WarnRatio is the warn counterpart of CriticalRatio.
func (c *Classifier) WarnRatio(types ...string) float64 {
	return c.trend.Ratio(models.SeverityWarn, types...)
}

// CriticalSmoothed applies the configured ratio threshold to the trend buffer.
func (c *Classifier) CriticalSmoothed() bool {
	return c.CriticalRatio() >= c.cfg.CriticalRatio
}

// WarnSmoothed applies the configured warn ratio threshold.
func (c *Classifier) WarnSmoothed() bool {
	return c.WarnRatio() >= c.cfg.WarnRatio
}

// ActiveCounts returns how many types currently sit at each level.
func (c *Classifier) ActiveCounts() map[models.SeverityLevel]int {
	out := make(map[models.SeverityLevel]int, 3)
	for _, st := range c.states {
		out[st.ActiveLevel]++
	}
	return out
}

// State returns the tracked state for an alert type, or nil.
func (c *Classifier) State(typ string) *models.SeverityState {
	return c.states[typ]
}

// TrendSnapshots exposes the buffered snapshots, oldest first, for dashboards.
func (c *Classifier) TrendSnapshots() []models.TrendSnapshot {
	return c.trend.Snapshots()
}

// RefreshRules re-reads the override source and merges it over the defaults.
// The payload is re-parsed only when its content hash changes.
func (c *Classifier) RefreshRules(ctx context.Context) error {
	if c.src == nil {
		return nil
	}
	raw, err := c.src.RawRules(ctx)
	if err != nil {
		return fmt.Errorf("rule source: %w", err)
	}
	if len(raw) == 0 {
		return nil
	}
	sum := sha256.Sum256(raw)
	if sum == c.ruleSum {
		return nil
	}

	var overrides map[string]SeverityRule
	if err := json.Unmarshal(raw, &overrides); err != nil {
		return fmt.Errorf("parse rule overrides: %w", err)
	}
	merged := defaultSeverityRules()
	for typ, r := range overrides {
		merged[typ] = r
	}
	c.rules = merged
	c.ruleSum = sum
	c.log.Info("severity rules reloaded", applogger.Int("overrides", len(overrides)))
	return nil
}

// Reset clears all per-type state and the trend buffer.
func (c *Classifier) Reset() {
	c.states = make(map[string]*models.SeverityState)
	c.instant = make(map[string]models.SeverityLevel)
	c.trend = NewTrendRing(c.cfg.TrendWindow)
}

func (c *Classifier) state(typ string) *models.SeverityState {
	st, ok := c.states[typ]
	if !ok {
		st = &models.SeverityState{ActiveLevel: models.SeverityInfo}
		c.states[typ] = st
	}
	return st
}
