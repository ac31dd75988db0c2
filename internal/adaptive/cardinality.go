package adaptive

import (
	"time"

	"OptPull/internal/domain/models"
	drepo "OptPull/internal/domain/repository"
	applogger "OptPull/pkg/logger"
)

// Guard actions returned by Evaluate.
const (
	GuardActionNone     = "none"
	GuardActionDisable  = "disable"
	GuardActionReenable = "reenable"
)

// GuardConfig tunes the cardinality guard hysteresis.
type GuardConfig struct {
	MaxSeries        int
	ReenableFraction float64
	MinDisable       time.Duration
}

// Guard disables per-option metric emission when the estimated active series
// count exceeds the budget, and re-enables only after both a minimum hold time
// and the estimate dropping well below the budget.
type Guard struct {
	cfg     GuardConfig
	state   models.CardinalityGuardState
	metrics drepo.Metrics
	log     *applogger.Logger
	now     func() time.Time
}

// NewGuard starts in the enabled (not tripped) state.
func NewGuard(cfg GuardConfig, metrics drepo.Metrics, log *applogger.Logger) *Guard {
	if cfg.ReenableFraction <= 0 || cfg.ReenableFraction > 1 {
		cfg.ReenableFraction = 0.5
	}
	return &Guard{cfg: cfg, metrics: metrics, log: log, now: time.Now}
}

// Evaluate applies the hysteresis rule to a series estimate and returns the
// action taken. Tripping drops the per-option gauge series immediately.
func (g *Guard) Evaluate(estimate int) string {
	now := g.now()
	if !g.state.Disabled {
		if estimate <= g.cfg.MaxSeries {
			return GuardActionNone
		}
		g.state.Disabled = true
		g.state.LastToggle = now
		g.state.Trips++
		g.metrics.RecordCardinalityTrip()
		g.metrics.DropOptionSeries()
		g.log.Warn("cardinality guard tripped",
			applogger.Int("estimate", estimate),
			applogger.Int("max_series", g.cfg.MaxSeries))
		return GuardActionDisable
	}

	if now.Sub(g.state.LastToggle) < g.cfg.MinDisable {
		return GuardActionNone
	}
	if float64(estimate) >= float64(g.cfg.MaxSeries)*g.cfg.ReenableFraction {
		return GuardActionNone
	}
	g.state.Disabled = false
	g.state.LastToggle = now
	g.log.Info("cardinality guard re-enabled", applogger.Int("estimate", estimate))
	return GuardActionReenable
}

// EvaluateNow reads the live series estimate from the metrics recorder.
func (g *Guard) EvaluateNow() string {
	return g.Evaluate(g.metrics.OptionSeriesCount())
}

// Active reports whether per-option emission is currently disabled.
func (g *Guard) Active() bool {
	return g.state.Disabled
}

// Trips is the cumulative trip count.
func (g *Guard) Trips() int64 {
	return g.state.Trips
}

// State exposes the guard state for status reporting.
func (g *Guard) State() models.CardinalityGuardState {
	return g.state
}
