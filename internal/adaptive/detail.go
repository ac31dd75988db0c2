package adaptive

import (
	"OptPull/internal/domain/models"
	drepo "OptPull/internal/domain/repository"
	applogger "OptPull/pkg/logger"
)

// Demotion reasons, highest priority first.
const (
	ReasonMemoryCritical   = "memory_critical"
	ReasonSLABreach        = "sla_breach"
	ReasonCardinalityGuard = "cardinality_guard"
	ReasonSeverityCritical = "severity_critical"
	ReasonFollowupPressure = "followup_pressure"
	ReasonRecovered        = "recovered"
)

// DetailConfig tunes the detail-mode ladder. Mode 0 is richest emission,
// MinDetailMode (largest number) the most degraded.
type DetailConfig struct {
	MaxDetailMode   int // richest mode the controller may promote back to
	MinDetailMode   int // most degraded mode the controller may demote to
	BreachStreak    int // consecutive SLA breaches per demotion
	PromoteCooldown int
	RecoveryCycles  int // healthy cycles consumed per promotion step
	MinHealthCycles int
}

// DetailController adjusts the per-option emission detail mode. At most one
// demotion fires per evaluation, highest priority reason wins; promotions
// climb back one step per consumed recovery window.
type DetailController struct {
	cfg     DetailConfig
	state   *models.AdaptiveState
	indices []string
	metrics drepo.Metrics
	log     *applogger.Logger
}

// NewDetailController starts at the richest mode with no demotions recorded.
func NewDetailController(cfg DetailConfig, indices []string, metrics drepo.Metrics, log *applogger.Logger) *DetailController {
	if cfg.BreachStreak <= 0 {
		cfg.BreachStreak = 2
	}
	if cfg.RecoveryCycles <= 0 {
		cfg.RecoveryCycles = 3
	}
	c := &DetailController{
		cfg: cfg,
		state: &models.AdaptiveState{
			DetailMode:      cfg.MaxDetailMode,
			LastDemoteCycle: -1,
			DemotedSegment:  -1,
		},
		indices: indices,
		metrics: metrics,
		log:     log,
	}
	c.publishMode()
	return c
}

// Mode returns the current detail mode.
func (c *DetailController) Mode() int {
	return c.state.DetailMode
}

// State exposes the controller state for status reporting.
func (c *DetailController) State() models.AdaptiveState {
	return *c.state
}

// Evaluate runs once per cycle after fan-out. critSmoothed and warnSmoothed
// are the trend-smoothed severity signals for this cycle.
func (c *DetailController) Evaluate(cycle int64, sig SignalSource, critSmoothed, warnSmoothed bool) {
	delta := sig.BreachDelta()
	c.state.LastSLABreachCounter += delta

	breached := delta > 0
	if breached {
		c.state.SLABreachStreak++
	} else if c.state.SLABreachStreak > 0 {
		c.state.SLABreachStreak = 0
		c.state.BreachSegment++
	}

	tier := sig.MemoryTier()
	reason := ""
	switch {
	case tier >= 2:
		reason = ReasonMemoryCritical
	case c.state.SLABreachStreak >= c.cfg.BreachStreak && c.state.BreachSegment != c.state.DemotedSegment:
		reason = ReasonSLABreach
	case sig.CardinalityTripDelta() > 0 || sig.CardinalityActive():
		reason = ReasonCardinalityGuard
	case critSmoothed:
		reason = ReasonSeverityCritical
	case tier == 1 && warnSmoothed:
		reason = ReasonFollowupPressure
	}

	if reason != "" {
		c.state.HealthyStreak = 0
		if c.state.DetailMode < c.cfg.MinDetailMode {
			c.demote(cycle, reason)
		}
		return
	}
	if breached {
		c.state.HealthyStreak = 0
		return
	}
	c.state.HealthyStreak++
	c.tryPromote(cycle, warnSmoothed)
}

func (c *DetailController) demote(cycle int64, reason string) {
	c.state.DetailMode++
	c.state.LastDemoteCycle = cycle
	if reason == ReasonSLABreach {
		// One demotion per breach segment: close the current segment out.
		c.state.DemotedSegment = c.state.BreachSegment
		c.state.SLABreachStreak = 0
		c.state.BreachSegment++
	}
	c.metrics.RecordControllerAction(reason, "demote")
	c.publishMode()
	c.log.Warn("detail mode demoted",
		applogger.String("reason", reason),
		applogger.Int("mode", c.state.DetailMode),
		applogger.Int64("cycle", cycle))
}

func (c *DetailController) tryPromote(cycle int64, warnSmoothed bool) {
	if c.state.DetailMode <= c.cfg.MaxDetailMode {
		return
	}
	if warnSmoothed {
		return
	}
	need := c.cfg.MinHealthCycles
	if c.cfg.PromoteCooldown > need {
		need = c.cfg.PromoteCooldown
	}
	if c.state.HealthyStreak < need {
		return
	}
	if c.state.LastDemoteCycle >= 0 && cycle-c.state.LastDemoteCycle < int64(c.cfg.PromoteCooldown) {
		return
	}

	steps := c.state.HealthyStreak / c.cfg.RecoveryCycles
	if max := c.state.DetailMode - c.cfg.MaxDetailMode; steps > max {
		steps = max
	}
	if steps <= 0 {
		return
	}
	c.state.DetailMode -= steps
	c.state.HealthyStreak -= steps * c.cfg.RecoveryCycles
	c.metrics.RecordControllerAction(ReasonRecovered, "promote")
	c.publishMode()
	c.log.Info("detail mode promoted",
		applogger.Int("mode", c.state.DetailMode),
		applogger.Int("steps", steps),
		applogger.Int64("cycle", cycle))
}

func (c *DetailController) publishMode() {
	for _, idx := range c.indices {
		c.metrics.SetDetailMode(idx, c.state.DetailMode)
	}
}
