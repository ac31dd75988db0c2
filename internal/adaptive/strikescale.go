package adaptive

import (
	"math"
	"time"

	"OptPull/internal/domain/models"
	drepo "OptPull/internal/domain/repository"
	"OptPull/internal/service/strikes"
	applogger "OptPull/pkg/logger"
)

// ScaleConfig tunes the strike-depth scale controller.
type ScaleConfig struct {
	Mode           string // "passthrough" | "mutating"
	BreachFraction float64
	Reduction      float64
	BreachStreak   int
	RestoreStreak  int
	MinDepth       int
}

// ScaleController shrinks the strike universe when cycles run long and grows
// it back once latency recovers. In passthrough mode the factor is consumed by
// the universe service; in mutating mode the registry depths are rewritten.
// It satisfies strikes.ScaleSource.
type ScaleController struct {
	cfg     ScaleConfig
	reg     *strikes.Registry
	state   *models.StrikeScaleState
	metrics drepo.Metrics
	log     *applogger.Logger
}

var _ strikes.ScaleSource = (*ScaleController)(nil)

// NewScaleController starts at factor 1.0 (full depth).
func NewScaleController(cfg ScaleConfig, reg *strikes.Registry, metrics drepo.Metrics, log *applogger.Logger) *ScaleController {
	if cfg.BreachFraction <= 0 {
		cfg.BreachFraction = 0.85
	}
	if cfg.Reduction <= 0 || cfg.Reduction >= 1 {
		cfg.Reduction = 0.8
	}
	if cfg.BreachStreak <= 0 {
		cfg.BreachStreak = 2
	}
	if cfg.RestoreStreak <= 0 {
		cfg.RestoreStreak = 3
	}
	c := &ScaleController{
		cfg:     cfg,
		reg:     reg,
		state:   &models.StrikeScaleState{ScaleFactor: 1.0},
		metrics: metrics,
		log:     log,
	}
	c.publish()
	return c
}

// Factor returns the current scale factor.
func (c *ScaleController) Factor() float64 {
	return c.state.ScaleFactor
}

// State exposes the controller state for status reporting, with the frozen
// per-index baseline depths attached.
func (c *ScaleController) State() models.StrikeScaleState {
	st := *c.state
	st.BaselineDepth = make(map[string]int)
	for _, idx := range c.reg.Indices() {
		if d, ok := c.reg.Baseline(idx); ok {
			st.BaselineDepth[idx] = min(d.ITM, d.OTM)
		}
	}
	return st
}

// Evaluate runs once per cycle with the cycle's elapsed wall time. A breach is
// elapsed exceeding the configured fraction of the interval.
func (c *ScaleController) Evaluate(elapsed, interval time.Duration) {
	breach := elapsed > time.Duration(float64(interval)*c.cfg.BreachFraction)
	if breach {
		c.state.BreachStreak++
		c.state.HealthyStreak = 0
	} else {
		c.state.HealthyStreak++
		c.state.BreachStreak = 0
	}

	if c.state.BreachStreak >= c.cfg.BreachStreak {
		c.state.BreachStreak = 0
		next := c.state.ScaleFactor * c.cfg.Reduction
		if floor := c.floor(); next < floor {
			next = floor
		}
		if next < c.state.ScaleFactor {
			c.state.ScaleFactor = next
			c.apply()
			c.metrics.RecordControllerAction("sla_latency", "reduce_depth")
			c.log.Warn("strike depth reduced",
				applogger.Float64("factor", c.state.ScaleFactor),
				applogger.Duration("elapsed", elapsed))
		}
		return
	}

	if c.state.HealthyStreak >= c.cfg.RestoreStreak && c.state.ScaleFactor < 1.0 {
		c.state.HealthyStreak = 0
		next := c.state.ScaleFactor / c.cfg.Reduction
		if next > 0.995 {
			next = 1.0
		}
		c.state.ScaleFactor = next
		c.apply()
		c.metrics.RecordControllerAction(ReasonRecovered, "restore_depth")
		c.log.Info("strike depth restored", applogger.Float64("factor", c.state.ScaleFactor))
	}
}

// floor is the smallest admissible factor: the configured minimum depth over
// the smallest baseline depth across enabled indices.
func (c *ScaleController) floor() float64 {
	base := c.reg.BaselineMinDepth()
	if base <= 0 || c.cfg.MinDepth <= 0 {
		return 0
	}
	f := float64(c.cfg.MinDepth) / float64(base)
	if f > 1 {
		f = 1
	}
	return f
}

// apply pushes the factor into the registry in mutating mode and refreshes
// the gauges. Passthrough mode leaves depths alone; the universe service reads
// the factor directly.
func (c *ScaleController) apply() {
	if c.cfg.Mode == "mutating" {
		for _, idx := range c.reg.Indices() {
			base, ok := c.reg.Baseline(idx)
			if !ok {
				continue
			}
			c.reg.SetDepths(idx, strikes.Depths{
				Step: base.Step,
				ITM:  scaleDepth(base.ITM, c.state.ScaleFactor, c.cfg.MinDepth),
				OTM:  scaleDepth(base.OTM, c.state.ScaleFactor, c.cfg.MinDepth),
			})
		}
	}
	c.publish()
}

func (c *ScaleController) publish() {
	for _, idx := range c.reg.Indices() {
		c.metrics.SetScaleFactor(idx, c.state.ScaleFactor)
	}
}

func scaleDepth(depth int, factor float64, minDepth int) int {
	scaled := int(math.Round(float64(depth) * factor))
	if scaled < minDepth {
		scaled = minDepth
	}
	if scaled < 1 {
		scaled = 1
	}
	return scaled
}
