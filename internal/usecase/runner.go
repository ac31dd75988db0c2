package usecase

import (
	"context"
	"errors"
	"math"
	"time"

	"OptPull/internal/adaptive"
	"OptPull/internal/domain/models"
	drepo "OptPull/internal/domain/repository"
	"OptPull/internal/pipeline"
	"OptPull/internal/service/strikes"
	applogger "OptPull/pkg/logger"
)

// bandSteps is the half-width, in strike steps around ATM, of the reduced
// emission band used at detail mode 1.
const bandSteps = 5

// DetailModeSource exposes the current emission detail mode.
type DetailModeSource interface {
	Mode() int
}

// UnitRunner executes one (index, expiry-rule) unit per call: it runs the
// pipeline, emits gated per-option metrics, publishes the outcome event and
// records unit-level observability.
type UnitRunner struct {
	pipe    *pipeline.Pipeline
	events  drepo.EventSink // optional
	metrics drepo.Metrics
	guard   *adaptive.Guard
	detail  DetailModeSource
	spots   drepo.SpotSource
	reg     *strikes.Registry
	log     *applogger.Logger
}

// NewUnitRunner creates a new UnitRunner instance.
func NewUnitRunner(
	pipe *pipeline.Pipeline,
	events drepo.EventSink,
	metrics drepo.Metrics,
	guard *adaptive.Guard,
	detail DetailModeSource,
	spots drepo.SpotSource,
	reg *strikes.Registry,
	log *applogger.Logger,
) *UnitRunner {
	return &UnitRunner{
		pipe:    pipe,
		events:  events,
		metrics: metrics,
		guard:   guard,
		detail:  detail,
		spots:   spots,
		reg:     reg,
		log:     log,
	}
}

// RunUnit builds a fresh unit, runs every pipeline phase over it and returns
// the outcome. The unit state itself is discarded here; only the outcome and
// what the persist phase already wrote survive the call.
func (r *UnitRunner) RunUnit(ctx context.Context, index, rule string, cycle int64) models.UnitOutcome {
	start := time.Now()
	u := &models.ExpiryUnit{Index: index, Rule: rule, Cycle: cycle}

	r.pipe.Run(ctx, u)

	o := models.UnitOutcome{
		Index:          index,
		Rule:           rule,
		Date:           u.Date,
		Cycle:          cycle,
		SalvageApplied: u.SalvageApplied,
		TimedOut:       errors.Is(ctx.Err(), context.DeadlineExceeded),
		StrikeCoverage: u.Coverage.StrikeCoverage,
		FieldCoverage:  u.Coverage.FieldCoverage,
		Diagnostics:    u.Diagnostics(),
		Elapsed:        time.Since(start).Seconds(),
		Timestamp:      time.Now().UTC(),
	}
	if u.Persisted != nil {
		o.OptionCount = u.Persisted.OptionCount
		o.PCR = u.Persisted.PCR
		o.Success = !u.Persisted.Failed
	}

	r.emitOptionMetrics(u)

	result := "failed"
	if o.Success {
		result = "success"
	} else if o.TimedOut {
		result = "timeout"
	}
	r.metrics.RecordUnit(index, result)
	r.metrics.RecordLatency("unit", o.Elapsed)

	if r.events != nil {
		if err := r.events.PublishOutcome(ctx, o); err != nil {
			r.metrics.RecordError("outcome_publish")
			r.log.Warn("outcome publish failed",
				applogger.String("index", index),
				applogger.String("rule", rule),
				applogger.Error(err))
		}
	}

	r.log.Info("unit finished",
		applogger.String("index", index),
		applogger.String("rule", rule),
		applogger.String("date", o.Date),
		applogger.Bool("success", o.Success),
		applogger.Int("options", o.OptionCount),
		applogger.Int("errors", len(u.Errors)))
	return o
}

// emitOptionMetrics publishes per-option gauges subject to the cardinality
// guard and the detail mode: 0 emits every validated row, 1 only a band
// around ATM, 2 nothing.
func (r *UnitRunner) emitOptionMetrics(u *models.ExpiryUnit) {
	if r.guard != nil && r.guard.Active() {
		return
	}
	mode := 0
	if r.detail != nil {
		mode = r.detail.Mode()
	}
	if mode >= 2 || len(u.Validated) == 0 {
		return
	}

	var band float64
	var atm float64
	if mode == 1 {
		spot, ok := r.spots.Spot(u.Index)
		d, okd := r.reg.Depths(u.Index)
		if !ok || !okd || spot <= 0 {
			return
		}
		atm = math.Round(spot/d.Step) * d.Step
		band = float64(bandSteps) * d.Step
	}

	for sym, q := range u.Validated {
		if mode == 1 && math.Abs(q.Strike-atm) > band {
			continue
		}
		r.metrics.EmitOptionQuote(u.Index, sym, q)
	}
}
