package pipeline

import (
	"context"
	"fmt"
	"time"

	"OptPull/internal/domain/models"
	drepo "OptPull/internal/domain/repository"
	"OptPull/internal/service/analytics"
	"OptPull/internal/service/strikes"
	"OptPull/pkg/config"
	applogger "OptPull/pkg/logger"
)

// Phase names, in default execution order.
const (
	PhaseResolve  = "resolve"
	PhaseFetch    = "fetch"
	PhaseClamp    = "prefilter_clamp"
	PhaseEnrich   = "enrich"
	PhaseValidate = "preventive_validate"
	PhaseSalvage  = "salvage"
	PhaseCoverage = "coverage"
	PhaseIV       = "iv_estimation"
	PhaseGreeks   = "greeks"
	PhasePersist  = "persist"
)

// PhaseFunc mutates the unit in place. Expected failures never escape: the
// phase appends a tagged error to the unit and returns.
type PhaseFunc func(ctx context.Context, u *models.ExpiryUnit)

// Phase is one named step of the per-unit pipeline.
type Phase struct {
	Name string
	Run  PhaseFunc
}

// Pipeline runs an ordered list of phases over a shared mutable ExpiryUnit.
// One unit's failure never affects sibling units.
type Pipeline struct {
	cfg       *config.Config
	provider  drepo.Provider
	selector  drepo.ExpirySelector // optional
	persister drepo.Persister
	spots     drepo.SpotSource
	strikes   *strikes.Service
	estimator analytics.Estimator // optional
	metrics   drepo.Metrics
	log       *applogger.Logger

	validator *Validator
	phases    []Phase
}

// New builds a pipeline with the default phase order.
func New(
	cfg *config.Config,
	provider drepo.Provider,
	selector drepo.ExpirySelector,
	persister drepo.Persister,
	spots drepo.SpotSource,
	strikeSvc *strikes.Service,
	estimator analytics.Estimator,
	metrics drepo.Metrics,
	log *applogger.Logger,
) *Pipeline {
	p := &Pipeline{
		cfg:       cfg,
		provider:  provider,
		selector:  selector,
		persister: persister,
		spots:     spots,
		strikes:   strikeSvc,
		estimator: estimator,
		metrics:   metrics,
		log:       log,
		validator: NewValidator(cfg),
	}
	p.phases = []Phase{
		{PhaseResolve, p.resolve},
		{PhaseFetch, p.fetch},
		{PhaseClamp, p.prefilterClamp},
		{PhaseEnrich, p.enrich},
		{PhaseValidate, p.preventiveValidate},
		{PhaseSalvage, p.salvage},
		{PhaseCoverage, p.coverage},
		{PhaseIV, p.ivEstimation},
		{PhaseGreeks, p.greeks},
		{PhasePersist, p.persist},
	}
	return p
}

// Phases returns the configured phase order.
func (p *Pipeline) Phases() []Phase {
	return p.phases
}

// Run executes every phase over the unit. Phases are idempotent functions of
// (ctx, unit): already-populated fields make a phase a no-op, and a failed
// prerequisite leaves dependent phases as no-ops while independent phases
// (coverage in particular) still run.
func (p *Pipeline) Run(ctx context.Context, u *models.ExpiryUnit) {
	for _, ph := range p.phases {
		p.runPhase(ctx, ph, u)
	}
}

// runPhase executes one phase with the executor boundary: panics are caught
// and recorded as fatal tags on the unit, never re-raised.
func (p *Pipeline) runPhase(ctx context.Context, ph Phase, u *models.ExpiryUnit) {
	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			u.AddError(models.ErrKindFatal, ph.Name, fmt.Sprintf("panic: %v", r))
			p.metrics.RecordError("phase_panic")
			p.log.Error("phase panic",
				applogger.String("index", u.Index),
				applogger.String("rule", u.Rule),
				applogger.String("phase", ph.Name),
				applogger.Any("panic", r),
			)
		}
		p.metrics.RecordLatency("phase_"+ph.Name, time.Since(start).Seconds())
	}()
	ph.Run(ctx, u)
}
