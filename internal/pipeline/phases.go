package pipeline

import (
	"context"
	"errors"
	"fmt"

	"OptPull/internal/domain/models"
	drepo "OptPull/internal/domain/repository"
	applogger "OptPull/pkg/logger"
	"OptPull/pkg/util"
)

// resolve obtains the unit's expiry date: an explicit ISO-date rule
// short-circuits, otherwise the pluggable selector is asked, otherwise the
// provider resolves natively. No date means the unit aborts this cycle.
func (p *Pipeline) resolve(ctx context.Context, u *models.ExpiryUnit) {
	if u.Date != "" {
		return
	}
	if util.IsISODate(u.Rule) {
		u.Date = u.Rule
		return
	}
	if p.selector != nil {
		if d, err := p.selector.Select(ctx, u.Index, u.Rule); err == nil && d != "" {
			u.Date = d
			return
		}
	}
	d, err := p.provider.ResolveExpiry(ctx, u.Index, u.Rule)
	if err != nil {
		u.AddError(models.ErrKindAbort, PhaseResolve, fmt.Sprintf("expiry unresolved: %v", err))
		return
	}
	if d == "" {
		u.AddError(models.ErrKindAbort, PhaseResolve, "expiry unresolved")
		return
	}
	u.Date = d
}

// fetch builds the requested strike ladder and requests instruments for
// (index, date, strikes). An empty instrument set is recoverable.
func (p *Pipeline) fetch(ctx context.Context, u *models.ExpiryUnit) {
	if u.Date == "" || len(u.Instruments) > 0 {
		return
	}
	if len(u.Strikes) == 0 {
		ladder, err := p.strikes.Universe(u.Index, u.Date)
		if err != nil {
			u.AddError(models.ErrKindAbort, PhaseFetch, fmt.Sprintf("strike universe: %v", err))
			return
		}
		u.Strikes = ladder
	}
	if len(u.Strikes) == 0 {
		u.AddError(models.ErrKindAbort, PhaseFetch, "zero strikes requested")
		return
	}

	ins, err := p.provider.OptionInstruments(ctx, u.Index, u.Date, u.Strikes)
	if err != nil {
		if errors.Is(err, drepo.ErrNoInstruments) {
			u.AddError(models.ErrKindRecoverable, PhaseFetch, "no instruments")
		} else {
			u.AddError(models.ErrKindRecoverable, PhaseFetch, err.Error())
		}
		return
	}
	if len(ins) == 0 {
		u.AddError(models.ErrKindRecoverable, PhaseFetch, "no instruments")
		return
	}
	u.Instruments = ins
}

// prefilterClamp bounds the instrument set before enrichment.
func (p *Pipeline) prefilterClamp(_ context.Context, u *models.ExpiryUnit) {
	if len(u.Instruments) == 0 || u.Clamp != nil {
		return
	}
	clamped, meta := Clamp(u.Instruments, p.cfg.Pipeline.PrefilterMaxInstruments, p.cfg.Pipeline.PrefilterStrict)
	u.Instruments = clamped
	u.Clamp = &meta
	if meta.DroppedCount > 0 {
		p.log.Warn("prefilter clamp truncated instruments",
			applogger.String("index", u.Index),
			applogger.Int("original", meta.OriginalCount),
			applogger.Int("dropped", meta.DroppedCount),
		)
	}
}

// enrich requests quotes for the fetched instruments. Empty quotes are
// recoverable.
func (p *Pipeline) enrich(ctx context.Context, u *models.ExpiryUnit) {
	if len(u.Instruments) == 0 || u.Enriched != nil {
		return
	}
	quotes, err := p.provider.EnrichWithQuotes(ctx, u.Instruments)
	if err != nil {
		if errors.Is(err, drepo.ErrNoQuotes) {
			u.AddError(models.ErrKindRecoverable, PhaseEnrich, "no quotes")
		} else {
			u.AddError(models.ErrKindRecoverable, PhaseEnrich, err.Error())
		}
		return
	}
	if len(quotes) == 0 {
		u.AddError(models.ErrKindRecoverable, PhaseEnrich, "no quotes")
		return
	}
	u.Enriched = quotes
}

// preventiveValidate drops malformed, foreign-expiry and out-of-band rows.
func (p *Pipeline) preventiveValidate(_ context.Context, u *models.ExpiryUnit) {
	if u.Enriched == nil || u.Validation != nil {
		return
	}
	spot, _ := p.spots.Spot(u.Index)
	kept, report := p.validator.Validate(u, spot)
	u.Validated = kept
	u.Validation = report
	if !report.OK {
		u.AddError(models.ErrKindRecoverable, PhaseValidate,
			fmt.Sprintf("validation failed: %v", report.Issues))
	}
}

// salvage rehydrates data dropped solely by foreign-expiry classification.
func (p *Pipeline) salvage(_ context.Context, u *models.ExpiryUnit) {
	if u.Validation == nil {
		return
	}
	d := EvaluateSalvage(u, p.cfg.Pipeline.SalvageMaxForeignDates, p.cfg.Pipeline.SalvageEnabled)
	if d.Applied {
		p.log.Warn("salvage applied: expiry rewritten to resolved date",
			applogger.String("index", u.Index),
			applogger.String("date", u.Date),
			applogger.Int("foreign_dates", d.ForeignDates),
			applogger.Int("rows", len(u.Validated)),
		)
		return
	}
	if d.Eligible {
		// computed for observability only; materialization is off
		p.metrics.RecordError("salvage_skipped")
		p.log.Info("salvage eligible but disabled",
			applogger.String("index", u.Index),
			applogger.Int("foreign_dates", d.ForeignDates),
		)
	}
}

// coverage always runs, emitting nil placeholders for failed units.
func (p *Pipeline) coverage(_ context.Context, u *models.ExpiryUnit) {
	ComputeCoverage(u)
}

// ivEstimation annotates validated quotes with implied volatility from the
// estimator service. Optional; estimator failures are recoverable.
func (p *Pipeline) ivEstimation(ctx context.Context, u *models.ExpiryUnit) {
	if !p.cfg.Pipeline.IVEstimation || p.estimator == nil || len(u.Validated) == 0 {
		return
	}
	spot, _ := p.spots.Spot(u.Index)
	ivs, err := p.estimator.EstimateIV(ctx, u.Validated, spot)
	if err != nil {
		u.AddError(models.ErrKindRecoverable, PhaseIV, err.Error())
		return
	}
	for sym, iv := range ivs {
		if q, ok := u.Validated[sym]; ok {
			q.IV = iv
			u.Validated[sym] = q
		}
	}
}

// greeks annotates validated quotes with estimator greeks. Optional.
func (p *Pipeline) greeks(ctx context.Context, u *models.ExpiryUnit) {
	if !p.cfg.Pipeline.Greeks || p.estimator == nil || len(u.Validated) == 0 {
		return
	}
	spot, _ := p.spots.Spot(u.Index)
	gs, err := p.estimator.EstimateGreeks(ctx, u.Validated, spot)
	if err != nil {
		u.AddError(models.ErrKindRecoverable, PhaseGreeks, err.Error())
		return
	}
	for sym, g := range gs {
		if q, ok := u.Validated[sym]; ok {
			g := g
			q.Greeks = &g
			u.Validated[sym] = q
		}
	}
}

// persist hands the validated set to the storage collaborator.
func (p *Pipeline) persist(ctx context.Context, u *models.ExpiryUnit) {
	if len(u.Validated) == 0 || u.Persisted != nil {
		return
	}
	meta := drepo.PersistMeta{
		Index:          u.Index,
		Rule:           u.Rule,
		Date:           u.Date,
		Cycle:          u.Cycle,
		SalvageApplied: u.SalvageApplied,
		Coverage:       u.Coverage,
	}
	res, err := p.persister.Persist(ctx, u.Validated, meta)
	if err != nil {
		u.AddError(models.ErrKindRecoverable, PhasePersist, err.Error())
		u.Persisted = &models.PersistResult{Failed: true}
		p.metrics.RecordError("persist")
		return
	}
	u.Persisted = &res
}
