package pipeline

import (
	"math"
	"sort"
	"time"

	"OptPull/internal/domain/models"
	"OptPull/pkg/config"
	"OptPull/pkg/util"
)

// Issue codes emitted by the preventive validator.
const (
	IssueBadStrike         = "bad_strike"
	IssueStrikeOutOfBand   = "strike_out_of_band"
	IssueForeignExpiry     = "foreign_expiry"
	IssueDummyExpiry       = "dummy_expiry"
	IssueMissingCoreFields = "missing_core_fields"
	IssueInsufficientCover = "insufficient_strike_coverage"
	IssueExcessZeroVolume  = "excess_zero_volume"
)

// Validator drops malformed, foreign-expiry and out-of-band quote rows and
// reports what it dropped and why.
type Validator struct {
	maxDeviationPct  float64
	minCoverage      float64
	relaxedCoverage  float64
	narrowWindow     int
	maxZeroVolRatio  float64
	dummyHorizonDays int

	now func() time.Time
}

// NewValidator builds a validator from the pipeline config section.
func NewValidator(cfg *config.Config) *Validator {
	v := cfg.Pipeline.Validate
	return &Validator{
		maxDeviationPct:  v.MaxStrikeDeviationPct,
		minCoverage:      v.MinStrikeCoverage,
		relaxedCoverage:  v.RelaxedStrikeCoverage,
		narrowWindow:     v.NarrowWindowStrikes,
		maxZeroVolRatio:  v.MaxZeroVolumeRatio,
		dummyHorizonDays: v.DummyExpiryHorizonDays,
		now:              time.Now,
	}
}

// Validate filters the unit's enriched quotes against its resolved date,
// requested strikes and the current spot. It returns the surviving rows and
// the issue report; the unit itself is not mutated.
func (v *Validator) Validate(u *models.ExpiryUnit, spot float64) (map[string]models.QuoteFields, *models.ValidationReport) {
	report := &models.ValidationReport{OK: true}
	kept := make(map[string]models.QuoteFields, len(u.Enriched))
	issues := make(map[string]bool)
	horizon := v.now().AddDate(0, 0, v.dummyHorizonDays)

	for sym, q := range u.Enriched {
		if code := v.rowIssue(q, u.Date, spot, horizon); code != "" {
			issues[code] = true
			report.DroppedSymbols = append(report.DroppedSymbols, sym)
			continue
		}
		kept[sym] = q
	}
	report.PostEnrichedCount = len(kept)

	if cov, ok := strikeCoverage(kept, u.Strikes); ok && cov < v.coverageFloor(len(u.Strikes)) {
		issues[IssueInsufficientCover] = true
		report.OK = false
	}
	if ratio, ok := zeroVolumeRatio(kept); ok && ratio > v.maxZeroVolRatio {
		issues[IssueExcessZeroVolume] = true
		report.OK = false
	}
	if len(kept) == 0 {
		report.OK = false
	}

	for code := range issues {
		report.Issues = append(report.Issues, code)
	}
	sort.Strings(report.Issues)
	sort.Strings(report.DroppedSymbols)
	return kept, report
}

// rowIssue classifies a single quote row; empty string means the row is kept.
func (v *Validator) rowIssue(q models.QuoteFields, date string, spot float64, horizon time.Time) string {
	if q.Kind != "CE" && q.Kind != "PE" {
		return IssueMissingCoreFields
	}
	if q.Expiry == "" {
		return IssueMissingCoreFields
	}
	if q.Strike <= 0 || math.IsNaN(q.Strike) || math.IsInf(q.Strike, 0) {
		return IssueBadStrike
	}
	if exp, ok := util.ParseISODate(q.Expiry); ok && exp.After(horizon) {
		return IssueDummyExpiry
	}
	if q.Expiry != date {
		return IssueForeignExpiry
	}
	if spot > 0 && v.maxDeviationPct > 0 {
		dev := math.Abs(q.Strike-spot) / spot * 100
		if dev > v.maxDeviationPct {
			return IssueStrikeOutOfBand
		}
	}
	return ""
}

// coverageFloor soft-relaxes the minimum coverage for clearly narrow
// requested windows.
func (v *Validator) coverageFloor(requested int) float64 {
	if requested > 0 && requested < v.narrowWindow {
		return v.relaxedCoverage
	}
	return v.minCoverage
}

// strikeCoverage computes |unique observed| / |unique requested|. The second
// return is false when no strikes were requested.
func strikeCoverage(rows map[string]models.QuoteFields, requested []float64) (float64, bool) {
	uniqReq := make(map[float64]bool, len(requested))
	for _, s := range requested {
		uniqReq[s] = true
	}
	if len(uniqReq) == 0 {
		return 0, false
	}
	uniqObs := make(map[float64]bool, len(rows))
	for _, q := range rows {
		if uniqReq[q.Strike] {
			uniqObs[q.Strike] = true
		}
	}
	return float64(len(uniqObs)) / float64(len(uniqReq)), true
}

// zeroVolumeRatio is the fraction of rows with zero traded volume. The second
// return is false when there are no rows.
func zeroVolumeRatio(rows map[string]models.QuoteFields) (float64, bool) {
	if len(rows) == 0 {
		return 0, false
	}
	zero := 0
	for _, q := range rows {
		if q.Volume == 0 {
			zero++
		}
	}
	return float64(zero) / float64(len(rows)), true
}
