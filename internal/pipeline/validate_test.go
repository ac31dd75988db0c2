package pipeline

import (
	"testing"
	"time"

	"OptPull/internal/domain/models"
)

func testValidator() *Validator {
	return &Validator{
		maxDeviationPct:  35,
		minCoverage:      0.30,
		relaxedCoverage:  0.15,
		narrowWindow:     10,
		maxZeroVolRatio:  0.98,
		dummyHorizonDays: 365,
		now: func() time.Time {
			return time.Date(2026, 8, 30, 10, 0, 0, 0, time.UTC)
		},
	}
}

func quote(expiry string, strike float64, kind string, vol int64) models.QuoteFields {
	return models.QuoteFields{
		Index:     "NIFTY",
		Expiry:    expiry,
		Strike:    strike,
		Kind:      kind,
		LastPrice: 12.5,
		Volume:    vol,
	}
}

func TestValidateDropsMalformedRows(t *testing.T) {
	v := testValidator()
	u := &models.ExpiryUnit{
		Index:   "NIFTY",
		Date:    "2026-09-03",
		Strikes: []float64{24000, 24050},
		Enriched: map[string]models.QuoteFields{
			"ok_ce":       quote("2026-09-03", 24000, "CE", 10),
			"ok_pe":       quote("2026-09-03", 24050, "PE", 10),
			"bad_kind":    quote("2026-09-03", 24000, "XX", 10),
			"no_expiry":   quote("", 24000, "CE", 10),
			"bad_strike":  quote("2026-09-03", -1, "PE", 10),
			"dummy":       quote("2031-12-25", 24000, "CE", 10),
			"foreign":     quote("2026-09-10", 24000, "CE", 10),
			"out_of_band": quote("2026-09-03", 90000, "CE", 10),
		},
	}

	kept, report := v.Validate(u, 24000)
	if len(kept) != 2 {
		t.Fatalf("expected 2 kept rows, got %d", len(kept))
	}
	if _, ok := kept["ok_ce"]; !ok {
		t.Fatalf("expected ok_ce to survive")
	}
	for _, issue := range []string{
		IssueMissingCoreFields, IssueBadStrike, IssueDummyExpiry,
		IssueForeignExpiry, IssueStrikeOutOfBand,
	} {
		if !report.Has(issue) {
			t.Fatalf("expected issue %s in %v", issue, report.Issues)
		}
	}
	if len(report.DroppedSymbols) != 6 {
		t.Fatalf("expected 6 dropped symbols, got %v", report.DroppedSymbols)
	}
	if report.PostEnrichedCount != 2 {
		t.Fatalf("unexpected post-enriched count %d", report.PostEnrichedCount)
	}
}

func TestValidateDummyExpiryBeatsForeign(t *testing.T) {
	// A far-future expiry is a placeholder row, not a real foreign chain.
	v := testValidator()
	u := &models.ExpiryUnit{
		Date:    "2026-09-03",
		Strikes: []float64{24000},
		Enriched: map[string]models.QuoteFields{
			"dummy": quote("2099-01-01", 24000, "CE", 5),
		},
	}
	_, report := v.Validate(u, 24000)
	if !report.Has(IssueDummyExpiry) || report.Has(IssueForeignExpiry) {
		t.Fatalf("expected dummy_expiry only, got %v", report.Issues)
	}
}

func TestValidateInsufficientCoverage(t *testing.T) {
	v := testValidator()
	strikes := make([]float64, 20)
	for i := range strikes {
		strikes[i] = 24000 + float64(i)*50
	}
	u := &models.ExpiryUnit{
		Date:    "2026-09-03",
		Strikes: strikes,
		Enriched: map[string]models.QuoteFields{
			"only": quote("2026-09-03", 24000, "CE", 10),
		},
	}
	_, report := v.Validate(u, 24000)
	if report.OK {
		t.Fatalf("expected report not OK at 1/20 coverage")
	}
	if !report.Has(IssueInsufficientCover) {
		t.Fatalf("expected insufficient coverage issue, got %v", report.Issues)
	}
}

func TestValidateNarrowWindowRelaxesCoverage(t *testing.T) {
	v := testValidator()
	// 5 requested strikes is below the narrow window of 10, so the relaxed
	// floor of 0.15 applies and 1/5 observed passes.
	u := &models.ExpiryUnit{
		Date:    "2026-09-03",
		Strikes: []float64{24000, 24050, 24100, 24150, 24200},
		Enriched: map[string]models.QuoteFields{
			"only": quote("2026-09-03", 24000, "CE", 10),
		},
	}
	_, report := v.Validate(u, 24000)
	if !report.OK {
		t.Fatalf("expected relaxed coverage to pass, issues %v", report.Issues)
	}
}

func TestValidateExcessZeroVolume(t *testing.T) {
	v := testValidator()
	u := &models.ExpiryUnit{
		Date:    "2026-09-03",
		Strikes: []float64{24000, 24050},
		Enriched: map[string]models.QuoteFields{
			"a": quote("2026-09-03", 24000, "CE", 0),
			"b": quote("2026-09-03", 24050, "PE", 0),
		},
	}
	_, report := v.Validate(u, 24000)
	if report.OK || !report.Has(IssueExcessZeroVolume) {
		t.Fatalf("expected excess zero volume failure, got %+v", report)
	}
}

func TestValidateEmptyKeptFails(t *testing.T) {
	v := testValidator()
	u := &models.ExpiryUnit{
		Date:    "2026-09-03",
		Strikes: []float64{24000},
		Enriched: map[string]models.QuoteFields{
			"foreign": quote("2026-09-10", 24000, "CE", 10),
		},
	}
	kept, report := v.Validate(u, 24000)
	if len(kept) != 0 || report.OK {
		t.Fatalf("expected empty kept set to fail validation")
	}
}

func TestValidateZeroSpotSkipsBandCheck(t *testing.T) {
	v := testValidator()
	u := &models.ExpiryUnit{
		Date:    "2026-09-03",
		Strikes: []float64{90000},
		Enriched: map[string]models.QuoteFields{
			"far": quote("2026-09-03", 90000, "CE", 10),
		},
	}
	_, report := v.Validate(u, 0)
	if report.Has(IssueStrikeOutOfBand) {
		t.Fatalf("band check should be skipped without a spot")
	}
}

func TestStrikeCoverageUniqueStrikes(t *testing.T) {
	rows := map[string]models.QuoteFields{
		"ce": quote("2026-09-03", 24000, "CE", 1),
		"pe": quote("2026-09-03", 24000, "PE", 1),
	}
	cov, ok := strikeCoverage(rows, []float64{24000, 24050, 24050})
	if !ok {
		t.Fatalf("expected coverage computable")
	}
	// CE and PE at the same strike count once; duplicate requests count once.
	if cov != 0.5 {
		t.Fatalf("expected coverage 0.5, got %v", cov)
	}
}

func TestStrikeCoverageNoRequested(t *testing.T) {
	if _, ok := strikeCoverage(nil, nil); ok {
		t.Fatalf("expected coverage not computable without requested strikes")
	}
}
