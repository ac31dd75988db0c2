package pipeline

import (
	"testing"

	"OptPull/internal/domain/models"
)

func salvageUnit(issues []string, expiries ...string) *models.ExpiryUnit {
	u := &models.ExpiryUnit{
		Index:      "NIFTY",
		Date:       "2026-09-03",
		Validation: &models.ValidationReport{Issues: issues},
		Enriched:   map[string]models.QuoteFields{},
	}
	for i, exp := range expiries {
		sym := "SYM" + string(rune('A'+i))
		u.Enriched[sym] = models.QuoteFields{Expiry: exp, Strike: 24000, Kind: "CE"}
	}
	return u
}

func TestSalvageAppliesRehydration(t *testing.T) {
	u := salvageUnit([]string{IssueForeignExpiry}, "2026-09-10", "2026-09-10")
	d := EvaluateSalvage(u, 3, true)
	if !d.Eligible || !d.Applied || d.ForeignDates != 1 {
		t.Fatalf("unexpected decision %+v", d)
	}
	if !u.SalvageApplied || len(u.Validated) != 2 {
		t.Fatalf("expected rehydrated unit, got applied=%v validated=%d", u.SalvageApplied, len(u.Validated))
	}
	for sym, q := range u.Validated {
		if q.Expiry != u.Date {
			t.Fatalf("row %s kept foreign expiry %s", sym, q.Expiry)
		}
	}
}

func TestSalvageDryRunWhenDisabled(t *testing.T) {
	u := salvageUnit([]string{IssueForeignExpiry, IssueInsufficientCover}, "2026-09-10")
	d := EvaluateSalvage(u, 3, false)
	if !d.Eligible || d.Applied {
		t.Fatalf("expected eligible dry-run decision, got %+v", d)
	}
	if u.SalvageApplied || len(u.Validated) != 0 {
		t.Fatalf("disabled salvage must not mutate the unit")
	}
}

func TestSalvageRejectsMixedChain(t *testing.T) {
	u := salvageUnit([]string{IssueForeignExpiry}, "2026-09-10", "2026-09-17", "2026-09-24", "2026-10-01")
	d := EvaluateSalvage(u, 3, true)
	if d.Eligible || d.Applied {
		t.Fatalf("expected 4 distinct foreign dates to be rejected, got %+v", d)
	}
	if d.ForeignDates != 4 {
		t.Fatalf("expected 4 foreign dates, got %d", d.ForeignDates)
	}
}

func TestSalvageRejectsUnrelatedIssues(t *testing.T) {
	u := salvageUnit([]string{IssueForeignExpiry, IssueBadStrike}, "2026-09-10")
	if d := EvaluateSalvage(u, 3, true); d.Eligible {
		t.Fatalf("bad_strike must block salvage, got %+v", d)
	}
}

func TestSalvageRequiresForeignIssue(t *testing.T) {
	u := salvageUnit([]string{IssueInsufficientCover}, "2026-09-10")
	if d := EvaluateSalvage(u, 3, true); d.Eligible {
		t.Fatalf("salvage without foreign_expiry must not be eligible")
	}
}

func TestSalvageSkipsWhenValidatedNonEmpty(t *testing.T) {
	u := salvageUnit([]string{IssueForeignExpiry}, "2026-09-10")
	u.Validated = map[string]models.QuoteFields{"kept": {Expiry: u.Date}}
	if d := EvaluateSalvage(u, 3, true); d.Eligible || d.Applied {
		t.Fatalf("salvage must only run on empty validated sets")
	}
}

func TestSalvageSkipsWithoutValidationReport(t *testing.T) {
	u := salvageUnit(nil, "2026-09-10")
	u.Validation = nil
	if d := EvaluateSalvage(u, 3, true); d.Eligible {
		t.Fatalf("salvage requires a validation report")
	}
}
