package pipeline

import (
	"testing"

	"OptPull/internal/domain/models"
)

func TestComputeCoverage(t *testing.T) {
	u := &models.ExpiryUnit{
		Strikes: []float64{24000, 24050, 24100, 24150},
		Validated: map[string]models.QuoteFields{
			"a": {Strike: 24000, Volume: 10},
			"b": {Strike: 24050, Volume: 0, OI: 0, AvgPrice: 0},
		},
	}
	ComputeCoverage(u)

	if u.Coverage.StrikeCoverage == nil || *u.Coverage.StrikeCoverage != 0.5 {
		t.Fatalf("expected strike coverage 0.5, got %v", u.Coverage.StrikeCoverage)
	}
	if u.Coverage.FieldCoverage == nil || *u.Coverage.FieldCoverage != 0.5 {
		t.Fatalf("expected field coverage 0.5, got %v", u.Coverage.FieldCoverage)
	}
}

func TestComputeCoverageEmptyUnit(t *testing.T) {
	u := &models.ExpiryUnit{Strikes: []float64{24000}}
	ComputeCoverage(u)

	if u.Coverage.StrikeCoverage != nil || u.Coverage.FieldCoverage != nil {
		t.Fatalf("expected nil placeholders for empty unit, got %+v", u.Coverage)
	}
}

func TestComputeCoverageOverwritesPrevious(t *testing.T) {
	stale := 0.9
	u := &models.ExpiryUnit{Coverage: models.CoverageMetrics{StrikeCoverage: &stale}}
	ComputeCoverage(u)

	if u.Coverage.StrikeCoverage != nil {
		t.Fatalf("expected stale coverage cleared")
	}
}
