package scheduler

import (
	"testing"

	"OptPull/internal/domain/models"
	"OptPull/pkg/config"
)

func fptr(v float64) *float64 { return &v }

func outcome(success, salvaged bool, pcr float64, cov *float64) models.UnitOutcome {
	return models.UnitOutcome{
		Index:          "NIFTY",
		Rule:           "weekly",
		Success:        success,
		SalvageApplied: salvaged,
		PCR:            pcr,
		StrikeCoverage: cov,
	}
}

func alertValue(t *testing.T, alerts []models.Alert, typ string) float64 {
	t.Helper()
	for _, a := range alerts {
		if a.Type == typ {
			return a.Value
		}
	}
	t.Fatalf("alert %s not found in %v", typ, alerts)
	return 0
}

func hasAlert(alerts []models.Alert, typ string) bool {
	for _, a := range alerts {
		if a.Type == typ {
			return true
		}
	}
	return false
}

func TestBuildAlertsSalvagedFraction(t *testing.T) {
	s := &Scheduler{}
	alerts := s.buildAlerts([]models.UnitOutcome{
		outcome(true, true, 1.0, nil),
		outcome(true, false, 1.0, nil),
		outcome(false, true, 0, nil), // failed units do not count
	})
	if got := alertValue(t, alerts, AlertInterpolationHigh); got != 0.5 {
		t.Fatalf("expected salvaged fraction 0.5, got %v", got)
	}
}

func TestBuildAlertsPCRDriftNeedsBaseline(t *testing.T) {
	s := &Scheduler{}
	first := s.buildAlerts([]models.UnitOutcome{outcome(true, false, 0.9, nil)})
	if hasAlert(first, AlertRiskDeltaDrift) {
		t.Fatalf("first cycle has no baseline to drift from: %v", first)
	}
	second := s.buildAlerts([]models.UnitOutcome{outcome(true, false, 1.0, nil)})
	got := alertValue(t, second, AlertRiskDeltaDrift)
	if got < 0.0999 || got > 0.1001 {
		t.Fatalf("expected drift ~0.1, got %v", got)
	}
}

func TestBuildAlertsCoverageAveragesAllUnits(t *testing.T) {
	s := &Scheduler{}
	alerts := s.buildAlerts([]models.UnitOutcome{
		outcome(true, false, 1.0, fptr(0.75)),
		outcome(false, false, 0, fptr(0.25)), // failed units still report coverage
		outcome(false, false, 0, nil),
	})
	if got := alertValue(t, alerts, AlertBucketUtilLow); got != 0.5 {
		t.Fatalf("expected average coverage 0.5, got %v", got)
	}
}

func TestBuildAlertsEmptyCycle(t *testing.T) {
	s := &Scheduler{}
	if alerts := s.buildAlerts(nil); len(alerts) != 0 {
		t.Fatalf("empty cycle must produce no alerts, got %v", alerts)
	}
}

func TestTasksExpandEnabledIndices(t *testing.T) {
	cfg := &config.Config{
		Indices: []config.IndexConfig{
			{Name: "NIFTY", Enabled: true, Rules: []string{"weekly", "monthly"}},
			{Name: "BANKNIFTY", Enabled: true, Rules: []string{"weekly"}},
			{Name: "FINNIFTY", Enabled: false, Rules: []string{"weekly"}},
		},
	}
	s := &Scheduler{cfg: cfg}
	got := s.tasks()
	if len(got) != 3 {
		t.Fatalf("expected 3 tasks, got %d", len(got))
	}
	if got[0] != (task{index: "NIFTY", rule: "weekly"}) || got[2] != (task{index: "BANKNIFTY", rule: "weekly"}) {
		t.Fatalf("unexpected task expansion %v", got)
	}
}
