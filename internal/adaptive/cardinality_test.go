package adaptive

import (
	"testing"
	"time"
)

func newTestGuard(t *testing.T, cfg GuardConfig) (*Guard, *fakeMetrics) {
	t.Helper()
	m := newFakeMetrics()
	g := NewGuard(cfg, m, testLogger(t))
	return g, m
}

func TestGuardTripsAboveBudget(t *testing.T) {
	g, m := newTestGuard(t, GuardConfig{MaxSeries: 100, ReenableFraction: 0.5, MinDisable: time.Minute})

	if got := g.Evaluate(100); got != GuardActionNone || g.Active() {
		t.Fatalf("estimate at budget must not trip, got %s", got)
	}
	if got := g.Evaluate(101); got != GuardActionDisable {
		t.Fatalf("expected disable above budget, got %s", got)
	}
	if !g.Active() || g.Trips() != 1 {
		t.Fatalf("unexpected state %+v", g.State())
	}
	if m.trips != 1 || m.drops != 1 {
		t.Fatalf("trip must drop the series immediately, trips=%d drops=%d", m.trips, m.drops)
	}
}

func TestGuardHysteresis(t *testing.T) {
	g, _ := newTestGuard(t, GuardConfig{MaxSeries: 100, ReenableFraction: 0.5, MinDisable: time.Minute})
	t0 := time.Date(2026, 8, 30, 10, 0, 0, 0, time.UTC)
	now := t0
	g.now = func() time.Time { return now }

	g.Evaluate(150)

	// hold time not elapsed, even though the estimate dropped
	now = t0.Add(30 * time.Second)
	if got := g.Evaluate(10); got != GuardActionNone || !g.Active() {
		t.Fatalf("re-enable before hold time, got %s", got)
	}

	// hold elapsed but estimate still too close to the budget
	now = t0.Add(2 * time.Minute)
	if got := g.Evaluate(60); got != GuardActionNone {
		t.Fatalf("estimate above re-enable threshold, got %s", got)
	}
	if got := g.Evaluate(50); got != GuardActionNone {
		t.Fatalf("threshold is exclusive, got %s", got)
	}
	if got := g.Evaluate(40); got != GuardActionReenable || g.Active() {
		t.Fatalf("expected re-enable, got %s active=%v", got, g.Active())
	}
}

func TestGuardEvaluateNowReadsRecorder(t *testing.T) {
	g, m := newTestGuard(t, GuardConfig{MaxSeries: 100, ReenableFraction: 0.5})
	m.seriesCount = 500
	if got := g.EvaluateNow(); got != GuardActionDisable {
		t.Fatalf("expected disable from live estimate, got %s", got)
	}
}
