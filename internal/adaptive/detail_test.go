package adaptive

import "testing"

func newTestDetail(t *testing.T, cfg DetailConfig) (*DetailController, *fakeMetrics) {
	t.Helper()
	m := newFakeMetrics()
	return NewDetailController(cfg, []string{"NIFTY"}, m, testLogger(t)), m
}

func TestDetailStartsAtRichestMode(t *testing.T) {
	c, m := newTestDetail(t, DetailConfig{MaxDetailMode: 0, MinDetailMode: 2})
	if c.Mode() != 0 {
		t.Fatalf("expected mode 0 at start, got %d", c.Mode())
	}
	if m.detailModes["NIFTY"] != 0 {
		t.Fatalf("initial mode not published")
	}
}

func TestDetailLadderDemoteAndRecover(t *testing.T) {
	cfg := DetailConfig{
		MaxDetailMode:   0,
		MinDetailMode:   2,
		BreachStreak:    2,
		PromoteCooldown: 2,
		RecoveryCycles:  3,
		MinHealthCycles: 3,
	}
	c, m := newTestDetail(t, cfg)
	sig := &fakeSignals{}

	// Two breaches demote 0 -> 1; the demotion closes the segment, so the
	// next two breaches open a new one and demote 1 -> 2.
	for cycle := int64(1); cycle <= 4; cycle++ {
		sig.breach = 1
		c.Evaluate(cycle, sig, false, false)
	}
	if c.Mode() != 2 {
		t.Fatalf("expected mode 2 after 4 breaches, got %d", c.Mode())
	}
	if m.lastAction() != ReasonSLABreach+":demote" {
		t.Fatalf("unexpected action %q", m.lastAction())
	}

	// Healthy cycles climb back one step per consumed recovery window.
	for cycle := int64(5); cycle <= 7; cycle++ {
		c.Evaluate(cycle, sig, false, false)
	}
	if c.Mode() != 1 {
		t.Fatalf("expected mode 1 after first recovery window, got %d", c.Mode())
	}
	for cycle := int64(8); cycle <= 10; cycle++ {
		c.Evaluate(cycle, sig, false, false)
	}
	if c.Mode() != 0 {
		t.Fatalf("expected full recovery to mode 0, got %d", c.Mode())
	}
	if m.lastAction() != ReasonRecovered+":promote" {
		t.Fatalf("unexpected action %q", m.lastAction())
	}
}

func TestDetailOneDemotePerBreachSegment(t *testing.T) {
	cfg := DetailConfig{MaxDetailMode: 0, MinDetailMode: 2, BreachStreak: 3, MinHealthCycles: 5}
	c, _ := newTestDetail(t, cfg)
	sig := &fakeSignals{}

	// Five consecutive breaches are one segment: exactly one demotion.
	for cycle := int64(1); cycle <= 5; cycle++ {
		sig.breach = 1
		c.Evaluate(cycle, sig, false, false)
	}
	if c.Mode() != 1 {
		t.Fatalf("expected a single demotion within one segment, got mode %d", c.Mode())
	}
}

func TestDetailMemoryCriticalWins(t *testing.T) {
	cfg := DetailConfig{MaxDetailMode: 0, MinDetailMode: 2, BreachStreak: 1}
	c, m := newTestDetail(t, cfg)
	sig := &fakeSignals{breach: 1, tier: 2}

	c.Evaluate(1, sig, true, true)
	if c.Mode() != 1 {
		t.Fatalf("expected one demotion, got mode %d", c.Mode())
	}
	if m.lastAction() != ReasonMemoryCritical+":demote" {
		t.Fatalf("memory pressure must outrank other reasons, got %q", m.lastAction())
	}
}

func TestDetailCardinalityGuardDemotes(t *testing.T) {
	c, m := newTestDetail(t, DetailConfig{MaxDetailMode: 0, MinDetailMode: 2})
	c.Evaluate(1, &fakeSignals{trips: 1}, false, false)
	if c.Mode() != 1 || m.lastAction() != ReasonCardinalityGuard+":demote" {
		t.Fatalf("expected cardinality demotion, mode=%d action=%q", c.Mode(), m.lastAction())
	}
}

func TestDetailSeverityCriticalDemotes(t *testing.T) {
	c, m := newTestDetail(t, DetailConfig{MaxDetailMode: 0, MinDetailMode: 2})
	c.Evaluate(1, &fakeSignals{}, true, false)
	if c.Mode() != 1 || m.lastAction() != ReasonSeverityCritical+":demote" {
		t.Fatalf("expected severity demotion, mode=%d action=%q", c.Mode(), m.lastAction())
	}
}

func TestDetailFollowupPressureNeedsElevatedMemory(t *testing.T) {
	c, _ := newTestDetail(t, DetailConfig{MaxDetailMode: 0, MinDetailMode: 2})
	c.Evaluate(1, &fakeSignals{}, false, true) // warn alone is not enough
	if c.Mode() != 0 {
		t.Fatalf("warn without memory pressure must not demote, got %d", c.Mode())
	}
	c.Evaluate(2, &fakeSignals{tier: 1}, false, true)
	if c.Mode() != 1 {
		t.Fatalf("expected followup-pressure demotion, got %d", c.Mode())
	}
}

func TestDetailClampsAtFloor(t *testing.T) {
	c, _ := newTestDetail(t, DetailConfig{MaxDetailMode: 0, MinDetailMode: 1})
	for cycle := int64(1); cycle <= 5; cycle++ {
		c.Evaluate(cycle, &fakeSignals{tier: 2}, false, false)
	}
	if c.Mode() != 1 {
		t.Fatalf("mode must clamp at the floor, got %d", c.Mode())
	}
}

func TestDetailPromotionBlockedWhileWarnSmoothed(t *testing.T) {
	cfg := DetailConfig{MaxDetailMode: 0, MinDetailMode: 2, BreachStreak: 1, PromoteCooldown: 1, RecoveryCycles: 1, MinHealthCycles: 1}
	c, _ := newTestDetail(t, cfg)
	sig := &fakeSignals{breach: 1}
	c.Evaluate(1, sig, false, false)
	if c.Mode() != 1 {
		t.Fatalf("setup demotion failed, mode %d", c.Mode())
	}
	for cycle := int64(2); cycle <= 6; cycle++ {
		c.Evaluate(cycle, sig, false, true)
	}
	if c.Mode() != 1 {
		t.Fatalf("warn-smoothed cycles must block promotion, got %d", c.Mode())
	}
	c.Evaluate(7, sig, false, false)
	if c.Mode() != 0 {
		t.Fatalf("expected promotion once warn cleared, got %d", c.Mode())
	}
}
