package adaptive

import (
	"testing"
	"time"

	"OptPull/internal/service/strikes"
	"OptPull/pkg/config"
)

func testRegistry() *strikes.Registry {
	return strikes.NewRegistry([]config.IndexConfig{
		{Name: "NIFTY", Enabled: true, StrikeStep: 50, ITMDepth: 10, OTMDepth: 10},
	})
}

func newTestScale(t *testing.T, cfg ScaleConfig, reg *strikes.Registry) (*ScaleController, *fakeMetrics) {
	t.Helper()
	m := newFakeMetrics()
	return NewScaleController(cfg, reg, m, testLogger(t)), m
}

func TestScaleReducesAfterBreachStreak(t *testing.T) {
	cfg := ScaleConfig{Mode: "passthrough", BreachFraction: 0.85, Reduction: 0.8, BreachStreak: 2, RestoreStreak: 3, MinDepth: 2}
	c, m := newTestScale(t, cfg, testRegistry())
	interval := 30 * time.Second

	c.Evaluate(29*time.Second, interval)
	if c.Factor() != 1.0 {
		t.Fatalf("single breach must not reduce, got %v", c.Factor())
	}
	c.Evaluate(29*time.Second, interval)
	if c.Factor() != 0.8 {
		t.Fatalf("expected factor 0.8 after breach streak, got %v", c.Factor())
	}
	if m.scaleFactor["NIFTY"] != 0.8 {
		t.Fatalf("factor gauge not published")
	}
	if m.lastAction() != "sla_latency:reduce_depth" {
		t.Fatalf("unexpected action %q", m.lastAction())
	}
}

func TestScaleHonorsFloor(t *testing.T) {
	// MinDepth 2 over baseline depth 10 floors the factor at 0.2.
	cfg := ScaleConfig{Mode: "passthrough", BreachFraction: 0.85, Reduction: 0.8, BreachStreak: 1, RestoreStreak: 10, MinDepth: 2}
	c, _ := newTestScale(t, cfg, testRegistry())

	for i := 0; i < 30; i++ {
		c.Evaluate(29*time.Second, 30*time.Second)
	}
	if c.Factor() != 0.2 {
		t.Fatalf("expected factor floored at 0.2, got %v", c.Factor())
	}
}

func TestScaleRestoresAndSnapsToOne(t *testing.T) {
	cfg := ScaleConfig{Mode: "passthrough", BreachFraction: 0.85, Reduction: 0.8, BreachStreak: 2, RestoreStreak: 2, MinDepth: 2}
	c, m := newTestScale(t, cfg, testRegistry())
	interval := 30 * time.Second

	c.Evaluate(29*time.Second, interval)
	c.Evaluate(29*time.Second, interval)
	if c.Factor() != 0.8 {
		t.Fatalf("setup reduction failed, got %v", c.Factor())
	}

	c.Evaluate(5*time.Second, interval)
	c.Evaluate(5*time.Second, interval)
	if c.Factor() != 1.0 {
		t.Fatalf("expected restore to snap to 1.0, got %v", c.Factor())
	}
	if m.lastAction() != ReasonRecovered+":restore_depth" {
		t.Fatalf("unexpected action %q", m.lastAction())
	}
}

func TestScaleHealthyAtFullDepthIsNoop(t *testing.T) {
	cfg := ScaleConfig{Mode: "passthrough", BreachFraction: 0.85, Reduction: 0.8, BreachStreak: 2, RestoreStreak: 1, MinDepth: 2}
	c, m := newTestScale(t, cfg, testRegistry())

	before := len(m.actions)
	c.Evaluate(5*time.Second, 30*time.Second)
	if c.Factor() != 1.0 || len(m.actions) != before {
		t.Fatalf("healthy cycle at factor 1.0 must do nothing")
	}
}

func TestScaleMutatingRewritesDepthsFromBaseline(t *testing.T) {
	reg := testRegistry()
	cfg := ScaleConfig{Mode: "mutating", BreachFraction: 0.85, Reduction: 0.8, BreachStreak: 1, RestoreStreak: 10, MinDepth: 2}
	c, _ := newTestScale(t, cfg, reg)

	c.Evaluate(29*time.Second, 30*time.Second)
	if c.Factor() != 0.8 {
		t.Fatalf("expected factor 0.8, got %v", c.Factor())
	}
	d, ok := reg.Depths("NIFTY")
	if !ok || d.ITM != 8 || d.OTM != 8 {
		t.Fatalf("expected depths rewritten to 8/8, got %+v", d)
	}
	base, _ := reg.Baseline("NIFTY")
	if base.ITM != 10 || base.OTM != 10 {
		t.Fatalf("baseline must stay frozen, got %+v", base)
	}
}

func TestScaleStateCarriesBaselineDepths(t *testing.T) {
	reg := testRegistry()
	cfg := ScaleConfig{Mode: "mutating", BreachFraction: 0.85, Reduction: 0.8, BreachStreak: 1, RestoreStreak: 10, MinDepth: 2}
	c, _ := newTestScale(t, cfg, reg)

	if got := c.State().BaselineDepth["NIFTY"]; got != 10 {
		t.Fatalf("expected baseline depth 10, got %d", got)
	}

	// rewriting current depths must not leak into the reported baseline
	c.Evaluate(29*time.Second, 30*time.Second)
	if got := c.State().BaselineDepth["NIFTY"]; got != 10 {
		t.Fatalf("baseline depth must stay frozen after scaling, got %d", got)
	}
}

func TestScaleDepthNeverBelowMinimum(t *testing.T) {
	if got := scaleDepth(10, 0.05, 2); got != 2 {
		t.Fatalf("expected min depth 2, got %d", got)
	}
	if got := scaleDepth(1, 0.1, 0); got != 1 {
		t.Fatalf("scaled depth must stay positive, got %d", got)
	}
}
