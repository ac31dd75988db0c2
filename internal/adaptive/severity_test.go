package adaptive

import (
	"context"
	"testing"

	"OptPull/internal/domain/models"
)

func newTestClassifier(t *testing.T, cfg SeverityConfig) (*Classifier, *fakeMetrics) {
	t.Helper()
	m := newFakeMetrics()
	return NewClassifier(cfg, nil, m, testLogger(t)), m
}

func TestClassifyThresholds(t *testing.T) {
	c, _ := newTestClassifier(t, SeverityConfig{})
	cases := []struct {
		typ   string
		value float64
		want  models.SeverityLevel
	}{
		{"interpolation_high", 0.40, models.SeverityInfo},
		{"interpolation_high", 0.55, models.SeverityWarn},
		{"interpolation_high", 0.70, models.SeverityCritical},
		{"risk_delta_drift", -0.07, models.SeverityWarn}, // abs rule
		{"risk_delta_drift", 0.12, models.SeverityCritical},
		{"risk_delta_drift", 0.02, models.SeverityInfo},
		{"bucket_util_low", 0.80, models.SeverityInfo}, // inverted rule
		{"bucket_util_low", 0.70, models.SeverityWarn},
		{"bucket_util_low", 0.50, models.SeverityCritical},
		{"bucket_util_low", 0.60, models.SeverityCritical}, // boundary is critical
		{"unknown_alert", 99, models.SeverityInfo},
	}
	for _, tc := range cases {
		got := c.Classify(models.Alert{Type: tc.typ, Value: tc.value})
		if got != tc.want {
			t.Fatalf("%s=%v: expected %s, got %s", tc.typ, tc.value, tc.want, got)
		}
	}
}

func TestObserveRaisesActiveLevel(t *testing.T) {
	c, m := newTestClassifier(t, SeverityConfig{})
	c.Observe(1, []models.Alert{{Type: "interpolation_high", Value: 0.75}})
	st := c.State("interpolation_high")
	if st == nil || st.ActiveLevel != models.SeverityCritical {
		t.Fatalf("expected critical active level, got %+v", st)
	}

	// A lower instantaneous classification does not drop the active level.
	c.Observe(2, []models.Alert{{Type: "interpolation_high", Value: 0.55}})
	if st.ActiveLevel != models.SeverityCritical {
		t.Fatalf("warn observation lowered active level to %s", st.ActiveLevel)
	}

	c.Snapshot(2)
	if m.active["critical"] != 1 {
		t.Fatalf("expected 1 active critical, got %d", m.active["critical"])
	}
}

func TestMinStreakGatesEscalation(t *testing.T) {
	c, _ := newTestClassifier(t, SeverityConfig{MinStreak: 2})
	alert := []models.Alert{{Type: "bucket_util_low", Value: 0.50}}

	c.Observe(1, alert)
	if st := c.State("bucket_util_low"); st.ActiveLevel != models.SeverityInfo {
		t.Fatalf("single observation must stay info, got %s", st.ActiveLevel)
	}
	c.Observe(2, alert)
	if st := c.State("bucket_util_low"); st.ActiveLevel != models.SeverityCritical {
		t.Fatalf("expected critical after streak reached, got %s", st.ActiveLevel)
	}
}

func TestDecayLowersOneStepPerWindow(t *testing.T) {
	c, _ := newTestClassifier(t, SeverityConfig{DecayCycles: 2})
	c.Observe(1, []models.Alert{{Type: "interpolation_high", Value: 0.80}})
	c.Snapshot(1)
	st := c.State("interpolation_high")

	c.Decay(2) // window not elapsed
	if st.ActiveLevel != models.SeverityCritical {
		t.Fatalf("premature decay to %s", st.ActiveLevel)
	}
	c.Decay(3)
	if st.ActiveLevel != models.SeverityWarn {
		t.Fatalf("expected warn after one window, got %s", st.ActiveLevel)
	}
	c.Decay(5)
	if st.ActiveLevel != models.SeverityInfo {
		t.Fatalf("expected info after second window, got %s", st.ActiveLevel)
	}
	if st.ResolvedCount != 1 {
		t.Fatalf("expected resolve recorded, got %d", st.ResolvedCount)
	}
}

func TestRetriggerResetsDecayClock(t *testing.T) {
	c, _ := newTestClassifier(t, SeverityConfig{DecayCycles: 3})
	alert := []models.Alert{{Type: "interpolation_high", Value: 0.80}}
	c.Observe(1, alert)
	c.Observe(3, alert) // refresh at equal rank
	c.Decay(4)          // 4-3 < 3
	if st := c.State("interpolation_high"); st.ActiveLevel != models.SeverityCritical {
		t.Fatalf("re-trigger must reset the decay clock, got %s", st.ActiveLevel)
	}
}

func TestSmoothedRatios(t *testing.T) {
	c, _ := newTestClassifier(t, SeverityConfig{TrendWindow: 10, CriticalRatio: 0.4, WarnRatio: 0.5})
	if c.CriticalSmoothed() {
		t.Fatalf("empty trend must not be smoothed critical")
	}
	c.Observe(1, []models.Alert{{Type: "bucket_util_low", Value: 0.50}})
	for cycle := int64(1); cycle <= 3; cycle++ {
		c.Snapshot(cycle)
	}
	if got := c.CriticalRatio(); got != 1.0 {
		t.Fatalf("expected critical ratio 1.0, got %v", got)
	}
	if !c.CriticalSmoothed() {
		t.Fatalf("expected smoothed critical at full ratio")
	}
	if got := c.CriticalRatio("risk_delta_drift"); got != 0 {
		t.Fatalf("type filter leaked: %v", got)
	}
}

type staticRuleSource struct {
	payload []byte
	err     error
}

func (s *staticRuleSource) RawRules(context.Context) ([]byte, error) {
	return s.payload, s.err
}

func TestRefreshRulesMergesOverDefaults(t *testing.T) {
	src := &staticRuleSource{payload: []byte(`{"interpolation_high":{"metric":"fraction","warn":0.9,"critical":0.95}}`)}
	m := newFakeMetrics()
	c := NewClassifier(SeverityConfig{}, src, m, testLogger(t))

	if err := c.RefreshRules(context.Background()); err != nil {
		t.Fatalf("refresh: %v", err)
	}
	if got := c.Classify(models.Alert{Type: "interpolation_high", Value: 0.55}); got != models.SeverityInfo {
		t.Fatalf("override not applied, got %s", got)
	}
	// untouched defaults survive the merge
	if got := c.Classify(models.Alert{Type: "bucket_util_low", Value: 0.50}); got != models.SeverityCritical {
		t.Fatalf("default rule lost in merge, got %s", got)
	}
}

func TestRefreshRulesSkipsUnchangedPayload(t *testing.T) {
	src := &staticRuleSource{payload: []byte(`{"interpolation_high":{"metric":"fraction","warn":0.9,"critical":0.95}}`)}
	c := NewClassifier(SeverityConfig{}, src, newFakeMetrics(), testLogger(t))
	if err := c.RefreshRules(context.Background()); err != nil {
		t.Fatalf("refresh: %v", err)
	}

	// Same payload hash: the table must not be rebuilt.
	c.rules["interpolation_high"] = SeverityRule{Metric: "fraction", Warn: 0.1, Critical: 0.2}
	if err := c.RefreshRules(context.Background()); err != nil {
		t.Fatalf("refresh: %v", err)
	}
	if c.rules["interpolation_high"].Warn != 0.1 {
		t.Fatalf("unchanged payload was re-applied")
	}
}

func TestRefreshRulesEmptyPayloadNoop(t *testing.T) {
	c := NewClassifier(SeverityConfig{}, &staticRuleSource{}, newFakeMetrics(), testLogger(t))
	if err := c.RefreshRules(context.Background()); err != nil {
		t.Fatalf("empty payload must be a no-op, got %v", err)
	}
}
