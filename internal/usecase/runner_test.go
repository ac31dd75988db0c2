package usecase

import (
	"testing"

	"OptPull/internal/adaptive"
	"OptPull/internal/domain/models"
	"OptPull/internal/service/strikes"
	"OptPull/pkg/config"
	applogger "OptPull/pkg/logger"
)

type countingMetrics struct {
	emitted []string
}

func (m *countingMetrics) RecordUnit(index, result string)              {}
func (m *countingMetrics) RecordError(kind string)                      {}
func (m *countingMetrics) RecordLatency(op string, seconds float64)     {}
func (m *countingMetrics) RecordControllerAction(reason, action string) {}
func (m *countingMetrics) SetDetailMode(index string, mode int)         {}
func (m *countingMetrics) RecordCardinalityTrip()                       {}
func (m *countingMetrics) SetScaleFactor(index string, factor float64)  {}
func (m *countingMetrics) SetSeverityActive(level string, count int)    {}
func (m *countingMetrics) EmitOptionQuote(index, symbol string, q models.QuoteFields) {
	m.emitted = append(m.emitted, symbol)
}
func (m *countingMetrics) DropOptionSeries()      {}
func (m *countingMetrics) OptionSeriesCount() int { return 0 }

type staticMode struct{ mode int }

func (s staticMode) Mode() int { return s.mode }

type staticSpots struct {
	price float64
	ok    bool
}

func (s staticSpots) Spot(string) (float64, bool) { return s.price, s.ok }

func emitUnit() *models.ExpiryUnit {
	return &models.ExpiryUnit{
		Index: "NIFTY",
		Validated: map[string]models.QuoteFields{
			"atm":  {Strike: 24000, Kind: "CE"},
			"near": {Strike: 24200, Kind: "PE"},
			"far":  {Strike: 26000, Kind: "CE"},
		},
	}
}

func emitRunner(t *testing.T, m *countingMetrics, mode int, guard *adaptive.Guard) *UnitRunner {
	t.Helper()
	log, err := applogger.New(&applogger.Config{Level: "error", Format: "json", Output: "stderr"})
	if err != nil {
		t.Fatalf("logger: %v", err)
	}
	reg := strikes.NewRegistry([]config.IndexConfig{
		{Name: "NIFTY", Enabled: true, StrikeStep: 50, ITMDepth: 10, OTMDepth: 10},
	})
	return NewUnitRunner(nil, nil, m, guard, staticMode{mode}, staticSpots{price: 24000, ok: true}, reg, log)
}

func TestEmitOptionMetricsFullMode(t *testing.T) {
	m := &countingMetrics{}
	r := emitRunner(t, m, 0, nil)
	r.emitOptionMetrics(emitUnit())
	if len(m.emitted) != 3 {
		t.Fatalf("mode 0 must emit every row, got %v", m.emitted)
	}
}

func TestEmitOptionMetricsBandMode(t *testing.T) {
	m := &countingMetrics{}
	r := emitRunner(t, m, 1, nil)
	r.emitOptionMetrics(emitUnit())
	// band is 5 steps of 50 around ATM 24000: 24200 is in, 26000 is out
	if len(m.emitted) != 2 {
		t.Fatalf("mode 1 must emit only the ATM band, got %v", m.emitted)
	}
	for _, sym := range m.emitted {
		if sym == "far" {
			t.Fatalf("out-of-band strike emitted")
		}
	}
}

func TestEmitOptionMetricsAggregateMode(t *testing.T) {
	m := &countingMetrics{}
	r := emitRunner(t, m, 2, nil)
	r.emitOptionMetrics(emitUnit())
	if len(m.emitted) != 0 {
		t.Fatalf("mode 2 must emit nothing, got %v", m.emitted)
	}
}

func TestEmitOptionMetricsGuardSuppresses(t *testing.T) {
	m := &countingMetrics{}
	log, err := applogger.New(&applogger.Config{Level: "error", Format: "json", Output: "stderr"})
	if err != nil {
		t.Fatalf("logger: %v", err)
	}
	guard := adaptive.NewGuard(adaptive.GuardConfig{MaxSeries: 1, ReenableFraction: 0.5}, m, log)
	guard.Evaluate(10) // trip

	r := emitRunner(t, m, 0, guard)
	r.emitOptionMetrics(emitUnit())
	if len(m.emitted) != 0 {
		t.Fatalf("tripped guard must suppress all emission, got %v", m.emitted)
	}
}

func TestEmitOptionMetricsBandWithoutSpot(t *testing.T) {
	m := &countingMetrics{}
	r := emitRunner(t, m, 1, nil)
	r.spots = staticSpots{ok: false}
	r.emitOptionMetrics(emitUnit())
	if len(m.emitted) != 0 {
		t.Fatalf("band mode without a spot must emit nothing, got %v", m.emitted)
	}
}
