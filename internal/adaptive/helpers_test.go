package adaptive

import (
	"testing"

	"OptPull/internal/domain/models"
	applogger "OptPull/pkg/logger"
)

// fakeMetrics records controller interactions for assertions.
type fakeMetrics struct {
	actions     []string // "reason:action"
	detailModes map[string]int
	scaleFactor map[string]float64
	active      map[string]int
	trips       int
	drops       int
	seriesCount int
}

func newFakeMetrics() *fakeMetrics {
	return &fakeMetrics{
		detailModes: make(map[string]int),
		scaleFactor: make(map[string]float64),
		active:      make(map[string]int),
	}
}

func (m *fakeMetrics) RecordUnit(index, result string)       {}
func (m *fakeMetrics) RecordError(kind string)               {}
func (m *fakeMetrics) RecordLatency(op string, secs float64) {}

func (m *fakeMetrics) RecordControllerAction(reason, action string) {
	m.actions = append(m.actions, reason+":"+action)
}

func (m *fakeMetrics) SetDetailMode(index string, mode int)                       { m.detailModes[index] = mode }
func (m *fakeMetrics) RecordCardinalityTrip()                                     { m.trips++ }
func (m *fakeMetrics) SetScaleFactor(index string, factor float64)                { m.scaleFactor[index] = factor }
func (m *fakeMetrics) SetSeverityActive(level string, count int)                  { m.active[level] = count }
func (m *fakeMetrics) EmitOptionQuote(index, symbol string, q models.QuoteFields) {}
func (m *fakeMetrics) DropOptionSeries()                                          { m.drops++ }
func (m *fakeMetrics) OptionSeriesCount() int                                     { return m.seriesCount }

func (m *fakeMetrics) lastAction() string {
	if len(m.actions) == 0 {
		return ""
	}
	return m.actions[len(m.actions)-1]
}

// fakeSignals is a scripted SignalSource; delta fields are consumed on read.
type fakeSignals struct {
	breach int64
	trips  int64
	active bool
	tier   int
}

func (s *fakeSignals) BreachDelta() int64 {
	d := s.breach
	s.breach = 0
	return d
}

func (s *fakeSignals) CardinalityTripDelta() int64 {
	d := s.trips
	s.trips = 0
	return d
}

func (s *fakeSignals) CardinalityActive() bool { return s.active }
func (s *fakeSignals) MemoryTier() int         { return s.tier }

func testLogger(t *testing.T) *applogger.Logger {
	t.Helper()
	log, err := applogger.New(&applogger.Config{Level: "error", Format: "json", Output: "stderr"})
	if err != nil {
		t.Fatalf("logger: %v", err)
	}
	return log
}
