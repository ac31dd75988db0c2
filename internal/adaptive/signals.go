package adaptive

// SignalSource supplies the typed inputs the detail controller consumes each
// cycle, instead of the controller poking at metric internals directly.
// Delta getters consume: calling them advances the internal watermark.
type SignalSource interface {
	// BreachDelta reports how many SLA breaches happened since the last call.
	BreachDelta() int64
	// CardinalityTripDelta reports new guard trips since the last call.
	CardinalityTripDelta() int64
	// CardinalityActive reports whether per-option emission is disabled.
	CardinalityActive() bool
	// MemoryTier reports process memory pressure: 0 normal, 1 elevated, 2 critical.
	MemoryTier() int
}

// CycleSignals is the scheduler-owned SignalSource. The scheduler records
// breaches as cycles complete; the controller drains the deltas once per
// evaluation.
type CycleSignals struct {
	breachCounter int64
	lastBreach    int64

	guard     *Guard
	lastTrips int64

	mem *MemoryProbe
}

// NewCycleSignals wires the signal source to the cardinality guard and memory
// probe. Either may be nil when the concern is disabled.
func NewCycleSignals(guard *Guard, mem *MemoryProbe) *CycleSignals {
	return &CycleSignals{guard: guard, mem: mem}
}

// RecordBreach notes one SLA breach.
func (s *CycleSignals) RecordBreach() {
	s.breachCounter++
}

// BreachCount is the total breach counter, for status reporting.
func (s *CycleSignals) BreachCount() int64 {
	return s.breachCounter
}

func (s *CycleSignals) BreachDelta() int64 {
	d := s.breachCounter - s.lastBreach
	s.lastBreach = s.breachCounter
	return d
}

func (s *CycleSignals) CardinalityTripDelta() int64 {
	if s.guard == nil {
		return 0
	}
	trips := s.guard.Trips()
	d := trips - s.lastTrips
	s.lastTrips = trips
	return d
}

func (s *CycleSignals) CardinalityActive() bool {
	return s.guard != nil && s.guard.Active()
}

func (s *CycleSignals) MemoryTier() int {
	if s.mem == nil {
		return 0
	}
	return s.mem.Tier()
}
