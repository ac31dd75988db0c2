package adaptive

import (
	"runtime"
	"testing"
)

func probeAt(heapMB uint64) *MemoryProbe {
	p := NewMemoryProbe(768, 1024)
	p.read = func(ms *runtime.MemStats) { ms.HeapAlloc = heapMB << 20 }
	return p
}

func TestMemoryProbeTiers(t *testing.T) {
	if got := probeAt(100).Tier(); got != 0 {
		t.Fatalf("expected tier 0, got %d", got)
	}
	if got := probeAt(800).Tier(); got != 1 {
		t.Fatalf("expected tier 1, got %d", got)
	}
	if got := probeAt(2048).Tier(); got != 2 {
		t.Fatalf("expected tier 2, got %d", got)
	}
}

func TestMemoryProbeZeroThresholdsDisabled(t *testing.T) {
	p := NewMemoryProbe(0, 0)
	p.read = func(ms *runtime.MemStats) { ms.HeapAlloc = 1 << 40 }
	if got := p.Tier(); got != 0 {
		t.Fatalf("zero thresholds must disable the probe, got %d", got)
	}
}

func TestCycleSignalsConsumeDeltas(t *testing.T) {
	s := NewCycleSignals(nil, nil)
	s.RecordBreach()
	s.RecordBreach()
	if got := s.BreachDelta(); got != 2 {
		t.Fatalf("expected delta 2, got %d", got)
	}
	if got := s.BreachDelta(); got != 0 {
		t.Fatalf("delta must be consumed, got %d", got)
	}
	if s.BreachCount() != 2 {
		t.Fatalf("total counter must survive draining, got %d", s.BreachCount())
	}
	if s.CardinalityTripDelta() != 0 || s.CardinalityActive() || s.MemoryTier() != 0 {
		t.Fatalf("nil collaborators must read as quiet signals")
	}
}
