package adaptive

import "runtime"

// MemoryProbe maps process heap usage to pressure tiers: 0 normal, 1 elevated,
// 2 critical. Thresholds are in megabytes; zero thresholds disable a tier.
type MemoryProbe struct {
	tier1 uint64 // bytes
	tier2 uint64
	read  func(*runtime.MemStats)
}

// NewMemoryProbe builds a probe with MB thresholds.
func NewMemoryProbe(tier1MB, tier2MB uint64) *MemoryProbe {
	return &MemoryProbe{
		tier1: tier1MB << 20,
		tier2: tier2MB << 20,
		read:  runtime.ReadMemStats,
	}
}

// Tier samples the runtime and returns the current pressure tier.
func (p *MemoryProbe) Tier() int {
	var ms runtime.MemStats
	p.read(&ms)
	switch {
	case p.tier2 > 0 && ms.HeapAlloc >= p.tier2:
		return 2
	case p.tier1 > 0 && ms.HeapAlloc >= p.tier1:
		return 1
	default:
		return 0
	}
}
