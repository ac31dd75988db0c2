package strikes

import (
	"testing"
	"time"

	"OptPull/pkg/config"
)

type stubSpots struct {
	price float64
	ok    bool
}

func (s *stubSpots) Spot(string) (float64, bool) { return s.price, s.ok }

type stubScale struct{ factor float64 }

func (s *stubScale) Factor() float64 { return s.factor }

func testReg() *Registry {
	return NewRegistry([]config.IndexConfig{
		{Name: "NIFTY", Enabled: true, StrikeStep: 50, ITMDepth: 2, OTMDepth: 2},
	})
}

func TestUniverseLadderAroundATM(t *testing.T) {
	spots := &stubSpots{price: 24010, ok: true}
	svc := NewService(testReg(), spots, nil, "passthrough", 1, 16, time.Minute)

	ladder, err := svc.Universe("NIFTY", "2026-09-03")
	if err != nil {
		t.Fatalf("universe: %v", err)
	}
	want := []float64{23900, 23950, 24000, 24050, 24100}
	if len(ladder) != len(want) {
		t.Fatalf("expected %d strikes, got %v", len(want), ladder)
	}
	for i, s := range want {
		if ladder[i] != s {
			t.Fatalf("strike[%d]: expected %v, got %v", i, s, ladder[i])
		}
	}
}

func TestUniverseAppliesScaleFactor(t *testing.T) {
	spots := &stubSpots{price: 24000, ok: true}
	svc := NewService(testReg(), spots, &stubScale{factor: 0.5}, "passthrough", 1, 16, time.Minute)

	ladder, err := svc.Universe("NIFTY", "2026-09-03")
	if err != nil {
		t.Fatalf("universe: %v", err)
	}
	// depth 2 scaled by 0.5 is 1 each side
	if len(ladder) != 3 {
		t.Fatalf("expected 3 strikes at factor 0.5, got %v", ladder)
	}
}

func TestUniverseIgnoresScaleInMutatingMode(t *testing.T) {
	spots := &stubSpots{price: 24000, ok: true}
	svc := NewService(testReg(), spots, &stubScale{factor: 0.5}, "mutating", 1, 16, time.Minute)

	ladder, err := svc.Universe("NIFTY", "2026-09-03")
	if err != nil {
		t.Fatalf("universe: %v", err)
	}
	if len(ladder) != 5 {
		t.Fatalf("mutating mode must read registry depths only, got %v", ladder)
	}
}

func TestUniverseFallsBackToCachedLadder(t *testing.T) {
	spots := &stubSpots{price: 24000, ok: true}
	svc := NewService(testReg(), spots, nil, "passthrough", 1, 16, time.Minute)

	first, err := svc.Universe("NIFTY", "2026-09-03")
	if err != nil {
		t.Fatalf("universe: %v", err)
	}

	spots.ok = false
	second, err := svc.Universe("NIFTY", "2026-09-03")
	if err != nil {
		t.Fatalf("expected cached ladder without spot, got %v", err)
	}
	if len(second) != len(first) {
		t.Fatalf("cached ladder differs: %v vs %v", second, first)
	}

	// a pair never generated has nothing to fall back to
	if _, err := svc.Universe("NIFTY", "2026-09-10"); err == nil {
		t.Fatalf("expected error for uncached date without spot")
	}
}

func TestUniverseUnknownIndex(t *testing.T) {
	svc := NewService(testReg(), &stubSpots{price: 24000, ok: true}, nil, "passthrough", 1, 16, time.Minute)
	if _, err := svc.Universe("DOWJONES", "2026-09-03"); err == nil {
		t.Fatalf("expected error for unregistered index")
	}
}

func TestLRUCacheEvictsOldest(t *testing.T) {
	c := newLRUCache(2, 0)
	c.put("a", []float64{1})
	c.put("b", []float64{2})
	if _, ok := c.get("a"); !ok {
		t.Fatalf("expected a cached")
	}
	c.put("c", []float64{3}) // evicts b, the least recently accessed
	if _, ok := c.get("b"); ok {
		t.Fatalf("expected b evicted")
	}
	if c.len() != 2 {
		t.Fatalf("expected 2 entries, got %d", c.len())
	}
}

func TestLRUCacheTTL(t *testing.T) {
	c := newLRUCache(4, time.Nanosecond)
	c.put("a", []float64{1})
	time.Sleep(time.Millisecond)
	if _, ok := c.get("a"); ok {
		t.Fatalf("expected entry expired")
	}
}
