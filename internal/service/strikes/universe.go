package strikes

import (
	"fmt"
	"math"
	"time"

	drepo "OptPull/internal/domain/repository"
)

// ScaleSource exposes the current strike-depth scale factor. In passthrough
// mode the universe consults it directly; in mutating mode the controller
// rewrites the registry instead and the factor here is ignored.
type ScaleSource interface {
	Factor() float64
}

// Service generates the requested strike ladder per (index, expiry) around
// the current spot.
type Service struct {
	reg      *Registry
	spots    drepo.SpotSource
	scale    ScaleSource
	mode     string // "passthrough" | "mutating"
	minDepth int
	cache    *lruCache
}

// NewService builds the strike universe service.
func NewService(reg *Registry, spots drepo.SpotSource, scale ScaleSource, mode string, minDepth, cacheSize int, cacheTTL time.Duration) *Service {
	return &Service{
		reg:      reg,
		spots:    spots,
		scale:    scale,
		mode:     mode,
		minDepth: minDepth,
		cache:    newLRUCache(cacheSize, cacheTTL),
	}
}

// Universe returns the strike ladder for an index and expiry date. When no
// spot is available the last generated ladder for the same (index, date) is
// reused from cache.
func (s *Service) Universe(index, date string) ([]float64, error) {
	d, ok := s.reg.Depths(index)
	if !ok {
		return nil, fmt.Errorf("unknown index %q", index)
	}

	factor := 1.0
	if s.mode == "passthrough" && s.scale != nil {
		factor = s.scale.Factor()
	}
	itm := scaledDepth(d.ITM, factor, s.minDepth)
	otm := scaledDepth(d.OTM, factor, s.minDepth)

	lastKey := fmt.Sprintf("last|%s|%s", index, date)
	spot, haveSpot := s.spots.Spot(index)
	if !haveSpot || spot <= 0 {
		if ladder, ok := s.cache.get(lastKey); ok {
			return ladder, nil
		}
		return nil, fmt.Errorf("no spot for index %q", index)
	}

	atm := math.Round(spot/d.Step) * d.Step
	key := fmt.Sprintf("%s|%s|%.2f|%d|%d", index, date, atm, itm, otm)
	if ladder, ok := s.cache.get(key); ok {
		return ladder, nil
	}

	ladder := make([]float64, 0, itm+otm+1)
	for i := -itm; i <= otm; i++ {
		strike := atm + float64(i)*d.Step
		if strike > 0 {
			ladder = append(ladder, strike)
		}
	}
	s.cache.put(key, ladder)
	s.cache.put(lastKey, ladder)
	return ladder, nil
}

// scaledDepth applies the scale factor to a configured depth, honoring the
// minimum depth floor.
func scaledDepth(depth int, factor float64, minDepth int) int {
	scaled := int(math.Round(float64(depth) * factor))
	if scaled < minDepth {
		scaled = minDepth
	}
	if scaled < 1 {
		scaled = 1
	}
	return scaled
}
