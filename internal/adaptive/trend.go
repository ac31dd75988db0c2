package adaptive

import "OptPull/internal/domain/models"

// TrendRing buffers the last N severity snapshots so controller decisions can
// smooth over a window instead of reacting to single cycles.
type TrendRing struct {
	buf    []models.TrendSnapshot
	next   int
	size   int
	window int
}

// NewTrendRing builds a ring holding up to window snapshots.
func NewTrendRing(window int) *TrendRing {
	if window <= 0 {
		window = 1
	}
	return &TrendRing{buf: make([]models.TrendSnapshot, window), window: window}
}

// Push appends a snapshot, evicting the oldest once full.
func (r *TrendRing) Push(s models.TrendSnapshot) {
	r.buf[r.next] = s
	r.next = (r.next + 1) % r.window
	if r.size < r.window {
		r.size++
	}
}

// Ratio is the fraction of buffered snapshots in which the level is present.
// With types given, only those alert types are considered; otherwise any type
// at that level counts. An empty ring yields 0.
func (r *TrendRing) Ratio(level models.SeverityLevel, types ...string) float64 {
	if r.size == 0 {
		return 0
	}
	hits := 0
	for i := 0; i < r.size; i++ {
		s := r.at(i)
		if len(types) == 0 {
			if s.Counts[level] > 0 {
				hits++
			}
			continue
		}
		for _, typ := range types {
			if s.PerType[typ] == level {
				hits++
				break
			}
		}
	}
	return float64(hits) / float64(r.size)
}

// Snapshots returns the buffered snapshots, oldest first.
func (r *TrendRing) Snapshots() []models.TrendSnapshot {
	out := make([]models.TrendSnapshot, 0, r.size)
	for i := 0; i < r.size; i++ {
		out = append(out, r.at(i))
	}
	return out
}

// Len reports how many snapshots are buffered.
func (r *TrendRing) Len() int {
	return r.size
}

// at indexes the ring oldest-first.
func (r *TrendRing) at(i int) models.TrendSnapshot {
	if r.size < r.window {
		return r.buf[i]
	}
	return r.buf[(r.next+i)%r.window]
}
