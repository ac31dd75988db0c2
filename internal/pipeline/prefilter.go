package pipeline

import (
	"OptPull/internal/domain/models"
)

// prefilterFloor is the lowest permitted clamp ceiling. A configured ceiling
// below this is raised to it.
const prefilterFloor = 50

// prefilterDefaultMax applies when no ceiling is configured.
const prefilterDefaultMax = 2500

// Clamp bounds the instrument set deterministically. If the set exceeds the
// ceiling it is head-truncated in provider order (stable), and the clamp
// metadata records what happened; otherwise both slice and metadata pass
// through unchanged apart from the counters.
func Clamp(instruments []models.OptionInstrument, maxAllowed int, strict bool) ([]models.OptionInstrument, models.ClampMeta) {
	if maxAllowed <= 0 {
		maxAllowed = prefilterDefaultMax
	}
	if maxAllowed < prefilterFloor {
		maxAllowed = prefilterFloor
	}

	meta := models.ClampMeta{
		OriginalCount: len(instruments),
		MaxAllowed:    maxAllowed,
		Strict:        strict,
	}
	if len(instruments) <= maxAllowed {
		return instruments, meta
	}

	meta.DroppedCount = len(instruments) - maxAllowed
	return instruments[:maxAllowed], meta
}
