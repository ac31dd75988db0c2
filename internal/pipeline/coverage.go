package pipeline

import (
	"OptPull/internal/domain/models"
)

// ComputeCoverage fills the unit's coverage metrics from whatever survived
// validation. It runs even for failed units, emitting nil placeholders so the
// outcome stays structurally complete.
func ComputeCoverage(u *models.ExpiryUnit) {
	u.Coverage = models.CoverageMetrics{}

	if cov, ok := strikeCoverage(u.Validated, u.Strikes); ok && len(u.Validated) > 0 {
		c := cov
		u.Coverage.StrikeCoverage = &c
	}

	if len(u.Validated) == 0 {
		return
	}
	withField := 0
	for _, q := range u.Validated {
		if q.Volume > 0 || q.OI > 0 || q.AvgPrice > 0 {
			withField++
		}
	}
	f := float64(withField) / float64(len(u.Validated))
	u.Coverage.FieldCoverage = &f
}
