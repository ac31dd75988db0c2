package pipeline

import (
	"OptPull/internal/domain/models"
)

// SalvageDecision is the outcome of evaluating the salvage heuristic for a
// unit. It is always computed for observability; it materializes only when
// salvage is enabled by configuration.
type SalvageDecision struct {
	Eligible     bool
	Applied      bool
	ForeignDates int
}

// salvageIssues are the only issues a salvageable unit may carry, and
// foreign_expiry must be among them.
func salvageableIssues(issues []string) bool {
	foreign := false
	for _, is := range issues {
		switch is {
		case IssueForeignExpiry:
			foreign = true
		case IssueInsufficientCover:
		default:
			return false
		}
	}
	return foreign
}

// EvaluateSalvage decides whether data dropped solely by foreign-expiry
// classification can be rehydrated. The pre-validation snapshot is rehydrated
// with its expiry rewritten to the resolved date when the distinct set of
// foreign dates is within maxForeignDates; more distinct dates than that
// suggests the provider returned a mixed chain and the unit stays empty.
func EvaluateSalvage(u *models.ExpiryUnit, maxForeignDates int, enabled bool) SalvageDecision {
	d := SalvageDecision{}
	if len(u.Validated) > 0 || u.Validation == nil || len(u.Enriched) == 0 {
		return d
	}
	if !salvageableIssues(u.Validation.Issues) {
		return d
	}

	distinct := make(map[string]bool)
	for _, q := range u.Enriched {
		if q.Expiry != "" && q.Expiry != u.Date {
			distinct[q.Expiry] = true
		}
	}
	d.ForeignDates = len(distinct)
	if d.ForeignDates == 0 || d.ForeignDates > maxForeignDates {
		return d
	}
	d.Eligible = true
	if !enabled {
		return d
	}

	rehydrated := make(map[string]models.QuoteFields, len(u.Enriched))
	for sym, q := range u.Enriched {
		q.Expiry = u.Date
		rehydrated[sym] = q
	}
	u.Validated = rehydrated
	u.SalvageApplied = true
	d.Applied = true
	return d
}
