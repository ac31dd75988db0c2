package models

import "time"

// OptionInstrument represents a single listed option contract.
type OptionInstrument struct {
	Symbol string
	Index  string
	Expiry string // ISO date (2006-01-02)
	Strike float64
	Kind   string // "CE" | "PE"
	Token  int64
}

// Greeks holds per-option sensitivities produced by the estimator service.
type Greeks struct {
	Delta float64 `json:"delta"`
	Gamma float64 `json:"gamma"`
	Theta float64 `json:"theta"`
	Vega  float64 `json:"vega"`
}

// QuoteFields is one enriched quote row keyed by symbol in an ExpiryUnit.
type QuoteFields struct {
	Index     string
	Expiry    string
	Strike    float64
	Kind      string
	LastPrice float64
	AvgPrice  float64
	Volume    int64
	OI        int64
	IV        float64 // filled by the iv_estimation phase when enabled
	Greeks    *Greeks // filled by the greeks phase when enabled
}

// ErrorKind classifies a phase failure.
type ErrorKind string

const (
	ErrKindRecoverable ErrorKind = "recoverable" // retry next cycle
	ErrKindAbort       ErrorKind = "abort"       // structural precondition unmet this cycle
	ErrKindFatal       ErrorKind = "fatal"       // reserved; must never cross the unit boundary
)

// PhaseError is a tagged, ordered error recorded on an ExpiryUnit.
type PhaseError struct {
	Kind    ErrorKind
	Phase   string
	Message string
}

func (e PhaseError) String() string {
	return string(e.Kind) + ":" + e.Phase + ":" + e.Message
}

// ClampMeta records what the prefilter clamp did to the instrument set.
type ClampMeta struct {
	OriginalCount int  `json:"original_count"`
	DroppedCount  int  `json:"dropped_count"`
	MaxAllowed    int  `json:"max_allowed"`
	Strict        bool `json:"strict_mode"`
}

// ValidationReport is emitted by the preventive validator.
type ValidationReport struct {
	Issues            []string `json:"issues"`
	DroppedSymbols    []string `json:"dropped_symbols"`
	PostEnrichedCount int      `json:"post_enriched_count"`
	OK                bool     `json:"ok"`
}

// Has reports whether the given issue code was raised.
func (r *ValidationReport) Has(issue string) bool {
	for _, is := range r.Issues {
		if is == issue {
			return true
		}
	}
	return false
}

// CoverageMetrics holds strike/field coverage ratios. Nil means not computable
// (e.g. no requested strikes, or no rows survived).
type CoverageMetrics struct {
	StrikeCoverage *float64 `json:"strike_coverage"`
	FieldCoverage  *float64 `json:"field_coverage"`
}

// PersistResult is what the storage collaborator reports back.
type PersistResult struct {
	OptionCount int     `json:"option_count"`
	PCR         float64 `json:"pcr"`
	Failed      bool    `json:"failed"`
}

// ExpiryUnit is one (index, expiry-rule) work item. It is created per cycle,
// mutated in place by each phase, and discarded after its outcome is handed
// to persistence. The state itself is never persisted.
type ExpiryUnit struct {
	Index   string
	Rule    string
	Cycle   int64
	Date    string // resolved expiry, ISO date
	Strikes []float64

	Instruments []OptionInstrument
	Enriched    map[string]QuoteFields // raw quotes, pre-validation
	Validated   map[string]QuoteFields

	Coverage       CoverageMetrics
	Errors         []PhaseError
	Clamp          *ClampMeta
	Validation     *ValidationReport
	Persisted      *PersistResult
	SalvageApplied bool
}

// AddError appends a tagged phase error, preserving order.
func (u *ExpiryUnit) AddError(kind ErrorKind, phase, msg string) {
	u.Errors = append(u.Errors, PhaseError{Kind: kind, Phase: phase, Message: msg})
}

// HasAbort reports whether any recorded error is of kind abort.
func (u *ExpiryUnit) HasAbort() bool {
	for _, e := range u.Errors {
		if e.Kind == ErrKindAbort {
			return true
		}
	}
	return false
}

// Diagnostics renders the ordered error tags for the unit outcome.
func (u *ExpiryUnit) Diagnostics() []string {
	if len(u.Errors) == 0 {
		return nil
	}
	out := make([]string, 0, len(u.Errors))
	for _, e := range u.Errors {
		out = append(out, e.String())
	}
	return out
}

// UnitOutcome is the per-unit result handed to the scheduler and published
// as a structured event.
type UnitOutcome struct {
	Index          string    `json:"index"`
	Rule           string    `json:"rule"`
	Date           string    `json:"date"`
	Cycle          int64     `json:"cycle"`
	Success        bool      `json:"success"`
	OptionCount    int       `json:"option_count"`
	PCR            float64   `json:"pcr"`
	SalvageApplied bool      `json:"salvage_applied"`
	TimedOut       bool      `json:"timed_out"`
	StrikeCoverage *float64  `json:"strike_coverage,omitempty"`
	FieldCoverage  *float64  `json:"field_coverage,omitempty"`
	Diagnostics    []string  `json:"diagnostics,omitempty"`
	Elapsed        float64   `json:"elapsed_seconds"`
	Timestamp      time.Time `json:"timestamp"`
}
