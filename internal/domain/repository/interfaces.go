package repository

import (
	"context"
	"errors"

	"OptPull/internal/domain/models"
)

// Typed "not found" conditions returned by providers. Both map to the
// recoverable error kind inside the pipeline.
var (
	ErrNoInstruments = errors.New("provider: no instruments for expiry")
	ErrNoQuotes      = errors.New("provider: no quotes for instruments")
)

// Provider is the broker/API adapter consumed by the pipeline phases.
type Provider interface {
	ResolveExpiry(ctx context.Context, index, rule string) (string, error)
	OptionInstruments(ctx context.Context, index, date string, strikes []float64) ([]models.OptionInstrument, error)
	EnrichWithQuotes(ctx context.Context, instruments []models.OptionInstrument) (map[string]models.QuoteFields, error)
}

// ExpirySelector is a pluggable expiry-selection service consulted by the
// resolve phase before falling back to provider-native resolution.
type ExpirySelector interface {
	Select(ctx context.Context, index, rule string) (string, error)
}

// PersistMeta accompanies the validated quote set into storage.
type PersistMeta struct {
	Index          string
	Rule           string
	Date           string
	Cycle          int64
	SalvageApplied bool
	Coverage       models.CoverageMetrics
}

// Persister is the storage collaborator invoked by the persist phase.
type Persister interface {
	Persist(ctx context.Context, quotes map[string]models.QuoteFields, meta PersistMeta) (models.PersistResult, error)
	Health(ctx context.Context) error
	Close() error
}

// EventSink publishes structured per-unit outcome events.
type EventSink interface {
	PublishOutcome(ctx context.Context, o models.UnitOutcome) error
	Close() error
}

// SpotSource exposes the last observed spot price per index.
type SpotSource interface {
	Spot(index string) (float64, bool)
}

// RuleSource supplies the raw severity-rule override payload. The classifier
// re-parses only when the payload changes.
type RuleSource interface {
	RawRules(ctx context.Context) ([]byte, error)
}

// Metrics is the observability contract for the pipeline and controllers.
type Metrics interface {
	RecordUnit(index, result string)
	RecordError(kind string)
	RecordLatency(op string, seconds float64)

	RecordControllerAction(reason, action string)
	SetDetailMode(index string, mode int)
	RecordCardinalityTrip()
	SetScaleFactor(index string, factor float64)
	SetSeverityActive(level string, count int)

	// Per-option series, gated by the cardinality guard and detail mode.
	EmitOptionQuote(index, symbol string, q models.QuoteFields)
	DropOptionSeries()
	OptionSeriesCount() int
}
