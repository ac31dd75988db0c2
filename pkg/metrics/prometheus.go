package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"OptPull/internal/domain/models"
)

// Recorder implements domain.repository.Metrics using Prometheus.
type Recorder struct {
	unitsTotal       *prometheus.CounterVec
	errorsTotal      *prometheus.CounterVec
	latency          *prometheus.HistogramVec
	controllerAction *prometheus.CounterVec
	detailMode       *prometheus.GaugeVec
	cardinalityTrips prometheus.Counter
	scaleFactor      *prometheus.GaugeVec
	severityActive   *prometheus.GaugeVec

	optionVolume *prometheus.GaugeVec
	optionOI     *prometheus.GaugeVec
	optionLTP    *prometheus.GaugeVec
	optionIV     *prometheus.GaugeVec

	mu     sync.Mutex
	series map[string]int // per emitted (index,symbol): sample count
	total  int
}

// seriesPerOption is the number of gauge samples one option contributes.
const seriesPerOption = 4

// New creates a new Prometheus metrics recorder.
func New() *Recorder {
	return &Recorder{
		unitsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "optpull_units_total",
				Help: "Processed expiry units by result",
			},
			[]string{"index", "result"},
		),
		errorsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "optpull_errors_total",
				Help: "Total number of errors encountered",
			},
			[]string{"type"},
		),
		latency: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "optpull_operation_duration_seconds",
				Help:    "Duration of operations in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"operation"},
		),
		controllerAction: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "optpull_controller_actions_total",
				Help: "Adaptive controller transitions by reason and action",
			},
			[]string{"reason", "action"},
		),
		detailMode: promauto.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "optpull_detail_mode",
				Help: "Current detail mode per index (0=full, 1=band, 2=agg)",
			},
			[]string{"index"},
		),
		cardinalityTrips: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "optpull_cardinality_trips_total",
				Help: "Times the cardinality guard disabled per-option metrics",
			},
		),
		scaleFactor: promauto.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "optpull_strike_scale_factor",
				Help: "Current strike depth scale factor per index",
			},
			[]string{"index"},
		),
		severityActive: promauto.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "optpull_severity_active",
				Help: "Alert types currently active at each severity level",
			},
			[]string{"level"},
		),
		optionVolume: promauto.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "optpull_option_volume",
				Help: "Traded volume per option contract",
			},
			[]string{"index", "symbol"},
		),
		optionOI: promauto.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "optpull_option_oi",
				Help: "Open interest per option contract",
			},
			[]string{"index", "symbol"},
		),
		optionLTP: promauto.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "optpull_option_ltp",
				Help: "Last traded price per option contract",
			},
			[]string{"index", "symbol"},
		),
		optionIV: promauto.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "optpull_option_iv",
				Help: "Implied volatility per option contract",
			},
			[]string{"index", "symbol"},
		),
		series: make(map[string]int),
	}
}

// RecordUnit records one processed expiry unit.
func (r *Recorder) RecordUnit(index, result string) {
	r.unitsTotal.WithLabelValues(index, result).Inc()
}

// RecordError records an error occurrence.
func (r *Recorder) RecordError(kind string) {
	r.errorsTotal.WithLabelValues(kind).Inc()
}

// RecordLatency records operation latency in seconds.
func (r *Recorder) RecordLatency(op string, seconds float64) {
	r.latency.WithLabelValues(op).Observe(seconds)
}

// RecordControllerAction counts a controller transition.
func (r *Recorder) RecordControllerAction(reason, action string) {
	r.controllerAction.WithLabelValues(reason, action).Inc()
}

// SetDetailMode sets the per-index detail mode gauge.
func (r *Recorder) SetDetailMode(index string, mode int) {
	r.detailMode.WithLabelValues(index).Set(float64(mode))
}

// RecordCardinalityTrip counts one guard trip.
func (r *Recorder) RecordCardinalityTrip() {
	r.cardinalityTrips.Inc()
}

// SetScaleFactor sets the per-index strike scale factor gauge.
func (r *Recorder) SetScaleFactor(index string, factor float64) {
	r.scaleFactor.WithLabelValues(index).Set(factor)
}

// SetSeverityActive sets how many alert types sit at the given level.
func (r *Recorder) SetSeverityActive(level string, count int) {
	r.severityActive.WithLabelValues(level).Set(float64(count))
}

// EmitOptionQuote publishes the per-option gauges for one contract.
func (r *Recorder) EmitOptionQuote(index, symbol string, q models.QuoteFields) {
	r.optionVolume.WithLabelValues(index, symbol).Set(float64(q.Volume))
	r.optionOI.WithLabelValues(index, symbol).Set(float64(q.OI))
	r.optionLTP.WithLabelValues(index, symbol).Set(q.LastPrice)
	r.optionIV.WithLabelValues(index, symbol).Set(q.IV)

	key := index + "/" + symbol
	r.mu.Lock()
	if _, ok := r.series[key]; !ok {
		r.series[key] = seriesPerOption
		r.total += seriesPerOption
	}
	r.mu.Unlock()
}

// DropOptionSeries unregisters all per-option gauges, typically after the
// cardinality guard trips.
func (r *Recorder) DropOptionSeries() {
	r.optionVolume.Reset()
	r.optionOI.Reset()
	r.optionLTP.Reset()
	r.optionIV.Reset()

	r.mu.Lock()
	r.series = make(map[string]int)
	r.total = 0
	r.mu.Unlock()
}

// OptionSeriesCount estimates the number of per-option samples currently
// exported, used by the cardinality guard.
func (r *Recorder) OptionSeriesCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.total
}
