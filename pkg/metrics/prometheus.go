package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Recorder implements repository.Metrics using Prometheus.
type Recorder struct {
	signals   *prometheus.CounterVec
	scans     *prometheus.CounterVec
	errors    *prometheus.CounterVec
	lastClose *prometheus.GaugeVec
	latency   *prometheus.HistogramVec
}

// New registers the recorder on the default registry.
func New() *Recorder {
	return NewWithRegisterer(prometheus.DefaultRegisterer)
}

// NewWithRegisterer registers the recorder on reg.
func NewWithRegisterer(reg prometheus.Registerer) *Recorder {
	f := promauto.With(reg)
	return &Recorder{
		signals: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "patternpull_signals_total",
				Help: "Signals emitted by the detector",
			},
			[]string{"symbol", "direction"},
		),
		scans: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "patternpull_scans_total",
				Help: "Scans by outcome",
			},
			[]string{"result"},
		),
		errors: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "patternpull_errors_total",
				Help: "Errors by kind",
			},
			[]string{"type"},
		),
		lastClose: f.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "patternpull_last_close",
				Help: "Last close seen per symbol",
			},
			[]string{"symbol"},
		),
		latency: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "patternpull_operation_duration_seconds",
				Help:    "Duration of operations in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"operation"},
		),
	}
}

func (r *Recorder) RecordSignal(symbol, direction string) {
	r.signals.WithLabelValues(symbol, direction).Inc()
}

// RecordScan counts a finished scan; result is ok, cached or error.
func (r *Recorder) RecordScan(result string) {
	r.scans.WithLabelValues(result).Inc()
}

func (r *Recorder) RecordError(kind string) {
	r.errors.WithLabelValues(kind).Inc()
}

func (r *Recorder) RecordLastClose(symbol string, price float64) {
	r.lastClose.WithLabelValues(symbol).Set(price)
}

// RecordLatency records operation latency in seconds.
func (r *Recorder) RecordLatency(op string, seconds float64) {
	r.latency.WithLabelValues(op).Observe(seconds)
}
