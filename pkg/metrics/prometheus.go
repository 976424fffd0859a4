package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Recorder implements domain.repository.Metrics using Prometheus.
type Recorder struct {
	eventsWritten *prometheus.CounterVec
	errorsTotal   *prometheus.CounterVec
	scansTotal    prometheus.Counter
	scanSymbols   prometheus.Gauge
	scanEvents    prometheus.Gauge
	scanDuration  prometheus.Histogram
	reportsTotal  *prometheus.CounterVec
	reportSeconds *prometheus.HistogramVec
	latency       *prometheus.HistogramVec
}

// New creates a new Prometheus metrics recorder.
func New() *Recorder {
	return &Recorder{
		eventsWritten: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "marketlens",
				Name:      "events_written_total",
				Help:      "Newly persisted signal events by type",
			},
			[]string{"event_type"},
		),
		errorsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "marketlens",
				Name:      "errors_total",
				Help:      "Total number of errors encountered",
			},
			[]string{"type"},
		),
		scansTotal: promauto.NewCounter(
			prometheus.CounterOpts{
				Namespace: "marketlens",
				Name:      "scans_total",
				Help:      "Completed scan runs",
			},
		),
		scanSymbols: promauto.NewGauge(
			prometheus.GaugeOpts{
				Namespace: "marketlens",
				Name:      "scan_symbols",
				Help:      "Symbols covered by the last scan run",
			},
		),
		scanEvents: promauto.NewGauge(
			prometheus.GaugeOpts{
				Namespace: "marketlens",
				Name:      "scan_events_written",
				Help:      "Events written by the last scan run",
			},
		),
		scanDuration: promauto.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: "marketlens",
				Name:      "scan_duration_seconds",
				Help:      "Duration of scan runs in seconds",
				Buckets:   prometheus.ExponentialBuckets(0.1, 2, 12),
			},
		),
		reportsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "marketlens",
				Name:      "reports_total",
				Help:      "Built reports by kind",
			},
			[]string{"kind"},
		),
		reportSeconds: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "marketlens",
				Name:      "report_duration_seconds",
				Help:      "Duration of report builds in seconds",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"kind"},
		),
		latency: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "marketlens",
				Name:      "operation_duration_seconds",
				Help:      "Duration of operations in seconds",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"operation"},
		),
	}
}

// RecordEventsWritten counts newly persisted events of one type.
func (r *Recorder) RecordEventsWritten(eventType string, n int) {
	r.eventsWritten.WithLabelValues(eventType).Add(float64(n))
}

// RecordScan records one completed scan run.
func (r *Recorder) RecordScan(symbols, events int, seconds float64) {
	r.scansTotal.Inc()
	r.scanSymbols.Set(float64(symbols))
	r.scanEvents.Set(float64(events))
	r.scanDuration.Observe(seconds)
}

// RecordReport records one built report.
func (r *Recorder) RecordReport(kind string, seconds float64) {
	r.reportsTotal.WithLabelValues(kind).Inc()
	r.reportSeconds.WithLabelValues(kind).Observe(seconds)
}

// RecordError records an error occurrence.
func (r *Recorder) RecordError(kind string) {
	r.errorsTotal.WithLabelValues(kind).Inc()
}

// RecordLatency records operation latency in seconds.
func (r *Recorder) RecordLatency(op string, seconds float64) {
	r.latency.WithLabelValues(op).Observe(seconds)
}
