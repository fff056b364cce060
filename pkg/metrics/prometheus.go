package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Recorder implements domain repository.Metrics using Prometheus.
type Recorder struct {
	updatesApplied  *prometheus.CounterVec
	updatesDropped  *prometheus.CounterVec
	residentCandles *prometheus.GaugeVec
	loadLatency     *prometheus.HistogramVec
	gapBridged      *prometheus.CounterVec
	errorsTotal     *prometheus.CounterVec
}

// New creates a new Prometheus metrics recorder.
func New() *Recorder {
	return &Recorder{
		updatesApplied: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "chartsync_updates_applied_total",
				Help: "Total live updates applied to the series store",
			},
			[]string{"stage"},
		),
		updatesDropped: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "chartsync_updates_dropped_total",
				Help: "Total live updates and load results dropped",
			},
			[]string{"reason"},
		),
		residentCandles: promauto.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "chartsync_resident_candles",
				Help: "Resident candle count per series",
			},
			[]string{"instrument", "granularity"},
		),
		loadLatency: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "chartsync_load_duration_seconds",
				Help:    "Duration of backfill loads in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"reason"},
		),
		gapBridged: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "chartsync_gap_bridged_candles_total",
				Help: "Candles merged or synthesized to close feed gaps",
			},
			[]string{"mode"},
		),
		errorsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "chartsync_errors_total",
				Help: "Total number of errors encountered",
			},
			[]string{"type"},
		),
	}
}

// RecordUpdateApplied counts one applied live update per lifecycle stage.
func (r *Recorder) RecordUpdateApplied(stage string) {
	r.updatesApplied.WithLabelValues(stage).Inc()
}

// RecordUpdateDropped counts one dropped update or load result.
func (r *Recorder) RecordUpdateDropped(reason string) {
	r.updatesDropped.WithLabelValues(reason).Inc()
}

// RecordResidentCandles records the resident count for a series.
func (r *Recorder) RecordResidentCandles(instrument, granularity string, n int) {
	r.residentCandles.WithLabelValues(instrument, granularity).Set(float64(n))
}

// RecordLoadLatency records backfill latency in seconds.
func (r *Recorder) RecordLoadLatency(reason string, seconds float64) {
	r.loadLatency.WithLabelValues(reason).Observe(seconds)
}

// RecordGapBridged counts candles that closed a gap, by mode.
func (r *Recorder) RecordGapBridged(mode string, n int) {
	r.gapBridged.WithLabelValues(mode).Add(float64(n))
}

// RecordError records an error occurrence.
func (r *Recorder) RecordError(kind string) {
	r.errorsTotal.WithLabelValues(kind).Inc()
}
