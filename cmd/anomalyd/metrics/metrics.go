// Package metrics provides Prometheus metrics instrumentation for anomalyd.
//
// Metrics exposed:
//   - anomalyd_stage_seconds: Histogram of pipeline stage duration by stage
//   - anomalyd_rows_scored_total: Counter of scored rows
//   - anomalyd_anomalies_total: Counter of rows flagged as anomalous
//   - anomalyd_predict_requests_total: Counter of predict calls by outcome
//   - anomalyd_errors_total: Counter of errors by kind and stage
//
// All metrics carry the resolution mode and scorer as constant labels.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for anomalyd.
type Metrics struct {
	StageSeconds  *prometheus.HistogramVec
	RowsScored    prometheus.Counter
	Anomalies     prometheus.Counter
	PredictsTotal *prometheus.CounterVec
	ErrorsTotal   *prometheus.CounterVec
}

// New creates the metrics and registers them with reg. A nil reg registers
// with the default Prometheus registry.
func New(reg prometheus.Registerer, mode, scorer string) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)
	labels := prometheus.Labels{
		"mode":   mode,
		"scorer": scorer,
	}

	return &Metrics{
		StageSeconds: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:        "anomalyd_stage_seconds",
			Help:        "Time spent in each predict pipeline stage",
			ConstLabels: labels,
			Buckets:     prometheus.DefBuckets,
		}, []string{"stage"}),

		RowsScored: factory.NewCounter(prometheus.CounterOpts{
			Name:        "anomalyd_rows_scored_total",
			Help:        "Total number of rows scored",
			ConstLabels: labels,
		}),

		Anomalies: factory.NewCounter(prometheus.CounterOpts{
			Name:        "anomalyd_anomalies_total",
			Help:        "Total number of rows flagged as anomalous",
			ConstLabels: labels,
		}),

		PredictsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name:        "anomalyd_predict_requests_total",
			Help:        "Total number of predict requests by outcome",
			ConstLabels: labels,
		}, []string{"outcome"}),

		ErrorsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name:        "anomalyd_errors_total",
			Help:        "Total number of errors by kind and stage",
			ConstLabels: labels,
		}, []string{"kind", "stage"}),
	}
}

// RecordStage records the time spent in a pipeline stage.
func (m *Metrics) RecordStage(stage string, seconds float64) {
	m.StageSeconds.WithLabelValues(stage).Observe(seconds)
}

// RecordScored adds to the scored row and anomaly counters.
func (m *Metrics) RecordScored(rows, anomalies int) {
	m.RowsScored.Add(float64(rows))
	m.Anomalies.Add(float64(anomalies))
}

// RecordError increments the error counter.
func (m *Metrics) RecordError(kind, stage string) {
	m.ErrorsTotal.WithLabelValues(kind, stage).Inc()
}

// RecordPredict counts a predict request by outcome: ok, client_error or server_error.
func (m *Metrics) RecordPredict(outcome string) {
	m.PredictsTotal.WithLabelValues(outcome).Inc()
}
