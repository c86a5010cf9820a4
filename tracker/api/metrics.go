package api

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics are the server's own operational counters, exposed on /metrics.
type Metrics struct {
	RecordsIngested prometheus.Counter
	RecordsRejected prometheus.Counter
	AlertsFired     *prometheus.CounterVec
	AnalysisSeconds *prometheus.HistogramVec
}

// NewMetrics registers the tracker metrics on the given registerer.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		RecordsIngested: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "benchtrack",
			Name:      "records_ingested_total",
			Help:      "Measurements accepted into the store.",
		}),
		RecordsRejected: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "benchtrack",
			Name:      "records_rejected_total",
			Help:      "Measurements rejected as invalid.",
		}),
		AlertsFired: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "benchtrack",
			Name:      "alerts_fired_total",
			Help:      "Regression alerts emitted, by severity.",
		}, []string{"severity"}),
		AnalysisSeconds: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "benchtrack",
			Name:      "analysis_duration_seconds",
			Help:      "Wall time of analysis operations.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"operation"}),
	}
}
