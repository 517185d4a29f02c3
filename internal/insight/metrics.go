package insight

import "github.com/prometheus/client_golang/prometheus"

var (
	sessionsActive = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "hydrosim_insight_sessions",
		Help: "Upload sessions currently held in memory.",
	})
	sessionsEvicted = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "hydrosim_insight_sessions_evicted_total",
		Help: "Sessions evicted because the store was full.",
	})
	pipelineRuns = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "hydrosim_insight_pipeline_runs_total",
			Help: "Forecast pipeline runs by mode and result.",
		},
		[]string{"mode", "result"},
	)
	pipelineDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "hydrosim_insight_pipeline_duration_seconds",
			Help:    "Forecast pipeline duration by mode.",
			Buckets: prometheus.ExponentialBuckets(0.005, 2, 12),
		},
		[]string{"mode"},
	)
)

func init() {
	prometheus.MustRegister(sessionsActive, sessionsEvicted, pipelineRuns, pipelineDuration)
}
