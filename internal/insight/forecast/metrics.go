package forecast

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	fitsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "hydrosim_forecast_fits_total",
			Help: "Forecast model fits by result.",
		},
		[]string{"result"},
	)

	fitDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "hydrosim_forecast_fit_duration_seconds",
			Help:    "Time spent fitting forecast models.",
			Buckets: prometheus.ExponentialBuckets(0.001, 4, 8),
		},
	)

	predictionsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "hydrosim_forecast_predicted_rows_total",
			Help: "Rows produced by forecast predictions.",
		},
	)
)

func init() {
	prometheus.MustRegister(fitsTotal, fitDuration, predictionsTotal)
}

func observeFit(start time.Time, err error) {
	fitDuration.Observe(time.Since(start).Seconds())
	result := "ok"
	if err != nil {
		result = "error"
	}
	fitsTotal.WithLabelValues(result).Inc()
}
