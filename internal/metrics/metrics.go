// Package metrics exposes Prometheus collectors for fitting sessions.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	// OutcomeSuccess labels fits that produced a result.
	OutcomeSuccess = "success"
	// OutcomeError labels fits rejected by validation or a failing dependency.
	OutcomeError = "error"
	// OutcomeCancelled labels fits stopped through their context.
	OutcomeCancelled = "cancelled"
)

var (
	fitsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "soilfit",
			Name:      "fits_total",
			Help:      "Total number of fitting sessions, partitioned by method and outcome.",
		},
		[]string{"method", "outcome"},
	)

	fitDurationSeconds = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "soilfit",
			Name:      "fit_seconds",
			Help:      "Fitting session latency in seconds.",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10, 30},
		},
	)

	startsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "soilfit",
			Name:      "starts_total",
			Help:      "Total number of optimizer runs from a starting point.",
		},
		[]string{"method"},
	)
)

// Register attaches the soilfit collectors to the supplied Prometheus registerer.
func Register(reg prometheus.Registerer) error {
	collectors := []prometheus.Collector{
		fitsTotal,
		fitDurationSeconds,
		startsTotal,
	}

	for _, collector := range collectors {
		if err := reg.Register(collector); err != nil {
			if _, ok := err.(prometheus.AlreadyRegisteredError); ok {
				continue
			}
			return err
		}
	}
	return nil
}

// ObserveFit records a session duration and its outcome label.
func ObserveFit(method string, duration time.Duration, outcome string) {
	switch outcome {
	case OutcomeError, OutcomeCancelled:
	default:
		outcome = OutcomeSuccess
	}
	fitsTotal.WithLabelValues(method, outcome).Inc()
	if duration < 0 {
		duration = 0
	}
	fitDurationSeconds.Observe(duration.Seconds())
}

// ObserveStart counts one optimizer run.
func ObserveStart(method string) {
	startsTotal.WithLabelValues(method).Inc()
}
