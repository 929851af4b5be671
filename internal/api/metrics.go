package api

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/jeryldev/patingin/internal/ir"
)

type metrics struct {
	requests     *prometheus.CounterVec
	scans        *prometheus.CounterVec
	violations   *prometheus.CounterVec
	scanDuration prometheus.Histogram
}

func newMetrics(reg prometheus.Registerer) *metrics {
	f := promauto.With(reg)
	return &metrics{
		requests: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "patingin",
			Subsystem: "api",
			Name:      "requests_total",
			Help:      "HTTP requests by method, route and status class",
		}, []string{"method", "route", "status"}),
		// Labels: result (ok, error)
		scans: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "patingin",
			Subsystem: "review",
			Name:      "scans_total",
			Help:      "Diff scans submitted through the API",
		}, []string{"result"}),
		violations: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "patingin",
			Subsystem: "review",
			Name:      "violations_total",
			Help:      "Violations reported by API scans",
		}, []string{"severity", "language"}),
		scanDuration: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: "patingin",
			Subsystem: "review",
			Name:      "scan_duration_seconds",
			Help:      "Time to review one submitted diff",
			Buckets:   []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		}),
	}
}

func (m *metrics) observe(run *ir.Run) {
	for _, v := range run.Violations {
		m.violations.WithLabelValues(v.Severity.String(), string(v.Language)).Inc()
	}
}
