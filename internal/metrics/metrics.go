// Package metrics holds the Prometheus collectors for the grading workflow.
package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

// Outcome label values.
const (
	OutcomeAccepted = "accepted"
	OutcomeRejected = "rejected"
	OutcomeError    = "error"
	OutcomeNotReady = "not_ready"
	OutcomeReady    = "ready"
)

var (
	registerOnce     sync.Once
	uploadsTotal     *prometheus.CounterVec
	pollsTotal       *prometheus.CounterVec
	pollWaitSeconds  prometheus.Histogram
	resultStudents   prometheus.Gauge
	sessionsByResult *prometheus.CounterVec
)

// Register initialises the collectors and registers them with the default registry.
func Register() {
	registerOnce.Do(func() {
		uploadsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "sheetcheck_uploads_total",
			Help: "Uploads sent to the grading service.",
		}, []string{"kind", "outcome"})

		pollsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "sheetcheck_poll_attempts_total",
			Help: "Result poll attempts against the grading service.",
		}, []string{"outcome"})

		pollWaitSeconds = prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "sheetcheck_grading_wait_seconds",
			Help:    "Time from the student responses upload until the poll loop finished.",
			Buckets: []float64{1, 2.5, 5, 10, 20, 30, 60, 120, 300},
		})

		resultStudents = prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "sheetcheck_result_students",
			Help: "Students in the most recently delivered result set.",
		})

		sessionsByResult = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "sheetcheck_sessions_finished_total",
			Help: "Workflow sessions that reached a terminal state.",
		}, []string{"state"})

		prometheus.MustRegister(uploadsTotal, pollsTotal, pollWaitSeconds, resultStudents, sessionsByResult)
	})
}

// Uploads exposes the upload counter.
func Uploads() *prometheus.CounterVec {
	Register()
	return uploadsTotal
}

// Polls exposes the poll attempt counter.
func Polls() *prometheus.CounterVec {
	Register()
	return pollsTotal
}

// GradingWait exposes the grading wait histogram.
func GradingWait() prometheus.Histogram {
	Register()
	return pollWaitSeconds
}

// ResultStudents exposes the result size gauge.
func ResultStudents() prometheus.Gauge {
	Register()
	return resultStudents
}

// SessionsFinished exposes the terminal session counter.
func SessionsFinished() *prometheus.CounterVec {
	Register()
	return sessionsByResult
}
