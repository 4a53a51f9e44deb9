// Package metrics exposes the Prometheus counters and histograms the
// workflow engine records against as it drives documents through their
// stages, and the HTTP server that serves them for scraping.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// StagesExecutedTotal counts every stage execution, labeled by stage
	// name and outcome (pass/fail).
	StagesExecutedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "docflow_stages_executed_total",
		Help: "Total number of workflow stage executions, by stage and outcome.",
	}, []string{"stage", "outcome"})

	// StageDuration records wall-clock time spent in a single stage
	// execution, labeled by stage name.
	StageDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "docflow_stage_duration_seconds",
		Help:    "Time spent executing a single workflow stage.",
		Buckets: prometheus.DefBuckets,
	}, []string{"stage"})

	// GateRetriesTotal counts every gate-triggered rollback, labeled by
	// the gate that failed.
	GateRetriesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "docflow_gate_retries_total",
		Help: "Total number of gate-failure rollbacks, by gate.",
	}, []string{"gate"})

	// RetriesExhaustedTotal counts documents that transitioned to Failed
	// because a gate exhausted its retry budget.
	RetriesExhaustedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "docflow_retries_exhausted_total",
		Help: "Total number of documents failed due to retry exhaustion, by gate.",
	}, []string{"gate"})

	// InfraRetriesTotal counts infrastructure-error retries (LLM/network
	// failures), labeled by stage.
	InfraRetriesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "docflow_infra_retries_total",
		Help: "Total number of infrastructure-error retries, by stage.",
	}, []string{"stage"})

	// DocumentsCompletedTotal counts documents that reached Done.
	DocumentsCompletedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "docflow_documents_completed_total",
		Help: "Total number of documents that reached the Done status.",
	})

	// DocumentsFailedTotal counts documents that reached Failed.
	DocumentsFailedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "docflow_documents_failed_total",
		Help: "Total number of documents that reached the Failed status.",
	})

	// DocumentsInFlight tracks documents currently running a stage.
	DocumentsInFlight = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "docflow_documents_in_flight",
		Help: "Number of documents with a stage currently running.",
	})

	// ReadabilityScore observes the Readability gate's computed score
	// each time it runs, independent of pass/fail outcome.
	ReadabilityScore = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "docflow_readability_score",
		Help:    "Observed Flesch Reading Ease scores from the Readability stage.",
		Buckets: []float64{0, 20, 40, 60, 70, 80, 90, 100},
	})

	// CitationValidationRate observes the Citation gate's validation
	// rate each time it runs.
	CitationValidationRate = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "docflow_citation_validation_rate",
		Help:    "Observed citation validation rates from the Citation stage.",
		Buckets: []float64{0, 0.25, 0.5, 0.75, 0.9, 0.95, 1.0},
	})
)

// RecordStage records a single stage execution's outcome and duration.
func RecordStage(stage string, passed bool, duration time.Duration) {
	outcome := "pass"
	if !passed {
		outcome = "fail"
	}
	StagesExecutedTotal.WithLabelValues(stage, outcome).Inc()
	StageDuration.WithLabelValues(stage).Observe(duration.Seconds())
}

// RecordGateRetry records a bounded-retry rollback triggered by gate.
func RecordGateRetry(gate string) {
	GateRetriesTotal.WithLabelValues(gate).Inc()
}

// RecordRetriesExhausted records a document transitioning to Failed
// because gate exhausted its retry budget.
func RecordRetriesExhausted(gate string) {
	RetriesExhaustedTotal.WithLabelValues(gate).Inc()
}

// RecordInfraRetry records an infrastructure-error retry for stage.
func RecordInfraRetry(stage string) {
	InfraRetriesTotal.WithLabelValues(stage).Inc()
}

// RecordDocumentCompleted marks a document reaching Done.
func RecordDocumentCompleted() {
	DocumentsCompletedTotal.Inc()
}

// RecordDocumentFailed marks a document reaching Failed.
func RecordDocumentFailed() {
	DocumentsFailedTotal.Inc()
}

// Timer measures elapsed wall-clock time for a single stage execution.
type Timer struct {
	start time.Time
}

// NewTimer starts a timer.
func NewTimer() *Timer {
	return &Timer{start: time.Now()}
}

// Elapsed returns the time since the timer was created.
func (t *Timer) Elapsed() time.Duration {
	return time.Since(t.start)
}

// RecordStage records the elapsed time against stage with outcome passed.
func (t *Timer) RecordStage(stage string, passed bool) {
	RecordStage(stage, passed, t.Elapsed())
}
