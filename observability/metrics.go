package observability

import (
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	creditEngineOnce sync.Once
	creditEngineReg  *CreditEngineMetrics

	executorOnce sync.Once
	executorReg  *ExecutorMetrics
)

// CreditEngineMetrics captures request outcomes of the credit engine.
type CreditEngineMetrics struct {
	requests     *prometheus.CounterVec
	latency      *prometheus.HistogramVec
	errors       *prometheus.CounterVec
	liquidations *prometheus.CounterVec
}

// CreditEngine returns the singleton metrics registry for the credit engine.
func CreditEngine() *CreditEngineMetrics {
	creditEngineOnce.Do(func() {
		creditEngineReg = &CreditEngineMetrics{
			requests: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "eurocredit",
				Subsystem: "engine",
				Name:      "requests_total",
				Help:      "Count of credit engine operations segmented by operation and outcome.",
			}, []string{"operation", "outcome"}),
			latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
				Namespace: "eurocredit",
				Subsystem: "engine",
				Name:      "request_duration_seconds",
				Help:      "Latency distribution for credit engine operations.",
				Buckets:   prometheus.DefBuckets,
			}, []string{"operation"}),
			errors: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "eurocredit",
				Subsystem: "engine",
				Name:      "errors_total",
				Help:      "Count of rejected credit engine operations segmented by reason.",
			}, []string{"operation", "reason"}),
			liquidations: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "eurocredit",
				Subsystem: "engine",
				Name:      "liquidations_total",
				Help:      "Count of applied liquidations segmented by seized collateral.",
			}, []string{"collateral"}),
		}
		prometheus.MustRegister(
			creditEngineReg.requests,
			creditEngineReg.latency,
			creditEngineReg.errors,
			creditEngineReg.liquidations,
		)
	})
	return creditEngineReg
}

// Observe records the outcome of an engine operation. An empty reason marks
// success.
func (m *CreditEngineMetrics) Observe(operation, reason string, duration time.Duration) {
	if m == nil {
		return
	}
	operation = labelValue(operation, "unknown")
	outcome := "success"
	if reason != "" {
		outcome = "error"
		m.errors.WithLabelValues(operation, labelValue(reason, "unspecified")).Inc()
	}
	m.requests.WithLabelValues(operation, outcome).Inc()
	m.latency.WithLabelValues(operation).Observe(duration.Seconds())
}

// RecordLiquidation increments the liquidation counter for collateral.
func (m *CreditEngineMetrics) RecordLiquidation(collateral string) {
	if m == nil {
		return
	}
	m.liquidations.WithLabelValues(labelValue(collateral, "unknown")).Inc()
}

// ExecutorMetrics tracks the execution substrate.
type ExecutorMetrics struct {
	calls     *prometheus.CounterVec
	committed *prometheus.CounterVec
	sinkFails *prometheus.CounterVec
}

// Executor returns the singleton metrics registry for the call executor.
func Executor() *ExecutorMetrics {
	executorOnce.Do(func() {
		executorReg = &ExecutorMetrics{
			calls: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "eurocredit",
				Subsystem: "executor",
				Name:      "calls_total",
				Help:      "Count of executed calls segmented by name and outcome.",
			}, []string{"call", "outcome"}),
			committed: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "eurocredit",
				Subsystem: "executor",
				Name:      "events_committed_total",
				Help:      "Count of events released after a successful commit, by type.",
			}, []string{"type"}),
			sinkFails: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "eurocredit",
				Subsystem: "executor",
				Name:      "sink_errors_total",
				Help:      "Count of event sink failures by event type.",
			}, []string{"type"}),
		}
		prometheus.MustRegister(executorReg.calls, executorReg.committed, executorReg.sinkFails)
	})
	return executorReg
}

// RecordCall counts a call by outcome.
func (m *ExecutorMetrics) RecordCall(call string, err error) {
	if m == nil {
		return
	}
	outcome := "committed"
	if err != nil {
		outcome = "reverted"
	}
	m.calls.WithLabelValues(labelValue(call, "unknown"), outcome).Inc()
}

// RecordEvent counts a committed event.
func (m *ExecutorMetrics) RecordEvent(eventType string) {
	if m == nil {
		return
	}
	m.committed.WithLabelValues(labelValue(eventType, "unknown")).Inc()
}

// RecordSinkError counts an event that a sink failed to record.
func (m *ExecutorMetrics) RecordSinkError(eventType string) {
	if m == nil {
		return
	}
	m.sinkFails.WithLabelValues(labelValue(eventType, "unknown")).Inc()
}

func labelValue(value, fallback string) string {
	value = strings.TrimSpace(strings.ToLower(value))
	if value == "" {
		return fallback
	}
	return value
}
