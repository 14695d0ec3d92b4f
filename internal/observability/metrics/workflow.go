package metrics

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/kirillkom/garimpo-judicial/internal/core/domain"
)

// WorkflowMetrics counts workflow writes and degraded reads.
type WorkflowMetrics struct {
	service string

	decisionsTotal     *prometheus.CounterVec
	skippedTotal       *prometheus.CounterVec
	transitionsTotal   *prometheus.CounterVec
	statsDegraded      prometheus.Counter
	eventPublishTotal  *prometheus.CounterVec
	analysisSavedTotal prometheus.Counter
	breakerState       *prometheus.GaugeVec
}

func NewWorkflowMetrics(service string, reg prometheus.Registerer) *WorkflowMetrics {
	constLabels := prometheus.Labels{"service": service}

	m := &WorkflowMetrics{
		service: service,
		decisionsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "workflow",
			Name:      "decisions_total",
			Help:      "Ledger rows written by batch triage, by decision.",
		}, []string{"service", "decision"}),
		skippedTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "workflow",
			Name:      "unresolved_items_total",
			Help:      "Batch items skipped because the listing could not be resolved.",
		}, []string{"service", "decision"}),
		transitionsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "workflow",
			Name:      "transitions_total",
			Help:      "Portfolio status advances, by target state and whether a row matched.",
		}, []string{"service", "state", "matched"}),
		statsDegraded: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace:   namespace,
			Subsystem:   "workflow",
			Name:        "stats_degraded_total",
			Help:        "Stats requests answered with zero counts after a storage failure.",
			ConstLabels: constLabels,
		}),
		eventPublishTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "workflow",
			Name:      "event_publish_total",
			Help:      "Workflow events published, by kind and status.",
		}, []string{"service", "kind", "status"}),
		analysisSavedTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace:   namespace,
			Subsystem:   "workflow",
			Name:        "analysis_saved_total",
			Help:        "Deep analyses saved.",
			ConstLabels: constLabels,
		}),
		breakerState: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "resilience",
			Name:      "breaker_open",
			Help:      "1 while the circuit breaker for an operation is not closed.",
		}, []string{"service", "operation", "state"}),
	}

	reg.MustRegister(
		m.decisionsTotal,
		m.skippedTotal,
		m.transitionsTotal,
		m.statsDegraded,
		m.eventPublishTotal,
		m.analysisSavedTotal,
		m.breakerState,
	)
	return m
}

func (m *WorkflowMetrics) RecordBatchDecision(decision domain.State, written, skipped int) {
	if written > 0 {
		m.decisionsTotal.WithLabelValues(m.service, string(decision)).Add(float64(written))
	}
	if skipped > 0 {
		m.skippedTotal.WithLabelValues(m.service, string(decision)).Add(float64(skipped))
	}
}

func (m *WorkflowMetrics) RecordTransition(state domain.State, matched bool) {
	m.transitionsTotal.WithLabelValues(m.service, string(state), strconv.FormatBool(matched)).Inc()
}

func (m *WorkflowMetrics) RecordStatsDegraded() {
	m.statsDegraded.Inc()
}

func (m *WorkflowMetrics) RecordEventPublish(kind domain.EventKind, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}
	m.eventPublishTotal.WithLabelValues(m.service, string(kind), status).Inc()
}

func (m *WorkflowMetrics) RecordAnalysisSaved() {
	m.analysisSavedTotal.Inc()
}

// RecordBreakerState matches the resilience state-change hook.
func (m *WorkflowMetrics) RecordBreakerState(operation, from, to string) {
	m.breakerState.WithLabelValues(m.service, operation, from).Set(0)
	open := 0.0
	if to != "closed" {
		open = 1
	}
	m.breakerState.WithLabelValues(m.service, operation, to).Set(open)
}
