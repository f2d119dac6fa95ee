package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// UnitOfWorkMetrics tracks transactional escrow operations.
type UnitOfWorkMetrics struct {
	duration   *prometheus.HistogramVec
	outcomes   *prometheus.CounterVec
	retries    *prometheus.CounterVec
	invariants prometheus.Counter
}

// NewUnitOfWorkMetrics registers the unit-of-work metrics on reg. A nil
// registerer yields a no-op recorder.
func NewUnitOfWorkMetrics(reg prometheus.Registerer) *UnitOfWorkMetrics {
	if reg == nil {
		return &UnitOfWorkMetrics{}
	}
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "escrow",
		Name:      "operation_duration_seconds",
		Help:      "Duration of escrow operations including retries.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"operation"})
	outcomes := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "escrow",
		Name:      "operations_total",
		Help:      "Escrow operations by result code.",
	}, []string{"operation", "code"})
	retries := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "escrow",
		Name:      "operation_retries_total",
		Help:      "Transactions retried after a concurrent update.",
	}, []string{"operation"})
	invariants := prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "escrow",
		Name:      "invariant_violations_total",
		Help:      "Ledger invariant violations detected at runtime.",
	})
	reg.MustRegister(duration, outcomes, retries, invariants)
	return &UnitOfWorkMetrics{
		duration:   duration,
		outcomes:   outcomes,
		retries:    retries,
		invariants: invariants,
	}
}

// Observe records one finished operation. code is "OK" on success.
func (m *UnitOfWorkMetrics) Observe(operation, code string, elapsed time.Duration) {
	if m == nil || m.duration == nil {
		return
	}
	operation = normalizeLabel(operation)
	m.duration.WithLabelValues(operation).Observe(elapsed.Seconds())
	m.outcomes.WithLabelValues(operation, normalizeLabel(code)).Inc()
}

func (m *UnitOfWorkMetrics) IncRetry(operation string) {
	if m == nil || m.retries == nil {
		return
	}
	m.retries.WithLabelValues(normalizeLabel(operation)).Inc()
}

func (m *UnitOfWorkMetrics) IncInvariantViolation() {
	if m == nil || m.invariants == nil {
		return
	}
	m.invariants.Inc()
}

// OutboxMetrics tracks the outbox publisher loop.
type OutboxMetrics struct {
	published *prometheus.CounterVec
	failed    *prometheus.CounterVec
	dlq       *prometheus.CounterVec
}

func NewOutboxMetrics(reg prometheus.Registerer) *OutboxMetrics {
	if reg == nil {
		return &OutboxMetrics{}
	}
	labels := []string{"event_type"}
	published := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace, Subsystem: "outbox", Name: "published_total",
		Help: "Outbox events delivered to the broker.",
	}, labels)
	failed := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace, Subsystem: "outbox", Name: "publish_failures_total",
		Help: "Outbox publish attempts that failed and will be retried.",
	}, labels)
	dlq := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace, Subsystem: "outbox", Name: "dead_lettered_total",
		Help: "Outbox events moved to the dead letter table.",
	}, labels)
	reg.MustRegister(published, failed, dlq)
	return &OutboxMetrics{published: published, failed: failed, dlq: dlq}
}

func (m *OutboxMetrics) IncPublished(eventType string) {
	if m == nil || m.published == nil {
		return
	}
	m.published.WithLabelValues(normalizeLabel(eventType)).Inc()
}

func (m *OutboxMetrics) IncFailed(eventType string) {
	if m == nil || m.failed == nil {
		return
	}
	m.failed.WithLabelValues(normalizeLabel(eventType)).Inc()
}

func (m *OutboxMetrics) IncDeadLettered(eventType string) {
	if m == nil || m.dlq == nil {
		return
	}
	m.dlq.WithLabelValues(normalizeLabel(eventType)).Inc()
}
