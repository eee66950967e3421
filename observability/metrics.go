package observability

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/DavNej/lending-protocol/core/events"
)

// LedgerMetrics collects counters describing lending ledger activity.
type LedgerMetrics struct {
	operations *prometheus.CounterVec
	events     *prometheus.CounterVec
	requests   *prometheus.CounterVec
}

var (
	ledgerMetricsOnce sync.Once
	ledgerRegistry    *LedgerMetrics
)

// Metrics returns the lazily-initialised ledger metrics registry.
func Metrics() *LedgerMetrics {
	ledgerMetricsOnce.Do(func() {
		ledgerRegistry = &LedgerMetrics{
			operations: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "lending",
				Subsystem: "ledger",
				Name:      "operations_total",
				Help:      "Total ledger operations segmented by operation and outcome.",
			}, []string{"operation", "outcome"}),
			events: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "lending",
				Subsystem: "ledger",
				Name:      "events_total",
				Help:      "Total ledger events segmented by event type.",
			}, []string{"type"}),
			requests: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "lending",
				Subsystem: "gateway",
				Name:      "requests_total",
				Help:      "Total gateway HTTP requests segmented by route and status.",
			}, []string{"route", "status"}),
		}
		prometheus.MustRegister(ledgerRegistry.operations, ledgerRegistry.events, ledgerRegistry.requests)
	})
	return ledgerRegistry
}

// ObserveOperation records one ledger operation and its outcome.
func (m *LedgerMetrics) ObserveOperation(operation string, err error) {
	if m == nil {
		return
	}
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	m.operations.WithLabelValues(operation, outcome).Inc()
}

// ObserveRequest records one gateway request.
func (m *LedgerMetrics) ObserveRequest(route, status string) {
	if m == nil {
		return
	}
	m.requests.WithLabelValues(route, status).Inc()
}

// EventCounter is an events.Emitter decorator counting every emitted event by
// type before forwarding it.
type EventCounter struct {
	metrics *LedgerMetrics
	next    events.Emitter
}

// NewEventCounter wraps the next emitter with event counting. A nil next
// emitter discards events after counting.
func NewEventCounter(metrics *LedgerMetrics, next events.Emitter) *EventCounter {
	if next == nil {
		next = events.NoopEmitter{}
	}
	return &EventCounter{metrics: metrics, next: next}
}

// Emit implements the events.Emitter interface.
func (c *EventCounter) Emit(event events.Event) {
	if c == nil || event == nil {
		return
	}
	if c.metrics != nil {
		c.metrics.events.WithLabelValues(event.EventType()).Inc()
	}
	c.next.Emit(event)
}
