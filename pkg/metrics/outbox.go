package metrics

import "github.com/prometheus/client_golang/prometheus"

const (
	OutboxResultPublished    = "published"
	OutboxResultRetry        = "retry"
	OutboxResultDeadLettered = "dead_lettered"
	// Deferred rows sit behind a failed row of the same aggregate.
	OutboxResultDeferred = "deferred"
)

// OutboxMetrics counts publisher outcomes per event type.
type OutboxMetrics struct {
	events *prometheus.CounterVec
}

// NewOutboxMetrics registers the publisher metrics on the provided registerer.
// A nil registerer yields a no-op recorder.
func NewOutboxMetrics(reg prometheus.Registerer) *OutboxMetrics {
	if reg == nil {
		return &OutboxMetrics{}
	}
	events := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "outbox_events_total",
		Help: "Outbox rows processed by the publisher, by result.",
	}, []string{"event_type", "result"})
	reg.MustRegister(events)
	return &OutboxMetrics{events: events}
}

// Observe records one processed outbox row.
func (o *OutboxMetrics) Observe(eventType, result string) {
	if o == nil || o.events == nil {
		return
	}
	o.events.WithLabelValues(normalizeLabel(eventType), normalizeLabel(result)).Inc()
}

func normalizeLabel(v string) string {
	if v == "" {
		return "unknown"
	}
	return v
}
