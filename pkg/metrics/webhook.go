package metrics

import "github.com/prometheus/client_golang/prometheus"

// WebhookMetrics tracks inbound payment deliveries and the retry pipeline.
type WebhookMetrics struct {
	received   *prometheus.CounterVec
	deadLetter prometheus.Counter
	retries    prometheus.Counter
}

// NewWebhookMetrics registers the webhook pipeline metrics on the provided registerer.
func NewWebhookMetrics(reg prometheus.Registerer) *WebhookMetrics {
	if reg == nil {
		return &WebhookMetrics{}
	}
	received := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "webhook_events_received",
		Help: "Inbound payment webhook deliveries by outcome.",
	}, []string{"outcome"})
	deadLetter := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "webhook_events_dead_lettered",
		Help: "Payment events moved to the dead-letter queue.",
	})
	retries := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "webhook_event_retries",
		Help: "Payment event processing retries attempted.",
	})
	reg.MustRegister(received, deadLetter, retries)
	return &WebhookMetrics{
		received:   received,
		deadLetter: deadLetter,
		retries:    retries,
	}
}

// IncReceived counts a delivery with the given outcome label
// (accepted, duplicate, invalid_signature, rejected).
func (w *WebhookMetrics) IncReceived(outcome string) {
	if w == nil || w.received == nil {
		return
	}
	w.received.WithLabelValues(normalizeLabel(outcome)).Inc()
}

// IncDeadLettered counts an event parked in the dead-letter queue.
func (w *WebhookMetrics) IncDeadLettered() {
	if w == nil || w.deadLetter == nil {
		return
	}
	w.deadLetter.Inc()
}

// IncRetry counts a retry attempt picked up by the sweeper.
func (w *WebhookMetrics) IncRetry() {
	if w == nil || w.retries == nil {
		return
	}
	w.retries.Inc()
}
