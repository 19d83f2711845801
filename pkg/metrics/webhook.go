package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// WebhookMetrics records outcomes for provider webhook deliveries.
type WebhookMetrics struct {
	processed    *prometheus.CounterVec
	duplicate    *prometheus.CounterVec
	unknownOrder *prometheus.CounterVec
	failed       *prometheus.CounterVec
}

// NewWebhookMetrics registers the webhook metrics on the provided registerer.
func NewWebhookMetrics(reg prometheus.Registerer) *WebhookMetrics {
	if reg == nil {
		return &WebhookMetrics{}
	}
	processed := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "webhook_events_processed",
		Help: "Webhook events that resulted in a recorded payment.",
	}, []string{"provider"})
	duplicate := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "webhook_events_duplicate",
		Help: "Webhook deliveries skipped because the payment already exists.",
	}, []string{"provider"})
	unknownOrder := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "webhook_events_unknown_order",
		Help: "Webhook events referencing an order this service does not know.",
	}, []string{"provider"})
	failed := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "webhook_events_failed",
		Help: "Webhook events that failed processing and will be redelivered.",
	}, []string{"provider"})
	reg.MustRegister(processed, duplicate, unknownOrder, failed)
	return &WebhookMetrics{
		processed:    processed,
		duplicate:    duplicate,
		unknownOrder: unknownOrder,
		failed:       failed,
	}
}

// IncProcessed increments the processed counter for the named provider.
func (w *WebhookMetrics) IncProcessed(provider string) {
	if w == nil || w.processed == nil {
		return
	}
	w.processed.WithLabelValues(normalizeLabel(provider)).Inc()
}

// IncDuplicate increments the duplicate-delivery counter for the named provider.
func (w *WebhookMetrics) IncDuplicate(provider string) {
	if w == nil || w.duplicate == nil {
		return
	}
	w.duplicate.WithLabelValues(normalizeLabel(provider)).Inc()
}

// IncUnknownOrder increments the unknown-order counter for the named provider.
func (w *WebhookMetrics) IncUnknownOrder(provider string) {
	if w == nil || w.unknownOrder == nil {
		return
	}
	w.unknownOrder.WithLabelValues(normalizeLabel(provider)).Inc()
}

// IncFailed increments the failure counter for the named provider.
func (w *WebhookMetrics) IncFailed(provider string) {
	if w == nil || w.failed == nil {
		return
	}
	w.failed.WithLabelValues(normalizeLabel(provider)).Inc()
}

func normalizeLabel(provider string) string {
	if provider == "" {
		return "unknown"
	}
	return provider
}
