package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics exposes the decisions of the payment flow that never reach the wire: webhook
// outcomes are always acknowledged with 200, so these counters are how operators see
// rejected signatures or amount mismatches.
type Metrics struct {
	webhookOutcomes  *prometheus.CounterVec
	initiateOutcomes *prometheus.CounterVec
	gatewayLatency   *prometheus.HistogramVec
}

// New registers the payment collectors on reg.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		webhookOutcomes: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "payments_webhook_outcomes_total",
			Help: "Webhook deliveries by reconciliation outcome",
		}, []string{"outcome"}),
		initiateOutcomes: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "payments_initiate_outcomes_total",
			Help: "Deposit initiations by result code",
		}, []string{"code"}),
		gatewayLatency: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "payments_gateway_request_duration_seconds",
			Help:    "Payment gateway call latency",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		}, []string{"operation"}),
	}
}

// Webhook counts one webhook delivery outcome.
func (m *Metrics) Webhook(outcome string) {
	if m == nil {
		return
	}
	m.webhookOutcomes.WithLabelValues(outcome).Inc()
}

// Initiate counts one initiation result code ("OK" on success).
func (m *Metrics) Initiate(code string) {
	if m == nil {
		return
	}
	m.initiateOutcomes.WithLabelValues(code).Inc()
}

// ObserveGateway records how long a gateway operation took.
func (m *Metrics) ObserveGateway(operation string, started time.Time) {
	if m == nil {
		return
	}
	m.gatewayLatency.WithLabelValues(operation).Observe(time.Since(started).Seconds())
}
