package observability

import "github.com/prometheus/client_golang/prometheus"

// Claim outcomes for Metrics.Claims.
const (
	ClaimClaimed  = "claimed"
	ClaimStockout = "stockout"
	ClaimError    = "error"
)

// Metrics 业务指标集合，由 main 创建后注入各组件。
type Metrics struct {
	Claims              *prometheus.CounterVec
	ClaimDuration       prometheus.Histogram
	OrderTransitions    *prometheus.CounterVec
	PaidUnfulfilled     prometheus.Counter
	NotificationFailure *prometheus.CounterVec
	PublishFailure      *prometheus.CounterVec
}

// NewMetrics 创建并注册指标。reg 为 nil 时使用独立 registry（测试用）。
func NewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	m := &Metrics{
		Claims: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "inventory_claims_total",
			Help: "Inventory claim attempts by outcome.",
		}, []string{"outcome"}),
		ClaimDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "inventory_claim_duration_seconds",
			Help:    "Duration of inventory claims in seconds.",
			Buckets: prometheus.DefBuckets,
		}),
		OrderTransitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "order_transitions_total",
			Help: "Applied order status transitions by target status.",
		}, []string{"to"}),
		PaidUnfulfilled: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "order_paid_unfulfilled_total",
			Help: "Orders that became PAID while the product was out of stock.",
		}),
		NotificationFailure: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "notification_failures_total",
			Help: "Failed customer notifications by kind.",
		}, []string{"kind"}),
		PublishFailure: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "event_publish_failures_total",
			Help: "Order events that could not be handed to the transport.",
		}, []string{"event"}),
	}
	reg.MustRegister(
		m.Claims,
		m.ClaimDuration,
		m.OrderTransitions,
		m.PaidUnfulfilled,
		m.NotificationFailure,
		m.PublishFailure,
	)
	return m
}
