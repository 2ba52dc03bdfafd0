package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics is the coordinator's instrumentation. Every system instance
// owns a fresh registry so embedding programs can run several instances
// in one process without duplicate-registration panics.
type Metrics struct {
	Registry *prometheus.Registry

	OrdersSubmitted   prometheus.Counter
	OrdersCollected   prometheus.Counter
	OrdersAbandoned   prometheus.Counter
	OrdersFailed      prometheus.Counter
	ProductsDispensed prometheus.Counter
	MachineFailures   *prometheus.CounterVec

	QueueDepth    prometheus.Gauge
	PendingOrders prometheus.Gauge
}

// NewMetrics registers the coordinator metrics on a new registry.
func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()
	factory := promauto.With(registry)

	return &Metrics{
		Registry: registry,
		OrdersSubmitted: factory.NewCounter(prometheus.CounterOpts{
			Name: "coaster_orders_submitted_total",
			Help: "Orders accepted by the coordinator.",
		}),
		OrdersCollected: factory.NewCounter(prometheus.CounterOpts{
			Name: "coaster_orders_collected_total",
			Help: "Ready orders picked up by their client in time.",
		}),
		OrdersAbandoned: factory.NewCounter(prometheus.CounterOpts{
			Name: "coaster_orders_abandoned_total",
			Help: "Ready orders reclaimed after the collection window elapsed.",
		}),
		OrdersFailed: factory.NewCounter(prometheus.CounterOpts{
			Name: "coaster_orders_failed_total",
			Help: "Orders aborted by a machine failure.",
		}),
		ProductsDispensed: factory.NewCounter(prometheus.CounterOpts{
			Name: "coaster_products_dispensed_total",
			Help: "Products successfully acquired from machines.",
		}),
		MachineFailures: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "coaster_machine_failures_total",
			Help: "Machine failures observed during product acquisition.",
		}, []string{"product"}),
		QueueDepth: factory.NewGauge(prometheus.GaugeOpts{
			Name: "coaster_order_queue_depth",
			Help: "Orders waiting for a worker.",
		}),
		PendingOrders: factory.NewGauge(prometheus.GaugeOpts{
			Name: "coaster_pending_orders",
			Help: "Ready orders awaiting collection.",
		}),
	}
}
