package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collector mirrors the atomic counters in Metrics as Prometheus
// instruments. The API handlers update each Collector instrument right
// beside the matching Metrics call (Metrics.AddLatency,
// Metrics.IncOrdersReceived, ...); Metrics itself does not forward to the
// Collector. Metrics feeds the hand-rolled percentile histogram exposed at
// /metrics as JSON, the Collector a Prometheus exposition endpoint for
// operators who already scrape Prometheus.
type Collector struct {
	OrdersReceived  prometheus.Counter
	OrdersMatched   prometheus.Counter
	OrdersCancelled prometheus.Counter
	OrdersInBook    prometheus.Gauge
	TradesExecuted  prometheus.Counter
	OrderLatencyUs  prometheus.Histogram
}

// NewCollector builds and registers a Collector's instruments under the
// "matching" namespace.
func NewCollector() *Collector {
	c := &Collector{
		OrdersReceived: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "matching",
			Subsystem: "orders",
			Name:      "received_total",
			Help:      "Total number of orders submitted to the engine.",
		}),
		OrdersMatched: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "matching",
			Subsystem: "orders",
			Name:      "matched_total",
			Help:      "Total number of maker fills, incremented once per trade.",
		}),
		OrdersCancelled: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "matching",
			Subsystem: "orders",
			Name:      "cancelled_total",
			Help:      "Total number of successful cancellations.",
		}),
		OrdersInBook: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "matching",
			Subsystem: "orders",
			Name:      "resting",
			Help:      "Current number of resting orders across all books.",
		}),
		TradesExecuted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "matching",
			Subsystem: "trades",
			Name:      "executed_total",
			Help:      "Total number of trades emitted by the matching engine.",
		}),
		OrderLatencyUs: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "matching",
			Subsystem: "orders",
			Name:      "latency_microseconds",
			Help:      "Order processing latency in microseconds.",
			Buckets:   []float64{1, 2, 5, 10, 25, 50, 100, 250, 500, 1000, 5000},
		}),
	}

	prometheus.MustRegister(
		c.OrdersReceived,
		c.OrdersMatched,
		c.OrdersCancelled,
		c.OrdersInBook,
		c.TradesExecuted,
		c.OrderLatencyUs,
	)

	return c
}

// Handler returns the Prometheus scrape handler.
func Handler() http.Handler {
	return promhttp.Handler()
}
