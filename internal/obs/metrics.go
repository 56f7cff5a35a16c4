package obs

import (
	"strconv"
	"sync"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// HTTP metrics
var (
	httpInFlight = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "http_in_flight_requests",
		Help: "In-flight HTTP requests.",
	})

	httpRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests.",
		},
		[]string{"method", "path", "status"},
	)

	httpRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request latencies in seconds.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)
)

// Allocation metrics
var (
	OrdersPlaced = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "allocation_orders_placed_total",
			Help: "placeOrder outcomes by result code.",
		},
		[]string{"result"},
	)

	OrderTransitions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "allocation_order_transitions_total",
			Help: "Order status transitions.",
		},
		[]string{"to"},
	)

	TagsCompleted = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "allocation_tags_completed_total",
		Help: "Share tags that reached full capacity.",
	})

	PlaceDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "allocation_place_order_duration_seconds",
		Help:    "Time spent inside placeOrder, lock wait included.",
		Buckets: prometheus.DefBuckets,
	})

	PaymentMismatches = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "allocation_payment_mismatch_total",
		Help: "Confirmations whose payment intent did not match the order.",
	})
)

var initOnce sync.Once

// Init registers all metrics in the default registry. Safe to call more than once.
func Init() {
	initOnce.Do(func() {
		prometheus.MustRegister(
			httpInFlight, httpRequestsTotal, httpRequestDuration,
			OrdersPlaced, OrderTransitions, TagsCompleted, PlaceDuration, PaymentMismatches,
		)
	})
}

// Handler serves the Prometheus exposition format.
func Handler() fiber.Handler {
	return adaptor.HTTPHandler(promhttp.Handler())
}

// Instrument records RPS, latency and in-flight requests. The route pattern is used as
// the path label to keep cardinality bounded.
func Instrument() fiber.Handler {
	return func(c *fiber.Ctx) error {
		httpInFlight.Inc()
		start := time.Now()

		err := c.Next()

		status := c.Response().StatusCode()
		if err != nil {
			if fe, ok := err.(*fiber.Error); ok {
				status = fe.Code
			} else {
				status = fiber.StatusInternalServerError
			}
		}
		path := c.Route().Path
		code := strconv.Itoa(status)
		httpRequestDuration.WithLabelValues(c.Method(), path, code).Observe(time.Since(start).Seconds())
		httpRequestsTotal.WithLabelValues(c.Method(), path, code).Inc()
		httpInFlight.Dec()
		return err
	}
}
