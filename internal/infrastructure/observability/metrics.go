package observability

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collector holds the Prometheus metrics of one process. It observes the
// layout simulation, the render reconciler, store calls and HTTP requests.
type Collector struct {
	registry *prometheus.Registry

	// Layout metrics
	Ticks        prometheus.Counter
	TickDuration prometheus.Histogram
	Alpha        prometheus.Gauge
	Nodes        prometheus.Gauge
	Settled      prometheus.Counter

	// Render metrics
	RenderChanges *prometheus.CounterVec

	// Store metrics
	StoreOperations *prometheus.CounterVec
	StoreDuration   *prometheus.HistogramVec

	// HTTP metrics
	HTTPRequests *prometheus.CounterVec
	HTTPDuration *prometheus.HistogramVec
}

// NewCollector creates a collector on its own registry, so tests can build
// as many as they like.
func NewCollector(namespace string) *Collector {
	registry := prometheus.NewRegistry()

	c := &Collector{
		registry: registry,
		Ticks: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "layout_ticks_total",
			Help:      "Total number of simulation ticks",
		}),
		TickDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "layout_tick_duration_seconds",
			Help:      "Time spent computing one simulation tick",
			Buckets:   []float64{.0001, .0005, .001, .005, .01, .05, .1},
		}),
		Alpha: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "layout_alpha",
			Help:      "Current simulation energy",
		}),
		Nodes: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "layout_nodes",
			Help:      "Nodes in the simulation",
		}),
		Settled: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "layout_settled_total",
			Help:      "Times the simulation came to rest",
		}),
		RenderChanges: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "render_changes_total",
			Help:      "Shapes entered, updated, exited or skipped by the reconciler",
		}, []string{"kind"}),
		StoreOperations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "store_operations_total",
			Help:      "Total number of graph store operations",
		}, []string{"operation", "status"}),
		StoreDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "store_operation_duration_seconds",
			Help:      "Graph store operation duration in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"operation"}),
		HTTPRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests",
		}, []string{"method", "route", "status"}),
		HTTPDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request duration in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route"}),
	}

	registry.MustRegister(
		c.Ticks, c.TickDuration, c.Alpha, c.Nodes, c.Settled,
		c.RenderChanges,
		c.StoreOperations, c.StoreDuration,
		c.HTTPRequests, c.HTTPDuration,
	)
	return c
}

// Registry returns the registry the metrics live in.
func (c *Collector) Registry() *prometheus.Registry { return c.registry }

// Handler serves the registry in the Prometheus text format.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{Registry: c.registry})
}

// ObserveTick records one simulation tick.
func (c *Collector) ObserveTick(alpha float64, nodes int, elapsed time.Duration) {
	c.Ticks.Inc()
	c.TickDuration.Observe(elapsed.Seconds())
	c.Alpha.Set(alpha)
	c.Nodes.Set(float64(nodes))
}

// ObserveSettled records the simulation stopping on its own.
func (c *Collector) ObserveSettled() {
	c.Alpha.Set(0)
	c.Settled.Inc()
}

// ObserveDiff records one reconciliation.
func (c *Collector) ObserveDiff(entered, updated, exited, skipped int) {
	c.RenderChanges.WithLabelValues("enter").Add(float64(entered))
	c.RenderChanges.WithLabelValues("update").Add(float64(updated))
	c.RenderChanges.WithLabelValues("exit").Add(float64(exited))
	c.RenderChanges.WithLabelValues("skip").Add(float64(skipped))
}

// ObserveStore records one store call.
func (c *Collector) ObserveStore(operation string, err error, elapsed time.Duration) {
	status := "ok"
	if err != nil {
		status = "error"
	}
	c.StoreOperations.WithLabelValues(operation, status).Inc()
	c.StoreDuration.WithLabelValues(operation).Observe(elapsed.Seconds())
}

// ObserveHTTP records one request.
func (c *Collector) ObserveHTTP(method, route string, status int, elapsed time.Duration) {
	c.HTTPRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	c.HTTPDuration.WithLabelValues(method, route).Observe(elapsed.Seconds())
}
