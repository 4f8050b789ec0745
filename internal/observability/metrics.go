package observability

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collector bundles the Prometheus metrics of the API: HTTP traffic,
// simulation runs and store operations.
type Collector struct {
	gatherer prometheus.Gatherer

	Requests  *prometheus.CounterVec
	Durations *prometheus.HistogramVec

	SimulationDurations *prometheus.HistogramVec
	SimulationFailures  *prometheus.CounterVec

	StoreOperations *prometheus.CounterVec
}

// NewCollector registers the API metrics against the provided registerer,
// defaulting to the global Prometheus registry when nil.
func NewCollector(reg prometheus.Registerer) (*Collector, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	gatherer := prometheus.DefaultGatherer
	if g, ok := reg.(prometheus.Gatherer); ok {
		gatherer = g
	}

	requests := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "api_requests_total",
		Help: "Total number of handled HTTP requests, labeled by resource, route, and status code.",
	}, []string{"resource", "route", "code"})
	requests, err := registerCounterVec(reg, requests, "api_requests_total")
	if err != nil {
		return nil, err
	}

	durations := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "api_request_duration_seconds",
		Help:    "HTTP request latency in seconds.",
		Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10},
	}, []string{"resource", "route"})
	durations, err = registerHistogramVec(reg, durations, "api_request_duration_seconds")
	if err != nil {
		return nil, err
	}

	simDurations := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "simulation_duration_seconds",
		Help:    "Time spent materialising and projecting simulator objects.",
		Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
	}, []string{"resource"})
	simDurations, err = registerHistogramVec(reg, simDurations, "simulation_duration_seconds")
	if err != nil {
		return nil, err
	}

	simFailures := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "simulation_failures_total",
		Help: "Simulations that failed to build or project.",
	}, []string{"resource"})
	simFailures, err = registerCounterVec(reg, simFailures, "simulation_failures_total")
	if err != nil {
		return nil, err
	}

	storeOps := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "store_operations_total",
		Help: "Document store operations, labeled by collection, operation, and outcome.",
	}, []string{"collection", "op", "outcome"})
	storeOps, err = registerCounterVec(reg, storeOps, "store_operations_total")
	if err != nil {
		return nil, err
	}

	return &Collector{
		gatherer:            gatherer,
		Requests:            requests,
		Durations:           durations,
		SimulationDurations: simDurations,
		SimulationFailures:  simFailures,
		StoreOperations:     storeOps,
	}, nil
}

// GinMiddleware records request counts and durations per matched route.
func (c *Collector) GinMiddleware() gin.HandlerFunc {
	return func(ctx *gin.Context) {
		start := time.Now()
		ctx.Next()

		if c == nil {
			return
		}
		route := ctx.FullPath()
		if route == "" {
			route = "unmatched"
		}
		resource := ResourceFromRoute(route)
		code := strconv.Itoa(ctx.Writer.Status())

		if c.Requests != nil {
			c.Requests.WithLabelValues(resource, route, code).Inc()
		}
		if c.Durations != nil {
			c.Durations.WithLabelValues(resource, route).Observe(time.Since(start).Seconds())
		}
	}
}

// Handler exposes a ready-to-use /metrics handler.
func (c *Collector) Handler() http.Handler {
	gatherer := c.gatherer
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

// Gatherer returns the Prometheus gatherer associated with the collector.
func (c *Collector) Gatherer() prometheus.Gatherer {
	if c == nil {
		return nil
	}
	return c.gatherer
}

// ResourceFromRoute returns the first path segment of a route template,
// "unknown" when there is none.
func ResourceFromRoute(route string) string {
	route = strings.TrimPrefix(route, "/")
	first, _, _ := strings.Cut(route, "/")
	if first == "" || strings.HasPrefix(first, ":") {
		return "unknown"
	}
	return first
}

func registerCounterVec(reg prometheus.Registerer, vec *prometheus.CounterVec, name string) (*prometheus.CounterVec, error) {
	if err := reg.Register(vec); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(*prometheus.CounterVec); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return vec, nil
}

func registerHistogramVec(reg prometheus.Registerer, vec *prometheus.HistogramVec, name string) (*prometheus.HistogramVec, error) {
	if err := reg.Register(vec); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(*prometheus.HistogramVec); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return vec, nil
}
