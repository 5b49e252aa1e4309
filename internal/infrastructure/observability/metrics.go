// Package observability exposes Prometheus metrics for the HTTP API and the
// fiscal validation round trip.
package observability

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"salesledger/internal/domain/fiscal"
)

// Metrics owns a private registry so tests and multiple servers in one
// process do not collide on the global one.
type Metrics struct {
	registry        *prometheus.Registry
	handler         http.Handler
	requestsTotal   *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	validations     *prometheus.CounterVec
	validationTime  *prometheus.HistogramVec
}

func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()
	requests := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "salesledger_http_requests_total",
		Help: "HTTP requests by route, method and status code.",
	}, []string{"route", "method", "code"})
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "salesledger_http_request_duration_seconds",
		Help:    "HTTP request latency by route.",
		Buckets: prometheus.DefBuckets,
	}, []string{"route"})
	validations := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "salesledger_validations_total",
		Help: "Fiscal validations by document kind and outcome.",
	}, []string{"kind", "outcome"})
	validationTime := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "salesledger_validation_duration_seconds",
		Help:    "Time spent waiting for the validation service.",
		Buckets: []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
	}, []string{"kind"})
	registry.MustRegister(requests, duration, validations, validationTime)

	return &Metrics{
		registry:        registry,
		handler:         promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		requestsTotal:   requests,
		requestDuration: duration,
		validations:     validations,
		validationTime:  validationTime,
	}
}

// Handler serves the /metrics endpoint.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, http.StatusText(http.StatusServiceUnavailable), http.StatusServiceUnavailable)
		})
	}
	return m.handler
}

// Registerer exposes the registry for custom collectors.
func (m *Metrics) Registerer() prometheus.Registerer {
	if m == nil {
		return prometheus.DefaultRegisterer
	}
	return m.registry
}

// Middleware records request count and latency keyed by the route template,
// so /sales/:id stays one series.
func (m *Metrics) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if m == nil {
			c.Next()
			return
		}
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		m.requestsTotal.WithLabelValues(route, c.Request.Method, strconv.Itoa(c.Writer.Status())).Inc()
		m.requestDuration.WithLabelValues(route).Observe(time.Since(start).Seconds())
	}
}

// InstrumentValidator counts the outcomes of v. Errors are recorded with the
// outcome "error".
func (m *Metrics) InstrumentValidator(v fiscal.Validator) fiscal.Validator {
	if m == nil {
		return v
	}
	return &instrumentedValidator{next: v, metrics: m}
}

type instrumentedValidator struct {
	next    fiscal.Validator
	metrics *Metrics
}

func (v *instrumentedValidator) Validate(ctx context.Context, req fiscal.Request) (fiscal.Result, error) {
	start := time.Now()
	res, err := v.next.Validate(ctx, req)
	v.metrics.validationTime.WithLabelValues(string(req.Kind)).Observe(time.Since(start).Seconds())

	outcome := string(res.Outcome)
	if err != nil {
		outcome = "error"
	}
	v.metrics.validations.WithLabelValues(string(req.Kind), outcome).Inc()
	return res, err
}
