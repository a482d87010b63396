package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "storefront"

type Metrics struct {
	registry *prometheus.Registry

	Requests  *prometheus.CounterVec
	LatencyMS *prometheus.HistogramVec
	Checkouts *prometheus.CounterVec
	Webhooks  *prometheus.CounterVec
}

// New registers the storefront collectors on a fresh registry together with
// the Go runtime and process collectors.
func New() *Metrics {
	reg := prometheus.NewRegistry()

	m := &Metrics{
		registry: reg,
		Requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests.",
		}, []string{"route", "method", "status"}),
		LatencyMS: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_ms",
			Help:      "HTTP request latency in milliseconds.",
			Buckets:   []float64{5, 10, 25, 50, 100, 250, 500, 1000, 2500, 5000},
		}, []string{"route", "method"}),
		Checkouts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "checkouts_total",
			Help:      "Checkout attempts by flow and result.",
		}, []string{"flow", "result"}),
		Webhooks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "payment_notifications_total",
			Help:      "Payment notifications by reconciliation outcome.",
		}, []string{"outcome"}),
	}

	reg.MustRegister(
		m.Requests, m.LatencyMS, m.Checkouts, m.Webhooks,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) ObserveCheckout(flow, result string) {
	m.Checkouts.WithLabelValues(flow, result).Inc()
}

func (m *Metrics) ObserveWebhook(outcome string) {
	m.Webhooks.WithLabelValues(outcome).Inc()
}

// Middleware records request count and latency labelled by the chi route
// pattern, so path parameters do not explode label cardinality.
func (m *Metrics) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		next.ServeHTTP(ww, r)

		route := "unmatched"
		if rctx := chi.RouteContext(r.Context()); rctx != nil {
			if pattern := rctx.RoutePattern(); pattern != "" {
				route = pattern
			}
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}

		m.Requests.WithLabelValues(route, r.Method, strconv.Itoa(status)).Inc()
		m.LatencyMS.WithLabelValues(route, r.Method).Observe(float64(time.Since(start).Milliseconds()))
	})
}
