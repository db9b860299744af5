package observability

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics collects Prometheus metrics for the service.
type Metrics struct {
	registry        *prometheus.Registry
	handler         http.Handler
	requestsTotal   *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	numbers         *prometheus.CounterVec
	notifications   *prometheus.CounterVec
	payments        prometheus.Counter
	conversions     *prometheus.CounterVec
	shareCache      *prometheus.CounterVec
}

// NewMetrics initialises the registry and every collector.
func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()
	requests := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "crm_http_requests_total",
		Help: "HTTP requests by route and status code.",
	}, []string{"route", "code"})
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "crm_http_request_duration_seconds",
		Help:    "HTTP request latency by route.",
		Buckets: prometheus.DefBuckets,
	}, []string{"route"})
	numbers := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "crm_document_numbers_total",
		Help: "Document number assignment attempts by prefix and outcome.",
	}, []string{"prefix", "outcome"})
	notifications := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "crm_notifications_total",
		Help: "Client notifications by outcome.",
	}, []string{"outcome"})
	payments := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "crm_invoice_payments_total",
		Help: "Payments recorded against invoices.",
	})
	conversions := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "crm_estimate_conversions_total",
		Help: "Estimate to invoice conversions by outcome.",
	}, []string{"outcome"})
	shareCache := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "crm_share_pdf_cache_total",
		Help: "Shared estimate PDF cache lookups by result.",
	}, []string{"result"})
	registry.MustRegister(
		requests, duration, numbers, notifications, payments, conversions, shareCache,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return &Metrics{
		registry:        registry,
		handler:         promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		requestsTotal:   requests,
		requestDuration: duration,
		numbers:         numbers,
		notifications:   notifications,
		payments:        payments,
		conversions:     conversions,
		shareCache:      shareCache,
	}
}

// Handler returns the /metrics endpoint.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, http.StatusText(http.StatusServiceUnavailable), http.StatusServiceUnavailable)
		})
	}
	return m.handler
}

// Middleware records request count and latency per route pattern.
func (m *Metrics) Middleware(next http.Handler) http.Handler {
	if m == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		recorder := statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(&recorder, r)
		route := routePattern(r)
		m.requestsTotal.WithLabelValues(route, strconv.Itoa(recorder.status)).Inc()
		m.requestDuration.WithLabelValues(route).Observe(time.Since(start).Seconds())
	})
}

// NumberAssigned counts a successful number assignment.
func (m *Metrics) NumberAssigned(prefix string) {
	if m != nil {
		m.numbers.WithLabelValues(prefix, "assigned").Inc()
	}
}

// NumberConflict counts an insert that lost the uniqueness race.
func (m *Metrics) NumberConflict(prefix string) {
	if m != nil {
		m.numbers.WithLabelValues(prefix, "conflict").Inc()
	}
}

// NumberExhausted counts an assignment that ran out of retries.
func (m *Metrics) NumberExhausted(prefix string) {
	if m != nil {
		m.numbers.WithLabelValues(prefix, "exhausted").Inc()
	}
}

// NotificationResult counts notification outcomes (queued, failed, skipped).
func (m *Metrics) NotificationResult(outcome string) {
	if m != nil {
		m.notifications.WithLabelValues(outcome).Inc()
	}
}

// PaymentRecorded counts a recorded invoice payment.
func (m *Metrics) PaymentRecorded() {
	if m != nil {
		m.payments.Inc()
	}
}

// ConversionResult counts conversions (created, existing, failed, mark_failed).
func (m *Metrics) ConversionResult(outcome string) {
	if m != nil {
		m.conversions.WithLabelValues(outcome).Inc()
	}
}

// ShareCacheResult counts shared PDF cache hits and misses.
func (m *Metrics) ShareCacheResult(result string) {
	if m != nil {
		m.shareCache.WithLabelValues(result).Inc()
	}
}

// Registerer exposes the registry for custom collectors.
func (m *Metrics) Registerer() prometheus.Registerer {
	if m == nil {
		return prometheus.DefaultRegisterer
	}
	return m.registry
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func routePattern(r *http.Request) string {
	if routeCtx := chi.RouteContext(r.Context()); routeCtx != nil {
		if pattern := routeCtx.RoutePattern(); pattern != "" {
			return pattern
		}
	}
	return "unknown"
}
