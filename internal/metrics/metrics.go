package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
)

var (
	TicksTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "orderhub_automation_ticks_total",
			Help: "Total number of automation ticks that ran",
		},
	)

	TicksSkippedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "orderhub_automation_ticks_skipped_total",
			Help: "Ticks skipped because the previous one was still running",
		},
	)

	TickDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "orderhub_automation_tick_duration_seconds",
			Help:    "Duration of automation ticks",
			Buckets: []float64{1, 5, 15, 30, 60, 120, 300, 600},
		},
	)

	OrdersAccepted = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "orderhub_orders_accepted_total",
			Help: "Orders accepted on their marketplace",
		},
		[]string{"marketplace"},
	)

	DDTsCreated = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "orderhub_ddts_created_total",
			Help: "Delivery notes created in the invoicing system",
		},
		[]string{"marketplace"},
	)

	DDTLinesFailed = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "orderhub_ddt_lines_failed_total",
			Help: "Delivery note lines the invoicing system rejected",
		},
	)

	OrderErrors = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "orderhub_order_errors_total",
			Help: "Order processing failures by step",
		},
		[]string{"marketplace", "step"},
	)

	AdapterErrors = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "orderhub_adapter_errors_total",
			Help: "Marketplace adapter call failures",
		},
		[]string{"marketplace", "op"},
	)

	DisableOutcomes = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "orderhub_disable_outcomes_total",
			Help: "Disable-everywhere outcomes per channel",
		},
		[]string{"channel", "outcome"},
	)

	HTTPRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "orderhub_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"route", "method", "status"},
	)

	HTTPRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "orderhub_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"route", "method"},
	)
)

// Register registers all metrics with the default registry.
func Register() {
	prometheus.MustRegister(TicksTotal)
	prometheus.MustRegister(TicksSkippedTotal)
	prometheus.MustRegister(TickDuration)
	prometheus.MustRegister(OrdersAccepted)
	prometheus.MustRegister(DDTsCreated)
	prometheus.MustRegister(DDTLinesFailed)
	prometheus.MustRegister(OrderErrors)
	prometheus.MustRegister(AdapterErrors)
	prometheus.MustRegister(DisableOutcomes)
	prometheus.MustRegister(HTTPRequestsTotal)
	prometheus.MustRegister(HTTPRequestDuration)
}

// Instrument records request count and latency labelled by chi route pattern.
func Instrument(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		route := "unmatched"
		if rc := chi.RouteContext(r.Context()); rc != nil && rc.RoutePattern() != "" {
			route = rc.RoutePattern()
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		HTTPRequestsTotal.WithLabelValues(route, r.Method, strconv.Itoa(status)).Inc()
		HTTPRequestDuration.WithLabelValues(route, r.Method).Observe(time.Since(start).Seconds())
	})
}
