package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "storefront"

type ServerMetrics struct {
	Requests  *prometheus.CounterVec
	LatencyMS *prometheus.HistogramVec
}

func NewServerMetrics(reg prometheus.Registerer, service string) *ServerMetrics {
	requests := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: service,
		Name:      "http_requests_total",
		Help:      "Total number of HTTP requests.",
	}, []string{"route", "status"})
	latency := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: service,
		Name:      "http_request_duration_ms",
		Help:      "HTTP request latency in milliseconds.",
		Buckets:   []float64{5, 10, 25, 50, 100, 250, 500, 1000, 2500, 5000},
	}, []string{"route"})

	reg.MustRegister(requests, latency)
	return &ServerMetrics{Requests: requests, LatencyMS: latency}
}

// Middleware records every request under its chi route pattern.
func (m *ServerMetrics) Middleware(next http.Handler) http.Handler {
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
		m.Requests.WithLabelValues(route, strconv.Itoa(status)).Inc()
		m.LatencyMS.WithLabelValues(route).Observe(float64(time.Since(start).Milliseconds()))
	})
}

// Orders counts domain events. A nil *Orders is a no-op.
type Orders struct {
	Created        *prometheus.CounterVec
	StatusChanges  *prometheus.CounterVec
	CartPersistErr prometheus.Counter
}

func NewOrders(reg prometheus.Registerer) *Orders {
	o := &Orders{
		Created: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "orders_created_total",
			Help:      "Orders created, by payment method.",
		}, []string{"payment_method"}),
		StatusChanges: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "order_status_changes_total",
			Help:      "Admin status changes, by source and target status.",
		}, []string{"from", "to"}),
		CartPersistErr: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cart_persist_failures_total",
			Help:      "Cart writes to durable storage that failed.",
		}),
	}
	reg.MustRegister(o.Created, o.StatusChanges, o.CartPersistErr)
	return o
}

func (o *Orders) OrderCreated(method string) {
	if o == nil {
		return
	}
	o.Created.WithLabelValues(method).Inc()
}

func (o *Orders) StatusChanged(from, to string) {
	if o == nil {
		return
	}
	o.StatusChanges.WithLabelValues(from, to).Inc()
}

// CartPersisted is shaped as a cart.WithPersistHook callback.
func (o *Orders) CartPersisted(err error) {
	if o == nil || err == nil {
		return
	}
	o.CartPersistErr.Inc()
}

func Handler(g prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}
