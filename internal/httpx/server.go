package httpx

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/ariefcatur/go-storefront-orders/internal/metrics"
)

// NewRouter returns the base router with health and metrics endpoints. m and
// g may be nil.
func NewRouter(m *metrics.ServerMetrics, g prometheus.Gatherer) *chi.Mux {
	r := chi.NewRouter()
	r.Use(middleware.RequestID, middleware.RealIP, middleware.Logger, middleware.Recoverer)
	if m != nil {
		r.Use(m.Middleware)
	}
	r.Use(middleware.Timeout(15 * time.Second))
	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	if g != nil {
		r.Method(http.MethodGet, "/metrics", metrics.Handler(g))
	}
	return r
}
