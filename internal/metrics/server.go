package metrics

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Routes returns the worker's operational HTTP surface: the Prometheus
// scrape endpoint plus liveness and readiness probes.
func Routes(gatherer prometheus.Gatherer, checker *HealthChecker) chi.Router {
	r := chi.NewRouter()
	r.Get("/healthz", checker.HandleLiveness)
	r.Get("/readyz", checker.HandleReadiness)
	r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	return r
}
