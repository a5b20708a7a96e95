package httptransport

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	consenthandler "nuca/internal/consent/handler"
	erasurehandler "nuca/internal/erasure/handler"
	healthhandler "nuca/internal/health/handler"
	"nuca/internal/platform/metrics"
	"nuca/internal/platform/middleware"
	respond "nuca/internal/transport/http/json"
)

// Registrar attaches a handler's routes to the router.
type Registrar interface {
	Register(r chi.Router)
}

// Handlers groups the domain handlers the router mounts behind auth.
type Handlers struct {
	Consent *consenthandler.Handler
	Erasure *erasurehandler.Handler
	Health  *healthhandler.Handler
}

// HealthChecker reports readiness of a backing dependency.
type HealthChecker func() error

// NewRouter wires all endpoints with the middleware chain. Every /api/v1
// route requires a valid bearer token; healthz and metrics stay open.
func NewRouter(h Handlers, validator middleware.JWTValidator, logger *slog.Logger, m *metrics.Metrics, checks map[string]HealthChecker) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.Recovery(logger))
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger(logger))
	r.Use(middleware.Timeout(30 * time.Second))
	r.Use(middleware.Latency(m))

	r.Get("/healthz", handleHealthz(checks))
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	r.Group(func(r chi.Router) {
		r.Use(middleware.ContentTypeJSON)
		r.Use(middleware.RequireAuth(validator, logger))

		for _, reg := range []Registrar{h.Consent, h.Erasure, h.Health} {
			reg.Register(r)
		}
	})

	return r
}

func handleHealthz(checks map[string]HealthChecker) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		status := http.StatusOK
		body := map[string]string{"status": "ok"}
		for name, check := range checks {
			if err := check(); err != nil {
				status = http.StatusServiceUnavailable
				body["status"] = "degraded"
				body[name] = err.Error()
			} else {
				body[name] = "ok"
			}
		}
		respond.WriteJSON(w, status, body)
	}
}
