// Package httpapi assembles the process router: shared middleware, the public
// auth and probe routes, and the bearer-protected domain handlers.
package httpapi

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"dynforms/internal/platform/metrics"
	platformmw "dynforms/internal/platform/middleware"
	"dynforms/pkg/platform/httputil"
	"dynforms/pkg/platform/middleware/auth"
	"dynforms/pkg/platform/middleware/metadata"
	"dynforms/pkg/platform/middleware/request"
	"dynforms/pkg/platform/middleware/requesttime"
)

// Registrar mounts a handler's routes.
type Registrar interface {
	Register(r chi.Router)
}

// HealthCheck reports whether a dependency is usable.
type HealthCheck func(ctx context.Context) error

// Deps are the cross-cutting pieces the router needs.
type Deps struct {
	Logger    *slog.Logger
	Metrics   *metrics.Metrics
	Gatherer  prometheus.Gatherer
	Validator auth.JWTValidator
	Checks    map[string]HealthCheck

	// TrustProxyHeaders resolves client addresses from forwarding headers.
	TrustProxyHeaders bool
}

// Handlers are the domain handlers. Public routes take no bearer token.
type Handlers struct {
	Public    []Registrar
	Protected []Registrar
}

const healthTimeout = 2 * time.Second

// NewRouter wires the middleware chain and every route.
func NewRouter(deps Deps, h Handlers) http.Handler {
	r := chi.NewRouter()
	r.Use(request.RequestID)
	r.Use(request.Recovery(deps.Logger))
	r.Use(requesttime.Middleware)
	r.Use(metadata.ClientMetadata(deps.TrustProxyHeaders))
	if deps.Metrics != nil {
		r.Use(platformmw.Metrics(deps.Metrics))
	}
	r.Use(request.Logger(deps.Logger))

	r.Get("/healthz", healthHandler(deps.Checks))
	gatherer := deps.Gatherer
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	r.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))

	for _, reg := range h.Public {
		reg.Register(r)
	}

	r.Group(func(r chi.Router) {
		r.Use(auth.RequireAuth(deps.Validator, deps.Logger))
		for _, reg := range h.Protected {
			reg.Register(r)
		}
	})

	return r
}

func healthHandler(checks map[string]HealthCheck) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), healthTimeout)
		defer cancel()

		status := http.StatusOK
		results := make(map[string]string, len(checks))
		for name, check := range checks {
			if err := check(ctx); err != nil {
				results[name] = err.Error()
				status = http.StatusServiceUnavailable
				continue
			}
			results[name] = "ok"
		}
		overall := "ok"
		if status != http.StatusOK {
			overall = "unavailable"
		}
		httputil.WriteJSON(w, status, map[string]any{
			"status": overall,
			"checks": results,
		})
	}
}
