// Package httpapi assembles the HTTP surface: public evaluation routes,
// admin routes behind JWT auth, and the operational endpoints.
package httpapi

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	auditapi "rollout/internal/audit"
	"rollout/internal/evaluation"
	"rollout/internal/flags"
	"rollout/internal/platform/metrics"
	"rollout/pkg/platform/httputil"
	"rollout/pkg/platform/middleware/auth"
	"rollout/pkg/platform/middleware/correlation"
	"rollout/pkg/platform/middleware/metadata"
	"rollout/pkg/platform/middleware/requesttime"
)

// HealthCheck probes one backing dependency.
type HealthCheck func(ctx context.Context) error

// Deps carries everything the router mounts.
type Deps struct {
	Logger       *slog.Logger
	Evaluation   *evaluation.Handler
	Flags        *flags.Handler
	Audit        *auditapi.Handler
	AuthVerifier *auth.Verifier
	HTTPMetrics  *metrics.HTTP

	// HealthChecks are probed by /healthz, keyed by dependency name.
	HealthChecks map[string]HealthCheck
}

// NewRouter wires all endpoints. Evaluation routes are public; flag admin and
// audit queries require an admin token.
func NewRouter(deps Deps) http.Handler {
	r := chi.NewRouter()
	r.Use(metadata.ClientMetadata, requesttime.Middleware, correlation.Middleware)
	if deps.HTTPMetrics != nil {
		r.Use(deps.HTTPMetrics.Middleware)
	}

	r.Get("/healthz", healthHandler(deps.HealthChecks))
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	r.Group(func(pub chi.Router) {
		deps.Evaluation.Register(pub)
	})

	r.Group(func(adm chi.Router) {
		adm.Use(auth.RequireAdmin(deps.AuthVerifier, deps.Logger))
		deps.Flags.Register(adm)
		deps.Audit.Register(adm)
	})

	return r
}

func healthHandler(checks map[string]HealthCheck) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		status := "ok"
		code := http.StatusOK
		deps := make(map[string]string, len(checks))
		for name, check := range checks {
			if err := check(ctx); err != nil {
				deps[name] = "unavailable"
				status = "degraded"
				code = http.StatusServiceUnavailable
				continue
			}
			deps[name] = "ok"
		}

		httputil.WriteJSON(w, code, map[string]any{
			"status":       status,
			"dependencies": deps,
		})
	}
}
