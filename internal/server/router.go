package server

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"alumni-tracker/internal/server/interceptors"
)

// Registrar mounts a set of routes on a router. Every domain handler implements it.
type Registrar interface {
	Register(r chi.Router)
}

// RouterDeps holds what the HTTP router needs.
type RouterDeps struct {
	// Resolver turns bearer tokens into principals. Required.
	Resolver interceptors.PrincipalResolver
	// Handlers are mounted in order.
	Handlers []Registrar
	// Health answers GET /healthz. If nil, the route is not mounted.
	Health http.Handler
	// Gatherer backs GET /metrics. If nil, the route is not mounted.
	Gatherer prometheus.Gatherer
	Logger   *slog.Logger
}

// NewRouter builds the HTTP API: request id, panic recovery, client IP, access logging and
// bearer-token resolution wrap every route, and the whole tree is traced with otelhttp.
func NewRouter(deps RouterDeps) http.Handler {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(interceptors.ClientIP)
	r.Use(interceptors.RequestLogger(logger))

	if deps.Health != nil {
		r.Method(http.MethodGet, "/healthz", deps.Health)
	}
	if deps.Gatherer != nil {
		r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(deps.Gatherer, promhttp.HandlerOpts{}))
	}

	r.Group(func(r chi.Router) {
		r.Use(interceptors.Authenticate(deps.Resolver, logger))
		for _, h := range deps.Handlers {
			h.Register(r)
		}
	})
	return otelhttp.NewHandler(r, "alumni-tracker",
		otelhttp.WithSpanNameFormatter(func(_ string, r *http.Request) string {
			return r.Method + " " + r.URL.Path
		}),
	)
}
