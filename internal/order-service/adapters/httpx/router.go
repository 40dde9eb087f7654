package httpx

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/jcmexdev/order-inventory/internal/order-service/adapters/httpx/middlewares"
	"github.com/jcmexdev/order-inventory/internal/pkg/metrics"
)

// NewRouter mounts the order API. metricsHandler may be nil to omit /metrics.
func NewRouter(handler *Handler, serverMetrics *metrics.ServerMetrics, metricsHandler http.Handler) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middlewares.EchoRequestID)
	r.Use(middlewares.NameSpanByRoute)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	if serverMetrics != nil {
		r.Use(middlewares.RecordRequests(serverMetrics))
	}

	r.Get("/health", handler.Health)
	r.Post("/orders", handler.CreateOrder)
	r.Get("/orders/{id}", handler.GetOrderByID)
	if metricsHandler != nil {
		r.Method(http.MethodGet, "/metrics", metricsHandler)
	}

	return otelhttp.NewHandler(r, "order-service",
		otelhttp.WithSpanNameFormatter(func(_ string, r *http.Request) string {
			return r.Method
		}),
	)
}
