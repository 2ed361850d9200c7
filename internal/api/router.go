package api

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/pricelift/webhook-service/internal/engine"
	"github.com/pricelift/webhook-service/internal/plan"
	"github.com/pricelift/webhook-service/internal/ratelimit"
	"github.com/pricelift/webhook-service/internal/registry"
	"github.com/pricelift/webhook-service/internal/store"
	"github.com/pricelift/webhook-service/internal/worker"
)

// Deps bundles everything the router needs. Keeps main's wiring in one
// place instead of a nine-argument constructor.
type Deps struct {
	Store     *store.PostgresStore
	Registry  *registry.Registry
	FanOut    *engine.FanOutEngine
	Queue     *engine.Queue
	Breaker   *engine.CircuitBreaker
	Deliverer *worker.Deliverer
	Limiter   ratelimit.Limiter
	Plans     plan.Checker
	Logger    *slog.Logger
}

// NewRouter creates and configures the HTTP router.
func NewRouter(deps Deps) http.Handler {
	r := chi.NewRouter()

	// Middleware stack
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Heartbeat("/ping"))

	// Handlers
	endpointHandler := NewEndpointHandler(deps.Registry, deps.Deliverer, deps.Limiter, deps.Plans, deps.Breaker)
	ingestHandler := NewIngestHandler(deps.Store, deps.FanOut, deps.Logger)
	deliveryHandler := NewDeliveryHandler(deps.Store)
	dlqHandler := NewDeadLetterHandler(deps.Store)
	metricsHandler := NewMetricsHandler(deps.Store, deps.Queue)

	rateLimited := ratelimit.Middleware(deps.Limiter, ratelimit.RatingPolicy, ratelimit.ByClientIP)

	// API routes
	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/health", HealthHandler())

		r.Route("/accounts/{ownerID}/endpoints", func(r chi.Router) {
			r.Post("/", endpointHandler.Create)
			r.Get("/", endpointHandler.List)
			r.Get("/{id}", endpointHandler.Get)
			r.Delete("/{id}", endpointHandler.Delete)
			r.Get("/{id}/health", endpointHandler.Health)
			r.Post("/{id}/test", endpointHandler.Test)
		})

		r.Get("/endpoints/{id}/deliveries", deliveryHandler.ListForEndpoint)

		r.Route("/deliveries", func(r chi.Router) {
			r.Get("/", deliveryHandler.List)
			r.Get("/{id}", deliveryHandler.Get)
		})

		r.Route("/dead-letters", func(r chi.Router) {
			r.Get("/", dlqHandler.List)
			r.Post("/{id}/resolve", dlqHandler.Resolve)
		})

		// Visitor-facing producers. Ratings are abuse-prone, so they
		// sit behind the per-IP limiter; plain views are not limited.
		r.With(rateLimited).Post("/pages/{pageID}/ratings", ingestHandler.CreateRating)
		r.Post("/pages/{pageID}/views", ingestHandler.CreatePageView)

		r.Get("/metrics", metricsHandler.Metrics)
	})

	return r
}
