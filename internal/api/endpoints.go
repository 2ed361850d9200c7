package api

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/pricelift/webhook-service/internal/domain"
	"github.com/pricelift/webhook-service/internal/engine"
	"github.com/pricelift/webhook-service/internal/plan"
	"github.com/pricelift/webhook-service/internal/ratelimit"
	"github.com/pricelift/webhook-service/internal/registry"
	"github.com/pricelift/webhook-service/internal/worker"
)

type EndpointHandler struct {
	registry  *registry.Registry
	deliverer *worker.Deliverer
	limiter   ratelimit.Limiter
	plans     plan.Checker
	breaker   *engine.CircuitBreaker
}

func NewEndpointHandler(reg *registry.Registry, d *worker.Deliverer, l ratelimit.Limiter, p plan.Checker, cb *engine.CircuitBreaker) *EndpointHandler {
	return &EndpointHandler{registry: reg, deliverer: d, limiter: l, plans: p, breaker: cb}
}

// Create registers a webhook endpoint. The generated secret appears in
// this response only; every later read returns a redacted preview.
func (h *EndpointHandler) Create(w http.ResponseWriter, r *http.Request) {
	ownerID := chi.URLParam(r, "ownerID")

	var req domain.CreateEndpointRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	ep, err := h.registry.Create(r.Context(), ownerID, req)
	if err != nil {
		respondDomainError(w, err)
		return
	}

	respondJSON(w, http.StatusCreated, ep)
}

func (h *EndpointHandler) List(w http.ResponseWriter, r *http.Request) {
	ownerID := chi.URLParam(r, "ownerID")

	endpoints, err := h.registry.List(r.Context(), ownerID)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to list endpoints")
		return
	}

	respondJSON(w, http.StatusOK, endpoints)
}

func (h *EndpointHandler) Get(w http.ResponseWriter, r *http.Request) {
	ownerID := chi.URLParam(r, "ownerID")
	id := chi.URLParam(r, "id")

	ep, err := h.registry.GetOwned(r.Context(), id, ownerID)
	if err != nil {
		respondDomainError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, ep.Redacted())
}

func (h *EndpointHandler) Delete(w http.ResponseWriter, r *http.Request) {
	ownerID := chi.URLParam(r, "ownerID")
	id := chi.URLParam(r, "id")

	if err := h.registry.Delete(r.Context(), id, ownerID); err != nil {
		respondDomainError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

type endpointHealthResponse struct {
	EndpointID     string                     `json:"endpoint_id"`
	URL            string                     `json:"url"`
	CircuitBreaker engine.CircuitBreakerState `json:"circuit_breaker"`
}

// Health reports the endpoint's circuit breaker state, the quickest
// answer to "why did my deliveries stop".
func (h *EndpointHandler) Health(w http.ResponseWriter, r *http.Request) {
	ownerID := chi.URLParam(r, "ownerID")
	id := chi.URLParam(r, "id")

	ep, err := h.registry.GetOwned(r.Context(), id, ownerID)
	if err != nil {
		respondDomainError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, endpointHealthResponse{
		EndpointID:     ep.ID,
		URL:            ep.URL,
		CircuitBreaker: h.breaker.GetState(r.Context(), ep.ID),
	})
}

// planOf reads the caller's billing plan resolved upstream by the
// session layer. Absent header means a free account.
func planOf(r *http.Request) string {
	if p := r.Header.Get("X-Account-Plan"); p != "" {
		return p
	}
	return "free"
}

// Test fires one synchronous delivery at the endpoint and returns the
// outcome. Gated by plan entitlement and a per-account rate limit so a
// dashboard retry button cannot hammer a customer's server.
func (h *EndpointHandler) Test(w http.ResponseWriter, r *http.Request) {
	ownerID := chi.URLParam(r, "ownerID")
	id := chi.URLParam(r, "id")

	if !h.plans.HasFeature(planOf(r), plan.FeatureWebhooks) {
		respondError(w, http.StatusForbidden, "feature_not_in_plan")
		return
	}

	res := h.limiter.Check(r.Context(), "test-send:"+ownerID, ratelimit.TestSendPolicy)
	if !res.Allowed {
		respondDomainError(w, &domain.RateLimitError{Remaining: res.Remaining, ResetAt: res.ResetAt})
		return
	}

	ep, err := h.registry.GetOwned(r.Context(), id, ownerID)
	if err != nil {
		respondDomainError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, h.deliverer.SendTest(r.Context(), ep))
}
