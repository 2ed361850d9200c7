package api

import (
	"net/http"

	"github.com/pricelift/webhook-service/internal/engine"
	"github.com/pricelift/webhook-service/internal/store"
)

type MetricsHandler struct {
	store *store.PostgresStore
	queue *engine.Queue
}

func NewMetricsHandler(s *store.PostgresStore, q *engine.Queue) *MetricsHandler {
	return &MetricsHandler{store: s, queue: q}
}

type metricsResponse struct {
	*store.DeliveryMetrics
	QueueDepth int64 `json:"queue_depth"`
}

func (h *MetricsHandler) Metrics(w http.ResponseWriter, r *http.Request) {
	metrics, err := h.store.GetDeliveryMetrics(r.Context())
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to compute metrics")
		return
	}

	depth, err := h.queue.Depth(r.Context())
	if err != nil {
		// Redis being down should not blank the whole metrics page.
		depth = -1
	}

	respondJSON(w, http.StatusOK, metricsResponse{DeliveryMetrics: metrics, QueueDepth: depth})
}
