package api

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/pricelift/webhook-service/internal/domain"
	"github.com/pricelift/webhook-service/internal/engine"
)

// EventWriter persists producer events.
type EventWriter interface {
	CreateEvent(ctx context.Context, ownerID string, eventType domain.EventType, payload []byte) (*domain.Event, error)
}

// IngestHandler accepts visitor-facing producer traffic and turns it
// into webhook events. Producers always get a 202: webhook health is
// never the visitor's problem.
type IngestHandler struct {
	store  EventWriter
	fanout *engine.FanOutEngine
	logger *slog.Logger
}

func NewIngestHandler(s EventWriter, f *engine.FanOutEngine, logger *slog.Logger) *IngestHandler {
	return &IngestHandler{store: s, fanout: f, logger: logger}
}

type ratingRequest struct {
	OwnerID   string `json:"owner_id"`
	Score     int    `json:"score"`
	VisitorID string `json:"visitor_id,omitempty"`
}

type pageViewRequest struct {
	OwnerID   string `json:"owner_id"`
	VisitorID string `json:"visitor_id,omitempty"`
	Referrer  string `json:"referrer,omitempty"`
}

type acceptedResponse struct {
	Status  string `json:"status"`
	EventID string `json:"event_id,omitempty"`
}

func (h *IngestHandler) CreateRating(w http.ResponseWriter, r *http.Request) {
	pageID := chi.URLParam(r, "pageID")

	var req ratingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.OwnerID == "" {
		respondError(w, http.StatusBadRequest, "owner_id is required")
		return
	}
	if req.Score < 1 || req.Score > 5 {
		respondDomainError(w, &domain.ValidationError{Field: "score", Reason: "must be between 1 and 5"})
		return
	}

	payload := map[string]any{
		"page_id": pageID,
		"score":   req.Score,
	}
	if req.VisitorID != "" {
		payload["visitor_id"] = req.VisitorID
	}

	h.ingest(w, r, req.OwnerID, domain.EventRating, payload)
}

func (h *IngestHandler) CreatePageView(w http.ResponseWriter, r *http.Request) {
	pageID := chi.URLParam(r, "pageID")

	var req pageViewRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.OwnerID == "" {
		respondError(w, http.StatusBadRequest, "owner_id is required")
		return
	}

	payload := map[string]any{
		"page_id": pageID,
	}
	if req.VisitorID != "" {
		payload["visitor_id"] = req.VisitorID
	}
	if req.Referrer != "" {
		payload["referrer"] = req.Referrer
	}

	h.ingest(w, r, req.OwnerID, domain.EventPageView, payload)
}

// ingest persists the event and fans it out. Only fan-out failures
// are swallowed: the event row is the business action, and once it
// commits the visitor sees 202 regardless of webhook health. A failed
// persist means the event was not recorded at all, which the producer
// must hear about.
func (h *IngestHandler) ingest(w http.ResponseWriter, r *http.Request, ownerID string, eventType domain.EventType, payload map[string]any) {
	raw, err := json.Marshal(payload)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to encode payload")
		return
	}

	event, err := h.store.CreateEvent(r.Context(), ownerID, eventType, raw)
	if err != nil {
		h.logger.Error("failed to persist event",
			"owner_id", ownerID,
			"event_type", eventType,
			"error", err,
		)
		respondError(w, http.StatusInternalServerError, "failed to record event")
		return
	}

	if _, err := h.fanout.Dispatch(r.Context(), event); err != nil {
		h.logger.Error("fan-out failed",
			"event_id", event.ID,
			"event_type", eventType,
			"error", err,
		)
	}

	respondJSON(w, http.StatusAccepted, acceptedResponse{Status: "accepted", EventID: event.ID})
}
