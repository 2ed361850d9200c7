package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/pricelift/webhook-service/internal/domain"
)

type errorResponse struct {
	Error string `json:"error"`
	Field string `json:"field,omitempty"`
}

func respondJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func respondError(w http.ResponseWriter, status int, msg string) {
	respondJSON(w, status, errorResponse{Error: msg})
}

// respondDomainError maps business errors to HTTP statuses. Anything
// unrecognized is a 500 with a generic message.
func respondDomainError(w http.ResponseWriter, err error) {
	var verr *domain.ValidationError
	if errors.As(err, &verr) {
		respondJSON(w, http.StatusUnprocessableEntity, errorResponse{Error: verr.Error(), Field: verr.Field})
		return
	}

	var rerr *domain.RateLimitError
	if errors.As(err, &rerr) {
		w.Header().Set("Retry-After", strconv.Itoa(retryAfterSeconds(rerr.ResetAt)))
		respondError(w, http.StatusTooManyRequests, "rate limit exceeded")
		return
	}

	switch {
	case errors.Is(err, domain.ErrEndpointLimit):
		respondError(w, http.StatusPaymentRequired, "endpoint limit reached, upgrade your plan to add more")
	case errors.Is(err, domain.ErrNotFound):
		respondError(w, http.StatusNotFound, "not found")
	default:
		respondError(w, http.StatusInternalServerError, "internal error")
	}
}

func retryAfterSeconds(resetAt time.Time) int {
	secs := int(time.Until(resetAt).Seconds()) + 1
	if secs < 1 {
		secs = 1
	}
	return secs
}
