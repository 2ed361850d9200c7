package domain

import (
	"encoding/json"
	"time"
)

// EventType is the closed enumeration of domain events that can be
// delivered over webhooks. Unknown names are rejected at the registry
// boundary, never stored.
type EventType string

const (
	// EventPageView fires when a public pricing page is viewed.
	EventPageView EventType = "page_view"
	// EventRating fires when a visitor submits or updates a rating.
	EventRating EventType = "rating"
)

// KnownEventTypes lists every valid event type, in a stable order.
func KnownEventTypes() []EventType {
	return []EventType{EventPageView, EventRating}
}

// ValidEventType reports whether s names a known event type.
func ValidEventType(s string) bool {
	switch EventType(s) {
	case EventPageView, EventRating:
		return true
	}
	return false
}

// Event is a persisted business event, the thing that triggers
// webhook fan-out. Producers record the event first; delivery is
// strictly best-effort relative to it.
type Event struct {
	ID        string          `json:"id"`
	OwnerID   string          `json:"owner_id"`
	EventType EventType       `json:"event_type"`
	Payload   json.RawMessage `json:"payload"`
	CreatedAt time.Time       `json:"created_at"`
}

// Envelope is the wire body POSTed to an endpoint. It is marshaled
// exactly once per delivery attempt; the signature is computed over
// those exact bytes.
type Envelope struct {
	EventType  EventType       `json:"event_type"`
	DeliveryID string          `json:"delivery_id"`
	Timestamp  time.Time       `json:"timestamp"`
	Payload    json.RawMessage `json:"payload"`
}
