package domain

import (
	"time"
)

// MaxEndpointsPerAccount is the hard cap on webhook endpoints one
// account may own. Creates beyond the cap fail with ErrEndpointLimit.
const MaxEndpointsPerAccount = 10

// MaxEndpointNameLength bounds the user-supplied display label.
const MaxEndpointNameLength = 100

// WebhookEndpoint is a user-configured HTTP destination subscribed to
// one or more event types. The secret is generated server-side at
// creation and is only ever serialized in full once, in the create
// response; every other read path carries a redacted preview.
type WebhookEndpoint struct {
	ID        string      `json:"id"`
	OwnerID   string      `json:"owner_id"`
	Name      string      `json:"name"`
	URL       string      `json:"url"`
	Events    []EventType `json:"events"`
	Secret    string      `json:"secret,omitempty"`
	CreatedAt time.Time   `json:"created_at"`
}

type CreateEndpointRequest struct {
	Name   string   `json:"name"`
	URL    string   `json:"url"`
	Events []string `json:"events"`
}

// SubscribesTo reports whether the endpoint is subscribed to et.
func (e *WebhookEndpoint) SubscribesTo(et EventType) bool {
	for _, sub := range e.Events {
		if sub == et {
			return true
		}
	}
	return false
}

// secretPreviewLen is how many leading characters of a secret survive
// redaction. Enough to recognize a key, useless to reconstruct it.
const secretPreviewLen = 8

// RedactSecret returns a short non-reversible preview of a signing
// secret for list and read views.
func RedactSecret(secret string) string {
	if len(secret) <= secretPreviewLen {
		return secret
	}
	return secret[:secretPreviewLen] + "…"
}

// Redacted returns a copy of the endpoint with the secret replaced by
// its preview.
func (e WebhookEndpoint) Redacted() WebhookEndpoint {
	e.Secret = RedactSecret(e.Secret)
	return e
}
