// Package registry owns webhook endpoint lifecycle: validation,
// secret generation, the per-account cap, and secret redaction.
// It does not enforce authorization; callers re-check ownership.
package registry

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"log/slog"
	"net/url"
	"strings"

	"github.com/oklog/ulid/v2"
	"github.com/pricelift/webhook-service/internal/domain"
)

// EndpointStore is the persistence the registry needs.
type EndpointStore interface {
	CreateEndpoint(ctx context.Context, ep domain.WebhookEndpoint) (*domain.WebhookEndpoint, error)
	GetEndpoint(ctx context.Context, id string) (*domain.WebhookEndpoint, error)
	ListEndpoints(ctx context.Context, ownerID string) ([]domain.WebhookEndpoint, error)
	DeleteEndpoint(ctx context.Context, id, ownerID string) error
}

type Registry struct {
	store  EndpointStore
	logger *slog.Logger
}

func New(store EndpointStore, logger *slog.Logger) *Registry {
	return &Registry{store: store, logger: logger}
}

// Create validates the request, generates the id and signing secret,
// and persists the endpoint. The returned record is the only place the
// full secret is ever exposed.
func (r *Registry) Create(ctx context.Context, ownerID string, req domain.CreateEndpointRequest) (*domain.WebhookEndpoint, error) {
	events, err := validateRequest(req)
	if err != nil {
		return nil, err
	}

	secret, err := generateSecret()
	if err != nil {
		return nil, fmt.Errorf("generating secret: %w", err)
	}

	ep := domain.WebhookEndpoint{
		ID:      newEndpointID(),
		OwnerID: ownerID,
		Name:    req.Name,
		URL:     req.URL,
		Events:  events,
		Secret:  secret,
	}

	created, err := r.store.CreateEndpoint(ctx, ep)
	if err != nil {
		// ErrEndpointLimit passes through untouched so the API can
		// render the upgrade prompt.
		return nil, err
	}

	r.logger.Info("endpoint created",
		"endpoint_id", created.ID,
		"owner_id", ownerID,
		"events", req.Events,
	)

	return created, nil
}

// List returns the account's endpoints with secrets redacted to a
// preview. The full secret never leaves the registry after creation.
func (r *Registry) List(ctx context.Context, ownerID string) ([]domain.WebhookEndpoint, error) {
	endpoints, err := r.store.ListEndpoints(ctx, ownerID)
	if err != nil {
		return nil, err
	}

	redacted := make([]domain.WebhookEndpoint, len(endpoints))
	for i, ep := range endpoints {
		redacted[i] = ep.Redacted()
	}
	return redacted, nil
}

// Get returns the full record including the secret, for internal use
// by dispatch and test-send. Ownership is the caller's problem.
func (r *Registry) Get(ctx context.Context, id string) (*domain.WebhookEndpoint, error) {
	return r.store.GetEndpoint(ctx, id)
}

// GetOwned returns the full record if ownerID owns it, otherwise
// domain.ErrNotFound (existence of other accounts' endpoints is not
// disclosed).
func (r *Registry) GetOwned(ctx context.Context, id, ownerID string) (*domain.WebhookEndpoint, error) {
	ep, err := r.store.GetEndpoint(ctx, id)
	if err != nil {
		return nil, err
	}
	if ep == nil || ep.OwnerID != ownerID {
		return nil, domain.ErrNotFound
	}
	return ep, nil
}

// Delete removes an endpoint owned by ownerID.
func (r *Registry) Delete(ctx context.Context, id, ownerID string) error {
	if err := r.store.DeleteEndpoint(ctx, id, ownerID); err != nil {
		return err
	}
	r.logger.Info("endpoint deleted", "endpoint_id", id, "owner_id", ownerID)
	return nil
}

func validateRequest(req domain.CreateEndpointRequest) ([]domain.EventType, error) {
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return nil, &domain.ValidationError{Field: "name", Reason: "required"}
	}
	if len(req.Name) > domain.MaxEndpointNameLength {
		return nil, &domain.ValidationError{
			Field:  "name",
			Reason: fmt.Sprintf("must be at most %d characters", domain.MaxEndpointNameLength),
		}
	}

	u, err := url.Parse(req.URL)
	if err != nil {
		return nil, &domain.ValidationError{Field: "url", Reason: "not a valid URL"}
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, &domain.ValidationError{Field: "url", Reason: "scheme must be http or https"}
	}
	if u.Host == "" {
		return nil, &domain.ValidationError{Field: "url", Reason: "host is required"}
	}

	if len(req.Events) == 0 {
		return nil, &domain.ValidationError{Field: "events", Reason: "at least one event type is required"}
	}
	seen := map[domain.EventType]bool{}
	events := make([]domain.EventType, 0, len(req.Events))
	for _, e := range req.Events {
		if !domain.ValidEventType(e) {
			return nil, &domain.ValidationError{
				Field:  "events",
				Reason: fmt.Sprintf("unknown event type %q", e),
			}
		}
		et := domain.EventType(e)
		if !seen[et] {
			seen[et] = true
			events = append(events, et)
		}
	}

	return events, nil
}

func newEndpointID() string {
	return "ep_" + ulid.Make().String()
}

// generateSecret returns a fresh whsec_-prefixed signing key from
// 32 bytes of crypto randomness.
func generateSecret() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return "whsec_" + hex.EncodeToString(buf), nil
}
