package registry

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"strings"
	"sync"
	"testing"

	"github.com/pricelift/webhook-service/internal/domain"
)

// stubStore implements EndpointStore in memory, enforcing the
// per-account cap the way the postgres store does.
type stubStore struct {
	mu        sync.Mutex
	endpoints map[string]domain.WebhookEndpoint
}

func newStubStore() *stubStore {
	return &stubStore{endpoints: make(map[string]domain.WebhookEndpoint)}
}

func (s *stubStore) CreateEndpoint(_ context.Context, ep domain.WebhookEndpoint) (*domain.WebhookEndpoint, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	count := 0
	for _, existing := range s.endpoints {
		if existing.OwnerID == ep.OwnerID {
			count++
		}
	}
	if count >= domain.MaxEndpointsPerAccount {
		return nil, domain.ErrEndpointLimit
	}

	s.endpoints[ep.ID] = ep
	return &ep, nil
}

func (s *stubStore) GetEndpoint(_ context.Context, id string) (*domain.WebhookEndpoint, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ep, ok := s.endpoints[id]
	if !ok {
		return nil, nil
	}
	return &ep, nil
}

func (s *stubStore) ListEndpoints(_ context.Context, ownerID string) ([]domain.WebhookEndpoint, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.WebhookEndpoint
	for _, ep := range s.endpoints {
		if ep.OwnerID == ownerID {
			out = append(out, ep)
		}
	}
	return out, nil
}

func (s *stubStore) DeleteEndpoint(_ context.Context, id, ownerID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	ep, ok := s.endpoints[id]
	if !ok || ep.OwnerID != ownerID {
		return domain.ErrNotFound
	}
	delete(s.endpoints, id)
	return nil
}

func testRegistry() (*Registry, *stubStore) {
	store := newStubStore()
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
	return New(store, logger), store
}

func validReq() domain.CreateEndpointRequest {
	return domain.CreateEndpointRequest{
		Name:   "CRM",
		URL:    "https://example.com/hook",
		Events: []string{"rating"},
	}
}

func TestCreate_GeneratesIDAndSecret(t *testing.T) {
	r, _ := testRegistry()

	ep, err := r.Create(context.Background(), "acct-1", validReq())
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	if !strings.HasPrefix(ep.ID, "ep_") {
		t.Errorf("id = %q, want ep_ prefix", ep.ID)
	}
	if !strings.HasPrefix(ep.Secret, "whsec_") {
		t.Errorf("secret = %q, want whsec_ prefix", ep.Secret)
	}
	// whsec_ + 32 bytes hex
	if len(ep.Secret) != len("whsec_")+64 {
		t.Errorf("secret length = %d, want %d", len(ep.Secret), len("whsec_")+64)
	}
	if ep.OwnerID != "acct-1" {
		t.Errorf("owner = %q, want acct-1", ep.OwnerID)
	}
}

func TestCreate_SecretsAreUnique(t *testing.T) {
	r, _ := testRegistry()

	a, err := r.Create(context.Background(), "acct-1", validReq())
	if err != nil {
		t.Fatal(err)
	}
	b, err := r.Create(context.Background(), "acct-1", validReq())
	if err != nil {
		t.Fatal(err)
	}
	if a.Secret == b.Secret {
		t.Error("two endpoints should never share a signing secret")
	}
}

func TestCreate_ValidationErrors(t *testing.T) {
	r, _ := testRegistry()

	tests := []struct {
		name  string
		req   domain.CreateEndpointRequest
		field string
	}{
		{
			name:  "empty name",
			req:   domain.CreateEndpointRequest{Name: "", URL: "https://x.com", Events: []string{"rating"}},
			field: "name",
		},
		{
			name:  "name too long",
			req:   domain.CreateEndpointRequest{Name: strings.Repeat("a", 101), URL: "https://x.com", Events: []string{"rating"}},
			field: "name",
		},
		{
			name:  "file scheme",
			req:   domain.CreateEndpointRequest{Name: "x", URL: "file:///etc/passwd", Events: []string{"rating"}},
			field: "url",
		},
		{
			name:  "javascript scheme",
			req:   domain.CreateEndpointRequest{Name: "x", URL: "javascript:alert(1)", Events: []string{"rating"}},
			field: "url",
		},
		{
			name:  "no host",
			req:   domain.CreateEndpointRequest{Name: "x", URL: "https://", Events: []string{"rating"}},
			field: "url",
		},
		{
			name:  "empty events",
			req:   domain.CreateEndpointRequest{Name: "x", URL: "https://x.com", Events: nil},
			field: "events",
		},
		{
			name:  "unknown event",
			req:   domain.CreateEndpointRequest{Name: "x", URL: "https://x.com", Events: []string{"rating", "order.created"}},
			field: "events",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := r.Create(context.Background(), "acct-1", tt.req)

			var verr *domain.ValidationError
			if !errors.As(err, &verr) {
				t.Fatalf("expected ValidationError, got %v", err)
			}
			if verr.Field != tt.field {
				t.Errorf("field = %q, want %q", verr.Field, tt.field)
			}
		})
	}
}

func TestCreate_CapEnforced(t *testing.T) {
	r, store := testRegistry()
	ctx := context.Background()

	for i := 0; i < domain.MaxEndpointsPerAccount; i++ {
		if _, err := r.Create(ctx, "acct-1", validReq()); err != nil {
			t.Fatalf("create %d should succeed: %v", i+1, err)
		}
	}

	_, err := r.Create(ctx, "acct-1", validReq())
	if !errors.Is(err, domain.ErrEndpointLimit) {
		t.Fatalf("create over cap: got %v, want ErrEndpointLimit", err)
	}

	// The cap error must not have created a record.
	eps, _ := store.ListEndpoints(ctx, "acct-1")
	if len(eps) != domain.MaxEndpointsPerAccount {
		t.Errorf("endpoint count = %d, want %d", len(eps), domain.MaxEndpointsPerAccount)
	}

	// Another account is unaffected.
	if _, err := r.Create(ctx, "acct-2", validReq()); err != nil {
		t.Errorf("other account's create should succeed: %v", err)
	}
}

func TestList_RedactsSecrets(t *testing.T) {
	r, _ := testRegistry()
	ctx := context.Background()

	created, err := r.Create(ctx, "acct-1", validReq())
	if err != nil {
		t.Fatal(err)
	}

	listed, err := r.List(ctx, "acct-1")
	if err != nil {
		t.Fatal(err)
	}
	if len(listed) != 1 {
		t.Fatalf("listed %d endpoints, want 1", len(listed))
	}

	got := listed[0].Secret
	if got == created.Secret {
		t.Error("list view must not contain the full secret")
	}
	if !strings.HasPrefix(created.Secret, strings.TrimSuffix(got, "…")) {
		t.Errorf("preview %q should be a prefix of the secret plus ellipsis", got)
	}
	if len(got) >= len(created.Secret) {
		t.Errorf("preview %q is not shorter than the secret", got)
	}
}

func TestGetOwned_WrongOwner(t *testing.T) {
	r, _ := testRegistry()
	ctx := context.Background()

	ep, err := r.Create(ctx, "acct-1", validReq())
	if err != nil {
		t.Fatal(err)
	}

	if _, err := r.GetOwned(ctx, ep.ID, "acct-2"); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("wrong owner: got %v, want ErrNotFound", err)
	}
	if _, err := r.GetOwned(ctx, ep.ID, "acct-1"); err != nil {
		t.Errorf("right owner: got %v, want nil", err)
	}
}

func TestDelete(t *testing.T) {
	r, _ := testRegistry()
	ctx := context.Background()

	ep, err := r.Create(ctx, "acct-1", validReq())
	if err != nil {
		t.Fatal(err)
	}

	if err := r.Delete(ctx, ep.ID, "acct-2"); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("wrong owner delete: got %v, want ErrNotFound", err)
	}
	if err := r.Delete(ctx, ep.ID, "acct-1"); err != nil {
		t.Errorf("delete failed: %v", err)
	}
	if err := r.Delete(ctx, ep.ID, "acct-1"); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("second delete: got %v, want ErrNotFound", err)
	}
}
