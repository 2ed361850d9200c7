package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/pricelift/webhook-service/internal/domain"
)

// CreateEndpoint persists a validated endpoint. The per-account cap is
// enforced inside the transaction: an advisory lock on the owner
// serializes concurrent creates so two of them cannot both pass the
// count check.
func (s *PostgresStore) CreateEndpoint(ctx context.Context, ep domain.WebhookEndpoint) (*domain.WebhookEndpoint, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx,
		`SELECT pg_advisory_xact_lock(hashtext('webhook_endpoints:' || $1))`,
		ep.OwnerID,
	); err != nil {
		return nil, fmt.Errorf("acquiring owner lock: %w", err)
	}

	var count int
	err = tx.QueryRow(ctx,
		`SELECT count(*) FROM webhook_endpoints WHERE owner_id = $1`,
		ep.OwnerID,
	).Scan(&count)
	if err != nil {
		return nil, fmt.Errorf("counting endpoints: %w", err)
	}
	if count >= domain.MaxEndpointsPerAccount {
		return nil, domain.ErrEndpointLimit
	}

	err = tx.QueryRow(ctx, `
		INSERT INTO webhook_endpoints (id, owner_id, name, url, events, secret)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING created_at
	`, ep.ID, ep.OwnerID, ep.Name, ep.URL, eventStrings(ep.Events), ep.Secret).Scan(&ep.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("inserting endpoint: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("committing transaction: %w", err)
	}

	return &ep, nil
}

// GetEndpoint returns the full record including the secret. Callers
// must re-check ownership before acting on it.
func (s *PostgresStore) GetEndpoint(ctx context.Context, id string) (*domain.WebhookEndpoint, error) {
	var ep domain.WebhookEndpoint
	var events []string
	err := s.pool.QueryRow(ctx, `
		SELECT id, owner_id, name, url, events, secret, created_at
		FROM webhook_endpoints WHERE id = $1
	`, id).Scan(&ep.ID, &ep.OwnerID, &ep.Name, &ep.URL, &events, &ep.Secret, &ep.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("querying endpoint: %w", err)
	}
	ep.Events = eventTypes(events)
	return &ep, nil
}

// ListEndpoints returns every endpoint the account owns, secrets
// included; the registry redacts before anything leaves it.
func (s *PostgresStore) ListEndpoints(ctx context.Context, ownerID string) ([]domain.WebhookEndpoint, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, owner_id, name, url, events, secret, created_at
		FROM webhook_endpoints
		WHERE owner_id = $1
		ORDER BY created_at DESC
	`, ownerID)
	if err != nil {
		return nil, fmt.Errorf("querying endpoints: %w", err)
	}
	defer rows.Close()

	endpoints := []domain.WebhookEndpoint{}
	for rows.Next() {
		var ep domain.WebhookEndpoint
		var events []string
		if err := rows.Scan(&ep.ID, &ep.OwnerID, &ep.Name, &ep.URL, &events, &ep.Secret, &ep.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning endpoint: %w", err)
		}
		ep.Events = eventTypes(events)
		endpoints = append(endpoints, ep)
	}

	return endpoints, nil
}

// DeleteEndpoint removes an endpoint owned by ownerID. Returns
// domain.ErrNotFound when no such row exists, wrong owner included.
func (s *PostgresStore) DeleteEndpoint(ctx context.Context, id, ownerID string) error {
	tag, err := s.pool.Exec(ctx,
		`DELETE FROM webhook_endpoints WHERE id = $1 AND owner_id = $2`,
		id, ownerID,
	)
	if err != nil {
		return fmt.Errorf("deleting endpoint: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// FindSubscribed resolves the fan-out targets: every endpoint owned by
// ownerID whose event set contains eventType.
func (s *PostgresStore) FindSubscribed(ctx context.Context, ownerID string, eventType domain.EventType) ([]domain.WebhookEndpoint, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, owner_id, name, url, events, secret, created_at
		FROM webhook_endpoints
		WHERE owner_id = $1 AND $2 = ANY(events)
	`, ownerID, string(eventType))
	if err != nil {
		return nil, fmt.Errorf("finding subscribed endpoints: %w", err)
	}
	defer rows.Close()

	endpoints := []domain.WebhookEndpoint{}
	for rows.Next() {
		var ep domain.WebhookEndpoint
		var events []string
		if err := rows.Scan(&ep.ID, &ep.OwnerID, &ep.Name, &ep.URL, &events, &ep.Secret, &ep.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning endpoint: %w", err)
		}
		ep.Events = eventTypes(events)
		endpoints = append(endpoints, ep)
	}

	return endpoints, nil
}

func eventStrings(events []domain.EventType) []string {
	out := make([]string, len(events))
	for i, e := range events {
		out[i] = string(e)
	}
	return out
}

func eventTypes(events []string) []domain.EventType {
	out := make([]domain.EventType, len(events))
	for i, e := range events {
		out[i] = domain.EventType(e)
	}
	return out
}
