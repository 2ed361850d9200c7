package store

import (
	"context"
	"fmt"

	"github.com/pricelift/webhook-service/internal/domain"
)

// CreateEvent persists a business event. This commits before fan-out
// runs: delivery is best-effort relative to the recorded event.
func (s *PostgresStore) CreateEvent(ctx context.Context, ownerID string, eventType domain.EventType, payload []byte) (*domain.Event, error) {
	var event domain.Event
	err := s.pool.QueryRow(ctx, `
		INSERT INTO events (owner_id, event_type, payload)
		VALUES ($1, $2, $3)
		RETURNING id, owner_id, event_type, payload, created_at
	`, ownerID, string(eventType), payload).Scan(
		&event.ID, &event.OwnerID, &event.EventType, &event.Payload, &event.CreatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("inserting event: %w", err)
	}
	return &event, nil
}
