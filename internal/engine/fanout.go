package engine

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/pricelift/webhook-service/internal/domain"
)

// EndpointResolver looks up the endpoints subscribed to an event type
// for one account.
type EndpointResolver interface {
	FindSubscribed(ctx context.Context, ownerID string, eventType domain.EventType) ([]domain.WebhookEndpoint, error)
}

// FanOutEngine resolves subscribed endpoints for an event and queues
// one independent delivery job per endpoint. Delivery itself happens
// in the worker pool; one endpoint's failure or slowness never touches
// another's job.
type FanOutEngine struct {
	resolver    EndpointResolver
	queue       *Queue
	logger      *slog.Logger
	maxAttempts int
}

func NewFanOutEngine(resolver EndpointResolver, queue *Queue, maxAttempts int, logger *slog.Logger) *FanOutEngine {
	return &FanOutEngine{
		resolver:    resolver,
		queue:       queue,
		logger:      logger,
		maxAttempts: maxAttempts,
	}
}

// Dispatch fans an event out to every subscribed endpoint of its
// owner. Zero subscribed endpoints is a silent no-op — most accounts
// have none. Returns the number of deliveries queued.
//
// Callers on the business path ignore the error: the event has
// already committed, and delivery trouble must never surface there.
func (f *FanOutEngine) Dispatch(ctx context.Context, event *domain.Event) (int, error) {
	endpoints, err := f.resolver.FindSubscribed(ctx, event.OwnerID, event.EventType)
	if err != nil {
		return 0, fmt.Errorf("resolving subscribed endpoints: %w", err)
	}

	if len(endpoints) == 0 {
		return 0, nil
	}

	jobs := make([]DeliveryJob, len(endpoints))
	for i, ep := range endpoints {
		jobs[i] = DeliveryJob{
			EventID:     event.ID,
			OwnerID:     event.OwnerID,
			EndpointID:  ep.ID,
			EndpointURL: ep.URL,
			Secret:      ep.Secret,
			EventType:   event.EventType,
			Payload:     event.Payload,
			Attempt:     1,
			MaxAttempts: f.maxAttempts,
		}
	}

	if err := f.queue.EnqueueBatch(ctx, jobs, time.Now()); err != nil {
		return 0, fmt.Errorf("queuing deliveries: %w", err)
	}

	f.logger.Info("fan-out complete",
		"event_id", event.ID,
		"event_type", event.EventType,
		"owner_id", event.OwnerID,
		"deliveries_queued", len(jobs),
	)

	return len(jobs), nil
}
