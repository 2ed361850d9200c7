package engine

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/pricelift/webhook-service/internal/domain"
	"github.com/redis/go-redis/v9"
)

// DeliveryQueueKey is the redis sorted set holding pending delivery
// jobs, scored by the time they become due.
const DeliveryQueueKey = "delivery_queue"

// DeliveryJob is one webhook delivery task for one endpoint. It is
// self-contained: the worker needs nothing but the job to attempt
// delivery, so jobs survive process restarts in redis.
type DeliveryJob struct {
	EventID     string           `json:"event_id"`
	OwnerID     string           `json:"owner_id"`
	EndpointID  string           `json:"endpoint_id"`
	EndpointURL string           `json:"endpoint_url"`
	Secret      string           `json:"secret"`
	EventType   domain.EventType `json:"event_type"`
	Payload     json.RawMessage  `json:"payload"`
	Attempt     int              `json:"attempt"`
	MaxAttempts int              `json:"max_attempts"`
}

// Queue is the durable delivery queue decoupling event production from
// delivery execution. Enqueue and Claim are shared by fan-out, the
// poller, and the retry path.
type Queue struct {
	client *redis.Client
}

func NewQueue(client *redis.Client) *Queue {
	return &Queue{client: client}
}

// Enqueue adds one job, due at readyAt. A future readyAt is how
// retries get their backoff.
func (q *Queue) Enqueue(ctx context.Context, job DeliveryJob, readyAt time.Time) error {
	data, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("marshaling job: %w", err)
	}

	err = q.client.ZAdd(ctx, DeliveryQueueKey, redis.Z{
		Score:  float64(readyAt.UnixMicro()),
		Member: string(data),
	}).Err()
	if err != nil {
		return fmt.Errorf("enqueuing job: %w", err)
	}
	return nil
}

// EnqueueBatch pipelines a set of jobs due immediately.
func (q *Queue) EnqueueBatch(ctx context.Context, jobs []DeliveryJob, readyAt time.Time) error {
	pipe := q.client.Pipeline()
	score := float64(readyAt.UnixMicro())

	for _, job := range jobs {
		data, err := json.Marshal(job)
		if err != nil {
			return fmt.Errorf("marshaling job for endpoint %s: %w", job.EndpointID, err)
		}
		pipe.ZAdd(ctx, DeliveryQueueKey, redis.Z{Score: score, Member: string(data)})
	}

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("enqueuing jobs: %w", err)
	}
	return nil
}

// Due returns up to count raw job members whose due time has passed.
// Members are not removed; Claim does that.
func (q *Queue) Due(ctx context.Context, now time.Time, count int64) ([]string, error) {
	members, err := q.client.ZRangeByScore(ctx, DeliveryQueueKey, &redis.ZRangeBy{
		Min:   "-inf",
		Max:   strconv.FormatFloat(float64(now.UnixMicro()), 'f', -1, 64),
		Count: count,
	}).Result()
	if err != nil {
		return nil, fmt.Errorf("polling delivery queue: %w", err)
	}
	return members, nil
}

// Claim removes a member from the queue. Returns false when another
// instance already took it.
func (q *Queue) Claim(ctx context.Context, member string) (bool, error) {
	removed, err := q.client.ZRem(ctx, DeliveryQueueKey, member).Result()
	if err != nil {
		return false, fmt.Errorf("claiming job: %w", err)
	}
	return removed > 0, nil
}

// Depth returns the number of jobs waiting in the queue.
func (q *Queue) Depth(ctx context.Context) (int64, error) {
	return q.client.ZCard(ctx, DeliveryQueueKey).Result()
}
