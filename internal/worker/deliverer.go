package worker

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/pricelift/webhook-service/internal/domain"
	"github.com/pricelift/webhook-service/internal/engine"
	"github.com/pricelift/webhook-service/internal/signing"
	"github.com/pricelift/webhook-service/internal/store"
)

// maxResponseSnippet bounds how much of an endpoint's response body is
// kept on the attempt record.
const maxResponseSnippet = 1024

// retrySchedule maps the Nth failure to its backoff. Failures beyond
// the schedule reuse the last entry.
var retrySchedule = []time.Duration{
	30 * time.Second,
	2 * time.Minute,
	10 * time.Minute,
	30 * time.Minute,
}

func backoffFor(attempt int) time.Duration {
	idx := attempt - 1
	if idx < 0 {
		idx = 0
	}
	if idx >= len(retrySchedule) {
		idx = len(retrySchedule) - 1
	}
	return retrySchedule[idx]
}

// AttemptSink records delivery outcomes. Failures are data, not
// silence: every execution produces exactly one attempt record.
type AttemptSink interface {
	RecordAttempt(ctx context.Context, rec store.AttemptRecord) error
	InsertDeadLetter(ctx context.Context, rec store.DeadLetterRecord) error
}

// Deliverer executes webhook delivery attempts: envelope, signature,
// bounded-timeout POST, outcome classification, audit record, and the
// retry/dead-letter decision for queued jobs.
type Deliverer struct {
	httpClient *http.Client
	sink       AttemptSink
	queue      *engine.Queue
	breaker    *engine.CircuitBreaker
	logger     *slog.Logger
}

// NewDeliverer creates a deliverer whose HTTP client is capped at
// timeout per attempt, so one dead endpoint cannot hold a worker
// beyond that ceiling.
func NewDeliverer(sink AttemptSink, queue *engine.Queue, breaker *engine.CircuitBreaker, timeout time.Duration, logger *slog.Logger) *Deliverer {
	return &Deliverer{
		httpClient: &http.Client{Timeout: timeout},
		sink:       sink,
		queue:      queue,
		breaker:    breaker,
		logger:     logger,
	}
}

// attemptOutcome is the raw result of one HTTP execution.
type attemptOutcome struct {
	deliveryID string
	statusCode *int
	body       string
	errMsg     string
	elapsed    time.Duration
}

func (o *attemptOutcome) success() bool {
	return o.errMsg == "" && o.statusCode != nil &&
		*o.statusCode >= 200 && *o.statusCode < 300
}

// Deliver processes one queued delivery job end to end. Never returns
// an error: delivery failure terminates here, in the audit log.
func (d *Deliverer) Deliver(ctx context.Context, job engine.DeliveryJob) {
	if state, allowed := d.breaker.AllowRequest(ctx, job.EndpointID); !allowed {
		d.logger.Debug("delivery skipped, circuit open",
			"endpoint_id", job.EndpointID,
			"event_id", job.EventID,
		)
		d.finishFailure(ctx, job, attemptOutcome{
			deliveryID: uuid.NewString(),
			errMsg:     fmt.Sprintf("skipped: circuit breaker %s", state),
		})
		return
	}

	outcome := d.execute(ctx, job.EndpointURL, job.Secret, job.EventType, job.Payload, job.Attempt)

	if outcome.success() {
		d.breaker.RecordSuccess(ctx, job.EndpointID)
		d.record(ctx, job, outcome, nil)
		d.logger.Info("delivery successful",
			"event_id", job.EventID,
			"endpoint_id", job.EndpointID,
			"attempt", job.Attempt,
			"status_code", *outcome.statusCode,
			"response_time_ms", outcome.elapsed.Milliseconds(),
		)
		return
	}

	d.breaker.RecordFailure(ctx, job.EndpointID)
	d.finishFailure(ctx, job, outcome)
}

// finishFailure records the failed attempt and either schedules a
// retry or writes the dead letter.
func (d *Deliverer) finishFailure(ctx context.Context, job engine.DeliveryJob, outcome attemptOutcome) {
	var nextRetryAt *time.Time
	if job.Attempt < job.MaxAttempts {
		at := time.Now().Add(backoffFor(job.Attempt))
		nextRetryAt = &at
	}

	d.record(ctx, job, outcome, nextRetryAt)

	d.logger.Warn("delivery failed",
		"event_id", job.EventID,
		"endpoint_id", job.EndpointID,
		"attempt", job.Attempt,
		"max_attempts", job.MaxAttempts,
		"error", outcome.errMsg,
		"status_code", outcome.statusCode,
	)

	if nextRetryAt != nil {
		retry := job
		retry.Attempt++
		if err := d.queue.Enqueue(ctx, retry, *nextRetryAt); err != nil {
			d.logger.Error("failed to schedule retry",
				"error", err,
				"event_id", job.EventID,
				"endpoint_id", job.EndpointID,
			)
		}
		return
	}

	err := d.sink.InsertDeadLetter(ctx, store.DeadLetterRecord{
		EventID:        job.EventID,
		EndpointID:     job.EndpointID,
		TotalAttempts:  job.Attempt,
		LastHTTPStatus: outcome.statusCode,
		LastError:      outcome.errMsg,
	})
	if err != nil {
		d.logger.Error("failed to insert dead letter",
			"error", err,
			"event_id", job.EventID,
			"endpoint_id", job.EndpointID,
		)
	}
}

// execute performs exactly one signed HTTP POST. The envelope is
// marshaled once and the signature covers those exact bytes.
func (d *Deliverer) execute(ctx context.Context, endpointURL, secret string, eventType domain.EventType, payload json.RawMessage, attempt int) attemptOutcome {
	start := time.Now()
	deliveryID := uuid.NewString()

	envelope := domain.Envelope{
		EventType:  eventType,
		DeliveryID: deliveryID,
		Timestamp:  start.UTC(),
		Payload:    payload,
	}
	body, err := json.Marshal(envelope)
	if err != nil {
		return attemptOutcome{
			deliveryID: deliveryID,
			errMsg:     fmt.Sprintf("marshaling envelope: %v", err),
			elapsed:    time.Since(start),
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpointURL, bytes.NewReader(body))
	if err != nil {
		return attemptOutcome{
			deliveryID: deliveryID,
			errMsg:     fmt.Sprintf("building request: %v", err),
			elapsed:    time.Since(start),
		}
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Webhook-Signature", signing.Sign(secret, body))
	req.Header.Set("X-Webhook-Event", string(eventType))
	req.Header.Set("X-Webhook-Delivery-Id", deliveryID)
	req.Header.Set("X-Webhook-Timestamp", envelope.Timestamp.Format(time.RFC3339))
	req.Header.Set("X-Webhook-Attempt", strconv.Itoa(attempt))

	resp, err := d.httpClient.Do(req)
	if err != nil {
		// Timeout, DNS, refused connection: no status was obtained.
		return attemptOutcome{
			deliveryID: deliveryID,
			errMsg:     fmt.Sprintf("request failed: %v", err),
			elapsed:    time.Since(start),
		}
	}
	defer resp.Body.Close()

	snippet, _ := io.ReadAll(io.LimitReader(resp.Body, maxResponseSnippet))

	outcome := attemptOutcome{
		deliveryID: deliveryID,
		statusCode: &resp.StatusCode,
		body:       string(snippet),
		elapsed:    time.Since(start),
	}
	if !outcome.success() {
		outcome.errMsg = fmt.Sprintf("endpoint returned HTTP %d", resp.StatusCode)
	}
	return outcome
}

// record appends the attempt to the audit log.
func (d *Deliverer) record(ctx context.Context, job engine.DeliveryJob, outcome attemptOutcome, nextRetryAt *time.Time) {
	status := domain.DeliveryStatusFailed
	if outcome.success() {
		status = domain.DeliveryStatusSuccess
	}

	err := d.sink.RecordAttempt(ctx, store.AttemptRecord{
		EventID:        job.EventID,
		EndpointID:     job.EndpointID,
		EventType:      job.EventType,
		DeliveryID:     outcome.deliveryID,
		AttemptNumber:  job.Attempt,
		Status:         status,
		HTTPStatusCode: outcome.statusCode,
		ResponseBody:   outcome.body,
		ResponseTimeMs: int(outcome.elapsed.Milliseconds()),
		ErrorMessage:   outcome.errMsg,
		NextRetryAt:    nextRetryAt,
	})
	if err != nil {
		d.logger.Error("failed to record delivery attempt",
			"error", err,
			"event_id", job.EventID,
			"endpoint_id", job.EndpointID,
		)
	}
}

// TestResult is what the "send test webhook" action reports back to
// the user: one synchronous attempt, raw outcome included.
type TestResult struct {
	Success    bool   `json:"success"`
	HTTPStatus *int   `json:"http_status,omitempty"`
	Body       string `json:"body,omitempty"`
	Error      string `json:"error,omitempty"`
	DeliveryID string `json:"delivery_id"`
}

// SendTest performs one synchronous delivery of a synthetic payload to
// the endpoint and records it like any other attempt. No retries: the
// user is watching.
func (d *Deliverer) SendTest(ctx context.Context, ep *domain.WebhookEndpoint) TestResult {
	eventType := domain.EventRating
	if len(ep.Events) > 0 {
		eventType = ep.Events[0]
	}

	payload, _ := json.Marshal(map[string]any{
		"test":        true,
		"endpoint_id": ep.ID,
	})

	outcome := d.execute(ctx, ep.URL, ep.Secret, eventType, payload, 1)

	d.record(ctx, engine.DeliveryJob{
		EventID:    "test",
		EndpointID: ep.ID,
		OwnerID:    ep.OwnerID,
		EventType:  eventType,
		Attempt:    1,
	}, outcome, nil)

	return TestResult{
		Success:    outcome.success(),
		HTTPStatus: outcome.statusCode,
		Body:       outcome.body,
		Error:      outcome.errMsg,
		DeliveryID: outcome.deliveryID,
	}
}
