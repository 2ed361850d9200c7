package domain

import (
	"time"
)

// Delivery attempt statuses.
const (
	DeliveryStatusSuccess = "success"
	DeliveryStatusFailed  = "failed"
)

// DeliveryAttempt is one concrete HTTP call to one endpoint for one
// event occurrence. Append-only: every attempt produces exactly one
// record, total failures included. HTTPStatusCode is nil when the
// attempt died before a status was obtained (timeout, DNS, refused).
type DeliveryAttempt struct {
	ID             string     `json:"id"`
	EventID        string     `json:"event_id"`
	EndpointID     string     `json:"endpoint_id"`
	EventType      EventType  `json:"event_type"`
	DeliveryID     string     `json:"delivery_id"`
	AttemptNumber  int        `json:"attempt_number"`
	Status         string     `json:"status"`
	HTTPStatusCode *int       `json:"http_status_code,omitempty"`
	ResponseBody   *string    `json:"response_body,omitempty"`
	ResponseTimeMs int        `json:"response_time_ms"`
	ErrorMessage   *string    `json:"error_message,omitempty"`
	NextRetryAt    *time.Time `json:"next_retry_at,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
}

// Success reports whether the attempt got a 2xx response.
func (a *DeliveryAttempt) Success() bool {
	return a.Status == DeliveryStatusSuccess
}

// DeadLetter is a delivery that exhausted its retry budget.
type DeadLetter struct {
	ID             string     `json:"id"`
	EventID        string     `json:"event_id"`
	EndpointID     string     `json:"endpoint_id"`
	TotalAttempts  int        `json:"total_attempts"`
	LastError      *string    `json:"last_error,omitempty"`
	LastHTTPStatus *int       `json:"last_http_status,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
	ResolvedAt     *time.Time `json:"resolved_at,omitempty"`
	ResolvedBy     *string    `json:"resolved_by,omitempty"`
}
