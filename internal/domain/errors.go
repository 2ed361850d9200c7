package domain

import (
	"errors"
	"fmt"
	"time"
)

// ErrEndpointLimit is returned when an account is already at
// MaxEndpointsPerAccount. Distinct from validation so callers can
// render an upgrade prompt instead of a generic bad-input message.
var ErrEndpointLimit = errors.New("endpoint limit reached for account")

// ErrNotFound is returned for lookups of records that do not exist or
// are not visible to the caller.
var ErrNotFound = errors.New("not found")

// ValidationError rejects bad input before any storage or network
// effect. Field names the offending input.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// RateLimitError is a distinct, retryable denial carrying the budget
// hint well-behaved clients need to back off.
type RateLimitError struct {
	Remaining int
	ResetAt   time.Time
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("rate limit exceeded, resets at %s", e.ResetAt.UTC().Format(time.RFC3339))
}
