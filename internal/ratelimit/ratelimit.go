// Package ratelimit is the admission-control primitive gating
// high-frequency mutations: public rating submissions, signups, and
// manual webhook test-sends. Internal delivery fan-out is not gated.
package ratelimit

import (
	"context"
	"time"
)

// FailMode is the documented behavior when the backing store is
// unreachable. Abuse-prone actions should fail closed; best-effort
// actions fail open.
type FailMode int

const (
	FailClosed FailMode = iota
	FailOpen
)

// Policy is a (limit, window) budget plus the outage behavior.
type Policy struct {
	Limit    int
	Window   time.Duration
	FailMode FailMode
}

// Presets used by callers.
var (
	// RatingPolicy gates public rating submissions per client IP.
	RatingPolicy = Policy{Limit: 10, Window: time.Minute, FailMode: FailClosed}

	// SignupPolicy gates account signup per client IP. Stricter:
	// signup is the most abuse-prone mutation.
	SignupPolicy = Policy{Limit: 5, Window: time.Minute, FailMode: FailClosed}

	// TestSendPolicy gates the manual "send test webhook" action per
	// account. Fails open: a broken limiter store should not stop a
	// paying user from debugging their integration.
	TestSendPolicy = Policy{Limit: 5, Window: time.Minute, FailMode: FailOpen}
)

// Result is the admission decision plus the budget hint returned to
// well-behaved clients.
type Result struct {
	Allowed   bool
	Remaining int
	ResetAt   time.Time
}

// Limiter is the admission check. Check must be atomic per key: two
// simultaneous requests must not both be admitted when one slot
// remains. Implementations apply the policy's FailMode internally, so
// callers only read Result.
//
// The redis implementation serves multi-instance deployments; the
// in-process one is the single-instance fallback. The contract is
// identical, only the storage differs.
type Limiter interface {
	Check(ctx context.Context, key string, policy Policy) Result
}
