package ratelimit

import (
	"context"
	"sync"
	"time"
)

// maxTrackedKeys caps the bucket map so attackers rotating source IPs
// cannot exhaust memory.
const maxTrackedKeys = 4096

// bucket carries its own expiry because the map is shared across
// policies with different windows. Staleness is judged against the
// window the bucket was created under, never the caller's.
type bucket struct {
	expiresAt time.Time
	count     int
}

// MemoryLimiter is the in-process fixed-window fallback for
// single-instance deployments. Buckets are created lazily per key and
// pruned once stale. Safe for concurrent use; the mutex makes the
// read-then-increment atomic per process.
type MemoryLimiter struct {
	mu      sync.Mutex
	buckets map[string]*bucket
}

func NewMemoryLimiter() *MemoryLimiter {
	return &MemoryLimiter{buckets: make(map[string]*bucket)}
}

// Check admits or denies a request for key under policy. FailMode is
// irrelevant here: process memory cannot be unreachable.
func (l *MemoryLimiter) Check(_ context.Context, key string, policy Policy) Result {
	if policy.Limit <= 0 {
		return Result{Allowed: true}
	}

	now := time.Now()

	l.mu.Lock()
	defer l.mu.Unlock()

	if len(l.buckets) >= maxTrackedKeys {
		l.prune(now)
	}

	b, ok := l.buckets[key]
	if !ok || !now.Before(b.expiresAt) {
		resetAt := now.Add(policy.Window)
		l.buckets[key] = &bucket{expiresAt: resetAt, count: 1}
		return Result{
			Allowed:   true,
			Remaining: policy.Limit - 1,
			ResetAt:   resetAt,
		}
	}

	if b.count >= policy.Limit {
		return Result{Allowed: false, Remaining: 0, ResetAt: b.expiresAt}
	}

	b.count++
	return Result{
		Allowed:   true,
		Remaining: policy.Limit - b.count,
		ResetAt:   b.expiresAt,
	}
}

// prune drops buckets past their own expiry, then evicts arbitrarily
// if still at the cap. Caller holds the mutex.
func (l *MemoryLimiter) prune(now time.Time) {
	for k, b := range l.buckets {
		if !now.Before(b.expiresAt) {
			delete(l.buckets, k)
		}
	}
	for len(l.buckets) >= maxTrackedKeys {
		for k := range l.buckets {
			delete(l.buckets, k)
			break
		}
	}
}
