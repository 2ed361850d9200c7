package ratelimit

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestMemoryLimiter_AllowsUpToLimit(t *testing.T) {
	l := NewMemoryLimiter()
	ctx := context.Background()
	policy := Policy{Limit: 10, Window: time.Minute}

	for i := 0; i < 10; i++ {
		if !l.Check(ctx, "k", policy).Allowed {
			t.Fatalf("request %d should be allowed (limit=10)", i+1)
		}
	}
	if l.Check(ctx, "k", policy).Allowed {
		t.Error("11th request within the window should be denied")
	}
}

func TestMemoryLimiter_WindowElapses(t *testing.T) {
	l := NewMemoryLimiter()
	ctx := context.Background()
	policy := Policy{Limit: 1, Window: 50 * time.Millisecond}

	if !l.Check(ctx, "k", policy).Allowed {
		t.Fatal("first request should be allowed")
	}
	if l.Check(ctx, "k", policy).Allowed {
		t.Fatal("second request inside the window should be denied")
	}

	time.Sleep(60 * time.Millisecond)

	if !l.Check(ctx, "k", policy).Allowed {
		t.Error("request after the window elapsed should be allowed again")
	}
}

func TestMemoryLimiter_ConcurrentSameKey(t *testing.T) {
	l := NewMemoryLimiter()
	policy := Policy{Limit: 10, Window: time.Minute}

	var allowed atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if l.Check(context.Background(), "k", policy).Allowed {
				allowed.Add(1)
			}
		}()
	}
	wg.Wait()

	// Exactly limit admissions, never limit+1 via a racing
	// read-then-increment.
	if allowed.Load() != 10 {
		t.Errorf("admitted %d concurrent requests, want exactly 10", allowed.Load())
	}
}

func TestMemoryLimiter_KeyCapEviction(t *testing.T) {
	l := NewMemoryLimiter()
	ctx := context.Background()
	policy := Policy{Limit: 1, Window: time.Minute}

	for i := 0; i < maxTrackedKeys+50; i++ {
		l.Check(ctx, fmt.Sprintf("key-%d", i), policy)
	}

	l.mu.Lock()
	n := len(l.buckets)
	l.mu.Unlock()
	if n > maxTrackedKeys {
		t.Errorf("tracked keys %d exceeds cap %d", n, maxTrackedKeys)
	}
}

// Pruning under a short-window policy must not evict a live bucket
// created under a long-window policy, or the long-window key would be
// handed a fresh allowance mid-window.
func TestMemoryLimiter_PruneKeepsLiveLongWindowBuckets(t *testing.T) {
	l := NewMemoryLimiter()
	ctx := context.Background()
	long := Policy{Limit: 1, Window: time.Hour}
	short := Policy{Limit: 1, Window: time.Nanosecond}

	if !l.Check(ctx, "slow", long).Allowed {
		t.Fatal("first request under the long window should be allowed")
	}

	// Short-window buckets expire immediately, so every prune pass can
	// reclaim them without touching the long-window bucket.
	for i := 0; i < maxTrackedKeys+50; i++ {
		l.Check(ctx, fmt.Sprintf("burst-%d", i), short)
	}

	if l.Check(ctx, "slow", long).Allowed {
		t.Error("long-window key should still be denied inside its window")
	}
}

func TestMiddleware_DeniesWith429(t *testing.T) {
	l := NewMemoryLimiter()
	policy := Policy{Limit: 2, Window: time.Minute}

	var served atomic.Int32
	handler := Middleware(l, policy, nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		served.Add(1)
		w.WriteHeader(http.StatusAccepted)
	}))

	for i := 0; i < 2; i++ {
		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/ratings", nil)
		req.RemoteAddr = "203.0.113.9:4411"
		handler.ServeHTTP(rec, req)
		if rec.Code != http.StatusAccepted {
			t.Fatalf("request %d: status = %d, want 202", i+1, rec.Code)
		}
	}

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/ratings", nil)
	req.RemoteAddr = "203.0.113.9:4411"
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("status = %d, want 429", rec.Code)
	}
	if rec.Header().Get("Retry-After") == "" {
		t.Error("429 should carry Retry-After")
	}
	if rec.Header().Get("X-RateLimit-Remaining") != "0" {
		t.Errorf("X-RateLimit-Remaining = %q, want 0", rec.Header().Get("X-RateLimit-Remaining"))
	}
	if served.Load() != 2 {
		t.Errorf("handler served %d requests, want 2", served.Load())
	}

	// A different client IP is unaffected.
	rec = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodPost, "/ratings", nil)
	req.RemoteAddr = "198.51.100.4:9000"
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusAccepted {
		t.Errorf("other client status = %d, want 202", rec.Code)
	}
}
