package engine

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func setupTestCB(t *testing.T) (*CircuitBreaker, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
	return NewCircuitBreaker(client, logger), mr
}

// openAndExpireCooldown opens the circuit for an endpoint, then backdates
// last_failed_at past the 30s cooldown.
func openAndExpireCooldown(t *testing.T, cb *CircuitBreaker, mr *miniredis.Miniredis, endpointID string) {
	t.Helper()
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		cb.RecordFailure(ctx, endpointID)
	}

	pastTime := time.Now().Unix() - 31
	mr.HSet(cbKey(endpointID), "last_failed_at", fmt.Sprintf("%d", pastTime))
}

func TestCircuitBreaker_InitialStateClosed(t *testing.T) {
	cb, _ := setupTestCB(t)

	state, allowed := cb.AllowRequest(context.Background(), "ep-1")
	if state != StateClosed {
		t.Errorf("state = %q, want %q", state, StateClosed)
	}
	if !allowed {
		t.Error("new endpoint should be allowed (circuit closed)")
	}
}

func TestCircuitBreaker_OpensAfterThreshold(t *testing.T) {
	cb, _ := setupTestCB(t)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		cb.RecordFailure(ctx, "ep-1")
	}

	state, allowed := cb.AllowRequest(ctx, "ep-1")
	if state != StateOpen {
		t.Errorf("state = %q, want %q", state, StateOpen)
	}
	if allowed {
		t.Error("open circuit must block deliveries")
	}
}

func TestCircuitBreaker_BelowThresholdStaysClosed(t *testing.T) {
	cb, _ := setupTestCB(t)
	ctx := context.Background()

	for i := 0; i < 4; i++ {
		cb.RecordFailure(ctx, "ep-1")
	}

	state, allowed := cb.AllowRequest(ctx, "ep-1")
	if state != StateClosed || !allowed {
		t.Errorf("4 failures: state=%q allowed=%v, want closed/true", state, allowed)
	}
}

func TestCircuitBreaker_HalfOpenAfterCooldown(t *testing.T) {
	cb, mr := setupTestCB(t)
	ctx := context.Background()

	openAndExpireCooldown(t, cb, mr, "ep-1")

	state, allowed := cb.AllowRequest(ctx, "ep-1")
	if state != StateHalfOpen {
		t.Errorf("state = %q, want %q", state, StateHalfOpen)
	}
	if !allowed {
		t.Error("half-open circuit should allow one probe")
	}
}

func TestCircuitBreaker_ClosesOnHalfOpenSuccess(t *testing.T) {
	cb, mr := setupTestCB(t)
	ctx := context.Background()

	openAndExpireCooldown(t, cb, mr, "ep-1")
	cb.AllowRequest(ctx, "ep-1") // transition to half-open
	cb.RecordSuccess(ctx, "ep-1")

	state, allowed := cb.AllowRequest(ctx, "ep-1")
	if state != StateClosed || !allowed {
		t.Errorf("after probe success: state=%q allowed=%v, want closed/true", state, allowed)
	}
	if got := cb.GetState(ctx, "ep-1"); got.Failures != 0 {
		t.Errorf("failures = %d, want 0 after recovery", got.Failures)
	}
}

func TestCircuitBreaker_ReopensOnHalfOpenFailure(t *testing.T) {
	cb, mr := setupTestCB(t)
	ctx := context.Background()

	openAndExpireCooldown(t, cb, mr, "ep-1")
	cb.AllowRequest(ctx, "ep-1") // transition to half-open
	cb.RecordFailure(ctx, "ep-1")

	state, allowed := cb.AllowRequest(ctx, "ep-1")
	if state != StateOpen {
		t.Errorf("state = %q, want %q", state, StateOpen)
	}
	if allowed {
		t.Error("failed probe must re-open the circuit")
	}
}

func TestCircuitBreaker_EndpointsAreIndependent(t *testing.T) {
	cb, _ := setupTestCB(t)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		cb.RecordFailure(ctx, "ep-bad")
	}

	if _, allowed := cb.AllowRequest(ctx, "ep-bad"); allowed {
		t.Error("ep-bad should be blocked")
	}
	if _, allowed := cb.AllowRequest(ctx, "ep-good"); !allowed {
		t.Error("ep-good must be unaffected by ep-bad's circuit")
	}
}
