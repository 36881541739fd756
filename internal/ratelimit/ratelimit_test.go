package ratelimit_test

import (
	"context"
	"testing"
	"time"

	"github.com/vitolahq/vitola/internal/cache/memory"
	"github.com/vitolahq/vitola/internal/ratelimit"
)

func TestLimiter_Allow(t *testing.T) {
	c := memory.New(time.Minute, 0)
	defer c.Close()

	cfg := &ratelimit.Config{
		RequestsPerWindow: 5,
		Window:            time.Minute,
		KeyPrefix:         "test:",
	}
	limiter := ratelimit.New(c, cfg)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		result, err := limiter.Allow(ctx, "client1")
		if err != nil {
			t.Fatalf("Allow failed: %v", err)
		}
		if !result.Allowed {
			t.Errorf("request %d should be allowed", i+1)
		}
		expectedRemaining := int64(4 - i)
		if result.Remaining != expectedRemaining {
			t.Errorf("request %d: expected remaining %d, got %d", i+1, expectedRemaining, result.Remaining)
		}
		if result.Limit != 5 {
			t.Errorf("request %d: expected limit 5, got %d", i+1, result.Limit)
		}
	}

	result, err := limiter.Allow(ctx, "client1")
	if err != nil {
		t.Fatalf("Allow failed: %v", err)
	}
	if result.Allowed {
		t.Error("6th request should be denied")
	}
	if result.Remaining != 0 {
		t.Errorf("expected remaining 0, got %d", result.Remaining)
	}
}

func TestLimiter_ResetAtStable(t *testing.T) {
	c := memory.New(time.Minute, 0)
	defer c.Close()

	limiter := ratelimit.New(c, &ratelimit.Config{
		RequestsPerWindow: 5,
		Window:            time.Minute,
		KeyPrefix:         "test:",
	})
	ctx := context.Background()

	first, err := limiter.Allow(ctx, "client1")
	if err != nil {
		t.Fatalf("Allow failed: %v", err)
	}
	second, err := limiter.Allow(ctx, "client1")
	if err != nil {
		t.Fatalf("Allow failed: %v", err)
	}

	// Both requests land in the same window, so they share a deadline.
	if !second.ResetAt.Equal(first.ResetAt) {
		t.Errorf("expected stable ResetAt, first %v, second %v", first.ResetAt, second.ResetAt)
	}
	if !first.ResetAt.After(time.Now()) {
		t.Errorf("expected a future ResetAt, got %v", first.ResetAt)
	}
}

func TestLimiter_DifferentKeys(t *testing.T) {
	c := memory.New(time.Minute, 0)
	defer c.Close()

	limiter := ratelimit.New(c, &ratelimit.Config{
		RequestsPerWindow: 2,
		Window:            time.Minute,
		KeyPrefix:         "test:",
	})
	ctx := context.Background()

	limiter.Allow(ctx, "client1")
	limiter.Allow(ctx, "client1")
	result, _ := limiter.Allow(ctx, "client1")
	if result.Allowed {
		t.Error("client1 should be rate limited")
	}

	result, _ = limiter.Allow(ctx, "client2")
	if !result.Allowed {
		t.Error("client2 should be allowed")
	}
}

func TestLimiter_Check(t *testing.T) {
	c := memory.New(time.Minute, 0)
	defer c.Close()

	limiter := ratelimit.New(c, &ratelimit.Config{
		RequestsPerWindow: 5,
		Window:            time.Minute,
		KeyPrefix:         "test:",
	})
	ctx := context.Background()

	result, err := limiter.Check(ctx, "client1")
	if err != nil {
		t.Fatalf("Check failed: %v", err)
	}
	if !result.Allowed {
		t.Error("should be allowed before any requests")
	}
	if result.Remaining != 5 {
		t.Errorf("expected remaining 5, got %d", result.Remaining)
	}

	limiter.Allow(ctx, "client1")
	limiter.Allow(ctx, "client1")

	result, _ = limiter.Check(ctx, "client1")
	if result.Remaining != 3 {
		t.Errorf("expected remaining 3, got %d", result.Remaining)
	}

	// Check must not consume quota.
	result, _ = limiter.Check(ctx, "client1")
	if result.Remaining != 3 {
		t.Errorf("Check should not decrement, expected 3, got %d", result.Remaining)
	}
}

func TestLimiter_Reset(t *testing.T) {
	c := memory.New(time.Minute, 0)
	defer c.Close()

	limiter := ratelimit.New(c, &ratelimit.Config{
		RequestsPerWindow: 2,
		Window:            time.Minute,
		KeyPrefix:         "test:",
	})
	ctx := context.Background()

	limiter.Allow(ctx, "client1")
	limiter.Allow(ctx, "client1")

	if err := limiter.Reset(ctx, "client1"); err != nil {
		t.Fatalf("Reset failed: %v", err)
	}

	result, _ := limiter.Allow(ctx, "client1")
	if !result.Allowed {
		t.Error("should be allowed after reset")
	}
}

func TestLimiter_SharedCacheIsolation(t *testing.T) {
	c := memory.New(time.Minute, 0)
	defer c.Close()
	ctx := context.Background()

	// Two limiters on one cache stay independent through their prefixes.
	login := ratelimit.New(c, &ratelimit.Config{
		RequestsPerWindow: 1,
		Window:            time.Minute,
		KeyPrefix:         "login:",
	})
	public := ratelimit.New(c, &ratelimit.Config{
		RequestsPerWindow: 1,
		Window:            time.Minute,
		KeyPrefix:         "public:",
	})

	login.Allow(ctx, "client1")
	result, _ := login.Allow(ctx, "client1")
	if result.Allowed {
		t.Error("login limiter should be exhausted")
	}

	result, _ = public.Allow(ctx, "client1")
	if !result.Allowed {
		t.Error("public limiter should be unaffected")
	}
}
