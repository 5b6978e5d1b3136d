package security

import (
	"fmt"
	"log/slog"
	"testing"
	"time"
)

func TestRateLimiter_Allow(t *testing.T) {
	rl := NewRateLimiter(10, 5, slog.Default())
	defer rl.Stop()

	// Up to burst requests pass immediately.
	for i := 0; i < 5; i++ {
		if !rl.Allow("ip:203.0.113.7") {
			t.Errorf("Allow() request %d should be allowed", i+1)
		}
	}

	if rl.Allow("ip:203.0.113.7") {
		t.Error("Allow() should return false once the burst is exhausted")
	}
}

func TestRateLimiter_IndependentIdentifiers(t *testing.T) {
	rl := NewRateLimiter(10, 2, slog.Default())
	defer rl.Stop()

	for i := 0; i < 2; i++ {
		if !rl.Allow("user:alice") {
			t.Errorf("Allow(alice) request %d should be allowed", i+1)
		}
	}
	if rl.Allow("user:alice") {
		t.Error("alice should be rate limited")
	}

	// Exhausting one identifier must not affect another.
	if !rl.Allow("user:bob") {
		t.Error("bob should not be affected by alice's limit")
	}
}

func TestRateLimiter_Cleanup(t *testing.T) {
	rl := NewRateLimiter(10, 5, slog.Default())
	defer rl.Stop()

	rl.Allow("user:alice")
	rl.Allow("user:bob")

	if got := len(rl.limiters); got != 2 {
		t.Fatalf("expected 2 limiters, got %d", got)
	}

	// Backdate both entries past the idle window.
	rl.mu.Lock()
	for elem := rl.lruList.Front(); elem != nil; elem = elem.Next() {
		elem.Value.(*rateLimiterEntry).lastAccess = time.Now().Add(-time.Hour)
	}
	rl.mu.Unlock()

	rl.Cleanup(30 * time.Minute)

	if got := len(rl.limiters); got != 0 {
		t.Errorf("expected 0 limiters after cleanup, got %d", got)
	}
	if rl.lruList.Len() != 0 {
		t.Errorf("expected empty LRU list after cleanup, got %d", rl.lruList.Len())
	}
}

func TestRateLimiter_LRUEviction(t *testing.T) {
	rl := NewRateLimiter(10, 5, slog.Default())
	defer rl.Stop()
	rl.maxEntries = 3

	for i := 0; i < 3; i++ {
		rl.Allow(fmt.Sprintf("ip:10.0.0.%d", i))
	}

	// Touch the oldest so it becomes most recent.
	rl.Allow("ip:10.0.0.0")

	// A fourth identifier evicts the least recently used one.
	rl.Allow("ip:10.0.0.99")

	if got := len(rl.limiters); got != 3 {
		t.Fatalf("expected 3 limiters after eviction, got %d", got)
	}
	if _, ok := rl.limiters["ip:10.0.0.1"]; ok {
		t.Error("ip:10.0.0.1 should have been evicted")
	}
	if _, ok := rl.limiters["ip:10.0.0.0"]; !ok {
		t.Error("recently touched ip:10.0.0.0 should survive eviction")
	}
}

func TestRateLimiter_StopIsIdempotent(t *testing.T) {
	rl := NewRateLimiter(10, 5, nil)
	rl.Stop()
	rl.Stop() // must not panic
}

func TestNewRateLimiter_NilLogger(t *testing.T) {
	rl := NewRateLimiter(10, 20, nil)
	defer rl.Stop()

	if rl.logger == nil {
		t.Error("logger should default when nil is passed")
	}
	if rl.rate != 10 || rl.burst != 20 {
		t.Errorf("rate/burst = %d/%d, want 10/20", rl.rate, rl.burst)
	}
}
