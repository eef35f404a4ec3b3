package resilience

import (
	"testing"
	"time"
)

func newTestBreaker(t *testing.T, cfg CircuitBreakerConfig) (*CircuitBreaker, *fakeClock) {
	t.Helper()
	clock := newFakeClock()
	cb := NewCircuitBreaker(NewStore(t.TempDir()), testHost, cfg)
	cb.now = clock.Now
	return cb, clock
}

func mustState(t *testing.T, cb *CircuitBreaker, want string) {
	t.Helper()
	got, err := cb.State()
	if err != nil {
		t.Fatalf("State: %v", err)
	}
	if got != want {
		t.Fatalf("state = %s, want %s", got, want)
	}
}

func TestCircuitBreakerDefaultsClosed(t *testing.T) {
	cb, _ := newTestBreaker(t, CircuitBreakerConfig{})
	mustState(t, cb, CircuitClosed)

	allowed, err := cb.Allow()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !allowed {
		t.Error("expected closed circuit to allow")
	}
}

func TestCircuitBreakerOpensAfterFailures(t *testing.T) {
	cb, _ := newTestBreaker(t, CircuitBreakerConfig{FailureThreshold: 3})

	for range 2 {
		if err := cb.RecordFailure(); err != nil {
			t.Fatalf("RecordFailure: %v", err)
		}
	}
	mustState(t, cb, CircuitClosed)

	if err := cb.RecordFailure(); err != nil {
		t.Fatalf("RecordFailure: %v", err)
	}
	mustState(t, cb, CircuitOpen)

	if allowed, _ := cb.Allow(); allowed {
		t.Error("expected open circuit to reject")
	}
	remaining, err := cb.OpenRemaining()
	if err != nil {
		t.Fatalf("OpenRemaining: %v", err)
	}
	if remaining != 30*time.Second {
		t.Errorf("remaining = %v, want 30s", remaining)
	}
}

func TestCircuitBreakerSuccessResetsFailureCount(t *testing.T) {
	cb, _ := newTestBreaker(t, CircuitBreakerConfig{FailureThreshold: 3})

	_ = cb.RecordFailure()
	_ = cb.RecordFailure()
	_ = cb.RecordSuccess()
	_ = cb.RecordFailure()
	_ = cb.RecordFailure()

	mustState(t, cb, CircuitClosed)
}

func TestCircuitBreakerHalfOpenRecovery(t *testing.T) {
	cb, clock := newTestBreaker(t, CircuitBreakerConfig{
		FailureThreshold:    1,
		SuccessThreshold:    2,
		OpenTimeout:         10 * time.Second,
		HalfOpenMaxRequests: 1,
	})

	_ = cb.RecordFailure()
	clock.Advance(10 * time.Second)
	mustState(t, cb, CircuitHalfOpen)

	if allowed, _ := cb.Allow(); !allowed {
		t.Fatal("expected first probe to be allowed")
	}
	if allowed, _ := cb.Allow(); allowed {
		t.Fatal("expected second concurrent probe to be rejected")
	}

	_ = cb.RecordSuccess()
	mustState(t, cb, CircuitHalfOpen)

	if allowed, _ := cb.Allow(); !allowed {
		t.Fatal("expected probe slot to be free after success")
	}
	_ = cb.RecordSuccess()
	mustState(t, cb, CircuitClosed)
}

func TestCircuitBreakerFailureInHalfOpenReopens(t *testing.T) {
	cb, clock := newTestBreaker(t, CircuitBreakerConfig{
		FailureThreshold: 1,
		OpenTimeout:      5 * time.Second,
	})

	_ = cb.RecordFailure()
	clock.Advance(5 * time.Second)
	if allowed, _ := cb.Allow(); !allowed {
		t.Fatal("expected probe after timeout")
	}
	_ = cb.RecordFailure()
	mustState(t, cb, CircuitOpen)
}

func TestCircuitBreakerStaleProbeReclaimed(t *testing.T) {
	cb, clock := newTestBreaker(t, CircuitBreakerConfig{
		FailureThreshold:    1,
		OpenTimeout:         5 * time.Second,
		HalfOpenMaxRequests: 1,
		StaleAttemptTimeout: time.Minute,
	})

	_ = cb.RecordFailure()
	clock.Advance(5 * time.Second)
	if allowed, _ := cb.Allow(); !allowed {
		t.Fatal("expected probe")
	}
	// The prober never reports back.
	clock.Advance(30 * time.Second)
	if allowed, _ := cb.Allow(); allowed {
		t.Fatal("probe slot should still be held")
	}
	clock.Advance(31 * time.Second)
	if allowed, _ := cb.Allow(); !allowed {
		t.Fatal("expected stale probe slot to be reclaimed")
	}
}

func TestCircuitBreakerHostsAreIndependent(t *testing.T) {
	store := NewStore(t.TempDir())
	a := NewCircuitBreaker(store, "a.example", CircuitBreakerConfig{FailureThreshold: 1})
	b := NewCircuitBreaker(store, "b.example", CircuitBreakerConfig{FailureThreshold: 1})

	_ = a.RecordFailure()
	mustState(t, a, CircuitOpen)
	mustState(t, b, CircuitClosed)
}

func TestCircuitBreakerPersistsAcrossInstances(t *testing.T) {
	dir := t.TempDir()
	first := NewCircuitBreaker(NewStore(dir), testHost, CircuitBreakerConfig{FailureThreshold: 2})
	_ = first.RecordFailure()
	_ = first.RecordFailure()

	second := NewCircuitBreaker(NewStore(dir), testHost, CircuitBreakerConfig{FailureThreshold: 2})
	mustState(t, second, CircuitOpen)

	if err := second.Reset(); err != nil {
		t.Fatalf("Reset: %v", err)
	}
	mustState(t, first, CircuitClosed)
}

func TestCircuitBreakerAppliesDefaults(t *testing.T) {
	cb := NewCircuitBreaker(NewStore(t.TempDir()), testHost, CircuitBreakerConfig{})
	if cb.config.FailureThreshold != 5 {
		t.Errorf("FailureThreshold = %d, want 5", cb.config.FailureThreshold)
	}
	if cb.config.SuccessThreshold != 2 {
		t.Errorf("SuccessThreshold = %d, want 2", cb.config.SuccessThreshold)
	}
	if cb.config.OpenTimeout != 30*time.Second {
		t.Errorf("OpenTimeout = %v, want 30s", cb.config.OpenTimeout)
	}
	if cb.config.StaleAttemptTimeout != cb.config.OpenTimeout {
		t.Errorf("StaleAttemptTimeout = %v, want OpenTimeout", cb.config.StaleAttemptTimeout)
	}
}
