package resilience

import (
	"slices"
	"time"
)

// StateVersion is the current state schema version. Files written with
// another version are discarded on load.
const StateVersion = 2

// State is the persisted resilience state shared across speedviz
// processes, tracked separately for every API host.
type State struct {
	Version   int                   `json:"version"`
	Hosts     map[string]*HostState `json:"hosts"`
	UpdatedAt time.Time             `json:"updated_at"`
}

// HostState holds the primitives' state for one API host.
type HostState struct {
	CircuitBreaker CircuitBreakerState `json:"circuit_breaker"`
	RateLimiter    RateLimiterState    `json:"rate_limiter"`
	Bulkhead       BulkheadState       `json:"bulkhead"`
}

// Host returns the state for host, creating it if needed.
func (s *State) Host(host string) *HostState {
	if s.Hosts == nil {
		s.Hosts = make(map[string]*HostState)
	}
	h, ok := s.Hosts[host]
	if !ok {
		h = &HostState{
			CircuitBreaker: CircuitBreakerState{State: CircuitClosed},
			Bulkhead:       BulkheadState{ActivePIDs: []int{}},
		}
		s.Hosts[host] = h
	}
	return h
}

// Peek returns a copy of the state for host without creating it.
func (s *State) Peek(host string) HostState {
	if h, ok := s.Hosts[host]; ok {
		return *h
	}
	return HostState{CircuitBreaker: CircuitBreakerState{State: CircuitClosed}}
}

// CircuitBreakerState tracks the circuit breaker pattern state.
type CircuitBreakerState struct {
	// State is "closed" (requests flow), "open" (fail fast) or
	// "half_open" (a limited number of probes allowed).
	State string `json:"state"`

	// Failures counts consecutive failures while closed.
	Failures int `json:"failures"`

	// Successes counts consecutive successes while half-open.
	Successes int `json:"successes"`

	// HalfOpenAttempts counts in-flight probes across processes.
	HalfOpenAttempts int `json:"half_open_attempts,omitempty"`

	// HalfOpenLastAttemptAt detects probes leaked by crashed processes.
	HalfOpenLastAttemptAt time.Time `json:"half_open_last_attempt_at"`

	LastFailureAt time.Time `json:"last_failure_at"`
	OpenedAt      time.Time `json:"opened_at"`
}

// Circuit breaker state constants.
const (
	CircuitClosed   = "closed"
	CircuitOpen     = "open"
	CircuitHalfOpen = "half_open"
)

func (c *CircuitBreakerState) IsClosed() bool {
	return c.State == "" || c.State == CircuitClosed
}

func (c *CircuitBreakerState) IsOpen() bool {
	return c.State == CircuitOpen
}

func (c *CircuitBreakerState) IsHalfOpen() bool {
	return c.State == CircuitHalfOpen
}

// RateLimiterState is a token bucket plus an optional Retry-After block.
type RateLimiterState struct {
	Tokens          float64   `json:"tokens"`
	LastRefillAt    time.Time `json:"last_refill_at"`
	RetryAfterUntil time.Time `json:"retry_after_until"`
}

// BlockedFor returns how long until the Retry-After window expires at now.
func (r *RateLimiterState) BlockedFor(now time.Time) time.Duration {
	if r.RetryAfterUntil.IsZero() || !now.Before(r.RetryAfterUntil) {
		return 0
	}
	return r.RetryAfterUntil.Sub(now)
}

// BulkheadState lists the processes currently holding a permit.
type BulkheadState struct {
	ActivePIDs []int `json:"active_pids"`
}

func (b *BulkheadState) Count() int {
	return len(b.ActivePIDs)
}

func (b *BulkheadState) HasPID(pid int) bool {
	return slices.Contains(b.ActivePIDs, pid)
}

func (b *BulkheadState) AddPID(pid int) {
	if !b.HasPID(pid) {
		b.ActivePIDs = append(b.ActivePIDs, pid)
	}
}

func (b *BulkheadState) RemovePID(pid int) {
	b.ActivePIDs = slices.DeleteFunc(b.ActivePIDs, func(p int) bool { return p == pid })
}

// NewState returns an empty State.
func NewState() *State {
	return &State{
		Version:   StateVersion,
		Hosts:     make(map[string]*HostState),
		UpdatedAt: time.Now(),
	}
}
