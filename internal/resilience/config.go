package resilience

import (
	"time"
)

// Config bundles the settings of the three gate components.
type Config struct {
	CircuitBreaker CircuitBreakerConfig
	RateLimiter    RateLimiterConfig
	Bulkhead       BulkheadConfig
}

// CircuitBreakerConfig tunes when a host is considered down.
type CircuitBreakerConfig struct {
	// FailureThreshold consecutive failures open the circuit.
	FailureThreshold int

	// SuccessThreshold consecutive half-open successes close it again.
	SuccessThreshold int

	// OpenTimeout is the cooldown before a half-open attempt is allowed.
	OpenTimeout time.Duration

	// HalfOpenMaxRequests caps attempts in flight while half-open.
	HalfOpenMaxRequests int

	// StaleAttemptTimeout frees half-open slots left behind by a process
	// that exited mid-request.
	StaleAttemptTimeout time.Duration
}

// RateLimiterConfig is a token bucket shared by every speedviz process.
type RateLimiterConfig struct {
	MaxTokens        float64
	RefillRate       float64 // tokens per second
	TokensPerRequest float64
}

// BulkheadConfig caps requests in flight across processes.
type BulkheadConfig struct {
	MaxConcurrent int
}

// Limits are per-host overrides. Zero fields keep the current value.
type Limits struct {
	RequestsPerSecond float64
	Burst             float64
	MaxConcurrent     int
	FailureThreshold  int
	Cooldown          time.Duration
}

// DefaultConfig returns the settings used against the measurement API.
func DefaultConfig() *Config {
	return &Config{
		CircuitBreaker: CircuitBreakerConfig{
			FailureThreshold:    5,
			SuccessThreshold:    2,
			OpenTimeout:         30 * time.Second,
			HalfOpenMaxRequests: 1,
			StaleAttemptTimeout: 2 * time.Minute,
		},
		RateLimiter: RateLimiterConfig{
			MaxTokens:        20,
			RefillRate:       5,
			TokensPerRequest: 1,
		},
		Bulkhead: BulkheadConfig{
			MaxConcurrent: 4,
		},
	}
}

// WithLimits returns a copy of c with the set fields of l applied.
func (c *Config) WithLimits(l Limits) *Config {
	next := *c
	if l.RequestsPerSecond > 0 {
		next.RateLimiter.RefillRate = l.RequestsPerSecond
	}
	if l.Burst > 0 {
		next.RateLimiter.MaxTokens = l.Burst
	}
	if l.MaxConcurrent > 0 {
		next.Bulkhead.MaxConcurrent = l.MaxConcurrent
	}
	if l.FailureThreshold > 0 {
		next.CircuitBreaker.FailureThreshold = l.FailureThreshold
	}
	if l.Cooldown > 0 {
		next.CircuitBreaker.OpenTimeout = l.Cooldown
	}
	return &next
}
