package resilience

import (
	"time"
)

// CircuitBreaker fails fast against a host that keeps failing. Its state
// persists across processes.
type CircuitBreaker struct {
	config CircuitBreakerConfig
	store  *Store
	host   string
	now    func() time.Time
}

// NewCircuitBreaker returns a breaker for host. Zero config values take
// the defaults.
func NewCircuitBreaker(store *Store, host string, config CircuitBreakerConfig) *CircuitBreaker {
	if config.FailureThreshold <= 0 {
		config.FailureThreshold = 5
	}
	if config.SuccessThreshold <= 0 {
		config.SuccessThreshold = 2
	}
	if config.OpenTimeout <= 0 {
		config.OpenTimeout = 30 * time.Second
	}
	if config.StaleAttemptTimeout <= 0 {
		config.StaleAttemptTimeout = config.OpenTimeout
	}
	return &CircuitBreaker{config: config, store: store, host: host, now: time.Now}
}

// Allow reports whether a request may proceed. A closed circuit is a
// read-only check. Once the open timeout has passed the circuit moves to
// half-open and each allowed probe reserves an attempt slot.
func (cb *CircuitBreaker) Allow() (bool, error) {
	state, err := cb.store.Load()
	if err != nil {
		return true, nil //nolint:nilerr // fail open
	}

	current := state.Peek(cb.host).CircuitBreaker
	now := cb.now()

	if current.IsClosed() {
		return true, nil
	}
	if current.IsOpen() && now.Sub(current.OpenedAt) < cb.config.OpenTimeout {
		return false, nil
	}
	if current.IsHalfOpen() && cb.config.HalfOpenMaxRequests <= 0 {
		return true, nil
	}

	var allowed bool
	err = cb.store.Update(func(s *State) error {
		c := &s.Host(cb.host).CircuitBreaker
		switch {
		case c.IsClosed():
			allowed = true
			return nil
		case c.IsOpen():
			if now.Sub(c.OpenedAt) < cb.config.OpenTimeout {
				return nil
			}
			c.State = CircuitHalfOpen
			c.Successes = 0
			c.Failures = 0
			c.HalfOpenAttempts = 0
		}

		if cb.staleAttempts(c, now) {
			c.HalfOpenAttempts = 0
		}
		if cb.config.HalfOpenMaxRequests > 0 && c.HalfOpenAttempts >= cb.config.HalfOpenMaxRequests {
			return nil
		}
		c.HalfOpenAttempts++
		c.HalfOpenLastAttemptAt = now
		s.UpdatedAt = now
		allowed = true
		return nil
	})
	if err != nil {
		return true, nil //nolint:nilerr // fail open
	}
	return allowed, nil
}

// staleAttempts detects half-open probes reserved by processes that exited
// without reporting a result.
func (cb *CircuitBreaker) staleAttempts(c *CircuitBreakerState, now time.Time) bool {
	if c.HalfOpenAttempts < cb.config.HalfOpenMaxRequests || c.HalfOpenLastAttemptAt.IsZero() {
		return false
	}
	return now.Sub(c.HalfOpenLastAttemptAt) >= cb.config.StaleAttemptTimeout
}

// RecordSuccess records a successful request.
func (cb *CircuitBreaker) RecordSuccess() error {
	return cb.store.Update(func(s *State) error {
		c := &s.Host(cb.host).CircuitBreaker
		switch {
		case c.IsHalfOpen():
			if c.HalfOpenAttempts > 0 {
				c.HalfOpenAttempts--
			}
			c.Successes++
			if c.Successes >= cb.config.SuccessThreshold {
				*c = CircuitBreakerState{State: CircuitClosed, LastFailureAt: c.LastFailureAt}
			}
		case c.IsClosed():
			c.Failures = 0
		}
		s.UpdatedAt = cb.now()
		return nil
	})
}

// RecordFailure records a failed request. Any failure while half-open
// reopens the circuit.
func (cb *CircuitBreaker) RecordFailure() error {
	return cb.store.Update(func(s *State) error {
		c := &s.Host(cb.host).CircuitBreaker
		now := cb.now()
		c.LastFailureAt = now

		switch {
		case c.IsClosed():
			c.Failures++
			if c.Failures >= cb.config.FailureThreshold {
				c.State = CircuitOpen
				c.OpenedAt = now
			}
		case c.IsHalfOpen():
			c.State = CircuitOpen
			c.OpenedAt = now
			c.Successes = 0
			c.HalfOpenAttempts = 0
			c.HalfOpenLastAttemptAt = time.Time{}
		}
		s.UpdatedAt = now
		return nil
	})
}

// State returns the effective state. An open circuit past its timeout
// reports half-open.
func (cb *CircuitBreaker) State() (string, error) {
	state, err := cb.store.Load()
	if err != nil {
		return CircuitClosed, err
	}
	c := state.Peek(cb.host).CircuitBreaker
	if c.IsOpen() && cb.now().Sub(c.OpenedAt) >= cb.config.OpenTimeout {
		return CircuitHalfOpen, nil
	}
	if c.State == "" {
		return CircuitClosed, nil
	}
	return c.State, nil
}

// OpenRemaining returns how long an open circuit keeps rejecting requests.
func (cb *CircuitBreaker) OpenRemaining() (time.Duration, error) {
	state, err := cb.store.Load()
	if err != nil {
		return 0, err
	}
	c := state.Peek(cb.host).CircuitBreaker
	if !c.IsOpen() {
		return 0, nil
	}
	return max(0, cb.config.OpenTimeout-cb.now().Sub(c.OpenedAt)), nil
}

// Reset closes the circuit.
func (cb *CircuitBreaker) Reset() error {
	return cb.store.Update(func(s *State) error {
		s.Host(cb.host).CircuitBreaker = CircuitBreakerState{State: CircuitClosed}
		s.UpdatedAt = cb.now()
		return nil
	})
}
