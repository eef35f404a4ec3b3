package resilience

import (
	"time"
)

// RateLimiter is a token bucket shared by all processes talking to a host.
type RateLimiter struct {
	config RateLimiterConfig
	store  *Store
	host   string
	now    func() time.Time
}

// NewRateLimiter returns a limiter for host. Zero config values take the
// defaults.
func NewRateLimiter(store *Store, host string, config RateLimiterConfig) *RateLimiter {
	if config.MaxTokens <= 0 {
		config.MaxTokens = 50
	}
	if config.RefillRate <= 0 {
		config.RefillRate = 10
	}
	if config.TokensPerRequest <= 0 {
		config.TokensPerRequest = 1
	}
	return &RateLimiter{config: config, store: store, host: host, now: time.Now}
}

func (rl *RateLimiter) refill(r *RateLimiterState, now time.Time) {
	if r.LastRefillAt.IsZero() {
		r.Tokens = rl.config.MaxTokens
		r.LastRefillAt = now
		return
	}
	elapsed := now.Sub(r.LastRefillAt)
	r.LastRefillAt = now
	r.Tokens = min(rl.config.MaxTokens, r.Tokens+elapsed.Seconds()*rl.config.RefillRate)
}

// Allow consumes a request's worth of tokens if available. Requests are
// refused outright while a Retry-After window is active.
func (rl *RateLimiter) Allow() (bool, error) {
	var allowed bool
	err := rl.store.Update(func(s *State) error {
		r := &s.Host(rl.host).RateLimiter
		now := rl.now()
		if r.BlockedFor(now) > 0 {
			return nil
		}

		rl.refill(r, now)
		if r.Tokens >= rl.config.TokensPerRequest {
			r.Tokens -= rl.config.TokensPerRequest
			allowed = true
		}
		s.UpdatedAt = now
		return nil
	})
	if err != nil {
		return true, nil //nolint:nilerr // fail open
	}
	return allowed, nil
}

// SetRetryAfter blocks requests until the given time. An earlier time never
// shortens an existing block.
func (rl *RateLimiter) SetRetryAfter(until time.Time) error {
	return rl.store.Update(func(s *State) error {
		r := &s.Host(rl.host).RateLimiter
		if until.After(r.RetryAfterUntil) {
			r.RetryAfterUntil = until
			s.UpdatedAt = rl.now()
		}
		return nil
	})
}

// SetRetryAfterDuration blocks requests for d.
func (rl *RateLimiter) SetRetryAfterDuration(d time.Duration) error {
	return rl.SetRetryAfter(rl.now().Add(d))
}

// Tokens returns the available tokens, persisting any refill.
func (rl *RateLimiter) Tokens() (float64, error) {
	var tokens float64
	err := rl.store.Update(func(s *State) error {
		r := &s.Host(rl.host).RateLimiter
		now := rl.now()
		rl.refill(r, now)
		tokens = r.Tokens
		s.UpdatedAt = now
		return nil
	})
	if err != nil {
		return 0, err
	}
	return tokens, nil
}

// RetryAfterRemaining returns what is left of the Retry-After block.
func (rl *RateLimiter) RetryAfterRemaining() (time.Duration, error) {
	state, err := rl.store.Load()
	if err != nil {
		return 0, err
	}
	r := state.Peek(rl.host).RateLimiter
	return r.BlockedFor(rl.now()), nil
}

// Reset refills the bucket and lifts any block.
func (rl *RateLimiter) Reset() error {
	return rl.store.Update(func(s *State) error {
		now := rl.now()
		s.Host(rl.host).RateLimiter = RateLimiterState{Tokens: rl.config.MaxTokens, LastRefillAt: now}
		s.UpdatedAt = now
		return nil
	})
}
