package resilience

import (
	"context"
	"errors"
	"math"
	"time"

	"github.com/speedviz/speedviz/internal/output"
)

// defaultRetryAfter blocks a host after a 429 that carried no Retry-After.
const defaultRetryAfter = 60 * time.Second

// Gate admits requests to one host. Checks run cheapest first: rate
// limiter, bulkhead, then circuit breaker, so a rejected request never
// holds a half-open probe slot.
type Gate struct {
	host    string
	breaker *CircuitBreaker
	limiter *RateLimiter
	bulk    *Bulkhead
}

// NewGate builds a gate for host from cfg. A nil cfg uses DefaultConfig.
func NewGate(store *Store, host string, cfg *Config) *Gate {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	return &Gate{
		host:    host,
		breaker: NewCircuitBreaker(store, host, cfg.CircuitBreaker),
		limiter: NewRateLimiter(store, host, cfg.RateLimiter),
		bulk:    NewBulkhead(store, host, cfg.Bulkhead),
	}
}

// Host returns the host the gate guards.
func (g *Gate) Host() string { return g.host }

// Enter admits one request. On success the caller must invoke done with
// the request's outcome exactly once.
func (g *Gate) Enter(ctx context.Context) (done func(err error), err error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if ok, _ := g.limiter.Allow(); !ok {
		wait, _ := g.limiter.RetryAfterRemaining()
		return nil, output.ErrRateLimit(int(math.Ceil(wait.Seconds())))
	}

	if ok, _ := g.bulk.Acquire(); !ok {
		return nil, output.ErrUnavailable("too many concurrent speedviz processes", 0)
	}

	if ok, _ := g.breaker.Allow(); !ok {
		_ = g.bulk.Release()
		wait, _ := g.breaker.OpenRemaining()
		return nil, output.ErrUnavailable("circuit open for "+g.host, wait)
	}

	return func(err error) {
		_ = g.bulk.Release()
		if tripsCircuit(err) {
			_ = g.breaker.RecordFailure()
		} else {
			_ = g.breaker.RecordSuccess()
		}
	}, nil
}

// ObserveRateLimit records a 429. A zero retryAfter means the server sent
// no usable Retry-After header.
func (g *Gate) ObserveRateLimit(retryAfter time.Duration) {
	if retryAfter <= 0 {
		retryAfter = defaultRetryAfter
	}
	_ = g.limiter.SetRetryAfterDuration(retryAfter)
}

// tripsCircuit reports whether err says the host is unhealthy. Client
// errors and cancellations do not count against it.
func tripsCircuit(err error) bool {
	if err == nil || errors.Is(err, context.Canceled) {
		return false
	}
	var e *output.Error
	if !errors.As(err, &e) {
		return false
	}
	switch e.Code {
	case output.CodeNetwork:
		return true
	case output.CodeAPI:
		return e.HTTPStatus >= 500
	}
	return false
}

// Snapshot is the gate's state as reported by `speedviz status`.
type Snapshot struct {
	Host             string  `json:"host"`
	Circuit          string  `json:"circuit"`
	Failures         int     `json:"failures"`
	Tokens           float64 `json:"tokens"`
	RetryAfterSecs   int     `json:"retry_after_secs"`
	BulkheadInUse    int     `json:"bulkhead_in_use"`
	BulkheadCapacity int     `json:"bulkhead_capacity"`
}

// Snapshot reads the current state.
func (g *Gate) Snapshot() (Snapshot, error) {
	circuit, err := g.breaker.State()
	if err != nil {
		return Snapshot{}, err
	}
	state, err := g.breaker.store.Load()
	if err != nil {
		return Snapshot{}, err
	}
	tokens, err := g.limiter.Tokens()
	if err != nil {
		return Snapshot{}, err
	}
	wait, err := g.limiter.RetryAfterRemaining()
	if err != nil {
		return Snapshot{}, err
	}
	inUse, err := g.bulk.InUse()
	if err != nil {
		return Snapshot{}, err
	}
	return Snapshot{
		Host:             g.host,
		Circuit:          circuit,
		Failures:         state.Peek(g.host).CircuitBreaker.Failures,
		Tokens:           math.Floor(tokens),
		RetryAfterSecs:   int(math.Ceil(wait.Seconds())),
		BulkheadInUse:    inUse,
		BulkheadCapacity: g.bulk.config.MaxConcurrent,
	}, nil
}

// Reset clears all state for the host.
func (g *Gate) Reset() error {
	return errors.Join(g.breaker.Reset(), g.limiter.Reset(), g.bulk.Reset())
}
