package store

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/url"
	"sync"

	"github.com/google/uuid"
)

// Requester is the external collaborator promises run against.
// It decodes the response body for path into out.
// Implementations must be safe for concurrent use.
type Requester interface {
	Get(ctx context.Context, path string, params url.Values, out any) error
}

// Promise performs the asynchronous work of an AsyncRequest.
type Promise func(ctx context.Context, api Requester) (any, error)

// PromiseOption configures a PromiseMiddleware.
type PromiseOption func(*promiseConfig)

type promiseConfig struct {
	ctx    context.Context
	logger *slog.Logger
	newID  func() string
}

// WithContext sets the base context promises run under.
func WithContext(ctx context.Context) PromiseOption {
	return func(c *promiseConfig) { c.ctx = ctx }
}

// WithLogger sets the logger used for recovered panics and settle events.
func WithLogger(l *slog.Logger) PromiseOption {
	return func(c *promiseConfig) { c.logger = l }
}

// WithRequestIDs overrides request ID generation (for tests).
func WithRequestIDs(fn func() string) PromiseOption {
	return func(c *promiseConfig) { c.newID = fn }
}

// PromiseMiddleware runs thunks and sequences AsyncRequest lifecycles.
type PromiseMiddleware[S any] struct {
	api    Requester
	ctx    context.Context
	cancel context.CancelFunc
	logger *slog.Logger
	newID  func() string
	wg     sync.WaitGroup
}

// NewPromiseMiddleware binds a middleware to api.
func NewPromiseMiddleware[S any](api Requester, opts ...PromiseOption) *PromiseMiddleware[S] {
	cfg := promiseConfig{
		ctx:    context.Background(),
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
		newID:  uuid.NewString,
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	ctx, cancel := context.WithCancel(cfg.ctx)
	return &PromiseMiddleware[S]{
		api:    api,
		ctx:    ctx,
		cancel: cancel,
		logger: cfg.logger,
		newID:  cfg.newID,
	}
}

// Middleware returns the store middleware.
func (pm *PromiseMiddleware[S]) Middleware() Middleware[S] {
	return func(api MiddlewareAPI[S]) func(next Dispatch) Dispatch {
		return func(next Dispatch) Dispatch {
			return func(m Message) any {
				switch msg := m.(type) {
				case Thunk[S]:
					return msg(api.Dispatch, api.GetState)
				case AsyncRequest:
					return pm.run(api, msg)
				case Action:
					return next(msg)
				default:
					panic(fmt.Sprintf("store: unknown message %T", m))
				}
			}
		}
	}
}

// Wait blocks until every in-flight request has settled.
func (pm *PromiseMiddleware[S]) Wait() {
	pm.wg.Wait()
}

// Close cancels the context of in-flight promises and waits for them.
func (pm *PromiseMiddleware[S]) Close() {
	pm.cancel()
	pm.wg.Wait()
}

func (pm *PromiseMiddleware[S]) run(api MiddlewareAPI[S], req AsyncRequest) *Future {
	rest := req.rest()
	rest.RequestID = pm.newID()

	request := rest
	request.Type = req.Types.Request
	request.Phase = PhaseRequest
	api.Dispatch(request)

	future := newFuture()
	pm.wg.Add(1)
	go func() {
		defer pm.wg.Done()
		value, err := pm.call(req.Promise)
		pm.finish(api, req.Types, rest, value, err)
		future.settle(value, err)
	}()
	return future
}

// call invokes the promise, turning a panic into an error.
func (pm *PromiseMiddleware[S]) call(p Promise) (value any, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("promise panicked: %v", r)
		}
	}()
	if p == nil {
		return nil, fmt.Errorf("async request has no promise")
	}
	return p(pm.ctx, pm.api)
}

// finish dispatches exactly one of SUCCESS or FAIL. A panic while
// dispatching SUCCESS becomes a FAIL, and a panicking FAIL is dispatched
// once more, so IsFetching is cleared unless both FAIL attempts panic.
func (pm *PromiseMiddleware[S]) finish(api MiddlewareAPI[S], types FetchTypes, rest Action, value any, err error) {
	if err == nil {
		success := rest
		success.Type = types.Success
		success.Phase = PhaseSuccess
		success.Result = value
		perr := safeDispatch(api.Dispatch, success)
		if perr == nil {
			return
		}
		pm.logger.Error("success dispatch panicked", "type", types.Success, "request_id", rest.RequestID, "error", perr)
		err = perr
	}

	failure := rest
	failure.Type = types.Fail
	failure.Phase = PhaseFailure
	failure.Err = err
	for attempt := 1; attempt <= failAttempts; attempt++ {
		perr := safeDispatch(api.Dispatch, failure)
		if perr == nil {
			return
		}
		pm.logger.Error("failure dispatch panicked", "type", types.Fail, "request_id", rest.RequestID,
			"attempt", attempt, "error", perr)
	}
}

// failAttempts bounds FAIL dispatches for one request.
const failAttempts = 2

func safeDispatch(dispatch Dispatch, a Action) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("dispatch %s: %v", a.Type, r)
		}
	}()
	dispatch(a)
	return nil
}
