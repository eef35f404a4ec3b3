package store

import (
	"context"
	"sync"
)

// Future is the handle returned for a dispatched AsyncRequest.
// It settles with the promise's own value and error, after the
// SUCCESS or FAIL action has been dispatched.
type Future struct {
	once  sync.Once
	done  chan struct{}
	value any
	err   error
}

func newFuture() *Future {
	return &Future{done: make(chan struct{})}
}

func (f *Future) settle(value any, err error) {
	f.once.Do(func() {
		f.value = value
		f.err = err
		close(f.done)
	})
}

// Done is closed once the future settles.
func (f *Future) Done() <-chan struct{} {
	return f.done
}

// Wait blocks until the future settles or ctx is done.
func (f *Future) Wait(ctx context.Context) (any, error) {
	select {
	case <-f.done:
		return f.value, f.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Await waits on the result of a Dispatch call. Dispatch results that are
// not futures (a skipped FetchIfNeeded, a plain action) return immediately.
func Await(ctx context.Context, result any) (any, error) {
	f, ok := result.(*Future)
	if !ok || f == nil {
		return result, nil
	}
	return f.Wait(ctx)
}
