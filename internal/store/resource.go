package store

import (
	"fmt"
	"time"
)

// Resource is the slice of state tracking one fetchable entity.
// Data is only valid for the LastFetchKey it was fetched with.
type Resource[T any] struct {
	IsFetching   bool
	IsFetched    bool
	Data         T
	Err          error
	LastFetchKey string
	Version      uint64 // incremented on every stored success
	FetchedAt    time.Time
}

func (r Resource[T]) Fetching() bool { return r.IsFetching }
func (r Resource[T]) Fetched() bool  { return r.IsFetched }
func (r Resource[T]) Failure() error { return r.Err }

// Status classifies the resource.
func (r Resource[T]) Status() Status {
	return StatusOf(r)
}

// FreshFor reports whether the resource holds data for key and no
// failure has happened since.
func (r Resource[T]) FreshFor(key string) bool {
	return r.IsFetched && r.LastFetchKey == key
}

// InFlightFor reports whether a request for key is outstanding.
func (r Resource[T]) InFlightFor(key string) bool {
	return r.IsFetching && r.LastFetchKey == key
}

// ShouldFetch is the standard staleness rule: fetch unless fresh data or
// an in-flight request already exists for key.
func (r Resource[T]) ShouldFetch(key string) bool {
	return !r.InFlightFor(key) && !r.FreshFor(key)
}

// Identity keys memoized projections of the resource's data.
func (r Resource[T]) Identity(id string) Identity {
	return Identity{ID: id, Key: r.LastFetchKey, Version: r.Version}
}

// now is swapped in tests.
var now = time.Now

// ReduceResource applies a lifecycle action for types to r. The bool
// reports whether anything changed; callers use it to keep returning
// the same state value for unrelated actions.
//
// SUCCESS and FAIL for a key other than LastFetchKey belong to a
// superseded request and are ignored.
func ReduceResource[T any](r Resource[T], a Action, types FetchTypes) (Resource[T], bool) {
	switch a.Type {
	case types.Request:
		r.IsFetching = true
		r.LastFetchKey = a.FetchKey
		return r, true

	case types.Success:
		if a.FetchKey != r.LastFetchKey {
			return r, false
		}
		data, ok := a.Result.(T)
		if !ok && a.Result != nil {
			panic(fmt.Sprintf("store: %s result is %T, want %T", a.Type, a.Result, r.Data))
		}
		r.IsFetching = false
		r.IsFetched = true
		r.Data = data
		r.Err = nil
		r.Version++
		r.FetchedAt = now()
		return r, true

	case types.Fail:
		if a.FetchKey != r.LastFetchKey {
			return r, false
		}
		r.IsFetching = false
		r.IsFetched = false
		r.Err = a.Err
		return r, true
	}
	return r, false
}
