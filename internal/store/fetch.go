package store

import (
	"fmt"
	"strings"
)

// FetchKeySep joins key arguments into a FetchKey.
const FetchKeySep = "|"

// FetchDescriptor describes one fetchable resource: how its action types
// are named, which arguments it takes, when it is stale, and how to
// request it. Descriptors are built once at package init.
type FetchDescriptor[S any] struct {
	TypePrefix string
	Key        string

	// Args names the positional values passed to Fetch, in order.
	Args []string

	// KeyArgs names the arguments that identify a request for staleness.
	// Defaults to Args.
	KeyArgs []string

	// ShouldFetch decides staleness against the current state.
	ShouldFetch func(state S, args Fields, fetchKey string) bool

	// Promise builds the request for the given arguments. It runs later,
	// once the middleware supplies the Requester.
	Promise func(args Fields) Promise
}

// Fetcher is the action factory produced from a FetchDescriptor.
type Fetcher[S any] struct {
	Types FetchTypes
	desc  FetchDescriptor[S]
}

// NewFetcher builds the action triple and helpers for desc.
func NewFetcher[S any](desc FetchDescriptor[S]) *Fetcher[S] {
	if desc.Promise == nil {
		panic(fmt.Sprintf("store: fetch descriptor %s%s has no promise", desc.TypePrefix, desc.Key))
	}
	if len(desc.KeyArgs) == 0 {
		desc.KeyArgs = desc.Args
	}
	base := desc.TypePrefix + desc.Key
	return &Fetcher[S]{
		Types: FetchTypes{
			Request: base + "_REQUEST",
			Success: base + "_SUCCESS",
			Fail:    base + "_FAIL",
		},
		desc: desc,
	}
}

// Fields zips positional values with the descriptor's argument names.
// A count mismatch is a programming error and panics.
func (f *Fetcher[S]) Fields(values ...string) Fields {
	if len(values) != len(f.desc.Args) {
		panic(fmt.Sprintf("store: %s takes %d args (%s), got %d",
			f.Types.Request, len(f.desc.Args), strings.Join(f.desc.Args, ", "), len(values)))
	}
	fields := make(Fields, len(values))
	for i, name := range f.desc.Args {
		fields[name] = values[i]
	}
	return fields
}

// FetchKey computes the staleness key for fields.
func (f *Fetcher[S]) FetchKey(fields Fields) string {
	parts := make([]string, len(f.desc.KeyArgs))
	for i, name := range f.desc.KeyArgs {
		parts[i] = fields[name]
	}
	return strings.Join(parts, FetchKeySep)
}

// Fetch returns the AsyncRequest for values.
func (f *Fetcher[S]) Fetch(values ...string) AsyncRequest {
	fields := f.Fields(values...)
	return AsyncRequest{
		Types:    f.Types,
		Promise:  f.desc.Promise(fields),
		Fields:   fields,
		FetchKey: f.FetchKey(fields),
	}
}

// ShouldFetch evaluates the descriptor's staleness predicate.
// A descriptor without a predicate always fetches.
func (f *Fetcher[S]) ShouldFetch(state S, values ...string) bool {
	if f.desc.ShouldFetch == nil {
		return true
	}
	fields := f.Fields(values...)
	return f.desc.ShouldFetch(state, fields, f.FetchKey(fields))
}

// FetchIfNeeded returns a thunk that dispatches Fetch only when
// ShouldFetch holds. The thunk returns the dispatch result (a *Future)
// or nil when nothing was issued.
func (f *Fetcher[S]) FetchIfNeeded(values ...string) Thunk[S] {
	return func(dispatch Dispatch, getState func() S) any {
		if !f.ShouldFetch(getState(), values...) {
			return nil
		}
		return dispatch(f.Fetch(values...))
	}
}
