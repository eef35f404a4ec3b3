// Package store is a small immutable state container with a
// fetch-orchestrating middleware.
//
// State changes only through a pure Reducer invoked by Store.Dispatch.
// Asynchronous work is described by AsyncRequest messages that the
// PromiseMiddleware turns into a REQUEST action followed by exactly one
// SUCCESS or FAIL action.
package store

import (
	"cmp"
	"maps"
	"slices"
	"strings"
)

// Message is the closed set of things that can be dispatched:
// Action, AsyncRequest and Thunk.
type Message interface {
	message()
}

// Phase tags where an action sits in a fetch lifecycle.
type Phase int

const (
	PhaseNone Phase = iota
	PhaseRequest
	PhaseSuccess
	PhaseFailure
)

func (p Phase) String() string {
	switch p {
	case PhaseRequest:
		return "request"
	case PhaseSuccess:
		return "success"
	case PhaseFailure:
		return "failure"
	default:
		return "none"
	}
}

// Fields holds named argument values carried by an action
// (locationId, clientIspId, startDate, ...).
type Fields map[string]string

// With returns a copy of f with key set to value.
func (f Fields) With(key, value string) Fields {
	out := make(Fields, len(f)+1)
	maps.Copy(out, f)
	out[key] = value
	return out
}

// Join joins the values of the named fields with sep.
// It reports false if any field is missing or empty.
func (f Fields) Join(sep string, names ...string) (string, bool) {
	parts := make([]string, 0, len(names))
	for _, name := range names {
		v, ok := f[name]
		if !ok || v == "" {
			return "", false
		}
		parts = append(parts, v)
	}
	return strings.Join(parts, sep), true
}

// Action is a plain action consumed by reducers.
type Action struct {
	Type      string
	Fields    Fields
	FetchKey  string
	Phase     Phase
	Result    any
	Err       error
	RequestID string
}

func (Action) message() {}

// Get returns a named field.
func (a Action) Get(name string) string {
	return a.Fields[name]
}

// FetchTypes is the REQUEST/SUCCESS/FAIL triple of action types for one
// asynchronous resource.
type FetchTypes struct {
	Request string
	Success string
	Fail    string
}

// Has reports whether typ is one of the triple.
func (t FetchTypes) Has(typ string) bool {
	return typ == t.Request || typ == t.Success || typ == t.Fail
}

// AsyncRequest describes asynchronous work. The middleware dispatches
// Types.Request immediately, runs Promise, then dispatches Types.Success
// or Types.Fail. Fields and FetchKey are copied onto all three actions.
type AsyncRequest struct {
	Types    FetchTypes
	Promise  Promise
	Fields   Fields
	FetchKey string
}

func (AsyncRequest) message() {}

// rest builds the base action shared by the lifecycle actions.
func (r AsyncRequest) rest() Action {
	return Action{
		Fields:   maps.Clone(r.Fields),
		FetchKey: r.FetchKey,
	}
}

// Thunk runs with access to dispatch and the current state.
// FetchIfNeeded-style conditional dispatch is written as a Thunk.
type Thunk[S any] func(dispatch Dispatch, getState func() S) any

func (Thunk[S]) message() {}

// Dispatch sends a message through the store's middleware chain.
type Dispatch func(Message) any

// sortedKeys returns the keys of m in order.
func sortedKeys[K cmp.Ordered, V any](m map[K]V) []K {
	return slices.Sorted(maps.Keys(m))
}
