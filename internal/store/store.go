package store

import (
	"fmt"
	"sync"
)

// Reducer computes the next state. It must be pure and must return the
// same state value when the action does not concern it.
type Reducer[S any] func(state S, action Action) S

// MiddlewareAPI is what a middleware sees of the store.
type MiddlewareAPI[S any] struct {
	// Dispatch re-enters the full middleware chain.
	Dispatch Dispatch
	GetState func() S
}

// Middleware intercepts messages on their way to the reducer.
type Middleware[S any] func(api MiddlewareAPI[S]) func(next Dispatch) Dispatch

// Store is an explicit state container. State is replaced, never
// mutated, and only by the reducer through Dispatch.
type Store[S any] struct {
	mu      sync.RWMutex
	state   S
	reducer Reducer[S]

	listenersMu sync.Mutex
	listeners   map[uint64]func()
	nextID      uint64

	dispatch Dispatch
}

// New creates a store. Middleware is applied so that the first entry
// sees a message first.
func New[S any](reducer Reducer[S], initial S, middleware ...Middleware[S]) *Store[S] {
	s := &Store[S]{
		state:     initial,
		reducer:   reducer,
		listeners: make(map[uint64]func()),
	}

	api := MiddlewareAPI[S]{
		Dispatch: func(m Message) any { return s.dispatch(m) },
		GetState: s.GetState,
	}

	d := Dispatch(s.reduce)
	for i := len(middleware) - 1; i >= 0; i-- {
		d = middleware[i](api)(d)
	}
	s.dispatch = d
	return s
}

// Dispatch sends a message through the middleware chain.
func (s *Store[S]) Dispatch(m Message) any {
	return s.dispatch(m)
}

// GetState returns the current state. Never blocks on in-flight fetches.
func (s *Store[S]) GetState() S {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

// Subscribe registers fn to run after every committed action.
// A panic in fn is recovered so it cannot turn a committed SUCCESS into
// a FAIL. The returned function removes the subscription.
func (s *Store[S]) Subscribe(fn func()) func() {
	s.listenersMu.Lock()
	defer s.listenersMu.Unlock()
	id := s.nextID
	s.nextID++
	s.listeners[id] = fn
	return func() {
		s.listenersMu.Lock()
		defer s.listenersMu.Unlock()
		delete(s.listeners, id)
	}
}

// reduce is the innermost dispatch: only plain actions reach the reducer.
func (s *Store[S]) reduce(m Message) any {
	action, ok := m.(Action)
	if !ok {
		panic(fmt.Sprintf("store: %T reached the reducer; is the promise middleware installed?", m))
	}

	s.commit(action)
	s.notify()
	return action
}

// commit runs the reducer under the write lock. A panicking reducer
// leaves the previous state in place.
func (s *Store[S]) commit(action Action) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = s.reducer(s.state, action)
}

func (s *Store[S]) notify() {
	s.listenersMu.Lock()
	// IDs increase with each subscription, so this is subscription order.
	ids := sortedKeys(s.listeners)
	fns := make([]func(), 0, len(ids))
	for _, id := range ids {
		fns = append(fns, s.listeners[id])
	}
	s.listenersMu.Unlock()

	for _, fn := range fns {
		callListener(fn)
	}
}

func callListener(fn func()) {
	defer func() { _ = recover() }()
	fn()
}
