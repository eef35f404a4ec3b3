package store

import "maps"

// KeySep joins identifiers into a composite entry key
// (location1 + clientIsp1 -> location1_clientIsp1).
const KeySep = "_"

// Keyed is an immutable collection of entries keyed by a composite ID.
// A nil *Keyed is an empty collection.
type Keyed[E any] struct {
	entries map[string]*E
}

// Get returns the entry for id.
func (k *Keyed[E]) Get(id string) (*E, bool) {
	if k == nil {
		return nil, false
	}
	e, ok := k.entries[id]
	return e, ok
}

// Len returns the number of entries.
func (k *Keyed[E]) Len() int {
	if k == nil {
		return 0
	}
	return len(k.entries)
}

// Keys returns the entry keys in sorted order.
func (k *Keyed[E]) Keys() []string {
	if k == nil {
		return nil
	}
	return sortedKeys(k.entries)
}

// With returns a new collection with id set to e. Other entries are shared.
func (k *Keyed[E]) With(id string, e *E) *Keyed[E] {
	next := &Keyed[E]{entries: make(map[string]*E, k.Len()+1)}
	if k != nil {
		maps.Copy(next.entries, k.entries)
	}
	next.entries[id] = e
	return next
}

// KeyedReducer reduces one entry of a Keyed collection.
type KeyedReducer[E any] struct {
	// Fields names the action fields joined (in order) into the entry key.
	Fields []string

	// Init builds the default entry for a new key.
	Init func(id string) E

	// Reduce returns e itself when nothing changed.
	Reduce func(e *E, a Action) *E
}

// Apply routes a to the entry its fields identify. Actions missing any
// key field leave the collection untouched. Actions carrying the fields
// create the entry if it does not exist yet.
func (r KeyedReducer[E]) Apply(k *Keyed[E], a Action) *Keyed[E] {
	id, ok := a.Fields.Join(KeySep, r.Fields...)
	if !ok {
		return k
	}

	current, exists := k.Get(id)
	if !exists {
		initial := r.Init(id)
		current = &initial
	}

	next := current
	if r.Reduce != nil {
		next = r.Reduce(current, a)
	}
	if exists && next == current {
		return k
	}
	return k.With(id, next)
}
