package kernel

import (
	"github.com/brentp/intintmap"
)

// Column is a typed, dense column store for one component type,
// obtained through the World's Storage accessor. It keeps a packed
// slice of values plus an intintmap.Map from entity id to slot index,
// so that iteration over a component (the common per-tick case: "for
// every mission, run") never walks a sparse map.
type Column[T any] struct {
	index  *intintmap.Map
	values []T
	owners []Entity
}

// NewColumn creates an empty component store hinted to hold about
// capacity entities.
func NewColumn[T any](capacity int) *Column[T] {
	if capacity < 8 {
		capacity = 8
	}
	return &Column[T]{
		index:  intintmap.New(capacity, 0.6),
		values: make([]T, 0, capacity),
		owners: make([]Entity, 0, capacity),
	}
}

func slot(e Entity) int64 {
	return int64(e.id)<<32 | int64(e.gen)
}

// Set attaches or replaces the component value for e.
func (s *Column[T]) Set(e Entity, v T) {
	if i, ok := s.index.Get(slot(e)); ok {
		s.values[i] = v
		return
	}
	i := int64(len(s.values))
	s.values = append(s.values, v)
	s.owners = append(s.owners, e)
	s.index.Put(slot(e), i)
}

// Get returns the component for e, if present.
func (s *Column[T]) Get(e Entity) (T, bool) {
	var zero T
	i, ok := s.index.Get(slot(e))
	if !ok {
		return zero, false
	}
	return s.values[i], true
}

// MustGet returns the component for e, panicking if absent. Used only
// in contexts where presence is a precondition already checked by the
// caller (e.g. inside a system iterating the same storage).
func (s *Column[T]) MustGet(e Entity) T {
	v, ok := s.Get(e)
	if !ok {
		panic("kernel: component not present for entity " + e.String())
	}
	return v
}

// Has reports whether e carries this component.
func (s *Column[T]) Has(e Entity) bool {
	_, ok := s.index.Get(slot(e))
	return ok
}

// Remove detaches the component from e, if present. It swaps the last
// element into the removed slot's place to keep values/owners packed.
func (s *Column[T]) Remove(e Entity) {
	i, ok := s.index.Get(slot(e))
	if !ok {
		return
	}
	last := int64(len(s.values) - 1)
	if i != last {
		s.values[i] = s.values[last]
		s.owners[i] = s.owners[last]
		s.index.Put(slot(s.owners[i]), i)
	}
	s.values = s.values[:last]
	s.owners = s.owners[:last]
	s.index.Del(slot(e))
}

// Len returns the number of entities carrying this component.
func (s *Column[T]) Len() int { return len(s.values) }

// Each calls fn for every (entity, component) pair. fn must not call
// Set/Remove on this storage; go through the World's lazy-update queue
// instead, as iteration order is unspecified and a concurrent mutation
// during Each corrupts the packed layout.
func (s *Column[T]) Each(fn func(Entity, *T)) {
	for i := range s.values {
		fn(s.owners[i], &s.values[i])
	}
}

// Owners returns a snapshot slice of every entity carrying this
// component, safe to retain past a subsequent mutation of the storage.
func (s *Column[T]) Owners() []Entity {
	out := make([]Entity, len(s.owners))
	copy(out, s.owners)
	return out
}
