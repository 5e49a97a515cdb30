package kernel

import "reflect"

// World owns the entity allocator, every component storage, and the
// lazy-update queue. It is the single mutable handle passed through a
// tick; no process-global mutable state is permitted outside it.
type World struct {
	alloc      *allocator
	storages   map[reflect.Type]any
	lazy       []func(*World)
	generation uint64 // bumped at every barrier; used to detect stale iteration.
}

// NewWorld creates an empty World.
func NewWorld() *World {
	return &World{
		alloc:    newAllocator(),
		storages: make(map[reflect.Type]any),
	}
}

// IsAlive reports whether e refers to a live entity in this World.
func (w *World) IsAlive(e Entity) bool { return w.alloc.isAlive(e) }

// storageFor returns (creating if needed) the typed Storage for T.
func storageFor[T any](w *World) *Column[T] {
	key := reflect.TypeOf((*T)(nil))
	if s, ok := w.storages[key]; ok {
		return s.(*Column[T])
	}
	s := NewColumn[T](64)
	w.storages[key] = s
	return s
}

// Storage returns the component storage for T, creating it empty on
// first use. Callers use this to iterate (Each) or do direct
// point-queries (Get/Has) outside of iteration.
func Storage[T any](w *World) *Column[T] { return storageFor[T](w) }

// CreateNow allocates and returns a brand-new Entity immediately. It is
// safe only outside of iteration over any storage; inside a system use
// DeferCreate instead so the new entity is not observed until the next
// barrier.
func (w *World) CreateNow() Entity { return w.alloc.create() }

// DestroyNow removes e and its generation slot immediately. As with
// CreateNow, prefer deferring this via the lazy-update queue during
// iteration.
func (w *World) DestroyNow(e Entity) {
	w.alloc.destroy(e)
	for _, s := range w.storages {
		removeAny(s, e)
	}
}

func removeAny(s any, e Entity) {
	if r, ok := s.(interface{ removeEntity(Entity) }); ok {
		r.removeEntity(e)
	}
}

// removeEntity lets World.DestroyNow clear a component without knowing
// its static type.
func (s *Column[T]) removeEntity(e Entity) { s.Remove(e) }

// Defer enqueues fn to run against the World at the next maintenance
// point (Barrier or end of tick). Deferred callbacks run in FIFO
// submission order.
func (w *World) Defer(fn func(*World)) {
	w.lazy = append(w.lazy, fn)
}

// DeferCreate enqueues creation of a new entity and calls fn with it
// once created, so that components can be attached in the same
// deferred step. The entity is not visible to iteration until the next
// barrier.
func (w *World) DeferCreate(fn func(*World, Entity)) {
	w.Defer(func(w *World) {
		e := w.CreateNow()
		fn(w, e)
	})
}

// DeferDestroy enqueues destruction of e at the next maintenance point.
func (w *World) DeferDestroy(e Entity) {
	w.Defer(func(w *World) { w.DestroyNow(e) })
}

// Barrier flushes every queued lazy-update callback, applying them in
// FIFO order, then bumps the World's generation counter. Stages on one
// side of a Barrier see only the pre-barrier world; stages on the far
// side see every committed mutation.
func (w *World) Barrier() {
	for len(w.lazy) > 0 {
		batch := w.lazy
		w.lazy = nil
		for _, fn := range batch {
			fn(w)
		}
	}
	w.generation++
}

// Generation returns the number of barriers executed so far. Tests use
// this to assert that a stage ran on the far side of a barrier.
func (w *World) Generation() uint64 { return w.generation }
