package persist

import "github.com/colonygrid/foreman/kernel"

// Marker is a stable, small integer identifying an entity within one
// serialized snapshot. Markers are allocated in encounter order during
// encode and are independent of the live kernel.Entity (id, generation)
// pair, which may differ from one process run to the next — this is
// what lets entity identity survive a save/load round trip "even if
// the allocator's counter would have differed".
type Marker uint32

// NoMarker is the zero value, meaning "no entity" (kernel.Nil).
const NoMarker Marker = 0

// Allocator maps kernel.Entity values to stable Markers during encode,
// and Markers back to freshly-created live entities during decode.
type Allocator struct {
	toMarker map[kernel.Entity]Marker
	toEntity map[Marker]kernel.Entity
	next     Marker
}

// NewEncodeAllocator creates an Allocator for use while walking a World
// to build a snapshot.
func NewEncodeAllocator() *Allocator {
	return &Allocator{toMarker: make(map[kernel.Entity]Marker), next: 1}
}

// NewDecodeAllocator creates an Allocator for use while rebuilding a
// World from a snapshot.
func NewDecodeAllocator() *Allocator {
	return &Allocator{toEntity: make(map[Marker]kernel.Entity)}
}

// Mark returns the stable Marker for e, allocating one on first sight.
// kernel.Nil always maps to NoMarker.
func (a *Allocator) Mark(e kernel.Entity) Marker {
	if e.IsNil() {
		return NoMarker
	}
	if m, ok := a.toMarker[e]; ok {
		return m
	}
	m := a.next
	a.next++
	a.toMarker[e] = m
	return m
}

// Bind records that Marker m corresponds to the live entity e, to be
// used by Resolve for every subsequent reference to m in the same
// decode pass. Called once per entity as the decoder recreates it.
func (a *Allocator) Bind(m Marker, e kernel.Entity) {
	if m == NoMarker {
		return
	}
	a.toEntity[m] = e
}

// Resolve returns the live entity bound to Marker m. ok is false if m
// is NoMarker or was never Bind-ed (a dangling reference — the
// integrity pass, not this package, is responsible for repairing
// those).
func (a *Allocator) Resolve(m Marker) (kernel.Entity, bool) {
	if m == NoMarker {
		return kernel.Nil, false
	}
	e, ok := a.toEntity[m]
	return e, ok
}
