// Package kernel implements the entity-component-system core that the
// colony controller runs every tick: an entity allocator with
// generation counters, typed component storage, a lazy-update queue for
// safe mutation during iteration, and a staged dispatcher with
// explicit barriers.
package kernel

import (
	"fmt"
	"strings"
)

// Entity is an opaque, stable reference to a thing in the world: a
// room, a creep, an operation, a mission, a squad context. Entities
// carry a generation so that a reference captured before an entity was
// destroyed and reused can be detected as stale rather than silently
// resolving to an unrelated object.
type Entity struct {
	id  uint32
	gen uint32
}

// Nil is the zero Entity. It never resolves to a live entity.
var Nil Entity

// IsNil reports whether e is the zero value.
func (e Entity) IsNil() bool { return e.id == 0 && e.gen == 0 }

// ParseEntity parses an entity reference back into an Entity, accepting
// both the bare "id#gen" form and the full "Entity(id#gen)" form
// Entity.String prints. It does not check liveness; callers pass the
// result through World.IsAlive. Used by operator tooling (the console
// REPL) that accepts an entity reference typed or pasted by a human.
func ParseEntity(s string) (Entity, error) {
	trimmed := strings.TrimSuffix(strings.TrimPrefix(s, "Entity("), ")")
	var id, gen uint32
	if n, err := fmt.Sscanf(trimmed, "%d#%d", &id, &gen); err != nil || n != 2 {
		return Entity{}, fmt.Errorf("kernel: invalid entity %q, want \"id#gen\"", s)
	}
	return Entity{id: id, gen: gen}, nil
}

func (e Entity) String() string {
	if e.IsNil() {
		return "Entity(nil)"
	}
	return fmt.Sprintf("Entity(%d#%d)", e.id, e.gen)
}

// allocator hands out entity ids and tracks per-id generation so that
// destroying and recreating an id produces a distinguishable Entity.
type allocator struct {
	generations []uint32 // index 0 unused; generations[id] is the live generation, or 0 pre-allocation.
	alive       []bool
	free        []uint32
}

func newAllocator() *allocator {
	return &allocator{generations: make([]uint32, 1), alive: make([]bool, 1)}
}

func (a *allocator) create() Entity {
	var id uint32
	if n := len(a.free); n > 0 {
		id = a.free[n-1]
		a.free = a.free[:n-1]
		a.generations[id]++
	} else {
		id = uint32(len(a.generations))
		a.generations = append(a.generations, 1)
		a.alive = append(a.alive, false)
	}
	a.alive[id] = true
	return Entity{id: id, gen: a.generations[id]}
}

func (a *allocator) destroy(e Entity) {
	if !a.isAlive(e) {
		return
	}
	a.alive[e.id] = false
	a.free = append(a.free, e.id)
}

func (a *allocator) isAlive(e Entity) bool {
	if e.IsNil() || int(e.id) >= len(a.generations) {
		return false
	}
	return a.alive[e.id] && a.generations[e.id] == e.gen
}
