// Package roomdata implements the per-room cached snapshot component
// and the bidirectional room-name <-> entity
// mapping rebuilt each tick.
package roomdata

import (
	"github.com/colonygrid/foreman/host"
	"github.com/colonygrid/foreman/kernel"
)

// Data is the Room-data entity's component: one per room ever
// observed. It is created once, on first sight of a room, and updated
// (never replaced) thereafter so other components' references to its
// entity stay valid.
type Data struct {
	Name host.RoomName

	// Terrain is nil until the room is first visible.
	Terrain *host.Terrain

	Structures []host.StructureSnapshot
	FriendlyCreeps, HostileCreeps []host.CreepSnapshot

	LastSeenTick int64
	Owner        host.Owner
	Reservation  host.Reservation
	HasHostileCreeps, HasHostileStructures bool
	SafeMode      bool

	// Static visibility metadata, set once per room and never cleared.
	Sources       []host.Pos
	Mineral       *host.Pos
	ControllerPos *host.Pos
	staticSet     bool

	// Missions is the set of mission entities currently attached to
	// this room.
	Missions map[kernel.Entity]struct{}
}

// HasVisibility reports whether this room has ever been observed.
func (d *Data) HasVisibility() bool { return d.Terrain != nil }

// AttachMission adds m to this room's mission set.
func (d *Data) AttachMission(m kernel.Entity) {
	if d.Missions == nil {
		d.Missions = make(map[kernel.Entity]struct{})
	}
	d.Missions[m] = struct{}{}
}

// DetachMission removes m from this room's mission set.
func (d *Data) DetachMission(m kernel.Entity) { delete(d.Missions, m) }

// ApplySnapshot refreshes the dynamic fields of Data from a freshly
// observed host.RoomSnapshot (the pre-pass "update-room-data" stage).
// Static fields (sources, mineral, controller position) are recorded
// only the first time visibility is available.
func (d *Data) ApplySnapshot(snap host.RoomSnapshot, tick int64) {
	d.Name = snap.Name
	if !snap.Visible {
		return
	}
	d.Terrain = snap.Terrain
	d.Structures = snap.Structures
	d.FriendlyCreeps, d.HostileCreeps = splitCreeps(snap.Creeps)
	d.LastSeenTick = tick
	d.Owner = snap.Owner
	d.Reservation = snap.Reservation
	d.HasHostileCreeps = snap.HasHostileCreeps
	d.HasHostileStructures = snap.HasHostileStructures
	d.SafeMode = snap.SafeMode
	if !d.staticSet {
		d.Sources = snap.Sources
		if len(snap.Minerals) > 0 {
			m := snap.Minerals[0]
			d.Mineral = &m
		}
		d.ControllerPos = snap.ControllerPos
		d.staticSet = true
	}
}

func splitCreeps(all []host.CreepSnapshot) (friendly, hostile []host.CreepSnapshot) {
	for _, c := range all {
		if c.Owner == host.OwnerMine || c.Owner == host.OwnerFriendly {
			friendly = append(friendly, c)
		} else {
			hostile = append(hostile, c)
		}
	}
	return friendly, hostile
}

// Mapping is the bidirectional room-name <-> entity lookup rebuilt
// each tick's pre-pass. It is deliberately rebuilt rather than
// incrementally maintained so it can never drift from the Data
// storage's actual contents.
type Mapping struct {
	byName map[host.RoomName]kernel.Entity
}

// NewMapping creates an empty Mapping.
func NewMapping() *Mapping { return &Mapping{byName: make(map[host.RoomName]kernel.Entity)} }

// Entity returns the room-data entity for name, if known.
func (m *Mapping) Entity(name host.RoomName) (kernel.Entity, bool) {
	e, ok := m.byName[name]
	return e, ok
}

// Rebuild repopulates the mapping from every live Data component in w.
// Run as a pre-pass stage after create-room-data/update-room-data,
// separated from them by a barrier so newly created room entities are
// committed first.
func Rebuild(w *kernel.World, m *Mapping) {
	clear(m.byName)
	kernel.Storage[Data](w).Each(func(e kernel.Entity, d *Data) {
		m.byName[d.Name] = e
	})
}

// EnsureRoomData finds or lazily creates the room-data entity for
// name. Creation is deferred via the World's lazy-update queue so it
// is safe to call from within iteration over other storages.
func EnsureRoomData(w *kernel.World, m *Mapping, name host.RoomName) kernel.Entity {
	if e, ok := m.Entity(name); ok {
		return e
	}
	w.DeferCreate(func(w *kernel.World, e kernel.Entity) {
		kernel.Storage[Data](w).Set(e, Data{Name: name, Missions: make(map[kernel.Entity]struct{})})
	})
	return kernel.Nil
}
