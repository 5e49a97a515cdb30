package roomdata

import (
	"log/slog"

	"github.com/colonygrid/foreman/host"
	"github.com/colonygrid/foreman/kernel"
)

// CreateRoomDataStage returns a kernel.Stage that ensures every room
// the host currently reports (visible or merely remembered via a
// flag) has a Data entity, creating one via the lazy-update queue for
// any room seen for the first time.
func CreateRoomDataStage(h host.Host, m *Mapping) kernel.Stage {
	return kernel.Stage{
		Name: "create-room-data",
		Run: func(w *kernel.World) error {
			for name := range h.Rooms() {
				EnsureRoomData(w, m, name)
			}
			return nil
		},
	}
}

// UpdateRoomDataStage returns a kernel.Stage that refreshes every
// already-committed Data entity from the host's current snapshot. It
// must run after a barrier following CreateRoomDataStage so
// newly-created entities are visible to this pass too; rooms created
// this very tick are picked up on the following tick's update, which
// is the documented "one-tick lag while lazy updates settle".
func UpdateRoomDataStage(h host.Host) kernel.Stage {
	return kernel.Stage{
		Name: "update-room-data",
		Run: func(w *kernel.World) error {
			snapshots := h.Rooms()
			tick := h.Time()
			kernel.Storage[Data](w).Each(func(_ kernel.Entity, d *Data) {
				if snap, ok := snapshots[d.Name]; ok {
					d.ApplySnapshot(snap, tick)
				}
			})
			return nil
		},
	}
}

// EntityMappingStage rebuilds the bidirectional room mapping. Must run
// after the barrier that commits CreateRoomDataStage's lazy creations.
func EntityMappingStage(m *Mapping) kernel.Stage {
	return kernel.Stage{
		Name: "entity-mapping",
		Run: func(w *kernel.World) error {
			Rebuild(w, m)
			return nil
		},
	}
}

// GarbageCollectStage drops the cached snapshots of rooms that have
// gone more than staleAfter ticks without visibility, logging each
// removal.
func GarbageCollectStage(log *slog.Logger, currentTick, staleAfter int64) kernel.Stage {
	if log == nil {
		log = slog.Default()
	}
	return kernel.Stage{
		Name: "room-data-gc",
		Run: func(w *kernel.World) error {
			kernel.Storage[Data](w).Each(func(e kernel.Entity, d *Data) {
				if d.HasVisibility() && currentTick-d.LastSeenTick > staleAfter {
					log.Debug("roomdata: room stale, dropping cached snapshot", "room", d.Name, "last_seen", d.LastSeenTick)
					d.Structures = nil
					d.FriendlyCreeps = nil
					d.HostileCreeps = nil
				}
			})
			return nil
		},
	}
}
