package planner

import (
	"testing"

	"github.com/colonygrid/foreman/host"
	"github.com/colonygrid/foreman/kernel"
	"github.com/colonygrid/foreman/roomdata"
)

func TestHeavyRecomputeReassignsHomePropagatesThreatAndRequestsVisibility(t *testing.T) {
	w := kernel.NewWorld()

	home1 := w.CreateNow()
	kernel.Storage[roomdata.Data](w).Set(home1, roomdata.Data{Name: "W1N1", Owner: host.OwnerMine})

	targetEntity := w.CreateNow()
	kernel.Storage[roomdata.Data](w).Set(targetEntity, roomdata.Data{
		Name:          "W5N5",
		HostileCreeps: []host.CreepSnapshot{{ID: "h1", Body: []host.BodyPart{{Type: host.RangedAttack, Hits: 100}}}},
		Structures:    []host.StructureSnapshot{{Type: "tower"}},
	})

	attackEntity := w.CreateNow()
	kernel.Storage[Mission](w).Set(attackEntity, Mission{Kind: MissionAttack, Room: targetEntity})

	home2 := w.CreateNow()
	kernel.Storage[roomdata.Data](w).Set(home2, roomdata.Data{Name: "W2N1", Owner: host.OwnerMine})

	var propagatedFor kernel.Entity
	var propagated ThreatIntel
	var requested []host.RoomName

	deps := WarDeps{
		HomeRoomsFor: func(*kernel.World, host.RoomName) []kernel.Entity { return []kernel.Entity{home2} },
		ActiveAttacks: func(*kernel.World) []AttackSummary {
			return []AttackSummary{{Entity: attackEntity, Target: "W5N5"}}
		},
		PropagateThreat: func(_ *kernel.World, e kernel.Entity, intel ThreatIntel) {
			propagatedFor = e
			propagated = intel
		},
		RequestVisibility: func(_ *kernel.World, room host.RoomName) {
			requested = append(requested, room)
		},
	}
	h := NewWarHandler(deps)
	self := w.CreateNow()
	h.heavyRecompute(w, self, h.stateFor(self))

	ms, ok := kernel.Storage[Mission](w).Get(attackEntity)
	if !ok || len(ms.HomeRooms) != 1 || ms.HomeRooms[0] != home2 {
		t.Fatalf("expected home room reassigned to home2, got %+v", ms.HomeRooms)
	}
	if propagatedFor != attackEntity {
		t.Fatalf("expected threat propagated to the attack entity, got %v", propagatedFor)
	}
	if propagated.TowerCount != 1 || propagated.HostileCount != 1 {
		t.Fatalf("unexpected propagated intel: %+v", propagated)
	}
	if len(requested) == 0 {
		t.Fatal("expected at least one stale neighbour visibility request")
	}
}
