package foreman

import (
	"testing"

	"github.com/colonygrid/foreman/host"
	"github.com/colonygrid/foreman/host/memdriver"
	"github.com/colonygrid/foreman/kernel"
	"github.com/colonygrid/foreman/movement"
	"github.com/colonygrid/foreman/planner"
	"github.com/colonygrid/foreman/roomdata"
)

// TestColdBoot exercises the cold-boot path: world empty, segments
// empty. Tick 1: requests segments, returns early. Tick 2: segments
// active, deserialize to empty, pre-pass creates a RoomData for every
// visible room, main pass creates the singleton WarOperation.
func TestColdBoot(t *testing.T) {
	d := memdriver.New(100)
	d.SetRoom(host.RoomSnapshot{
		Name:    "W1N1",
		Visible: true,
		Terrain: &host.Terrain{},
		Owner:   host.OwnerMine,
	})

	c := New(d, Config{})

	c.Tick() // first invocation: segments requested, not yet active.

	var roomsAfterTick1 int
	if w := c.World(); w != nil {
		kernel.Storage[roomdata.Data](w).Each(func(kernel.Entity, *roomdata.Data) { roomsAfterTick1++ })
	}
	if roomsAfterTick1 != 0 {
		t.Fatalf("tick 1: expected no RoomData entities before segments activate, got %d", roomsAfterTick1)
	}

	d.Advance() // segments requested on tick 1 become active on tick 2.
	c.Tick()

	w := c.World()
	if w == nil {
		t.Fatal("tick 2: expected a world to exist")
	}

	var rooms []host.RoomName
	kernel.Storage[roomdata.Data](w).Each(func(_ kernel.Entity, rd *roomdata.Data) {
		rooms = append(rooms, rd.Name)
	})
	if len(rooms) != 1 || rooms[0] != "W1N1" {
		t.Fatalf("tick 2: rooms = %v, want [W1N1]", rooms)
	}

	var wars int
	kernel.Storage[planner.Operation](w).Each(func(_ kernel.Entity, op *planner.Operation) {
		if op.Kind == planner.OperationWar {
			wars++
		}
	})
	if wars != 1 {
		t.Fatalf("tick 2: war operations = %d, want exactly one singleton", wars)
	}
}

// TestTickSurvivesRestart simulates a cold-boot-then-resume: after a
// world has ticked forward and serialized, a freshly constructed
// Controller over the same segment contents (as if the process had
// restarted) deserializes the same RoomData and WarOperation rather
// than starting empty again.
func TestTickSurvivesRestart(t *testing.T) {
	d := memdriver.New(100)
	d.SetRoom(host.RoomSnapshot{Name: "W1N1", Visible: true, Terrain: &host.Terrain{}, Owner: host.OwnerMine})

	c := New(d, Config{})
	c.Tick()
	d.Advance()
	c.Tick()
	d.Advance()
	c.Tick()

	// A brand new Controller over the same driver (simulating a VM
	// restart) must rehydrate from the segments the first Controller
	// wrote, not rebuild from nothing.
	c2 := New(d, Config{})
	c2.Tick()

	w := c2.World()
	if w == nil {
		t.Fatal("expected restored world")
	}
	var rooms int
	kernel.Storage[roomdata.Data](w).Each(func(kernel.Entity, *roomdata.Data) { rooms++ })
	if rooms != 1 {
		t.Fatalf("rooms after restart = %d, want 1 (restored, not rebuilt)", rooms)
	}
}

// TestCostMatrixCachePersistsAcrossRestart exercises the dedicated
// cost-matrix segment: content placed in
// the cache before a tick survives a simulated process restart.
func TestCostMatrixCachePersistsAcrossRestart(t *testing.T) {
	d := memdriver.New(100)
	d.SetRoom(host.RoomSnapshot{Name: "W1N1", Visible: true, Terrain: &host.Terrain{}, Owner: host.OwnerMine})

	c := New(d, Config{})
	c.Tick()
	d.Advance()
	c.Tick()

	var want movement.CostMatrix
	want[0] = 42
	c.wr.moveData.Matrices.Get("W1N1", 7, func() movement.CostMatrix { return want })

	d.Advance()
	c.Tick() // serializes the cache as it now stands.

	c2 := New(d, Config{})
	c2.Tick()

	got := c2.wr.moveData.Matrices.Get("W1N1", 7, func() movement.CostMatrix {
		t.Fatal("cost matrix cache was not restored from its segment")
		return movement.CostMatrix{}
	})
	if got != want {
		t.Fatalf("restored cost matrix = %v, want %v", got, want)
	}
}
