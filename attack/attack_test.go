package attack

import (
	"testing"

	"github.com/colonygrid/foreman/creepjob"
	"github.com/colonygrid/foreman/host"
	"github.com/colonygrid/foreman/kernel"
	"github.com/colonygrid/foreman/planner"
	"github.com/colonygrid/foreman/spawn"
	"github.com/colonygrid/foreman/squad"
)

func plainPlan() ForcePlan {
	return ForcePlan{Squads: []SquadPlan{
		{Slots: []squad.Slot{{Role: squad.RoleRangedAttacker}, {Role: squad.RoleHealer}}},
	}}
}

func newFixture(t *testing.T) (*kernel.World, *Handler, kernel.Entity) {
	t.Helper()
	w := kernel.NewWorld()
	home := w.CreateNow()
	w.Barrier()
	target := w.CreateNow()
	w.Barrier()

	deps := Deps{
		Spawn: spawn.New(nil),
		TargetRoom: func(*kernel.World, kernel.Entity) host.RoomName { return "W1N1" },
		HomeRoomName: func(*kernel.World, kernel.Entity) host.RoomName { return "W2N2" },
		HomeEnergyCapacity: func(*kernel.World, kernel.Entity) int { return 2300 },
		HomeCentre: func(*kernel.World, kernel.Entity) host.Pos { return host.Pos{X: 25, Y: 25, Room: "W2N2"} },
		InTargetRoom: func(p host.Pos, target host.RoomName) bool { return p.Room == target },
	}
	h := NewHandler(deps)
	mission := NewMission(w, kernel.Nil, target, []kernel.Entity{home}, plainPlan(), 3)
	w.Barrier()
	return w, h, mission
}

func drainSpawnQueue(w *kernel.World, h *Handler, room host.RoomName) {
	ids := 0
	h.Deps.Spawn.Drain(w, map[host.RoomName]int{room: 1_000_000}, func(room host.RoomName, name string, body []host.BodyPart) (host.ObjectID, error) {
		ids++
		return host.ObjectID("spawned-" + string(rune('a'+ids))), nil
	})
	w.Barrier()
}

func TestPlanningCreatesSquadContextsBeforeSpawning(t *testing.T) {
	w, h, mission := newFixture(t)

	status, err := h.Run(w, mission)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if status != creepjob.StatusRunning {
		t.Fatalf("expected Running during planning, got %v", status)
	}
	data, _ := kernel.Storage[Data](w).Get(mission)
	if data.Phase != StatePlanning {
		t.Fatalf("expected still Planning before the squad-context barrier, got %v", data.Phase)
	}
	w.Barrier()

	if _, err := h.Run(w, mission); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	data, _ = kernel.Storage[Data](w).Get(mission)
	if data.Phase != StateSpawning {
		t.Fatalf("expected Spawning once squad contexts are committed, got %v", data.Phase)
	}
	if len(data.Tracks) != 1 || data.Tracks[0].Context.IsNil() {
		t.Fatalf("expected one committed squad-context track, got %+v", data.Tracks)
	}
}

func TestSpawningFansTokenAcrossHomeRoomsOnce(t *testing.T) {
	w, h, mission := newFixture(t)
	h.Run(w, mission) // Planning: defers squad-context creation.
	w.Barrier()
	h.Run(w, mission) // Planning: context committed, transitions to Spawning.
	h.Run(w, mission) // Spawning: submits spawn requests.

	room := host.RoomName("W2N2")
	if h.Deps.Spawn.Pending(room) == 0 {
		t.Fatal("expected spawn requests to be queued for the home room")
	}
	drainSpawnQueue(w, h, room)

	data, _ := kernel.Storage[Data](w).Get(mission)
	ctx, ok := kernel.Storage[squad.Context](w).Get(data.Tracks[0].Context)
	if !ok {
		t.Fatal("expected squad context to still exist")
	}
	filled := 0
	for _, s := range ctx.Slots {
		if !s.Member.IsNil() {
			filled++
		}
	}
	if filled == 0 {
		t.Fatal("expected at least one slot to be filled by the spawn commit")
	}
}

func TestWaveWipeResetsTracksAndReturnsToPlanning(t *testing.T) {
	w, h, mission := newFixture(t)
	data, _ := kernel.Storage[Data](w).Get(mission)
	data.Phase = StateEngaging
	data.CurrentWave = 0
	data.MaxWaves = 3
	ctxEntity := w.CreateNow()
	kernel.Storage[squad.Context](w).Set(ctxEntity, squad.Context{
		Slots: []squad.Slot{{Role: squad.RoleTank}},
	})
	w.Barrier()

	// Fill then kill the only member so IsWiped is true.
	ctx, _ := kernel.Storage[squad.Context](w).Get(ctxEntity)
	member := w.CreateNow()
	w.Barrier()
	ctx.Slots[0].Member = member
	kernel.Storage[squad.Context](w).Set(ctxEntity, ctx)
	w.DestroyNow(member)

	data.Tracks = []squadTrack{{Context: ctxEntity, SpawnComplete: true, everFilled: true}}
	kernel.Storage[Data](w).Set(mission, data)

	h.Run(w, mission)

	data, _ = kernel.Storage[Data](w).Get(mission)
	if data.CurrentWave != 1 {
		t.Fatalf("expected wave counter to increment to 1, got %d", data.CurrentWave)
	}
	if data.Phase != StatePlanning {
		t.Fatalf("expected reset to Planning after a sub-max wave wipe, got %v", data.Phase)
	}
	if len(data.Tracks) != 0 {
		t.Fatalf("expected tracks cleared on wave wipe, got %+v", data.Tracks)
	}
}

func TestWaveWipeTerminatesAtMaxWaves(t *testing.T) {
	w, h, mission := newFixture(t)
	data, _ := kernel.Storage[Data](w).Get(mission)
	data.Phase = StateEngaging
	data.CurrentWave = 2
	data.MaxWaves = 3
	ctxEntity := w.CreateNow()
	deadMember := w.CreateNow()
	w.Barrier()
	w.DestroyNow(deadMember)
	kernel.Storage[squad.Context](w).Set(ctxEntity, squad.Context{
		Slots: []squad.Slot{{Role: squad.RoleTank, Member: deadMember}},
	})
	data.Tracks = []squadTrack{{Context: ctxEntity, SpawnComplete: true, everFilled: true}}
	kernel.Storage[Data](w).Set(mission, data)

	status, err := h.Run(w, mission)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if status != creepjob.StatusSuccess {
		t.Fatalf("expected mission to report Success once max waves reached, got %v", status)
	}
	data, _ = kernel.Storage[Data](w).Get(mission)
	if data.Phase != StateComplete {
		t.Fatalf("expected StateComplete, got %v", data.Phase)
	}
}

func TestExploitingSpawnsHaulersAndGuardByLootBucket(t *testing.T) {
	w, h, mission := newFixture(t)
	h.Deps.LootEstimate = func(host.RoomName) int { return 30_000 } // bucket 3
	data, _ := kernel.Storage[Data](w).Get(mission)
	data.Phase = StateExploiting
	data.ExploitStartTick = int64(w.Generation())
	data.HadDefences = true
	kernel.Storage[Data](w).Set(mission, data)

	status, err := h.Run(w, mission)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if status != creepjob.StatusRunning {
		t.Fatalf("expected Running while exploit squads spawn, got %v", status)
	}

	data, _ = kernel.Storage[Data](w).Get(mission)
	if !data.ExploitSpawned {
		t.Fatal("expected ExploitSpawned after the first exploiting tick with loot")
	}
	haulers, guards := 0, 0
	for _, sp := range data.Plan.Squads {
		if !sp.Exploit {
			continue
		}
		if sp.Slots[0].Role == squad.RoleHauler {
			haulers = len(sp.Slots)
		} else {
			guards = len(sp.Slots)
		}
	}
	if haulers != 3 {
		t.Fatalf("hauler slots = %d, want 3 for 30k loot", haulers)
	}
	if guards != 1 {
		t.Fatalf("guard slots = %d, want 1 (room had defences and loot > 10k)", guards)
	}
	if pending := h.Deps.Spawn.Pending("W2N2"); pending != 4 {
		t.Fatalf("pending spawn requests = %d, want 4 (3 haulers + 1 guard)", pending)
	}
}

func TestExploitingSkipsGuardWithoutDefences(t *testing.T) {
	w, h, mission := newFixture(t)
	h.Deps.LootEstimate = func(host.RoomName) int { return 30_000 }
	data, _ := kernel.Storage[Data](w).Get(mission)
	data.Phase = StateExploiting
	data.ExploitStartTick = int64(w.Generation())
	kernel.Storage[Data](w).Set(mission, data)

	h.Run(w, mission)

	if pending := h.Deps.Spawn.Pending("W2N2"); pending != 3 {
		t.Fatalf("pending spawn requests = %d, want 3 (haulers only, no defences seen)", pending)
	}
}

func TestExploitingCompletesWhenLootExhausted(t *testing.T) {
	w, h, mission := newFixture(t)
	h.Deps.LootEstimate = func(host.RoomName) int { return 0 }
	data, _ := kernel.Storage[Data](w).Get(mission)
	data.Phase = StateExploiting
	data.ExploitStartTick = int64(w.Generation()) - 51
	kernel.Storage[Data](w).Set(mission, data)

	status, err := h.Run(w, mission)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if status != creepjob.StatusSuccess {
		t.Fatalf("expected Success once loot is exhausted with some age, got %v", status)
	}
}

func TestRepairEntityRefsDropsDeadSquadContext(t *testing.T) {
	w, h, mission := newFixture(t)
	dead := w.CreateNow()
	w.DestroyNow(dead)
	data, _ := kernel.Storage[Data](w).Get(mission)
	data.Tracks = []squadTrack{{Context: dead}}
	kernel.Storage[Data](w).Set(mission, data)

	h.RepairEntityRefs(w, mission, w.IsAlive)

	data, _ = kernel.Storage[Data](w).Get(mission)
	if !data.Tracks[0].Context.IsNil() {
		t.Fatalf("expected dangling squad-context reference to be dropped, got %+v", data.Tracks[0])
	}
}

func TestRegistryDispatchesAttackKind(t *testing.T) {
	w, h, mission := newFixture(t)
	reg := planner.NewRegistry()
	reg.RegisterMission(planner.MissionAttack, h)

	ms, ok := kernel.Storage[planner.Mission](w).Get(mission)
	if !ok || ms.Kind != planner.MissionAttack {
		t.Fatalf("expected mission registered under MissionAttack, got %+v", ms)
	}
}
