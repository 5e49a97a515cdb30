package foreman

import (
	"log/slog"

	"github.com/colonygrid/foreman/attack"
	"github.com/colonygrid/foreman/config"
	"github.com/colonygrid/foreman/creepjob"
	"github.com/colonygrid/foreman/host"
	"github.com/colonygrid/foreman/kernel"
	"github.com/colonygrid/foreman/movement"
	"github.com/colonygrid/foreman/planner"
	"github.com/colonygrid/foreman/roomdata"
	"github.com/colonygrid/foreman/spawn"
	"github.com/colonygrid/foreman/squad"
	"github.com/colonygrid/foreman/transfer"
)

// wiring bundles every long-lived, non-ECS collaborator the tick
// pipeline needs: queues, the entity mapping, the registry of
// operation/mission handlers, and so on. One wiring lives for the
// whole process lifetime; only the *kernel.World is rebuilt across a
// cold boot.
type wiring struct {
	log *slog.Logger

	mapping  *roomdata.Mapping
	registry *planner.Registry
	spawnQ   *spawn.Queue
	transferQ *transfer.Queue
	moveData *movement.Data
	empire   *config.Store
}

func newWiring(h host.Host, empire *config.Store, log *slog.Logger) *wiring {
	if log == nil {
		log = slog.Default()
	}
	wr := &wiring{
		log:       log,
		mapping:   roomdata.NewMapping(),
		registry:  planner.NewRegistry(),
		spawnQ:    spawn.New(log),
		transferQ: transfer.NewQueue(),
		moveData:  movement.New(log),
		empire:    empire,
	}
	wr.wireHandlers(h)
	planner.SetCurrentTickFn(func(*kernel.World) int64 { return h.Time() })
	return wr
}

// wireHandlers registers every operation/mission handler, closing over
// h and this wiring's queues/mapping for the Deps each handler needs.
// This keeps kind dispatch in data rather than inheritance:
// the planner package never imports attack directly, so every
// concrete wiring decision lives here instead.
func (wr *wiring) wireHandlers(h host.Host) {
	roomName := func(w *kernel.World, e kernel.Entity) host.RoomName {
		if d, ok := kernel.Storage[roomdata.Data](w).Get(e); ok {
			return d.Name
		}
		return ""
	}
	snapshotFor := func(name host.RoomName) (host.RoomSnapshot, bool) {
		snap, ok := h.Rooms()[name]
		return snap, ok
	}
	energyCapacity := func(w *kernel.World, e kernel.Entity) int {
		snap, ok := snapshotFor(roomName(w, e))
		if !ok {
			return 0
		}
		return snap.EnergyCapacityAvailable
	}
	roomCentre := func(w *kernel.World, e kernel.Entity) host.Pos {
		return host.Pos{X: 25, Y: 25, Room: roomName(w, e)}
	}
	hostiles := func(room host.RoomName) []host.CreepSnapshot {
		snap, ok := snapshotFor(room)
		if !ok {
			return nil
		}
		return snap.Creeps
	}
	structures := func(room host.RoomName) []host.StructureSnapshot {
		snap, ok := snapshotFor(room)
		if !ok {
			return nil
		}
		return snap.Structures
	}
	myRooms := func(w *kernel.World) []kernel.Entity {
		var out []kernel.Entity
		kernel.Storage[roomdata.Data](w).Each(func(e kernel.Entity, d *roomdata.Data) {
			if d.Owner == host.OwnerMine {
				out = append(out, e)
			}
		})
		return out
	}

	// --- War operation ---
	warDeps := planner.WarDeps{
		Log:      wr.log,
		Distance: func(_, to host.RoomName) int { return nearestOwnedRoomDistance(h, to) },
		LaunchAttack: func(w *kernel.World, target host.RoomName, home kernel.Entity) kernel.Entity {
			targetEntity := roomdata.EnsureRoomData(w, wr.mapping, target)
			plan := attack.ForcePlan{Squads: []attack.SquadPlan{
				{Slots: []squad.Slot{{Role: squad.RoleTank}, {Role: squad.RoleRangedAttacker}, {Role: squad.RoleHealer}}},
			}}
			return attack.NewMission(w, kernel.Nil, targetEntity, []kernel.Entity{home}, plan, 3)
		},
		ActiveAttacks: func(w *kernel.World) []planner.AttackSummary {
			var out []planner.AttackSummary
			kernel.Storage[attack.Data](w).Each(func(e kernel.Entity, d *attack.Data) {
				ms, ok := kernel.Storage[planner.Mission](w).Get(e)
				if !ok {
					return
				}
				out = append(out, planner.AttackSummary{Entity: e, Target: roomName(w, ms.Room)})
			})
			return out
		},
		RecomputeBudget: func(w *kernel.World) int {
			if wr.empire != nil && wr.empire.Empire().War.ConcurrentAttackBudget > 0 {
				return wr.empire.Empire().War.ConcurrentAttackBudget
			}
			return len(myRooms(w))/3 + 1
		},
		HomeRoomsFor: func(w *kernel.World, target host.RoomName) []kernel.Entity {
			homes := myRooms(w)
			out := make([]kernel.Entity, 0, len(homes))
			for _, e := range homes {
				if nearestOwnedRoomDistance(h, target) <= 10 {
					out = append(out, e)
				}
			}
			return out
		},
		ManualAttackFlags: func(w *kernel.World) []host.RoomName {
			targets := flagTargets(h, "attack")
			if wr.empire != nil {
				for _, room := range wr.empire.Empire().ManualAttack {
					targets = append(targets, host.RoomName(room))
				}
			}
			return targets
		},
		PropagateThreat: func(w *kernel.World, attackEntity kernel.Entity, intel planner.ThreatIntel) {
			attack.UpdateThreatIntel(w, attackEntity, attack.ThreatIntel{
				TowerCount:     intel.TowerCount,
				DPS:            intel.DPS,
				Heal:           intel.Heal,
				HostileCount:   intel.HostileCount,
				SafeModeActive: intel.SafeModeActive,
			})
		},
		RequestVisibility: func(w *kernel.World, room host.RoomName) {
			h.RequestVisibility(room)
		},
	}
	warHandler := planner.NewWarHandler(warDeps)
	wr.registry.RegisterOperation(planner.OperationWar, warHandler)

	// --- AttackMission ---
	attackDeps := attack.Deps{
		Log:   wr.log,
		Spawn: wr.spawnQ,
		TargetRoom: func(w *kernel.World, mission kernel.Entity) host.RoomName {
			ms, _ := kernel.Storage[planner.Mission](w).Get(mission)
			return roomName(w, ms.Room)
		},
		HomeRoomName:       roomName,
		HomeEnergyCapacity: energyCapacity,
		RenewableHome: func(w *kernel.World, homes []kernel.Entity) (host.Pos, bool) {
			for _, home := range homes {
				snap, ok := snapshotFor(roomName(w, home))
				if ok && snap.StoredEnergy > 1000 {
					return roomCentre(w, home), true
				}
			}
			if len(homes) > 0 {
				return roomCentre(w, homes[0]), true
			}
			return host.Pos{}, false
		},
		HomeCentre:        roomCentre,
		Hostiles:          hostiles,
		HostileStructures: structures,
		MemberPos: func(w *kernel.World, member kernel.Entity) (host.Pos, bool) {
			c, ok := kernel.Storage[creepjob.Creep](w).Get(member)
			if !ok {
				return host.Pos{}, false
			}
			return lookupCreepPos(h, c.ObjectID)
		},
		MemberHP: func(w *kernel.World, member kernel.Entity) (int, int, bool) {
			c, ok := kernel.Storage[creepjob.Creep](w).Get(member)
			if !ok {
				return 0, 0, false
			}
			return lookupCreepHP(h, c.ObjectID)
		},
		InTargetRoom: func(pos host.Pos, target host.RoomName) bool { return pos.Room == target },
		TargetStructureHPFraction: func(room host.RoomName) (float64, bool) {
			for _, s := range structures(room) {
				if s.Type == "spawn" || s.Type == "invaderCore" {
					if s.HitsMax == 0 {
						return 0, false
					}
					return float64(s.Hits) / float64(s.HitsMax), true
				}
			}
			return 0, false
		},
		LootEstimate: func(room host.RoomName) int {
			total := 0
			for _, s := range structures(room) {
				if s.Type == "storage" || s.Type == "terminal" || s.Type == "container" {
					for _, amt := range s.Store {
						total += amt
					}
				}
			}
			return total
		},
		NearestOwnedRoom: func(w *kernel.World, from host.Pos) host.Pos {
			best := from
			bestDist := 1 << 20
			for _, e := range myRooms(w) {
				name := roomName(w, e)
				if d := host.RoomDistance(from.Room, name); d < bestDist {
					bestDist = d
					best = roomCentre(w, e)
				}
			}
			return best
		},
		Orders: func(w *kernel.World, member kernel.Entity, o attack.MemberOrder) {
			// The job layer that turns orders into host.Host calls is
			// supplied by the host binding; this records the most recent
			// order as the creep's AttackOrder component for a job body
			// to read.
			recordSquadOrder(w, member, o)
		},
	}
	attackHandler := attack.NewHandler(attackDeps)
	wr.registry.RegisterMission(planner.MissionAttack, attackHandler)

	// --- SquadDefense / SquadHarass ---
	defenseDeps := planner.DefenseDeps{
		Log:            wr.log,
		Spawn:          wr.spawnQ,
		RoomName:       roomName,
		EnergyCapacity: energyCapacity,
		RoomCentre:     roomCentre,
		Hostiles:       hostiles,
		Structures:     structures,
		Orders: func(w *kernel.World, member kernel.Entity, o planner.DefenseOrder) {
			recordDefenseOrder(w, member, o)
		},
	}
	defenseHandler := planner.NewDefenseHandler(defenseDeps)
	wr.registry.RegisterMission(planner.MissionSquadDefense, defenseHandler)
	wr.registry.RegisterMission(planner.MissionSquadHarass, defenseHandler)

	// --- LocalSupply / LocalBuild / RemoteBuild / Raid ---
	wr.registry.RegisterMission(planner.MissionLocalSupply, &planner.LocalSupplyMission{Queue: wr.transferQ})
	buildHandler := &planner.BuildMission{}
	wr.registry.RegisterMission(planner.MissionLocalBuild, buildHandler)
	wr.registry.RegisterMission(planner.MissionRemoteBuild, buildHandler)
	wr.registry.RegisterMission(planner.MissionRaid, &planner.RaidMission{})
}

// flagTargets returns the room names named by every flag whose name
// begins (case-insensitively) with prefix.
func flagTargets(h host.Host, prefix string) []host.RoomName {
	var out []host.RoomName
	for _, f := range h.Flags() {
		if hasPrefixFold(f.Name, prefix) {
			out = append(out, f.Pos.Room)
		}
	}
	return out
}

func hasPrefixFold(s, prefix string) bool {
	if len(s) < len(prefix) {
		return false
	}
	for i := 0; i < len(prefix); i++ {
		a, b := s[i], prefix[i]
		if 'A' <= a && a <= 'Z' {
			a += 'a' - 'A'
		}
		if 'A' <= b && b <= 'Z' {
			b += 'a' - 'A'
		}
		if a != b {
			return false
		}
	}
	return true
}

// nearestOwnedRoomDistance is a placeholder distance metric until a
// real multi-room route is wired in; it uses the room-grid chebyshev
// distance from host.RoomDistance, matching the other heuristic
// distance uses throughout planner/attack.
func nearestOwnedRoomDistance(h host.Host, target host.RoomName) int {
	best := 1 << 20
	for name, snap := range h.Rooms() {
		if snap.Owner != host.OwnerMine {
			continue
		}
		if d := host.RoomDistance(name, target); d < best {
			best = d
		}
	}
	return best
}

func lookupCreepPos(h host.Host, id host.ObjectID) (host.Pos, bool) {
	for _, snap := range h.Rooms() {
		for _, c := range snap.Creeps {
			if c.ID == id {
				return c.Pos, true
			}
		}
	}
	return host.Pos{}, false
}

func lookupCreepHP(h host.Host, id host.ObjectID) (int, int, bool) {
	for _, snap := range h.Rooms() {
		for _, c := range snap.Creeps {
			if c.ID == id {
				return c.Hits, c.HitsMax, true
			}
		}
	}
	return 0, 0, false
}
