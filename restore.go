package foreman

import (
	"github.com/colonygrid/foreman/attack"
	"github.com/colonygrid/foreman/creepjob"
	"github.com/colonygrid/foreman/host"
	"github.com/colonygrid/foreman/kernel"
	"github.com/colonygrid/foreman/persist"
	"github.com/colonygrid/foreman/planner"
	"github.com/colonygrid/foreman/roomdata"
	"github.com/colonygrid/foreman/squad"
	"github.com/go-gl/mathgl/mgl64"
)

// RestoreWorld rebuilds a World from a Snapshot. Every marker is bound
// to a freshly created entity before any record's fields are decoded,
// so a forward reference (e.g. a Mission's Owner pointing at an
// Operation recorded later in the slice) always resolves.
func RestoreWorld(snap Snapshot) *kernel.World {
	w := kernel.NewWorld()
	a := persist.NewDecodeAllocator()

	for _, r := range snap.Rooms {
		a.Bind(r.Marker, w.CreateNow())
	}
	for _, r := range snap.Operations {
		a.Bind(r.Marker, w.CreateNow())
	}
	for _, r := range snap.Missions {
		a.Bind(r.Marker, w.CreateNow())
	}
	for _, r := range snap.Squads {
		a.Bind(r.Marker, w.CreateNow())
	}
	for _, r := range snap.Creeps {
		a.Bind(r.Marker, w.CreateNow())
	}

	resolve := func(m persist.Marker) kernel.Entity {
		e, _ := a.Resolve(m)
		return e
	}

	for _, r := range snap.Rooms {
		e := resolve(r.Marker)
		d := roomdata.Data{Name: host.RoomName(r.Name), Missions: make(map[kernel.Entity]struct{})}
		for _, mm := range r.Missions {
			if me, ok := a.Resolve(mm); ok {
				d.Missions[me] = struct{}{}
			}
		}
		kernel.Storage[roomdata.Data](w).Set(e, d)
	}

	for _, r := range snap.Operations {
		e := resolve(r.Marker)
		op := planner.Operation{Kind: r.Kind, Owner: resolve(r.Owner)}
		for _, c := range r.Children {
			if ce, ok := a.Resolve(c); ok {
				op.Children = addOpChild(op.Children, ce)
			}
		}
		kernel.Storage[planner.Operation](w).Set(e, op)
	}

	for _, r := range snap.Missions {
		e := resolve(r.Marker)
		m := planner.Mission{Kind: r.Kind, Owner: resolve(r.Owner), Room: resolve(r.Room)}
		for _, hr := range r.HomeRooms {
			if he, ok := a.Resolve(hr); ok {
				m.HomeRooms = append(m.HomeRooms, he)
			}
		}
		for _, c := range r.Children {
			if ce, ok := a.Resolve(c); ok {
				m.Children = addOpChild(m.Children, ce)
			}
		}
		kernel.Storage[planner.Mission](w).Set(e, m)
	}

	for _, r := range snap.Squads {
		e := resolve(r.Marker)
		kernel.Storage[squad.Context](w).Set(e, decodeSquad(r, resolve))
	}

	for _, r := range snap.AttackData {
		if e, ok := a.Resolve(r.Mission); ok {
			kernel.Storage[attack.Data](w).Set(e, decodeAttackData(r, resolve))
		}
	}
	for _, r := range snap.DefenseData {
		if e, ok := a.Resolve(r.Mission); ok {
			kernel.Storage[planner.DefenseState](w).Set(e, planner.DefenseState{
				Context: resolve(r.Context), Size: r.Size, SpawnComplete: r.SpawnComplete,
			})
		}
	}
	for _, r := range snap.SupplyData {
		if e, ok := a.Resolve(r.Mission); ok {
			st := planner.LocalSupplyState{DesiredHaulers: r.DesiredHaulers}
			for _, h := range r.ActiveHaulers {
				if he, ok := a.Resolve(h); ok {
					st.ActiveHaulers = append(st.ActiveHaulers, he)
				}
			}
			kernel.Storage[planner.LocalSupplyState](w).Set(e, st)
		}
	}
	for _, r := range snap.BuildData {
		if e, ok := a.Resolve(r.Mission); ok {
			st := planner.BuildState{SitesRemaining: r.SitesRemaining}
			for _, b := range r.Builders {
				if be, ok := a.Resolve(b); ok {
					st.Builders = append(st.Builders, be)
				}
			}
			kernel.Storage[planner.BuildState](w).Set(e, st)
		}
	}
	for _, r := range snap.RaidData {
		if e, ok := a.Resolve(r.Mission); ok {
			kernel.Storage[planner.RaidState](w).Set(e, planner.RaidState{RaidersSent: r.RaidersSent, Succeeded: r.Succeeded})
		}
	}

	for _, r := range snap.Creeps {
		e := resolve(r.Marker)
		kernel.Storage[creepjob.Creep](w).Set(e, creepjob.Creep{
			Name: r.Name, Pending: r.Pending, ObjectID: host.ObjectID(r.ObjectID), HomeRoom: resolve(r.HomeRoom),
		})
		if r.JobKind != creepjob.KindNone {
			kernel.Storage[creepjob.Job](w).Set(e, creepjob.Job{Kind: r.JobKind, Squad: resolve(r.JobSquad), Slot: r.JobSlot})
		}
	}

	w.Barrier()
	return w
}

func addOpChild(children map[kernel.Entity]struct{}, e kernel.Entity) map[kernel.Entity]struct{} {
	if children == nil {
		children = make(map[kernel.Entity]struct{})
	}
	children[e] = struct{}{}
	return children
}

func decodeSquad(r squadRecord, resolve func(persist.Marker) kernel.Entity) squad.Context {
	c := squad.Context{
		Anchor:          host.Pos{X: r.AnchorX, Y: r.AnchorY, Room: host.RoomName(r.AnchorRoom)},
		HasAnchor:       r.HasAnchor,
		StrictHoldTicks: r.StrictHoldTicks,
		SpawnComplete:   r.SpawnComplete,
	}
	for _, s := range r.Slots {
		c.Slots = append(c.Slots, squad.Slot{Role: s.Role, Offset: mgl64.Vec2{s.OffsetX, s.OffsetY}, Member: resolve(s.Member)})
	}
	return c
}

func decodeAttackData(r attackRecord, resolve func(persist.Marker) kernel.Entity) attack.Data {
	d := attack.Data{
		Phase:            r.Phase,
		StartTick:        r.StartTick,
		CurrentWave:      r.CurrentWave,
		MaxWaves:         r.MaxWaves,
		ExploitStartTick: r.ExploitStartTick,
		RetreatStartTick: r.RetreatStartTick,
		RetreatThreshold: r.RetreatThreshold,
		ExploitSpawned:   r.ExploitSpawned,
		HadDefences:      r.HadDefences,
	}
	d.SetPlanCommitted(r.PlanCommitted)
	for _, spr := range r.Squads {
		sp := attack.SquadPlan{Exploit: spr.Exploit, Deploy: attack.DeployCondition{
			Kind:            spr.Deploy.Kind,
			AfterSquadIndex: spr.Deploy.AfterSquadIndex,
			AfterSquadState: spr.Deploy.AfterSquadState,
			AfterDelayTicks: spr.Deploy.AfterDelayTicks,
			TargetHPPercent: spr.Deploy.TargetHPPercent,
		}}
		for _, sl := range spr.Slots {
			sp.Slots = append(sp.Slots, squad.Slot{Role: sl.Role, Offset: mgl64.Vec2{sl.OffsetX, sl.OffsetY}})
		}
		d.Plan.Squads = append(d.Plan.Squads, sp)
	}
	tracks := make([]attack.TrackSnapshot, len(r.Tracks))
	for i, t := range r.Tracks {
		tracks[i] = attack.TrackSnapshot{Context: resolve(t.Context), SpawnComplete: t.SpawnComplete, EverFilled: t.EverFilled}
	}
	d.Tracks = attack.RestoreTracks(tracks)
	return d
}
