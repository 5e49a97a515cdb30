package foreman

import (
	"github.com/colonygrid/foreman/attack"
	"github.com/colonygrid/foreman/creepjob"
	"github.com/colonygrid/foreman/kernel"
	"github.com/colonygrid/foreman/persist"
	"github.com/colonygrid/foreman/planner"
	"github.com/colonygrid/foreman/roomdata"
	"github.com/colonygrid/foreman/squad"
)

// Snapshot is the encode/decode-friendly shape of a World's persisted
// state. Every entity
// reference here is a persist.Marker rather than a kernel.Entity,
// since kernel.Entity's id/gen fields are unexported and would
// silently gob-encode as zero.
type Snapshot struct {
	Tick int64

	Rooms      []roomRecord
	Operations []operationRecord
	Missions   []missionRecord

	AttackData   []attackRecord
	DefenseData  []defenseRecord
	SupplyData   []supplyRecord
	BuildData    []buildRecord
	RaidData     []raidRecord

	Squads []squadRecord
	Creeps []creepRecord
}

type roomRecord struct {
	Marker   persist.Marker
	Name     string
	Missions []persist.Marker
}

type operationRecord struct {
	Marker   persist.Marker
	Kind     planner.OperationKind
	Owner    persist.Marker
	Children []persist.Marker
}

type missionRecord struct {
	Marker    persist.Marker
	Kind      planner.MissionKind
	Owner     persist.Marker
	Room      persist.Marker
	HomeRooms []persist.Marker
	Children  []persist.Marker
}

type slotRecord struct {
	Role             squad.Role
	OffsetX, OffsetY float64
	Member           persist.Marker
}

type deployRecord struct {
	Kind            attack.DeployKind
	AfterSquadIndex int
	AfterSquadState attack.State
	AfterDelayTicks int64
	TargetHPPercent float64
}

type planSlotRecord struct {
	Role             squad.Role
	OffsetX, OffsetY float64
}

type squadPlanRecord struct {
	Slots   []planSlotRecord
	Deploy  deployRecord
	Exploit bool
}

type trackRecord struct {
	Context       persist.Marker
	SpawnComplete bool
	EverFilled    bool
}

// attackRecord captures attack.Data, the richest mission-kind
// component, in full: its force plan, per-squad tracking, wave
// counters, and timing fields.
type attackRecord struct {
	Mission          persist.Marker
	Phase            attack.State
	StartTick        int64
	PlanCommitted    bool
	Squads           []squadPlanRecord
	Tracks           []trackRecord
	CurrentWave      int
	MaxWaves         int
	ExploitStartTick int64
	RetreatStartTick int64
	RetreatThreshold float64
	ExploitSpawned   bool
	HadDefences      bool
}

type defenseRecord struct {
	Mission       persist.Marker
	Context       persist.Marker
	Size          planner.DefenseSize
	SpawnComplete bool
}

type supplyRecord struct {
	Mission        persist.Marker
	DesiredHaulers int
	ActiveHaulers  []persist.Marker
}

type buildRecord struct {
	Mission        persist.Marker
	SitesRemaining int
	Builders       []persist.Marker
}

type raidRecord struct {
	Mission     persist.Marker
	RaidersSent int
	Succeeded   bool
}

type squadRecord struct {
	Marker          persist.Marker
	Slots           []slotRecord
	AnchorX, AnchorY int
	AnchorRoom      string
	HasAnchor       bool
	StrictHoldTicks int
	SpawnComplete   bool
}

type creepRecord struct {
	Marker   persist.Marker
	Name     string
	Pending  bool
	ObjectID string
	HomeRoom persist.Marker
	JobKind  creepjob.Kind
	JobSquad persist.Marker
	JobSlot  int
}

// BuildSnapshot walks every serialized component in w and returns a
// Snapshot whose markers come from a fresh encode-side Allocator.
func BuildSnapshot(w *kernel.World, tick int64) Snapshot {
	a := persist.NewEncodeAllocator()
	snap := Snapshot{Tick: tick}

	kernel.Storage[roomdata.Data](w).Each(func(e kernel.Entity, d *roomdata.Data) {
		rr := roomRecord{Marker: a.Mark(e), Name: string(d.Name)}
		for m := range d.Missions {
			rr.Missions = append(rr.Missions, a.Mark(m))
		}
		snap.Rooms = append(snap.Rooms, rr)
	})

	kernel.Storage[planner.Operation](w).Each(func(e kernel.Entity, op *planner.Operation) {
		or := operationRecord{Marker: a.Mark(e), Kind: op.Kind, Owner: a.Mark(op.Owner)}
		for c := range op.Children {
			or.Children = append(or.Children, a.Mark(c))
		}
		snap.Operations = append(snap.Operations, or)
	})

	kernel.Storage[planner.Mission](w).Each(func(e kernel.Entity, m *planner.Mission) {
		mr := missionRecord{Marker: a.Mark(e), Kind: m.Kind, Owner: a.Mark(m.Owner), Room: a.Mark(m.Room)}
		for _, hr := range m.HomeRooms {
			mr.HomeRooms = append(mr.HomeRooms, a.Mark(hr))
		}
		for c := range m.Children {
			mr.Children = append(mr.Children, a.Mark(c))
		}
		snap.Missions = append(snap.Missions, mr)
	})

	kernel.Storage[attack.Data](w).Each(func(e kernel.Entity, d *attack.Data) {
		snap.AttackData = append(snap.AttackData, encodeAttackData(a, e, d))
	})

	kernel.Storage[planner.DefenseState](w).Each(func(e kernel.Entity, d *planner.DefenseState) {
		snap.DefenseData = append(snap.DefenseData, defenseRecord{
			Mission: a.Mark(e), Context: a.Mark(d.Context), Size: d.Size, SpawnComplete: d.SpawnComplete,
		})
	})

	kernel.Storage[planner.LocalSupplyState](w).Each(func(e kernel.Entity, d *planner.LocalSupplyState) {
		sr := supplyRecord{Mission: a.Mark(e), DesiredHaulers: d.DesiredHaulers}
		for _, h := range d.ActiveHaulers {
			sr.ActiveHaulers = append(sr.ActiveHaulers, a.Mark(h))
		}
		snap.SupplyData = append(snap.SupplyData, sr)
	})

	kernel.Storage[planner.BuildState](w).Each(func(e kernel.Entity, d *planner.BuildState) {
		br := buildRecord{Mission: a.Mark(e), SitesRemaining: d.SitesRemaining}
		for _, b := range d.Builders {
			br.Builders = append(br.Builders, a.Mark(b))
		}
		snap.BuildData = append(snap.BuildData, br)
	})

	kernel.Storage[planner.RaidState](w).Each(func(e kernel.Entity, d *planner.RaidState) {
		snap.RaidData = append(snap.RaidData, raidRecord{Mission: a.Mark(e), RaidersSent: d.RaidersSent, Succeeded: d.Succeeded})
	})

	kernel.Storage[squad.Context](w).Each(func(e kernel.Entity, c *squad.Context) {
		snap.Squads = append(snap.Squads, encodeSquad(a, e, c))
	})

	kernel.Storage[creepjob.Creep](w).Each(func(e kernel.Entity, c *creepjob.Creep) {
		cr := creepRecord{
			Marker: a.Mark(e), Name: c.Name, Pending: c.Pending,
			ObjectID: string(c.ObjectID), HomeRoom: a.Mark(c.HomeRoom),
		}
		if job, ok := kernel.Storage[creepjob.Job](w).Get(e); ok {
			cr.JobKind = job.Kind
			cr.JobSquad = a.Mark(job.Squad)
			cr.JobSlot = job.Slot
		}
		snap.Creeps = append(snap.Creeps, cr)
	})

	return snap
}

func encodeAttackData(a *persist.Allocator, self kernel.Entity, d *attack.Data) attackRecord {
	ar := attackRecord{
		Mission:          a.Mark(self),
		Phase:            d.Phase,
		StartTick:        d.StartTick,
		PlanCommitted:    d.PlanCommitted(),
		CurrentWave:      d.CurrentWave,
		MaxWaves:         d.MaxWaves,
		ExploitStartTick: d.ExploitStartTick,
		RetreatStartTick: d.RetreatStartTick,
		RetreatThreshold: d.RetreatThreshold,
		ExploitSpawned:   d.ExploitSpawned,
		HadDefences:      d.HadDefences,
	}
	for _, sp := range d.Plan.Squads {
		spr := squadPlanRecord{Exploit: sp.Exploit, Deploy: deployRecord{
			Kind:            sp.Deploy.Kind,
			AfterSquadIndex: sp.Deploy.AfterSquadIndex,
			AfterSquadState: sp.Deploy.AfterSquadState,
			AfterDelayTicks: sp.Deploy.AfterDelayTicks,
			TargetHPPercent: sp.Deploy.TargetHPPercent,
		}}
		for _, sl := range sp.Slots {
			spr.Slots = append(spr.Slots, planSlotRecord{Role: sl.Role, OffsetX: sl.Offset.X(), OffsetY: sl.Offset.Y()})
		}
		ar.Squads = append(ar.Squads, spr)
	}
	for _, t := range d.Snapshot() {
		ar.Tracks = append(ar.Tracks, trackRecord{Context: a.Mark(t.Context), SpawnComplete: t.SpawnComplete, EverFilled: t.EverFilled})
	}
	return ar
}

func encodeSquad(a *persist.Allocator, self kernel.Entity, c *squad.Context) squadRecord {
	sr := squadRecord{
		Marker:          a.Mark(self),
		AnchorX:         c.Anchor.X,
		AnchorY:         c.Anchor.Y,
		AnchorRoom:      string(c.Anchor.Room),
		HasAnchor:       c.HasAnchor,
		StrictHoldTicks: c.StrictHoldTicks,
		SpawnComplete:   c.SpawnComplete,
	}
	for _, s := range c.Slots {
		sr.Slots = append(sr.Slots, slotRecord{Role: s.Role, OffsetX: s.Offset.X(), OffsetY: s.Offset.Y(), Member: a.Mark(s.Member)})
	}
	return sr
}
