// Package attack implements the AttackMission state machine:
// Planning -> Spawning -> Rallying -> Engaging -> Exploiting /
// Retreating -> MissionComplete, including the wave-wipe reset path.
// It is separated from planner/ because of its size relative to the
// rest of the hierarchy, and it depends on planner (for
// Mission/Operation wiring) and squad (for the squad-context entity,
// formation, and focus-fire) rather than the reverse.
package attack

import (
	"log/slog"

	"github.com/colonygrid/foreman/creepjob"
	"github.com/colonygrid/foreman/host"
	"github.com/colonygrid/foreman/kernel"
	"github.com/colonygrid/foreman/planner"
	"github.com/colonygrid/foreman/spawn"
	"github.com/colonygrid/foreman/squad"
)

// State is one step of the AttackMission lifecycle.
type State int

const (
	StatePlanning State = iota
	StateSpawning
	StateRallying
	StateEngaging
	StateExploiting
	StateRetreating
	StateComplete
)

func (s State) String() string {
	switch s {
	case StatePlanning:
		return "planning"
	case StateSpawning:
		return "spawning"
	case StateRallying:
		return "rallying"
	case StateEngaging:
		return "engaging"
	case StateExploiting:
		return "exploiting"
	case StateRetreating:
		return "retreating"
	case StateComplete:
		return "complete"
	default:
		return "unknown"
	}
}

// DeployKind tags a squad's deploy condition.
type DeployKind int

const (
	DeployImmediate DeployKind = iota
	DeployAfterSquad
	DeployAfterDelay
	DeployAfterTargetHPPercent
)

// DeployCondition gates when a planned squad starts spawning.
type DeployCondition struct {
	Kind DeployKind

	AfterSquadIndex int   // DeployAfterSquad
	AfterSquadState State // DeployAfterSquad

	AfterDelayTicks int64 // DeployAfterDelay

	TargetHPPercent float64 // DeployAfterTargetHPPercent, 0..1
}

// SquadPlan describes one planned squad: its composition (slot roles
// and formation offsets) and the condition gating its deployment.
// Exploit marks the hauler/guard squads appended during the Exploiting
// phase, which spawn there instead of through the Spawning phase.
type SquadPlan struct {
	Slots   []squad.Slot
	Deploy  DeployCondition
	Exploit bool
}

// ForcePlan is the full set of squads an AttackMission will field.
type ForcePlan struct {
	Squads []SquadPlan
}

// squadTrack is the per-plan-index bookkeeping record.
type squadTrack struct {
	Context       kernel.Entity
	SpawnComplete bool
	everFilled    bool
}

// TrackSnapshot is an exported mirror of squadTrack's fields, used only
// by the root controller's persistence layer; squadTrack itself stays
// unexported since nothing outside this package's state machine needs
// to name it.
type TrackSnapshot struct {
	Context       kernel.Entity
	SpawnComplete bool
	EverFilled    bool
}

// Snapshot returns a persistable copy of data.Tracks.
func (d *Data) Snapshot() []TrackSnapshot {
	out := make([]TrackSnapshot, len(d.Tracks))
	for i, t := range d.Tracks {
		out[i] = TrackSnapshot{Context: t.Context, SpawnComplete: t.SpawnComplete, EverFilled: t.everFilled}
	}
	return out
}

// PlanCommitted reports whether every squad-context entity from the
// initial Planning pass has landed in storage, mirroring data.planCommitted
// for the root controller's persistence layer.
func (d *Data) PlanCommitted() bool { return d.planCommitted }

// SetPlanCommitted restores data.planCommitted from a persisted snapshot.
func (d *Data) SetPlanCommitted(v bool) { d.planCommitted = v }

// RestoreTracks rebuilds a Data.Tracks slice from persisted snapshots.
func RestoreTracks(ts []TrackSnapshot) []squadTrack {
	out := make([]squadTrack, len(ts))
	for i, t := range ts {
		out[i] = squadTrack{Context: t.Context, SpawnComplete: t.SpawnComplete, everFilled: t.EverFilled}
	}
	return out
}

// Data is the AttackMission's component, attached to the Mission
// entity alongside planner.Mission.
type Data struct {
	Phase      State
	StartTick  int64
	Plan       ForcePlan
	Tracks     []squadTrack
	CurrentWave int
	MaxWaves    int

	ExploitStartTick  int64
	RetreatStartTick  int64
	RetreatThreshold  float64 // aggregate HP fraction below which Engaging switches to retreat orders.

	// ExploitSpawned is set once the Exploiting phase has appended its
	// hauler (and optional guard) squads, so a long exploit never
	// re-plans them.
	ExploitSpawned bool
	// HadDefences records that Engaging ever saw a dangerous hostile or
	// defensive structure in the target room; Exploiting spawns a guard
	// alongside the haulers only for such rooms.
	HadDefences bool

	// Intel is the most recent threat summary the War operation's
	// heavy-recompute tier pushed for this mission's target room. Zero until
	// the first heavy-recompute tick after launch.
	Intel ThreatIntel

	// planCommitted is set once every squad-context entity from the
	// initial Planning pass has actually landed in storage (not merely
	// queued); spawns issued against slots without a committed home
	// would register duplicates.
	planCommitted bool
}

// ThreatIntel is a room threat summary computed from cached room data,
// pushed to an AttackMission by the War operation's heavy-recompute
// tier rather than read fresh every tick.
type ThreatIntel struct {
	TowerCount     int
	DPS, Heal      float64
	HostileCount   int
	SafeModeActive bool
}

// UpdateThreatIntel installs the latest ThreatIntel for mission,
// called from the War operation (through WarDeps.PropagateThreat, wired
// outside this package to avoid an import cycle) at the heavy-recompute
// cadence.
func UpdateThreatIntel(w *kernel.World, mission kernel.Entity, intel ThreatIntel) {
	storage := kernel.Storage[Data](w)
	data, ok := storage.Get(mission)
	if !ok {
		return
	}
	data.Intel = intel
	storage.Set(mission, data)
}

const (
	// ExploitTimeout bounds the Exploiting phase.
	ExploitTimeout = 600
	// ExploitSpawnTimeout ends Exploiting early when no loot worth
	// hauling ever appeared.
	ExploitSpawnTimeout = 200
	// RetreatTimeout bounds the Retreating phase.
	RetreatTimeout = 200
)

// Deps are the external collaborators Handler needs: host reads,
// spawn submission, and position/HP lookups that depend on state this
// package does not own. Mirrors the planner.WarDeps injection pattern.
type Deps struct {
	Log *slog.Logger

	Spawn *spawn.Queue

	// TargetRoom returns this mission's target room name.
	TargetRoom func(w *kernel.World, mission kernel.Entity) host.RoomName
	// HomeRoomName resolves a home-room entity to its host room name.
	HomeRoomName func(w *kernel.World, home kernel.Entity) host.RoomName
	// HomeEnergyCapacity returns a home room's current spawn energy
	// capacity, used to size bodies per home room.
	HomeEnergyCapacity func(w *kernel.World, home kernel.Entity) int
	// RenewableHome returns a home room with stored energy above the
	// renewal minimum, used to pick the rally formation destination for
	// low-TTL squads.
	RenewableHome func(w *kernel.World, homes []kernel.Entity) (host.Pos, bool)
	// HomeCentre returns the centre tile of a home room.
	HomeCentre func(w *kernel.World, home kernel.Entity) host.Pos

	// Hostiles/HostileStructures return the target room's current
	// hostile creep/structure snapshots.
	Hostiles          func(room host.RoomName) []host.CreepSnapshot
	HostileStructures func(room host.RoomName) []host.StructureSnapshot

	// MemberPos resolves a living squad member's current position.
	MemberPos func(w *kernel.World, member kernel.Entity) (host.Pos, bool)
	// MemberHP resolves a living squad member's (hits, hitsMax).
	MemberHP func(w *kernel.World, member kernel.Entity) (hits, hitsMax int, ok bool)
	// InTargetRoom reports whether pos lies inside the target room.
	InTargetRoom func(pos host.Pos, target host.RoomName) bool

	// TargetStructureHPFraction returns the gating structure's current
	// HP fraction for DeployAfterTargetHPPercent, and whether one
	// exists at all.
	TargetStructureHPFraction func(room host.RoomName) (float64, bool)

	// LootEstimate returns the estimated recoverable resource total in
	// the (now cleared) target room, for Exploiting's hauler sizing.
	LootEstimate func(room host.RoomName) int
	// NearestOwnedRoom returns the nearest owned room's centre position
	// from pos, for Retreating.
	NearestOwnedRoom func(w *kernel.World, from host.Pos) host.Pos

	// Orders receives the per-member tick orders computed in Engaging;
	// it is the seam into the host binding's job layer, so this
	// package never calls host.Host directly.
	Orders func(w *kernel.World, member kernel.Entity, o MemberOrder)
}

// MemberOrder is one squad member's computed tick order.
type MemberOrder struct {
	AttackObject   host.ObjectID
	HasObject      bool
	AttackPos      host.Pos
	FormationMove  bool
	HealTarget     kernel.Entity
	HasHealTarget  bool
	SelfHeal       bool
	Retreat        bool
	Destination    host.Pos
	HasDestination bool
}

// Handler implements planner.MissionHandler for MissionAttack.
type Handler struct {
	Deps Deps
}

// NewHandler creates a Handler. Deps.Log defaults to slog.Default().
func NewHandler(deps Deps) *Handler {
	if deps.Log == nil {
		deps.Log = slog.Default()
	}
	return &Handler{Deps: deps}
}

// NewMission creates a new AttackMission entity immediately (via
// CreateNow) targeting target, with the given force plan and home
// rooms, and returns it.
func NewMission(w *kernel.World, owner kernel.Entity, target kernel.Entity, homes []kernel.Entity, plan ForcePlan, maxWaves int) kernel.Entity {
	e := w.CreateNow()
	kernel.Storage[planner.Mission](w).Set(e, planner.Mission{
		Kind:      planner.MissionAttack,
		Owner:     owner,
		Room:      target,
		HomeRooms: homes,
	})
	kernel.Storage[Data](w).Set(e, Data{
		Phase:            StatePlanning,
		Plan:             plan,
		MaxWaves:         maxWaves,
		RetreatThreshold: 0.3,
	})
	return e
}

// ForceWaveWipe runs the wave-wipe path against self immediately
// rather than waiting for Engaging/Spawning/Rallying to detect the
// wipe condition itself. It exists for operator tooling (the console
// REPL's "wave-wipe" command) that needs to force a reset without
// waiting on actual combat losses.
func ForceWaveWipe(w *kernel.World, self kernel.Entity) bool {
	storage := kernel.Storage[Data](w)
	data, ok := storage.Get(self)
	if !ok {
		return false
	}
	wipe(w, &data)
	storage.Set(self, data)
	return true
}

func (h *Handler) PreRun(w *kernel.World, self kernel.Entity) (creepjob.Status, error) {
	return creepjob.StatusRunning, nil
}

func (h *Handler) Run(w *kernel.World, self kernel.Entity) (creepjob.Status, error) {
	data, ok := kernel.Storage[Data](w).Get(self)
	if !ok {
		return creepjob.StatusFailure, nil
	}
	ms, ok := kernel.Storage[planner.Mission](w).Get(self)
	if !ok {
		return creepjob.StatusFailure, nil
	}

	switch data.Phase {
	case StatePlanning:
		h.runPlanning(w, self, &data)
	case StateSpawning:
		h.runSpawning(w, self, &data, ms)
	case StateRallying:
		h.runRallying(w, self, &data, ms)
	case StateEngaging:
		h.runEngaging(w, self, &data, ms)
	case StateExploiting:
		h.runExploiting(w, self, &data, ms)
	case StateRetreating:
		h.runRetreating(w, self, &data, ms)
	case StateComplete:
		kernel.Storage[Data](w).Set(self, data)
		return creepjob.StatusSuccess, nil
	}

	kernel.Storage[Data](w).Set(self, data)
	if data.Phase == StateComplete {
		return creepjob.StatusSuccess, nil
	}
	return creepjob.StatusRunning, nil
}

func (h *Handler) RepairEntityRefs(w *kernel.World, self kernel.Entity, isValid func(kernel.Entity) bool) {
	data, ok := kernel.Storage[Data](w).Get(self)
	if !ok {
		return
	}
	for i := range data.Tracks {
		if !data.Tracks[i].Context.IsNil() && !isValid(data.Tracks[i].Context) {
			data.Tracks[i].Context = kernel.Nil
		}
	}
	kernel.Storage[Data](w).Set(self, data)
}

// --- Planning -----------------------------------------------------

func (h *Handler) runPlanning(w *kernel.World, self kernel.Entity, data *Data) {
	if data.StartTick == 0 {
		data.StartTick = int64(w.Generation())
	}
	if len(data.Tracks) == 0 {
		data.Tracks = make([]squadTrack, len(data.Plan.Squads))
		for i, sp := range data.Plan.Squads {
			idx := i
			slots := append([]squad.Slot(nil), sp.Slots...)
			w.DeferCreate(func(w *kernel.World, e kernel.Entity) {
				kernel.Storage[squad.Context](w).Set(e, squad.Context{Slots: slots})
				t := data.Tracks
				if idx < len(t) {
					t[idx].Context = e
				}
			})
		}
		return
	}
	// Transition only once every tracked context is actually committed,
	// not merely queued.
	for i := range data.Tracks {
		if data.Tracks[i].Context.IsNil() {
			return
		}
		if !w.IsAlive(data.Tracks[i].Context) {
			return
		}
	}
	data.planCommitted = true
	data.Phase = StateSpawning
	h.Deps.Log.Debug("attack: planning complete, entering spawning", "mission", self)
}

// --- Spawning -------------------------------------------------------

func (h *Handler) runSpawning(w *kernel.World, self kernel.Entity, data *Data, ms planner.Mission) {
	target := host.RoomName("")
	if h.Deps.TargetRoom != nil {
		target = h.Deps.TargetRoom(w, self)
	}
	anyFilled := false
	allImmediateDone := true

	for i := range data.Tracks {
		tr := &data.Tracks[i]
		cond := data.Plan.Squads[i].Deploy
		ready := h.deployReadyFor(w, data, self, i, target)
		if cond.Kind == DeployImmediate && !tr.SpawnComplete {
			allImmediateDone = false
		}
		if !ready || tr.SpawnComplete {
			continue
		}
		ctx, ok := kernel.Storage[squad.Context](w).Get(tr.Context)
		if !ok {
			continue
		}
		unfilled := 0
		for slotIdx := range ctx.Slots {
			if !ctx.Slots[slotIdx].Member.IsNil() {
				continue
			}
			unfilled++
			h.submitSlotSpawn(w, ms, tr.Context, slotIdx, ctx.Slots[slotIdx])
		}
		if unfilled == 0 {
			tr.SpawnComplete = true
		}
		for _, s := range ctx.Slots {
			if !s.Member.IsNil() {
				anyFilled = true
				tr.everFilled = true
			}
		}
	}

	h.advanceRallyAnchor(w, data, ms)

	if allImmediateDone && anyFilled {
		data.Phase = StateRallying
		h.Deps.Log.Debug("attack: spawning complete, entering rallying", "mission", self)
		return
	}
	if h.allSquadsWiped(w, data) {
		wipe(w, data)
		h.Deps.Log.Debug("attack: wave wipe during spawning", "mission", self, "wave", data.CurrentWave)
	}
}

// deployReadyFor reports whether squad idx's deploy condition holds,
// resolving DeployAfterTargetHPPercent against the target room name.
func (h *Handler) deployReadyFor(w *kernel.World, data *Data, self kernel.Entity, idx int, target host.RoomName) bool {
	cond := data.Plan.Squads[idx].Deploy
	switch cond.Kind {
	case DeployImmediate:
		return true
	case DeployAfterSquad:
		if cond.AfterSquadIndex < 0 || cond.AfterSquadIndex >= len(data.Tracks) {
			return false
		}
		return data.Tracks[cond.AfterSquadIndex].SpawnComplete
	case DeployAfterDelay:
		return int64(w.Generation())-data.StartTick >= cond.AfterDelayTicks
	case DeployAfterTargetHPPercent:
		if h.Deps.TargetStructureHPFraction == nil || target == "" {
			return false
		}
		frac, ok := h.Deps.TargetStructureHPFraction(target)
		return ok && frac <= cond.TargetHPPercent
	default:
		return false
	}
}

func (h *Handler) submitSlotSpawn(w *kernel.World, ms planner.Mission, squadEntity kernel.Entity, slotIdx int, slot squad.Slot) {
	if h.Deps.Spawn == nil {
		return
	}
	token := spawn.NewToken()
	for _, home := range ms.HomeRooms {
		room := home
		idx := slotIdx
		ctxEntity := squadEntity
		role := slot.Role
		capacity := 0
		if h.Deps.HomeEnergyCapacity != nil {
			capacity = h.Deps.HomeEnergyCapacity(w, home)
		}
		body := bodyForRole(role, capacity)
		roomName := host.RoomName("")
		if h.Deps.HomeRoomName != nil {
			roomName = h.Deps.HomeRoomName(w, home)
		}
		h.Deps.Spawn.Submit(roomName, spawn.Request{
			Description: "squad-member",
			Body:        body,
			Priority:    50,
			Token:       token,
			Commit: func(w *kernel.World, id host.ObjectID, name string) {
				creep := w.CreateNow()
				kernel.Storage[creepjob.Creep](w).Set(creep, creepjob.Creep{
					Name: name, Pending: true, ObjectID: id, HomeRoom: room,
				})
				kernel.Storage[creepjob.Job](w).Set(creep, creepjob.Job{
					Kind: creepjob.KindSquadCombat, Squad: ctxEntity, Slot: idx,
				})
				ctx, ok := kernel.Storage[squad.Context](w).Get(ctxEntity)
				if ok && idx < len(ctx.Slots) {
					ctx.Slots[idx].Member = creep
					kernel.Storage[squad.Context](w).Set(ctxEntity, ctx)
				}
			},
		})
	}
}

func bodyForRole(role squad.Role, capacity int) []host.BodyPart {
	switch role {
	case squad.RoleHealer:
		return squad.DuoHealerBody(capacity)
	case squad.RoleTank:
		return squad.TankBody(capacity)
	case squad.RoleDrain:
		return squad.DrainBodyForTowerDPS(capacity, 600)
	case squad.RoleMeleeAttacker:
		return squad.TankBody(capacity)
	case squad.RoleHauler:
		return squad.HaulerBody(capacity)
	default:
		return squad.DuoRangedAttackerBody(capacity)
	}
}

func (h *Handler) advanceRallyAnchor(w *kernel.World, data *Data, ms planner.Mission) {
	dest, ok := host.Pos{}, false
	if h.Deps.RenewableHome != nil {
		dest, ok = h.Deps.RenewableHome(w, ms.HomeRooms)
	}
	if !ok && h.Deps.HomeCentre != nil && len(ms.HomeRooms) > 0 {
		dest, ok = h.Deps.HomeCentre(w, ms.HomeRooms[0]), true
	}
	if !ok {
		return
	}
	for _, tr := range data.Tracks {
		if tr.Context.IsNil() {
			continue
		}
		ctx, exists := kernel.Storage[squad.Context](w).Get(tr.Context)
		if !exists {
			continue
		}
		squad.AdvanceAnchor(&ctx, dest)
		kernel.Storage[squad.Context](w).Set(tr.Context, ctx)
	}
}

// --- Rallying --------------------------------------------------------

func (h *Handler) runRallying(w *kernel.World, self kernel.Entity, data *Data, ms planner.Mission) {
	target := h.targetRoom(w, self)
	h.advanceRallyAnchor(w, data, ms)

	allCohesive := true
	for _, tr := range data.Tracks {
		if tr.Context.IsNil() {
			continue
		}
		ctx, ok := kernel.Storage[squad.Context](w).Get(tr.Context)
		if !ok {
			continue
		}
		positions := h.positionsFor(w, &ctx)
		inTarget := false
		if len(positions) > 0 && h.Deps.InTargetRoom != nil {
			for _, p := range positions {
				if h.Deps.InTargetRoom(p, target) {
					inTarget = true
					break
				}
			}
		}
		if !squad.Cohesive(&ctx, positions, inTarget) {
			allCohesive = false
		}
	}
	if h.allSquadsWiped(w, data) {
		wipe(w, data)
		return
	}
	if allCohesive {
		data.Phase = StateEngaging
		h.Deps.Log.Debug("attack: rallying complete, entering engaging", "mission", self)
	}
}

func (h *Handler) positionsFor(w *kernel.World, ctx *squad.Context) map[kernel.Entity]host.Pos {
	out := make(map[kernel.Entity]host.Pos)
	if h.Deps.MemberPos == nil {
		return out
	}
	for _, s := range ctx.Slots {
		if s.Member.IsNil() {
			continue
		}
		if p, ok := h.Deps.MemberPos(w, s.Member); ok {
			out[s.Member] = p
		}
	}
	return out
}

func (h *Handler) targetRoom(w *kernel.World, self kernel.Entity) host.RoomName {
	if h.Deps.TargetRoom == nil {
		return ""
	}
	return h.Deps.TargetRoom(w, self)
}

// --- Engaging --------------------------------------------------------

func (h *Handler) runEngaging(w *kernel.World, self kernel.Entity, data *Data, ms planner.Mission) {
	target := h.targetRoom(w, self)
	var hostiles []host.CreepSnapshot
	var structures []host.StructureSnapshot
	if h.Deps.Hostiles != nil {
		hostiles = h.Deps.Hostiles(target)
	}
	if h.Deps.HostileStructures != nil {
		structures = h.Deps.HostileStructures(target)
	}
	focus, haveFocus := squad.SelectFocusTarget(hostiles, structures)
	if anyHostileDangerous(hostiles, structures) {
		data.HadDefences = true
	}

	for i := range data.Tracks {
		tr := &data.Tracks[i]
		if tr.Context.IsNil() {
			continue
		}
		// Deferred squads deploy once the gating structure's HP drops.
		if !tr.SpawnComplete && h.deployReadyFor(w, data, self, i, target) {
			ctx, ok := kernel.Storage[squad.Context](w).Get(tr.Context)
			if ok {
				for slotIdx, s := range ctx.Slots {
					if s.Member.IsNil() {
						h.submitSlotSpawn(w, ms, tr.Context, slotIdx, s)
					}
				}
			}
		}

		ctx, ok := kernel.Storage[squad.Context](w).Get(tr.Context)
		if !ok {
			continue
		}
		if len(ctx.Slots) == 0 {
			continue
		}
		h.writeOrders(w, &ctx, focus, haveFocus, data)
		if haveFocus {
			squad.AdvanceAnchor(&ctx, focus.Pos)
		}
		kernel.Storage[squad.Context](w).Set(tr.Context, ctx)
	}

	if h.allSquadsWiped(w, data) {
		wipe(w, data)
		return
	}
	if allSpawnComplete(data) && !anyHostileDangerous(hostiles, structures) {
		data.Phase = StateExploiting
		data.ExploitStartTick = int64(w.Generation())
		h.Deps.Log.Debug("attack: engaging complete, entering exploiting", "mission", self)
	}
}

func (h *Handler) writeOrders(w *kernel.World, ctx *squad.Context, focus squad.FocusTarget, haveFocus bool, data *Data) {
	// Safe mode blocks every hostile action the target room could take
	// against us and every action our squads could take against it;
	// the War operation's latest intel
	// is the only source for this, since Engaging's own per-tick reads
	// are limited to creeps/structures, not room-level safe-mode state.
	retreat := h.aggregateHPFraction(w, ctx) < data.RetreatThreshold || data.Intel.SafeModeActive
	healFor := h.assignHeals(w, ctx)

	for _, s := range ctx.Slots {
		if s.Member.IsNil() || h.Deps.Orders == nil {
			continue
		}
		order := MemberOrder{FormationMove: true, Retreat: retreat}
		if haveFocus {
			order.AttackObject = focus.ObjectID
			order.HasObject = focus.HasObject
			order.AttackPos = focus.Pos
		}
		if a, ok := healFor[s.Member]; ok {
			if a.SelfHeal {
				order.SelfHeal = true
			} else {
				order.HealTarget = a.Target
				order.HasHealTarget = true
			}
		}
		h.Deps.Orders(w, s.Member, order)
	}
}

// assignHeals gathers every living slot's HP into squad.Member values
// and delegates the actual pairing to squad.AssignHeals.
func (h *Handler) assignHeals(w *kernel.World, ctx *squad.Context) map[kernel.Entity]squad.HealAssignment {
	var healers, damaged []squad.Member
	for _, s := range ctx.Slots {
		if s.Member.IsNil() || h.Deps.MemberHP == nil {
			continue
		}
		hits, hitsMax, ok := h.Deps.MemberHP(w, s.Member)
		if !ok {
			continue
		}
		m := squad.Member{Entity: s.Member, Hits: hits, HitsMax: hitsMax}
		damaged = append(damaged, m)
		if s.Role == squad.RoleHealer {
			healers = append(healers, m)
		}
	}

	out := make(map[kernel.Entity]squad.HealAssignment, len(healers))
	for _, a := range squad.AssignHeals(healers, damaged) {
		out[a.Healer] = a
	}
	return out
}

func (h *Handler) aggregateHPFraction(w *kernel.World, ctx *squad.Context) float64 {
	if h.Deps.MemberHP == nil {
		return 1
	}
	var hits, max int
	for _, s := range ctx.Slots {
		if s.Member.IsNil() {
			continue
		}
		hp, hpMax, ok := h.Deps.MemberHP(w, s.Member)
		if !ok {
			continue
		}
		hits += hp
		max += hpMax
	}
	if max == 0 {
		return 1
	}
	return float64(hits) / float64(max)
}

func allSpawnComplete(data *Data) bool {
	for _, tr := range data.Tracks {
		if !tr.SpawnComplete {
			return false
		}
	}
	return true
}

func anyHostileDangerous(hostiles []host.CreepSnapshot, structures []host.StructureSnapshot) bool {
	for _, c := range hostiles {
		if squad.IsDangerous(c, true) {
			return true
		}
	}
	for _, s := range structures {
		switch s.Type {
		case "tower", "spawn", "invaderCore":
			return true
		}
	}
	return false
}

func (h *Handler) allSquadsWiped(w *kernel.World, data *Data) bool {
	any := false
	for _, tr := range data.Tracks {
		if tr.Context.IsNil() {
			continue
		}
		ctx, ok := kernel.Storage[squad.Context](w).Get(tr.Context)
		if !ok {
			continue
		}
		if !tr.everFilled && !tr.SpawnComplete {
			continue
		}
		any = true
		if !ctx.IsWiped(w) {
			return false
		}
	}
	return any
}

// wipe handles a wave loss: increment the wave counter; if the
// cap is reached, terminate; otherwise delete every prior squad-context
// entity via lazy update (so none survives to be confused with a
// fresh-wave context registered under the same plan index) and reset
// to Planning so fresh contexts get created next tick.
func wipe(w *kernel.World, data *Data) {
	data.CurrentWave++
	if data.CurrentWave >= data.MaxWaves {
		data.Phase = StateComplete
		return
	}
	for _, tr := range data.Tracks {
		if !tr.Context.IsNil() {
			w.DeferDestroy(tr.Context)
		}
	}
	data.Tracks = nil
	data.Phase = StatePlanning
	data.planCommitted = false
}

// --- Exploiting --------------------------------------------------------

// lootHaulerBucket sizes hauler count from the estimated loot total.
func lootHaulerBucket(loot int) int {
	switch {
	case loot <= 0:
		return 0
	case loot < 5_000:
		return 1
	case loot < 20_000:
		return 2
	case loot < 50_000:
		return 3
	default:
		return 4
	}
}

func (h *Handler) runExploiting(w *kernel.World, self kernel.Entity, data *Data, ms planner.Mission) {
	target := h.targetRoom(w, self)
	loot := 0
	if h.Deps.LootEstimate != nil {
		loot = h.Deps.LootEstimate(target)
	}
	elapsed := int64(w.Generation()) - data.ExploitStartTick

	if elapsed >= ExploitTimeout {
		data.Phase = StateComplete
		h.Deps.Log.Debug("attack: exploit timed out", "mission", self, "loot", loot, "elapsed", elapsed)
		return
	}
	if hostiles := h.Deps.Hostiles; hostiles != nil {
		if anyHostileDangerous(hostiles(target), nil) && !h.anyLivingCombatSquad(w, data) {
			data.Phase = StateRetreating
			data.RetreatStartTick = int64(w.Generation())
			return
		}
	}

	if !data.ExploitSpawned && loot > 500 {
		data.ExploitSpawned = true
		haulers := lootHaulerBucket(loot)
		h.addExploitSquad(w, data, haulerSlots(haulers))
		if data.HadDefences && loot > 10_000 {
			h.addExploitSquad(w, data, []squad.Slot{{Role: squad.RoleRangedAttacker}})
		}
		h.Deps.Log.Debug("attack: exploit squads planned", "mission", self, "haulers", haulers, "guard", data.HadDefences && loot > 10_000, "loot", loot)
	}

	h.spawnExploitSquads(w, data, ms)

	switch {
	case data.ExploitSpawned && !h.anyExploitSquadActive(w, data):
		data.Phase = StateComplete
		h.Deps.Log.Debug("attack: exploiting complete, all exploit squads done", "mission", self)
	case loot <= 0 && elapsed > 50:
		data.Phase = StateComplete
		h.Deps.Log.Debug("attack: exploiting complete, loot exhausted", "mission", self, "elapsed", elapsed)
	case !data.ExploitSpawned && elapsed > ExploitSpawnTimeout:
		data.Phase = StateComplete
		h.Deps.Log.Debug("attack: exploiting complete, no loot found", "mission", self, "elapsed", elapsed)
	}
}

// addExploitSquad appends one Immediate-deploy exploit squad (haulers
// or a guard) to the plan with a freshly committed squad context, so
// spawnExploitSquads can submit its slots this same tick.
func (h *Handler) addExploitSquad(w *kernel.World, data *Data, slots []squad.Slot) {
	// Tracks and Plan.Squads are parallel by index; pad with inert
	// tracks if a restored snapshot left them ragged.
	for len(data.Tracks) < len(data.Plan.Squads) {
		data.Tracks = append(data.Tracks, squadTrack{})
	}
	ctx := w.CreateNow()
	kernel.Storage[squad.Context](w).Set(ctx, squad.Context{Slots: append([]squad.Slot(nil), slots...)})
	data.Plan.Squads = append(data.Plan.Squads, SquadPlan{Slots: slots, Exploit: true})
	data.Tracks = append(data.Tracks, squadTrack{Context: ctx})
}

func haulerSlots(n int) []squad.Slot {
	slots := make([]squad.Slot, n)
	for i := range slots {
		slots[i].Role = squad.RoleHauler
	}
	return slots
}

// spawnExploitSquads fans spawn requests for every unfilled slot of an
// exploit squad, the same shared-token path the Spawning phase uses.
func (h *Handler) spawnExploitSquads(w *kernel.World, data *Data, ms planner.Mission) {
	for i := range data.Tracks {
		tr := &data.Tracks[i]
		if tr.SpawnComplete || i >= len(data.Plan.Squads) || !data.Plan.Squads[i].Exploit || tr.Context.IsNil() {
			continue
		}
		ctx, ok := kernel.Storage[squad.Context](w).Get(tr.Context)
		if !ok {
			continue
		}
		unfilled := 0
		for slotIdx := range ctx.Slots {
			if !ctx.Slots[slotIdx].Member.IsNil() {
				continue
			}
			unfilled++
			h.submitSlotSpawn(w, ms, tr.Context, slotIdx, ctx.Slots[slotIdx])
		}
		if unfilled == 0 {
			tr.SpawnComplete = true
		}
		for _, s := range ctx.Slots {
			if !s.Member.IsNil() {
				tr.everFilled = true
			}
		}
	}
}

// anyExploitSquadActive reports whether any exploit squad is still
// spawning or has living members.
func (h *Handler) anyExploitSquadActive(w *kernel.World, data *Data) bool {
	for i, tr := range data.Tracks {
		if i >= len(data.Plan.Squads) || !data.Plan.Squads[i].Exploit || tr.Context.IsNil() {
			continue
		}
		if !tr.SpawnComplete {
			return true
		}
		ctx, ok := kernel.Storage[squad.Context](w).Get(tr.Context)
		if ok && len(ctx.LivingMembers(w)) > 0 {
			return true
		}
	}
	return false
}

// anyLivingCombatSquad reports living members among the non-exploit
// squads only; returning hostiles are met by combat squads, never by
// haulers.
func (h *Handler) anyLivingCombatSquad(w *kernel.World, data *Data) bool {
	for i, tr := range data.Tracks {
		if tr.Context.IsNil() || (i < len(data.Plan.Squads) && data.Plan.Squads[i].Exploit) {
			continue
		}
		ctx, ok := kernel.Storage[squad.Context](w).Get(tr.Context)
		if ok && len(ctx.LivingMembers(w)) > 0 {
			return true
		}
	}
	return false
}

// --- Retreating --------------------------------------------------------

func (h *Handler) runRetreating(w *kernel.World, self kernel.Entity, data *Data, ms planner.Mission) {
	elapsed := int64(w.Generation()) - data.RetreatStartTick
	alive := false
	for _, tr := range data.Tracks {
		if tr.Context.IsNil() {
			continue
		}
		ctx, ok := kernel.Storage[squad.Context](w).Get(tr.Context)
		if !ok {
			continue
		}
		for _, member := range ctx.LivingMembers(w) {
			alive = true
			if h.Deps.Orders == nil || h.Deps.MemberPos == nil || h.Deps.NearestOwnedRoom == nil {
				continue
			}
			pos, ok := h.Deps.MemberPos(w, member)
			if !ok {
				continue
			}
			dest := h.Deps.NearestOwnedRoom(w, pos)
			h.Deps.Orders(w, member, MemberOrder{Retreat: true, Destination: dest, HasDestination: true})
		}
	}
	if !alive || elapsed >= RetreatTimeout {
		data.Phase = StateComplete
		h.Deps.Log.Debug("attack: retreating complete", "mission", self, "elapsed", elapsed)
	}
}
