package planner

import (
	"log/slog"

	"github.com/colonygrid/foreman/creepjob"
	"github.com/colonygrid/foreman/host"
	"github.com/colonygrid/foreman/kernel"
	"github.com/colonygrid/foreman/spawn"
	"github.com/colonygrid/foreman/squad"
)

// DefenseSize is the squad composition chosen for a SquadDefense or
// SquadHarass mission, sized from the classified incoming threat.
type DefenseSize int

const (
	SizeSolo DefenseSize = iota
	SizeDuo
	SizeQuad
)

// ChooseDefenseSize escalates with both summed hostile DPS and
// hostile count, since a single strong attacker and a swarm of weak
// ones both justify more than a solo responder.
func ChooseDefenseSize(threat squad.Threat, hostileCount int) DefenseSize {
	switch {
	case threat.DPS >= 60 || hostileCount >= 5:
		return SizeQuad
	case threat.DPS >= 20 || hostileCount >= 2:
		return SizeDuo
	default:
		return SizeSolo
	}
}

// defenseSlots builds the squad-context slot list for size, reusing
// the same formation offsets AttackMission's force plans draw from.
func defenseSlots(size DefenseSize) []squad.Slot {
	switch size {
	case SizeQuad:
		offs := squad.QuadOffsets()
		return []squad.Slot{
			{Role: squad.RoleTank, Offset: offs[0]},
			{Role: squad.RoleRangedAttacker, Offset: offs[1]},
			{Role: squad.RoleRangedAttacker, Offset: offs[2]},
			{Role: squad.RoleHealer, Offset: offs[3]},
		}
	case SizeDuo:
		offs := squad.DuoOffsets()
		return []squad.Slot{
			{Role: squad.RoleRangedAttacker, Offset: offs[0]},
			{Role: squad.RoleHealer, Offset: offs[1]},
		}
	default:
		return []squad.Slot{{Role: squad.RoleRangedAttacker}}
	}
}

// bodyForRole picks the body composition for one defense slot. A Quad
// responder uses the same mixed ranged/heal body for every member
// regardless of assigned role (Quad members are interchangeable, not
// split into dedicated tank/healer roles); Solo and Duo keep their
// per-role bodies.
func bodyForRole(size DefenseSize, role squad.Role, capacity int) []host.BodyPart {
	if size == SizeQuad {
		return squad.QuadMemberBody(capacity)
	}
	switch role {
	case squad.RoleTank:
		return squad.TankBody(capacity)
	case squad.RoleHealer:
		return squad.DuoHealerBody(capacity)
	default:
		return squad.DuoRangedAttackerBody(capacity)
	}
}

// DefenseState is SquadDefenseMission/SquadHarassMission's component.
type DefenseState struct {
	Context       kernel.Entity
	Size          DefenseSize
	SpawnComplete bool
}

// DefenseOrder is one squad member's tick order from DefenseHandler:
// hold formation around the anchor and, when a target is scored,
// focus fire it.
type DefenseOrder struct {
	Anchor      host.Pos
	Target      squad.FocusTarget
	HasTarget   bool
}

// DefenseDeps are the external collaborators DefenseHandler needs,
// mirroring attack.Deps' injection pattern for these lighter single-
// squad missions.
type DefenseDeps struct {
	Log *slog.Logger

	Spawn *spawn.Queue

	RoomName       func(w *kernel.World, room kernel.Entity) host.RoomName
	EnergyCapacity func(w *kernel.World, room kernel.Entity) int
	RoomCentre     func(w *kernel.World, room kernel.Entity) host.Pos
	Hostiles       func(room host.RoomName) []host.CreepSnapshot
	Structures     func(room host.RoomName) []host.StructureSnapshot

	// Orders receives the per-member tick order; the host binding's job
	// layer turns it into actual host.Host calls.
	Orders func(w *kernel.World, member kernel.Entity, o DefenseOrder)
}

// DefenseHandler implements planner.MissionHandler for both
// MissionSquadDefense and MissionSquadHarass: the two differ only in
// which room supplies the hostile roster (home room vs. a remote
// target), already captured by Mission.Room/GetRoom, so one handler
// serves both registered kinds (mirrors BuildMission's LocalBuild/
// RemoteBuild split).
type DefenseHandler struct {
	Deps DefenseDeps
}

// NewDefenseHandler creates a DefenseHandler. Deps.Log defaults to
// slog.Default().
func NewDefenseHandler(deps DefenseDeps) *DefenseHandler {
	if deps.Log == nil {
		deps.Log = slog.Default()
	}
	return &DefenseHandler{Deps: deps}
}

func (h *DefenseHandler) PreRun(w *kernel.World, self kernel.Entity) (creepjob.Status, error) {
	return creepjob.StatusRunning, nil
}

func (h *DefenseHandler) Run(w *kernel.World, self kernel.Entity) (creepjob.Status, error) {
	ms, ok := kernel.Storage[Mission](w).Get(self)
	if !ok {
		return creepjob.StatusFailure, nil
	}
	roomEntity := ms.GetRoom()
	roomName := h.Deps.RoomName(w, roomEntity)
	hostiles := h.Deps.Hostiles(roomName)

	st, ok := kernel.Storage[DefenseState](w).Get(self)
	if !ok {
		size := ChooseDefenseSize(classifyRoomThreat(hostiles), len(hostiles))
		ctxEntity := w.CreateNow()
		kernel.Storage[squad.Context](w).Set(ctxEntity, squad.Context{Slots: defenseSlots(size)})
		kernel.Storage[DefenseState](w).Set(self, DefenseState{Context: ctxEntity, Size: size})
		return creepjob.StatusRunning, nil
	}

	if len(hostiles) == 0 {
		return creepjob.StatusSuccess, nil
	}

	ctx, ok := kernel.Storage[squad.Context](w).Get(st.Context)
	if !ok {
		// The mission's squad context is missing; issue no orders this tick.
		return creepjob.StatusRunning, nil
	}

	if !st.SpawnComplete {
		h.fillSlots(w, roomName, roomEntity, st.Context, st.Size, &ctx)
		st.SpawnComplete = allSlotsFilled(ctx)
		kernel.Storage[DefenseState](w).Set(self, st)
	}

	centre := h.Deps.RoomCentre(w, roomEntity)
	squad.AdvanceAnchor(&ctx, centre)

	var structures []host.StructureSnapshot
	if h.Deps.Structures != nil {
		structures = h.Deps.Structures(roomName)
	}
	target, hasTarget := squad.SelectFocusTarget(hostiles, structures)

	for _, s := range ctx.Slots {
		if s.Member.IsNil() {
			continue
		}
		h.Deps.Orders(w, s.Member, DefenseOrder{Anchor: ctx.Anchor, Target: target, HasTarget: hasTarget})
	}
	kernel.Storage[squad.Context](w).Set(st.Context, ctx)

	return creepjob.StatusRunning, nil
}

func (h *DefenseHandler) fillSlots(w *kernel.World, room host.RoomName, homeEntity, ctxEntity kernel.Entity, size DefenseSize, ctx *squad.Context) {
	capacity := h.Deps.EnergyCapacity(w, homeEntity)
	for i := range ctx.Slots {
		if !ctx.Slots[i].Member.IsNil() {
			continue
		}
		slot := i
		role := ctx.Slots[i].Role
		h.Deps.Spawn.Submit(room, spawn.Request{
			Description: "squad-defense",
			Body:        bodyForRole(size, role, capacity),
			Priority:    80,
			Token:       spawn.NewToken(),
			Commit: func(w *kernel.World, id host.ObjectID, name string) {
				member := w.CreateNow()
				kernel.Storage[creepjob.Creep](w).Set(member, creepjob.Creep{Name: name, ObjectID: id, HomeRoom: homeEntity})
				kernel.Storage[creepjob.Job](w).Set(member, creepjob.Job{Kind: creepjob.KindSquadCombat, Squad: ctxEntity, Slot: slot})
				if sc, ok := kernel.Storage[squad.Context](w).Get(ctxEntity); ok {
					sc.Slots[slot].Member = member
					kernel.Storage[squad.Context](w).Set(ctxEntity, sc)
				}
			},
		})
	}
}

// RepairEntityRefs drops the defense context reference if it no
// longer resolves. The squad.Context's own member refs are left as
// they are: LivingMembers already skips dead members, and IsWiped
// relies on a dead member's slot keeping its reference.
func (h *DefenseHandler) RepairEntityRefs(w *kernel.World, self kernel.Entity, isValid func(kernel.Entity) bool) {
	st, ok := kernel.Storage[DefenseState](w).Get(self)
	if !ok {
		return
	}
	if !isValid(st.Context) {
		st.Context = kernel.Nil
		kernel.Storage[DefenseState](w).Set(self, st)
	}
}

func classifyRoomThreat(hostiles []host.CreepSnapshot) squad.Threat {
	var total squad.Threat
	for _, c := range hostiles {
		if !squad.IsDangerous(c, false) {
			continue
		}
		t := squad.ClassifyThreat(c.Body)
		total.DPS += t.DPS
		total.Heal += t.Heal
	}
	return total
}

func allSlotsFilled(ctx squad.Context) bool {
	for _, s := range ctx.Slots {
		if s.Member.IsNil() {
			return false
		}
	}
	return true
}
