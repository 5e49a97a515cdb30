// Package planner implements the three-level hierarchical control
// structure — operations, missions, jobs: a
// shared parent/child lifecycle, cascaded cancellation, and the
// entity-reference integrity pass that keeps that hierarchy coherent
// across a tick and across a serialization round trip.
package planner

import (
	"github.com/colonygrid/foreman/creepjob"
	"github.com/colonygrid/foreman/kernel"
)

// OperationKind tags which top-level policy an Operation entity runs.
type OperationKind int

const (
	OperationNone OperationKind = iota
	OperationWar
	OperationMiningEmpire
	OperationDefendEmpire
	OperationAttack
)

// Operation is the top-level policy component. A handler registered under
// Kind supplies the actual behavior; Operation itself only carries the
// shared lifecycle fields every operation needs regardless of kind.
type Operation struct {
	Kind     OperationKind
	Owner    kernel.Entity // usually kernel.Nil; operations are near-singletons.
	Children map[kernel.Entity]struct{}

	// aborting mirrors Mission.aborting; RequestAbort and the
	// termination stage act on Mission entities only, so nothing in
	// this package sets or reads it.
	aborting bool
}

func (k OperationKind) String() string {
	switch k {
	case OperationWar:
		return "war"
	case OperationMiningEmpire:
		return "mining-empire"
	case OperationDefendEmpire:
		return "defend-empire"
	case OperationAttack:
		return "attack"
	default:
		return "none"
	}
}

// MissionKind tags which mid-level policy a Mission entity runs.
type MissionKind int

const (
	MissionNone MissionKind = iota
	MissionAttack
	MissionLocalSupply
	MissionLocalBuild
	MissionRemoteBuild
	MissionRaid
	MissionSquadDefense
	MissionSquadHarass
)

func (k MissionKind) String() string {
	switch k {
	case MissionAttack:
		return "attack"
	case MissionLocalSupply:
		return "local-supply"
	case MissionLocalBuild:
		return "local-build"
	case MissionRemoteBuild:
		return "remote-build"
	case MissionRaid:
		return "raid"
	case MissionSquadDefense:
		return "squad-defense"
	case MissionSquadHarass:
		return "squad-harass"
	default:
		return "none"
	}
}

// Mission is the room-scoped policy component. Room is "attached to
// exactly one room entity"; HomeRooms are zero or more supporting rooms
// used for spawning and routing.
type Mission struct {
	Kind      MissionKind
	Owner     kernel.Entity // an Operation or a parent Mission.
	Room      kernel.Entity // room-data entity; see GetRoom fallback rule.
	HomeRooms []kernel.Entity
	Children  map[kernel.Entity]struct{}

	aborting bool
}

// GetRoom resolves the room this mission routes and displays against.
// Room itself is returned when
// set; HomeRooms[0] when Room is nil but home rooms remain; Owner as
// the last resort.
func (m *Mission) GetRoom() kernel.Entity {
	if !m.Room.IsNil() {
		return m.Room
	}
	if len(m.HomeRooms) > 0 {
		return m.HomeRooms[0]
	}
	return m.Owner
}

// addChild registers child under this node (Operation or Mission both
// use the same map shape; a tiny generic helper keeps both call sites
// identical).
func addChild(children map[kernel.Entity]struct{}, child kernel.Entity) map[kernel.Entity]struct{} {
	if children == nil {
		children = make(map[kernel.Entity]struct{})
	}
	children[child] = struct{}{}
	return children
}

// OperationHandler supplies an Operation kind's behavior. Operations
// that error continue running but log —
// they are near-singletons and must survive.
type OperationHandler interface {
	PreRun(w *kernel.World, self kernel.Entity) error
	Run(w *kernel.World, self kernel.Entity) error
}

// MissionHandler supplies a Mission kind's behavior. A Success or
// error return from either phase triggers the abort path.
type MissionHandler interface {
	PreRun(w *kernel.World, self kernel.Entity) (creepjob.Status, error)
	Run(w *kernel.World, self kernel.Entity) (creepjob.Status, error)
	// RepairEntityRefs drops any entity reference stored in
	// kind-specific state (e.g. attack.Data's squad tracks) that fails
	// isValid. Generic fields on Mission itself are repaired by the
	// integrity pass without calling into the handler.
	RepairEntityRefs(w *kernel.World, self kernel.Entity, isValid func(kernel.Entity) bool)
}

// Registry dispatches by kind to the handler supplied for it. Handlers
// are registered once at wiring time by the root controller, which
// avoids planner importing the attack package that implements the
// richer AttackMission kind.
type Registry struct {
	operations map[OperationKind]OperationHandler
	missions   map[MissionKind]MissionHandler
}

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	return &Registry{
		operations: make(map[OperationKind]OperationHandler),
		missions:   make(map[MissionKind]MissionHandler),
	}
}

// RegisterOperation installs the handler for an OperationKind.
func (r *Registry) RegisterOperation(k OperationKind, h OperationHandler) { r.operations[k] = h }

// RegisterMission installs the handler for a MissionKind.
func (r *Registry) RegisterMission(k MissionKind, h MissionHandler) { r.missions[k] = h }

// RequestAbort marks a mission for termination. If the mission's
// component has not yet been committed (created via lazy update this
// tick), the request is itself deferred so it applies once the
// component exists — "Abort is idempotent: requesting abort for an
// entity whose component is not yet applied is queued for the next
// tick".
func RequestAbort(w *kernel.World, m kernel.Entity) {
	missions := kernel.Storage[Mission](w)
	if ms, ok := missions.Get(m); ok {
		ms.aborting = true
		missions.Set(m, ms)
		return
	}
	w.Defer(func(w *kernel.World) {
		missions := kernel.Storage[Mission](w)
		if ms, ok := missions.Get(m); ok {
			ms.aborting = true
			missions.Set(m, ms)
		}
	})
}
