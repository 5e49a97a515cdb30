// Package creepjob defines the creep entity's components — spawning
// stub vs. live owner, and the tagged-variant Job component attached
// to every live creep.
package creepjob

import (
	"log/slog"

	"github.com/colonygrid/foreman/host"
	"github.com/colonygrid/foreman/kernel"
)

// Creep is the creep entity's lifecycle component. While spawning,
// Pending is true (ObjectID may already hold the id the spawn call
// returned); once the host lists a live creep under Name, ObjectID is
// set from it and Pending is cleared.
type Creep struct {
	Name     string
	Pending  bool
	ObjectID host.ObjectID
	HomeRoom kernel.Entity // room-data entity of the spawning room.
}

// Kind tags which job variant a creep currently runs. Job internals
// for Harvest/Build/Repair/Haul live in the host binding; their Kind
// values exist so the dispatcher and transfer/movement integrations
// have something concrete to key off.
type Kind int

const (
	KindNone Kind = iota
	KindHarvest
	KindHaul
	KindBuild
	KindRepair
	KindStaticMine
	KindLinkMine
	KindRangedAttack
	KindHeal
	KindTank
	KindSquadCombat
)

func (k Kind) String() string {
	switch k {
	case KindHarvest:
		return "harvest"
	case KindHaul:
		return "haul"
	case KindBuild:
		return "build"
	case KindRepair:
		return "repair"
	case KindStaticMine:
		return "static-mine"
	case KindLinkMine:
		return "link-mine"
	case KindRangedAttack:
		return "ranged-attack"
	case KindHeal:
		return "heal"
	case KindTank:
		return "tank"
	case KindSquadCombat:
		return "squad-combat"
	default:
		return "none"
	}
}

// Job is the tagged-variant component on a creep entity. SquadCombat jobs
// carry the owning squad-context entity and slot index, so a member's squad
// and slot are known without re-resolving membership every tick. Per-tick
// orders are kept in separate components, not on the job.
type Job struct {
	Kind Kind

	// Populated only when Kind == KindSquadCombat.
	Squad kernel.Entity
	Slot  int
}

// Phase is the two-phase per-tick run protocol every job (and mission,
// and operation) follows: pre_run for setup/bookkeeping, run for
// action.
type Phase int

const (
	PhasePreRun Phase = iota
	PhaseRun
)

// Status is the outcome of a job/mission/operation step.
type Status int

const (
	StatusRunning Status = iota
	StatusSuccess
	StatusFailure
)

// WaitForSpawnStage reconciles pending Creep stubs against the host's
// current creep list: a stub whose name now appears as a live creep
// gets its ObjectID filled in and Pending cleared.
func WaitForSpawnStage(h host.Host) kernel.Stage {
	return kernel.Stage{
		Name: "wait-for-spawn",
		Run: func(w *kernel.World) error {
			liveByName := make(map[string]host.ObjectID)
			for _, snap := range h.Rooms() {
				for _, c := range snap.Creeps {
					if c.Owner == host.OwnerMine {
						liveByName[c.Name] = c.ID
					}
				}
			}
			kernel.Storage[Creep](w).Each(func(_ kernel.Entity, c *Creep) {
				if !c.Pending {
					return
				}
				if id, ok := liveByName[c.Name]; ok {
					c.Pending = false
					c.ObjectID = id
				}
			})
			return nil
		},
	}
}

// CleanupDeadCreepsStage destroys creep entities whose underlying game
// object has disappeared. Destruction goes through the
// lazy-update queue so it is safe mid-iteration.
func CleanupDeadCreepsStage(h host.Host, log *slog.Logger) kernel.Stage {
	if log == nil {
		log = slog.Default()
	}
	return kernel.Stage{
		Name: "cleanup-dead-creeps",
		Run: func(w *kernel.World) error {
			live := make(map[host.ObjectID]bool)
			for _, snap := range h.Rooms() {
				for _, c := range snap.Creeps {
					if c.Owner == host.OwnerMine {
						live[c.ID] = true
					}
				}
			}
			kernel.Storage[Creep](w).Each(func(e kernel.Entity, c *Creep) {
				if c.Pending || live[c.ObjectID] {
					return
				}
				log.Debug("creepjob: creep object gone, destroying entity", "name", c.Name)
				w.DeferDestroy(e)
			})
			return nil
		},
	}
}
