package planner

import (
	"log/slog"

	"github.com/colonygrid/foreman/creepjob"
	"github.com/colonygrid/foreman/kernel"
	"github.com/colonygrid/foreman/roomdata"
)

// EnsureOperationStage creates a singleton Operation of kind if none
// exists yet. Operations are near-singletons; this is the one place
// that materializes the first
// instance, so the root controller wires one call per empire-level
// operation kind it wants always running.
func EnsureOperationStage(kind OperationKind) kernel.Stage {
	return kernel.Stage{
		Name: "ensure-operation-" + kind.String(),
		Run: func(w *kernel.World) error {
			found := false
			kernel.Storage[Operation](w).Each(func(_ kernel.Entity, op *Operation) {
				if op.Kind == kind {
					found = true
				}
			})
			if found {
				return nil
			}
			e := w.CreateNow()
			kernel.Storage[Operation](w).Set(e, Operation{Kind: kind, Owner: kernel.Nil})
			return nil
		},
	}
}

// OperationsStage runs PreRun then Run for every live Operation, per
// its registered handler. An operation that errors continues running
// but logs — operations are near-singletons and must survive.
func OperationsStage(reg *Registry, log *slog.Logger) kernel.Stage {
	if log == nil {
		log = slog.Default()
	}
	return kernel.Stage{
		Name: "operations",
		Run: func(w *kernel.World) error {
			kernel.Storage[Operation](w).Each(func(e kernel.Entity, op *Operation) {
				h, ok := reg.operations[op.Kind]
				if !ok {
					return
				}
				if err := h.PreRun(w, e); err != nil {
					log.Error("planner: operation pre_run failed, continuing", "entity", e, "kind", op.Kind, "error", err)
				}
				if err := h.Run(w, e); err != nil {
					log.Error("planner: operation run failed, continuing", "entity", e, "kind", op.Kind, "error", err)
				}
			})
			return nil
		},
	}
}

// MissionsPreRunStage runs PreRun for every live, non-aborting
// Mission.
func MissionsPreRunStage(reg *Registry, log *slog.Logger) kernel.Stage {
	if log == nil {
		log = slog.Default()
	}
	return kernel.Stage{
		Name: "missions-pre-run",
		Run: func(w *kernel.World) error {
			runMissionPhase(w, reg, log, creepjob.PhasePreRun)
			return nil
		},
	}
}

// MissionsRunStage runs Run for every live, non-aborting Mission. It
// must be separated from MissionsPreRunStage by a barrier so every
// mission's pre_run registrations (e.g. transfer generators) are
// visible to every other mission's run.
func MissionsRunStage(reg *Registry, log *slog.Logger) kernel.Stage {
	if log == nil {
		log = slog.Default()
	}
	return kernel.Stage{
		Name: "missions-run",
		Run: func(w *kernel.World) error {
			runMissionPhase(w, reg, log, creepjob.PhaseRun)
			return nil
		},
	}
}

func runMissionPhase(w *kernel.World, reg *Registry, log *slog.Logger, phase creepjob.Phase) {
	missions := kernel.Storage[Mission](w)
	missions.Each(func(e kernel.Entity, m *Mission) {
		if m.aborting {
			return
		}
		h, ok := reg.missions[m.Kind]
		if !ok {
			return
		}
		var status creepjob.Status
		var err error
		if phase == creepjob.PhasePreRun {
			status, err = h.PreRun(w, e)
		} else {
			status, err = h.Run(w, e)
		}
		if err != nil {
			log.Warn("planner: mission phase failed, aborting", "entity", e, "kind", m.Kind, "error", err)
			m.aborting = true
			return
		}
		if status == creepjob.StatusSuccess {
			log.Debug("planner: mission reported success, aborting", "entity", e, "kind", m.Kind)
			m.aborting = true
		}
	})
}

// TerminationStage performs the abort path for every Mission marked
// aborting: fires the complete hook (removal from its room's mission
// list and from its owner's children), notifies children via
// owner_complete (cascading their own abort), then deletes the entity.
func TerminationStage(log *slog.Logger) kernel.Stage {
	if log == nil {
		log = slog.Default()
	}
	return kernel.Stage{
		Name: "mission-termination",
		Run: func(w *kernel.World) error {
			missions := kernel.Storage[Mission](w)
			var toAbort []kernel.Entity
			missions.Each(func(e kernel.Entity, m *Mission) {
				if m.aborting {
					toAbort = append(toAbort, e)
				}
			})
			for _, e := range toAbort {
				abortMission(w, missions, e, log)
			}
			return nil
		},
	}
}

func abortMission(w *kernel.World, missions *kernel.Column[Mission], e kernel.Entity, log *slog.Logger) {
	m, ok := missions.Get(e)
	if !ok {
		return
	}
	log.Debug("planner: aborting mission", "entity", e, "kind", m.Kind)

	if !m.Room.IsNil() {
		if d, ok := kernel.Storage[roomdata.Data](w).Get(m.Room); ok {
			d.DetachMission(e)
		}
	}
	switch owner := m.Owner; {
	case !owner.IsNil():
		if op, ok := kernel.Storage[Operation](w).Get(owner); ok {
			delete(op.Children, e)
		} else if om, ok := missions.Get(owner); ok {
			delete(om.Children, e)
		}
	}
	for child := range m.Children {
		if _, ok := missions.Get(child); ok {
			abortMission(w, missions, child, log)
		}
	}
	w.DeferDestroy(e)
}

// IntegrityStage repairs dangling entity references across every
// Operation and Mission: an owner or child that no longer resolves to
// a live entity is dropped, and the handler-specific RepairEntityRefs
// hook is invoked so kind-specific state gets the same treatment. It
// is safe to run
// more than once per tick; repairing twice equals repairing once.
func IntegrityStage(reg *Registry, log *slog.Logger) kernel.Stage {
	if log == nil {
		log = slog.Default()
	}
	return kernel.Stage{
		Name: "integrity",
		Run: func(w *kernel.World) error {
			isValid := func(e kernel.Entity) bool { return w.IsAlive(e) }

			kernel.Storage[Operation](w).Each(func(e kernel.Entity, op *Operation) {
				if !op.Owner.IsNil() && !isValid(op.Owner) {
					log.Error("planner: dropping dangling operation owner", "entity", e)
					op.Owner = kernel.Nil
				}
				repairChildren(op.Children, isValid, log, e)
			})
			kernel.Storage[Mission](w).Each(func(e kernel.Entity, m *Mission) {
				if !m.Owner.IsNil() && !isValid(m.Owner) {
					log.Error("planner: dropping dangling mission owner, notifying owner_complete", "entity", e)
					m.Owner = kernel.Nil
					m.aborting = true
				}
				if !m.Room.IsNil() && !isValid(m.Room) {
					log.Error("planner: dropping dangling mission room", "entity", e)
					m.Room = kernel.Nil
				}
				m.HomeRooms = filterValid(m.HomeRooms, isValid)
				repairChildren(m.Children, isValid, log, e)
				if h, ok := reg.missions[m.Kind]; ok {
					h.RepairEntityRefs(w, e, isValid)
				}
			})
			return nil
		},
	}
}

func repairChildren(children map[kernel.Entity]struct{}, isValid func(kernel.Entity) bool, log *slog.Logger, owner kernel.Entity) {
	for c := range children {
		if !isValid(c) {
			log.Error("planner: dropping dangling child reference", "owner", owner, "child", c)
			delete(children, c)
		}
	}
}

func filterValid(es []kernel.Entity, isValid func(kernel.Entity) bool) []kernel.Entity {
	out := es[:0]
	for _, e := range es {
		if isValid(e) {
			out = append(out, e)
		}
	}
	return out
}
