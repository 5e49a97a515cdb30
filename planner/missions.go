package planner

import (
	"github.com/colonygrid/foreman/creepjob"
	"github.com/colonygrid/foreman/kernel"
	"github.com/colonygrid/foreman/roomdata"
	"github.com/colonygrid/foreman/transfer"
)

// SupplyJob describes one haul route a LocalSupply mission keeps
// staffed: a source room and a desired hauler count.
type SupplyJob struct {
	Room    kernel.Entity
	Haulers int
}

// LocalSupplyState is LocalSupplyMission's component: it tracks how
// many hauler creeps it currently owns versus wants.
type LocalSupplyState struct {
	DesiredHaulers int
	ActiveHaulers  []kernel.Entity
}

// LocalSupplyMission registers transfer-queue generators for its home
// room's containers/storage each pre_run; run only creates its roster
// state (two desired haulers) on first use and submits no spawn
// requests. The haul job's own pathing/transfer actions live in the host
// binding; this mission only owns the roster and the generator
// registration that lets the transfer queue do its job.
type LocalSupplyMission struct {
	Queue *transfer.Queue
}

func (m *LocalSupplyMission) PreRun(w *kernel.World, self kernel.Entity) (creepjob.Status, error) {
	ms, ok := kernel.Storage[Mission](w).Get(self)
	if !ok {
		return creepjob.StatusFailure, nil
	}
	roomEntity := ms.GetRoom()
	rd, ok := kernel.Storage[roomdata.Data](w).Get(roomEntity)
	if !ok {
		return creepjob.StatusRunning, nil
	}
	m.Queue.RegisterGenerator(rd.Name, []transfer.TransferType{transfer.Haul}, func(q *transfer.Queue) {
		for _, s := range rd.Structures {
			target := transfer.Target{Kind: s.Type, ID: s.ID, Room: rd.Name, Pos: s.Pos}
			switch s.Type {
			case "container", "storage":
				if s.Energy > 0 {
					q.NodeFor(target, transfer.Haul).AddWithdrawal(transfer.WithdrawKey{
						Resource: "energy", Priority: transfer.PriorityMedium, Type: transfer.Haul,
					}, uint32(s.Energy))
				}
			case "spawn", "extension":
				free := s.EnergyCapacity - s.Energy
				if free > 0 {
					q.NodeFor(target, transfer.Haul).AddDeposit(transfer.DepositKey{
						Resource: "energy", Priority: transfer.PriorityHigh, Type: transfer.Haul,
					}, uint32(free))
				}
			}
		}
	})
	return creepjob.StatusRunning, nil
}

func (m *LocalSupplyMission) Run(w *kernel.World, self kernel.Entity) (creepjob.Status, error) {
	st, ok := kernel.Storage[LocalSupplyState](w).Get(self)
	if !ok {
		st = LocalSupplyState{DesiredHaulers: 2}
		kernel.Storage[LocalSupplyState](w).Set(self, st)
	}
	return creepjob.StatusRunning, nil
}

func (m *LocalSupplyMission) RepairEntityRefs(w *kernel.World, self kernel.Entity, isValid func(kernel.Entity) bool) {
	st, ok := kernel.Storage[LocalSupplyState](w).Get(self)
	if !ok {
		return
	}
	kept := st.ActiveHaulers[:0]
	for _, e := range st.ActiveHaulers {
		if isValid(e) {
			kept = append(kept, e)
		}
	}
	st.ActiveHaulers = kept
	kernel.Storage[LocalSupplyState](w).Set(self, st)
}

// BuildState tracks a LocalBuild/RemoteBuild mission's construction
// queue progress.
type BuildState struct {
	SitesRemaining int
	Builders       []kernel.Entity
}

// BuildMission implements both LocalBuild and RemoteBuild: they differ
// only in whether Room is a home room (local) or a remote target
// (remote), which is already captured by Mission.Room/HomeRooms, so
// one handler type serves both registered MissionKinds.
type BuildMission struct{}

func (m *BuildMission) PreRun(w *kernel.World, self kernel.Entity) (creepjob.Status, error) {
	return creepjob.StatusRunning, nil
}

func (m *BuildMission) Run(w *kernel.World, self kernel.Entity) (creepjob.Status, error) {
	st, ok := kernel.Storage[BuildState](w).Get(self)
	if !ok {
		return creepjob.StatusRunning, nil
	}
	if st.SitesRemaining <= 0 && len(st.Builders) == 0 {
		return creepjob.StatusSuccess, nil
	}
	return creepjob.StatusRunning, nil
}

func (m *BuildMission) RepairEntityRefs(w *kernel.World, self kernel.Entity, isValid func(kernel.Entity) bool) {
	st, ok := kernel.Storage[BuildState](w).Get(self)
	if !ok {
		return
	}
	kept := st.Builders[:0]
	for _, e := range st.Builders {
		if isValid(e) {
			kept = append(kept, e)
		}
	}
	st.Builders = kept
	kernel.Storage[BuildState](w).Set(self, st)
}

// RaidState tracks a Raid mission's single-squad harassment run:
// much smaller than a full AttackMission, no wave-wipe and no
// formation, just a handful of raiders hitting a soft target and
// retreating on failure.
type RaidState struct {
	RaidersSent int
	Succeeded   bool
}

type RaidMission struct{}

func (m *RaidMission) PreRun(w *kernel.World, self kernel.Entity) (creepjob.Status, error) {
	return creepjob.StatusRunning, nil
}

func (m *RaidMission) Run(w *kernel.World, self kernel.Entity) (creepjob.Status, error) {
	st, ok := kernel.Storage[RaidState](w).Get(self)
	if !ok {
		return creepjob.StatusRunning, nil
	}
	if st.Succeeded {
		return creepjob.StatusSuccess, nil
	}
	return creepjob.StatusRunning, nil
}

func (m *RaidMission) RepairEntityRefs(*kernel.World, kernel.Entity, func(kernel.Entity) bool) {}
