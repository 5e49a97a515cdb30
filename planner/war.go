package planner

import (
	"log/slog"
	"sort"

	"github.com/colonygrid/foreman/host"
	"github.com/colonygrid/foreman/kernel"
	"github.com/colonygrid/foreman/roomdata"
	"github.com/colonygrid/foreman/squad"
)

// staleVisibilityTicks is how long a neighbour room can go without a
// fresh snapshot before heavy-recompute asks the host to prioritize
// re-observing it.
const staleVisibilityTicks = 100

// War tiered cadences.
const (
	DefenseScanInterval     = 2
	OffenseEvalInterval     = 15
	HeavyRecomputeInterval  = 50
)

// WarState is the per-tick bookkeeping the tiered WarOperation needs,
// co-located on the same entity as its Operation component.
type WarState struct {
	LastDefenseScan    int64
	LastOffenseEval    int64
	LastHeavyRecompute int64

	ConcurrentAttackBudget int
	ActivePowerBankAttacks int
}

// CandidateKind distinguishes the four offense-evaluation sources.
type CandidateKind int

const (
	CandidateManualFlag CandidateKind = iota
	CandidateInvaderCore
	CandidatePowerBank
	CandidateHostileRoom
)

// Candidate is a scored attack target produced by offense evaluation.
type Candidate struct {
	Kind   CandidateKind
	Target host.RoomName
	Score  int
}

// ScoreInvaderCore implements the invader-core scoring formula: score
// = 60 - 5*level - 3*distance.
func ScoreInvaderCore(level, distance int) int { return 60 - 5*level - 3*distance }

// ScorePowerBank implements: score = 20 + min(30, roi*5) - 2*distance.
func ScorePowerBank(roi float64, distance int) int {
	bonus := roi * 5
	if bonus > 30 {
		bonus = 30
	}
	return 20 + int(bonus) - 2*distance
}

// ScoreHostileRoom implements: score = 40 - 4*distance - 5*towers -
// 20*(1 if safeMode else 0).
func ScoreHostileRoom(distance, towers int, safeMode bool) int {
	score := 40 - 4*distance - 5*towers
	if safeMode {
		score -= 20
	}
	return score
}

// DedupeCandidates keeps, for each target room, only the
// highest-scoring candidate, then returns the result sorted by score
// descending.
func DedupeCandidates(cands []Candidate) []Candidate {
	best := make(map[host.RoomName]Candidate)
	for _, c := range cands {
		if cur, ok := best[c.Target]; !ok || c.Score > cur.Score {
			best[c.Target] = c
		}
	}
	out := make([]Candidate, 0, len(best))
	for _, c := range best {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Score != out[j].Score {
			return out[i].Score > out[j].Score
		}
		return out[i].Target < out[j].Target // stable tie-break for determinism.
	})
	return out
}

// WarDeps are the external collaborators WarHandler needs. Threat
// classification, ROI computation, and route distance all depend on
// host-side data this package does not own; they are supplied as
// functions so planner stays free of a direct host.Host dependency
// beyond reads of cached RoomData.
type WarDeps struct {
	Log *slog.Logger

	// Distance returns the room-to-room distance used for scoring and
	// for the offense concurrent-attack budget.
	Distance func(from, to host.RoomName) int

	// LaunchAttack creates a new AttackOperation targeting target with
	// the given home room, returning the new operation's entity.
	LaunchAttack func(w *kernel.World, target host.RoomName, home kernel.Entity) kernel.Entity

	// ActiveAttacks returns every currently running AttackOperation's
	// target room, used to avoid re-launching and to count power-bank
	// attacks against the concurrent budget.
	ActiveAttacks func(w *kernel.World) []AttackSummary

	// RecomputeBudget derives the concurrent-attack budget from
	// empire economy; called on the heavy-recompute cadence.
	RecomputeBudget func(w *kernel.World) int

	// HomeRoomsFor returns candidate home rooms able to reach target,
	// used both at launch and at heavy-recompute reassignment time.
	HomeRoomsFor func(w *kernel.World, target host.RoomName) []kernel.Entity

	// ManualAttackFlags returns the rooms named by operator-placed
	// flags whose name begins with "attack", scored 100 in offense
	// evaluation. Nil behaves as "no manual flags".
	ManualAttackFlags func(w *kernel.World) []host.RoomName

	// PropagateThreat pushes an updated ThreatIntel to the given active
	// attack, called once per active attack at the heavy-recompute
	// cadence. Nil disables propagation.
	PropagateThreat func(w *kernel.World, attackEntity kernel.Entity, intel ThreatIntel)

	// RequestVisibility asks the host to refresh visibility into room,
	// called for neighbour rooms whose cached data has gone stale. Nil
	// disables the request.
	RequestVisibility func(w *kernel.World, room host.RoomName)
}

// ThreatIntel is a room threat summary computed from cached room data
// and pushed to an active AttackOperation, supplied through WarDeps
// (rather than imported directly from package attack) to avoid an
// import cycle — the same trick AttackSummary uses.
type ThreatIntel struct {
	TowerCount     int
	DPS, Heal      float64
	HostileCount   int
	SafeModeActive bool
}

// AttackSummary is the minimal view WarHandler needs of a running
// AttackOperation, supplied by the attack package through WarDeps to
// avoid an import cycle (attack imports planner, not the reverse).
type AttackSummary struct {
	Entity     kernel.Entity
	Target     host.RoomName
	IsPowerBank bool
}

// WarHandler implements OperationHandler for the War operation. One
// instance is registered under OperationWar.
type WarHandler struct {
	Deps  WarDeps
	state map[kernel.Entity]*WarState
}

// NewWarHandler creates a WarHandler with the given dependencies.
func NewWarHandler(deps WarDeps) *WarHandler {
	if deps.Log == nil {
		deps.Log = slog.Default()
	}
	return &WarHandler{Deps: deps, state: make(map[kernel.Entity]*WarState)}
}

func (h *WarHandler) stateFor(self kernel.Entity) *WarState {
	s, ok := h.state[self]
	if !ok {
		s = &WarState{ConcurrentAttackBudget: 1}
		h.state[self] = s
	}
	return s
}

// PreRun is a no-op: the War operation has nothing to set up before
// Run since it has no creeps of its own.
func (h *WarHandler) PreRun(*kernel.World, kernel.Entity) error { return nil }

// Run dispatches the three tiered loops by cadence, tracked by
// last-run tick on this operation's WarState.
func (h *WarHandler) Run(w *kernel.World, self kernel.Entity) error {
	st := h.stateFor(self)
	tick := currentTick(w)

	if tick-st.LastDefenseScan >= DefenseScanInterval {
		st.LastDefenseScan = tick
		h.defenseScan(w, self)
	}
	if tick-st.LastOffenseEval >= OffenseEvalInterval {
		st.LastOffenseEval = tick
		h.offenseEvaluation(w, self, st)
	}
	if tick-st.LastHeavyRecompute >= HeavyRecomputeInterval {
		st.LastHeavyRecompute = tick
		h.heavyRecompute(w, self, st)
	}
	return nil
}

// currentTick is resolved from the World's barrier-generation counter
// by default, which is adequate for tests that don't run a real host.
// Production wiring overrides it with SetCurrentTickFn, closing over
// host.Host.Time so the tiered cadence below runs against real tick
// numbers instead of the kernel's own generation counter.
var currentTickFn = func(w *kernel.World) int64 { return int64(w.Generation()) }

// SetCurrentTickFn overrides how the War operation reads "the current
// tick" for its tiered cadence. Call once during wiring, before the
// first OperationsStage run.
func SetCurrentTickFn(fn func(w *kernel.World) int64) { currentTickFn = fn }

func currentTick(w *kernel.World) int64 { return currentTickFn(w) }

// defenseScan is the fast tier: actual
// hostile-threat classification lives in package squad (ClassifyThreat)
// since it depends on body-part weighting that package already owns;
// WarHandler only decides *whether* a room needs a fresh
// SquadDefenseMission and, if so, creates one owned by the War
// operation (DefenseHandler, registered under MissionSquadDefense,
// does the sizing and spawning).
func (h *WarHandler) defenseScan(w *kernel.World, self kernel.Entity) {
	kernel.Storage[roomdata.Data](w).Each(func(roomEntity kernel.Entity, d *roomdata.Data) {
		if d.Owner != host.OwnerMine || !d.HasHostileCreeps {
			return
		}
		if h.hasActiveDefense(w, d) {
			return
		}
		e := w.CreateNow()
		kernel.Storage[Mission](w).Set(e, Mission{Kind: MissionSquadDefense, Owner: self, Room: roomEntity})
		d.AttachMission(e)
		h.Deps.Log.Info("planner: war defense-scan launching squad-defense", "room", d.Name)
	})
}

// hasActiveDefense reports whether d already has a SquadDefenseMission
// attached, so defenseScan does not launch a second responder for a
// room still being cleared by the first.
func (h *WarHandler) hasActiveDefense(w *kernel.World, d *roomdata.Data) bool {
	missions := kernel.Storage[Mission](w)
	for m := range d.Missions {
		if ms, ok := missions.Get(m); ok && ms.Kind == MissionSquadDefense {
			return true
		}
	}
	return false
}

// offenseEvaluation is the middle tier: score candidate target rooms
// and launch attacks against the best of them, within budget.
func (h *WarHandler) offenseEvaluation(w *kernel.World, self kernel.Entity, st *WarState) {
	active := h.Deps.ActiveAttacks(w)
	targeted := make(map[host.RoomName]bool, len(active))
	powerBankCount := 0
	for _, a := range active {
		targeted[a.Target] = true
		if a.IsPowerBank {
			powerBankCount++
		}
	}
	st.ActivePowerBankAttacks = powerBankCount

	var cands []Candidate
	if h.Deps.ManualAttackFlags != nil {
		for _, flag := range h.Deps.ManualAttackFlags(w) {
			cands = append(cands, Candidate{Kind: CandidateManualFlag, Target: flag, Score: 100})
		}
	}

	kernel.Storage[roomdata.Data](w).Each(func(_ kernel.Entity, d *roomdata.Data) {
		if targeted[d.Name] || !d.HasVisibility() {
			return
		}
		dist := h.Deps.Distance("", d.Name)

		if c, ok := invaderCoreCandidate(d, dist); ok {
			cands = append(cands, c)
			return
		}
		if c, ok := powerBankCandidate(d, dist, st.ActivePowerBankAttacks); ok {
			cands = append(cands, c)
			return
		}
		if d.Owner == host.OwnerHostile {
			cands = append(cands, Candidate{
				Kind:   CandidateHostileRoom,
				Target: d.Name,
				Score:  ScoreHostileRoom(dist, towerCount(d), d.SafeMode),
			})
		}
	})

	deduped := DedupeCandidates(cands)
	n := st.ConcurrentAttackBudget - len(active)
	if n < 0 {
		n = 0
	}
	if n > len(deduped) {
		n = len(deduped)
	}
	for _, c := range deduped[:n] {
		homes := h.Deps.HomeRoomsFor(w, c.Target)
		if len(homes) == 0 {
			continue
		}
		h.Deps.LaunchAttack(w, c.Target, homes[0])
	}
}

func towerCount(d *roomdata.Data) int {
	n := 0
	for _, s := range d.Structures {
		if s.Type == "tower" {
			n++
		}
	}
	return n
}

// invaderCoreCandidate scores a neighbour room holding a visible
// invader core. An invader core candidate never counts against the
// power-bank budget: it is scored and returned before
// powerBankCandidate even runs.
func invaderCoreCandidate(d *roomdata.Data, dist int) (Candidate, bool) {
	for _, s := range d.Structures {
		if s.Type == "invaderCore" {
			level := 1
			return Candidate{Kind: CandidateInvaderCore, Target: d.Name, Score: ScoreInvaderCore(level, dist)}, true
		}
	}
	return Candidate{}, false
}

// powerBankCandidate scores a visible power bank, gated by the
// concurrent power-bank budget. activePowerBanks counts only attacks
// actually targeting a power bank, so other attack kinds never eat
// this budget.
func powerBankCandidate(d *roomdata.Data, dist, activePowerBanks int) (Candidate, bool) {
	const concurrentPowerBankLimit = 2
	if activePowerBanks >= concurrentPowerBankLimit {
		return Candidate{}, false
	}
	for _, s := range d.Structures {
		if s.Type == "powerBank" {
			const roi = 5.0 // decay-time/haul-cost ROI estimate; real ROI model is out of scope.
			return Candidate{Kind: CandidatePowerBank, Target: d.Name, Score: ScorePowerBank(roi, dist)}, true
		}
	}
	return Candidate{}, false
}

// heavyRecompute is the slow tier: it
// recomputes the concurrent-attack budget, reassigns home rooms across
// active attacks using a greedy bipartite match (rooms with fewest
// reachable homes first), propagates updated threat intel to each
// active AttackOperation, and requests visibility for neighbour rooms
// whose cached data has gone stale.
func (h *WarHandler) heavyRecompute(w *kernel.World, self kernel.Entity, st *WarState) {
	if h.Deps.RecomputeBudget != nil {
		st.ConcurrentAttackBudget = h.Deps.RecomputeBudget(w)
	}
	active := h.Deps.ActiveAttacks(w)
	type reachable struct {
		attack AttackSummary
		homes  []kernel.Entity
	}
	rs := make([]reachable, 0, len(active))
	for _, a := range active {
		rs = append(rs, reachable{attack: a, homes: h.Deps.HomeRoomsFor(w, a.Target)})
	}
	sort.Slice(rs, func(i, j int) bool { return len(rs[i].homes) < len(rs[j].homes) })

	missions := kernel.Storage[Mission](w)
	claimed := make(map[kernel.Entity]bool)
	for _, r := range rs {
		for _, home := range r.homes {
			if claimed[home] {
				continue
			}
			claimed[home] = true
			if ms, ok := missions.Get(r.attack.Entity); ok {
				ms.HomeRooms = []kernel.Entity{home}
				missions.Set(r.attack.Entity, ms)
			}
			break
		}
	}

	byName := make(map[host.RoomName]*roomdata.Data)
	kernel.Storage[roomdata.Data](w).Each(func(_ kernel.Entity, d *roomdata.Data) {
		byName[d.Name] = d
	})

	if h.Deps.PropagateThreat != nil {
		for _, a := range active {
			if d, ok := byName[a.Target]; ok {
				h.Deps.PropagateThreat(w, a.Entity, threatIntelFor(d))
			}
		}
	}

	h.requestStaleNeighbourVisibility(w, byName)
}

// threatIntelFor summarizes d's cached hostile creeps/structures into
// the ThreatIntel shape the War operation propagates to active attacks.
func threatIntelFor(d *roomdata.Data) ThreatIntel {
	intel := ThreatIntel{SafeModeActive: d.SafeMode}
	for _, s := range d.Structures {
		if s.Type == "tower" {
			intel.TowerCount++
		}
	}
	for _, c := range d.HostileCreeps {
		if !squad.IsDangerous(c, false) {
			continue
		}
		t := squad.ClassifyThreat(c.Body)
		intel.DPS += t.DPS
		intel.Heal += t.Heal
		intel.HostileCount++
	}
	return intel
}

// requestStaleNeighbourVisibility asks the host to refresh any
// neighbour of an owned room whose cached data is missing or older
// than staleVisibilityTicks.
func (h *WarHandler) requestStaleNeighbourVisibility(w *kernel.World, byName map[host.RoomName]*roomdata.Data) {
	if h.Deps.RequestVisibility == nil {
		return
	}
	tick := currentTick(w)
	requested := make(map[host.RoomName]bool)
	for _, d := range byName {
		if d.Owner != host.OwnerMine {
			continue
		}
		for _, nb := range host.Neighbours(d.Name) {
			if requested[nb] {
				continue
			}
			nd, ok := byName[nb]
			if ok && tick-nd.LastSeenTick <= staleVisibilityTicks {
				continue
			}
			requested[nb] = true
			h.Deps.RequestVisibility(w, nb)
		}
	}
}
