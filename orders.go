package foreman

import (
	"github.com/colonygrid/foreman/attack"
	"github.com/colonygrid/foreman/kernel"
	"github.com/colonygrid/foreman/planner"
	"github.com/colonygrid/foreman/transfer"
)

// AttackOrder is the last tick order attack.Deps.Orders recorded for a
// squad-combat creep. Job bodies that turn this into host.Host calls
// live in the host binding; this component is the concrete seam
// a job implementation reads from,
// keeping attack.Deps.Orders' callback real and testable without one.
type AttackOrder struct {
	Order attack.MemberOrder
	Tick  int64
}

// DefenseOrderRecord is the squad-defense equivalent of AttackOrder.
type DefenseOrderRecord struct {
	Order planner.DefenseOrder
	Tick  int64
}

func recordSquadOrder(w *kernel.World, member kernel.Entity, o attack.MemberOrder) {
	kernel.Storage[AttackOrder](w).Set(member, AttackOrder{Order: o, Tick: int64(w.Generation())})
}

func recordDefenseOrder(w *kernel.World, member kernel.Entity, o planner.DefenseOrder) {
	kernel.Storage[DefenseOrderRecord](w).Set(member, DefenseOrderRecord{Order: o, Tick: int64(w.Generation())})
}

// HaulMatches is the most recent batch of (pickup, deliver) pairs the
// transfer-drain stage resolved for a room's market this tick, attached
// to its Room-data entity. The haul job that turns a match into actual
// withdraw/transfer host.Host calls lives in the host binding; this
// component is the concrete seam that job layer (or the console REPL)
// reads from, keeping the matching and reservation machinery itself
// real and exercised every tick rather than only in a test.
type HaulMatches struct {
	Matches []transfer.Match
	Tick    int64
}

func recordHaulMatches(w *kernel.World, room kernel.Entity, matches []transfer.Match) {
	kernel.Storage[HaulMatches](w).Set(room, HaulMatches{Matches: matches, Tick: int64(w.Generation())})
}
