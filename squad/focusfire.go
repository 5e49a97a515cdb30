package squad

import (
	"sort"

	"github.com/colonygrid/foreman/host"
	"github.com/colonygrid/foreman/kernel"
)

// FocusTarget is the result of per-tick focus-fire target selection:
// a position to attack and the object id of the chosen creep or
// structure.
type FocusTarget struct {
	Pos       host.Pos
	ObjectID  host.ObjectID
	HasObject bool
}

// structureThreatRank orders hostile structures by how dangerous they
// are to leave alive: invader core > spawn > tower > other.
func structureThreatRank(t string) int {
	switch t {
	case "invaderCore":
		return 3
	case "spawn":
		return 2
	case "tower":
		return 1
	default:
		return 0
	}
}

// SelectFocusTarget implements the three-tier focus-fire priority:
//  1. hostile with any HEAL parts, tie-broken by lowest HP (kill
//     healers first);
//  2. hostile with lowest HP (focus fire for kills);
//  3. most threatening hostile structure.
func SelectFocusTarget(hostiles []host.CreepSnapshot, structures []host.StructureSnapshot) (FocusTarget, bool) {
	if t, ok := lowestHPHealer(hostiles); ok {
		return t, true
	}
	if t, ok := lowestHP(hostiles); ok {
		return t, true
	}
	return mostThreateningStructure(structures)
}

func hasHeal(c host.CreepSnapshot) bool {
	for _, p := range c.Body {
		if p.Type == host.Heal && p.Hits > 0 {
			return true
		}
	}
	return false
}

func lowestHPHealer(hostiles []host.CreepSnapshot) (FocusTarget, bool) {
	best, found := host.CreepSnapshot{}, false
	for _, c := range hostiles {
		if !hasHeal(c) {
			continue
		}
		if !found || c.Hits < best.Hits {
			best, found = c, true
		}
	}
	if !found {
		return FocusTarget{}, false
	}
	return FocusTarget{Pos: best.Pos, ObjectID: best.ID, HasObject: true}, true
}

func lowestHP(hostiles []host.CreepSnapshot) (FocusTarget, bool) {
	if len(hostiles) == 0 {
		return FocusTarget{}, false
	}
	best := hostiles[0]
	for _, c := range hostiles[1:] {
		if c.Hits < best.Hits {
			best = c
		}
	}
	return FocusTarget{Pos: best.Pos, ObjectID: best.ID, HasObject: true}, true
}

func mostThreateningStructure(structures []host.StructureSnapshot) (FocusTarget, bool) {
	best, found := host.StructureSnapshot{}, false
	bestRank := -1
	for _, s := range structures {
		if s.Owner != host.OwnerHostile {
			continue
		}
		rank := structureThreatRank(s.Type)
		if !found || rank > bestRank {
			best, bestRank, found = s, rank, true
		}
	}
	if !found {
		return FocusTarget{}, false
	}
	return FocusTarget{Pos: best.Pos, ObjectID: best.ID, HasObject: true}, true
}

// HealAssignment pairs a healer member with the teammate it should
// heal this tick.
type HealAssignment struct {
	Healer kernel.Entity
	Target kernel.Entity
	// SelfHeal is true when the healer has no teammate to heal and
	// should heal itself instead.
	SelfHeal bool
}

// Member is a living squad member's combat-relevant snapshot, used
// only for heal-assignment scoring.
type Member struct {
	Entity  kernel.Entity
	Hits    int
	HitsMax int
	HealPow float64 // estimated heal output per tick, from ClassifyThreat.
}

// AssignHeals pairs the lowest-HP living member with the strongest
// available healer, then the next lowest with the next strongest, and
// so on.
func AssignHeals(healers, targets []Member) []HealAssignment {
	sortedHealers := append([]Member{}, healers...)
	sort.Slice(sortedHealers, func(i, j int) bool { return sortedHealers[i].HealPow > sortedHealers[j].HealPow })

	sortedTargets := append([]Member{}, targets...)
	sort.Slice(sortedTargets, func(i, j int) bool { return sortedTargets[i].Hits < sortedTargets[j].Hits })

	assignments := make([]HealAssignment, 0, len(sortedHealers))
	for i, h := range sortedHealers {
		if i < len(sortedTargets) {
			assignments = append(assignments, HealAssignment{Healer: h.Entity, Target: sortedTargets[i].Entity})
		} else {
			assignments = append(assignments, HealAssignment{Healer: h.Entity, SelfHeal: true})
		}
	}
	return assignments
}
