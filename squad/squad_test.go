package squad

import (
	"testing"

	"github.com/colonygrid/foreman/host"
	"github.com/colonygrid/foreman/kernel"
)

func TestDrainBodyForTowerDPSPicksHeavyAboveThreshold(t *testing.T) {
	light := DrainBodyForTowerDPS(10000, 100) // 100/12 = 9 heal parts, standard body.
	heavy := DrainBodyForTowerDPS(10000, 200) // 200/12 = 17 heal parts, heavy body.

	healCount := func(body []host.BodyPart) int {
		n := 0
		for _, p := range body {
			if p.Type == host.Heal {
				n++
			}
		}
		return n
	}
	if healCount(heavy) <= healCount(light) {
		t.Fatalf("expected heavy body to carry more HEAL parts than light: light=%d heavy=%d", healCount(light), healCount(heavy))
	}
}

func TestClassifyThreatWeighsBoostedPartsHigher(t *testing.T) {
	plain := ClassifyThreat([]host.BodyPart{{Type: host.RangedAttack}})
	boosted := ClassifyThreat([]host.BodyPart{{Type: host.RangedAttack, Boost: "XKHO2"}})
	if boosted.DPS <= plain.DPS {
		t.Fatalf("boosted DPS %v should exceed plain %v", boosted.DPS, plain.DPS)
	}
}

func TestIsWipedRequiresPriorFill(t *testing.T) {
	w := kernel.NewWorld()
	c := &Context{Slots: []Slot{{Role: RoleTank}}}
	if c.IsWiped(w) {
		t.Fatal("a squad that never had a member is not wiped")
	}
	e := w.CreateNow()
	c.Slots[0].Member = e
	w.DestroyNow(e)
	if !c.IsWiped(w) {
		t.Fatal("expected IsWiped once the only member is dead")
	}
}

func TestSelectFocusTargetPrefersHealers(t *testing.T) {
	hostiles := []host.CreepSnapshot{
		{ID: "low-hp-no-heal", Hits: 10},
		{ID: "healer", Hits: 500, Body: []host.BodyPart{{Type: host.Heal, Hits: 100}}},
	}
	target, ok := SelectFocusTarget(hostiles, nil)
	if !ok || target.ObjectID != "healer" {
		t.Fatalf("expected healer to be focus-fired first, got %+v", target)
	}
}

func TestAssignHealsPairsStrongestWithLowestHP(t *testing.T) {
	w := kernel.NewWorld()
	strongHealer := w.CreateNow()
	weakHealer := w.CreateNow()
	lowHPMember := w.CreateNow()
	highHPMember := w.CreateNow()

	assignments := AssignHeals(
		[]Member{{Entity: weakHealer, HealPow: 12}, {Entity: strongHealer, HealPow: 48}},
		[]Member{{Entity: highHPMember, Hits: 900}, {Entity: lowHPMember, Hits: 50}},
	)
	if len(assignments) != 2 {
		t.Fatalf("expected 2 assignments, got %d", len(assignments))
	}
	if assignments[0].Healer != strongHealer || assignments[0].Target != lowHPMember {
		t.Fatalf("expected strongest healer paired with lowest-HP member, got %+v", assignments[0])
	}
}
