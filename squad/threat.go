package squad

import "github.com/colonygrid/foreman/host"

// toughDamageReduction is the fraction of incoming damage a boosted
// TOUGH part shaves off before threat scoring: TOUGH boosts reduce
// damage taken, so a body fronted by boosted TOUGH is cheaper to
// threat-score than its raw attack power implies.
const toughDamageReduction = 0.7

// Threat summarizes one hostile creep's combat contribution: estimated
// damage per tick and estimated heal per tick, after boost weighting.
type Threat struct {
	DPS  float64
	Heal float64
}

// partBoosted reports whether a body part carries a boost compound;
// Boost is the empty string for an unboosted part.
func partBoosted(p host.BodyPart) bool { return p.Boost != "" }

// ClassifyThreat scores one creep's body, weighting boosted
// attack/ranged-attack/heal parts x4 (a T3 attack/heal boost roughly
// quadruples the part's output) and discounting the creep's own
// damage contribution by its TOUGH parts' reduction. The result
// decides how much counter-force a target warrants.
func ClassifyThreat(body []host.BodyPart) Threat {
	var dps, heal float64
	toughBoosted := 0
	for _, p := range body {
		switch p.Type {
		case host.Attack:
			dps += weightedPartOutput(30, p)
		case host.RangedAttack:
			dps += weightedPartOutput(10, p)
		case host.Heal:
			heal += weightedPartOutput(healPower, p)
		case host.Tough:
			if partBoosted(p) {
				toughBoosted++
			}
		}
	}
	if toughBoosted > 0 {
		dps *= 1 - toughDamageReduction*float64(toughBoosted)/float64(len(body))
	}
	return Threat{DPS: dps, Heal: heal}
}

func weightedPartOutput(base float64, p host.BodyPart) float64 {
	if partBoosted(p) {
		return base * 4
	}
	return base
}

// IsDangerous reports whether a hostile creep counts as a combat
// threat for the Exploiting-phase hostiles-remain check.
func IsDangerous(c host.CreepSnapshot, excludeNPC bool) bool {
	if excludeNPC && c.Owner == host.OwnerSourceKeeper {
		return false
	}
	for _, p := range c.Body {
		if p.Hits == 0 {
			continue
		}
		switch p.Type {
		case host.Attack, host.RangedAttack, host.Heal:
			return true
		}
	}
	return false
}
