// Package squad implements the squad-context entity and its supporting
// mechanics: formation cohesion, focus-fire target selection, threat
// classification, and body sizing.
package squad

import "github.com/colonygrid/foreman/host"

// healPower is the hit points one unboosted HEAL part restores per
// tick at range 1 (adjacent heal).
const healPower = 12

// drainHealPartsForDPS returns the minimum HEAL parts needed to fully
// offset towerDPS.
func drainHealPartsForDPS(towerDPS float64) int {
	if towerDPS <= 0 {
		return 0
	}
	parts := int(towerDPS / healPower)
	if float64(parts*healPower) < towerDPS {
		parts++
	}
	return parts
}

// DrainBodyForTowerDPS builds a TOUGH-front, HEAL/MOVE-repeat body
// sized to survive towerDPS at capacity energy: the standard body
// (13 to 15 HEAL, depending on capacity) is used when 13 or fewer heal
// parts are needed, the heavy body (20 HEAL) otherwise.
func DrainBodyForTowerDPS(capacity int, towerDPS float64) []host.BodyPart {
	if drainHealPartsForDPS(towerDPS) > 13 {
		return drainBodyHeavy(capacity)
	}
	return drainBody(capacity)
}

func toughFront(n int) []host.BodyPart {
	parts := make([]host.BodyPart, n)
	for i := range parts {
		parts[i] = host.BodyPart{Type: host.Tough}
	}
	return parts
}

func repeated(t host.BodyPartType, n int) []host.BodyPart {
	parts := make([]host.BodyPart, n)
	for i := range parts {
		parts[i] = host.BodyPart{Type: t}
	}
	return parts
}

// bodyWithin builds pre+repeat*n+post, the shape every body definition
// here shares: n is as many repeats as capacity pays for, within the
// 50-part limit, but at least minRepeat; pre, post and the minRepeat
// repeats are included even when capacity does not cover them.
func bodyWithin(capacity int, pre []host.BodyPart, repeatUnit []host.BodyPart, post []host.BodyPart, minRepeat int) []host.BodyPart {
	cost := func(parts []host.BodyPart) int {
		total := 0
		for _, p := range parts {
			switch p.Type {
			case host.Move, host.Carry:
				total += 50
			case host.Work:
				total += 100
			case host.Attack:
				total += 80
			case host.RangedAttack:
				total += 150
			case host.Heal:
				total += 250
			case host.Tough:
				total += 10
			case host.Claim:
				total += 600
			}
		}
		return total
	}
	body := append([]host.BodyPart{}, pre...)
	repeatCost := cost(repeatUnit)
	remaining := capacity - cost(pre) - cost(post)
	repeats := 0
	for remaining >= repeatCost && len(body)+len(repeatUnit)+len(post) <= 50 {
		body = append(body, repeatUnit...)
		remaining -= repeatCost
		repeats++
	}
	for repeats < minRepeat && len(body)+len(repeatUnit)+len(post) <= 50 {
		body = append(body, repeatUnit...)
		repeats++
	}
	body = append(body, post...)
	return body
}

func drainBody(capacity int) []host.BodyPart {
	pre := toughFront(10)
	repeatUnit := []host.BodyPart{{Type: host.Heal}, {Type: host.Move}}
	post := append(repeated(host.Heal, 11), repeated(host.Move, 21)...)
	return bodyWithin(capacity, pre, repeatUnit, post, 2)
}

func drainBodyHeavy(capacity int) []host.BodyPart {
	pre := toughFront(10)
	repeatUnit := []host.BodyPart{{Type: host.Heal}, {Type: host.Move}}
	post := append(repeated(host.Heal, 18), repeated(host.Move, 18)...)
	return bodyWithin(capacity, pre, repeatUnit, post, 2)
}

// QuadMemberBody is the interchangeable body every Quad squad member
// uses: a light ranged-only body below the full minimum energy, a
// mixed ranged/heal body above it.
func QuadMemberBody(capacity int) []host.BodyPart {
	const fullMin = 40 + 500 + 1200
	if capacity < fullMin {
		return bodyWithin(capacity, nil, []host.BodyPart{{Type: host.RangedAttack}, {Type: host.Move}}, nil, 1)
	}
	pre := toughFront(4)
	repeatUnit := []host.BodyPart{{Type: host.RangedAttack}, {Type: host.Move}, {Type: host.Heal}, {Type: host.Move}}
	post := append(repeated(host.Heal, 4), repeated(host.Move, 8)...)
	return bodyWithin(capacity, pre, repeatUnit, post, 1)
}

// TankBody is a heavy TOUGH front with an ATTACK/MOVE repeat.
func TankBody(capacity int) []host.BodyPart {
	pre := toughFront(8)
	repeatUnit := []host.BodyPart{{Type: host.Attack}, {Type: host.Move}}
	post := repeated(host.Move, 8)
	return bodyWithin(capacity, pre, repeatUnit, post, 1)
}

// DuoHealerBody is the healer half of a tank+healer duo.
func DuoHealerBody(capacity int) []host.BodyPart {
	pre := toughFront(6)
	repeatUnit := []host.BodyPart{{Type: host.Heal}, {Type: host.Move}}
	post := repeated(host.Move, 6)
	return bodyWithin(capacity, pre, repeatUnit, post, 1)
}

// HaulerBody is a CARRY/MOVE repeat for collecting dropped resources
// after a fight.
func HaulerBody(capacity int) []host.BodyPart {
	return bodyWithin(capacity, nil, []host.BodyPart{{Type: host.Carry}, {Type: host.Move}}, nil, 2)
}

// DuoRangedAttackerBody is the damage half of a ranged duo.
func DuoRangedAttackerBody(capacity int) []host.BodyPart {
	pre := toughFront(4)
	repeatUnit := []host.BodyPart{{Type: host.RangedAttack}, {Type: host.Move}}
	post := repeated(host.Move, 4)
	return bodyWithin(capacity, pre, repeatUnit, post, 1)
}
