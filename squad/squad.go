package squad

import (
	"github.com/colonygrid/foreman/host"
	"github.com/colonygrid/foreman/kernel"
	"github.com/go-gl/mathgl/mgl64"
)

// Role tags a squad slot's combat function.
type Role int

const (
	RoleRangedAttacker Role = iota
	RoleMeleeAttacker
	RoleHealer
	RoleTank
	RoleDrain
	RoleHauler
)

// Slot is one member position in a squad's composition: a role and the
// formation offset (relative to the squad's virtual anchor) it holds.
type Slot struct {
	Role   Role
	Offset mgl64.Vec2
	Member kernel.Entity // kernel.Nil until filled.
}

// Context is the squad-context entity's component. One Context exists per
// planned squad inside an AttackMission's force plan.
type Context struct {
	Slots []Slot

	// Anchor is the virtual formation anchor in world space; members
	// hold position relative to it at their slot Offset.
	Anchor     host.Pos
	HasAnchor  bool

	// StrictHoldTicks counts consecutive ticks the squad has failed to
	// reach formation (pathfinding stuck); past BlockedThreshold the
	// formation-offset cohesion check is relaxed.
	StrictHoldTicks int

	SpawnComplete bool
}

// BlockedThreshold is the strict-hold tick count past which formation-
// offset cohesion stops gating the Rallying->Engaging transition.
const BlockedThreshold = 30

// LivingMembers returns every slot's member entity that is still alive
// in w, in slot order.
func (c *Context) LivingMembers(w *kernel.World) []kernel.Entity {
	var out []kernel.Entity
	for _, s := range c.Slots {
		if !s.Member.IsNil() && w.IsAlive(s.Member) {
			out = append(out, s.Member)
		}
	}
	return out
}

// IsWiped reports a squad with slots that were filled at least once
// but now have zero living members.
func (c *Context) IsWiped(w *kernel.World) bool {
	everFilled := false
	for _, s := range c.Slots {
		if !s.Member.IsNil() {
			everFilled = true
			break
		}
	}
	return everFilled && len(c.LivingMembers(w)) == 0
}

// RepairEntityRefs drops dead member references from slots, per the
// mission-handler contract each mission exposes for its kind-specific
// state.
func (c *Context) RepairEntityRefs(isValid func(kernel.Entity) bool) {
	for i := range c.Slots {
		if !c.Slots[i].Member.IsNil() && !isValid(c.Slots[i].Member) {
			c.Slots[i].Member = kernel.Nil
		}
	}
}

// Cohesive implements the Rallying->Engaging transition check: every
// living member in the same room, within chebyshev distance 1 of the
// anchor member, and (unless stuck past BlockedThreshold) within distance
// 1 of its own formation offset.
func Cohesive(c *Context, positions map[kernel.Entity]host.Pos, inTargetRoom bool) bool {
	if inTargetRoom {
		return false
	}
	members := membersWithPos(c, positions)
	if len(members) == 0 {
		return false
	}
	anchorPos := members[0].pos
	for _, m := range members {
		if m.pos.Room != anchorPos.Room {
			return false
		}
		if chebyshev(m.pos, anchorPos) > 1 {
			return false
		}
	}
	if c.StrictHoldTicks > BlockedThreshold {
		return true
	}
	if !c.HasAnchor {
		return true
	}
	for _, m := range members {
		want := offsetPos(c.Anchor, m.slot.Offset)
		if chebyshev(m.pos, want) > 1 {
			return false
		}
	}
	return true
}

type memberPos struct {
	slot Slot
	pos  host.Pos
}

func membersWithPos(c *Context, positions map[kernel.Entity]host.Pos) []memberPos {
	var out []memberPos
	for _, s := range c.Slots {
		if s.Member.IsNil() {
			continue
		}
		if p, ok := positions[s.Member]; ok {
			out = append(out, memberPos{slot: s, pos: p})
		}
	}
	return out
}

func chebyshev(a, b host.Pos) int {
	dx, dy := abs(a.X-b.X), abs(a.Y-b.Y)
	if dx > dy {
		return dx
	}
	return dy
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}

func offsetPos(anchor host.Pos, off mgl64.Vec2) host.Pos {
	return host.Pos{X: anchor.X + int(off.X()), Y: anchor.Y + int(off.Y()), Room: anchor.Room}
}

// AdvanceAnchor moves the virtual anchor one step toward target,
// clamped to one tile per tick (formation movement never outruns its
// slowest member).
func AdvanceAnchor(c *Context, target host.Pos) {
	if !c.HasAnchor {
		c.Anchor = target
		c.HasAnchor = true
		return
	}
	if c.Anchor.Room != target.Room {
		c.Anchor = target
		return
	}
	dx := clampStep(target.X - c.Anchor.X)
	dy := clampStep(target.Y - c.Anchor.Y)
	c.Anchor.X += dx
	c.Anchor.Y += dy
}

func clampStep(d int) int {
	switch {
	case d > 0:
		return 1
	case d < 0:
		return -1
	default:
		return 0
	}
}

// QuadOffsets returns the four formation offsets for a 2x2 quad
// formation whose top-left member stands on the anchor.
func QuadOffsets() []mgl64.Vec2 {
	return []mgl64.Vec2{
		{0, 0}, {1, 0}, {0, 1}, {1, 1},
	}
}

// DuoOffsets returns the two formation offsets for a tank+healer duo.
func DuoOffsets() []mgl64.Vec2 {
	return []mgl64.Vec2{{0, 0}, {-1, 0}}
}
