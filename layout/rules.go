package layout

import (
	"github.com/colonygrid/foreman/host"
	"github.com/go-gl/mathgl/mgl64"
)

// RoomSize is the fixed terrain dimension.
const RoomSize = 50

func inBounds(p Pos) bool {
	return p.X >= 0 && p.X < RoomSize && p.Y >= 0 && p.Y < RoomSize
}

func wall(terrain *host.Terrain, p Pos) bool {
	if terrain == nil {
		return false
	}
	return terrain[p.Y*RoomSize+p.X] == host.TileWall
}

// NeighborsWithin8 returns the 8 tiles adjacent to p, in-bounds only.
func NeighborsWithin8(p Pos) []Pos {
	var out []Pos
	for dy := -1; dy <= 1; dy++ {
		for dx := -1; dx <= 1; dx++ {
			if dx == 0 && dy == 0 {
				continue
			}
			n := Pos{X: p.X + dx, Y: p.Y + dy}
			if inBounds(n) {
				out = append(out, n)
			}
		}
	}
	return out
}

// ReachableFrom reports whether to is within chebyshev range of any of
// from.
func ReachableFrom(to Pos, from []Pos, maxRange int) bool {
	for _, f := range from {
		dx, dy := to.X-f.X, to.Y-f.Y
		if dx < 0 {
			dx = -dx
		}
		if dy < 0 {
			dy = -dy
		}
		d := dx
		if dy > d {
			d = dy
		}
		if d <= maxRange {
			return true
		}
	}
	return false
}

// AdjacentToAnchors builds a Rule.Candidates function that proposes
// every non-wall, in-bounds, unoccupied tile within range of any
// position returned by anchors(plan), scored by proximity (closer is
// better) - the common shape for extensions/containers/roads that must
// cluster around a previously-placed structure.
func AdjacentToAnchors(anchors func(ds DataSource, plan *Plan) []Pos, maxRange int) func(DataSource, *Plan) []ScoredPos {
	return func(ds DataSource, plan *Plan) []ScoredPos {
		terrain := ds.Terrain()
		roots := anchors(ds, plan)
		seen := map[Pos]bool{}
		var out []ScoredPos
		for _, a := range roots {
			for dy := -maxRange; dy <= maxRange; dy++ {
				for dx := -maxRange; dx <= maxRange; dx++ {
					p := Pos{X: a.X + dx, Y: a.Y + dy}
					if !inBounds(p) || seen[p] || wall(terrain, p) || plan.occupied(p) {
						continue
					}
					seen[p] = true
					dist := mgl64.Vec2{float64(a.X), float64(a.Y)}.Sub(mgl64.Vec2{float64(p.X), float64(p.Y)}).Len()
					out = append(out, ScoredPos{Pos: p, Score: -dist})
				}
			}
		}
		return out
	}
}
