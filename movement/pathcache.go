package movement

import (
	"strconv"

	"github.com/cespare/xxhash/v2"
	"github.com/colonygrid/foreman/host"
)

// ReuseTicks is how long a cached path is trusted before the
// resolution stage recomputes it.
const ReuseTicks = 5

// cacheKey hashes a (origin, destination, range, hostile-behavior)
// request into a single uint64 so CachedPath lookups are O(1) without
// building a string key on every tick for every creep.
func cacheKey(from host.Pos, to host.Pos, rng int, hostile host.HostileBehavior) uint64 {
	d := xxhash.New()
	var buf [64]byte
	b := buf[:0]
	b = appendPos(b, from)
	b = appendPos(b, to)
	b = strconv.AppendInt(b, int64(rng), 10)
	b = strconv.AppendInt(b, int64(hostile), 10)
	_, _ = d.Write(b)
	return d.Sum64()
}

func appendPos(b []byte, p host.Pos) []byte {
	b = append(b, p.Room...)
	b = strconv.AppendInt(b, int64(p.X), 10)
	b = strconv.AppendInt(b, int64(p.Y), 10)
	return b
}

// CachedPath is one creep's last-computed route, reused for ReuseTicks
// ticks unless invalidated by an obstruction.
type CachedPath struct {
	key       uint64
	Steps     []host.Pos
	Cursor    int
	ComputedAt int64
}

// Valid reports whether this cache entry is still fresh at tick and
// still matches the request described by from/to/rng/hostile.
func (c *CachedPath) Valid(tick int64, from, to host.Pos, rng int, hostile host.HostileBehavior) bool {
	if c == nil || c.Steps == nil {
		return false
	}
	if tick-c.ComputedAt >= ReuseTicks {
		return false
	}
	return c.key == cacheKey(from, to, rng, hostile)
}

// PathCache holds one CachedPath per creep.
type PathCache struct {
	byCreep map[host.ObjectID]*CachedPath
}

// NewPathCache creates an empty PathCache.
func NewPathCache() *PathCache { return &PathCache{byCreep: make(map[host.ObjectID]*CachedPath)} }

// Lookup returns the cached path for creep if it is still valid for
// the given request at tick.
func (pc *PathCache) Lookup(creep host.ObjectID, tick int64, from, to host.Pos, rng int, hostile host.HostileBehavior) (*CachedPath, bool) {
	c, ok := pc.byCreep[creep]
	if !ok || !c.Valid(tick, from, to, rng, hostile) {
		return nil, false
	}
	return c, true
}

// Store records a freshly computed path for creep.
func (pc *PathCache) Store(creep host.ObjectID, tick int64, from, to host.Pos, rng int, hostile host.HostileBehavior, steps []host.Pos) {
	pc.byCreep[creep] = &CachedPath{
		key:       cacheKey(from, to, rng, hostile),
		Steps:     steps,
		ComputedAt: tick,
	}
}

// Invalidate drops creep's cached path, e.g. after an obstruction.
func (pc *PathCache) Invalidate(creep host.ObjectID) { delete(pc.byCreep, creep) }

// Advance moves creep's cursor forward one step after a successful
// move, returning the next step to aim for (or false if the path is
// exhausted).
func (pc *PathCache) Advance(creep host.ObjectID) (host.Pos, bool) {
	c, ok := pc.byCreep[creep]
	if !ok {
		return host.Pos{}, false
	}
	c.Cursor++
	if c.Cursor >= len(c.Steps) {
		return host.Pos{}, false
	}
	return c.Steps[c.Cursor], true
}
