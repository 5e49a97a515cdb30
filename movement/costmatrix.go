package movement

import "github.com/colonygrid/foreman/host"

// CostMatrix is a 50x50 per-tile movement-cost grid for one room,
// row-major (y*50+x), in the shape the host's search_path cost-matrix
// callback expects. 0 means "default terrain cost", 255 means
// impassable.
type CostMatrix [2500]uint8

// CostMatrixCache holds one CostMatrix per room, persisted across
// ticks in its own dedicated segment. Rebuilding a cost matrix from a room's
// structure snapshot is comparatively expensive; the cache is kept
// valid as long as the caller's revision counter (typically a hash of
// the room's structure list) has not changed.
type CostMatrixCache struct {
	byRoom map[host.RoomName]costEntry
}

type costEntry struct {
	Matrix   CostMatrix
	Revision uint64
}

// NewCostMatrixCache creates an empty CostMatrixCache.
func NewCostMatrixCache() *CostMatrixCache {
	return &CostMatrixCache{byRoom: make(map[host.RoomName]costEntry)}
}

// Get returns the cached CostMatrix for room if its revision still
// matches, otherwise calls build to produce a fresh one and caches it.
func (c *CostMatrixCache) Get(room host.RoomName, revision uint64, build func() CostMatrix) CostMatrix {
	if e, ok := c.byRoom[room]; ok && e.Revision == revision {
		return e.Matrix
	}
	m := build()
	c.byRoom[room] = costEntry{Matrix: m, Revision: revision}
	return m
}

// Invalidate drops a room's cached matrix outright, e.g. when a
// structure is destroyed mid-tick and the caller cannot wait for the
// next revision check.
func (c *CostMatrixCache) Invalidate(room host.RoomName) { delete(c.byRoom, room) }

// CostMatrixRecord is one room's cached matrix in serializable form,
// used by the root controller to persist the cache to its dedicated
// segment.
type CostMatrixRecord struct {
	Room     host.RoomName
	Revision uint64
	Matrix   CostMatrix
}

// Records snapshots the whole cache for persistence.
func (c *CostMatrixCache) Records() []CostMatrixRecord {
	out := make([]CostMatrixRecord, 0, len(c.byRoom))
	for room, e := range c.byRoom {
		out = append(out, CostMatrixRecord{Room: room, Revision: e.Revision, Matrix: e.Matrix})
	}
	return out
}

// Restore repopulates the cache from persisted records, replacing any
// existing content.
func (c *CostMatrixCache) Restore(records []CostMatrixRecord) {
	c.byRoom = make(map[host.RoomName]costEntry, len(records))
	for _, r := range records {
		c.byRoom[r.Room] = costEntry{Matrix: r.Matrix, Revision: r.Revision}
	}
}
