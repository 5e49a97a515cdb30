// Package movement implements the move_to resolution stage: every job that
// wants to move submits a request each tick; one stage groups them, asks
// the host for a multi-room route under a hostile-aware cost function, and
// caches the result per creep.
package movement

import (
	"log/slog"

	"github.com/colonygrid/foreman/host"
	"github.com/colonygrid/foreman/kernel"
)

// Request is one creep's move_to call for this tick.
type Request struct {
	Creep       host.ObjectID
	From, To    host.Pos
	Range       int
	Hostile     host.HostileBehavior
}

// Data is the per-tick move request inbox plus the long-lived path
// cache; one instance is shared by the whole colony.
type Data struct {
	log   *slog.Logger
	cache *PathCache

	// Matrices is the per-room cost-matrix cache persisted across ticks
	// in its own dedicated segment. A host binding's search_path cost-matrix
	// callback calls Matrices.Get to avoid rebuilding a room's matrix every
	// tick.
	Matrices *CostMatrixCache

	pending []Request
}

// New creates an empty movement Data.
func New(log *slog.Logger) *Data {
	if log == nil {
		log = slog.Default()
	}
	return &Data{log: log, cache: NewPathCache(), Matrices: NewCostMatrixCache()}
}

// MoveTo queues a move request for this tick; jobs call this instead
// of touching host.Host.MoveTo directly so requests can be grouped and
// cached.
func (d *Data) MoveTo(creep host.ObjectID, from, to host.Pos, rng int, hostile host.HostileBehavior) {
	d.pending = append(d.pending, Request{Creep: creep, From: from, To: to, Range: rng, Hostile: hostile})
}

// RoomCost implements the multi-room cost callback:
// impassable rooms return impassable=true (with cost 0), which the
// caller must treat as "do not enter"; everything else is a positive
// weight.
func RoomCost(owned, friendly, reserved bool, hostile bool, blocked bool, behavior host.HostileBehavior) (cost int, impassable bool) {
	if blocked {
		return 0, true
	}
	if hostile {
		switch behavior {
		case host.HostileAllow:
			return 1, false
		case host.HostileHighCost:
			return 10, false
		case host.HostileDeny:
			return 0, true
		}
	}
	if owned || friendly || reserved {
		return 1, false
	}
	return 2, false
}

// ResolveStage is the pre-pass/main-pass stage that drains pending
// requests against h, using cached paths where still valid and
// invalidating on obstruction. obstructed reports whether a creep's
// last move attempt was blocked by another creep this tick; the host
// binding supplies this from its own MoveTo error.
func ResolveStage(h host.Host, d *Data, obstructed func(host.ObjectID) bool) kernel.Stage {
	return kernel.Stage{
		Name: "movement-resolve",
		Run: func(w *kernel.World) error {
			tick := h.Time()
			reqs := d.pending
			d.pending = nil

			for _, r := range reqs {
				if obstructed(r.Creep) {
					d.cache.Invalidate(r.Creep)
				}
				if _, ok := d.cache.Lookup(r.Creep, tick, r.From, r.To, r.Range, r.Hostile); !ok {
					path, err := h.SearchPath(r.From, r.To)
					if err != nil {
						d.log.Debug("movement: search_path failed", "creep", r.Creep, "error", err)
						continue
					}
					d.cache.Store(r.Creep, tick, r.From, r.To, r.Range, r.Hostile, path)
				}
				next, ok := d.cache.Advance(r.Creep)
				if !ok {
					continue
				}
				if err := h.MoveTo(r.Creep, next, host.MoveOptions{Range: r.Range, ReusePath: ReuseTicks}); err != nil {
					d.log.Debug("movement: move_to failed", "creep", r.Creep, "error", err)
					d.cache.Invalidate(r.Creep)
				}
			}
			return nil
		},
	}
}
