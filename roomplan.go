package foreman

import (
	"log/slog"
	"time"

	"github.com/colonygrid/foreman/host"
	"github.com/colonygrid/foreman/kernel"
	"github.com/colonygrid/foreman/layout"
	"github.com/colonygrid/foreman/roomdata"
)

// RoomPlanRules is the declarative placement-rule set every room's
// layout search runs against. It is a package-level value
// rather than per-room state because Rule.Candidates closures are not
// serializable; a checkpointed search is always replayed against this
// same slice, keyed by index (layout.Resume's documented contract).
var RoomPlanRules = []layout.Rule{
	{
		Type:  "spawn",
		Count: 1,
		Candidates: layout.AdjacentToAnchors(func(ds layout.DataSource, _ *layout.Plan) []layout.Pos {
			return ds.Controllers()
		}, 3),
	},
	{
		Type:  "extension",
		Count: 5,
		Candidates: layout.AdjacentToAnchors(func(ds layout.DataSource, plan *layout.Plan) []layout.Pos {
			return placementsOf(plan, "spawn")
		}, 2),
	},
	{
		Type:  "container",
		Count: 2,
		Candidates: layout.AdjacentToAnchors(func(ds layout.DataSource, _ *layout.Plan) []layout.Pos {
			return ds.Sources()
		}, 1),
	},
}

func placementsOf(plan *layout.Plan, t layout.StructureType) []layout.Pos {
	var out []layout.Pos
	for _, pl := range plan.Placements {
		if pl.Type == t {
			out = append(out, pl.Pos)
		}
	}
	return out
}

// roomDataSource adapts one roomdata.Data snapshot to layout.DataSource,
// re-querying the component fresh every call rather than caching
// anything across the search.
type roomDataSource struct {
	d *roomdata.Data
}

func (s roomDataSource) Terrain() *host.Terrain { return s.d.Terrain }

func (s roomDataSource) Controllers() []layout.Pos {
	if s.d.ControllerPos == nil {
		return nil
	}
	return []layout.Pos{{X: s.d.ControllerPos.X, Y: s.d.ControllerPos.Y}}
}

func (s roomDataSource) Sources() []layout.Pos {
	out := make([]layout.Pos, len(s.d.Sources))
	for i, p := range s.d.Sources {
		out[i] = layout.Pos{X: p.X, Y: p.Y}
	}
	return out
}

func (s roomDataSource) Minerals() []layout.Pos {
	if s.d.Mineral == nil {
		return nil
	}
	return []layout.Pos{{X: s.d.Mineral.X, Y: s.d.Mineral.Y}}
}

// RoomPlan is the per-room layout search's resumable state. Checkpoint is
// opaque to every caller but this package.
type RoomPlan struct {
	Checkpoint layout.Checkpoint
	Started    bool
	Plan       *layout.Plan
	Complete   bool
}

// RoomPlanStage drives one batch of every in-progress room's layout
// search per tick, bounded by perRoomBatch wall-clock time so the
// search never blows the host's per-tick CPU budget.
func RoomPlanStage(log *slog.Logger, perRoomBatch time.Duration) kernel.Stage {
	if log == nil {
		log = slog.Default()
	}
	return kernel.Stage{
		Name: "room-plan",
		Run: func(w *kernel.World) error {
			rooms := kernel.Storage[roomdata.Data](w)
			plans := kernel.Storage[RoomPlan](w)
			rooms.Each(func(e kernel.Entity, d *roomdata.Data) {
				if !d.HasVisibility() {
					return
				}
				rp, ok := plans.Get(e)
				if !ok {
					rp = RoomPlan{}
				}
				if rp.Complete {
					return
				}
				ds := roomDataSource{d: d}

				var st *layout.State
				if rp.Started {
					st = layout.Resume(rp.Checkpoint, RoomPlanRules)
				} else {
					st = layout.Seed(ds, RoomPlanRules)
					rp.Started = true
				}

				budget := layout.Budget{Total: perRoomBatch, Batch: perRoomBatch}
				plan, concluded, err := layout.RunBudgeted(st, ds, budget, time.Now)
				if err != nil {
					log.Warn("roomplan: evaluate failed", "room", d.Name, "error", err)
					rp.Checkpoint = st.Checkpoint()
					plans.Set(e, rp)
					return
				}
				if concluded {
					rp.Complete = true
					rp.Plan = plan
					if plan != nil {
						log.Info("roomplan: plan complete", "room", d.Name, "placements", len(plan.Placements), "score", plan.Score)
					} else {
						log.Warn("roomplan: search exhausted with no valid plan", "room", d.Name)
					}
				}
				rp.Checkpoint = st.Checkpoint()
				plans.Set(e, rp)
			})
			return nil
		},
	}
}
