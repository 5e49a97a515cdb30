// Package foreman wires every subsystem package into the tick() entry
// point: Controller owns the in-process World across ticks, requests
// its memory segments, deserializes on first activation, runs the
// pre-pass then main-pass dispatchers, and serializes state back out
// before returning.
package foreman

import (
	"log/slog"
	"time"

	"github.com/colonygrid/foreman/config"
	"github.com/colonygrid/foreman/creepjob"
	"github.com/colonygrid/foreman/host"
	"github.com/colonygrid/foreman/kernel"
	"github.com/colonygrid/foreman/memory"
	"github.com/colonygrid/foreman/movement"
	"github.com/colonygrid/foreman/persist"
	"github.com/colonygrid/foreman/planner"
	"github.com/colonygrid/foreman/roomdata"
	"github.com/colonygrid/foreman/transfer"
	"github.com/colonygrid/foreman/visualize"
)

// stateSegments are the segments the serializer writes the gob+base64
// World snapshot across.
var stateSegments = []int{0, 1, 2}

// costMatrixSegment is the dedicated segment for the movement system's
// persisted cost-matrix cache: a single segment, written/read
// independently of the three state segments so a movement-cache corruption
// never drops the rest of the world.
const costMatrixSegment = 3

// StaleRoomTicks is how long a room goes without visibility before its
// cached structure/creep snapshot is dropped.
const StaleRoomTicks = 1000

// RoomPlanBatch bounds one room's per-tick layout-search slice, kept
// well under a typical tick's whole CPU bucket since the room planner
// shares the tick with every other stage.
const RoomPlanBatch = 20 * time.Millisecond

// haulerCapacity sizes transfer matches until real hauler creeps are
// wired in; it mirrors a 25-CARRY creep's hold.
const haulerCapacity = 1250

// maxHaulMatchesPerRoom bounds how many (pickup, deliver) pairs the
// transfer-drain stage resolves per room per tick, so a room with many
// small buckets can't make the stage loop unboundedly.
const maxHaulMatchesPerRoom = 20

// Config configures a Controller. Every field is optional; defaults
// are resolved once in New.
type Config struct {
	Log    *slog.Logger
	Empire *config.Store
	// Renderer receives a gathered visualize.Data every tick; nil uses
	// visualize.NopRenderer.
	Renderer visualize.Renderer
}

// Controller is the tick() entry point's owner: it holds the
// in-process World across ticks and every long-lived collaborator
// (queues, mapping, registry) that must survive a tick boundary.
type Controller struct {
	log      *slog.Logger
	h        host.Host
	wr       *wiring
	arb      *memory.Arbiter
	renderer visualize.Renderer

	world            *kernel.World
	lastTick         int64
	haveWorld        bool
	needsDeserialize bool
	builtDisp        bool
	prePass          *kernel.Dispatcher
	mainPass         *kernel.Dispatcher
}

// New creates a Controller over h. cfg.Log and cfg.Renderer default as
// documented on Config; cfg.Empire may be nil (War operation then runs
// fully enabled with no manual overrides, per config.Default).
func New(h host.Host, cfg Config) *Controller {
	if cfg.Log == nil {
		cfg.Log = slog.Default()
	}
	if cfg.Renderer == nil {
		cfg.Renderer = visualize.NopRenderer{}
	}
	return &Controller{
		log:      cfg.Log,
		h:        h,
		wr:       newWiring(h, cfg.Empire, cfg.Log),
		arb:      memory.NewArbiter(h, cfg.Log),
		renderer: cfg.Renderer,
	}
}

// Tick runs exactly one invocation of the host's loop function. It
// never panics: every stage is wrapped by the kernel
// dispatcher's own recover, and Tick itself holds no state that a
// single bad tick could leave corrupted beyond what the next cold boot
// would reset anyway.
func (c *Controller) Tick() {
	tick := c.h.Time()

	if !c.haveWorld || c.lastTick+1 != tick {
		c.log.Info("foreman: building fresh world", "tick", tick, "had_world", c.haveWorld, "last_tick", c.lastTick)
		c.world = kernel.NewWorld()
		roomdata.Rebuild(c.world, c.wr.mapping)
		c.haveWorld = true
		c.needsDeserialize = true
	}
	c.lastTick = tick

	c.arb.Require(stateSegments[0])
	c.arb.Require(stateSegments[1])
	c.arb.Require(stateSegments[2])
	c.arb.Require(costMatrixSegment)
	if !c.arb.Ready() {
		c.log.Debug("foreman: required segments not yet active, deferring tick", "tick", tick)
		return
	}

	if c.needsDeserialize {
		c.deserialize(tick)
		c.deserializeCostMatrices(tick)
		c.needsDeserialize = false
	}

	if !c.builtDisp {
		c.buildDispatchers()
		c.builtDisp = true
	}

	c.prePass.Run(c.world)
	c.mainPass.Run(c.world)

	c.serialize(tick)
}

func (c *Controller) deserialize(tick int64) {
	snap, err := persist.ReadLogged[Snapshot](c.arb, stateSegments, c.log)
	if err != nil {
		c.log.Warn("foreman: deserialize failed, starting from empty world", "tick", tick, "error", err)
		c.world = kernel.NewWorld()
		return
	}
	c.world = RestoreWorld(snap)
	roomdata.Rebuild(c.world, c.wr.mapping)
	c.log.Debug("foreman: restored world from segments", "tick", snap.Tick)
}

func (c *Controller) serialize(tick int64) {
	snap := BuildSnapshot(c.world, tick)
	if err := persist.Write(c.arb, stateSegments, snap, c.log); err != nil {
		c.log.Error("foreman: serialize failed", "tick", tick, "error", err)
	}
	records := c.wr.moveData.Matrices.Records()
	if err := persist.Write(c.arb, []int{costMatrixSegment}, records, c.log); err != nil {
		c.log.Error("foreman: cost-matrix serialize failed", "tick", tick, "error", err)
	}
	c.arb.Flush()
}

// deserializeCostMatrices hydrates the movement system's cost-matrix
// cache from its dedicated segment. Failure here is treated the same
// as a state-segment decode failure: the cache simply starts empty and
// gets rebuilt lazily as rooms are revisited.
func (c *Controller) deserializeCostMatrices(tick int64) {
	records, err := persist.ReadLogged[[]movement.CostMatrixRecord](c.arb, []int{costMatrixSegment}, c.log)
	if err != nil {
		c.log.Warn("foreman: cost-matrix deserialize failed, starting from empty cache", "tick", tick, "error", err)
		return
	}
	c.wr.moveData.Matrices.Restore(records)
}

// buildDispatchers wires the fixed pipeline of stages and barriers,
// once per process (stages close over h/wr, not over any particular
// World).
func (c *Controller) buildDispatchers() {
	h := c.h
	wr := c.wr

	c.prePass = kernel.NewDispatcher(c.log).
		Then(creepjob.WaitForSpawnStage(h)).
		Then(creepjob.CleanupDeadCreepsStage(h, c.log)).
		Then(roomdata.CreateRoomDataStage(h, wr.mapping)).
		Barrier().
		Then(roomdata.UpdateRoomDataStage(h)).
		Then(c.staleRoomGCStage()).
		Barrier().
		Then(roomdata.EntityMappingStage(wr.mapping))

	c.mainPass = kernel.NewDispatcher(c.log).
		Then(kernel.Stage{Name: "spawn-clear", Run: func(*kernel.World) error { wr.spawnQ.Clear(); return nil }}).
		Then(kernel.Stage{Name: "transfer-clear", Run: func(*kernel.World) error { wr.transferQ.Clear(); return nil }}).
		Then(planner.EnsureOperationStage(planner.OperationWar)).
		Then(planner.OperationsStage(wr.registry, c.log)).
		Barrier().
		Then(planner.MissionsPreRunStage(wr.registry, c.log)).
		Barrier().
		Then(planner.MissionsRunStage(wr.registry, c.log)).
		Barrier().
		Then(planner.TerminationStage(c.log)).
		Then(planner.IntegrityStage(wr.registry, c.log)).
		Barrier().
		Then(c.movementStage()).
		Then(c.transferDrainStage()).
		Then(c.spawnDrainStage()).
		Then(c.renewalDrainStage()).
		Then(RoomPlanStage(c.log, RoomPlanBatch)).
		Then(c.telemetryStage())
}

// staleRoomGCStage wraps roomdata.GarbageCollectStage so the "now"
// passed to it is read fresh every tick rather than frozen at
// dispatcher-construction time.
func (c *Controller) staleRoomGCStage() kernel.Stage {
	h := c.h
	log := c.log
	return kernel.Stage{
		Name: "room-data-gc",
		Run: func(w *kernel.World) error {
			return roomdata.GarbageCollectStage(log, h.Time(), StaleRoomTicks).Run(w)
		},
	}
}

func (c *Controller) movementStage() kernel.Stage {
	h := c.h
	moveData := c.wr.moveData
	obstructed := func(host.ObjectID) bool { return false } // live obstruction reporting belongs to the host binding.
	return movement.ResolveStage(h, moveData, obstructed)
}

func (c *Controller) spawnDrainStage() kernel.Stage {
	h := c.h
	wr := c.wr
	return kernel.Stage{
		Name: "spawn-drain",
		Run: func(w *kernel.World) error {
			energy := make(map[host.RoomName]int)
			for name, snap := range h.Rooms() {
				energy[name] = snap.EnergyAvailable
			}
			wr.spawnQ.Drain(w, energy, func(room host.RoomName, name string, body []host.BodyPart) (host.ObjectID, error) {
				return h.Spawn(room, name, body)
			})
			return nil
		},
	}
}

// transferDrainStage drains the two-sided transfer market
// by repeatedly resolving the best available (withdrawal, deposit)
// match per room and reserving both sides against it, so the market's
// actual deliverable — matched deliveries, not just populated buckets —
// runs every tick. The haul job that turns a match into withdraw/
// transfer host.Host calls lives in the host binding; each room's
// resolved matches are recorded onto HaulMatches for that job layer (or
// the console REPL) to read.
func (c *Controller) transferDrainStage() kernel.Stage {
	wr := c.wr
	log := c.log
	return kernel.Stage{
		Name: "transfer-drain",
		Run: func(w *kernel.World) error {
			kernel.Storage[roomdata.Data](w).Each(func(roomEntity kernel.Entity, rd *roomdata.Data) {
				// Until a real hauler creep drives this, matches are valued
				// from the room centre.
				from := host.Pos{X: 25, Y: 25, Room: rd.Name}
				var matches []transfer.Match
				for i := 0; i < maxHaulMatchesPerRoom; i++ {
					m, ok := transfer.SelectBestDelivery(wr.transferQ, rd.Name, from, nil, haulerCapacity)
					if !ok {
						break
					}
					wr.transferQ.NodeFor(m.Pickup).ReservePickup(m.PickupKey, m.Amount)
					wr.transferQ.NodeFor(m.Deliver).ReserveDelivery(m.DeliverKey, m.Amount)
					matches = append(matches, m)
				}
				if len(matches) == 0 {
					return
				}
				recordHaulMatches(w, roomEntity, matches)
				log.Debug("foreman: transfer matches resolved", "room", rd.Name, "count", len(matches))
			})
			return nil
		},
	}
}

func (c *Controller) renewalDrainStage() kernel.Stage {
	h := c.h
	wr := c.wr
	return kernel.Stage{
		Name: "spawn-renew-drain",
		Run: func(*kernel.World) error {
			wr.spawnQ.DrainRenewals(func(room host.RoomName, creep host.ObjectID) error {
				return h.RenewCreep(room, creep)
			})
			return nil
		},
	}
}

func (c *Controller) telemetryStage() kernel.Stage {
	wr := c.wr
	renderer := c.renderer
	return kernel.Stage{
		Name: "telemetry",
		Run: func(w *kernel.World) error {
			data := visualize.Gather(w, wr.spawnQ, wr.transferQ)
			return renderer.Render(data)
		},
	}
}

// World exposes the in-process World for operator tooling (the
// console REPL) between ticks. It returns nil until the first Tick has
// built a world.
func (c *Controller) World() *kernel.World { return c.world }

// RegisterMissionHandler lets a host-side binding add a mission kind
// this package does not itself implement. Must be
// called before the first Tick.
func (c *Controller) RegisterMissionHandler(k planner.MissionKind, h planner.MissionHandler) {
	c.wr.registry.RegisterMission(k, h)
}
