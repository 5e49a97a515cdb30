// Package host declares the seam between the colony controller and the
// game runtime it runs inside. The
// runtime itself — room lookup, object resolution, command dispatch,
// terrain/visibility fetch — is out of scope for this repository; only
// the interface the controller consumes is specified here. A fake
// implementation lives in host/memdriver for tests and the offline
// benchmark harness.
package host

import "time"

// RoomName identifies a room, e.g. "W1N1".
type RoomName string

// ObjectID is an opaque id for any game object (creep, structure,
// construction site, resource, tombstone, ruin...).
type ObjectID string

// Owner classifies who controls a room.
type Owner int

const (
	OwnerNone Owner = iota
	OwnerMine
	OwnerFriendly
	OwnerHostile
	OwnerUnowned
	OwnerSourceKeeper
)

// Reservation classifies who reserves an unowned room's controller.
type Reservation int

const (
	ReservationNone Reservation = iota
	ReservationMine
	ReservationFriendly
	ReservationHostile
)

// BodyPart is a single creep body segment.
type BodyPart struct {
	Type   BodyPartType
	Hits   int // remaining hit points of this part, 0..100.
	Boost  string
}

type BodyPartType int

const (
	Move BodyPartType = iota
	Work
	Carry
	Attack
	RangedAttack
	Heal
	Tough
	Claim
)

// CreepSnapshot is the subset of a live creep's state the controller
// reads every tick.
type CreepSnapshot struct {
	ID            ObjectID
	Name          string
	Owner         Owner
	Pos           Pos
	Body          []BodyPart
	Hits, HitsMax int
	TicksToLive   int
	Carry         map[string]int
	CarryCapacity int
}

// StructureSnapshot is the subset of a structure's state the
// controller reads every tick.
type StructureSnapshot struct {
	ID            ObjectID
	Type          string // "spawn", "extension", "tower", "container", "storage", ...
	Owner         Owner
	Pos           Pos
	Hits, HitsMax int
	Store         map[string]int
	StoreCapacity int
	Energy        int
	EnergyCapacity int
}

// Pos is a position within a room, 0..49 on each axis.
type Pos struct {
	X, Y int
	Room RoomName
}

// Terrain is a 50x50 grid of tile kinds, row-major (y*50+x).
type Terrain [2500]TileKind

type TileKind uint8

const (
	TilePlain TileKind = iota
	TileSwamp
	TileWall
)

// RoomSnapshot is everything the controller reads about a room in a
// single observation.
type RoomSnapshot struct {
	Name           RoomName
	Visible        bool
	Terrain        *Terrain // nil until first visibility.
	Creeps         []CreepSnapshot
	Structures     []StructureSnapshot
	ConstructionSites []ObjectID
	Owner          Owner
	Reservation    Reservation
	HasHostileCreeps, HasHostileStructures bool
	Sources, Minerals []Pos
	ControllerPos  *Pos
	EnergyAvailable, EnergyCapacityAvailable int
	StoredEnergy   int
	SafeMode       bool
}

// Flag is an operator hint placed in the game world.
type Flag struct {
	Name string
	Pos  Pos
}

// HostileBehavior controls how the movement system treats hostile
// rooms when computing a multi-room path.
type HostileBehavior int

const (
	HostileAllow    HostileBehavior = iota // cost 1
	HostileHighCost                       // cost 10
	HostileDeny                           // impassable
)

// RouteOptions parameterizes a multi-room route request.
type RouteOptions struct {
	Hostile HostileBehavior
}

// Host is the external game API the controller consumes. Exactly one
// implementation is expected to exist per runtime: the live
// in-VM bindings (not part of this repository) and host/memdriver's
// in-memory fake used for tests and the benchmark harness.
type Host interface {
	Time() int64
	CPUBucket() float64
	Now() time.Time

	Rooms() map[RoomName]RoomSnapshot
	Flags() []Flag

	MemorySegmentGet(id int) (string, bool)
	MemorySegmentSet(id int, data string)
	MemorySegmentRequest(id int)

	FindRoute(from, to RoomName, opts RouteOptions) ([]RoomName, error)
	SearchPath(from, to Pos) ([]Pos, error)

	// RequestVisibility asks the host to prioritize gaining or
	// refreshing visibility into room (e.g. steering a scout creep or
	// an Observer target), best-effort and with no guaranteed latency.
	RequestVisibility(room RoomName)

	MoveTo(creep ObjectID, dst Pos, opts MoveOptions) error
	Transfer(creep ObjectID, target ObjectID, resource string, amount int) error
	Withdraw(creep ObjectID, target ObjectID, resource string, amount int) error
	Pickup(creep ObjectID, target ObjectID) error
	Harvest(creep ObjectID, target ObjectID) error
	Build(creep ObjectID, target ObjectID) error
	Repair(creep ObjectID, target ObjectID) error
	Attack(creep ObjectID, target ObjectID) error
	RangedAttack(creep ObjectID, target ObjectID) error
	Heal(creep ObjectID, target ObjectID) error

	Spawn(room RoomName, name string, body []BodyPart) (ObjectID, error)
	RenewCreep(room RoomName, creep ObjectID) error
}

// MoveOptions mirrors the subset of the host's move_to options the
// movement system cares about.
type MoveOptions struct {
	Range      int
	ReusePath  int
}
