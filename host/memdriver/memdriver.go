// Package memdriver implements host.Host entirely in memory. It backs
// unit tests and the offline benchmark harness (cmd/foreman-bench),
// which has no live game VM to talk to.
package memdriver

import (
	"fmt"
	"sort"
	"time"

	"github.com/colonygrid/foreman/host"
	"github.com/colonygrid/foreman/memory"
)

// Driver is an in-memory, single-process host.Host. It is not
// concurrency-safe; the controller's single-threaded tick model means
// it never needs to be.
type Driver struct {
	tick      int64
	cpuBucket float64
	rooms     map[host.RoomName]host.RoomSnapshot
	flags     []host.Flag
	segments  map[int]string
	requested map[int]bool
	active    map[int]bool
	store     *memory.SegmentStore

	nextCreepID int
}

// WithStore backs every segment write with store instead of the
// Driver's own in-memory map, and seeds it from whatever store
// already holds. This is how the fake driver emulates resuming on a
// freshly restarted VM: a live VM's segments already survive a
// restart, the in-memory driver's otherwise do not.
func (d *Driver) WithStore(store *memory.SegmentStore) *Driver {
	d.store = store
	return d
}

// New creates an empty Driver with the given starting CPU bucket.
func New(cpuBucket float64) *Driver {
	return &Driver{
		cpuBucket: cpuBucket,
		rooms:     make(map[host.RoomName]host.RoomSnapshot),
		segments:  make(map[int]string),
		requested: make(map[int]bool),
		active:    make(map[int]bool),
	}
}

// Advance moves the simulated clock forward one tick. A segment
// requested on tick N becomes active (readable) on tick N+1.
func (d *Driver) Advance() {
	d.tick++
	for id := range d.requested {
		d.active[id] = true
	}
}

// SetRoom installs or replaces a room snapshot.
func (d *Driver) SetRoom(r host.RoomSnapshot) { d.rooms[r.Name] = r }

// SetFlags replaces the flag list.
func (d *Driver) SetFlags(f []host.Flag) { d.flags = f }

func (d *Driver) Time() int64        { return d.tick }
func (d *Driver) CPUBucket() float64 { return d.cpuBucket }
func (d *Driver) Now() time.Time     { return time.Unix(0, 0).Add(time.Duration(d.tick) * time.Second) }

func (d *Driver) Rooms() map[host.RoomName]host.RoomSnapshot {
	out := make(map[host.RoomName]host.RoomSnapshot, len(d.rooms))
	for k, v := range d.rooms {
		out[k] = v
	}
	return out
}

func (d *Driver) Flags() []host.Flag { return d.flags }

// MemorySegmentGet returns a segment's content once it is active: a
// segment becomes readable (as the empty string, if never written)
// the tick after it is first requested, not only after something has
// actually been written to it.
func (d *Driver) MemorySegmentGet(id int) (string, bool) {
	if !d.active[id] {
		return "", false
	}
	if d.store != nil {
		v, _ := d.store.Get(id)
		return v, true
	}
	return d.segments[id], true
}

func (d *Driver) MemorySegmentSet(id int, data string) {
	if d.store != nil {
		_ = d.store.Set(id, data)
		return
	}
	d.segments[id] = data
}

func (d *Driver) MemorySegmentRequest(id int) { d.requested[id] = true }

// FindRoute returns a naive straight-line room chain; this exists
// only so movement tests and the benchmark harness have something
// deterministic to call.
func (d *Driver) FindRoute(from, to host.RoomName, _ host.RouteOptions) ([]host.RoomName, error) {
	if from == to {
		return []host.RoomName{from}, nil
	}
	return []host.RoomName{from, to}, nil
}

// RequestVisibility is a no-op: the fake driver has no scouts or
// Observer structures to steer, nothing else here blocks on visibility
// latency either.
func (d *Driver) RequestVisibility(host.RoomName) {}

func (d *Driver) SearchPath(from, to host.Pos) ([]host.Pos, error) {
	path := []host.Pos{from}
	cur := from
	for cur.X != to.X || cur.Y != to.Y {
		if cur.X < to.X {
			cur.X++
		} else if cur.X > to.X {
			cur.X--
		}
		if cur.Y < to.Y {
			cur.Y++
		} else if cur.Y > to.Y {
			cur.Y--
		}
		path = append(path, cur)
		if len(path) > 200 {
			break
		}
	}
	return path, nil
}

func (d *Driver) MoveTo(host.ObjectID, host.Pos, host.MoveOptions) error { return nil }
func (d *Driver) Transfer(host.ObjectID, host.ObjectID, string, int) error { return nil }
func (d *Driver) Withdraw(host.ObjectID, host.ObjectID, string, int) error { return nil }
func (d *Driver) Pickup(host.ObjectID, host.ObjectID) error              { return nil }
func (d *Driver) Harvest(host.ObjectID, host.ObjectID) error             { return nil }
func (d *Driver) Build(host.ObjectID, host.ObjectID) error               { return nil }
func (d *Driver) Repair(host.ObjectID, host.ObjectID) error              { return nil }
func (d *Driver) Attack(host.ObjectID, host.ObjectID) error              { return nil }
func (d *Driver) RangedAttack(host.ObjectID, host.ObjectID) error        { return nil }
func (d *Driver) Heal(host.ObjectID, host.ObjectID) error                { return nil }

func (d *Driver) Spawn(room host.RoomName, name string, body []host.BodyPart) (host.ObjectID, error) {
	r, ok := d.rooms[room]
	if !ok {
		return "", fmt.Errorf("memdriver: unknown room %s", room)
	}
	cost := bodyCost(body)
	if r.EnergyAvailable < cost {
		return "", fmt.Errorf("memdriver: room %s cannot afford body costing %d", room, cost)
	}
	r.EnergyAvailable -= cost
	d.nextCreepID++
	id := host.ObjectID(fmt.Sprintf("creep-%d", d.nextCreepID))
	r.Creeps = append(r.Creeps, host.CreepSnapshot{ID: id, Name: name, Body: body, Pos: host.Pos{Room: room}})
	d.rooms[room] = r
	return id, nil
}

func (d *Driver) RenewCreep(host.RoomName, host.ObjectID) error { return nil }

func bodyCost(body []host.BodyPart) int {
	cost := 0
	for _, p := range body {
		switch p.Type {
		case host.Move, host.Carry:
			cost += 50
		case host.Work, host.Attack, host.RangedAttack, host.Tough:
			cost += 100
		case host.Heal:
			cost += 250
		case host.Claim:
			cost += 600
		}
	}
	return cost
}

// SortedRoomNames returns every known room name in a stable order, for
// deterministic iteration in tests and the benchmark harness.
func (d *Driver) SortedRoomNames() []host.RoomName {
	names := make([]host.RoomName, 0, len(d.rooms))
	for n := range d.rooms {
		names = append(names, n)
	}
	sort.Slice(names, func(i, j int) bool { return names[i] < names[j] })
	return names
}

var _ host.Host = (*Driver)(nil)
