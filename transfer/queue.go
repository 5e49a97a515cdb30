package transfer

import (
	"github.com/colonygrid/foreman/host"
	"golang.org/x/exp/slices"
)

// GeneratorFunc populates one room's withdrawal/deposit buckets by
// calling back into Queue.NodeFor for each target it owns. It runs at
// most once per (generator, room) per tick.
type GeneratorFunc func(q *Queue)

type generator struct {
	room  host.RoomName
	types map[TransferType]bool
	fn    GeneratorFunc
	// fired tracks whether this generator has already run this tick —
	// a generator can touch every node in its room, so firing is
	// tracked per generator rather than per node.
	fired bool
}

// Queue is the per-process transfer market: one set of Nodes and
// registered generators, reset each tick.
type Queue struct {
	nodes      map[host.RoomName]map[Target]*Node
	generators []*generator
}

// NewQueue creates an empty Queue.
func NewQueue() *Queue {
	return &Queue{nodes: make(map[host.RoomName]map[Target]*Node)}
}

// RegisterGenerator installs fn to lazily populate every node in room
// the first time a lookup in this tick asks for a compatible type.
// Registration itself is idempotent-safe to call every mission pre_run
// tick; Queue dedupes nothing here because Clear drops the
// generator list along with every cached node — callers are expected to
// re-register every pre_run, matching "missions register lazy
// generators" as a per-tick act, not a one-time setup.
func (q *Queue) RegisterGenerator(room host.RoomName, types []TransferType, fn GeneratorFunc) {
	tset := make(map[TransferType]bool, len(types))
	for _, t := range types {
		tset[t] = true
	}
	q.generators = append(q.generators, &generator{room: room, types: tset, fn: fn})
}

// node returns (creating if absent) the Node for t, first firing any
// not-yet-fired generator registered for t.Room under a compatible
// type.
func (q *Queue) node(t Target, relevantTypes []TransferType) *Node {
	room, ok := q.nodes[t.Room]
	if !ok {
		room = make(map[Target]*Node)
		q.nodes[t.Room] = room
	}
	q.fireGenerators(t.Room, relevantTypes)
	n, ok := room[t]
	if !ok {
		n = newNode(t)
		room[t] = n
	}
	return n
}

func (q *Queue) fireGenerators(room host.RoomName, types []TransferType) {
	for _, g := range q.generators {
		if g.fired || g.room != room {
			continue
		}
		if !typesOverlap(g.types, types) {
			continue
		}
		g.fired = true
		g.fn(q)
	}
}

func typesOverlap(have map[TransferType]bool, want []TransferType) bool {
	if len(want) == 0 {
		return true
	}
	for _, t := range want {
		if have[t] {
			return true
		}
	}
	return false
}

// NodeFor returns (creating if absent) the Node for target, triggering
// any pending generator for its room first. Missions call this from
// inside their own GeneratorFunc to populate the node(s) they own, and
// haulers call it directly to read current buckets.
func (q *Queue) NodeFor(target Target, relevantTypes ...TransferType) *Node {
	return q.node(target, relevantTypes)
}

// RoomNodes returns every Node currently cached for room, first firing
// any generator registered for room under a compatible type (matching
// packages call this directly without having touched the room via
// NodeFor first).
func (q *Queue) RoomNodes(room host.RoomName, relevantTypes ...TransferType) []*Node {
	if _, ok := q.nodes[room]; !ok {
		q.nodes[room] = make(map[Target]*Node)
	}
	q.fireGenerators(room, relevantTypes)
	nodes := q.nodes[room]
	out := make([]*Node, 0, len(nodes))
	for _, n := range nodes {
		out = append(out, n)
	}
	slices.SortFunc(out, func(a, b *Node) int {
		switch {
		case a.Target.ID < b.Target.ID:
			return -1
		case a.Target.ID > b.Target.ID:
			return 1
		default:
			return 0
		}
	})
	return out
}

// BeginTick resets per-tick generator firing state. It does not clear
// cached nodes — those are rebuilt fresh each tick by Clear, called
// once at the start of the tick's main pass.
func (q *Queue) BeginTick() {
	for _, g := range q.generators {
		g.fired = false
	}
}

// Clear removes every registered generator and every cached node; a
// subsequent lookup sees an empty queue.
func (q *Queue) Clear() {
	q.nodes = make(map[host.RoomName]map[Target]*Node)
	q.generators = nil
}
