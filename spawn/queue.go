// Package spawn implements the per-room prioritized spawn queue: requests
// carry a priority and an optional shared token so a mission fanning one
// slot across several home rooms only ever spawns it once, plus a separate
// renewal channel for topping up a creep's ticks-to-live instead of
// replacing it.
package spawn

import (
	"log/slog"
	"sort"

	"github.com/colonygrid/foreman/host"
	"github.com/colonygrid/foreman/kernel"
	"github.com/google/uuid"
)

// Token groups requests from which at most one is honoured per tick,
// so a mission fanning one slot across several home rooms only ever
// spawns it once.
type Token = uuid.UUID

// NewToken allocates a fresh spawn token.
func NewToken() Token { return uuid.New() }

// CommitFunc is invoked once the queue drain decides to honour a
// request; it runs inside the World's lazy-update queue so it may
// freely create the new creep entity and its job component.
type CommitFunc func(w *kernel.World, id host.ObjectID, name string)

// Request is one entry in a room's spawn queue.
type Request struct {
	Description string
	Body        []host.BodyPart
	Priority    int // higher spawns first.
	Token       Token
	Commit      CommitFunc

	submitOrder int
}

// RenewRequest asks an idle spawn to renew a living creep instead of
// producing a new one.
type RenewRequest struct {
	Creep host.ObjectID
	// MinTTL is the ticks-to-live threshold below which renewal is
	// still worth the room's energy; callers filter before submitting,
	// the queue itself does not re-check.
	MinTTL int
}

// Queue holds every room's pending spawn and renewal requests, keyed
// by room, reset each tick by Clear.
type Queue struct {
	log *slog.Logger

	requests map[host.RoomName][]Request
	renewals map[host.RoomName][]RenewRequest
	honoured map[Token]bool
	seq      int
}

// New creates an empty Queue. log defaults to slog.Default() when nil.
func New(log *slog.Logger) *Queue {
	if log == nil {
		log = slog.Default()
	}
	return &Queue{
		log:      log,
		requests: make(map[host.RoomName][]Request),
		renewals: make(map[host.RoomName][]RenewRequest),
		honoured: make(map[Token]bool),
	}
}

// Submit enqueues req against room. Submission order is preserved as
// the tie-break for equal priority.
func (q *Queue) Submit(room host.RoomName, req Request) {
	q.seq++
	req.submitOrder = q.seq
	q.requests[room] = append(q.requests[room], req)
}

// SubmitRenewal enqueues a renewal request against room.
func (q *Queue) SubmitRenewal(room host.RoomName, req RenewRequest) {
	q.renewals[room] = append(q.renewals[room], req)
}

// partCost is the Screeps spawn-energy cost of one body part.
func partCost(t host.BodyPartType) int {
	switch t {
	case host.Move, host.Carry:
		return 50
	case host.Work:
		return 100
	case host.Attack:
		return 80
	case host.RangedAttack:
		return 150
	case host.Heal:
		return 250
	case host.Tough:
		return 10
	case host.Claim:
		return 600
	default:
		return 0
	}
}

// bodyCost returns the spawn-energy cost of a body composition.
func bodyCost(body []host.BodyPart) int {
	cost := 0
	for _, p := range body {
		cost += partCost(p.Type)
	}
	return cost
}

// Drain processes every room with pending requests against the energy
// each can afford, honouring the highest-priority affordable request
// whose token has not already fired this tick. energyAvailable is supplied
// per room by the caller since it is live host state this package does
// not own.
func (q *Queue) Drain(w *kernel.World, energyAvailable map[host.RoomName]int, spawnFunc func(room host.RoomName, name string, body []host.BodyPart) (host.ObjectID, error)) {
	rooms := make([]host.RoomName, 0, len(q.requests))
	for r := range q.requests {
		rooms = append(rooms, r)
	}
	sort.Slice(rooms, func(i, j int) bool { return rooms[i] < rooms[j] }) // deterministic iteration.

	for _, room := range rooms {
		reqs := q.requests[room]
		sort.SliceStable(reqs, func(i, j int) bool {
			if reqs[i].Priority != reqs[j].Priority {
				return reqs[i].Priority > reqs[j].Priority
			}
			return reqs[i].submitOrder < reqs[j].submitOrder
		})

		budget := energyAvailable[room]
		var remaining []Request
		spent := false
		for _, req := range reqs {
			if spent {
				remaining = append(remaining, req)
				continue
			}
			if req.Token != uuid.Nil && q.honoured[req.Token] {
				continue // some other home room already honoured this slot.
			}
			cost := bodyCost(req.Body)
			if cost > budget {
				remaining = append(remaining, req)
				continue
			}
			name := req.Description
			id, err := spawnFunc(room, name, req.Body)
			if err != nil {
				q.log.Debug("spawn: host rejected spawn, retrying next tick", "room", room, "description", name, "error", err)
				remaining = append(remaining, req)
				continue
			}
			budget -= cost
			spent = true
			if req.Token != uuid.Nil {
				q.honoured[req.Token] = true
			}
			commit := req.Commit
			w.Defer(func(w *kernel.World) {
				if commit != nil {
					commit(w, id, name)
				}
			})
			q.log.Debug("spawn: request honoured", "room", room, "description", req.Description, "cost", cost)
		}
		q.requests[room] = remaining
	}
}

// DrainRenewals processes renewal requests the same way: one per room
// per tick, first-submitted-first-served.
func (q *Queue) DrainRenewals(renew func(room host.RoomName, creep host.ObjectID) error) {
	for room, reqs := range q.renewals {
		if len(reqs) == 0 {
			continue
		}
		req := reqs[0]
		if err := renew(room, req.Creep); err != nil {
			q.log.Debug("spawn: renewal failed", "room", room, "creep", req.Creep, "error", err)
		}
		q.renewals[room] = reqs[1:]
	}
}

// Clear drops every pending request, renewal, and per-tick honoured-
// token record. Called once at the start of each tick's main pass,
// before any mission submits.
func (q *Queue) Clear() {
	clear(q.requests)
	clear(q.renewals)
	clear(q.honoured)
}

// Pending reports how many requests remain queued for room (used by
// tests and the visualize gather).
func (q *Queue) Pending(room host.RoomName) int { return len(q.requests[room]) }
