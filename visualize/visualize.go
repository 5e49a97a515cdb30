// Package visualize gathers a structured, per-tick summary of planner,
// squad, and transfer state for display.
package visualize

import (
	"fmt"
	"sort"

	"github.com/colonygrid/foreman/host"
	"github.com/colonygrid/foreman/kernel"
	"github.com/colonygrid/foreman/planner"
	"github.com/colonygrid/foreman/roomdata"
	"github.com/colonygrid/foreman/spawn"
	"github.com/colonygrid/foreman/transfer"
)

// MissionSummary is one mission entity's display line.
type MissionSummary struct {
	Entity kernel.Entity
	Kind   string
	Detail string
}

// SpawnEntry is one pending spawn request's display line.
type SpawnEntry struct {
	Priority    int
	Description string
}

// TransferEntry summarizes one resource's supply/demand for a room.
type TransferEntry struct {
	Resource string
	Supply   uint32
	Demand   uint32
}

// RoomSummary is everything gathered for one room this tick.
type RoomSummary struct {
	Name      host.RoomName
	Missions  []MissionSummary
	SpawnReqs []SpawnEntry
	Transfer  []TransferEntry
}

// Data is the full per-tick gather result, analogous to a frame of UI
// state: recreated each tick, never serialized.
type Data struct {
	Rooms map[host.RoomName]*RoomSummary
}

func newData() *Data { return &Data{Rooms: make(map[host.RoomName]*RoomSummary)} }

func (d *Data) room(name host.RoomName) *RoomSummary {
	r, ok := d.Rooms[name]
	if !ok {
		r = &RoomSummary{Name: name}
		d.Rooms[name] = r
	}
	return r
}

// Gather builds a fresh Data snapshot by reading mission components,
// the spawn queue, and the transfer queue for every known room. It
// performs no mutation and is safe to call every tick regardless of
// whether rendering is enabled.
func Gather(w *kernel.World, sq *spawn.Queue, tq *transfer.Queue) *Data {
	d := newData()

	rooms := kernel.Storage[roomdata.Data](w)
	rooms.Each(func(_ kernel.Entity, rd *roomdata.Data) {
		d.room(rd.Name)
	})

	missions := kernel.Storage[planner.Mission](w)
	missions.Each(func(e kernel.Entity, m *planner.Mission) {
		roomEntity := m.GetRoom()
		rd, ok := rooms.Get(roomEntity)
		if !ok {
			return
		}
		rs := d.room(rd.Name)
		rs.Missions = append(rs.Missions, MissionSummary{
			Entity: e,
			Kind:   m.Kind.String(),
			Detail: fmt.Sprintf("%d children", len(m.Children)),
		})
	})

	for name, rs := range d.Rooms {
		if sq != nil {
			if n := sq.Pending(name); n > 0 {
				rs.SpawnReqs = append(rs.SpawnReqs, SpawnEntry{Description: fmt.Sprintf("%d pending", n)})
			}
		}
		if tq != nil {
			rs.Transfer = gatherTransfer(tq, name)
		}
	}
	return d
}

func gatherTransfer(tq *transfer.Queue, room host.RoomName) []TransferEntry {
	totals := map[string]*TransferEntry{}
	for _, node := range tq.RoomNodes(room) {
		node.EachWithdrawal(func(key transfer.WithdrawKey, available uint32) {
			e := entry(totals, key.Resource)
			e.Supply += available
		})
		node.EachDeposit(func(key transfer.DepositKey, available uint32) {
			if key.Any {
				return
			}
			e := entry(totals, key.Resource)
			e.Demand += available
		})
	}
	out := make([]TransferEntry, 0, len(totals))
	for _, e := range totals {
		out = append(out, *e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Resource < out[j].Resource })
	return out
}

func entry(m map[string]*TransferEntry, resource string) *TransferEntry {
	e, ok := m[resource]
	if !ok {
		e = &TransferEntry{Resource: resource}
		m[resource] = e
	}
	return e
}

// Renderer draws a gathered Data snapshot onto whatever backend the
// host provides (an in-game overlay, a terminal dashboard, nothing at
// all).
type Renderer interface {
	Render(d *Data) error
}

// NopRenderer discards every snapshot. It is the default Renderer so a
// controller can always gather without a real display attached.
type NopRenderer struct{}

// Render implements Renderer by doing nothing.
func (NopRenderer) Render(*Data) error { return nil }
