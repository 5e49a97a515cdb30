package visualize

import (
	"testing"

	"github.com/colonygrid/foreman/host"
	"github.com/colonygrid/foreman/kernel"
	"github.com/colonygrid/foreman/planner"
	"github.com/colonygrid/foreman/roomdata"
	"github.com/colonygrid/foreman/spawn"
	"github.com/colonygrid/foreman/transfer"
)

func TestGatherCollectsMissionsPerRoom(t *testing.T) {
	w := kernel.NewWorld()
	roomEntity := w.CreateNow()
	kernel.Storage[roomdata.Data](w).Set(roomEntity, roomdata.Data{Name: "W1N1"})

	missionEntity := w.CreateNow()
	kernel.Storage[planner.Mission](w).Set(missionEntity, planner.Mission{
		Kind: planner.MissionLocalSupply,
		Room: roomEntity,
	})

	d := Gather(w, spawn.New(nil), transfer.NewQueue())
	rs, ok := d.Rooms["W1N1"]
	if !ok {
		t.Fatal("expected room W1N1 to be gathered")
	}
	if len(rs.Missions) != 1 || rs.Missions[0].Kind != "local-supply" {
		t.Fatalf("expected one local-supply mission, got %+v", rs.Missions)
	}
}

func TestGatherSummarizesTransferSupplyAndDemand(t *testing.T) {
	w := kernel.NewWorld()
	roomEntity := w.CreateNow()
	kernel.Storage[roomdata.Data](w).Set(roomEntity, roomdata.Data{Name: "W1N1"})
	tq := transfer.NewQueue()
	tq.NodeFor(transfer.Target{Kind: "container", ID: "c1", Room: "W1N1"}, transfer.Haul).
		AddWithdrawal(transfer.WithdrawKey{Resource: "energy", Priority: transfer.PriorityMedium, Type: transfer.Haul}, 500)

	d := Gather(w, spawn.New(nil), tq)
	rs, ok := d.Rooms["W1N1"]
	if !ok {
		t.Fatal("expected room W1N1 to be gathered")
	}
	if len(rs.Transfer) != 1 || rs.Transfer[0].Supply != 500 {
		t.Fatalf("expected energy supply of 500, got %+v", rs.Transfer)
	}
}

func TestNopRendererNeverErrors(t *testing.T) {
	var r Renderer = NopRenderer{}
	if err := r.Render(newData()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	_ = host.RoomName("")
}
