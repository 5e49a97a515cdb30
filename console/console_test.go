package console

import (
	"io"
	"log/slog"
	"strings"
	"testing"

	"github.com/colonygrid/foreman/attack"
	"github.com/colonygrid/foreman/kernel"
	"github.com/colonygrid/foreman/planner"
	"github.com/colonygrid/foreman/roomdata"
	"github.com/colonygrid/foreman/squad"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestConsoleListsOperationsAndMissions(t *testing.T) {
	w := kernel.NewWorld()

	opEntity := w.CreateNow()
	kernel.Storage[planner.Operation](w).Set(opEntity, planner.Operation{Kind: planner.OperationWar})

	roomEntity := w.CreateNow()
	kernel.Storage[roomdata.Data](w).Set(roomEntity, roomdata.Data{Name: "W1N1"})

	missionEntity := w.CreateNow()
	kernel.Storage[planner.Mission](w).Set(missionEntity, planner.Mission{
		Kind: planner.MissionLocalSupply,
		Room: roomEntity,
	})

	c := New(func() *kernel.World { return w }, discardLogger())

	var out strings.Builder
	c.out = &out

	c.execute("operations")
	c.execute("missions")
	c.execute("rooms")

	got := out.String()
	if !strings.Contains(got, "kind=war") {
		t.Fatalf("expected operations listing to show kind=war, got %q", got)
	}
	if !strings.Contains(got, "kind=local-supply") || !strings.Contains(got, "room=W1N1") {
		t.Fatalf("expected missions listing to show kind and room, got %q", got)
	}
	if !strings.Contains(got, "W1N1") {
		t.Fatalf("expected rooms listing to show W1N1, got %q", got)
	}
}

func TestConsoleSquadDump(t *testing.T) {
	w := kernel.NewWorld()
	member := w.CreateNow()
	squadEntity := w.CreateNow()
	kernel.Storage[squad.Context](w).Set(squadEntity, squad.Context{
		Slots: []squad.Slot{{Role: squad.RoleTank, Member: member}},
	})

	c := New(func() *kernel.World { return w }, discardLogger())
	var out strings.Builder
	c.out = &out

	c.execute("squad " + squadEntity.String())

	if !strings.Contains(out.String(), "slot 0") {
		t.Fatalf("expected squad dump to list slot 0, got %q", out.String())
	}
}

func TestConsoleForceWaveWipe(t *testing.T) {
	w := kernel.NewWorld()
	mission := w.CreateNow()
	kernel.Storage[attack.Data](w).Set(mission, attack.Data{
		Phase:    attack.StateEngaging,
		MaxWaves: 3,
		CurrentWave: 0,
	})

	c := New(func() *kernel.World { return w }, discardLogger())
	var out strings.Builder
	c.out = &out

	c.execute("wave-wipe " + mission.String())

	data, ok := kernel.Storage[attack.Data](w).Get(mission)
	if !ok {
		t.Fatal("expected attack.Data to remain after wave-wipe")
	}
	if data.Phase != attack.StatePlanning {
		t.Fatalf("expected phase reset to Planning, got %v", data.Phase)
	}
	if data.CurrentWave != 1 {
		t.Fatalf("expected wave counter incremented to 1, got %d", data.CurrentWave)
	}
	if !strings.Contains(out.String(), "reset") {
		t.Fatalf("expected confirmation output, got %q", out.String())
	}
}

func TestConsoleUnknownEntity(t *testing.T) {
	w := kernel.NewWorld()
	c := New(func() *kernel.World { return w }, discardLogger())
	var out strings.Builder
	c.out = &out

	c.execute("squad not-an-entity")
	if !strings.Contains(out.String(), "invalid entity") {
		t.Fatalf("expected parse error for malformed entity, got %q", out.String())
	}
}
