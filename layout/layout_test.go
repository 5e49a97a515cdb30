package layout

import (
	"testing"
	"time"

	"github.com/colonygrid/foreman/host"
)

type fakeDS struct {
	terrain     *host.Terrain
	controllers []Pos
	sources     []Pos
}

func (f fakeDS) Terrain() *host.Terrain { return f.terrain }
func (f fakeDS) Controllers() []Pos     { return f.controllers }
func (f fakeDS) Sources() []Pos         { return f.sources }
func (f fakeDS) Minerals() []Pos        { return nil }

func singleSpawnRule(anchor Pos) []Rule {
	return []Rule{
		{
			Type:  "spawn",
			Count: 1,
			Candidates: AdjacentToAnchors(func(ds DataSource, plan *Plan) []Pos {
				return []Pos{anchor}
			}, 2),
		},
	}
}

func TestSeedAndEvaluateCompletesSimplePlan(t *testing.T) {
	ds := fakeDS{terrain: &host.Terrain{}, controllers: []Pos{{X: 25, Y: 25}}}
	rules := singleSpawnRule(Pos{X: 25, Y: 25})
	st := Seed(ds, rules)

	calls := 0
	plan, done, err := st.Evaluate(ds, func() bool { calls++; return calls < 1000 })
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !done || plan == nil {
		t.Fatalf("expected a completed plan, done=%v plan=%v", done, plan)
	}
	if len(plan.Placements) != 1 || plan.Placements[0].Type != "spawn" {
		t.Fatalf("expected a single spawn placement, got %+v", plan.Placements)
	}
}

func TestEvaluateStopsAtBudget(t *testing.T) {
	ds := fakeDS{terrain: &host.Terrain{}}
	rules := singleSpawnRule(Pos{X: 25, Y: 25})
	st := Seed(ds, rules)

	_, done, err := st.Evaluate(ds, func() bool { return false })
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if done {
		t.Fatal("expected evaluation to pause, not conclude, when shouldContinue is immediately false")
	}
}

func TestRunBudgetedHonoursTotalDeadline(t *testing.T) {
	ds := fakeDS{terrain: &host.Terrain{}}
	rules := singleSpawnRule(Pos{X: 25, Y: 25})
	st := Seed(ds, rules)

	base := time.Unix(0, 0)
	tick := 0
	clock := func() time.Time {
		tick++
		return base.Add(time.Duration(tick) * time.Second)
	}
	_, done, err := RunBudgeted(st, ds, Budget{Total: 500 * time.Millisecond}, clock)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if done {
		t.Fatal("expected the search to pause once the total budget elapsed")
	}
}

func TestCheckpointResumeReachesSameCompletion(t *testing.T) {
	ds := fakeDS{terrain: &host.Terrain{}, controllers: []Pos{{X: 25, Y: 25}}}
	rules := singleSpawnRule(Pos{X: 25, Y: 25})
	st := Seed(ds, rules)

	calls := 0
	if _, done, err := st.Evaluate(ds, func() bool { calls++; return calls < 1 }); err != nil || done {
		t.Fatalf("expected a paused, non-erroring first step: done=%v err=%v", done, err)
	}

	cp := st.Checkpoint()
	resumed := Resume(cp, rules)

	plan, done, err := resumed.Evaluate(ds, func() bool { return true })
	if err != nil {
		t.Fatalf("unexpected error resuming: %v", err)
	}
	if !done || plan == nil {
		t.Fatalf("expected resumed search to complete with a plan, got done=%v plan=%v", done, plan)
	}
	if len(plan.Placements) != 1 || plan.Placements[0].Type != "spawn" {
		t.Fatalf("unexpected plan after resume: %+v", plan)
	}
}

func TestWallTilesAreNeverProposed(t *testing.T) {
	terrain := &host.Terrain{}
	terrain[25*RoomSize+26] = host.TileWall
	ds := fakeDS{terrain: terrain}
	rule := Rule{
		Type:  "extension",
		Count: 1,
		Candidates: AdjacentToAnchors(func(ds DataSource, plan *Plan) []Pos {
			return []Pos{{X: 25, Y: 25}}
		}, 1),
	}
	for _, c := range rule.Candidates(ds, &Plan{}) {
		if c.Pos == (Pos{X: 26, Y: 25}) {
			t.Fatal("wall tile must not be a placement candidate")
		}
	}
}
