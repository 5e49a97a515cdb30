// Command foreman-bench is the offline benchmark harness for the room
// layout planner: load a map dump, run the planner per room against a
// wall-clock budget, and write a PNG render plus a JSON plan
// description to output/.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/colonygrid/foreman/host"
	"github.com/colonygrid/foreman/layout"
)

func main() {
	if err := run(); err != nil {
		slog.Error("foreman-bench: failed", "error", err)
		os.Exit(1)
	}
}

func run() error {
	var (
		shard       = flag.String("shard", "shard2", "shard name, used only for map file lookup and plan metadata")
		room        = flag.String("room", "", "room name to plan (required)")
		mapPath     = flag.String("map", "", "path to the map dump JSON; defaults to resources/map-mmo-<shard>.json")
		totalSecs   = flag.Float64("max-seconds", 60, "hard wall-clock budget for the whole search")
		batchSecs   = flag.Float64("max-batch-seconds", 5, "per-batch wall-clock slice; 0 disables slicing")
		outDir      = flag.String("out", "output", "output directory for the PNG render and JSON plan")
	)
	flag.Parse()

	if *room == "" {
		return fmt.Errorf("foreman-bench: -room is required")
	}
	path := *mapPath
	if path == "" {
		path = filepath.Join("resources", fmt.Sprintf("map-mmo-%s.json", *shard))
	}

	mapData, err := loadMapData(path)
	if err != nil {
		return err
	}
	roomData, err := mapData.room(*room)
	if err != nil {
		return err
	}

	if err := os.MkdirAll(*outDir, 0o755); err != nil {
		return fmt.Errorf("foreman-bench: create output dir: %w", err)
	}

	slog.Info("foreman-bench: planning", "room", *room, "shard", *shard)
	start := time.Now()

	plan, err := evaluatePlan(roomData, time.Duration(*totalSecs*float64(time.Second)), time.Duration(*batchSecs*float64(time.Second)))
	if err != nil {
		return fmt.Errorf("foreman-bench: %s: %w", *room, err)
	}
	slog.Info("foreman-bench: planning complete", "room", *room, "duration", time.Since(start), "placements", len(plan.Placements), "score", plan.Score)

	imgPath := filepath.Join(*outDir, *room+".png")
	if err := renderPNG(imgPath, roomData.terrain, plan, 10); err != nil {
		return fmt.Errorf("foreman-bench: render %s: %w", imgPath, err)
	}

	planPath := filepath.Join(*outDir, *room+"_plan.json")
	if err := writePlanJSON(planPath, *shard, *room, plan); err != nil {
		return fmt.Errorf("foreman-bench: write plan %s: %w", planPath, err)
	}
	return nil
}

// evaluatePlan repeatedly slices a layout.State across batch-sized
// calls to RunBudgeted until the search concludes or the total budget
// elapses.
func evaluatePlan(rd *roomData, total, batch time.Duration) (*layout.Plan, error) {
	ds := mapDataSource{rd}
	st := layout.Seed(ds, benchRules)

	deadline := time.Now().Add(total)
	for {
		remaining := time.Until(deadline)
		if remaining <= 0 {
			return nil, fmt.Errorf("exceeded maximum duration for planning")
		}
		sliceBudget := batch
		if sliceBudget <= 0 || sliceBudget > remaining {
			sliceBudget = remaining
		}
		plan, concluded, err := layout.RunBudgeted(st, ds, layout.Budget{Total: sliceBudget, Batch: sliceBudget}, time.Now)
		if err != nil {
			return nil, err
		}
		if concluded {
			if plan == nil {
				return nil, fmt.Errorf("failed to create plan for room")
			}
			return plan, nil
		}
	}
}

// benchRules is a representative RCL-8-shaped placement set for the
// benchmark harness; the live controller's own rule set lives in
// roomplan.go's RoomPlanRules. The two are intentionally not shared:
// the harness exercises the search against a denser structure count,
// independent of whatever rule set the live colony controller happens
// to run.
var benchRules = []layout.Rule{
	{
		Type:  "spawn",
		Count: 3,
		Candidates: layout.AdjacentToAnchors(func(ds layout.DataSource, _ *layout.Plan) []layout.Pos {
			return ds.Controllers()
		}, 4),
	},
	{
		Type:  "extension",
		Count: 60,
		Candidates: layout.AdjacentToAnchors(func(ds layout.DataSource, plan *layout.Plan) []layout.Pos {
			return placementsOf(plan, "spawn")
		}, 3),
	},
	{
		Type:  "tower",
		Count: 6,
		Candidates: layout.AdjacentToAnchors(func(ds layout.DataSource, plan *layout.Plan) []layout.Pos {
			return placementsOf(plan, "spawn")
		}, 4),
	},
	{
		Type:  "container",
		Count: 2,
		Candidates: layout.AdjacentToAnchors(func(ds layout.DataSource, _ *layout.Plan) []layout.Pos {
			return ds.Sources()
		}, 1),
	},
	{
		Type:  "storage",
		Count: 1,
		Candidates: layout.AdjacentToAnchors(func(ds layout.DataSource, plan *layout.Plan) []layout.Pos {
			return placementsOf(plan, "spawn")
		}, 2),
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

// --- map dump loading ----------------------------------------------------

type mapData struct {
	Rooms []rawRoom `json:"rooms"`
}

type rawRoom struct {
	Room    string            `json:"room"`
	Terrain string            `json:"terrain"`
	Objects []json.RawMessage `json:"objects"`
}

type rawObject struct {
	Type string `json:"type"`
	X    int    `json:"x"`
	Y    int    `json:"y"`
}

type roomData struct {
	name        string
	terrain     *host.Terrain
	controllers []layout.Pos
	sources     []layout.Pos
	minerals    []layout.Pos
}

func loadMapData(path string) (*mapData, error) {
	contents, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("foreman-bench: read map file: %w", err)
	}
	var m mapData
	if err := json.Unmarshal(contents, &m); err != nil {
		return nil, fmt.Errorf("foreman-bench: decode map file: %w", err)
	}
	return &m, nil
}

func (m *mapData) room(name string) (*roomData, error) {
	for _, r := range m.Rooms {
		if r.Room != name {
			continue
		}
		return r.toRoomData()
	}
	return nil, fmt.Errorf("foreman-bench: room %q not found in map data", name)
}

// toRoomData decodes the 2500-char hex terrain string using
// Screeps' TERRAIN_MASK bit values — 1 = wall, 2 = swamp — and buckets
// every object by type.
func (r *rawRoom) toRoomData() (*roomData, error) {
	if len(r.Terrain) != 2500 {
		return nil, fmt.Errorf("terrain was not the expected 50x50 layout (got %d chars)", len(r.Terrain))
	}
	terrain := &host.Terrain{}
	for i, ch := range r.Terrain {
		mask, err := hexDigit(ch)
		if err != nil {
			return nil, err
		}
		switch {
		case mask&1 != 0:
			terrain[i] = host.TileWall
		case mask&2 != 0:
			terrain[i] = host.TileSwamp
		default:
			terrain[i] = host.TilePlain
		}
	}

	rd := &roomData{name: r.Room, terrain: terrain}
	for _, raw := range r.Objects {
		var o rawObject
		if err := json.Unmarshal(raw, &o); err != nil {
			continue
		}
		p := layout.Pos{X: o.X, Y: o.Y}
		switch o.Type {
		case "source":
			rd.sources = append(rd.sources, p)
		case "controller":
			rd.controllers = append(rd.controllers, p)
		case "mineral":
			rd.minerals = append(rd.minerals, p)
		}
	}
	return rd, nil
}

func hexDigit(ch rune) (int, error) {
	switch {
	case ch >= '0' && ch <= '9':
		return int(ch - '0'), nil
	case ch >= 'a' && ch <= 'f':
		return int(ch-'a') + 10, nil
	case ch >= 'A' && ch <= 'F':
		return int(ch-'A') + 10, nil
	default:
		return 0, fmt.Errorf("expected hex digit character, got %q", ch)
	}
}

type mapDataSource struct{ rd *roomData }

func (s mapDataSource) Terrain() *host.Terrain   { return s.rd.terrain }
func (s mapDataSource) Controllers() []layout.Pos { return s.rd.controllers }
func (s mapDataSource) Sources() []layout.Pos     { return s.rd.sources }
func (s mapDataSource) Minerals() []layout.Pos    { return s.rd.minerals }

// --- output: plan JSON + PNG render ---------------------------------------

type planDoc struct {
	Name     string                      `json:"name"`
	Shard    string                      `json:"shard"`
	RCL      int                         `json:"rcl"`
	Buildings map[string]planBuildingSet `json:"buildings"`
}

type planBuildingSet struct {
	Pos []planPos `json:"pos"`
}

type planPos struct {
	X int `json:"x"`
	Y int `json:"y"`
}

func writePlanJSON(path, shard, room string, plan *layout.Plan) error {
	doc := planDoc{Name: room, Shard: shard, RCL: 8, Buildings: make(map[string]planBuildingSet)}
	for _, pl := range plan.Placements {
		key := string(pl.Type)
		set := doc.Buildings[key]
		set.Pos = append(set.Pos, planPos{X: pl.Pos.X, Y: pl.Pos.Y})
		doc.Buildings[key] = set
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	return enc.Encode(doc)
}

var (
	colorWall       = color.RGBA{0, 0, 0, 255}
	colorSwamp      = color.RGBA{255, 255, 255, 255}
	colorPlain      = color.RGBA{127, 127, 127, 255}
	colorSpawn      = color.RGBA{255, 255, 0, 255}
	colorStorage    = color.RGBA{0, 255, 255, 255}
	colorOther      = color.RGBA{255, 0, 0, 255}
)

func renderPNG(path string, terrain *host.Terrain, plan *layout.Plan, pixelSize int) error {
	size := 50 * pixelSize
	img := image.NewRGBA(image.Rect(0, 0, size, size))

	for y := 0; y < 50; y++ {
		for x := 0; x < 50; x++ {
			c := colorPlain
			switch terrain[y*50+x] {
			case host.TileWall:
				c = colorWall
			case host.TileSwamp:
				c = colorSwamp
			}
			fillTile(img, x, y, pixelSize, c)
		}
	}
	for _, pl := range plan.Placements {
		c := colorOther
		switch pl.Type {
		case "spawn":
			c = colorSpawn
		case "storage":
			c = colorStorage
		}
		fillTile(img, pl.Pos.X, pl.Pos.Y, pixelSize, c)
	}

	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	return png.Encode(f, img)
}

func fillTile(img *image.RGBA, x, y, size int, c color.RGBA) {
	for dx := 0; dx < size; dx++ {
		for dy := 0; dy < size; dy++ {
			img.Set(x*size+dx, y*size+dy, c)
		}
	}
}
