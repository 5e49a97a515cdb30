// Package layout implements the room layout planner: a
// best-first search over a declarative placement-rule DSL that places
// structures on a 50x50 terrain grid, resumable across ticks via an
// opaque but self-contained search state.
package layout

import (
	"container/heap"

	"github.com/colonygrid/foreman/host"
	"github.com/google/uuid"
)

// Pos is a grid coordinate within the 50x50 room.
type Pos struct{ X, Y int }

// StructureType names a placeable structure kind.
type StructureType string

// Placement is one structure placed at a position in a Plan.
type Placement struct {
	Type StructureType
	Pos  Pos
}

// Plan is an (immutable once returned) finished or partial layout. ID
// identifies the search that produced it, stable across every
// checkpoint/resume of the same room so log lines from Seed through
// the final commit can be correlated even when the search spans many
// ticks.
type Plan struct {
	ID         uuid.UUID
	Placements []Placement
	Score      float64
}

// occupied reports whether pos already holds a placement in the plan.
func (p *Plan) occupied(pos Pos) bool {
	for _, pl := range p.Placements {
		if pl.Pos == pos {
			return true
		}
	}
	return false
}

func (p *Plan) withPlacement(pl Placement, score float64) *Plan {
	next := &Plan{ID: p.ID, Placements: append(append([]Placement{}, p.Placements...), pl), Score: score}
	return next
}

// Rule is one declarative placement rule: it proposes candidate positions
// for Type, already filtered to in-bounds, non-wall, non-conflicting
// tiles, and scores each candidate so the search can tie-break.
type Rule struct {
	Type StructureType
	// Count is how many instances of Type this rule ultimately wants
	// placed across the whole plan.
	Count int
	// Candidates returns every legal position for one more instance of
	// Type given the current partial plan and the data source, along
	// with a per-tile score used for expansion tie-breaking.
	Candidates func(ds DataSource, plan *Plan) []ScoredPos
}

// ScoredPos is a candidate placement position with its tile score.
type ScoredPos struct {
	Pos   Pos
	Score float64
}

// DataSource is the external world state a Rule queries; evaluation
// never captures references across a call, it re-queries this object
// every time.
type DataSource interface {
	Terrain() *host.Terrain
	Controllers() []Pos
	Sources() []Pos
	Minerals() []Pos
}

func countPlaced(plan *Plan, t StructureType) int {
	n := 0
	for _, pl := range plan.Placements {
		if pl.Type == t {
			n++
		}
	}
	return n
}

// planComplete reports whether every rule's desired Count has been met.
func planComplete(rules []Rule, plan *Plan) bool {
	for _, r := range rules {
		if countPlaced(plan, r.Type) < r.Count {
			return false
		}
	}
	return true
}

// node is one open search node: a partial plan plus the rule it will
// expand next.
type node struct {
	plan     *Plan
	ruleIdx  int
	priority float64
	index    int
}

type openHeap []*node

func (h openHeap) Len() int            { return len(h) }
func (h openHeap) Less(i, j int) bool  { return h[i].priority > h[j].priority } // max-heap.
func (h openHeap) Swap(i, j int)       { h[i], h[j] = h[j], h[i]; h[i].index, h[j].index = i, j }
func (h *openHeap) Push(x any) {
	n := x.(*node)
	n.index = len(*h)
	*h = append(*h, n)
}
func (h *openHeap) Pop() any {
	old := *h
	n := len(old)
	item := old[n-1]
	*h = old[:n-1]
	return item
}

// State is the opaque, self-contained, resumable search state. It carries
// no references into the DataSource or any other external object, so it
// may be stored on a component and resumed on a later tick, or across a
// serialization round trip.
type State struct {
	open    openHeap
	rules   []Rule
	done    bool
	result  *Plan // nil until done; nil result with done=true means exhausted without a plan.
}

// Seed evaluates every root rule against the empty plan: if any rule
// immediately completes the plan (trivially, only possible when every rule
// wants zero instances), return it completed; otherwise return a running
// State seeded with one node (holding the empty plan) per candidate of
// every rule that still wants instances.
func Seed(ds DataSource, rules []Rule) *State {
	plan := &Plan{ID: uuid.New()}
	if planComplete(rules, plan) {
		return &State{done: true, result: plan}
	}
	st := &State{rules: rules}
	heap.Init(&st.open)
	for i, r := range rules {
		if countPlaced(plan, r.Type) >= r.Count {
			continue
		}
		for _, c := range r.Candidates(ds, plan) {
			heap.Push(&st.open, &node{plan: plan, ruleIdx: i, priority: c.Score})
		}
	}
	return st
}

// Evaluate runs the best-first search loop until
// shouldContinue returns false or the search completes or exhausts.
// shouldContinue is polled once per expansion, letting the caller
// enforce both a total-seconds and a per-batch-seconds budget by closing
// over two deadlines.
func (st *State) Evaluate(ds DataSource, shouldContinue func() bool) (*Plan, bool, error) {
	if st.done {
		return st.result, true, nil
	}
	for len(st.open) > 0 {
		if !shouldContinue() {
			return nil, false, nil
		}
		n := heap.Pop(&st.open).(*node)
		expanded, err := expand(ds, st.rules, n)
		if err != nil {
			return nil, false, err
		}
		for _, child := range expanded {
			if planComplete(st.rules, child.plan) {
				st.done = true
				st.result = child.plan
				return child.plan, true, nil
			}
			heap.Push(&st.open, child)
		}
	}
	st.done = true
	return nil, true, nil
}

// expand places one more instance of the node's rule's structure type
// at each legal candidate, branching into one child node per
// candidate, tie-broken by tile score.
func expand(ds DataSource, rules []Rule, n *node) ([]*node, error) {
	rule := rules[n.ruleIdx]
	if countPlaced(n.plan, rule.Type) >= rule.Count {
		return nil, nil
	}
	var children []*node
	for _, c := range rule.Candidates(ds, n.plan) {
		if n.plan.occupied(c.Pos) {
			continue
		}
		child := n.plan.withPlacement(Placement{Type: rule.Type, Pos: c.Pos}, n.plan.Score+c.Score)
		nextRule := nextRuleIndex(rules, child)
		children = append(children, &node{plan: child, ruleIdx: nextRule, priority: child.Score})
	}
	return children, nil
}

// NodeCheckpoint is one open search node in serializable form.
type NodeCheckpoint struct {
	Plan     *Plan
	RuleIdx  int
	Priority float64
}

// Checkpoint is a serializable snapshot of a State's search progress,
// letting the search survive a forced VM reset rather than only a
// same-process pause. Rule.Candidates closures are not
// themselves serializable, so a Checkpoint must be replayed against
// the same declarative Rule slice that produced it.
type Checkpoint struct {
	Done   bool
	Result *Plan
	Nodes  []NodeCheckpoint
}

// Checkpoint captures st's current frontier for persistence.
func (st *State) Checkpoint() Checkpoint {
	cp := Checkpoint{Done: st.done, Result: st.result}
	for _, n := range st.open {
		cp.Nodes = append(cp.Nodes, NodeCheckpoint{Plan: n.plan, RuleIdx: n.ruleIdx, Priority: n.priority})
	}
	return cp
}

// Resume rebuilds a State from a Checkpoint against rules, which must
// be the same declarative rule set (by index) that produced it.
func Resume(cp Checkpoint, rules []Rule) *State {
	st := &State{rules: rules, done: cp.Done, result: cp.Result}
	heap.Init(&st.open)
	for _, n := range cp.Nodes {
		heap.Push(&st.open, &node{plan: n.Plan, ruleIdx: n.RuleIdx, priority: n.Priority})
	}
	return st
}

// nextRuleIndex picks the first rule, in declaration order, with unmet
// demand; it returns 0 when every rule is satisfied.
func nextRuleIndex(rules []Rule, plan *Plan) int {
	for i := range rules {
		if countPlaced(plan, rules[i].Type) < rules[i].Count {
			return i
		}
	}
	return 0
}
