package kernel

import (
	"errors"
	"fmt"
	"log/slog"
)

// ErrDeadEntity is returned by stages that looked up a reference which
// no longer resolves to a live entity. It is not fatal; the integrity
// pass is the canonical place such references get dropped.
var ErrDeadEntity = errors.New("kernel: entity is not alive")

// Stage is one unit of work in a Dispatcher's pipeline. A Stage that
// returns an error is logged and skipped; the tick continues. The only
// fatal condition in the whole controller is memory corruption
// detected during deserialization (see package persist), which is
// handled above this layer by discarding the World outright.
type Stage struct {
	Name string
	Run  func(*World) error
}

// barrierStage is a sentinel inserted between groups of Stages that
// must not observe each other's uncommitted lazy mutations.
type barrierStage struct{}

// Dispatcher runs a fixed, ordered pipeline of Stages separated by
// explicit barriers. It is a static DAG in the sense the spec
// describes: stages never branch at runtime, only the World's content
// does.
type Dispatcher struct {
	log    *slog.Logger
	steps  []any // Stage or barrierStage, in registration order.
}

// NewDispatcher creates a Dispatcher that logs stage failures with log,
// defaulting to slog.Default() when log is nil.
func NewDispatcher(log *slog.Logger) *Dispatcher {
	if log == nil {
		log = slog.Default()
	}
	return &Dispatcher{log: log}
}

// Then appends a Stage to run in the current barrier-free region.
func (d *Dispatcher) Then(stage Stage) *Dispatcher {
	d.steps = append(d.steps, stage)
	return d
}

// Barrier appends a barrier: every stage registered before it is fully
// applied (lazy mutations flushed) before any stage registered after it
// runs.
func (d *Dispatcher) Barrier() *Dispatcher {
	d.steps = append(d.steps, barrierStage{})
	return d
}

// Run executes every registered step against w in order. Stage errors
// are logged at Warn and do not stop the pipeline; a panic recovered
// from a Stage is logged at Error and likewise does not stop the
// pipeline, since a single buggy mission must not take down the whole
// controller.
func (d *Dispatcher) Run(w *World) {
	for _, step := range d.steps {
		switch s := step.(type) {
		case barrierStage:
			w.Barrier()
		case Stage:
			d.runStage(w, s)
		}
	}
}

func (d *Dispatcher) runStage(w *World, s Stage) {
	defer func() {
		if r := recover(); r != nil {
			d.log.Error("kernel: stage panicked", "stage", s.Name, "panic", fmt.Sprint(r))
		}
	}()
	if err := s.Run(w); err != nil {
		d.log.Warn("kernel: stage returned error", "stage", s.Name, "error", err)
	}
}
