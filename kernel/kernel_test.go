package kernel

import "testing"

type testPos struct{ x, y int }

func TestStorageSetGetRemove(t *testing.T) {
	w := NewWorld()
	e1 := w.CreateNow()
	e2 := w.CreateNow()

	s := Storage[testPos](w)
	s.Set(e1, testPos{1, 2})
	s.Set(e2, testPos{3, 4})

	if v, ok := s.Get(e1); !ok || v != (testPos{1, 2}) {
		t.Fatalf("Get(e1) = %v, %v", v, ok)
	}
	if s.Len() != 2 {
		t.Fatalf("Len() = %d, want 2", s.Len())
	}

	s.Remove(e1)
	if s.Has(e1) {
		t.Fatal("e1 still present after Remove")
	}
	if v, ok := s.Get(e2); !ok || v != (testPos{3, 4}) {
		t.Fatalf("Get(e2) after removing e1 = %v, %v", v, ok)
	}
}

func TestGenerationDetectsStaleReferences(t *testing.T) {
	w := NewWorld()
	e := w.CreateNow()
	w.DestroyNow(e)
	e2 := w.CreateNow()

	if w.IsAlive(e) {
		t.Fatal("destroyed entity reports alive")
	}
	if e.id == e2.id && e.gen == e2.gen {
		t.Fatal("recreated entity did not bump generation")
	}
}

func TestBarrierFlushesLazyUpdatesInOrder(t *testing.T) {
	w := NewWorld()
	var order []int
	for i := 0; i < 3; i++ {
		i := i
		w.Defer(func(*World) { order = append(order, i) })
	}
	w.Barrier()
	for i, v := range order {
		if v != i {
			t.Fatalf("order = %v, want FIFO 0,1,2", order)
		}
	}
	if w.Generation() != 1 {
		t.Fatalf("Generation() = %d, want 1", w.Generation())
	}
}

func TestDeferCreateNotVisibleUntilBarrier(t *testing.T) {
	w := NewWorld()
	s := Storage[testPos](w)
	w.DeferCreate(func(w *World, e Entity) {
		Storage[testPos](w).Set(e, testPos{9, 9})
	})
	if s.Len() != 0 {
		t.Fatalf("component visible before barrier: Len() = %d", s.Len())
	}
	w.Barrier()
	if s.Len() != 1 {
		t.Fatalf("component not visible after barrier: Len() = %d", s.Len())
	}
}

func TestDispatcherContinuesAfterStageError(t *testing.T) {
	w := NewWorld()
	ran := false
	d := NewDispatcher(nil).
		Then(Stage{Name: "fails", Run: func(*World) error { return ErrDeadEntity }}).
		Then(Stage{Name: "panics", Run: func(*World) error { panic("boom") }}).
		Barrier().
		Then(Stage{Name: "after-barrier", Run: func(*World) error { ran = true; return nil }})
	d.Run(w)
	if !ran {
		t.Fatal("dispatcher stopped after a stage error/panic")
	}
}
