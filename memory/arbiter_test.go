package memory_test

import (
	"testing"

	"github.com/colonygrid/foreman/host/memdriver"
	"github.com/colonygrid/foreman/memory"
)

func TestArbiterDefersUntilSegmentsActive(t *testing.T) {
	d := memdriver.New(100)
	a := memory.NewArbiter(d, nil)

	a.Require(0)
	if a.Ready() {
		t.Fatal("segment requested this tick must not be ready yet")
	}

	d.Advance()
	if !a.Ready() {
		t.Fatal("segment requested last tick must be ready this tick")
	}
}

func TestArbiterCoalescesWritesWithinATick(t *testing.T) {
	d := memdriver.New(100)
	d.MemorySegmentRequest(0)
	d.Advance()
	a := memory.NewArbiter(d, nil)

	a.Set(0, "first")
	a.Set(0, "second")
	a.Flush()

	v, ok := d.MemorySegmentGet(0)
	if !ok || v != "second" {
		t.Fatalf("segment after flush = %q, %v; want the last Set to win", v, ok)
	}
}

func TestArbiterGetReflectsPendingSetBeforeFlush(t *testing.T) {
	d := memdriver.New(100)
	d.MemorySegmentRequest(0)
	d.Advance()
	a := memory.NewArbiter(d, nil)

	a.Require(0)
	a.Set(0, "staged")

	v, ok := a.Get(0)
	if !ok || v != "staged" {
		t.Fatalf("Get before Flush = %q, %v; want the pending write visible to later readers this tick", v, ok)
	}

	if v, ok := d.MemorySegmentGet(0); !ok || v != "" {
		t.Fatalf("host segment before Flush = %q, %v; want untouched", v, ok)
	}
}

func TestArbiterSetOverLimitTruncates(t *testing.T) {
	d := memdriver.New(100)
	d.MemorySegmentRequest(0)
	d.Advance()
	a := memory.NewArbiter(d, nil)

	big := make([]byte, memory.MaxSegmentBytes+10)
	for i := range big {
		big[i] = 'x'
	}
	a.Set(0, string(big))
	a.Flush()

	v, _ := d.MemorySegmentGet(0)
	if len(v) != memory.MaxSegmentBytes {
		t.Fatalf("stored segment length = %d, want %d (truncated)", len(v), memory.MaxSegmentBytes)
	}
}

// TestArbiterFlushResetsPerTickState confirms a stale Require from a
// prior tick doesn't silently resurrect: once Flush runs, a fresh
// Ready() with nothing newly required must report true (the vacuous
// case), not get stuck on a requirement that no longer applies.
func TestArbiterFlushResetsPerTickState(t *testing.T) {
	d := memdriver.New(100)
	a := memory.NewArbiter(d, nil)

	a.Require(0)
	d.Advance()
	a.Ready()
	a.Set(0, "v1")
	a.Flush()

	if !a.Ready() {
		t.Fatal("Flush must reset the per-tick want set; Ready() with nothing newly required must be vacuously true")
	}
}

func TestArbiterClearWipesSegment(t *testing.T) {
	d := memdriver.New(100)
	d.MemorySegmentRequest(0)
	d.Advance()
	a := memory.NewArbiter(d, nil)

	a.Set(0, "content")
	a.Flush()
	a.Clear(0)
	a.Flush()

	v, ok := d.MemorySegmentGet(0)
	if !ok || v != "" {
		t.Fatalf("segment after Clear+Flush = %q, %v; want empty string", v, ok)
	}
}
