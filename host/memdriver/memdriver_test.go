package memdriver

import (
	"testing"

	"github.com/colonygrid/foreman/host"
	"github.com/colonygrid/foreman/memory"
)

func TestMemorySegmentActiveTheTickAfterRequest(t *testing.T) {
	d := New(100)
	d.MemorySegmentRequest(5)
	if _, ok := d.MemorySegmentGet(5); ok {
		t.Fatal("segment must not be readable the same tick it was requested")
	}
	d.Advance()
	v, ok := d.MemorySegmentGet(5)
	if !ok || v != "" {
		t.Fatalf("segment = %q, %v; want \"\", true the tick after request", v, ok)
	}
}

// TestWithStoreBacksSegmentsDurably exercises the optional SegmentStore
// backing: a segment written through one Driver/store pair is readable
// from a second Driver opened over the same on-disk store, the same
// way a real Screeps VM restart preserves segment content.
func TestWithStoreBacksSegmentsDurably(t *testing.T) {
	dir := t.TempDir()

	store1, err := memory.OpenSegmentStore(dir)
	if err != nil {
		t.Fatalf("open segment store: %v", err)
	}

	d1 := New(100).WithStore(store1)
	d1.MemorySegmentRequest(3)
	d1.Advance()
	d1.MemorySegmentSet(3, "hello")

	if err := store1.Close(); err != nil {
		t.Fatalf("close segment store: %v", err)
	}

	store2, err := memory.OpenSegmentStore(dir)
	if err != nil {
		t.Fatalf("reopen segment store: %v", err)
	}
	defer store2.Close()

	d2 := New(100).WithStore(store2)
	d2.MemorySegmentRequest(3)
	d2.Advance()
	v, ok := d2.MemorySegmentGet(3)
	if !ok || v != "hello" {
		t.Fatalf("segment after reopen = %q, %v; want \"hello\", true", v, ok)
	}
}

var _ host.Host = (*Driver)(nil)
