package movement

import (
	"testing"

	"github.com/colonygrid/foreman/host"
)

func TestCostMatrixCacheRevisionInvalidation(t *testing.T) {
	c := NewCostMatrixCache()
	builds := 0
	build := func() CostMatrix {
		builds++
		var m CostMatrix
		m[0] = uint8(builds)
		return m
	}

	m1 := c.Get("W1N1", 1, build)
	m2 := c.Get("W1N1", 1, build)
	if builds != 1 {
		t.Fatalf("expected one build for an unchanged revision, got %d", builds)
	}
	if m1 != m2 {
		t.Fatal("expected the cached matrix to be returned unchanged")
	}

	m3 := c.Get("W1N1", 2, build)
	if builds != 2 {
		t.Fatalf("expected a rebuild after the revision changed, got %d builds", builds)
	}
	if m3 == m1 {
		t.Fatal("expected a fresh matrix after revision bump")
	}
}

func TestCostMatrixCacheRecordsRoundTrip(t *testing.T) {
	c := NewCostMatrixCache()
	c.Get("W1N1", 7, func() CostMatrix {
		var m CostMatrix
		m[100] = 255
		return m
	})

	records := c.Records()
	restored := NewCostMatrixCache()
	restored.Restore(records)

	got := restored.Get("W1N1", 7, func() CostMatrix {
		t.Fatal("should not rebuild: restored revision matches")
		return CostMatrix{}
	})
	if got[100] != 255 {
		t.Fatalf("restored matrix missing data: got[100] = %d", got[100])
	}

	var gotRoom host.RoomName
	for _, r := range records {
		gotRoom = r.Room
	}
	if gotRoom != "W1N1" {
		t.Fatalf("unexpected room in records: %q", gotRoom)
	}
}
