package transfer

import (
	"testing"

	"github.com/colonygrid/foreman/host"
)

const testRoom host.RoomName = "W1N1"

func TestBestDeliveryMatchesHighestPair(t *testing.T) {
	q := NewQueue()
	container := Target{Kind: "container", ID: "c1", Room: testRoom}
	spawn := Target{Kind: "spawn", ID: "s1", Room: testRoom}

	q.NodeFor(container).AddWithdrawal(WithdrawKey{Resource: "energy", Priority: PriorityMedium, Type: Haul}, 800)
	q.NodeFor(spawn).AddDeposit(DepositKey{Resource: "energy", Any: true, Priority: PriorityHigh, Type: Haul}, 300)

	m, ok := SelectBestDelivery(q, testRoom, host.Pos{X: 25, Y: 25, Room: testRoom}, []TransferType{Haul}, 500)
	if !ok {
		t.Fatal("expected a match")
	}
	if m.Pickup != container || m.Deliver != spawn {
		t.Fatalf("unexpected match targets: %+v", m)
	}
	if m.Amount != 300 {
		t.Fatalf("amount = %d, want 300 (deposit capacity is the binding constraint)", m.Amount)
	}
	if m.Resource != "energy" {
		t.Fatalf("resource = %q, want energy", m.Resource)
	}
}

func TestBestDeliveryWeighsRouteLength(t *testing.T) {
	q := NewQueue()
	near := Target{Kind: "container", ID: "near", Room: testRoom, Pos: host.Pos{X: 11, Y: 10, Room: testRoom}}
	far := Target{Kind: "container", ID: "far", Room: testRoom, Pos: host.Pos{X: 45, Y: 45, Room: testRoom}}
	spawn := Target{Kind: "spawn", ID: "s1", Room: testRoom, Pos: host.Pos{X: 12, Y: 10, Room: testRoom}}

	key := WithdrawKey{Resource: "energy", Priority: PriorityMedium, Type: Haul}
	q.NodeFor(near).AddWithdrawal(key, 400)
	q.NodeFor(far).AddWithdrawal(key, 500)
	q.NodeFor(spawn).AddDeposit(DepositKey{Resource: "energy", Priority: PriorityHigh, Type: Haul}, 1000)

	// From next to the near container: 400/(1+1) beats 500/(35+35).
	m, ok := SelectBestDelivery(q, testRoom, host.Pos{X: 10, Y: 10, Room: testRoom}, []TransferType{Haul}, 1000)
	if !ok {
		t.Fatal("expected a match")
	}
	if m.Pickup != near {
		t.Fatalf("expected the nearer container to win on route-weighted value, got %+v", m.Pickup)
	}
	if m.Amount != 400 {
		t.Fatalf("amount = %d, want 400", m.Amount)
	}
}

func TestAvailableSaturatesAtZero(t *testing.T) {
	q := NewQueue()
	target := Target{Kind: "container", ID: "c1", Room: testRoom}
	key := WithdrawKey{Resource: "energy", Priority: PriorityMedium, Type: Haul}

	node := q.NodeFor(target)
	node.AddWithdrawal(key, 100)
	node.ReservePickup(key, 250) // over-reserve; must clamp to requested.

	if got := node.AvailableWithdrawal(key); got != 0 {
		t.Fatalf("available = %d, want 0", got)
	}
}

func TestGeneratorFiresOncePerTick(t *testing.T) {
	q := NewQueue()
	fires := 0
	q.RegisterGenerator(testRoom, []TransferType{Haul}, func(q *Queue) {
		fires++
		q.NodeFor(Target{Kind: "storage", ID: "store1", Room: testRoom}).AddWithdrawal(
			WithdrawKey{Resource: "energy", Priority: PriorityLow, Type: Haul}, 50)
	})

	q.NodeFor(Target{Kind: "storage", ID: "store1", Room: testRoom}, Haul)
	q.NodeFor(Target{Kind: "storage", ID: "store1", Room: testRoom}, Haul)
	if fires != 1 {
		t.Fatalf("generator fired %d times, want 1", fires)
	}

	q.BeginTick()
	q.NodeFor(Target{Kind: "storage", ID: "store1", Room: testRoom}, Haul)
	if fires != 2 {
		t.Fatalf("generator fired %d times after BeginTick, want 2", fires)
	}
}

func TestClearRemovesGeneratorsAndNodes(t *testing.T) {
	q := NewQueue()
	q.RegisterGenerator(testRoom, []TransferType{Haul}, func(q *Queue) {
		q.NodeFor(Target{Kind: "storage", ID: "store1", Room: testRoom}).AddWithdrawal(
			WithdrawKey{Resource: "energy", Priority: PriorityLow, Type: Haul}, 50)
	})
	q.NodeFor(Target{Kind: "storage", ID: "store1", Room: testRoom}, Haul)
	if len(q.RoomNodes(testRoom)) == 0 {
		t.Fatal("expected a populated node before Clear")
	}

	q.Clear()
	if nodes := q.RoomNodes(testRoom); len(nodes) != 0 {
		t.Fatalf("RoomNodes after Clear = %d, want 0", len(nodes))
	}
	q.NodeFor(Target{Kind: "storage", ID: "store1", Room: testRoom}, Haul)
	if len(q.RoomNodes(testRoom)) != 1 {
		t.Fatal("expected a fresh empty node, not a regenerated one")
	}
	if nodes := q.RoomNodes(testRoom); nodes[0].AvailableWithdrawal(WithdrawKey{Resource: "energy", Priority: PriorityLow, Type: Haul}) != 0 {
		t.Fatal("cleared generator must not refire")
	}
}

func TestSelectPickupIgnoresWrongResource(t *testing.T) {
	q := NewQueue()
	target := Target{Kind: "container", ID: "c1", Room: testRoom}
	q.NodeFor(target).AddWithdrawal(WithdrawKey{Resource: "hydrogen", Priority: PriorityHigh, Type: Haul}, 100)

	_, _, _, ok := SelectPickup(q, testRoom, "energy", []TransferType{Haul}, 50)
	if ok {
		t.Fatal("expected no match for mismatched resource")
	}
}
