package spawn

import (
	"testing"

	"github.com/colonygrid/foreman/host"
	"github.com/colonygrid/foreman/kernel"
)

func idGen() func(room host.RoomName, name string, body []host.BodyPart) (host.ObjectID, error) {
	n := 0
	return func(room host.RoomName, name string, body []host.BodyPart) (host.ObjectID, error) {
		n++
		return host.ObjectID(string(rune('a' + n))), nil
	}
}

func TestDrainHonoursHighestPriorityAffordable(t *testing.T) {
	q := New(nil)
	w := kernel.NewWorld()
	var committed []string

	q.Submit("W1N1", Request{
		Description: "cheap", Priority: 1,
		Body:   []host.BodyPart{{Type: host.Move}},
		Commit: func(w *kernel.World, id host.ObjectID, name string) { committed = append(committed, name) },
	})
	q.Submit("W1N1", Request{
		Description: "expensive", Priority: 10,
		Body:   []host.BodyPart{{Type: host.Work}, {Type: host.Work}, {Type: host.Move}},
		Commit: func(w *kernel.World, id host.ObjectID, name string) { committed = append(committed, name) },
	})

	q.Drain(w, map[host.RoomName]int{"W1N1": 300}, idGen())
	w.Barrier()

	if len(committed) != 1 || committed[0] != "expensive" {
		t.Fatalf("committed = %v, want [expensive]", committed)
	}
	if q.Pending("W1N1") != 1 {
		t.Fatalf("pending = %d, want 1 (cheap should still be queued)", q.Pending("W1N1"))
	}
}

func TestTokenHonouredOnce(t *testing.T) {
	q := New(nil)
	w := kernel.NewWorld()
	tok := NewToken()
	fired := 0
	commit := func(w *kernel.World, id host.ObjectID, name string) { fired++ }

	q.Submit("W1N1", Request{Description: "slot", Priority: 5, Token: tok, Body: []host.BodyPart{{Type: host.Move}}, Commit: commit})
	q.Submit("W2N2", Request{Description: "slot", Priority: 5, Token: tok, Body: []host.BodyPart{{Type: host.Move}}, Commit: commit})

	q.Drain(w, map[host.RoomName]int{"W1N1": 50, "W2N2": 50}, idGen())
	w.Barrier()

	if fired != 1 {
		t.Fatalf("fired = %d, want 1 (token must be honoured at most once)", fired)
	}
}

func TestClearDropsPendingAndHonouredTokens(t *testing.T) {
	q := New(nil)
	q.Submit("W1N1", Request{Description: "x", Body: []host.BodyPart{{Type: host.Move}}})
	q.honoured[NewToken()] = true
	q.Clear()
	if q.Pending("W1N1") != 0 {
		t.Fatal("expected Clear to drop pending requests")
	}
	if len(q.honoured) != 0 {
		t.Fatal("expected Clear to drop honoured tokens")
	}
}
