package host

import "testing"

func TestParseRoomName(t *testing.T) {
	cases := []struct {
		name       RoomName
		wantX, wantY int
	}{
		{"E0N0", 0, -1},
		{"W0N0", -1, -1},
		{"E5S8", 5, 8},
		{"W5N8", -6, -9},
	}
	for _, c := range cases {
		x, y, err := ParseRoomName(c.name)
		if err != nil {
			t.Fatalf("ParseRoomName(%q): %v", c.name, err)
		}
		if x != c.wantX || y != c.wantY {
			t.Fatalf("ParseRoomName(%q) = (%d,%d), want (%d,%d)", c.name, x, y, c.wantX, c.wantY)
		}
	}
}

func TestParseRoomNameRejectsGarbage(t *testing.T) {
	for _, bad := range []RoomName{"", "X5N8", "E5", "W", "sim"} {
		if _, _, err := ParseRoomName(bad); err == nil {
			t.Fatalf("expected ParseRoomName(%q) to fail", bad)
		}
	}
}

func TestRoomDistanceAdjacentRoomsAreOne(t *testing.T) {
	if d := RoomDistance("E5S8", "E6S8"); d != 1 {
		t.Fatalf("adjacent rooms: got distance %d, want 1", d)
	}
	if d := RoomDistance("E5S8", "E5S8"); d != 0 {
		t.Fatalf("same room: got distance %d, want 0", d)
	}
	if d := RoomDistance("W0N0", "E0S0"); d != 1 {
		t.Fatalf("rooms straddling origin: got distance %d, want 1", d)
	}
}
