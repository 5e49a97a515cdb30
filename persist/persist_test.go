package persist

import (
	"encoding/base64"
	"strings"
	"testing"
)

type fakeSegments struct {
	data map[int]string
}

func newFakeSegments() *fakeSegments { return &fakeSegments{data: make(map[int]string)} }

func (f *fakeSegments) Set(id int, data string) { f.data[id] = data }
func (f *fakeSegments) Clear(id int)             { f.data[id] = "" }
func (f *fakeSegments) Get(id int) (string, bool) {
	v, ok := f.data[id]
	return v, ok
}

type demoSnapshot struct {
	Tick  int64
	Names []string
}

func TestWriteReadRoundTrip(t *testing.T) {
	segs := newFakeSegments()
	ids := []int{10, 11, 12}
	want := demoSnapshot{Tick: 42, Names: []string{"W1N1", "W2N2"}}

	if err := Write(segs, ids, want, nil); err != nil {
		t.Fatalf("Write: %v", err)
	}
	got, err := Read[demoSnapshot](segs, ids)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if got.Tick != want.Tick || len(got.Names) != len(want.Names) {
		t.Fatalf("round trip mismatch: got %+v, want %+v", got, want)
	}
	for i := range want.Names {
		if got.Names[i] != want.Names[i] {
			t.Fatalf("Names[%d] = %q, want %q", i, got.Names[i], want.Names[i])
		}
	}
}

func TestReadCorruptSegmentReportsError(t *testing.T) {
	segs := newFakeSegments()
	segs.Set(1, "not-valid-base64!!!")
	if _, err := Read[demoSnapshot](segs, []int{1}); err == nil {
		t.Fatal("expected error decoding corrupt segment")
	}
}

func TestReadMissingSegmentReportsError(t *testing.T) {
	segs := newFakeSegments()
	if _, err := Read[demoSnapshot](segs, []int{99}); err == nil {
		t.Fatal("expected error reading inactive segment")
	}
}

func TestReadDetectsChecksumMismatch(t *testing.T) {
	segs := newFakeSegments()
	ids := []int{1, 2, 3}
	if err := Write(segs, ids, demoSnapshot{Tick: 7, Names: []string{"W1N1"}}, nil); err != nil {
		t.Fatalf("Write: %v", err)
	}

	// Reassemble the encoded payload, flip a byte well past the 8-byte
	// checksum header (landing in the gob body), then re-chunk and
	// re-decode so the mutation is exercised on the decoded bytes
	// rather than on base64 text, guaranteeing the checksum path (not
	// a base64 parse error) is what fires.
	var sb strings.Builder
	for _, id := range ids {
		sb.WriteString(segs.data[id])
	}
	raw, err := base64.StdEncoding.DecodeString(sb.String())
	if err != nil {
		t.Fatalf("decode written payload: %v", err)
	}
	if len(raw) < 16 {
		t.Fatalf("unexpected short payload: %d bytes", len(raw))
	}
	raw[15] ^= 0xff
	mutated := base64.StdEncoding.EncodeToString(raw)
	segs.data[ids[0]] = mutated
	for _, id := range ids[1:] {
		segs.data[id] = ""
	}

	_, err = Read[demoSnapshot](segs, ids)
	if err == nil {
		t.Fatal("expected checksum mismatch error")
	}
	if !strings.Contains(err.Error(), "checksum mismatch") {
		t.Fatalf("expected checksum mismatch error, got %v", err)
	}
}

func TestWriteClearsExcessSegments(t *testing.T) {
	segs := newFakeSegments()
	ids := []int{1, 2, 3}
	segs.Set(3, "stale-tail-data")
	if err := Write(segs, ids, demoSnapshot{Tick: 1}, nil); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if v, _ := segs.Get(3); v != "" {
		t.Fatalf("segment 3 not cleared: %q", v)
	}
}
