// Package memory implements the segmented memory arbiter that sits between
// the controller and the host's numbered, string-only, ~100 KiB memory
// segments.
package memory

import (
	"log/slog"
	"strconv"

	"github.com/colonygrid/foreman/host"
	"golang.org/x/sync/singleflight"
)

// MaxSegmentBytes is the host's per-segment cap. Real Screeps allows
// ~100 KiB per segment; a safety margin is left for base64 expansion
// overhead (see package persist).
const MaxSegmentBytes = 100 * 1024

// Arbiter debounces segment requests and coalesces reads/writes within
// a single tick. One Arbiter wraps one host.Host.
type Arbiter struct {
	log  *slog.Logger
	h    host.Host
	g    singleflight.Group
	want map[int]bool

	readCache  map[int]string
	pendingSet map[int]string
}

// NewArbiter creates an Arbiter over h.
func NewArbiter(h host.Host, log *slog.Logger) *Arbiter {
	if log == nil {
		log = slog.Default()
	}
	return &Arbiter{
		log:        log,
		h:          h,
		want:       make(map[int]bool),
		readCache:  make(map[int]string),
		pendingSet: make(map[int]string),
	}
}

// Require marks segment id as needed this tick and issues a
// MemorySegmentRequest to the host if it has not been requested since
// the last Flush. Required segments that are not yet active are
// reported by Ready.
func (a *Arbiter) Require(id int) {
	if a.want[id] {
		return
	}
	a.want[id] = true
	a.h.MemorySegmentRequest(id)
}

// Ready reports whether every segment marked with Require this tick
// is currently active (readable). The tick executor uses this to
// decide whether to run only the memory-arbiter stage and defer all
// other work this tick.
func (a *Arbiter) Ready() bool {
	for id := range a.want {
		if _, ok := a.read(id); !ok {
			return false
		}
	}
	return true
}

// read fetches a segment, coalescing concurrent callers within the
// same tick via singleflight and caching the result so repeated reads
// of the same segment this tick don't re-enter the host API.
func (a *Arbiter) read(id int) (string, bool) {
	if v, ok := a.readCache[id]; ok {
		return v, true
	}
	key := segKey(id)
	v, err, _ := a.g.Do(key, func() (any, error) {
		s, ok := a.h.MemorySegmentGet(id)
		if !ok {
			return nil, errNotActive
		}
		return s, nil
	})
	if err != nil {
		return "", false
	}
	str := v.(string)
	a.readCache[id] = str
	return str, true
}

// Get returns the current content of segment id, if active.
func (a *Arbiter) Get(id int) (string, bool) {
	if v, ok := a.pendingSet[id]; ok {
		return v, true
	}
	return a.read(id)
}

// Set queues a write to segment id. Writes are buffered and only
// reach the host on Flush, so multiple writers touching the same
// segment within a tick collapse to the last write.
func (a *Arbiter) Set(id int, data string) {
	if len(data) > MaxSegmentBytes {
		a.log.Warn("memory: segment overflow, truncating", "segment", id, "len", len(data), "max", MaxSegmentBytes)
		data = data[:MaxSegmentBytes]
	}
	a.pendingSet[id] = data
}

// Clear queues segment id to be wiped to the empty string. Used to
// erase stale tail data past the written portion of a multi-segment
// write.
func (a *Arbiter) Clear(id int) { a.Set(id, "") }

// Flush writes every pending Set to the host and resets per-tick
// state. It must run as the last stage of the tick.
func (a *Arbiter) Flush() {
	for id, data := range a.pendingSet {
		a.h.MemorySegmentSet(id, data)
	}
	a.pendingSet = make(map[int]string)
	a.readCache = make(map[int]string)
	a.want = make(map[int]bool)
}

func segKey(id int) string {
	return "segment:" + strconv.Itoa(id)
}

type notActiveError struct{}

func (notActiveError) Error() string { return "memory: segment not active" }

var errNotActive = notActiveError{}
