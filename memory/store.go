package memory

import (
	"fmt"
	"strconv"

	"github.com/df-mc/goleveldb/leveldb"
)

// SegmentStore persists numbered segments to a local LevelDB
// database. The live host already persists segments across VM
// restarts; this exists so the offline benchmark harness and
// integration tests can emulate that durability without a game VM.
type SegmentStore struct {
	db *leveldb.DB
}

// OpenSegmentStore opens (creating if absent) a LevelDB database at
// dir to back numbered segments.
func OpenSegmentStore(dir string) (*SegmentStore, error) {
	db, err := leveldb.OpenFile(dir, nil)
	if err != nil {
		return nil, fmt.Errorf("memory: open segment store: %w", err)
	}
	return &SegmentStore{db: db}, nil
}

// Close releases the underlying database handle.
func (s *SegmentStore) Close() error { return s.db.Close() }

func segmentKey(id int) []byte {
	return []byte("seg:" + strconv.Itoa(id))
}

// Get returns the persisted content of segment id, if any was ever
// written.
func (s *SegmentStore) Get(id int) (string, bool) {
	v, err := s.db.Get(segmentKey(id), nil)
	if err != nil {
		return "", false
	}
	return string(v), true
}

// Set durably writes segment id's content, overwriting any prior
// value.
func (s *SegmentStore) Set(id int, data string) error {
	return s.db.Put(segmentKey(id), []byte(data), nil)
}

// Delete clears a persisted segment entirely, distinct from Set(id,
// "") in that a subsequent Get reports no value rather than an empty
// string — used when resetting the emulated host between benchmark
// runs.
func (s *SegmentStore) Delete(id int) error {
	return s.db.Delete(segmentKey(id), nil)
}
