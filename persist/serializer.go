package persist

import (
	"bytes"
	"encoding/base64"
	"encoding/binary"
	"encoding/gob"
	"errors"
	"fmt"
	"log/slog"

	"github.com/cespare/xxhash/v2"
)

// ErrCorruptSegment is returned by Read when the concatenated segment
// content fails to base64-decode or gob-decode. The caller's response
// is to log it and start from an empty World; it is the one
// fatal-to-the-world-but-not-to-the-process condition in the whole
// controller.
var ErrCorruptSegment = errors.New("persist: corrupt segment data")

// chunkSize is measured on the base64 text and kept safely under
// memory.MaxSegmentBytes; persist does not import package memory
// to avoid a cycle (memory is a pure host-segment concern, persist is
// a pure encoding concern), so the budget is restated here.
const chunkSize = 70 * 1024

// SegmentWriter is the subset of memory.Arbiter's write surface the
// serializer needs.
type SegmentWriter interface {
	Set(id int, data string)
	Clear(id int)
}

// SegmentReader is the subset of memory.Arbiter's read surface the
// deserializer needs.
type SegmentReader interface {
	Get(id int) (string, bool)
}

// Write gob-encodes v, prefixes the result with an 8-byte xxhash
// content checksum, base64-wraps that, and writes it across
// segmentIDs in order, chunkSize bytes at a time. Any segment IDs past
// the last one actually used are Cleared, so a future resume does not
// read stale tail data from a previous, longer snapshot. Write logs and
// truncates, rather than failing, if the encoded form does not fit in the
// provided segments; segment overflow is recoverable, not fatal.
func Write[T any](w SegmentWriter, segmentIDs []int, v T, log *slog.Logger) error {
	if log == nil {
		log = slog.Default()
	}
	var body bytes.Buffer
	if err := gob.NewEncoder(&body).Encode(v); err != nil {
		return fmt.Errorf("persist: encode: %w", err)
	}

	var buf bytes.Buffer
	var sum [8]byte
	binary.BigEndian.PutUint64(sum[:], xxhash.Sum64(body.Bytes()))
	buf.Write(sum[:])
	buf.Write(body.Bytes())
	encoded := base64.StdEncoding.EncodeToString(buf.Bytes())

	used := 0
	for i, id := range segmentIDs {
		start := i * chunkSize
		if start >= len(encoded) {
			break
		}
		end := start + chunkSize
		if end > len(encoded) {
			end = len(encoded)
		}
		w.Set(id, encoded[start:end])
		used = i + 1
	}
	if used*chunkSize < len(encoded) {
		log.Warn("persist: snapshot does not fit in the provided segments, truncating",
			"segments", len(segmentIDs), "chunk_size", chunkSize, "encoded_bytes", len(encoded))
	}
	for _, id := range segmentIDs[used:] {
		w.Clear(id)
	}
	return nil
}

// Read concatenates segmentIDs' content in order, base64-decodes,
// verifies the leading xxhash checksum written by Write, and
// gob-decodes the remainder into a T. It returns ErrCorruptSegment
// (wrapped) on any decode or checksum failure rather than partially
// populating the result; a checksum mismatch logs both hashes so a
// corrupted-segment incident can be diagnosed after the fact.
func Read[T any](r SegmentReader, segmentIDs []int) (T, error) {
	return ReadLogged[T](r, segmentIDs, nil)
}

// ReadLogged is Read with an explicit logger for the checksum-mismatch
// diagnostic; a nil log falls back to slog.Default.
func ReadLogged[T any](r SegmentReader, segmentIDs []int, log *slog.Logger) (T, error) {
	var zero T
	if log == nil {
		log = slog.Default()
	}
	var sb bytes.Buffer
	for _, id := range segmentIDs {
		s, ok := r.Get(id)
		if !ok {
			return zero, fmt.Errorf("%w: segment %d not active", ErrCorruptSegment, id)
		}
		sb.WriteString(s)
	}
	raw, err := base64.StdEncoding.DecodeString(sb.String())
	if err != nil {
		return zero, fmt.Errorf("%w: base64: %v", ErrCorruptSegment, err)
	}
	if len(raw) < 8 {
		return zero, fmt.Errorf("%w: payload too short for checksum header (%d bytes)", ErrCorruptSegment, len(raw))
	}
	wantSum := binary.BigEndian.Uint64(raw[:8])
	body := raw[8:]
	gotSum := xxhash.Sum64(body)
	if gotSum != wantSum {
		log.Warn("persist: snapshot checksum mismatch", "want", wantSum, "got", gotSum, "bytes", len(body))
		return zero, fmt.Errorf("%w: checksum mismatch (want %x, got %x)", ErrCorruptSegment, wantSum, gotSum)
	}
	var v T
	if err := gob.NewDecoder(bytes.NewReader(body)).Decode(&v); err != nil {
		return zero, fmt.Errorf("%w: gob: %v", ErrCorruptSegment, err)
	}
	return v, nil
}
