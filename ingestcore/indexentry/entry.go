// Package indexentry implements the 16-byte (timestamp, offset) index
// record spec.md §6 defines as the index file format — "little-endian
// packed array of (i64 timestamp, i64 offset); no header, no trailer" —
// along with the k-way merge phase 3 runs over a partition's per-worker
// shards (spec.md §4.5).
package indexentry

import (
	"encoding/binary"

	"github.com/pkg/errors"
)

// Size is the on-disk width of one entry: two little-endian int64s.
const Size = 16

// Entry is one (timestamp, offset) pair: a source record's micros-since-
// epoch timestamp and its byte offset in the source file.
type Entry struct {
	Timestamp int64
	Offset    int64
}

// Put writes e into buf[0:16] little-endian. buf must be at least Size
// bytes long.
func (e Entry) Put(buf []byte) {
	binary.LittleEndian.PutUint64(buf[0:8], uint64(e.Timestamp))
	binary.LittleEndian.PutUint64(buf[8:16], uint64(e.Offset))
}

// Get reads an Entry from buf[0:16].
func Get(buf []byte) Entry {
	return Entry{
		Timestamp: int64(binary.LittleEndian.Uint64(buf[0:8])),
		Offset:    int64(binary.LittleEndian.Uint64(buf[8:16])),
	}
}

// Count returns the number of entries in a shard of the given byte size,
// erroring if the size isn't a multiple of Size — a corrupt or truncated
// shard (spec.md §3 MergedIndex invariant: "File size is always a
// multiple of 16").
func Count(byteLen int64) (int64, error) {
	if byteLen%Size != 0 {
		return 0, errors.Errorf("index shard size %d is not a multiple of %d bytes", byteLen, Size)
	}
	return byteLen / Size, nil
}

// View presents a memory-mapped or read byte slice as a sequence of
// entries without copying.
type View []byte

// Len returns the number of whole entries in v.
func (v View) Len() int {
	return len(v) / Size
}

// At returns the i'th entry.
func (v View) At(i int) Entry {
	return Get(v[i*Size : i*Size+Size])
}
