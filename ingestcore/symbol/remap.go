package symbol

import "encoding/binary"

// KeySize is the on-disk width of a staged symbol-key column entry and of
// one remap-array slot: a little-endian int32 (spec.md §6 "Symbol remap
// file format").
const KeySize = 4

// EncodeRemap serializes remap as the little-endian i32[] file format,
// indexed by old key.
func EncodeRemap(remap []int32) []byte {
	buf := make([]byte, len(remap)*KeySize)
	for i, v := range remap {
		binary.LittleEndian.PutUint32(buf[i*KeySize:], uint32(v))
	}
	return buf
}

// DecodeRemap parses a remap file's bytes back into a remap array.
func DecodeRemap(buf []byte) []int32 {
	remap := make([]int32, len(buf)/KeySize)
	for i := range remap {
		remap[i] = int32(binary.LittleEndian.Uint32(buf[i*KeySize:]))
	}
	return remap
}

// NullKey marks an absent symbol value in the on-disk key/remap format:
// -1 as an unsigned i32, i.e. 0xFFFFFFFF. It is never a valid dictionary
// key (Dict.Intern only ever hands out keys >= 0), so RewriteKeys treats
// it as a sentinel to pass through rather than an index into remap.
const NullKey int32 = -1

// RewriteKeys rewrites a staged symbol-key column's entries in place:
// keyFile[i] = remap[keyFile[i]], for every 4-byte slot (spec.md §4.6
// step 4), leaving NullKey entries untouched. keyFile is typically a live
// mmap view; the caller is responsible for mapping it read-write and
// unmapping afterward.
func RewriteKeys(keyFile []byte, remap []int32) {
	n := len(keyFile) / KeySize
	for i := 0; i < n; i++ {
		off := i * KeySize
		old := int32(binary.LittleEndian.Uint32(keyFile[off:]))
		if old == NullKey {
			continue
		}
		binary.LittleEndian.PutUint32(keyFile[off:], uint32(remap[old]))
	}
}
