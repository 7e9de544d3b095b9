// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package lcfs

import "bytes"

// appendFlags controls how [vdataArena.append] stores a blob.
type appendFlags uint32

const (
	// appendDedup coalesces the blob with an equal one already in the
	// arena, if any, returning the existing reference instead of
	// copying.
	appendDedup appendFlags = 1 << 0
	// appendAlign pads the arena to a 4-byte boundary before
	// appending, so the returned offset is always a multiple of 4.
	appendAlign appendFlags = 1 << 1
)

// vdataArena is the variable-data region: a growable byte buffer plus
// a content-hash index that coalesces equal blobs appended with
// appendDedup. It is exclusively owned by one [WriteTo] call.
//
// Unlike the C implementation this generalizes, the dedup index keys
// directly on (offset, length) into the arena rather than a pointer
// to the arena's base address — spec.md §9 notes the indirection is
// unnecessary once equality probes index into the arena directly, and
// a Go slice header already survives reallocation without that
// trick.
type vdataArena struct {
	data []byte

	// index buckets store (offset, length) references whose bytes
	// hash to that bucket. Collisions are resolved by byte-for-byte
	// comparison against the arena.
	index map[uint64][]vdataRef
}

func newVdataArena() *vdataArena {
	return &vdataArena{index: make(map[uint64][]vdataRef)}
}

// hashBytes computes the rolling hash spec.md §4.3 specifies:
// h = (h*31 + byte) mod nBuckets, over the blob's bytes. nBuckets is
// large and fixed so the hash doubles as the map key directly —
// there is no separate "number of buckets" to tune since Go's map
// already handles growth.
const hashModulus = 1 << 32

func hashBytes(data []byte) uint64 {
	var h uint64
	for _, b := range data {
		h = (h*31 + uint64(b)) % hashModulus
	}
	return h
}

// append stores data in the arena according to flags and returns its
// (offset, length) reference. With appendDedup, an equal blob already
// present is reused without copying. With appendAlign, the arena tail
// is zero-padded to a 4-byte boundary before the blob is written.
func (a *vdataArena) append(data []byte, flags appendFlags) vdataRef {
	if flags&appendDedup != 0 {
		if ref, ok := a.lookup(data); ok {
			return ref
		}
	}

	if flags&appendAlign != 0 {
		if pad := len(a.data) % 4; pad != 0 {
			a.data = append(a.data, make([]byte, 4-pad)...)
		}
	}

	off := uint64(len(a.data))
	a.data = append(a.data, data...)
	ref := vdataRef{off: off, len: uint32(len(data))}

	if flags&appendDedup != 0 {
		h := hashBytes(data)
		a.index[h] = append(a.index[h], ref)
	}

	return ref
}

// lookup probes the dedup index for a blob already in the arena equal
// to data.
func (a *vdataArena) lookup(data []byte) (vdataRef, bool) {
	h := hashBytes(data)
	for _, ref := range a.index[h] {
		if ref.len != uint32(len(data)) {
			continue
		}
		if bytes.Equal(a.data[ref.off:ref.off+uint64(ref.len)], data) {
			return ref, true
		}
	}
	return vdataRef{}, false
}
