// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package lcfs

import "io"

// BuildFlags controls optional behavior of the filesystem ingester
// (lib/lcfsfs). It is validated here because spec.md §6 requires
// unknown bits to be rejected with [KindInvalidArgument] regardless
// of which layer constructs the value.
type BuildFlags uint32

const (
	// BuildSkipXattrs omits extended attributes during ingestion.
	BuildSkipXattrs BuildFlags = 1 << 0
	// BuildUseEpoch zeroes mtime/ctime instead of reading them from
	// the host filesystem, for reproducible builds.
	BuildUseEpoch BuildFlags = 1 << 1
	// BuildSkipDevices omits block and character device nodes during
	// ingestion.
	BuildSkipDevices BuildFlags = 1 << 2
	// BuildComputeDigest computes and sets a content digest for every
	// non-empty regular file during ingestion.
	BuildComputeDigest BuildFlags = 1 << 3

	buildFlagsAll = BuildSkipXattrs | BuildUseEpoch | BuildSkipDevices | BuildComputeDigest
)

// Validate rejects unknown flag bits with a [KindInvalidArgument] error.
func (f BuildFlags) Validate() error {
	if f&^buildFlagsAll != 0 {
		return newError("BuildFlags.Validate", KindInvalidArgument, "unknown build flag bits set", nil)
	}
	return nil
}

// WriteOptions configures [WriteTo].
type WriteOptions struct {
	// ComputeImageDigest requests that WriteTo return the fs-verity
	// digest of the exact byte stream written to w. When false,
	// WriteTo returns the zero digest.
	ComputeImageDigest bool
}

// WriteTo canonicalizes root's tree and serializes it to w as a
// composefs image, following the on-disk layout spec.md §6 defines:
// superblock, flat inode table, zero padding to a 4-byte boundary,
// then the variable-data region. Every byte passes through a single
// streaming writer so a requested digest covers the whole image
// exactly once.
//
// root is not mutated beyond having its tree's inode numbers, sort
// order, directory link counts, and vdata references computed — the
// same mutations [computeTree] and the variable-data/xattr passes
// always perform, regardless of whether WriteTo succeeds.
//
// A failed WriteTo may have written an arbitrary prefix to w; the
// caller must treat w as destroyed and discard it.
func WriteTo(root *Node, w io.Writer, options WriteOptions) (Digest, error) {
	order, inodeTableSize, err := computeTree(root)
	if err != nil {
		return Digest{}, err
	}

	arena := newVdataArena()
	if err := computeVariableData(order, arena); err != nil {
		return Digest{}, err
	}
	computeXattrs(order, arena)

	dataOffset := alignUp4(superblockSize + inodeTableSize)

	var digestCtx *DigestContext
	if options.ComputeImageDigest {
		digestCtx = NewImageDigestContext()
	}
	sw := newStreamWriter(w, digestCtx)

	var sb []byte
	sb = putU32(sb, version)
	sb = putU32(sb, magic)
	sb = putU64(sb, dataOffset)
	if err := sw.write(sb); err != nil {
		return Digest{}, err
	}

	for _, node := range order {
		var buf []byte
		buf = writeInode(buf, node)
		if err := sw.write(buf); err != nil {
			return Digest{}, err
		}
	}

	if uint64(sw.bytesWritten) != superblockSize+inodeTableSize {
		panic("lcfs: bytes written does not match precomputed inode table budget")
	}

	if err := sw.writePad(dataOffset - uint64(sw.bytesWritten)); err != nil {
		return Digest{}, err
	}

	if len(arena.data) > 0 {
		if err := sw.write(arena.data); err != nil {
			return Digest{}, err
		}
	}

	if digestCtx != nil {
		return digestCtx.Finalize(), nil
	}
	return Digest{}, nil
}
