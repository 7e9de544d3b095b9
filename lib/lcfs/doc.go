// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package lcfs builds composefs images: a deterministic, byte-exact
// binary encoding of a POSIX directory tree that a kernel filesystem
// driver later mounts read-only.
//
// The package is organized in layers, each usable independently:
//
//   - Node tree: [Node] models one inode (file, directory, symlink,
//     device, or hard-link alias) with parent/child edges, xattrs,
//     and an optional content digest. Nodes are built programmatically
//     with [NewNode], [Node.AddChild], and friends, or ingested from a
//     host directory by the sibling lcfsfs package.
//   - Canonicalization: [WriteTo] walks the tree breadth-first, assigns
//     contiguous inode numbers, sorts children and xattrs, and fixes up
//     directory link counts so that two semantically equal trees always
//     serialize to the same bytes.
//   - Variable-data area: directory blocks, xattr blocks, symlink
//     targets, regular-file backing paths, and content digests are
//     packed into a single deduplicated region referenced by
//     (offset, length) pairs from the fixed-size inode table.
//   - Digest: [Digest] is a 32-byte streaming content digest computed
//     with a domain-separated keyed BLAKE3 hasher, standing in for the
//     kernel's fs-verity Merkle-tree primitive (see [NewDigestContext]).
//
// The on-disk layout is a superblock, a flat array of fixed-size inode
// records, zero padding to a 4-byte boundary, and the variable-data
// region. All integers are little-endian. See [WriteTo] for the exact
// byte sequence.
//
// A tree rooted at one [Node] is not safe for concurrent serialization;
// build it, call [WriteTo] once, and discard it afterward.
package lcfs
