// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package lcfsverify mounts a decoded composefs image as a read-only
// FUSE filesystem, for exercising the round-trip property — that a
// reader reconstructing the tree from the image sees the same
// directory structure the writer canonicalized — without a real
// in-kernel composefs driver.
//
// This is verification tooling, not a production filesystem: it backs
// cmd/lcfs-dump's --mount mode and the package's own tests, which
// mount an image, walk it through the kernel VFS (os.ReadDir,
// os.Lstat, os.Readlink), and compare the result against the source
// tree. It never serves file content from a backing store — Read
// returns the raw payload bytes [lcfs.Image.Payload] carries, which is
// a backing-store reference, not file content, matching what the
// on-disk format stores.
package lcfsverify
