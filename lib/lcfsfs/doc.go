// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package lcfsfs ingests a host directory subtree into an [lcfs.Node]
// tree, the optional seed step ahead of canonicalization and
// serialization.
//
// Ingestion is metadata-only: it populates mode, ownership, device
// number, size, timestamps, xattrs, and (optionally) a content digest
// for regular files. It never reads a symlink's target or a regular
// file's bytes into [lcfs.Node.Payload] — composefs payloads are
// backing-store references (a symlink target string or a
// content-addressed path into an object store), which callers set
// explicitly once they know their store layout. This matches the
// behavior of the C implementation this package generalizes.
//
// Ingestion touches the live filesystem through golang.org/x/sys/unix
// (Fstatat, Openat, Listxattr, Getxattr against an O_PATH handle's
// /proc/self/fd/<n> alias) rather than the os package, so it can use
// AT_SYMLINK_NOFOLLOW and avoid following a race-prone path a second
// time per operation.
package lcfsfs
