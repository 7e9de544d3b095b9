// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package codec provides lcfs's standard CBOR encoding configuration.
//
// The on-disk composefs image format is a fixed byte-exact binary
// layout (see lib/lcfs) that CBOR never touches — that invariant is
// what a kernel reader depends on. This package exists for the
// supplemental inspection tooling built on top of it: cmd/lcfs-dump
// marshals the tree it decodes from an image file to CBOR for
// human/tool consumption, and [lcfs.DumpTree] marshals a canonicalized
// build-time tree with the same encoding, which tests use to check
// that two semantically equal trees produce identical dumps
// independent of the byte-exact on-disk check.
//
// The encoder uses Core Deterministic Encoding (RFC 8949 §4.2): sorted
// map keys, smallest integer encoding, no indefinite-length items.
// Same logical data always produces identical bytes.
//
//	data, err := codec.Marshal(value)
//	err = codec.Unmarshal(data, &value)
//
// For stream-oriented use:
//
//	encoder := codec.NewEncoder(w)
//	decoder := codec.NewDecoder(r)
package codec
