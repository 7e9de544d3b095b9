// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package lcfs

import "github.com/zeebo/blake3"

// Digest is a 32-byte content digest, either a per-file fs-verity
// digest set on a [Node] or the whole-image digest [WriteTo] returns.
type Digest = [DigestSize]byte

// imageDomainKey domain-separates the whole-image digest from
// per-file content digests, so the same bytes hashed in each role
// never collide.
var imageDomainKey = [32]byte{
	'l', 'c', 'f', 's', '.', 'i', 'm', 'a', 'g', 'e', 0, 0, 0, 0, 0, 0,
	0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0,
}

// contentDomainKey domain-separates per-file fs-verity digests
// (regular-file content streamed through [Node.ComputeFsverityFromStream]).
var contentDomainKey = [32]byte{
	'l', 'c', 'f', 's', '.', 'c', 'o', 'n', 't', 'e', 'n', 't', 0, 0, 0, 0,
	0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0,
}

// DigestContext is an opaque streaming digest: new / update / finalize
// / free, producing a 32-byte digest. It concretely realizes the
// fs-verity Merkle-tree primitive spec.md treats as an external
// collaborator, using a domain-separated keyed BLAKE3 hasher so this
// package is self-contained and testable without a kernel.
//
// A DigestContext is not safe for concurrent use.
type DigestContext struct {
	hasher *blake3.Hasher
}

// NewDigestContext returns a fresh per-file content digest context.
// Use [NewImageDigestContext] for the whole-image digest the
// serializer produces.
func NewDigestContext() *DigestContext {
	return newDigestContext(contentDomainKey)
}

// NewImageDigestContext returns a fresh whole-image digest context,
// used by [WriteTo] to cover every byte of the produced image exactly
// once.
func NewImageDigestContext() *DigestContext {
	return newDigestContext(imageDomainKey)
}

func newDigestContext(key [32]byte) *DigestContext {
	hasher, err := blake3.NewKeyed(key[:])
	if err != nil {
		panic("lcfs: BLAKE3 keyed hash initialization failed: " + err.Error())
	}
	return &DigestContext{hasher: hasher}
}

// Update feeds data into the digest. It never fails: [blake3.Hasher.Write]
// only returns errors for writers that can signal backpressure, which
// a pure hash accumulator never does.
func (d *DigestContext) Update(data []byte) {
	d.hasher.Write(data)
}

// Finalize returns the 32-byte digest of everything written so far.
// The context may continue to be updated afterward; Finalize does not
// reset accumulated state.
func (d *DigestContext) Finalize() Digest {
	var digest Digest
	sum := d.hasher.Sum(nil)
	copy(digest[:], sum)
	return digest
}

// Free releases the context's resources. The BLAKE3 hasher holds no
// unmanaged resources, so this is a no-op kept for symmetry with the
// new/update/finalize/free shape spec.md describes for the fs-verity
// primitive.
func (d *DigestContext) Free() {}
