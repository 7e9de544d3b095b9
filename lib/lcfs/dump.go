// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package lcfs

import "github.com/lcfs-go/lcfs/lib/codec"

// dumpNode is the CBOR-serializable projection of one canonicalized
// node, used by [DumpTree] for human/tool inspection of a live
// build-time tree (cmd/lcfs-dump has its own projection of a decoded
// image). It carries only tree-level content (not computed vdata
// byte offsets), so two semantically equal trees dump identically
// regardless of dedup or arena layout — a canonicality check
// independent of the byte-exact on-disk invariant WriteTo provides.
type dumpNode struct {
	Inode    uint32      `cbor:"inode"`
	Name     string      `cbor:"name,omitempty"`
	Mode     uint32      `cbor:"mode"`
	Uid      uint32      `cbor:"uid"`
	Gid      uint32      `cbor:"gid"`
	Rdev     uint32      `cbor:"rdev,omitempty"`
	Size     uint64      `cbor:"size,omitempty"`
	Nlink    uint32      `cbor:"nlink"`
	Payload  string      `cbor:"payload,omitempty"`
	Digest   []byte      `cbor:"digest,omitempty"`
	LinkTo   *uint32     `cbor:"link_to,omitempty"`
	Xattrs   []dumpXattr `cbor:"xattrs,omitempty"`
	Children []*dumpNode `cbor:"children,omitempty"`
}

type dumpXattr struct {
	Key   string `cbor:"key"`
	Value []byte `cbor:"value"`
}

// DumpTree canonicalizes root's tree (the same pass [WriteTo] runs)
// and marshals it to CBOR using Core Deterministic Encoding. The
// tree's observable node state (inode numbers, sort order, directory
// link counts) is mutated exactly as WriteTo would mutate it.
func DumpTree(root *Node) ([]byte, error) {
	if _, _, err := computeTree(root); err != nil {
		return nil, err
	}

	projected := projectNode(root)
	data, err := codec.Marshal(projected)
	if err != nil {
		return nil, newError("DumpTree", KindIoError, "marshaling tree to CBOR", err)
	}
	return data, nil
}

func projectNode(n *Node) *dumpNode {
	d := &dumpNode{
		Inode: n.inodeNum,
		Name:  n.name,
		Mode:  n.Mode,
		Uid:   n.Uid,
		Gid:   n.Gid,
		Rdev:  n.Rdev,
		Size:  n.Size,
		Nlink: n.Nlink,
	}

	if n.linkTo != nil {
		linkInode := n.linkTo.inodeNum
		d.LinkTo = &linkInode
		return d
	}

	d.Payload = n.Payload
	if n.digestSet {
		d.Digest = append([]byte(nil), n.digest[:]...)
	}
	for _, x := range n.xattrs {
		d.Xattrs = append(d.Xattrs, dumpXattr{Key: x.Key, Value: x.Value})
	}
	for _, child := range n.children {
		d.Children = append(d.Children, projectNode(child))
	}

	return d
}
