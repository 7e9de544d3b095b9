// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package lcfs

import (
	"bytes"
	"io"
)

// File-type bits within Node.Mode, matching the POSIX S_IFMT family.
// A Node's Mode may additionally carry permission bits (0o000-0o777);
// only the type bits below are interpreted by this package.
const (
	modeTypeMask uint32 = 0o170000

	ModeFifo        uint32 = 0o010000
	ModeCharDevice  uint32 = 0o020000
	ModeDirectory   uint32 = 0o040000
	ModeBlockDevice uint32 = 0o060000
	ModeRegular     uint32 = 0o100000
	ModeSymlink     uint32 = 0o120000
	ModeSocket      uint32 = 0o140000
)

// Xattr is a single extended attribute. Key and Value are copied by
// [Node.SetXattr]; callers may reuse their buffers afterward.
type Xattr struct {
	Key   string
	Value []byte
}

// Node represents one inode: a file, directory, symlink, device, or
// hard-link alias. Nodes are created detached with [NewNode] and
// attached to a directory with [Node.AddChild].
//
// Parent edges are non-owning. A new node holds one reference, owned
// by the caller; [Node.AddChild] hands that reference to the parent
// without incrementing it, and [Node.MakeHardlink] takes an extra
// reference on its target. A Node must have no parent when its last
// reference is dropped (see [Node.unref]).
type Node struct {
	Mode uint32
	Uid  uint32
	Gid  uint32
	Rdev uint32
	Size uint64
	// Nlink is overwritten by the canonicalizer for directories
	// (2 + number of subdirectory children); callers may set it
	// explicitly for non-directory nodes (e.g. a hard-link target's
	// count after [Node.MakeHardlink] calls).
	Nlink     uint32
	MtimeSec  uint64
	MtimeNsec uint32
	CtimeSec  uint64
	CtimeNsec uint32

	// Payload is the symlink target (for symlinks) or the opaque
	// backing-file reference (for regular files). The builder stores
	// it verbatim; it never reads the referenced content.
	Payload string

	// digest and digestSet back [Node.SetFsverityDigest] /
	// [Node.GetFsverityDigest].
	digest    [DigestSize]byte
	digestSet bool

	name     string
	parent   *Node
	children []*Node
	xattrs   []Xattr

	// linkTo is set by [Node.MakeHardlink]: this node is a hard-link
	// alias for linkTo, which is always a non-aliased target after
	// normalization.
	linkTo *Node

	refCount int

	// inodeNum, inTree, and the vdata refs below are populated by
	// the canonicalizer and the variable-data computer during
	// [WriteTo]. They are zero on a freshly built tree.
	inodeNum uint32
	inTree   bool

	variableData vdataRef
	xattrsRef    vdataRef
	digestRef    vdataRef
}

// NewNode returns a fresh detached node with Nlink 1 and Mode 0. The
// caller is expected to set Mode (at minimum the file-type bits)
// before attaching or serializing the node.
func NewNode() *Node {
	return &Node{Nlink: 1, refCount: 1}
}

// IsDir reports whether the node's mode marks it as a directory.
func (n *Node) IsDir() bool {
	return n.Mode&modeTypeMask == ModeDirectory
}

// Name returns the name this node was attached under, or "" if
// detached.
func (n *Node) Name() string {
	return n.name
}

// Parent returns the node's parent, or nil if detached.
func (n *Node) Parent() *Node {
	return n.parent
}

// Children returns the node's children in their current (not
// necessarily canonical) order. The returned slice must not be
// mutated by the caller.
func (n *Node) Children() []*Node {
	return n.children
}

// AddChild attaches child to parent under name. On success, child's
// name and parent are set and parent retains a reference.
//
// Fails with a [KindNotDirectory] error if parent is not a directory,
// [KindNameTooLong] if name exceeds [MaxNameLength] bytes,
// [KindAlreadyAttached] if child already has a name, or [KindExists]
// if a sibling already uses name. On failure, neither node's state is
// changed.
func (parent *Node) AddChild(child *Node, name string) error {
	if !parent.IsDir() {
		return newError("AddChild", KindNotDirectory, "parent is not a directory", nil)
	}
	if len(name) == 0 {
		return newError("AddChild", KindInvalidArgument, "name must not be empty", nil)
	}
	if len(name) > MaxNameLength {
		return newError("AddChild", KindNameTooLong, "name exceeds maximum length", nil)
	}
	if child.name != "" || child.parent != nil {
		return newError("AddChild", KindAlreadyAttached, "child already has a parent", nil)
	}
	if parent.LookupChild(name) != nil {
		return newError("AddChild", KindExists, "a child named "+name+" already exists", nil)
	}

	child.name = name
	child.parent = parent
	parent.children = append(parent.children, child)
	return nil
}

// RemoveChild detaches the child named name from parent, dropping one
// reference. The node may survive (if referenced elsewhere, e.g. as a
// hard-link target) and be re-attached later.
//
// Fails with [KindNotDirectory] if parent is not a directory or
// [KindNotFound] if no child has that name.
func (parent *Node) RemoveChild(name string) error {
	if !parent.IsDir() {
		return newError("RemoveChild", KindNotDirectory, "parent is not a directory", nil)
	}

	for i, child := range parent.children {
		if child.name != name {
			continue
		}
		parent.children = append(parent.children[:i], parent.children[i+1:]...)
		child.name = ""
		child.parent = nil
		child.unref()
		return nil
	}

	return newError("RemoveChild", KindNotFound, "no child named "+name, nil)
}

// LookupChild returns the child named name, or nil if none exists.
func (parent *Node) LookupChild(name string) *Node {
	for _, child := range parent.children {
		if child.name == name {
			return child
		}
	}
	return nil
}

// MakeHardlink turns node into a hard-link alias of target: node
// keeps its own attributes but will be emitted only as a directory
// entry referring to target's inode, never as its own inode. The
// source node keeps its own mode, times, and other attributes, but
// those are not serialized — only target's inode is written.
//
// target is normalized by following any existing hard-link chain
// first. Fails with [KindInvalidArgument] if node or the normalized
// target is a directory (hard-linking directories is POSIX-illegal),
// or if chasing the chain would cycle.
func (node *Node) MakeHardlink(target *Node) error {
	if node.IsDir() {
		return newError("MakeHardlink", KindInvalidArgument, "cannot hard-link a directory", nil)
	}

	resolved, err := followLinks(target)
	if err != nil {
		return newError("MakeHardlink", KindInvalidArgument, "resolving hard-link target", err)
	}
	if resolved.IsDir() {
		return newError("MakeHardlink", KindInvalidArgument, "cannot hard-link to a directory", nil)
	}

	resolved.refCount++
	node.linkTo = resolved
	resolved.Nlink++
	return nil
}

// followLinks chases a hard-link chain iteratively to its
// non-aliased target, guarding against cycles with a visited set. The
// original C implementation recurses here; spec.md flags that as a
// robustness concern for pathological input, so this walk is
// iterative.
func followLinks(node *Node) (*Node, error) {
	visited := map[*Node]bool{}
	current := node
	for current.linkTo != nil {
		if visited[current] {
			return nil, newError("followLinks", KindInvalidArgument, "hard-link chain cycles", nil)
		}
		visited[current] = true
		current = current.linkTo
	}
	return current, nil
}

// SetXattr sets the extended attribute named key to value, replacing
// any existing value for that key. Both key and value are copied.
func (n *Node) SetXattr(key string, value []byte) {
	valueCopy := append([]byte(nil), value...)
	for i := range n.xattrs {
		if n.xattrs[i].Key == key {
			n.xattrs[i].Value = valueCopy
			return
		}
	}
	n.xattrs = append(n.xattrs, Xattr{Key: key, Value: valueCopy})
}

// GetXattr returns the value of the extended attribute named key and
// true, or nil and false if not set.
func (n *Node) GetXattr(key string) ([]byte, bool) {
	for _, x := range n.xattrs {
		if x.Key == key {
			return x.Value, true
		}
	}
	return nil, false
}

// UnsetXattr removes the extended attribute named key. Returns a
// [KindNotFound] error if key was not set, nil otherwise.
//
// The C source this package generalizes (lcfs_node_unset_xattr)
// returns -1 unconditionally, even on success — spec.md §9 flags this
// as an apparent bug and resolves it for the reimplementation: success
// returns nil.
func (n *Node) UnsetXattr(key string) error {
	for i := range n.xattrs {
		if n.xattrs[i].Key != key {
			continue
		}
		n.xattrs = append(n.xattrs[:i], n.xattrs[i+1:]...)
		return nil
	}
	return newError("UnsetXattr", KindNotFound, "no xattr named "+key, nil)
}

// Xattrs returns the node's extended attributes in their current
// (not necessarily canonical) order. The returned slice must not be
// mutated.
func (n *Node) Xattrs() []Xattr {
	return n.xattrs
}

// SetFsverityDigest sets the node's 32-byte content digest directly.
func (n *Node) SetFsverityDigest(digest [DigestSize]byte) {
	n.digest = digest
	n.digestSet = true
}

// GetFsverityDigest returns the node's content digest and true, or
// the zero digest and false if unset.
func (n *Node) GetFsverityDigest() ([DigestSize]byte, bool) {
	return n.digest, n.digestSet
}

// ComputeFsverityFromStream streams r through a fresh [DigestContext]
// and sets the result as the node's content digest.
func (n *Node) ComputeFsverityFromStream(r io.Reader) error {
	ctx := NewDigestContext()
	buf := make([]byte, 4096)
	for {
		count, err := r.Read(buf)
		if count > 0 {
			ctx.Update(buf[:count])
		}
		if err != nil {
			if err == io.EOF {
				break
			}
			return newError("ComputeFsverityFromStream", KindNoData, "reading content", err)
		}
	}
	n.SetFsverityDigest(ctx.Finalize())
	return nil
}

// ref increments the node's reference count.
func (n *Node) ref() *Node {
	n.refCount++
	return n
}

// unref decrements the node's reference count, freeing the node's
// children and hard-link reference recursively when it reaches zero.
// A node must have no parent when freed.
func (n *Node) unref() {
	n.refCount--
	if n.refCount > 0 {
		return
	}
	if n.parent != nil {
		panic("lcfs: node freed while still attached to a parent")
	}

	for _, child := range n.children {
		child.parent = nil
		child.unref()
	}
	n.children = nil

	if n.linkTo != nil {
		n.linkTo.unref()
		n.linkTo = nil
	}
}

// cmpNodeNames orders two nodes by bytewise comparison of their
// names, matching the canonical order spec.md §4.2 requires.
func cmpNodeNames(a, b *Node) int {
	return bytes.Compare([]byte(a.name), []byte(b.name))
}

// cmpXattrKeys orders two xattrs by bytewise comparison of their keys.
func cmpXattrKeys(a, b Xattr) int {
	return bytes.Compare([]byte(a.Key), []byte(b.Key))
}
