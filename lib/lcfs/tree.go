// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package lcfs

import "sort"

// computeTree performs the single breadth-first canonicalization pass
// described in spec.md §4.2: it assigns contiguous inode numbers in
// visitation order, sorts each directory's children by name and
// xattrs by key, and fixes up directory link counts. It returns the
// nodes in canonical order (inodeNum == index into the slice) and the
// total size the flat inode table will occupy.
//
// Fails with [KindInvalidArgument] if a non-directory node has
// children. A child already marked in-tree (a shared subtree or
// cycle) trips an assertion panic, matching the C source's debug
// assert — such input violates the documented tree invariant and is
// a programming error, not a recoverable runtime condition.
func computeTree(root *Node) ([]*Node, uint64, error) {
	root.inTree = true
	queue := []*Node{root}
	var order []*Node
	var inodeTableSize uint64

	for len(queue) > 0 {
		node := queue[0]
		queue = queue[1:]

		if !node.IsDir() && len(node.children) != 0 {
			return nil, 0, newError("computeTree", KindInvalidArgument,
				"non-directory node "+node.name+" has children", nil)
		}

		if node.IsDir() {
			nlink := uint32(2)
			for _, child := range node.children {
				if child.IsDir() {
					nlink++
				}
			}
			node.Nlink = nlink
		}

		sort.Slice(node.children, func(i, j int) bool {
			return cmpNodeNames(node.children[i], node.children[j]) < 0
		})
		sort.Slice(node.xattrs, func(i, j int) bool {
			return cmpXattrKeys(node.xattrs[i], node.xattrs[j]) < 0
		})

		// A hard-link alias is never serialized as its own inode: its
		// directory entry refers to the target's inode number (see
		// computeDirents), so the alias itself gets no inode table
		// slot and no inode number of its own. Per spec.md §8
		// scenario 3 ("/y appears only as a dirent, not as a
		// separate inode"), it is also excluded from the subtree
		// walk — a hard-link target can never be a directory (see
		// MakeHardlink), so it has no children to (not) enqueue.
		if node.linkTo != nil {
			continue
		}

		node.inodeNum = uint32(len(order))
		order = append(order, node)
		inodeTableSize += inodeWireSize

		for _, child := range node.children {
			if child.inTree {
				panic("lcfs: child already in tree (cycle or shared subtree)")
			}
			child.inTree = true
			queue = append(queue, child)
		}
	}

	return order, inodeTableSize, nil
}
