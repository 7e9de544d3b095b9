// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package lcfs

import (
	"errors"
	"testing"
)

func TestComputeTreeAssignsContiguousInodeNumbers(t *testing.T) {
	root := newDirNode()
	a := newFileNode()
	b := newFileNode()
	mustAddChild(t, root, a, "b")
	mustAddChild(t, root, b, "a")

	order, size, err := computeTree(root)
	if err != nil {
		t.Fatalf("computeTree: %v", err)
	}
	if len(order) != 3 {
		t.Fatalf("order has %d nodes, want 3", len(order))
	}
	for i, node := range order {
		if node.inodeNum != uint32(i) {
			t.Errorf("order[%d].inodeNum = %d, want %d", i, node.inodeNum, i)
		}
	}
	if size != uint64(len(order))*inodeWireSize {
		t.Errorf("inodeTableSize = %d, want %d", size, uint64(len(order))*inodeWireSize)
	}
}

func TestComputeTreeSortsChildrenByName(t *testing.T) {
	root := newDirNode()
	b := newFileNode()
	a := newFileNode()
	mustAddChild(t, root, b, "bravo")
	mustAddChild(t, root, a, "alpha")

	if _, _, err := computeTree(root); err != nil {
		t.Fatalf("computeTree: %v", err)
	}

	if root.children[0].name != "alpha" || root.children[1].name != "bravo" {
		t.Errorf("children not sorted: got %q, %q", root.children[0].name, root.children[1].name)
	}
}

func TestComputeTreeSortsXattrsByKey(t *testing.T) {
	root := newDirNode()
	root.SetXattr("user.zzz", []byte("z"))
	root.SetXattr("user.aaa", []byte("a"))

	if _, _, err := computeTree(root); err != nil {
		t.Fatalf("computeTree: %v", err)
	}

	if root.xattrs[0].Key != "user.aaa" || root.xattrs[1].Key != "user.zzz" {
		t.Errorf("xattrs not sorted: got %q, %q", root.xattrs[0].Key, root.xattrs[1].Key)
	}
}

func TestComputeTreeDirectoryNlink(t *testing.T) {
	root := newDirNode()
	subdir := newDirNode()
	file := newFileNode()
	mustAddChild(t, root, subdir, "sub")
	mustAddChild(t, root, file, "file")

	if _, _, err := computeTree(root); err != nil {
		t.Fatalf("computeTree: %v", err)
	}

	if root.Nlink != 3 { // 2 + one subdirectory child
		t.Errorf("root.Nlink = %d, want 3", root.Nlink)
	}
	if subdir.Nlink != 2 { // 2 + zero subdirectory children
		t.Errorf("subdir.Nlink = %d, want 2", subdir.Nlink)
	}
}

func TestComputeTreeRejectsChildrenOnNonDirectory(t *testing.T) {
	file := newFileNode()
	file.children = append(file.children, newFileNode())

	_, _, err := computeTree(file)
	if !errors.Is(err, ErrInvalidArgument) {
		t.Fatalf("computeTree on non-directory with children: got %v, want ErrInvalidArgument", err)
	}
}

func TestComputeTreeExcludesHardlinkAliasFromInodeTable(t *testing.T) {
	root := newDirNode()
	target := newFileNode()
	alias := newFileNode()
	mustAddChild(t, root, target, "x")
	mustAddChild(t, root, alias, "y")

	if err := alias.MakeHardlink(target); err != nil {
		t.Fatalf("MakeHardlink: %v", err)
	}

	order, _, err := computeTree(root)
	if err != nil {
		t.Fatalf("computeTree: %v", err)
	}

	for _, node := range order {
		if node == alias {
			t.Fatal("hard-link alias appears in the inode table")
		}
	}
	if len(order) != 2 { // root + target only
		t.Fatalf("order has %d nodes, want 2 (root, target)", len(order))
	}
}

func TestComputeTreePanicsOnSharedSubtree(t *testing.T) {
	root := newDirNode()
	shared := newDirNode()
	parentA := newDirNode()
	parentB := newDirNode()
	mustAddChild(t, root, parentA, "a")
	mustAddChild(t, root, parentB, "b")

	// Attach the same directory node under two different parents by
	// bypassing AddChild's already-attached guard, to exercise the
	// canonicalizer's own cycle/shared-subtree assertion.
	parentA.children = append(parentA.children, shared)
	parentB.children = append(parentB.children, shared)

	defer func() {
		if recover() == nil {
			t.Fatal("computeTree did not panic on shared subtree")
		}
	}()
	computeTree(root)
}

func mustAddChild(t *testing.T, parent, child *Node, name string) {
	t.Helper()
	if err := parent.AddChild(child, name); err != nil {
		t.Fatalf("AddChild(%q): %v", name, err)
	}
}
