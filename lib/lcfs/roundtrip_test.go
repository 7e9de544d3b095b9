// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package lcfs

import (
	"bytes"
	"testing"
)

// TestWriteToReadFromRoundTrip covers spec.md §8's round-trip property:
// decoding a written image reconstructs the same directory tree the
// writer canonicalized.
func TestWriteToReadFromRoundTrip(t *testing.T) {
	root := newDirNode()
	root.SetXattr("user.root", []byte("rootval"))

	dir := newDirNode()
	mustAddChild(t, root, dir, "dir")

	file := newFileNode()
	file.Size = 5
	file.Payload = "hello"
	file.SetXattr("user.file", []byte("fileval"))
	mustAddChild(t, dir, file, "hello.txt")

	link := NewNode()
	link.Mode = ModeSymlink
	link.Payload = "hello.txt"
	mustAddChild(t, dir, link, "link")

	alias := newFileNode()
	mustAddChild(t, root, alias, "alias")
	if err := alias.MakeHardlink(file); err != nil {
		t.Fatalf("MakeHardlink: %v", err)
	}

	var buf bytes.Buffer
	if _, err := WriteTo(root, &buf, WriteOptions{}); err != nil {
		t.Fatalf("WriteTo: %v", err)
	}

	img, err := ReadFrom(&buf)
	if err != nil {
		t.Fatalf("ReadFrom: %v", err)
	}

	if img.InodeCount() != 4 { // root, dir, file, link — alias collapses into file
		t.Fatalf("InodeCount = %d, want 4 (root, dir, file, link)", img.InodeCount())
	}

	rootDecoded, err := img.Inode(0)
	if err != nil {
		t.Fatalf("Inode(0): %v", err)
	}
	if !rootDecoded.IsDir() {
		t.Fatal("inode 0 is not a directory")
	}

	rootXattrs, err := img.Xattrs(rootDecoded)
	if err != nil {
		t.Fatalf("Xattrs(root): %v", err)
	}
	if len(rootXattrs) != 1 || rootXattrs[0].Key != "user.root" || string(rootXattrs[0].Value) != "rootval" {
		t.Errorf("root xattrs = %+v, want [{user.root rootval}]", rootXattrs)
	}

	rootDirents, err := img.Dirents(rootDecoded)
	if err != nil {
		t.Fatalf("Dirents(root): %v", err)
	}
	names := map[string]uint32{}
	for _, e := range rootDirents {
		names[e.Name] = e.InodeNum
	}
	if _, ok := names["dir"]; !ok {
		t.Error("root has no \"dir\" entry")
	}
	aliasInode, ok := names["alias"]
	if !ok {
		t.Fatal("root has no \"alias\" entry")
	}

	dirInodeNum, ok := names["dir"]
	if !ok {
		t.Fatal("root has no \"dir\" entry")
	}
	dirDecoded, err := img.Inode(dirInodeNum)
	if err != nil {
		t.Fatalf("Inode(dir): %v", err)
	}
	dirDirents, err := img.Dirents(dirDecoded)
	if err != nil {
		t.Fatalf("Dirents(dir): %v", err)
	}

	var fileInodeNum uint32
	var linkInodeNum uint32
	var foundFile, foundLink bool
	for _, e := range dirDirents {
		switch e.Name {
		case "hello.txt":
			fileInodeNum = e.InodeNum
			foundFile = true
		case "link":
			linkInodeNum = e.InodeNum
			foundLink = true
		}
	}
	if !foundFile || !foundLink {
		t.Fatalf("dir entries = %+v, missing hello.txt or link", dirDirents)
	}

	// "alias" at the root must resolve to the same inode number as
	// "hello.txt" under "dir" — the hard-link alias collapsed to its
	// target during canonicalization.
	if aliasInode != fileInodeNum {
		t.Errorf("alias inode = %d, file inode = %d, want equal", aliasInode, fileInodeNum)
	}

	fileDecoded, err := img.Inode(fileInodeNum)
	if err != nil {
		t.Fatalf("Inode(file): %v", err)
	}
	payload, err := img.Payload(fileDecoded)
	if err != nil {
		t.Fatalf("Payload(file): %v", err)
	}
	if string(payload) != "hello" {
		t.Errorf("file payload = %q, want %q", payload, "hello")
	}

	fileXattrs, err := img.Xattrs(fileDecoded)
	if err != nil {
		t.Fatalf("Xattrs(file): %v", err)
	}
	if len(fileXattrs) != 1 || fileXattrs[0].Key != "user.file" {
		t.Errorf("file xattrs = %+v, want one entry keyed user.file", fileXattrs)
	}

	linkDecoded, err := img.Inode(linkInodeNum)
	if err != nil {
		t.Fatalf("Inode(link): %v", err)
	}
	linkPayload, err := img.Payload(linkDecoded)
	if err != nil {
		t.Fatalf("Payload(link): %v", err)
	}
	if string(linkPayload) != "hello.txt" {
		t.Errorf("symlink payload = %q, want %q", linkPayload, "hello.txt")
	}
}

func TestReadFromRejectsBadMagic(t *testing.T) {
	var buf bytes.Buffer
	buf.Write(make([]byte, superblockSize))

	_, err := ReadFrom(&buf)
	if err == nil {
		t.Fatal("ReadFrom should reject a zeroed (bad-magic) superblock")
	}
}

func TestReadFromRejectsTruncatedInput(t *testing.T) {
	_, err := ReadFrom(bytes.NewReader([]byte{1, 2, 3}))
	if err == nil {
		t.Fatal("ReadFrom should reject input shorter than a superblock")
	}
}
