// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package lcfs

// computeVariableData visits every node in canonical order and packs
// its directory block, symlink/regular-file payload, and content
// digest into arena. This is spec.md §4.4; xattrs are encoded
// separately by computeXattrs (§4.5) because they use both dedup and
// align flags together.
func computeVariableData(order []*Node, arena *vdataArena) error {
	for _, node := range order {
		switch {
		case node.IsDir():
			ref, err := computeDirents(node, arena)
			if err != nil {
				return err
			}
			node.variableData = ref

		case node.Mode&modeTypeMask == ModeRegular:
			// Empty files must never carry a payload reference, even
			// if one was set, so that two empty files canonicalize
			// identically regardless of stray payload strings.
			if node.Size != 0 && node.Payload != "" {
				node.variableData = arena.append([]byte(node.Payload), appendDedup)
			}

		case node.Mode&modeTypeMask == ModeSymlink:
			if node.Payload != "" {
				node.variableData = arena.append([]byte(node.Payload), appendDedup)
			}
		}

		if node.digestSet {
			node.digestRef = arena.append(node.digest[:], appendDedup)
		}
	}

	return nil
}

// computeDirents builds the directory block for node: a header, the
// packed dirent records (referring to each child's hard-link-resolved
// target inode and d_type), then the concatenated name bytes with no
// separators. Returns the zero reference for a childless directory.
func computeDirents(node *Node, arena *vdataArena) (vdataRef, error) {
	if len(node.children) == 0 {
		return vdataRef{}, nil
	}

	var namesSize int
	for _, child := range node.children {
		if len(child.name) > MaxNameLength {
			return vdataRef{}, newError("computeDirents", KindNameTooLong,
				"child name "+child.name+" exceeds maximum length", nil)
		}
		namesSize += len(child.name)
	}

	bufLen := dirHeaderSize + len(node.children)*direntWireSize + namesSize
	buf := make([]byte, 0, bufLen)
	buf = putU32(buf, uint32(len(node.children)))

	nameOffset := uint32(0)
	var names []byte
	for _, child := range node.children {
		target, err := followLinks(child)
		if err != nil {
			return vdataRef{}, newError("computeDirents", KindInvalidArgument,
				"resolving hard-link target for "+child.name, err)
		}

		buf = putU32(buf, target.inodeNum)
		buf = putU32(buf, nameOffset)
		buf = append(buf, byte(len(child.name)))
		buf = append(buf, dTypeForMode(target.Mode))
		buf = putU16(buf, 0) // padding

		names = append(names, child.name...)
		nameOffset += uint32(len(child.name))
	}
	buf = append(buf, names...)

	return arena.append(buf, appendAlign), nil
}

// computeXattrs encodes each node's extended attributes (already
// sorted by key by the canonicalizer) into a header-plus-data block
// and records the result as the inode's xattrs reference. Nodes with
// no xattrs get the zero reference. This is spec.md §4.5.
func computeXattrs(order []*Node, arena *vdataArena) {
	for _, node := range order {
		if len(node.xattrs) == 0 {
			continue
		}

		var dataLength int
		for _, x := range node.xattrs {
			dataLength += len(x.Key) + len(x.Value)
		}

		buf := make([]byte, 0, xattrHeaderSize+len(node.xattrs)*xattrAttrSize+dataLength)
		buf = putU16(buf, uint16(len(node.xattrs)))
		for _, x := range node.xattrs {
			buf = putU16(buf, uint16(len(x.Key)))
			buf = putU16(buf, uint16(len(x.Value)))
		}
		for _, x := range node.xattrs {
			buf = append(buf, x.Key...)
			buf = append(buf, x.Value...)
		}

		node.xattrsRef = arena.append(buf, appendDedup|appendAlign)
	}
}
