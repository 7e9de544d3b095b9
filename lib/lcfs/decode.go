// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package lcfs

import "io"

// DecodedInode is the decoded form of one on-disk inode record. Num is
// the inode's position in the flat inode table ([ReadFrom] assigns it
// during parsing; it is not itself part of the wire record).
type DecodedInode struct {
	Num   uint32
	Mode  uint32
	Nlink uint32
	Uid   uint32
	Gid   uint32
	Rdev  uint32
	Size  uint64

	MtimeSec  uint64
	MtimeNsec uint32
	CtimeSec  uint64
	CtimeNsec uint32

	variableData vdataRef
	xattrsRef    vdataRef
	digestRef    vdataRef
}

// IsDir reports whether the inode's mode marks it as a directory.
func (d DecodedInode) IsDir() bool {
	return d.Mode&modeTypeMask == ModeDirectory
}

// DirEntry is one decoded directory entry: a name, the inode number it
// resolves to (already hard-link-resolved by the writer — see
// computeDirents), and the entry's POSIX file-type tag.
type DirEntry struct {
	InodeNum uint32
	Name     string
	DType    uint8
}

// Image is a parsed composefs image: the inode table decoded into
// memory plus a reference to the raw variable-data region, ready for
// on-demand dirent/xattr/payload/digest lookups by inode number.
//
// An Image is read-only and safe for concurrent use by multiple
// readers once returned from [ReadFrom].
type Image struct {
	inodes []DecodedInode
	vdata  []byte
}

// ReadFrom parses a complete composefs image from r into an [Image].
// It reads r to completion; the image format has no framing that
// would let it stop early.
func ReadFrom(r io.Reader) (*Image, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, newError("ReadFrom", KindIoError, "reading image", err)
	}

	if len(data) < superblockSize {
		return nil, newError("ReadFrom", KindInvalidArgument, "image shorter than superblock", nil)
	}

	gotVersion := getU32(data, 0)
	gotMagic := getU32(data, 4)
	dataOffset := getU64(data, 8)

	if gotMagic != magic {
		return nil, newError("ReadFrom", KindInvalidArgument, "bad magic number", nil)
	}
	if gotVersion != version {
		return nil, newError("ReadFrom", KindInvalidArgument, "unsupported version", nil)
	}
	if dataOffset < superblockSize || dataOffset > uint64(len(data)) {
		return nil, newError("ReadFrom", KindInvalidArgument, "vdata offset out of range", nil)
	}

	tableSize := dataOffset - superblockSize
	if tableSize%inodeWireSize != 0 {
		return nil, newError("ReadFrom", KindInvalidArgument, "inode table size is not a multiple of the inode record size", nil)
	}
	count := tableSize / inodeWireSize

	inodes := make([]DecodedInode, count)
	for i := range inodes {
		off := int(superblockSize + uint64(i)*inodeWireSize)
		inodes[i] = DecodedInode{
			Num:          uint32(i),
			Mode:         getU32(data, off+0),
			Nlink:        getU32(data, off+4),
			Uid:          getU32(data, off+8),
			Gid:          getU32(data, off+12),
			Rdev:         getU32(data, off+16),
			Size:         getU64(data, off+20),
			MtimeSec:     getU64(data, off+28),
			MtimeNsec:    getU32(data, off+36),
			CtimeSec:     getU64(data, off+40),
			CtimeNsec:    getU32(data, off+48),
			variableData: vdataRef{off: getU64(data, off+52), len: getU32(data, off+60)},
			xattrsRef:    vdataRef{off: getU64(data, off+64), len: getU32(data, off+72)},
			digestRef:    vdataRef{off: getU64(data, off+76), len: getU32(data, off+84)},
		}
	}

	return &Image{inodes: inodes, vdata: data[dataOffset:]}, nil
}

// InodeCount returns the number of inodes in the image. Inode 0 is
// always the root directory.
func (img *Image) InodeCount() int {
	return len(img.inodes)
}

// Inode returns the decoded inode record numbered num.
func (img *Image) Inode(num uint32) (DecodedInode, error) {
	if num >= uint32(len(img.inodes)) {
		return DecodedInode{}, newError("Inode", KindNotFound, "inode number out of range", nil)
	}
	return img.inodes[num], nil
}

// vdataSlice returns the bytes of ref within the variable-data region,
// validating that the reference lies within bounds.
func (img *Image) vdataSlice(ref vdataRef) ([]byte, error) {
	if ref.absent() {
		return nil, nil
	}
	end := ref.off + uint64(ref.len)
	if end > uint64(len(img.vdata)) || end < ref.off {
		return nil, newError("vdataSlice", KindInvalidArgument, "variable-data reference out of range", nil)
	}
	return img.vdata[ref.off:end], nil
}

// Payload returns the raw backing-store payload bytes for a regular
// file or symlink inode: the symlink target string, or the
// content-addressed backing path, verbatim as written. Returns nil for
// an inode with no payload (directories, devices, empty files).
func (img *Image) Payload(inode DecodedInode) ([]byte, error) {
	if inode.IsDir() {
		return nil, nil
	}
	return img.vdataSlice(inode.variableData)
}

// Dirents decodes the directory block of a directory inode. Fails with
// [KindNotDirectory] if inode is not a directory.
func (img *Image) Dirents(inode DecodedInode) ([]DirEntry, error) {
	if !inode.IsDir() {
		return nil, newError("Dirents", KindNotDirectory, "inode is not a directory", nil)
	}

	block, err := img.vdataSlice(inode.variableData)
	if err != nil {
		return nil, err
	}
	if len(block) == 0 {
		return nil, nil
	}
	if len(block) < dirHeaderSize {
		return nil, newError("Dirents", KindInvalidArgument, "directory block shorter than its header", nil)
	}

	n := int(getU32(block, 0))
	recordsEnd := dirHeaderSize + n*direntWireSize
	if recordsEnd > len(block) {
		return nil, newError("Dirents", KindInvalidArgument, "directory block truncated", nil)
	}

	entries := make([]DirEntry, n)
	for i := 0; i < n; i++ {
		off := dirHeaderSize + i*direntWireSize
		inodeNum := getU32(block, off+0)
		nameOffset := getU32(block, off+4)
		nameLen := int(block[off+8])
		dType := block[off+9]

		nameStart := recordsEnd + int(nameOffset)
		nameEnd := nameStart + nameLen
		if nameStart < recordsEnd || nameEnd > len(block) {
			return nil, newError("Dirents", KindInvalidArgument, "dirent name out of range", nil)
		}

		entries[i] = DirEntry{
			InodeNum: inodeNum,
			Name:     string(block[nameStart:nameEnd]),
			DType:    dType,
		}
	}

	return entries, nil
}

// Xattrs decodes the extended attributes of inode, in their stored
// (already sorted by key) order.
func (img *Image) Xattrs(inode DecodedInode) ([]Xattr, error) {
	block, err := img.vdataSlice(inode.xattrsRef)
	if err != nil {
		return nil, err
	}
	if len(block) == 0 {
		return nil, nil
	}
	if len(block) < xattrHeaderSize {
		return nil, newError("Xattrs", KindInvalidArgument, "xattr block shorter than its header", nil)
	}

	n := int(getU16(block, 0))
	attrTableEnd := xattrHeaderSize + n*xattrAttrSize
	if attrTableEnd > len(block) {
		return nil, newError("Xattrs", KindInvalidArgument, "xattr attribute table truncated", nil)
	}

	xattrs := make([]Xattr, n)
	dataPos := attrTableEnd
	for i := 0; i < n; i++ {
		off := xattrHeaderSize + i*xattrAttrSize
		keyLen := int(getU16(block, off+0))
		valLen := int(getU16(block, off+2))

		keyEnd := dataPos + keyLen
		valEnd := keyEnd + valLen
		if valEnd > len(block) {
			return nil, newError("Xattrs", KindInvalidArgument, "xattr data truncated", nil)
		}

		xattrs[i] = Xattr{
			Key:   string(block[dataPos:keyEnd]),
			Value: append([]byte(nil), block[keyEnd:valEnd]...),
		}
		dataPos = valEnd
	}

	return xattrs, nil
}

// Digest returns the content digest stored for inode, and whether one
// is present.
func (img *Image) Digest(inode DecodedInode) (Digest, bool, error) {
	block, err := img.vdataSlice(inode.digestRef)
	if err != nil {
		return Digest{}, false, err
	}
	if len(block) == 0 {
		return Digest{}, false, nil
	}
	if len(block) != DigestSize {
		return Digest{}, false, newError("Digest", KindInvalidArgument, "digest reference has the wrong length", nil)
	}

	var digest Digest
	copy(digest[:], block)
	return digest, true, nil
}
