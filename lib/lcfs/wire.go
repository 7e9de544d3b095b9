// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package lcfs

import "encoding/binary"

// On-disk format constants. Magic and version follow the composefs
// wire format this package targets; a reader that speaks that format
// can mount images this package produces.
const (
	magic   uint32 = 0xc078629a
	version uint32 = 1

	// MaxNameLength is the longest directory entry name accepted by
	// [Node.AddChild], in bytes.
	MaxNameLength = 255

	// DigestSize is the length in bytes of a content digest, as
	// produced by [DigestContext] and stored in an inode's digest
	// vdata reference.
	DigestSize = 32
)

// superblockSize is sizeof(superblock): version + magic + vdata_offset.
const superblockSize = 4 + 4 + 8

// inodeWireSize is sizeof(inode_wire): see writeInode for the field
// layout this constant must match exactly.
const inodeWireSize = 4 + 4 + 4 + 4 + 4 + 8 + 8 + 4 + 8 + 4 + (8 + 4) + (8 + 4) + (8 + 4)

// direntWireSize is sizeof(dirent): inode_num + name_offset + name_len
// + d_type + padding.
const direntWireSize = 4 + 4 + 1 + 1 + 2

// dirHeaderSize is sizeof(n_dirents).
const dirHeaderSize = 4

// xattrHeaderSize is sizeof(n_attr).
const xattrHeaderSize = 2

// xattrAttrSize is sizeof(key_length) + sizeof(value_length).
const xattrAttrSize = 2 + 2

// POSIX DT_* directory entry type tags, used in the on-disk dirent
// d_type field.
const (
	dtUnknown = 0
	dtFifo    = 1
	dtChr     = 2
	dtDir     = 4
	dtBlk     = 6
	dtReg     = 8
	dtLnk     = 10
	dtSock    = 12
)

// vdataRef is the on-disk (offset, length) reference into the
// variable-data region. An absent reference is the zero value.
type vdataRef struct {
	off uint64
	len uint32
}

// absent reports whether the reference points at nothing.
func (v vdataRef) absent() bool {
	return v.off == 0 && v.len == 0
}

// alignUp4 rounds n up to the next multiple of 4.
func alignUp4(n uint64) uint64 {
	return (n + 3) &^ 3
}

// putU16 appends a little-endian uint16.
func putU16(buf []byte, v uint16) []byte {
	var tmp [2]byte
	binary.LittleEndian.PutUint16(tmp[:], v)
	return append(buf, tmp[:]...)
}

// putU32 appends a little-endian uint32.
func putU32(buf []byte, v uint32) []byte {
	var tmp [4]byte
	binary.LittleEndian.PutUint32(tmp[:], v)
	return append(buf, tmp[:]...)
}

// putU64 appends a little-endian uint64.
func putU64(buf []byte, v uint64) []byte {
	var tmp [8]byte
	binary.LittleEndian.PutUint64(tmp[:], v)
	return append(buf, tmp[:]...)
}

// getU16, getU32, and getU64 read little-endian integers out of buf at
// offset off, the inverse of putU16/putU32/putU64. Used by the decoder
// in decode.go.
func getU16(buf []byte, off int) uint16 {
	return binary.LittleEndian.Uint16(buf[off : off+2])
}

func getU32(buf []byte, off int) uint32 {
	return binary.LittleEndian.Uint32(buf[off : off+4])
}

func getU64(buf []byte, off int) uint64 {
	return binary.LittleEndian.Uint64(buf[off : off+8])
}

// writeInode appends the wire encoding of one inode record. Field
// order and widths must match spec exactly: st_mode, st_nlink,
// st_uid, st_gid, st_rdev (all u32), st_size (u64), st_mtim_sec (u64),
// st_mtim_nsec (u32), st_ctim_sec (u64), st_ctim_nsec (u32), then the
// three vdata refs (variable_data, xattrs, digest), each {off u64,
// len u32}.
func writeInode(buf []byte, n *Node) []byte {
	buf = putU32(buf, n.Mode)
	buf = putU32(buf, n.Nlink)
	buf = putU32(buf, n.Uid)
	buf = putU32(buf, n.Gid)
	buf = putU32(buf, n.Rdev)
	buf = putU64(buf, n.Size)
	buf = putU64(buf, n.MtimeSec)
	buf = putU32(buf, n.MtimeNsec)
	buf = putU64(buf, n.CtimeSec)
	buf = putU32(buf, n.CtimeNsec)
	buf = putU64(buf, n.variableData.off)
	buf = putU32(buf, n.variableData.len)
	buf = putU64(buf, n.xattrsRef.off)
	buf = putU32(buf, n.xattrsRef.len)
	buf = putU64(buf, n.digestRef.off)
	buf = putU32(buf, n.digestRef.len)
	return buf
}

// dTypeForMode returns the POSIX DT_* tag for the file-type bits of
// mode.
func dTypeForMode(mode uint32) uint8 {
	switch mode & modeTypeMask {
	case ModeSymlink:
		return dtLnk
	case ModeDirectory:
		return dtDir
	case ModeRegular:
		return dtReg
	case ModeBlockDevice:
		return dtBlk
	case ModeCharDevice:
		return dtChr
	case ModeSocket:
		return dtSock
	case ModeFifo:
		return dtFifo
	default:
		return dtUnknown
	}
}
