// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package lcfsverify

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"syscall"
	"time"

	gofuse "github.com/hanwen/go-fuse/v2/fs"
	"github.com/hanwen/go-fuse/v2/fuse"

	"github.com/lcfs-go/lcfs/lib/lcfs"
)

// Options configures the verification mount.
type Options struct {
	// Image is the decoded composefs image to expose. Required.
	Image *lcfs.Image

	// Mountpoint is the directory where the filesystem is mounted.
	// Created if it does not exist.
	Mountpoint string

	// AllowOther permits other users, including root, to access the
	// mount. Requires user_allow_other in /etc/fuse.conf.
	AllowOther bool

	// Logger receives diagnostic messages. If nil, a text logger on
	// stderr is used that emits only error-level messages.
	Logger *slog.Logger
}

// Mount mounts image's decoded tree read-only at options.Mountpoint.
// The caller must call Unmount on the returned server when done.
func Mount(options Options) (*fuse.Server, error) {
	if options.Image == nil {
		return nil, fmt.Errorf("image is required")
	}
	if options.Mountpoint == "" {
		return nil, fmt.Errorf("mountpoint is required")
	}
	if options.Logger == nil {
		options.Logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
			Level: slog.LevelError,
		}))
	}

	if err := os.MkdirAll(options.Mountpoint, 0o755); err != nil {
		return nil, fmt.Errorf("creating mountpoint %s: %w", options.Mountpoint, err)
	}

	rootDecoded, err := options.Image.Inode(0)
	if err != nil {
		return nil, fmt.Errorf("reading root inode: %w", err)
	}

	reg := &registry{img: options.Image, cache: make(map[uint32]*gofuse.Inode)}
	root := &composefsNode{registry: reg, decoded: rootDecoded}

	entryTimeout := time.Second
	attrTimeout := time.Second

	server, err := gofuse.Mount(options.Mountpoint, root, &gofuse.Options{
		EntryTimeout: &entryTimeout,
		AttrTimeout:  &attrTimeout,
		MountOptions: fuse.MountOptions{
			FsName:     "lcfsverify",
			Name:       "lcfs",
			AllowOther: options.AllowOther,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("mounting FUSE filesystem at %s: %w", options.Mountpoint, err)
	}

	reg.mu.Lock()
	reg.cache[0] = &root.Inode
	reg.mu.Unlock()

	options.Logger.Info("composefs verification filesystem mounted", "mountpoint", options.Mountpoint)
	return server, nil
}

// registry hands out a single *gofuse.Inode per composefs inode
// number, so two directory entries referring to the same number (a
// hard-link pair) resolve to the same kernel inode instead of two
// independent ones.
type registry struct {
	img *lcfs.Image

	mu    sync.Mutex
	cache map[uint32]*gofuse.Inode
}

func (r *registry) inodeFor(ctx context.Context, parent *gofuse.Inode, num uint32) (*gofuse.Inode, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if cached, ok := r.cache[num]; ok {
		return cached, nil
	}

	decoded, err := r.img.Inode(num)
	if err != nil {
		return nil, err
	}

	child := parent.NewPersistentInode(ctx, &composefsNode{registry: r, decoded: decoded}, gofuse.StableAttr{Mode: decoded.Mode})
	r.cache[num] = child
	return child, nil
}

// composefsNode presents one decoded composefs inode through the
// go-fuse low-level node interfaces. The same struct shape serves
// directories, regular files, symlinks, and devices; which interfaces
// actually get called depends on decoded.Mode.
type composefsNode struct {
	gofuse.Inode
	registry *registry
	decoded  lcfs.DecodedInode
}

var (
	_ gofuse.InodeEmbedder  = (*composefsNode)(nil)
	_ gofuse.NodeLookuper   = (*composefsNode)(nil)
	_ gofuse.NodeReaddirer  = (*composefsNode)(nil)
	_ gofuse.NodeGetattrer  = (*composefsNode)(nil)
	_ gofuse.NodeOpener     = (*composefsNode)(nil)
	_ gofuse.NodeReader     = (*composefsNode)(nil)
	_ gofuse.NodeReadlinker = (*composefsNode)(nil)
)

func (n *composefsNode) Lookup(ctx context.Context, name string, out *fuse.EntryOut) (*gofuse.Inode, syscall.Errno) {
	if !n.decoded.IsDir() {
		return nil, syscall.ENOTDIR
	}

	entries, err := n.registry.img.Dirents(n.decoded)
	if err != nil {
		return nil, syscall.EIO
	}

	for _, entry := range entries {
		if entry.Name != name {
			continue
		}

		childDecoded, err := n.registry.img.Inode(entry.InodeNum)
		if err != nil {
			return nil, syscall.EIO
		}
		child, err := n.registry.inodeFor(ctx, &n.Inode, entry.InodeNum)
		if err != nil {
			return nil, syscall.EIO
		}

		out.Mode = childDecoded.Mode
		out.Size = childDecoded.Size
		out.Nlink = childDecoded.Nlink
		return child, 0
	}

	return nil, syscall.ENOENT
}

func (n *composefsNode) Readdir(ctx context.Context) (gofuse.DirStream, syscall.Errno) {
	if !n.decoded.IsDir() {
		return nil, syscall.ENOTDIR
	}

	entries, err := n.registry.img.Dirents(n.decoded)
	if err != nil {
		return nil, syscall.EIO
	}

	out := make([]fuse.DirEntry, 0, len(entries))
	for _, entry := range entries {
		childDecoded, err := n.registry.img.Inode(entry.InodeNum)
		if err != nil {
			return nil, syscall.EIO
		}
		out = append(out, fuse.DirEntry{
			Name: entry.Name,
			Mode: childDecoded.Mode,
			Ino:  uint64(entry.InodeNum),
		})
	}

	return &sliceDirStream{entries: out}, 0
}

func (n *composefsNode) Getattr(ctx context.Context, f gofuse.FileHandle, out *fuse.AttrOut) syscall.Errno {
	out.Mode = n.decoded.Mode
	out.Size = n.decoded.Size
	out.Nlink = n.decoded.Nlink
	out.Uid = n.decoded.Uid
	out.Gid = n.decoded.Gid
	out.Rdev = n.decoded.Rdev
	out.Mtime = n.decoded.MtimeSec
	out.Mtimensec = n.decoded.MtimeNsec
	out.Ctime = n.decoded.CtimeSec
	out.Ctimensec = n.decoded.CtimeNsec
	return 0
}

func (n *composefsNode) Open(ctx context.Context, flags uint32) (gofuse.FileHandle, uint32, syscall.Errno) {
	if flags&(syscall.O_WRONLY|syscall.O_RDWR) != 0 {
		return nil, 0, syscall.EROFS
	}
	return nil, fuse.FOPEN_KEEP_CACHE, 0
}

// Read returns the raw backing-store payload bytes stored for this
// inode — a symlink target or a content-addressed path, never actual
// file content. This package verifies tree structure, not content
// reconstruction.
func (n *composefsNode) Read(ctx context.Context, f gofuse.FileHandle, dest []byte, off int64) (fuse.ReadResult, syscall.Errno) {
	payload, err := n.registry.img.Payload(n.decoded)
	if err != nil {
		return nil, syscall.EIO
	}
	if off >= int64(len(payload)) {
		return fuse.ReadResultData(nil), 0
	}

	end := off + int64(len(dest))
	if end > int64(len(payload)) {
		end = int64(len(payload))
	}
	return fuse.ReadResultData(payload[off:end]), 0
}

func (n *composefsNode) Readlink(ctx context.Context) ([]byte, syscall.Errno) {
	payload, err := n.registry.img.Payload(n.decoded)
	if err != nil {
		return nil, syscall.EIO
	}
	return payload, 0
}

// sliceDirStream implements gofuse.DirStream from a fixed slice of
// entries.
type sliceDirStream struct {
	entries []fuse.DirEntry
	index   int
}

func (s *sliceDirStream) HasNext() bool {
	return s.index < len(s.entries)
}

func (s *sliceDirStream) Next() (fuse.DirEntry, syscall.Errno) {
	if s.index >= len(s.entries) {
		return fuse.DirEntry{}, syscall.EINVAL
	}
	entry := s.entries[s.index]
	s.index++
	return entry, 0
}

func (s *sliceDirStream) Close() {}
