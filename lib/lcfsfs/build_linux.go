// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

//go:build linux

package lcfsfs

import (
	"fmt"
	"os"

	"golang.org/x/sys/unix"

	"github.com/lcfs-go/lcfs/lib/lcfs"
)

// pathError records the deepest offending path of a failed ingestion,
// assembled incrementally as the recursive build unwinds — the Go
// equivalent of the C source's maybe_join_path(fname, failed_subpath).
type pathError struct {
	path string
	err  error
}

func (e *pathError) Error() string {
	return fmt.Sprintf("lcfsfs: ingesting %s: %v", e.path, e.err)
}

func (e *pathError) Unwrap() error {
	return e.err
}

// wrapPath prepends name to err's recorded path, or starts a fresh
// pathError if err has not been annotated yet.
func wrapPath(name string, err error) error {
	if pe, ok := err.(*pathError); ok {
		pe.path = name + "/" + pe.path
		return pe
	}
	return &pathError{path: name, err: err}
}

// BuildPath ingests the directory tree rooted at path on the host
// filesystem into a fresh, detached [lcfs.Node] tree. It is equivalent
// to Build(unix.AT_FDCWD, path, flags).
func BuildPath(path string, flags lcfs.BuildFlags) (*lcfs.Node, error) {
	return Build(unix.AT_FDCWD, path, flags)
}

// Build ingests the file or directory named fname relative to dirfd,
// recursing into subdirectories. flags is validated up front and
// rejects unknown bits with a [lcfs.KindInvalidArgument]-equivalent
// error (see [lcfs.BuildFlags.Validate]).
//
// On failure, the returned error unwraps to the underlying cause and
// its Error() text names the path of the file that triggered it, as a
// "/"-joined string starting at fname, for diagnostics. The returned node is always nil on
// failure — nothing partially built is leaked to the caller.
func Build(dirfd int, fname string, flags lcfs.BuildFlags) (*lcfs.Node, error) {
	if err := flags.Validate(); err != nil {
		return nil, err
	}

	node, err := loadNodeFromFile(dirfd, fname, flags)
	if err != nil {
		return nil, wrapPath(fname, err)
	}

	if !node.IsDir() {
		return node, nil
	}

	subfd, err := unix.Openat(dirfd, fname, unix.O_RDONLY|unix.O_NOFOLLOW|unix.O_CLOEXEC|unix.O_DIRECTORY, 0)
	if err != nil {
		return nil, wrapPath(fname, fmt.Errorf("opening directory: %w", err))
	}

	// os.File takes ownership of subfd; closing dir closes it.
	dir := os.NewFile(uintptr(subfd), fname)
	defer dir.Close()

	entries, err := dir.ReadDir(-1)
	if err != nil {
		return nil, wrapPath(fname, fmt.Errorf("reading directory entries: %w", err))
	}

	rawDirfd := int(dir.Fd())
	for _, entry := range entries {
		name := entry.Name()
		if name == "." || name == ".." {
			continue
		}

		entryType := entry.Type()
		if entryType&os.ModeDevice != 0 && flags&lcfs.BuildSkipDevices != 0 {
			continue
		}

		var child *lcfs.Node
		if entryType.IsDir() {
			child, err = Build(rawDirfd, name, flags)
		} else {
			child, err = loadNodeFromFile(rawDirfd, name, flags)
			if err != nil {
				err = wrapPath(name, err)
			}
		}
		if err != nil {
			return nil, wrapPath(fname, err)
		}

		if err := node.AddChild(child, name); err != nil {
			return nil, wrapPath(fname, fmt.Errorf("attaching %s: %w", name, err))
		}
	}

	return node, nil
}

// loadNodeFromFile stats fname relative to dirfd with
// AT_SYMLINK_NOFOLLOW and builds a single detached node from the
// result, optionally computing a content digest and copying xattrs.
// It never recurses — directory traversal is Build's job.
func loadNodeFromFile(dirfd int, fname string, flags lcfs.BuildFlags) (*lcfs.Node, error) {
	var stat unix.Stat_t
	if err := unix.Fstatat(dirfd, fname, &stat, unix.AT_SYMLINK_NOFOLLOW); err != nil {
		return nil, fmt.Errorf("fstatat: %w", err)
	}

	node := lcfs.NewNode()
	node.Mode = stat.Mode
	node.Uid = stat.Uid
	node.Gid = stat.Gid
	node.Rdev = uint32(stat.Rdev)
	node.Size = uint64(stat.Size)

	if flags&lcfs.BuildUseEpoch == 0 {
		node.MtimeSec = uint64(stat.Mtim.Sec)
		node.MtimeNsec = uint32(stat.Mtim.Nsec)
		node.CtimeSec = uint64(stat.Ctim.Sec)
		node.CtimeNsec = uint32(stat.Ctim.Nsec)
	}

	if node.Mode&0o170000 == lcfs.ModeRegular && stat.Size != 0 && flags&lcfs.BuildComputeDigest != 0 {
		fd, err := unix.Openat(dirfd, fname, unix.O_RDONLY|unix.O_CLOEXEC, 0)
		if err != nil {
			return nil, fmt.Errorf("opening for digest: %w", err)
		}
		file := os.NewFile(uintptr(fd), fname)
		err = node.ComputeFsverityFromStream(file)
		file.Close()
		if err != nil {
			return nil, fmt.Errorf("digesting content: %w", err)
		}
	}

	if flags&lcfs.BuildSkipXattrs == 0 {
		if err := readXattrs(node, dirfd, fname); err != nil {
			return nil, fmt.Errorf("reading xattrs: %w", err)
		}
	}

	return node, nil
}

// readXattrs lists and copies every extended attribute of fname
// (relative to dirfd) onto node, using an O_PATH handle's
// /proc/self/fd/<n> alias the way the original C source does — this
// works uniformly across regular files, directories, and symlinks
// without following the symlink.
func readXattrs(node *lcfs.Node, dirfd int, fname string) error {
	fd, err := unix.Openat(dirfd, fname, unix.O_PATH|unix.O_NOFOLLOW|unix.O_CLOEXEC, 0)
	if err != nil {
		return fmt.Errorf("openat O_PATH: %w", err)
	}
	defer unix.Close(fd)

	path := fmt.Sprintf("/proc/self/fd/%d", fd)

	listSize, err := unix.Listxattr(path, nil)
	if err != nil {
		return fmt.Errorf("listxattr: %w", err)
	}
	if listSize == 0 {
		return nil
	}

	list := make([]byte, listSize)
	n, err := unix.Listxattr(path, list)
	if err != nil {
		return fmt.Errorf("listxattr: %w", err)
	}
	list = list[:n]

	for _, name := range splitXattrNames(list) {
		valueSize, err := unix.Getxattr(path, name, nil)
		if err != nil {
			return fmt.Errorf("getxattr %s: %w", name, err)
		}
		value := make([]byte, valueSize)
		if valueSize > 0 {
			n, err := unix.Getxattr(path, name, value)
			if err != nil {
				return fmt.Errorf("getxattr %s: %w", name, err)
			}
			value = value[:n]
		}
		node.SetXattr(name, value)
	}

	return nil
}

// splitXattrNames splits the NUL-separated name list returned by
// listxattr(2) into individual names, dropping the trailing empty
// string after the final NUL.
func splitXattrNames(list []byte) []string {
	var names []string
	start := 0
	for i, b := range list {
		if b != 0 {
			continue
		}
		if i > start {
			names = append(names, string(list[start:i]))
		}
		start = i + 1
	}
	return names
}
