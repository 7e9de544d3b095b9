// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// lcfs-dump inspects a composefs image: it prints the decoded tree as
// indented text or CBOR, or mounts it read-only via lib/lcfsverify so
// the image can be browsed with ordinary filesystem tools.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/pflag"

	"github.com/lcfs-go/lcfs/lib/codec"
	"github.com/lcfs-go/lcfs/lib/lcfs"
	"github.com/lcfs-go/lcfs/lib/lcfsverify"
)

const version = "0.1.0"

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "lcfs-dump: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	var (
		format      string
		mountpoint  string
		showVersion bool
	)

	flagSet := pflag.NewFlagSet("lcfs-dump", pflag.ContinueOnError)
	flagSet.StringVar(&format, "format", "text", "output format: text, cbor, or diag (CBOR diagnostic notation)")
	flagSet.StringVar(&mountpoint, "mount", "", "mount the image read-only at this path instead of dumping it")
	flagSet.BoolVar(&showVersion, "version", false, "print the version and exit")
	flagSet.BoolP("help", "h", false, "show help")

	if err := flagSet.Parse(os.Args[1:]); err != nil {
		if err == pflag.ErrHelp {
			printHelp(flagSet)
			return nil
		}
		return err
	}

	if showVersion {
		fmt.Printf("lcfs-dump %s\n", version)
		return nil
	}
	if help, _ := flagSet.GetBool("help"); help {
		printHelp(flagSet)
		return nil
	}

	args := flagSet.Args()
	if len(args) != 1 {
		printHelp(flagSet)
		return fmt.Errorf("expected exactly one image file argument")
	}

	file, err := os.Open(args[0])
	if err != nil {
		return fmt.Errorf("opening %s: %w", args[0], err)
	}
	defer file.Close()

	img, err := lcfs.ReadFrom(file)
	if err != nil {
		return fmt.Errorf("decoding %s: %w", args[0], err)
	}

	if mountpoint != "" {
		return runMount(img, mountpoint)
	}

	root, err := walkImage(img, 0)
	if err != nil {
		return fmt.Errorf("walking decoded tree: %w", err)
	}

	switch format {
	case "text":
		printTree(os.Stdout, root, 0)
	case "cbor":
		data, err := codec.Marshal(root)
		if err != nil {
			return fmt.Errorf("marshaling tree: %w", err)
		}
		os.Stdout.Write(data)
	case "diag":
		data, err := codec.Marshal(root)
		if err != nil {
			return fmt.Errorf("marshaling tree: %w", err)
		}
		diag, err := codec.Diagnose(data)
		if err != nil {
			return fmt.Errorf("formatting diagnostic notation: %w", err)
		}
		fmt.Println(diag)
	default:
		return fmt.Errorf("unknown format %q: want text, cbor, or diag", format)
	}

	return nil
}

// runMount mounts img read-only at mountpoint and blocks until
// interrupted, following the signal-driven shutdown shape the rest of
// the corpus uses for long-running foreground commands.
func runMount(img *lcfs.Image, mountpoint string) error {
	server, err := lcfsverify.Mount(lcfsverify.Options{Image: img, Mountpoint: mountpoint})
	if err != nil {
		return fmt.Errorf("mounting at %s: %w", mountpoint, err)
	}

	fmt.Fprintf(os.Stderr, "mounted at %s, press Ctrl-C to unmount\n", mountpoint)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	<-ctx.Done()

	return server.Unmount()
}

// dumpEntry is the dump format for one decoded inode, rooted at the
// image's inode 0. Unlike [lcfs.DumpTree] (which projects a live
// build-time tree), this is assembled from an already-written image's
// decoded form — the view cmd/lcfs-dump gives a user inspecting an
// image file on disk.
type dumpEntry struct {
	Inode    uint32           `cbor:"inode"`
	Name     string           `cbor:"name,omitempty"`
	Mode     uint32           `cbor:"mode"`
	Uid      uint32           `cbor:"uid"`
	Gid      uint32           `cbor:"gid"`
	Size     uint64           `cbor:"size,omitempty"`
	Nlink    uint32           `cbor:"nlink"`
	Payload  string           `cbor:"payload,omitempty"`
	Digest   []byte           `cbor:"digest,omitempty"`
	Xattrs   []dumpXattrEntry `cbor:"xattrs,omitempty"`
	Children []*dumpEntry     `cbor:"children,omitempty"`
}

type dumpXattrEntry struct {
	Key   string `cbor:"key"`
	Value []byte `cbor:"value"`
}

// walkImage decodes inode num and, if it is a directory, recurses
// into its entries in their stored (already-canonical) order.
func walkImage(img *lcfs.Image, num uint32) (*dumpEntry, error) {
	decoded, err := img.Inode(num)
	if err != nil {
		return nil, err
	}

	entry := &dumpEntry{
		Inode: decoded.Num,
		Mode:  decoded.Mode,
		Uid:   decoded.Uid,
		Gid:   decoded.Gid,
		Size:  decoded.Size,
		Nlink: decoded.Nlink,
	}

	if digest, ok, err := img.Digest(decoded); err != nil {
		return nil, err
	} else if ok {
		entry.Digest = append([]byte(nil), digest[:]...)
	}

	xattrs, err := img.Xattrs(decoded)
	if err != nil {
		return nil, err
	}
	for _, x := range xattrs {
		entry.Xattrs = append(entry.Xattrs, dumpXattrEntry{Key: x.Key, Value: x.Value})
	}

	if decoded.IsDir() {
		dirents, err := img.Dirents(decoded)
		if err != nil {
			return nil, err
		}
		for _, dirent := range dirents {
			child, err := walkImage(img, dirent.InodeNum)
			if err != nil {
				return nil, err
			}
			child.Name = dirent.Name
			entry.Children = append(entry.Children, child)
		}
		return entry, nil
	}

	payload, err := img.Payload(decoded)
	if err != nil {
		return nil, err
	}
	entry.Payload = string(payload)
	return entry, nil
}

func printTree(w *os.File, entry *dumpEntry, depth int) {
	for i := 0; i < depth; i++ {
		fmt.Fprint(w, "  ")
	}
	name := entry.Name
	if name == "" {
		name = "."
	}
	fmt.Fprintf(w, "%s [inode=%d mode=%o nlink=%d size=%d]\n", name, entry.Inode, entry.Mode, entry.Nlink, entry.Size)
	for _, child := range entry.Children {
		printTree(w, child, depth+1)
	}
}

func printHelp(flagSet *pflag.FlagSet) {
	fmt.Fprintf(os.Stderr, `lcfs-dump inspects a composefs image.

Usage:
  lcfs-dump [flags] <image-file>

Examples:
  # Print the decoded tree as indented text
  lcfs-dump image.lcfs

  # Print it as CBOR diagnostic notation
  lcfs-dump --format diag image.lcfs

  # Browse it through a read-only FUSE mount
  lcfs-dump --mount /tmp/mnt image.lcfs

Flags:
`)
	flagSet.SetOutput(os.Stderr)
	flagSet.PrintDefaults()
}
