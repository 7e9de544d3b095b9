// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// lcfs-mkcomposefs builds a composefs image from a source directory
// tree. It ingests the tree's metadata only (not file content) and
// writes a canonicalized, byte-deterministic image to stdout or a named
// output file. It sets no payloads: regular files carry no backing-file
// reference and symlinks carry no target in the image it writes.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/pflag"

	"github.com/lcfs-go/lcfs/lib/lcfs"
	"github.com/lcfs-go/lcfs/lib/lcfsfs"
)

const version = "0.1.0"

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "lcfs-mkcomposefs: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	var (
		output        string
		useEpoch      bool
		skipXattrs    bool
		skipDevices   bool
		computeDigest bool
		imageDigest   bool
		showVersion   bool
	)

	flagSet := pflag.NewFlagSet("lcfs-mkcomposefs", pflag.ContinueOnError)
	flagSet.StringVarP(&output, "output", "o", "", "write the image here instead of stdout")
	flagSet.BoolVar(&useEpoch, "use-epoch", false, "zero all timestamps for reproducible output")
	flagSet.BoolVar(&skipXattrs, "skip-xattrs", false, "omit extended attributes")
	flagSet.BoolVar(&skipDevices, "skip-devices", false, "omit block and character device nodes")
	flagSet.BoolVar(&computeDigest, "compute-digest", false, "compute a per-file content digest for every non-empty regular file")
	flagSet.BoolVar(&imageDigest, "image-digest", false, "print the whole-image digest to stderr after writing")
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
		fmt.Printf("lcfs-mkcomposefs %s\n", version)
		return nil
	}
	if help, _ := flagSet.GetBool("help"); help {
		printHelp(flagSet)
		return nil
	}

	args := flagSet.Args()
	if len(args) != 1 {
		printHelp(flagSet)
		return fmt.Errorf("expected exactly one source directory argument")
	}
	source := args[0]

	var flags lcfs.BuildFlags
	if useEpoch {
		flags |= lcfs.BuildUseEpoch
	}
	if skipXattrs {
		flags |= lcfs.BuildSkipXattrs
	}
	if skipDevices {
		flags |= lcfs.BuildSkipDevices
	}
	if computeDigest {
		flags |= lcfs.BuildComputeDigest
	}

	root, err := lcfsfs.BuildPath(source, flags)
	if err != nil {
		return fmt.Errorf("ingesting %s: %w", source, err)
	}

	sink := os.Stdout
	if output != "" {
		file, err := os.Create(output)
		if err != nil {
			return fmt.Errorf("creating %s: %w", output, err)
		}
		defer file.Close()
		sink = file
	}

	digest, err := lcfs.WriteTo(root, sink, lcfs.WriteOptions{ComputeImageDigest: imageDigest})
	if err != nil {
		return fmt.Errorf("writing image: %w", err)
	}

	if imageDigest {
		fmt.Fprintf(os.Stderr, "image digest: %x\n", digest[:])
	}

	return nil
}

func printHelp(flagSet *pflag.FlagSet) {
	fmt.Fprintf(os.Stderr, `lcfs-mkcomposefs builds a composefs image from a source directory tree.

Usage:
  lcfs-mkcomposefs [flags] <source-dir>

The image is byte-deterministic: the same tree (modulo timestamps,
unless --use-epoch is given) always produces the same bytes.

Examples:
  # Write an image to stdout
  lcfs-mkcomposefs /path/to/rootfs > image.lcfs

  # Reproducible build with per-file digests, written to a file
  lcfs-mkcomposefs --use-epoch --compute-digest -o image.lcfs /path/to/rootfs

Flags:
`)
	flagSet.SetOutput(os.Stderr)
	flagSet.PrintDefaults()
}
