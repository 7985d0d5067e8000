// Copyright 2024 The pgo Authors. All rights reserved.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.

package main

import (
	"bufio"
	"context"
	"fmt"

	"cloudeng.io/errors"
	"github.com/cosnicolaou/pgo/internal/container"
)

// list implements spec.md's supplemented "list" operation (§5 of
// SPEC_FULL.md): report the detected container format and any stored
// name/mtime without decompressing the member's body, in the spirit of
// the teacher's "scan" command but for container headers rather than
// bzip2 block boundaries.
func list(ctx context.Context, values interface{}, args []string) error {
	errs := &errors.M{}
	for _, name := range args {
		errs.Append(listOne(ctx, name))
	}
	return errs.Err()
}

func listOne(ctx context.Context, name string) error {
	rd, size, cleanup, err := openFileOrURL(ctx, name)
	if err != nil {
		return err
	}
	defer cleanup(ctx)

	br := bufio.NewReaderSize(rd, 4)
	peek, _ := br.Peek(4)
	format, ok := container.Detect(peek)
	if !ok {
		fmt.Printf("%s: unrecognized (%d bytes)\n", name, size)
		return nil
	}

	switch format {
	case container.Gzip:
		hdr, err := container.ReadGzipHeader(br)
		if err != nil {
			return fmt.Errorf("%s: %w", name, err)
		}
		fmt.Printf("%s: gzip name=%q mtime=%d (%d bytes)\n", name, hdr.Name, hdr.ModTime, size)
	case container.Zlib:
		fmt.Printf("%s: zlib (%d bytes)\n", name, size)
	case container.Zip:
		local, err := container.ReadZipLocalHeader(br)
		if err != nil {
			return fmt.Errorf("%s: %w", name, err)
		}
		fmt.Printf("%s: zip name=%q (%d bytes)\n", name, local.Name, size)
	case container.LZW:
		fmt.Printf("%s: compress (.Z) (%d bytes)\n", name, size)
	}
	return nil
}
