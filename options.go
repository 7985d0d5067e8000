// Copyright 2024 The pgo Authors. All rights reserved.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.

// Package pgo implements a parallel compressor/decompressor that
// produces byte-compatible output for gzip, zlib and a minimal
// single-entry zip over the deflate compression method, by
// partitioning input into fixed-size blocks and compressing them
// concurrently while still emitting a single stream indistinguishable,
// at the format level, from a serial encoder.
package pgo

import (
	"fmt"
	"runtime"

	"github.com/cosnicolaou/pgo/internal/container"
)

// MinBlockSize is the minimum block size spec.md §6.1 permits.
const MinBlockSize = 32 * 1024

// DefaultBlockSize is used when no BlockSize option is supplied.
const DefaultBlockSize = 128 * 1024

// DefaultCompression requests zlib/deflate's own default level.
const DefaultCompression = -1

type config struct {
	level     int
	workers   int
	blockSize int
	format    container.Format
	dict      bool
	meta      container.Metadata
	verbose   bool

	progressCh chan<- Progress
}

func defaultConfig() config {
	return config{
		level:     DefaultCompression,
		workers:   runtime.GOMAXPROCS(-1),
		blockSize: DefaultBlockSize,
		format:    container.Gzip,
		dict:      true,
	}
}

// Option configures a Writer; a Reader is configured by ReaderOption.
type Option func(*config)

// Level sets the compression level, 0-9, or DefaultCompression.
func Level(level int) Option {
	return func(c *config) { c.level = level }
}

// Workers sets the number of compressor goroutines and hence the size of
// the work-unit ring; spec.md requires workers >= 1.
func Workers(n int) Option {
	return func(c *config) { c.workers = n }
}

// BlockSize sets the size, in bytes, of each block; spec.md requires at
// least MinBlockSize.
func BlockSize(n int) Option {
	return func(c *config) { c.blockSize = n }
}

// Format selects the container format to produce.
func Format(f container.Format) Option {
	return func(c *config) { c.format = f }
}

// Dictionary controls whether each block (after the first) is seeded
// with the last 32 KiB of the previous block as a preset dictionary.
// When false, blocks are fully independent.
func Dictionary(on bool) Option {
	return func(c *config) { c.dict = on }
}

// StoreName embeds name in the header (gzip FNAME, zip entry name).
func StoreName(name string) Option {
	return func(c *config) {
		c.meta.StoreName = true
		c.meta.Name = name
	}
}

// StoreModTime embeds t (seconds since the Unix epoch) in the header.
func StoreModTime(t uint32) Option {
	return func(c *config) {
		c.meta.StoreTime = true
		c.meta.ModTime = t
	}
}

// Verbose enables per-block tracing to the standard logger.
func Verbose(v bool) Option {
	return func(c *config) { c.verbose = v }
}

func (c config) validate() error {
	if c.workers < 1 {
		return fmt.Errorf("pgo: workers must be >= 1, got %d", c.workers)
	}
	if c.blockSize < MinBlockSize {
		return fmt.Errorf("pgo: block size must be >= %d, got %d", MinBlockSize, c.blockSize)
	}
	if c.level != DefaultCompression && (c.level < 0 || c.level > 9) {
		return fmt.Errorf("pgo: level must be 0-9 or DefaultCompression, got %d", c.level)
	}
	if c.format == container.LZW {
		return fmt.Errorf("pgo: LZW is a decode-only format and cannot be written")
	}
	return nil
}
