// Copyright 2024 The pgo Authors. All rights reserved.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.

// Package container implements the byte-exact header and trailer framing
// for the three container formats this module supports — gzip, zlib and
// a minimal single-entry zip — per spec.md §6.2, plus the magic-based
// format detection of §6.3.
package container

import "fmt"

// Format identifies a container format.
type Format int

// The formats this module can produce and consume.
const (
	Gzip Format = iota
	Zlib
	Zip
	LZW // decode-only, per spec.md §1.
)

func (f Format) String() string {
	switch f {
	case Gzip:
		return "gzip"
	case Zlib:
		return "zlib"
	case Zip:
		return "zip"
	case LZW:
		return "lzw"
	default:
		return fmt.Sprintf("container.Format(%d)", int(f))
	}
}

// Seed returns the initial check value for the running check this
// format uses: 0 for CRC-32 (gzip, zip), 1 for Adler-32 (zlib).
func (f Format) Seed() uint32 {
	if f == Zlib {
		return 1
	}
	return 0
}

// Metadata carries the optional per-stream fields a header may embed.
type Metadata struct {
	Name      string // original file name; empty if not stored.
	ModTime   uint32 // seconds since epoch, 32-bit; 0 if not stored.
	StoreName bool
	StoreTime bool
}
