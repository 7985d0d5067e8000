// Copyright 2024 The pgo Authors. All rights reserved.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.

package container

import (
	"encoding/binary"
	"fmt"
	"io"
)

// zlibCMF is the compression method / window size byte for a 32 KiB
// deflate window (RFC 1950's CMF byte: CM=8, CINFO=7).
const zlibCMF = 0x78

// ZlibHeaderLen is the fixed size of a zlib header.
const ZlibHeaderLen = 2

// zlibFLevel returns the FLEVEL bits (top two bits of the second header
// byte) for the given compression level, per spec.md §6.2: 3 for level
// 9, 0 for level 1, 1 for level 6 or default, 2 otherwise.
func zlibFLevel(level int) byte {
	switch level {
	case 9:
		return 3
	case 1:
		return 0
	case 6, -1: // -1 is flate.DefaultCompression.
		return 1
	default:
		return 2
	}
}

// WriteZlibHeader writes the 2-byte zlib header. The second byte is
// chosen, per RFC 1950, so that the big-endian uint16 formed by the two
// header bytes is a multiple of 31 (a check value, not a flag), with its
// FLEVEL bits set from the compression level and FDICT left clear (this
// module never uses a zlib preset dictionary at the container level —
// deflate's own preset dictionary mechanism is used between blocks
// instead, not exposed in the header).
func WriteZlibHeader(w io.Writer, level int) error {
	var hdr [2]byte
	hdr[0] = zlibCMF
	flg := zlibFLevel(level) << 6
	hdr[1] = flg
	check := (uint16(hdr[0])<<8 | uint16(hdr[1])) % 31
	if check != 0 {
		hdr[1] += byte(31 - check)
	}
	if _, err := w.Write(hdr[:]); err != nil {
		return fmt.Errorf("container: zlib header: %w", err)
	}
	return nil
}

// WriteZlibTrailer writes the 4-byte big-endian Adler-32 trailer.
func WriteZlibTrailer(w io.Writer, adler uint32) error {
	var tr [4]byte
	binary.BigEndian.PutUint32(tr[:], adler)
	if _, err := w.Write(tr[:]); err != nil {
		return fmt.Errorf("container: zlib trailer: %w", err)
	}
	return nil
}

// ReadZlibHeader validates and consumes a 2-byte zlib header, returning
// an error wrapping ErrFormat if the stream does not look like zlib
// (wrong compression method, non-multiple-of-31 check, or a preset
// dictionary flag that this module does not support on read).
func ReadZlibHeader(r io.Reader) error {
	var hdr [2]byte
	if _, err := io.ReadFull(r, hdr[:]); err != nil {
		return fmt.Errorf("container: zlib header: %w", err)
	}
	cmf, flg := hdr[0], hdr[1]
	if cmf&0x0f != 8 {
		return fmt.Errorf("container: %w: unsupported zlib compression method", ErrFormat)
	}
	if (uint16(cmf)<<8|uint16(flg))%31 != 0 {
		return fmt.Errorf("container: %w: bad zlib header check", ErrFormat)
	}
	if flg&0x20 != 0 {
		return fmt.Errorf("container: %w: zlib preset dictionary not supported", ErrFormat)
	}
	return nil
}

// ReadZlibTrailer reads the 4-byte big-endian Adler-32 trailer.
func ReadZlibTrailer(r io.Reader) (uint32, error) {
	var tr [4]byte
	if _, err := io.ReadFull(r, tr[:]); err != nil {
		return 0, fmt.Errorf("container: zlib trailer: %w", err)
	}
	return binary.BigEndian.Uint32(tr[:]), nil
}
