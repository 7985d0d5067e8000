// Copyright 2024 The pgo Authors. All rights reserved.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.

package lzw

import "io"

// bitReader reads fixed-width codes packed LSB-first across byte
// boundaries, as Unix compress does (the least significant bit of the
// first byte is the least significant bit of the first code).
type bitReader struct {
	r     io.ByteReader
	bits  uint32
	nbits uint
}

func (b *bitReader) init(r io.ByteReader) {
	b.r = r
}

func (b *bitReader) readCode(width int) (int, error) {
	for b.nbits < uint(width) {
		c, err := b.r.ReadByte()
		if err != nil {
			return 0, err
		}
		b.bits |= uint32(c) << b.nbits
		b.nbits += 8
	}
	code := int(b.bits & (1<<uint(width) - 1))
	b.bits >>= uint(width)
	b.nbits -= uint(width)
	return code, nil
}
