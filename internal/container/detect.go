// Copyright 2024 The pgo Authors. All rights reserved.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.

package container

import "encoding/binary"

// Detect identifies the container format of a stream from its first four
// bytes, per spec.md §6.3: a two-byte big-endian value divisible by 31
// indicates zlib; 0x1F9D indicates LZW; 0x504B0304 indicates zip;
// 0x1F8B indicates gzip; anything else is unrecognized.
//
// peek must contain at least the bytes available at the start of the
// stream; fewer than 2 bytes is always unrecognized.
func Detect(peek []byte) (Format, bool) {
	if len(peek) < 2 {
		return 0, false
	}
	two := binary.BigEndian.Uint16(peek[:2])
	if two%31 == 0 {
		return Zlib, true
	}
	if two == 0x1f9d {
		return LZW, true
	}
	if len(peek) >= 4 && binary.BigEndian.Uint32(peek[:4]) == 0x504b0304 {
		return Zip, true
	}
	if two == 0x1f8b {
		return Gzip, true
	}
	return 0, false
}
