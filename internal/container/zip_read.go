// Copyright 2024 The pgo Authors. All rights reserved.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.

package container

import (
	"encoding/binary"
	"fmt"
	"io"
)

// zipDataDescSig is the optional 4-byte signature (PK\x07\x08) that some
// zip writers, but not this module's own writer, prepend to the data
// descriptor.
const zipDataDescSig = 0x08074b50

// ZipLocal is the result of parsing a zip local file header.
type ZipLocal struct {
	Name   string
	Method uint16
	Flags  uint16
}

// ReadZipLocalHeader parses a zip local file header, including its name
// and extra field (whose contents, beyond its length, are discarded:
// this module does not need to round-trip third-party extra blocks). It
// returns an error wrapping ErrFormat if the signature does not match.
func ReadZipLocalHeader(r io.Reader) (ZipLocal, error) {
	var head [zipLocalHeaderLen]byte
	if _, err := io.ReadFull(r, head[:]); err != nil {
		return ZipLocal{}, fmt.Errorf("container: zip local header: %w", err)
	}
	if binary.LittleEndian.Uint32(head[0:4]) != zipLocalSig {
		return ZipLocal{}, fmt.Errorf("container: %w: bad zip local header signature", ErrFormat)
	}
	flags := binary.LittleEndian.Uint16(head[6:8])
	method := binary.LittleEndian.Uint16(head[8:10])
	nameLen := binary.LittleEndian.Uint16(head[26:28])
	extraLen := binary.LittleEndian.Uint16(head[28:30])

	name := make([]byte, nameLen)
	if _, err := io.ReadFull(r, name); err != nil {
		return ZipLocal{}, fmt.Errorf("container: zip local header name: %w", err)
	}
	if _, err := io.CopyN(io.Discard, r, int64(extraLen)); err != nil {
		return ZipLocal{}, fmt.Errorf("container: zip local header extra field: %w", err)
	}
	return ZipLocal{Name: string(name), Method: method, Flags: flags}, nil
}

// ReadZipDataDescriptor reads the 12-byte data descriptor that follows a
// streamed entry's compressed data and returns its stored CRC, compressed
// length and uncompressed length. Some zip writers prepend an optional
// 4-byte PK\x07\x08 signature to the descriptor; since its presence isn't
// announced anywhere else, this is resolved the way real-world zip
// readers do it: read 12 bytes, and if the stored CRC doesn't match
// wantCRC and the first 4 bytes are the PK\x07\x08 signature, consume 4
// more bytes and read the descriptor that follows the signature. This
// heuristic is inherently ambiguous on a genuinely corrupt
// stream and is preserved rather than "fixed", per spec.md's Open
// Questions.
func ReadZipDataDescriptor(r io.Reader, wantCRC uint32) (crc, clen, ulen uint32, err error) {
	var buf [zipDataDescLen]byte
	if _, err := io.ReadFull(r, buf[:]); err != nil {
		return 0, 0, 0, fmt.Errorf("container: zip data descriptor: %w", err)
	}
	crc = binary.LittleEndian.Uint32(buf[0:4])
	if crc == wantCRC {
		clen = binary.LittleEndian.Uint32(buf[4:8])
		ulen = binary.LittleEndian.Uint32(buf[8:12])
		return crc, clen, ulen, nil
	}
	if binary.LittleEndian.Uint32(buf[0:4]) == zipDataDescSig {
		var rest [4]byte
		if _, err := io.ReadFull(r, rest[:]); err != nil {
			return 0, 0, 0, fmt.Errorf("container: zip data descriptor: %w", err)
		}
		crc = binary.LittleEndian.Uint32(buf[4:8])
		clen = binary.LittleEndian.Uint32(buf[8:12])
		ulen = binary.LittleEndian.Uint32(rest[0:4])
		return crc, clen, ulen, nil
	}
	// Neither interpretation matched; report the first (no-signature)
	// reading and let the caller's checksum comparison report the
	// mismatch.
	clen = binary.LittleEndian.Uint32(buf[4:8])
	ulen = binary.LittleEndian.Uint32(buf[8:12])
	return crc, clen, ulen, nil
}
